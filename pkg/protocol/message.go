// Package protocol defines the WebSocket message types exchanged between a
// sensor rig and the navigation controller.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Rig → Controller messages
	TypeHello    MessageType = "hello"    // Rig announcement
	TypeAudio    MessageType = "audio"    // Interleaved microphone block
	TypeRow      MessageType = "row"      // Captured pixel row
	TypeDistance MessageType = "distance" // Range finder sample

	// Controller → Rig messages
	TypeMotor     MessageType = "motor"     // Wheel speeds
	TypeIndicator MessageType = "indicator" // RGB indicator color
	TypeCapture   MessageType = "capture"   // Row capture request

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Rig → Controller Message Types
// =============================================================================

// HelloData announces a rig and its sensor formats
type HelloData struct {
	Name       string `json:"name"`
	SampleRate int    `json:"sample_rate"` // Microphone rate, e.g. 16000
	Channels   int    `json:"channels"`    // Interleaved microphones, e.g. 4
	RowWidth   int    `json:"row_width"`   // Pixels per captured row
}

// AudioData contains one block of interleaved microphone samples
type AudioData struct {
	Format     string `json:"format"`      // "pcm16"
	SampleRate int    `json:"sample_rate"` // e.g., 16000
	Channels   int    `json:"channels"`    // 4 for right, left, back, front
	Seq        uint64 `json:"seq,omitempty"`
	Data       string `json:"data"` // base64 encoded little-endian PCM16
}

// RowData answers a capture request
type RowData struct {
	ID      uint64 `json:"id"`      // Capture request ID
	Channel string `json:"channel"` // Channel that was requested
	Format  string `json:"format"`  // "rgb565" or "gray"
	Width   int    `json:"width"`
	Data    string `json:"data,omitempty"` // base64 encoded
	Error   string `json:"error,omitempty"`
}

// DistanceData is one range finder sample
type DistanceData struct {
	MM    float64 `json:"mm"`
	Error string  `json:"error,omitempty"`
}

// =============================================================================
// Controller → Rig Message Types
// =============================================================================

// MotorCommand contains wheel speeds in steps per second
type MotorCommand struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// IndicatorCommand sets the RGB indicator
type IndicatorCommand struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// CaptureRequest asks the rig for one row of one color channel
type CaptureRequest struct {
	ID      uint64 `json:"id"`
	Channel string `json:"channel"` // "red", "green", "blue"
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
