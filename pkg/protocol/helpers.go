package protocol

import (
	"encoding/base64"
	"fmt"
)

// Row formats
const (
	FormatRGB565 = "rgb565"
	FormatGray   = "gray"
	FormatPCM16  = "pcm16"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewHelloMessage creates a rig announcement
func NewHelloMessage(name string, sampleRate, channels, rowWidth int) (*Message, error) {
	return NewMessage(TypeHello, HelloData{
		Name:       name,
		SampleRate: sampleRate,
		Channels:   channels,
		RowWidth:   rowWidth,
	})
}

// NewAudioMessage creates an audio message from interleaved PCM16 bytes
func NewAudioMessage(pcm []byte, sampleRate, channels int, seq uint64) (*Message, error) {
	return NewMessage(TypeAudio, AudioData{
		Format:     FormatPCM16,
		SampleRate: sampleRate,
		Channels:   channels,
		Seq:        seq,
		Data:       base64.StdEncoding.EncodeToString(pcm),
	})
}

// NewRowMessage creates a row message answering request id
func NewRowMessage(id uint64, channel, format string, width int, pixels []byte) (*Message, error) {
	return NewMessage(TypeRow, RowData{
		ID:      id,
		Channel: channel,
		Format:  format,
		Width:   width,
		Data:    base64.StdEncoding.EncodeToString(pixels),
	})
}

// NewRowErrorMessage reports a failed capture
func NewRowErrorMessage(id uint64, channel string, err error) (*Message, error) {
	return NewMessage(TypeRow, RowData{ID: id, Channel: channel, Error: err.Error()})
}

// NewDistanceMessage creates a range finder sample
func NewDistanceMessage(mm float64, err error) (*Message, error) {
	d := DistanceData{MM: mm}
	if err != nil {
		d.Error = err.Error()
	}
	return NewMessage(TypeDistance, d)
}

// NewMotorMessage creates a motor command message
func NewMotorMessage(left, right int) (*Message, error) {
	return NewMessage(TypeMotor, MotorCommand{Left: left, Right: right})
}

// NewIndicatorMessage creates an indicator command
func NewIndicatorMessage(r, g, b uint8) (*Message, error) {
	return NewMessage(TypeIndicator, IndicatorCommand{R: r, G: g, B: b})
}

// NewCaptureMessage creates a capture request
func NewCaptureMessage(id uint64, channel string) (*Message, error) {
	return NewMessage(TypeCapture, CaptureRequest{ID: id, Channel: channel})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHelloData extracts the rig announcement from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAudioData extracts audio data from a message
func (m *Message) GetAudioData() (*AudioData, error) {
	var data AudioData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	if data.Format != "" && data.Format != FormatPCM16 {
		return nil, fmt.Errorf("unsupported audio format %q", data.Format)
	}
	return &data, nil
}

// DecodeAudioData decodes the base64 audio data
func (a *AudioData) DecodeAudioData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}

// GetRowData extracts row data from a message
func (m *Message) GetRowData() (*RowData, error) {
	var data RowData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeRowData decodes the base64 pixel data
func (r *RowData) DecodeRowData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Data)
}

// GetDistanceData extracts a distance sample from a message
func (m *Message) GetDistanceData() (*DistanceData, error) {
	var data DistanceData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMotorCommand extracts motor command from a message
func (m *Message) GetMotorCommand() (*MotorCommand, error) {
	var data MotorCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetIndicatorCommand extracts an indicator command from a message
func (m *Message) GetIndicatorCommand() (*IndicatorCommand, error) {
	var data IndicatorCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCaptureRequest extracts a capture request from a message
func (m *Message) GetCaptureRequest() (*CaptureRequest, error) {
	var data CaptureRequest
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
