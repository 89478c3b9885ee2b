package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-pitchnav/pkg/audioio"
	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/protocol"
	"github.com/teslashibe/go-pitchnav/pkg/robot"
)

const writeWait = 5 * time.Second

// Client is the rig side of the bridge.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	wmu sync.Mutex // Serializes writes

	mu          sync.RWMutex
	onMotor     func(left, right int)
	onIndicator func(c robot.Color)
	onCapture   func(id uint64, ch line.Channel)
}

// Dial connects to a bridge server, e.g. ws://host:8080/ws/rig/bench.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	logger.Info("connected to controller", "url", url)
	return &Client{conn: conn, logger: logger}, nil
}

// OnMotor sets the callback for wheel speed commands
func (c *Client) OnMotor(fn func(left, right int)) {
	c.mu.Lock()
	c.onMotor = fn
	c.mu.Unlock()
}

// OnIndicator sets the callback for indicator commands
func (c *Client) OnIndicator(fn func(color robot.Color)) {
	c.mu.Lock()
	c.onIndicator = fn
	c.mu.Unlock()
}

// OnCapture sets the callback for capture requests. The callback must
// answer with SendRow or SendRowError and should not block.
func (c *Client) OnCapture(fn func(id uint64, ch line.Channel)) {
	c.mu.Lock()
	c.onCapture = fn
	c.mu.Unlock()
}

// Run reads commands until ctx is done or the connection drops.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		c.logger.Warn("bad controller message", "error", err)
		return
	}

	c.mu.RLock()
	onMotor, onIndicator, onCapture := c.onMotor, c.onIndicator, c.onCapture
	c.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeMotor:
		cmd, err := msg.GetMotorCommand()
		if err == nil && onMotor != nil {
			onMotor(cmd.Left, cmd.Right)
		}

	case protocol.TypeIndicator:
		cmd, err := msg.GetIndicatorCommand()
		if err == nil && onIndicator != nil {
			onIndicator(robot.Color{R: cmd.R, G: cmd.G, B: cmd.B})
		}

	case protocol.TypeCapture:
		req, err := msg.GetCaptureRequest()
		if err != nil {
			return
		}
		ch, err := line.ParseChannel(req.Channel)
		if err != nil {
			_ = c.SendRowError(req.ID, req.Channel, err)
			return
		}
		if onCapture != nil {
			onCapture(req.ID, ch)
		}

	case protocol.TypePing:
		pong, err := protocol.NewPongMessage("", msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			_ = c.send(pong)
		}
	}
}

func (c *Client) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendHello announces the rig.
func (c *Client) SendHello(name string, sampleRate, channels, rowWidth int) error {
	msg, err := protocol.NewHelloMessage(name, sampleRate, channels, rowWidth)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// SendAudio forwards one microphone block.
func (c *Client) SendAudio(chunk audioio.AudioChunk, seq uint64) error {
	msg, err := protocol.NewAudioMessage(chunk.Bytes(), chunk.SampleRate, chunk.Channels, seq)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// SendDistance reports a range sample.
func (c *Client) SendDistance(mm float64, sampleErr error) error {
	msg, err := protocol.NewDistanceMessage(mm, sampleErr)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// SendRow answers capture id.
func (c *Client) SendRow(id uint64, ch line.Channel, format string, width int, pixels []byte) error {
	msg, err := protocol.NewRowMessage(id, ch.String(), format, width, pixels)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// SendRowError reports a failed capture.
func (c *Client) SendRowError(id uint64, channel string, captureErr error) error {
	msg, err := protocol.NewRowErrorMessage(id, channel, captureErr)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// Close closes the connection.
func (c *Client) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}
