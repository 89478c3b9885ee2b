// Package bridge connects the navigation controller to a remote sensor rig
// over a websocket. The Server side plugs into the control loop as robot
// hardware, line capturer and audio source; the Client side runs on the rig.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-pitchnav/pkg/audioio"
	"github.com/teslashibe/go-pitchnav/pkg/camera"
	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/protocol"
	"github.com/teslashibe/go-pitchnav/pkg/robot"
)

var (
	// ErrNoRig is returned by hardware calls while no rig is connected.
	ErrNoRig = errors.New("bridge: no rig connected")

	// ErrStaleDistance is returned when the last range sample is too old.
	ErrStaleDistance = errors.New("bridge: distance sample too old")

	// ErrRangeFinder wraps a failure reported by the rig's sensor.
	ErrRangeFinder = errors.New("bridge: range finder error")

	// ErrCaptureTimeout is returned when the rig does not answer a capture.
	ErrCaptureTimeout = errors.New("bridge: capture timed out")
)

// Config holds bridge timing.
type Config struct {
	// StaleAfter bounds the age of the distance sample handed to the
	// control loop. Default: 250ms
	StaleAfter time.Duration `yaml:"stale_after" json:"stale_after"`

	// CaptureTimeout bounds one row capture. Default: 1s
	CaptureTimeout time.Duration `yaml:"capture_timeout" json:"capture_timeout"`
}

// DefaultConfig returns the default bridge timing.
func DefaultConfig() Config {
	return Config{
		StaleAfter:     250 * time.Millisecond,
		CaptureTimeout: time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.StaleAfter <= 0 || c.CaptureTimeout <= 0 {
		return fmt.Errorf("stale_after and capture_timeout must be positive")
	}
	return nil
}

// RigConnection represents the connected rig
type RigConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time
	Hello     protocol.HelloData

	mu sync.Mutex
}

// Send writes a message to the rig
func (r *RigConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Conn.WriteMessage(websocket.TextMessage, data)
}

type distanceSample struct {
	mm  float64
	err string
	at  time.Time
}

// Server accepts one rig at a time.
type Server struct {
	cfg    Config
	logger *slog.Logger
	audio  *audioio.PushSource

	mu       sync.RWMutex
	rig      *RigConnection
	distance distanceSample

	pendingMu sync.Mutex
	pending   map[uint64]chan *protocol.RowData
	nextID    atomic.Uint64

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	audioChunks      atomic.Uint64
	rowsReceived     atomic.Uint64
	distanceSamples  atomic.Uint64
	rejected         atomic.Uint64
}

// NewServer creates a bridge server. Audio blocks from the rig are pushed
// to audio, which the caller starts and consumes.
func NewServer(cfg Config, audio *audioio.PushSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		audio:   audio,
		pending: make(map[uint64]chan *protocol.RowData),
	}
}

// Audio returns the source fed by the rig.
func (s *Server) Audio() *audioio.PushSource { return s.audio }

// RegisterRoutes registers the rig websocket routes on a Fiber app
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/rig", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/rig", websocket.New(s.handleRig))
	app.Get("/ws/rig/:id", websocket.New(s.handleRig))
}

// handleRig handles a rig websocket connection
func (s *Server) handleRig(c *websocket.Conn) {
	rigID := c.Params("id")
	if rigID == "" {
		rigID = uuid.NewString()
	}

	now := time.Now()
	rig := &RigConnection{
		ID:        rigID,
		Conn:      c,
		Connected: now,
		LastSeen:  now,
	}

	s.mu.Lock()
	if s.rig != nil {
		current := s.rig.ID
		s.mu.Unlock()
		s.rejected.Add(1)
		s.logger.Warn("rejecting second rig", "rig", rigID, "connected", current)
		_ = c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rig already connected"))
		return
	}
	s.rig = rig
	s.distance = distanceSample{}
	s.mu.Unlock()

	s.logger.Info("rig connected", "rig", rigID)

	defer func() {
		s.mu.Lock()
		s.rig = nil
		s.distance = distanceSample{}
		s.mu.Unlock()
		s.failPending()
		s.logger.Info("rig disconnected", "rig", rigID)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.logger.Debug("rig read ended", "rig", rigID, "error", err)
			return
		}

		rig.mu.Lock()
		rig.LastSeen = time.Now()
		rig.mu.Unlock()

		s.messagesReceived.Add(1)
		s.handleMessage(rig, data)
	}
}

// handleMessage processes one message from the rig
func (s *Server) handleMessage(rig *RigConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Warn("bad rig message", "rig", rig.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		hello, err := msg.GetHelloData()
		if err != nil {
			return
		}
		rig.mu.Lock()
		rig.Hello = *hello
		rig.mu.Unlock()
		s.logger.Info("rig hello", "rig", rig.ID, "name", hello.Name,
			"sample_rate", hello.SampleRate, "channels", hello.Channels, "row_width", hello.RowWidth)

	case protocol.TypeAudio:
		s.handleAudio(msg)

	case protocol.TypeRow:
		row, err := msg.GetRowData()
		if err != nil {
			return
		}
		s.rowsReceived.Add(1)
		s.pendingMu.Lock()
		if ch, ok := s.pending[row.ID]; ok {
			select {
			case ch <- row:
			default:
			}
		}
		s.pendingMu.Unlock()

	case protocol.TypeDistance:
		d, err := msg.GetDistanceData()
		if err != nil {
			return
		}
		s.distanceSamples.Add(1)
		s.mu.Lock()
		s.distance = distanceSample{mm: d.MM, err: d.Error, at: time.Now()}
		s.mu.Unlock()

	case protocol.TypePing:
		pong, err := protocol.NewPongMessage("", msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			_ = s.send(pong)
		}
	}
}

func (s *Server) handleAudio(msg *protocol.Message) {
	if s.audio == nil {
		return
	}
	a, err := msg.GetAudioData()
	if err != nil {
		s.logger.Debug("bad audio block", "error", err)
		return
	}
	pcm, err := a.DecodeAudioData()
	if err != nil {
		s.logger.Debug("bad audio payload", "error", err)
		return
	}

	var chunk audioio.AudioChunk
	chunk.FromBytes(pcm, a.SampleRate, a.Channels)
	if err := s.audio.Push(chunk); err == nil {
		s.audioChunks.Add(1)
	}
}

// failPending wakes every capture waiting on the departed rig.
func (s *Server) failPending() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
}

// send writes msg to the connected rig
func (s *Server) send(msg *protocol.Message) error {
	s.mu.RLock()
	rig := s.rig
	s.mu.RUnlock()

	if rig == nil {
		return ErrNoRig
	}
	s.messagesSent.Add(1)
	return rig.Send(msg)
}

// SetSpeeds sends wheel speeds to the rig.
func (s *Server) SetSpeeds(left, right int) error {
	msg, err := protocol.NewMotorMessage(left, right)
	if err != nil {
		return err
	}
	return s.send(msg)
}

// SetColor sends the indicator color to the rig.
func (s *Server) SetColor(c robot.Color) error {
	msg, err := protocol.NewIndicatorMessage(c.R, c.G, c.B)
	if err != nil {
		return err
	}
	return s.send(msg)
}

// DistanceMM returns the latest range sample reported by the rig.
func (s *Server) DistanceMM() (float64, error) {
	s.mu.RLock()
	connected := s.rig != nil
	d := s.distance
	s.mu.RUnlock()

	if !connected {
		return 0, ErrNoRig
	}
	if d.at.IsZero() || time.Since(d.at) > s.cfg.StaleAfter {
		return 0, ErrStaleDistance
	}
	if d.err != "" {
		return 0, fmt.Errorf("%w: %s", ErrRangeFinder, d.err)
	}
	return d.mm, nil
}

// Capture asks the rig for one row of channel ch and waits for it.
func (s *Server) Capture(ctx context.Context, ch line.Channel) ([]uint8, error) {
	id := s.nextID.Add(1)
	resp := make(chan *protocol.RowData, 1)

	s.pendingMu.Lock()
	s.pending[id] = resp
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	msg, err := protocol.NewCaptureMessage(id, ch.String())
	if err != nil {
		return nil, err
	}
	if err := s.send(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.cfg.CaptureTimeout)
	defer timer.Stop()

	var row *protocol.RowData
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrCaptureTimeout
	case r, ok := <-resp:
		if !ok {
			return nil, ErrNoRig
		}
		row = r
	}

	if row.Error != "" {
		return nil, fmt.Errorf("rig capture failed: %s", row.Error)
	}
	pixels, err := row.DecodeRowData()
	if err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}

	switch row.Format {
	case protocol.FormatRGB565, "":
		return camera.ExtractRGB565(pixels, row.Width, ch)
	case protocol.FormatGray:
		if len(pixels) < row.Width {
			return nil, fmt.Errorf("%w: %d bytes for %d pixels", camera.ErrShortBuffer, len(pixels), row.Width)
		}
		return pixels[:row.Width], nil
	default:
		return nil, fmt.Errorf("unsupported row format %q", row.Format)
	}
}

// Connected reports whether a rig is attached.
func (s *Server) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rig != nil
}

// Stats contains bridge statistics
type Stats struct {
	Connected        bool   `json:"connected"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	AudioChunks      uint64 `json:"audio_chunks"`
	RowsReceived     uint64 `json:"rows_received"`
	DistanceSamples  uint64 `json:"distance_samples"`
	Rejected         uint64 `json:"rejected"`
}

// GetStats returns bridge statistics
func (s *Server) GetStats() Stats {
	return Stats{
		Connected:        s.Connected(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesSent:     s.messagesSent.Load(),
		AudioChunks:      s.audioChunks.Load(),
		RowsReceived:     s.rowsReceived.Load(),
		DistanceSamples:  s.distanceSamples.Load(),
		Rejected:         s.rejected.Load(),
	}
}

// RigInfo contains info about the connected rig
type RigInfo struct {
	ID        string             `json:"id"`
	Connected time.Time          `json:"connected"`
	LastSeen  time.Time          `json:"last_seen"`
	Hello     protocol.HelloData `json:"hello"`
}

// GetRigInfo returns the connected rig, or nil.
func (s *Server) GetRigInfo() *RigInfo {
	s.mu.RLock()
	rig := s.rig
	s.mu.RUnlock()
	if rig == nil {
		return nil
	}

	rig.mu.Lock()
	defer rig.mu.Unlock()
	return &RigInfo{
		ID:        rig.ID,
		Connected: rig.Connected,
		LastSeen:  rig.LastSeen,
		Hello:     rig.Hello,
	}
}

// RegisterAPIRoutes registers the rig status route
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/rig", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"rig":   s.GetRigInfo(),
			"stats": s.GetStats(),
		})
	})
}

var (
	_ robot.Controller = (*Server)(nil)
	_ line.Capturer    = (*Server)(nil)
)
