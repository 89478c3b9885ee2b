// Package web serves live telemetry of the navigation controller.
package web

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-pitchnav/pkg/camera"
	"github.com/teslashibe/go-pitchnav/pkg/control"
	"github.com/teslashibe/go-pitchnav/pkg/hub"
	"github.com/teslashibe/go-pitchnav/pkg/nav"
	"github.com/teslashibe/go-pitchnav/pkg/pitch"
)

// Config holds the telemetry server settings.
type Config struct {
	Port string `yaml:"port" json:"port"`

	// StatusInterval throttles /ws/status. Default: 100ms (10 Hz)
	StatusInterval time.Duration `yaml:"status_interval" json:"status_interval"`

	// History is the number of transitions kept for /api/transitions.
	History int `yaml:"history" json:"history"`

	// AccessLog enables the fiber request logger.
	AccessLog bool `yaml:"access_log" json:"access_log"`
}

// DefaultConfig returns the default telemetry settings.
func DefaultConfig() Config {
	return Config{
		Port:           "8080",
		StatusInterval: 100 * time.Millisecond,
		History:        500,
	}
}

// LogLevel reads and changes the process log level.
type LogLevel struct {
	Get func() string
	Set func(level string) error
}

// Server is the telemetry server. It observes the control loop.
type Server struct {
	cfg     Config
	app     *fiber.App
	logger  *slog.Logger
	cells   control.Cells
	runID   string
	started time.Time

	// Settings is served by /api/config.
	Settings any

	// LogLevel, when set, exposes /api/log. Get returns the current level
	// name, Set changes it.
	LogLevel *LogLevel

	// Camera, when set, exposes /api/camera.
	Camera *camera.Manager

	// Stats, when set, adds counters to /api/status.
	Stats func() map[string]any

	transitions   []nav.Transition
	transitionsMu sync.RWMutex

	lastStatus atomic.Int64

	statusHub     *hub.Hub
	transitionHub *hub.Hub
	spectrumHub   *hub.Hub
}

// NewServer creates the telemetry server.
func NewServer(cfg Config, cells control.Cells, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:           cfg,
		logger:        log,
		cells:         cells,
		runID:         uuid.NewString(),
		started:       time.Now(),
		transitions:   make([]nav.Transition, 0, cfg.History),
		statusHub:     hub.New("status", log),
		transitionHub: hub.New("transitions", log),
		spectrumHub:   hub.New("spectrum", log),
	}

	app := fiber.New(fiber.Config{
		AppName:               "pitchnav",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleConfig)
	api.Get("/transitions", s.handleTransitions)
	api.Get("/log", s.handleGetLog)
	api.Put("/log", s.handleSetLog)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/transitions", websocket.New(s.handleTransitionsWS))
	app.Get("/ws/spectrum", websocket.New(s.handleSpectrumWS))

	s.app = app
	return s
}

// App returns the fiber app so other packages can mount routes.
func (s *Server) App() *fiber.App { return s.app }

// RunID identifies this controller run.
func (s *Server) RunID() string { return s.runID }

// Run starts the hubs and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.transitionHub.Run(ctx)
	go s.spectrumHub.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	s.logger.Info("telemetry server listening", "port", s.cfg.Port, "run_id", s.runID)
	return s.app.Listen(":" + s.cfg.Port)
}

// OnTransition records t and pushes it to /ws/transitions.
func (s *Server) OnTransition(t nav.Transition) {
	s.transitionsMu.Lock()
	s.transitions = append(s.transitions, t)
	if over := len(s.transitions) - s.cfg.History; over > 0 {
		s.transitions = s.transitions[over:]
	}
	s.transitionsMu.Unlock()

	_ = s.transitionHub.BroadcastJSON(t)
}

// OnTick pushes the snapshot to /ws/status at most once per StatusInterval.
func (s *Server) OnTick(snap nav.Snapshot) {
	now := time.Now().UnixNano()
	last := s.lastStatus.Load()
	if now-last < int64(s.cfg.StatusInterval) {
		return
	}
	if !s.lastStatus.CompareAndSwap(last, now) {
		return
	}
	if s.statusHub.ClientCount() == 0 {
		return
	}
	_ = s.statusHub.BroadcastJSON(s.status(snap))
}

// OnSpectrum pushes a binary spectrum frame to /ws/spectrum.
func (s *Server) OnSpectrum(magnitudes []float64) {
	if s.spectrumHub.ClientCount() == 0 {
		return
	}
	var buf bytes.Buffer
	if err := pitch.EncodeSpectrum(&buf, magnitudes); err == nil {
		s.spectrumHub.BroadcastBinary(buf.Bytes())
	}
}

// Transitions returns a copy of the recorded transitions.
func (s *Server) Transitions() []nav.Transition {
	s.transitionsMu.RLock()
	defer s.transitionsMu.RUnlock()
	return append([]nav.Transition(nil), s.transitions...)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
