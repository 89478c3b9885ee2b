package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/nav"
	"github.com/teslashibe/go-pitchnav/pkg/pitch"
)

// Status is the payload of /api/status and /ws/status.
type Status struct {
	RunID    string         `json:"run_id"`
	Uptime   float64        `json:"uptime_s"`
	Snapshot nav.Snapshot   `json:"snapshot"`
	Pitch    pitch.Reading  `json:"pitch"`
	Line     line.Reading   `json:"line"`
	Stats    map[string]any `json:"stats,omitempty"`
}

func (s *Server) status(snap nav.Snapshot) Status {
	p, _ := s.cells.Pitch.Load()
	l, _ := s.cells.Line.Load()
	st := Status{
		RunID:    s.runID,
		Uptime:   time.Since(s.started).Seconds(),
		Snapshot: snap,
		Pitch:    p,
		Line:     l,
	}
	if s.Stats != nil {
		st.Stats = s.Stats()
	}
	return st
}

// handleStatus returns the latest snapshot and sensor readings
func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap, _ := s.cells.Snapshot.Load()
	return c.JSON(s.status(snap))
}

// handleConfig returns the effective configuration
func (s *Server) handleConfig(c *fiber.Ctx) error {
	if s.Settings == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.Settings)
}

// handleTransitions returns the recorded transitions, oldest first
func (s *Server) handleTransitions(c *fiber.Ctx) error {
	return c.JSON(s.Transitions())
}

func (s *Server) handleGetLog(c *fiber.Ctx) error {
	if s.LogLevel == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "log level not adjustable"})
	}
	return c.JSON(fiber.Map{"level": s.LogLevel.Get()})
}

// handleSetLog changes the log level, e.g. {"level":"debug"}
func (s *Server) handleSetLog(c *fiber.Ctx) error {
	if s.LogLevel == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "log level not adjustable"})
	}
	var body struct {
		Level string `json:"level"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.LogLevel.Set(body.Level); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Info("log level changed", "level", s.LogLevel.Get())
	return c.JSON(fiber.Map{"level": s.LogLevel.Get()})
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.Camera == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "camera not configured"})
	}
	return c.JSON(s.Camera.GetConfigJSON())
}

// handleUpdateCamera applies a partial camera update, e.g. {"preset":"near"}
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.Camera == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "camera not configured"})
	}

	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.Camera.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.Camera.GetConfigJSON())
}

// handleStatusWS sends the current status, then throttled updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	snap, _ := s.cells.Snapshot.Load()
	if err := c.WriteJSON(s.status(snap)); err != nil {
		return
	}
	s.statusHub.Serve(c)
}

// handleTransitionsWS streams transitions as they happen
func (s *Server) handleTransitionsWS(c *websocket.Conn) {
	s.transitionHub.Serve(c)
}

// handleSpectrumWS streams binary spectrum frames
func (s *Server) handleSpectrumWS(c *websocket.Conn) {
	s.spectrumHub.Serve(c)
}
