// Package control runs the navigation state machine at a fixed rate
// against the robot hardware.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/nav"
	"github.com/teslashibe/go-pitchnav/pkg/pitch"
	"github.com/teslashibe/go-pitchnav/pkg/robot"
	"github.com/teslashibe/go-pitchnav/pkg/state"
)

// Observer is notified from the control task. Implementations must not block.
type Observer interface {
	OnTransition(t nav.Transition)
	OnTick(s nav.Snapshot)
}

// Config holds control loop timing.
type Config struct {
	// Tick is the control period. Default: 10ms (100 Hz)
	Tick time.Duration `yaml:"tick" json:"tick"`

	// HeartbeatTicks logs a heartbeat every this many ticks. 0 disables it.
	HeartbeatTicks uint64 `yaml:"heartbeat_ticks" json:"heartbeat_ticks"`
}

// DefaultConfig returns a 100 Hz loop with a heartbeat every 5 seconds.
func DefaultConfig() Config {
	return Config{Tick: 10 * time.Millisecond, HeartbeatTicks: 500}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", c.Tick)
	}
	return nil
}

// Cells are the shared snapshot cells. The loop reads Pitch and Line and
// is the only writer of Snapshot and Demand.
type Cells struct {
	Pitch    *state.Cell[pitch.Reading]
	Line     *state.Cell[line.Reading]
	Snapshot *state.Cell[nav.Snapshot]
	Demand   *state.Cell[line.Demand]
}

// NewCells creates cells holding zero values.
func NewCells() Cells {
	return Cells{
		Pitch:    state.NewCell(pitch.Reading{}),
		Line:     state.NewCell(line.Reading{}),
		Snapshot: state.NewCell(nav.Snapshot{}),
		Demand:   state.NewCell(line.Demand{}),
	}
}

// AudioGate returns a gate that is open while the machine listens.
func (c Cells) AudioGate() func() bool {
	return func() bool {
		s, _ := c.Snapshot.Load()
		return s.Phase.NeedsAudio()
	}
}

// Stats is a copy of the loop counters.
type Stats struct {
	Ticks          uint64 `json:"ticks"`
	Transitions    uint64 `json:"transitions"`
	MotorErrors    uint64 `json:"motor_errors"`
	DistanceErrors uint64 `json:"distance_errors"`
	ColorErrors    uint64 `json:"color_errors"`
	ColorsSent     uint64 `json:"colors_sent"`
	StaleLines     uint64 `json:"stale_lines"`
}

// Loop is the control task.
type Loop struct {
	cfg     Config
	machine *nav.Machine
	hw      robot.Controller
	cells   Cells
	logger  *slog.Logger

	observers []Observer

	stop     chan struct{}
	stopOnce sync.Once

	colorSent     bool
	lastColor     robot.Color
	lastDemand    line.Demand
	demandVersion uint64

	mu            sync.Mutex
	stats         Stats
	lastErrorTime time.Time
}

// NewLoop creates a control loop. The loop owns machine from now on.
func NewLoop(cfg Config, machine *nav.Machine, hw robot.Controller, cells Cells, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:     cfg,
		machine: machine,
		hw:      hw,
		cells:   cells,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// AddObserver registers o. Call before Run.
func (l *Loop) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// Run ticks until ctx is cancelled or Stop is called. Motors are stopped
// on the way out.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Tick)
	defer ticker.Stop()

	l.logger.Info("control loop started", "tick", l.cfg.Tick)
	defer func() {
		if err := l.hw.SetSpeeds(0, 0); err != nil {
			l.logger.Warn("failed to stop motors", "error", err)
		}
		l.logger.Info("control loop stopped", "ticks", l.Stats().Ticks)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-ticker.C:
			l.tick()
		}
	}
}

// Stop halts the loop.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// tick executes one control cycle. It never waits on the producers.
func (l *Loop) tick() {
	p, pv := l.cells.Pitch.Load()
	ln, _ := l.cells.Line.Load()
	if ln.DemandVersion != l.demandVersion {
		// measured for an earlier phase or channel
		if ln.Found {
			l.count(func(s *Stats) { s.StaleLines++ })
		}
		ln = line.Reading{}
	}

	var out nav.Output
	dist, err := l.hw.DistanceMM()
	if err != nil {
		l.count(func(s *Stats) { s.DistanceErrors++ })
		l.logError("distance read failed", err)
		out = l.machine.Halt()
	} else {
		out = l.machine.Step(nav.Inputs{
			Pitch:        p,
			PitchVersion: pv,
			Line:         ln,
			DistanceMM:   dist,
		})
	}

	if err := l.hw.SetSpeeds(out.Speeds.Left, out.Speeds.Right); err != nil {
		l.count(func(s *Stats) { s.MotorErrors++ })
		l.logError("motor command failed", err)
	}

	if !l.colorSent || out.Indicator != l.lastColor {
		if err := l.hw.SetColor(out.Indicator); err != nil {
			l.count(func(s *Stats) { s.ColorErrors++ })
			l.logError("indicator update failed", err)
		} else {
			l.colorSent = true
			l.lastColor = out.Indicator
			l.count(func(s *Stats) { s.ColorsSent++ })
		}
	}

	snap := l.machine.Snapshot()
	l.cells.Snapshot.Store(snap)

	if d := snap.VisionDemand(); d != l.lastDemand {
		l.lastDemand = d
		l.demandVersion = l.cells.Demand.Store(d)
	}

	if out.Transition != nil {
		l.count(func(s *Stats) { s.Transitions++ })
		for _, o := range l.observers {
			o.OnTransition(*out.Transition)
		}
	}
	for _, o := range l.observers {
		o.OnTick(snap)
	}

	ticks := l.count(func(s *Stats) { s.Ticks++ })
	if l.cfg.HeartbeatTicks > 0 && ticks%l.cfg.HeartbeatTicks == 0 {
		st := l.Stats()
		l.logger.Debug("control heartbeat",
			"ticks", st.Ticks,
			"phase", snap.Phase.String(),
			"distance_mm", snap.DistanceMM,
			"motor_errors", st.MotorErrors,
			"distance_errors", st.DistanceErrors,
		)
	}
}

func (l *Loop) count(f func(*Stats)) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	f(&l.stats)
	return l.stats.Ticks
}

// logError logs at most once per 5 seconds.
func (l *Loop) logError(msg string, err error) {
	l.mu.Lock()
	if !l.lastErrorTime.IsZero() && time.Since(l.lastErrorTime) <= 5*time.Second {
		l.mu.Unlock()
		return
	}
	l.lastErrorTime = time.Now()
	st := l.stats
	l.mu.Unlock()

	l.logger.Warn(msg,
		"error", err,
		"motor_errors", st.MotorErrors,
		"distance_errors", st.DistanceErrors,
	)
}

// Stats returns the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
