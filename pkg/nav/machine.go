package nav

import (
	"log/slog"
	"math"

	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/pitch"
	"github.com/teslashibe/go-pitchnav/pkg/regulator"
	"github.com/teslashibe/go-pitchnav/pkg/robot"
)

// Inputs is everything one control tick observes.
type Inputs struct {
	Pitch        pitch.Reading
	PitchVersion uint64
	Line         line.Reading
	DistanceMM   float64
}

// Output is what one control tick commands.
type Output struct {
	Speeds     regulator.Speeds
	Indicator  robot.Color
	Transition *Transition
}

// Transition records one phase change.
type Transition struct {
	Tick       uint64             `json:"tick"`
	From       Phase              `json:"from"`
	To         Phase              `json:"to"`
	Previous   Phase              `json:"previous"`
	Event      Event              `json:"event"`
	Wall       WallFace           `json:"wall"`
	Channel    line.Channel       `json:"channel"`
	String     pitch.GuitarString `json:"string"`
	Frequency  float64            `json:"frequency_hz"`
	Rotation   *RotationPlan      `json:"rotation,omitempty"`
	DistanceMM float64            `json:"distance_mm"`
}

// Machine is the navigation state machine. It is owned by the control task;
// other tasks observe it through published Snapshots.
type Machine struct {
	cfg    Config
	reg    *regulator.Regulator
	logger *slog.Logger

	phase    Phase
	previous Phase
	wall     WallFace
	channel  line.Channel

	plan     RotationPlan
	progress RotationProgress

	// latched is the pitch reading the current cycle navigates by.
	latched pitch.Reading
	// armedAt is the pitch version seen when FrequencyDetection was entered.
	armedAt   uint64
	pitchSeen uint64

	tick     uint64
	targetMM float64
	errorMM  float64
	distance float64
	last     Output
}

// NewMachine creates a machine in FrequencyDetection facing the initial wall.
func NewMachine(cfg Config, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:      cfg,
		reg:      regulator.New(cfg.Regulator),
		logger:   logger,
		phase:    FrequencyDetection,
		previous: FrequencyDetection,
		wall:     cfg.InitialWall,
		channel:  cfg.StringChannel,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Previous returns the phase active before the last transition.
func (m *Machine) Previous() Phase { return m.previous }

// Wall returns the wall currently faced.
func (m *Machine) Wall() WallFace { return m.wall }

// Channel returns the color channel the line tracker should use.
func (m *Machine) Channel() line.Channel { return m.channel }

// Progress returns the rotation progress.
func (m *Machine) Progress() RotationProgress { return m.progress }

// Latched returns the pitch reading the machine is navigating by.
func (m *Machine) Latched() pitch.Reading { return m.latched }

// Step runs one control tick.
func (m *Machine) Step(in Inputs) Output {
	m.tick++
	m.distance = in.DistanceMM
	m.pitchSeen = in.PitchVersion

	var out Output
	switch m.phase {
	case FrequencyDetection:
		out = m.detect(in)
	case StringPosition:
		out = m.stringPosition(in)
	case FrequencyPosition:
		out = m.frequencyPosition(in)
	case StringCenter:
		out = m.stringCenter(in)
	case Rotation:
		out = m.rotate()
	default:
		out.Speeds = regulator.Stop
	}

	out.Indicator = m.indicator()
	m.last = out
	return out
}

// Halt commands zero speeds without advancing the machine. It is used
// when the distance sample is unavailable.
func (m *Machine) Halt() Output {
	m.tick++
	out := Output{Speeds: regulator.Stop, Indicator: m.indicator()}
	m.last = out
	return out
}

func (m *Machine) detect(in Inputs) Output {
	if in.PitchVersion <= m.armedAt || !in.Pitch.String.Valid() {
		return Output{Speeds: regulator.Stop}
	}

	ev := StringDetected
	if m.previous == FrequencyPosition {
		ev = NewString
		if in.Pitch.String == m.latched.String {
			ev = SameString
		}
	}
	m.latched = in.Pitch

	m.logger.Info("string detected",
		"string", in.Pitch.String.String(),
		"freq_hz", in.Pitch.Frequency,
		"sharp", in.Pitch.Sharp(),
	)
	return m.fire(ev, Output{Speeds: regulator.Stop})
}

func (m *Machine) stringPosition(in Inputs) Output {
	m.targetMM = m.cfg.StringTarget(m.latched.String)
	m.errorMM = in.DistanceMM - m.targetMM

	if math.Abs(m.errorMM) <= m.cfg.TOFPrecision {
		return m.fire(Settled, Output{Speeds: regulator.Stop})
	}
	return Output{Speeds: m.follow(in.Line, sign(m.errorMM))}
}

func (m *Machine) frequencyPosition(in Inputs) Output {
	m.targetMM = m.cfg.FrequencyTarget(m.latched, m.wall)
	m.errorMM = in.DistanceMM - m.targetMM

	switch {
	case m.errorMM >= m.cfg.ForwardThreshold:
		return Output{Speeds: m.follow(in.Line, 1)}
	case m.errorMM <= -m.cfg.BackwardThreshold:
		return m.fire(GoalBehind, Output{Speeds: regulator.Stop})
	default:
		return m.fire(Settled, Output{Speeds: regulator.Stop})
	}
}

func (m *Machine) stringCenter(in Inputs) Output {
	m.targetMM = m.cfg.CenterToWall
	m.errorMM = in.DistanceMM - m.targetMM

	switch {
	case m.errorMM >= m.cfg.TOFPrecision:
		return Output{Speeds: m.follow(in.Line, 1)}
	case m.errorMM <= -m.cfg.TOFPrecision:
		return m.fire(GoalBehind, Output{Speeds: regulator.Stop})
	default:
		return m.fire(Settled, Output{Speeds: regulator.Stop})
	}
}

func (m *Machine) rotate() Output {
	if m.progress.StepsDone >= m.progress.StepsRequired {
		m.progress.StepsDone = 0
		ev := QuarterTurnDone
		if m.plan.Degrees >= 180 {
			ev = HalfTurnDone
		}
		return m.fire(ev, Output{Speeds: regulator.Stop})
	}

	m.progress.StepsDone++
	return Output{Speeds: m.cfg.Regulator.Spin(m.cfg.SpinSpeed, m.plan.Clockwise)}
}

// follow steers along the line. Without a line the robot halts.
func (m *Machine) follow(l line.Reading, direction int) regulator.Speeds {
	if !l.Found {
		return regulator.Stop
	}
	corr := m.reg.Correct(m.cfg.Modes.For(m.phase), float64(l.OffsetPx), 0)
	return m.cfg.Regulator.Mix(m.cfg.BaseSpeed, direction, corr)
}

// fire applies the table edge for ev. A missing edge routes to Done.
func (m *Machine) fire(ev Event, out Output) Output {
	from := m.phase
	e, ok := lookup(from, m.previous, ev)
	if !ok {
		m.logger.Warn("no transition, halting",
			"phase", from.String(),
			"previous", m.previous.String(),
			"event", ev.String(),
		)
		e = edge{to: Done}
	}

	var plan *RotationPlan
	if e.to == Rotation {
		m.plan = RotationPlan{Degrees: e.degrees, Clockwise: m.clockwise(e.turn)}
		m.progress = RotationProgress{StepsRequired: m.cfg.StepsFor(e.degrees)}
		p := m.plan
		plan = &p
	}

	switch e.wall {
	case wallByTurnDirection:
		if m.plan.Clockwise {
			m.wall = Wall3
		} else {
			m.wall = Wall1
		}
	case wallOpposite:
		m.wall = m.wall.Opposite()
	case wallReference:
		m.wall = Wall2
	}
	m.channel = e.channel.apply(m.channel, m.cfg)

	if from == Rotation {
		m.progress = RotationProgress{}
	}
	m.previous = from
	m.phase = e.to
	m.enter(e.to)

	t := &Transition{
		Tick:       m.tick,
		From:       from,
		To:         e.to,
		Previous:   m.previous,
		Event:      ev,
		Wall:       m.wall,
		Channel:    m.channel,
		String:     m.latched.String,
		Frequency:  m.latched.Frequency,
		Rotation:   plan,
		DistanceMM: m.distance,
	}
	m.logger.Info("phase transition",
		"from", from.String(),
		"to", e.to.String(),
		"event", ev.String(),
		"wall", m.wall.Number(),
		"channel", m.channel.String(),
		"distance_mm", m.distance,
	)

	out.Speeds = regulator.Stop
	out.Transition = t
	return out
}

func (m *Machine) enter(p Phase) {
	m.targetMM, m.errorMM = 0, 0
	if p == FrequencyDetection {
		m.armedAt = m.pitchSeen
	}
	if p.NeedsVision() && m.cfg.Modes.For(p) == regulator.ModePI {
		m.reg.Reset()
	}
}

func (m *Machine) clockwise(r turnRule) bool {
	switch r {
	case turnByPitch:
		return m.latched.Sharp()
	case turnClockwise:
		return true
	case turnByWallParity:
		return m.wall%3 != 0
	}
	return false
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
