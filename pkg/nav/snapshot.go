package nav

import (
	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/pitch"
	"github.com/teslashibe/go-pitchnav/pkg/regulator"
	"github.com/teslashibe/go-pitchnav/pkg/robot"
)

// Snapshot is a consistent copy of the machine state after a tick.
type Snapshot struct {
	Tick       uint64             `json:"tick"`
	Phase      Phase              `json:"phase"`
	Previous   Phase              `json:"previous"`
	Wall       WallFace           `json:"wall"`
	Channel    line.Channel       `json:"channel"`
	String     pitch.GuitarString `json:"string"`
	Frequency  float64            `json:"frequency_hz"`
	Rotation   RotationPlan       `json:"rotation"`
	Progress   RotationProgress   `json:"progress"`
	TargetMM   float64            `json:"target_mm"`
	ErrorMM    float64            `json:"error_mm"`
	DistanceMM float64            `json:"distance_mm"`
	Speeds     regulator.Speeds   `json:"speeds"`
	Indicator  robot.Color        `json:"indicator"`
	Integral   float64            `json:"integral"`
}

// Snapshot returns the state after the last Step.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Tick:       m.tick,
		Phase:      m.phase,
		Previous:   m.previous,
		Wall:       m.wall,
		Channel:    m.channel,
		String:     m.latched.String,
		Frequency:  m.latched.Frequency,
		Rotation:   m.plan,
		Progress:   m.progress,
		TargetMM:   m.targetMM,
		ErrorMM:    m.errorMM,
		DistanceMM: m.distance,
		Speeds:     m.last.Speeds,
		Indicator:  m.last.Indicator,
		Integral:   m.reg.Sum(),
	}
}

// VisionDemand returns what the line tracker should be doing.
func (s Snapshot) VisionDemand() line.Demand {
	return line.Demand{Active: s.Phase.NeedsVision(), Channel: s.Channel}
}
