package nav

import (
	"fmt"

	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/pitch"
	"github.com/teslashibe/go-pitchnav/pkg/regulator"
)

// Modes selects the regulator law per line-following phase.
type Modes struct {
	StringPosition    regulator.Mode `yaml:"string_position" json:"string_position"`
	FrequencyPosition regulator.Mode `yaml:"frequency_position" json:"frequency_position"`
	StringCenter      regulator.Mode `yaml:"string_center" json:"string_center"`
}

// For returns the mode used in p.
func (m Modes) For(p Phase) regulator.Mode {
	switch p {
	case FrequencyPosition:
		return m.FrequencyPosition
	case StringCenter:
		return m.StringCenter
	default:
		return m.StringPosition
	}
}

// Config is the calibration of the arena and the robot.
type Config struct {
	// BaseSpeed is the line-following wheel speed.
	BaseSpeed int `yaml:"base_speed" json:"base_speed"`

	// SpinSpeed is the wheel speed used for in-place rotations.
	SpinSpeed int `yaml:"spin_speed" json:"spin_speed"`

	// StepsPerDegree converts a rotation angle into control ticks.
	StepsPerDegree float64 `yaml:"steps_per_degree" json:"steps_per_degree"`

	// TOFPrecision is the settle tolerance in mm.
	TOFPrecision float64 `yaml:"tof_precision" json:"tof_precision"`

	// ForwardThreshold and BackwardThreshold bound the frequency
	// positioning dead zone in mm.
	ForwardThreshold  float64 `yaml:"forward_threshold" json:"forward_threshold"`
	BackwardThreshold float64 `yaml:"backward_threshold" json:"backward_threshold"`

	// CenterToWall is the distance from the center line to walls 1 and 3.
	CenterToWall float64 `yaml:"center_to_wall" json:"center_to_wall"`

	// StringDistances holds the distance from wall 2 of the line of each
	// string, string 1 first.
	StringDistances []float64 `yaml:"string_distances" json:"string_distances"`

	// StringCoefficients convert Hz of detuning into mm, string 1 first.
	StringCoefficients []float64 `yaml:"string_coefficients" json:"string_coefficients"`

	// FarWall is the wall from which frequency targets are mirrored.
	FarWall WallFace `yaml:"far_wall" json:"far_wall"`

	// InitialWall is the wall faced at start.
	InitialWall WallFace `yaml:"initial_wall" json:"initial_wall"`

	// StringChannel is the color of the lines running toward wall 2.
	StringChannel line.Channel `yaml:"string_channel" json:"string_channel"`

	// FrequencyChannel is the color of the string lines.
	FrequencyChannel line.Channel `yaml:"frequency_channel" json:"frequency_channel"`

	// IndicatorGain and IndicatorCap shape the distance-graded color.
	IndicatorGain float64 `yaml:"indicator_gain" json:"indicator_gain"`
	IndicatorCap  float64 `yaml:"indicator_cap" json:"indicator_cap"`

	Modes     Modes            `yaml:"modes" json:"modes"`
	Regulator regulator.Config `yaml:"regulator" json:"regulator"`
}

// DefaultConfig returns the calibration used on the original arena.
func DefaultConfig() Config {
	return Config{
		BaseSpeed:          400,
		SpinSpeed:          1100,
		StepsPerDegree:     1.0 / 3.0,
		TOFPrecision:       5,
		ForwardThreshold:   10,
		BackwardThreshold:  10,
		CenterToWall:       229,
		StringDistances:    []float64{106, 161, 216, 269, 317, 367},
		StringCoefficients: []float64{7, 12, 15, 19, 25, 30},
		FarWall:            Wall3,
		InitialWall:        Wall2,
		StringChannel:      line.Blue,
		FrequencyChannel:   line.Red,
		IndicatorGain:      1.37,
		IndicatorCap:       185,
		Modes: Modes{
			StringPosition:    regulator.ModeP,
			FrequencyPosition: regulator.ModeP,
			StringCenter:      regulator.ModeP,
		},
		Regulator: regulator.DefaultConfig(),
	}
}

// Validate checks that the calibration is usable.
func (c Config) Validate() error {
	if len(c.StringDistances) != pitch.StringCount {
		return fmt.Errorf("string_distances needs %d entries, got %d", pitch.StringCount, len(c.StringDistances))
	}
	if len(c.StringCoefficients) != pitch.StringCount {
		return fmt.Errorf("string_coefficients needs %d entries, got %d", pitch.StringCount, len(c.StringCoefficients))
	}
	if c.StepsPerDegree <= 0 {
		return fmt.Errorf("steps_per_degree must be positive, got %v", c.StepsPerDegree)
	}
	if c.TOFPrecision < 0 || c.ForwardThreshold < 0 || c.BackwardThreshold < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	if c.BaseSpeed < 0 || c.SpinSpeed <= 0 {
		return fmt.Errorf("need base_speed >= 0 and spin_speed > 0, got %d/%d", c.BaseSpeed, c.SpinSpeed)
	}
	if c.FarWall < Wall4 || c.FarWall > Wall3 || c.InitialWall < Wall4 || c.InitialWall > Wall3 {
		return fmt.Errorf("walls must be in 0..3")
	}
	if err := c.Regulator.Validate(); err != nil {
		return fmt.Errorf("regulator: %w", err)
	}
	return nil
}

// StepsFor returns the number of spin ticks for a rotation of deg degrees.
func (c Config) StepsFor(deg int) int {
	n := int(float64(deg)*c.StepsPerDegree + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

// StringTarget returns the stopping distance from wall 2 for s.
func (c Config) StringTarget(s pitch.GuitarString) float64 {
	return c.StringDistances[s.Index()]
}

// FrequencyTarget returns the stopping distance from the faced wall for a
// reading taken on its string.
func (c Config) FrequencyTarget(r pitch.Reading, wall WallFace) float64 {
	target := c.CenterToWall + r.Deviation()*c.StringCoefficients[r.String.Index()]
	if wall == c.FarWall {
		target = 2*c.CenterToWall - target
	}
	return target
}
