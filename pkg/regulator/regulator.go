// Package regulator turns a measured error into a bounded steering
// correction and mixes it into left/right wheel speeds.
package regulator

import (
	"fmt"
	"math"
)

// Mode selects the correction law.
type Mode int

const (
	// ModeP is a proportional correction with deadband and saturation.
	ModeP Mode = iota
	// ModePI adds a clamped integral term.
	ModePI
)

func (m Mode) String() string {
	switch m {
	case ModeP:
		return "p"
	case ModePI:
		return "pi"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "p" or "pi".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "p", "P":
		return ModeP, nil
	case "pi", "PI":
		return ModePI, nil
	}
	return 0, fmt.Errorf("unknown regulator mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Config holds regulator gains and limits.
type Config struct {
	Kp       float64 `yaml:"kp" json:"kp"`
	Ki       float64 `yaml:"ki" json:"ki"`
	Deadband float64 `yaml:"deadband" json:"deadband"`
	MaxError float64 `yaml:"max_error" json:"max_error"`
	MaxSum   float64 `yaml:"max_sum" json:"max_sum"`

	// RotationThreshold zeroes corrections smaller than this in the mixer.
	RotationThreshold float64 `yaml:"rotation_threshold" json:"rotation_threshold"`

	// MotorLimit saturates each wheel speed.
	MotorLimit int `yaml:"motor_limit" json:"motor_limit"`
}

// DefaultConfig returns the e-puck2 line-following calibration.
func DefaultConfig() Config {
	return Config{
		Kp:                0.5,
		Ki:                3.5,
		Deadband:          10,
		MaxError:          150,
		MaxSum:            1100 / 3.5,
		RotationThreshold: 10,
		MotorLimit:        1100,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Kp < 0 || c.Ki < 0 {
		return fmt.Errorf("gains must not be negative (kp=%v ki=%v)", c.Kp, c.Ki)
	}
	if c.Deadband < 0 || c.MaxError < c.Deadband {
		return fmt.Errorf("need 0 <= deadband <= max_error, got %v/%v", c.Deadband, c.MaxError)
	}
	if c.MaxSum < 0 {
		return fmt.Errorf("max_sum must not be negative, got %v", c.MaxSum)
	}
	if c.MotorLimit <= 0 {
		return fmt.Errorf("motor_limit must be positive, got %d", c.MotorLimit)
	}
	return nil
}

// Regulator computes corrections. The integral accumulator belongs to the
// regulator and survives across calls until Reset.
type Regulator struct {
	cfg Config
	sum float64
}

// New creates a regulator with an empty accumulator.
func New(cfg Config) *Regulator {
	return &Regulator{cfg: cfg}
}

// Config returns the regulator configuration.
func (r *Regulator) Config() Config { return r.cfg }

// Correct dispatches to P or PI.
func (r *Regulator) Correct(mode Mode, measured, goal float64) float64 {
	if mode == ModePI {
		return r.PI(measured, goal)
	}
	return r.P(measured, goal)
}

// P returns Kp * clamp(measured-goal), or 0 inside the deadband.
func (r *Regulator) P(measured, goal float64) float64 {
	err, ok := r.error(measured, goal)
	if !ok {
		return 0
	}
	return r.cfg.Kp * err
}

// PI returns Kp*err + Ki*sum. Errors inside the deadband contribute
// neither a proportional term nor to the accumulator.
func (r *Regulator) PI(measured, goal float64) float64 {
	err, ok := r.error(measured, goal)
	if ok {
		r.sum = clamp(r.sum+err, r.cfg.MaxSum)
	} else {
		err = 0
	}
	return r.cfg.Kp*err + r.cfg.Ki*r.sum
}

// Reset clears the integral accumulator.
func (r *Regulator) Reset() {
	r.sum = 0
}

// Sum returns the integral accumulator.
func (r *Regulator) Sum() float64 {
	return r.sum
}

func (r *Regulator) error(measured, goal float64) (float64, bool) {
	e := measured - goal
	if math.Abs(e) < r.cfg.Deadband {
		return 0, false
	}
	return clamp(e, r.cfg.MaxError), true
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
