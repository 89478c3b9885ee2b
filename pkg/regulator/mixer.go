package regulator

import "math"

// Speeds is a pair of wheel speeds in motor steps per second.
type Speeds struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Stop is the zero command.
var Stop = Speeds{}

// IsStop reports whether both wheels are commanded to zero.
func (s Speeds) IsStop() bool {
	return s.Left == 0 && s.Right == 0
}

// Mix combines a base speed, a direction (+1 forward, -1 backward) and a
// steering correction. A positive correction turns the robot to the right.
func (c Config) Mix(base, direction int, correction float64) Speeds {
	if math.Abs(correction) < c.RotationThreshold {
		correction = 0
	}
	corr := int(math.Round(correction))
	return Speeds{
		Left:  c.saturate(base*direction + corr),
		Right: c.saturate(base*direction - corr),
	}
}

// Spin returns an in-place rotation command. Clockwise drives the left
// wheel forward and the right wheel backward.
func (c Config) Spin(speed int, clockwise bool) Speeds {
	if !clockwise {
		speed = -speed
	}
	return Speeds{Left: c.saturate(speed), Right: c.saturate(-speed)}
}

func (c Config) saturate(v int) int {
	if v > c.MotorLimit {
		return c.MotorLimit
	}
	if v < -c.MotorLimit {
		return -c.MotorLimit
	}
	return v
}
