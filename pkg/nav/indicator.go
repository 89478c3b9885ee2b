package nav

import (
	"math"

	"github.com/teslashibe/go-pitchnav/pkg/robot"
)

// indicator returns the LED intent for the current phase. While
// positioning on a frequency the color fades from green to red as the
// distance error grows.
func (m *Machine) indicator() robot.Color {
	switch m.phase {
	case FrequencyDetection:
		return robot.Blue
	case StringPosition:
		return robot.Magenta
	case Rotation:
		return robot.Yellow
	case StringCenter:
		return robot.Green
	case FrequencyPosition:
		return DistanceColor(m.errorMM, m.cfg.IndicatorGain, m.cfg.IndicatorCap)
	}
	return robot.Off
}

// DistanceColor grades |d| into a red/green mix: r = k|d|, g = 255 - k|d|,
// with |d| capped at limit.
func DistanceColor(d, k, limit float64) robot.Color {
	a := math.Min(math.Abs(d), limit)
	r := math.Round(math.Min(k*a, 255))
	return robot.Color{R: uint8(r), G: uint8(255 - r)}
}
