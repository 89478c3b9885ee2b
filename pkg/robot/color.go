package robot

import "fmt"

// Color is an RGB LED intent.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Named indicator colors.
var (
	Off     = Color{}
	Blue    = Color{B: 255}
	Magenta = Color{R: 255, B: 255}
	Yellow  = Color{R: 255, G: 255}
	Green   = Color{G: 255}
	Red     = Color{R: 255}
)

// IsOff reports whether all components are zero.
func (c Color) IsOff() bool {
	return c == Off
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
