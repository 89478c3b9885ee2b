// Package robot defines the hardware boundary of the navigation core and a
// deterministic arena simulator that implements it.
//
// The interfaces are deliberately small. The control loop depends on
// Controller; other consumers should depend only on the piece they use.
package robot

// MotorController drives the two wheels. Speeds are in motor steps per second.
type MotorController interface {
	SetSpeeds(left, right int) error
}

// RangeFinder samples the time-of-flight sensor.
type RangeFinder interface {
	DistanceMM() (float64, error)
}

// Indicator shows a color on the robot's LEDs.
type Indicator interface {
	SetColor(c Color) error
}

// Controller is everything the control loop needs.
type Controller interface {
	MotorController
	RangeFinder
	Indicator
}

var _ Controller = (*Sim)(nil)
