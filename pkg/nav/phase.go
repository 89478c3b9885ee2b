// Package nav is the navigation state machine. It fuses the latest pitch
// reading, the latest line reading and a fresh distance sample into wheel
// speeds, indicator intents and phase transitions.
package nav

import "fmt"

// Phase is a state of the navigation state machine.
type Phase int

const (
	FrequencyDetection Phase = iota
	StringPosition
	Rotation
	FrequencyPosition
	StringCenter
	Done

	// anyPhase matches every previous phase in the transition table.
	anyPhase Phase = -1
)

var phaseNames = map[Phase]string{
	FrequencyDetection: "frequency_detection",
	StringPosition:     "string_position",
	Rotation:           "rotation",
	FrequencyPosition:  "frequency_position",
	StringCenter:       "string_center",
	Done:               "done",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhase parses a phase name as produced by String.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// NeedsVision reports whether the phase follows the floor line.
func (p Phase) NeedsVision() bool {
	return p == StringPosition || p == FrequencyPosition || p == StringCenter
}

// NeedsAudio reports whether the phase listens for a pitch.
func (p Phase) NeedsAudio() bool {
	return p == FrequencyDetection
}

// WallFace is the wall the distance sensor points at. Wall 2 is the
// reference wall of the string distances; walls 1 and 3 bound the
// frequency axis.
type WallFace int

const (
	Wall4 WallFace = iota
	Wall1
	Wall2
	Wall3
)

// Number returns the wall's label, 1 to 4.
func (w WallFace) Number() int {
	if w == Wall4 {
		return 4
	}
	return int(w)
}

// Opposite returns the wall across the arena.
func (w WallFace) Opposite() WallFace {
	return (w + 2) % 4
}

func (w WallFace) String() string {
	return fmt.Sprintf("wall-%d", w.Number())
}

// RotationPlan describes the in-place turn currently being executed.
type RotationPlan struct {
	Degrees   int  `json:"degrees"`
	Clockwise bool `json:"clockwise"`
}

// RotationProgress counts control ticks spent spinning.
type RotationProgress struct {
	StepsDone     int `json:"steps_done"`
	StepsRequired int `json:"steps_required"`
}
