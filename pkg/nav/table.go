package nav

import (
	"fmt"

	"github.com/teslashibe/go-pitchnav/pkg/line"
)

// Event is what a phase reports when it wants to leave.
type Event int

const (
	// StringDetected is a classified pitch on the first detection.
	StringDetected Event = iota
	// SameString is a re-pluck of the string already being positioned on.
	SameString
	// NewString is a re-pluck of a different string.
	NewString
	// Settled means the distance error is inside tolerance.
	Settled
	// GoalBehind means the target lies behind the robot.
	GoalBehind
	// QuarterTurnDone ends a 90 degree rotation.
	QuarterTurnDone
	// HalfTurnDone ends a 180 degree rotation.
	HalfTurnDone
)

var eventNames = [...]string{
	StringDetected:  "string_detected",
	SameString:      "same_string",
	NewString:       "new_string",
	Settled:         "settled",
	GoalBehind:      "goal_behind",
	QuarterTurnDone: "quarter_turn_done",
	HalfTurnDone:    "half_turn_done",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// MarshalText implements encoding.TextMarshaler.
func (e Event) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Event) UnmarshalText(b []byte) error {
	for i, name := range eventNames {
		if name == string(b) {
			*e = Event(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event %q", b)
}

type turnRule int

const (
	turnNone turnRule = iota
	turnByPitch
	turnClockwise
	turnByWallParity
)

type wallRule int

const (
	wallKeep wallRule = iota
	wallByTurnDirection
	wallOpposite
	wallReference
)

type channelRule int

const (
	channelKeep channelRule = iota
	channelString
	channelFrequency
)

type edgeKey struct {
	from  Phase
	prev  Phase
	event Event
}

// edge is the effect of one transition.
type edge struct {
	to      Phase
	degrees int
	turn    turnRule
	wall    wallRule
	channel channelRule
}

// transitions is the complete navigation graph. A prev of anyPhase matches
// every previous phase; an exact prev takes precedence. Anything missing
// leads to Done.
var transitions = map[edgeKey]edge{
	{FrequencyDetection, anyPhase, StringDetected}:        {to: StringPosition},
	{FrequencyDetection, FrequencyPosition, SameString}:   {to: FrequencyPosition},
	{FrequencyDetection, FrequencyPosition, NewString}:    {to: StringCenter},
	{StringPosition, anyPhase, Settled}:                   {to: Rotation, degrees: 90, turn: turnByPitch},
	{FrequencyPosition, anyPhase, Settled}:                {to: FrequencyDetection},
	{FrequencyPosition, anyPhase, GoalBehind}:             {to: Rotation, degrees: 180, turn: turnClockwise},
	{StringCenter, anyPhase, Settled}:                     {to: Rotation, degrees: 90, turn: turnByWallParity},
	{StringCenter, anyPhase, GoalBehind}:                  {to: Rotation, degrees: 180, turn: turnClockwise},
	{Rotation, StringPosition, QuarterTurnDone}:           {to: FrequencyPosition, wall: wallByTurnDirection, channel: channelFrequency},
	{Rotation, FrequencyPosition, HalfTurnDone}:           {to: FrequencyPosition, wall: wallOpposite},
	{Rotation, StringCenter, QuarterTurnDone}:             {to: StringPosition, wall: wallReference, channel: channelString},
	{Rotation, StringCenter, HalfTurnDone}:                {to: StringCenter, wall: wallOpposite},
}

// lookup finds the edge for event raised in from, given prev.
func lookup(from, prev Phase, ev Event) (edge, bool) {
	if e, ok := transitions[edgeKey{from, prev, ev}]; ok {
		return e, true
	}
	e, ok := transitions[edgeKey{from, anyPhase, ev}]
	return e, ok
}

// Edges lists the transition table as (from, prev, event, to) rows for
// display. A prev of "any" matches every previous phase.
func Edges() []EdgeInfo {
	out := make([]EdgeInfo, 0, len(transitions))
	for k, e := range transitions {
		prev := "any"
		if k.prev != anyPhase {
			prev = k.prev.String()
		}
		out = append(out, EdgeInfo{From: k.from, Previous: prev, Event: k.event, To: e.to, Degrees: e.degrees})
	}
	return out
}

// EdgeInfo is a printable transition table row.
type EdgeInfo struct {
	From     Phase  `json:"from"`
	Previous string `json:"previous"`
	Event    Event  `json:"event"`
	To       Phase  `json:"to"`
	Degrees  int    `json:"degrees,omitempty"`
}

func (r channelRule) apply(cur line.Channel, cfg Config) line.Channel {
	switch r {
	case channelString:
		return cfg.StringChannel
	case channelFrequency:
		return cfg.FrequencyChannel
	}
	return cur
}
