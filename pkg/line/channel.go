package line

import (
	"fmt"
	"strings"
)

// Channel selects the color component the camera row is reduced to.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// ParseChannel parses a channel name.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(s) {
	case "red", "r":
		return Red, nil
	case "green", "g":
		return Green, nil
	case "blue", "b":
		return Blue, nil
	}
	return 0, fmt.Errorf("unknown color channel %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Channel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Channel) UnmarshalText(b []byte) error {
	v, err := ParseChannel(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
