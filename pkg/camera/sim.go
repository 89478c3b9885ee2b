package camera

import (
	"context"
	"time"

	"github.com/teslashibe/go-pitchnav/pkg/line"
)

// RowSource renders a row of the scene in front of the robot.
type RowSource interface {
	Row(ch line.Channel) []uint8
}

// SimCapturer captures rows from a simulated scene. Each capture takes
// Delay, like an exposure would.
type SimCapturer struct {
	Source RowSource
	Delay  time.Duration
}

// NewSimCapturer creates a capturer over src.
func NewSimCapturer(src RowSource, delay time.Duration) *SimCapturer {
	return &SimCapturer{Source: src, Delay: delay}
}

// Capture waits for the exposure time, then renders the row.
func (s *SimCapturer) Capture(ctx context.Context, ch line.Channel) ([]uint8, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Source.Row(ch), nil
}
