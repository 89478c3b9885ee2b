// Package line locates a dark floor line in one captured camera row and
// runs the capture/processing task pair that keeps the latest position
// published.
package line

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrRowWidth is returned for rows whose length is not the configured width.
var ErrRowWidth = errors.New("line: row length does not match configured width")

// Config holds the estimator and capture parameters.
type Config struct {
	// Width is the number of pixels in a captured row.
	Width int `yaml:"width" json:"width"`

	// SlopeWidth is the pixel distance S across which an edge must cross the mean.
	SlopeWidth int `yaml:"slope_width" json:"slope_width"`

	// MinLineWidth rejects dips narrower than this many pixels.
	MinLineWidth int `yaml:"min_line_width" json:"min_line_width"`

	// CaptureInterval is the pause between two captures.
	CaptureInterval time.Duration `yaml:"capture_interval" json:"capture_interval"`
}

// DefaultConfig returns the e-puck2 camera row settings.
func DefaultConfig() Config {
	return Config{
		Width:           640,
		SlopeWidth:      5,
		MinLineWidth:    80,
		CaptureInterval: 200 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Width <= 0 {
		return fmt.Errorf("width must be positive, got %d", c.Width)
	}
	if c.SlopeWidth <= 0 || c.SlopeWidth >= c.Width {
		return fmt.Errorf("slope_width must be in (0,%d), got %d", c.Width, c.SlopeWidth)
	}
	if c.MinLineWidth < 0 {
		return fmt.Errorf("min_line_width must not be negative, got %d", c.MinLineWidth)
	}
	if c.CaptureInterval < 0 {
		return fmt.Errorf("capture_interval must not be negative, got %v", c.CaptureInterval)
	}
	return nil
}

// Reading is the latest line estimate. When Found is false OffsetPx is 0.
// Begin is the first dark pixel and End the first bright one after it.
type Reading struct {
	Found    bool    `json:"found"`
	OffsetPx int     `json:"offset_px"`
	Begin    int     `json:"begin"`
	End      int     `json:"end"`
	Mean     float64 `json:"mean"`

	// DemandVersion is the demand cell version the row was captured for.
	DemandVersion uint64    `json:"demand_version"`
	At            time.Time `json:"at"`
}

// Estimator finds the line in a row of single-channel intensities.
type Estimator struct {
	cfg     Config
	samples []float64
}

// NewEstimator creates an estimator for cfg.
func NewEstimator(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, samples: make([]float64, cfg.Width)}, nil
}

// Estimate scans row left to right for a falling then a rising crossing of
// the row mean, S pixels apart. The dip spans from the first pixel below
// the mean to the first pixel back above it. Dips narrower than
// MinLineWidth are skipped and the scan resumes at their end.
func (e *Estimator) Estimate(row []uint8) (Reading, error) {
	w, s := e.cfg.Width, e.cfg.SlopeWidth
	if len(row) != w {
		return Reading{}, ErrRowWidth
	}

	for i, v := range row {
		e.samples[i] = float64(v)
	}
	mean := stat.Mean(e.samples, nil)

	above := func(i int) bool { return e.samples[i] > mean }
	below := func(i int) bool { return e.samples[i] < mean }

	i := 0
	for {
		begin, end := -1, -1

		for ; i < w-s; i++ {
			if above(i) && below(i+s) {
				begin = i + s
				i++
				break
			}
		}
		if begin < 0 || i >= w-s {
			break
		}

		for ; i < w; i++ {
			if i > s && above(i) && below(i-s) {
				end = i
				break
			}
		}
		if end < 0 {
			break
		}

		if end-begin >= e.cfg.MinLineWidth {
			return Reading{
				Found:    true,
				OffsetPx: (begin+end)/2 - w/2,
				Begin:    begin,
				End:      end,
				Mean:     mean,
			}, nil
		}
		i = end
	}

	return Reading{Mean: mean}, nil
}
