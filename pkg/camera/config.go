// Package camera captures single pixel rows for the line tracker.
// Settings are runtime-configurable through a Manager.
package camera

import (
	"fmt"
	"strings"
)

// Pixel formats a capturer may deliver.
const (
	FormatBGR    = "bgr"
	FormatRGB565 = "rgb565"
)

// Config holds the row capture parameters.
type Config struct {
	// Device is a camera index ("0") or a file or stream URL.
	Device string `yaml:"device" json:"device"`

	Width     int `yaml:"width" json:"width"`         // Frame width in pixels
	Height    int `yaml:"height" json:"height"`       // Frame height in pixels
	Framerate int `yaml:"framerate" json:"framerate"` // Target FPS

	// Row is the sampled line, counted from the top of the frame.
	Row int `yaml:"row" json:"row"`

	// RowWidth is the length of the delivered row. Frames of another
	// width are resized.
	RowWidth int `yaml:"row_width" json:"row_width"`

	// Format of raw rows received from a remote rig.
	Format string `yaml:"format" json:"format"`
}

// Sensor limits of the PO8030 on the original board.
const (
	SensorMaxWidth  = 640
	SensorMaxHeight = 480
)

// DefaultConfig samples row 200 of a VGA frame.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Row:       200,
		RowWidth:  640,
		Format:    FormatRGB565,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.Width < 16 || c.Height < 2 {
		errs = append(errs, "frame must be at least 16x2")
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errs = append(errs, "framerate must be between 1 and 120")
	}
	if c.Row < 0 || c.Row >= c.Height {
		errs = append(errs, fmt.Sprintf("row must be inside [0, %d)", c.Height))
	}
	if c.RowWidth < 1 {
		errs = append(errs, "row_width must be positive")
	}
	switch c.Format {
	case FormatBGR, FormatRGB565:
	default:
		errs = append(errs, fmt.Sprintf("format must be %q or %q", FormatBGR, FormatRGB565))
	}

	return errs
}

// Err folds the validation messages into one error.
func (c *Config) Err() error {
	if errs := c.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera: %s", strings.Join(errs, "; "))
	}
	return nil
}
