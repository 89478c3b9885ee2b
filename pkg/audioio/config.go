// Package audioio provides the microphone-array input of the robot.
//
// Two backends exist:
//   - Tone - synthetic tone generator used by the simulator and tests
//   - Push - blocks delivered from outside (the rig bridge)
//
// Both deliver interleaved PCM16 blocks at the raw microphone rate.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendTone generates a configurable tone on every channel.
	BackendTone Backend = "tone"
	// BackendPush forwards blocks handed to it by another component.
	BackendPush Backend = "push"
)

// Config holds microphone array configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "tone"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the per-channel rate in Hz.
	// Default: 16000
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of interleaved microphones.
	// Default: 4 (right, left, back, front)
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the length of one delivered block.
	// Default: 10ms (160 samples per channel at 16kHz)
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`
}

// DefaultConfig returns the e-puck2 microphone array layout.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendTone,
		SampleRate:     16000,
		Channels:       4,
		BufferDuration: 10 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per channel in one block.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a block in bytes.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
