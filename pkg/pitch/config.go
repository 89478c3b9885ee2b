package pitch

import (
	"fmt"
	"math/bits"
)

// Config holds the audio front-end and spectral search parameters.
type Config struct {
	// FrameSize is the FFT length N. Must be a power of two.
	FrameSize int `yaml:"frame_size" json:"frame_size"`

	// MicSampleRate is the per-channel microphone rate in Hz.
	MicSampleRate int `yaml:"mic_sample_rate" json:"mic_sample_rate"`

	// Decimation keeps one sample out of every Decimation per channel.
	Decimation int `yaml:"decimation" json:"decimation"`

	// Channel selects the microphone inside the interleaved stream.
	// 0=right, 1=left, 2=back, 3=front.
	Channel int `yaml:"channel" json:"channel"`

	// MinIndex and MaxIndex bound the inclusive bin search range.
	MinIndex int `yaml:"min_index" json:"min_index"`
	MaxIndex int `yaml:"max_index" json:"max_index"`

	// Threshold is the magnitude a bin must exceed to count as a peak.
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// DefaultConfig returns the e-puck2 front-end: 16 kHz mics decimated to
// 800 Hz, 1024-point frames, bins 100..500 (78..390 Hz).
func DefaultConfig() Config {
	return Config{
		FrameSize:     1024,
		MicSampleRate: 16000,
		Decimation:    20,
		Channel:       1,
		MinIndex:      100,
		MaxIndex:      500,
		Threshold:     5000,
	}
}

// SampleRate returns the decimated rate the frames are sampled at.
func (c Config) SampleRate() float64 {
	return float64(c.MicSampleRate) / float64(c.Decimation)
}

// BinWidth returns the frequency resolution of one FFT bin in Hz.
func (c Config) BinWidth() float64 {
	return c.SampleRate() / float64(c.FrameSize)
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.FrameSize < 2 || bits.OnesCount(uint(c.FrameSize)) != 1 {
		return fmt.Errorf("frame_size must be a power of two, got %d", c.FrameSize)
	}
	if c.MicSampleRate <= 0 {
		return fmt.Errorf("mic_sample_rate must be positive, got %d", c.MicSampleRate)
	}
	if c.Decimation <= 0 {
		return fmt.Errorf("decimation must be positive, got %d", c.Decimation)
	}
	if c.Channel < 0 {
		return fmt.Errorf("channel must not be negative, got %d", c.Channel)
	}
	if c.MinIndex <= 0 || c.MaxIndex < c.MinIndex || c.MaxIndex >= c.FrameSize {
		return fmt.Errorf("bin range [%d,%d] invalid for frame_size %d", c.MinIndex, c.MaxIndex, c.FrameSize)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative, got %v", c.Threshold)
	}
	return nil
}
