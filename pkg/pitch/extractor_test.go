package pitch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func sine(n int, freq, rate, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func TestConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.SampleRate() != 800 {
		t.Errorf("SampleRate() = %v, want 800", cfg.SampleRate())
	}
	if math.Abs(cfg.BinWidth()-0.78125) > 1e-9 {
		t.Errorf("BinWidth() = %v, want 0.78125", cfg.BinWidth())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"not power of two", func(c *Config) { c.FrameSize = 1000 }},
		{"max beyond frame", func(c *Config) { c.MaxIndex = 1024 }},
		{"inverted range", func(c *Config) { c.MinIndex = 600 }},
		{"zero decimation", func(c *Config) { c.Decimation = 0 }},
		{"negative threshold", func(c *Config) { c.Threshold = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExtractor_FindsToneForEveryString(t *testing.T) {
	cfg := DefaultConfig()
	ext, err := NewExtractor(cfg)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	for _, spec := range Specs() {
		frame := sine(cfg.FrameSize, spec.Reference, cfg.SampleRate(), 1000)
		peak, found, err := ext.Extract(frame)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if !found {
			t.Errorf("%v: no peak found", spec.String)
			continue
		}
		if math.Abs(peak.Frequency-spec.Reference) > cfg.BinWidth() {
			t.Errorf("%v: peak %v Hz, want within one bin of %v", spec.String, peak.Frequency, spec.Reference)
		}
		if got := Classify(peak.Frequency); got != spec.String {
			t.Errorf("Classify(%v) = %v, want %v", peak.Frequency, got, spec.String)
		}
	}
}

func TestExtractor_SilenceHasNoPeak(t *testing.T) {
	ext, _ := NewExtractor(DefaultConfig())

	_, found, err := ext.Extract(make([]float64, 1024))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if found {
		t.Error("silence should not produce a peak")
	}
}

func TestExtractor_BelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	ext, _ := NewExtractor(cfg)

	// amplitude 1 gives a bin magnitude near N/2 = 512
	_, found, _ := ext.Extract(sine(cfg.FrameSize, 196, cfg.SampleRate(), 1))
	if found {
		t.Error("weak tone should stay under the threshold")
	}
}

func TestExtractor_IgnoresBinsOutsideWindow(t *testing.T) {
	cfg := DefaultConfig()
	ext, _ := NewExtractor(cfg)

	// bin 50 (~39 Hz) is below MinIndex
	_, found, _ := ext.Extract(sine(cfg.FrameSize, 50*cfg.BinWidth(), cfg.SampleRate(), 1000))
	if found {
		t.Error("peak outside the bin window should be ignored")
	}
}

func TestExtractor_WrongLength(t *testing.T) {
	ext, _ := NewExtractor(DefaultConfig())

	_, _, err := ext.Extract(make([]float64, 512))
	if !errors.Is(err, ErrFrameSize) {
		t.Errorf("err = %v, want ErrFrameSize", err)
	}
}

func TestEncodeSpectrum(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeSpectrum(&buf, []float64{1.5, 2}); err != nil {
		t.Fatalf("EncodeSpectrum: %v", err)
	}

	b := buf.Bytes()
	if string(b[:5]) != SpectrumHeader {
		t.Fatalf("header = %q", b[:5])
	}
	if n := binary.LittleEndian.Uint16(b[5:7]); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(b[7:11])); v != 1.5 {
		t.Errorf("first value = %v, want 1.5", v)
	}
	if len(b) != 5+2+8 {
		t.Errorf("len = %d, want 15", len(b))
	}
}
