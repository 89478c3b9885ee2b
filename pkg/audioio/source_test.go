package audioio

import (
	"context"
	"testing"
	"time"
)

func TestConfig_BufferSize(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.BufferSize(); got != 160 {
		t.Errorf("BufferSize = %d, want 160", got)
	}
	if got := cfg.BufferBytes(); got != 160*4*2 {
		t.Errorf("BufferBytes = %d, want %d", got, 160*4*2)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Channels = 0 }, true},
		{"zero buffer", func(c *Config) { c.BufferDuration = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAudioChunk_BytesRoundTrip(t *testing.T) {
	in := AudioChunk{Samples: []int16{0, 1, -1, 32767, -32768}, SampleRate: 16000, Channels: 1}

	var out AudioChunk
	out.FromBytes(in.Bytes(), 16000, 1)

	for i := range in.Samples {
		if out.Samples[i] != in.Samples[i] {
			t.Errorf("sample %d = %d, want %d", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestToneSource_GenerateInterleaved(t *testing.T) {
	cfg := DefaultConfig()
	src := NewToneSource(cfg, nil, WithTone(200, 0.5))

	chunk := src.Generate()
	if chunk.Channels != 4 {
		t.Fatalf("Channels = %d, want 4", chunk.Channels)
	}
	if chunk.Frames() != cfg.BufferSize() {
		t.Fatalf("Frames = %d, want %d", chunk.Frames(), cfg.BufferSize())
	}

	nonZero := false
	for i := 0; i < chunk.Frames(); i++ {
		base := chunk.Samples[i*4]
		for c := 1; c < 4; c++ {
			if chunk.Samples[i*4+c] != base {
				t.Fatalf("frame %d channel %d differs from channel 0", i, c)
			}
		}
		if base != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("expected a non-silent tone")
	}
}

func TestToneSource_Silence(t *testing.T) {
	src := NewToneSource(DefaultConfig(), nil, WithTone(200, 0.5))
	src.Silence()

	chunk := src.Generate()
	for i, s := range chunk.Samples {
		if s != 0 {
			t.Fatalf("sample %d = %d, want silence", i, s)
		}
	}
}

func TestToneSource_Stream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 5 * time.Millisecond

	src := NewToneSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Start(ctx); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	select {
	case chunk := <-src.Stream():
		if chunk.SampleRate != cfg.SampleRate {
			t.Errorf("SampleRate = %d, want %d", chunk.SampleRate, cfg.SampleRate)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for chunk")
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if src.Stats().Running {
		t.Error("expected stopped source")
	}
}

func TestPushSource_PushAndOverrun(t *testing.T) {
	src := NewPushSource(DefaultConfig(), nil)

	if err := src.Push(AudioChunk{}); err != ErrNotRunning {
		t.Errorf("Push before Start = %v, want ErrNotRunning", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		if err := src.Push(AudioChunk{Samples: make([]int16, 4), Channels: 4}); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	stats := src.Stats()
	if stats.ChunksRead != 16 {
		t.Errorf("ChunksRead = %d, want 16", stats.ChunksRead)
	}
	if stats.Overruns != 4 {
		t.Errorf("Overruns = %d, want 4", stats.Overruns)
	}

	src.Close()
	n := 0
	for range src.Stream() {
		n++
	}
	if n != 16 {
		t.Errorf("drained %d chunks, want 16", n)
	}
}

func TestNewSource_Backends(t *testing.T) {
	for _, b := range AvailableBackends() {
		cfg := DefaultConfig()
		cfg.Backend = b
		src, err := NewSource(cfg, nil)
		if err != nil {
			t.Fatalf("NewSource(%s) failed: %v", b, err)
		}
		if src.Name() != string(b) {
			t.Errorf("Name = %q, want %q", src.Name(), b)
		}
	}

	cfg := DefaultConfig()
	cfg.Backend = "alsa"
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("expected error for unsupported backend")
	}
}
