package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// ToneSource generates the same sine tone on every microphone.
// A zero frequency produces silence.
type ToneSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64

	phase     float64
	frequency float64
	amplitude float64
}

// ToneOption configures a ToneSource.
type ToneOption func(*ToneSource)

// WithTone sets the initial tone.
func WithTone(frequency, amplitude float64) ToneOption {
	return func(t *ToneSource) {
		t.frequency = frequency
		t.amplitude = amplitude
	}
}

// NewToneSource creates a silent tone source.
func NewToneSource(cfg Config, logger *slog.Logger, opts ...ToneOption) *ToneSource {
	if logger == nil {
		logger = slog.Default()
	}

	t := &ToneSource{
		cfg:       cfg,
		logger:    logger,
		streamCh:  make(chan AudioChunk, 10),
		stopCh:    make(chan struct{}),
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetTone changes the generated tone. amplitude is a fraction of full scale.
func (t *ToneSource) SetTone(frequency, amplitude float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frequency = frequency
	t.amplitude = amplitude
}

// Silence stops the tone.
func (t *ToneSource) Silence() {
	t.SetTone(0, 0)
}

// Tone returns the current tone frequency.
func (t *ToneSource) Tone() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frequency
}

// Start begins generating blocks every BufferDuration.
func (t *ToneSource) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return io.ErrClosedPipe
	}
	if t.running {
		return nil
	}

	t.running = true
	t.stopCh = make(chan struct{})
	t.streamCh = make(chan AudioChunk, 10)

	go t.generateLoop(ctx, t.stopCh, t.streamCh)

	t.logger.Info("tone audio source started",
		"sample_rate", t.cfg.SampleRate,
		"channels", t.cfg.Channels,
		"frequency", t.frequency,
	)
	return nil
}

func (t *ToneSource) generateLoop(ctx context.Context, stopCh chan struct{}, streamCh chan AudioChunk) {
	ticker := time.NewTicker(t.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			chunk := t.Generate()
			t.mu.Lock()
			if t.running {
				select {
				case streamCh <- chunk:
					t.chunksRead.Add(1)
					t.samplesRead.Add(int64(len(chunk.Samples)))
				default:
					t.overruns.Add(1)
				}
			}
			t.mu.Unlock()
		}
	}
}

// Generate produces the next block synchronously. The phase continues
// across calls so consecutive blocks form a continuous waveform.
func (t *ToneSource) Generate() AudioChunk {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.cfg.BufferSize()
	ch := t.cfg.Channels
	samples := make([]int16, n*ch)

	if t.frequency > 0 && t.amplitude > 0 {
		step := 2 * math.Pi * t.frequency / float64(t.cfg.SampleRate)
		for i := 0; i < n; i++ {
			v := int16(t.amplitude * math.MaxInt16 * math.Sin(t.phase))
			for c := 0; c < ch; c++ {
				samples[i*ch+c] = v
			}
			t.phase += step
			if t.phase > 2*math.Pi {
				t.phase -= 2 * math.Pi
			}
		}
	}

	return AudioChunk{Samples: samples, SampleRate: t.cfg.SampleRate, Channels: ch}
}

// Stop halts generation and closes the stream.
func (t *ToneSource) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.running = false
	close(t.stopCh)
	close(t.streamCh)

	t.logger.Info("tone audio source stopped")
	return nil
}

// Stream returns the block channel.
func (t *ToneSource) Stream() <-chan AudioChunk {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streamCh
}

// Config returns the audio configuration.
func (t *ToneSource) Config() Config { return t.cfg }

// Name returns "tone".
func (t *ToneSource) Name() string { return string(BackendTone) }

// Close releases resources.
func (t *ToneSource) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return t.Stop()
}

// Stats returns source statistics.
func (t *ToneSource) Stats() SourceStats {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()

	return SourceStats{
		ChunksRead:  t.chunksRead.Load(),
		SamplesRead: t.samplesRead.Load(),
		Overruns:    t.overruns.Load(),
		Running:     running,
		Backend:     string(BackendTone),
	}
}

var _ SourceWithStats = (*ToneSource)(nil)
