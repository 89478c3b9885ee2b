package pitch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-pitchnav/pkg/audioio"
	"github.com/teslashibe/go-pitchnav/pkg/state"
)

// Reading is the last detected pitch.
type Reading struct {
	Frequency float64      `json:"frequency_hz"`
	String    GuitarString `json:"string"`
	Magnitude float64      `json:"magnitude"`
	At        time.Time    `json:"at"`
}

// Deviation returns the offset from the reference of the detected string.
func (r Reading) Deviation() float64 {
	return r.Frequency - r.String.Reference()
}

// Sharp reports whether the pitch is at or above the reference.
func (r Reading) Sharp() bool {
	return r.Deviation() >= 0
}

// ListenerStats counts the work done by a Listener.
type ListenerStats struct {
	Frames   int64 `json:"frames"`
	Peaks    int64 `json:"peaks"`
	Readings int64 `json:"readings"`
	Skipped  int64 `json:"skipped_chunks"`
}

// Listener is the audio task. While its gate is open it turns microphone
// blocks into frames, frames into peaks, and publishes a Reading for every
// peak. Frames without a qualifying peak publish nothing.
type Listener struct {
	cfg    Config
	ext    *Extractor
	dec    *Decimator
	out    *state.Cell[Reading]
	gate   func() bool
	logger *slog.Logger

	// OnSpectrum, if set, receives the magnitude spectrum of every frame.
	// The slice is only valid for the duration of the call.
	OnSpectrum func(spectrum []float64)

	now      func() time.Time
	wasOpen  bool
	frames   atomic.Int64
	peaks    atomic.Int64
	readings atomic.Int64
	skipped  atomic.Int64
}

// NewListener creates a listener publishing to out. gate may be nil, in
// which case the listener always processes audio.
func NewListener(cfg Config, out *state.Cell[Reading], gate func() bool, logger *slog.Logger) (*Listener, error) {
	ext, err := NewExtractor(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if gate == nil {
		gate = func() bool { return true }
	}
	return &Listener{
		cfg:    cfg,
		ext:    ext,
		dec:    NewDecimator(cfg.FrameSize, cfg.Decimation, cfg.Channel),
		out:    out,
		gate:   gate,
		logger: logger,
		now:    time.Now,
	}, nil
}

// HandleChunk processes one microphone block.
func (l *Listener) HandleChunk(chunk audioio.AudioChunk) {
	open := l.gate()
	if !open {
		if l.wasOpen {
			l.dec.Reset()
		}
		l.wasOpen = false
		l.skipped.Add(1)
		return
	}
	l.wasOpen = true

	if err := l.dec.Push(chunk.Samples, chunk.Channels, l.handleFrame); err != nil {
		l.logger.Warn("dropping audio block", "channels", chunk.Channels, "error", err)
	}
}

func (l *Listener) handleFrame(frame []float64) {
	l.frames.Add(1)

	peak, found, err := l.ext.Extract(frame)
	if err != nil {
		l.logger.Warn("pitch extraction failed", "error", err)
		return
	}
	if l.OnSpectrum != nil {
		l.OnSpectrum(l.ext.Spectrum())
	}
	if !found {
		return
	}
	l.peaks.Add(1)

	r := Reading{
		Frequency: peak.Frequency,
		String:    Classify(peak.Frequency),
		Magnitude: peak.Magnitude,
		At:        l.now(),
	}
	l.out.Store(r)
	l.readings.Add(1)

	l.logger.Debug("pitch detected",
		"frequency_hz", r.Frequency,
		"string", r.String.String(),
		"magnitude", r.Magnitude,
	)
}

// Run consumes chunks until the channel closes or ctx is cancelled.
func (l *Listener) Run(ctx context.Context, chunks <-chan audioio.AudioChunk) error {
	l.logger.Info("pitch listener started",
		"frame_size", l.cfg.FrameSize,
		"sample_rate_hz", l.cfg.SampleRate(),
		"bin_width_hz", l.cfg.BinWidth(),
	)
	defer l.logger.Info("pitch listener stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			l.HandleChunk(chunk)
		}
	}
}

// Stats returns processing counters.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Frames:   l.frames.Load(),
		Peaks:    l.peaks.Load(),
		Readings: l.readings.Load(),
		Skipped:  l.skipped.Load(),
	}
}
