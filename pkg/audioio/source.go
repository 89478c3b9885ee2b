package audioio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrNotRunning is returned when pushing to a stopped source.
var ErrNotRunning = errors.New("audioio: source not running")

// AudioChunk is one interleaved block of microphone samples.
type AudioChunk struct {
	// Samples contains interleaved PCM16 samples.
	Samples []int16

	// SampleRate is the per-channel sample rate.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

// Bytes returns the block as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	buf := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// FromBytes populates the chunk from little-endian PCM16.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = make([]int16, len(data)/2)
	for i := range c.Samples {
		c.Samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
}

// Frames returns the number of per-channel samples in the block.
func (c *AudioChunk) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Source delivers microphone blocks.
type Source interface {
	// Start begins delivering blocks on Stream.
	Start(ctx context.Context) error

	// Stop halts delivery. It is safe to call Stop multiple times.
	Stop() error

	// Stream returns the block channel. It is closed when the source stops.
	Stream() <-chan AudioChunk

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// PushSource forwards externally produced blocks to its stream.
// Blocks pushed while the consumer lags are dropped and counted as overruns.
type PushSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewPushSource creates a push source.
func NewPushSource(cfg Config, logger *slog.Logger) *PushSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 16),
	}
}

// Start marks the source running.
func (p *PushSource) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return io.ErrClosedPipe
	}
	if p.running {
		return nil
	}
	p.running = true
	p.streamCh = make(chan AudioChunk, 16)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	p.logger.Info("push audio source started", "channels", p.cfg.Channels)
	return nil
}

// Push hands one block to the consumer without blocking.
func (p *PushSource) Push(chunk AudioChunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotRunning
	}
	select {
	case p.streamCh <- chunk:
		p.chunksRead.Add(1)
		p.samplesRead.Add(int64(len(chunk.Samples)))
	default:
		p.overruns.Add(1)
	}
	return nil
}

// Stop closes the stream.
func (p *PushSource) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	close(p.streamCh)
	p.logger.Info("push audio source stopped")
	return nil
}

// Stream returns the block channel.
func (p *PushSource) Stream() <-chan AudioChunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamCh
}

// Config returns the audio configuration.
func (p *PushSource) Config() Config { return p.cfg }

// Name returns "push".
func (p *PushSource) Name() string { return string(BackendPush) }

// Close stops the source permanently.
func (p *PushSource) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.Stop()
}

// Stats returns source statistics.
func (p *PushSource) Stats() SourceStats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	return SourceStats{
		ChunksRead:  p.chunksRead.Load(),
		SamplesRead: p.samplesRead.Load(),
		Overruns:    p.overruns.Load(),
		Running:     running,
		Backend:     string(BackendPush),
	}
}

var _ SourceWithStats = (*PushSource)(nil)
