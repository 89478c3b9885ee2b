// Package trace writes a diagnostic stream for a host terminal: one text
// line per phase transition and target change, plus binary spectrum frames.
package trace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/teslashibe/go-pitchnav/pkg/nav"
	"github.com/teslashibe/go-pitchnav/pkg/pitch"
)

// Sink queues trace records and writes them from its own goroutine, so
// the control and audio tasks never wait on the port.
type Sink struct {
	w      io.Writer
	logger *slog.Logger
	queue  chan []byte

	spectra atomic.Bool

	// lastTarget is only touched from OnTick, which runs on the control task.
	lastTarget float64

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewSink creates a sink writing to w.
func NewSink(w io.Writer, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		w:      w,
		logger: logger,
		queue:  make(chan []byte, 64),
	}
}

// EnableSpectra turns spectrum frames on or off.
func (s *Sink) EnableSpectra(on bool) {
	s.spectra.Store(on)
}

// Run writes queued records until ctx is done.
func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-s.queue:
			if _, err := s.w.Write(rec); err != nil {
				s.logger.Warn("trace write failed", "error", err)
				continue
			}
			s.written.Add(1)
		}
	}
}

func (s *Sink) enqueue(rec []byte) {
	select {
	case s.queue <- rec:
	default:
		s.dropped.Add(1)
	}
}

// OnTransition writes "phase FROM -> TO wall=N".
func (s *Sink) OnTransition(t nav.Transition) {
	s.enqueue([]byte(TransitionLine(t)))
}

// OnTick writes a line whenever the positioning target changes.
func (s *Sink) OnTick(snap nav.Snapshot) {
	if snap.TargetMM == s.lastTarget {
		return
	}
	s.lastTarget = snap.TargetMM
	if snap.TargetMM == 0 {
		return
	}
	s.enqueue([]byte(fmt.Sprintf("target %s %.0f mm\n", snap.Phase, snap.TargetMM)))
}

// OnSpectrum queues a binary spectrum frame when spectra are enabled.
func (s *Sink) OnSpectrum(magnitudes []float64) {
	if !s.spectra.Load() {
		return
	}
	var buf bytes.Buffer
	if err := pitch.EncodeSpectrum(&buf, magnitudes); err != nil {
		return
	}
	s.enqueue(buf.Bytes())
}

// Written returns the number of records written.
func (s *Sink) Written() uint64 { return s.written.Load() }

// Dropped returns the number of records dropped on a full queue.
func (s *Sink) Dropped() uint64 { return s.dropped.Load() }

// TransitionLine formats t as a trace line.
func TransitionLine(t nav.Transition) string {
	return fmt.Sprintf("phase %s -> %s wall=%d\n", t.From, t.To, t.Wall.Number())
}
