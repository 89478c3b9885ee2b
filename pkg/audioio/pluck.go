package audioio

import (
	"log/slog"
	"sync"
)

// Plucker plays a scripted sequence of string plucks on a ToneSource: the
// next frequency each time the robot starts listening, silence otherwise.
type Plucker struct {
	tone      *ToneSource
	freqs     []float64
	amplitude float64
	logger    *slog.Logger

	mu        sync.Mutex
	next      int
	listening bool
}

// NewPlucker creates a plucker for freqs, played at amplitude.
func NewPlucker(tone *ToneSource, freqs []float64, amplitude float64, logger *slog.Logger) *Plucker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plucker{
		tone:      tone,
		freqs:     append([]float64(nil), freqs...),
		amplitude: amplitude,
		logger:    logger,
	}
}

// Listen reports whether the robot is listening. A false to true edge
// plays the next pluck; a true to false edge silences the tone.
func (p *Plucker) Listen(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if on == p.listening {
		return
	}
	p.listening = on
	if !on {
		p.tone.Silence()
		return
	}

	if p.next >= len(p.freqs) {
		p.logger.Info("no plucks left, staying silent")
		return
	}
	freq := p.freqs[p.next]
	p.next++
	p.tone.SetTone(freq, p.amplitude)
	p.logger.Info("pluck", "freq_hz", freq, "remaining", len(p.freqs)-p.next)
}

// Remaining returns how many plucks have not been played.
func (p *Plucker) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.freqs) - p.next
}
