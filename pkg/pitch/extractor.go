// Package pitch detects which guitar string was plucked.
//
// The pipeline is: interleaved microphone blocks -> Decimator -> fixed
// length frame -> Extractor (FFT magnitude peak inside a bin window) ->
// Classify (string band lookup). The Listener runs that pipeline as the
// audio task and publishes a Reading per detected peak.
package pitch

import (
	"errors"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrFrameSize is returned for frames whose length is not the configured N.
var ErrFrameSize = errors.New("pitch: frame length does not match FFT size")

// Peak is the dominant bin of one frame.
type Peak struct {
	Index     int     `json:"index"`
	Frequency float64 `json:"frequency_hz"`
	Magnitude float64 `json:"magnitude"`
}

// Extractor turns a real frame into a magnitude spectrum and finds its peak.
// An Extractor reuses its buffers and is owned by a single goroutine.
type Extractor struct {
	cfg      Config
	fft      *fourier.CmplxFFT
	input    []complex128
	coeffs   []complex128
	spectrum []float64
}

// NewExtractor creates an extractor for cfg.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.FrameSize
	return &Extractor{
		cfg:      cfg,
		fft:      fourier.NewCmplxFFT(n),
		input:    make([]complex128, n),
		coeffs:   make([]complex128, n),
		spectrum: make([]float64, n),
	}, nil
}

// Extract computes the spectrum of frame and returns the strongest bin in
// [MinIndex, MaxIndex] whose magnitude exceeds the threshold. found is
// false when no bin qualifies.
func (e *Extractor) Extract(frame []float64) (peak Peak, found bool, err error) {
	if len(frame) != e.cfg.FrameSize {
		return Peak{}, false, ErrFrameSize
	}

	for i, s := range frame {
		e.input[i] = complex(s, 0)
	}
	e.coeffs = e.fft.Coefficients(e.coeffs, e.input)
	for i, c := range e.coeffs {
		e.spectrum[i] = cmplx.Abs(c)
	}

	best := e.cfg.Threshold
	idx := -1
	for i := e.cfg.MinIndex; i <= e.cfg.MaxIndex; i++ {
		if e.spectrum[i] > best {
			best = e.spectrum[i]
			idx = i
		}
	}
	if idx < 0 {
		return Peak{}, false, nil
	}

	return Peak{
		Index:     idx,
		Frequency: float64(idx) * e.cfg.BinWidth(),
		Magnitude: best,
	}, true, nil
}

// Spectrum returns the magnitudes computed by the last Extract call.
// The slice is reused by the next call.
func (e *Extractor) Spectrum() []float64 {
	return e.spectrum
}
