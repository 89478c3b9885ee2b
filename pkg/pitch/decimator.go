package pitch

import "errors"

// ErrChannel is returned when the selected microphone is not in the block.
var ErrChannel = errors.New("pitch: selected channel not present in audio block")

// Decimator assembles fixed-size frames from interleaved PCM16 blocks,
// keeping one sample of the selected channel out of every factor.
// The sample phase carries over between blocks.
type Decimator struct {
	frame   []float64
	filled  int
	factor  int
	channel int
	phase   int
}

// NewDecimator creates a decimator producing frames of frameSize samples.
func NewDecimator(frameSize, factor, channel int) *Decimator {
	if factor < 1 {
		factor = 1
	}
	return &Decimator{
		frame:   make([]float64, frameSize),
		factor:  factor,
		channel: channel,
	}
}

// Push consumes one interleaved block. emit is called synchronously for
// every completed frame; the slice is reused afterwards.
func (d *Decimator) Push(samples []int16, channels int, emit func(frame []float64)) error {
	if channels <= 0 || d.channel >= channels {
		return ErrChannel
	}

	for i := d.channel; i < len(samples); i += channels {
		if d.phase == 0 {
			d.frame[d.filled] = float64(samples[i])
			d.filled++
			if d.filled == len(d.frame) {
				emit(d.frame)
				d.filled = 0
			}
		}
		d.phase = (d.phase + 1) % d.factor
	}
	return nil
}

// Reset drops any partially assembled frame.
func (d *Decimator) Reset() {
	d.filled = 0
	d.phase = 0
}

// Pending returns the number of samples in the partial frame.
func (d *Decimator) Pending() int {
	return d.filled
}
