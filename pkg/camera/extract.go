package camera

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-pitchnav/pkg/line"
)

// ErrShortBuffer is returned when a raw buffer holds fewer pixels than asked.
var ErrShortBuffer = errors.New("camera: buffer too short")

// ExtractRGB565 returns the intensity of one color channel for width
// big-endian RGB565 pixels.
func ExtractRGB565(raw []byte, width int, ch line.Channel) ([]uint8, error) {
	if len(raw) < 2*width {
		return nil, fmt.Errorf("%w: %d bytes for %d pixels", ErrShortBuffer, len(raw), width)
	}
	out := make([]uint8, width)
	for i := range out {
		b0, b1 := raw[2*i], raw[2*i+1]
		switch ch {
		case line.Red:
			out[i] = b0 & 0xF8
		case line.Green:
			out[i] = (b0&0x07)<<5 | (b1&0xE0)>>3
		case line.Blue:
			out[i] = (b1 & 0x1F) << 3
		}
	}
	return out, nil
}

// EncodeRGB565 packs 8-bit r, g, b into a big-endian RGB565 pixel pair.
func EncodeRGB565(r, g, b uint8) (byte, byte) {
	v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
	return byte(v >> 8), byte(v)
}

// ExtractBGR returns one channel of row number row of a packed 8-bit BGR
// image of the given width.
func ExtractBGR(data []byte, width, row int, ch line.Channel) ([]uint8, error) {
	start := row * width * 3
	if row < 0 || len(data) < start+width*3 {
		return nil, fmt.Errorf("%w: row %d of %d bytes", ErrShortBuffer, row, len(data))
	}
	off := 0
	switch ch {
	case line.Green:
		off = 1
	case line.Red:
		off = 2
	}
	out := make([]uint8, width)
	for i := range out {
		out[i] = data[start+3*i+off]
	}
	return out, nil
}
