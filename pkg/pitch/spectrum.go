package pitch

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// SpectrumHeader starts every encoded spectrum dump.
const SpectrumHeader = "START"

// EncodeSpectrum writes magnitudes as: "START", uint16 LE count, then
// count float32 LE values.
func EncodeSpectrum(w io.Writer, magnitudes []float64) error {
	buf := bytes.NewBuffer(make([]byte, 0, len(SpectrumHeader)+2+4*len(magnitudes)))
	buf.WriteString(SpectrumHeader)

	var scratch [4]byte
	binary.LittleEndian.PutUint16(scratch[:2], uint16(len(magnitudes)))
	buf.Write(scratch[:2])
	for _, m := range magnitudes {
		binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(float32(m)))
		buf.Write(scratch[:])
	}

	_, err := w.Write(buf.Bytes())
	return err
}
