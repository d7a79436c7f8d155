package bitstream

import (
	"encoding/binary"
	"fmt"
)

// MaxWidth is the widest field accepted by WriteBits and ReadBits.
const MaxWidth = 32

// Writer accumulates bit fields into a growing byte slice.
// The zero value is not usable; use NewWriter.
type Writer struct {
	buf       []byte
	current   uint64 // pending bits, left-aligned
	availBits uint   // free bits left in current
}

// NewWriter creates a Writer with room for sizeHint bytes before it has to grow.
func NewWriter(sizeHint int) *Writer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Writer{
		buf:       make([]byte, 0, sizeHint),
		availBits: 64,
	}
}

// WriteBits appends the low width bits of value. It panics if width is outside [1..32].
func (w *Writer) WriteBits(value uint32, width uint) {
	if width == 0 || width > MaxWidth {
		panic(fmt.Sprintf("bitstream: invalid width %d (must be in [1..%d])", width, MaxWidth))
	}

	v := uint64(value) & (1<<width - 1)

	if width < w.availBits {
		w.availBits -= width
		w.current |= v << w.availBits
		return
	}

	// Field straddles the 64-bit accumulator.
	remaining := width - w.availBits
	w.current |= v >> remaining
	w.pushCurrent()

	if remaining > 0 {
		w.availBits -= remaining
		w.current = v << w.availBits
	}
}

// WriteUint32 appends a full 32-bit field.
func (w *Writer) WriteUint32(v uint32) { w.WriteBits(v, 32) }

// WriteUint8 appends an 8-bit field.
func (w *Writer) WriteUint8(v uint8) { w.WriteBits(uint32(v), 8) }

// WriteUint64 appends a 64-bit field as two 32-bit halves, high half first.
func (w *Writer) WriteUint64(v uint64) {
	w.WriteBits(uint32(v>>32), 32)
	w.WriteBits(uint32(v), 32)
}

// WriteBytes appends p as a sequence of 8-bit fields.
func (w *Writer) WriteBytes(p []byte) {
	if w.availBits == 64 {
		w.buf = append(w.buf, p...)
		return
	}
	for _, b := range p {
		w.WriteBits(uint32(b), 8)
	}
}

// Align pads the stream with zero bits up to the next byte boundary.
func (w *Writer) Align() {
	pad := (8 - (64-w.availBits)%8) % 8
	if pad == 0 {
		return
	}
	w.availBits -= pad
	if w.availBits == 0 {
		w.pushCurrent()
	}
}

// Flush pads the final byte with zero bits and returns the written bytes.
// The Writer stays usable; later writes continue after the padding.
func (w *Writer) Flush() []byte {
	w.Align()
	n := (64 - w.availBits) / 8
	for i := uint(0); i < n; i++ {
		w.buf = append(w.buf, byte(w.current>>(56-8*i)))
	}
	w.current = 0
	w.availBits = 64
	return w.buf
}

// BitLen returns the number of bits written so far.
func (w *Writer) BitLen() int {
	return len(w.buf)*8 + int(64-w.availBits)
}

// Len returns the number of bytes Flush would return right now.
func (w *Writer) Len() int {
	return (w.BitLen() + 7) / 8
}

func (w *Writer) pushCurrent() {
	w.buf = binary.BigEndian.AppendUint64(w.buf, w.current)
	w.current = 0
	w.availBits = 64
}
