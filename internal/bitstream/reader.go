package bitstream

import (
	"errors"
	"fmt"
)

// ErrTruncatedStream is returned when a read needs more bits than the buffer holds.
var ErrTruncatedStream = errors.New("truncated stream")

// Reader reads bit fields from a byte slice. It never copies the input.
type Reader struct {
	buf []byte
	pos uint64 // bit cursor
}

// NewReader creates a Reader positioned at the first bit of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// ReadBits reads a width-bit field and advances the cursor.
// It panics if width is outside [1..32].
func (r *Reader) ReadBits(width uint) (uint32, error) {
	if width == 0 || width > MaxWidth {
		panic(fmt.Sprintf("bitstream: invalid width %d (must be in [1..%d])", width, MaxWidth))
	}
	if r.Remaining() < uint64(width) {
		return 0, fmt.Errorf("%w: need %d bits at bit offset %d, have %d",
			ErrTruncatedStream, width, r.pos, r.Remaining())
	}

	var v uint64
	for width > 0 {
		bitOff := uint(r.pos & 7)
		avail := 8 - bitOff
		take := min(avail, width)

		b := uint64(r.buf[r.pos>>3]) >> (avail - take) & (1<<take - 1)
		v = v<<take | b

		width -= take
		r.pos += uint64(take)
	}
	return uint32(v), nil
}

// ReadUint32 reads a full 32-bit field.
func (r *Reader) ReadUint32() (uint32, error) { return r.ReadBits(32) }

// ReadUint8 reads an 8-bit field.
func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadBits(8)
	return uint8(v), err
}

// ReadUint64 reads a 64-bit field written by Writer.WriteUint64.
func (r *Reader) ReadUint64() (uint64, error) {
	hi, err := r.ReadBits(32)
	if err != nil {
		return 0, err
	}
	lo, err := r.ReadBits(32)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// ReadBytes reads n 8-bit fields. When the cursor is byte aligned the result
// aliases the underlying buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("bitstream: negative length %d", n)
	}
	if r.Remaining() < uint64(n)*8 {
		return nil, fmt.Errorf("%w: need %d bytes at bit offset %d, have %d bits",
			ErrTruncatedStream, n, r.pos, r.Remaining())
	}

	if r.pos&7 == 0 {
		start := r.pos >> 3
		r.pos += uint64(n) * 8
		return r.buf[start : start+uint64(n)], nil
	}

	out := make([]byte, n)
	for i := range out {
		v, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// Align skips to the next byte boundary.
func (r *Reader) Align() {
	r.pos = (r.pos + 7) &^ 7
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() uint64 {
	return uint64(len(r.buf))*8 - r.pos
}

// BitOffset returns the cursor position in bits.
func (r *Reader) BitOffset() uint64 { return r.pos }

// Offset returns the index of the byte holding the cursor.
func (r *Reader) Offset() int { return int(r.pos >> 3) }
