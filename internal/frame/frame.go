// Package frame holds the reference frame: the full-precision baseline value of every
// symbol at tick 0.
package frame

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/tickpack/internal/bitstream"
)

// FieldBits is the width of one serialized reference value.
const FieldBits = 32

// ErrValueRange is returned when a value does not fit a 32-bit field.
var ErrValueRange = errors.New("reference value out of 32-bit range")

// Frame is an immutable snapshot of one value per symbol.
type Frame struct {
	values []int64
}

// Capture copies values into a new Frame.
func Capture(values []int64) (*Frame, error) {
	for i, v := range values {
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("%w: symbol %d value %d", ErrValueRange, i, v)
		}
	}
	return &Frame{values: append([]int64(nil), values...)}, nil
}

// Len returns the number of symbols.
func (f *Frame) Len() int { return len(f.values) }

// Value returns the baseline value of symbol i.
func (f *Frame) Value(i int) int64 { return f.values[i] }

// Values returns a copy of the baseline values.
func (f *Frame) Values() []int64 {
	return append([]int64(nil), f.values...)
}

// Size returns the serialized size in bytes.
func (f *Frame) Size() int { return SizeOf(len(f.values)) }

// SizeOf returns the serialized size of a frame with n symbols.
func SizeOf(n int) int { return n * FieldBits / 8 }

// WriteTo appends the frame as fixed 32-bit two's-complement fields.
func (f *Frame) WriteTo(w *bitstream.Writer) {
	for _, v := range f.values {
		w.WriteUint32(uint32(int32(v)))
	}
}

// Serialize returns the frame bytes in symbol order.
func (f *Frame) Serialize() []byte {
	w := bitstream.NewWriter(f.Size())
	f.WriteTo(w)
	return w.Flush()
}

// Read reads an n-symbol frame from r.
func Read(r *bitstream.Reader, n int) (*Frame, error) {
	values := make([]int64, n)
	for i := range values {
		v, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reference frame symbol %d: %w", i, err)
		}
		values[i] = int64(int32(v))
	}
	return &Frame{values: values}, nil
}

// Parse reconstructs an n-symbol frame from its serialized bytes.
func Parse(b []byte, n int) (*Frame, error) {
	return Read(bitstream.NewReader(b), n)
}

// Equal reports whether two frames hold the same values.
func (f *Frame) Equal(other *Frame) bool {
	if f.Len() != other.Len() {
		return false
	}
	for i, v := range f.values {
		if other.values[i] != v {
			return false
		}
	}
	return true
}
