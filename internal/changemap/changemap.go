// Package changemap implements the per-tick change bitmap: one bit per symbol, set
// when the symbol's value differs from the previous tick.
//
// On the wire the bitmap is ceil(S/8) bytes, symbol 0 in the most significant bit of
// the first byte. Unused trailing bits are zero.
package changemap

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/tickpack/internal/bitstream"
)

// ErrPaddingBits is returned when bits beyond the symbol count are set.
var ErrPaddingBits = errors.New("change bitmap has padding bits set")

// Bitmap is the set of symbols that changed in one tick.
type Bitmap struct {
	n   int
	set *roaring.Bitmap
}

// New returns an empty bitmap over n symbols.
func New(n int) *Bitmap {
	return &Bitmap{n: n, set: roaring.New()}
}

// Build marks every index where prev and curr differ. Both slices must have equal length.
func Build(prev, curr []int64) *Bitmap {
	if len(prev) != len(curr) {
		panic(fmt.Sprintf("changemap: length mismatch %d != %d", len(prev), len(curr)))
	}
	b := New(len(curr))
	for s := range curr {
		if prev[s] != curr[s] {
			b.set.Add(uint32(s))
		}
	}
	return b
}

// SizeOf returns the serialized size in bytes for n symbols.
func SizeOf(n int) int { return (n + 7) / 8 }

// Len returns the number of symbols the bitmap covers.
func (b *Bitmap) Len() int { return b.n }

// Set marks symbol s as changed.
func (b *Bitmap) Set(s int) {
	if s < 0 || s >= b.n {
		panic(fmt.Sprintf("changemap: symbol %d out of range [0..%d)", s, b.n))
	}
	b.set.Add(uint32(s))
}

// Contains reports whether symbol s changed.
func (b *Bitmap) Contains(s int) bool {
	return b.set.Contains(uint32(s))
}

// Cardinality returns the number of changed symbols.
func (b *Bitmap) Cardinality() int {
	return int(b.set.GetCardinality())
}

// ForEach calls fn for every changed symbol in ascending order.
func (b *Bitmap) ForEach(fn func(s int)) {
	b.set.Iterate(func(x uint32) bool {
		fn(int(x))
		return true
	})
}

// Symbols returns the changed symbols in ascending order.
func (b *Bitmap) Symbols() []int {
	out := make([]int, 0, b.Cardinality())
	b.ForEach(func(s int) { out = append(out, s) })
	return out
}

// Bytes serializes the bitmap, MSB-first per byte.
func (b *Bitmap) Bytes() []byte {
	out := make([]byte, SizeOf(b.n))
	b.ForEach(func(s int) {
		out[s>>3] |= 0x80 >> (s & 7)
	})
	return out
}

// Parse reads an n-symbol bitmap from its serialized bytes.
func Parse(p []byte, n int) (*Bitmap, error) {
	if len(p) != SizeOf(n) {
		return nil, fmt.Errorf("%w: bitmap for %d symbols needs %d bytes, got %d",
			bitstream.ErrTruncatedStream, n, SizeOf(n), len(p))
	}

	b := New(n)
	for i, v := range p {
		for v != 0 {
			bit := 7 - bits.TrailingZeros8(v)
			s := i*8 + bit
			if s >= n {
				return nil, fmt.Errorf("%w: bit %d with %d symbols", ErrPaddingBits, s, n)
			}
			b.set.Add(uint32(s))
			v &= v - 1
		}
	}
	return b, nil
}

// Read reads an n-symbol bitmap from r. The reader must be byte aligned.
func Read(r *bitstream.Reader, n int) (*Bitmap, error) {
	p, err := r.ReadBytes(SizeOf(n))
	if err != nil {
		return nil, err
	}
	return Parse(p, n)
}
