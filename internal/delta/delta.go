// Package delta encodes the per-symbol changes of one tick against the previous tick.
//
// Every changed symbol contributes a 2-bit tier selector followed by its field:
//
//	00  4-bit two's-complement delta
//	01  8-bit two's-complement delta
//	10  32-bit absolute value
//	11  reserved
//
// The tier is the smallest one whose threshold covers the delta. The absolute tier
// stores the new value rather than a delta.
package delta

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/tickpack/internal/bitstream"
	"github.com/hupe1980/tickpack/internal/changemap"
)

// ErrDeltaRangeViolation signals a value the tier scheme cannot have produced.
var ErrDeltaRangeViolation = errors.New("delta range violation")

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = errors.New("invalid tier thresholds")

// SelectorBits is the width of the tier selector.
const SelectorBits = 2

// Tier is the encoding width chosen for one delta.
type Tier uint8

const (
	// TierSmall stores the delta in 4 bits.
	TierSmall Tier = iota
	// TierMedium stores the delta in 8 bits.
	TierMedium
	// TierAbsolute stores the new value in 32 bits.
	TierAbsolute
	tierReserved
)

// Width returns the field width in bits.
func (t Tier) Width() uint {
	switch t {
	case TierSmall:
		return 4
	case TierMedium:
		return 8
	case TierAbsolute:
		return 32
	default:
		return 0
	}
}

func (t Tier) String() string {
	switch t {
	case TierSmall:
		return "4-bit"
	case TierMedium:
		return "8-bit"
	case TierAbsolute:
		return "32-bit-absolute"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Limits of the bounds a field width can carry.
const (
	MaxSmall  = 7
	MaxMedium = 127
)

// Thresholds are the inclusive magnitude bounds of the 4-bit and 8-bit tiers.
type Thresholds struct {
	Small  uint8
	Medium uint8
}

// DefaultThresholds returns ±7 / ±127.
func DefaultThresholds() Thresholds {
	return Thresholds{Small: MaxSmall, Medium: MaxMedium}
}

// Validate checks that the bounds fit their field widths and are ordered.
func (th Thresholds) Validate() error {
	if th.Small > MaxSmall {
		return fmt.Errorf("%w: small bound %d exceeds %d", ErrInvalidThresholds, th.Small, MaxSmall)
	}
	if th.Medium > MaxMedium {
		return fmt.Errorf("%w: medium bound %d exceeds %d", ErrInvalidThresholds, th.Medium, MaxMedium)
	}
	if th.Medium < th.Small {
		return fmt.Errorf("%w: medium bound %d below small bound %d", ErrInvalidThresholds, th.Medium, th.Small)
	}
	return nil
}

// SelectTier returns the smallest tier whose bound covers d.
func SelectTier(d int64, th Thresholds) Tier {
	switch {
	case -int64(th.Small) <= d && d <= int64(th.Small):
		return TierSmall
	case -int64(th.Medium) <= d && d <= int64(th.Medium):
		return TierMedium
	default:
		return TierAbsolute
	}
}

// Stats counts fields per tier.
type Stats struct {
	Small    int
	Medium   int
	Absolute int
}

// Fields returns the total number of encoded fields.
func (s Stats) Fields() int { return s.Small + s.Medium + s.Absolute }

func (s *Stats) add(t Tier) {
	switch t {
	case TierSmall:
		s.Small++
	case TierMedium:
		s.Medium++
	case TierAbsolute:
		s.Absolute++
	}
}

// Encoder writes tick deltas. It is not safe for concurrent use.
type Encoder struct {
	th    Thresholds
	stats Stats
}

// NewEncoder creates an Encoder for validated thresholds.
func NewEncoder(th Thresholds) *Encoder {
	return &Encoder{th: th}
}

// Stats returns the tier counts accumulated so far.
func (e *Encoder) Stats() Stats { return e.stats }

// EncodeTick writes selector and field for every symbol set in changed, in symbol order.
func (e *Encoder) EncodeTick(w *bitstream.Writer, prev, curr []int64, changed *changemap.Bitmap) error {
	if len(prev) != len(curr) || changed.Len() != len(curr) {
		return fmt.Errorf("%w: tick width %d, previous %d, bitmap %d",
			ErrDeltaRangeViolation, len(curr), len(prev), changed.Len())
	}

	var err error
	changed.ForEach(func(s int) {
		if err != nil {
			return
		}
		err = e.encodeSymbol(w, s, prev[s], curr[s])
	})
	return err
}

func (e *Encoder) encodeSymbol(w *bitstream.Writer, s int, prev, curr int64) error {
	if curr < math.MinInt32 || curr > math.MaxInt32 {
		return fmt.Errorf("%w: symbol %d value %d outside 32-bit range", ErrDeltaRangeViolation, s, curr)
	}
	d := curr - prev
	if d == 0 {
		return fmt.Errorf("%w: symbol %d marked changed with zero delta", ErrDeltaRangeViolation, s)
	}

	t := SelectTier(d, e.th)
	w.WriteBits(uint32(t), SelectorBits)
	switch t {
	case TierSmall, TierMedium:
		w.WriteBits(uint32(int32(d)), t.Width())
	case TierAbsolute:
		w.WriteUint32(uint32(int32(curr)))
	}
	e.stats.add(t)
	return nil
}

// Decoder reads tick deltas. It is not safe for concurrent use.
type Decoder struct {
	th    Thresholds
	stats Stats
}

// NewDecoder creates a Decoder for the thresholds the stream was encoded with.
func NewDecoder(th Thresholds) *Decoder {
	return &Decoder{th: th}
}

// Stats returns the tier counts accumulated so far.
func (d *Decoder) Stats() Stats { return d.stats }

// DecodeTick reconstructs the next tick from prev. Symbols not in changed keep their
// previous value. prev is never modified.
func (d *Decoder) DecodeTick(r *bitstream.Reader, prev []int64, changed *changemap.Bitmap) ([]int64, error) {
	if changed.Len() != len(prev) {
		return nil, fmt.Errorf("%w: bitmap covers %d symbols, tick has %d",
			ErrDeltaRangeViolation, changed.Len(), len(prev))
	}

	curr := append([]int64(nil), prev...)

	var err error
	changed.ForEach(func(s int) {
		if err != nil {
			return
		}
		curr[s], err = d.decodeSymbol(r, s, prev[s])
	})
	if err != nil {
		return nil, err
	}
	return curr, nil
}

func (d *Decoder) decodeSymbol(r *bitstream.Reader, s int, prev int64) (int64, error) {
	sel, err := r.ReadBits(SelectorBits)
	if err != nil {
		return 0, fmt.Errorf("symbol %d selector: %w", s, err)
	}

	t := Tier(sel)
	if t >= tierReserved {
		return 0, fmt.Errorf("%w: symbol %d uses reserved selector %02b", ErrDeltaRangeViolation, s, sel)
	}

	field, err := r.ReadBits(t.Width())
	if err != nil {
		return 0, fmt.Errorf("symbol %d %s field: %w", s, t, err)
	}

	var v int64
	switch t {
	case TierSmall:
		v = prev + signExtend(field, 4)
	case TierMedium:
		v = prev + signExtend(field, 8)
	case TierAbsolute:
		v = int64(int32(field))
	}

	// The encoder always picks the smallest covering tier for a non-zero delta, so
	// anything else is corrupt input.
	if v == prev || SelectTier(v-prev, d.th) != t {
		return 0, fmt.Errorf("%w: symbol %d %s field encodes delta %d",
			ErrDeltaRangeViolation, s, t, v-prev)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: symbol %d value %d outside 32-bit range", ErrDeltaRangeViolation, s, v)
	}

	d.stats.add(t)
	return v, nil
}

func signExtend(v uint32, width uint) int64 {
	shift := 32 - width
	return int64(int32(v<<shift) >> shift)
}
