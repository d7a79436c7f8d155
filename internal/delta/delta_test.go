package delta

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/hupe1980/tickpack/internal/bitstream"
	"github.com/hupe1980/tickpack/internal/changemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectTier(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		d    int64
		want Tier
	}{
		{1, TierSmall},
		{-1, TierSmall},
		{7, TierSmall},
		{-7, TierSmall},
		{8, TierMedium},
		{-8, TierMedium},
		{127, TierMedium},
		{-127, TierMedium},
		{128, TierAbsolute},
		{-128, TierAbsolute},
		{math.MaxInt32, TierAbsolute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SelectTier(tt.d, th), "delta %d", tt.d)
	}
}

func TestSelectTierCustomThresholds(t *testing.T) {
	th := Thresholds{Small: 2, Medium: 50}
	require.NoError(t, th.Validate())

	assert.Equal(t, TierSmall, SelectTier(-2, th))
	assert.Equal(t, TierMedium, SelectTier(3, th))
	assert.Equal(t, TierMedium, SelectTier(-50, th))
	assert.Equal(t, TierAbsolute, SelectTier(51, th))
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name  string
		th    Thresholds
		valid bool
	}{
		{"default", DefaultThresholds(), true},
		{"zero", Thresholds{}, true},
		{"small too wide", Thresholds{Small: 8, Medium: 127}, false},
		{"medium too wide", Thresholds{Small: 7, Medium: 128}, false},
		{"inverted", Thresholds{Small: 7, Medium: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.th.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidThresholds)
			}
		})
	}
}

func TestTierWidth(t *testing.T) {
	assert.Equal(t, uint(4), TierSmall.Width())
	assert.Equal(t, uint(8), TierMedium.Width())
	assert.Equal(t, uint(32), TierAbsolute.Width())
	assert.Equal(t, "8-bit", TierMedium.String())
}

func encodeTick(t *testing.T, th Thresholds, prev, curr []int64) []byte {
	t.Helper()
	w := bitstream.NewWriter(16)
	enc := NewEncoder(th)
	require.NoError(t, enc.EncodeTick(w, prev, curr, changemap.Build(prev, curr)))
	return w.Flush()
}

func TestEncodeTickLayout(t *testing.T) {
	th := DefaultThresholds()

	// +1 on symbol 0: selector 00, field 0001, padded.
	got := encodeTick(t, th, []int64{10000, 5000}, []int64{10001, 5000})
	assert.Equal(t, []byte{0x04}, got)

	// +49 on symbol 0 (01 00110001), absolute 5200 on symbol 1 (10 0x00001450).
	got = encodeTick(t, th, []int64{10001, 5000}, []int64{10050, 5200})
	assert.Equal(t, []byte{0x4C, 0x60, 0x00, 0x01, 0x45, 0x00}, got)
}

func TestEncodeDecodeTick(t *testing.T) {
	th := DefaultThresholds()
	prev := []int64{0, 100, -100, 5000, math.MaxInt32, math.MinInt32, 42}
	curr := []int64{-7, 107, -227, 5000, math.MinInt32, math.MaxInt32, 43}

	bm := changemap.Build(prev, curr)
	w := bitstream.NewWriter(32)
	enc := NewEncoder(th)
	require.NoError(t, enc.EncodeTick(w, prev, curr, bm))
	data := w.Flush()

	dec := NewDecoder(th)
	got, err := dec.DecodeTick(bitstream.NewReader(data), prev, bm)
	require.NoError(t, err)
	assert.Equal(t, curr, got)
	assert.Equal(t, enc.Stats(), dec.Stats())
	assert.Equal(t, Stats{Small: 3, Medium: 1, Absolute: 2}, enc.Stats())
}

func TestDecodeTickKeepsUnchanged(t *testing.T) {
	prev := []int64{1, 2, 3}
	bm := changemap.New(3)

	got, err := NewDecoder(DefaultThresholds()).DecodeTick(bitstream.NewReader(nil), prev, bm)
	require.NoError(t, err)
	assert.Equal(t, prev, got)

	got[0] = 99
	assert.Equal(t, int64(1), prev[0])
}

func TestEncodeDecodeRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	th := Thresholds{Small: 5, Medium: 90}
	const symbols = 37

	prev := make([]int64, symbols)
	for i := range prev {
		prev[i] = int64(rng.Int32N(1_000_000))
	}

	enc := NewEncoder(th)
	dec := NewDecoder(th)

	for tick := range 200 {
		curr := append([]int64(nil), prev...)
		for s := range curr {
			switch rng.IntN(4) {
			case 0:
			case 1:
				curr[s] += int64(rng.IntN(11) - 5)
			case 2:
				curr[s] += int64(rng.IntN(181) - 90)
			default:
				curr[s] = int64(rng.Int32N(1_000_000))
			}
		}

		bm := changemap.Build(prev, curr)
		w := bitstream.NewWriter(64)
		require.NoError(t, enc.EncodeTick(w, prev, curr, bm))

		got, err := dec.DecodeTick(bitstream.NewReader(w.Flush()), prev, bm)
		require.NoError(t, err, "tick %d", tick)
		require.Equal(t, curr, got, "tick %d", tick)
		prev = curr
	}
	assert.Equal(t, enc.Stats(), dec.Stats())
}

func TestDecodeTickReservedSelector(t *testing.T) {
	bm := changemap.New(1)
	bm.Set(0)

	_, err := NewDecoder(DefaultThresholds()).DecodeTick(bitstream.NewReader([]byte{0xC0}), []int64{0}, bm)
	require.ErrorIs(t, err, ErrDeltaRangeViolation)
}

func TestDecodeTickRejectsNonMinimalTier(t *testing.T) {
	bm := changemap.New(1)
	bm.Set(0)
	dec := NewDecoder(DefaultThresholds())

	tests := []struct {
		name string
		data []byte
	}{
		// 8-bit field holding +3, which fits the 4-bit tier.
		{"medium small delta", []byte{0x40, 0xC0}},
		// 4-bit field holding -8, outside ±7.
		{"small out of bound", []byte{0x20}},
		// 4-bit field holding zero.
		{"zero delta", []byte{0x00}},
		// absolute field equal to the previous value.
		{"absolute unchanged", []byte{0x80, 0x00, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dec.DecodeTick(bitstream.NewReader(tt.data), []int64{0}, bm)
			require.ErrorIs(t, err, ErrDeltaRangeViolation)
		})
	}
}

func TestDecodeTickTruncated(t *testing.T) {
	bm := changemap.New(2)
	bm.Set(0)
	bm.Set(1)

	// One 4-bit field, then a selector with no room for its field.
	_, err := NewDecoder(DefaultThresholds()).DecodeTick(bitstream.NewReader([]byte{0x04}), []int64{0, 0}, bm)
	require.ErrorIs(t, err, bitstream.ErrTruncatedStream)
}

func TestEncodeTickRejectsZeroDelta(t *testing.T) {
	bm := changemap.New(1)
	bm.Set(0)

	err := NewEncoder(DefaultThresholds()).EncodeTick(bitstream.NewWriter(1), []int64{5}, []int64{5}, bm)
	require.ErrorIs(t, err, ErrDeltaRangeViolation)
}

func TestEncodeTickRejectsWideValue(t *testing.T) {
	prev := []int64{0}
	curr := []int64{math.MaxInt32 + 1}

	err := NewEncoder(DefaultThresholds()).EncodeTick(bitstream.NewWriter(1), prev, curr, changemap.Build(prev, curr))
	require.ErrorIs(t, err, ErrDeltaRangeViolation)
}

func BenchmarkEncodeTick(b *testing.B) {
	rng := rand.New(rand.NewPCG(3, 4))
	prev := make([]int64, 512)
	curr := make([]int64, 512)
	for i := range prev {
		prev[i] = int64(rng.Int32N(100_000))
		curr[i] = prev[i] + int64(rng.IntN(21)-10)
	}
	bm := changemap.Build(prev, curr)
	enc := NewEncoder(DefaultThresholds())

	for b.Loop() {
		w := bitstream.NewWriter(1024)
		_ = enc.EncodeTick(w, prev, curr, bm)
	}
}
