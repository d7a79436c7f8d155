package tickpack

import (
	"errors"
	"math"
	"testing"

	"github.com/hupe1980/tickpack/fixedpoint"
	"github.com/hupe1980/tickpack/internal/bitstream"
	"github.com/hupe1980/tickpack/internal/changemap"
	"github.com/hupe1980/tickpack/internal/delta"
	"github.com/hupe1980/tickpack/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workedExample() ([]string, [][]float64) {
	return []string{"A", "B"}, [][]float64{
		{100.00, 50.00},
		{100.01, 50.00},
		{100.5, 52.00},
	}
}

func TestEncodeWorkedExample(t *testing.T) {
	symbols, ticks := workedExample()

	data, err := Encode(symbols, ticks)
	require.NoError(t, err)

	// magic, version, flags, scale, tiers, counts, then two one-byte names.
	assert.Equal(t, []byte{
		'T', 'P', 'K', '1',
		1, 0, 2, 7, 127,
		0, 0, 0, 2,
		0, 0, 0, 3,
		1, 'A', 1, 'B',
	}, data[:21])

	// Reference frame: 10000, 5000.
	assert.Equal(t, []byte{0x00, 0x00, 0x27, 0x10, 0x00, 0x00, 0x13, 0x88}, data[21:29])

	// Tick 1: only symbol 0 moves +1 (4-bit tier).
	assert.Equal(t, []byte{0x80, 0x04}, data[29:31])

	// Tick 2: +49 in the 8-bit tier, 5000 -> 5200 as a 32-bit absolute value.
	assert.Equal(t, []byte{0xC0, 0x4C, 0x60, 0x00, 0x01, 0x45, 0x00}, data[31:38])

	assert.Len(t, data, 38+trailerSize)

	series, report := DecodeWithReport(data)
	require.NoError(t, report.Err)
	assert.True(t, report.OK)
	assert.Equal(t, symbols, series.Symbols)
	assert.Equal(t, [][]float64{{100.00, 50.00}, {100.01, 50.00}, {100.50, 52.00}}, series.Ticks)
	assert.Nil(t, series.Timestamps)
	assert.Equal(t, TierCounts{Small: 1, Medium: 1, Absolute: 1}, report.Tiers)
	assert.Equal(t, []int{2, 1}, report.Changes)
}

func assertFixedEqual(t *testing.T, want, got [][]float64, scale uint8) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Len(t, got[i], len(want[i]), "tick %d", i)
		for s := range want[i] {
			w, err := fixedpoint.ToFixed(want[i][s], scale)
			require.NoError(t, err)
			g, err := fixedpoint.ToFixed(got[i][s], scale)
			require.NoError(t, err)
			require.Equal(t, w, g, "tick %d symbol %d", i, s)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rng := testutil.NewRNG(4711)

	for _, symbols := range []int{1, 3, 8, 9, 64} {
		for _, ticks := range []int{1, 2, 50} {
			rows := rng.RandomWalk(symbols, ticks, testutil.DefaultWalkConfig())
			prices := testutil.Prices(rows, DefaultScale)
			names := testutil.Symbols(symbols)

			data, err := Encode(names, prices)
			require.NoError(t, err)

			series, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, names, series.Symbols)
			assert.Equal(t, rows, testutil.Fixed(series.Ticks, DefaultScale))
			assertFixedEqual(t, prices, series.Ticks, DefaultScale)
		}
	}
}

func TestRoundTripScales(t *testing.T) {
	for scale := uint8(0); scale <= fixedpoint.MaxScale; scale++ {
		rows := [][]int64{
			{1, -1, math.MaxInt32, math.MinInt32},
			{2, -1, math.MinInt32, math.MaxInt32},
			{2, 200, math.MinInt32 + 5, math.MaxInt32 - 100},
		}
		prices := testutil.Prices(rows, scale)

		data, err := Encode(testutil.Symbols(4), prices, WithScale(scale))
		require.NoError(t, err, "scale %d", scale)

		series, err := Decode(data)
		require.NoError(t, err, "scale %d", scale)
		assert.Equal(t, rows, testutil.Fixed(series.Ticks, scale), "scale %d", scale)
	}
}

func TestRoundTripTimestamps(t *testing.T) {
	rng := testutil.NewRNG(42)
	rows := rng.RandomWalk(6, 30, testutil.DefaultWalkConfig())
	in := &Series{
		Symbols:    testutil.Symbols(6),
		Timestamps: rng.Timestamps(30, 1_700_000_000_000, 1000),
		Ticks:      testutil.Prices(rows, 3),
	}

	data, err := EncodeSeries(in, WithScale(3))
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in.Timestamps, out.Timestamps)
	assert.Equal(t, rows, testutil.Fixed(out.Ticks, 3))
}

func TestRoundTripSingleTick(t *testing.T) {
	data, err := Encode([]string{"X"}, [][]float64{{42.42}})
	require.NoError(t, err)

	series, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{42.42}}, series.Ticks)
}

func TestTierSelection(t *testing.T) {
	tests := []struct {
		name  string
		delta int64
		opts  []Option
		want  TierCounts
	}{
		{"small upper", 7, nil, TierCounts{Small: 1}},
		{"small lower", -7, nil, TierCounts{Small: 1}},
		{"medium upper", 127, nil, TierCounts{Medium: 1}},
		{"medium lower", -8, nil, TierCounts{Medium: 1}},
		{"absolute", 128, nil, TierCounts{Absolute: 1}},
		{"absolute negative", -128, nil, TierCounts{Absolute: 1}},
		{"custom small", 3, []Option{WithTierThresholds(2, 50)}, TierCounts{Medium: 1}},
		{"custom absolute", 51, []Option{WithTierThresholds(2, 50)}, TierCounts{Absolute: 1}},
		{"no small tier", 1, []Option{WithTierThresholds(0, 127)}, TierCounts{Medium: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := [][]int64{{1000}, {1000 + tt.delta}}
			data, err := Encode([]string{"S"}, testutil.Prices(rows, 2), tt.opts...)
			require.NoError(t, err)

			series, report := DecodeWithReport(data)
			require.NoError(t, report.Err)
			assert.Equal(t, tt.want, report.Tiers)
			assert.Equal(t, rows, testutil.Fixed(series.Ticks, 2))
		})
	}
}

func TestReencodeIsIdempotent(t *testing.T) {
	rng := testutil.NewRNG(99)

	tests := []struct {
		name string
		opts []Option
		ts   bool
	}{
		{"defaults", nil, false},
		{"scale 4", []Option{WithScale(4)}, false},
		{"custom tiers", []Option{WithTierThresholds(3, 60)}, false},
		{"timestamps", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := rng.RandomWalk(12, 40, testutil.DefaultWalkConfig())
			in := &Series{Symbols: testutil.Symbols(12), Ticks: testutil.Prices(rows, 4)}
			if tt.ts {
				in.Timestamps = rng.Timestamps(40, 0, 60)
			}

			first, err := EncodeSeries(in, tt.opts...)
			require.NoError(t, err)

			decoded, err := Decode(first)
			require.NoError(t, err)

			meta, err := Inspect(first)
			require.NoError(t, err)

			second, err := EncodeSeries(decoded, meta.Options()...)
			require.NoError(t, err)
			assert.Equal(t, first, second)

			third, err := EncodeSeries(decoded, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, first, third)
		})
	}
}

func TestUnchangedSymbolsKeepPreviousValue(t *testing.T) {
	rng := testutil.NewRNG(5)
	rows := rng.RandomWalk(10, 60, testutil.WalkConfig{Start: 5000, Spread: 100, Hold: 0.7, Small: 0.2, Medium: 0.1})

	data, err := Encode(testutil.Symbols(10), testutil.Prices(rows, 2))
	require.NoError(t, err)

	series, report := DecodeWithReport(data)
	require.NoError(t, report.Err)
	got := testutil.Fixed(series.Ticks, 2)

	for tick := 1; tick < len(rows); tick++ {
		for s := range rows[tick] {
			if rows[tick][s] == rows[tick-1][s] {
				assert.Equal(t, got[tick-1][s], got[tick][s])
			}
		}
	}

	changes := make([]int, 10)
	for tick := 1; tick < len(rows); tick++ {
		for s := range rows[tick] {
			if rows[tick][s] != rows[tick-1][s] {
				changes[s]++
			}
		}
	}
	assert.Equal(t, changes, report.Changes)
}

// recordOffsets returns the payload offset of every tick record's bitmap.
func recordOffsets(t *testing.T, rows [][]int64, th delta.Thresholds) []int {
	t.Helper()
	w := bitstream.NewWriter(64)
	enc := delta.NewEncoder(th)

	offsets := make([]int, 0, len(rows)-1)
	for tick := 1; tick < len(rows); tick++ {
		offsets = append(offsets, w.Len())
		changed := changemap.Build(rows[tick-1], rows[tick])
		w.WriteBytes(changed.Bytes())
		require.NoError(t, enc.EncodeTick(w, rows[tick-1], rows[tick], changed))
		w.Align()
	}
	return offsets
}

func TestBitmapFlipChangesOutput(t *testing.T) {
	rng := testutil.NewRNG(11)
	const symbols = 11
	rows := rng.RandomWalk(symbols, 25, testutil.DefaultWalkConfig())

	data, err := Encode(testutil.Symbols(symbols), testutil.Prices(rows, 2))
	require.NoError(t, err)

	l, err := parseLayout(data)
	require.NoError(t, err)
	payload := data[l.frameEnd:l.trailerStart]
	offsets := recordOffsets(t, rows, delta.DefaultThresholds())

	for tick := 1; tick < len(rows); tick++ {
		for s := range symbols {
			mutated := append([]byte(nil), payload...)
			mutated[offsets[tick-1]+s/8] ^= 0x80 >> (s % 8)

			got, _, err := newTickDecoder(l.header).decode(rows[0], mutated, l.frameEnd)
			if err == nil {
				assert.NotEqual(t, rows[tick][s], got[tick][s], "tick %d symbol %d", tick, s)
			}

			// Through the public API the payload checksum catches it first.
			archive := append([]byte(nil), data...)
			copy(archive[l.frameEnd:], mutated)
			_, err = Decode(archive)
			var mm *ChecksumMismatchError
			require.ErrorAs(t, err, &mm)
			assert.Equal(t, LayerPayload, mm.Layer)
		}
	}
}

func TestTickDecoderRejectsTrailingBytes(t *testing.T) {
	symbols, ticks := workedExample()
	data, err := Encode(symbols, ticks)
	require.NoError(t, err)

	l, err := parseLayout(data)
	require.NoError(t, err)
	payload := append(append([]byte(nil), data[l.frameEnd:l.trailerStart]...), 0x00)

	_, _, err = newTickDecoder(l.header).decode([]int64{10000, 5000}, payload, l.frameEnd)
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestTickDecoderRejectsPadding(t *testing.T) {
	symbols, ticks := workedExample()
	data, err := Encode(symbols, ticks)
	require.NoError(t, err)

	l, err := parseLayout(data)
	require.NoError(t, err)
	payload := append([]byte(nil), data[l.frameEnd:l.trailerStart]...)
	payload[1] |= 0x01 // tick 1: 6 data bits, then 2 padding bits

	_, _, err = newTickDecoder(l.header).decode([]int64{10000, 5000}, payload, l.frameEnd)
	require.ErrorIs(t, err, ErrDeltaRangeViolation)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Tick)
	assert.Equal(t, KindDeltaRangeViolation, de.Kind)
}

func TestChecksumFailFast(t *testing.T) {
	rng := testutil.NewRNG(3)
	rows := rng.RandomWalk(5, 20, testutil.DefaultWalkConfig())
	data, err := Encode(testutil.Symbols(5), testutil.Prices(rows, 2))
	require.NoError(t, err)

	l, err := parseLayout(data)
	require.NoError(t, err)

	layerAt := func(i int) ChecksumLayer {
		switch {
		case i < l.frameEnd:
			return LayerReferenceFrame
		case i < l.trailerStart:
			return LayerPayload
		case i < l.trailerStart+4:
			return LayerReferenceFrame
		case i < l.trailerStart+8:
			return LayerPayload
		default:
			return LayerStructure
		}
	}

	for i := l.frameStart; i < len(data); i++ {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0xFF

		series, report := DecodeWithReport(mutated)
		require.Nil(t, series, "byte %d", i)
		require.Error(t, report.Err, "byte %d", i)
		assert.False(t, report.OK)
		assert.Equal(t, KindChecksumMismatch, report.Kind, "byte %d", i)

		var mm *ChecksumMismatchError
		require.ErrorAs(t, report.Err, &mm, "byte %d", i)
		assert.Equal(t, layerAt(i), mm.Layer, "byte %d", i)
		assert.Zero(t, report.Ticks)
	}
}

func TestHeaderCorruptionDetected(t *testing.T) {
	symbols, ticks := workedExample()
	data, err := Encode(symbols, ticks)
	require.NoError(t, err)

	l, err := parseLayout(data)
	require.NoError(t, err)

	for i := range l.frameStart {
		for _, mask := range []byte{0x01, 0x80, 0xFF} {
			mutated := append([]byte(nil), data...)
			mutated[i] ^= mask

			series, err := Decode(mutated)
			require.Error(t, err, "byte %d mask %02x", i, mask)
			assert.Nil(t, series)
			assert.Contains(t,
				[]ErrorKind{KindChecksumMismatch, KindMalformedHeader, KindTruncatedStream},
				KindOf(err), "byte %d mask %02x", i, mask)
		}
	}
}

func TestStructureChecksumCoversSymbolNames(t *testing.T) {
	data, err := Encode([]string{"AAPL", "MSFT"}, [][]float64{{1, 2}, {1, 3}})
	require.NoError(t, err)

	mutated := append([]byte(nil), data...)
	mutated[18] = 'B' // "AAPL" -> "BAPL"

	_, err = Decode(mutated)
	var mm *ChecksumMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, LayerStructure, mm.Layer)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 0, de.Offset)
	assert.Equal(t, -1, de.Tick)
}

func rawHeader(mutate func(h *header)) []byte {
	h := &header{
		version:    FormatVersion,
		scale:      2,
		thresholds: delta.DefaultThresholds(),
		tickCount:  1,
		symbols:    []string{"A"},
	}
	if mutate != nil {
		mutate(h)
	}
	w := bitstream.NewWriter(32)
	h.writeTo(w)
	return w.Flush()
}

func TestDecodeMalformedHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", append([]byte("XXXX"), rawHeader(nil)[4:]...)},
		{"version", rawHeader(func(h *header) { h.version = 2 })},
		{"flags", rawHeader(func(h *header) { h.flags = 0x80 })},
		{"scale", rawHeader(func(h *header) { h.scale = 10 })},
		{"small tier", rawHeader(func(h *header) { h.thresholds.Small = 8 })},
		{"inverted tiers", rawHeader(func(h *header) { h.thresholds = delta.Thresholds{Small: 7, Medium: 3} })},
		{"zero symbols", rawHeader(func(h *header) { h.symbols = nil })},
		{"zero ticks", rawHeader(func(h *header) { h.tickCount = 0 })},
		{"empty name", rawHeader(func(h *header) { h.symbols = []string{""} })},
		{"duplicate name", rawHeader(func(h *header) { h.symbols = []string{"A", "A"} })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Enough trailing bytes that only header validation can fail.
			data := append(tt.data, make([]byte, 64)...)

			_, err := Decode(data)
			require.ErrorIs(t, err, ErrMalformedHeader)
			assert.NotErrorIs(t, err, ErrChecksumMismatch)
			assert.Equal(t, KindMalformedHeader, KindOf(err))
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	symbols, ticks := workedExample()
	data, err := Encode(symbols, ticks)
	require.NoError(t, err)

	l, err := parseLayout(data)
	require.NoError(t, err)

	for n := range len(data) {
		_, err := Decode(data[:n])
		require.Error(t, err, "length %d", n)
		if n < l.frameEnd+trailerSize {
			assert.ErrorIs(t, err, ErrTruncatedStream, "length %d", n)
		}
	}

	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrTruncatedStream)
}

func TestEncodeInvalidInput(t *testing.T) {
	row := []float64{1, 2}

	tests := []struct {
		name   string
		series *Series
		opts   []Option
	}{
		{"nil series", nil, nil},
		{"no symbols", &Series{Ticks: [][]float64{{}}}, nil},
		{"no ticks", &Series{Symbols: []string{"A", "B"}}, nil},
		{"ragged", &Series{Symbols: []string{"A", "B"}, Ticks: [][]float64{row, {1}}}, nil},
		{"duplicate symbol", &Series{Symbols: []string{"A", "A"}, Ticks: [][]float64{row}}, nil},
		{"empty symbol", &Series{Symbols: []string{"A", ""}, Ticks: [][]float64{row}}, nil},
		{"long symbol", &Series{Symbols: []string{"A", string(make([]byte, 256))}, Ticks: [][]float64{row}}, nil},
		{"timestamp count", &Series{Symbols: []string{"A", "B"}, Ticks: [][]float64{row, row}, Timestamps: []int64{1}}, nil},
		{"timestamp backwards", &Series{Symbols: []string{"A", "B"}, Ticks: [][]float64{row, row}, Timestamps: []int64{5, 4}}, nil},
		{"timestamp span", &Series{Symbols: []string{"A", "B"}, Ticks: [][]float64{row, row}, Timestamps: []int64{0, math.MaxUint32 + 1}}, nil},
		{"scale", &Series{Symbols: []string{"A", "B"}, Ticks: [][]float64{row}}, []Option{WithScale(10)}},
		{"tiers", &Series{Symbols: []string{"A", "B"}, Ticks: [][]float64{row}}, []Option{WithTierThresholds(8, 100)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeSeries(tt.series, tt.opts...)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, KindInvalidInput, KindOf(err))
		})
	}
}

func TestEncodePrecisionOverflow(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		scale uint8
	}{
		{"too large", 21_474_836.48, 2},
		{"too small", -21_474_836.49, 2},
		{"nan", math.NaN(), 2},
		{"inf", math.Inf(1), 2},
		{"high scale", 3, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode([]string{"A"}, [][]float64{{1}, {tt.price}}, WithScale(tt.scale))
			require.ErrorIs(t, err, ErrPrecisionOverflow)
			assert.Equal(t, KindPrecisionOverflow, KindOf(err))
		})
	}
}

func TestInspect(t *testing.T) {
	in := &Series{
		Symbols:    []string{"EURUSD", "GBPUSD", "USDJPY"},
		Timestamps: []int64{1000, 1001, 1005},
		Ticks:      [][]float64{{1.0712, 1.2701, 149.12}, {1.0713, 1.2701, 149.10}, {1.0713, 1.2699, 149.10}},
	}
	data, err := EncodeSeries(in, WithScale(4), WithTierThresholds(5, 100))
	require.NoError(t, err)

	meta, err := Inspect(data)
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, meta.Version)
	assert.Equal(t, uint8(4), meta.Scale)
	assert.Equal(t, uint8(5), meta.SmallTier)
	assert.Equal(t, uint8(100), meta.MediumTier)
	assert.Equal(t, in.Symbols, meta.Symbols)
	assert.Equal(t, 3, meta.TickCount)
	assert.True(t, meta.HasTimestamps)
	assert.Equal(t, int64(1000), meta.BaseTimestamp)
	assert.Equal(t, len(data), meta.Size)
	assert.Equal(t, 12, meta.ReferenceFrameSize)
	assert.Equal(t, meta.Size, meta.HeaderSize+meta.ReferenceFrameSize+meta.PayloadSize+trailerSize)
	require.NoError(t, Verify(data))
}

func TestVerify(t *testing.T) {
	symbols, ticks := workedExample()
	data, err := Encode(symbols, ticks)
	require.NoError(t, err)

	require.NoError(t, Verify(data))

	data[len(data)-1] ^= 0x01
	err = Verify(data)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecodeErrorMessage(t *testing.T) {
	err := &DecodeError{Kind: KindTruncatedStream, Offset: 12, Tick: 3, cause: ErrTruncatedStream}
	assert.Equal(t, "decode truncated-stream at byte 12 (tick 3): truncated stream", err.Error())
	assert.True(t, errors.Is(err, ErrTruncatedStream))

	err = &DecodeError{Kind: KindMalformedHeader, Offset: -1, Tick: -1, cause: ErrMalformedHeader}
	assert.Equal(t, "decode malformed-header: malformed header", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindDeltaRangeViolation, KindOf(translateError(changemap.ErrPaddingBits)))
	assert.Equal(t, "checksum-mismatch", KindChecksumMismatch.String())
}

func TestCompressionRatio(t *testing.T) {
	s := &Series{Symbols: []string{"A", "B"}, Ticks: make([][]float64, 10), Timestamps: make([]int64, 10)}
	assert.Equal(t, 10*2*8+10*8, RawSize(s))

	assert.InDelta(t, 0.75, CompressionRatio(400, 100), 1e-12)
	assert.Zero(t, CompressionRatio(0, 10))
}

func TestCompressesSlowMovingSeries(t *testing.T) {
	rng := testutil.NewRNG(8)
	rows := rng.RandomWalk(20, 500, testutil.WalkConfig{Start: 10_000, Spread: 1000, Hold: 0.6, Small: 0.35, Medium: 0.05})
	in := &Series{Symbols: testutil.Symbols(20), Ticks: testutil.Prices(rows, 2)}

	data, err := EncodeSeries(in)
	require.NoError(t, err)
	assert.Greater(t, CompressionRatio(RawSize(in), len(data)), 0.8)
}

func BenchmarkEncode(b *testing.B) {
	rng := testutil.NewRNG(1)
	rows := rng.RandomWalk(64, 1000, testutil.DefaultWalkConfig())
	symbols := testutil.Symbols(64)
	prices := testutil.Prices(rows, 2)

	for b.Loop() {
		if _, err := Encode(symbols, prices); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	rng := testutil.NewRNG(1)
	rows := rng.RandomWalk(64, 1000, testutil.DefaultWalkConfig())
	data, err := Encode(testutil.Symbols(64), testutil.Prices(rows, 2))
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))

	for b.Loop() {
		if _, err := Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
