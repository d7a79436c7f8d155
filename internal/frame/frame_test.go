package frame

import (
	"math"
	"testing"

	"github.com/hupe1980/tickpack/internal/bitstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_SerializeParse(t *testing.T) {
	values := []int64{10000, 5000, -1, math.MaxInt32, math.MinInt32}

	f, err := Capture(values)
	require.NoError(t, err)
	assert.Equal(t, 5, f.Len())
	assert.Equal(t, 20, f.Size())

	b := f.Serialize()
	require.Len(t, b, 20)
	assert.Equal(t, []byte{0x00, 0x00, 0x27, 0x10}, b[:4])
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, b[8:12])

	parsed, err := Parse(b, 5)
	require.NoError(t, err)
	assert.True(t, f.Equal(parsed))
	assert.Equal(t, b, parsed.Serialize(), "reconstructed frame must be bit-identical")
}

func TestCapture_IsolatedFromCaller(t *testing.T) {
	values := []int64{1, 2}
	f, err := Capture(values)
	require.NoError(t, err)

	values[0] = 99
	assert.Equal(t, int64(1), f.Value(0))

	out := f.Values()
	out[1] = 99
	assert.Equal(t, int64(2), f.Value(1))
}

func TestCapture_RejectsWideValues(t *testing.T) {
	_, err := Capture([]int64{0, math.MaxInt32 + 1})
	require.ErrorIs(t, err, ErrValueRange)
}

func TestParse_Truncated(t *testing.T) {
	_, err := Parse([]byte{0, 0, 0, 1, 0, 0}, 2)
	require.ErrorIs(t, err, bitstream.ErrTruncatedStream)
}
