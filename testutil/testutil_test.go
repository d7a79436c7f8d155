package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomWalkShape(t *testing.T) {
	rng := NewRNG(4711)

	rows := rng.RandomWalk(5, 20, DefaultWalkConfig())

	assert.Len(t, rows, 20)
	for _, row := range rows {
		assert.Len(t, row, 5)
		for _, v := range row {
			assert.GreaterOrEqual(t, v, int64(1))
		}
	}
}

func TestRandomWalkHold(t *testing.T) {
	rng := NewRNG(1)

	rows := rng.RandomWalk(3, 10, WalkConfig{Start: 500, Hold: 1})

	for _, row := range rows {
		assert.Equal(t, []int64{500, 500, 500}, row)
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.RandomWalk(4, 8, DefaultWalkConfig())

	rng.Reset()
	v2 := rng.RandomWalk(4, 8, DefaultWalkConfig())

	assert.Equal(t, v1, v2)
}

func TestTimestampsNonDecreasing(t *testing.T) {
	rng := NewRNG(7)

	ts := rng.Timestamps(100, 1_700_000_000, 5)

	assert.Equal(t, int64(1_700_000_000), ts[0])
	for i := 1; i < len(ts); i++ {
		assert.GreaterOrEqual(t, ts[i], ts[i-1])
	}
}

func TestPricesFixedRoundTrip(t *testing.T) {
	rows := [][]int64{{10000, 5000}, {10001, 5000}}

	prices := Prices(rows, 2)
	assert.Equal(t, []float64{100, 50}, prices[0])
	assert.Equal(t, rows, Fixed(prices, 2))
}

func TestSymbolsDistinct(t *testing.T) {
	names := Symbols(50)

	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n])
		seen[n] = true
	}
}
