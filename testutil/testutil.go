package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/tickpack/fixedpoint"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63n returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63n(n)
}

// WalkConfig shapes a random price walk. Probabilities are per symbol per tick and
// are checked in order: Hold, then Small, then Medium; the rest are jumps.
type WalkConfig struct {
	Start  int64   // first value of every symbol
	Spread int64   // first values are drawn from [Start, Start+Spread)
	Hold   float64 // probability a symbol keeps its value
	Small  float64 // probability of a step within ±7
	Medium float64 // probability of a step within ±127
	Jump   int64   // magnitude bound of the remaining steps
}

// DefaultWalkConfig mixes unchanged symbols with every delta tier.
func DefaultWalkConfig() WalkConfig {
	return WalkConfig{
		Start:  10_000,
		Spread: 90_000,
		Hold:   0.4,
		Small:  0.3,
		Medium: 0.2,
		Jump:   50_000,
	}
}

// RandomWalk returns ticks×symbols fixed-point rows. Values never drop below 1.
func (r *RNG) RandomWalk(symbols, ticks int, cfg WalkConfig) [][]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make([][]int64, ticks)
	if ticks == 0 {
		return rows
	}

	first := make([]int64, symbols)
	for s := range first {
		first[s] = cfg.Start
		if cfg.Spread > 0 {
			first[s] += r.rand.Int63n(cfg.Spread)
		}
	}
	rows[0] = first

	for t := 1; t < ticks; t++ {
		row := append([]int64(nil), rows[t-1]...)
		for s := range row {
			p := r.rand.Float64()
			var step int64
			switch {
			case p < cfg.Hold:
			case p < cfg.Hold+cfg.Small:
				step = r.rand.Int63n(15) - 7
			case p < cfg.Hold+cfg.Small+cfg.Medium:
				step = r.rand.Int63n(255) - 127
			case cfg.Jump > 0:
				step = r.rand.Int63n(2*cfg.Jump+1) - cfg.Jump
			}
			row[s] = max(row[s]+step, 1)
		}
		rows[t] = row
	}
	return rows
}

// Timestamps returns n non-decreasing timestamps starting at start, each step drawn
// from [0, maxStep].
func (r *RNG) Timestamps(n int, start, maxStep int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := make([]int64, n)
	cur := start
	for i := range ts {
		ts[i] = cur
		cur += r.rand.Int63n(maxStep + 1)
	}
	return ts
}

// Symbols returns n distinct symbol names.
func Symbols(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("SYM%04d", i)
	}
	return out
}

// Prices converts fixed-point rows to float prices at scale.
func Prices(rows [][]int64, scale uint8) [][]float64 {
	out := make([][]float64, len(rows))
	for t, row := range rows {
		prices := make([]float64, len(row))
		for s, v := range row {
			prices[s] = fixedpoint.FromFixed(v, scale)
		}
		out[t] = prices
	}
	return out
}

// Fixed converts float prices back to fixed-point rows at scale. It panics on
// values that do not fit.
func Fixed(prices [][]float64, scale uint8) [][]int64 {
	out := make([][]int64, len(prices))
	for t, row := range prices {
		vals := make([]int64, len(row))
		for s, p := range row {
			v, err := fixedpoint.ToFixed(p, scale)
			if err != nil {
				panic(fmt.Sprintf("testutil: tick %d symbol %d: %v", t, s, err))
			}
			vals[s] = v
		}
		out[t] = vals
	}
	return out
}
