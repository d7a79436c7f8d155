package tickpack

import (
	"fmt"
	"math"
)

// Series is a synchronized price history: one row per tick, one column per symbol.
type Series struct {
	// Symbols names the columns. Order is fixed for the lifetime of an archive.
	Symbols []string
	// Timestamps optionally holds one non-decreasing timestamp per tick. Every
	// timestamp must lie within 2^32-1 units of the first one.
	Timestamps []int64
	// Ticks holds the prices, Ticks[t][s] being symbol s at tick t.
	Ticks [][]float64
}

// Validate checks the shape of the series.
func (s *Series) Validate() error {
	if len(s.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols", ErrInvalidInput)
	}
	if uint64(len(s.Symbols)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d symbols exceed the 32-bit count", ErrInvalidInput, len(s.Symbols))
	}

	seen := make(map[string]int, len(s.Symbols))
	for i, name := range s.Symbols {
		if name == "" || len(name) > MaxSymbolNameLen {
			return fmt.Errorf("%w: symbol %d name must be 1..%d bytes, got %d",
				ErrInvalidInput, i, MaxSymbolNameLen, len(name))
		}
		if j, dup := seen[name]; dup {
			return fmt.Errorf("%w: symbol %q at %d and %d", ErrInvalidInput, name, j, i)
		}
		seen[name] = i
	}

	if len(s.Ticks) == 0 {
		return fmt.Errorf("%w: no ticks", ErrInvalidInput)
	}
	if uint64(len(s.Ticks)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d ticks exceed the 32-bit count", ErrInvalidInput, len(s.Ticks))
	}
	for t, row := range s.Ticks {
		if len(row) != len(s.Symbols) {
			return fmt.Errorf("%w: tick %d has %d prices for %d symbols",
				ErrInvalidInput, t, len(row), len(s.Symbols))
		}
	}

	if s.Timestamps == nil {
		return nil
	}
	if len(s.Timestamps) != len(s.Ticks) {
		return fmt.Errorf("%w: %d timestamps for %d ticks", ErrInvalidInput, len(s.Timestamps), len(s.Ticks))
	}
	base := s.Timestamps[0]
	for t := 1; t < len(s.Timestamps); t++ {
		ts := s.Timestamps[t]
		if ts < s.Timestamps[t-1] {
			return fmt.Errorf("%w: timestamp at tick %d goes backwards", ErrInvalidInput, t)
		}
		// Subtraction in uint64 avoids overflow for extreme int64 inputs.
		if uint64(ts)-uint64(base) > math.MaxUint32 {
			return fmt.Errorf("%w: timestamp at tick %d is more than 2^32-1 after the first", ErrInvalidInput, t)
		}
	}
	return nil
}

// Len returns the number of ticks.
func (s *Series) Len() int { return len(s.Ticks) }

// RawSize estimates the uncompressed footprint of a series: eight bytes per price
// plus eight per timestamp.
func RawSize(s *Series) int {
	size := len(s.Ticks) * len(s.Symbols) * 8
	if s.Timestamps != nil {
		size += len(s.Timestamps) * 8
	}
	return size
}

// CompressionRatio returns the fraction of space saved, 1 - compressed/raw.
// It returns 0 when rawSize is not positive.
func CompressionRatio(rawSize, compressedSize int) float64 {
	if rawSize <= 0 {
		return 0
	}
	return 1 - float64(compressedSize)/float64(rawSize)
}
