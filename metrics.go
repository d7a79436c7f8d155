package tickpack

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting codec metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordEncode is called after each encode. size is the archive length in bytes.
	RecordEncode(ticks, size int, duration time.Duration, err error)

	// RecordDecode is called after each decode. size is the archive length in bytes.
	RecordDecode(ticks, size int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEncode(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDecode(int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	EncodeCount      atomic.Int64
	EncodeErrors     atomic.Int64
	EncodeTicks      atomic.Int64
	EncodeBytes      atomic.Int64
	EncodeTotalNanos atomic.Int64
	DecodeCount      atomic.Int64
	DecodeErrors     atomic.Int64
	ChecksumFailures atomic.Int64
	DecodeTicks      atomic.Int64
	DecodeBytes      atomic.Int64
	DecodeTotalNanos atomic.Int64
}

// RecordEncode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEncode(ticks, size int, duration time.Duration, err error) {
	b.EncodeCount.Add(1)
	b.EncodeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EncodeErrors.Add(1)
		return
	}
	b.EncodeTicks.Add(int64(ticks))
	b.EncodeBytes.Add(int64(size))
}

// RecordDecode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecode(ticks, size int, duration time.Duration, err error) {
	b.DecodeCount.Add(1)
	b.DecodeTotalNanos.Add(duration.Nanoseconds())
	b.DecodeBytes.Add(int64(size))
	if err != nil {
		b.DecodeErrors.Add(1)
		if KindOf(err) == KindChecksumMismatch {
			b.ChecksumFailures.Add(1)
		}
		return
	}
	b.DecodeTicks.Add(int64(ticks))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		EncodeCount:      b.EncodeCount.Load(),
		EncodeErrors:     b.EncodeErrors.Load(),
		EncodeTicks:      b.EncodeTicks.Load(),
		EncodeBytes:      b.EncodeBytes.Load(),
		EncodeAvgNanos:   avg(b.EncodeTotalNanos.Load(), b.EncodeCount.Load()),
		DecodeCount:      b.DecodeCount.Load(),
		DecodeErrors:     b.DecodeErrors.Load(),
		ChecksumFailures: b.ChecksumFailures.Load(),
		DecodeTicks:      b.DecodeTicks.Load(),
		DecodeBytes:      b.DecodeBytes.Load(),
		DecodeAvgNanos:   avg(b.DecodeTotalNanos.Load(), b.DecodeCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	EncodeCount      int64
	EncodeErrors     int64
	EncodeTicks      int64
	EncodeBytes      int64
	EncodeAvgNanos   int64
	DecodeCount      int64
	DecodeErrors     int64
	ChecksumFailures int64
	DecodeTicks      int64
	DecodeBytes      int64
	DecodeAvgNanos   int64
}
