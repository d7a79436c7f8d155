package tickpack

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/tickpack/fixedpoint"
	"github.com/hupe1980/tickpack/internal/delta"
)

// DefaultScale is the decimal exponent used when no WithScale option is given.
// At scale 2 a price of 100.01 is stored as 10001.
const DefaultScale uint8 = 2

// Default tier bounds.
const (
	DefaultSmallTier  = delta.MaxSmall
	DefaultMediumTier = delta.MaxMedium
)

type options struct {
	scale            uint8
	thresholds       delta.Thresholds
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Encode and Decode.
//
// Decode reads scale and tier bounds from the archive header, so only the logger
// and metrics options affect it.
type Option func(*options)

// WithScale sets the decimal exponent applied to prices before they are stored.
// Valid values are 0 through 9.
func WithScale(scale uint8) Option {
	return func(o *options) {
		o.scale = scale
	}
}

// WithTierThresholds overrides the inclusive bounds of the 4-bit and 8-bit delta
// tiers. small must be at most 7, medium at most 127, and small <= medium.
//
// Lower bounds push more deltas into wider tiers. They exist for tuning
// experiments; the defaults produce the smallest archives.
func WithTierThresholds(small, medium uint8) Option {
	return func(o *options) {
		o.thresholds = delta.Thresholds{Small: small, Medium: medium}
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &tickpack.BasicMetricsCollector{}
//	data, _ := tickpack.Encode(symbols, ticks, tickpack.WithMetricsCollector(metrics))
//	fmt.Println(metrics.GetStats().EncodeCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		scale:            DefaultScale,
		thresholds:       delta.DefaultThresholds(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) validate() error {
	if o.scale > fixedpoint.MaxScale {
		return fmt.Errorf("%w: scale %d exceeds %d", ErrInvalidInput, o.scale, fixedpoint.MaxScale)
	}
	if err := o.thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
