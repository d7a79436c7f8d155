package tickpack

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/hupe1980/tickpack/internal/delta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOptionsDefaults(t *testing.T) {
	o := applyOptions(nil)

	assert.Equal(t, DefaultScale, o.scale)
	assert.Equal(t, delta.DefaultThresholds(), o.thresholds)
	assert.IsType(t, NoopMetricsCollector{}, o.metricsCollector)
	assert.NotNil(t, o.logger)
	require.NoError(t, o.validate())
}

func TestApplyOptionsNil(t *testing.T) {
	o := applyOptions([]Option{nil, WithLogger(nil), WithMetricsCollector(nil)})

	assert.NotNil(t, o.logger)
	assert.IsType(t, NoopMetricsCollector{}, o.metricsCollector)
}

func TestMetricsCollector(t *testing.T) {
	mc := &BasicMetricsCollector{}
	symbols, ticks := workedExample()

	data, err := Encode(symbols, ticks, WithMetricsCollector(mc))
	require.NoError(t, err)
	_, err = Encode(nil, ticks, WithMetricsCollector(mc))
	require.Error(t, err)

	_, err = Decode(data, WithMetricsCollector(mc))
	require.NoError(t, err)

	data[len(data)-1] ^= 0xFF
	_, err = Decode(data, WithMetricsCollector(mc))
	require.Error(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.EncodeCount)
	assert.Equal(t, int64(1), stats.EncodeErrors)
	assert.Equal(t, int64(3), stats.EncodeTicks)
	assert.Equal(t, int64(len(data)), stats.EncodeBytes)
	assert.Equal(t, int64(2), stats.DecodeCount)
	assert.Equal(t, int64(1), stats.DecodeErrors)
	assert.Equal(t, int64(1), stats.ChecksumFailures)
	assert.Equal(t, int64(3), stats.DecodeTicks)
	assert.Equal(t, int64(2*len(data)), stats.DecodeBytes)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	symbols, ticks := workedExample()

	data, err := Encode(symbols, ticks, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"encode completed"`)
	assert.Contains(t, buf.String(), `"ticks":3`)

	buf.Reset()
	_, err = Decode(data[:10], WithLogger(logger))
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"msg":"decode failed"`)
	assert.Contains(t, buf.String(), `"kind":"truncated-stream"`)
}

func TestNoopLoggerDiscards(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(t.Context(), slog.LevelError))
}
