package vault

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tickpack"
	"github.com/hupe1980/tickpack/blobstore"
	"github.com/hupe1980/tickpack/resource"
	"github.com/hupe1980/tickpack/testutil"
)

func testSeries(seed int64, symbols, ticks int) *tickpack.Series {
	rng := testutil.NewRNG(seed)
	rows := rng.RandomWalk(symbols, ticks, testutil.DefaultWalkConfig())
	return &tickpack.Series{
		Symbols:    testutil.Symbols(symbols),
		Timestamps: rng.Timestamps(ticks, 1_700_000_000, 5),
		Ticks:      testutil.Prices(rows, tickpack.DefaultScale),
	}
}

func newTestVault(t *testing.T, store blobstore.BlobStore, opts ...Option) *Vault {
	t.Helper()
	v, err := New(store, opts...)
	require.NoError(t, err)
	return v
}

func TestVault_RoundTrip(t *testing.T) {
	stores := map[string]blobstore.BlobStore{
		"memory": blobstore.NewMemoryStore(),
		"local":  blobstore.NewLocalStore(filepath.Join(t.TempDir(), "vault")),
	}

	for storeName, store := range stores {
		for _, c := range []Compression{None, LZ4, Zstd, S2} {
			t.Run(fmt.Sprintf("%s/%s", storeName, c), func(t *testing.T) {
				ctx := context.Background()
				v := newTestVault(t, store, WithCompression(c))
				s := testSeries(int64(c)+1, 6, 500)

				name, err := v.SaveSeries(ctx, "", s)
				require.NoError(t, err)
				assert.True(t, strings.HasSuffix(name, Ext))

				got, err := v.LoadSeries(ctx, name)
				require.NoError(t, err)
				assert.Equal(t, s.Symbols, got.Symbols)
				assert.Equal(t, s.Timestamps, got.Timestamps)
				assert.Equal(t, testutil.Fixed(s.Ticks, tickpack.DefaultScale), testutil.Fixed(got.Ticks, tickpack.DefaultScale))

				info, err := v.Stat(ctx, name)
				require.NoError(t, err)
				assert.Equal(t, c.String(), info.Compression)
				assert.Equal(t, 500, info.Archive.TickCount)
				assert.Equal(t, info.Archive.Size, info.ArchiveSize)
				if !info.Compressed {
					assert.Equal(t, info.ArchiveSize, info.StoredSize)
				}

				require.NoError(t, v.Delete(ctx, name))
				_, err = v.Load(ctx, name)
				assert.ErrorIs(t, err, blobstore.ErrNotFound)
			})
		}
	}
}

func TestVault_SaveRejectsCorruptArchive(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	v := newTestVault(t, store)

	archive, err := tickpack.EncodeSeries(testSeries(1, 2, 10))
	require.NoError(t, err)
	archive[len(archive)/2] ^= 0x01

	err = v.Save(ctx, "bad.tpk", archive)
	assert.ErrorIs(t, err, tickpack.ErrChecksumMismatch)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestVault_DetectsBlobCorruption(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	v := newTestVault(t, store, WithCompression(Zstd))

	name, err := v.SaveSeries(ctx, "eurusd.tpk", testSeries(2, 3, 200))
	require.NoError(t, err)

	blob, err := blobstore.Get(ctx, store, name)
	require.NoError(t, err)

	for _, off := range []int{0, framePrefixSize - 1, framePrefixSize + 3, len(blob) / 2, len(blob) - 1} {
		corrupt := bytes.Clone(blob)
		corrupt[off] ^= 0x40
		require.NoError(t, store.Put(ctx, "corrupt.tpk", corrupt))

		_, err := v.Load(ctx, "corrupt.tpk")
		assert.ErrorIs(t, err, ErrCorruptBlob, "offset %d", off)
	}

	require.NoError(t, store.Put(ctx, "short.tpk", blob[:frameOverhead-1]))
	_, err = v.Load(ctx, "short.tpk")
	assert.ErrorIs(t, err, ErrCorruptBlob)
}

func TestVault_VerifyReportsArchiveFailures(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	v := newTestVault(t, store)

	name, err := v.SaveSeries(ctx, "ok.tpk", testSeries(3, 2, 50))
	require.NoError(t, err)

	report, err := v.Verify(ctx, name)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, 50, report.Ticks)

	// A frame with a valid envelope around a damaged archive.
	archive, err := v.Load(ctx, name)
	require.NoError(t, err)
	archive[len(archive)-1] ^= 0xFF
	framed, err := encodeFrame(archive, None)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "damaged.tpk", framed))

	report, err = v.Verify(ctx, "damaged.tpk")
	require.NoError(t, err)
	assert.False(t, report.OK)
	assert.Equal(t, tickpack.KindChecksumMismatch, report.Kind)

	_, err = v.LoadSeries(ctx, "damaged.tpk")
	assert.ErrorIs(t, err, tickpack.ErrChecksumMismatch)
}

func TestVault_Batch(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{
		MaxWorkers:         3,
		MemoryLimitBytes:   1 << 20,
		IOLimitBytesPerSec: 1 << 30,
	})
	v := newTestVault(t, blobstore.NewMemoryStore(), WithCompression(LZ4), WithController(rc))

	items := make([]Item, 10)
	for i := range items {
		items[i] = Item{Series: testSeries(int64(i), 4, 100)}
	}
	items[0].Name = "first.tpk"

	names, err := v.SaveBatch(ctx, items)
	require.NoError(t, err)
	require.Len(t, names, len(items))
	assert.Equal(t, "first.tpk", names[0])

	listed, err := v.List(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, names, listed)

	loaded, err := v.LoadBatch(ctx, names)
	require.NoError(t, err)
	for i, s := range loaded {
		assert.Equal(t, items[i].Series.Symbols, s.Symbols)
		assert.Equal(t, items[i].Series.Timestamps, s.Timestamps)
	}

	assert.Zero(t, rc.MemoryUsage())
	assert.Positive(t, rc.IOBytes())
}

func TestVault_BatchFailure(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, blobstore.NewMemoryStore())

	items := []Item{
		{Series: testSeries(1, 2, 10)},
		{Series: &tickpack.Series{Symbols: []string{"A"}}},
	}
	_, err := v.SaveBatch(ctx, items)
	assert.ErrorIs(t, err, tickpack.ErrInvalidInput)
	assert.ErrorContains(t, err, "batch item 1")

	_, err = v.LoadBatch(ctx, []string{"missing.tpk"})
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestVault_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64})
	v := newTestVault(t, blobstore.NewMemoryStore(), WithController(rc))

	name, err := v.SaveSeries(ctx, "", testSeries(4, 4, 100))
	require.NoError(t, err)

	_, err = v.LoadSeries(ctx, name)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
}

func TestVault_ArchiveOptions(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, blobstore.NewMemoryStore(), WithArchiveOptions(tickpack.WithScale(4)))

	s := &tickpack.Series{
		Symbols: []string{"EURUSD"},
		Ticks:   [][]float64{{1.0851}, {1.0852}, {1.0849}},
	}
	name, err := v.SaveSeries(ctx, "eurusd.tpk", s)
	require.NoError(t, err)

	info, err := v.Stat(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), info.Archive.Scale)

	got, err := v.LoadSeries(ctx, name)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.0851, 1.0852, 1.0849}, []float64{got.Ticks[0][0], got.Ticks[1][0], got.Ticks[2][0]}, 1e-9)
}

func TestVault_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(blobstore.NewMemoryStore(), WithCompression(Compression(42)))
	assert.Error(t, err)

	v := newTestVault(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	assert.ErrorIs(t, v.Save(ctx, "", nil), ErrInvalidName)
	assert.ErrorIs(t, v.Delete(ctx, ""), ErrInvalidName)
	_, err = v.Load(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidName)

	c, err := ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, c)
}

func TestVault_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := tickpack.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	v := newTestVault(t, blobstore.NewMemoryStore(), WithLogger(logger), WithCompression(S2))

	_, err := v.SaveSeries(context.Background(), "logged.tpk", testSeries(5, 2, 20))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"encode completed"`)
	assert.Contains(t, out, `"msg":"archive stored"`)
	assert.Contains(t, out, `"archive":"logged.tpk"`)
	assert.Contains(t, out, `"codec":"s2"`)

	info, err := v.Stat(context.Background(), "logged.tpk")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf(`"blob_bytes":%d`, info.BlobSize))
}
