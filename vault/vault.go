package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tickpack"
	"github.com/hupe1980/tickpack/blobstore"
	"github.com/hupe1980/tickpack/internal/compress"
	"github.com/hupe1980/tickpack/resource"
)

// Ext is the suffix of generated archive names.
const Ext = ".tpk"

// ErrInvalidName is returned for empty archive names.
var ErrInvalidName = errors.New("vault: invalid archive name")

// Vault stores archives in a blob store.
type Vault struct {
	store       blobstore.BlobStore
	compression Compression
	rc          *resource.Controller
	logger      *tickpack.Logger
	archiveOpts []tickpack.Option
}

// New returns a Vault over store.
func New(store blobstore.BlobStore, optFns ...Option) (*Vault, error) {
	if store == nil {
		return nil, errors.New("vault: store is required")
	}

	o := options{
		compression: None,
		logger:      tickpack.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if !o.compression.Valid() {
		return nil, fmt.Errorf("vault: %w: %d", compress.ErrUnknownCodec, o.compression)
	}

	return &Vault{
		store:       store,
		compression: o.compression,
		rc:          o.controller,
		logger:      o.logger,
		archiveOpts: append(o.archiveOpts, tickpack.WithLogger(o.logger)),
	}, nil
}

// NewName returns a fresh random archive name.
func NewName() string {
	return uuid.NewString() + Ext
}

// Save verifies archive and stores it under name.
func (v *Vault) Save(ctx context.Context, name string, archive []byte) error {
	if name == "" {
		return ErrInvalidName
	}
	if err := tickpack.Verify(archive); err != nil {
		return fmt.Errorf("vault: refusing to store %q: %w", name, err)
	}

	block, err := compress.EncodeBlock(archive, v.compression)
	if err != nil {
		return err
	}

	start := time.Now()
	w, err := v.store.Create(ctx, name)
	if err != nil {
		return err
	}

	rw := resource.NewRateLimitedWriter(ctx, w, v.rc)
	if err := writeFrame(rw, block, v.compression); err != nil {
		_ = blobstore.Discard(w)
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	v.logger.WithArchive(name).DebugContext(ctx, "archive stored",
		"codec", v.compression.String(),
		"archive_bytes", len(archive),
		"blob_bytes", frameOverhead+len(block)-compress.HeaderSize,
		"duration", time.Since(start),
	)
	return nil
}

// SaveSeries encodes s and stores it. An empty name is replaced by NewName.
// It returns the name used.
func (v *Vault) SaveSeries(ctx context.Context, name string, s *tickpack.Series) (string, error) {
	if name == "" {
		name = NewName()
	}

	if err := v.rc.AcquireWorker(ctx); err != nil {
		return "", err
	}
	archive, err := tickpack.EncodeSeries(s, v.archiveOpts...)
	v.rc.ReleaseWorker()
	if err != nil {
		return "", err
	}

	if err := v.Save(ctx, name, archive); err != nil {
		return "", err
	}
	return name, nil
}

// Load returns the archive stored under name. The frame checksum is verified,
// the archive checksums are not.
func (v *Vault) Load(ctx context.Context, name string) ([]byte, error) {
	f, err := v.readFrame(ctx, name)
	if err != nil {
		return nil, err
	}
	return f.archive()
}

// LoadSeries loads and decodes the archive stored under name.
func (v *Vault) LoadSeries(ctx context.Context, name string) (*tickpack.Series, error) {
	archive, err := v.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	meta, err := tickpack.Inspect(archive)
	if err != nil {
		return nil, fmt.Errorf("vault: %q: %w", name, err)
	}
	need := decodedSize(meta)

	if err := v.rc.AcquireWorker(ctx); err != nil {
		return nil, err
	}
	defer v.rc.ReleaseWorker()

	if err := v.rc.AcquireMemory(ctx, need); err != nil {
		return nil, err
	}
	defer v.rc.ReleaseMemory(need)

	s, err := tickpack.Decode(archive, v.archiveOpts...)
	if err != nil {
		return nil, fmt.Errorf("vault: %q: %w", name, err)
	}
	return s, nil
}

func decodedSize(m *tickpack.Metadata) int64 {
	n := int64(m.TickCount) * int64(len(m.Symbols)) * 8
	if m.HasTimestamps {
		n += int64(m.TickCount) * 8
	}
	return n
}

// Item is one series to store in a batch. An empty Name is replaced by NewName.
type Item struct {
	Name   string
	Series *tickpack.Series
}

// SaveBatch stores items concurrently and returns their names in order.
// The first failure cancels the remaining work.
func (v *Vault) SaveBatch(ctx context.Context, items []Item) ([]string, error) {
	names := make([]string, len(items))

	g, gctx := errgroup.WithContext(ctx)
	v.limit(g)
	for i, item := range items {
		g.Go(func() error {
			name, err := v.SaveSeries(gctx, item.Name, item.Series)
			if err != nil {
				return fmt.Errorf("vault: batch item %d: %w", i, err)
			}
			names[i] = name
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

// LoadBatch loads and decodes the named archives concurrently.
func (v *Vault) LoadBatch(ctx context.Context, names []string) ([]*tickpack.Series, error) {
	out := make([]*tickpack.Series, len(names))

	g, gctx := errgroup.WithContext(ctx)
	v.limit(g)
	for i, name := range names {
		g.Go(func() error {
			s, err := v.LoadSeries(gctx, name)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Vault) limit(g *errgroup.Group) {
	if n := v.rc.Config().MaxWorkers; n > 0 {
		g.SetLimit(int(n))
	}
}

// Verify checks the frame and every archive checksum, then decodes the archive.
// Storage and frame failures are returned as errors; archive failures are
// described by the report.
func (v *Vault) Verify(ctx context.Context, name string) (*tickpack.Report, error) {
	archive, err := v.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	_, report := tickpack.DecodeWithReport(archive, v.archiveOpts...)
	return report, nil
}

// Info describes a stored archive.
type Info struct {
	Name        string             `json:"name"`
	Compression string             `json:"compression"`
	Compressed  bool               `json:"compressed"`
	BlobSize    int                `json:"blob_size"`
	StoredSize  int                `json:"stored_size"`
	ArchiveSize int                `json:"archive_size"`
	BlobCRC     uint32             `json:"blob_crc"`
	Archive     *tickpack.Metadata `json:"archive"`
}

// Stat returns the frame and archive metadata of name without decoding ticks.
func (v *Vault) Stat(ctx context.Context, name string) (*Info, error) {
	f, err := v.readFrame(ctx, name)
	if err != nil {
		return nil, err
	}
	archive, err := f.archive()
	if err != nil {
		return nil, err
	}
	meta, err := tickpack.Inspect(archive)
	if err != nil {
		return nil, fmt.Errorf("vault: %q: %w", name, err)
	}

	return &Info{
		Name:        name,
		Compression: f.codec.String(),
		Compressed:  f.compressed,
		BlobSize:    f.totalBlobLen,
		StoredSize:  f.storedSize,
		ArchiveSize: f.archiveSize,
		BlobCRC:     f.checksum,
		Archive:     meta,
	}, nil
}

// List returns the stored archive names starting with prefix.
func (v *Vault) List(ctx context.Context, prefix string) ([]string, error) {
	return v.store.List(ctx, prefix)
}

// Delete removes the archive stored under name.
func (v *Vault) Delete(ctx context.Context, name string) error {
	if name == "" {
		return ErrInvalidName
	}
	return v.store.Delete(ctx, name)
}

func (v *Vault) readFrame(ctx context.Context, name string) (*frame, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	b, err := v.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if b.Size() < int64(frameOverhead) {
		return nil, fmt.Errorf("%w: %q is %d bytes", ErrCorruptBlob, name, b.Size())
	}

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(resource.NewRateLimitedReader(ctx, rc, v.rc))
	if err != nil {
		return nil, err
	}

	f, err := parseFrame(data)
	if err != nil {
		v.logger.WithArchive(name).WarnContext(ctx, "corrupt blob", "error", err)
		return nil, err
	}
	return f, nil
}
