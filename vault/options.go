package vault

import (
	"github.com/hupe1980/tickpack"
	"github.com/hupe1980/tickpack/internal/compress"
	"github.com/hupe1980/tickpack/resource"
)

// Compression selects the block codec applied to archives before they are stored.
type Compression = compress.Codec

// Supported compression codecs.
const (
	None = compress.None
	LZ4  = compress.LZ4
	Zstd = compress.Zstd
	S2   = compress.S2
)

// ParseCompression resolves a codec by name ("none", "lz4", "zstd", "s2").
func ParseCompression(name string) (Compression, error) {
	return compress.ParseCodec(name)
}

type options struct {
	compression Compression
	controller  *resource.Controller
	logger      *tickpack.Logger
	archiveOpts []tickpack.Option
}

// Option configures a Vault.
type Option func(*options)

// WithCompression sets the codec for newly stored archives. Loading reads the
// codec from each blob.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithController bounds concurrency, memory and IO with rc.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithLogger sets the logger. The same logger is passed to Encode and Decode.
func WithLogger(l *tickpack.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = tickpack.NoopLogger()
		}
		o.logger = l
	}
}

// WithArchiveOptions sets the options passed to tickpack.EncodeSeries and tickpack.Decode.
func WithArchiveOptions(opts ...tickpack.Option) Option {
	return func(o *options) {
		o.archiveOpts = append(o.archiveOpts, opts...)
	}
}
