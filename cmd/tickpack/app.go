package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hupe1980/tickpack"
	"github.com/hupe1980/tickpack/blobstore"
	"github.com/hupe1980/tickpack/blobstore/minio"
	"github.com/hupe1980/tickpack/blobstore/s3"
	"github.com/hupe1980/tickpack/codec"
	"github.com/hupe1980/tickpack/internal/config"
	"github.com/hupe1980/tickpack/resource"
	"github.com/hupe1980/tickpack/vault"
)

type app struct {
	cfg    *config.Config
	logger *tickpack.Logger
	vault  *vault.Vault
	out    codec.Codec

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(ctx context.Context, cfg *config.Config, out codec.Codec, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	compression, err := vault.ParseCompression(cfg.Vault.Compression)
	if err != nil {
		return nil, err
	}

	rc := resource.NewController(resource.Config{
		MaxWorkers:         cfg.Vault.Workers,
		MemoryLimitBytes:   cfg.Vault.MemoryLimitBytes,
		IOLimitBytesPerSec: cfg.Vault.IOLimitBytesPerSec,
	})

	v, err := vault.New(store,
		vault.WithCompression(compression),
		vault.WithController(rc),
		vault.WithLogger(logger),
		vault.WithArchiveOptions(archiveOptions(cfg.Archive)...),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		vault:  v,
		out:    out,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func archiveOptions(c config.ArchiveConfig) []tickpack.Option {
	return []tickpack.Option{
		tickpack.WithScale(*c.Scale),
		tickpack.WithTierThresholds(*c.SmallTier, *c.MediumTier),
	}
}

func newLogger(c config.LogConfig, w io.Writer) (*tickpack.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return tickpack.NewLogger(slog.NewJSONHandler(w, opts)), nil
	}
	return tickpack.NewLogger(slog.NewTextHandler(w, opts)), nil
}

func openStore(ctx context.Context, c config.StoreConfig) (blobstore.BlobStore, error) {
	switch strings.ToLower(c.Type) {
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "local":
		return blobstore.NewLocalStore(c.Path), nil
	case "s3":
		opts := []s3.Option{s3.WithPrefix(c.Prefix)}
		if c.Region != "" {
			opts = append(opts, s3.WithRegion(c.Region))
		}
		if c.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(c.Endpoint))
		}
		return s3.New(ctx, c.Bucket, opts...)
	case "minio":
		return minio.New(minio.Config{
			Endpoint:  c.Endpoint,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Region:    c.Region,
			Secure:    c.Secure,
			Bucket:    c.Bucket,
			Prefix:    c.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown store type %q", c.Type)
	}
}

// emit writes v as one JSON document per line.
func (a *app) emit(v any) error {
	data, err := a.out.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = a.stdout.Write(data)
	return err
}
