package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/tickpack/fixedpoint"
	"github.com/hupe1980/tickpack/internal/compress"
	"github.com/hupe1980/tickpack/internal/delta"
)

// Validate checks that all required fields are set and values are valid.
// Call ApplyDefaults first.
func (c *Config) Validate() error {
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if err := c.Archive.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}

	if _, err := compress.ParseCodec(c.Vault.Compression); err != nil {
		return fmt.Errorf("vault.compression: %w", err)
	}
	if c.Vault.Workers < 1 {
		return errors.New("vault.workers must be >= 1")
	}
	if c.Vault.MemoryLimitBytes < 0 {
		return errors.New("vault.memory_limit_bytes must be >= 0")
	}
	if c.Vault.IOLimitBytesPerSec < 0 {
		return errors.New("vault.io_limit_bytes_per_sec must be >= 0")
	}
	return nil
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func (a ArchiveConfig) validate() error {
	if a.Scale == nil || a.SmallTier == nil || a.MediumTier == nil {
		return errors.New("archive settings are required")
	}
	if *a.Scale > fixedpoint.MaxScale {
		return fmt.Errorf("archive.scale must be between 0 and %d, got %d", fixedpoint.MaxScale, *a.Scale)
	}
	th := delta.Thresholds{Small: *a.SmallTier, Medium: *a.MediumTier}
	if err := th.Validate(); err != nil {
		return fmt.Errorf("archive.small_tier/medium_tier: %w", err)
	}
	return nil
}

func (s StoreConfig) validate() error {
	switch strings.ToLower(s.Type) {
	case "memory":
	case "local":
		if s.Path == "" {
			return errors.New("store.path is required for local stores")
		}
	case "s3":
		if s.Bucket == "" {
			return errors.New("store.bucket is required for s3 stores")
		}
	case "minio":
		if s.Endpoint == "" {
			return errors.New("store.endpoint is required for minio stores")
		}
		if s.Bucket == "" {
			return errors.New("store.bucket is required for minio stores")
		}
	default:
		return fmt.Errorf("store.type must be local, memory, s3 or minio, got %q", s.Type)
	}
	return nil
}
