package config

import (
	"github.com/hupe1980/tickpack"
)

// Default values for optional configuration fields.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultStoreType   = "local"
	DefaultStorePath   = "archives"
	DefaultCompression = "zstd"
	DefaultWorkers     = 4
)

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if c.Archive.Scale == nil {
		c.Archive.Scale = ptr(tickpack.DefaultScale)
	}
	if c.Archive.SmallTier == nil {
		c.Archive.SmallTier = ptr(uint8(tickpack.DefaultSmallTier))
	}
	if c.Archive.MediumTier == nil {
		c.Archive.MediumTier = ptr(uint8(tickpack.DefaultMediumTier))
	}

	if c.Store.Type == "" {
		c.Store.Type = DefaultStoreType
	}
	if c.Store.Type == "local" && c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}

	if c.Vault.Compression == "" {
		c.Vault.Compression = DefaultCompression
	}
	if c.Vault.Workers == 0 {
		c.Vault.Workers = DefaultWorkers
	}
}

func ptr[T any](v T) *T { return &v }
