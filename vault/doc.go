// Package vault stores tickpack archives in a blobstore.BlobStore.
//
// Each archive is verified before it is written, optionally compressed with
// LZ4, zstd or S2, and wrapped in a small frame carrying its own CRC32 so that
// storage corruption is reported before the archive is decoded:
//
//	store := blobstore.NewLocalStore("/var/lib/ticks")
//	v, err := vault.New(store,
//	    vault.WithCompression(vault.Zstd),
//	    vault.WithController(resource.NewController(resource.Config{MaxWorkers: 4})),
//	)
//
//	name, err := v.SaveSeries(ctx, "", series)
//	series, err = v.LoadSeries(ctx, name)
//
// SaveBatch and LoadBatch run concurrently, bounded by the resource controller.
package vault
