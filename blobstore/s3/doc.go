// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "market-data",
//	    s3.WithPrefix("archives/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	v := vault.New(store)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for large archives
//   - Automatic pagination for listing
//   - Configurable key prefix
package s3
