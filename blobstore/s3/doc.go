// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("archive/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	err = asro.Archive(ctx, "scan.asro", store, "2026/scan.asro")
//
// # Features
//
//   - Range reads for partial fetches of archived containers
//   - Multipart uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable key prefix
package s3
