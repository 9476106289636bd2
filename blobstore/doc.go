// Package blobstore abstracts the remote stores archived containers are
// pushed to and read back from.
//
// A container is an ordinary file on local disk. Archiving copies a
// committed container into a BlobStore; OpenRemote reads it back in
// read-only mode through a Blob, usually wrapped in a CachingStore so
// that the header and metadata region are fetched once.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local filesystem, read through mmap
//   - MemoryStore: an in-process map, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Blobs take a context on every read. NewReaderAt binds one so a Blob can
// back an io.ReaderAt:
//
//	blob, err := store.Open(ctx, "scans/0001.asro")
//	r := blobstore.NewReaderAt(ctx, blob)
package blobstore
