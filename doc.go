// Package asro stores named, versioned binary payloads in a single file.
//
// A container file holds any number of elements. Each element is addressed
// by a name and a cycle (generation number) and may carry named subs, for
// example the columns of a table. Payloads are compressed with LZ4 or zstd
// in self-describing chunks and placed by a best-fit free-space allocator.
// The package container implements the file format; this package adds the
// pieces applications share across a process.
//
// # Quick Start
//
//	reg := asro.NewRegistry()
//	defer reg.Close()
//
//	el, _ := asro.CreateElement(reg, "scan.asro", "img")
//	_ = el.Save("image/raw", pixels)
//	_ = el.Close()
//
//	el, _ = asro.OpenElement(reg, "scan.asro", "img", 0, asro.ModeRead)
//	data, _ := el.Load()
//
// # Sharing
//
// A Registry keys open files by device and inode, so every Acquire of one
// physical file yields the same container and uncommitted writes are seen
// by all holders. Releasing the last handle closes the file and removes it
// from disk when its last element was deleted. Acquiring read-write a file
// that is open read-only reopens it; older handles then report
// ErrStaleHandle.
//
// # Archiving
//
// Committed files can be uploaded to a blobstore.BlobStore with Archive and
// read back, read-only, with OpenRemote:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("scans/"))
//	_, _ = asro.Archive(ctx, "scan.asro", store, "2026/scan.asro")
//	f, _ := asro.OpenRemote(ctx, store, "2026/scan.asro")
//
// # Errors
//
// Failures carry a *container.OpError naming the operation; KindOf maps it
// to OpenError, ReadError, WriteError or DeleteError, and errors.Is matches
// the sentinels re-exported here.
package asro
