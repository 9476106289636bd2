package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable named blobs. Implementations must be safe for
// concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts a streaming write. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// RangeReader is implemented by blobs that can stream a byte range.
type RangeReader interface {
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// Mappable is implemented by blobs backed by a memory mapping.
type Mappable interface {
	// Bytes returns the mapped contents. The slice is valid until Close.
	Bytes() ([]byte, error)
}

// WritableBlob is a blob under construction.
type WritableBlob interface {
	io.Writer
	io.Closer
	Sync() error
}

// Aborter is implemented by writable blobs that can discard a partial write.
type Aborter interface {
	Abort() error
}

// NewReaderAt binds ctx to b so it can serve as an io.ReaderAt.
func NewReaderAt(ctx context.Context, b Blob) io.ReaderAt {
	return &readerAt{ctx: ctx, b: b}
}

type readerAt struct {
	ctx context.Context
	b   Blob
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	return r.b.ReadAt(r.ctx, p, off)
}

// Copy streams all of src into a new blob called name.
func Copy(ctx context.Context, store BlobStore, name string, src io.Reader) (int64, error) {
	w, err := store.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, src)
	if err == nil {
		err = w.Sync()
	}
	if err != nil {
		abort(w)
		return n, err
	}
	return n, w.Close()
}

func abort(w WritableBlob) {
	if a, ok := w.(Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}
