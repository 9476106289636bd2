package asro

import (
	"context"
	"io"

	"github.com/hupe1980/asro/blobstore"
	"github.com/hupe1980/asro/container"
	"github.com/hupe1980/asro/internal/cache"
)

// DefaultRemoteCacheSize is the block cache size OpenRemote uses unless
// WithRemoteCache says otherwise.
const DefaultRemoteCacheSize = 8 << 20

// WithRemoteCache sets the block cache OpenRemote reads through. A size of
// zero disables caching; blockSize <= 0 selects blobstore.DefaultBlockSize.
func WithRemoteCache(size, blockSize int64) Option {
	return func(o *options) {
		o.remoteCacheSize = max(size, 0)
		o.remoteBlockSize = blockSize
	}
}

// Archive uploads the committed container at path to store as name and
// returns the number of bytes copied.
//
// The file is validated by opening it read-only first, so a file left
// mid-transaction is refused with ErrInterrupted and a damaged one with
// the error Open reports. Uncommitted writes held by other handles are not
// part of the upload.
func Archive(ctx context.Context, path string, store blobstore.BlobStore, name string, optFns ...Option) (int64, error) {
	o := applyOptions(optFns)
	o.recovery = false

	n, err := archive(ctx, o, path, store, name)
	o.logger.LogArchive(ctx, path, name, n, err)
	return n, err
}

func archive(ctx context.Context, o options, path string, store blobstore.BlobStore, name string) (int64, error) {
	f, err := container.Open(path, false, o.containerOptions(container.WithReadOnly())...)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st := f.Storage()
	size, err := st.Size()
	if err != nil {
		return 0, err
	}
	return blobstore.Copy(ctx, store, name, io.NewSectionReader(st, 0, size))
}

// OpenRemote opens the archived container name in store read-only. Reads
// go through a block cache and are bound to ctx; the returned file must
// not be used after ctx is done.
func OpenRemote(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*container.File, error) {
	o := applyOptions(optFns)
	o.recovery = false

	if o.remoteCacheSize > 0 {
		store = blobstore.NewCachingStore(store, cache.NewLRU(o.remoteCacheSize), o.remoteBlockSize)
	}
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, &container.OpError{Op: container.OpOpen, Path: name, Err: err}
	}
	st := container.NewReadOnlyStorage(blobstore.NewReaderAt(ctx, blob), blob.Size(), blob.Close)
	return container.OpenStorage(st, name, true, o.containerOptions()...)
}
