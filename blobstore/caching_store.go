package blobstore

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/asro/internal/cache"
)

// DefaultBlockSize is the cache block size used when none is given.
const DefaultBlockSize = 64 * 1024

// maxParallelFetch bounds concurrent block fetches for one read.
const maxParallelFetch = 16

// CachingStore wraps a BlobStore and caches blob reads in fixed-size blocks.
// Blobs are immutable, so entries are only invalidated when a blob is
// replaced or deleted through the store.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore creates a new CachingStore.
// blockSize defaults to DefaultBlockSize if <= 0.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachingStore{
		inner:     inner,
		cache:     c,
		blockSize: blockSize,
	}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      name,
		blockSize: s.blockSize,
	}, nil
}

// Create passes through; the blob's cached blocks are dropped so the new
// contents are read once the write completes.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(name)
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(key cache.Key) bool {
		return key.Path == name
	})
}

// CachingBlob wraps a Blob and serves reads from the block cache.
type CachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

func (b *CachingBlob) Close() error {
	return b.inner.Close()
}

func (b *CachingBlob) Size() int64 {
	return b.inner.Size()
}

func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.inner.Size()
	if off < 0 || off >= size {
		return 0, io.EOF
	}

	end := min(off+int64(len(p)), size)
	first := off / b.blockSize
	last := (end - 1) / b.blockSize

	blocks, err := b.blocks(ctx, first, last)
	if err != nil {
		return 0, err
	}

	n := 0
	for i, data := range blocks {
		start := (first + int64(i)) * b.blockSize
		lo := max(off-start, 0)
		hi := min(end-start, int64(len(data)))
		n += copy(p[n:], data[lo:hi])
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// blocks returns blocks first..last, fetching the missing ones in parallel.
func (b *CachingBlob) blocks(ctx context.Context, first, last int64) ([][]byte, error) {
	out := make([][]byte, last-first+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetch)
	for blk := first; blk <= last; blk++ {
		key := cache.Key{Path: b.name, Block: blk}
		if data, ok := b.cache.Get(ctx, key); ok {
			out[blk-first] = data
			continue
		}
		g.Go(func() error {
			data, err := b.fetch(gctx, blk)
			if err != nil {
				return err
			}
			b.cache.Set(gctx, key, data)
			out[blk-first] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *CachingBlob) fetch(ctx context.Context, blk int64) ([]byte, error) {
	start := blk * b.blockSize
	length := min(b.blockSize, b.inner.Size()-start)
	buf := make([]byte, length)

	n, err := b.inner.ReadAt(ctx, buf, start)
	if errors.Is(err, io.EOF) && int64(n) == length {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}
