package blobstore

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/asro/internal/cache"
)

type countingStore struct {
	*MemoryStore
	reads atomic.Int64
}

type countingBlob struct {
	Blob
	s *countingStore
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, s: s}, nil
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.s.reads.Add(1)
	return b.Blob.ReadAt(ctx, p, off)
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestCachingBlobReadAt(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	data := pattern(1000)
	require.NoError(t, inner.Put(ctx, "blob", data))

	store := NewCachingStore(inner, cache.NewLRU(1<<20), 64)
	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	// Spans blocks 1..3.
	buf := make([]byte, 150)
	n, err := blob.ReadAt(ctx, buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 150, n)
	assert.Equal(t, data[100:250], buf)
	assert.Equal(t, int64(3), inner.reads.Load())

	// Fully cached.
	n, err = blob.ReadAt(ctx, buf[:50], 130)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, data[130:180], buf[:50])
	assert.Equal(t, int64(3), inner.reads.Load())

	// Short tail block.
	tail := make([]byte, 20)
	n, err = blob.ReadAt(ctx, tail, 990)
	assert.Error(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, data[990:], tail[:10])

	_, err = blob.ReadAt(ctx, tail, 1000)
	assert.Error(t, err)
}

func TestCachingStoreInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "blob", []byte("old contents")))

	c := cache.NewLRU(1 << 20)
	store := NewCachingStore(inner, c, 4)

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "old", string(buf))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, store.Put(ctx, "blob", []byte("new contents")))
	assert.Equal(t, 0, c.Len())

	blob, err = store.Open(ctx, "blob")
	require.NoError(t, err)
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "new", string(buf))

	require.NoError(t, store.Delete(ctx, "blob"))
	assert.Equal(t, 0, c.Len())
	_, err = store.Open(ctx, "blob")
	assert.ErrorIs(t, err, ErrNotFound)
}
