package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("abcdef")
	require.NoError(t, store.Put(ctx, "a/1", data))
	data[0] = 'X' // Put copies

	blob, err := store.Open(ctx, "a/1")
	require.NoError(t, err)
	buf := make([]byte, 3)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(buf))

	n, err = blob.ReadAt(ctx, buf, 4)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)

	require.NoError(t, blob.Close())
	_, err = blob.ReadAt(ctx, buf, 0)
	assert.Error(t, err)

	require.NoError(t, store.Put(ctx, "b", nil))
	names, err := store.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1"}, names)

	require.NoError(t, store.Delete(ctx, "a/1"))
	_, err = store.Open(ctx, "a/1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCanceled(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "x", []byte("x")))
	blob, err := store.Open(context.Background(), "x")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = blob.ReadAt(ctx, make([]byte, 1), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	n, err := Copy(ctx, store, "c", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	blob, err := store.Open(ctx, "c")
	require.NoError(t, err)
	got, err := io.ReadAll(io.NewSectionReader(NewReaderAt(ctx, blob), 0, blob.Size()))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	_, err = Copy(ctx, store, "broken", io.MultiReader(bytes.NewReader([]byte("half")), failingReader{}))
	require.Error(t, err)
	_, err = store.Open(ctx, "broken")
	assert.ErrorIs(t, err, ErrNotFound, "aborted copies leave nothing behind")
}
