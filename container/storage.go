package container

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/asro/internal/fs"
)

// Storage is the random-access byte store a container lives in.
type Storage interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
	Size() (int64, error)
}

type fileStorage struct {
	fs.File
}

func (s fileStorage) Size() (int64, error) {
	fi, err := s.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// NewReadOnlyStorage wraps a reader of known size. Writes fail with
// ErrReadOnly. closeFn may be nil.
func NewReadOnlyStorage(r io.ReaderAt, size int64, closeFn func() error) Storage {
	return &readOnlyStorage{r: r, size: size, closeFn: closeFn}
}

type readOnlyStorage struct {
	r       io.ReaderAt
	size    int64
	closeFn func() error
}

func (s *readOnlyStorage) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *readOnlyStorage) WriteAt([]byte, int64) (int, error)      { return 0, ErrReadOnly }
func (s *readOnlyStorage) Sync() error                             { return nil }
func (s *readOnlyStorage) Size() (int64, error)                    { return s.size, nil }

func (s *readOnlyStorage) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// readFull reads exactly len(buf) bytes at off.
func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %d of %d bytes at %d: %w", ErrShortRead, n, len(buf), off, err)
	}
	return fmt.Errorf("%w: %d of %d bytes at %d", ErrShortRead, n, len(buf), off)
}

// writeFull writes all of buf at off.
func writeFull(w io.WriterAt, buf []byte, off int64) error {
	n, err := w.WriteAt(buf, off)
	if n == len(buf) && err == nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %d of %d bytes at %d: %w", ErrShortWrite, n, len(buf), off, err)
	}
	return fmt.Errorf("%w: %d of %d bytes at %d", ErrShortWrite, n, len(buf), off)
}
