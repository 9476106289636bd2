package container

import (
	"errors"
	"fmt"

	"github.com/hupe1980/asro/internal/alloc"
)

var (
	// ErrBadMagic is returned when a file does not start with the container magic.
	ErrBadMagic = errors.New("bad magic")

	// ErrShortRead is returned when fewer bytes than requested could be read.
	ErrShortRead = errors.New("short read")

	// ErrShortWrite is returned when fewer bytes than requested could be written.
	ErrShortWrite = errors.New("short write")

	// ErrNotFound is returned when a key is not in the directory.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt is returned when stored metadata or a payload fails to decode.
	ErrCorrupt = errors.New("data corruption detected")

	// ErrInterrupted is returned when a file was left with an open write
	// transaction and recovery is not enabled.
	ErrInterrupted = errors.New("interrupted write transaction")

	// ErrExhausted is returned when the allocator cannot place a payload.
	ErrExhausted = alloc.ErrExhausted

	// ErrReadOnly is returned when a mutation is attempted on a read-only file.
	ErrReadOnly = errors.New("container is read-only")

	// ErrClosed is returned when an operation is attempted on a closed file.
	ErrClosed = errors.New("container closed")
)

// Operation names used in OpError.
const (
	OpOpen   = "open"
	OpRead   = "read"
	OpBegin  = "begin"
	OpWrite  = "write"
	OpDelete = "delete"
	OpCommit = "commit"
	OpClose  = "close"
)

// OpError records a failed container operation.
//
// The cause can be inspected with errors.Is and errors.As.
type OpError struct {
	Op   string
	Path string
	Key  *Key
	Err  error
}

func (e *OpError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("container: %s %s in %s: %v", e.Op, e.Key, e.Path, e.Err)
	}
	return fmt.Sprintf("container: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func (f *File) opErr(op string, k *Key, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Path: f.path, Key: k, Err: err}
}
