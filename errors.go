package asro

import (
	"errors"
	"io/fs"

	"github.com/hupe1980/asro/container"
)

// Container errors, re-exported so callers need not import the container
// package to test for them.
var (
	ErrBadMagic    = container.ErrBadMagic
	ErrShortRead   = container.ErrShortRead
	ErrShortWrite  = container.ErrShortWrite
	ErrNotFound    = container.ErrNotFound
	ErrCorrupt     = container.ErrCorrupt
	ErrInterrupted = container.ErrInterrupted
	ErrExhausted   = container.ErrExhausted
	ErrReadOnly    = container.ErrReadOnly
	ErrClosed      = container.ErrClosed
)

var (
	// ErrNotExist is returned when a file is acquired read-only but does
	// not exist. It matches fs.ErrNotExist.
	ErrNotExist = fs.ErrNotExist

	// ErrStaleHandle is returned by handles whose file was reopened
	// read-write by a later Acquire.
	ErrStaleHandle = errors.New("stale handle: file was reopened read-write")

	// ErrReleased is returned when a handle is used after Release.
	ErrReleased = errors.New("handle already released")

	// ErrCyclesExhausted is returned when a name has no free cycle left.
	ErrCyclesExhausted = errors.New("no free cycle")

	// ErrElementClosed is returned when an element is used after Close or Delete.
	ErrElementClosed = errors.New("element closed")
)

// ErrorKind classifies a failure by the operation that produced it.
type ErrorKind int

const (
	// UnknownError is an error that did not come from a container operation.
	UnknownError ErrorKind = iota
	// OpenError is a failure to open or recover a file: bad magic, permission
	// denied, short header read, interrupted transaction.
	OpenError
	// ReadError is a failure to read a payload: missing key, truncated
	// payload, decompression failure.
	ReadError
	// WriteError is a failure to store a payload or commit metadata:
	// allocator exhaustion, short write, read-only file.
	WriteError
	// DeleteError is a failure to delete a key.
	DeleteError
)

func (k ErrorKind) String() string {
	switch k {
	case OpenError:
		return "OpenError"
	case ReadError:
		return "ReadError"
	case WriteError:
		return "WriteError"
	case DeleteError:
		return "DeleteError"
	default:
		return "UnknownError"
	}
}

// KindOf returns the kind of err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return UnknownError
	}
	var oe *container.OpError
	if !errors.As(err, &oe) {
		if errors.Is(err, ErrNotExist) {
			return OpenError
		}
		return UnknownError
	}
	switch oe.Op {
	case container.OpOpen:
		return OpenError
	case container.OpRead:
		return ReadError
	case container.OpBegin, container.OpWrite, container.OpCommit, container.OpClose:
		return WriteError
	case container.OpDelete:
		return DeleteError
	default:
		return UnknownError
	}
}
