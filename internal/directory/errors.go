package directory

import "errors"

var (
	// ErrCorrupt is returned when a directory blob fails validation.
	ErrCorrupt = errors.New("corrupt directory")

	// ErrIncompatibleVersion is returned when the blob version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible directory version")
)
