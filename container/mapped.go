package container

import (
	"github.com/hupe1980/asro/internal/mmap"
)

// OpenMapped opens the container at path read-only through a memory
// mapping. The file must exist.
func OpenMapped(path string, opts ...Option) (*File, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, &OpError{Op: OpOpen, Path: path, Err: err}
	}
	_ = m.Advise(mmap.AccessRandom)
	return OpenStorage(NewReadOnlyStorage(m, m.Size(), m.Close), path, true, opts...)
}
