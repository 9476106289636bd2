package asro

import "github.com/hupe1980/asro/container"

// FileIter walks the element generations of one file in directory order:
// names in the order they were first written to the file, then ascending
// cycle within a name.
//
//	it, err := asro.NewFileIter(reg, path, asro.ModeRead)
//	defer it.Close()
//	for it.Next() {
//	    fmt.Println(it.Name(), it.Cycle())
//	}
type FileIter struct {
	reg  *Registry
	h    *Handle
	mode Mode

	keys []container.Key
	pos  int
	err  error
}

// NewFileIter acquires the file at path and positions the iterator before
// the first element.
func NewFileIter(reg *Registry, path string, mode Mode) (*FileIter, error) {
	h, err := reg.Acquire(path, mode == ModeRead)
	if err != nil {
		return nil, err
	}
	it := &FileIter{reg: reg, h: h, mode: mode}
	if err := it.Reset(); err != nil {
		_ = reg.Release(h)
		return nil, err
	}
	return it, nil
}

// Reset snapshots the current elements and rewinds the iterator.
func (it *FileIter) Reset() error {
	f, err := it.h.File()
	if err != nil {
		it.err = err
		return err
	}
	it.keys = it.keys[:0]
	for e := range f.Elements() {
		it.keys = append(it.keys, container.Key{Name: e.Key.Name, Cycle: e.Key.Cycle})
	}
	it.pos = -1
	it.err = nil
	return nil
}

// Next advances to the next element and reports whether there is one.
func (it *FileIter) Next() bool {
	if it.err != nil || it.pos >= len(it.keys) {
		return false
	}
	it.pos++
	return it.pos < len(it.keys)
}

func (it *FileIter) current() (container.Key, bool) {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return container.Key{}, false
	}
	return it.keys[it.pos], true
}

// Name returns the name of the current element.
func (it *FileIter) Name() string {
	k, _ := it.current()
	return k.Name
}

// Cycle returns the cycle of the current element.
func (it *FileIter) Cycle() int32 {
	k, _ := it.current()
	return k.Cycle
}

// Element opens the current element with the iterator's mode. The caller
// closes it.
func (it *FileIter) Element() (*Element, error) {
	k, ok := it.current()
	if !ok {
		return nil, &container.OpError{Op: container.OpRead, Path: it.h.Path(), Err: ErrNotFound}
	}
	return OpenElement(it.reg, it.h.Path(), k.Name, k.Cycle, it.mode)
}

// Err returns the error that stopped iteration, if any.
func (it *FileIter) Err() error { return it.err }

// Close releases the iterator's handle.
func (it *FileIter) Close() error {
	if it.h == nil {
		return nil
	}
	err := it.reg.Release(it.h)
	it.h = nil
	return err
}
