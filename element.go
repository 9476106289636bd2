package asro

import (
	"errors"
	"fmt"

	"github.com/hupe1980/asro/container"
)

// Mode selects how an element's file is acquired.
type Mode int

const (
	// ModeRead acquires the file read-only.
	ModeRead Mode = iota
	// ModeWrite acquires the file read-write.
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

var errEmptySub = errors.New("sub name must not be empty")

// Sub is a named payload stored under an element.
type Sub struct {
	Name  string
	Class string
	Data  []byte
}

// Element is one generation of a named payload in a shared container,
// together with its subs. It holds a registry handle until Close.
type Element struct {
	reg   *Registry
	h     *Handle
	name  string
	cycle int32
	mode  Mode
	level int

	closed bool
}

// CreateElement creates the next free generation of name in the file at
// path, creating the file if needed. The generation is reserved with an
// empty payload and committed immediately.
func CreateElement(reg *Registry, path, name string) (*Element, error) {
	h, err := reg.Acquire(path, false)
	if err != nil {
		return nil, err
	}
	e := &Element{reg: reg, h: h, name: name, mode: ModeWrite, level: reg.opts.compressionLevel}

	f, err := h.File()
	if err != nil {
		return nil, e.fail(err)
	}
	cycle := f.FreeCycle(name)
	if cycle == 0 {
		return nil, e.fail(fmt.Errorf("%s: %w", name, ErrCyclesExhausted))
	}
	e.cycle = cycle

	if err := f.Write(e.key(""), "", nil, 0); err != nil {
		return nil, e.fail(err)
	}
	if err := f.FinishWrite(); err != nil {
		return nil, e.fail(err)
	}
	return e, nil
}

// OpenElement opens generation cycle of name. Cycle 0 selects the lowest
// stored generation.
func OpenElement(reg *Registry, path, name string, cycle int32, mode Mode) (*Element, error) {
	h, err := reg.Acquire(path, mode == ModeRead)
	if err != nil {
		return nil, err
	}
	e := &Element{reg: reg, h: h, name: name, mode: mode, level: reg.opts.compressionLevel}

	f, err := h.File()
	if err != nil {
		return nil, e.fail(err)
	}
	if cycle == 0 {
		cycle = f.NextCycle(name, 0)
		if cycle == 0 {
			return nil, e.fail(&container.OpError{Op: container.OpRead, Path: path, Key: &container.Key{Name: name}, Err: ErrNotFound})
		}
	}
	e.cycle = cycle
	if _, err := f.Stat(e.key("")); err != nil {
		return nil, e.fail(err)
	}
	return e, nil
}

func (e *Element) fail(err error) error {
	_ = e.reg.Release(e.h)
	e.closed = true
	return err
}

func (e *Element) key(sub string) container.Key {
	return container.Key{Name: e.name, Sub: sub, Cycle: e.cycle}
}

func (e *Element) file() (*container.File, error) {
	if e.closed {
		return nil, ErrElementClosed
	}
	return e.h.File()
}

func (e *Element) writable() (*container.File, error) {
	f, err := e.file()
	if err != nil {
		return nil, err
	}
	if e.mode != ModeWrite {
		return nil, &container.OpError{Op: container.OpWrite, Path: f.Path(), Key: &container.Key{Name: e.name, Cycle: e.cycle}, Err: ErrReadOnly}
	}
	return f, nil
}

// Name returns the element name.
func (e *Element) Name() string { return e.name }

// Cycle returns the element generation.
func (e *Element) Cycle() int32 { return e.cycle }

// Mode returns the mode the element was opened with.
func (e *Element) Mode() Mode { return e.mode }

// Path returns the path of the element's file.
func (e *Element) Path() string { return e.h.Path() }

// CompressionLevel returns the level used by Save and SaveSubs.
func (e *Element) CompressionLevel() int { return e.level }

// SetCompressionLevel sets the level used by Save and SaveSubs.
func (e *Element) SetCompressionLevel(level int) { e.level = max(level, 0) }

// Stat returns the element's directory entry.
func (e *Element) Stat() (container.Entry, error) {
	f, err := e.file()
	if err != nil {
		return container.Entry{}, err
	}
	return f.Stat(e.key(""))
}

// Class returns the class tag stored with the element payload.
func (e *Element) Class() (string, error) {
	ent, err := e.Stat()
	if err != nil {
		return "", err
	}
	return ent.Class, nil
}

// Save replaces the element payload and commits.
func (e *Element) Save(class string, data []byte) error {
	return e.SaveLevel(class, data, e.level)
}

// SaveLevel is Save with an explicit compression level.
func (e *Element) SaveLevel(class string, data []byte, level int) error {
	f, err := e.writable()
	if err != nil {
		return err
	}
	if err := f.Write(e.key(""), class, data, level); err != nil {
		return err
	}
	return f.FinishWrite()
}

// Load returns the element payload.
func (e *Element) Load() ([]byte, error) {
	f, err := e.file()
	if err != nil {
		return nil, err
	}
	return f.Read(e.key(""))
}

// SaveSubs writes subs in one transaction and commits.
func (e *Element) SaveSubs(subs []Sub) error {
	f, err := e.writable()
	if err != nil {
		return err
	}
	for _, s := range subs {
		if s.Name == "" {
			return errEmptySub
		}
	}
	if err := f.BeginWrite(); err != nil {
		return err
	}
	for _, s := range subs {
		if err := f.Write(e.key(s.Name), s.Class, s.Data, e.level); err != nil {
			return err
		}
	}
	return f.FinishWrite()
}

// ReadSub returns the payload of one sub.
func (e *Element) ReadSub(sub string) ([]byte, error) {
	if sub == "" {
		return nil, errEmptySub
	}
	f, err := e.file()
	if err != nil {
		return nil, err
	}
	return f.Read(e.key(sub))
}

// ReadAllSubs returns every sub in name order.
func (e *Element) ReadAllSubs() ([]Sub, error) {
	f, err := e.file()
	if err != nil {
		return nil, err
	}
	var subs []Sub
	for ent := range f.Subs(e.name, e.cycle) {
		data, err := f.Read(ent.Key)
		if err != nil {
			return nil, err
		}
		subs = append(subs, Sub{Name: ent.Key.Sub, Class: ent.Class, Data: data})
	}
	return subs, nil
}

// DeleteSub removes one sub. The deletion is committed immediately.
func (e *Element) DeleteSub(sub string) error {
	if sub == "" {
		return errEmptySub
	}
	f, err := e.writable()
	if err != nil {
		return err
	}
	return f.Delete(e.key(sub))
}

// SubNames returns the names of all subs in order.
func (e *Element) SubNames() ([]string, error) {
	f, err := e.file()
	if err != nil {
		return nil, err
	}
	var names []string
	for ent := range f.Subs(e.name, e.cycle) {
		names = append(names, ent.Key.Sub)
	}
	return names, nil
}

// NumSubs returns the number of subs.
func (e *Element) NumSubs() (int, error) {
	f, err := e.file()
	if err != nil {
		return 0, err
	}
	return f.NumSubs(e.name, e.cycle), nil
}

// Delete removes the element and all its subs, then closes it. If this
// empties the file and no other handle holds it, the file is removed.
func (e *Element) Delete() error {
	f, err := e.writable()
	if err != nil {
		return err
	}
	if err := f.Delete(e.key("")); err != nil {
		return err
	}
	return e.Close()
}

// Close releases the element's handle. It is idempotent.
func (e *Element) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.reg.Release(e.h)
}
