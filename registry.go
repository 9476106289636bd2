package asro

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/hupe1980/asro/container"
)

// Registry shares open containers between callers. Every Acquire of the
// same physical file returns a handle to the same *container.File; the
// file is closed when the last handle is released.
//
// A Registry is safe for concurrent use, but the files it hands out are
// not: callers sharing a file must serialize their own access to it.
type Registry struct {
	opts options

	mu      sync.Mutex
	entries map[fileID]*entry
}

type entry struct {
	id       fileID
	path     string
	file     *container.File
	readOnly bool
	refs     int
	gen      uint64 // bumped on promotion
	closed   bool
}

// Handle is one reference to a shared file.
type Handle struct {
	reg      *Registry
	e        *entry
	gen      uint64
	released bool
}

// NewRegistry returns an empty registry. Options apply to every file it opens.
func NewRegistry(optFns ...Option) *Registry {
	return &Registry{
		opts:    applyOptions(optFns),
		entries: make(map[fileID]*entry),
	}
}

// lookupID resolves the identity of path. Existence is decided by the
// registry's filesystem. Device and inode are only consulted on the local
// filesystem; files behind any other FileSystem are keyed by absolute path.
func (r *Registry) lookupID(path string) (fileID, error) {
	if _, err := r.opts.fsys.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileID{}, err
		}
		r.opts.logger.Debug("file identity unavailable, keying by path", "path", path, "error", err)
		return pathID(path), nil
	}
	if !r.opts.localFS() {
		return pathID(path), nil
	}
	id, err := identify(path)
	if err != nil {
		r.opts.logger.Debug("file identity unavailable, keying by path", "path", path, "error", err)
		return pathID(path), nil
	}
	return id, nil
}

// Acquire returns a handle to the file at path, opening it if no handle is
// outstanding. A read-only acquire of a missing file fails with ErrNotExist;
// a read-write acquire creates it.
//
// If the file is already open read-only and readOnly is false, it is
// reopened read-write. Handles acquired before that become stale: their
// File method returns ErrStaleHandle, though Release still counts them.
func (r *Registry) Acquire(path string, readOnly bool) (*Handle, error) {
	r.mu.Lock()
	h, promoted, err := r.acquire(path, readOnly)
	refs := 0
	if h != nil {
		refs = h.e.refs
	}
	r.mu.Unlock()

	r.opts.metricsCollector.RecordAcquire(promoted, err)
	r.opts.logger.LogAcquire(context.Background(), path, readOnly, refs, err)
	return h, err
}

func (r *Registry) acquire(path string, readOnly bool) (*Handle, bool, error) {
	id, err := r.lookupID(path)
	if err != nil {
		if readOnly {
			return nil, false, &fs.PathError{Op: "acquire", Path: path, Err: ErrNotExist}
		}
		// Create first; the file has no identity until it exists.
		f, err := r.open(path, false)
		if err != nil {
			return nil, false, err
		}
		if id, err = r.lookupID(path); err != nil {
			_ = f.Close()
			return nil, false, err
		}
		return r.insert(id, path, f), false, nil
	}

	e, ok := r.entries[id]
	if !ok {
		f, err := r.open(path, readOnly)
		if err != nil {
			return nil, false, err
		}
		return r.insert(id, path, f), false, nil
	}

	promoted := false
	if e.readOnly && !readOnly {
		if err := r.promote(e); err != nil {
			return nil, false, err
		}
		promoted = true
	}
	e.refs++
	return &Handle{reg: r, e: e, gen: e.gen}, promoted, nil
}

func (r *Registry) open(path string, readOnly bool) (*container.File, error) {
	var extra []container.Option
	if readOnly {
		extra = append(extra, container.WithReadOnly())
	}
	return container.Open(path, false, r.opts.containerOptions(extra...)...)
}

func (r *Registry) insert(id fileID, path string, f *container.File) *Handle {
	e := &entry{
		id:       id,
		path:     path,
		file:     f,
		readOnly: f.ReadOnly(),
		refs:     1,
	}
	r.entries[id] = e
	return &Handle{reg: r, e: e, gen: e.gen}
}

// promote reopens e read-write. The old engine is closed only once the
// new one is open, so a failed promotion leaves existing handles valid.
func (r *Registry) promote(e *entry) error {
	f, err := r.open(e.path, false)
	if err != nil {
		r.opts.logger.LogPromote(context.Background(), e.path, 0, err)
		return err
	}
	if cerr := e.file.Close(); cerr != nil {
		r.opts.logger.Warn("closing read-only file after promotion failed", "path", e.path, "error", cerr)
	}
	e.file = f
	e.readOnly = false
	e.gen++
	r.opts.logger.LogPromote(context.Background(), e.path, e.refs, nil)
	return nil
}

// Release drops h. When the last handle of a file is released the file is
// closed, committing any open transaction, and removed from disk if it was
// open read-write and holds no entries.
func (r *Registry) Release(h *Handle) error {
	closed, removed, err := r.release(h)
	r.opts.metricsCollector.RecordRelease(closed, removed, err)
	if closed {
		r.opts.logger.LogRelease(context.Background(), h.e.path, removed, err)
	}
	return err
}

func (r *Registry) release(h *Handle) (closed, removed bool, err error) {
	if h == nil {
		return false, false, ErrReleased
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.released {
		return false, false, ErrReleased
	}
	h.released = true

	e := h.e
	if e.closed {
		// Closed by Registry.Close.
		return false, false, nil
	}
	e.refs--
	if e.refs > 0 {
		return false, false, nil
	}
	delete(r.entries, e.id)
	removed, err = r.closeEntry(e)
	return true, removed, err
}

func (r *Registry) closeEntry(e *entry) (bool, error) {
	e.closed = true
	empty := !e.readOnly && e.file.Len() == 0
	if err := e.file.Close(); err != nil {
		return false, err
	}
	if !empty {
		return false, nil
	}
	if err := r.opts.fsys.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove empty container: %w", err)
	}
	return true, nil
}

// Close closes every open file regardless of outstanding handles. Their
// File method reports ErrClosed afterwards and Release is a no-op.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, e := range r.entries {
		delete(r.entries, id)
		e.refs = 0
		if _, err := r.closeEntry(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of open files.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RefCount returns the number of outstanding handles to the file at path.
func (r *Registry) RefCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.lookupID(path)
	if err != nil {
		return 0
	}
	if e, ok := r.entries[id]; ok {
		return e.refs
	}
	return 0
}

// File returns the shared container.
func (h *Handle) File() (*container.File, error) {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()

	switch {
	case h.released:
		return nil, ErrReleased
	case h.e.closed:
		return nil, ErrClosed
	case h.gen != h.e.gen:
		return nil, ErrStaleHandle
	}
	return h.e.file, nil
}

// Path returns the path the file was first acquired with.
func (h *Handle) Path() string { return h.e.path }

// ReadOnly reports whether the handle's file is open read-only.
func (h *Handle) ReadOnly() bool {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return h.e.readOnly
}

// Stale reports whether the file was reopened since h was acquired.
func (h *Handle) Stale() bool {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return h.gen != h.e.gen
}
