package container

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/hupe1980/asro/internal/alloc"
	"github.com/hupe1980/asro/internal/directory"
	"github.com/hupe1980/asro/internal/fs"
)

// File is an open container.
type File struct {
	path     string
	st       Storage
	readOnly bool

	hdr  header
	dir  *directory.Directory
	free *alloc.FreeList

	// region is the metadata region of the last commit. While regionLive
	// it is allocated, i.e. absent from the free list.
	region     alloc.Range
	regionLive bool
	// pending holds payload spans replaced or deleted since the last
	// commit. The committed directory may still reference them, so they
	// go back to the free list only in commit.
	pending []alloc.Range
	inTx       bool
	closed     bool
	recovered  bool

	fs            fs.FileSystem
	logger        *slog.Logger
	metrics       MetricsObserver
	sync          bool
	recovery      bool
	forceReadOnly bool
}

func newFile(path string, opts []Option) *File {
	f := &File{
		path:    path,
		fs:      fs.Default,
		logger:  slog.New(slog.DiscardHandler),
		metrics: NoopMetricsObserver{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open opens or creates the container at path.
//
// The file is opened read-write first. If that fails and acceptReadOnly is
// set, it is retried read-only; ReadOnly reports which mode was obtained.
// An empty file is initialised with a fresh header. A file whose last
// write transaction never committed fails with ErrInterrupted unless
// WithRecovery is given.
func Open(path string, acceptReadOnly bool, opts ...Option) (*File, error) {
	f := newFile(path, opts)

	var (
		file fs.File
		err  error
	)
	if !f.forceReadOnly {
		file, err = f.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	}
	if f.forceReadOnly || err != nil {
		if !f.forceReadOnly && !acceptReadOnly {
			return nil, f.opErr(OpOpen, nil, err)
		}
		rwErr := err
		file, err = f.fs.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, f.opErr(OpOpen, nil, err)
		}
		f.readOnly = true
		if rwErr != nil {
			f.logger.Debug("container opened read-only", "path", path, "error", rwErr)
		}
	}

	if err := f.load(fileStorage{file}); err != nil {
		_ = file.Close()
		return nil, err
	}
	return f, nil
}

// OpenStorage opens a container held by st. name is used in errors and
// logs only. The file takes ownership of st and closes it on Close or on
// failure.
func OpenStorage(st Storage, name string, readOnly bool, opts ...Option) (*File, error) {
	f := newFile(name, opts)
	f.readOnly = readOnly || f.forceReadOnly
	if err := f.load(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) load(st Storage) error {
	f.st = st

	size, err := st.Size()
	if err != nil {
		return f.opErr(OpOpen, nil, err)
	}
	if size == 0 {
		return f.initFresh()
	}

	buf := make([]byte, HeaderSize)
	n, rerr := st.ReadAt(buf, 0)
	hdr, err := decodeHeader(buf[:n])
	if err != nil {
		if errors.Is(err, ErrShortRead) && rerr != nil && !errors.Is(rerr, io.EOF) {
			err = fmt.Errorf("%w: %w", err, rerr)
		}
		return f.opErr(OpOpen, nil, err)
	}
	f.hdr = hdr

	if hdr.dirLength == 0 {
		fresh, err := f.loadFresh()
		if err != nil {
			return f.opErr(OpOpen, nil, err)
		}
		if fresh {
			return nil
		}
		if !f.recovery {
			return f.opErr(OpOpen, nil, ErrInterrupted)
		}
		return f.opErr(OpOpen, nil, f.salvage())
	}

	blob := make([]byte, hdr.dirLength)
	if err := readFull(st, blob, int64(hdr.dirOffset)); err != nil {
		return f.opErr(OpOpen, nil, err)
	}
	dir, err := directory.Unmarshal(blob)
	if err != nil {
		return f.opErr(OpOpen, nil, fmt.Errorf("%w: %w", ErrCorrupt, err))
	}
	free, err := f.readFreeList(int64(hdr.dirOffset)+int64(hdr.dirLength), hdr.freeLength)
	if err != nil {
		return f.opErr(OpOpen, nil, err)
	}

	f.dir = dir
	f.free = free
	f.region = alloc.Range{Offset: hdr.dirOffset, Length: uint32(hdr.regionLength())}
	f.regionLive = true
	f.logger.Debug("container opened", "path", f.path, "entries", dir.Len(), "free_ranges", free.Len(), "read_only", f.readOnly)
	return nil
}

func (f *File) readFreeList(off int64, n uint32) (*alloc.FreeList, error) {
	buf := make([]byte, n)
	if err := readFull(f.st, buf, off); err != nil {
		return nil, err
	}
	free := &alloc.FreeList{}
	if err := free.UnmarshalBinary(buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return free, nil
}

// initFresh initialises an empty file. Read-only files stay empty on disk.
func (f *File) initFresh() error {
	f.hdr = freshHeader()
	f.dir = directory.New()
	f.free = alloc.New(seedOffset, seedLength)
	f.region = alloc.Range{Offset: HeaderSize, Length: alloc.PairSize}
	f.regionLive = true

	if f.readOnly {
		return nil
	}
	seed, _ := f.free.MarshalBinary()
	buf := append(f.hdr.encode(), seed...)
	if err := writeFull(f.st, buf, 0); err != nil {
		return f.opErr(OpOpen, nil, err)
	}
	if f.sync {
		if err := f.st.Sync(); err != nil {
			return f.opErr(OpOpen, nil, err)
		}
	}
	f.logger.Debug("container created", "path", f.path)
	return nil
}

// loadFresh reports whether a W1 == 0 header describes a never-committed
// file rather than an interrupted transaction.
func (f *File) loadFresh() (bool, error) {
	if f.hdr != freshHeader() {
		return false, nil
	}
	free, err := f.readFreeList(HeaderSize, alloc.PairSize)
	if err != nil {
		return false, err
	}
	if !slices.Equal(free.Ranges(), []alloc.Range{{Offset: seedOffset, Length: seedLength}}) {
		return false, nil
	}
	f.dir = directory.New()
	f.free = free
	f.region = alloc.Range{Offset: HeaderSize, Length: alloc.PairSize}
	f.regionLive = true
	return true, nil
}

// salvage restores the directory of the last commit. BeginWrite leaves W0
// untouched and the old region stays allocated until the next commit, so
// the blob is still intact unless the crash hit the commit itself; its
// checksum tells. The free list is rebuilt as the complement of everything
// the directory references.
func (f *File) salvage() error {
	hb := make([]byte, directory.HeaderSize)
	if err := readFull(f.st, hb, int64(f.hdr.dirOffset)); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	n, err := directory.BlobLength(hb)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	blob := make([]byte, n)
	if err := readFull(f.st, blob, int64(f.hdr.dirOffset)); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	dir, err := directory.Unmarshal(blob)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	hdr := f.hdr
	hdr.dirLength = uint32(n)
	if uint64(hdr.dirOffset)+hdr.regionLength() > MaxSize {
		return fmt.Errorf("%w: salvaged region out of bounds", ErrInterrupted)
	}

	region := alloc.Range{Offset: hdr.dirOffset, Length: uint32(hdr.regionLength())}
	used := []alloc.Range{{Offset: 0, Length: HeaderSize}, region}
	for e := range dir.All() {
		if e.Value.FileLength > 0 {
			used = append(used, alloc.Range{Offset: e.Value.Offset, Length: e.Value.FileLength})
		}
	}
	slices.SortFunc(used, func(a, b alloc.Range) int { return cmp.Compare(a.Offset, b.Offset) })

	var freeRanges []alloc.Range
	cursor := uint64(0)
	for _, r := range used {
		if uint64(r.Offset) < cursor {
			return fmt.Errorf("%w: %w: overlapping payloads at %d", ErrInterrupted, ErrCorrupt, r.Offset)
		}
		if uint64(r.Offset) > cursor {
			freeRanges = append(freeRanges, alloc.Range{Offset: uint32(cursor), Length: uint32(uint64(r.Offset) - cursor)})
		}
		cursor = r.End()
	}
	if cursor < MaxSize {
		freeRanges = append(freeRanges, alloc.Range{Offset: uint32(cursor), Length: uint32(MaxSize - cursor)})
	}
	free, err := alloc.FromRanges(freeRanges)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	f.hdr = hdr
	f.dir = dir
	f.free = free
	f.region = region
	f.regionLive = true
	f.pending = nil
	f.recovered = true
	f.logger.Warn("recovered interrupted container", "path", f.path, "entries", dir.Len())

	if f.readOnly {
		return nil
	}
	if err := f.beginWrite(); err != nil {
		return err
	}
	return f.commit()
}

// Close commits an open write transaction and releases the storage.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	var err error
	if f.inTx && !f.readOnly {
		f.logger.Debug("committing open transaction on close", "path", f.path)
		err = f.FinishWrite()
	}
	f.closed = true
	if cerr := f.st.Close(); cerr != nil && err == nil {
		err = f.opErr(OpClose, nil, cerr)
	}
	return err
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// ReadOnly reports whether the file was opened read-only.
func (f *File) ReadOnly() bool { return f.readOnly }

// Recovered reports whether Open salvaged an interrupted transaction.
func (f *File) Recovered() bool { return f.recovered }

// InTransaction reports whether a write transaction is open.
func (f *File) InTransaction() bool { return f.inTx }

// Closed reports whether Close has been called.
func (f *File) Closed() bool { return f.closed }

// Storage returns the underlying storage.
func (f *File) Storage() Storage { return f.st }

// Stats describes the state of a container.
type Stats struct {
	Entries       int
	Names         int
	Classes       int
	FreeBytes     uint64
	FreeRanges    int
	PendingBytes  uint64
	FileSize      int64
	InTransaction bool
}

func (f *File) pendingBytes() uint64 {
	var n uint64
	for _, r := range f.pending {
		n += uint64(r.Length)
	}
	return n
}

// Stats returns current statistics.
func (f *File) Stats() (Stats, error) {
	if f.closed {
		return Stats{}, f.opErr(OpRead, nil, ErrClosed)
	}
	size, err := f.st.Size()
	if err != nil {
		return Stats{}, f.opErr(OpRead, nil, err)
	}
	return Stats{
		Entries:       f.dir.Len(),
		Names:         len(f.dir.Names()),
		Classes:       len(f.dir.Classes()),
		FreeBytes:     f.free.Total(),
		FreeRanges:    f.free.Len(),
		PendingBytes:  f.pendingBytes(),
		FileSize:      size,
		InTransaction: f.inTx,
	}, nil
}
