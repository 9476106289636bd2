package container

import (
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/asro/internal/alloc"
	"github.com/hupe1980/asro/internal/compress"
	"github.com/hupe1980/asro/internal/directory"
)

// Key addresses one payload.
type Key struct {
	Name  string
	Sub   string // "" addresses the element itself
	Cycle int32
}

func (k Key) String() string {
	if k.Sub == "" {
		return fmt.Sprintf("%s;%d", k.Name, k.Cycle)
	}
	return fmt.Sprintf("%s/%s;%d", k.Name, k.Sub, k.Cycle)
}

// Entry describes a stored payload.
type Entry struct {
	Key        Key
	Class      string
	Offset     uint32
	FileLength uint32 // bytes on disk
	DataLength uint32 // bytes after decompression
}

// Compressed reports whether the payload is stored compressed.
func (e Entry) Compressed() bool { return e.FileLength != e.DataLength }

func (f *File) entry(e directory.Entry) Entry {
	return Entry{
		Key:        Key{Name: f.dir.Name(e.Key.Name), Sub: e.Key.Sub, Cycle: e.Key.Cycle},
		Class:      f.dir.ClassName(e.Value.Class),
		Offset:     e.Value.Offset,
		FileLength: e.Value.FileLength,
		DataLength: e.Value.DataLength,
	}
}

func (f *File) lookup(k Key) (directory.Key, directory.Value, bool) {
	id, ok := f.dir.LookupName(k.Name)
	if !ok {
		return directory.Key{}, directory.Value{}, false
	}
	dk := directory.Key{Name: id, Sub: k.Sub, Cycle: k.Cycle}
	v, ok := f.dir.Get(dk)
	return dk, v, ok
}

func (f *File) checkWritable(op string, k *Key) error {
	if f.closed {
		return f.opErr(op, k, ErrClosed)
	}
	if f.readOnly {
		return f.opErr(op, k, ErrReadOnly)
	}
	return nil
}

// Stat returns the directory record of k without reading the payload.
func (f *File) Stat(k Key) (Entry, error) {
	if f.closed {
		return Entry{}, f.opErr(OpRead, &k, ErrClosed)
	}
	dk, v, ok := f.lookup(k)
	if !ok {
		return Entry{}, f.opErr(OpRead, &k, ErrNotFound)
	}
	return f.entry(directory.Entry{Key: dk, Value: v}), nil
}

// Read returns the payload of k.
func (f *File) Read(k Key) ([]byte, error) {
	start := time.Now()
	data, err := f.read(k)
	f.metrics.OnRead(time.Since(start), len(data), err)
	return data, f.opErr(OpRead, &k, err)
}

func (f *File) read(k Key) ([]byte, error) {
	if f.closed {
		return nil, ErrClosed
	}
	_, v, ok := f.lookup(k)
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, v.FileLength)
	if err := readFull(f.st, buf, int64(v.Offset)); err != nil {
		return nil, err
	}
	if !v.Compressed() {
		return buf, nil
	}
	data, err := compress.Decompress(buf, int(v.DataLength))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return data, nil
}

// BeginWrite opens a write transaction. W1 is zeroed on disk, so a crash
// before FinishWrite leaves the file marked as interrupted. The persisted
// metadata region is given back to the allocator by the commit, which keeps
// the last committed directory readable for WithRecovery. Calling it with a
// transaction already open is a no-op.
func (f *File) BeginWrite() error {
	if err := f.checkWritable(OpBegin, nil); err != nil {
		return err
	}
	return f.opErr(OpBegin, nil, f.beginWrite())
}

func (f *File) beginWrite() error {
	if f.inTx {
		return nil
	}
	// A never-committed file has no directory worth keeping.
	if f.regionLive && f.hdr.dirLength == 0 {
		if err := f.free.Release(f.region.Offset, f.region.Length); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		f.regionLive = false
	}
	if err := writeFull(f.st, make([]byte, 4), validityOffset); err != nil {
		return err
	}
	if f.sync {
		if err := f.st.Sync(); err != nil {
			return err
		}
	}
	f.hdr.dirLength = 0
	f.inTx = true
	return nil
}

// retire queues the space of a replaced or deleted payload for release at
// the next commit.
func (f *File) retire(v directory.Value) {
	if v.FileLength > 0 {
		f.pending = append(f.pending, alloc.Range{Offset: v.Offset, Length: v.FileLength})
	}
}

// Write stores data under k, replacing any previous payload. Payloads of
// at least compress.MinSize bytes are compressed when level > 0 and the
// result is smaller. A transaction is opened if none is.
func (f *File) Write(k Key, class string, data []byte, level int) error {
	start := time.Now()
	stored, err := f.write(k, class, data, level)
	f.metrics.OnWrite(time.Since(start), len(data), stored, err)
	if err != nil {
		f.logger.Error("container write failed", "path", f.path, "key", k.String(), "error", err)
	}
	return f.opErr(OpWrite, &k, err)
}

func (f *File) write(k Key, class string, data []byte, level int) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if f.readOnly {
		return 0, ErrReadOnly
	}
	if uint64(len(data)) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: payload of %d bytes", ErrExhausted, len(data))
	}
	if err := f.beginWrite(); err != nil {
		return 0, err
	}

	dk := directory.Key{Name: f.dir.InternName(k.Name), Sub: k.Sub, Cycle: k.Cycle}
	if old, ok := f.dir.Delete(dk); ok {
		f.retire(old)
	}

	body := data
	if level > 0 {
		if c, ok := compress.Compress(level, data); ok {
			body = c
		}
	}

	off, err := f.free.Allocate(uint32(len(body)))
	if err != nil {
		return 0, err
	}
	if len(body) > 0 {
		if err := writeFull(f.st, body, int64(off)); err != nil {
			_ = f.free.Release(off, uint32(len(body)))
			return 0, err
		}
	}

	f.dir.Put(dk, directory.Value{
		Offset:     off,
		FileLength: uint32(len(body)),
		DataLength: uint32(len(data)),
		Class:      f.dir.InternClass(class),
	})
	f.logger.Debug("container write", "path", f.path, "key", k.String(), "bytes", len(data), "stored", len(body), "offset", off)
	return len(body), nil
}

// Delete removes k and frees its space. Deleting an element (Sub == "")
// also removes every sub entry of the same name and cycle. The change is
// committed immediately; an open transaction is committed with it and
// then reopened.
func (f *File) Delete(k Key) error {
	start := time.Now()
	removed, err := f.delete(k)
	f.metrics.OnDelete(time.Since(start), removed, err)
	return f.opErr(OpDelete, &k, err)
}

func (f *File) delete(k Key) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if f.readOnly {
		return 0, ErrReadOnly
	}
	dk, v, ok := f.lookup(k)
	if !ok {
		return 0, ErrNotFound
	}

	reopen := f.inTx
	if err := f.beginWrite(); err != nil {
		return 0, err
	}

	f.dir.Delete(dk)
	freed := []directory.Value{v}
	if k.Sub == "" {
		for _, e := range f.dir.DeleteRange(dk.Name, dk.Cycle) {
			freed = append(freed, e.Value)
		}
	}
	for _, v := range freed {
		f.retire(v)
	}

	if err := f.commit(); err != nil {
		return 0, err
	}
	f.logger.Debug("container delete", "path", f.path, "key", k.String(), "removed", len(freed))
	if reopen {
		if err := f.beginWrite(); err != nil {
			return len(freed), err
		}
	}
	return len(freed), nil
}

// FinishWrite commits the open transaction: the directory and free list
// are written to a newly allocated region and the header is rewritten to
// point at it. Without an open transaction the metadata is rewritten
// anyway.
func (f *File) FinishWrite() error {
	if err := f.checkWritable(OpCommit, nil); err != nil {
		return err
	}
	if err := f.beginWrite(); err != nil {
		return f.opErr(OpCommit, nil, err)
	}
	return f.opErr(OpCommit, nil, f.commit())
}

// commit writes the metadata region and header. A transaction must be open.
//
// The previous region and the pending payload spans are released first, so
// the new region may reuse them. The
// region holds the directory blob, the free list and W3 spare bytes.
// Allocating the region may consume a whole free range, which shortens the
// encoded free list by one pair; those bytes move to W3 so the region
// length stays what was allocated.
func (f *File) commit() (err error) {
	start := time.Now()
	var total uint64
	defer func() {
		f.metrics.OnCommit(time.Since(start), int(total), err)
		if err != nil {
			f.logger.Error("container commit failed", "path", f.path, "error", err)
		}
	}()

	blob, err := f.dir.MarshalBinary()
	if err != nil {
		return err
	}
	if f.regionLive {
		if err := f.free.Release(f.region.Offset, f.region.Length); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		f.regionLive = false
	}
	for _, r := range f.pending {
		if err := f.free.Release(r.Offset, r.Length); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	f.pending = nil

	hdr := header{
		dirLength:  uint32(len(blob)),
		freeLength: f.free.EncodedSize(),
		reserve:    8,
	}
	total = hdr.regionLength()
	if total > MaxSize {
		return fmt.Errorf("%w: metadata region of %d bytes", ErrExhausted, total)
	}

	ranges := f.free.Len()
	off, err := f.free.Allocate(uint32(total))
	if err != nil {
		return err
	}
	if f.free.Len() < ranges {
		hdr.freeLength -= 8
		hdr.reserve += 8
	}
	hdr.dirOffset = off

	freeBlob, _ := f.free.MarshalBinary()
	region := make([]byte, total)
	copy(region, blob)
	copy(region[len(blob):], freeBlob)

	if err := writeFull(f.st, region, int64(off)); err != nil {
		_ = f.free.Release(off, uint32(total))
		return err
	}
	if f.sync {
		if err := f.st.Sync(); err != nil {
			_ = f.free.Release(off, uint32(total))
			return err
		}
	}
	if err := writeFull(f.st, hdr.encode(), 0); err != nil {
		_ = f.free.Release(off, uint32(total))
		return err
	}

	f.hdr = hdr
	f.region = alloc.Range{Offset: off, Length: uint32(total)}
	f.regionLive = true
	f.inTx = false
	if f.sync {
		if err := f.st.Sync(); err != nil {
			return err
		}
	}
	f.logger.Debug("container commit", "path", f.path, "entries", f.dir.Len(), "offset", off, "region", total)
	return nil
}
