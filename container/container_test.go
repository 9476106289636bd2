package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/asro/internal/fs"
	"github.com/hupe1980/asro/internal/testutil"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return testutil.TempPath(t, "test.asro")
}

func openRW(t *testing.T, path string, opts ...Option) *File {
	t.Helper()
	f, err := Open(path, false, opts...)
	require.NoError(t, err)
	require.False(t, f.ReadOnly())
	return f
}

func diskHeader(t *testing.T, path string) header {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(b), HeaderSize)
	h, err := decodeHeader(b[:HeaderSize])
	require.NoError(t, err)
	return h
}

func checkLayout(t *testing.T, f *File) {
	t.Helper()
	l, err := f.Map()
	require.NoError(t, err)
	require.NoError(t, l.Check(), "problems: %v", l.Problems())
}

func TestOpenFresh(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	assert.Equal(t, 0, f.Len())
	checkLayout(t, f)
	require.NoError(t, f.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, b, HeaderSize+8)
	assert.Equal(t, Magic, string(b[:8]))
	assert.Equal(t, uint32(24), binary.LittleEndian.Uint32(b[8:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[12:]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(b[16:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[20:]))
	assert.Equal(t, uint32(32), binary.LittleEndian.Uint32(b[24:]))
	assert.Equal(t, uint32(MaxSize-32), binary.LittleEndian.Uint32(b[28:]))

	// A never-committed file reopens as empty, not as interrupted.
	f = openRW(t, path)
	assert.Equal(t, 0, f.Len())
	require.NoError(t, f.Close())
}

func TestScenario(t *testing.T) {
	path := tempPath(t)
	img := Key{Name: "img", Cycle: 1}

	f := openRW(t, path)
	require.NoError(t, f.Write(img, "", make([]byte, 300), 0))
	require.NoError(t, f.FinishWrite())
	require.NoError(t, f.Close())

	f = openRW(t, path)
	data, err := f.Read(img)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 300), data)
	assert.Equal(t, int32(0), f.NextCycle("img", 1))
	checkLayout(t, f)

	require.NoError(t, f.Delete(img))
	require.NoError(t, f.Close())

	f = openRW(t, path)
	assert.Equal(t, 0, f.Len())
	checkLayout(t, f)
	require.NoError(t, f.Close())
}

func TestCommitHeader(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "img", Cycle: 1}, "", make([]byte, 300), 0))
	require.NoError(t, f.FinishWrite())

	h := diskHeader(t, path)
	assert.Equal(t, uint32(324), h.dirOffset)
	assert.NotZero(t, h.dirLength)
	assert.Equal(t, uint32(8), h.freeLength)
	assert.Equal(t, uint32(8), h.reserve)
	require.NoError(t, f.Close())
}

func TestRoundTrip(t *testing.T) {
	random := testutil.NewRNG(1).Bytes(5000)
	text := testutil.Compressible(9000)

	tests := []struct {
		name       string
		data       []byte
		level      int
		compressed bool
	}{
		{"empty", nil, 0, false},
		{"small raw", []byte("hello"), 0, false},
		{"small with level", []byte("hello"), 5, false},
		{"text raw", text, 0, false},
		{"text lz4", text, 1, true},
		{"text lz4hc", text, 3, true},
		{"text zstd", text, 6, true},
		{"random zstd", random, 6, false},
	}

	path := tempPath(t)
	f := openRW(t, path)
	for i, tt := range tests {
		require.NoError(t, f.Write(Key{Name: tt.name, Cycle: int32(i + 1)}, "blob", tt.data, tt.level))
	}
	require.NoError(t, f.FinishWrite())
	require.NoError(t, f.Close())

	f = openRW(t, path)
	defer f.Close()
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := Key{Name: tt.name, Cycle: int32(i + 1)}
			got, err := f.Read(k)
			require.NoError(t, err)
			assert.Equal(t, len(tt.data), len(got))
			assert.True(t, bytes.Equal(tt.data, got))

			e, err := f.Stat(k)
			require.NoError(t, err)
			assert.Equal(t, tt.compressed, e.Compressed())
			assert.Equal(t, uint32(len(tt.data)), e.DataLength)
			assert.Equal(t, "blob", e.Class)
		})
	}
	checkLayout(t, f)
}

func TestOverwriteReleasesSpace(t *testing.T) {
	f := openRW(t, tempPath(t))
	defer f.Close()
	k := Key{Name: "a", Cycle: 1}

	require.NoError(t, f.Write(k, "", make([]byte, 1000), 0))
	require.NoError(t, f.FinishWrite())
	s1, err := f.Stats()
	require.NoError(t, err)
	assert.Zero(t, s1.PendingBytes)

	// The replaced payload stays allocated until the commit.
	require.NoError(t, f.Write(k, "", make([]byte, 1000), 0))
	mid, err := f.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), mid.PendingBytes)
	assert.Equal(t, s1.FreeBytes-1000, mid.FreeBytes)
	checkLayout(t, f)

	require.NoError(t, f.FinishWrite())
	s2, err := f.Stats()
	require.NoError(t, err)
	assert.Zero(t, s2.PendingBytes)
	assert.Equal(t, s1.FreeBytes, s2.FreeBytes)
	assert.Equal(t, 1, f.Len())
	checkLayout(t, f)
}

func TestCascadeDelete(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	tbl := Key{Name: "tbl", Cycle: 1}
	require.NoError(t, f.Write(Key{Name: "keep", Cycle: 1}, "", make([]byte, 100), 0))

	require.NoError(t, f.Write(tbl, "TFTable", make([]byte, 64), 0))
	for _, sub := range []string{"x", "y", "z"} {
		require.NoError(t, f.Write(Key{Name: "tbl", Sub: sub, Cycle: 1}, "TFColumn", make([]byte, 128), 0))
	}
	require.NoError(t, f.Write(Key{Name: "tbl", Sub: "x", Cycle: 2}, "TFColumn", make([]byte, 16), 0))
	require.NoError(t, f.FinishWrite())
	assert.Equal(t, 3, f.NumSubs("tbl", 1))

	require.NoError(t, f.Delete(tbl))
	assert.Equal(t, 0, f.NumSubs("tbl", 1))
	assert.Equal(t, 1, f.NumSubs("tbl", 2))
	assert.Equal(t, 2, f.Len())
	checkLayout(t, f)

	_, err := f.Read(Key{Name: "tbl", Sub: "y", Cycle: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting the remaining generation gives back everything but the
	// metadata region.
	require.NoError(t, f.Delete(Key{Name: "tbl", Sub: "x", Cycle: 2}))
	after, err := f.Stats()
	require.NoError(t, err)
	l, err := f.Map()
	require.NoError(t, err)
	var meta uint64
	for _, s := range l.Spans {
		if s.Kind == SpanMetadata {
			meta += s.Length
		}
	}
	assert.Equal(t, uint64(MaxSize-HeaderSize-100)-meta, after.FreeBytes)
	require.NoError(t, f.Close())
}

func TestDeleteSubOnly(t *testing.T) {
	f := openRW(t, tempPath(t))
	defer f.Close()
	require.NoError(t, f.Write(Key{Name: "tbl", Cycle: 1}, "", []byte("t"), 0))
	require.NoError(t, f.Write(Key{Name: "tbl", Sub: "a", Cycle: 1}, "", []byte("a"), 0))
	require.NoError(t, f.Write(Key{Name: "tbl", Sub: "b", Cycle: 1}, "", []byte("b"), 0))

	require.NoError(t, f.Delete(Key{Name: "tbl", Sub: "a", Cycle: 1}))
	assert.Equal(t, 2, f.Len())

	var subs []string
	for e := range f.Subs("tbl", 1) {
		subs = append(subs, e.Key.Sub)
	}
	assert.Equal(t, []string{"b"}, subs)
}

func TestDeleteNotFound(t *testing.T) {
	f := openRW(t, tempPath(t))
	defer f.Close()

	err := f.Delete(Key{Name: "nope", Cycle: 1})
	require.ErrorIs(t, err, ErrNotFound)

	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, OpDelete, oe.Op)
	assert.Equal(t, "nope;1", oe.Key.String())
}

func TestDeleteInsideTransaction(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "a", Cycle: 1}, "", []byte("a"), 0))
	require.NoError(t, f.Write(Key{Name: "b", Cycle: 1}, "", []byte("b"), 0))
	require.True(t, f.InTransaction())

	require.NoError(t, f.Delete(Key{Name: "a", Cycle: 1}))
	assert.True(t, f.InTransaction())
	assert.Zero(t, diskHeader(t, path).dirLength)

	require.NoError(t, f.FinishWrite())
	assert.False(t, f.InTransaction())
	assert.NotZero(t, diskHeader(t, path).dirLength)
	require.NoError(t, f.Close())

	f = openRW(t, path)
	defer f.Close()
	assert.Equal(t, 1, f.Len())
	got, err := f.Read(Key{Name: "b", Cycle: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}

func TestVersioning(t *testing.T) {
	f := openRW(t, tempPath(t))
	defer f.Close()

	for want := int32(1); want <= 5; want++ {
		c := f.FreeCycle("img")
		require.Equal(t, want, c)
		require.NoError(t, f.Write(Key{Name: "img", Cycle: c}, "", []byte{byte(c)}, 0))
	}
	require.NoError(t, f.Delete(Key{Name: "img", Cycle: 3}))
	assert.Equal(t, int32(3), f.FreeCycle("img"))
	require.NoError(t, f.Write(Key{Name: "img", Cycle: 3}, "", []byte{3}, 0))
	assert.Equal(t, int32(6), f.FreeCycle("img"))

	assert.Equal(t, int32(1), f.NextCycle("img", 0))
	assert.Equal(t, int32(4), f.NextCycle("img", 3))
	assert.Equal(t, int32(0), f.NextCycle("img", 5))
	assert.Equal(t, int32(0), f.NextCycle("other", 0))
	assert.Equal(t, int32(1), f.FreeCycle("other"))
}

func TestEnumeration(t *testing.T) {
	f := openRW(t, tempPath(t))
	defer f.Close()
	keys := []Key{
		{Name: "b", Cycle: 1},
		{Name: "a", Cycle: 2, Sub: "s"},
		{Name: "a", Cycle: 1},
		{Name: "a", Cycle: 1, Sub: "s"},
	}
	for _, k := range keys {
		require.NoError(t, f.Write(k, "", []byte(k.String()), 0))
	}

	var all []string
	for e := range f.Entries() {
		all = append(all, e.Key.String())
	}
	// Name ids order by first use: "b" was interned before "a".
	assert.Equal(t, []string{"b;1", "a;1", "a/s;1", "a/s;2"}, all)

	var elems []string
	for e := range f.Elements() {
		elems = append(elems, e.Key.String())
	}
	assert.Equal(t, []string{"b;1", "a;1", "a/s;2"}, elems)
}

func TestBadMagic(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte("NOTASRO!0123456789abcdef"), 0o644))

	_, err := Open(path, false)
	require.ErrorIs(t, err, ErrBadMagic)
	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, OpOpen, oe.Op)
}

func TestShortHeader(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte(Magic+"\x18\x00\x00"), 0o644))

	_, err := Open(path, false)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestCorruptDirectory(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "a", Cycle: 1}, "", []byte("a"), 0))
	require.NoError(t, f.FinishWrite())
	require.NoError(t, f.Close())

	h := diskHeader(t, path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[h.dirOffset+h.dirLength-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = Open(path, false)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestInterrupted(t *testing.T) {
	path := tempPath(t)
	a := Key{Name: "a", Cycle: 1}
	b := Key{Name: "b", Cycle: 1}

	f := openRW(t, path)
	require.NoError(t, f.Write(a, "", make([]byte, 300), 0))
	require.NoError(t, f.FinishWrite())
	require.NoError(t, f.Write(b, "", make([]byte, 500), 0))
	// Simulate a crash: drop the storage without committing.
	require.NoError(t, f.st.Close())

	_, err := Open(path, false)
	require.ErrorIs(t, err, ErrInterrupted)

	f, err = Open(path, false, WithRecovery())
	require.NoError(t, err)
	assert.True(t, f.Recovered())
	got, err := f.Read(a)
	require.NoError(t, err)
	assert.Len(t, got, 300)
	_, err = f.Read(b)
	assert.ErrorIs(t, err, ErrNotFound)
	checkLayout(t, f)
	require.NoError(t, f.Close())

	// Recovery committed, so a plain open works again.
	f = openRW(t, path)
	assert.Equal(t, 1, f.Len())
	require.NoError(t, f.Close())
}

func TestRecoveryKeepsReplacedPayload(t *testing.T) {
	path := tempPath(t)
	a := Key{Name: "a", Cycle: 1}
	b := Key{Name: "b", Cycle: 1}
	committed := bytes.Repeat([]byte{0xaa}, 300)

	f := openRW(t, path)
	require.NoError(t, f.Write(a, "", committed, 0))
	require.NoError(t, f.FinishWrite())

	// Overwrite a, then write b, which would fit in the space a held.
	require.NoError(t, f.Write(a, "", bytes.Repeat([]byte{0xbb}, 100), 0))
	require.NoError(t, f.Write(b, "", bytes.Repeat([]byte{0xcc}, 200), 0))
	require.NoError(t, f.st.Close())

	f, err := Open(path, false, WithRecovery())
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, f.Recovered())

	got, err := f.Read(a)
	require.NoError(t, err)
	assert.Equal(t, committed, got)
	_, err = f.Read(b)
	assert.ErrorIs(t, err, ErrNotFound)
	checkLayout(t, f)
}

func TestMapReportsPendingSpans(t *testing.T) {
	path := tempPath(t)
	a := Key{Name: "a", Cycle: 1}
	f := openRW(t, path)
	require.NoError(t, f.Write(a, "", bytes.Repeat([]byte{0xaa}, 300), 0))
	require.NoError(t, f.FinishWrite())

	require.NoError(t, f.Write(a, "", bytes.Repeat([]byte{0xbb}, 50), 0))
	mapped, err := f.Map()
	require.NoError(t, err)
	var pending uint64
	for _, s := range mapped.Spans {
		if s.Kind == SpanPending {
			pending += s.Length
		}
	}
	assert.Equal(t, uint64(300), pending)
	require.NoError(t, mapped.Check())
	require.NoError(t, f.Close())
}

func TestRecoveryReadOnly(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "a", Cycle: 1}, "", []byte("a"), 0))
	require.NoError(t, f.FinishWrite())
	require.NoError(t, f.BeginWrite())
	require.NoError(t, f.st.Close())

	f, err := Open(path, false, WithReadOnly(), WithRecovery())
	require.NoError(t, err)
	assert.True(t, f.ReadOnly())
	assert.True(t, f.Recovered())
	assert.Equal(t, 1, f.Len())
	require.NoError(t, f.Close())

	// Nothing was written back.
	assert.Zero(t, diskHeader(t, path).dirLength)
}

func TestReadOnlyFallback(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "a", Cycle: 1}, "", []byte("a"), 0))
	require.NoError(t, f.Close())

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("test.asro", fs.Fault{FailAfterBytes: -1, FailOpenRW: true})

	_, err := Open(path, false, WithFileSystem(ffs))
	require.ErrorIs(t, err, os.ErrPermission)

	f, err = Open(path, true, WithFileSystem(ffs))
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, f.ReadOnly())

	got, err := f.Read(Key{Name: "a", Cycle: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	assert.ErrorIs(t, f.Write(Key{Name: "b", Cycle: 1}, "", nil, 0), ErrReadOnly)
	assert.ErrorIs(t, f.Delete(Key{Name: "a", Cycle: 1}), ErrReadOnly)
	assert.ErrorIs(t, f.BeginWrite(), ErrReadOnly)
	assert.ErrorIs(t, f.FinishWrite(), ErrReadOnly)
}

func TestReadOnlyMissing(t *testing.T) {
	_, err := Open(tempPath(t), false, WithReadOnly())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestShortWrite(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, openRW(t, path).Close())

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("test.asro", fs.Fault{FailAfterBytes: -1, ShortWrite: true})
	f, err := Open(path, false, WithFileSystem(ffs))
	require.NoError(t, err)

	err = f.Write(Key{Name: "a", Cycle: 1}, "", make([]byte, 64), 0)
	require.ErrorIs(t, err, ErrShortWrite)
	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, OpWrite, oe.Op)
	_ = f.st.Close()
}

func TestFailedPayloadWrite(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, openRW(t, path).Close())

	ffs := fs.NewFaultyFS(nil)
	// Let BeginWrite zero W1, then fail the payload.
	ffs.AddRule("test.asro", fs.Fault{FailAfterBytes: 4})
	f, err := Open(path, false, WithFileSystem(ffs))
	require.NoError(t, err)

	err = f.Write(Key{Name: "a", Cycle: 1}, "", make([]byte, 64), 0)
	require.ErrorIs(t, err, ErrShortWrite)
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.Equal(t, 0, f.Len())
	checkLayout(t, f)
	_ = f.st.Close()
}

func TestShortRead(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "a", Cycle: 1}, "", []byte("a"), 0))
	require.NoError(t, f.Close())

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("test.asro", fs.Fault{FailAfterBytes: -1, ShortRead: true})
	_, err := Open(path, false, WithFileSystem(ffs))
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadError(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "a", Cycle: 1}, "", []byte("a"), 0))
	require.NoError(t, f.Close())

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("test.asro", fs.Fault{FailAfterBytes: -1, FailOnRead: true})
	_, err := Open(path, false, WithFileSystem(ffs))
	require.ErrorIs(t, err, ErrShortRead)
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestClosed(t *testing.T) {
	f := openRW(t, tempPath(t))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.True(t, f.Closed())

	_, err := f.Read(Key{Name: "a", Cycle: 1})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.Write(Key{Name: "a", Cycle: 1}, "", nil, 0), ErrClosed)
	_, err = f.Map()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.Stats()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseCommits(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "a", Cycle: 1}, "", []byte("a"), 0))
	require.NoError(t, f.Close())

	f = openRW(t, path)
	defer f.Close()
	assert.Equal(t, 1, f.Len())
}

func TestSyncCommit(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, openRW(t, path).Close())

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("test.asro", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	f, err := Open(path, false, WithFileSystem(ffs), WithSync(true))
	require.NoError(t, err)
	err = f.BeginWrite()
	assert.ErrorIs(t, err, fs.ErrInjected)
	_ = f.st.Close()
}

func TestOpenStorage(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "a", Cycle: 1}, "x", []byte("payload"), 0))
	require.NoError(t, f.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	closed := false
	st := NewReadOnlyStorage(bytes.NewReader(b), int64(len(b)), func() error { closed = true; return nil })

	f, err = OpenStorage(st, "mem", true)
	require.NoError(t, err)
	got, err := f.Read(Key{Name: "a", Cycle: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	assert.ErrorIs(t, f.Write(Key{Name: "b", Cycle: 1}, "", nil, 0), ErrReadOnly)
	require.NoError(t, f.Close())
	assert.True(t, closed)
}

func TestLayoutProblems(t *testing.T) {
	l := Layout{Size: 100, Spans: []Span{
		{Kind: SpanHeader, Offset: 0, Length: 24},
		{Kind: SpanPayload, Offset: 30, Length: 20},
		{Kind: SpanFree, Offset: 40, Length: 50},
	}}
	assert.Equal(t, []Problem{
		{Kind: Lost, Offset: 24, Length: 6},
		{Kind: DoublyUsed, Offset: 40, Length: 10},
		{Kind: Lost, Offset: 90, Length: 10},
	}, l.Problems())
	err := l.Check()
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), "16 bytes lost")
}

func TestRandomOperations(t *testing.T) {
	path := tempPath(t)
	rng := testutil.NewRNG(42)
	f := openRW(t, path)
	want := map[Key][]byte{}

	for i := 0; i < 400; i++ {
		k := Key{Name: rng.Name(5), Cycle: int32(1 + rng.Intn(3))}
		switch op := rng.Intn(10); {
		case op < 6:
			data := bytes.Repeat([]byte{byte(i)}, rng.Intn(2000))
			require.NoError(t, f.Write(k, "", data, rng.Intn(5)))
			want[k] = data
		case op < 8:
			err := f.Delete(k)
			if _, ok := want[k]; ok {
				require.NoError(t, err)
				delete(want, k)
			} else {
				require.True(t, errors.Is(err, ErrNotFound))
			}
		case op < 9:
			require.NoError(t, f.FinishWrite())
		default:
			require.NoError(t, f.Close())
			f = openRW(t, path)
		}
		checkLayout(t, f)
	}
	require.NoError(t, f.Close())

	f = openRW(t, path)
	defer f.Close()
	assert.Equal(t, len(want), f.Len())
	for k, data := range want {
		got, err := f.Read(k)
		require.NoError(t, err, k.String())
		assert.True(t, bytes.Equal(data, got), k.String())
	}
}

func TestOpenMapped(t *testing.T) {
	path := tempPath(t)
	f := openRW(t, path)
	require.NoError(t, f.Write(Key{Name: "a", Cycle: 1}, "", bytes.Repeat([]byte("abc"), 500), 3))
	require.NoError(t, f.Close())

	f, err := OpenMapped(path)
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, f.ReadOnly())
	got, err := f.Read(Key{Name: "a", Cycle: 1})
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("abc"), 500), got)
	checkLayout(t, f)

	_, err = OpenMapped(testutil.TempPath(t, "missing.asro"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
