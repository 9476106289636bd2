package directory

import (
	"encoding/binary"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(seq func(func(Entry) bool)) []Key {
	var out []Key
	for e := range seq {
		out = append(out, e.Key)
	}
	return out
}

func TestKeyOrder(t *testing.T) {
	ordered := []Key{
		{Name: 0, Cycle: 1, Sub: ""},
		{Name: 0, Cycle: 1, Sub: "a"},
		{Name: 0, Cycle: 1, Sub: "b"},
		{Name: 0, Cycle: 2, Sub: ""},
		{Name: 1, Cycle: -5, Sub: "z"},
		{Name: 1, Cycle: 0, Sub: ""},
	}
	for i := 0; i < len(ordered)-1; i++ {
		assert.True(t, ordered[i].Less(ordered[i+1]), "%v < %v", ordered[i], ordered[i+1])
		assert.False(t, ordered[i+1].Less(ordered[i]))
	}

	d := New()
	for _, i := range []int{3, 5, 0, 2, 4, 1} {
		d.Put(ordered[i], Value{})
	}
	assert.Equal(t, ordered, keys(d.All()))
}

func TestInternTables(t *testing.T) {
	d := New()
	assert.Equal(t, uint32(0), d.InternName("img"))
	assert.Equal(t, uint32(1), d.InternName("cal"))
	assert.Equal(t, uint32(0), d.InternName("img"))

	id, ok := d.LookupName("cal")
	assert.True(t, ok)
	assert.Equal(t, uint32(1), id)
	_, ok = d.LookupName("nope")
	assert.False(t, ok)

	assert.Equal(t, uint32(0), d.InternClass(""))
	assert.Equal(t, uint32(1), d.InternClass("TFTable"))
	assert.Equal(t, "TFTable", d.ClassName(1))
	assert.Equal(t, "", d.ClassName(99))
	assert.Equal(t, "cal", d.Name(1))
	assert.Equal(t, "", d.Name(99))
	assert.Equal(t, []string{"img", "cal"}, d.Names())
}

func TestPutGetDelete(t *testing.T) {
	d := New()
	k := Key{Name: 0, Cycle: 1}

	_, replaced := d.Put(k, Value{Offset: 32, FileLength: 10, DataLength: 10})
	assert.False(t, replaced)

	old, replaced := d.Put(k, Value{Offset: 64, FileLength: 5, DataLength: 10})
	assert.True(t, replaced)
	assert.Equal(t, uint32(32), old.Offset)

	v, ok := d.Get(k)
	require.True(t, ok)
	assert.Equal(t, uint32(64), v.Offset)
	assert.True(t, v.Compressed())
	assert.Equal(t, 1, d.Len())

	v, ok = d.Delete(k)
	assert.True(t, ok)
	assert.Equal(t, uint32(64), v.Offset)
	_, ok = d.Delete(k)
	assert.False(t, ok)
	assert.Equal(t, 0, d.Len())
}

func TestSubsAndDeleteRange(t *testing.T) {
	d := New()
	img := d.InternName("img")
	other := d.InternName("other")

	put := func(name uint32, cycle int32, sub string) {
		d.Put(Key{Name: name, Cycle: cycle, Sub: sub}, Value{Offset: uint32(cycle)})
	}
	put(img, 1, "")
	put(img, 1, "b")
	put(img, 1, "a")
	put(img, 2, "")
	put(img, 2, "a")
	put(other, 1, "a")

	var subs []string
	for e := range d.Subs(img, 1) {
		subs = append(subs, e.Key.Sub)
	}
	assert.Equal(t, []string{"a", "b"}, subs)
	assert.Equal(t, 2, d.NumSubs(img, 1))
	assert.Equal(t, 1, d.NumSubs(img, 2))
	assert.Equal(t, 0, d.NumSubs(img, 3))

	removed := d.DeleteRange(img, 1)
	require.Len(t, removed, 2)
	assert.Equal(t, "a", removed[0].Key.Sub)
	assert.Equal(t, "b", removed[1].Key.Sub)

	// The table entry and neighbouring generations are untouched.
	assert.Equal(t, []Key{
		{Name: img, Cycle: 1},
		{Name: img, Cycle: 2},
		{Name: img, Cycle: 2, Sub: "a"},
		{Name: other, Cycle: 1, Sub: "a"},
	}, keys(d.All()))
}

func TestDeleteRangeMaxCycle(t *testing.T) {
	d := New()
	d.Put(Key{Name: 0, Cycle: math.MaxInt32, Sub: "x"}, Value{})
	d.Put(Key{Name: 1, Cycle: math.MinInt32, Sub: "y"}, Value{})

	removed := d.DeleteRange(0, math.MaxInt32)
	require.Len(t, removed, 1)
	assert.Equal(t, "x", removed[0].Key.Sub)
	assert.Equal(t, 1, d.Len())
}

func TestFreeCycle(t *testing.T) {
	d := New()
	img := d.InternName("img")
	assert.Equal(t, int32(1), d.FreeCycle(img))

	for _, c := range []int32{1, 2, 4} {
		d.Put(Key{Name: img, Cycle: c}, Value{})
		d.Put(Key{Name: img, Cycle: c, Sub: "s"}, Value{})
	}
	assert.Equal(t, int32(3), d.FreeCycle(img))

	d.Put(Key{Name: img, Cycle: 3}, Value{})
	assert.Equal(t, int32(5), d.FreeCycle(img))

	// Other names do not influence the scan.
	other := d.InternName("other")
	d.Put(Key{Name: other, Cycle: 1}, Value{})
	assert.Equal(t, int32(2), d.FreeCycle(other))
	assert.Equal(t, int32(5), d.FreeCycle(img))
}

func TestFreeCycleExhausted(t *testing.T) {
	d := New()
	d.Put(Key{Name: 0, Cycle: math.MaxInt32}, Value{})
	assert.Equal(t, int32(1), d.FreeCycle(0))

	d = New()
	d.Put(Key{Name: 0, Cycle: 1}, Value{})
	d.Put(Key{Name: 0, Cycle: math.MaxInt32}, Value{})
	assert.Equal(t, int32(2), d.FreeCycle(0))
}

func TestNextCycle(t *testing.T) {
	d := New()
	img := d.InternName("img")
	other := d.InternName("other")
	d.Put(Key{Name: img, Cycle: 1}, Value{})
	d.Put(Key{Name: img, Cycle: 1, Sub: "a"}, Value{})
	d.Put(Key{Name: img, Cycle: 5}, Value{})
	d.Put(Key{Name: other, Cycle: 2}, Value{})

	assert.Equal(t, int32(1), d.NextCycle(img, 0))
	assert.Equal(t, int32(5), d.NextCycle(img, 1))
	assert.Equal(t, int32(0), d.NextCycle(img, 5))
	assert.Equal(t, int32(0), d.NextCycle(img, math.MaxInt32))
	assert.Equal(t, int32(2), d.NextCycle(other, 0))
}

func TestElements(t *testing.T) {
	d := New()
	d.Put(Key{Name: 0, Cycle: 1}, Value{})
	d.Put(Key{Name: 0, Cycle: 1, Sub: "a"}, Value{})
	d.Put(Key{Name: 0, Cycle: 2, Sub: "a"}, Value{})
	d.Put(Key{Name: 1, Cycle: 1}, Value{})

	assert.Equal(t, []Key{
		{Name: 0, Cycle: 1},
		{Name: 0, Cycle: 2, Sub: "a"},
		{Name: 1, Cycle: 1},
	}, keys(d.Elements()))

	// Early termination.
	n := 0
	for range d.Elements() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func sample() *Directory {
	d := New()
	img := d.InternName("img")
	cal := d.InternName("cal")
	d.InternName("unused")
	raw := d.InternClass("")
	tbl := d.InternClass("TFTable")
	d.Put(Key{Name: img, Cycle: 1}, Value{Offset: 32, FileLength: 300, DataLength: 300, Class: raw})
	d.Put(Key{Name: img, Cycle: 1, Sub: "hdr"}, Value{Offset: 332, FileLength: 12, DataLength: 12, Class: raw})
	d.Put(Key{Name: cal, Cycle: -3}, Value{Offset: 400, FileLength: 90, DataLength: 4000, Class: tbl})
	return d
}

func TestMarshalRoundTrip(t *testing.T) {
	d := sample()
	blob, err := d.MarshalBinary()
	require.NoError(t, err)

	n, err := BlobLength(blob)
	require.NoError(t, err)
	assert.Equal(t, len(blob), n)

	got, err := Unmarshal(blob)
	require.NoError(t, err)
	assert.Equal(t, d.Names(), got.Names())
	assert.Equal(t, d.Classes(), got.Classes())
	assert.Equal(t, slices.Collect(d.All()), slices.Collect(got.All()))

	id, ok := got.LookupName("cal")
	require.True(t, ok)
	assert.Equal(t, uint32(1), id)
	assert.Equal(t, uint32(1), got.InternClass("TFTable"))

	var viaMethod Directory
	require.NoError(t, viaMethod.UnmarshalBinary(blob))
	assert.Equal(t, 3, viaMethod.Len())
}

func TestMarshalEmpty(t *testing.T) {
	blob, err := New().MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, blob, HeaderSize+12)

	got, err := Unmarshal(blob)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestUnmarshalCorrupt(t *testing.T) {
	blob, err := sample().MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"short header", func(b []byte) []byte { return b[:10] }, ErrCorrupt},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrCorrupt},
		{"version", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[4:], 9); return b }, ErrIncompatibleVersion},
		{"truncated", func(b []byte) []byte { return b[:len(b)-1] }, ErrCorrupt},
		{"checksum", func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }, ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mutate(slices.Clone(blob))
			_, err := Unmarshal(b)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnmarshalBadReference(t *testing.T) {
	d := New()
	d.InternName("a")
	d.InternClass("")
	d.Put(Key{Name: 7, Cycle: 1}, Value{})
	blob, err := d.MarshalBinary()
	require.NoError(t, err)

	_, err = Unmarshal(blob)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestBlobLengthPrefix(t *testing.T) {
	blob, err := sample().MarshalBinary()
	require.NoError(t, err)

	n, err := BlobLength(blob[:HeaderSize])
	require.NoError(t, err)
	assert.Equal(t, len(blob), n)
}
