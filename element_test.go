package asro

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementVersioning(t *testing.T) {
	path := tempPath(t)
	reg := NewRegistry()
	defer reg.Close()

	var els []*Element
	for want := int32(1); want <= 3; want++ {
		el, err := CreateElement(reg, path, "tbl")
		require.NoError(t, err)
		assert.Equal(t, want, el.Cycle())
		els = append(els, el)
	}
	require.NoError(t, els[1].Delete())

	el, err := CreateElement(reg, path, "tbl")
	require.NoError(t, err)
	assert.Equal(t, int32(2), el.Cycle(), "gap is reused first")
	els[1] = el

	el, err = CreateElement(reg, path, "tbl")
	require.NoError(t, err)
	assert.Equal(t, int32(4), el.Cycle())
	els = append(els, el)

	for _, el := range els {
		require.NoError(t, el.Close())
	}
	assert.Equal(t, 0, reg.Len())
}

func TestElementSaveLoad(t *testing.T) {
	path := tempPath(t)
	reg := NewRegistry()
	defer reg.Close()

	el, err := CreateElement(reg, path, "img")
	require.NoError(t, err)
	assert.Equal(t, ModeWrite, el.Mode())
	assert.Equal(t, DefaultCompressionLevel, el.CompressionLevel())

	payload := bytes.Repeat([]byte("pixel"), 1000)
	require.NoError(t, el.Save("image/raw", payload))

	ent, err := el.Stat()
	require.NoError(t, err)
	assert.True(t, ent.Compressed())
	assert.Equal(t, uint32(len(payload)), ent.DataLength)

	el.SetCompressionLevel(0)
	require.NoError(t, el.Save("image/raw", payload))
	ent, err = el.Stat()
	require.NoError(t, err)
	assert.False(t, ent.Compressed())
	require.NoError(t, el.Close())

	el, err = OpenElement(reg, path, "img", 0, ModeRead)
	require.NoError(t, err)
	defer el.Close()
	assert.Equal(t, int32(1), el.Cycle())

	got, err := el.Load()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	class, err := el.Class()
	require.NoError(t, err)
	assert.Equal(t, "image/raw", class)

	err = el.Save("x", nil)
	require.ErrorIs(t, err, ErrReadOnly)
	assert.Equal(t, WriteError, KindOf(err))
}

func TestElementSubs(t *testing.T) {
	path := tempPath(t)
	reg := NewRegistry(WithCompressionLevel(4))
	defer reg.Close()

	el, err := CreateElement(reg, path, "table")
	require.NoError(t, err)
	defer el.Close()
	assert.Equal(t, 4, el.CompressionLevel())

	subs := []Sub{
		{Name: "b", Class: "float64", Data: make([]byte, 1024)},
		{Name: "a", Class: "int32", Data: []byte{1, 2, 3, 4}},
		{Name: "c", Data: nil},
	}
	require.NoError(t, el.SaveSubs(subs))

	names, err := el.SubNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
	n, err := el.NumSubs()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := el.ReadSub("b")
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 1024), got)

	all, err := el.ReadAllSubs()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, Sub{Name: "a", Class: "int32", Data: []byte{1, 2, 3, 4}}, all[0])
	assert.Equal(t, "float64", all[1].Class)

	require.NoError(t, el.DeleteSub("a"))
	names, err = el.SubNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, names)

	err = el.DeleteSub("a")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, DeleteError, KindOf(err))

	_, err = el.ReadSub("")
	assert.Error(t, err)
	assert.Error(t, el.SaveSubs([]Sub{{Name: ""}}))
}

func TestElementDeleteCascade(t *testing.T) {
	path := tempPath(t)
	reg := NewRegistry()
	defer reg.Close()

	keep, err := CreateElement(reg, path, "keep")
	require.NoError(t, err)
	el, err := CreateElement(reg, path, "table")
	require.NoError(t, err)
	require.NoError(t, el.SaveSubs([]Sub{{Name: "x", Data: []byte("1")}, {Name: "y", Data: []byte("2")}}))
	require.NoError(t, el.Delete())

	_, err = el.Load()
	assert.ErrorIs(t, err, ErrElementClosed)
	assert.NoError(t, el.Close())

	_, err = OpenElement(reg, path, "table", 1, ModeRead)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ReadError, KindOf(err))

	f, err := keep.h.File()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len(), "subs removed with their element")
	require.NoError(t, keep.Close())
}

func TestOpenElementMissing(t *testing.T) {
	path := tempPath(t)
	reg := NewRegistry()
	defer reg.Close()

	el, err := CreateElement(reg, path, "a")
	require.NoError(t, err)
	defer el.Close()

	_, err = OpenElement(reg, path, "nope", 0, ModeRead)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = OpenElement(reg, path, "a", 7, ModeWrite)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, reg.RefCount(path), "failed opens release their handle")
}
