package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/asro/internal/alloc"
)

const (
	// Magic identifies the format and its version.
	Magic = "ASRO0001"

	// HeaderSize is the size of the fixed file header.
	HeaderSize = 24

	// MaxSize is the logical size limit of a container file.
	MaxSize = 0xffffffff

	// validityOffset is the file offset of W1.
	validityOffset = 12

	seedOffset = HeaderSize + alloc.PairSize
	seedLength = MaxSize - seedOffset
)

type header struct {
	dirOffset  uint32 // W0
	dirLength  uint32 // W1
	freeLength uint32 // W2
	reserve    uint32 // W3
}

// freshHeader describes a file that has never been committed: no directory
// and a single seed range stored at HeaderSize.
func freshHeader() header {
	return header{dirOffset: HeaderSize, freeLength: alloc.PairSize}
}

// regionLength is the size of the metadata region at dirOffset.
func (h header) regionLength() uint64 {
	return uint64(h.dirLength) + uint64(h.freeLength) + uint64(h.reserve)
}

func (h header) encode() []byte {
	b := make([]byte, HeaderSize)
	copy(b, Magic)
	binary.LittleEndian.PutUint32(b[8:], h.dirOffset)
	binary.LittleEndian.PutUint32(b[12:], h.dirLength)
	binary.LittleEndian.PutUint32(b[16:], h.freeLength)
	binary.LittleEndian.PutUint32(b[20:], h.reserve)
	return b
}

func decodeHeader(b []byte) (header, error) {
	if len(b) >= len(Magic) && !bytes.Equal(b[:len(Magic)], []byte(Magic)) {
		return header{}, fmt.Errorf("%w: %q", ErrBadMagic, b[:len(Magic)])
	}
	if len(b) < HeaderSize {
		return header{}, fmt.Errorf("%w: header is %d of %d bytes", ErrShortRead, len(b), HeaderSize)
	}
	h := header{
		dirOffset:  binary.LittleEndian.Uint32(b[8:]),
		dirLength:  binary.LittleEndian.Uint32(b[12:]),
		freeLength: binary.LittleEndian.Uint32(b[16:]),
		reserve:    binary.LittleEndian.Uint32(b[20:]),
	}
	if h.dirOffset < HeaderSize || uint64(h.dirOffset)+h.regionLength() > MaxSize {
		return header{}, fmt.Errorf("%w: metadata region [%d,+%d) out of bounds", ErrCorrupt, h.dirOffset, h.regionLength())
	}
	return h, nil
}
