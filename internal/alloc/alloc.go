package alloc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// growBy is the number of entries added whenever the range table is full.
const growBy = 100

// PairSize is the encoded size of one range.
const PairSize = 8

var (
	// ErrExhausted is returned when no free range can hold a request.
	ErrExhausted = errors.New("alloc: no free range large enough")

	// ErrDoubleFree is returned when a released span overlaps free space.
	ErrDoubleFree = errors.New("alloc: span is already free")

	// ErrCorrupt is returned when a decoded free list violates its invariants.
	ErrCorrupt = errors.New("alloc: corrupt free list")
)

// Range is a span of unused bytes.
type Range struct {
	Offset uint32
	Length uint32
}

// End returns the first byte past the range.
func (r Range) End() uint64 { return uint64(r.Offset) + uint64(r.Length) }

// FreeList is the ordered table of free ranges.
type FreeList struct {
	ranges []Range
}

// New returns a free list holding one range.
func New(offset, length uint32) *FreeList {
	fl := &FreeList{ranges: make([]Range, 0, growBy)}
	if length > 0 {
		fl.ranges = append(fl.ranges, Range{Offset: offset, Length: length})
	}
	return fl
}

// FromRanges builds a free list from decoded ranges and validates them.
func FromRanges(rs []Range) (*FreeList, error) {
	fl := &FreeList{ranges: make([]Range, len(rs), roundUp(len(rs)))}
	copy(fl.ranges, rs)
	if err := fl.Check(); err != nil {
		return nil, err
	}
	return fl, nil
}

func roundUp(n int) int {
	return (n/growBy + 1) * growBy
}

// Allocate reserves size bytes and returns their offset.
//
// The smallest range that fits wins; ties go to the lowest offset. A zero
// size reserves nothing and returns offset 0.
func (fl *FreeList) Allocate(size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	best := -1
	for i, r := range fl.ranges {
		if r.Length >= size && (best < 0 || r.Length < fl.ranges[best].Length) {
			best = i
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: %d bytes requested", ErrExhausted, size)
	}

	r := &fl.ranges[best]
	off := r.Offset
	if r.Length == size {
		fl.remove(best)
	} else {
		r.Offset += size
		r.Length -= size
	}
	return off, nil
}

// Release returns a span to the free list, merging it with adjacent ranges.
func (fl *FreeList) Release(offset, size uint32) error {
	if size == 0 {
		return nil
	}
	end := uint64(offset) + uint64(size)

	// First range starting at or after offset.
	idx := 0
	for idx < len(fl.ranges) && fl.ranges[idx].Offset < offset {
		idx++
	}

	if idx > 0 && fl.ranges[idx-1].End() > uint64(offset) {
		return fmt.Errorf("%w: [%d,%d) overlaps [%d,%d)", ErrDoubleFree, offset, end,
			fl.ranges[idx-1].Offset, fl.ranges[idx-1].End())
	}
	if idx < len(fl.ranges) && uint64(fl.ranges[idx].Offset) < end {
		return fmt.Errorf("%w: [%d,%d) overlaps [%d,%d)", ErrDoubleFree, offset, end,
			fl.ranges[idx].Offset, fl.ranges[idx].End())
	}

	before := idx > 0 && fl.ranges[idx-1].End() == uint64(offset)
	after := idx < len(fl.ranges) && uint64(fl.ranges[idx].Offset) == end

	switch {
	case before && !after:
		fl.ranges[idx-1].Length += size
	case !before && after:
		fl.ranges[idx].Offset = offset
		fl.ranges[idx].Length += size
	case before && after:
		fl.ranges[idx-1].Length += size + fl.ranges[idx].Length
		fl.remove(idx)
	default:
		fl.insert(idx, Range{Offset: offset, Length: size})
	}
	return nil
}

func (fl *FreeList) remove(i int) {
	copy(fl.ranges[i:], fl.ranges[i+1:])
	fl.ranges = fl.ranges[:len(fl.ranges)-1]
}

func (fl *FreeList) insert(i int, r Range) {
	if len(fl.ranges) == cap(fl.ranges) {
		grown := make([]Range, len(fl.ranges), cap(fl.ranges)+growBy)
		copy(grown, fl.ranges)
		fl.ranges = grown
	}
	fl.ranges = fl.ranges[:len(fl.ranges)+1]
	copy(fl.ranges[i+1:], fl.ranges[i:])
	fl.ranges[i] = r
}

// Len returns the number of free ranges.
func (fl *FreeList) Len() int { return len(fl.ranges) }

// Cap returns the current capacity of the range table.
func (fl *FreeList) Cap() int { return cap(fl.ranges) }

// Total returns the number of free bytes.
func (fl *FreeList) Total() uint64 {
	var n uint64
	for _, r := range fl.ranges {
		n += uint64(r.Length)
	}
	return n
}

// Ranges returns a copy of the free ranges in offset order.
func (fl *FreeList) Ranges() []Range {
	out := make([]Range, len(fl.ranges))
	copy(out, fl.ranges)
	return out
}

// Check verifies that ranges are non-empty, sorted, non-overlapping, and
// that no two ranges touch.
func (fl *FreeList) Check() error {
	for i, r := range fl.ranges {
		if r.Length == 0 {
			return fmt.Errorf("%w: empty range at %d", ErrCorrupt, r.Offset)
		}
		if r.End() > 1<<32-1 {
			return fmt.Errorf("%w: range at %d ends past the 32-bit address space", ErrCorrupt, r.Offset)
		}
		if i == 0 {
			continue
		}
		prev := fl.ranges[i-1]
		if uint64(r.Offset) < prev.End() {
			return fmt.Errorf("%w: range at %d overlaps or precedes range at %d", ErrCorrupt, r.Offset, prev.Offset)
		}
		if uint64(r.Offset) == prev.End() {
			return fmt.Errorf("%w: ranges at %d and %d are not coalesced", ErrCorrupt, prev.Offset, r.Offset)
		}
	}
	return nil
}

// EncodedSize returns the size of the binary form.
func (fl *FreeList) EncodedSize() uint32 { return uint32(len(fl.ranges) * PairSize) }

// MarshalBinary encodes the ranges as little-endian (offset, length) pairs.
func (fl *FreeList) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, fl.EncodedSize())
	for _, r := range fl.ranges {
		buf = binary.LittleEndian.AppendUint32(buf, r.Offset)
		buf = binary.LittleEndian.AppendUint32(buf, r.Length)
	}
	return buf, nil
}

// UnmarshalBinary replaces the ranges with the decoded pairs.
func (fl *FreeList) UnmarshalBinary(data []byte) error {
	if len(data)%PairSize != 0 {
		return fmt.Errorf("%w: length %d is not a multiple of %d", ErrCorrupt, len(data), PairSize)
	}
	rs := make([]Range, len(data)/PairSize)
	for i := range rs {
		rs[i].Offset = binary.LittleEndian.Uint32(data[i*PairSize:])
		rs[i].Length = binary.LittleEndian.Uint32(data[i*PairSize+4:])
	}
	decoded, err := FromRanges(rs)
	if err != nil {
		return err
	}
	*fl = *decoded
	return nil
}
