package directory

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/asro/internal/hash"
)

const (
	blobMagic   = 0x44525341 // "ASRD"
	blobVersion = 1

	// HeaderSize is the size of the fixed blob header.
	HeaderSize = 16
)

// MarshalBinary encodes the directory.
// Format:
// Magic (4 bytes)
// Version (4 bytes)
// Checksum (4 bytes) - CRC32C of payload
// PayloadLength (4 bytes)
// Payload:
//
//	NumNames (4 bytes), Names (string)...
//	NumClasses (4 bytes), Classes (string)...
//	NumEntries (4 bytes)
//	Entries...
//	  Name (4 bytes)
//	  Cycle (4 bytes)
//	  Sub (string)
//	  Offset, FileLength, DataLength, Class (4 bytes each)
//
// Strings are a 4 byte length followed by the bytes.
func (d *Directory) MarshalBinary() ([]byte, error) {
	size := HeaderSize + 12 + d.entries.Len()*28
	for _, s := range d.names {
		size += 4 + len(s)
	}
	for _, s := range d.classes {
		size += 4 + len(s)
	}

	pb := newPayloadBuffer(make([]byte, HeaderSize, size))

	pb.writeUint32(uint32(len(d.names)))
	for _, s := range d.names {
		pb.writeString(s)
	}
	pb.writeUint32(uint32(len(d.classes)))
	for _, s := range d.classes {
		pb.writeString(s)
	}
	pb.writeUint32(uint32(d.entries.Len()))
	d.entries.Ascend(func(e Entry) bool {
		pb.writeUint32(e.Key.Name)
		pb.writeUint32(uint32(e.Key.Cycle))
		pb.writeString(e.Key.Sub)
		pb.writeUint32(e.Value.Offset)
		pb.writeUint32(e.Value.FileLength)
		pb.writeUint32(e.Value.DataLength)
		pb.writeUint32(e.Value.Class)
		return pb.err == nil
	})
	if pb.err != nil {
		return nil, pb.err
	}

	buf := pb.buf
	payload := buf[HeaderSize:]
	if uint64(len(buf)) > math.MaxUint32 {
		return nil, fmt.Errorf("directory too large: %d bytes", len(buf))
	}
	binary.LittleEndian.PutUint32(buf[0:4], blobMagic)
	binary.LittleEndian.PutUint32(buf[4:8], blobVersion)
	binary.LittleEndian.PutUint32(buf[8:12], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(payload)))
	return buf, nil
}

// BlobLength returns the total length (header included) of the blob whose
// header is at the start of b.
func BlobLength(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if magic := binary.LittleEndian.Uint32(b[0:4]); magic != blobMagic {
		return 0, fmt.Errorf("%w: invalid magic %x", ErrCorrupt, magic)
	}
	return HeaderSize + int(binary.LittleEndian.Uint32(b[12:16])), nil
}

// Unmarshal decodes a directory blob.
func Unmarshal(b []byte) (*Directory, error) {
	n, err := BlobLength(b)
	if err != nil {
		return nil, err
	}
	if version := binary.LittleEndian.Uint32(b[4:8]); version != blobVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, version)
	}
	if n != len(b) {
		return nil, fmt.Errorf("%w: blob is %d bytes, header says %d", ErrCorrupt, len(b), n)
	}
	payload := b[HeaderSize:]
	if !hash.Verify(payload, binary.LittleEndian.Uint32(b[8:12])) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	d := New()
	pb := newPayloadBuffer(payload)

	numNames := pb.readCount(4)
	for i := 0; i < numNames && pb.err == nil; i++ {
		s := pb.readString()
		if _, dup := d.nameIdx[s]; dup && pb.err == nil {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrCorrupt, s)
		}
		d.InternName(s)
	}
	numClasses := pb.readCount(4)
	for i := 0; i < numClasses && pb.err == nil; i++ {
		s := pb.readString()
		if _, dup := d.clsIdx[s]; dup && pb.err == nil {
			return nil, fmt.Errorf("%w: duplicate class %q", ErrCorrupt, s)
		}
		d.InternClass(s)
	}
	numEntries := pb.readCount(28)
	for i := 0; i < numEntries && pb.err == nil; i++ {
		var e Entry
		e.Key.Name = pb.readUint32()
		e.Key.Cycle = int32(pb.readUint32())
		e.Key.Sub = pb.readString()
		e.Value.Offset = pb.readUint32()
		e.Value.FileLength = pb.readUint32()
		e.Value.DataLength = pb.readUint32()
		e.Value.Class = pb.readUint32()
		if pb.err != nil {
			break
		}
		if int(e.Key.Name) >= len(d.names) || int(e.Value.Class) >= len(d.classes) {
			return nil, fmt.Errorf("%w: entry %d references unknown table id", ErrCorrupt, i)
		}
		if _, dup := d.Put(e.Key, e.Value); dup {
			return nil, fmt.Errorf("%w: duplicate key %q/%q;%d", ErrCorrupt, d.names[e.Key.Name], e.Key.Sub, e.Key.Cycle)
		}
	}
	if pb.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, pb.err)
	}
	if pb.pos != len(payload) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(payload)-pb.pos)
	}
	return d, nil
}

// UnmarshalBinary replaces d with the decoded blob.
func (d *Directory) UnmarshalBinary(b []byte) error {
	nd, err := Unmarshal(b)
	if err != nil {
		return err
	}
	*d = *nd
	return nil
}

type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	if uint64(len(s)) > math.MaxUint32 {
		p.err = fmt.Errorf("string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, uint32(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) readUint32() uint32 {
	if p.err != nil {
		return 0
	}
	if p.pos+4 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

// readCount reads an element count and rejects counts that cannot fit in the
// remaining bytes given a minimum element size.
func (p *payloadBuffer) readCount(minSize int) int {
	n := int(p.readUint32())
	if p.err == nil && n > (len(p.buf)-p.pos)/minSize {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	return n
}

func (p *payloadBuffer) readString() string {
	l := int(p.readUint32())
	if p.err != nil {
		return ""
	}
	if l > len(p.buf)-p.pos {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}
