package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	// MaxChunk is the largest uncompressed span a single chunk may cover.
	MaxChunk = 0xffffff

	// MinSize is the smallest payload worth compressing.
	MinSize = 256

	// HeaderSize is the size of a chunk header.
	HeaderSize = 9
)

var (
	// ErrCorrupt is returned when a compressed payload cannot be decoded.
	ErrCorrupt = errors.New("compress: corrupt payload")

	tagLZ4  = [2]byte{'L', '4'}
	tagZstd = [2]byte{'Z', 'S'}
)

// Algorithm identifies the codec used for a chunk.
type Algorithm uint8

const (
	// None stores payloads raw.
	None Algorithm = iota
	// LZ4 is fast block compression.
	LZ4
	// Zstd trades speed for ratio.
	Zstd
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}
}

// ForLevel maps a compression level to the algorithm that serves it.
// Levels 1-3 use LZ4, 4 and above use zstd.
func ForLevel(level int) Algorithm {
	switch {
	case level <= 0:
		return None
	case level <= 3:
		return LZ4
	default:
		return Zstd
	}
}

// Compress compresses src at the given level.
//
// It reports false when compression is disabled, src is shorter than
// MinSize, a chunk fails to shrink, or the framed result is not strictly
// smaller than src. The caller stores src raw in that case.
func Compress(level int, src []byte) ([]byte, bool) {
	alg := ForLevel(level)
	if alg == None || len(src) < MinSize {
		return nil, false
	}

	out := make([]byte, 0, len(src))
	for rest := src; len(rest) > 0; {
		n := chunkLen(len(rest))
		chunk, ok := compressChunk(alg, level, rest[:n])
		if !ok {
			return nil, false
		}
		out = append(out, chunk...)
		if len(out) >= len(src) {
			return nil, false
		}
		rest = rest[n:]
	}
	return out, true
}

// chunkLen picks the next chunk size. Two chunks of equal size are preferred
// to one full chunk plus a small tail.
func chunkLen(remaining int) int {
	switch {
	case remaining <= MaxChunk:
		return remaining
	case remaining < 2*MaxChunk:
		return remaining / 2
	default:
		return MaxChunk
	}
}

// hcLevel returns the LZ4 HC search depth for levels 2 and 3.
func hcLevel(level int) lz4.CompressionLevel {
	if level <= 2 {
		return lz4.Level5
	}
	return lz4.Level9
}

func compressChunk(alg Algorithm, level int, src []byte) ([]byte, bool) {
	var (
		tag     [2]byte
		method  byte
		payload []byte
	)

	switch alg {
	case LZ4:
		tag = tagLZ4
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		var (
			n   int
			err error
		)
		if level == 1 {
			n, err = lz4.CompressBlock(src, dst, nil)
		} else {
			method = byte(level - 1)
			n, err = lz4.CompressBlockHC(src, dst, hcLevel(level), nil, nil)
		}
		if err != nil || n == 0 {
			return nil, false // Incompressible
		}
		payload = dst[:n]
	case Zstd:
		tag = tagZstd
		el := zstd.EncoderLevelFromZstd(level)
		method = byte(el)
		enc := getZstdEncoder(el)
		payload = enc.EncodeAll(src, nil)
		putZstdEncoder(el, enc)
	default:
		return nil, false
	}

	if len(payload) == 0 || len(payload)+HeaderSize >= len(src) {
		return nil, false
	}

	chunk := make([]byte, HeaderSize+len(payload))
	chunk[0], chunk[1], chunk[2] = tag[0], tag[1], method
	putUint24(chunk[3:], uint32(len(payload)))
	putUint24(chunk[6:], uint32(len(src)))
	copy(chunk[HeaderSize:], payload)
	return chunk, true
}

// Decompress expands src until n uncompressed bytes have been produced.
func Decompress(src []byte, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if len(src) < HeaderSize {
			return nil, fmt.Errorf("%w: truncated chunk header at %d of %d bytes", ErrCorrupt, len(out), n)
		}
		clen := int(uint24(src[3:]))
		ulen := int(uint24(src[6:]))
		if clen == 0 || ulen == 0 || len(src) < HeaderSize+clen {
			return nil, fmt.Errorf("%w: chunk lengths %d/%d exceed payload", ErrCorrupt, clen, ulen)
		}
		if len(out)+ulen > n {
			return nil, fmt.Errorf("%w: chunk overruns logical length %d", ErrCorrupt, n)
		}

		body := src[HeaderSize : HeaderSize+clen]
		var err error
		switch [2]byte{src[0], src[1]} {
		case tagLZ4:
			out, err = decompressLZ4(out, body, ulen)
		case tagZstd:
			out, err = decompressZstd(out, body, ulen)
		default:
			return nil, fmt.Errorf("%w: unknown chunk tag %q", ErrCorrupt, src[0:2])
		}
		if err != nil {
			return nil, err
		}
		src = src[HeaderSize+clen:]
	}
	return out, nil
}

func decompressLZ4(out, body []byte, ulen int) ([]byte, error) {
	start := len(out)
	out = out[:start+ulen]
	m, err := lz4.UncompressBlock(body, out[start:])
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
	}
	if m != ulen {
		return nil, fmt.Errorf("%w: lz4 chunk produced %d of %d bytes", ErrCorrupt, m, ulen)
	}
	return out, nil
}

func decompressZstd(out, body []byte, ulen int) ([]byte, error) {
	dec := getZstdDecoder()
	defer putZstdDecoder(dec)

	start := len(out)
	res, err := dec.DecodeAll(body, out)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
	}
	if len(res)-start != ulen {
		return nil, fmt.Errorf("%w: zstd chunk produced %d of %d bytes", ErrCorrupt, len(res)-start, ulen)
	}
	return res, nil
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// zstd encoders are pooled per level, decoders are level agnostic.
var (
	zstdEncoderPools [zstd.SpeedBestCompression + 1]sync.Pool
	zstdDecoderPool  sync.Pool
)

func getZstdEncoder(level zstd.EncoderLevel) *zstd.Encoder {
	if v := zstdEncoderPools[level].Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	return enc
}

func putZstdEncoder(level zstd.EncoderLevel, enc *zstd.Encoder) {
	zstdEncoderPools[level].Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}
