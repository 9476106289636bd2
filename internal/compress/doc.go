// Package compress implements the chunked block compression used for
// container payloads.
//
// A compressed payload is a sequence of chunks. Each chunk starts with a
// 9-byte header:
//
//	[0:2] algorithm tag ("L4" or "ZS")
//	[2]   method (LZ4: 0 fast, 1 HC; zstd: encoder level)
//	[3:6] compressed length, 24-bit little endian, header excluded
//	[6:9] uncompressed length, 24-bit little endian
//
// Chunks never exceed MaxChunk uncompressed bytes, so the payload stays
// decodable chunk by chunk without any outer framing; the container records
// the total uncompressed length.
package compress
