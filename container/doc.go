// Package container implements the single-file storage engine.
//
// A container file starts with a 24 byte header:
//
//	bytes  0-7   magic "ASRO0001"
//	bytes  8-11  W0 offset of the directory blob
//	bytes 12-15  W1 length of the directory blob (0 while a write is open)
//	bytes 16-19  W2 length of the free list blob, which follows the directory
//	bytes 20-23  W3 reserved bytes after the free list
//
// All words are little endian. Payloads live wherever the free-space
// allocator placed them; the directory records offset, stored length,
// logical length and class tag of each one.
//
// Writes run in a transaction: BeginWrite releases the persisted metadata
// region and zeroes W1 on disk, Write places payloads, and FinishWrite
// serializes the directory and free list into a freshly allocated region
// before rewriting the header. Delete commits immediately.
//
// A File is not safe for concurrent use.
package container
