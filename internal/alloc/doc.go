// Package alloc implements the container's free-space allocator.
//
// A FreeList tracks the unused byte spans of a file as ranges sorted by
// offset. Allocation is best fit; release coalesces with both neighbours so
// no two free ranges are ever adjacent.
package alloc
