// Package mmap maps files read-only into memory.
//
// It backs read-only container inspection and local blob reads, where the
// access pattern is a header read followed by scattered payload reads.
// Unix uses mmap(2) and madvise(2); Windows uses CreateFileMapping and
// MapViewOfFile, with access hints ignored.
package mmap
