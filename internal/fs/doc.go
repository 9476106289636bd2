// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open container file with positional read/write and sync
//   - [FileSystem]: the handful of filesystem operations the container needs
//
// # Implementations
//
//   - [LocalFS]: production implementation using the standard os package
//   - [FaultyFS]: test utility that injects I/O errors and short transfers
//
// # Usage
//
// Production code uses fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
//
// Tests inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".asro", fs.Fault{FailAfterBytes: 1024})
//	// inject ffs into component under test
//
// # Design Notes
//
// This package does NOT take context.Context parameters. Local file I/O is
// non-interruptible at the syscall level; remote access goes through
// package blobstore, which does.
package fs
