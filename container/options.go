package container

import (
	"log/slog"

	"github.com/hupe1980/asro/internal/fs"
)

// Option defines a configuration option for a File.
type Option func(*File)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *File) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetricsObserver sets the metrics observer.
func WithMetricsObserver(m MetricsObserver) Option {
	return func(f *File) {
		if m != nil {
			f.metrics = m
		}
	}
}

// WithFileSystem sets the file system used by Open.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(f *File) {
		if fsys != nil {
			f.fs = fsys
		}
	}
}

// WithSync makes every commit fsync the payloads before and the header
// after it is rewritten.
func WithSync(enabled bool) Option {
	return func(f *File) {
		f.sync = enabled
	}
}

// WithRecovery makes Open salvage the last committed directory of a file
// that was left mid-transaction instead of failing with ErrInterrupted.
// Writes made after the interrupted BeginWrite are lost.
func WithRecovery() Option {
	return func(f *File) {
		f.recovery = true
	}
}

// WithReadOnly makes Open skip the read-write attempt. Missing files are
// not created.
func WithReadOnly() Option {
	return func(f *File) {
		f.forceReadOnly = true
	}
}
