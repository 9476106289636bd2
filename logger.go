package asro

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with asro-specific fields.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithElement adds name and cycle fields to the logger.
func (l *Logger) WithElement(name string, cycle int32) *Logger {
	return &Logger{
		Logger: l.Logger.With("name", name, "cycle", cycle),
	}
}

// LogAcquire logs a registry acquire.
func (l *Logger) LogAcquire(ctx context.Context, path string, readOnly bool, refs int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "acquire failed",
			"path", path,
			"read_only", readOnly,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "acquire completed",
			"path", path,
			"read_only", readOnly,
			"refs", refs,
		)
	}
}

// LogPromote logs a read-only to read-write reopen.
func (l *Logger) LogPromote(ctx context.Context, path string, stale int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "promotion to read-write failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "promoted to read-write",
			"path", path,
			"stale_handles", stale,
		)
	}
}

// LogRelease logs the final release of a file.
func (l *Logger) LogRelease(ctx context.Context, path string, removed bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "release failed",
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "file closed",
			"path", path,
			"removed", removed,
		)
	}
}

// LogArchive logs an archive upload.
func (l *Logger) LogArchive(ctx context.Context, path, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive failed",
			"path", path,
			"blob", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "archive uploaded",
			"path", path,
			"blob", name,
			"bytes", bytes,
		)
	}
}
