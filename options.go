package asro

import (
	"log/slog"

	"github.com/hupe1980/asro/container"
	"github.com/hupe1980/asro/internal/fs"
)

// FileSystem is the filesystem seam used to open container files.
type FileSystem = fs.FileSystem

// DefaultCompressionLevel is the compression level elements use unless
// configured otherwise. Level 0 stores payloads uncompressed.
const DefaultCompressionLevel = 1

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	fsys             FileSystem
	sync             bool
	recovery         bool
	compressionLevel int
	remoteCacheSize  int64
	remoteBlockSize  int64
}

// Option configures a Registry, Archive or OpenRemote.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &asro.BasicMetricsCollector{}
//	reg := asro.NewRegistry(asro.WithMetricsCollector(metrics))
//	// ... use reg ...
//	stats := metrics.GetStats()
//	fmt.Printf("Writes: %d, stored %d of %d bytes\n", stats.WriteCount, stats.StoredBytes, stats.WriteBytes)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := asro.NewJSONLogger(slog.LevelInfo)
//	reg := asro.NewRegistry(asro.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFileSystem replaces the local filesystem, e.g. with a FaultyFS in tests.
func WithFileSystem(fsys FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fsys = fsys
	}
}

// localFS reports whether files are opened through the operating system
// directly, so platform file ids identify them.
func (o options) localFS() bool {
	_, ok := o.fsys.(fs.LocalFS)
	return ok
}

// WithSync makes every commit fsync the file before and after the header
// is rewritten.
func WithSync(enabled bool) Option {
	return func(o *options) {
		o.sync = enabled
	}
}

// WithRecovery lets files left mid-transaction be opened by salvaging their
// last committed directory instead of failing with ErrInterrupted.
func WithRecovery() Option {
	return func(o *options) {
		o.recovery = true
	}
}

// WithCompressionLevel sets the default compression level of elements:
// 0 stores uncompressed, 1..3 select LZ4, 4 and above zstd.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.compressionLevel = max(level, 0)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fsys:             fs.Default,
		compressionLevel: DefaultCompressionLevel,
		remoteCacheSize:  DefaultRemoteCacheSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o options) containerOptions(extra ...container.Option) []container.Option {
	opts := []container.Option{
		container.WithLogger(o.logger.Logger),
		container.WithMetricsObserver(observer{m: o.metricsCollector}),
		container.WithFileSystem(o.fsys),
		container.WithSync(o.sync),
	}
	if o.recovery {
		opts = append(opts, container.WithRecovery())
	}
	return append(opts, extra...)
}
