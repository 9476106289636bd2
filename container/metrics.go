package container

import "time"

// MetricsObserver receives per-operation measurements.
type MetricsObserver interface {
	// OnRead is called after a payload read with its logical size.
	OnRead(duration time.Duration, bytes int, err error)

	// OnWrite is called after a payload write with its logical and stored size.
	OnWrite(duration time.Duration, bytes, stored int, err error)

	// OnDelete is called after a delete with the number of removed entries.
	OnDelete(duration time.Duration, removed int, err error)

	// OnCommit is called after the metadata region has been rewritten.
	OnCommit(duration time.Duration, bytes int, err error)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnRead(time.Duration, int, error)       {}
func (NoopMetricsObserver) OnWrite(time.Duration, int, int, error) {}
func (NoopMetricsObserver) OnDelete(time.Duration, int, error)     {}
func (NoopMetricsObserver) OnCommit(time.Duration, int, error)     {}
