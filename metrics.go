package asro

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/asro/container"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordRead is called after each payload read with its logical size.
	RecordRead(duration time.Duration, bytes int, err error)

	// RecordWrite is called after each payload write. stored is the number
	// of bytes on disk after compression.
	RecordWrite(duration time.Duration, bytes, stored int, err error)

	// RecordDelete is called after each delete with the number of removed entries.
	RecordDelete(duration time.Duration, removed int, err error)

	// RecordCommit is called after each metadata commit.
	RecordCommit(duration time.Duration, bytes int, err error)

	// RecordAcquire is called after each registry acquire.
	RecordAcquire(promoted bool, err error)

	// RecordRelease is called after each registry release.
	RecordRelease(closed, removed bool, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(time.Duration, int, error)       {}
func (NoopMetricsCollector) RecordWrite(time.Duration, int, int, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, int, error)     {}
func (NoopMetricsCollector) RecordCommit(time.Duration, int, error)     {}
func (NoopMetricsCollector) RecordAcquire(bool, error)                  {}
func (NoopMetricsCollector) RecordRelease(bool, bool, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	ReadCount       atomic.Int64
	ReadErrors      atomic.Int64
	ReadBytes       atomic.Int64
	ReadTotalNanos  atomic.Int64
	WriteCount      atomic.Int64
	WriteErrors     atomic.Int64
	WriteBytes      atomic.Int64
	StoredBytes     atomic.Int64
	WriteTotalNanos atomic.Int64
	DeleteCount     atomic.Int64
	DeleteErrors    atomic.Int64
	DeletedEntries  atomic.Int64
	CommitCount     atomic.Int64
	CommitErrors    atomic.Int64
	CommitBytes     atomic.Int64
	AcquireCount    atomic.Int64
	AcquireErrors   atomic.Int64
	Promotions      atomic.Int64
	ReleaseCount    atomic.Int64
	FilesClosed     atomic.Int64
	FilesRemoved    atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(duration time.Duration, bytes int, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	b.ReadBytes.Add(int64(bytes))
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(duration time.Duration, bytes, stored int, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteBytes.Add(int64(bytes))
	b.StoredBytes.Add(int64(stored))
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, removed int, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
		return
	}
	b.DeletedEntries.Add(int64(removed))
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(_ time.Duration, bytes int, err error) {
	b.CommitCount.Add(1)
	if err != nil {
		b.CommitErrors.Add(1)
		return
	}
	b.CommitBytes.Add(int64(bytes))
}

// RecordAcquire implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAcquire(promoted bool, err error) {
	b.AcquireCount.Add(1)
	if err != nil {
		b.AcquireErrors.Add(1)
		return
	}
	if promoted {
		b.Promotions.Add(1)
	}
}

// RecordRelease implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRelease(closed, removed bool, _ error) {
	b.ReleaseCount.Add(1)
	if closed {
		b.FilesClosed.Add(1)
	}
	if removed {
		b.FilesRemoved.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:      b.ReadCount.Load(),
		ReadErrors:     b.ReadErrors.Load(),
		ReadBytes:      b.ReadBytes.Load(),
		ReadAvgNanos:   avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		WriteCount:     b.WriteCount.Load(),
		WriteErrors:    b.WriteErrors.Load(),
		WriteBytes:     b.WriteBytes.Load(),
		StoredBytes:    b.StoredBytes.Load(),
		WriteAvgNanos:  avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		DeletedEntries: b.DeletedEntries.Load(),
		CommitCount:    b.CommitCount.Load(),
		CommitErrors:   b.CommitErrors.Load(),
		CommitBytes:    b.CommitBytes.Load(),
		AcquireCount:   b.AcquireCount.Load(),
		AcquireErrors:  b.AcquireErrors.Load(),
		Promotions:     b.Promotions.Load(),
		ReleaseCount:   b.ReleaseCount.Load(),
		FilesClosed:    b.FilesClosed.Load(),
		FilesRemoved:   b.FilesRemoved.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount      int64
	ReadErrors     int64
	ReadBytes      int64
	ReadAvgNanos   int64
	WriteCount     int64
	WriteErrors    int64
	WriteBytes     int64
	StoredBytes    int64
	WriteAvgNanos  int64
	DeleteCount    int64
	DeleteErrors   int64
	DeletedEntries int64
	CommitCount    int64
	CommitErrors   int64
	CommitBytes    int64
	AcquireCount   int64
	AcquireErrors  int64
	Promotions     int64
	ReleaseCount   int64
	FilesClosed    int64
	FilesRemoved   int64
}

// observer forwards container measurements to a MetricsCollector.
type observer struct {
	m MetricsCollector
}

var _ container.MetricsObserver = observer{}

func (o observer) OnRead(d time.Duration, bytes int, err error) {
	o.m.RecordRead(d, bytes, err)
}

func (o observer) OnWrite(d time.Duration, bytes, stored int, err error) {
	o.m.RecordWrite(d, bytes, stored, err)
}

func (o observer) OnDelete(d time.Duration, removed int, err error) {
	o.m.RecordDelete(d, removed, err)
}

func (o observer) OnCommit(d time.Duration, bytes int, err error) {
	o.m.RecordCommit(d, bytes, err)
}
