package fetch

import (
	"io"
	"sync/atomic"
)

// Progress aggregates file and byte counts across concurrent fetch tasks.
// Tasks add to the counters without locking; readers poll Snapshot.
type Progress struct {
	totalFiles atomic.Int64
	doneFiles  atomic.Int64
	bytes      atomic.Int64
}

// Snapshot is a point-in-time copy of the aggregate counters.
type Snapshot struct {
	// TotalFiles is the number of files the run covers.
	TotalFiles int64

	// DoneFiles is the number of files finished so far, in any state.
	DoneFiles int64

	// Bytes counts body bytes written for successful and in-flight
	// attempts. Failed attempts are backed out.
	Bytes int64
}

// Snapshot returns the current counter values. Safe to call while a fetch
// is running.
func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		TotalFiles: p.totalFiles.Load(),
		DoneFiles:  p.doneFiles.Load(),
		Bytes:      p.bytes.Load(),
	}
}

// begin resets the counters for a run covering n files.
func (p *Progress) begin(n int) {
	p.totalFiles.Store(int64(n))
	p.doneFiles.Store(0)
	p.bytes.Store(0)
}

func (p *Progress) fileDone() {
	p.doneFiles.Add(1)
}

// countingReader counts bytes as they stream through, feeding the shared
// aggregate and a per-attempt total used to back out failed attempts.
type countingReader struct {
	r     io.Reader
	agg   *atomic.Int64
	total int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.total += int64(n)
		cr.agg.Add(int64(n))
	}
	return n, err
}
