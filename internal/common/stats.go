package common

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Stats holds atomic counters for one command run.
type Stats struct {
	RowsRead     atomic.Uint64
	RowsWritten  atomic.Uint64
	FilesRead    atomic.Uint64
	FilesWritten atomic.Uint64
	BytesWritten atomic.Uint64

	start time.Time
}

// NewStats creates a Stats instance with the clock started.
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

// AddRead records one input file of n rows.
func (s *Stats) AddRead(rows int) {
	s.FilesRead.Add(1)
	s.RowsRead.Add(uint64(rows))
}

// AddWritten records one output of n rows and size bytes.
func (s *Stats) AddWritten(rows int, size int64) {
	s.FilesWritten.Add(1)
	s.RowsWritten.Add(uint64(rows))
	if size > 0 {
		s.BytesWritten.Add(uint64(size))
	}
}

// Elapsed returns the time since NewStats.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Summary formats the counters on one line.
func (s *Stats) Summary() string {
	return fmt.Sprintf("read %d rows from %d files | wrote %d rows to %d outputs (%.2f MiB) | %s",
		s.RowsRead.Load(), s.FilesRead.Load(),
		s.RowsWritten.Load(), s.FilesWritten.Load(),
		float64(s.BytesWritten.Load())/(1024*1024),
		s.Elapsed().Round(time.Millisecond))
}

// Log writes the counters as structured fields.
func (s *Stats) Log(logger *zap.Logger) {
	logger.Info("run complete",
		zap.Uint64("rows_read", s.RowsRead.Load()),
		zap.Uint64("files_read", s.FilesRead.Load()),
		zap.Uint64("rows_written", s.RowsWritten.Load()),
		zap.Uint64("files_written", s.FilesWritten.Load()),
		zap.Uint64("bytes_written", s.BytesWritten.Load()),
		zap.Duration("elapsed", s.Elapsed()),
	)
}
