package storage

import (
	"sync/atomic"
	"time"
)

// Recorder buffers traffic counters in memory until Flush writes them out.
// Add methods are safe to call from chunk goroutines.
type Recorder struct {
	db         *DB
	uploaded   atomic.Int64
	downloaded atomic.Int64
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) AddUploaded(n int)   { r.uploaded.Add(int64(n)) }
func (r *Recorder) AddDownloaded(n int) { r.downloaded.Add(int64(n)) }

// Flush moves the buffered counts into the row for now's UTC day. Counts are
// put back if the write fails.
func (r *Recorder) Flush(now time.Time) error {
	up := r.uploaded.Swap(0)
	down := r.downloaded.Swap(0)
	if up == 0 && down == 0 {
		return nil
	}
	if err := r.db.AddTraffic(Day(now), up, down); err != nil {
		r.uploaded.Add(up)
		r.downloaded.Add(down)
		return err
	}
	return nil
}

// Day formats t as the traffic table key.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
