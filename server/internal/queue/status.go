package queue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Status is the operational snapshot of the queue directory.
type Status struct {
	QueuePath      string `json:"queuePath"`
	FileCount      int    `json:"fileCount"`
	TotalSizeBytes int64  `json:"totalSizeBytes"`
}

// Stats are cumulative item counters since the Queue was created.
type Stats struct {
	Ingested int64 `json:"ingested"`
	Poisoned int64 `json:"poisoned"`
	Retained int64 `json:"retained"`
	Skipped  int64 `json:"skipped"`
}

// Status counts the pending *.json items and their total size.
func (q *Queue) Status() (Status, error) {
	return Inspect(q.cfg.Dir)
}

// Stats returns the item counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Ingested: q.ingested.Load(),
		Poisoned: q.poisoned.Load(),
		Retained: q.retained.Load(),
		Skipped:  q.skipped.Load(),
	}
}

// Inspect reports the Status of dir without a running Queue. A missing
// directory has no items.
func Inspect(dir string) (Status, error) {
	st := Status{QueuePath: dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("queue: status %q: %w", dir, err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !isItem(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Consumed between ReadDir and Info.
			continue
		}
		st.FileCount++
		st.TotalSizeBytes += info.Size()
	}
	return st, nil
}
