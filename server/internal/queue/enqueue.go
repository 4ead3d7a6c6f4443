package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ItemPrefix starts the file name of every item written by Enqueue.
const ItemPrefix = "report_"

// ErrNotObject is returned by Enqueue for bodies that are not a JSON object.
var ErrNotObject = errors.New("queue: item body must be a JSON object")

// ItemName returns a collision-resistant item file name for t.
func ItemName(t time.Time) string {
	return fmt.Sprintf("%s%d_%s%s", ItemPrefix, t.UnixNano(), uuid.NewString()[:8], itemExt)
}

// Enqueue drops body into dir as a new item and returns its path. The body
// is written to a hidden temp file first and renamed into place, so a
// watcher never observes a partial item.
func Enqueue(dir string, body []byte) (string, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return "", ErrNotObject
	}
	if err := ensureDir(dir); err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}

	f, err := os.CreateTemp(dir, ".incoming-*.tmp")
	if err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("queue: enqueue: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("queue: enqueue: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("queue: enqueue: close: %w", err)
	}

	dst := filepath.Join(dir, ItemName(time.Now()))
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("queue: enqueue: publish: %w", err)
	}
	return dst, nil
}
