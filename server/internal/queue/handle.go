package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/obsidianstack/reportvault/server/internal/docstore"
)

const (
	itemExt       = ".json"
	recordTimeout = 5 * time.Second
)

var errEmptyItem = errors.New("empty item")

// Handle processes a single Event. Only create and write events on visible
// *.json files are acted on; everything else is Skipped.
func (q *Queue) Handle(ev Event) Result {
	if !isItem(ev.Path) || (ev.Kind != Created && ev.Kind != Written) {
		return Result{File: filepath.Base(ev.Path), Collection: q.cfg.Target, Outcome: Skipped, At: q.now()}
	}
	return q.process(ev.Path)
}

// Scan runs one detection cycle: every item currently in the directory is
// processed in name order. A missing directory yields no results.
func (q *Queue) Scan() []Result {
	entries, err := os.ReadDir(q.cfg.Dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("queue: scan failed", "dir", q.cfg.Dir, "err", err)
		}
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && isItem(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Result, 0, len(names))
	for _, name := range names {
		out = append(out, q.process(filepath.Join(q.cfg.Dir, name)))
	}
	return out
}

func (q *Queue) process(path string) Result {
	q.procMu.Lock()
	defer q.procMu.Unlock()

	res := Result{File: filepath.Base(path), Collection: q.cfg.Target, At: q.now()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Already consumed by an earlier event for the same file.
		res.Outcome = Skipped
		res.Reason = "gone"
		return q.finish(res)
	case err != nil:
		res.Outcome = Retained
		res.Err = err
		res.Reason = "read failed"
		slog.Warn("queue: read failed, item retained", "file", res.File, "err", err)
		return q.finish(res)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		if info, err := os.Stat(path); err == nil && q.now().Sub(info.ModTime()) >= q.cfg.EmptyGrace {
			slog.Warn("queue: item still empty after grace period", "file", res.File, "grace", q.cfg.EmptyGrace)
			return q.finish(q.poison(path, res, &docstore.ParseError{Source: path, Err: errEmptyItem}))
		}
		res.Outcome = Skipped
		res.Reason = "empty, write in progress"
		return q.finish(res)
	}

	doc, err := parseItem(path, data)
	if err != nil {
		slog.Warn("queue: unparseable item", "file", res.File, "err", err)
		return q.finish(q.poison(path, res, err))
	}
	if _, present := doc[docstore.IDField]; !present {
		doc[docstore.IDField] = strings.TrimSuffix(res.File, itemExt)
	}

	stored, err := q.store.AppendDocument(q.cfg.Target, doc)
	if err != nil {
		if permanent(err) {
			slog.Warn("queue: item rejected by store", "file", res.File, "err", err)
			return q.finish(q.poison(path, res, err))
		}
		res.Outcome = Retained
		res.Err = err
		res.Reason = "storage failure"
		slog.Error("queue: append failed, item retained for retry",
			"file", res.File, "collection", q.cfg.Target, "err", err)
		return q.finish(res)
	}

	res.Outcome = Ingested
	res.DocumentID = stored.ID()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// The next pass sees a duplicate id and discards the file.
		slog.Warn("queue: remove after ingest failed", "file", res.File, "err", err)
	}
	slog.Info("queue: item ingested",
		"file", res.File, "collection", q.cfg.Target, "id", res.DocumentID)
	return q.finish(res)
}

// poison discards an item that can never succeed: it is moved to the
// dead-letter directory when one is configured, deleted otherwise.
func (q *Queue) poison(path string, res Result, cause error) Result {
	res.Outcome = Poisoned
	res.Err = cause
	res.Reason = cause.Error()

	if q.cfg.DeadLetterDir != "" {
		dst := filepath.Join(q.cfg.DeadLetterDir, res.File)
		err := os.Rename(path, dst)
		if err == nil {
			slog.Warn("queue: poison item dead-lettered", "file", res.File, "dest", dst)
			return res
		}
		slog.Error("queue: dead-letter move failed, deleting item", "file", res.File, "err", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("queue: delete poison item failed", "file", res.File, "err", err)
	}
	return res
}

// finish updates counters and fans the result out to the recorder and the
// Results channel.
func (q *Queue) finish(res Result) Result {
	switch res.Outcome {
	case Ingested:
		q.ingested.Add(1)
	case Poisoned:
		q.poisoned.Add(1)
	case Retained:
		q.retained.Add(1)
	default:
		q.skipped.Add(1)
		return res
	}

	if q.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := q.recorder.Record(ctx, res); err != nil {
			slog.Warn("queue: record result failed", "file", res.File, "err", err)
		}
		cancel()
	}

	select {
	case q.results <- res:
	default:
		select {
		case <-q.results:
		default:
		}
		select {
		case q.results <- res:
		default:
		}
	}
	return res
}

// parseItem decodes an item body. Anything but a JSON object is a ParseError.
func parseItem(path string, data []byte) (docstore.Document, error) {
	var v any
	if err := docstore.Unmarshal(data, &v); err != nil {
		return nil, &docstore.ParseError{Source: path, Err: err}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &docstore.ParseError{Source: path, Err: fmt.Errorf("want a JSON object, got %T", v)}
	}
	return docstore.Document(obj), nil
}

// permanent reports store errors caused by the item itself, which retrying
// cannot fix.
func permanent(err error) bool {
	return errors.Is(err, docstore.ErrDuplicateID) || errors.Is(err, docstore.ErrMissingID)
}

// isItem reports whether name looks like a queue item: a visible *.json file.
func isItem(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, itemExt) && !strings.HasPrefix(base, ".")
}
