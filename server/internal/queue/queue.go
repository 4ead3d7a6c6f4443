package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/obsidianstack/reportvault/server/internal/docstore"
)

const (
	// DefaultRescanInterval is how often the directory is re-listed so that
	// retained items are retried without a new filesystem event.
	DefaultRescanInterval = 30 * time.Second

	// DefaultEmptyGrace is how long an empty item may wait for its body.
	DefaultEmptyGrace = time.Minute

	// eventBufSize is the depth of the internal fsnotify -> handler channel.
	eventBufSize = 256

	// resultBufSize is the depth of the Results channel. When full, the
	// oldest result is dropped.
	resultBufSize = 64

	lockFileName = ".consumer.lock"
)

var (
	// ErrAlreadyStarted is returned by Start on a running Queue.
	ErrAlreadyStarted = errors.New("queue: already started")

	// ErrConsumerLocked is returned by Start when Config.Exclusive is set and
	// another process already consumes the directory.
	ErrConsumerLocked = errors.New("queue: directory is locked by another consumer")
)

// Appender is the Document Store operation the queue feeds.
type Appender interface {
	AppendDocument(name string, doc docstore.Document) (docstore.Document, error)
}

// Config controls one Queue.
type Config struct {
	// Dir is the watched directory. Created recursively on Start.
	Dir string

	// Target is the collection every item is appended to.
	Target string

	// DeadLetterDir, when set, receives poison items instead of deleting them.
	DeadLetterDir string

	// RescanInterval is the period of the full-directory retry scan.
	// Zero means DefaultRescanInterval; negative disables rescans.
	RescanInterval time.Duration

	// EmptyGrace is how long an empty item is left for its producer to
	// finish writing. Older empty items are poison. Zero means
	// DefaultEmptyGrace.
	EmptyGrace time.Duration

	// Exclusive takes an advisory lock on Dir so a second consumer process
	// fails to start.
	Exclusive bool
}

// Option customizes a Queue.
type Option func(*Queue)

// WithRecorder sends every Result to r.
func WithRecorder(r Recorder) Option {
	return func(q *Queue) { q.recorder = r }
}

// Queue consumes JSON items from a directory into a collection.
type Queue struct {
	cfg      Config
	store    Appender
	recorder Recorder
	now      func() time.Time // injectable for deterministic tests

	// procMu serializes item handling between the watch loop and callers of
	// Handle/Scan.
	procMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher
	lock    *consumerLock
	wg      sync.WaitGroup

	results chan Result

	ingested atomic.Int64
	poisoned atomic.Int64
	retained atomic.Int64
	skipped  atomic.Int64
}

// New creates a Queue. It touches nothing on disk until Start.
func New(cfg Config, store Appender, opts ...Option) *Queue {
	if cfg.RescanInterval == 0 {
		cfg.RescanInterval = DefaultRescanInterval
	}
	if cfg.EmptyGrace <= 0 {
		cfg.EmptyGrace = DefaultEmptyGrace
	}
	q := &Queue{
		cfg:     cfg,
		store:   store,
		now:     time.Now,
		results: make(chan Result, resultBufSize),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Dir returns the watched directory.
func (q *Queue) Dir() string { return q.cfg.Dir }

// Target returns the collection items are appended to.
func (q *Queue) Target() string { return q.cfg.Target }

// Results streams item results. Slow readers lose the oldest entries.
func (q *Queue) Results() <-chan Result { return q.results }

// Start prepares the directory, attaches the watcher, and begins consuming.
// Items already present are processed right away. The returned error covers
// setup only; per-item failures never surface here.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return ErrAlreadyStarted
	}

	if err := docstore.ValidateName(q.cfg.Target); err != nil {
		return fmt.Errorf("queue: target: %w", err)
	}
	if err := ensureDir(q.cfg.Dir); err != nil {
		return fmt.Errorf("queue: create %q: %w", q.cfg.Dir, err)
	}
	if q.cfg.DeadLetterDir != "" {
		if err := ensureDir(q.cfg.DeadLetterDir); err != nil {
			return fmt.Errorf("queue: create dead-letter dir %q: %w", q.cfg.DeadLetterDir, err)
		}
	}

	var lock *consumerLock
	if q.cfg.Exclusive {
		l, err := acquireLock(filepath.Join(q.cfg.Dir, lockFileName))
		if err != nil {
			return err
		}
		lock = l
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		lock.release()
		return fmt.Errorf("queue: new watcher: %w", err)
	}
	if err := w.Add(q.cfg.Dir); err != nil {
		w.Close()
		lock.release()
		return fmt.Errorf("queue: watch %q: %w", q.cfg.Dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan Event, eventBufSize)

	q.cancel = cancel
	q.watcher = w
	q.lock = lock
	q.running = true

	q.wg.Add(2)
	go q.pump(ctx, w, events)
	go q.consume(ctx, events)

	slog.Info("queue: watching",
		"dir", q.cfg.Dir,
		"target", q.cfg.Target,
		"dead_letter_dir", q.cfg.DeadLetterDir,
		"rescan_interval", q.cfg.RescanInterval,
	)
	return nil
}

// Stop detaches the watcher and waits for the in-flight item to finish.
// Calling Stop on a Queue that is not running logs and returns nil.
func (q *Queue) Stop() error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		slog.Info("queue: stop requested but queue is not running", "dir", q.cfg.Dir)
		return nil
	}
	q.running = false
	cancel, w, lock := q.cancel, q.watcher, q.lock
	q.cancel, q.watcher, q.lock = nil, nil, nil
	q.mu.Unlock()

	cancel()
	err := w.Close()
	q.wg.Wait()
	if lerr := lock.release(); lerr != nil && err == nil {
		err = lerr
	}

	slog.Info("queue: stopped", "dir", q.cfg.Dir)
	if err != nil {
		return fmt.Errorf("queue: stop: %w", err)
	}
	return nil
}

// Running reports whether the watch loop is active.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// pump forwards fsnotify notifications as Events until ctx is cancelled or
// the watcher is closed.
func (q *Queue) pump(ctx context.Context, w *fsnotify.Watcher, out chan<- Event) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			select {
			case out <- Event{Path: ev.Name, Kind: kindOf(ev.Op)}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			// Overflow and similar errors lose events; the rescan catches up.
			slog.Error("queue: watcher error", "dir", q.cfg.Dir, "err", err)
		}
	}
}

// consume runs the initial scan, then handles events and periodic rescans.
func (q *Queue) consume(ctx context.Context, events <-chan Event) {
	defer q.wg.Done()

	q.Scan()

	var tick <-chan time.Time
	if q.cfg.RescanInterval > 0 {
		t := time.NewTicker(q.cfg.RescanInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			q.Handle(ev)
		case <-tick:
			q.Scan()
		}
	}
}

// ensureDir creates dir recursively. Losing a creation race to another
// process is not an error as long as a directory ends up there.
func ensureDir(dir string) error {
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		if info, serr := os.Stat(dir); serr == nil && info.IsDir() {
			return nil
		}
	}
	return err
}
