package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Default retry policy.
const (
	DefaultAttempts = 3
	DefaultDelay    = 100 * time.Millisecond
)

const collectionExt = ".json"

// Options tunes a Store. The zero value is usable.
type Options struct {
	// Attempts bounds every read and every atomic write (default 3).
	Attempts int

	// Delay is the fixed pause between attempts (default 100ms).
	Delay time.Duration

	// Strict makes ReadCollection return *ParseError for corrupt collection
	// files instead of treating them as empty.
	Strict bool

	// FS overrides filesystem access. Defaults to OSFS.
	FS FS
}

// Store reads and writes collections under a single data root.
type Store struct {
	root  string
	opts  Options
	fs    FS
	sleep func(time.Duration) // injectable for tests

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New opens a store rooted at root, creating the directory if needed.
func New(root string, opts Options) (*Store, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	} else if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.FS == nil {
		opts.FS = OSFS{}
	}
	if err := opts.FS.MkdirAll(root, 0o755); err != nil {
		return nil, &StorageError{Op: "mkdir", Collection: root, Attempts: 1, Err: err}
	}
	return &Store{
		root:  root,
		opts:  opts,
		fs:    opts.FS,
		sleep: time.Sleep,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the data root directory.
func (s *Store) Root() string { return s.root }

// Path returns the file backing the named collection.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name+collectionExt)
}

// ReadCollection returns every document in the collection, in file order.
// A missing collection is empty. A corrupt one is empty too unless
// Options.Strict is set, in which case a *ParseError is returned.
func (s *Store) ReadCollection(name string) ([]Document, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return s.read(name)
}

// WriteCollection replaces the whole collection with docs. Every document
// must have a unique id.
func (s *Store) WriteCollection(name string, docs []Document) error {
	if err := validName(name); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		id := d.ID()
		if id == "" {
			return fmt.Errorf("docstore: %s[%d]: %w", name, i, ErrMissingID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("docstore: %s/%s: %w", name, id, ErrDuplicateID)
		}
		seen[id] = struct{}{}
	}

	unlock := s.lock(name)
	defer unlock()
	return s.write(name, docs)
}

// AppendDocument adds doc to the end of the collection and returns a copy
// of what was stored.
func (s *Store) AppendDocument(name string, doc Document) (Document, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	id := doc.ID()
	if id == "" {
		return nil, fmt.Errorf("docstore: append to %s: %w", name, ErrMissingID)
	}

	unlock := s.lock(name)
	defer unlock()

	docs, err := s.read(name)
	if err != nil {
		return nil, err
	}
	if indexOf(docs, id) >= 0 {
		return nil, fmt.Errorf("docstore: %s/%s: %w", name, id, ErrDuplicateID)
	}
	stored := doc.Clone()
	if err := s.write(name, append(docs, stored)); err != nil {
		return nil, err
	}
	slog.Debug("docstore: appended", "collection", name, "id", id)
	return stored.Clone(), nil
}

// UpdateDocument shallow-merges patch into the document with the given id.
// The id field itself is never changed. Unknown ids yield *NotFoundError;
// no document is ever created.
func (s *Store) UpdateDocument(name, id string, patch map[string]any) (Document, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	unlock := s.lock(name)
	defer unlock()

	docs, err := s.read(name)
	if err != nil {
		return nil, err
	}
	i := indexOf(docs, id)
	if i < 0 {
		return nil, &NotFoundError{Collection: name, ID: id}
	}
	docs[i] = docs[i].merge(patch)
	if err := s.write(name, docs); err != nil {
		return nil, err
	}
	return docs[i].Clone(), nil
}

// DeleteDocument removes the document with the given id. It reports false,
// and leaves the file untouched, when no such document exists.
func (s *Store) DeleteDocument(name, id string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}

	unlock := s.lock(name)
	defer unlock()

	docs, err := s.read(name)
	if err != nil {
		return false, err
	}
	i := indexOf(docs, id)
	if i < 0 {
		return false, nil
	}
	docs = append(docs[:i], docs[i+1:]...)
	if err := s.write(name, docs); err != nil {
		return false, err
	}
	return true, nil
}

// FindByID returns the document with the given id, if any.
func (s *Store) FindByID(name, id string) (Document, bool, error) {
	docs, err := s.ReadCollection(name)
	if err != nil {
		return nil, false, err
	}
	if i := indexOf(docs, id); i >= 0 {
		return docs[i], true, nil
	}
	return nil, false, nil
}

// Filter returns the documents for which keep reports true, in file order.
// A nil keep returns every document.
func (s *Store) Filter(name string, keep func(Document) bool) ([]Document, error) {
	docs, err := s.ReadCollection(name)
	if err != nil || keep == nil {
		return docs, err
	}
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ListCollections returns the sorted names of collections that exist on disk.
func (s *Store) ListCollections() ([]string, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "list", Collection: s.root, Attempts: 1, Err: err}
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), collectionExt)
		if !ok || validName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// --- internal ---------------------------------------------------------------

func (s *Store) read(name string) ([]Document, error) {
	data, err := s.readFile(name)
	if err != nil {
		return nil, err
	}
	docs, err := decode(data)
	if err != nil {
		perr := &ParseError{Source: name, Err: err}
		if s.opts.Strict {
			return nil, perr
		}
		slog.Warn("docstore: corrupt collection treated as empty",
			"collection", name, "path", s.Path(name), "err", err)
		return []Document{}, nil
	}
	return docs, nil
}

func (s *Store) write(name string, docs []Document) error {
	data, err := encode(docs)
	if err != nil {
		return &StorageError{Op: "encode", Collection: name, Attempts: 1, Err: err}
	}
	return s.writeAtomic(name, data)
}

// lock serializes read-modify-write cycles on one collection.
func (s *Store) lock(name string) func() {
	s.mu.Lock()
	m, ok := s.locks[name]
	if !ok {
		m = &sync.Mutex{}
		s.locks[name] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func decode(data []byte) ([]Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Document{}, nil
	}
	var docs []Document
	if err := Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// Unmarshal decodes a single JSON value into v. Numbers are kept as
// json.Number so integers beyond float64 precision survive a round trip.
func Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}

func encode(docs []Document) ([]byte, error) {
	if docs == nil {
		docs = []Document{}
	}
	b, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func indexOf(docs []Document, id string) int {
	for i, d := range docs {
		if d.ID() == id {
			return i
		}
	}
	return -1
}

func validName(name string) error {
	switch {
	case name == "",
		strings.HasPrefix(name, "."),
		strings.HasPrefix(name, "_"),
		strings.ContainsAny(name, `/\:`):
		return fmt.Errorf("docstore: %q: %w", name, ErrInvalidName)
	}
	return nil
}

// ValidateName reports whether name can be used as a collection name.
func ValidateName(name string) error { return validName(name) }
