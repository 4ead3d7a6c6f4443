package collections

import (
	"context"
	"sync"
	"time"

	"github.com/obsidianstack/reportvault/server/internal/cache"
	"github.com/obsidianstack/reportvault/server/internal/docstore"
)

// Store is the Document Store contract the Service wraps.
type Store interface {
	ReadCollection(name string) ([]docstore.Document, error)
	WriteCollection(name string, docs []docstore.Document) error
	AppendDocument(name string, doc docstore.Document) (docstore.Document, error)
	UpdateDocument(name, id string, patch map[string]any) (docstore.Document, error)
	DeleteDocument(name, id string) (bool, error)
	ListCollections() ([]string, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithClock sets the clock shared by all of the Service's caches.
func WithClock(c cache.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithCollectionTTL gives one collection its own cache with its own TTL,
// e.g. a long TTL for rarely-changing settings.
func WithCollectionTTL(name string, ttl time.Duration) Option {
	return func(s *Service) { s.overrides[name] = ttl }
}

// Service reads collections through a cache and invalidates on write.
type Service struct {
	store     Store
	clock     cache.Clock
	overrides map[string]time.Duration

	def    *cache.Cache[string, []docstore.Document]
	pinned map[string]*cache.Cache[string, []docstore.Document]

	// genMu guards gens and epoch. A read only fills the cache when no
	// invalidation happened while it was on disk.
	genMu sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

type generation struct{ epoch, gen uint64 }

// New creates a Service whose default cache uses ttl.
func New(store Store, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:     store,
		overrides: make(map[string]time.Duration),
		gens:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.def = cache.New[string, []docstore.Document](ttl, s.clock)
	s.pinned = make(map[string]*cache.Cache[string, []docstore.Document], len(s.overrides))
	for name, d := range s.overrides {
		s.pinned[name] = cache.New[string, []docstore.Document](d, s.clock)
	}
	return s
}

// Read returns the collection, from cache when fresh.
func (s *Service) Read(name string) ([]docstore.Document, error) {
	c := s.cacheFor(name)
	if docs, ok := c.Get(name); ok {
		return cloneAll(docs), nil
	}
	gen := s.generation(name)
	docs, err := s.store.ReadCollection(name)
	if err != nil {
		return nil, err
	}
	s.fill(c, name, gen, docs)
	return cloneAll(docs), nil
}

// Find returns the document with the given id from the (cached) collection.
func (s *Service) Find(name, id string) (docstore.Document, bool, error) {
	docs, err := s.Read(name)
	if err != nil {
		return nil, false, err
	}
	for _, d := range docs {
		if d.ID() == id {
			return d, true, nil
		}
	}
	return nil, false, nil
}

// Filter returns the cached documents keep accepts. A nil keep accepts all.
func (s *Service) Filter(name string, keep func(docstore.Document) bool) ([]docstore.Document, error) {
	docs, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	if keep == nil {
		return docs, nil
	}
	out := make([]docstore.Document, 0, len(docs))
	for _, d := range docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// List returns the collection names on disk. Not cached.
func (s *Service) List() ([]string, error) {
	return s.store.ListCollections()
}

// Write replaces a collection.
func (s *Service) Write(name string, docs []docstore.Document) error {
	if err := s.store.WriteCollection(name, docs); err != nil {
		return err
	}
	s.Invalidate(name)
	return nil
}

// AppendDocument adds a document. It satisfies queue.Appender, so ingestion
// invalidates the cache like any other write.
func (s *Service) AppendDocument(name string, doc docstore.Document) (docstore.Document, error) {
	d, err := s.store.AppendDocument(name, doc)
	if err != nil {
		return nil, err
	}
	s.Invalidate(name)
	return d, nil
}

// Update merges patch into an existing document.
func (s *Service) Update(name, id string, patch map[string]any) (docstore.Document, error) {
	d, err := s.store.UpdateDocument(name, id, patch)
	if err != nil {
		return nil, err
	}
	s.Invalidate(name)
	return d, nil
}

// Delete removes a document. The cache is left alone when nothing was deleted.
func (s *Service) Delete(name, id string) (bool, error) {
	ok, err := s.store.DeleteDocument(name, id)
	if err != nil || !ok {
		return ok, err
	}
	s.Invalidate(name)
	return true, nil
}

// Invalidate drops the cached copy of one collection.
func (s *Service) Invalidate(name string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gens[name]++
	s.cacheFor(name).Invalidate(name)
}

// Clear drops every cached collection.
func (s *Service) Clear() {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.epoch++
	s.def.Clear()
	for _, c := range s.pinned {
		c.Clear()
	}
}

// SetTTL updates the default TTL and any per-collection overrides present in
// overrides. Collections without a dedicated cache keep using the default.
func (s *Service) SetTTL(ttl time.Duration, overrides map[string]time.Duration) {
	s.def.SetTTL(ttl)
	for name, d := range overrides {
		if c, ok := s.pinned[name]; ok {
			c.SetTTL(d)
		}
	}
}

// TTL returns the effective TTL for a collection.
func (s *Service) TTL(name string) time.Duration {
	return s.cacheFor(name).TTL()
}

// Run evicts expired entries from every cache until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	for _, c := range s.pinned {
		go c.Run(ctx)
	}
	s.def.Run(ctx)
}

func (s *Service) cacheFor(name string) *cache.Cache[string, []docstore.Document] {
	if c, ok := s.pinned[name]; ok {
		return c
	}
	return s.def
}

func (s *Service) generation(name string) generation {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return generation{epoch: s.epoch, gen: s.gens[name]}
}

// fill caches docs unless the collection was invalidated after gen was taken.
func (s *Service) fill(c *cache.Cache[string, []docstore.Document], name string, gen generation, docs []docstore.Document) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if (generation{epoch: s.epoch, gen: s.gens[name]}) != gen {
		return
	}
	c.Set(name, docs)
}

func cloneAll(docs []docstore.Document) []docstore.Document {
	out := make([]docstore.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}
