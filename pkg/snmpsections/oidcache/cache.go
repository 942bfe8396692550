// Package oidcache memoises single-OID fetches for the duration of one scan.
//
// Many detection specifications probe the same OIDs (sysDescr, sysObjectID,
// vendor subtrees). The cache guarantees each (context, OID) pair is queried
// at most once per scan, including OIDs the device has no value for.
//
// Lifecycle per scan:
//
//	cache.Initialize(ctx, hostID, useStored) // clear; optionally load persisted values
//	... Get / Set during evaluation ...
//	cache.Flush(ctx)                         // persist, success path only
//
// A Cache is owned by the caller of the scan and must not be shared between
// hosts that are scanned concurrently.
package oidcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Key identifies one cached OID. Context is the SNMP context the value was
// fetched in; the empty string is the default context.
type Key struct {
	Context string
	OID     string
}

// Entry is a cached fetch result. Found=false records that the device has no
// value for the OID.
type Entry struct {
	Value string
	Found bool
}

// Store persists cache contents between scans. Implementations must tolerate
// Load for an unknown id by returning an empty map.
type Store interface {
	Load(ctx context.Context, id string) (map[Key]Entry, error)
	Save(ctx context.Context, id string, entries map[Key]Entry) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache
// ─────────────────────────────────────────────────────────────────────────────

// Cache is the per-scan OID value cache.
type Cache struct {
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	id      string
	entries map[Key]Entry
}

// New creates a Cache backed by store. A nil store disables persistence:
// Initialize never loads and Flush never writes.
func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Cache{
		store:   store,
		logger:  logger,
		entries: make(map[Key]Entry),
	}
}

// Initialize clears the cache and binds it to id, the identity of the
// device configuration being scanned. When useStored is set the persisted
// values for id are loaded; a load failure leaves the cache empty and is
// returned to the caller.
func (c *Cache) Initialize(ctx context.Context, id string, useStored bool) error {
	c.mu.Lock()
	c.id = id
	c.entries = make(map[Key]Entry)
	c.mu.Unlock()

	if !useStored || c.store == nil {
		return nil
	}

	loaded, err := c.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("oidcache: load %q: %w", id, err)
	}

	c.mu.Lock()
	for k, e := range loaded {
		c.entries[k] = e
	}
	c.mu.Unlock()

	c.logger.Debug("oidcache: loaded stored values", "id", id, "count", len(loaded))
	return nil
}

// Get returns the cached entry for k. ok is false on a cache miss.
func (c *Cache) Get(k Key) (Entry, bool) {
	c.mu.Lock()
	e, ok := c.entries[k]
	c.mu.Unlock()
	if ok {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
	return e, ok
}

// Set records the fetch result for k.
func (c *Cache) Set(k Key, e Entry) {
	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()
}

// Delete drops the entry for k.
func (c *Cache) Delete(k Key) {
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ID returns the identity bound by the last Initialize.
func (c *Cache) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Flush persists the found values for the bound id. Absences only hold for
// the current scan and are not written. It is a no-op without a store.
func (c *Cache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	id := c.id
	snapshot := make(map[Key]Entry, len(c.entries))
	for k, e := range c.entries {
		if e.Found {
			snapshot[k] = e
		}
	}
	c.mu.Unlock()

	if id == "" {
		return fmt.Errorf("oidcache: flush before initialize")
	}
	if err := c.store.Save(ctx, id, snapshot); err != nil {
		return fmt.Errorf("oidcache: save %q: %w", id, err)
	}
	c.logger.Debug("oidcache: flushed", "id", id, "count", len(snapshot))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MemoryStore
// ─────────────────────────────────────────────────────────────────────────────

// MemoryStore is a process-local Store. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[Key]Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[Key]Entry)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, id string) (map[Key]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEntries(s.data[id]), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, id string, entries map[Key]Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = copyEntries(entries)
	return nil
}

func copyEntries(in map[Key]Entry) map[Key]Entry {
	out := make(map[Key]Entry, len(in))
	for k, e := range in {
		out[k] = e
	}
	return out
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
