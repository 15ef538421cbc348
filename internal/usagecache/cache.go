// Package usagecache serves usage records for a type from a persisted cache
// while the type's source unit is unchanged, and rescans otherwise.
//
// Only the unit's modification time is tracked. Editing a scene without
// touching the script leaves the cached records in place until the script
// changes.
package usagecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/jward/sceneref/internal/model"
	"github.com/jward/sceneref/internal/scan"
	"github.com/jward/sceneref/internal/store"
)

// Scanner produces usage records for a type across documents.
type Scanner interface {
	Scan(ctx context.Context, fullName string, docs []scan.Document) ([]model.UsageRecord, []model.Warning, error)
}

// Stats counts cache activity since Open.
type Stats struct {
	Hits   int64
	Misses int64
	Scans  int64
}

// Cache is a process-scoped usage cache. Entries for different content ids
// may be computed concurrently; one content id is computed by at most one
// caller at a time.
type Cache struct {
	store   store.Store
	scanner Scanner
	logger  *slog.Logger
	root    string

	mu   sync.Mutex
	snap store.Snapshot

	ids      *keyedMutex
	warnings []model.Warning

	hits, misses, scans atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithRoot resolves relative unit paths against root.
func WithRoot(root string) Option {
	return func(c *Cache) {
		c.root = root
	}
}

// Open loads the persisted snapshot from st. An unreadable store leaves the
// cache empty and records a cache_persistence warning; see Warnings.
func Open(st store.Store, sc Scanner, opts ...Option) *Cache {
	c := &Cache{store: st, scanner: sc, ids: newKeyedMutex()}
	for _, opt := range opts {
		opt(c)
	}

	snap, err := st.Load()
	if err != nil {
		w := model.Warning{Kind: model.CachePersistenceFailure, Source: "load", Err: err}
		w.Log(c.logger, "usagecache: starting empty")
		c.warnings = append(c.warnings, w)
		snap = store.NewSnapshot()
	}
	if snap.Usages == nil {
		snap.Usages = make(map[string][]model.UsageRecord)
	}
	if snap.ModTimes == nil {
		snap.ModTimes = make(map[string]int64)
	}
	c.snap = snap
	return c
}

// Warnings returns the warnings recorded while opening the cache.
func (c *Cache) Warnings() []model.Warning {
	return c.warnings
}

// Len returns the number of cached content ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snap.ModTimes)
}

// Stats returns a copy of the activity counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Scans: c.scans.Load()}
}

// GetOrScan returns the usage records for meta and stores them in
// meta.Usages.
//
// Cached records are returned while an entry exists for meta.ContentID, the
// unit at meta.UnitPath exists, and its modification time equals the stored
// one. Otherwise docs are scanned and, if the unit still exists, the result
// and the unit's current modification time replace the entry.
func (c *Cache) GetOrScan(ctx context.Context, meta *model.TypeMetadata, docs []scan.Document) ([]model.UsageRecord, []model.Warning, error) {
	id := meta.ContentID
	if id == "" {
		return nil, nil, fmt.Errorf("usagecache: %s has no content id", meta.Identity.FullName)
	}
	unlock := c.ids.Lock(id)
	defer unlock()

	unit := c.unitPath(meta.UnitPath)
	mod, exists := modTime(unit)

	c.mu.Lock()
	cached, hasRecs := c.snap.Usages[id]
	stored, hasMod := c.snap.ModTimes[id]
	if hasRecs && hasMod && exists && mod == stored {
		out := model.CloneUsages(cached)
		c.mu.Unlock()
		c.hits.Add(1)
		meta.Usages = model.CloneUsages(out)
		return out, nil, nil
	}
	c.mu.Unlock()
	c.misses.Add(1)

	meta.Usages = nil
	recs, warns, err := c.scanner.Scan(ctx, meta.Identity.FullName, docs)
	c.scans.Add(1)
	if err != nil {
		return nil, warns, err
	}

	if mod, exists := modTime(unit); exists {
		c.mu.Lock()
		c.snap.Usages[id] = model.CloneUsages(recs)
		c.snap.ModTimes[id] = mod
		c.mu.Unlock()
	} else if c.logger != nil {
		c.logger.Debug("usagecache: unit missing, result not cached", slog.String("path", unit))
	}

	meta.Usages = model.CloneUsages(recs)
	return recs, warns, nil
}

// Flush writes the whole cache to the store.
func (c *Cache) Flush() error {
	c.mu.Lock()
	snap := c.snap.Clone()
	c.mu.Unlock()

	if err := c.store.Save(snap); err != nil {
		w := model.Warning{Kind: model.CachePersistenceFailure, Source: "save", Err: err}
		w.Log(c.logger, "usagecache: flush failed")
		return w
	}
	return nil
}

// Close flushes the cache and closes the store.
func (c *Cache) Close() error {
	return errors.Join(c.Flush(), c.store.Close())
}

func (c *Cache) unitPath(p string) string {
	if c.root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}

// modTime returns the unit's modification time in nanoseconds since the
// Unix epoch. Any stat failure counts as the unit not existing.
func modTime(path string) (int64, bool) {
	if path == "" {
		return 0, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.ModTime().UnixNano(), true
}

// keyedMutex hands out one mutex per content id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
