package sceneref

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jward/sceneref/internal/collect"
	"github.com/jward/sceneref/internal/csharp"
	"github.com/jward/sceneref/internal/discover"
	"github.com/jward/sceneref/internal/scan"
	"github.com/jward/sceneref/internal/store"
	"github.com/jward/sceneref/internal/unityscene"
	"github.com/jward/sceneref/internal/usagecache"
)

// ErrTypeNotFound is returned when a type name matches no collected type.
var ErrTypeNotFound = errors.New("sceneref: type not found")

// Engine orchestrates the sceneref pipeline: unit discovery, type
// collection, scene scanning and the usage cache.
type Engine struct {
	root      string
	folders   []string
	sceneDirs []string
	assembly  string
	workers   int
	logger    *slog.Logger
	store     store.Store

	collector *collect.Collector
	scanner   *scan.Scanner
	cache     *usagecache.Cache

	mu       sync.Mutex
	metas    []*TypeMetadata
	warnings []Warning
}

// Option configures an Engine.
type Option func(*Engine)

// WithFolders restricts collection to units under the given folders,
// relative to the project root.
func WithFolders(folders ...string) Option {
	return func(e *Engine) {
		e.folders = folders
	}
}

// WithSceneDirs restricts scene discovery to the given folders.
func WithSceneDirs(dirs ...string) Option {
	return func(e *Engine) {
		e.sceneDirs = dirs
	}
}

// WithAssembly sets the owning unit recorded for types outside any assembly
// definition.
func WithAssembly(name string) Option {
	return func(e *Engine) {
		e.assembly = name
	}
}

// WithWorkers sets how many scenes are scanned in parallel.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStore persists the usage cache in st. The Engine owns st and closes
// it in Close. Without this option the cache lives in memory only.
func WithStore(st store.Store) Option {
	return func(e *Engine) {
		e.store = st
	}
}

// New creates an Engine for the Unity project at root.
func New(root string, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sceneref: resolve root: %w", err)
	}
	e := &Engine{
		root:     abs,
		assembly: csharp.DefaultAssembly,
		workers:  1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = store.NewMemory()
	}

	resolver, err := csharp.NewResolver(abs,
		csharp.WithDefaultAssembly(e.assembly),
		csharp.WithResolverLogger(e.logger))
	if err != nil {
		e.store.Close()
		return nil, fmt.Errorf("sceneref: create resolver: %w", err)
	}
	e.collector = collect.New(resolver, collect.WithLogger(e.logger))
	e.scanner = scan.New(scan.WithWorkers(e.workers), scan.WithLogger(e.logger))
	e.cache = usagecache.Open(e.store, e.scanner,
		usagecache.WithRoot(abs),
		usagecache.WithLogger(e.logger))
	e.warnings = append([]Warning(nil), e.cache.Warnings()...)
	return e, nil
}

// Root returns the absolute project root.
func (e *Engine) Root() string { return e.root }

// Close flushes the usage cache and closes its store.
func (e *Engine) Close() error {
	return e.cache.Close()
}

// Flush writes the usage cache without closing the store.
func (e *Engine) Flush() error {
	return e.cache.Flush()
}

// CacheStats reports usage cache activity.
func (e *Engine) CacheStats() usagecache.Stats {
	return e.cache.Stats()
}

// Warnings returns warnings from opening the cache and the most recent
// collection.
func (e *Engine) Warnings() []Warning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Warning(nil), e.warnings...)
}

// Collect builds metadata for the given units and makes it the Engine's
// current type set.
func (e *Engine) Collect(ctx context.Context, units []Unit) ([]*TypeMetadata, []Warning, error) {
	metas, warns, err := e.collector.Collect(ctx, units)
	if err != nil {
		return nil, warns, err
	}
	e.mu.Lock()
	e.metas = metas
	e.warnings = append(append([]Warning(nil), e.cache.Warnings()...), warns...)
	e.mu.Unlock()

	if e.logger != nil {
		e.logger.Info("sceneref: collected types",
			slog.Int("units", len(units)),
			slog.Int("types", len(metas)),
			slog.Int("warnings", len(warns)))
	}
	return metas, warns, nil
}

// CollectProject discovers the units under the configured folders and
// collects them.
func (e *Engine) CollectProject(ctx context.Context) ([]*TypeMetadata, []Warning, error) {
	units, err := discover.Units(e.root, e.folders)
	if err != nil {
		return nil, nil, fmt.Errorf("sceneref: discover units: %w", err)
	}
	return e.Collect(ctx, units)
}

// Types returns the current type set, collecting the project first if
// nothing has been collected yet.
func (e *Engine) Types(ctx context.Context) ([]*TypeMetadata, error) {
	e.mu.Lock()
	metas := e.metas
	e.mu.Unlock()
	if metas != nil {
		return metas, nil
	}
	metas, _, err := e.CollectProject(ctx)
	return metas, err
}

// Scenes lists the project's scenes, relative to the root.
func (e *Engine) Scenes() ([]string, error) {
	scenes, err := discover.Scenes(e.root, e.sceneDirs)
	if err != nil {
		return nil, fmt.Errorf("sceneref: discover scenes: %w", err)
	}
	return scenes, nil
}

func (e *Engine) documents(metas []*TypeMetadata) ([]scan.Document, error) {
	scenes, err := e.Scenes()
	if err != nil {
		return nil, err
	}
	return unityscene.Documents(e.root, scenes, unityscene.NewScriptIndex(metas)), nil
}

// Usages returns where the type named name is attached across the
// project's scenes. name may be a simple or full name. Results come from
// the usage cache while the type's unit is unchanged.
func (e *Engine) Usages(ctx context.Context, name string) (*TypeMetadata, []UsageRecord, []Warning, error) {
	metas, err := e.Types(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	meta := FindByName(metas, name)
	if meta == nil {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrTypeNotFound, name)
	}
	docs, err := e.documents(metas)
	if err != nil {
		return nil, nil, nil, err
	}
	recs, warns, err := e.cache.GetOrScan(ctx, meta, docs)
	if err != nil {
		return nil, nil, warns, err
	}
	return meta, recs, warns, nil
}

// UsagesAll fills in Usages for every type in metas. Only cancellation
// stops the run; per-type failures are returned as warnings.
func (e *Engine) UsagesAll(ctx context.Context, metas []*TypeMetadata) ([]Warning, error) {
	docs, err := e.documents(metas)
	if err != nil {
		return nil, err
	}
	var warnings []Warning
	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return warnings, err
		}
		_, warns, err := e.cache.GetOrScan(ctx, meta, docs)
		warnings = append(warnings, warns...)
		if err != nil {
			if ctx.Err() != nil {
				return warnings, ctx.Err()
			}
			// The cache refused the type (no content id); nothing was scanned.
			warnings = append(warnings, Warning{Kind: CachePersistenceFailure, Source: meta.Identity.FullName, Err: err})
		}
	}
	return warnings, nil
}

// Locate reports whether scene contains a node at nodePath.
func (e *Engine) Locate(ctx context.Context, scene, nodePath string) (bool, error) {
	doc := &unityscene.Document{Path: filepath.ToSlash(scene), Root: e.root}
	return e.scanner.Locate(ctx, doc, nodePath)
}
