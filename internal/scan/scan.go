// Package scan finds where a type is attached across hierarchical documents
// such as saved scenes.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jward/sceneref/internal/model"
)

// Separator joins ancestor names into a node path.
const Separator = "/"

// ErrNodeNotFound is returned by Locate when no node has the given path.
var ErrNodeNotFound = errors.New("scan: node not found")

// Node is one object in a document tree.
type Node interface {
	Name() string
	// Children returns the direct children in document-declared order.
	Children() ([]Node, error)
	// Components returns the exact type full name of every attached component.
	Components() ([]string, error)
}

// Forest is an opened document. Close must be called once traversal ends.
type Forest interface {
	Roots() []Node
	Close() error
}

// Damaged is implemented by forests that skipped unreadable parts while
// opening. Scan reports each as a traversal warning.
type Damaged interface {
	Damage() []error
}

// Document is an openable hierarchical document.
type Document interface {
	ID() string
	Open(ctx context.Context) (Forest, error)
}

// Scanner walks documents looking for nodes carrying a given component type.
// A Scanner is safe for concurrent use; a document is held by at most one
// scan at a time.
type Scanner struct {
	workers int
	logger  *slog.Logger
	locks   *keyedMutex
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers scans up to n documents in parallel. n <= 1 scans serially.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		s.workers = n
	}
}

// WithLogger sets the logger used for recovered failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = l
	}
}

func New(opts ...Option) *Scanner {
	s := &Scanner{workers: 1, locks: newKeyedMutex()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns one UsageRecord per document containing at least one node
// whose components include fullName exactly. Records are sorted by document
// ID so serial and parallel scans agree.
//
// Open and traversal failures are returned as warnings. The context is
// checked before each document is opened; on cancellation the partial result
// is discarded and ctx.Err() returned.
func (s *Scanner) Scan(ctx context.Context, fullName string, docs []Document) ([]model.UsageRecord, []model.Warning, error) {
	var (
		mu       sync.Mutex
		records  []model.UsageRecord
		warnings []model.Warning
	)
	collect := func(rec *model.UsageRecord, warns []model.Warning) {
		mu.Lock()
		defer mu.Unlock()
		if rec != nil {
			records = append(records, *rec)
		}
		warnings = append(warnings, warns...)
	}

	if s.workers <= 1 || len(docs) <= 1 {
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return nil, warnings, err
			}
			collect(s.scanDocument(ctx, fullName, doc))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(min(s.workers, len(docs)))
		for _, doc := range docs {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				collect(s.scanDocument(ctx, fullName, doc))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, warnings, err
		}
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Document < records[j].Document })
	return records, warnings, nil
}

// scanDocument holds doc exclusively for the whole open-traverse-close cycle.
func (s *Scanner) scanDocument(ctx context.Context, fullName string, doc Document) (*model.UsageRecord, []model.Warning) {
	id := doc.ID()
	unlock := s.locks.Lock(id)
	defer unlock()

	forest, err := doc.Open(ctx)
	if err != nil {
		w := model.Warning{Kind: model.DocumentOpenFailure, Source: id, Err: err}
		w.Log(s.logger, "scan: document skipped")
		return nil, []model.Warning{w}
	}

	defer func() {
		if err := forest.Close(); err != nil && s.logger != nil {
			s.logger.Warn("scan: close document", slog.String("document", id), slog.String("error", err.Error()))
		}
	}()

	w := walker{doc: id, target: fullName, logger: s.logger}
	if d, ok := forest.(Damaged); ok {
		for _, err := range d.Damage() {
			warn := model.Warning{Kind: model.TraversalFailure, Source: id, Err: err}
			warn.Log(s.logger, "scan: object skipped")
			w.warnings = append(w.warnings, warn)
		}
	}
	for _, root := range forest.Roots() {
		if root == nil {
			continue
		}
		w.walk(root, root.Name())
	}
	if len(w.paths) == 0 {
		return nil, w.warnings
	}
	return &model.UsageRecord{Document: id, NodePaths: w.paths}, w.warnings
}

type walker struct {
	doc      string
	target   string
	logger   *slog.Logger
	paths    []string
	warnings []model.Warning
}

// walk visits n before its children. A failing node loses its own match and,
// if its children cannot be listed, its subtree; siblings are unaffected.
func (w *walker) walk(n Node, path string) {
	comps, err := n.Components()
	if err != nil {
		w.fail(path, fmt.Errorf("components: %w", err))
	} else if slices.Contains(comps, w.target) {
		w.paths = append(w.paths, path)
	}

	children, err := n.Children()
	if err != nil {
		w.fail(path, fmt.Errorf("children: %w", err))
		return
	}
	for _, c := range children {
		if c == nil {
			continue
		}
		w.walk(c, path+Separator+c.Name())
	}
}

func (w *walker) fail(path string, err error) {
	warn := model.Warning{Kind: model.TraversalFailure, Source: w.doc + ":" + path, Err: err}
	warn.Log(w.logger, "scan: node skipped")
	w.warnings = append(w.warnings, warn)
}

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until key is free and returns the matching unlock func.
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
