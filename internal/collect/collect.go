// Package collect turns a set of compilation units into one metadata record
// per resolved type.
package collect

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"

	"github.com/jward/sceneref/internal/introspect"
	"github.com/jward/sceneref/internal/model"
)

// Unit is one source file and its stable content id.
type Unit struct {
	Path string
	ID   string
}

// TypeResolver maps a unit path to the type it declares. A unit declaring
// no analyzable type resolves to (nil, nil).
type TypeResolver interface {
	Resolve(ctx context.Context, path string) (introspect.TypeIntrospectable, error)
}

// ResolverFunc adapts a function to TypeResolver.
type ResolverFunc func(ctx context.Context, path string) (introspect.TypeIntrospectable, error)

func (f ResolverFunc) Resolve(ctx context.Context, path string) (introspect.TypeIntrospectable, error) {
	return f(ctx, path)
}

// Collector orchestrates resolution, de-duplication and introspection.
type Collector struct {
	resolver TypeResolver
	logger   *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

func New(resolver TypeResolver, opts ...Option) *Collector {
	c := &Collector{resolver: resolver}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type resolved struct {
	unit   Unit
	handle introspect.TypeIntrospectable
}

// Collect resolves every unit, keeps one unit per type identity and
// introspects the survivors. When several units resolve to the same identity
// the lexicographically smallest unit path wins. The returned list is sorted
// by unit path; units are not mutated.
//
// Resolution and member failures are returned as warnings. Only context
// cancellation aborts the run.
func (c *Collector) Collect(ctx context.Context, units []Unit) ([]*model.TypeMetadata, []model.Warning, error) {
	var warnings []model.Warning
	byIdentity := make(map[model.TypeIdentity]resolved)

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, warnings, err
		}
		h, err := c.resolver.Resolve(ctx, u.Path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, warnings, ctx.Err()
			}
			w := model.Warning{Kind: model.ResolutionFailure, Source: u.Path, Err: err}
			if c.logger != nil {
				c.logger.Debug("collect: unit skipped", slog.String("path", u.Path), slog.String("error", err.Error()))
			}
			warnings = append(warnings, w)
			continue
		}
		if h == nil {
			continue
		}
		id := h.Identity()
		if prev, ok := byIdentity[id]; ok {
			if c.logger != nil {
				c.logger.Info("collect: duplicate type identity",
					slog.String("type", id.Key()),
					slog.String("kept", minPath(prev.unit.Path, u.Path)),
					slog.String("dropped", maxPath(prev.unit.Path, u.Path)))
			}
			if prev.unit.Path <= u.Path {
				continue
			}
		}
		byIdentity[id] = resolved{unit: u, handle: h}
	}

	ids := make([]model.TypeIdentity, 0, len(byIdentity))
	for id := range byIdentity {
		ids = append(ids, id)
	}
	known := introspect.NewKnownSet(ids)

	metas := make([]*model.TypeMetadata, 0, len(byIdentity))
	for _, r := range byIdentity {
		meta, warns := introspect.Introspect(r.handle, known)
		for _, w := range warns {
			w.Source = fmt.Sprintf("%s (%s)", w.Source, r.unit.Path)
			w.Log(c.logger, "collect: member skipped")
			warnings = append(warnings, w)
		}
		meta.Folder = folderOf(r.unit.Path)
		meta.UnitName = path.Base(filepath.ToSlash(r.unit.Path))
		meta.UnitPath = r.unit.Path
		meta.ContentID = r.unit.ID
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].UnitPath < metas[j].UnitPath })
	return metas, warnings, nil
}

func folderOf(p string) string {
	return path.Dir(filepath.ToSlash(p))
}

func minPath(a, b string) string {
	if a <= b {
		return a
	}
	return b
}

func maxPath(a, b string) string {
	if a <= b {
		return b
	}
	return a
}
