package csharp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jward/sceneref/internal/introspect"
)

// DefaultAssembly owns every unit outside an assembly definition.
const DefaultAssembly = "Assembly-CSharp"

const asmCacheSize = 512

// Resolver implements collect.TypeResolver for .cs files. The owning unit of
// a type is the assembly named by the nearest *.asmdef file between the
// unit's directory and the project root.
type Resolver struct {
	root        string
	defaultUnit string
	logger      *slog.Logger
	assemblies  *lru.Cache[string, string]
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDefaultAssembly overrides DefaultAssembly.
func WithDefaultAssembly(name string) ResolverOption {
	return func(r *Resolver) {
		if name != "" {
			r.defaultUnit = name
		}
	}
}

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver for units under root.
func NewResolver(root string, opts ...ResolverOption) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("csharp: resolve root: %w", err)
	}
	cache, err := lru.New[string, string](asmCacheSize)
	if err != nil {
		return nil, fmt.Errorf("csharp: assembly cache: %w", err)
	}
	r := &Resolver{
		root:        abs,
		defaultUnit: DefaultAssembly,
		assemblies:  cache,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve parses the unit at path. Files that are not C# or declare no class
// resolve to (nil, nil).
func (r *Resolver) Resolve(ctx context.Context, path string) (introspect.TypeIntrospectable, error) {
	if !strings.EqualFold(filepath.Ext(path), ".cs") {
		return nil, nil
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(r.root, path)
	}
	src, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("csharp: read unit: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := Parse(ctx, src, stem, r.assemblyFor(filepath.Dir(full)))
	if errors.Is(err, ErrNoClass) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// assemblyFor walks from dir up to the root looking for an assembly
// definition. Results are memoised per directory.
func (r *Resolver) assemblyFor(dir string) string {
	if name, ok := r.assemblies.Get(dir); ok {
		return name
	}
	name := r.defaultUnit
	if asm, ok := readAsmdef(dir, r.logger); ok {
		name = asm
	} else if parent := filepath.Dir(dir); parent != dir && within(r.root, parent) {
		name = r.assemblyFor(parent)
	}
	r.assemblies.Add(dir, name)
	return name
}

func readAsmdef(dir string, logger *slog.Logger) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.asmdef"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", false
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var def struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &def); err != nil || def.Name == "" {
		if logger != nil {
			logger.Warn("csharp: unreadable assembly definition", slog.String("path", matches[0]))
		}
		return "", false
	}
	return def.Name, true
}

func within(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}
