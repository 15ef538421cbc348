// Package introspect extracts structural facts (fields, methods, properties,
// base type) from a type handle and computes its in-corpus dependencies.
//
// Type handles are abstracted behind [TypeIntrospectable], shaped after
// reflect.Type: indexed member accessors that may fail individually. A
// failing member is skipped and reported; the type itself is never dropped.
package introspect

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/sceneref/internal/model"
)

// ErrMalformedMember is returned by member accessors when the member cannot
// be read, e.g. a declaration with syntax errors.
var ErrMalformedMember = errors.New("malformed member")

type FieldInfo struct {
	Name     string
	TypeName string
	Public   bool
	Static   bool
}

type MethodInfo struct {
	Name       string
	ReturnType string
	Params     []string
	Public     bool
	Static     bool
}

type PropertyInfo struct {
	Name     string
	TypeName string
	Public   bool
	Static   bool
	CanRead  bool
	CanWrite bool
}

// TypeIntrospectable is the capability a resolved type handle exposes.
// Methods reports only methods declared on the type itself.
type TypeIntrospectable interface {
	Identity() model.TypeIdentity
	// BaseType returns the name of the base type as written, or false if the
	// type has none.
	BaseType() (string, bool)

	NumField() int
	Field(i int) (FieldInfo, error)
	NumMethod() int
	Method(i int) (MethodInfo, error)
	NumProperty() int
	Property(i int) (PropertyInfo, error)
}

// accessorPrefixes name compiler-generated property accessor methods.
var accessorPrefixes = []string{"get_", "set_"}

// IsAccessorName reports whether a method name is a property accessor
// implementation that is already represented by a property descriptor.
func IsAccessorName(name string) bool {
	for _, p := range accessorPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Introspect builds the metadata skeleton for h (no usages, no unit paths).
// Dependencies are restricted to names resolvable in known.
func Introspect(h TypeIntrospectable, known *KnownSet) (*model.TypeMetadata, []model.Warning) {
	id := h.Identity()
	meta := &model.TypeMetadata{
		Identity: id,
		Name:     id.Name(),
		BaseType: "None",
	}
	deps := newDepSet(id.Name())
	var warnings []model.Warning

	fail := func(kind model.MemberKind, i int, err error) {
		warnings = append(warnings, model.Warning{
			Kind:   model.IntrospectionFailure,
			Source: fmt.Sprintf("%s %s #%d", id.FullName, kind, i),
			Err:    err,
		})
	}

	for i := 0; i < h.NumField(); i++ {
		f, err := h.Field(i)
		if err != nil {
			fail(model.Field, i, err)
			continue
		}
		if f.Static {
			continue
		}
		meta.Fields = append(meta.Fields, model.MemberDescriptor{
			Kind:     model.Field,
			Name:     f.Name,
			TypeName: displayType(f.TypeName),
			Public:   f.Public,
		})
		deps.add(known, f.TypeName)
	}

	for i := 0; i < h.NumMethod(); i++ {
		m, err := h.Method(i)
		if err != nil {
			fail(model.Method, i, err)
			continue
		}
		if m.Static || IsAccessorName(m.Name) {
			continue
		}
		params := make([]string, len(m.Params))
		for j, p := range m.Params {
			params[j] = displayType(p)
			deps.add(known, p)
		}
		meta.Methods = append(meta.Methods, model.MemberDescriptor{
			Kind:     model.Method,
			Name:     m.Name,
			TypeName: displayType(m.ReturnType),
			Public:   m.Public,
			Params:   params,
		})
	}

	for i := 0; i < h.NumProperty(); i++ {
		p, err := h.Property(i)
		if err != nil {
			fail(model.Property, i, err)
			continue
		}
		if p.Static {
			continue
		}
		meta.Properties = append(meta.Properties, model.MemberDescriptor{
			Kind:     model.Property,
			Name:     p.Name,
			TypeName: displayType(p.TypeName),
			Public:   p.Public,
			CanRead:  p.CanRead,
			CanWrite: p.CanWrite,
		})
	}

	if base, ok := h.BaseType(); ok {
		meta.BaseType = displayType(base)
		deps.add(known, base)
	}

	meta.Dependencies = deps.sorted()
	return meta, warnings
}

// displayType is the simple name used in descriptors, keeping generic
// arguments and array or nullable suffixes as written.
func displayType(expr string) string {
	expr = strings.TrimSpace(strings.TrimPrefix(expr, "global::"))
	head, rest := expr, ""
	if i := strings.IndexAny(expr, "<[?"); i >= 0 {
		head, rest = expr[:i], expr[i:]
	}
	if i := strings.LastIndexByte(head, '.'); i >= 0 {
		head = head[i+1:]
	}
	return head + rest
}

// depSet is a name-keyed dependency set. Two distinct types sharing a simple
// name collapse into one entry.
type depSet struct {
	self  string
	names map[string]struct{}
}

func newDepSet(self string) *depSet {
	return &depSet{self: self, names: make(map[string]struct{})}
}

func (d *depSet) add(known *KnownSet, typeExpr string) {
	name, ok := known.Lookup(typeExpr)
	if !ok || name == d.self {
		return
	}
	d.names[name] = struct{}{}
}

func (d *depSet) sorted() []string {
	out := make([]string, 0, len(d.names))
	for n := range d.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
