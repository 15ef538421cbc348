// Package graph exposes the dependency graph embedded in a collection run's
// metadata. An edge A -> B exists iff B's name appears as a field type, a
// method parameter type or the base type of A, and B belongs to the same run.
package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jward/sceneref/internal/model"
)

// Edge is a dependency from Source to Target, both display names.
type Edge struct {
	Source string
	Target string
}

// HasEdge reports whether a depends on b.
func HasEdge(a, b *model.TypeMetadata) bool {
	return a.DependsOn(b.Name)
}

// Edges returns every dependency edge of the run, sorted by source then
// target. Dependencies that name no type of the run are omitted.
func Edges(metas []*model.TypeMetadata) []Edge {
	names := nameSet(metas)
	seen := make(map[Edge]struct{})
	var edges []Edge
	for _, m := range metas {
		for _, d := range m.Dependencies {
			if _, ok := names[d]; !ok {
				continue
			}
			e := Edge{Source: m.Name, Target: d}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			edges = append(edges, e)
		}
	}
	sortEdges(edges)
	return edges
}

// Dangling returns dependencies that point outside the run. A run built by
// the collector always yields none.
func Dangling(metas []*model.TypeMetadata) []Edge {
	names := nameSet(metas)
	var out []Edge
	for _, m := range metas {
		for _, d := range m.Dependencies {
			if _, ok := names[d]; !ok || d == m.Name {
				out = append(out, Edge{Source: m.Name, Target: d})
			}
		}
	}
	sortEdges(out)
	return out
}

// Dependents returns the sorted names of types that depend on name.
func Dependents(metas []*model.TypeMetadata, name string) []string {
	set := make(map[string]struct{})
	for _, m := range metas {
		if m.DependsOn(name) {
			set[m.Name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Mermaid writes a class diagram: one class block per type with its members,
// an inheritance arrow for in-run base types and a dependency arrow for every
// other edge.
func Mermaid(w io.Writer, metas []*model.TypeMetadata) error {
	sorted := append([]*model.TypeMetadata(nil), metas...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString("classDiagram\n")
	for _, m := range sorted {
		fmt.Fprintf(&b, "  class %s {\n", mermaidID(m.Name))
		for _, member := range m.Members() {
			fmt.Fprintf(&b, "    %s\n", mermaidMember(member))
		}
		b.WriteString("  }\n")
	}
	for _, e := range Edges(sorted) {
		arrow := "..>"
		for _, m := range sorted {
			if m.Name == e.Source && m.BaseType == e.Target {
				arrow = "--|>"
				break
			}
		}
		fmt.Fprintf(&b, "  %s %s %s\n", mermaidID(e.Source), arrow, mermaidID(e.Target))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func mermaidMember(m model.MemberDescriptor) string {
	vis := "-"
	if m.Public {
		vis = "+"
	}
	typ := mermaidType(m.TypeName)
	switch m.Kind {
	case model.Method:
		params := make([]string, len(m.Params))
		for i, p := range m.Params {
			params[i] = mermaidType(p)
		}
		return fmt.Sprintf("%s%s(%s) %s", vis, m.Name, strings.Join(params, ", "), typ)
	default:
		return fmt.Sprintf("%s%s %s", vis, typ, m.Name)
	}
}

// mermaidType rewrites generic brackets into Mermaid's tilde syntax.
func mermaidType(t string) string {
	return strings.NewReplacer("<", "~", ">", "~").Replace(t)
}

func mermaidID(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '`' {
			return '_'
		}
		return r
	}, name)
}

func nameSet(metas []*model.TypeMetadata) map[string]struct{} {
	names := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		names[m.Name] = struct{}{}
	}
	return names
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
}
