package sceneref

import (
	"io"
	"sort"
	"strings"

	"github.com/jward/sceneref/internal/graph"
)

// Filter returns the metas matching term, case-insensitively, against the
// unit name, full type name, folder, or any member signature. A blank term
// matches everything. Order is preserved.
func Filter(metas []*TypeMetadata, term string) []*TypeMetadata {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return metas
	}
	var out []*TypeMetadata
	for _, m := range metas {
		if matches(m, term) {
			out = append(out, m)
		}
	}
	return out
}

func matches(m *TypeMetadata, term string) bool {
	for _, s := range []string{m.UnitName, m.Identity.FullName, m.Folder} {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	for _, member := range m.Members() {
		if strings.Contains(strings.ToLower(member.String()), term) {
			return true
		}
	}
	return false
}

// FolderGroup is the types of one folder, sorted by unit name.
type FolderGroup struct {
	Folder string
	Types  []*TypeMetadata
}

// GroupByFolder groups metas by folder. Groups are sorted by folder.
func GroupByFolder(metas []*TypeMetadata) []FolderGroup {
	byFolder := make(map[string][]*TypeMetadata)
	for _, m := range metas {
		byFolder[m.Folder] = append(byFolder[m.Folder], m)
	}
	groups := make([]FolderGroup, 0, len(byFolder))
	for folder, types := range byFolder {
		sort.SliceStable(types, func(i, j int) bool { return types[i].UnitName < types[j].UnitName })
		groups = append(groups, FolderGroup{Folder: folder, Types: types})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Folder < groups[j].Folder })
	return groups
}

// FindByName returns the type whose full name equals name, else the first
// (by unit path) whose simple name equals name, else nil.
func FindByName(metas []*TypeMetadata, name string) *TypeMetadata {
	var simple *TypeMetadata
	for _, m := range metas {
		if m.Identity.FullName == name {
			return m
		}
		if simple == nil && m.Name == name {
			simple = m
		}
	}
	return simple
}

// Edges returns the dependency edges among metas.
func Edges(metas []*TypeMetadata) []Edge {
	return graph.Edges(metas)
}

// Dependents returns the names of the types that depend on name.
func Dependents(metas []*TypeMetadata, name string) []string {
	return graph.Dependents(metas, name)
}

// WriteMermaid writes metas as a Mermaid class diagram.
func WriteMermaid(w io.Writer, metas []*TypeMetadata) error {
	return graph.Mermaid(w, metas)
}
