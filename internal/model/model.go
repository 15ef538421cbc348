// Package model defines the metadata records produced by a collection run and
// the usage records produced by a scene scan.
package model

import (
	"fmt"
	"strings"
)

// TypeIdentity uniquely identifies a declared type: its fully-qualified name
// plus the identifier of the unit (assembly) that owns it.
type TypeIdentity struct {
	FullName string
	Unit     string
}

// Key returns a string form suitable for map keys and logs.
func (id TypeIdentity) Key() string {
	return id.Unit + "::" + id.FullName
}

// Name returns the simple name: the last dotted segment of FullName.
func (id TypeIdentity) Name() string {
	return SimpleName(id.FullName)
}

// SimpleName strips namespace qualifiers and generic arguments from a type
// name: "Game.Units.Enemy" -> "Enemy", "List<int>" -> "List".
func SimpleName(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

type MemberKind string

const (
	Field    MemberKind = "field"
	Method   MemberKind = "method"
	Property MemberKind = "property"
)

// MemberDescriptor describes one field, method or property of a type.
// Params is only set for methods; CanRead and CanWrite only for properties.
type MemberDescriptor struct {
	Kind     MemberKind `json:"kind"`
	Name     string     `json:"name"`
	TypeName string     `json:"type"`
	Public   bool       `json:"public"`
	Params   []string   `json:"params,omitempty"`
	CanRead  bool       `json:"canRead,omitempty"`
	CanWrite bool       `json:"canWrite,omitempty"`
}

// Access returns "public" or "private".
func (m MemberDescriptor) Access() string {
	if m.Public {
		return "public"
	}
	return "private"
}

// String renders the member the way the viewer lists it:
//
//	public int health
//	private void Move(Vector3, float)
//	public int Health { get; set; }
func (m MemberDescriptor) String() string {
	switch m.Kind {
	case Method:
		return fmt.Sprintf("%s %s %s(%s)", m.Access(), m.TypeName, m.Name, strings.Join(m.Params, ", "))
	case Property:
		var acc []string
		if m.CanRead {
			acc = append(acc, "get;")
		}
		if m.CanWrite {
			acc = append(acc, "set;")
		}
		return fmt.Sprintf("%s %s %s { %s }", m.Access(), m.TypeName, m.Name, strings.Join(acc, " "))
	default:
		return fmt.Sprintf("%s %s %s", m.Access(), m.TypeName, m.Name)
	}
}

// UsageRecord lists the node paths inside one document where a type is
// attached. Paths are root-relative ancestor names joined by "/".
type UsageRecord struct {
	Document  string   `json:"document"`
	NodePaths []string `json:"nodePaths"`
}

// CloneUsages deep-copies a usage list so callers cannot alias cached data.
func CloneUsages(in []UsageRecord) []UsageRecord {
	if in == nil {
		return nil
	}
	out := make([]UsageRecord, len(in))
	for i, r := range in {
		out[i] = UsageRecord{
			Document:  r.Document,
			NodePaths: append([]string(nil), r.NodePaths...),
		}
	}
	return out
}

// TypeMetadata is the structural description of one type in a collection
// run. Usages is filled in on demand by the usage cache.
type TypeMetadata struct {
	Identity     TypeIdentity       `json:"identity"`
	Folder       string             `json:"folder"`
	Name         string             `json:"name"`
	UnitName     string             `json:"unitName"`
	BaseType     string             `json:"baseType"`
	UnitPath     string             `json:"unitPath"`
	ContentID    string             `json:"contentId"`
	Fields       []MemberDescriptor `json:"fields"`
	Methods      []MemberDescriptor `json:"methods"`
	Properties   []MemberDescriptor `json:"properties"`
	Dependencies []string           `json:"dependencies"`
	Usages       []UsageRecord      `json:"usages,omitempty"`
}

// Members returns fields, methods and properties in that order.
func (m *TypeMetadata) Members() []MemberDescriptor {
	out := make([]MemberDescriptor, 0, len(m.Fields)+len(m.Methods)+len(m.Properties))
	out = append(out, m.Fields...)
	out = append(out, m.Methods...)
	return append(out, m.Properties...)
}

// DependsOn reports whether name is in the dependency set.
func (m *TypeMetadata) DependsOn(name string) bool {
	for _, d := range m.Dependencies {
		if d == name {
			return true
		}
	}
	return false
}
