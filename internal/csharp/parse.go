// Package csharp resolves C# compilation units into type handles by parsing
// them with tree-sitter. It stands in for runtime reflection: the handle is a
// symbol table read from the declaration syntax.
package csharp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/jward/sceneref/internal/introspect"
	"github.com/jward/sceneref/internal/model"
)

// ErrNoClass is returned by Parse when the source declares no class.
var ErrNoClass = errors.New("csharp: no class declaration")

var whitespaceRe = regexp.MustCompile(`\s+`)

// interfaceNameRe matches the IName convention for interfaces, which never
// count as a base class.
var interfaceNameRe = regexp.MustCompile(`^I[A-Z]`)

type member[T any] struct {
	info T
	err  error
}

// Type is a parsed class declaration.
type Type struct {
	id         model.TypeIdentity
	base       string
	fields     []member[introspect.FieldInfo]
	methods    []member[introspect.MethodInfo]
	properties []member[introspect.PropertyInfo]
}

var _ introspect.TypeIntrospectable = (*Type)(nil)

func (t *Type) Identity() model.TypeIdentity { return t.id }

func (t *Type) BaseType() (string, bool) { return t.base, t.base != "" }

func (t *Type) NumField() int { return len(t.fields) }

func (t *Type) Field(i int) (introspect.FieldInfo, error) {
	m := t.fields[i]
	return m.info, m.err
}

func (t *Type) NumMethod() int { return len(t.methods) }

func (t *Type) Method(i int) (introspect.MethodInfo, error) {
	m := t.methods[i]
	return m.info, m.err
}

func (t *Type) NumProperty() int { return len(t.properties) }

func (t *Type) Property(i int) (introspect.PropertyInfo, error) {
	m := t.properties[i]
	return m.info, m.err
}

// Parse reads the class declared by src. When several top-level classes are
// declared, the one named preferred wins, else the first in source order.
// unit is the owning assembly recorded in the identity.
func Parse(ctx context.Context, src []byte, preferred, unit string) (*Type, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(csharp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("csharp: parse: %w", err)
	}
	defer tree.Close()

	var classes []classDecl
	collectClasses(tree.RootNode(), src, "", &classes)
	if len(classes) == 0 {
		return nil, ErrNoClass
	}

	chosen := classes[0]
	for _, c := range classes {
		if c.name == preferred {
			chosen = c
			break
		}
	}
	return buildType(chosen, src, unit), nil
}

type classDecl struct {
	node      *sitter.Node
	name      string
	namespace string
}

func (c classDecl) fullName() string {
	if c.namespace == "" {
		return c.name
	}
	return c.namespace + "." + c.name
}

func collectClasses(n *sitter.Node, src []byte, ns string, out *[]classDecl) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "namespace_declaration":
			inner := joinNS(ns, text(child.ChildByFieldName("name"), src))
			body := child.ChildByFieldName("body")
			if body == nil {
				body = childOfType(child, "declaration_list")
			}
			if body != nil {
				collectClasses(body, src, inner, out)
			}
		case "file_scoped_namespace_declaration":
			// Depending on grammar version, members are children of this
			// node or its following siblings.
			ns = joinNS(ns, text(child.ChildByFieldName("name"), src))
			collectClasses(child, src, ns, out)
		case "declaration_list":
			collectClasses(child, src, ns, out)
		case "class_declaration":
			name := text(child.ChildByFieldName("name"), src)
			if name == "" {
				name = text(childOfType(child, "identifier"), src)
			}
			if name != "" {
				*out = append(*out, classDecl{node: child, name: name, namespace: ns})
			}
		}
	}
}

func buildType(c classDecl, src []byte, unit string) *Type {
	t := &Type{
		id:   model.TypeIdentity{FullName: c.fullName(), Unit: unit},
		base: baseClass(c.node, src),
	}

	body := c.node.ChildByFieldName("body")
	if body == nil {
		body = childOfType(c.node, "declaration_list")
	}
	if body == nil {
		return t
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		decl := body.NamedChild(i)
		switch decl.Type() {
		case "field_declaration":
			t.fields = append(t.fields, readFields(decl, src)...)
		case "method_declaration":
			info, err := readMethod(decl, src)
			t.methods = append(t.methods, member[introspect.MethodInfo]{info, err})
		case "property_declaration":
			info, err := readProperty(decl, src)
			t.properties = append(t.properties, member[introspect.PropertyInfo]{info, err})
		}
	}
	return t
}

// baseClass returns the first base_list entry that is not an interface by
// naming convention, or "Object" when the class names no base class.
func baseClass(class *sitter.Node, src []byte) string {
	bases := class.ChildByFieldName("bases")
	if bases == nil {
		bases = childOfType(class, "base_list")
	}
	if bases != nil {
		for i := 0; i < int(bases.NamedChildCount()); i++ {
			entry := bases.NamedChild(i)
			if entry.Type() == "argument_list" {
				continue
			}
			name := collapse(text(entry, src))
			if name == "" || interfaceNameRe.MatchString(model.SimpleName(name)) {
				continue
			}
			return name
		}
	}
	return "Object"
}

type modifiers map[string]bool

func readModifiers(n *sitter.Node, src []byte) modifiers {
	mods := modifiers{}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "modifier" {
			mods[strings.TrimSpace(text(c, src))] = true
		}
	}
	return mods
}

func (m modifiers) static() bool { return m["static"] || m["const"] }

func malformed(n *sitter.Node, src []byte) error {
	return fmt.Errorf("%w: %q", introspect.ErrMalformedMember, collapse(text(n, src)))
}

func readFields(decl *sitter.Node, src []byte) []member[introspect.FieldInfo] {
	mods := readModifiers(decl, src)
	vars := childOfType(decl, "variable_declaration")
	if vars == nil || decl.HasError() {
		return []member[introspect.FieldInfo]{{err: malformed(decl, src)}}
	}
	typeName := collapse(text(typeOf(vars), src))

	var out []member[introspect.FieldInfo]
	for i := 0; i < int(vars.NamedChildCount()); i++ {
		v := vars.NamedChild(i)
		if v.Type() != "variable_declarator" {
			continue
		}
		name := text(v.ChildByFieldName("name"), src)
		if name == "" {
			name = text(childOfType(v, "identifier"), src)
		}
		if name == "" || typeName == "" {
			out = append(out, member[introspect.FieldInfo]{err: malformed(v, src)})
			continue
		}
		out = append(out, member[introspect.FieldInfo]{info: introspect.FieldInfo{
			Name:     name,
			TypeName: typeName,
			Public:   mods["public"],
			Static:   mods.static(),
		}})
	}
	if len(out) == 0 {
		out = append(out, member[introspect.FieldInfo]{err: malformed(decl, src)})
	}
	return out
}

func readMethod(decl *sitter.Node, src []byte) (introspect.MethodInfo, error) {
	if decl.HasError() {
		return introspect.MethodInfo{}, malformed(decl, src)
	}
	mods := readModifiers(decl, src)
	name := text(decl.ChildByFieldName("name"), src)
	ret := decl.ChildByFieldName("type")
	if ret == nil {
		ret = decl.ChildByFieldName("returns")
	}
	if name == "" || ret == nil {
		return introspect.MethodInfo{}, malformed(decl, src)
	}

	info := introspect.MethodInfo{
		Name:       name,
		ReturnType: collapse(text(ret, src)),
		Public:     mods["public"],
		Static:     mods.static(),
	}
	params := decl.ChildByFieldName("parameters")
	if params == nil {
		params = childOfType(decl, "parameter_list")
	}
	if params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			if p.Type() != "parameter" {
				continue
			}
			pt := p.ChildByFieldName("type")
			if pt == nil {
				return introspect.MethodInfo{}, malformed(p, src)
			}
			info.Params = append(info.Params, collapse(text(pt, src)))
		}
	}
	return info, nil
}

func readProperty(decl *sitter.Node, src []byte) (introspect.PropertyInfo, error) {
	if decl.HasError() {
		return introspect.PropertyInfo{}, malformed(decl, src)
	}
	mods := readModifiers(decl, src)
	name := text(decl.ChildByFieldName("name"), src)
	if name == "" {
		return introspect.PropertyInfo{}, malformed(decl, src)
	}
	info := introspect.PropertyInfo{
		Name:     name,
		TypeName: collapse(text(typeOf(decl), src)),
		Static:   mods.static(),
	}

	accessors := decl.ChildByFieldName("accessors")
	if accessors == nil {
		accessors = childOfType(decl, "accessor_list")
	}
	if accessors == nil {
		// Expression-bodied property: getter only.
		info.CanRead = true
		info.Public = mods["public"]
		return info, nil
	}

	for i := 0; i < int(accessors.NamedChildCount()); i++ {
		acc := accessors.NamedChild(i)
		if acc.Type() != "accessor_declaration" {
			continue
		}
		accMods := readModifiers(acc, src)
		restricted := accMods["private"] || accMods["protected"] || accMods["internal"]
		switch accessorKeyword(acc, src) {
		case "get":
			info.CanRead = true
		case "set", "init":
			info.CanWrite = true
		default:
			continue
		}
		if mods["public"] && !restricted {
			info.Public = true
		}
	}
	return info, nil
}

// accessorKeyword returns get, set or init for an accessor declaration.
func accessorKeyword(acc *sitter.Node, src []byte) string {
	if n := acc.ChildByFieldName("name"); n != nil {
		return text(n, src)
	}
	for i := 0; i < int(acc.ChildCount()); i++ {
		switch t := acc.Child(i).Type(); t {
		case "get", "set", "init":
			return t
		}
	}
	for _, word := range strings.FieldsFunc(text(acc, src), func(r rune) bool {
		return r == ' ' || r == ';' || r == '{' || r == '\n' || r == '\t' || r == '='
	}) {
		switch word {
		case "get", "set", "init":
			return word
		}
	}
	return ""
}

// typeOf returns the declared type of a declaration: its "type" field when
// the grammar names one, else the first named child that is not a modifier
// or attribute list.
func typeOf(n *sitter.Node) *sitter.Node {
	if t := n.ChildByFieldName("type"); t != nil {
		return t
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "modifier", "attribute_list":
			continue
		}
		return c
	}
	return nil
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == typ {
			return c
		}
	}
	return nil
}

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func joinNS(outer, inner string) string {
	inner = collapse(inner)
	switch {
	case outer == "":
		return inner
	case inner == "":
		return outer
	default:
		return outer + "." + inner
	}
}
