// Package unityscene opens Unity scene files (.unity) as scan documents.
//
// A scene is a YAML stream of objects, each introduced by a header of the
// form "--- !u!<classID> &<fileID>". GameObjects list their components by
// fileID; the Transform component carries the hierarchy through m_Father and
// m_Children. Objects marked "stripped" belong to prefab instances and are
// not expanded.
package unityscene

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jward/sceneref/internal/model"
	"github.com/jward/sceneref/internal/scan"
)

// ErrNotScene is returned when a file holds no Unity object headers, which
// includes binary-serialized scenes.
var ErrNotScene = errors.New("unityscene: no YAML objects")

var headerRe = regexp.MustCompile(`^--- !u!(\d+) &(-?\d+)(\s+stripped)?`)

// ScriptIndex maps a script asset GUID to the full name of the type it
// declares.
type ScriptIndex map[string]string

// NewScriptIndex indexes metas by content id.
func NewScriptIndex(metas []*model.TypeMetadata) ScriptIndex {
	idx := make(ScriptIndex, len(metas))
	for _, m := range metas {
		if m.ContentID != "" {
			idx[m.ContentID] = m.Identity.FullName
		}
	}
	return idx
}

// Document is a scene file. Path is the document ID; when it is relative and
// Root is set the file is read from Root/Path.
type Document struct {
	Path    string
	Root    string
	Scripts ScriptIndex
}

var _ scan.Document = (*Document)(nil)

// Documents wraps scene paths that share a root and script index.
func Documents(root string, paths []string, scripts ScriptIndex) []scan.Document {
	out := make([]scan.Document, len(paths))
	for i, p := range paths {
		out[i] = &Document{Path: p, Root: root, Scripts: scripts}
	}
	return out
}

func (d *Document) ID() string { return d.Path }

// Open reads and parses the scene.
func (d *Document) Open(ctx context.Context) (scan.Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file := d.Path
	if d.Root != "" && !filepath.IsAbs(file) {
		file = filepath.Join(d.Root, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unityscene: read: %w", err)
	}
	objs, damage, err := parseObjects(data)
	if err != nil {
		return nil, fmt.Errorf("unityscene: %s: %w", d.Path, err)
	}
	f := buildForest(objs, d.Scripts)
	f.damage = damage
	return f, nil
}

type ref struct {
	FileID int64  `yaml:"fileID"`
	GUID   string `yaml:"guid"`
}

// body holds the union of the fields read from any object class.
type body struct {
	Name       string           `yaml:"m_Name"`
	Components []map[string]ref `yaml:"m_Component"`
	GameObject ref              `yaml:"m_GameObject"`
	Father     ref              `yaml:"m_Father"`
	Children   []ref            `yaml:"m_Children"`
	RootOrder  int              `yaml:"m_RootOrder"`
	Script     ref              `yaml:"m_Script"`
	Roots      []ref            `yaml:"m_Roots"`
}

type object struct {
	class    string
	fileID   int64
	stripped bool
	body
}

// parseObjects splits the stream on object headers and decodes each body.
// A body that fails to decode is left out of objs and reported in damage so
// one odd object does not hide the rest of the scene.
func parseObjects(data []byte) (objs []object, damage []error, err error) {
	var (
		cur     *object
		buf     bytes.Buffer
		headers int
	)
	flush := func() {
		if cur == nil {
			return
		}
		var wrapped map[string]body
		if err := yaml.Unmarshal(buf.Bytes(), &wrapped); err != nil {
			damage = append(damage, fmt.Errorf("object &%d: %w", cur.fileID, err))
		} else {
			for class, b := range wrapped {
				cur.class = class
				cur.body = b
			}
			objs = append(objs, *cur)
		}
		cur = nil
		buf.Reset()
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if m := headerRe.FindStringSubmatch(line); m != nil {
			flush()
			headers++
			id, err := strconv.ParseInt(m[2], 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("object header %q: %w", line, err)
			}
			cur = &object{fileID: id, stripped: m[3] != ""}
			continue
		}
		if cur != nil {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("split objects: %w", err)
	}
	flush()

	if headers == 0 {
		return nil, nil, ErrNotScene
	}
	return objs, damage, nil
}

func isTransform(class string) bool {
	return class == "Transform" || class == "RectTransform"
}

type node struct {
	name  string
	comps []string
	kids  []*node
}

func (n *node) Name() string { return n.name }

func (n *node) Children() ([]scan.Node, error) {
	out := make([]scan.Node, len(n.kids))
	for i, k := range n.kids {
		out[i] = k
	}
	return out, nil
}

func (n *node) Components() ([]string, error) { return n.comps, nil }

type forest struct {
	roots  []*node
	damage []error
}

var _ scan.Damaged = (*forest)(nil)

func (f *forest) Roots() []scan.Node {
	out := make([]scan.Node, len(f.roots))
	for i, r := range f.roots {
		out[i] = r
	}
	return out
}

// Damage lists the objects that could not be decoded.
func (f *forest) Damage() []error { return f.damage }

func (f *forest) Close() error {
	f.roots = nil
	return nil
}

func buildForest(objs []object, scripts ScriptIndex) *forest {
	byID := make(map[int64]*object, len(objs))
	order := make(map[int64]int, len(objs))
	for i := range objs {
		o := &objs[i]
		if o.stripped {
			continue
		}
		byID[o.fileID] = o
		order[o.fileID] = i
	}

	componentName := func(id int64) (string, bool) {
		c, ok := byID[id]
		if !ok {
			return "", false
		}
		if c.class == "MonoBehaviour" {
			name, ok := scripts[c.Script.GUID]
			return name, ok
		}
		return "UnityEngine." + c.class, true
	}

	visited := make(map[int64]bool)
	var build func(transformID int64) *node
	build = func(transformID int64) *node {
		t, ok := byID[transformID]
		if !ok || !isTransform(t.class) || visited[transformID] {
			return nil
		}
		visited[transformID] = true
		goObj, ok := byID[t.GameObject.FileID]
		if !ok {
			return nil
		}
		n := &node{name: goObj.Name}
		for _, entry := range goObj.Components {
			for _, r := range entry {
				if name, ok := componentName(r.FileID); ok {
					n.comps = append(n.comps, name)
				}
			}
		}
		for _, c := range t.Children {
			if kid := build(c.FileID); kid != nil {
				n.kids = append(n.kids, kid)
			}
		}
		return n
	}

	var rootIDs []int64
	for _, o := range objs {
		if o.class == "SceneRoots" {
			for _, r := range o.Roots {
				rootIDs = append(rootIDs, r.FileID)
			}
		}
	}
	if len(rootIDs) == 0 {
		for _, o := range objs {
			if !o.stripped && isTransform(o.class) && o.Father.FileID == 0 {
				rootIDs = append(rootIDs, o.fileID)
			}
		}
		sort.SliceStable(rootIDs, func(i, j int) bool {
			a, b := byID[rootIDs[i]], byID[rootIDs[j]]
			if a.RootOrder != b.RootOrder {
				return a.RootOrder < b.RootOrder
			}
			return order[a.fileID] < order[b.fileID]
		})
	}

	f := &forest{}
	for _, id := range rootIDs {
		if n := build(id); n != nil {
			f.roots = append(f.roots, n)
		}
	}
	return f
}
