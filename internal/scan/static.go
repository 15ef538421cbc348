package scan

import (
	"context"
	"sync/atomic"
)

// StaticNode is an in-memory Node.
type StaticNode struct {
	NodeName     string
	Types        []string
	Kids         []*StaticNode
	ChildErr     error
	ComponentErr error
}

func (n *StaticNode) Name() string { return n.NodeName }

func (n *StaticNode) Children() ([]Node, error) {
	if n.ChildErr != nil {
		return nil, n.ChildErr
	}
	// A nil kid stays a nil Node rather than a typed nil.
	out := make([]Node, len(n.Kids))
	for i, k := range n.Kids {
		if k != nil {
			out[i] = k
		}
	}
	return out, nil
}

func (n *StaticNode) Components() ([]string, error) {
	if n.ComponentErr != nil {
		return nil, n.ComponentErr
	}
	return n.Types, nil
}

// StaticDocument is an in-memory Document that counts opens and closes.
type StaticDocument struct {
	Name    string
	Roots   []*StaticNode
	OpenErr error
	// Damage is reported by the opened forest.
	Damage []error

	opens  atomic.Int64
	closes atomic.Int64
	active atomic.Int64
	peak   atomic.Int64
}

func (d *StaticDocument) ID() string { return d.Name }

func (d *StaticDocument) Open(ctx context.Context) (Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.opens.Add(1)
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	n := d.active.Add(1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return &staticForest{doc: d}, nil
}

// Opens returns the number of Open calls.
func (d *StaticDocument) Opens() int { return int(d.opens.Load()) }

// Closes returns the number of forests closed.
func (d *StaticDocument) Closes() int { return int(d.closes.Load()) }

// PeakOpen returns the largest number of forests open at once.
func (d *StaticDocument) PeakOpen() int { return int(d.peak.Load()) }

type staticForest struct {
	doc    *StaticDocument
	closed atomic.Bool
}

func (f *staticForest) Roots() []Node {
	out := make([]Node, len(f.doc.Roots))
	for i, r := range f.doc.Roots {
		if r != nil {
			out[i] = r
		}
	}
	return out
}

func (f *staticForest) Damage() []error { return f.doc.Damage }

func (f *staticForest) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		f.doc.active.Add(-1)
		f.doc.closes.Add(1)
	}
	return nil
}
