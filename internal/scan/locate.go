package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Locate reports whether doc contains a node at the slash-joined path, the
// same form Scan records. Each segment is matched by name against the nodes
// at that depth; when siblings share a name, every one of them is tried
// before the path is reported missing. doc is held under the same
// per-document lock Scan uses.
func (s *Scanner) Locate(ctx context.Context, doc Document, path string) (bool, error) {
	segments := strings.Split(strings.Trim(path, Separator), Separator)
	if len(segments) == 0 || segments[0] == "" {
		return false, fmt.Errorf("scan: locate %q: empty path", path)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	unlock := s.locks.Lock(doc.ID())
	defer unlock()

	forest, err := doc.Open(ctx)
	if err != nil {
		return false, fmt.Errorf("scan: open %s: %w", doc.ID(), err)
	}
	defer forest.Close()

	_, err = find(forest.Roots(), segments)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNodeNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("scan: locate %q in %s: %w", path, doc.ID(), err)
	}
}

// find resolves segments against nodes, backtracking across siblings that
// share a name.
func find(nodes []Node, segments []string) (Node, error) {
	for _, n := range nodes {
		if n == nil || n.Name() != segments[0] {
			continue
		}
		if len(segments) == 1 {
			return n, nil
		}
		children, err := n.Children()
		if err != nil {
			return nil, err
		}
		if found, err := find(children, segments[1:]); !errors.Is(err, ErrNodeNotFound) {
			return found, err
		}
	}
	return nil, ErrNodeNotFound
}
