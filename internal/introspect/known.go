package introspect

import (
	"strings"

	"github.com/jward/sceneref/internal/model"
)

// KnownSet is the set of type identities resolved in one collection run.
// References are matched by simple name, or by full-name suffix when the
// reference is namespace-qualified.
type KnownSet struct {
	byName map[string][]model.TypeIdentity
}

func NewKnownSet(ids []model.TypeIdentity) *KnownSet {
	k := &KnownSet{byName: make(map[string][]model.TypeIdentity, len(ids))}
	for _, id := range ids {
		n := id.Name()
		k.byName[n] = append(k.byName[n], id)
	}
	return k
}

func (k *KnownSet) Len() int {
	if k == nil {
		return 0
	}
	n := 0
	for _, ids := range k.byName {
		n += len(ids)
	}
	return n
}

// Lookup resolves a type expression as written in source ("Enemy",
// "Game.Enemy", "Enemy[]", "Enemy?", "Pool<Enemy>") to the simple name of a
// known type. Only the outer type is considered: generic arguments do not
// resolve; array and nullable wrappers are unwrapped.
func (k *KnownSet) Lookup(typeExpr string) (string, bool) {
	if k == nil {
		return "", false
	}
	ref := normalizeRef(typeExpr)
	if ref == "" {
		return "", false
	}
	name := model.SimpleName(ref)
	ids := k.byName[name]
	if len(ids) == 0 {
		return "", false
	}
	if !strings.Contains(ref, ".") {
		return name, true
	}
	for _, id := range ids {
		if id.FullName == ref || strings.HasSuffix(id.FullName, "."+ref) {
			return name, true
		}
	}
	return "", false
}

func normalizeRef(expr string) string {
	s := strings.TrimSpace(expr)
	s = strings.TrimPrefix(s, "global::")
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	for {
		switch {
		case strings.HasSuffix(s, "?"):
			s = strings.TrimSuffix(s, "?")
		case strings.HasSuffix(s, "]"):
			i := strings.LastIndexByte(s, '[')
			if i < 0 {
				return ""
			}
			s = s[:i]
		default:
			return strings.TrimSpace(s)
		}
	}
}
