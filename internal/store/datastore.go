// Package store persists the usage cache between runs. A snapshot is always
// loaded and saved whole; there are no incremental writes.
package store

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/jward/sceneref/internal/model"
)

// Snapshot is the persisted cache: usage records and the unit modification
// time observed when they were computed, both keyed by content id.
type Snapshot struct {
	Usages   map[string][]model.UsageRecord `json:"usages"`
	ModTimes map[string]int64               `json:"modTimes"`
}

// NewSnapshot returns an empty snapshot with both maps allocated.
func NewSnapshot() Snapshot {
	return Snapshot{
		Usages:   make(map[string][]model.UsageRecord),
		ModTimes: make(map[string]int64),
	}
}

// Clone deep-copies s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Usages:   make(map[string][]model.UsageRecord, len(s.Usages)),
		ModTimes: maps.Clone(s.ModTimes),
	}
	if out.ModTimes == nil {
		out.ModTimes = make(map[string]int64)
	}
	for id, recs := range s.Usages {
		out.Usages[id] = model.CloneUsages(recs)
	}
	return out
}

// Store is implemented by every cache backend.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Close() error
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*File)(nil)
	_ Store = (*Memory)(nil)
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the backend named by backend, persisting at path. A cache is
// never worth failing a run for: an SQLite file that cannot be opened is
// moved aside to path+".corrupt" and recreated, and if that fails too the
// cache falls back to memory. Both cases are reported as warnings. Only an
// unknown backend is an error.
func Open(backend, path string) (Store, []model.Warning, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFile(path), nil, nil
	case BackendSQLite:
		s, err := openSQLite(path)
		if err == nil {
			return s, nil, nil
		}
		warns := []model.Warning{{Kind: model.CachePersistenceFailure, Source: path, Err: err}}
		if err := moveAside(path); err == nil {
			s, err := openSQLite(path)
			if err == nil {
				return s, warns, nil
			}
			warns = append(warns, model.Warning{Kind: model.CachePersistenceFailure, Source: path, Err: fmt.Errorf("recreate: %w", err)})
		}
		return NewMemory(), warns, nil
	case BackendMemory:
		return NewMemory(), nil, nil
	default:
		return nil, nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}

func openSQLite(path string) (*SQLite, error) {
	s, err := NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// moveAside renames an unreadable database and its WAL sidecars out of the
// way so a fresh one can be created in its place.
func moveAside(path string) error {
	if err := os.Rename(path, path+".corrupt"); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return nil
}
