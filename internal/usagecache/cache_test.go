package usagecache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sceneref/internal/model"
	"github.com/jward/sceneref/internal/scan"
	"github.com/jward/sceneref/internal/store"
)

type fixture struct {
	root  string
	meta  *model.TypeMetadata
	world *scan.StaticDocument
	docs  []scan.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	unit := "Assets/Scripts/A.cs"
	require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.Dir(unit)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, unit), []byte("class A { }"), 0o644))

	world := &scan.StaticDocument{Name: "world1", Roots: []*scan.StaticNode{
		{NodeName: "Root", Kids: []*scan.StaticNode{{NodeName: "Child", Types: []string{"A"}}}},
	}}
	return &fixture{
		root:  root,
		meta:  &model.TypeMetadata{Identity: model.TypeIdentity{FullName: "A"}, UnitPath: unit, ContentID: "guid-a"},
		world: world,
		docs:  []scan.Document{world},
	}
}

func (f *fixture) touch(t *testing.T, at time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(filepath.Join(f.root, f.meta.UnitPath), at, at))
}

var want = []model.UsageRecord{{Document: "world1", NodePaths: []string{"Root/Child"}}}

func TestGetOrScan_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := Open(store.NewMemory(), scan.New(), WithRoot(f.root))
	ctx := context.Background()

	first, _, err := c.GetOrScan(ctx, f.meta, f.docs)
	require.NoError(t, err)
	assert.Equal(t, want, first)
	assert.Equal(t, want, f.meta.Usages)
	require.Equal(t, 1, f.world.Opens())

	second, _, err := c.GetOrScan(ctx, f.meta, f.docs)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.world.Opens(), "second call must not open documents")
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Scans: 1}, c.Stats())
}

func TestGetOrScan_InvalidatedByUnitModTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	st := store.NewMemory()
	c := Open(st, scan.New(), WithRoot(f.root))
	ctx := context.Background()
	f.touch(t, time.Unix(1_700_000_000, 0))

	_, _, err := c.GetOrScan(ctx, f.meta, f.docs)
	require.NoError(t, err)

	// The scene changes but the unit does not: the stale result is served.
	f.world.Roots[0].Kids = append(f.world.Roots[0].Kids, &scan.StaticNode{NodeName: "Extra", Types: []string{"A"}})
	stale, _, err := c.GetOrScan(ctx, f.meta, f.docs)
	require.NoError(t, err)
	assert.Equal(t, want, stale)

	later := time.Unix(1_700_000_100, 0)
	f.touch(t, later)
	fresh, _, err := c.GetOrScan(ctx, f.meta, f.docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Root/Child", "Root/Extra"}, fresh[0].NodePaths)
	assert.Equal(t, 2, f.world.Opens())

	require.NoError(t, c.Flush())
	snap, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, later.UnixNano(), snap.ModTimes["guid-a"])
	assert.Equal(t, fresh, snap.Usages["guid-a"])
}

func TestGetOrScan_MissingUnitIsNotCached(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.root, f.meta.UnitPath)))
	c := Open(store.NewMemory(), scan.New(), WithRoot(f.root))
	ctx := context.Background()

	for range 2 {
		recs, _, err := c.GetOrScan(ctx, f.meta, f.docs)
		require.NoError(t, err)
		assert.Equal(t, want, recs)
	}
	assert.Equal(t, 2, f.world.Opens())
	assert.Zero(t, c.Len())
}

func TestGetOrScan_ReturnsCopies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := Open(store.NewMemory(), scan.New(), WithRoot(f.root))
	ctx := context.Background()

	recs, _, err := c.GetOrScan(ctx, f.meta, f.docs)
	require.NoError(t, err)
	recs[0].NodePaths[0] = "mutated"
	f.meta.Usages[0].Document = "mutated"

	again, _, err := c.GetOrScan(ctx, f.meta, f.docs)
	require.NoError(t, err)
	assert.Equal(t, want, again)
}

func TestGetOrScan_ScanErrorNotCached(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := Open(store.NewMemory(), scan.New(), WithRoot(f.root))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.GetOrScan(ctx, f.meta, f.docs)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.Len())

	_, _, err = c.GetOrScan(context.Background(), &model.TypeMetadata{Identity: model.TypeIdentity{FullName: "B"}}, f.docs)
	require.Error(t, err)
}

func TestOpen_CorruptStoreStartsEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{garbage"), 0o644))

	c := Open(store.NewFile(path), scan.New(), WithRoot(f.root))
	require.Len(t, c.Warnings(), 1)
	assert.Equal(t, model.CachePersistenceFailure, c.Warnings()[0].Kind)
	assert.Zero(t, c.Len())

	recs, _, err := c.GetOrScan(context.Background(), f.meta, f.docs)
	require.NoError(t, err)
	assert.Equal(t, want, recs)

	// Closing overwrites the corrupt file with a valid snapshot.
	require.NoError(t, c.Close())
	snap, err := store.NewFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want, snap.Usages["guid-a"])
}

func TestClose_PersistsAcrossRuns(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	st, warns, err := store.Open(store.BackendSQLite, path)
	require.NoError(t, err)
	require.Empty(t, warns)
	c := Open(st, scan.New(), WithRoot(f.root))
	_, _, err = c.GetOrScan(ctx, f.meta, f.docs)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	st, warns, err = store.Open(store.BackendSQLite, path)
	require.NoError(t, err)
	require.Empty(t, warns)
	c = Open(st, scan.New(), WithRoot(f.root))
	defer c.Close()
	recs, _, err := c.GetOrScan(ctx, f.meta, f.docs)
	require.NoError(t, err)
	assert.Equal(t, want, recs)
	assert.Equal(t, 1, f.world.Opens())
	assert.Equal(t, int64(1), c.Stats().Hits)
}

// countingScanner records how many scans run at once per type.
type countingScanner struct {
	inner   Scanner
	mu      sync.Mutex
	active  map[string]int
	peak    int
	started atomic.Int64
}

func (s *countingScanner) Scan(ctx context.Context, name string, docs []scan.Document) ([]model.UsageRecord, []model.Warning, error) {
	s.started.Add(1)
	s.mu.Lock()
	s.active[name]++
	s.peak = max(s.peak, s.active[name])
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	defer func() {
		s.mu.Lock()
		s.active[name]--
		s.mu.Unlock()
	}()
	return s.inner.Scan(ctx, name, docs)
}

func TestGetOrScan_SingleWriterPerContentID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sc := &countingScanner{inner: scan.New(), active: map[string]int{}}
	c := Open(store.NewMemory(), sc, WithRoot(f.root))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta := *f.meta
			recs, _, err := c.GetOrScan(context.Background(), &meta, f.docs)
			assert.NoError(t, err)
			assert.Equal(t, want, recs)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sc.peak)
	assert.Equal(t, int64(1), sc.started.Load(), "later callers should hit the entry written by the first")
	assert.Equal(t, int64(7), c.Stats().Hits)
}
