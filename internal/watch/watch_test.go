package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_DebouncedBurst(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Scripts"), 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var bursts [][]string
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, []string{dir}, []string{".cs"}, nil, 150*time.Millisecond, func(_ context.Context, changed []string) {
			mu.Lock()
			bursts = append(bursts, changed)
			mu.Unlock()
		})
	}()
	time.Sleep(100 * time.Millisecond)

	a := filepath.Join(dir, "Scripts", "A.cs")
	b := filepath.Join(dir, "Scripts", "B.cs")
	require.NoError(t, os.WriteFile(a, []byte("class A {}"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("class B {}"), 0o644))
	require.NoError(t, os.WriteFile(a, []byte("class A { int x; }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Scripts", "notes.txt"), []byte("x"), 0o644))

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bursts) > 0
	}, "no change burst delivered")

	mu.Lock()
	assert.Len(t, bursts, 1)
	if len(bursts) > 0 {
		assert.Equal(t, []string{a, b}, bursts[0])
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []string, 4)
	go Watch(ctx, []string{dir}, []string{".cs"}, nil, 50*time.Millisecond, func(_ context.Context, changed []string) {
		got <- changed
	})
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(dir, "Editor")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	file := filepath.Join(sub, "Tool.cs")
	require.NoError(t, os.WriteFile(file, []byte("class Tool {}"), 0o644))

	select {
	case changed := <-got:
		assert.Contains(t, changed, file)
	case <-time.After(5 * time.Second):
		t.Fatal("change in new directory not seen")
	}
}

func TestMatchesExt(t *testing.T) {
	assert.True(t, matchesExt("a/B.CS", []string{".cs"}))
	assert.False(t, matchesExt("a/b.txt", []string{".cs", ".unity"}))
	assert.True(t, matchesExt("a/b.txt", nil))
}

func TestWatch_MissingRoot(t *testing.T) {
	err := Watch(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, nil, nil, 0, func(context.Context, []string) {})
	require.Error(t, err)
}
