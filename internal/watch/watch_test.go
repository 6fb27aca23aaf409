package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, w *Watcher) <-chan []string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan []string, 16)
	done := make(chan error, 1)

	go func() {
		done <- w.Run(ctx, func(ctx context.Context, changed []string) {
			changes <- changed
		})
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		require.NoError(t, w.Close())
	})

	return changes
}

func waitChange(t *testing.T, changes <-chan []string) []string {
	t.Helper()

	select {
	case c := <-changes:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
		return nil
	}
}

func requireQuiet(t *testing.T, changes <-chan []string, d time.Duration) {
	t.Helper()

	select {
	case c := <-changes:
		t.Fatalf("unexpected change: %v", c)
	case <-time.After(d):
	}
}

func TestWatcher_debounces(t *testing.T) {
	dir := t.TempDir()

	w, err := New(100 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Add(dir))

	changes := startWatcher(t, w)

	for _, name := range []string{"a.html", "b.html", "c.html"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	changed := waitChange(t, changes)
	require.NotEmpty(t, changed)
	requireQuiet(t, changes, 400*time.Millisecond)
}

func TestWatcher_ignoresOutputDir(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(out, 0o755))

	w, err := New(50*time.Millisecond, out)
	require.NoError(t, err)
	require.NoError(t, w.Add(dir))

	changes := startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(out, "index.html"), []byte("x"), 0o600))
	require.NoError(t, os.RemoveAll(out))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".index.html.swp"), []byte("x"), 0o600))

	requireQuiet(t, changes, 400*time.Millisecond)
}

func TestWatcher_watchesNewDirectories(t *testing.T) {
	dir := t.TempDir()

	w, err := New(50 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Add(dir))

	changes := startWatcher(t, w)

	sub := filepath.Join(dir, "blog")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	waitChange(t, changes)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "post.html"), []byte("x"), 0o600))
	changed := waitChange(t, changes)
	require.Contains(t, changed, filepath.Join(sub, "post.html"))
}

func TestWatcher_addMissingPath(t *testing.T) {
	w, err := New(0)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Add(filepath.Join(t.TempDir(), "missing")))
	require.Equal(t, DefaultDebounce, w.debounce)
}
