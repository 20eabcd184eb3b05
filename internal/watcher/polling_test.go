package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPolling(t *testing.T, dir string, ignore func(string, bool) bool) *PollingWatcher {
	t.Helper()
	w := NewPollingWatcher(30*time.Millisecond, ignore)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx, dir) }()
	// let the baseline scan finish
	time.Sleep(80 * time.Millisecond)
	return w
}

func nextEvent(t *testing.T, w *PollingWatcher) FileEvent {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return FileEvent{}
}

func TestPollingWatcher_DetectsFileCreation(t *testing.T) {
	// Given: an empty dataset directory being polled
	dir := t.TempDir()
	w := startPolling(t, dir, nil)

	// When: a file appears in a new subdirectory
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lidar"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lidar", "000.pcd"), []byte("x"), 0o644))

	// Then: a CREATE for the file with a slash path arrives
	ev := nextEvent(t, w)
	assert.Equal(t, OpCreate, ev.Operation)
	assert.Equal(t, "lidar/000.pcd", ev.Path)
	assert.False(t, ev.IsDir)
	require.NoError(t, w.Stop())
}

func TestPollingWatcher_DetectsFileModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "imu.csv")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	w := startPolling(t, dir, nil)

	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, OpModify, ev.Operation)
	assert.Equal(t, "imu.csv", ev.Path)
}

func TestPollingWatcher_DetectsDirectoryRemoval(t *testing.T) {
	// Given: a directory holding one file
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "run"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run", "a.png"), []byte("x"), 0o644))
	w := startPolling(t, dir, nil)

	// When: the directory is removed
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "run")))

	// Then: the file is reported deleted
	ev := nextEvent(t, w)
	assert.Equal(t, OpDelete, ev.Operation)
	assert.Equal(t, "run/a.png", ev.Path)
}

func TestPollingWatcher_RespectsIgnore(t *testing.T) {
	dir := t.TempDir()
	ignore := func(rel string, isDir bool) bool { return strings.HasPrefix(rel, "skip") }
	w := startPolling(t, dir, ignore)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "skip"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip", "a.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.png"), []byte("x"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, "keep.png", ev.Path)
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPollingWatcher_Start_InvalidPath_ReturnsError(t *testing.T) {
	w := NewPollingWatcher(10*time.Millisecond, nil)

	err := w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
}

func TestPollingWatcher_ContextCancellation(t *testing.T) {
	// Given: a running polling watcher
	w := NewPollingWatcher(20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, t.TempDir()) }()
	time.Sleep(50 * time.Millisecond)

	// When: the context is cancelled
	cancel()

	// Then: Start returns and the channels are closed
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
	_, ok := <-w.Events()
	assert.False(t, ok)
	require.NoError(t, w.Stop())
}
