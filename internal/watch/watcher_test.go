package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatcher(t *testing.T, root, exclude string) (*Watcher, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	w, err := New(Options{
		Root:     root,
		Exclude:  exclude,
		Debounce: 20 * time.Millisecond,
		OnChange: func() { calls.Add(1) },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })
	return w, &calls
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatcher_BurstFiresOnce(t *testing.T) {
	root := t.TempDir()
	_, calls := startWatcher(t, root, "")

	for i := 0; i < 5; i++ {
		write(t, filepath.Join(root, "a.go"), "package a")
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcher_ExcludedPathsAreQuiet(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0o755))
	_, calls := startWatcher(t, root, "dist,*.log")

	write(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "x")
	write(t, filepath.Join(root, "dist", "out.js"), "x")
	write(t, filepath.Join(root, "server.log"), "x")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	write(t, filepath.Join(root, "main.go"), "package main")
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_NewDirectoriesAreWatched(t *testing.T) {
	root := t.TempDir()
	w, calls := startWatcher(t, root, "")

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	write(t, filepath.Join(sub, "b.go"), "package pkg")
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), w.Fired())
}

func TestWatcher_StopDropsPending(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	w, err := New(Options{Root: root, Debounce: time.Hour, OnChange: func() { calls.Add(1) }})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	write(t, filepath.Join(root, "a.go"), "x")
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Stop())
	assert.Equal(t, int32(0), calls.Load())
}

func TestNew_RequiresCallback(t *testing.T) {
	_, err := New(Options{Root: t.TempDir()})
	assert.Error(t, err)
}
