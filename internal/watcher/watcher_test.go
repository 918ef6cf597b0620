package watcher

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

type recordingReconciler struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingReconciler) Reconcile(_ context.Context, _ int64, root string, paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, paths...)
	return nil
}

func (r *recordingReconciler) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestWatcher_DetectsFileChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))

	rec := &recordingReconciler{}
	w, err := New(rec, nil, 40*time.Millisecond)
	require.NoError(t, err)
	defer w.Close(time.Second)

	require.NoError(t, w.Watch(1, root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n\nfunc F() {}\n"), 0o644))

	require.Eventually(t, func() bool {
		for _, p := range rec.seen() {
			if p == "a.go" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_HonorsShouldIgnore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0o755))

	ignore := func(_, rel string, isDir bool) bool {
		return isDir && rel == "vendor"
	}
	rec := &recordingReconciler{}
	w, err := New(rec, ignore, 40*time.Millisecond)
	require.NoError(t, err)
	defer w.Close(time.Second)

	require.NoError(t, w.Watch(1, root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "dep.go"), []byte("package dep\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.seen())
}

func TestWatcher_UnwatchStopsEvents(t *testing.T) {
	root := t.TempDir()
	rec := &recordingReconciler{}
	w, err := New(rec, nil, 40*time.Millisecond)
	require.NoError(t, err)
	defer w.Close(time.Second)

	require.NoError(t, w.Watch(1, root))
	w.Unwatch(root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.go"), []byte("package n\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.seen())
}
