// Package watcher reconciles a registry of repositories against
// filesystem change events, generalizing the teacher's single-index
// FsnotifyWatcher (jeranaias-rigrun/go-tui's internal/index/watcher.go)
// to the multi-tenant, per-repository registry this module's Engine
// requires. A Debouncer per repository collapses bursts of events into
// one partial re-index; backpressure limits each repository to one
// reconciliation in flight.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultQuietWindow is the debounce window's default, the midpoint of
// spec.md §4.5's 200-500ms expected range.
const DefaultQuietWindow = 350 * time.Millisecond

// Reconciler runs the partial-update path (§4.4) for one repository's
// changed paths. *ctxgraph.Engine satisfies this via a thin adapter in
// cmd/ctxgraph, keeping this package independent of the root module.
type Reconciler interface {
	Reconcile(ctx context.Context, repositoryID int64, root string, changedPaths []string) error
}

// ShouldIgnore reports whether a directory entry name should be skipped
// while establishing recursive watches, mirroring the Indexer's ignore
// rules (spec.md §4.5: "honoring the same ignore rules as the Indexer").
type ShouldIgnore func(root, relPath string, isDir bool) bool

type registeredRepo struct {
	repositoryID int64
	root         string
	debouncer    *Debouncer
}

// Watcher holds one fsnotify watch plus a per-repository debouncer
// registry. Safe for concurrent use.
type Watcher struct {
	fsw          *fsnotify.Watcher
	reconciler   Reconciler
	shouldIgnore ShouldIgnore
	quietWindow  time.Duration

	mu    sync.Mutex
	repos map[string]*registeredRepo // keyed by repository root

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Watcher. reconciler drives the partial re-index each
// debounced burst triggers; shouldIgnore gates which directories get a
// recursive fsnotify watch.
func New(reconciler Reconciler, shouldIgnore ShouldIgnore, quietWindow time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if quietWindow <= 0 {
		quietWindow = DefaultQuietWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fsw:          fsw,
		reconciler:   reconciler,
		shouldIgnore: shouldIgnore,
		quietWindow:  quietWindow,
		repos:        make(map[string]*registeredRepo),
		ctx:          ctx,
		cancel:       cancel,
	}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Watch registers repositoryID/root for watching: it adds a recursive
// fsnotify watch over root and starts root's debouncer. Safe to call
// for repositories already registered (it's a no-op).
func (w *Watcher) Watch(repositoryID int64, root string) error {
	w.mu.Lock()
	if _, ok := w.repos[root]; ok {
		w.mu.Unlock()
		return nil
	}
	debouncer := NewDebouncer(w.quietWindow, func(paths []string) {
		if err := w.reconciler.Reconcile(w.ctx, repositoryID, root, paths); err != nil {
			slog.Warn("reconciliation failed", "repository", root, "error", err)
		}
	})
	w.repos[root] = &registeredRepo{repositoryID: repositoryID, root: root, debouncer: debouncer}
	w.mu.Unlock()

	debouncer.Start(w.ctx)
	return w.addRecursive(root)
}

// Unwatch stops tracking a repository: its debouncer is stopped and its
// directories are removed from the underlying fsnotify watch list.
func (w *Watcher) Unwatch(root string) {
	w.mu.Lock()
	repo, ok := w.repos[root]
	if ok {
		delete(w.repos, root)
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	repo.debouncer.Stop()
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			w.fsw.Remove(path)
		}
		return nil
	})
}

// Close stops accepting new events, drains in-flight debouncers with a
// bounded timeout, then releases the fsnotify handle.
func (w *Watcher) Close(drainTimeout time.Duration) error {
	w.cancel()

	w.mu.Lock()
	debouncers := make([]*Debouncer, 0, len(w.repos))
	for _, r := range w.repos {
		debouncers = append(debouncers, r.debouncer)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, d := range debouncers {
			d.Stop()
		}
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		slog.Warn("watcher drain timed out", "timeout", drainTimeout)
	}

	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && w.shouldIgnore != nil && w.shouldIgnore(root, rel, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	repo := w.repoFor(event.Name)
	if repo == nil {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addRecursive(event.Name)
		}
	}

	rel, err := filepath.Rel(repo.root, event.Name)
	if err != nil {
		return
	}
	repo.debouncer.Touch(rel)
}

func (w *Watcher) repoFor(path string) *registeredRepo {
	w.mu.Lock()
	defer w.mu.Unlock()
	var best *registeredRepo
	for root, repo := range w.repos {
		if !hasPathPrefix(path, root) {
			continue
		}
		if best == nil || len(root) > len(best.root) {
			best = repo
		}
	}
	return best
}

func hasPathPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}
