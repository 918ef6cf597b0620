package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/ctxgraph"
	"github.com/jward/ctxgraph/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a repository and keep its index up to date",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

// engineReconciler adapts an *ctxgraph.Engine to watcher.Reconciler, the
// only coupling between the watcher package and the engine.
type engineReconciler struct {
	engine *ctxgraph.Engine
}

func (r *engineReconciler) Reconcile(ctx context.Context, repositoryID int64, root string, changedPaths []string) error {
	if err := r.engine.IndexFiles(ctx, repositoryID, root, changedPaths); err != nil {
		return fmt.Errorf("indexing changed files: %w", err)
	}
	return r.engine.Resolve(ctx, repositoryID)
}

// defaultShouldIgnore mirrors ctxgraph.DefaultIgnoreDirs (the same
// directories a fresh IndexDirectory walk skips), plus ctxgraph's own
// cache/database directory and any other dotdir.
func defaultShouldIgnore(_, rel string, isDir bool) bool {
	if !isDir {
		return false
	}
	base := filepath.Base(rel)
	if ctxgraph.DefaultIgnoreDirs[base] || base == ".ctxgraph" {
		return true
	}
	return strings.HasPrefix(base, ".")
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath, err := resolveDBPath(repoRoot)
	if err != nil {
		return err
	}

	engine, err := ctxgraph.New(dbPath)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repositoryID, err := engine.IndexDirectory(ctx, targetDir)
	if err != nil {
		return fmt.Errorf("initial index: %w", err)
	}
	if err := engine.Resolve(ctx, repositoryID); err != nil {
		return fmt.Errorf("initial resolve: %w", err)
	}

	w, err := watcher.New(&engineReconciler{engine: engine}, defaultShouldIgnore, watcher.DefaultQuietWindow)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	if err := w.Watch(repositoryID, targetDir); err != nil {
		return fmt.Errorf("watching %s: %w", targetDir, err)
	}

	fmt.Fprintf(os.Stderr, "Watching %s (database: %s). Press Ctrl+C to stop.\n", targetDir, dbPath)
	<-ctx.Done()

	fmt.Fprintln(os.Stderr, "Shutting down, draining in-flight updates...")
	return w.Close(10 * time.Second)
}
