package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/ctxgraph"
	"github.com/jward/ctxgraph/internal/ctxerr"
	"github.com/jward/ctxgraph/internal/format"
)

var (
	flagForce     bool
	flagLanguages string
	flagParallel  bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a repository from scratch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database and reindex from scratch")
	indexCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. typescript,python)")
	indexCmd.Flags().BoolVar(&flagParallel, "parallel", true, "extract files concurrently")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath, err := resolveDBPath(repoRoot)
	if err != nil {
		return err
	}

	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
	}

	cfg := outputConfig(cmd, repoRoot)

	var opts []ctxgraph.Option
	opts = append(opts, ctxgraph.WithParallel(flagParallel))
	if cfg.Indexer.MaxFileSize > 0 {
		opts = append(opts, ctxgraph.WithMaxFileSize(cfg.Indexer.MaxFileSize))
	}
	if len(cfg.Indexer.Ignore) > 0 {
		opts = append(opts, ctxgraph.WithIgnoreGlobs(cfg.Indexer.Ignore...))
	}
	if flagLanguages != "" {
		langs := strings.Split(flagLanguages, ",")
		for i := range langs {
			langs[i] = strings.TrimSpace(langs[i])
		}
		opts = append(opts, ctxgraph.WithLanguages(langs...))
	}

	engine, err := ctxgraph.New(dbPath, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()
	repositoryID, err := engine.IndexDirectory(ctx, targetDir)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	if err := engine.Resolve(ctx, repositoryID); err != nil {
		return fmt.Errorf("resolving: %w", err)
	}

	status, err := engine.Query().Status(repositoryID, nil)
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	duration := time.Since(start)
	if flagFormat == "json" {
		f := format.New(cfg.Output)
		out, err := f.FormatIndexResult(format.IndexStats{
			FilesTotal: status.FileCount,
			DurationMs: int(duration.Milliseconds()),
		})
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", targetDir, duration.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "Files: %d  Database: %s\n", status.FileCount, dbPath)
	return nil
}

var updateCmd = &cobra.Command{
	Use:   "update <path> [files...]",
	Short: "Re-index specific files in an already-indexed repository",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args[:1])
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath, err := resolveDBPath(repoRoot)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database not found: %s (run 'ctxgraph index' first): %w", dbPath, ctxerr.ErrNotFound)
	}

	cfg := outputConfig(cmd, repoRoot)
	var opts []ctxgraph.Option
	if cfg.Indexer.MaxFileSize > 0 {
		opts = append(opts, ctxgraph.WithMaxFileSize(cfg.Indexer.MaxFileSize))
	}
	if len(cfg.Indexer.Ignore) > 0 {
		opts = append(opts, ctxgraph.WithIgnoreGlobs(cfg.Indexer.Ignore...))
	}

	engine, err := ctxgraph.New(dbPath, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	repositoryID, err := engine.RegisterRepository(repoRoot)
	if err != nil {
		return fmt.Errorf("registering repository: %w", err)
	}

	paths := args[1:]
	ctx := context.Background()
	if err := engine.IndexFiles(ctx, repositoryID, repoRoot, paths); err != nil {
		return fmt.Errorf("updating: %w", err)
	}
	if err := engine.Resolve(ctx, repositoryID); err != nil {
		return fmt.Errorf("resolving: %w", err)
	}

	duration := time.Since(start)
	if flagFormat == "json" {
		f := format.New(cfg.Output)
		out, err := f.FormatUpdateResult(format.IndexStats{
			FilesChanged: len(paths),
			DurationMs:   int(duration.Milliseconds()),
		})
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Fprintf(os.Stderr, "Updated %d file(s) in %s\n", len(paths), duration.Round(time.Millisecond))
	return nil
}
