// Command ctxgraph is a local CLI for exercising the ctxgraph engine
// directly: indexing a repository, watching it for changes, and running
// the same query operations an external coding agent's tool calls would
// invoke. Adapted from the teacher's cmd/canopy entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/ctxgraph/internal/config"
	"github.com/jward/ctxgraph/internal/ctxerr"
	"github.com/jward/ctxgraph/internal/store"
)

var (
	flagDB        string
	flagFormat    string
	flagMaxTokens int
)

// configCache memoizes each repository's .ctxgraph.json across the
// lifetime of one CLI invocation (a single run only ever touches one
// repo root in practice).
var configCache = config.NewCache()

// errorHandled is set once an error has already been printed, so main
// doesn't double-report it.
var errorHandled bool

func main() {
	configureLogging()
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// configureLogging sets the default slog level from CTXGRAPH_LOG_LEVEL
// (debug|info|warn|error), defaulting to warn so routine Indexer/Watcher
// diagnostics stay quiet unless asked for.
func configureLogging() {
	level := slog.LevelWarn
	switch os.Getenv("CTXGRAPH_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

var rootCmd = &cobra.Command{
	Use:           "ctxgraph",
	Short:         "Local, per-repository semantic code index",
	Long:          "ctxgraph indexes source code with tree-sitter extractors into a normalized symbol/reference graph, stored in an embedded SQLite database with full-text search.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: <cache dir>/<repo hash>.db)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().IntVar(&flagMaxTokens, "max-tokens", 0, "truncate JSON output to roughly this many tokens (0: use project config, unbounded by default)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(reposCmd)
}

func validateFormat(format string) error {
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid --format %q: must be json or text: %w", format, ctxerr.ErrInvalidInput)
	}
	return nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s: %w", abs, ctxerr.ErrNotFound)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s: %w", abs, ctxerr.ErrInvalidInput)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// outputConfig returns repoRoot's cached output config, overridden by
// --max-tokens when the caller passed it explicitly: the flag wins over
// whatever .ctxgraph.json says, so a single query can ask for a tighter
// budget than the repo's default without editing the project file.
func outputConfig(cmd *cobra.Command, repoRoot string) config.Config {
	cfg := configCache.Get(repoRoot)
	if cmd.Flags().Changed("max-tokens") {
		cfg.Output.MaxTokens = &flagMaxTokens
	}
	return cfg
}

// resolveDBPath returns the database path from the --db flag, or the
// spec's default of <cache dir>/<sha256-prefix-of-repoRoot>.db.
func resolveDBPath(repoRoot string) (string, error) {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB, nil
		}
		return filepath.Join(repoRoot, flagDB), nil
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache dir: %w: %w", err, ctxerr.ErrIO)
	}
	cacheDir = filepath.Join(cacheDir, "ctxgraph")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir %s: %w: %w", cacheDir, err, ctxerr.ErrIO)
	}
	return store.DBPathForRepo(cacheDir, repoRoot), nil
}
