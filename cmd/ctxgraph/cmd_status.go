package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/ctxgraph"
	"github.com/jward/ctxgraph/internal/format"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show indexing freshness for a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	repositoryID, err := engine.RegisterRepository(repoRoot)
	if err != nil {
		return fmt.Errorf("registering repository: %w", err)
	}

	currentHashes, err := hashRepoFiles(repoRoot)
	if err != nil {
		return fmt.Errorf("hashing working tree: %w", err)
	}

	status, err := engine.Query().Status(repositoryID, currentHashes)
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	if flagFormat == "json" {
		f := format.New(outputConfig(cmd, repoRoot).Output)
		out, err := f.FormatStatus(status)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Printf("files:  %d\n", status.FileCount)
	fmt.Printf("stale:  %d\n", status.StaleCount)
	for _, p := range status.StalePaths {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

// hashRepoFiles walks root and hashes every regular file, relative to
// root, the shape QueryBuilder.Status needs to detect drift since the
// last index.
func hashRepoFiles(root string) (map[string]string, error) {
	hashes := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if defaultShouldIgnore(root, relOrSelf(root, path), true) {
				return filepath.SkipDir
			}
			return nil
		}
		rel := relOrSelf(root, path)
		hash, err := ctxgraph.HashFile(path)
		if err != nil {
			return nil
		}
		hashes[rel] = hash
		return nil
	})
	return hashes, err
}

func relOrSelf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
