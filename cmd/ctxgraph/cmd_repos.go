package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/ctxgraph"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List or remove indexed repositories",
}

func init() {
	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposDeleteCmd)
}

var reposListCmd = &cobra.Command{
	Use:   "list [db-path]",
	Short: "List every repository tracked in the index database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := reposDBPath(args)
		if err != nil {
			return err
		}
		engine, err := ctxgraph.New(dbPath)
		if err != nil {
			return fmt.Errorf("creating engine: %w", err)
		}
		defer engine.Close()

		repos, err := engine.Query().ListRepos()
		if err != nil {
			return fmt.Errorf("listing repositories: %w", err)
		}

		if flagFormat == "json" {
			type repoBrief struct {
				ID   int64  `json:"id"`
				Path string `json:"path"`
			}
			out := make([]repoBrief, 0, len(repos))
			for _, r := range repos {
				out = append(out, repoBrief{ID: r.ID, Path: r.Path})
			}
			raw, err := json.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		}

		for _, r := range repos {
			fmt.Printf("%d\t%s\n", r.ID, r.Path)
		}
		return nil
	},
}

var reposDeleteCmd = &cobra.Command{
	Use:   "delete <db-path> <repo-id> [repo-id...]",
	Short: "Remove one or more repositories and all of their indexed data",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := reposDBPath(args[:1])
		if err != nil {
			return err
		}
		engine, err := ctxgraph.New(dbPath)
		if err != nil {
			return fmt.Errorf("creating engine: %w", err)
		}
		defer engine.Close()

		ids := make([]int64, 0, len(args)-1)
		for _, raw := range args[1:] {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid repository id %q: %w", raw, err)
			}
			ids = append(ids, id)
		}

		if err := engine.Query().DeleteRepos(ids); err != nil {
			return fmt.Errorf("deleting repositories: %w", err)
		}
		fmt.Printf("deleted %d repositor%s\n", len(ids), plural(len(ids)))
		return nil
	},
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// reposDBPath resolves the database path for repos subcommands: an
// explicit positional path, --db, or the default cache-dir location
// rooted at the current directory (repos operations aren't scoped to a
// single repository checkout the way index/query are).
func reposDBPath(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	targetDir, err := resolveTargetDir(nil)
	if err != nil {
		return "", err
	}
	return resolveDBPath(findRepoRoot(targetDir))
}
