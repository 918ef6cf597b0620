package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jward/ctxgraph"
	"github.com/jward/ctxgraph/internal/config"
	"github.com/jward/ctxgraph/internal/ctxerr"
	"github.com/jward/ctxgraph/internal/format"
)

// newTabwriter mirrors the teacher's cmd/canopy/format.go column layout
// for --format text.
func newTabwriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read operations over an already-indexed repository",
}

var (
	queryTopN      int
	querySearchMax int
)

func init() {
	overviewCmd.Flags().IntVar(&queryTopN, "top", 10, "number of largest symbols to include")
	searchCmd.Flags().IntVar(&querySearchMax, "max", 20, "maximum number of results")

	queryCmd.AddCommand(overviewCmd)
	queryCmd.AddCommand(fileSymbolsCmd)
	queryCmd.AddCommand(symbolDetailCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(dependenciesCmd)
	queryCmd.AddCommand(referencesCmd)
}

// openQueryStore resolves the repository root, opens its database
// read-only-in-spirit (the engine itself doesn't distinguish), loads its
// project config, and registers the repository so its ID is available
// for queries.
func openQueryStore(cmd *cobra.Command, path string) (*ctxgraph.Engine, int64, config.Config, error) {
	targetDir, err := resolveTargetDir([]string{path})
	if err != nil {
		return nil, 0, config.Config{}, err
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath, err := resolveDBPath(repoRoot)
	if err != nil {
		return nil, 0, config.Config{}, err
	}
	engine, err := ctxgraph.New(dbPath)
	if err != nil {
		return nil, 0, config.Config{}, fmt.Errorf("creating engine: %w", err)
	}
	repositoryID, err := engine.RegisterRepository(repoRoot)
	if err != nil {
		engine.Close()
		return nil, 0, config.Config{}, fmt.Errorf("registering repository: %w", err)
	}
	return engine, repositoryID, outputConfig(cmd, repoRoot), nil
}

func parseSymbolID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid symbol id %q: %w", raw, err)
	}
	return id, nil
}

var overviewCmd = &cobra.Command{
	Use:   "overview [path]",
	Short: "Summarize a repository: language mix, modules, largest symbols",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		engine, repositoryID, cfg, err := openQueryStore(cmd, path)
		if err != nil {
			return err
		}
		defer engine.Close()

		data, err := engine.Query().Overview(repositoryID, queryTopN)
		if err != nil {
			return fmt.Errorf("overview: %w", err)
		}
		if flagFormat == "json" {
			f := format.New(cfg.Output)
			out, err := f.FormatOverview(data)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}

		fmt.Println("languages:")
		for lang, count := range data.LanguageCounts {
			fmt.Printf("  %-12s %d\n", lang, count)
		}
		fmt.Println("modules:")
		for _, m := range data.Modules {
			fmt.Printf("  %-30s %d files\n", m.Path, m.FileCount)
		}
		fmt.Println("largest symbols:")
		tw := newTabwriter()
		fmt.Fprintln(tw, "KIND\tNAME\tFILE\tLINES")
		for _, s := range data.LargestSymbols {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d-%d\n", s.Kind, s.Name, s.Path, s.StartLine, s.EndLine)
		}
		tw.Flush()
		return nil
	},
}

var fileSymbolsCmd = &cobra.Command{
	Use:   "file-symbols <path> <file>",
	Short: "List the symbols declared in one file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, repositoryID, cfg, err := openQueryStore(cmd, args[0])
		if err != nil {
			return err
		}
		defer engine.Close()

		symbols, err := engine.Query().FileSymbols(repositoryID, args[1])
		if err != nil {
			return fmt.Errorf("file-symbols: %w", err)
		}
		if flagFormat == "json" {
			f := format.New(cfg.Output)
			out, err := f.FormatFileSymbols(args[1], symbols)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}

		tw := newTabwriter()
		fmt.Fprintln(tw, "KIND\tNAME\tLINES")
		for _, s := range symbols {
			fmt.Fprintf(tw, "%s\t%s\t%d-%d\n", s.Kind, s.Name, s.StartLine, s.EndLine)
		}
		tw.Flush()
		return nil
	},
}

var symbolDetailCmd = &cobra.Command{
	Use:   "symbol-detail <path> <symbol-id>",
	Short: "Show one symbol's signature, doc comment, and call graph",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, cfg, err := openQueryStore(cmd, args[0])
		if err != nil {
			return err
		}
		defer engine.Close()

		symbolID, err := parseSymbolID(args[1])
		if err != nil {
			return err
		}

		detail, err := engine.Query().SymbolDetail(symbolID)
		if err != nil {
			return fmt.Errorf("symbol-detail: %w", err)
		}
		if detail == nil {
			return fmt.Errorf("no symbol with id %d: %w", symbolID, ctxerr.ErrNotFound)
		}
		if flagFormat == "json" {
			f := format.New(cfg.Output)
			out, err := f.FormatSymbolDetail(detail)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}

		sym := detail.Symbol
		fmt.Printf("%s %s (%s:%d-%d)\n", sym.Kind, sym.Name, sym.Path, sym.StartLine, sym.EndLine)
		if sym.Signature != "" {
			fmt.Printf("  sig: %s\n", sym.Signature)
		}
		if sym.Doc != "" {
			fmt.Printf("  doc: %s\n", sym.Doc)
		}
		fmt.Printf("  calls: %d, called by: %d\n", len(detail.OutRefs), len(detail.InRefs))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <path> <query>",
	Short: "Full-text search over symbol names, kinds, doc comments, and paths",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, repositoryID, cfg, err := openQueryStore(cmd, args[0])
		if err != nil {
			return err
		}
		defer engine.Close()

		max := querySearchMax
		if !cmd.Flags().Changed("max") && cfg.Search.MaxResults > 0 {
			max = cfg.Search.MaxResults
		}
		hits, err := engine.Query().Search(repositoryID, args[1], max)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		if flagFormat == "json" {
			f := format.New(cfg.Output)
			out, err := f.FormatSearchResults(args[1], hits)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}

		tw := newTabwriter()
		fmt.Fprintln(tw, "KIND\tNAME\tFILE\tLINES")
		for _, h := range hits {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d-%d\n", h.Kind, h.Name, h.Path, h.StartLine, h.EndLine)
		}
		tw.Flush()
		return nil
	},
}

var dependenciesCmd = &cobra.Command{
	Use:   "dependencies <path> <symbol-id>",
	Short: "List a symbol's outgoing references",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, cfg, err := openQueryStore(cmd, args[0])
		if err != nil {
			return err
		}
		defer engine.Close()

		symbolID, err := parseSymbolID(args[1])
		if err != nil {
			return err
		}

		deps, err := engine.Query().Dependencies(symbolID)
		if err != nil {
			return fmt.Errorf("dependencies: %w", err)
		}
		if flagFormat == "json" {
			f := format.New(cfg.Output)
			out, err := f.FormatDependencies(symbolID, deps)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}

		tw := newTabwriter()
		fmt.Fprintln(tw, "KIND\tTARGET")
		for _, d := range deps {
			target := d.ToName
			if d.ToSymbolID == nil {
				target += " (external)"
			}
			fmt.Fprintf(tw, "%s\t%s\n", d.Kind, target)
		}
		tw.Flush()
		return nil
	},
}

var referencesCmd = &cobra.Command{
	Use:     "references <path> <symbol-id>",
	Aliases: []string{"called-by"},
	Short:   "List a symbol's callers",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, repositoryID, cfg, err := openQueryStore(cmd, args[0])
		if err != nil {
			return err
		}
		defer engine.Close()

		symbolID, err := parseSymbolID(args[1])
		if err != nil {
			return err
		}

		hits, err := engine.Query().ReferencesTo(repositoryID, symbolID)
		if err != nil {
			return fmt.Errorf("references: %w", err)
		}
		if flagFormat == "json" {
			f := format.New(cfg.Output)
			out, err := f.FormatReferences(symbolID, hits)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}

		tw := newTabwriter()
		fmt.Fprintln(tw, "KIND\tCALLER\tFILE\tLINE")
		for _, h := range hits {
			line := 0
			if h.Reference.Line != nil {
				line = *h.Reference.Line
			}
			callerName, callerFile := "?", ""
			if h.Caller != nil {
				callerName, callerFile = h.Caller.Name, h.Caller.Path
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", h.Reference.Kind, callerName, callerFile, line)
		}
		tw.Flush()
		return nil
	},
}
