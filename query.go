package ctxgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/ctxgraph/internal/store"
	"github.com/jward/ctxgraph/internal/tokenizer"
)

// QueryBuilder provides the read-only query surface over a repository's
// Store: repository status, overview, file symbols, symbol detail,
// search, dependencies, references-to-a-symbol, and repository admin.
// Every method here is one of the eleven tool-call operations SPEC_FULL.md
// §4.6 names; callers needing a budgeted response wrap the result with
// internal/format.
type QueryBuilder struct {
	store *store.Store
}

// RepositoryStatus reports indexing freshness for one repository.
type RepositoryStatus struct {
	FileCount  int
	StaleCount int
	StalePaths []string
}

// Status returns last-indexed state for repositoryID. currentHashes maps
// each on-disk file's relative path to its current content hash; pass
// nil to skip stale-file detection (FileCount/StaleCount still derive
// from stored rows).
func (q *QueryBuilder) Status(repositoryID int64, currentHashes map[string]string) (*RepositoryStatus, error) {
	files, err := q.store.FilesByRepository(repositoryID)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	status := &RepositoryStatus{FileCount: len(files)}
	if currentHashes == nil {
		return status, nil
	}
	stale, err := q.store.StaleFiles(repositoryID, currentHashes)
	if err != nil {
		return nil, fmt.Errorf("status: stale files: %w", err)
	}
	status.StaleCount = len(stale)
	for _, f := range stale {
		status.StalePaths = append(status.StalePaths, f.Path)
	}
	return status, nil
}

// Overview summarizes a repository: language mix, top-level modules
// grouped by directory, and the largest symbols by line span.
type Overview struct {
	LanguageCounts map[string]int
	Modules        []ModuleGroup
	LargestSymbols []*store.Symbol
}

// ModuleGroup is one directory-grouped set of files, the "top-level
// modules" the Query Surface's overview names — ported from
// original_source's directory-prefix grouping in get_overview.
type ModuleGroup struct {
	Path      string
	FileCount int
}

// Overview builds the repository overview. topN bounds LargestSymbols.
func (q *QueryBuilder) Overview(repositoryID int64, topN int) (*Overview, error) {
	files, err := q.store.FilesByRepository(repositoryID)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}

	langCounts := make(map[string]int)
	moduleCounts := make(map[string]int)
	for _, f := range files {
		langCounts[f.Language]++
		moduleCounts[topLevelDir(f.Path)]++
	}

	var modules []ModuleGroup
	for path, count := range moduleCounts {
		modules = append(modules, ModuleGroup{Path: path, FileCount: count})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Path < modules[j].Path })

	largest, err := q.largestSymbols(repositoryID, topN)
	if err != nil {
		return nil, fmt.Errorf("overview: largest symbols: %w", err)
	}

	return &Overview{
		LanguageCounts: langCounts,
		Modules:        modules,
		LargestSymbols: largest,
	}, nil
}

// topLevelDir returns the first path segment of a relative path, or "."
// for files directly at the repository root.
func topLevelDir(relPath string) string {
	parts := strings.SplitN(filepath.ToSlash(relPath), "/", 2)
	if len(parts) < 2 {
		return "."
	}
	return parts[0]
}

func (q *QueryBuilder) largestSymbols(repositoryID int64, topN int) ([]*store.Symbol, error) {
	if topN <= 0 {
		topN = 10
	}
	rows, err := q.store.DB().Query(
		"SELECT "+store.SymbolCols+" FROM symbols WHERE repository_id = ? "+
			"ORDER BY (end_line - start_line) DESC LIMIT ?",
		repositoryID, topN,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*store.Symbol
	for rows.Next() {
		sym, err := store.ScanSymbolRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// FileSymbols returns every symbol in a file, ordered by start line.
func (q *QueryBuilder) FileSymbols(repositoryID int64, path string) ([]*store.Symbol, error) {
	f, err := q.store.FileByPath(repositoryID, path)
	if err != nil {
		return nil, fmt.Errorf("file symbols: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return q.store.SymbolsByFile(f.ID)
}

// SymbolDetail is the full view of one symbol: its row, children,
// outgoing references, and incoming (resolved) references.
type SymbolDetail struct {
	Symbol     *store.Symbol
	Children   []*store.Symbol
	OutRefs    []*store.Reference
	InRefs     []ReferenceHit
	Implements []*store.Implementation
}

// SymbolDetail assembles the detail view for one symbol id.
func (q *QueryBuilder) SymbolDetail(symbolID int64) (*SymbolDetail, error) {
	sym, err := q.store.SymbolByID(symbolID)
	if err != nil {
		return nil, fmt.Errorf("symbol detail: %w", err)
	}
	if sym == nil {
		return nil, nil
	}
	children, err := q.store.ChildSymbols(symbolID)
	if err != nil {
		return nil, fmt.Errorf("symbol detail: children: %w", err)
	}
	outRefs, err := q.store.ReferencesBySymbol(symbolID)
	if err != nil {
		return nil, fmt.Errorf("symbol detail: out refs: %w", err)
	}
	inRefs, err := q.referencesTo(sym)
	if err != nil {
		return nil, fmt.Errorf("symbol detail: in refs: %w", err)
	}
	impls, err := q.store.ImplementationsByInterface(symbolID)
	if err != nil {
		return nil, fmt.Errorf("symbol detail: implementations: %w", err)
	}
	return &SymbolDetail{
		Symbol:     sym,
		Children:   children,
		OutRefs:    outRefs,
		InRefs:     inRefs,
		Implements: impls,
	}, nil
}

// Dependencies returns the outgoing references of a symbol — the
// Query Surface's "what does this symbol depend on" operation.
func (q *QueryBuilder) Dependencies(symbolID int64) ([]*store.Reference, error) {
	return q.store.ReferencesBySymbol(symbolID)
}

// ReferenceHit pairs a reference with the symbol it was found in, the
// shape "references to a symbol" returns per spec.md §4.6 ("caller
// symbol and line").
type ReferenceHit struct {
	Reference *store.Reference
	Caller    *store.Symbol
}

// ReferencesTo returns every reference whose resolved target is
// symbolID, falling back to name-equality against unresolved references
// when the target symbol's own name has no resolved hits yet. repositoryID
// is accepted for symmetry with the rest of the Query Surface's
// per-repository operations; every candidate reference already belongs
// to symbolID's own repository by construction.
func (q *QueryBuilder) ReferencesTo(repositoryID, symbolID int64) ([]ReferenceHit, error) {
	sym, err := q.store.SymbolByID(symbolID)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	if sym == nil {
		return nil, nil
	}
	return q.referencesTo(sym)
}

func (q *QueryBuilder) referencesTo(sym *store.Symbol) ([]ReferenceHit, error) {
	refs, err := q.store.ReferencesByTargetSymbol(sym.ID)
	if err != nil {
		return nil, fmt.Errorf("resolved: %w", err)
	}
	byName := false
	if len(refs) == 0 {
		refs, err = q.store.ReferencesByTargetName(sym.Name)
		if err != nil {
			return nil, fmt.Errorf("by name: %w", err)
		}
		byName = true
	}

	var hits []ReferenceHit
	for _, ref := range refs {
		if byName && ref.ToSymbolID != nil {
			continue
		}
		caller, err := q.store.SymbolByID(ref.SymbolID)
		if err != nil {
			return nil, fmt.Errorf("caller %d: %w", ref.SymbolID, err)
		}
		if byName && (caller == nil || caller.RepositoryID != sym.RepositoryID) {
			continue
		}
		hits = append(hits, ReferenceHit{Reference: ref, Caller: caller})
	}
	return hits, nil
}

// Search runs a full-text search over symbols_fts: the query is
// tokenized via the Code Tokenizer, each token becomes a `token*` prefix
// term, tokens are joined with AND, and results are ranked by BM25.
// Bare boolean literals in the raw query bypass tokenization, per
// spec.md §4.6 ("AND/OR/NOT literals supplied by the caller are passed
// through").
func (q *QueryBuilder) Search(repositoryID int64, query string, maxResults int) ([]*store.Symbol, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	matchExpr := buildFTSQuery(query)
	if matchExpr == "" {
		return nil, nil
	}

	cols := prefixCols("s", strings.Split(store.SymbolCols, ", "))
	rows, err := q.store.DB().Query(
		`SELECT `+cols+` FROM symbols_fts
		 JOIN symbols s ON s.id = symbols_fts.rowid
		 WHERE symbols_fts MATCH ? AND s.repository_id = ?
		 ORDER BY bm25(symbols_fts) LIMIT ?`,
		matchExpr, repositoryID, maxResults,
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()
	var out []*store.Symbol
	for rows.Next() {
		sym, err := store.ScanSymbolRow(rows)
		if err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

var booleanLiterals = map[string]bool{"AND": true, "OR": true, "NOT": true}

// buildFTSQuery turns a raw user query into an FTS5 MATCH expression:
// each space-separated term is tokenized and turned into a `term*`
// prefix match, bare boolean literals pass through unquoted, and the
// whole thing is joined with AND.
func buildFTSQuery(query string) string {
	fields := strings.Fields(query)
	var parts []string
	for _, field := range fields {
		if booleanLiterals[strings.ToUpper(field)] {
			parts = append(parts, strings.ToUpper(field))
			continue
		}
		for _, tok := range strings.Fields(tokenizer.Split(field)) {
			parts = append(parts, tok+"*")
		}
	}
	// FTS5's implicit operator between space-separated terms is AND, so
	// joining with a single space already ANDs the prefix terms while
	// leaving any pass-through OR/NOT literal in its original position.
	return strings.Join(parts, " ")
}

// prefixCols qualifies each column name in cols with the given table
// alias, used to disambiguate a join against symbols_fts.
func prefixCols(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(out, ", ")
}

// ListRepos returns every registered repository.
func (q *QueryBuilder) ListRepos() ([]*store.Repository, error) {
	return q.store.ListIndexedRepos()
}

// DeleteRepos removes the given repositories and every file, symbol, and
// reference row they own.
func (q *QueryBuilder) DeleteRepos(repositoryIDs []int64) error {
	for _, id := range repositoryIDs {
		if err := q.store.DeleteRepository(id); err != nil {
			return fmt.Errorf("delete repos: repo %d: %w", id, err)
		}
	}
	return nil
}

// HashFile computes the content hash the Storage Engine uses for change
// detection, reading path from disk. Exposed so callers building the
// currentHashes map for Status can share the Engine's hash function.
func HashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return store.ContentHash(content), nil
}
