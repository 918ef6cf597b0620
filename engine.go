package ctxgraph

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/ctxgraph/internal/ctxerr"
	"github.com/jward/ctxgraph/internal/lang"
	"github.com/jward/ctxgraph/internal/store"
)

// defaultMaxFileSize is the extraction policy's size gate: files larger
// than this are skipped rather than parsed. Overridden by a repository's
// indexer.max_file_size setting.
const defaultMaxFileSize = 1 << 20 // 1 MiB

// Engine orchestrates the ctxgraph pipeline: file discovery, change
// detection, extraction via the internal/lang extractors, resolution, and
// query access. One Engine wraps one SQLite database (conventionally one
// per repository, via DBPathForRepo), though the schema itself tracks
// repositories by id so a single Engine can index more than one root.
type Engine struct {
	store *store.Store

	languages   map[string]bool // nil means all languages
	maxFileSize int64
	useParallel bool

	// extraIgnore holds a repository's indexer.ignore glob patterns, on
	// top of .gitignore and DefaultIgnoreDirs. Nil means none configured.
	extraIgnore *ignore.GitIgnore

	// blastRadius accumulates file IDs that need re-resolution after
	// indexing. nil means "resolve everything" (first run or full reindex).
	blastRadius map[int64]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			e.languages[l] = true
		}
	}
}

// WithParallel controls parallel extraction. When true (default), IndexFiles
// uses a worker pool for parsing and extraction, with a single writer
// committing batches to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithMaxFileSize overrides the extraction policy's size gate, normally
// sourced from a repository's internal/config.
func WithMaxFileSize(bytes int64) Option {
	return func(e *Engine) {
		e.maxFileSize = bytes
	}
}

// WithIgnoreGlobs adds extra gitignore-syntax glob patterns excluded from
// IndexDirectory's file discovery, on top of .gitignore and
// DefaultIgnoreDirs — a repository's indexer.ignore config setting.
// Invalid patterns are dropped silently, matching go-gitignore's own
// CompileIgnoreLines behavior of skipping blank/comment lines.
func WithIgnoreGlobs(patterns ...string) Option {
	return func(e *Engine) {
		if len(patterns) == 0 {
			return
		}
		e.extraIgnore = ignore.CompileIgnoreLines(patterns...)
	}
}

// New creates an Engine backed by a SQLite database at dbPath, creating
// and migrating the schema if needed.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("ctxgraph: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("ctxgraph: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		useParallel: true,
		maxFileSize: defaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// RegisterRepository records root as a known repository, returning its id.
// Idempotent: calling it again for the same path returns the same id.
func (e *Engine) RegisterRepository(root string) (int64, error) {
	return e.store.RegisterRepository(root)
}

// captureSymbolKeys snapshots the symbols currently stored for a file,
// used to diff against a freshly extracted forest for blast radius.
func (e *Engine) captureSymbolKeys(fileID int64) ([]*store.Symbol, error) {
	return e.store.SymbolsByFile(fileID)
}

// IndexFiles indexes the given repo-relative paths under root. When
// WithParallel is enabled (the default), uses a worker pool for
// concurrent extraction with batched SQLite writes. Otherwise falls back
// to the serial path.
//
// For each file:
//  1. Detect language from extension; skip unsupported or filtered-out
//     languages, and files over the size gate.
//  2. Skip unchanged files (same content hash).
//  3. Capture old symbols (for blast radius), delete stale data.
//  4. Run the language extractor and insert the resulting symbols/refs.
//  5. Capture new symbols, compute blast radius.
//
// Processing continues past a single file's failure; the returned error
// reports how many files failed and wraps the first of those errors.
func (e *Engine) IndexFiles(ctx context.Context, repositoryID int64, root string, paths []string) error {
	if e.useParallel {
		return e.IndexFilesParallel(ctx, repositoryID, root, paths)
	}
	return e.indexFilesSerial(ctx, repositoryID, root, paths)
}

func (e *Engine) indexFilesSerial(_ context.Context, repositoryID int64, root string, paths []string) error {
	if e.blastRadius == nil {
		e.blastRadius = make(map[int64]bool)
	}
	var errs []error
	for _, p := range paths {
		if err := e.indexFile(repositoryID, root, p); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", p, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) indexFile(repositoryID int64, root, relPath string) error {
	l := lang.ForExtension(filepath.Ext(relPath))
	if l == nil {
		return nil // unsupported extension
	}
	if e.languages != nil && !e.languages[l.Name] {
		return nil // filtered out
	}

	absPath := filepath.Join(root, relPath)
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return e.handleMissingFile(repositoryID, relPath)
		}
		return fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > e.maxFileSize {
		return nil // size gate: treated as unchanged, not an error
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	file := &store.File{
		RepositoryID: repositoryID,
		Path:         relPath,
		Language:     l.Name,
		Hash:         hash,
		LastIndexed:  time.Now(),
	}
	fileID, previousHash, err := e.store.UpsertFile(file)
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}
	if previousHash == hash {
		return nil // unchanged
	}

	var before []*store.Symbol
	if previousHash != "" {
		before, err = e.captureSymbolKeys(fileID)
		if err != nil {
			return fmt.Errorf("capture old symbols: %w", err)
		}
	}

	if err := e.store.DeleteFileData(fileID); err != nil {
		return fmt.Errorf("delete old data: %w", err)
	}
	// DeleteFileData also removes the file row; re-create it so the fresh
	// symbols have a row to belong to.
	if fileID, _, err = e.store.UpsertFile(file); err != nil {
		return fmt.Errorf("re-create file row: %w", err)
	}

	result := l.Extract(content, relPath)
	if len(result.Symbols) == 0 && len(content) > 0 {
		slog.Warn("extractor produced no symbols", "path", relPath, "error", ctxerr.ErrParse)
	}
	after, err := insertForest(e.store, repositoryID, fileID, relPath, nil, result.Symbols)
	if err != nil {
		return fmt.Errorf("insert extracted symbols: %w", err)
	}

	changed := store.ComputeBlastRadius(before, after)
	e.markBlastRadius(repositoryID, fileID, changed)

	return nil
}

// handleMissingFile treats a repo-relative path no longer present on disk
// as a deletion: its stale symbols, references, and file row are removed,
// and every file referencing one of its symbols is queued for
// re-resolution. A no-op if the path was never indexed.
func (e *Engine) handleMissingFile(repositoryID int64, relPath string) error {
	f, err := e.store.FileByPath(repositoryID, relPath)
	if err != nil {
		return fmt.Errorf("lookup missing file: %w", err)
	}
	if f == nil {
		return nil
	}

	before, err := e.captureSymbolKeys(f.ID)
	if err != nil {
		return fmt.Errorf("capture old symbols: %w", err)
	}
	if err := e.store.DeleteFileData(f.ID); err != nil {
		return fmt.Errorf("delete file data: %w", err)
	}

	names := make([]string, 0, len(before))
	for _, sym := range before {
		names = append(names, sym.Name)
	}
	e.markBlastRadius(repositoryID, f.ID, names)
	return nil
}

// insertForest walks an extractor's symbol forest depth-first, inserting
// each symbol (with parent linkage) and its references, and returns the
// flat list of inserted symbols for blast-radius comparison.
func insertForest(ds store.DataStore, repositoryID, fileID int64, path string, parentID *int64, symbols []*lang.Symbol) ([]*store.Symbol, error) {
	var out []*store.Symbol
	for _, sym := range symbols {
		row := &store.Symbol{
			FileID:         fileID,
			RepositoryID:   repositoryID,
			Path:           path,
			Name:           sym.Name,
			Kind:           string(sym.Kind),
			Signature:      sym.Signature,
			Doc:            sym.Doc,
			StartLine:      sym.StartLine,
			EndLine:        sym.EndLine,
			ParentSymbolID: parentID,
		}
		id, err := ds.InsertSymbol(row)
		if err != nil {
			return nil, fmt.Errorf("insert symbol %q: %w", sym.Name, err)
		}
		out = append(out, row)

		for _, ref := range sym.Refs {
			line := ref.Line
			if _, err := ds.InsertReference(&store.Reference{
				SymbolID: id,
				ToName:   ref.Name,
				Kind:     string(ref.Kind),
				Line:     &line,
			}); err != nil {
				return nil, fmt.Errorf("insert reference %q: %w", ref.Name, err)
			}
		}

		if len(sym.Children) > 0 {
			children, err := insertForest(ds, repositoryID, fileID, path, &id, sym.Children)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		}
	}
	return out, nil
}

// markBlastRadius records fileID plus every file holding a resolved
// reference to one of the names that disappeared or changed kind as
// needing re-resolution.
func (e *Engine) markBlastRadius(repositoryID, fileID int64, changedNames []string) {
	if e.blastRadius == nil {
		e.blastRadius = make(map[int64]bool)
	}
	e.blastRadius[fileID] = true
	if len(changedNames) == 0 {
		return
	}
	for _, name := range changedNames {
		syms, err := e.store.SymbolsByName(repositoryID, name)
		if err != nil {
			continue
		}
		var ids []int64
		for _, s := range syms {
			ids = append(ids, s.ID)
		}
		fileIDs, err := e.store.FilesReferencingSymbols(ids)
		if err != nil {
			continue
		}
		for _, fid := range fileIDs {
			e.blastRadius[fid] = true
		}
	}
}

// DefaultIgnoreDirs lists directories excluded from discovery regardless
// of .gitignore — build artifacts, VCS directories, and dependency caches
// that never hold source worth indexing. Shared by the directory walk
// below and the watcher's filesystem-event filter, so a watched repo and
// a freshly indexed one agree on what's in scope.
var DefaultIgnoreDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".venv":        true,
	"vendor":       true,
	".next":        true,
	".nuxt":        true,
	"coverage":     true,
	".cache":       true,
}

// IndexDirectory registers root as a repository, walks it for supported
// source files (git ls-files when root is a git checkout, a .gitignore-
// aware filesystem walk otherwise), and indexes the result.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (int64, error) {
	repositoryID, err := e.store.RegisterRepository(root)
	if err != nil {
		return 0, fmt.Errorf("register repository: %w", err)
	}
	paths, err := e.gitListFiles(root)
	if err != nil {
		paths, err = e.walkListFiles(root)
		if err != nil {
			return 0, err
		}
	}
	if err := e.pruneRemovedFiles(repositoryID, paths); err != nil {
		return repositoryID, fmt.Errorf("prune removed files: %w", err)
	}
	if err := e.IndexFiles(ctx, repositoryID, root, paths); err != nil {
		return repositoryID, err
	}
	return repositoryID, nil
}

// pruneRemovedFiles deletes stored file rows (and their symbols/refs) for
// any previously indexed path that's no longer among freshPaths, so a full
// reindex reflects files deleted since the last run even though a fresh
// os.Stat never fails for them (they're simply absent from the listing).
func (e *Engine) pruneRemovedFiles(repositoryID int64, freshPaths []string) error {
	stored, err := e.store.FilesByRepository(repositoryID)
	if err != nil {
		return fmt.Errorf("list stored files: %w", err)
	}
	if len(stored) == 0 {
		return nil
	}

	fresh := make(map[string]bool, len(freshPaths))
	for _, p := range freshPaths {
		fresh[p] = true
	}

	for _, f := range stored {
		if fresh[f.Path] {
			continue
		}
		if err := e.handleMissingFile(repositoryID, f.Path); err != nil {
			return fmt.Errorf("remove %s: %w", f.Path, err)
		}
	}
	return nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but
// not ignored) files under root, filtered to extensions a Language
// variant supports and to any configured extraIgnore glob patterns.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if e.extraIgnore != nil && e.extraIgnore.MatchesPath(line) {
			continue
		}
		parts := strings.Split(line, "/")
		inIgnoredDir := false
		for _, dir := range parts[:len(parts)-1] {
			if DefaultIgnoreDirs[dir] {
				inIgnoredDir = true
				break
			}
		}
		if inIgnoredDir {
			continue
		}
		if lang.ForExtension(filepath.Ext(line)) != nil {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// globalIgnoreScope keys the user's global gitignore in walkListFiles'
// ignores map; distinct from any relative directory (which never starts
// with a NUL byte), so it can share the map with per-directory matchers.
const globalIgnoreScope = "\x00global"

// walkListFiles discovers files by walking the filesystem, used when git
// is unavailable. Honors every .gitignore discovered along the walk —
// the root's, every nested directory's own, and the user's global
// gitignore — plus DefaultIgnoreDirs and any configured extraIgnore
// glob patterns.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	ignores := make(map[string]*ignore.GitIgnore) // rel dir ("." for root) -> matcher scoped to it
	if g, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		ignores["."] = g
	}
	if g := globalGitignore(); g != nil {
		ignores[globalIgnoreScope] = g
	}

	ignored := func(rel string) bool {
		if e.extraIgnore != nil && e.extraIgnore.MatchesPath(rel) {
			return true
		}
		for dir := filepath.Dir(rel); ; dir = filepath.Dir(dir) {
			if gi, ok := ignores[dir]; ok {
				sub := rel
				if dir != "." {
					if r, err := filepath.Rel(dir, rel); err == nil {
						sub = r
					}
				}
				if gi.MatchesPath(sub) {
					return true
				}
			}
			if dir == "." {
				break
			}
		}
		if gi, ok := ignores[globalIgnoreScope]; ok && gi.MatchesPath(rel) {
			return true
		}
		return false
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") || DefaultIgnoreDirs[name] {
				return filepath.SkipDir
			}
			if ignored(rel) {
				return filepath.SkipDir
			}
			if g, err := ignore.CompileIgnoreFile(filepath.Join(path, ".gitignore")); err == nil {
				ignores[rel] = g
			}
			return nil
		}
		if ignored(rel) {
			return nil
		}
		if lang.ForExtension(filepath.Ext(path)) != nil {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// globalGitignore loads the user's global gitignore, mirroring git's own
// default lookup path ($XDG_CONFIG_HOME/git/ignore, falling back to
// ~/.config/git/ignore). Does not consult a core.excludesFile override.
func globalGitignore() *ignore.GitIgnore {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		configHome = filepath.Join(home, ".config")
	}
	g, err := ignore.CompileIgnoreFile(filepath.Join(configHome, "git", "ignore"))
	if err != nil {
		return nil
	}
	return g
}

// Resolve runs the name-equality resolver and best-effort call-graph
// materialization for repositoryID. Not incremental at the SQL level —
// ResolveReferences only touches rows still unresolved — but the Engine
// skips the call entirely when nothing changed since the last IndexFiles.
func (e *Engine) Resolve(_ context.Context, repositoryID int64) error {
	defer func() { e.blastRadius = nil }()

	if e.blastRadius != nil && len(e.blastRadius) == 0 {
		return nil
	}

	if err := e.store.ResolveReferences(repositoryID); err != nil {
		return fmt.Errorf("resolve references: %w", err)
	}
	if err := e.store.PopulateCallGraphFromResolvedReferences(repositoryID); err != nil {
		return fmt.Errorf("populate call graph: %w", err)
	}
	if err := e.store.TouchRepositoryReconciled(repositoryID, time.Now()); err != nil {
		return fmt.Errorf("touch repository: %w", err)
	}
	return nil
}
