// Package ctxgraph provides deterministic, per-repository semantic code
// analysis built on tree-sitter, for an external coding agent that needs a
// compact, budget-constrained view of a codebase's structure.
//
// # Pipeline
//
// ctxgraph operates in three phases:
//
//  1. Extract: for each source file, parse with tree-sitter (or goldmark
//     for markdown) via the language-specific extractor in internal/lang,
//     and write symbols and references to SQLite.
//
//  2. Resolve: cross-reference extraction data by name equality to produce
//     resolved references and, where an extractor populates them, interface
//     implementations and call graph edges.
//
//  3. Query: read back a budget-constrained, compact projection of the
//     graph through the QueryBuilder and the internal/format package.
//
// # Usage
//
// Create an Engine, index a directory, resolve, and query:
//
//	e, err := ctxgraph.New(dbPath)
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	repoID, err := e.IndexDirectory(ctx, "path/to/project")
//	err = e.Resolve(ctx, repoID)
//
//	q := e.Query()
//	syms, err := q.FileSymbols(repoID, "src/index.ts")
//
// # Incremental indexing
//
// [Engine.IndexFiles] detects unchanged files via content hashing and skips
// them. When a file changes, ctxgraph computes a blast radius (which other
// files may hold stale references to the symbols that changed).
// [Engine.Resolve] skips resolution when that set is empty and otherwise
// resolves every still-unresolved reference in the repository, not only
// those in the affected files. Use [WithLanguages] to
// restrict which languages the Engine processes.
//
// # Watching
//
// internal/watcher provides a debounced, per-repository fsnotify watch loop
// that reconciles on startup and on file-system events, calling back into
// Engine.IndexFiles / Engine.Resolve for the changed paths.
package ctxgraph
