package ctxgraph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverview_GroupsByTopLevelDirAndLanguage(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, filepath.Join("pkg", "a.ts"), "function longFn() { const x = 1; return x; }\n")
	writeFile(t, root, "root.ts", "function f() {}\n")

	e := newTestEngine(t, WithParallel(false))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	overview, err := e.Query().Overview(repoID, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, overview.LanguageCounts["typescript"])

	var paths []string
	for _, m := range overview.Modules {
		paths = append(paths, m.Path)
	}
	assert.Contains(t, paths, "pkg")
	assert.Contains(t, paths, ".")
	assert.NotEmpty(t, overview.LargestSymbols)
}

func TestSymbolDetail_IncludesChildrenAndRefs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", `
class Greeter {
  greet(name: string) { return name; }
}
`)

	e := newTestEngine(t, WithParallel(false))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, e.Resolve(context.Background(), repoID))

	syms, err := e.Query().FileSymbols(repoID, "a.ts")
	require.NoError(t, err)
	require.Len(t, syms, 1)

	detail, err := e.Query().SymbolDetail(syms[0].ID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Greeter", detail.Symbol.Name)
	require.Len(t, detail.Children, 1)
	assert.Equal(t, "greet", detail.Children[0].Name)
}

func TestReferencesTo_ResolvesCallerSymbolAndFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "callee.ts", "function target() { return 1; }\n")
	writeFile(t, root, "caller.ts", "function user() { return target(); }\n")

	e := newTestEngine(t, WithParallel(false))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, e.Resolve(context.Background(), repoID))

	callees, err := e.Query().FileSymbols(repoID, "callee.ts")
	require.NoError(t, err)
	require.Len(t, callees, 1)

	hits, err := e.Query().ReferencesTo(repoID, callees[0].ID)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "user", hits[0].Caller.Name)
	assert.Equal(t, "caller.ts", hits[0].Caller.Path)

	detail, err := e.Query().SymbolDetail(callees[0].ID)
	require.NoError(t, err)
	require.Len(t, detail.InRefs, 1)
	assert.Equal(t, "user", detail.InRefs[0].Caller.Name)
}

func TestSearch_EmptyQueryReturnsNil(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithParallel(false))
	results, err := e.Query().Search(1, "   ", 10)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestListAndDeleteRepos(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "function f() {}\n")

	e := newTestEngine(t, WithParallel(false))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	repos, err := e.Query().ListRepos()
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, root, repos[0].Path)

	require.NoError(t, e.Query().DeleteRepos([]int64{repoID}))

	repos, err = e.Query().ListRepos()
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestBuildFTSQuery_PassesThroughBooleans(t *testing.T) {
	t.Parallel()
	expr := buildFTSQuery("user AND repo")
	assert.Equal(t, "user* AND repo*", expr)
}
