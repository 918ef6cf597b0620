package ctxgraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// TestIndexDirectory_S1 mirrors spec scenario S1: a single TypeScript file
// with one documented function yields one function symbol.
func TestIndexDirectory_S1(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "/** Adds two numbers */\nexport function add(a:number,b:number):number { return a+b; }\n")

	e := newTestEngine(t, WithParallel(false))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, e.Resolve(context.Background(), repoID))

	syms, err := e.Query().FileSymbols(repoID, "a.ts")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "add", syms[0].Name)
	assert.Equal(t, "function", syms[0].Kind)
	assert.Equal(t, "Adds two numbers", syms[0].Doc)
	assert.Equal(t, 2, syms[0].StartLine)
}

// TestIndexDirectory_S3 mirrors spec scenario S3: searching "user" returns
// the two symbols containing that subword, not the unrelated third.
func TestIndexDirectory_S3(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", `
function getUserById(id: string) { return id; }
class UserRepository {}
function admin_service() {}
`)

	e := newTestEngine(t, WithParallel(false))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, e.Resolve(context.Background(), repoID))

	results, err := e.Query().Search(repoID, "user", 20)
	require.NoError(t, err)

	var names []string
	for _, s := range results {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "getUserById")
	assert.Contains(t, names, "UserRepository")
	assert.NotContains(t, names, "admin_service")
}

// TestIndexFiles_HashGating mirrors invariant 2: re-indexing with no file
// changes does not touch existing symbol rows.
func TestIndexFiles_HashGating(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "function f() {}\n")

	e := newTestEngine(t, WithParallel(false))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	before, err := e.Query().FileSymbols(repoID, "a.ts")
	require.NoError(t, err)
	require.Len(t, before, 1)
	firstID := before[0].ID

	_, err = e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	after, err := e.Query().FileSymbols(repoID, "a.ts")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, firstID, after[0].ID, "unchanged file must not be re-extracted")
}

// TestIndexFiles_S4 mirrors spec scenario S4: modifying one file in an
// already-indexed repository and re-indexing only that path replaces
// exactly that file's symbols, leaving an untouched file's symbol id
// stable.
func TestIndexFiles_S4(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "function a() {}\n")
	writeFile(t, root, "b.ts", "function b() {}\n")

	e := newTestEngine(t, WithParallel(false))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	bBefore, err := e.Query().FileSymbols(repoID, "b.ts")
	require.NoError(t, err)
	require.Len(t, bBefore, 1)

	writeFile(t, root, "a.ts", "function aRenamed() {}\n")
	require.NoError(t, e.IndexFiles(context.Background(), repoID, root, []string{"a.ts"}))

	aAfter, err := e.Query().FileSymbols(repoID, "a.ts")
	require.NoError(t, err)
	require.Len(t, aAfter, 1)
	assert.Equal(t, "aRenamed", aAfter[0].Name)

	bAfter, err := e.Query().FileSymbols(repoID, "b.ts")
	require.NoError(t, err)
	require.Len(t, bAfter, 1)
	assert.Equal(t, bBefore[0].ID, bAfter[0].ID)
}

// TestIndexDirectory_Parallel checks the parallel pipeline produces the
// same symbol count as the serial one for a small multi-file repository.
func TestIndexDirectory_Parallel(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, root, filepath.Join("pkg", "f"+string(rune('0'+i))+".ts"), "function f() {}\n")
	}

	e := newTestEngine(t, WithParallel(true))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, e.Resolve(context.Background(), repoID))

	status, err := e.Query().Status(repoID, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, status.FileCount)
}

// TestResolve_References mirrors spec scenario S2: a call site resolves
// to its callee via name equality.
func TestResolve_References(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", `
class TokenManager {
  getToken(key: string) { return key; }
}
function createManager() { return new TokenManager(); }
`)

	e := newTestEngine(t, WithParallel(false))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, e.Resolve(context.Background(), repoID))

	syms, err := e.Query().FileSymbols(repoID, "a.ts")
	require.NoError(t, err)
	var tokenManagerID int64
	for _, s := range syms {
		if s.Name == "TokenManager" {
			tokenManagerID = s.ID
		}
	}
	require.NotZero(t, tokenManagerID)

	hits, err := e.Query().ReferencesTo(repoID, tokenManagerID)
	require.NoError(t, err)
	var callers []string
	for _, h := range hits {
		if h.Caller != nil {
			callers = append(callers, h.Caller.Name)
		}
	}
	assert.Contains(t, callers, "createManager")
}

func TestWithLanguages_Filters(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "function f() {}\n")
	writeFile(t, root, "b.py", "def g():\n    pass\n")

	e := newTestEngine(t, WithParallel(false), WithLanguages("typescript"))
	repoID, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	status, err := e.Query().Status(repoID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, status.FileCount)
}
