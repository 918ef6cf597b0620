package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestRepo(t *testing.T, s *Store, path string) int64 {
	t.Helper()
	id, err := s.RegisterRepository(path)
	require.NoError(t, err)
	require.Positive(t, id)
	return id
}

func insertTestFile(t *testing.T, s *Store, repoID int64, path, lang string) *File {
	t.Helper()
	f := &File{RepositoryID: repoID, Path: path, Language: lang, Hash: "abc123", LastIndexed: time.Now().Truncate(time.Second)}
	id, _, err := s.UpsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

func insertTestSymbol(t *testing.T, s *Store, repoID, fileID int64, path, name, kind string) *Symbol {
	t.Helper()
	sym := &Symbol{
		RepositoryID: repoID, FileID: fileID, Path: path,
		Name: name, Kind: kind, StartLine: 1, EndLine: 9,
	}
	id, err := s.InsertSymbol(sym)
	require.NoError(t, err)
	require.Positive(t, id)
	return sym
}

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	expectedTables := []string{
		"repositories", "files", "symbols", "references",
		"resolved_references", "implementations", "call_graph",
		"metadata", "symbols_fts",
	}
	for _, table := range expectedTables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type IN ('table','view') AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestUpsertFile_ReturnsPreviousHash(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")

	id1, prev1, err := s.UpsertFile(&File{RepositoryID: repoID, Path: "a.go", Language: "go", Hash: "h1"})
	require.NoError(t, err)
	assert.Empty(t, prev1)

	id2, prev2, err := s.UpsertFile(&File{RepositoryID: repoID, Path: "a.go", Language: "go", Hash: "h2"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "same (repo, path) upserts the same row")
	assert.Equal(t, "h1", prev2)
}

func TestDeleteFileData_RemovesSymbolsAndReferences(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f := insertTestFile(t, s, repoID, "a.go", "go")

	sym := insertTestSymbol(t, s, repoID, f.ID, f.Path, "DoThing", "function")
	_, err := s.InsertReference(&Reference{SymbolID: sym.ID, ToName: "helper", Kind: "call"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFileData(f.ID))

	syms, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, syms)

	refs, err := s.ReferencesBySymbol(sym.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestResolveReferences_NameEquality(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f := insertTestFile(t, s, repoID, "a.go", "go")

	caller := insertTestSymbol(t, s, repoID, f.ID, f.Path, "main", "function")
	callee := insertTestSymbol(t, s, repoID, f.ID, f.Path, "helper", "function")
	ref, err := s.InsertReference(&Reference{SymbolID: caller.ID, ToName: "helper", Kind: "call"})
	require.NoError(t, err)

	require.NoError(t, s.ResolveReferences(repoID))

	refs, err := s.ReferencesBySymbol(caller.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.NotNil(t, refs[0].ToSymbolID)
	assert.Equal(t, callee.ID, *refs[0].ToSymbolID)

	resolved, err := s.ResolvedReferencesByTarget(callee.ID)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, ref, resolved[0].ReferenceID)
}

func TestResolveReferences_UnresolvedStaysNull(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f := insertTestFile(t, s, repoID, "a.go", "go")
	caller := insertTestSymbol(t, s, repoID, f.ID, f.Path, "main", "function")
	_, err := s.InsertReference(&Reference{SymbolID: caller.ID, ToName: "doesNotExist", Kind: "call"})
	require.NoError(t, err)

	require.NoError(t, s.ResolveReferences(repoID))

	refs, err := s.ReferencesBySymbol(caller.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Nil(t, refs[0].ToSymbolID)
}

func TestDeleteRepository_CascadesToFilesAndSymbols(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f := insertTestFile(t, s, repoID, "a.go", "go")
	insertTestSymbol(t, s, repoID, f.ID, f.Path, "Thing", "function")

	require.NoError(t, s.DeleteRepository(repoID))

	files, err := s.FilesByRepository(repoID)
	require.NoError(t, err)
	assert.Empty(t, files)

	repo, err := s.RepositoryByID(repoID)
	require.NoError(t, err)
	assert.Nil(t, repo)
}

func TestFTSSync_OneRowPerSymbol(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f := insertTestFile(t, s, repoID, "a.go", "go")
	insertTestSymbol(t, s, repoID, f.ID, f.Path, "getUserById", "function")

	var count int
	require.NoError(t, s.db.QueryRow("SELECT count(*) FROM symbols_fts WHERE symbols_fts MATCH 'user*'").Scan(&count))
	assert.Equal(t, 1, count)
}

// v1SchemaDDL is a frozen snapshot of schemaDDL from before name_tokens
// existed, used to build a genuine pre-v2 database for
// TestUpgradeToV2_AddsNameTokensColumnAndBackfills.
const v1SchemaDDL = `
CREATE TABLE repositories (
  id                       INTEGER PRIMARY KEY,
  path                     TEXT NOT NULL UNIQUE,
  last_full_reconciled_at  TIMESTAMP
);

CREATE TABLE files (
  id              INTEGER PRIMARY KEY,
  repository_id   INTEGER NOT NULL REFERENCES repositories(id),
  path            TEXT NOT NULL,
  language        TEXT NOT NULL,
  hash            TEXT NOT NULL,
  last_indexed    TIMESTAMP,
  UNIQUE(repository_id, path)
);

CREATE TABLE symbols (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  repository_id   INTEGER NOT NULL REFERENCES repositories(id),
  path            TEXT NOT NULL,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  signature       TEXT,
  doc             TEXT,
  start_line      INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  parent_symbol_id INTEGER REFERENCES symbols(id) ON DELETE SET NULL
);

CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`

func TestUpgradeToV2_AddsNameTokensColumnAndBackfills(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "v1.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.db.Exec(v1SchemaDDL)
	require.NoError(t, err)
	_, err = s.db.Exec("INSERT INTO metadata (key, value) VALUES ('schema_version', '1')")
	require.NoError(t, err)
	_, err = s.db.Exec("INSERT INTO repositories (id, path) VALUES (1, '/repo')")
	require.NoError(t, err)
	_, err = s.db.Exec("INSERT INTO files (id, repository_id, path, language, hash) VALUES (1, 1, 'a.go', 'go', 'h1')")
	require.NoError(t, err)
	_, err = s.db.Exec(
		"INSERT INTO symbols (id, file_id, repository_id, path, name, kind, start_line, end_line) VALUES (1, 1, 1, 'a.go', 'getUserById', 'function', 1, 1)",
	)
	require.NoError(t, err)

	require.NoError(t, s.Migrate())

	hasCol, err := s.hasColumn("symbols", "name_tokens")
	require.NoError(t, err)
	assert.True(t, hasCol)

	var tokens string
	require.NoError(t, s.db.QueryRow("SELECT name_tokens FROM symbols WHERE id = 1").Scan(&tokens))
	assert.NotEmpty(t, tokens)

	var version string
	require.NoError(t, s.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version))
	assert.Equal(t, "2", version)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT count(*) FROM symbols_fts WHERE symbols_fts MATCH 'user*'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestFTSSync_DeleteRemovesRow(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f := insertTestFile(t, s, repoID, "a.go", "go")
	sym := insertTestSymbol(t, s, repoID, f.ID, f.Path, "getUserById", "function")

	require.NoError(t, s.DeleteFileData(f.ID))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT count(*) FROM symbols_fts WHERE rowid = ?", sym.ID).Scan(&count))
	assert.Equal(t, 0, count)
}
