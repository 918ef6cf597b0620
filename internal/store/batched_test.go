package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_SymbolsByFile_ReturnsBufferedSymbols(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f := insertTestFile(t, s, repoID, "main.go", "go")

	batch := NewBatchedStore(s)

	id1, err := batch.InsertSymbol(&Symbol{RepositoryID: repoID, FileID: f.ID, Path: f.Path, Name: "Foo", Kind: "function"})
	require.NoError(t, err)
	assert.Negative(t, id1, "batched IDs should be negative")

	id2, err := batch.InsertSymbol(&Symbol{RepositoryID: repoID, FileID: f.ID, Path: f.Path, Name: "Bar", Kind: "struct"})
	require.NoError(t, err)
	assert.Negative(t, id2)

	syms, err := batch.SymbolsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, syms, 2)

	names := []string{syms[0].Name, syms[1].Name}
	assert.Contains(t, names, "Foo")
	assert.Contains(t, names, "Bar")
	for _, sym := range syms {
		assert.Negative(t, sym.ID, "buffered symbols should have negative IDs")
	}
}

func TestBatchedStore_SymbolsByFile_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f := insertTestFile(t, s, repoID, "main.go", "go")
	insertTestSymbol(t, s, repoID, f.ID, f.Path, "Existing", "function")

	batch := NewBatchedStore(s)
	_, err := batch.InsertSymbol(&Symbol{RepositoryID: repoID, FileID: f.ID, Path: f.Path, Name: "New", Kind: "struct"})
	require.NoError(t, err)

	syms, err := batch.SymbolsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, syms, 2)

	names := []string{syms[0].Name, syms[1].Name}
	assert.Contains(t, names, "Existing")
	assert.Contains(t, names, "New")
}

func TestBatchedStore_SymbolsByFile_DoesNotReturnOtherFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f1 := insertTestFile(t, s, repoID, "a.go", "go")
	f2 := insertTestFile(t, s, repoID, "b.go", "go")

	batch := NewBatchedStore(s)
	_, err := batch.InsertSymbol(&Symbol{RepositoryID: repoID, FileID: f1.ID, Path: f1.Path, Name: "InFileA", Kind: "function"})
	require.NoError(t, err)
	_, err = batch.InsertSymbol(&Symbol{RepositoryID: repoID, FileID: f2.ID, Path: f2.Path, Name: "InFileB", Kind: "function"})
	require.NoError(t, err)

	syms, err := batch.SymbolsByFile(f1.ID)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "InFileA", syms[0].Name)
}

func TestCommitBatch_RemapsFakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	repoID := insertTestRepo(t, s, "/repo")
	f := insertTestFile(t, s, repoID, "main.go", "go")

	batch := NewBatchedStore(s)
	callerID, err := batch.InsertSymbol(&Symbol{RepositoryID: repoID, FileID: f.ID, Path: f.Path, Name: "main", Kind: "function"})
	require.NoError(t, err)
	_, err = batch.InsertReference(&Reference{SymbolID: callerID, ToName: "helper", Kind: "call"})
	require.NoError(t, err)

	require.NoError(t, s.CommitBatch(batch))

	syms, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	require.Positive(t, syms[0].ID, "committed symbols should have real positive IDs")

	refs, err := s.ReferencesBySymbol(syms[0].ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "helper", refs[0].ToName)
}
