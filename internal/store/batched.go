package store

import "sync"

// BatchedStore buffers extraction inserts in memory using fake (negative)
// IDs, so the parallel extraction phase can write symbols/references
// without touching SQLite until a single serial commit. Implements
// DataStore so extractor-driving code doesn't need to know which one
// it's writing to.
//
// Thread safety: the mutex protects fake ID allocation and slice
// appends. Read queries are passed through to the underlying Store,
// which is safe for concurrent reads.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex

	Symbols    []Symbol
	References []Reference

	nextFakeID int64
}

var _ DataStore = (*BatchedStore)(nil)

func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{store: s, nextFakeID: -1}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertSymbol(sym *Symbol) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	sym.ID = fakeID
	b.Symbols = append(b.Symbols, *sym)
	return fakeID, nil
}

func (b *BatchedStore) InsertReference(ref *Reference) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	ref.ID = fakeID
	b.References = append(b.References, *ref)
	return fakeID, nil
}

func (b *BatchedStore) SymbolsByName(repositoryID int64, name string) ([]*Symbol, error) {
	return b.store.SymbolsByName(repositoryID, name)
}

// SymbolsByFile merges any buffered (not yet committed) symbols for a
// file with those already in the database.
func (b *BatchedStore) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	dbSyms, err := b.store.SymbolsByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Symbols {
		if b.Symbols[i].FileID == fileID {
			dbSyms = append(dbSyms, &b.Symbols[i])
		}
	}
	return dbSyms, nil
}
