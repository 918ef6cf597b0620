package store

import (
	"database/sql"
	"fmt"

	"github.com/jward/ctxgraph/internal/tokenizer"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// ids, and FK references within the batch are rewritten using the
// fakeToReal mapping.
//
// Insert order respects FK dependencies: symbols first (file_id is
// already real, parent_symbol_id may be fake or real), then references
// (symbol_id, to_symbol_id may be fake or real).
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	for _, sym := range batch.Symbols {
		if sym.ParentSymbolID != nil && *sym.ParentSymbolID < 0 {
			realID := fakeToReal[*sym.ParentSymbolID]
			sym.ParentSymbolID = &realID
		}
		realID, err := insertSymbolTx(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	for _, ref := range batch.References {
		if ref.SymbolID < 0 {
			ref.SymbolID = fakeToReal[ref.SymbolID]
		}
		if ref.ToSymbolID != nil && *ref.ToSymbolID < 0 {
			realID := fakeToReal[*ref.ToSymbolID]
			ref.ToSymbolID = &realID
		}
		realID, err := insertReferenceTx(tx, &ref)
		if err != nil {
			return fmt.Errorf("commit batch: reference %q: %w", ref.ToName, err)
		}
		fakeToReal[ref.ID] = realID
	}

	return tx.Commit()
}

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (file_id, repository_id, path, name, name_tokens, kind, signature, doc, start_line, end_line, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.RepositoryID, sym.Path, sym.Name, tokenizer.Split(sym.Name), sym.Kind,
		sym.Signature, sym.Doc, sym.StartLine, sym.EndLine, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertReferenceTx(tx *sql.Tx, ref *Reference) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO "references" (symbol_id, to_symbol_id, to_name, kind, line)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(symbol_id, to_name, kind, line) DO NOTHING`,
		ref.SymbolID, ref.ToSymbolID, ref.ToName, ref.Kind, ref.Line,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
