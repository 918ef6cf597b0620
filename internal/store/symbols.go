package store

import (
	"database/sql"
	"fmt"

	"github.com/jward/ctxgraph/internal/tokenizer"
)

// InsertSymbol inserts a symbol row, deriving name_tokens from the Code
// Tokenizer so the FTS trigger mirrors a pre-tokenized field.
func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO symbols (file_id, repository_id, path, name, name_tokens, kind, signature, doc, start_line, end_line, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.RepositoryID, sym.Path, sym.Name, tokenizer.Split(sym.Name), sym.Kind,
		sym.Signature, sym.Doc, sym.StartLine, sym.EndLine, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sym.ID = id
	return id, nil
}

// SymbolCols is the column list for symbol queries, exported for use by
// the query surface.
const SymbolCols = `id, file_id, repository_id, path, name, kind, signature, doc, start_line, end_line, parent_symbol_id`

func scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	err := scanner.Scan(
		&sym.ID, &sym.FileID, &sym.RepositoryID, &sym.Path, &sym.Name, &sym.Kind,
		&sym.Signature, &sym.Doc, &sym.StartLine, &sym.EndLine, &sym.ParentSymbolID,
	)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

// ScanSymbolRow scans a single row into a Symbol. Exported for use by the
// query surface, which builds its own ad hoc SELECTs against SymbolCols.
func ScanSymbolRow(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	return scanSymbol(scanner)
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) SymbolByID(id int64) (*Symbol, error) {
	row := s.db.QueryRow("SELECT "+SymbolCols+" FROM symbols WHERE id = ?", id)
	sym, err := scanSymbol(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by id: %w", err)
	}
	return sym, nil
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE file_id = ? ORDER BY start_line", fileID)
}

// SymbolsByName returns every symbol in the repository with the given
// exact name. Used by the name-equality resolver (first row wins, order
// unspecified, the documented ambiguity) and by the call-graph resolver.
func (s *Store) SymbolsByName(repositoryID int64, name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE repository_id = ? AND name = ?", repositoryID, name)
}

func (s *Store) ChildSymbols(parentSymbolID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE parent_symbol_id = ? ORDER BY start_line", parentSymbolID)
}
