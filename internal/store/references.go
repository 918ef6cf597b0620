package store

import "fmt"

// InsertReference inserts a reference row, idempotent within a
// transaction via the (symbol_id, to_name, kind, line) uniqueness
// constraint.
func (s *Store) InsertReference(ref *Reference) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO "references" (symbol_id, to_symbol_id, to_name, kind, line)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(symbol_id, to_name, kind, line) DO NOTHING`,
		ref.SymbolID, ref.ToSymbolID, ref.ToName, ref.Kind, ref.Line,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	ref.ID = id
	return id, nil
}

const referenceCols = `id, symbol_id, to_symbol_id, to_name, kind, line`

func scanReference(scanner interface{ Scan(...any) error }) (*Reference, error) {
	ref := &Reference{}
	if err := scanner.Scan(&ref.ID, &ref.SymbolID, &ref.ToSymbolID, &ref.ToName, &ref.Kind, &ref.Line); err != nil {
		return nil, err
	}
	return ref, nil
}

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *Store) ReferencesBySymbol(symbolID int64) ([]*Reference, error) {
	return s.queryReferences(`SELECT `+referenceCols+` FROM "references" WHERE symbol_id = ?`, symbolID)
}

// ReferencesByTargetName returns references whose to_name equals name,
// for repositories without a resolved call_graph entry — the fallback
// "References to a symbol" path when the reference was never resolved.
func (s *Store) ReferencesByTargetName(name string) ([]*Reference, error) {
	return s.queryReferences(`SELECT `+referenceCols+` FROM "references" WHERE to_name = ?`, name)
}

func (s *Store) ReferencesByTargetSymbol(symbolID int64) ([]*Reference, error) {
	return s.queryReferences(`SELECT `+referenceCols+` FROM "references" WHERE to_symbol_id = ?`, symbolID)
}

func (s *Store) UnresolvedReferences(repositoryID int64) ([]*Reference, error) {
	return s.queryReferences(
		`SELECT `+referenceCols+` FROM "references"
		 WHERE to_symbol_id IS NULL
		   AND symbol_id IN (SELECT id FROM symbols WHERE repository_id = ?)`,
		repositoryID,
	)
}

// ResolveReferences sets to_symbol_id on every unresolved reference in
// the repository to the id of the first symbol (order unspecified, the
// documented ambiguity) whose name equals the reference's to_name in the
// same repository. Also materializes a resolved_references row per
// successful resolution.
func (s *Store) ResolveReferences(repositoryID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, to_name FROM "references"
		 WHERE to_symbol_id IS NULL
		   AND symbol_id IN (SELECT id FROM symbols WHERE repository_id = ?)`,
		repositoryID,
	)
	if err != nil {
		return fmt.Errorf("query unresolved references: %w", err)
	}
	type pending struct {
		id     int64
		toName string
	}
	var unresolved []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.toName); err != nil {
			rows.Close()
			return err
		}
		unresolved = append(unresolved, p)
	}
	rows.Close()

	for _, p := range unresolved {
		var targetID int64
		err := tx.QueryRow(
			"SELECT id FROM symbols WHERE repository_id = ? AND name = ? LIMIT 1",
			repositoryID, p.toName,
		).Scan(&targetID)
		if err != nil {
			continue // no matching symbol; reference stays unresolved
		}
		if _, err := tx.Exec(`UPDATE "references" SET to_symbol_id = ? WHERE id = ?`, targetID, p.id); err != nil {
			return fmt.Errorf("set to_symbol_id: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO resolved_references (reference_id, target_symbol_id, confidence, resolution_kind)
			 VALUES (?, ?, 1.0, 'name-equality')`,
			p.id, targetID,
		); err != nil {
			return fmt.Errorf("insert resolved reference: %w", err)
		}
	}

	return tx.Commit()
}
