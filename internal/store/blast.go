package store

import "fmt"

// FilesReferencingSymbols returns file ids that hold a resolved
// reference targeting any of the given symbols — the "blast radius" of
// a partial update, answering which files need re-resolution after
// their own extraction changed. Repurposed from the teacher's
// identically-named helper; the underlying query is adapted to the
// simplified reference model.
func (s *Store) FilesReferencingSymbols(symbolIDs []int64) ([]int64, error) {
	if len(symbolIDs) == 0 {
		return nil, nil
	}
	placeholders := placeholderList(len(symbolIDs))
	query := `SELECT DISTINCT sym.file_id
		FROM "references" r
		JOIN symbols sym ON sym.id = r.symbol_id
		WHERE r.to_symbol_id IN (` + placeholders + `)`
	rows, err := s.db.Query(query, int64sToArgs(symbolIDs)...)
	if err != nil {
		return nil, fmt.Errorf("files referencing symbols: %w", err)
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// ComputeBlastRadius diffs the symbol names captured before and after a
// file's re-extraction and returns the names that disappeared or
// changed kind — the set other files might have stale references to.
func ComputeBlastRadius(before, after []*Symbol) []string {
	afterKeys := make(map[string]struct{}, len(after))
	for _, sym := range after {
		afterKeys[sym.Name+"\x00"+sym.Kind] = struct{}{}
	}
	var changed []string
	for _, sym := range before {
		if _, ok := afterKeys[sym.Name+"\x00"+sym.Kind]; !ok {
			changed = append(changed, sym.Name)
		}
	}
	return changed
}
