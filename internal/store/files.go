package store

import (
	"database/sql"
	"fmt"
)

// UpsertFile inserts or updates a file row by (repository_id, path),
// returning the assigned id and the previously stored hash (empty if the
// file is new). Callers use the previous hash to decide whether
// re-extraction is needed.
func (s *Store) UpsertFile(f *File) (id int64, previousHash string, err error) {
	var existingID int64
	err = s.db.QueryRow(
		"SELECT id, hash FROM files WHERE repository_id = ? AND path = ?", f.RepositoryID, f.Path,
	).Scan(&existingID, &previousHash)

	switch {
	case err == sql.ErrNoRows:
		res, insertErr := s.db.Exec(
			"INSERT INTO files (repository_id, path, language, hash, last_indexed) VALUES (?, ?, ?, ?, ?)",
			f.RepositoryID, f.Path, f.Language, f.Hash, f.LastIndexed,
		)
		if insertErr != nil {
			return 0, "", fmt.Errorf("insert file: %w", insertErr)
		}
		id, insertErr = res.LastInsertId()
		if insertErr != nil {
			return 0, "", fmt.Errorf("last insert id: %w", insertErr)
		}
		f.ID = id
		return id, "", nil
	case err != nil:
		return 0, "", fmt.Errorf("file lookup: %w", err)
	default:
		if _, updateErr := s.db.Exec(
			"UPDATE files SET language = ?, hash = ?, last_indexed = ? WHERE id = ?",
			f.Language, f.Hash, f.LastIndexed, existingID,
		); updateErr != nil {
			return 0, "", fmt.Errorf("update file: %w", updateErr)
		}
		f.ID = existingID
		return existingID, previousHash, nil
	}
}

func (s *Store) FileByPath(repositoryID int64, path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, repository_id, path, language, hash, last_indexed FROM files WHERE repository_id = ? AND path = ?",
		repositoryID, path,
	).Scan(&f.ID, &f.RepositoryID, &f.Path, &f.Language, &f.Hash, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FilesByRepository(repositoryID int64) ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT id, repository_id, path, language, hash, last_indexed FROM files WHERE repository_id = ?",
		repositoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("files by repository: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.RepositoryID, &f.Path, &f.Language, &f.Hash, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFileData removes a file row and every symbol/reference/resolution
// row it owns, in FK-respecting order.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, []int64{fileID}); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return tx.Commit()
}

// deleteFileDataTx removes symbols/references/resolution rows owned by
// the given files, but not the file rows themselves (callers differ on
// whether the file row should also go: DeleteFileData deletes it,
// DeleteRepository deletes it via a single bulk statement afterward).
func deleteFileDataTx(tx *sql.Tx, fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	placeholders := placeholderList(len(fileIDs))
	args := int64sToArgs(fileIDs)

	rows, err := tx.Query("SELECT id FROM symbols WHERE file_id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("query symbols: %w", err)
	}
	var symbolIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		symbolIDs = append(symbolIDs, id)
	}
	rows.Close()

	if len(symbolIDs) > 0 {
		symPlaceholders := placeholderList(len(symbolIDs))
		symArgs := int64sToArgs(symbolIDs)

		if _, err := tx.Exec(`DELETE FROM resolved_references WHERE target_symbol_id IN (`+symPlaceholders+`)`, symArgs...); err != nil {
			return fmt.Errorf("delete resolved references by target: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM call_graph WHERE caller_symbol_id IN (`+symPlaceholders+`) OR callee_symbol_id IN (`+symPlaceholders+`)`, repeatArgs(symArgs, 2)...); err != nil {
			return fmt.Errorf("delete call graph: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM implementations WHERE type_symbol_id IN (`+symPlaceholders+`) OR interface_symbol_id IN (`+symPlaceholders+`)`, repeatArgs(symArgs, 2)...); err != nil {
			return fmt.Errorf("delete implementations: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM resolved_references WHERE reference_id IN (SELECT id FROM "references" WHERE symbol_id IN (`+symPlaceholders+`))`, symArgs...); err != nil {
			return fmt.Errorf("delete resolved references by source: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM "references" WHERE symbol_id IN (`+symPlaceholders+`)`, symArgs...); err != nil {
			return fmt.Errorf("delete references: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM call_graph WHERE file_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete call graph by file: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM implementations WHERE file_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete implementations by file: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete symbols: %w", err)
	}
	return nil
}

// StaleFiles returns files whose stored hash no longer matches
// currentHashes (keyed by relative path); used by repository status to
// report the stale-file count the Query Surface requires.
func (s *Store) StaleFiles(repositoryID int64, currentHashes map[string]string) ([]*File, error) {
	files, err := s.FilesByRepository(repositoryID)
	if err != nil {
		return nil, err
	}
	var stale []*File
	for _, f := range files {
		if h, ok := currentHashes[f.Path]; !ok || h != f.Hash {
			stale = append(stale, f)
		}
	}
	return stale, nil
}
