package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RegisterRepository inserts a repository by path if it doesn't already
// exist, returning its id either way. Repositories are never implicitly
// deleted once registered.
func (s *Store) RegisterRepository(path string) (int64, error) {
	if _, err := s.db.Exec(
		"INSERT INTO repositories (path) VALUES (?) ON CONFLICT(path) DO UPDATE SET path = path",
		path,
	); err != nil {
		return 0, fmt.Errorf("register repository: %w", err)
	}
	return s.RepositoryIDByPath(path)
}

func (s *Store) RepositoryIDByPath(path string) (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM repositories WHERE path = ?", path).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("repository by path: %w", err)
	}
	return id, nil
}

func (s *Store) TouchRepositoryReconciled(repositoryID int64, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE repositories SET last_full_reconciled_at = ? WHERE id = ?", at, repositoryID,
	)
	if err != nil {
		return fmt.Errorf("touch repository reconciled: %w", err)
	}
	return nil
}

func (s *Store) RepositoryByID(id int64) (*Repository, error) {
	r := &Repository{}
	err := s.db.QueryRow(
		"SELECT id, path, last_full_reconciled_at FROM repositories WHERE id = ?", id,
	).Scan(&r.ID, &r.Path, &r.LastFullReconciledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository by id: %w", err)
	}
	return r, nil
}

// ListIndexedRepos returns every registered repository.
func (s *Store) ListIndexedRepos() ([]*Repository, error) {
	rows, err := s.db.Query("SELECT id, path, last_full_reconciled_at FROM repositories ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("list indexed repos: %w", err)
	}
	defer rows.Close()
	var repos []*Repository
	for rows.Next() {
		r := &Repository{}
		if err := rows.Scan(&r.ID, &r.Path, &r.LastFullReconciledAt); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// DeleteRepository removes a repository and cascades to every file,
// symbol, reference, and resolution row it owns.
func (s *Store) DeleteRepository(repositoryID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM files WHERE repository_id = ?", repositoryID)
	if err != nil {
		return fmt.Errorf("query files: %w", err)
	}
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		fileIDs = append(fileIDs, id)
	}
	rows.Close()

	if err := deleteFileDataTx(tx, fileIDs); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE repository_id = ?", repositoryID); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM repositories WHERE id = ?", repositoryID); err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	return tx.Commit()
}
