// Package store is the SQLite data access layer: Repository, File,
// Symbol, Reference, and the supplemented resolved_references,
// implementations, and call_graph tables, plus the symbols_fts mirror.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/ctxgraph/internal/ctxerr"
	"github.com/jward/ctxgraph/internal/tokenizer"
)

// Store is the SQLite data access layer.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %w", err, ctxerr.ErrIO)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w: %w", err, ctxerr.ErrIO)
	}
	return &Store{db: db}, nil
}

// DBPathForRepo returns the deterministic database path for a repository
// root: <cacheDir>/<sha256-hex[:16]>.db. Ported from original_source's
// db_path_for_repo.
func DBPathForRepo(cacheDir, repoRoot string) string {
	sum := sha256.Sum256([]byte(repoRoot))
	return filepath.Join(cacheDir, hex.EncodeToString(sum[:])[:16]+".db")
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS repositories (
  id                       INTEGER PRIMARY KEY,
  path                     TEXT NOT NULL UNIQUE,
  last_full_reconciled_at  TIMESTAMP
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  repository_id   INTEGER NOT NULL REFERENCES repositories(id),
  path            TEXT NOT NULL,
  language        TEXT NOT NULL,
  hash            TEXT NOT NULL,
  last_indexed    TIMESTAMP,
  UNIQUE(repository_id, path)
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  repository_id   INTEGER NOT NULL REFERENCES repositories(id),
  path            TEXT NOT NULL,
  name            TEXT NOT NULL,
  name_tokens     TEXT NOT NULL DEFAULT '',
  kind            TEXT NOT NULL,
  signature       TEXT,
  doc             TEXT,
  start_line      INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  parent_symbol_id INTEGER REFERENCES symbols(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS "references" (
  id              INTEGER PRIMARY KEY,
  symbol_id       INTEGER NOT NULL REFERENCES symbols(id),
  to_symbol_id    INTEGER REFERENCES symbols(id),
  to_name         TEXT NOT NULL,
  kind            TEXT NOT NULL,
  line            INTEGER,
  UNIQUE(symbol_id, to_name, kind, line)
);

CREATE TABLE IF NOT EXISTS resolved_references (
  id               INTEGER PRIMARY KEY,
  reference_id     INTEGER NOT NULL REFERENCES "references"(id),
  target_symbol_id INTEGER NOT NULL REFERENCES symbols(id),
  confidence       REAL DEFAULT 1.0,
  resolution_kind  TEXT
);

CREATE TABLE IF NOT EXISTS implementations (
  id                  INTEGER PRIMARY KEY,
  type_symbol_id      INTEGER NOT NULL REFERENCES symbols(id),
  interface_symbol_id INTEGER NOT NULL REFERENCES symbols(id),
  kind                TEXT,
  file_id             INTEGER REFERENCES files(id)
);

CREATE TABLE IF NOT EXISTS call_graph (
  id               INTEGER PRIMARY KEY,
  caller_symbol_id INTEGER NOT NULL REFERENCES symbols(id),
  callee_symbol_id INTEGER NOT NULL REFERENCES symbols(id),
  file_id          INTEGER REFERENCES files(id),
  line             INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
  name, name_tokens, kind, doc, path,
  content='symbols', content_rowid='id',
  tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS symbols_ai AFTER INSERT ON symbols BEGIN
  INSERT INTO symbols_fts(rowid, name, name_tokens, kind, doc, path)
  VALUES (new.id, new.name, new.name_tokens, new.kind, new.doc, new.path);
END;

CREATE TRIGGER IF NOT EXISTS symbols_ad AFTER DELETE ON symbols BEGIN
  INSERT INTO symbols_fts(symbols_fts, rowid, name, name_tokens, kind, doc, path)
  VALUES ('delete', old.id, old.name, old.name_tokens, old.kind, old.doc, old.path);
END;

CREATE TRIGGER IF NOT EXISTS symbols_au AFTER UPDATE ON symbols BEGIN
  INSERT INTO symbols_fts(symbols_fts, rowid, name, name_tokens, kind, doc, path)
  VALUES ('delete', old.id, old.name, old.name_tokens, old.kind, old.doc, old.path);
  INSERT INTO symbols_fts(rowid, name, name_tokens, kind, doc, path)
  VALUES (new.id, new.name, new.name_tokens, new.kind, new.doc, new.path);
END;

CREATE INDEX IF NOT EXISTS idx_files_repo ON files(repository_id);
CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_repo ON symbols(repository_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_symbol_id);
CREATE INDEX IF NOT EXISTS idx_references_symbol ON "references"(symbol_id);
CREATE INDEX IF NOT EXISTS idx_references_to_name ON "references"(to_name);
CREATE INDEX IF NOT EXISTS idx_references_to_symbol ON "references"(to_symbol_id);
CREATE INDEX IF NOT EXISTS idx_resolved_refs_reference ON resolved_references(reference_id);
CREATE INDEX IF NOT EXISTS idx_resolved_refs_target ON resolved_references(target_symbol_id);
CREATE INDEX IF NOT EXISTS idx_implementations_type ON implementations(type_symbol_id);
CREATE INDEX IF NOT EXISTS idx_implementations_interface ON implementations(interface_symbol_id);
CREATE INDEX IF NOT EXISTS idx_call_graph_caller ON call_graph(caller_symbol_id);
CREATE INDEX IF NOT EXISTS idx_call_graph_callee ON call_graph(callee_symbol_id);
`

// Migrate creates all tables, indexes, the FTS mirror and its triggers,
// then runs the schema_version upgrade path. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w: %w", err, ctxerr.ErrStorage)
	}
	if err := s.ensureSchemaVersion(); err != nil {
		return fmt.Errorf("migrate: %w: %w", err, ctxerr.ErrStorage)
	}
	if err := s.upgradeToV2IfNeeded(); err != nil {
		return fmt.Errorf("migrate: %w: %w", err, ctxerr.ErrStorage)
	}
	return nil
}

func (s *Store) ensureSchemaVersion() error {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&value)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec("INSERT INTO metadata (key, value) VALUES ('schema_version', '1')")
		return err
	}
	return err
}

// upgradeToV2IfNeeded migrates a pre-v2 database — one created from an
// older schemaDDL that never declared name_tokens — in place: it adds the
// column via ALTER TABLE (schemaDDL's CREATE TABLE IF NOT EXISTS is a
// no-op against an existing table and can't do this itself), rebuilds
// symbols_fts and its triggers since fts5 has no ADD COLUMN, backfills
// name_tokens for every existing symbol, and bumps schema_version.
// Grounded on original_source's migrate().
func (s *Store) upgradeToV2IfNeeded() error {
	var version string
	if err := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		return err
	}
	if version != "1" {
		return nil
	}

	hasNameTokens, err := s.hasColumn("symbols", "name_tokens")
	if err != nil {
		return fmt.Errorf("check name_tokens column: %w", err)
	}
	if !hasNameTokens {
		if _, err := s.db.Exec(`ALTER TABLE symbols ADD COLUMN name_tokens TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("alter symbols: %w", err)
		}
		// The fts5 mirror and its triggers were created by the same
		// older schemaDDL and reference a column that didn't exist yet;
		// drop them so the CREATE ... IF NOT EXISTS statements below
		// rebuild them against the new column.
		for _, stmt := range []string{
			`DROP TRIGGER IF EXISTS symbols_ai`,
			`DROP TRIGGER IF EXISTS symbols_ad`,
			`DROP TRIGGER IF EXISTS symbols_au`,
			`DROP TABLE IF EXISTS symbols_fts`,
		} {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("drop stale fts objects: %w", err)
			}
		}
		if _, err := s.db.Exec(schemaDDL); err != nil {
			return fmt.Errorf("rebuild fts: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id, name FROM symbols WHERE name_tokens = ''")
	if err != nil {
		return err
	}
	type pending struct {
		id   int64
		name string
	}
	var toBackfill []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.name); err != nil {
			rows.Close()
			return err
		}
		toBackfill = append(toBackfill, p)
	}
	rows.Close()

	// Rebuild the fts index from the current rows first, so the update
	// trigger's delete step below finds the entries it removes.
	if _, err := tx.Exec("INSERT INTO symbols_fts(symbols_fts) VALUES('rebuild')"); err != nil {
		return err
	}
	for _, p := range toBackfill {
		if _, err := tx.Exec("UPDATE symbols SET name_tokens = ? WHERE id = ?", tokenizer.Split(p.name), p.id); err != nil {
			return err
		}
	}

	if _, err := tx.Exec("UPDATE metadata SET value = '2' WHERE key = 'schema_version'"); err != nil {
		return err
	}
	return tx.Commit()
}

// hasColumn reports whether table declares column, via PRAGMA table_info.
func (s *Store) hasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("scan table_info row: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
