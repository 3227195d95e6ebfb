// Package dump exports the analysis of open documents to SQLite for offline
// inspection: scopes, definitions with their resolved occurrences,
// diagnostics, and keyword lists.
package dump

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the export tables.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
  id              INTEGER PRIMARY KEY,
  uri             TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  version         INTEGER NOT NULL,
  hash            TEXT NOT NULL,
  exported_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scopes (
  id              INTEGER PRIMARY KEY,
  document_id     INTEGER NOT NULL REFERENCES documents(id),
  ordinal         INTEGER NOT NULL,
  start_line      INTEGER NOT NULL,
  start_col       INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  end_col         INTEGER NOT NULL,
  parent_scope_id INTEGER REFERENCES scopes(id)
);

CREATE TABLE IF NOT EXISTS symbols (
  id               INTEGER PRIMARY KEY,
  document_id      INTEGER NOT NULL REFERENCES documents(id),
  scope_id         INTEGER REFERENCES scopes(id),
  body_scope_id    INTEGER REFERENCES scopes(id),
  parent_symbol_id INTEGER REFERENCES symbols(id),
  name             TEXT NOT NULL,
  tag              TEXT NOT NULL,
  kind             INTEGER NOT NULL,
  start_line       INTEGER NOT NULL,
  start_col        INTEGER NOT NULL,
  end_line         INTEGER NOT NULL,
  end_col          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS occurrences (
  id              INTEGER PRIMARY KEY,
  symbol_id       INTEGER NOT NULL REFERENCES symbols(id),
  document_id     INTEGER NOT NULL REFERENCES documents(id),
  is_definition   INTEGER NOT NULL DEFAULT 0,
  start_line      INTEGER NOT NULL,
  start_col       INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  end_col         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  document_id     INTEGER NOT NULL REFERENCES documents(id),
  message         TEXT NOT NULL,
  severity        INTEGER NOT NULL,
  start_line      INTEGER NOT NULL,
  start_col       INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  end_col         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS keywords (
  language        TEXT NOT NULL,
  keyword         TEXT NOT NULL,
  PRIMARY KEY (language, keyword)
);

CREATE INDEX IF NOT EXISTS idx_scopes_document ON scopes(document_id);
CREATE INDEX IF NOT EXISTS idx_symbols_document ON symbols(document_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_symbol_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_symbol ON occurrences(symbol_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_document ON occurrences(document_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_document ON diagnostics(document_id);
`

// DeleteDocuments transactionally removes the given documents and every row
// derived from them. Deletes in reverse-dependency order to respect FK
// constraints.
func (s *Store) DeleteDocuments(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteDocumentsTx(tx, ids); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteDocumentsTx(tx *sql.Tx, ids []int64) error {
	in := placeholderList(len(ids))
	args := int64sToArgs(ids)
	for _, stmt := range []struct{ table, sql string }{
		{"occurrences", "DELETE FROM occurrences WHERE document_id IN (" + in + ")"},
		{"diagnostics", "DELETE FROM diagnostics WHERE document_id IN (" + in + ")"},
		// Children reference their owner, so they go first.
		{"child symbols", "DELETE FROM symbols WHERE parent_symbol_id IS NOT NULL AND document_id IN (" + in + ")"},
		{"symbols", "DELETE FROM symbols WHERE document_id IN (" + in + ")"},
		{"scopes", "DELETE FROM scopes WHERE document_id IN (" + in + ")"},
		{"documents", "DELETE FROM documents WHERE id IN (" + in + ")"},
	} {
		if _, err := tx.Exec(stmt.sql, args...); err != nil {
			return fmt.Errorf("delete %s: %w", stmt.table, err)
		}
	}
	return nil
}
