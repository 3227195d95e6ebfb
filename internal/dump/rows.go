package dump

import (
	"database/sql"
	"errors"
	"fmt"
)

// --- Documents ---

// InsertDocument inserts a document row and sets d.ID.
func (s *Store) InsertDocument(d *Document) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO documents (uri, language, version, hash, exported_at) VALUES (?, ?, ?, ?, ?)`,
		d.URI, d.Language, d.Version, d.Hash, d.ExportedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// DocumentByURI returns the document exported under uri, or nil if there is
// none.
func (s *Store) DocumentByURI(uri string) (*Document, error) {
	d := &Document{}
	err := s.db.QueryRow(
		`SELECT id, uri, language, version, hash, exported_at FROM documents WHERE uri = ?`, uri,
	).Scan(&d.ID, &d.URI, &d.Language, &d.Version, &d.Hash, &d.ExportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("document by uri: %w", err)
	}
	return d, nil
}

// Documents returns every exported document ordered by URI.
func (s *Store) Documents() ([]*Document, error) {
	rows, err := s.db.Query(`SELECT id, uri, language, version, hash, exported_at FROM documents ORDER BY uri`)
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	defer rows.Close()
	var out []*Document
	for rows.Next() {
		d := &Document{}
		if err := rows.Scan(&d.ID, &d.URI, &d.Language, &d.Version, &d.Hash, &d.ExportedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Scopes ---

func (s *Store) InsertScope(scope *Scope) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO scopes (document_id, ordinal, start_line, start_col, end_line, end_col, parent_scope_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scope.DocumentID, scope.Ordinal,
		scope.StartLine, scope.StartCol, scope.EndLine, scope.EndCol, scope.ParentScopeID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert scope: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	scope.ID = id
	return id, nil
}

// ScopesByDocument returns a document's scopes ordered by ordinal.
func (s *Store) ScopesByDocument(documentID int64) ([]*Scope, error) {
	rows, err := s.db.Query(
		`SELECT id, document_id, ordinal, start_line, start_col, end_line, end_col, parent_scope_id
		 FROM scopes WHERE document_id = ? ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, fmt.Errorf("scopes by document: %w", err)
	}
	defer rows.Close()
	var out []*Scope
	for rows.Next() {
		sc := &Scope{}
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.Ordinal,
			&sc.StartLine, &sc.StartCol, &sc.EndLine, &sc.EndCol, &sc.ParentScopeID); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// --- Symbols ---

const symbolCols = `id, document_id, scope_id, body_scope_id, parent_symbol_id, name, tag, kind,
	start_line, start_col, end_line, end_col`

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO symbols (document_id, scope_id, body_scope_id, parent_symbol_id, name, tag, kind,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.DocumentID, sym.ScopeID, sym.BodyScopeID, sym.ParentSymbolID, sym.Name, sym.Tag, sym.Kind,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sym.ID = id
	return id, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Symbol
	for rows.Next() {
		sym := &Symbol{}
		if err := rows.Scan(&sym.ID, &sym.DocumentID, &sym.ScopeID, &sym.BodyScopeID, &sym.ParentSymbolID,
			&sym.Name, &sym.Tag, &sym.Kind,
			&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// SymbolsByDocument returns a document's definitions, excluding children, in
// document order.
func (s *Store) SymbolsByDocument(documentID int64) ([]*Symbol, error) {
	return s.querySymbols(
		`SELECT `+symbolCols+` FROM symbols WHERE document_id = ? AND parent_symbol_id IS NULL
		 ORDER BY start_line, start_col`, documentID)
}

// SymbolsByName returns every definition named name across documents.
func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols(
		`SELECT `+symbolCols+` FROM symbols WHERE name = ? AND parent_symbol_id IS NULL
		 ORDER BY document_id, start_line, start_col`, name)
}

// SymbolChildren returns the child members recorded under symbolID.
func (s *Store) SymbolChildren(symbolID int64) ([]*Symbol, error) {
	return s.querySymbols(
		`SELECT `+symbolCols+` FROM symbols WHERE parent_symbol_id = ? ORDER BY start_line, start_col`, symbolID)
}

// --- Occurrences ---

func (s *Store) InsertOccurrence(occ *Occurrence) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO occurrences (symbol_id, document_id, is_definition, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		occ.SymbolID, occ.DocumentID, boolToInt(occ.Definition),
		occ.StartLine, occ.StartCol, occ.EndLine, occ.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert occurrence: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	occ.ID = id
	return id, nil
}

// OccurrencesBySymbol returns the definition followed by the references of
// symbolID, in document order.
func (s *Store) OccurrencesBySymbol(symbolID int64) ([]*Occurrence, error) {
	rows, err := s.db.Query(
		`SELECT id, symbol_id, document_id, is_definition, start_line, start_col, end_line, end_col
		 FROM occurrences WHERE symbol_id = ? ORDER BY is_definition DESC, start_line, start_col`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("occurrences by symbol: %w", err)
	}
	defer rows.Close()
	var out []*Occurrence
	for rows.Next() {
		o := &Occurrence{}
		var def int
		if err := rows.Scan(&o.ID, &o.SymbolID, &o.DocumentID, &def,
			&o.StartLine, &o.StartCol, &o.EndLine, &o.EndCol); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		o.Definition = def != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- Diagnostics ---

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO diagnostics (document_id, message, severity, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.DocumentID, d.Message, d.Severity, d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert diagnostic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// DiagnosticsByDocument returns a document's diagnostics in document order.
func (s *Store) DiagnosticsByDocument(documentID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT id, document_id, message, severity, start_line, start_col, end_line, end_col
		 FROM diagnostics WHERE document_id = ? ORDER BY start_line, start_col`, documentID)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by document: %w", err)
	}
	defer rows.Close()
	var out []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.Message, &d.Severity,
			&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Keywords ---

// InsertKeywords records the keyword list of language. Existing entries are
// kept.
func (s *Store) InsertKeywords(language string, keywords []string) error {
	for _, kw := range keywords {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO keywords (language, keyword) VALUES (?, ?)`, language, kw); err != nil {
			return fmt.Errorf("insert keyword %q: %w", kw, err)
		}
	}
	return nil
}

// Keywords returns the recorded keywords of language, sorted.
func (s *Store) Keywords(language string) ([]string, error) {
	rows, err := s.db.Query(`SELECT keyword FROM keywords WHERE language = ? ORDER BY keyword`, language)
	if err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}
