package dump

import (
	"database/sql"
	"errors"
	"fmt"
)

// CommitBatch writes a Batch within a single transaction. Any rows
// previously exported for the same URI are deleted first. Fake (negative)
// IDs are remapped to real (positive) IDs, and all FK references within the
// batch are rewritten using the fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Document
//  2. Scopes (parents are buffered before their children)
//  3. Symbols (depend on scopes; children follow their owner)
//  4. Occurrences (depend on symbols)
//  5. Diagnostics
//  6. Keywords
func (s *Store) CommitBatch(batch *Batch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	var oldID int64
	err = tx.QueryRow(`SELECT id FROM documents WHERE uri = ?`, batch.Document.URI).Scan(&oldID)
	switch {
	case err == nil:
		if err := deleteDocumentsTx(tx, []int64{oldID}); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("commit batch: lookup %s: %w", batch.Document.URI, err)
	}

	// 1. Document
	doc := batch.Document
	docID, err := insertDocumentTx(tx, &doc)
	if err != nil {
		return fmt.Errorf("commit batch: document %s: %w", doc.URI, err)
	}
	batch.Document.ID = docID

	fakeToReal := make(map[int64]int64)
	remap := func(id *int64) (*int64, error) {
		if id == nil || *id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[*id]
		if !ok {
			return nil, fmt.Errorf("fake id %d not committed yet", *id)
		}
		return &realID, nil
	}

	// 2. Scopes
	for _, scope := range batch.Scopes {
		scope.DocumentID = docID
		if scope.ParentScopeID, err = remap(scope.ParentScopeID); err != nil {
			return fmt.Errorf("commit batch: scope %d: %w", scope.Ordinal, err)
		}
		realID, err := insertScopeTx(tx, &scope)
		if err != nil {
			return fmt.Errorf("commit batch: scope %d: %w", scope.Ordinal, err)
		}
		fakeToReal[scope.ID] = realID
	}

	// 3. Symbols
	for _, sym := range batch.Symbols {
		sym.DocumentID = docID
		if sym.ScopeID, err = remap(sym.ScopeID); err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		if sym.BodyScopeID, err = remap(sym.BodyScopeID); err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		if sym.ParentSymbolID, err = remap(sym.ParentSymbolID); err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		realID, err := insertSymbolTx(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		fakeToReal[sym.ID] = realID
	}

	// 4. Occurrences
	for _, occ := range batch.Occurrences {
		occ.DocumentID = docID
		if occ.SymbolID < 0 {
			realID, ok := fakeToReal[occ.SymbolID]
			if !ok {
				return fmt.Errorf("commit batch: occurrence has symbol_id=%d not in fakeToReal map (have %d symbols)", occ.SymbolID, len(batch.Symbols))
			}
			occ.SymbolID = realID
		}
		if _, err := insertOccurrenceTx(tx, &occ); err != nil {
			return fmt.Errorf("commit batch: occurrence: %w", err)
		}
	}

	// 5. Diagnostics
	for _, d := range batch.Diagnostics {
		d.DocumentID = docID
		if _, err := insertDiagnosticTx(tx, &d); err != nil {
			return fmt.Errorf("commit batch: diagnostic: %w", err)
		}
	}

	// 6. Keywords
	for _, kw := range batch.Keywords {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO keywords (language, keyword) VALUES (?, ?)`, doc.Language, kw); err != nil {
			return fmt.Errorf("commit batch: keyword %q: %w", kw, err)
		}
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---
// These mirror the Store insert methods but accept *sql.Tx instead of using s.db.

func insertDocumentTx(tx *sql.Tx, d *Document) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO documents (uri, language, version, hash, exported_at) VALUES (?, ?, ?, ?, ?)`,
		d.URI, d.Language, d.Version, d.Hash, d.ExportedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertScopeTx(tx *sql.Tx, scope *Scope) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO scopes (document_id, ordinal, start_line, start_col, end_line, end_col, parent_scope_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scope.DocumentID, scope.Ordinal,
		scope.StartLine, scope.StartCol, scope.EndLine, scope.EndCol, scope.ParentScopeID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (document_id, scope_id, body_scope_id, parent_symbol_id, name, tag, kind,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.DocumentID, sym.ScopeID, sym.BodyScopeID, sym.ParentSymbolID, sym.Name, sym.Tag, sym.Kind,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertOccurrenceTx(tx *sql.Tx, occ *Occurrence) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO occurrences (symbol_id, document_id, is_definition, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		occ.SymbolID, occ.DocumentID, boolToInt(occ.Definition),
		occ.StartLine, occ.StartCol, occ.EndLine, occ.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertDiagnosticTx(tx *sql.Tx, d *Diagnostic) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO diagnostics (document_id, message, severity, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.DocumentID, d.Message, d.Severity, d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
