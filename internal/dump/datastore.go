package dump

// DataStore is the write interface used when turning an analysed document
// into rows. Both Store (direct SQLite) and Batch (in-memory buffering for
// parallel export) implement it.
type DataStore interface {
	// Each insert returns the assigned ID.
	InsertScope(scope *Scope) (int64, error)
	InsertSymbol(sym *Symbol) (int64, error)
	InsertOccurrence(occ *Occurrence) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)

	InsertKeywords(language string, keywords []string) error
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
