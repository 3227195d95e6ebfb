package dump

// Batch buffers the rows of one document in memory using fake (negative)
// IDs. It implements DataStore so a document can be turned into rows on a
// worker goroutine and committed later with CommitBatch.
//
// A Batch is not safe for concurrent use; each worker fills its own.
type Batch struct {
	Document Document

	Scopes      []Scope
	Symbols     []Symbol
	Occurrences []Occurrence
	Diagnostics []Diagnostic
	Keywords    []string

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *Batch satisfies DataStore.
var _ DataStore = (*Batch)(nil)

// NewBatch creates an empty Batch for doc. The document's ID is assigned on
// commit.
func NewBatch(doc Document) *Batch {
	return &Batch{Document: doc, nextFakeID: -1}
}

func (b *Batch) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *Batch) InsertScope(scope *Scope) (int64, error) {
	scope.ID = b.allocFakeID()
	b.Scopes = append(b.Scopes, *scope)
	return scope.ID, nil
}

func (b *Batch) InsertSymbol(sym *Symbol) (int64, error) {
	sym.ID = b.allocFakeID()
	b.Symbols = append(b.Symbols, *sym)
	return sym.ID, nil
}

func (b *Batch) InsertOccurrence(occ *Occurrence) (int64, error) {
	occ.ID = b.allocFakeID()
	b.Occurrences = append(b.Occurrences, *occ)
	return occ.ID, nil
}

func (b *Batch) InsertDiagnostic(d *Diagnostic) (int64, error) {
	d.ID = b.allocFakeID()
	b.Diagnostics = append(b.Diagnostics, *d)
	return d.ID, nil
}

func (b *Batch) InsertKeywords(_ string, keywords []string) error {
	b.Keywords = append(b.Keywords, keywords...)
	return nil
}
