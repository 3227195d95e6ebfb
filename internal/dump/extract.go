package dump

import (
	"cmp"
	"slices"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tsls/internal/index"
	"github.com/jward/tsls/internal/store"
)

// documentRow returns the documents row for doc.
func documentRow(doc *store.Document, now time.Time) Document {
	return Document{
		URI:        doc.URI,
		Language:   doc.LanguageID,
		Version:    doc.Version,
		Hash:       doc.Hash,
		ExportedAt: now,
	}
}

type span struct {
	StartLine, StartCol, EndLine, EndCol int
}

func spanOf(r sitter.Range) span {
	return span{
		StartLine: int(r.StartPoint.Row),
		StartCol:  int(r.StartPoint.Column),
		EndLine:   int(r.EndPoint.Row),
		EndCol:    int(r.EndPoint.Column),
	}
}

// Extract writes the rows of doc to w under documentID. A Batch ignores
// documentID; its rows are attached on commit.
func Extract(w DataStore, documentID int64, doc *store.Document) error {
	ix := doc.Index

	// Outer scopes first, so every parent has an ID before its children.
	order := make([]index.Scope, 0, len(ix.Scopes))
	for _, sc := range ix.Scopes {
		if sc.ID != index.Global {
			order = append(order, sc)
		}
	}
	slices.SortStableFunc(order, func(a, b index.Scope) int {
		if c := cmp.Compare(a.Range.StartByte, b.Range.StartByte); c != 0 {
			return c
		}
		return cmp.Compare(b.Range.EndByte, a.Range.EndByte)
	})

	scopeIDs := make(map[int]int64, len(order))
	scopeRef := func(id int) *int64 {
		if id == index.Global {
			return nil
		}
		if rowID, ok := scopeIDs[id]; ok {
			return &rowID
		}
		return nil
	}

	for _, sc := range order {
		sp := spanOf(sc.Range)
		row := &Scope{
			DocumentID:    documentID,
			Ordinal:       sc.ID,
			StartLine:     sp.StartLine,
			StartCol:      sp.StartCol,
			EndLine:       sp.EndLine,
			EndCol:        sp.EndCol,
			ParentScopeID: scopeRef(sc.Parent),
		}
		id, err := w.InsertScope(row)
		if err != nil {
			return err
		}
		scopeIDs[sc.ID] = id
	}

	for _, key := range ix.Keys() {
		syms := ix.Definitions[key]
		def := syms[0]
		sp := spanOf(def.Location)
		symID, err := w.InsertSymbol(&Symbol{
			DocumentID:  documentID,
			ScopeID:     scopeRef(key.Scope),
			BodyScopeID: scopeRef(def.Body),
			Name:        def.Name,
			Tag:         def.Tag.String(),
			Kind:        symbolKind(def),
			StartLine:   sp.StartLine,
			StartCol:    sp.StartCol,
			EndLine:     sp.EndLine,
			EndCol:      sp.EndCol,
		})
		if err != nil {
			return err
		}

		for i, occ := range syms {
			sp := spanOf(occ.Location)
			if _, err := w.InsertOccurrence(&Occurrence{
				SymbolID:   symID,
				DocumentID: documentID,
				Definition: i == 0,
				StartLine:  sp.StartLine,
				StartCol:   sp.StartCol,
				EndLine:    sp.EndLine,
				EndCol:     sp.EndCol,
			}); err != nil {
				return err
			}
		}

		for _, child := range def.Children {
			sp := spanOf(child.Location)
			if _, err := w.InsertSymbol(&Symbol{
				DocumentID:     documentID,
				ParentSymbolID: &symID,
				Name:           child.Name,
				Tag:            child.Tag.String(),
				Kind:           symbolKind(child),
				StartLine:      sp.StartLine,
				StartCol:       sp.StartCol,
				EndLine:        sp.EndLine,
				EndCol:         sp.EndCol,
			}); err != nil {
				return err
			}
		}
	}

	for _, d := range doc.Diagnostics {
		sp := spanOf(d.Range)
		if _, err := w.InsertDiagnostic(&Diagnostic{
			DocumentID: documentID,
			Message:    d.Message,
			Severity:   int(d.Severity),
			StartLine:  sp.StartLine,
			StartCol:   sp.StartCol,
			EndLine:    sp.EndLine,
			EndCol:     sp.EndCol,
		}); err != nil {
			return err
		}
	}

	return w.InsertKeywords(doc.LanguageID, doc.Keywords)
}

func symbolKind(sym index.Symbol) int {
	if n := len(sym.SymbolKinds); n > 0 {
		return int(sym.SymbolKinds[n-1])
	}
	return 0
}

// BuildBatch turns doc into a Batch ready for CommitBatch.
func BuildBatch(doc *store.Document, now time.Time) (*Batch, error) {
	b := NewBatch(documentRow(doc, now))
	if err := Extract(b, 0, doc); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteDocument exports doc directly, without batching. Rows previously
// exported for the same URI are replaced.
func (s *Store) WriteDocument(doc *store.Document) (int64, error) {
	old, err := s.DocumentByURI(doc.URI)
	if err != nil {
		return 0, err
	}
	if old != nil {
		if err := s.DeleteDocuments([]int64{old.ID}); err != nil {
			return 0, err
		}
	}
	row := documentRow(doc, time.Now())
	id, err := s.InsertDocument(&row)
	if err != nil {
		return 0, err
	}
	if err := Extract(s, id, doc); err != nil {
		return 0, err
	}
	return id, nil
}
