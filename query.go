package tsls

import (
	"fmt"
	"regexp"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls/internal/index"
	"github.com/jward/tsls/internal/position"
	"github.com/jward/tsls/internal/store"
)

// QueryBuilder answers navigation, refactoring, and completion requests
// against one snapshot. It never mutates the Engine; later edits are not
// visible to it.
type QueryBuilder struct {
	snap *store.Snapshot
}

// Snapshot returns the snapshot the builder reads from.
func (q *QueryBuilder) Snapshot() *Snapshot {
	return q.snap
}

// Document returns the document for uri, or ErrDocumentNotFound.
func (q *QueryBuilder) Document(uri string) (*Document, error) {
	doc, ok := q.snap.Get(uri)
	if !ok {
		return nil, fmt.Errorf("tsls: %s: %w", uri, ErrDocumentNotFound)
	}
	return doc, nil
}

// nameAt returns the text and range of the leaf node under pos. A cursor
// just past the end of a name also selects it.
func nameAt(doc *Document, pos Position) (string, sitter.Range, bool) {
	root := doc.Root()
	if root == nil {
		return "", sitter.Range{}, false
	}
	p := position.FromProtocol(pos)
	p = position.OffsetToPoint(doc.Source, position.PointToOffset(doc.Source, p))

	candidates := []sitter.Point{p}
	if p.Column > 0 {
		candidates = append(candidates, sitter.Point{Row: p.Row, Column: p.Column - 1})
	}
	for _, c := range candidates {
		n := root.NamedDescendantForPointRange(c, c)
		if n == nil || n.ChildCount() != 0 {
			continue
		}
		if name := n.Content(doc.Source); name != "" {
			return name, n.Range(), true
		}
	}
	return "", sitter.Range{}, false
}

// occurrences returns the definition and resolved references of the name at
// pos. Element 0 is the definition. An unresolved name yields nil.
func (q *QueryBuilder) occurrences(uri string, pos Position) (*Document, []Symbol, error) {
	doc, err := q.Document(uri)
	if err != nil {
		return nil, nil, err
	}
	name, r, ok := nameAt(doc, pos)
	if !ok {
		return doc, nil, nil
	}
	_, syms, ok := doc.Index.Lookup(name, r)
	if !ok {
		return doc, nil, nil
	}
	return doc, syms, nil
}

func location(uri string, r sitter.Range) Location {
	return Location{URI: uri, Range: position.RangeToProtocol(r)}
}

// DefinitionAt returns the definition of the name at pos, or nothing when
// the name does not resolve.
func (q *QueryBuilder) DefinitionAt(uri string, pos Position) ([]Location, error) {
	doc, syms, err := q.occurrences(uri, pos)
	if err != nil || len(syms) == 0 {
		return nil, err
	}
	return []Location{location(doc.URI, syms[0].Location)}, nil
}

// References returns every occurrence of the name at pos. The definition is
// included first when includeDeclaration is set.
func (q *QueryBuilder) References(uri string, pos Position, includeDeclaration bool) ([]Location, error) {
	doc, syms, err := q.occurrences(uri, pos)
	if err != nil || len(syms) == 0 {
		return nil, err
	}
	if !includeDeclaration {
		syms = syms[1:]
	}
	locs := make([]Location, 0, len(syms))
	for _, s := range syms {
		locs = append(locs, location(doc.URI, s.Location))
	}
	return locs, nil
}

var identifierPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

// Rename returns the edit replacing every occurrence of the name at pos
// with newName. newName must be an identifier, otherwise ErrInvalidRename is
// returned. An unresolved name yields a nil edit.
func (q *QueryBuilder) Rename(uri string, pos Position, newName string) (*WorkspaceEdit, error) {
	if !identifierPattern.MatchString(newName) {
		return nil, fmt.Errorf("tsls: rename to %q: %w", newName, ErrInvalidRename)
	}
	doc, syms, err := q.occurrences(uri, pos)
	if err != nil || len(syms) == 0 {
		return nil, err
	}
	edits := make([]TextEdit, 0, len(syms))
	for _, s := range syms {
		edits = append(edits, TextEdit{Range: position.RangeToProtocol(s.Location), NewText: newName})
	}
	return &WorkspaceEdit{Changes: map[protocol.DocumentUri][]TextEdit{doc.URI: edits}}, nil
}

// Completion returns the language keywords followed by the names visible
// from pos, innermost scope first. Labels are unique; names whose latest
// kind is an operator are left out.
func (q *QueryBuilder) Completion(uri string, pos Position) (*CompletionList, error) {
	doc, err := q.Document(uri)
	if err != nil {
		return nil, err
	}

	items := make([]CompletionItem, 0, len(doc.Keywords))
	seen := make(map[string]bool)
	keyword := protocol.CompletionItemKindKeyword
	for _, k := range doc.Keywords {
		if seen[k] {
			continue
		}
		seen[k] = true
		items = append(items, CompletionItem{Label: k, Kind: &keyword})
	}

	scope := doc.Index.ScopeAt(position.FromProtocol(pos))
	for _, id := range doc.Index.Chain(scope) {
		for _, sym := range doc.Index.Identifiers[id] {
			if len(sym.CompletionKinds) == 0 || seen[sym.Name] {
				continue
			}
			kind := sym.CompletionKinds[len(sym.CompletionKinds)-1]
			if kind == protocol.CompletionItemKindOperator {
				continue
			}
			seen[sym.Name] = true
			items = append(items, CompletionItem{Label: sym.Name, Kind: &kind})
		}
	}
	return &CompletionList{IsIncomplete: false, Items: items}, nil
}

// DocumentSymbols returns every definition of uri in document order. A
// symbol's range is the body it opens, else its innermost enclosing scope,
// else the whole document.
func (q *QueryBuilder) DocumentSymbols(uri string) ([]DocumentSymbol, error) {
	doc, err := q.Document(uri)
	if err != nil {
		return nil, err
	}
	ix := doc.Index

	var whole sitter.Range
	if root := doc.Root(); root != nil {
		whole = root.Range()
	}

	defs := make([]Symbol, 0, len(ix.Definitions))
	for _, key := range ix.Keys() {
		defs = append(defs, ix.Definitions[key][0])
	}
	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Location.StartByte < defs[j].Location.StartByte
	})

	out := make([]DocumentSymbol, 0, len(defs))
	for _, def := range defs {
		r := whole
		switch {
		case def.Body != index.Global:
			r = ix.Scopes[def.Body].Range
		case def.Scope != index.Global:
			r = ix.Scopes[def.Scope].Range
		}
		ds := documentSymbol(def, r)
		for _, child := range def.Children {
			ds.Children = append(ds.Children, documentSymbol(child, child.Location))
		}
		out = append(out, ds)
	}
	return out, nil
}

// lastSymbolKind returns the kind of sym's most specific capture, or String
// when no capture gave it one.
func lastSymbolKind(sym Symbol) protocol.SymbolKind {
	if n := len(sym.SymbolKinds); n > 0 {
		return sym.SymbolKinds[n-1]
	}
	return protocol.SymbolKindString
}

func documentSymbol(sym Symbol, r sitter.Range) DocumentSymbol {
	return DocumentSymbol{
		Name:           sym.Name,
		Kind:           lastSymbolKind(sym),
		Range:          position.RangeToProtocol(r),
		SelectionRange: position.RangeToProtocol(sym.Location),
	}
}

// Diagnostics returns the syntax errors of uri.
func (q *QueryBuilder) Diagnostics(uri string) ([]Diagnostic, error) {
	doc, err := q.Document(uri)
	if err != nil {
		return nil, err
	}
	return doc.Diagnostics, nil
}

// Keywords returns the keyword list of uri's language.
func (q *QueryBuilder) Keywords(uri string) ([]string, error) {
	doc, err := q.Document(uri)
	if err != nil {
		return nil, err
	}
	return doc.Keywords, nil
}
