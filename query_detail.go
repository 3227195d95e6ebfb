package tsls

import (
	"github.com/jward/tsls/internal/index"
	"github.com/jward/tsls/internal/position"
)

// SymbolDetail bundles the definition a name resolves to with its
// structure. One call replaces a definition lookup, a reference count and a
// scope walk.
type SymbolDetail struct {
	Symbol   SymbolResult   // the definition with its reference count
	Children []SymbolResult // members declared by it, e.g. struct fields (empty if none)
	Scopes   []Range        // scopes enclosing the definition, innermost first
}

// SymbolDetailAt returns the detail of the definition the name at pos
// resolves to. Returns nil with no error if the name does not resolve.
func (q *QueryBuilder) SymbolDetailAt(uri string, pos Position) (*SymbolDetail, error) {
	doc, err := q.Document(uri)
	if err != nil {
		return nil, err
	}
	name, r, ok := nameAt(doc, pos)
	if !ok {
		return nil, nil
	}
	ix := doc.Index
	key, syms, ok := ix.Lookup(name, r)
	if !ok {
		return nil, nil
	}
	def := syms[0]

	detail := &SymbolDetail{
		Symbol:   symbolResult(doc, key),
		Children: []SymbolResult{},
		Scopes:   scopeRanges(ix, key.Scope),
	}
	for _, child := range def.Children {
		detail.Children = append(detail.Children, childResult(doc, child))
	}
	return detail, nil
}

// ScopeAt returns the scopes containing pos, innermost first. The global
// scope is not listed, so a position outside every scope yields an empty
// slice.
func (q *QueryBuilder) ScopeAt(uri string, pos Position) ([]Range, error) {
	doc, err := q.Document(uri)
	if err != nil {
		return nil, err
	}
	p := position.FromProtocol(pos)
	return scopeRanges(doc.Index, doc.Index.ScopeAt(p)), nil
}

func scopeRanges(ix *index.Index, scope int) []Range {
	out := []Range{}
	for _, id := range ix.Chain(scope) {
		if id == index.Global {
			continue
		}
		out = append(out, position.RangeToProtocol(ix.Scopes[id].Range))
	}
	return out
}

// childResult describes a child symbol. A child that is itself indexed as a
// definition reports that definition's reference count.
func childResult(doc *Document, child Symbol) SymbolResult {
	if key, syms, ok := doc.Index.Lookup(child.Name, child.Location); ok && syms[0].Location == child.Location {
		return symbolResult(doc, key)
	}
	return SymbolResult{
		URI:        doc.URI,
		LanguageID: doc.LanguageID,
		Name:       child.Name,
		Tag:        child.Tag.String(),
		Kind:       lastSymbolKind(child),
		Location:   location(doc.URI, child.Location),
	}
}
