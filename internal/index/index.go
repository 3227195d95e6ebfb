// Package index builds the per-document scope and symbol tables from the
// locals, children, and highlights queries of a language.
//
// Scopes are numbered in the order the locals query reports them, starting
// at 1; scope 0 is the implicit global scope covering the whole document.
// Definitions are keyed by (name, defining scope). Each key holds the
// definition at element 0 followed by every reference resolved to it.
package index

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls/internal/classify"
	"github.com/jward/tsls/internal/position"
	"github.com/jward/tsls/internal/syntax"
)

// Global is the ID of the implicit document-wide scope.
const Global = 0

const (
	captureScope      = "scope"
	captureReference  = "reference"
	captureDefinition = "definition"
	captureParent     = "parent"
	captureChild      = "child"
)

// Scope is a lexical scope. Parent is the innermost other scope containing
// it, or Global.
type Scope struct {
	ID     int
	Range  sitter.Range
	Parent int
}

// Symbol is one occurrence of a name.
type Symbol struct {
	Name     string
	Location sitter.Range
	Tag      classify.Tag

	// Scope is the smallest scope enclosing the occurrence. Body is the
	// scope a definition opens (a function or class body), or Global.
	Scope int
	Body  int

	CompletionKinds []protocol.CompletionItemKind
	SymbolKinds     []protocol.SymbolKind
	EnclosingScopes []int
	Children        []Symbol
}

// Key identifies a definition: its name and the scope it is defined in.
type Key struct {
	Name  string
	Scope int
}

// Queries holds the compiled queries an index is built from. Any may be nil;
// the corresponding pass is then skipped.
type Queries struct {
	Locals     *sitter.Query
	Highlights *sitter.Query
	Children   *sitter.Query
}

type span struct{ start, end uint32 }

func spanOf(r sitter.Range) span { return span{r.StartByte, r.EndByte} }

// Index is the immutable analysis result for one parse tree.
type Index struct {
	Scopes      []Scope
	Definitions map[Key][]Symbol
	Identifiers map[int][]Symbol

	keys        []Key
	occurrences map[span]Key
}

// Build indexes the tree rooted at root.
func Build(root *sitter.Node, src []byte, q Queries) *Index {
	ix := &Index{
		Definitions: make(map[Key][]Symbol),
		Identifiers: make(map[int][]Symbol),
		occurrences: make(map[span]Key),
	}
	if root == nil {
		ix.Scopes = []Scope{{ID: Global}}
		return ix
	}
	ix.Scopes = []Scope{{ID: Global, Range: root.Range(), Parent: Global}}

	locals := syntax.MatchAll(q.Locals, root, src)
	ix.buildScopes(locals)
	ix.buildDefinitions(locals, src)
	ix.buildReferences(locals, src)
	ix.buildChildren(syntax.MatchAll(q.Children, root, src), src)
	ix.buildIdentifiers(syntax.CaptureAll(q.Highlights, root, src), src)
	return ix
}

func (ix *Index) buildScopes(matches []syntax.Match) {
	seen := make(map[span]bool)
	for _, m := range matches {
		for _, c := range m {
			if c.Name != captureScope {
				continue
			}
			r := c.Node.Range()
			if seen[spanOf(r)] {
				continue
			}
			seen[spanOf(r)] = true
			ix.Scopes = append(ix.Scopes, Scope{ID: len(ix.Scopes), Range: r})
		}
	}
	for i := 1; i < len(ix.Scopes); i++ {
		ix.Scopes[i].Parent = ix.parentScope(ix.Scopes[i].Range)
	}
}

// parentScope returns the smallest other scope that r nests in, or Global.
func (ix *Index) parentScope(r sitter.Range) int {
	best := Global
	var bestSize uint32
	for _, s := range ix.Scopes[1:] {
		if !nestsIn(s.Range, r) {
			continue
		}
		size := s.Range.EndByte - s.Range.StartByte
		if best == Global || size < bestSize {
			best, bestSize = s.ID, size
		}
	}
	return best
}

func (ix *Index) buildDefinitions(matches []syntax.Match, src []byte) {
	for _, m := range matches {
		body := Global
		if n, ok := m.Get(captureScope); ok {
			body = ix.scopeWithRange(n.Range())
		}
		for _, c := range m {
			kind, ok := definitionKind(c.Name)
			if !ok {
				continue
			}
			r := c.Node.Range()
			if _, dup := ix.occurrences[spanOf(r)]; dup {
				continue
			}
			scope := ix.SmallestEnclosingScope(r)
			if body != Global && scope == body {
				// The name of a function or class belongs to the scope
				// around it, not to its own body.
				scope = ix.Scopes[body].Parent
			}
			key := Key{Name: c.Node.Content(src), Scope: scope}
			if _, exists := ix.Definitions[key]; exists {
				continue
			}
			tag := classify.DefinitionTag(kind)
			ix.Definitions[key] = []Symbol{{
				Name:            key.Name,
				Location:        r,
				Tag:             tag,
				Scope:           scope,
				Body:            body,
				CompletionKinds: []protocol.CompletionItemKind{tag.CompletionKind()},
				SymbolKinds:     []protocol.SymbolKind{tag.SymbolKind()},
				EnclosingScopes: ix.enclosingScopes(scope),
			}}
			ix.keys = append(ix.keys, key)
			ix.occurrences[spanOf(r)] = key
		}
	}
}

func (ix *Index) buildReferences(matches []syntax.Match, src []byte) {
	for _, m := range matches {
		for _, c := range m {
			if c.Name != captureReference {
				continue
			}
			r := c.Node.Range()
			if _, ok := ix.occurrences[spanOf(r)]; ok {
				continue
			}
			name := c.Node.Content(src)
			scope := ix.SmallestEnclosingScope(r)
			key, ok := ix.Resolve(name, scope)
			if !ok {
				continue
			}
			def := ix.Definitions[key][0]
			ix.Definitions[key] = append(ix.Definitions[key], Symbol{
				Name:            name,
				Location:        r,
				Tag:             def.Tag,
				Scope:           scope,
				CompletionKinds: def.CompletionKinds,
				SymbolKinds:     def.SymbolKinds,
				EnclosingScopes: ix.enclosingScopes(scope),
			})
			ix.occurrences[spanOf(r)] = key
		}
	}
}

func (ix *Index) buildChildren(matches []syntax.Match, src []byte) {
	for _, m := range matches {
		parent, ok := m.Get(captureParent)
		if !ok {
			continue
		}
		key, ok := ix.occurrences[spanOf(parent.Range())]
		if !ok {
			continue
		}
		owner := &ix.Definitions[key][0]
		if spanOf(owner.Location) != spanOf(parent.Range()) {
			continue
		}
		for _, c := range m {
			kind, ok := strings.CutPrefix(c.Name, captureChild+".")
			if !ok {
				continue
			}
			r := c.Node.Range()
			if hasChildAt(owner.Children, r) {
				continue
			}
			tag := classify.ParseTag(kind)
			scope := ix.SmallestEnclosingScope(r)
			owner.Children = append(owner.Children, Symbol{
				Name:            c.Node.Content(src),
				Location:        r,
				Tag:             tag,
				Scope:           scope,
				CompletionKinds: []protocol.CompletionItemKind{tag.CompletionKind()},
				SymbolKinds:     []protocol.SymbolKind{tag.SymbolKind()},
				EnclosingScopes: ix.enclosingScopes(scope),
			})
		}
	}
}

func hasChildAt(children []Symbol, r sitter.Range) bool {
	for _, c := range children {
		if spanOf(c.Location) == spanOf(r) {
			return true
		}
	}
	return false
}

// buildIdentifiers groups highlighted names by (scope, name), merging the
// kinds of every occurrence into the first.
func (ix *Index) buildIdentifiers(captures []syntax.Capture, src []byte) {
	type slot struct {
		scope int
		name  string
	}
	pos := make(map[slot]int)
	for _, c := range captures {
		if !c.Node.IsNamed() || c.Node.Type() == "comment" {
			continue
		}
		tag := classify.ParseTag(c.Name)
		if tag.IsLiteral() {
			continue
		}
		name := c.Node.Content(src)
		if name == "" {
			continue
		}
		r := c.Node.Range()
		scope := ix.SmallestEnclosingScope(r)
		if key, ok := ix.occurrences[spanOf(r)]; ok && spanOf(ix.Definitions[key][0].Location) == spanOf(r) {
			scope = key.Scope
		}
		k := slot{scope, name}
		if i, ok := pos[k]; ok {
			sym := &ix.Identifiers[scope][i]
			sym.CompletionKinds = append(sym.CompletionKinds, tag.CompletionKind())
			sym.SymbolKinds = append(sym.SymbolKinds, tag.SymbolKind())
			continue
		}
		pos[k] = len(ix.Identifiers[scope])
		ix.Identifiers[scope] = append(ix.Identifiers[scope], Symbol{
			Name:            name,
			Location:        r,
			Tag:             tag,
			Scope:           scope,
			CompletionKinds: []protocol.CompletionItemKind{tag.CompletionKind()},
			SymbolKinds:     []protocol.SymbolKind{tag.SymbolKind()},
			EnclosingScopes: ix.enclosingScopes(scope),
		})
	}
}

func definitionKind(capture string) (string, bool) {
	if capture == captureDefinition {
		return "", true
	}
	return strings.CutPrefix(capture, captureDefinition+".")
}

// strictlyContains reports whether inner lies inside outer without touching
// either of its boundaries.
func strictlyContains(outer, inner sitter.Range) bool {
	return outer.StartByte < inner.StartByte && inner.EndByte < outer.EndByte
}

// nestsIn reports whether scope inner sits inside scope outer. A function
// scope and its body share an end byte, so only identical spans are
// excluded.
func nestsIn(outer, inner sitter.Range) bool {
	return position.Contains(outer, inner) && spanOf(outer) != spanOf(inner)
}

func (ix *Index) scopeWithRange(r sitter.Range) int {
	for _, s := range ix.Scopes[1:] {
		if spanOf(s.Range) == spanOf(r) {
			return s.ID
		}
	}
	return Global
}

// SmallestEnclosingScope returns the innermost scope that strictly contains
// r, or Global. A range sharing a boundary with a scope is not inside it, so
// the return type that opens a function definition belongs to the scope
// around the function.
func (ix *Index) SmallestEnclosingScope(r sitter.Range) int {
	best := Global
	var bestSize uint32
	for _, s := range ix.Scopes[1:] {
		if !strictlyContains(s.Range, r) {
			continue
		}
		size := s.Range.EndByte - s.Range.StartByte
		if best == Global || size < bestSize {
			best, bestSize = s.ID, size
		}
	}
	return best
}

// ScopeAt returns the innermost scope whose range contains p, or Global.
func (ix *Index) ScopeAt(p sitter.Point) int {
	best := Global
	var bestSize uint32
	for _, s := range ix.Scopes[1:] {
		if !position.ContainsPoint(s.Range, p) {
			continue
		}
		size := s.Range.EndByte - s.Range.StartByte
		if best == Global || size <= bestSize {
			best, bestSize = s.ID, size
		}
	}
	return best
}

// Chain returns scope followed by each of its ancestors, ending with Global.
// An unknown scope yields just Global.
func (ix *Index) Chain(scope int) []int {
	if scope <= Global || scope >= len(ix.Scopes) {
		return []int{Global}
	}
	var chain []int
	for id := scope; id != Global; id = ix.Scopes[id].Parent {
		chain = append(chain, id)
	}
	return append(chain, Global)
}

// enclosingScopes lists the non-global scopes around an occurrence from the
// outermost inwards. Global occurrences in a document that has scopes report
// the outermost one.
func (ix *Index) enclosingScopes(scope int) []int {
	if scope == Global {
		for _, s := range ix.Scopes[1:] {
			if s.Parent == Global {
				return []int{s.ID}
			}
		}
		return nil
	}
	chain := ix.Chain(scope)
	out := make([]int, 0, len(chain)-1)
	for i := len(chain) - 2; i >= 0; i-- {
		out = append(out, chain[i])
	}
	return out
}

// Resolve finds the definition of name visible from scope, walking outward
// through the scope chain. The innermost match wins.
func (ix *Index) Resolve(name string, scope int) (Key, bool) {
	for _, id := range ix.Chain(scope) {
		key := Key{Name: name, Scope: id}
		if _, ok := ix.Definitions[key]; ok {
			return key, true
		}
	}
	return Key{}, false
}

// Lookup returns the definition key and occurrences for the name occupying
// r. An occurrence recorded at exactly r is used directly; otherwise name is
// resolved from the scope around r.
func (ix *Index) Lookup(name string, r sitter.Range) (Key, []Symbol, bool) {
	key, ok := ix.occurrences[spanOf(r)]
	if !ok || key.Name != name {
		key, ok = ix.Resolve(name, ix.SmallestEnclosingScope(r))
		if !ok {
			return Key{}, nil, false
		}
	}
	return key, ix.Definitions[key], true
}

// Keys returns every definition key in the order definitions were found.
func (ix *Index) Keys() []Key {
	out := make([]Key, len(ix.keys))
	copy(out, ix.keys)
	return out
}
