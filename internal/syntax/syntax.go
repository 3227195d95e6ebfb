// Package syntax wraps tree-sitter parsing and pattern queries: the grammar
// registry, a per-language parser, a compiled-query cache, and match/capture
// helpers that apply text predicates.
package syntax

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var (
	// ErrUnsupportedLanguage is returned when no grammar is registered for a
	// language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrQueryCompile is returned when a query source fails to compile
	// against its language's grammar.
	ErrQueryCompile = errors.New("query compile failure")
)

// Parser parses source for a single language. A Parser is not safe for
// concurrent use; create one per goroutine.
type Parser struct {
	language string
	parser   *sitter.Parser
}

// NewParser returns a parser for a canonical language name.
func NewParser(language string) (*Parser, error) {
	grammar, ok := GrammarForLanguage(language)
	if !ok {
		return nil, fmt.Errorf("syntax: %q: %w", language, ErrUnsupportedLanguage)
	}
	p := sitter.NewParser()
	p.SetLanguage(grammar)
	return &Parser{language: language, parser: p}, nil
}

// Language returns the canonical language name the parser was created for.
func (p *Parser) Language() string { return p.language }

// Parse parses src. When old is non-nil it must already carry every edit that
// turned its source into src; unchanged subtrees are then reused.
func (p *Parser) Parse(ctx context.Context, src []byte, old *sitter.Tree) (*sitter.Tree, error) {
	tree, err := p.parser.ParseCtx(ctx, old, src)
	if err != nil {
		return nil, fmt.Errorf("syntax: parse %s: %w", p.language, err)
	}
	return tree, nil
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.parser.Close()
}

// Capture is a single named node produced by a query.
type Capture struct {
	Name string
	Node *sitter.Node
}

// Match is the set of captures produced by one pattern match, in capture
// order.
type Match []Capture

// Get returns the first capture in m with the given name.
func (m Match) Get(name string) (*sitter.Node, bool) {
	for _, c := range m {
		if c.Name == name {
			return c.Node, true
		}
	}
	return nil, false
}

// MatchAll runs q over the subtree rooted at root and returns every match
// whose predicates hold, in the order the query cursor produces them.
func MatchAll(q *sitter.Query, root *sitter.Node, src []byte) []Match {
	if q == nil || root == nil {
		return nil
	}
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, root)

	var matches []Match
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		m = cursor.FilterPredicates(m, src)
		if len(m.Captures) == 0 {
			continue
		}
		match := make(Match, 0, len(m.Captures))
		for _, c := range m.Captures {
			match = append(match, Capture{Name: q.CaptureNameForId(c.Index), Node: c.Node})
		}
		matches = append(matches, match)
	}
	return matches
}

// CaptureAll returns every capture of every match, ordered by start byte.
// Captures that start at the same byte keep their match order.
func CaptureAll(q *sitter.Query, root *sitter.Node, src []byte) []Capture {
	var captures []Capture
	for _, m := range MatchAll(q, root, src) {
		captures = append(captures, m...)
	}
	sort.SliceStable(captures, func(i, j int) bool {
		return captures[i].Node.StartByte() < captures[j].Node.StartByte()
	})
	return captures
}

type queryKey struct {
	language string
	hash     [sha256.Size]byte
}

// QueryCache compiles query sources once per (language, source) pair. It is
// safe for concurrent use, and compiled queries may be shared by concurrent
// cursors.
type QueryCache struct {
	mu      sync.Mutex
	queries map[queryKey]*sitter.Query
}

// NewQueryCache returns an empty cache.
func NewQueryCache() *QueryCache {
	return &QueryCache{queries: make(map[queryKey]*sitter.Query)}
}

// Compile returns the compiled query for source in language. Failures wrap
// ErrQueryCompile or ErrUnsupportedLanguage and are not cached.
func (c *QueryCache) Compile(language, source string) (*sitter.Query, error) {
	key := queryKey{language: language, hash: sha256.Sum256([]byte(source))}

	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queries[key]; ok {
		return q, nil
	}

	grammar, ok := GrammarForLanguage(language)
	if !ok {
		return nil, fmt.Errorf("syntax: %q: %w", language, ErrUnsupportedLanguage)
	}
	q, err := sitter.NewQuery([]byte(source), grammar)
	if err != nil {
		return nil, fmt.Errorf("syntax: %s: %w: %v", language, ErrQueryCompile, err)
	}
	c.queries[key] = q
	return q, nil
}

// Len returns the number of compiled queries held.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries)
}
