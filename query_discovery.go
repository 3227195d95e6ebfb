package tsls

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls/internal/index"
)

// --- Common Types ---

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByName     SortField = "name"
	SortByKind     SortField = "kind"
	SortByFile     SortField = "file"
	SortByRefCount SortField = "ref_count"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// SymbolResult is one definition of an open document, with the number of
// references that resolve to it inside that document.
type SymbolResult struct {
	URI        string
	LanguageID string
	Name       string
	Tag        string // capture tag, e.g. "function" or "parameter"
	Kind       protocol.SymbolKind
	Location   Location
	Global     bool // declared in the document's outermost scope
	RefCount   int
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// SymbolFilter specifies which symbols to include. Zero fields match
// everything.
type SymbolFilter struct {
	Tags       []string // match any of these tags
	Languages  []string // match any of these languages
	URIPrefix  *string  // restrict to documents under this URI prefix
	GlobalOnly bool
}

// --- Internal Helpers ---

// normalizeURIPrefix ensures a prefix ends with "/" so that "file:///a/b"
// does not match "file:///a/bc/x.go".
func normalizeURIPrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

// globPattern compiles a case-insensitive whole-name pattern where '*' is the
// only wildcard.
func globPattern(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("(?i)^" + strings.Join(parts, ".*") + "$")
}

func (f SymbolFilter) matches(doc *Document, res *SymbolResult) bool {
	if len(f.Languages) > 0 && !slices.Contains(f.Languages, doc.LanguageID) {
		return false
	}
	if f.URIPrefix != nil {
		if prefix := normalizeURIPrefix(*f.URIPrefix); prefix != "" && !strings.HasPrefix(doc.URI, prefix) {
			return false
		}
	}
	if len(f.Tags) > 0 && !slices.Contains(f.Tags, res.Tag) {
		return false
	}
	return !f.GlobalOnly || res.Global
}

// collect returns every definition in the snapshot accepted by filter and
// match.
func (q *QueryBuilder) collect(filter SymbolFilter, match func(name string) bool) []SymbolResult {
	var out []SymbolResult
	for _, doc := range q.snap.Documents() {
		for _, key := range doc.Index.Keys() {
			if match != nil && !match(key.Name) {
				continue
			}
			res := symbolResult(doc, key)
			if filter.matches(doc, &res) {
				out = append(out, res)
			}
		}
	}
	return out
}

func symbolResult(doc *Document, key index.Key) SymbolResult {
	syms := doc.Index.Definitions[key]
	def := syms[0]
	return SymbolResult{
		URI:        doc.URI,
		LanguageID: doc.LanguageID,
		Name:       def.Name,
		Tag:        def.Tag.String(),
		Kind:       lastSymbolKind(def),
		Location:   location(doc.URI, def.Location),
		Global:     key.Scope == index.Global,
		RefCount:   len(syms) - 1,
	}
}

func sortResults(items []SymbolResult, s Sort) {
	compare := func(a, b SymbolResult) int {
		switch s.Field {
		case SortByKind:
			return cmp.Compare(a.Tag, b.Tag)
		case SortByFile:
			return cmp.Compare(a.URI, b.URI)
		case SortByRefCount:
			return cmp.Compare(a.RefCount, b.RefCount)
		default:
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}
	slices.SortStableFunc(items, func(a, b SymbolResult) int {
		c := compare(a, b)
		if s.Order == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		// Ties fall back to document order.
		if c = cmp.Compare(a.URI, b.URI); c != 0 {
			return c
		}
		return comparePosition(a.Location.Range.Start, b.Location.Range.Start)
	})
}

func comparePosition(a, b protocol.Position) int {
	if c := cmp.Compare(a.Line, b.Line); c != 0 {
		return c
	}
	return cmp.Compare(a.Character, b.Character)
}

func paginate(items []SymbolResult, page Pagination) *PagedResult[SymbolResult] {
	page = page.normalize()
	total := len(items)
	start := min(page.Offset, total)
	end := min(start+page.Limit, total)
	return &PagedResult[SymbolResult]{Items: append([]SymbolResult{}, items[start:end]...), TotalCount: total}
}

// --- Enumeration Endpoints ---

// Symbols is the primary listing/filtering endpoint over the definitions of
// every open document. All filter fields are optional.
func (q *QueryBuilder) Symbols(filter SymbolFilter, sort Sort, page Pagination) (*PagedResult[SymbolResult], error) {
	items := q.collect(filter, nil)
	sortResults(items, sort)
	return paginate(items, page), nil
}

// --- Search ---

// SearchSymbols performs glob-style search on symbol names. '*' is the
// wildcard and matching ignores case. An empty pattern or "*" matches
// everything.
func (q *QueryBuilder) SearchSymbols(pattern string, filter SymbolFilter, sort Sort, page Pagination) (*PagedResult[SymbolResult], error) {
	var match func(string) bool
	if pattern != "" && pattern != "*" {
		match = globPattern(pattern).MatchString
	}
	items := q.collect(filter, match)
	sortResults(items, sort)
	return paginate(items, page), nil
}

// WorkspaceSymbols answers workspace/symbol: a substring search over global
// definitions, or over every definition when query contains a '*'.
func (q *QueryBuilder) WorkspaceSymbols(query string) ([]protocol.SymbolInformation, error) {
	filter := SymbolFilter{GlobalOnly: true}
	pattern := "*" + query + "*"
	if strings.Contains(query, "*") {
		filter.GlobalOnly = false
		pattern = query
	}
	res, err := q.SearchSymbols(pattern, filter, Sort{Field: SortByName}, Pagination{Limit: maxLimit})
	if err != nil {
		return nil, err
	}
	out := make([]protocol.SymbolInformation, 0, len(res.Items))
	for _, r := range res.Items {
		out = append(out, protocol.SymbolInformation{Name: r.Name, Kind: r.Kind, Location: r.Location})
	}
	return out, nil
}

// --- Digest Endpoints ---

// LanguageStats provides per-language breakdown for Summary.
type LanguageStats struct {
	Language        string
	DocumentCount   int
	SymbolCount     int
	DiagnosticCount int
	TagCounts       map[string]int
}

// Summary provides a high-level overview of the open documents.
type Summary struct {
	Languages  []LanguageStats
	TopSymbols []SymbolResult
}

// Summary returns per-language counts and the topN symbols with the most
// references.
func (q *QueryBuilder) Summary(topN int) (*Summary, error) {
	byLang := make(map[string]*LanguageStats)
	for _, doc := range q.snap.Documents() {
		ls, ok := byLang[doc.LanguageID]
		if !ok {
			ls = &LanguageStats{Language: doc.LanguageID, TagCounts: make(map[string]int)}
			byLang[doc.LanguageID] = ls
		}
		ls.DocumentCount++
		ls.DiagnosticCount += len(doc.Diagnostics)
		for _, key := range doc.Index.Keys() {
			ls.SymbolCount++
			ls.TagCounts[doc.Index.Definitions[key][0].Tag.String()]++
		}
	}

	summary := &Summary{Languages: []LanguageStats{}, TopSymbols: []SymbolResult{}}
	for _, ls := range byLang {
		summary.Languages = append(summary.Languages, *ls)
	}
	slices.SortFunc(summary.Languages, func(a, b LanguageStats) int {
		return cmp.Compare(a.Language, b.Language)
	})

	if topN > 0 {
		items := q.collect(SymbolFilter{}, nil)
		items = slices.DeleteFunc(items, func(r SymbolResult) bool { return r.RefCount == 0 })
		sortResults(items, Sort{Field: SortByRefCount, Order: Desc})
		summary.TopSymbols = append(summary.TopSymbols, items[:min(topN, len(items))]...)
	}
	return summary, nil
}
