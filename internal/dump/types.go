package dump

import "time"

// Row types. Line and column fields are 0-based; columns count bytes.

type Document struct {
	ID         int64
	URI        string
	Language   string
	Version    int32
	Hash       string
	ExportedAt time.Time
}

type Scope struct {
	ID            int64
	DocumentID    int64
	Ordinal       int // the scope's ID inside the document index
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	ParentScopeID *int64 // nil for scopes directly under the global scope
}

// Symbol is a definition, or a child member of one when ParentSymbolID is
// set.
type Symbol struct {
	ID             int64
	DocumentID     int64
	ScopeID        *int64 // defining scope; nil is the global scope
	BodyScopeID    *int64 // scope the definition opens, if any
	ParentSymbolID *int64
	Name           string
	Tag            string
	Kind           int // LSP SymbolKind
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
}

// Occurrence is one appearance of a symbol's name: its definition or a
// reference resolved to it.
type Occurrence struct {
	ID         int64
	SymbolID   int64
	DocumentID int64
	Definition bool
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

type Diagnostic struct {
	ID         int64
	DocumentID int64
	Message    string
	Severity   int
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}
