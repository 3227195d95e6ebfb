package tsls

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls/internal/diagnostics"
	"github.com/jward/tsls/internal/edit"
	"github.com/jward/tsls/internal/index"
	"github.com/jward/tsls/internal/store"
)

// Public type aliases for the internal types used by the Engine and
// QueryBuilder APIs. No conversion is needed between the two names.

type Document = store.Document
type Snapshot = store.Snapshot
type Change = edit.Change
type Diagnostic = diagnostics.Diagnostic
type Index = index.Index
type Symbol = index.Symbol
type Key = index.Key

type Position = protocol.Position
type Range = protocol.Range
type Location = protocol.Location
type CompletionItem = protocol.CompletionItem
type CompletionList = protocol.CompletionList
type DocumentSymbol = protocol.DocumentSymbol
type WorkspaceEdit = protocol.WorkspaceEdit
type TextEdit = protocol.TextEdit
