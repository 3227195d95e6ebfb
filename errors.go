package tsls

import (
	"errors"

	"github.com/jward/tsls/internal/store"
	"github.com/jward/tsls/internal/syntax"
)

// Sentinel errors. Test with errors.Is; returned errors wrap these with
// context.
var (
	// ErrUnsupportedLanguage means no grammar is available for a document's
	// language, or the language is excluded by WithLanguages.
	ErrUnsupportedLanguage = syntax.ErrUnsupportedLanguage

	// ErrQueryCompile means a query asset failed to compile. Only the
	// affected language loses the dependent features.
	ErrQueryCompile = syntax.ErrQueryCompile

	// ErrStaleEdit means a change was not newer than the stored version and
	// was dropped.
	ErrStaleEdit = store.ErrStaleEdit

	// ErrDocumentNotFound means the URI is not open.
	ErrDocumentNotFound = store.ErrDocumentNotFound

	// ErrInvalidRename means the requested new name is not an identifier.
	ErrInvalidRename = errors.New("invalid rename")
)
