package tsls

import (
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tsls/internal/assets"
	"github.com/jward/tsls/internal/classify"
	"github.com/jward/tsls/internal/diagnostics"
	"github.com/jward/tsls/internal/index"
	"github.com/jward/tsls/internal/store"
	"github.com/jward/tsls/internal/syntax"
)

// languageAssets is the compiled query set of one language. A query that is
// missing or failed to compile is nil and its pass is skipped.
type languageAssets struct {
	queries  index.Queries
	errors   *sitter.Query
	keywords []string
	err      error
}

func (e *Engine) assetsFor(lang string) *languageAssets {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a, ok := e.assets[lang]; ok {
		return a
	}
	a := e.loadAssets(lang)
	e.assets[lang] = a
	return a
}

func (e *Engine) loadAssets(lang string) *languageAssets {
	var errs []error
	compile := func(kind assets.Kind) (*sitter.Query, string) {
		src, ok := e.provider.Source(lang, kind)
		if !ok {
			return nil, ""
		}
		q, err := e.queries.Compile(lang, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("tsls: %s: %w", assets.AssetPath(lang, kind), err))
			return nil, src
		}
		return q, src
	}

	a := &languageAssets{}
	var highlights string
	a.queries.Locals, _ = compile(assets.KindLocals)
	a.queries.Highlights, highlights = compile(assets.KindHighlights)
	a.queries.Children, _ = compile(assets.KindChildren)
	// Indents are not used for analysis but are still checked.
	compile(assets.KindIndents)

	q, err := e.queries.Compile(lang, diagnostics.ErrorQuery)
	if err != nil {
		errs = append(errs, fmt.Errorf("tsls: error query: %w", err))
	}
	a.errors = q
	a.keywords = classify.Keywords(highlights)
	a.err = errors.Join(errs...)

	if a.err != nil {
		e.log.Error().Err(a.err).Str("language", lang).Msg("query assets failed to compile")
	} else {
		e.log.Debug().Str("language", lang).Int("keywords", len(a.keywords)).Msg("loaded query assets")
	}
	return a
}

// analyze derives the index, diagnostics, and keywords of a parsed document.
func (e *Engine) analyze(uri, lang string, version int32, src []byte, tree *sitter.Tree) *Document {
	a := e.assetsFor(lang)
	root := tree.RootNode()
	return &store.Document{
		URI:         uri,
		LanguageID:  lang,
		Version:     version,
		Source:      src,
		Tree:        tree,
		Hash:        store.ContentHash(src),
		Index:       index.Build(root, src, a.queries),
		Diagnostics: diagnostics.Extract(a.errors, root, src),
		Keywords:    a.keywords,
	}
}

// CompileQueries compiles every query asset of language and returns the
// failures joined, each wrapping ErrQueryCompile.
func (e *Engine) CompileQueries(language string) error {
	lang, ok := syntax.LanguageForID(language)
	if !ok {
		return fmt.Errorf("tsls: language %q: %w", language, ErrUnsupportedLanguage)
	}
	return e.assetsFor(lang).err
}

// Keywords returns the keyword list derived from language's highlights
// query.
func (e *Engine) Keywords(language string) ([]string, error) {
	lang, ok := syntax.LanguageForID(language)
	if !ok {
		return nil, fmt.Errorf("tsls: language %q: %w", language, ErrUnsupportedLanguage)
	}
	return e.assetsFor(lang).keywords, nil
}
