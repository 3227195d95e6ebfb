package tsls

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jward/tsls/internal/assets"
	"github.com/jward/tsls/internal/edit"
	"github.com/jward/tsls/internal/store"
	"github.com/jward/tsls/internal/syntax"
	"github.com/jward/tsls/queries"
)

// Engine owns the open documents and keeps each one's tree, index, and
// diagnostics current as the document changes. Mutations on one URI are
// serialised; reads go through immutable snapshots and never block writers.
type Engine struct {
	store    *store.Store
	provider assets.Provider
	queries  *syntax.QueryCache
	log      zerolog.Logger

	queriesFS  fs.FS
	queriesDir string
	languages  map[string]bool // nil means all languages

	mu     sync.Mutex
	assets map[string]*languageAssets

	// useParallel enables the worker pool in OpenFiles.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will open. Names may be
// canonical ("cpp") or protocol language IDs and aliases ("c++").
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithQueriesFS replaces the bundled query assets with fsys, laid out as
// "<language>/<kind>.scm".
func WithQueriesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.queriesFS = fsys
	}
}

// WithQueriesDir layers the assets under dir over the bundled ones. Files are
// re-read whenever a language's assets are reloaded.
func WithQueriesDir(dir string) Option {
	return func(e *Engine) {
		e.queriesDir = dir
	}
}

// WithProvider sets the asset provider directly, overriding WithQueriesFS and
// WithQueriesDir.
func WithProvider(p assets.Provider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithParallel controls the worker pool used by OpenFiles. When true
// (default), parsing and analysis run on up to GOMAXPROCS goroutines and
// results are published serially. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// New creates an Engine with no open documents.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		store:       store.New(),
		queries:     syntax.NewQueryCache(),
		log:         zerolog.Nop(),
		assets:      make(map[string]*languageAssets),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.languages != nil {
		canonical := make(map[string]bool, len(e.languages))
		for name := range e.languages {
			lang, ok := syntax.LanguageForID(name)
			if !ok {
				return nil, fmt.Errorf("tsls: language %q: %w", name, ErrUnsupportedLanguage)
			}
			canonical[lang] = true
		}
		e.languages = canonical
	}

	if e.provider == nil {
		bundled := e.queriesFS
		if bundled == nil {
			bundled = queries.FS
		}
		e.provider = assets.NewFSProvider(bundled)
		if e.queriesDir != "" {
			e.provider = assets.Layered(assets.NewDirProvider(e.queriesDir), e.provider)
		}
	}
	return e, nil
}

// Snapshot returns an immutable view of every open document.
func (e *Engine) Snapshot() *Snapshot {
	return e.store.Snapshot()
}

// Query returns a QueryBuilder over a snapshot taken now.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{snap: e.store.Snapshot()}
}

// Document returns the current state of uri.
func (e *Engine) Document(uri string) (*Document, bool) {
	return e.store.Get(uri)
}

// resolveLanguage maps a protocol language ID to a canonical language,
// falling back to the URI's file extension.
func (e *Engine) resolveLanguage(uri, languageID string) (string, error) {
	lang, ok := syntax.LanguageForID(languageID)
	if !ok {
		lang, ok = syntax.LanguageForFile(PathFromURI(uri))
	}
	if !ok || (e.languages != nil && !e.languages[lang]) {
		return "", fmt.Errorf("tsls: open %s (language %q): %w", uri, languageID, ErrUnsupportedLanguage)
	}
	return lang, nil
}

// Open parses text as the content of uri and publishes its analysis.
// Opening a URI that is already open replaces it.
func (e *Engine) Open(ctx context.Context, uri, languageID string, version int32, text []byte) (*Document, error) {
	lang, err := e.resolveLanguage(uri, languageID)
	if err != nil {
		e.log.Warn().Str("uri", uri).Str("language", languageID).Msg("unsupported language")
		return nil, err
	}

	unlock := e.store.Lock(uri)
	defer unlock()

	src := bytes.Clone(text)
	if src == nil {
		src = []byte{}
	}
	doc, err := e.parse(ctx, uri, lang, version, src)
	if err != nil {
		return nil, err
	}
	e.store.Put(doc)

	e.log.Debug().
		Str("uri", uri).
		Str("language", lang).
		Int32("version", version).
		Int("diagnostics", len(doc.Diagnostics)).
		Msg("opened")
	return doc, nil
}

// Change applies a batch of content changes to uri. The changes are applied
// in order, each against the result of the previous one, and the tree is
// reparsed once incrementally. Versions not newer than the stored one are
// rejected with ErrStaleEdit. An empty batch returns the current document.
// On any failure the stored document is left untouched.
func (e *Engine) Change(ctx context.Context, uri string, version int32, changes []Change) (*Document, error) {
	unlock := e.store.Lock(uri)
	defer unlock()

	cur, ok := e.store.Get(uri)
	if !ok {
		return nil, fmt.Errorf("tsls: change %s: %w", uri, ErrDocumentNotFound)
	}
	if version <= cur.Version {
		e.log.Warn().
			Str("uri", uri).
			Int32("version", version).
			Int32("stored", cur.Version).
			Msg("dropping stale edit")
		return nil, fmt.Errorf("tsls: change %s: version %d not newer than %d: %w", uri, version, cur.Version, ErrStaleEdit)
	}
	if len(changes) == 0 {
		return cur, nil
	}

	parser, err := syntax.NewParser(cur.LanguageID)
	if err != nil {
		return nil, fmt.Errorf("tsls: change %s: %w", uri, err)
	}
	defer parser.Close()

	// The stored tree belongs to a published document; edit a copy.
	tree := cur.Tree.Copy()
	src, edits := edit.Apply(cur.Source, changes, tree)
	newTree, err := parser.Parse(ctx, src, tree)
	if err != nil {
		return nil, fmt.Errorf("tsls: change %s: %w", uri, err)
	}

	doc := e.analyze(uri, cur.LanguageID, version, src, newTree)
	e.store.Put(doc)

	e.log.Debug().
		Str("uri", uri).
		Int32("version", version).
		Int("edits", len(edits)).
		Int("diagnostics", len(doc.Diagnostics)).
		Msg("changed")
	return doc, nil
}

// Save rebuilds the analysis of uri without editing it. When text is given
// and differs from the stored content, the document is reparsed from text.
func (e *Engine) Save(ctx context.Context, uri string, text *string) (*Document, error) {
	unlock := e.store.Lock(uri)
	defer unlock()

	cur, ok := e.store.Get(uri)
	if !ok {
		return nil, fmt.Errorf("tsls: save %s: %w", uri, ErrDocumentNotFound)
	}

	var doc *Document
	if text != nil && *text != string(cur.Source) {
		var err error
		doc, err = e.parse(ctx, uri, cur.LanguageID, cur.Version, []byte(*text))
		if err != nil {
			return nil, err
		}
	} else {
		doc = e.analyze(uri, cur.LanguageID, cur.Version, cur.Source, cur.Tree)
	}
	e.store.Put(doc)

	e.log.Debug().Str("uri", uri).Int32("version", doc.Version).Msg("saved")
	return doc, nil
}

// Close forgets uri and everything derived from it.
func (e *Engine) Close(uri string) error {
	unlock := e.store.Lock(uri)
	defer unlock()

	if !e.store.Delete(uri) {
		return fmt.Errorf("tsls: close %s: %w", uri, ErrDocumentNotFound)
	}
	e.log.Debug().Str("uri", uri).Msg("closed")
	return nil
}

// Refresh drops the compiled assets of language (all languages when empty)
// and re-analyses the open documents that use it. Call it after query
// assets change on disk.
func (e *Engine) Refresh(ctx context.Context, language string) error {
	e.mu.Lock()
	if language == "" {
		e.assets = make(map[string]*languageAssets)
	} else {
		delete(e.assets, language)
	}
	e.mu.Unlock()

	var n int
	for _, doc := range e.store.Snapshot().Documents() {
		if language != "" && doc.LanguageID != language {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.reanalyze(doc.URI) {
			n++
		}
	}
	e.log.Info().Str("language", language).Int("documents", n).Msg("refreshed query assets")
	return nil
}

func (e *Engine) reanalyze(uri string) bool {
	unlock := e.store.Lock(uri)
	defer unlock()

	cur, ok := e.store.Get(uri)
	if !ok {
		return false
	}
	e.store.Put(e.analyze(uri, cur.LanguageID, cur.Version, cur.Source, cur.Tree))
	return true
}

// parse does a full parse of src and analyses the result.
func (e *Engine) parse(ctx context.Context, uri, lang string, version int32, src []byte) (*Document, error) {
	parser, err := syntax.NewParser(lang)
	if err != nil {
		return nil, fmt.Errorf("tsls: parse %s: %w", uri, err)
	}
	defer parser.Close()
	return e.parseWith(ctx, parser, uri, version, src)
}

func (e *Engine) parseWith(ctx context.Context, parser *syntax.Parser, uri string, version int32, src []byte) (*Document, error) {
	tree, err := parser.Parse(ctx, src, nil)
	if err != nil {
		return nil, fmt.Errorf("tsls: parse %s: %w", uri, err)
	}
	return e.analyze(uri, parser.Language(), version, src, tree), nil
}

// skipDirs holds directory names excluded when walking a directory.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"target":       true,
}

// OpenDirectory opens every supported file under root with version 0. If
// root is inside a git repository, git ls-files is used so that ignored files
// are skipped; otherwise the tree is walked, skipping hidden directories and
// skipDirs.
func (e *Engine) OpenDirectory(ctx context.Context, root string) error {
	paths, err := e.gitListFiles(root)
	if err != nil {
		e.log.Debug().Err(err).Str("root", root).Msg("git unavailable, walking directory")
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	return e.OpenFiles(ctx, paths)
}

// gitListFiles lists tracked and untracked, non-ignored files under root
// that have a supported extension.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := syntax.LanguageForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := syntax.LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tsls: walk %s: %w", root, err)
	}
	return paths, nil
}

// FileURI returns the file:// URI of path, made absolute first.
func FileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// PathFromURI returns the filesystem path of a file:// URI. Other URIs are
// returned unchanged.
func PathFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}
