// Package runtime runs Risor scripts against an Engine. Scripts open and
// edit documents, ask the same questions an editor would, and can parse and
// query raw trees or inspect an exported SQLite dump.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/rs/zerolog"

	"github.com/jward/tsls"
	"github.com/jward/tsls/internal/dump"
)

// Runtime embeds a Risor VM and exposes tree-sitter helpers and Engine
// operations to scripts.
type Runtime struct {
	engine     *tsls.Engine
	dump       *dump.Store
	scriptsDir string
	fsys       fs.FS
	trees      *treeRegistry
	log        zerolog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts and resolves imports from fsys instead of
// the scripts directory.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger routes the script-visible log object to log.
func WithLogger(log zerolog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.log = log
	}
}

// WithDumpStore exposes export and db_query backed by s.
func WithDumpStore(s *dump.Store) RuntimeOption {
	return func(r *Runtime) {
		r.dump = s
	}
}

// NewRuntime creates a Runtime over e. A nil engine leaves only the raw
// tree helpers available.
func NewRuntime(e *tsls.Engine, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		engine:     e,
		scriptsDir: scriptsDir,
		trees:      newTreeRegistry(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.log.Debug().Str("script", label).Msg("running script")
	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns nil if neither an fs.FS nor a scripts directory is
// configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file. Relative paths are taken from the fs.FS
// when one is configured, otherwise from the scripts directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"parse":      makeParseFn(r.trees),
		"parse_src":  makeParseSrcFn(r.trees),
		"node_text":  makeNodeTextFn(r.trees),
		"node_child": makeNodeChildFn(),
		"query":      makeQueryFn(r.trees),
		"log":        mustProxy(&logObject{log: r.log}),
	}

	if r.engine != nil {
		e := r.engine

		// Document lifecycle
		globals["open_file"] = makeOpenFileFn(e)
		globals["open_src"] = makeOpenSrcFn(e)
		globals["change"] = makeChangeFn(e)
		globals["close_doc"] = makeCloseFn(e)
		globals["documents"] = makeDocumentsFn(e)

		// Editor queries
		globals["definition"] = makeDefinitionFn(e)
		globals["references"] = makeReferencesFn(e)
		globals["rename"] = makeRenameFn(e)
		globals["completion"] = makeCompletionFn(e)
		globals["symbols"] = makeSymbolsFn(e)
		globals["search"] = makeSearchFn(e)
		globals["detail"] = makeDetailFn(e)
		globals["unused"] = makeUnusedFn(e)
		globals["diagnostics"] = makeDiagnosticsFn(e)
		globals["keywords"] = makeKeywordsFn(e)
	}

	if r.dump != nil {
		globals["db_query"] = makeDBQueryFn(r.dump)
		if r.engine != nil {
			globals["export"] = makeExportFn(r.engine, r.dump, r.log)
		}
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
