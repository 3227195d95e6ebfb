package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/risor-io/risor/object"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls"
	"github.com/jward/tsls/internal/position"
)

// Engine host functions. Positions are 0-based (line, column) pairs as in
// the protocol; results are returned as lists of plain maps.

func makeOpenFileFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("open_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("open_file", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("open_file: %v", err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return object.Errorf("open_file: %v", err)
		}
		src, err := os.ReadFile(abs)
		if err != nil {
			return object.Errorf("open_file: reading %s: %v", path, err)
		}
		doc, err := e.Open(ctx, tsls.FileURI(abs), "", 0, src)
		if err != nil {
			return object.Errorf("open_file: %v", err)
		}
		return documentToMap(doc)
	})
}

// open_src(uri, language, text) → document
func makeOpenSrcFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("open_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("open_src", 3, len(args))
		}
		uri, lang, text, err := threeStrings(args)
		if err != nil {
			return object.Errorf("open_src: %v", err)
		}
		doc, err := e.Open(ctx, uri, lang, 1, []byte(text))
		if err != nil {
			return object.Errorf("open_src: %v", err)
		}
		return documentToMap(doc)
	})
}

// change(uri, version, start_line, start_col, end_line, end_col, text) → document
//
// change(uri, version, text) replaces the whole document.
func makeChangeFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("change", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 && len(args) != 7 {
			return object.Errorf("change: expected 3 or 7 arguments, got %d", len(args))
		}
		uri, err := toString(args[0])
		if err != nil {
			return object.Errorf("change: uri: %v", err)
		}
		version, err := toInt64(args[1])
		if err != nil {
			return object.Errorf("change: version: %v", err)
		}
		text, err := toString(args[len(args)-1])
		if err != nil {
			return object.Errorf("change: text: %v", err)
		}

		change := tsls.Change{Text: text}
		if len(args) == 7 {
			coords := make([]uint32, 4)
			for i := range coords {
				v, err := toInt64(args[2+i])
				if err != nil {
					return object.Errorf("change: position: %v", err)
				}
				coords[i] = uint32(v)
			}
			change.Range = &protocol.Range{
				Start: protocol.Position{Line: coords[0], Character: coords[1]},
				End:   protocol.Position{Line: coords[2], Character: coords[3]},
			}
		}

		doc, err := e.Change(ctx, uri, int32(version), []tsls.Change{change})
		if err != nil {
			return object.Errorf("change: %v", err)
		}
		return documentToMap(doc)
	})
}

func makeCloseFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("close_doc", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("close_doc", 1, len(args))
		}
		uri, err := toString(args[0])
		if err != nil {
			return object.Errorf("close_doc: %v", err)
		}
		if err := e.Close(uri); err != nil {
			return object.Errorf("close_doc: %v", err)
		}
		return object.Nil
	})
}

func makeDocumentsFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("documents", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("documents", 0, len(args))
		}
		results := []object.Object{}
		for _, doc := range e.Snapshot().Documents() {
			results = append(results, documentToMap(doc))
		}
		return object.NewList(results)
	})
}

// definition(uri, line, col) → [location]
func makeDefinitionFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("definition", func(ctx context.Context, args ...object.Object) object.Object {
		uri, pos, err := uriPosition("definition", args, 3)
		if err != nil {
			return object.Errorf("%v", err)
		}
		locs, err := e.Query().DefinitionAt(uri, pos)
		if err != nil {
			return object.Errorf("definition: %v", err)
		}
		return locationsToList(locs)
	})
}

// references(uri, line, col) → [location], declaration included
func makeReferencesFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("references", func(ctx context.Context, args ...object.Object) object.Object {
		uri, pos, err := uriPosition("references", args, 3)
		if err != nil {
			return object.Errorf("%v", err)
		}
		locs, err := e.Query().References(uri, pos, true)
		if err != nil {
			return object.Errorf("references: %v", err)
		}
		return locationsToList(locs)
	})
}

// rename(uri, line, col, new_name) → [edit]
func makeRenameFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("rename", func(ctx context.Context, args ...object.Object) object.Object {
		uri, pos, err := uriPosition("rename", args, 4)
		if err != nil {
			return object.Errorf("%v", err)
		}
		newName, err := toString(args[3])
		if err != nil {
			return object.Errorf("rename: new name: %v", err)
		}
		edit, err := e.Query().Rename(uri, pos, newName)
		if err != nil {
			return object.Errorf("rename: %v", err)
		}
		results := []object.Object{}
		if edit != nil {
			for docURI, edits := range edit.Changes {
				for _, te := range edits {
					m := rangeToMap(te.Range)
					m["uri"] = object.NewString(docURI)
					m["new_text"] = object.NewString(te.NewText)
					results = append(results, object.NewMap(m))
				}
			}
		}
		return object.NewList(results)
	})
}

// completion(uri, line, col) → [label]
func makeCompletionFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("completion", func(ctx context.Context, args ...object.Object) object.Object {
		uri, pos, err := uriPosition("completion", args, 3)
		if err != nil {
			return object.Errorf("%v", err)
		}
		list, err := e.Query().Completion(uri, pos)
		if err != nil {
			return object.Errorf("completion: %v", err)
		}
		results := []object.Object{}
		if list == nil {
			return object.NewList(results)
		}
		for _, item := range list.Items {
			results = append(results, object.NewString(item.Label))
		}
		return object.NewList(results)
	})
}

// symbols(uri) → [symbol], each with its children
func makeSymbolsFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols", 1, len(args))
		}
		uri, err := toString(args[0])
		if err != nil {
			return object.Errorf("symbols: %v", err)
		}
		syms, err := e.Query().DocumentSymbols(uri)
		if err != nil {
			return object.Errorf("symbols: %v", err)
		}
		return documentSymbolsToList(syms)
	})
}

// search(pattern) → [symbol] across open documents; '*' matches any run of
// characters.
func makeSearchFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("search", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("search", 1, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("search: %v", err)
		}
		page, err := e.Query().SearchSymbols(pattern, tsls.SymbolFilter{},
			tsls.Sort{Field: tsls.SortByName}, tsls.Pagination{Limit: 500})
		if err != nil {
			return object.Errorf("search: %v", err)
		}
		results := []object.Object{}
		for _, res := range page.Items {
			results = append(results, object.NewMap(symbolResultToMap(res)))
		}
		return object.NewList(results)
	})
}

// detail(uri, line, col) → symbol with "children" and "scopes", or nil
func makeDetailFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("detail", func(ctx context.Context, args ...object.Object) object.Object {
		uri, pos, err := uriPosition("detail", args, 3)
		if err != nil {
			return object.Errorf("%v", err)
		}
		d, err := e.Query().SymbolDetailAt(uri, pos)
		if err != nil {
			return object.Errorf("detail: %v", err)
		}
		if d == nil {
			return object.Nil
		}
		m := symbolResultToMap(d.Symbol)
		children := []object.Object{}
		for _, c := range d.Children {
			children = append(children, object.NewMap(symbolResultToMap(c)))
		}
		scopes := []object.Object{}
		for _, r := range d.Scopes {
			scopes = append(scopes, object.NewMap(rangeToMap(r)))
		}
		m["children"] = object.NewList(children)
		m["scopes"] = object.NewList(scopes)
		return object.NewMap(m)
	})
}

func makeUnusedFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("unused", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("unused", 0, len(args))
		}
		page, err := e.Query().UnusedSymbols(tsls.SymbolFilter{}, tsls.Sort{}, tsls.Pagination{Limit: 500})
		if err != nil {
			return object.Errorf("unused: %v", err)
		}
		results := []object.Object{}
		for _, res := range page.Items {
			results = append(results, object.NewMap(symbolResultToMap(res)))
		}
		return object.NewList(results)
	})
}

func symbolResultToMap(res tsls.SymbolResult) map[string]object.Object {
	m := rangeToMap(res.Location.Range)
	m["uri"] = object.NewString(res.URI)
	m["name"] = object.NewString(res.Name)
	m["tag"] = object.NewString(res.Tag)
	m["ref_count"] = object.NewInt(int64(res.RefCount))
	return m
}

func makeDiagnosticsFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("diagnostics", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("diagnostics", 1, len(args))
		}
		uri, err := toString(args[0])
		if err != nil {
			return object.Errorf("diagnostics: %v", err)
		}
		diags, err := e.Query().Diagnostics(uri)
		if err != nil {
			return object.Errorf("diagnostics: %v", err)
		}
		results := []object.Object{}
		for _, d := range diags {
			m := rangeToMap(position.RangeToProtocol(d.Range))
			m["message"] = object.NewString(d.Message)
			m["severity"] = object.NewInt(int64(d.Severity))
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

func makeKeywordsFn(e *tsls.Engine) *object.Builtin {
	return object.NewBuiltin("keywords", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("keywords", 1, len(args))
		}
		uri, err := toString(args[0])
		if err != nil {
			return object.Errorf("keywords: %v", err)
		}
		kws, err := e.Query().Keywords(uri)
		if err != nil {
			return object.Errorf("keywords: %v", err)
		}
		results := make([]object.Object, 0, len(kws))
		for _, kw := range kws {
			results = append(results, object.NewString(kw))
		}
		return object.NewList(results)
	})
}

// --- conversions ---

func uriPosition(name string, args []object.Object, want int) (string, protocol.Position, error) {
	if len(args) != want {
		return "", protocol.Position{}, fmt.Errorf("%s: expected %d arguments, got %d", name, want, len(args))
	}
	uri, err := toString(args[0])
	if err != nil {
		return "", protocol.Position{}, fmt.Errorf("%s: uri: %w", name, err)
	}
	line, err := toInt64(args[1])
	if err != nil {
		return "", protocol.Position{}, fmt.Errorf("%s: line: %w", name, err)
	}
	col, err := toInt64(args[2])
	if err != nil {
		return "", protocol.Position{}, fmt.Errorf("%s: col: %w", name, err)
	}
	if line < 0 || col < 0 {
		return "", protocol.Position{}, fmt.Errorf("%s: negative position %d:%d", name, line, col)
	}
	return uri, protocol.Position{Line: uint32(line), Character: uint32(col)}, nil
}

func threeStrings(args []object.Object) (string, string, string, error) {
	var out [3]string
	for i := range out {
		s, err := toString(args[i])
		if err != nil {
			return "", "", "", err
		}
		out[i] = s
	}
	return out[0], out[1], out[2], nil
}

func documentToMap(doc *tsls.Document) object.Object {
	return object.NewMap(map[string]object.Object{
		"uri":         object.NewString(doc.URI),
		"language":    object.NewString(doc.LanguageID),
		"version":     object.NewInt(int64(doc.Version)),
		"hash":        object.NewString(doc.Hash),
		"definitions": object.NewInt(int64(len(doc.Index.Definitions))),
		"diagnostics": object.NewInt(int64(len(doc.Diagnostics))),
	})
}

func rangeToMap(r protocol.Range) map[string]object.Object {
	return map[string]object.Object{
		"start_line": object.NewInt(int64(r.Start.Line)),
		"start_col":  object.NewInt(int64(r.Start.Character)),
		"end_line":   object.NewInt(int64(r.End.Line)),
		"end_col":    object.NewInt(int64(r.End.Character)),
	}
}

func locationsToList(locs []tsls.Location) object.Object {
	results := make([]object.Object, 0, len(locs))
	for _, loc := range locs {
		m := rangeToMap(loc.Range)
		m["uri"] = object.NewString(loc.URI)
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

func documentSymbolsToList(syms []tsls.DocumentSymbol) object.Object {
	results := make([]object.Object, 0, len(syms))
	for _, sym := range syms {
		m := rangeToMap(sym.SelectionRange)
		m["name"] = object.NewString(sym.Name)
		m["kind"] = object.NewInt(int64(sym.Kind))
		m["children"] = documentSymbolsToList(sym.Children)
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
