package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	"github.com/rs/zerolog"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tsls/internal/syntax"
)

// Tree host functions. These work on raw syntax trees, independent of the
// engine's documents, for scripts that inspect grammar output directly.

// parsedTree is what the tree helpers need to recover from any node: the
// bytes it was parsed from and the language that parsed it.
type parsedTree struct {
	src      []byte
	language string
}

// treeRegistry maps the root node of every tree parsed by a script to its
// parsedTree. go-tree-sitter has no Node.Tree(), so lookups walk a node up
// to its root and use the root's address as the key.
type treeRegistry struct {
	mu      sync.RWMutex
	trees   map[uintptr]parsedTree
	queries *syntax.QueryCache
}

func newTreeRegistry() *treeRegistry {
	return &treeRegistry{
		trees:   make(map[uintptr]parsedTree),
		queries: syntax.NewQueryCache(),
	}
}

func rootKey(n *sitter.Node) uintptr {
	for p := n.Parent(); p != nil; p = n.Parent() {
		n = p
	}
	return uintptr(unsafe.Pointer(n))
}

func (r *treeRegistry) register(tree *sitter.Tree, src []byte, language string) {
	key := rootKey(tree.RootNode())
	r.mu.Lock()
	r.trees[key] = parsedTree{src: src, language: language}
	r.mu.Unlock()
}

func (r *treeRegistry) lookup(n *sitter.Node) (parsedTree, bool) {
	key := rootKey(n)
	r.mu.RLock()
	pt, ok := r.trees[key]
	r.mu.RUnlock()
	return pt, ok
}

// parse(path) or parse(path, language) → Tree. The language defaults to the
// one implied by the file extension.
func makeParseFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 && len(args) != 2 {
			return object.Errorf("parse: expected 1 or 2 arguments, got %d", len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse: path: %v", err)
		}
		var lang string
		if len(args) == 2 {
			if lang, err = toString(args[1]); err != nil {
				return object.Errorf("parse: language: %v", err)
			}
		} else if l, ok := syntax.LanguageForFile(path); ok {
			lang = l
		} else {
			return object.Errorf("parse: no language for %s", path)
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", path, err)
		}
		tree, err := parseTree(ctx, reg, src, lang)
		if err != nil {
			return object.Errorf("parse: %v", err)
		}
		return tree
	})
}

// parse_src(source, language) → Tree
func makeParseSrcFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_src: source: %v", err)
		}
		lang, err := toString(args[1])
		if err != nil {
			return object.Errorf("parse_src: language: %v", err)
		}
		tree, err := parseTree(ctx, reg, []byte(src), lang)
		if err != nil {
			return object.Errorf("parse_src: %v", err)
		}
		return tree
	})
}

// parseTree parses src as language, which may be any alias the engine
// accepts, and registers the result.
func parseTree(ctx context.Context, reg *treeRegistry, src []byte, language string) (object.Object, error) {
	canonical, ok := syntax.LanguageForID(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", language)
	}
	parser, err := syntax.NewParser(canonical)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	tree, err := parser.Parse(ctx, src, nil)
	if err != nil {
		return nil, err
	}
	reg.register(tree, src, canonical)
	return object.NewProxy(tree)
}

// node_text(node) → string. Risor proxies cannot pass a []byte to
// node.Content, so the source is looked up here.
func makeNodeTextFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, err := toNode(args[0])
		if err != nil {
			return object.Errorf("node_text: %v", err)
		}
		pt, ok := reg.lookup(node)
		if !ok {
			return object.Errorf("node_text: node does not belong to a parsed tree")
		}
		return object.NewString(node.Content(pt.src))
	})
}

// query(pattern, node) → [{capture: node}], one map per match with text
// predicates applied. Patterns are compiled once per language.
func makeQueryFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		node, err := toNode(args[1])
		if err != nil {
			return object.Errorf("query: %v", err)
		}
		pt, ok := reg.lookup(node)
		if !ok {
			return object.Errorf("query: node does not belong to a parsed tree")
		}
		q, err := reg.queries.Compile(pt.language, pattern)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}

		results := []object.Object{}
		for _, match := range syntax.MatchAll(q, node, pt.src) {
			captures := make(map[string]object.Object, len(match))
			for _, c := range match {
				p, err := object.NewProxy(c.Node)
				if err != nil {
					return object.Errorf("query: capture %q: %v", c.Name, err)
				}
				captures[c.Name] = p
			}
			results = append(results, object.NewMap(captures))
		}
		return object.NewList(results)
	})
}

// node_child(node, field) → Node or nil. A missing field yields Risor nil
// rather than a proxied nil pointer.
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, err := toNode(args[0])
		if err != nil {
			return object.Errorf("node_child: %v", err)
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field: %v", err)
		}
		child := node.ChildByFieldName(field)
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: %v", err)
		}
		return p
	})
}

func toNode(obj object.Object) (*sitter.Node, error) {
	p, ok := obj.(*object.Proxy)
	if !ok {
		return nil, fmt.Errorf("expected a node, got %s", obj.Type())
	}
	n, ok := p.Interface().(*sitter.Node)
	if !ok {
		return nil, fmt.Errorf("expected a node, got %T", p.Interface())
	}
	return n, nil
}

// logObject is the script-visible log, e.g. log.Info("done").
type logObject struct {
	log zerolog.Logger
}

func (l *logObject) Debug(msg string) { l.log.Debug().Str("source", "script").Msg(msg) }

func (l *logObject) Info(msg string) { l.log.Info().Str("source", "script").Msg(msg) }

func (l *logObject) Warn(msg string) { l.log.Warn().Str("source", "script").Msg(msg) }

func (l *logObject) Error(msg string) { l.log.Error().Str("source", "script").Msg(msg) }
