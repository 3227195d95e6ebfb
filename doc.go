// Package tsls provides incremental, scope-aware analysis of source
// documents built on tree-sitter. It keeps a parse tree, a scope and symbol
// index, and syntax diagnostics current for every open document, and answers
// the editor requests a language server needs: C, C++, Go, and Python are
// supported out of the box.
//
// # Pipeline
//
// Every document goes through the same steps whenever it is opened or
// edited:
//
//  1. Parse: content changes are translated into tree-sitter edit
//     descriptors, applied to a copy of the previous tree, and the document is
//     reparsed incrementally.
//
//  2. Analyse: the language's query assets (locals, highlights, children)
//     are run against the new tree to build the scope tree, definition and
//     reference tables, completion identifiers, and syntax diagnostics.
//
//  3. Publish: the finished document is swapped into an immutable snapshot.
//     Readers holding an older snapshot keep seeing the old state.
//
// # Usage
//
//	e, err := tsls.New(tsls.WithLogger(log))
//	if err != nil { ... }
//
//	ctx := context.Background()
//	_, err = e.Open(ctx, uri, "go", 1, src)
//	_, err = e.Change(ctx, uri, 2, changes)
//
//	q := e.Query()
//	locs, err := q.DefinitionAt(uri, protocol.Position{Line: 10, Character: 5})
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] reads one snapshot:
//
//   - [QueryBuilder.DefinitionAt] finds where the name under the cursor is
//     defined.
//   - [QueryBuilder.References] lists every occurrence of that definition.
//   - [QueryBuilder.Rename] builds the workspace edit for a rename.
//   - [QueryBuilder.Completion] lists keywords and the names visible from the
//     cursor's scope.
//   - [QueryBuilder.DocumentSymbols] lists definitions in document order.
//   - [QueryBuilder.Symbols] and [QueryBuilder.SearchSymbols] page through
//     the definitions of every open document.
//
// Resolution is lexical and per document: names resolve through the chain of
// enclosing scopes of the file they appear in.
//
// # Query assets
//
// Language knowledge lives in tree-sitter query files under queries/, laid
// out as {language}/{locals,highlights,children,indents}.scm and embedded in
// the binary. [WithQueriesDir] layers a directory over the bundled copy and
// [Engine.Refresh] reloads it.
package tsls
