package lsp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls"
)

const fixtureURI = "file:///fixture.c"

const fixture = `int counter = 0;

int add(int a, int b) {
	int sum = a + b;
	return sum;
}

int main(void) {
	int x = add(1, 2);
	counter = x;
	return x;
}
`

func newTestServer(t *testing.T, opts ...tsls.Option) *Server {
	t.Helper()
	e, err := tsls.New(opts...)
	require.NoError(t, err)
	return NewServer(e, "tsls", "test", zerolog.Nop(), false)
}

func mockContext() *glsp.Context {
	return &glsp.Context{
		Notify: func(method string, params any) {},
	}
}

// capturingContext returns a context that records published diagnostics.
func capturingContext() (*glsp.Context, *[]*protocol.PublishDiagnosticsParams) {
	var captured []*protocol.PublishDiagnosticsParams
	ctx := &glsp.Context{
		Notify: func(method string, params any) {
			if method == protocol.ServerTextDocumentPublishDiagnostics {
				captured = append(captured, params.(*protocol.PublishDiagnosticsParams))
			}
		},
	}
	return ctx, &captured
}

func openFixture(t *testing.T, s *Server, ctx *glsp.Context, uri, text string) {
	t.Helper()
	err := s.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "c", Version: 1, Text: text},
	})
	require.NoError(t, err)
}

func positionParams(uri string, line, char uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Position:     protocol.Position{Line: line, Character: char},
	}
}

func changeParams(uri string, version int32, r protocol.Range, text string) *protocol.DidChangeTextDocumentParams {
	return &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEvent{Range: &r, Text: text}},
	}
}

func span(sl, sc, el, ec uint32) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: sl, Character: sc},
		End:   protocol.Position{Line: el, Character: ec},
	}
}

// --- Lifecycle ---

func TestInitialize_AdvertisesCapabilities(t *testing.T) {
	s := newTestServer(t)

	result, err := s.initialize(mockContext(), &protocol.InitializeParams{})
	require.NoError(t, err)
	res, ok := result.(protocol.InitializeResult)
	require.True(t, ok, "got %T", result)

	require.NotNil(t, res.ServerInfo)
	assert.Equal(t, "tsls", res.ServerInfo.Name)
	require.NotNil(t, res.ServerInfo.Version)
	assert.Equal(t, "test", *res.ServerInfo.Version)

	sync, ok := res.Capabilities.TextDocumentSync.(protocol.TextDocumentSyncOptions)
	require.True(t, ok)
	require.NotNil(t, sync.Change)
	assert.Equal(t, protocol.TextDocumentSyncKindIncremental, *sync.Change)
	require.NotNil(t, sync.OpenClose)
	assert.True(t, *sync.OpenClose)

	caps := res.Capabilities
	assert.NotNil(t, caps.CompletionProvider)
	assert.NotNil(t, caps.HoverProvider)
	assert.NotNil(t, caps.DefinitionProvider)
	assert.NotNil(t, caps.ReferencesProvider)
	assert.NotNil(t, caps.RenameProvider)
	assert.NotNil(t, caps.DocumentSymbolProvider)
	assert.NotNil(t, caps.WorkspaceSymbolProvider)
}

func TestShutdownAndSetTrace(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.setTrace(mockContext(), &protocol.SetTraceParams{Value: protocol.TraceValueVerbose}))
	require.NoError(t, s.shutdown(mockContext()))
}

// --- Document synchronisation ---

func TestDidOpen_PublishesDiagnostics(t *testing.T) {
	s := newTestServer(t)
	ctx, captured := capturingContext()

	openFixture(t, s, ctx, "file:///broken.c", "int x = @;\n")

	require.Len(t, *captured, 1)
	p := (*captured)[0]
	assert.Equal(t, "file:///broken.c", p.URI)
	require.NotNil(t, p.Version)
	assert.Equal(t, protocol.UInteger(1), *p.Version)
	require.Len(t, p.Diagnostics, 1)
	require.NotNil(t, p.Diagnostics[0].Source)
	assert.Equal(t, "tsls", *p.Diagnostics[0].Source)
}

func TestDidOpen_UnsupportedLanguageIsAbsorbed(t *testing.T) {
	s := newTestServer(t)
	ctx, captured := capturingContext()

	err := s.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///a.cob", LanguageID: "cobol", Version: 1, Text: "x"},
	})
	require.NoError(t, err)
	assert.Empty(t, *captured)
	_, ok := s.engine.Document("file:///a.cob")
	assert.False(t, ok)
}

func TestDidChange_IncrementalEdits(t *testing.T) {
	s := newTestServer(t)
	ctx, captured := capturingContext()
	openFixture(t, s, ctx, "file:///x.c", "int x = 1;\n")

	require.NoError(t, s.textDocumentDidChange(ctx, changeParams("file:///x.c", 2, span(0, 8, 0, 9), "")))
	require.Len(t, *captured, 2)
	assert.Len(t, (*captured)[1].Diagnostics, 1)

	require.NoError(t, s.textDocumentDidChange(ctx, changeParams("file:///x.c", 3, span(0, 8, 0, 8), "2")))
	require.Len(t, *captured, 3)
	assert.Empty(t, (*captured)[2].Diagnostics)
	assert.Equal(t, protocol.UInteger(3), *(*captured)[2].Version)

	doc, ok := s.engine.Document("file:///x.c")
	require.True(t, ok)
	assert.Equal(t, "int x = 2;\n", string(doc.Source))
}

func TestDidChange_StaleVersionIsAbsorbed(t *testing.T) {
	s := newTestServer(t)
	ctx, captured := capturingContext()
	openFixture(t, s, ctx, "file:///x.c", "int x = 1;\n")

	require.NoError(t, s.textDocumentDidChange(ctx, changeParams("file:///x.c", 1, span(0, 0, 0, 0), "//")))
	assert.Len(t, *captured, 1)

	doc, ok := s.engine.Document("file:///x.c")
	require.True(t, ok)
	assert.Equal(t, "int x = 1;\n", string(doc.Source))
}

func TestDidChange_WholeDocument(t *testing.T) {
	s := newTestServer(t)
	ctx, _ := capturingContext()
	openFixture(t, s, ctx, "file:///x.c", "int x = 1;\n")

	err := s.textDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: "file:///x.c"},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "int y;\n"}},
	})
	require.NoError(t, err)

	doc, ok := s.engine.Document("file:///x.c")
	require.True(t, ok)
	assert.Equal(t, "int y;\n", string(doc.Source))
}

func TestDidSave_WithText(t *testing.T) {
	s := newTestServer(t)
	ctx, captured := capturingContext()
	openFixture(t, s, ctx, "file:///x.c", "int x = 1;\n")

	text := "int x = @;\n"
	require.NoError(t, s.textDocumentDidSave(ctx, &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///x.c"},
		Text:         &text,
	}))
	require.Len(t, *captured, 2)
	assert.Len(t, (*captured)[1].Diagnostics, 1)
}

func TestDidClose_ClearsDiagnostics(t *testing.T) {
	s := newTestServer(t)
	ctx, captured := capturingContext()
	openFixture(t, s, ctx, "file:///broken.c", "int x = @;\n")

	require.NoError(t, s.textDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///broken.c"},
	}))
	require.Len(t, *captured, 2)
	assert.Empty(t, (*captured)[1].Diagnostics)
	assert.NotNil(t, (*captured)[1].Diagnostics)

	_, ok := s.engine.Document("file:///broken.c")
	assert.False(t, ok)
}

// --- Requests ---

func TestDefinition(t *testing.T) {
	s := newTestServer(t)
	openFixture(t, s, mockContext(), fixtureURI, fixture)

	result, err := s.textDocumentDefinition(mockContext(), &protocol.DefinitionParams{
		TextDocumentPositionParams: positionParams(fixtureURI, 8, 10),
	})
	require.NoError(t, err)
	locs, ok := result.([]protocol.Location)
	require.True(t, ok, "got %T", result)
	require.Len(t, locs, 1)
	assert.Equal(t, uint32(2), locs[0].Range.Start.Line)
	assert.Equal(t, uint32(4), locs[0].Range.Start.Character)
}

func TestReferences(t *testing.T) {
	s := newTestServer(t)
	openFixture(t, s, mockContext(), fixtureURI, fixture)

	params := &protocol.ReferenceParams{TextDocumentPositionParams: positionParams(fixtureURI, 10, 8)}
	params.Context.IncludeDeclaration = true
	locs, err := s.textDocumentReferences(mockContext(), params)
	require.NoError(t, err)
	assert.Len(t, locs, 3)

	params.Context.IncludeDeclaration = false
	locs, err = s.textDocumentReferences(mockContext(), params)
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}

func TestRename(t *testing.T) {
	s := newTestServer(t)
	openFixture(t, s, mockContext(), fixtureURI, fixture)

	we, err := s.textDocumentRename(mockContext(), &protocol.RenameParams{
		TextDocumentPositionParams: positionParams(fixtureURI, 4, 9),
		NewName:                    "total",
	})
	require.NoError(t, err)
	require.NotNil(t, we)
	assert.Len(t, we.Changes[fixtureURI], 2)
}

func TestRename_UnknownDocument(t *testing.T) {
	s := newTestServer(t)

	_, err := s.textDocumentRename(mockContext(), &protocol.RenameParams{
		TextDocumentPositionParams: positionParams("file:///missing.c", 0, 0),
		NewName:                    "x",
	})
	require.ErrorIs(t, err, tsls.ErrDocumentNotFound)
}

func TestCompletion(t *testing.T) {
	s := newTestServer(t)
	openFixture(t, s, mockContext(), fixtureURI, fixture)

	result, err := s.textDocumentCompletion(mockContext(), &protocol.CompletionParams{
		TextDocumentPositionParams: positionParams(fixtureURI, 4, 2),
	})
	require.NoError(t, err)
	list, ok := result.(*protocol.CompletionList)
	require.True(t, ok, "got %T", result)

	labels := make(map[string]bool)
	for _, item := range list.Items {
		labels[item.Label] = true
	}
	for _, want := range []string{"sum", "a", "b", "add", "counter", "return"} {
		assert.True(t, labels[want], "missing completion %q", want)
	}
	assert.False(t, labels["x"], "main's local leaked into add")
}

func TestDocumentSymbol(t *testing.T) {
	s := newTestServer(t)
	openFixture(t, s, mockContext(), fixtureURI, fixture)

	result, err := s.textDocumentDocumentSymbol(mockContext(), &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: fixtureURI},
	})
	require.NoError(t, err)
	syms, ok := result.([]protocol.DocumentSymbol)
	require.True(t, ok, "got %T", result)
	require.NotEmpty(t, syms)
	assert.Equal(t, "counter", syms[0].Name)
}

func TestWorkspaceSymbol(t *testing.T) {
	s := newTestServer(t)
	openFixture(t, s, mockContext(), fixtureURI, fixture)

	infos, err := s.workspaceSymbol(mockContext(), &protocol.WorkspaceSymbolParams{Query: "ad"})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "add", infos[0].Name)
	assert.Equal(t, fixtureURI, infos[0].Location.URI)
}

// --- Asset reload ---

func TestReload_RepublishesAffectedDocuments(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, tsls.WithQueriesDir(dir))
	ctx, captured := capturingContext()
	openFixture(t, s, ctx, fixtureURI, fixture)
	require.Len(t, *captured, 1)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "c"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c", "locals.scm"), []byte("(identifier) @reference\n"), 0o644))

	s.reload(context.Background(), "c")
	require.Len(t, *captured, 2)
	assert.Equal(t, fixtureURI, (*captured)[1].URI)

	doc, ok := s.engine.Document(fixtureURI)
	require.True(t, ok)
	assert.Empty(t, doc.Index.Keys())

	// Other languages are left alone.
	s.reload(context.Background(), "python")
	assert.Len(t, *captured, 2)
}

func TestReload_WithoutClientIsQuiet(t *testing.T) {
	s := newTestServer(t)
	s.reload(context.Background(), "c")
	assert.Nil(t, s.notify)
}

func TestHover(t *testing.T) {
	s := newTestServer(t)
	openFixture(t, s, mockContext(), fixtureURI, fixture)

	hover, err := s.textDocumentHover(mockContext(), &protocol.HoverParams{
		TextDocumentPositionParams: positionParams(fixtureURI, 8, 10),
	})
	require.NoError(t, err)
	require.NotNil(t, hover)
	content, ok := hover.Contents.(protocol.MarkupContent)
	require.True(t, ok, "got %T", hover.Contents)
	assert.Equal(t, protocol.MarkupKindMarkdown, content.Kind)
	assert.Equal(t, "function `add` (global)\n\n1 reference", content.Value)
}

func TestHover_Members(t *testing.T) {
	s := newTestServer(t)
	openFixture(t, s, mockContext(), "file:///point.c", "struct point {\n\tint x;\n\tint y;\n};\n")

	hover, err := s.textDocumentHover(mockContext(), &protocol.HoverParams{
		TextDocumentPositionParams: positionParams("file:///point.c", 0, 8),
	})
	require.NoError(t, err)
	require.NotNil(t, hover)
	content := hover.Contents.(protocol.MarkupContent)
	assert.Contains(t, content.Value, "Members:")
	assert.Contains(t, content.Value, "`x`")
	assert.Contains(t, content.Value, "`y`")
}

func TestHover_Unresolved(t *testing.T) {
	s := newTestServer(t)
	openFixture(t, s, mockContext(), fixtureURI, fixture)

	hover, err := s.textDocumentHover(mockContext(), &protocol.HoverParams{
		TextDocumentPositionParams: positionParams(fixtureURI, 8, 0),
	})
	require.NoError(t, err)
	assert.Nil(t, hover)
}
