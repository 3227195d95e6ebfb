package tsls

import (
	"context"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const queryFixtureURI = "file:///fixture.c"

// Row numbers of the fixture are relied on by the tests below.
const queryFixture = `int counter = 0;

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

func newTestQueryBuilder(t *testing.T) *QueryBuilder {
	t.Helper()
	e := newTestEngine(t)
	_, err := e.Open(context.Background(), queryFixtureURI, "c", 1, []byte(queryFixture))
	require.NoError(t, err)
	return e.Query()
}

func pos(line, char uint32) Position {
	return Position{Line: line, Character: char}
}

func locationRows(locs []Location) []uint32 {
	rows := make([]uint32, 0, len(locs))
	for _, l := range locs {
		rows = append(rows, l.Range.Start.Line)
	}
	return rows
}

func TestDefinitionAt(t *testing.T) {
	q := newTestQueryBuilder(t)

	tests := []struct {
		name    string
		pos     Position
		wantRow uint32
		wantCol uint32
	}{
		{"call site", pos(8, 10), 2, 4},
		{"cursor just past name", pos(8, 12), 2, 4},
		{"definition itself", pos(2, 5), 2, 4},
		{"global from nested scope", pos(9, 3), 0, 4},
		{"local variable", pos(10, 8), 8, 5},
		{"parameter", pos(3, 11), 2, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locs, err := q.DefinitionAt(queryFixtureURI, tt.pos)
			require.NoError(t, err)
			require.Len(t, locs, 1)
			assert.Equal(t, queryFixtureURI, locs[0].URI)
			assert.Equal(t, tt.wantRow, locs[0].Range.Start.Line)
			assert.Equal(t, tt.wantCol, locs[0].Range.Start.Character)
		})
	}
}

func TestDefinitionAt_Unresolved(t *testing.T) {
	q := newTestQueryBuilder(t)

	// Leading whitespace and a number literal resolve to nothing.
	for _, p := range []Position{pos(8, 0), pos(8, 13), pos(100, 0)} {
		locs, err := q.DefinitionAt(queryFixtureURI, p)
		require.NoError(t, err)
		assert.Empty(t, locs)
	}
}

func TestReferences(t *testing.T) {
	q := newTestQueryBuilder(t)

	locs, err := q.References(queryFixtureURI, pos(10, 8), true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{8, 9, 10}, locationRows(locs))

	locs, err = q.References(queryFixtureURI, pos(10, 8), false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{9, 10}, locationRows(locs))

	locs, err = q.References(queryFixtureURI, pos(0, 5), true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 9}, locationRows(locs))
}

func TestRename(t *testing.T) {
	q := newTestQueryBuilder(t)

	we, err := q.Rename(queryFixtureURI, pos(4, 9), "total")
	require.NoError(t, err)
	require.NotNil(t, we)

	edits := we.Changes[queryFixtureURI]
	require.Len(t, edits, 2)
	for _, e := range edits {
		assert.Equal(t, "total", e.NewText)
		assert.Equal(t, e.Range.Start.Line, e.Range.End.Line)
		assert.Equal(t, uint32(3), e.Range.End.Character-e.Range.Start.Character)
	}
	assert.Equal(t, uint32(3), edits[0].Range.Start.Line)
	assert.Equal(t, uint32(4), edits[1].Range.Start.Line)
}

func TestRename_InvalidName(t *testing.T) {
	q := newTestQueryBuilder(t)

	for _, name := range []string{"", "9lives", "a-b", "two words"} {
		_, err := q.Rename(queryFixtureURI, pos(4, 9), name)
		require.ErrorIs(t, err, ErrInvalidRename, name)
	}
}

func TestRename_Unresolved(t *testing.T) {
	q := newTestQueryBuilder(t)
	we, err := q.Rename(queryFixtureURI, pos(8, 0), "y")
	require.NoError(t, err)
	assert.Nil(t, we)
}

func TestCompletion(t *testing.T) {
	q := newTestQueryBuilder(t)

	list, err := q.Completion(queryFixtureURI, pos(4, 2))
	require.NoError(t, err)
	require.NotEmpty(t, list.Items)
	assert.False(t, list.IsIncomplete)

	labels := make(map[string]protocol.CompletionItemKind)
	for _, it := range list.Items {
		_, dup := labels[it.Label]
		assert.False(t, dup, "duplicate label %q", it.Label)
		require.NotNil(t, it.Kind)
		labels[it.Label] = *it.Kind
	}

	require.NotNil(t, list.Items[0].Kind)
	assert.Equal(t, protocol.CompletionItemKindKeyword, *list.Items[0].Kind)
	assert.Equal(t, protocol.CompletionItemKindKeyword, labels["return"])

	for _, name := range []string{"sum", "a", "b", "add", "counter", "main"} {
		assert.Contains(t, labels, name)
	}
	// x lives in main's body, not on the chain from add's body.
	assert.NotContains(t, labels, "x")
	assert.NotContains(t, labels, "0")
}

func TestCompletion_GlobalScope(t *testing.T) {
	q := newTestQueryBuilder(t)

	list, err := q.Completion(queryFixtureURI, pos(1, 0))
	require.NoError(t, err)

	var labels []string
	for _, it := range list.Items {
		labels = append(labels, it.Label)
	}
	assert.Contains(t, labels, "counter")
	assert.NotContains(t, labels, "sum")
	assert.NotContains(t, labels, "x")
}

func TestDocumentSymbols(t *testing.T) {
	q := newTestQueryBuilder(t)

	syms, err := q.DocumentSymbols(queryFixtureURI)
	require.NoError(t, err)

	var names []string
	byName := make(map[string]DocumentSymbol)
	for _, s := range syms {
		names = append(names, s.Name)
		byName[s.Name] = s
	}
	assert.Equal(t, []string{"counter", "add", "a", "b", "sum", "main", "x"}, names)

	add := byName["add"]
	assert.Equal(t, protocol.SymbolKindFunction, add.Kind)
	assert.Equal(t, uint32(2), add.Range.Start.Line)
	assert.Equal(t, uint32(5), add.Range.End.Line)
	assert.Equal(t, uint32(2), add.SelectionRange.Start.Line)
	assert.Equal(t, uint32(4), add.SelectionRange.Start.Character)

	counter := byName["counter"]
	assert.Equal(t, protocol.SymbolKindVariable, counter.Kind)
	assert.Equal(t, uint32(0), counter.Range.Start.Line)
	assert.GreaterOrEqual(t, counter.Range.End.Line, uint32(11))

	sum := byName["sum"]
	assert.Equal(t, uint32(2), sum.Range.Start.Line)
	assert.Equal(t, uint32(5), sum.Range.End.Line)
}

func TestDocumentSymbols_Children(t *testing.T) {
	e := newTestEngine(t)
	src := "struct point {\n\tint x;\n\tint y;\n};\n"
	_, err := e.Open(context.Background(), "file:///point.c", "c", 1, []byte(src))
	require.NoError(t, err)

	syms, err := e.Query().DocumentSymbols("file:///point.c")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "point", syms[0].Name)

	var children []string
	for _, c := range syms[0].Children {
		children = append(children, c.Name)
		assert.Equal(t, protocol.SymbolKindField, c.Kind)
	}
	assert.Equal(t, []string{"x", "y"}, children)
}

func TestDiagnosticsAndKeywords(t *testing.T) {
	q := newTestQueryBuilder(t)

	diags, err := q.Diagnostics(queryFixtureURI)
	require.NoError(t, err)
	assert.Empty(t, diags)

	kw, err := q.Keywords(queryFixtureURI)
	require.NoError(t, err)
	assert.Contains(t, kw, "return")
}

func TestQuery_DocumentNotFound(t *testing.T) {
	q := newTestQueryBuilder(t)
	const uri = "file:///missing.c"

	_, err := q.DefinitionAt(uri, pos(0, 0))
	require.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = q.References(uri, pos(0, 0), true)
	require.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = q.Rename(uri, pos(0, 0), "ok")
	require.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = q.Completion(uri, pos(0, 0))
	require.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = q.DocumentSymbols(uri)
	require.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = q.Keywords(uri)
	require.ErrorIs(t, err, ErrDocumentNotFound)
}
