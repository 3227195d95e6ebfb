package tsls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SymbolDetailAt
// =============================================================================

func TestSymbolDetailAt_GlobalFunction(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t)

	detail, err := q.SymbolDetailAt(queryFixtureURI, pos(8, 10))
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, "add", detail.Symbol.Name)
	assert.Equal(t, "function", detail.Symbol.Tag)
	assert.True(t, detail.Symbol.Global)
	assert.Equal(t, 1, detail.Symbol.RefCount)
	assert.Equal(t, uint32(2), detail.Symbol.Location.Range.Start.Line)
	assert.Empty(t, detail.Scopes)
	assert.Empty(t, detail.Children)
}

func TestSymbolDetailAt_LocalVariable(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t)

	detail, err := q.SymbolDetailAt(queryFixtureURI, pos(10, 8))
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, "x", detail.Symbol.Name)
	assert.False(t, detail.Symbol.Global)
	assert.Equal(t, 2, detail.Symbol.RefCount)

	require.NotEmpty(t, detail.Scopes)
	inner := detail.Scopes[0]
	assert.LessOrEqual(t, inner.Start.Line, uint32(8))
	assert.GreaterOrEqual(t, inner.End.Line, uint32(10))
	for i := 1; i < len(detail.Scopes); i++ {
		assert.LessOrEqual(t, detail.Scopes[i].Start.Line, detail.Scopes[i-1].Start.Line, "scopes run innermost first")
	}
}

func TestSymbolDetailAt_StructChildren(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	src := "struct point {\n\tint x;\n\tint y;\n};\n"
	_, err := e.Open(context.Background(), "file:///point.c", "c", 1, []byte(src))
	require.NoError(t, err)

	detail, err := e.Query().SymbolDetailAt("file:///point.c", pos(0, 8))
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, "point", detail.Symbol.Name)
	var children []string
	for _, c := range detail.Children {
		children = append(children, c.Name)
		assert.Equal(t, "file:///point.c", c.URI)
	}
	assert.Equal(t, []string{"x", "y"}, children)
}

func TestSymbolDetailAt_Unresolved(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t)

	detail, err := q.SymbolDetailAt(queryFixtureURI, pos(8, 0))
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestSymbolDetailAt_MissingDocument(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t)

	_, err := q.SymbolDetailAt("file:///missing.c", pos(0, 0))
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

// =============================================================================
// ScopeAt
// =============================================================================

func TestScopeAt_InsideFunction(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t)

	scopes, err := q.ScopeAt(queryFixtureURI, pos(4, 2))
	require.NoError(t, err)
	require.NotEmpty(t, scopes)

	outer := scopes[len(scopes)-1]
	assert.Equal(t, uint32(2), outer.Start.Line)
	assert.Equal(t, uint32(5), outer.End.Line)
}

func TestScopeAt_GlobalPosition(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t)

	scopes, err := q.ScopeAt(queryFixtureURI, pos(1, 0))
	require.NoError(t, err)
	assert.Empty(t, scopes)
}

func TestScopeAt_MissingDocument(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t)

	_, err := q.ScopeAt("file:///missing.c", pos(0, 0))
	require.ErrorIs(t, err, ErrDocumentNotFound)
}
