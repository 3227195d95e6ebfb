package tsls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnusedSymbols(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t)

	res, err := q.UnusedSymbols(SymbolFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, "main", res.Items[0].Name)
	assert.Zero(t, res.Items[0].RefCount)
}

func TestUnusedSymbols_Filter(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t)

	res, err := q.UnusedSymbols(SymbolFilter{Tags: []string{"parameter"}}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
	assert.Empty(t, res.Items)

	res, err = q.UnusedSymbols(SymbolFilter{Tags: []string{"function"}, GlobalOnly: true}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "main", res.Items[0].Name)
}
