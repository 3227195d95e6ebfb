package tsls

// UnusedSymbols returns definitions that nothing in their document refers
// to. Filtering, sorting and pagination behave as in Symbols.
func (q *QueryBuilder) UnusedSymbols(filter SymbolFilter, sort Sort, page Pagination) (*PagedResult[SymbolResult], error) {
	var items []SymbolResult
	for _, res := range q.collect(filter, nil) {
		if res.RefCount == 0 {
			items = append(items, res)
		}
	}
	sortResults(items, sort)
	return paginate(items, page), nil
}
