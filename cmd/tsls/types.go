package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIDiagnostic is a syntax error with 0-based byte positions.
type CLIDiagnostic struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

// CLISymbol is a JSON-friendly document symbol. Lines are 0-based and
// columns are byte offsets within the line.
type CLISymbol struct {
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	File      string      `json:"file,omitempty"`
	StartLine int         `json:"start_line"`
	StartCol  int         `json:"start_col"`
	EndLine   int         `json:"end_line"`
	EndCol    int         `json:"end_col"`
	Children  []CLISymbol `json:"children,omitempty"`
}

// CLISearchResult is one match of a symbol search.
type CLISearchResult struct {
	Name     string `json:"name"`
	Tag      string `json:"tag"`
	Kind     string `json:"kind"`
	Language string `json:"language"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Global   bool   `json:"global"`
	RefCount int    `json:"ref_count"`
}

// CLIValidation reports whether one language's query assets compile.
type CLIValidation struct {
	Language string `json:"language"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// CLIDumpStats reports what an export wrote.
type CLIDumpStats struct {
	Database string `json:"database"`
	Exported int    `json:"exported"`
	Skipped  int    `json:"skipped"`
	Removed  int    `json:"removed"`
}

// CLILanguageStats is a JSON-friendly per-language breakdown.
type CLILanguageStats struct {
	Language        string         `json:"language"`
	DocumentCount   int            `json:"document_count"`
	SymbolCount     int            `json:"symbol_count"`
	DiagnosticCount int            `json:"diagnostic_count"`
	TagCounts       map[string]int `json:"tag_counts"`
}

// CLISummary is a JSON-friendly workspace summary.
type CLISummary struct {
	Languages  []CLILanguageStats `json:"languages"`
	TopSymbols []CLISearchResult  `json:"top_symbols"`
}

// CLILocation is a range within a file, 0-based with byte columns.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIRange is a range without a file, used for scopes.
type CLIRange struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// CLIDetail describes one symbol with its members and enclosing scopes.
type CLIDetail struct {
	Symbol   CLISearchResult   `json:"symbol"`
	Children []CLISearchResult `json:"children"`
	Scopes   []CLIRange        `json:"scopes"`
}
