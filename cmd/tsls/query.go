package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls"
	"github.com/jward/tsls/internal/syntax"
)

// errDiagnosticsFound makes check exit non-zero after printing its results.
var errDiagnosticsFound = errors.New("syntax errors found")

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Report syntax errors",
	Long:  "Opens the given files and directories and prints their diagnostics. Exits 1 when any are found. Lines and columns are 0-based.",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "check", err)
	}
	defer s.Close()

	if err := openTargets(cmd.Context(), s.engine, args); err != nil {
		return outputError(cmd, "check", err)
	}

	diags := []CLIDiagnostic{}
	for _, doc := range s.engine.Snapshot().Documents() {
		file := tsls.PathFromURI(doc.URI)
		for _, d := range doc.Diagnostics {
			diags = append(diags, diagnosticToCLI(file, d))
		}
	}
	if err := outputResult(cmd.OutOrStdout(), CLIResult{Command: "check", Results: diags}); err != nil {
		return err
	}
	if len(diags) > 0 {
		errorHandled = true
		return errDiagnosticsFound
	}
	return nil
}

func diagnosticToCLI(file string, d tsls.Diagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		File:      file,
		StartLine: int(d.Range.StartPoint.Row),
		StartCol:  int(d.Range.StartPoint.Column),
		EndLine:   int(d.Range.EndPoint.Row),
		EndCol:    int(d.Range.EndPoint.Column),
		Severity:  severityName(d.Severity),
		Message:   d.Message,
	}
}

func severityName(s protocol.DiagnosticSeverity) string {
	switch s {
	case protocol.DiagnosticSeverityError:
		return "error"
	case protocol.DiagnosticSeverityWarning:
		return "warning"
	case protocol.DiagnosticSeverityInformation:
		return "info"
	default:
		return "hint"
	}
}

// --- symbols ---

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the symbols a file defines",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func runSymbols(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	defer s.Close()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return outputError(cmd, "symbols", fmt.Errorf("resolving file path %q: %w", args[0], err))
	}
	if err := openTargets(cmd.Context(), s.engine, []string{path}); err != nil {
		return outputError(cmd, "symbols", err)
	}

	uri := tsls.FileURI(path)
	if _, ok := s.engine.Document(uri); !ok {
		return outputError(cmd, "symbols", fmt.Errorf("%s: %w", path, tsls.ErrUnsupportedLanguage))
	}
	syms, err := s.engine.Query().DocumentSymbols(uri)
	if err != nil {
		return outputError(cmd, "symbols", err)
	}

	out := make([]CLISymbol, 0, len(syms))
	for _, ds := range syms {
		out = append(out, documentSymbolToCLI(path, ds))
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "symbols", Results: out})
}

func documentSymbolToCLI(file string, ds protocol.DocumentSymbol) CLISymbol {
	sym := CLISymbol{
		Name:      ds.Name,
		Kind:      symbolKindName(ds.Kind),
		File:      file,
		StartLine: int(ds.SelectionRange.Start.Line),
		StartCol:  int(ds.SelectionRange.Start.Character),
		EndLine:   int(ds.SelectionRange.End.Line),
		EndCol:    int(ds.SelectionRange.End.Character),
	}
	for _, child := range ds.Children {
		sym.Children = append(sym.Children, documentSymbolToCLI("", child))
	}
	return sym
}

var symbolKindNames = map[protocol.SymbolKind]string{
	protocol.SymbolKindFile:          "file",
	protocol.SymbolKindModule:        "module",
	protocol.SymbolKindNamespace:     "namespace",
	protocol.SymbolKindPackage:       "package",
	protocol.SymbolKindClass:         "class",
	protocol.SymbolKindMethod:        "method",
	protocol.SymbolKindProperty:      "property",
	protocol.SymbolKindField:         "field",
	protocol.SymbolKindConstructor:   "constructor",
	protocol.SymbolKindEnum:          "enum",
	protocol.SymbolKindInterface:     "interface",
	protocol.SymbolKindFunction:      "function",
	protocol.SymbolKindVariable:      "variable",
	protocol.SymbolKindConstant:      "constant",
	protocol.SymbolKindString:        "string",
	protocol.SymbolKindNumber:        "number",
	protocol.SymbolKindBoolean:       "boolean",
	protocol.SymbolKindArray:         "array",
	protocol.SymbolKindObject:        "object",
	protocol.SymbolKindKey:           "key",
	protocol.SymbolKindNull:          "null",
	protocol.SymbolKindEnumMember:    "enum_member",
	protocol.SymbolKindStruct:        "struct",
	protocol.SymbolKindEvent:         "event",
	protocol.SymbolKindOperator:      "operator",
	protocol.SymbolKindTypeParameter: "type_parameter",
}

func symbolKindName(k protocol.SymbolKind) string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", k)
}

// --- search ---

var (
	flagLimit    int
	flagOffset   int
	flagSort     string
	flagOrder    string
	flagTag      string
	flagLanguage string
	flagGlobal   bool
	flagTop      int
)

var searchCmd = &cobra.Command{
	Use:   "search <pattern> [paths...]",
	Short: "Search symbols by glob pattern",
	Long:  "Opens the given paths and searches their definitions. Use * as wildcard (e.g. 'get*'); matching ignores case.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	searchCmd.Flags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	searchCmd.Flags().StringVar(&flagSort, "sort", "", "sort field: name|kind|file|ref_count")
	searchCmd.Flags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")
	searchCmd.Flags().StringVar(&flagTag, "tag", "", "filter by capture tag (e.g. function, variable)")
	searchCmd.Flags().StringVar(&flagLanguage, "language", "", "filter by language")
	searchCmd.Flags().BoolVar(&flagGlobal, "global", false, "only symbols declared at file scope")
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "search", err)
	}
	defer s.Close()

	if err := openTargets(cmd.Context(), s.engine, args[1:]); err != nil {
		return outputError(cmd, "search", err)
	}

	filter := tsls.SymbolFilter{GlobalOnly: flagGlobal}
	if flagTag != "" {
		filter.Tags = []string{flagTag}
	}
	if flagLanguage != "" {
		filter.Languages = []string{flagLanguage}
	}
	sort, err := buildSort()
	if err != nil {
		return outputError(cmd, "search", err)
	}

	result, err := s.engine.Query().SearchSymbols(args[0], filter, sort, tsls.Pagination{Limit: flagLimit, Offset: flagOffset})
	if err != nil {
		return outputError(cmd, "search", err)
	}

	out := make([]CLISearchResult, 0, len(result.Items))
	for _, r := range result.Items {
		out = append(out, symbolResultToCLI(r))
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{
		Command:    "search",
		Results:    out,
		TotalCount: &result.TotalCount,
	})
}

// --- unused ---

var unusedCmd = &cobra.Command{
	Use:   "unused [paths...]",
	Short: "List definitions that are never referenced",
	RunE:  runUnused,
}

func init() {
	unusedCmd.Flags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	unusedCmd.Flags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	unusedCmd.Flags().StringVar(&flagSort, "sort", "", "sort field: name|kind|file|ref_count")
	unusedCmd.Flags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")
	unusedCmd.Flags().StringVar(&flagTag, "tag", "", "filter by capture tag (e.g. function, var)")
	unusedCmd.Flags().StringVar(&flagLanguage, "language", "", "filter by language")
	unusedCmd.Flags().BoolVar(&flagGlobal, "global", false, "only symbols declared at file scope")
}

func runUnused(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "unused", err)
	}
	defer s.Close()

	if err := openTargets(cmd.Context(), s.engine, args); err != nil {
		return outputError(cmd, "unused", err)
	}

	filter := tsls.SymbolFilter{GlobalOnly: flagGlobal}
	if flagTag != "" {
		filter.Tags = []string{flagTag}
	}
	if flagLanguage != "" {
		filter.Languages = []string{flagLanguage}
	}
	sort, err := buildSort()
	if err != nil {
		return outputError(cmd, "unused", err)
	}

	result, err := s.engine.Query().UnusedSymbols(filter, sort, tsls.Pagination{Limit: flagLimit, Offset: flagOffset})
	if err != nil {
		return outputError(cmd, "unused", err)
	}

	out := make([]CLISearchResult, 0, len(result.Items))
	for _, r := range result.Items {
		out = append(out, symbolResultToCLI(r))
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{
		Command:    "unused",
		Results:    out,
		TotalCount: &result.TotalCount,
	})
}

// buildSort creates a Sort from the --sort and --order flags.
func buildSort() (tsls.Sort, error) {
	sort := tsls.Sort{Field: tsls.SortByName, Order: tsls.Asc}
	switch tsls.SortField(flagSort) {
	case "":
	case tsls.SortByName, tsls.SortByKind, tsls.SortByFile, tsls.SortByRefCount:
		sort.Field = tsls.SortField(flagSort)
	default:
		return sort, fmt.Errorf("invalid sort field %q: must be name, kind, file or ref_count", flagSort)
	}
	switch tsls.SortOrder(flagOrder) {
	case tsls.Asc, tsls.Desc:
		sort.Order = tsls.SortOrder(flagOrder)
	default:
		return sort, fmt.Errorf("invalid sort order %q: must be asc or desc", flagOrder)
	}
	return sort, nil
}

func symbolResultToCLI(r tsls.SymbolResult) CLISearchResult {
	return CLISearchResult{
		Name:     r.Name,
		Tag:      r.Tag,
		Kind:     symbolKindName(r.Kind),
		Language: r.LanguageID,
		File:     tsls.PathFromURI(r.URI),
		Line:     int(r.Location.Range.Start.Line),
		Col:      int(r.Location.Range.Start.Character),
		Global:   r.Global,
		RefCount: r.RefCount,
	}
}

// --- summary ---

var summaryCmd = &cobra.Command{
	Use:   "summary [paths...]",
	Short: "Summarise languages, symbols and diagnostics",
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().IntVar(&flagTop, "top", 10, "number of most-referenced symbols to list")
}

func runSummary(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "summary", err)
	}
	defer s.Close()

	if err := openTargets(cmd.Context(), s.engine, args); err != nil {
		return outputError(cmd, "summary", err)
	}
	summary, err := s.engine.Query().Summary(flagTop)
	if err != nil {
		return outputError(cmd, "summary", err)
	}

	out := CLISummary{Languages: []CLILanguageStats{}, TopSymbols: []CLISearchResult{}}
	for _, ls := range summary.Languages {
		out.Languages = append(out.Languages, CLILanguageStats{
			Language:        ls.Language,
			DocumentCount:   ls.DocumentCount,
			SymbolCount:     ls.SymbolCount,
			DiagnosticCount: ls.DiagnosticCount,
			TagCounts:       ls.TagCounts,
		})
	}
	for _, r := range summary.TopSymbols {
		out.TopSymbols = append(out.TopSymbols, symbolResultToCLI(r))
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "summary", Results: out})
}

// --- keywords ---

var keywordsCmd = &cobra.Command{
	Use:   "keywords <language>",
	Short: "Print the keywords derived from a language's highlight assets",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeywords,
}

func runKeywords(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "keywords", err)
	}
	defer s.Close()

	keywords, err := s.engine.Keywords(args[0])
	if err != nil {
		return outputError(cmd, "keywords", err)
	}
	if keywords == nil {
		keywords = []string{}
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "keywords", Results: keywords})
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [languages...]",
	Short: "Compile every query asset and report failures",
	Long:  "Compiles the scope, highlight and children assets of each language (all supported languages by default). Exits 1 if any fail.",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "validate", err)
	}
	defer s.Close()

	languages := args
	if len(languages) == 0 {
		languages = s.cfg.Languages()
	}
	if len(languages) == 0 {
		languages = syntax.Languages()
	}

	var failed []string
	out := make([]CLIValidation, 0, len(languages))
	for _, lang := range languages {
		v := CLIValidation{Language: lang, OK: true}
		if err := s.engine.CompileQueries(lang); err != nil {
			v.OK = false
			v.Error = err.Error()
			failed = append(failed, lang)
		}
		out = append(out, v)
	}
	if err := outputResult(cmd.OutOrStdout(), CLIResult{Command: "validate", Results: out}); err != nil {
		return err
	}
	if len(failed) > 0 {
		errorHandled = true
		return fmt.Errorf("query assets failed for %s: %w", strings.Join(failed, ", "), tsls.ErrQueryCompile)
	}
	return nil
}

// --- Output ---

// outputResult writes a CLIResult to w in the selected format.
func outputResult(w io.Writer, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError reports err in the selected format and returns it so the
// command exits non-zero. JSON errors go to stdout inside the envelope.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}
