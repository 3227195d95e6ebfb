package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatDiagnosticsText formats diagnostics as "file:line:col: severity: message".
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", d.File, d.StartLine, d.StartCol, d.Severity, d.Message)
	}
}

// formatSymbolsText formats document symbols as aligned columns, children
// indented under their parent.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tLINE\tCOL")
	var write func(syms []CLISymbol, depth int)
	write = func(syms []CLISymbol, depth int) {
		for _, s := range syms {
			fmt.Fprintf(tw, "%s%s\t%s\t%d\t%d\n", strings.Repeat("  ", depth), s.Name, s.Kind, s.StartLine, s.StartCol)
			write(s.Children, depth+1)
		}
	}
	write(syms, 0)
	tw.Flush()
}

// formatSearchText formats search results as aligned columns.
func formatSearchText(w io.Writer, results []CLISearchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTAG\tREFS\tFILE\tLINE\tCOL")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\n", r.Name, r.Tag, r.RefCount, r.File, r.Line, r.Col)
	}
	tw.Flush()
}

// formatValidationText prints one line per language.
func formatValidationText(w io.Writer, results []CLIValidation) {
	for _, v := range results {
		if v.OK {
			fmt.Fprintf(w, "%s: ok\n", v.Language)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", v.Language, v.Error)
	}
}

func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, l := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", l.File, l.StartLine, l.StartCol)
	}
}

func formatRangesText(w io.Writer, ranges []CLIRange) {
	for _, r := range ranges {
		fmt.Fprintf(w, "%d:%d-%d:%d\n", r.StartLine, r.StartCol, r.EndLine, r.EndCol)
	}
}

// formatDetailText prints the symbol line followed by its members and scopes.
func formatDetailText(w io.Writer, d CLIDetail) {
	fmt.Fprintf(w, "%s %s (%d refs) %s:%d:%d\n", d.Symbol.Tag, d.Symbol.Name, d.Symbol.RefCount, d.Symbol.File, d.Symbol.Line, d.Symbol.Col)
	if len(d.Children) > 0 {
		fmt.Fprintln(w, "Members:")
		for _, c := range d.Children {
			fmt.Fprintf(w, "  %s %s %d:%d\n", c.Tag, c.Name, c.Line, c.Col)
		}
	}
	if len(d.Scopes) > 0 {
		fmt.Fprintln(w, "Scopes:")
		for _, r := range d.Scopes {
			fmt.Fprintf(w, "  %d:%d-%d:%d\n", r.StartLine, r.StartCol, r.EndLine, r.EndCol)
		}
	}
}

func formatDumpText(w io.Writer, s CLIDumpStats) {
	fmt.Fprintf(w, "Database: %s\n", s.Database)
	fmt.Fprintf(w, "Exported: %d, skipped: %d, removed: %d\n", s.Exported, s.Skipped, s.Removed)
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, summary CLISummary) {
	fmt.Fprintln(w, "Workspace Summary")
	fmt.Fprintln(w, "=================")

	if len(summary.Languages) > 0 {
		fmt.Fprintln(w, "Languages:")
		for _, lang := range summary.Languages {
			fmt.Fprintf(w, "  %s: %d documents, %d symbols, %d diagnostics\n",
				lang.Language, lang.DocumentCount, lang.SymbolCount, lang.DiagnosticCount)
			tags := make([]string, 0, len(lang.TagCounts))
			for tag := range lang.TagCounts {
				tags = append(tags, tag)
			}
			sort.Strings(tags)
			for _, tag := range tags {
				fmt.Fprintf(w, "    %s: %d\n", tag, lang.TagCounts[tag])
			}
		}
		fmt.Fprintln(w)
	}

	if len(summary.TopSymbols) > 0 {
		fmt.Fprintln(w, "Top Symbols by References:")
		for _, sym := range summary.TopSymbols {
			fmt.Fprintf(w, "  %s (%s) - %d refs\n", sym.Name, sym.Tag, sym.RefCount)
		}
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLISearchResult:
		formatSearchText(w, v)
	case []CLIValidation:
		formatValidationText(w, v)
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLIRange:
		formatRangesText(w, v)
	case CLIDetail:
		formatDetailText(w, v)
	case CLIDumpStats:
		formatDumpText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIDiagnostic:
		return len(r)
	case []CLISymbol:
		return len(r)
	case []CLISearchResult:
		return len(r)
	case []CLIValidation:
		return len(r)
	case []CLILocation:
		return len(r)
	case []CLIRange:
		return len(r)
	case []string:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
