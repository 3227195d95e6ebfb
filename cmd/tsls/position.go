package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/tsls"
)

// --- Position Commands ---
//
// Each takes <file> <line> <col> with 0-based line and byte column.

var flagNoDeclaration bool

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the definition of the name at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line> <col>",
	Short: "Find every occurrence of the name at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runReferences,
}

var detailCmd = &cobra.Command{
	Use:   "detail <file> <line> <col>",
	Short: "Describe the symbol the name at a position resolves to",
	Long:  "Returns the definition with its reference count, its members and the scopes enclosing it.",
	Args:  cobra.ExactArgs(3),
	RunE:  runDetail,
}

var scopeAtCmd = &cobra.Command{
	Use:   "scope-at <file> <line> <col>",
	Short: "List the scopes containing a position, innermost first",
	Args:  cobra.ExactArgs(3),
	RunE:  runScopeAt,
}

func init() {
	referencesCmd.Flags().BoolVar(&flagNoDeclaration, "no-declaration", false, "omit the definition itself")
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// openAt opens the file named by args[0] and parses the position in
// args[1:3]. The caller closes the returned session.
func openAt(cmd *cobra.Command, args []string) (*session, string, tsls.Position, error) {
	var pos tsls.Position
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return nil, "", pos, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return nil, "", pos, err
	}
	pos = tsls.Position{Line: uint32(line), Character: uint32(col)}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return nil, "", pos, fmt.Errorf("resolving file path %q: %w", args[0], err)
	}

	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return nil, "", pos, err
	}
	if err := openTargets(cmd.Context(), s.engine, []string{path}); err != nil {
		s.Close()
		return nil, "", pos, err
	}
	uri := tsls.FileURI(path)
	if _, ok := s.engine.Document(uri); !ok {
		s.Close()
		return nil, "", pos, fmt.Errorf("%s: %w", path, tsls.ErrUnsupportedLanguage)
	}
	return s, uri, pos, nil
}

func runDefinition(cmd *cobra.Command, args []string) error {
	s, uri, pos, err := openAt(cmd, args)
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	defer s.Close()

	locs, err := s.engine.Query().DefinitionAt(uri, pos)
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "definition", Results: locationsToCLI(locs)})
}

func runReferences(cmd *cobra.Command, args []string) error {
	s, uri, pos, err := openAt(cmd, args)
	if err != nil {
		return outputError(cmd, "references", err)
	}
	defer s.Close()

	locs, err := s.engine.Query().References(uri, pos, !flagNoDeclaration)
	if err != nil {
		return outputError(cmd, "references", err)
	}
	out := locationsToCLI(locs)
	total := len(out)
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "references", Results: out, TotalCount: &total})
}

func runDetail(cmd *cobra.Command, args []string) error {
	s, uri, pos, err := openAt(cmd, args)
	if err != nil {
		return outputError(cmd, "detail", err)
	}
	defer s.Close()

	detail, err := s.engine.Query().SymbolDetailAt(uri, pos)
	if err != nil {
		return outputError(cmd, "detail", err)
	}
	if detail == nil {
		return outputResult(cmd.OutOrStdout(), CLIResult{Command: "detail", Results: nil})
	}

	out := CLIDetail{
		Symbol:   symbolResultToCLI(detail.Symbol),
		Children: make([]CLISearchResult, 0, len(detail.Children)),
		Scopes:   rangesToCLI(detail.Scopes),
	}
	for _, c := range detail.Children {
		out.Children = append(out.Children, symbolResultToCLI(c))
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "detail", Results: out})
}

func runScopeAt(cmd *cobra.Command, args []string) error {
	s, uri, pos, err := openAt(cmd, args)
	if err != nil {
		return outputError(cmd, "scope-at", err)
	}
	defer s.Close()

	scopes, err := s.engine.Query().ScopeAt(uri, pos)
	if err != nil {
		return outputError(cmd, "scope-at", err)
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "scope-at", Results: rangesToCLI(scopes)})
}

func locationsToCLI(locs []tsls.Location) []CLILocation {
	out := make([]CLILocation, 0, len(locs))
	for _, l := range locs {
		out = append(out, CLILocation{
			File:      tsls.PathFromURI(l.URI),
			StartLine: int(l.Range.Start.Line),
			StartCol:  int(l.Range.Start.Character),
			EndLine:   int(l.Range.End.Line),
			EndCol:    int(l.Range.End.Character),
		})
	}
	return out
}

func rangesToCLI(ranges []tsls.Range) []CLIRange {
	out := make([]CLIRange, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, CLIRange{
			StartLine: int(r.Start.Line),
			StartCol:  int(r.Start.Character),
			EndLine:   int(r.End.Line),
			EndCol:    int(r.End.Character),
		})
	}
	return out
}
