// Package diagnostics reports syntax errors found in a parse tree.
package diagnostics

import (
	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls/internal/position"
	"github.com/jward/tsls/internal/syntax"
)

// ErrorQuery matches every error node of any grammar.
const ErrorQuery = "(ERROR) @ERROR"

const syntaxErrorMessage = "syntax error"

// Diagnostic is a syntax error located in a tree.
type Diagnostic struct {
	Range    sitter.Range
	Message  string
	Severity protocol.DiagnosticSeverity
}

// Extract returns one diagnostic per ERROR node matched by q (compiled from
// ErrorQuery), in document order. Zero-width MISSING nodes inserted by error
// recovery are not reported.
func Extract(q *sitter.Query, root *sitter.Node, src []byte) []Diagnostic {
	if root == nil || q == nil || !root.HasError() {
		return nil
	}

	var diags []Diagnostic
	for _, c := range syntax.CaptureAll(q, root, src) {
		diags = append(diags, Diagnostic{
			Range:    c.Node.Range(),
			Message:  syntaxErrorMessage,
			Severity: protocol.DiagnosticSeverityError,
		})
	}
	return diags
}

// Protocol converts d to a protocol diagnostic attributed to source.
func (d Diagnostic) Protocol(source string) protocol.Diagnostic {
	severity := d.Severity
	return protocol.Diagnostic{
		Range:    position.RangeToProtocol(d.Range),
		Severity: &severity,
		Source:   &source,
		Message:  d.Message,
	}
}

// Protocol converts ds for publishing. The result is never nil so that an
// empty set serialises as [] and clears the client's list.
func Protocol(ds []Diagnostic, source string) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Protocol(source))
	}
	return out
}
