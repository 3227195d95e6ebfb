package classify

import (
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/stretchr/testify/assert"
)

func TestParseTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		capture string
		want    Tag
	}{
		{"variable", TagVariable},
		{"@function", TagFunction},
		{"function.macro", TagFunctionMacro},
		{"local.keyword", TagKeyword},
		{"punctuation.bracket", TagPunctuationBracket},
		{"enum_member", TagEnumMember},
		{"Variable", TagUnknown},
		{"variable.builtin", TagUnknown},
		{"comment", TagUnknown},
		{"", TagUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTag(tt.capture), tt.capture)
	}
}

func TestTagMappingIsTotal(t *testing.T) {
	t.Parallel()

	for tag := TagUnknown; tag < numTags; tag++ {
		assert.NotEmpty(t, tag.String())
		assert.NotZero(t, tag.CompletionKind(), tag.String())
		assert.NotZero(t, tag.SymbolKind(), tag.String())
		if tag != TagUnknown {
			assert.Equal(t, tag, ParseTag(tag.String()), "round trip of %s", tag)
		}
	}
	assert.Equal(t, "unknown", Tag(-3).String())
	assert.Equal(t, protocol.CompletionItemKindText, Tag(999).CompletionKind())
}

func TestCompletionKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		capture string
		want    protocol.CompletionItemKind
	}{
		{"variable", protocol.CompletionItemKindVariable},
		{"parameter", protocol.CompletionItemKindVariable},
		{"function.macro", protocol.CompletionItemKindFunction},
		{"type", protocol.CompletionItemKindTypeParameter},
		{"label", protocol.CompletionItemKindText},
		{"include", protocol.CompletionItemKindModule},
		{"repeat", protocol.CompletionItemKindKeyword},
		{"keyword.return", protocol.CompletionItemKindKeyword},
		{"boolean", protocol.CompletionItemKindValue},
		{"constant.builtin", protocol.CompletionItemKindConstant},
		{"setter", protocol.CompletionItemKindProperty},
		{"enum_member", protocol.CompletionItemKindEnumMember},
		{"conditional", protocol.CompletionItemKindOperator},
		{"punctuation.special", protocol.CompletionItemKindOperator},
		{"no.such.tag", protocol.CompletionItemKindText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTag(tt.capture).CompletionKind(), tt.capture)
	}
}

func TestSymbolKind_Fallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, protocol.SymbolKindString, TagUnknown.SymbolKind())
	assert.Equal(t, protocol.SymbolKindFunction, TagFunction.SymbolKind())
	assert.Equal(t, protocol.SymbolKindStruct, TagStruct.SymbolKind())
}

func TestDefinitionTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TagVariable, DefinitionTag("var"))
	assert.Equal(t, TagFunctionMacro, DefinitionTag("macro"))
	assert.Equal(t, TagModule, DefinitionTag("import"))
	assert.Equal(t, TagParameter, DefinitionTag("parameter"))
	assert.Equal(t, TagUnknown, DefinitionTag("whatever"))
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	src := `
; control flow
[
  "while"
  "for"
  "do"
] @repeat

[
  "if"
  "return"
  "while"   ; duplicate, dropped
  "x"       ; single character, dropped
  (identifier)
] @keyword

[
  "+"
  "sizeof"
] @operator

"struct" @keyword

[
  "int"
  (primitive_type)
] @type @keyword

((identifier) @constant
  (#match? @constant "^[A-Z]+$"))
`
	assert.Equal(t, []string{"while", "for", "do", "if", "return", "int"}, Keywords(src))
}

func TestKeywords_NestedAlternationStrings(t *testing.T) {
	t.Parallel()

	// Strings inside nested patterns are not direct children of the list.
	src := `[
  (call_expression "sizeof")
  "typedef"
] @keyword`
	assert.Equal(t, []string{"typedef"}, Keywords(src))
}

func TestKeywords_EscapesAndMalformedInput(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{`a"b`}, Keywords(`["a\"b"] @keyword`))
	assert.Empty(t, Keywords(""))
	assert.Empty(t, Keywords(")))] @keyword"))
	// An unterminated list never receives its capture.
	assert.Empty(t, Keywords(`["goto"`+"\n"))
}

func TestKeywords_Shapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "inner list without capture",
			src:  `[["if" "else"] "for"] @keyword`,
			want: []string{"for"},
		},
		{
			name: "inner list with its own capture",
			src:  `[["if" "else"] @keyword "for"] @repeat`,
			want: []string{"for", "if", "else"},
		},
		{
			name: "capture on a bare string",
			src:  `"return" @keyword`,
			want: nil,
		},
		{
			name: "capture on a node pattern",
			src:  `(break_statement) @keyword`,
			want: nil,
		},
		{
			name: "escaped quote inside a token",
			src:  `["\"" "say\"hi" "\\n"] @keyword`,
			want: []string{`say"hi`, `\n`},
		},
		{
			name: "bracket and semicolon inside a string",
			src:  `["a]b" "c;d" "end"] @keyword`,
			want: []string{"a]b", "c;d", "end"},
		},
		{
			name: "dotted capture is not keyword",
			src:  `["goto" "break"] @keyword.control`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Keywords(tt.src))
		})
	}
}
