// Package classify maps highlight capture tags to protocol completion and
// symbol kinds, and derives per-language keyword lists from highlight query
// sources.
package classify

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Tag is a highlight capture tag. The set is closed; anything not listed
// parses to TagUnknown.
type Tag int

const (
	TagUnknown Tag = iota
	TagVariable
	TagParameter
	TagFunction
	TagFunctionMacro
	TagType
	TagLabel
	TagString
	TagStringEscape
	TagModule
	TagInclude
	TagPackage
	TagNamespace
	TagKeyword
	TagRepeat
	TagKeywordOperator
	TagKeywordReturn
	TagConditional
	TagStruct
	TagEnum
	TagNumber
	TagCharacter
	TagBoolean
	TagInterface
	TagConstant
	TagConstantBuiltin
	TagProperty
	TagGetter
	TagSetter
	TagMethod
	TagConstructor
	TagField
	TagFile
	TagClass
	TagEnumMember
	TagOperator
	TagPunctuation
	TagPunctuationBracket
	TagPunctuationDelimiter
	TagPunctuationSpecial

	numTags
)

var tagNames = [numTags]string{
	TagUnknown:              "unknown",
	TagVariable:             "variable",
	TagParameter:            "parameter",
	TagFunction:             "function",
	TagFunctionMacro:        "function.macro",
	TagType:                 "type",
	TagLabel:                "label",
	TagString:               "string",
	TagStringEscape:         "string.escape",
	TagModule:               "module",
	TagInclude:              "include",
	TagPackage:              "package",
	TagNamespace:            "namespace",
	TagKeyword:              "keyword",
	TagRepeat:               "repeat",
	TagKeywordOperator:      "keyword.operator",
	TagKeywordReturn:        "keyword.return",
	TagConditional:          "conditional",
	TagStruct:               "struct",
	TagEnum:                 "enum",
	TagNumber:               "number",
	TagCharacter:            "character",
	TagBoolean:              "boolean",
	TagInterface:            "interface",
	TagConstant:             "constant",
	TagConstantBuiltin:      "constant.builtin",
	TagProperty:             "property",
	TagGetter:               "getter",
	TagSetter:               "setter",
	TagMethod:               "method",
	TagConstructor:          "constructor",
	TagField:                "field",
	TagFile:                 "file",
	TagClass:                "class",
	TagEnumMember:           "enum_member",
	TagOperator:             "operator",
	TagPunctuation:          "punctuation",
	TagPunctuationBracket:   "punctuation.bracket",
	TagPunctuationDelimiter: "punctuation.delimiter",
	TagPunctuationSpecial:   "punctuation.special",
}

var tagByName = func() map[string]Tag {
	m := make(map[string]Tag, numTags)
	for t := TagUnknown + 1; t < numTags; t++ {
		m[tagNames[t]] = t
	}
	return m
}()

// definitionAliases maps the suffix of a locals "definition.<kind>" capture
// onto a tag.
var definitionAliases = map[string]Tag{
	"var":        TagVariable,
	"macro":      TagFunctionMacro,
	"import":     TagModule,
	"associated": TagField,
}

// NormalizeCapture strips a leading "@" and the "local." prefix used by some
// query collections.
func NormalizeCapture(capture string) string {
	capture = strings.TrimPrefix(capture, "@")
	return strings.TrimPrefix(capture, "local.")
}

// ParseTag returns the tag named by capture. Matching is exact after
// normalisation; unknown names give TagUnknown.
func ParseTag(capture string) Tag {
	if t, ok := tagByName[NormalizeCapture(capture)]; ok {
		return t
	}
	return TagUnknown
}

// DefinitionTag returns the tag for the kind suffix of a definition capture,
// e.g. "var" in "definition.var".
func DefinitionTag(kind string) Tag {
	if t, ok := definitionAliases[kind]; ok {
		return t
	}
	return ParseTag(kind)
}

func (t Tag) String() string {
	if t < 0 || t >= numTags {
		return tagNames[TagUnknown]
	}
	return tagNames[t]
}

// IsLiteral reports whether t tags literal text rather than a name.
func (t Tag) IsLiteral() bool {
	switch t {
	case TagString, TagStringEscape, TagNumber, TagCharacter, TagBoolean:
		return true
	}
	return false
}

// CompletionKind returns the completion item kind for t. Every tag maps to
// a kind; TagUnknown maps to Text.
func (t Tag) CompletionKind() protocol.CompletionItemKind {
	switch t {
	case TagVariable, TagParameter:
		return protocol.CompletionItemKindVariable
	case TagFunction, TagFunctionMacro:
		return protocol.CompletionItemKindFunction
	case TagType:
		return protocol.CompletionItemKindTypeParameter
	case TagLabel, TagString, TagStringEscape:
		return protocol.CompletionItemKindText
	case TagModule, TagInclude, TagPackage, TagNamespace:
		return protocol.CompletionItemKindModule
	case TagKeyword, TagRepeat, TagKeywordOperator, TagKeywordReturn:
		return protocol.CompletionItemKindKeyword
	case TagStruct:
		return protocol.CompletionItemKindStruct
	case TagEnum:
		return protocol.CompletionItemKindEnum
	case TagNumber, TagCharacter, TagBoolean:
		return protocol.CompletionItemKindValue
	case TagInterface:
		return protocol.CompletionItemKindInterface
	case TagConstant, TagConstantBuiltin:
		return protocol.CompletionItemKindConstant
	case TagProperty, TagGetter, TagSetter:
		return protocol.CompletionItemKindProperty
	case TagMethod:
		return protocol.CompletionItemKindMethod
	case TagConstructor:
		return protocol.CompletionItemKindConstructor
	case TagField:
		return protocol.CompletionItemKindField
	case TagFile:
		return protocol.CompletionItemKindFile
	case TagClass:
		return protocol.CompletionItemKindClass
	case TagEnumMember:
		return protocol.CompletionItemKindEnumMember
	case TagOperator, TagPunctuation, TagPunctuationBracket,
		TagPunctuationDelimiter, TagPunctuationSpecial, TagConditional:
		return protocol.CompletionItemKindOperator
	}
	return protocol.CompletionItemKindText
}

// SymbolKind returns the document symbol kind for t. TagUnknown maps to
// String.
func (t Tag) SymbolKind() protocol.SymbolKind {
	switch t {
	case TagVariable, TagParameter:
		return protocol.SymbolKindVariable
	case TagFunction, TagFunctionMacro:
		return protocol.SymbolKindFunction
	case TagType:
		return protocol.SymbolKindTypeParameter
	case TagLabel, TagString, TagStringEscape, TagCharacter:
		return protocol.SymbolKindString
	case TagModule, TagInclude:
		return protocol.SymbolKindModule
	case TagPackage:
		return protocol.SymbolKindPackage
	case TagNamespace:
		return protocol.SymbolKindNamespace
	case TagKeyword, TagRepeat, TagKeywordOperator, TagKeywordReturn:
		return protocol.SymbolKindKey
	case TagStruct:
		return protocol.SymbolKindStruct
	case TagEnum:
		return protocol.SymbolKindEnum
	case TagNumber:
		return protocol.SymbolKindNumber
	case TagBoolean:
		return protocol.SymbolKindBoolean
	case TagInterface:
		return protocol.SymbolKindInterface
	case TagConstant, TagConstantBuiltin:
		return protocol.SymbolKindConstant
	case TagProperty, TagGetter, TagSetter:
		return protocol.SymbolKindProperty
	case TagMethod:
		return protocol.SymbolKindMethod
	case TagConstructor:
		return protocol.SymbolKindConstructor
	case TagField:
		return protocol.SymbolKindField
	case TagFile:
		return protocol.SymbolKindFile
	case TagClass:
		return protocol.SymbolKindClass
	case TagEnumMember:
		return protocol.SymbolKindEnumMember
	case TagOperator, TagPunctuation, TagPunctuationBracket,
		TagPunctuationDelimiter, TagPunctuationSpecial, TagConditional:
		return protocol.SymbolKindOperator
	}
	return protocol.SymbolKindString
}
