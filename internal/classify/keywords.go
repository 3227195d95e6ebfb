package classify

import (
	"strings"
)

// Keywords returns the keyword list of a language, read from the source of
// its highlights query. A keyword is a string literal that is a direct child
// of a "[...]" alternation captured as @keyword or @repeat. Quotes are
// stripped, single-character tokens dropped, and duplicates removed while
// keeping first-seen order.
func Keywords(highlights string) []string {
	root := parseSexp(highlights)

	var keywords []string
	seen := make(map[string]bool)
	var walk func(n *sexpNode)
	walk = func(n *sexpNode) {
		if n.kind == sexpAlternation && n.hasCapture("keyword", "repeat") {
			for _, c := range n.children {
				if c.kind != sexpString || len(c.text) <= 1 || seen[c.text] {
					continue
				}
				seen[c.text] = true
				keywords = append(keywords, c.text)
			}
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
	return keywords
}

type sexpKind int

const (
	sexpRoot sexpKind = iota
	sexpGroup
	sexpAlternation
	sexpString
	sexpAtom
)

// sexpNode is one element of a query source: a parenthesised pattern, a
// bracketed alternation, a string literal, or a bare atom. Captures written
// after an element are attached to it.
type sexpNode struct {
	kind     sexpKind
	text     string
	children []*sexpNode
	captures []string
}

func (n *sexpNode) hasCapture(names ...string) bool {
	for _, c := range n.captures {
		for _, name := range names {
			if NormalizeCapture(c) == name {
				return true
			}
		}
	}
	return false
}

// parseSexp reads query source leniently: unbalanced closers are ignored and
// unterminated groups end at EOF.
func parseSexp(src string) *sexpNode {
	root := &sexpNode{kind: sexpRoot}
	stack := []*sexpNode{root}
	top := func() *sexpNode { return stack[len(stack)-1] }

	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case ch == ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(' || ch == '[':
			kind := sexpGroup
			if ch == '[' {
				kind = sexpAlternation
			}
			n := &sexpNode{kind: kind}
			top().children = append(top().children, n)
			stack = append(stack, n)
			i++
		case ch == ')' || ch == ']':
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			i++
		case ch == '"':
			text, next := readString(src, i)
			top().children = append(top().children, &sexpNode{kind: sexpString, text: text})
			i = next
		case ch == '@':
			j := i + 1
			for j < len(src) && isAtomByte(src[j]) {
				j++
			}
			parent := top()
			if len(parent.children) > 0 {
				last := parent.children[len(parent.children)-1]
				last.captures = append(last.captures, src[i+1:j])
			}
			i = j
		default:
			j := i
			for j < len(src) && isAtomByte(src[j]) {
				j++
			}
			if j == i {
				// Quantifiers, anchors and other punctuation.
				i++
				continue
			}
			top().children = append(top().children, &sexpNode{kind: sexpAtom, text: src[i:j]})
			i = j
		}
	}
	return root
}

// readString reads the string literal starting at src[start] == '"' and
// returns its unescaped value and the index just past the closing quote.
func readString(src string, start int) (string, int) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == '"':
			return b.String(), i + 1
		case ch == '\\' && i+1 < len(src):
			switch esc := src[i+1]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(esc)
			}
			i += 2
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String(), i
}

func isAtomByte(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '(', ')', '[', ']', '"', ';', '@':
		return false
	case '*', '+', '?':
		return false
	}
	return true
}
