// Package position converts between byte offsets, tree-sitter points, and
// protocol positions. Columns are byte columns everywhere.
package position

import (
	"bytes"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ClampOffset clamps offset into [0, len(src)].
func ClampOffset(src []byte, offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(src) {
		return len(src)
	}
	return offset
}

// OffsetToPoint returns the row/column point of a byte offset. Offsets outside
// the buffer are clamped first.
func OffsetToPoint(src []byte, offset int) sitter.Point {
	offset = ClampOffset(src, offset)
	prefix := src[:offset]
	row := bytes.Count(prefix, []byte{'\n'})
	lineStart := bytes.LastIndexByte(prefix, '\n') + 1
	return sitter.Point{Row: uint32(row), Column: uint32(offset - lineStart)}
}

// PointToOffset returns the byte offset of a point. A row past the end of the
// buffer clamps to len(src); a column past the end of its line clamps to the
// line's terminating newline.
func PointToOffset(src []byte, p sitter.Point) int {
	lineStart := 0
	for row := uint32(0); row < p.Row; row++ {
		nl := bytes.IndexByte(src[lineStart:], '\n')
		if nl < 0 {
			return len(src)
		}
		lineStart += nl + 1
	}
	lineEnd := len(src)
	if nl := bytes.IndexByte(src[lineStart:], '\n'); nl >= 0 {
		lineEnd = lineStart + nl
	}
	offset := lineStart + int(p.Column)
	if offset > lineEnd {
		return lineEnd
	}
	return offset
}

// Compare orders two points: -1 if a precedes b, 1 if it follows, 0 if equal.
func Compare(a, b sitter.Point) int {
	switch {
	case a.Row < b.Row:
		return -1
	case a.Row > b.Row:
		return 1
	case a.Column < b.Column:
		return -1
	case a.Column > b.Column:
		return 1
	}
	return 0
}

// FromProtocol converts a protocol position to a point.
func FromProtocol(p protocol.Position) sitter.Point {
	return sitter.Point{Row: p.Line, Column: p.Character}
}

// ToProtocol converts a point to a protocol position.
func ToProtocol(p sitter.Point) protocol.Position {
	return protocol.Position{Line: p.Row, Character: p.Column}
}

// RangeToProtocol converts a tree-sitter range to a protocol range.
func RangeToProtocol(r sitter.Range) protocol.Range {
	return protocol.Range{Start: ToProtocol(r.StartPoint), End: ToProtocol(r.EndPoint)}
}

// NodeRange returns the protocol range covered by a node.
func NodeRange(n *sitter.Node) protocol.Range {
	return protocol.Range{Start: ToProtocol(n.StartPoint()), End: ToProtocol(n.EndPoint())}
}

// Contains reports whether outer covers inner. Equal ranges contain each other.
func Contains(outer, inner sitter.Range) bool {
	return outer.StartByte <= inner.StartByte && inner.EndByte <= outer.EndByte
}

// ContainsPoint reports whether p lies within r, end inclusive so a cursor
// placed just after an identifier still hits it.
func ContainsPoint(r sitter.Range, p sitter.Point) bool {
	return Compare(r.StartPoint, p) <= 0 && Compare(p, r.EndPoint) <= 0
}
