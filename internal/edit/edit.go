// Package edit translates editor content changes into tree-sitter edit
// descriptors and the updated source buffer.
package edit

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls/internal/position"
)

// Change is a single content change. A nil Range replaces the whole buffer.
type Change struct {
	Range *protocol.Range
	Text  string
}

// Descriptor describes one splice in both byte and point coordinates.
// Start and old end are measured in the buffer before the splice, new end in
// the buffer after it.
type Descriptor struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  sitter.Point
	OldEndPoint sitter.Point
	NewEndPoint sitter.Point
}

// Input converts d to the form accepted by (*sitter.Tree).Edit.
func (d Descriptor) Input() sitter.EditInput {
	return sitter.EditInput{
		StartIndex:  d.StartByte,
		OldEndIndex: d.OldEndByte,
		NewEndIndex: d.NewEndByte,
		StartPoint:  d.StartPoint,
		OldEndPoint: d.OldEndPoint,
		NewEndPoint: d.NewEndPoint,
	}
}

// Tree is the part of *sitter.Tree the translator needs.
type Tree interface {
	Edit(sitter.EditInput)
}

var _ Tree = (*sitter.Tree)(nil)

// Apply applies changes to src in order. Each change's range is resolved
// against the buffer produced by the changes before it, and its descriptor is
// applied to tree (when non-nil) before the next change is resolved.
//
// src is never modified; every intermediate buffer is a fresh allocation.
// An empty batch returns src and no descriptors.
func Apply(src []byte, changes []Change, tree Tree) ([]byte, []Descriptor) {
	if len(changes) == 0 {
		return src, nil
	}

	buf := src
	descs := make([]Descriptor, 0, len(changes))
	for _, ch := range changes {
		start, end := 0, len(buf)
		if ch.Range != nil {
			start = position.PointToOffset(buf, position.FromProtocol(ch.Range.Start))
			end = position.PointToOffset(buf, position.FromProtocol(ch.Range.End))
			if end < start {
				start, end = end, start
			}
		}

		next := make([]byte, 0, len(buf)-(end-start)+len(ch.Text))
		next = append(next, buf[:start]...)
		next = append(next, ch.Text...)
		next = append(next, buf[end:]...)

		newEnd := start + len(ch.Text)
		d := Descriptor{
			StartByte:   uint32(start),
			OldEndByte:  uint32(end),
			NewEndByte:  uint32(newEnd),
			StartPoint:  position.OffsetToPoint(buf, start),
			OldEndPoint: position.OffsetToPoint(buf, end),
			NewEndPoint: position.OffsetToPoint(next, newEnd),
		}
		if tree != nil {
			tree.Edit(d.Input())
		}
		descs = append(descs, d)
		buf = next
	}
	return buf, descs
}

// FromProtocol converts the content changes of a didChange notification.
func FromProtocol(events []any) ([]Change, error) {
	changes := make([]Change, 0, len(events))
	for i, ev := range events {
		switch c := ev.(type) {
		case protocol.TextDocumentContentChangeEvent:
			changes = append(changes, Change{Range: c.Range, Text: c.Text})
		case *protocol.TextDocumentContentChangeEvent:
			changes = append(changes, Change{Range: c.Range, Text: c.Text})
		case protocol.TextDocumentContentChangeEventWhole:
			changes = append(changes, Change{Text: c.Text})
		case *protocol.TextDocumentContentChangeEventWhole:
			changes = append(changes, Change{Text: c.Text})
		default:
			return nil, fmt.Errorf("edit: content change %d: unexpected type %T", i, ev)
		}
	}
	return changes, nil
}
