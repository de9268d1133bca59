// Package asm implements the per-function assembly: an append-only
// instruction buffer with symbolic labels, comments, and source spans.
// Labels are resolved when the assembly is finalised.
package asm

import (
	"fmt"

	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/token"
)

// Label is a symbolic jump target. Labels are allocated by NewLabel and
// bound to an instruction offset with Label(); finalisation patches every
// site that referenced them.
type Label struct {
	Name string
	ID   int
}

func (l Label) String() string {
	return fmt.Sprintf("%s_%d", l.Name, l.ID)
}

type entryKind int

const (
	entryRaw entryKind = iota
	entryJump
	entryJumpIf
	entryJumpIfNot
	entryPopAndJumpIfNot
)

type entry struct {
	kind    entryKind
	inst    inst.Inst
	label   Label
	count   int
	span    token.Span
	comment string
}

// Assembly is an instruction buffer under construction for one function.
type Assembly struct {
	SourceID  int
	entries   []entry
	labels    map[int]int
	nextLabel int
}

// New creates an empty assembly for the given source.
func New(sourceID int) *Assembly {
	return &Assembly{
		SourceID: sourceID,
		labels:   make(map[int]int),
	}
}

// NewLabel allocates a fresh label with a naming hint.
func (a *Assembly) NewLabel(hint string) Label {
	l := Label{Name: hint, ID: a.nextLabel}
	a.nextLabel++
	return l
}

// Label binds the label to the offset of the next instruction. Binding the
// same label twice is a bug.
func (a *Assembly) Label(l Label) error {
	if _, ok := a.labels[l.ID]; ok {
		return fmt.Errorf("label %s is already bound", l)
	}
	a.labels[l.ID] = len(a.entries)
	return nil
}

// Push appends an instruction.
func (a *Assembly) Push(in inst.Inst, span token.Span) {
	a.entries = append(a.entries, entry{kind: entryRaw, inst: in, span: span})
}

// PushWithComment appends an instruction with a disassembly comment.
func (a *Assembly) PushWithComment(in inst.Inst, span token.Span, comment string) {
	a.entries = append(a.entries, entry{kind: entryRaw, inst: in, span: span, comment: comment})
}

// Jump appends an unconditional jump to the label.
func (a *Assembly) Jump(l Label, span token.Span) {
	a.entries = append(a.entries, entry{kind: entryJump, label: l, span: span})
}

// JumpIf appends a jump taken when the popped condition is true.
func (a *Assembly) JumpIf(l Label, span token.Span) {
	a.entries = append(a.entries, entry{kind: entryJumpIf, label: l, span: span})
}

// JumpIfNot appends a jump taken when the popped condition is false.
func (a *Assembly) JumpIfNot(l Label, span token.Span) {
	a.entries = append(a.entries, entry{kind: entryJumpIfNot, label: l, span: span})
}

// PopAndJumpIfNot appends the combined cleanup-and-branch used after
// structural pattern checks.
func (a *Assembly) PopAndJumpIfNot(count int, l Label, span token.Span) {
	a.entries = append(a.entries, entry{kind: entryPopAndJumpIfNot, label: l, count: count, span: span})
}

// Len returns the number of instructions appended so far.
func (a *Assembly) Len() int {
	return len(a.entries)
}

// Finalised is the patched output of an assembly.
type Finalised struct {
	Insts    []inst.Inst
	Spans    []token.Span
	Comments []string
}

// Finalise verifies that every referenced label is bound and patches all
// pending jump sites to absolute instruction offsets.
func (a *Assembly) Finalise() (*Finalised, error) {
	out := &Finalised{
		Insts:    make([]inst.Inst, 0, len(a.entries)),
		Spans:    make([]token.Span, 0, len(a.entries)),
		Comments: make([]string, 0, len(a.entries)),
	}

	resolve := func(l Label) (int, error) {
		offset, ok := a.labels[l.ID]
		if !ok {
			return 0, fmt.Errorf("jump to unbound label %s", l)
		}
		return offset, nil
	}

	for _, e := range a.entries {
		var in inst.Inst

		switch e.kind {
		case entryRaw:
			in = e.inst
		case entryJump:
			offset, err := resolve(e.label)
			if err != nil {
				return nil, err
			}
			in = inst.Jump{Offset: offset}
		case entryJumpIf:
			offset, err := resolve(e.label)
			if err != nil {
				return nil, err
			}
			in = inst.JumpIf{Offset: offset}
		case entryJumpIfNot:
			offset, err := resolve(e.label)
			if err != nil {
				return nil, err
			}
			in = inst.JumpIfNot{Offset: offset}
		case entryPopAndJumpIfNot:
			offset, err := resolve(e.label)
			if err != nil {
				return nil, err
			}
			in = inst.PopAndJumpIfNot{Count: e.count, Offset: offset}
		}

		out.Insts = append(out.Insts, in)
		out.Spans = append(out.Spans, e.span)
		out.Comments = append(out.Comments, e.comment)
	}

	for id, offset := range a.labels {
		if offset > len(out.Insts) {
			return nil, fmt.Errorf("label %d bound past the end of the assembly", id)
		}
	}

	return out, nil
}
