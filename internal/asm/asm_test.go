package asm

import (
	"testing"

	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/token"
)

func TestLabelPatching(t *testing.T) {
	a := New(0)
	span := token.Span{Start: 0, End: 1}

	end := a.NewLabel("end")
	a.Push(inst.Bool{Value: true}, span)
	a.JumpIf(end, span)
	a.Push(inst.Integer{Value: 1}, span)
	if err := a.Label(end); err != nil {
		t.Fatal(err)
	}
	a.Push(inst.Return{}, span)

	fin, err := a.Finalise()
	if err != nil {
		t.Fatal(err)
	}
	if len(fin.Insts) != 4 {
		t.Fatalf("insts = %d, want 4", len(fin.Insts))
	}
	jump, ok := fin.Insts[1].(inst.JumpIf)
	if !ok {
		t.Fatalf("expected JumpIf, got %T", fin.Insts[1])
	}
	if jump.Offset != 3 {
		t.Errorf("offset = %d, want 3", jump.Offset)
	}
}

// Finalisation fails while any referenced label is unbound.
func TestUnboundLabel(t *testing.T) {
	a := New(0)
	dangling := a.NewLabel("dangling")
	a.Jump(dangling, token.Span{})

	if _, err := a.Finalise(); err == nil {
		t.Fatal("expected an error for an unbound label")
	}
}

func TestDoubleBindFails(t *testing.T) {
	a := New(0)
	l := a.NewLabel("once")
	if err := a.Label(l); err != nil {
		t.Fatal(err)
	}
	if err := a.Label(l); err == nil {
		t.Fatal("expected an error binding a label twice")
	}
}

// An allocated but unreferenced label does not block finalisation.
func TestUnusedLabelIsFine(t *testing.T) {
	a := New(0)
	a.NewLabel("spare")
	a.Push(inst.ReturnUnit{}, token.Span{})
	if _, err := a.Finalise(); err != nil {
		t.Fatal(err)
	}
}

func TestPopAndJumpCount(t *testing.T) {
	a := New(0)
	out := a.NewLabel("out")
	a.PopAndJumpIfNot(3, out, token.Span{})
	if err := a.Label(out); err != nil {
		t.Fatal(err)
	}

	fin, err := a.Finalise()
	if err != nil {
		t.Fatal(err)
	}
	pj := fin.Insts[0].(inst.PopAndJumpIfNot)
	if pj.Count != 3 || pj.Offset != 1 {
		t.Errorf("got %+v", pj)
	}
}

func TestCommentsAndSpans(t *testing.T) {
	a := New(7)
	span := token.Span{Start: 5, End: 9}
	a.PushWithComment(inst.Unit{}, span, "unit value")

	fin, err := a.Finalise()
	if err != nil {
		t.Fatal(err)
	}
	if fin.Spans[0] != span {
		t.Errorf("span = %+v", fin.Spans[0])
	}
	if fin.Comments[0] != "unit value" {
		t.Errorf("comment = %q", fin.Comments[0])
	}
}
