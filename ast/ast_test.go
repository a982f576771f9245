package ast

import "testing"

func TestLeafConstructors(t *testing.T) {
	if n := Number(3.5); n.Op != OpNumber || n.Num != 3.5 || !n.IsLeaf() {
		t.Errorf("Number(3.5) = %+v", n)
	}
	if n := Boolean(true); n.Op != OpBool || !n.Bool {
		t.Errorf("Boolean(true) = %+v", n)
	}
	if n := Null(); n.Op != OpNull {
		t.Errorf("Null() = %+v", n)
	}
	if n := Ident("x"); n.Op != OpIdent || n.Name != "x" {
		t.Errorf("Ident(x) = %+v", n)
	}
}

func TestChildOutOfRangeReturnsNil(t *testing.T) {
	n := New(OpAdd, Number(1), Number(2))
	if n.Child(5) != nil {
		t.Error("Child past the end should be nil")
	}
	var nilNode *Node
	if nilNode.Child(0) != nil {
		t.Error("Child on a nil node should be nil, not panic")
	}
}

func TestCallAccessorsZeroArgs(t *testing.T) {
	call := New(OpCall, Ident("f"), nil)
	if call.Callee().Name != "f" {
		t.Errorf("Callee = %+v", call.Callee())
	}
	if args := call.CallArgs(); len(args) != 0 {
		t.Errorf("expected zero args, got %d", len(args))
	}
}

func TestCallAccessorsMultipleArgs(t *testing.T) {
	args := New(OpComma, Number(1), Number(2), Number(3))
	call := New(OpCall, Ident("f"), args)
	got := call.CallArgs()
	if len(got) != 3 {
		t.Fatalf("expected 3 args, got %d", len(got))
	}
	for i, want := range []float64{1, 2, 3} {
		if got[i].Num != want {
			t.Errorf("arg %d = %v, want %v", i, got[i].Num, want)
		}
	}
}

func TestCallAccessorsSingleArg(t *testing.T) {
	call := New(OpCall, Ident("f"), Number(9))
	got := call.CallArgs()
	if len(got) != 1 || got[0].Num != 9 {
		t.Errorf("single-arg call should flatten to one element, got %+v", got)
	}
}

func TestArrowAccessors(t *testing.T) {
	params := New(OpComma, Ident("a"), Ident("b"))
	body := New(OpAdd, Ident("a"), Ident("b"))
	arrow := New(OpArrow, params, body)
	got := arrow.ArrowParams()
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("ArrowParams = %+v", got)
	}
	if arrow.ArrowBody() != body {
		t.Error("ArrowBody should return the body node")
	}
}

func TestIfAccessorsNoElse(t *testing.T) {
	ifNode := New(OpIf, Boolean(true), New(OpBlock), nil)
	if ifNode.IfElse() != nil {
		t.Error("IfElse should be nil when absent")
	}
}

func TestMemberAccessors(t *testing.T) {
	m := New(OpMember, Ident("arr"), Ident("length"))
	if m.MemberObject().Name != "arr" {
		t.Errorf("MemberObject = %+v", m.MemberObject())
	}
	if m.MemberProperty() != "length" {
		t.Errorf("MemberProperty = %q", m.MemberProperty())
	}
}

func TestIndexAccessors(t *testing.T) {
	idx := New(OpIndex, Ident("arr"), Number(0))
	if idx.IndexObject().Name != "arr" {
		t.Errorf("IndexObject = %+v", idx.IndexObject())
	}
	if idx.IndexExpr().Num != 0 {
		t.Errorf("IndexExpr = %+v", idx.IndexExpr())
	}
}
