package closure

import (
	"testing"

	"github.com/jz-lang/jzc/ast"
)

func hasName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func TestFreeVariable(t *testing.T) {
	// function(x) { return x + y }  -- y is free
	body := ast.New(ast.OpReturn, ast.New(ast.OpAdd, ast.Ident("x"), ast.Ident("y")))
	res := Analyze([]string{"x"}, body)
	if !res.Free["y"] {
		t.Error("y should be free")
	}
	if res.Free["x"] {
		t.Error("x is a parameter, should not be free")
	}
}

func TestBuiltinsNeverFree(t *testing.T) {
	body := ast.New(ast.OpReturn, ast.New(ast.OpAdd, ast.Ident("NaN"), ast.Ident("Infinity")))
	res := Analyze(nil, body)
	if len(res.Free) != 0 {
		t.Errorf("builtins should never be free, got %v", res.Free)
	}
}

func TestUnderscoreConventionNeverFree(t *testing.T) {
	body := ast.New(ast.OpReturn, ast.Ident("_scratch"))
	res := Analyze(nil, body)
	if res.Free["_scratch"] {
		t.Error("leading-underscore names should never be marked free")
	}
}

func TestNestedClosureCapture(t *testing.T) {
	// function(x) { return (y) => x + y }
	inner := ast.New(ast.OpArrow,
		ast.Ident("y"),
		ast.New(ast.OpAdd, ast.Ident("x"), ast.Ident("y")),
	)
	body := ast.New(ast.OpReturn, inner)
	res := Analyze([]string{"x"}, body)
	if len(res.Inner) != 1 {
		t.Fatalf("expected 1 nested function, got %d", len(res.Inner))
	}
	if !hasName(res.Inner[0].Captured, "x") {
		t.Errorf("inner arrow should capture x, got %v", res.Inner[0].Captured)
	}
	if hasName(res.Inner[0].Captured, "y") {
		t.Error("y is the inner function's own parameter, should not be captured")
	}
}

func TestHoistedVars(t *testing.T) {
	// function() { let x = 1; return () => x }
	assign := ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(1))
	inner := ast.New(ast.OpArrow, nil, ast.Ident("x"))
	body := ast.New(ast.OpBlock, assign, ast.New(ast.OpReturn, inner))
	hoisted := HoistedVars(nil, body)
	if !hasName(hoisted, "x") {
		t.Errorf("x should be hoisted since the inner closure captures it, got %v", hoisted)
	}
}

func TestNonCapturedLocalsNotHoisted(t *testing.T) {
	assign := ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(1))
	body := ast.New(ast.OpBlock, assign, ast.New(ast.OpReturn, ast.Ident("x")))
	hoisted := HoistedVars(nil, body)
	if hasName(hoisted, "x") {
		t.Error("x is never captured by a descendant closure, should not be hoisted")
	}
}

func TestNamedFunctionVisibleToSiblings(t *testing.T) {
	// function() { function f() { return 1 } return f() }
	decl := ast.New(ast.OpFunction, ast.Ident("f"), nil, ast.New(ast.OpReturn, ast.Number(1)))
	call := ast.New(ast.OpReturn, ast.New(ast.OpCall, ast.Ident("f"), nil))
	body := ast.New(ast.OpBlock, decl, call)
	res := Analyze(nil, body)
	if res.Free["f"] {
		t.Error("named function f should be visible to the sibling call, not free")
	}
}

func TestForLoopInitIntroducesVar(t *testing.T) {
	// for (x = 0; x < 10; x = x + 1) { y = x }
	init := ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(0))
	cond := ast.New(ast.OpLt, ast.Ident("x"), ast.Number(10))
	post := ast.New(ast.OpAssign, ast.Ident("x"), ast.New(ast.OpAdd, ast.Ident("x"), ast.Number(1)))
	forBody := ast.New(ast.OpAssign, ast.Ident("y"), ast.Ident("x"))
	forNode := ast.New(ast.OpFor, init, cond, post, forBody)
	res := Analyze(nil, forNode)
	if res.Free["x"] {
		t.Error("x introduced by the for-init clause should not be free")
	}
}

func TestDestructuredParamsFlatten(t *testing.T) {
	pattern := ast.New(ast.OpArray, ast.Ident("a"), ast.Ident("b"))
	arrow := ast.New(ast.OpArrow, pattern, ast.New(ast.OpAdd, ast.Ident("a"), ast.Ident("b")))
	res := Analyze(nil, ast.New(ast.OpReturn, arrow))
	if len(res.Inner) != 1 {
		t.Fatalf("expected 1 nested function")
	}
	if hasName(res.Inner[0].Captured, "a") || hasName(res.Inner[0].Captured, "b") {
		t.Error("destructured params should bind locally, not be captured")
	}
}

func TestThreeLevelCapturePropagatesThroughMiddleScope(t *testing.T) {
	// a => b => c => a + b + c — the innermost arrow reaches a, which the
	// middle arrow never mentions itself; a must still travel outward
	// through the middle function's capture list.
	innermost := ast.New(ast.OpArrow, ast.Ident("c"),
		ast.New(ast.OpAdd, ast.New(ast.OpAdd, ast.Ident("a"), ast.Ident("b")), ast.Ident("c")))
	middle := ast.New(ast.OpArrow, ast.Ident("b"), innermost)
	res := Analyze([]string{"a"}, middle)

	if len(res.Inner) != 1 {
		t.Fatalf("expected 1 nested function, got %d", len(res.Inner))
	}
	mid := res.Inner[0]
	if !hasName(mid.Captured, "a") {
		t.Errorf("middle arrow must capture a on behalf of its inner arrow, got %v", mid.Captured)
	}
	if hasName(mid.Captured, "b") {
		t.Errorf("b is the middle arrow's own parameter, got %v", mid.Captured)
	}
	if len(mid.Inner) != 1 {
		t.Fatalf("expected the innermost function below the middle one")
	}
	inner := mid.Inner[0]
	if !hasName(inner.Captured, "a") || !hasName(inner.Captured, "b") {
		t.Errorf("innermost arrow should capture both a and b, got %v", inner.Captured)
	}
}

func TestThreeLevelHoisting(t *testing.T) {
	// In a => b => c => a+b+c: a hoists at the outermost level, b at the
	// middle level, and neither level hoists the other's name.
	innermost := ast.New(ast.OpArrow, ast.Ident("c"),
		ast.New(ast.OpAdd, ast.New(ast.OpAdd, ast.Ident("a"), ast.Ident("b")), ast.Ident("c")))
	middle := ast.New(ast.OpArrow, ast.Ident("b"), innermost)

	outerHoisted := HoistedVars([]string{"a"}, middle)
	if !hasName(outerHoisted, "a") || hasName(outerHoisted, "b") {
		t.Errorf("outer level should hoist exactly a, got %v", outerHoisted)
	}
	midHoisted := HoistedVars([]string{"b"}, innermost)
	if !hasName(midHoisted, "b") || hasName(midHoisted, "a") {
		t.Errorf("middle level should hoist exactly b (a arrives via its incoming environment), got %v", midHoisted)
	}
}
