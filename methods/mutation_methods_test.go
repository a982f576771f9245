package methods

import (
	"strings"
	"testing"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
)

func TestLowerPushWritesBackAndYieldsNewLength(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "push", []*ast.Node{ast.Number(9)})
	if !ok {
		t.Fatal("push should be recognized")
	}
	if !strings.Contains(frag.Text, "global.set $arr") {
		t.Errorf("push on a plain identifier receiver should write back the new pointer, got %s", frag.Text)
	}
	if !strings.Contains(frag.Text, "f64.convert_i32_s") {
		t.Errorf("push should yield the new length as f64, got %s", frag.Text)
	}
}

func TestLowerPushWithNonIdentReceiverSkipsWriteback(t *testing.T) {
	c := codegen.New()
	// a[0].push(...) — receiver is an index expression, not a bindable
	// identifier, so there's nothing to write the new pointer back to.
	recv := ast.New(ast.OpIndex, ast.Ident("a"), ast.Number(0))
	frag, ok := Lower(c, recv, "push", []*ast.Node{ast.Number(1)})
	if !ok {
		t.Fatal("push should be recognized")
	}
	if strings.Contains(frag.Text, "global.set $a") {
		t.Errorf("a non-identifier receiver has no binding to write back to, got %s", frag.Text)
	}
}

func TestLowerPopYieldsNaNWhenEmpty(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "pop", nil)
	if !ok {
		t.Fatal("pop should be recognized")
	}
	if !strings.Contains(frag.Text, "f64.const nan") {
		t.Errorf("pop on empty should yield NaN per spec edge-case policy, got %s", frag.Text)
	}
}

func TestLowerShiftConvertsBindingToRing(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "shift", nil)
	if !ok {
		t.Fatal("shift should be recognized")
	}
	if !strings.Contains(frag.Text, "__to_ring") {
		t.Errorf("shift on a named binding should convert the flat array to ring form first, got %s", frag.Text)
	}
	if !strings.Contains(frag.Text, "__arr_shift") {
		t.Errorf("shift should remove the head through __arr_shift, got %s", frag.Text)
	}
	for _, helper := range []string{"__arr_shift", "__is_ring", "__to_ring"} {
		if !c.Stdlib[helper] {
			t.Errorf("shift should require %s", helper)
		}
	}
}

func TestLowerShiftOnNonIdentStaysFlat(t *testing.T) {
	c := codegen.New()
	recv := ast.New(ast.OpIndex, ast.Ident("a"), ast.Number(0))
	frag, ok := Lower(c, recv, "shift", nil)
	if !ok {
		t.Fatal("shift should be recognized")
	}
	if strings.Contains(frag.Text, "__to_ring") {
		t.Errorf("a receiver with no binding cannot be rebound to a ring, got %s", frag.Text)
	}
	if !strings.Contains(frag.Text, "__arr_shift") {
		t.Errorf("shift should still delegate to __arr_shift, got %s", frag.Text)
	}
}

func TestLowerUnshiftPrependsArgsInReverse(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "unshift", []*ast.Node{ast.Number(1), ast.Number(2)})
	if !ok {
		t.Fatal("unshift should be recognized")
	}
	if n := strings.Count(frag.Text, "call $__arr_unshift"); n != 2 {
		t.Errorf("unshift with two arguments should prepend twice, got %d calls in %s", n, frag.Text)
	}
	if !strings.Contains(frag.Text, "global.set $arr") {
		t.Errorf("unshift should rebind the receiver to the possibly-new ring pointer, got %s", frag.Text)
	}
	// The last prepend must be args[0] so it ends up at the head.
	first := strings.Index(frag.Text, "$__m_arg_")
	last := strings.LastIndex(frag.Text, "$__m_arg_")
	if first == last {
		t.Fatalf("expected two distinct argument locals in %s", frag.Text)
	}
}

func TestLowerConcatSumsLengths(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("a"), "concat", []*ast.Node{ast.Ident("b")})
	if !ok {
		t.Fatal("concat should be recognized")
	}
	if frag.Kind != codegen.KindArray {
		t.Errorf("concat should yield KindArray, got %v", frag.Kind)
	}
	if !strings.Contains(frag.Text, "__ptr_len") {
		t.Errorf("concat should compute each argument array's length via __ptr_len, got %s", frag.Text)
	}
}

func TestLowerFlatDetectsNestedArraysByPointerhood(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "flat", nil)
	if !ok {
		t.Fatal("flat should be recognized")
	}
	if !strings.Contains(frag.Text, "__is_pointer") || !strings.Contains(frag.Text, "__ptr_type") {
		t.Errorf("flat should test each element's pointerhood/type, got %s", frag.Text)
	}
}

func TestLowerFlatMapComposesMapAndFlat(t *testing.T) {
	c := codegen.New()
	cb := arrowCallback("x", ast.New(ast.OpArray, ast.Ident("x")))
	frag, ok := Lower(c, ast.Ident("arr"), "flatMap", []*ast.Node{cb})
	if !ok {
		t.Fatal("flatMap should be recognized")
	}
	if frag.Kind != codegen.KindArray {
		t.Errorf("flatMap should yield KindArray, got %v", frag.Kind)
	}
}

func TestLowerJoinDefaultsToComma(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "join", nil)
	if !ok {
		t.Fatal("join should be recognized")
	}
	if !strings.Contains(frag.Text, "__str_lit_comma") {
		t.Errorf("join with no separator argument should default to a comma, got %s", frag.Text)
	}
	if frag.Kind != codegen.KindString {
		t.Errorf("join should yield KindString, got %v", frag.Kind)
	}
}

func TestLowerJoinWithExplicitSeparator(t *testing.T) {
	c := codegen.New()
	sep := &ast.Node{Op: ast.OpIdent, Name: "sep"}
	c.Generate(ast.New(ast.OpAssign, sep, ast.Number(0))) // bind sep so c.Generate(sep) below doesn't error
	frag, ok := Lower(c, ast.Ident("arr"), "join", []*ast.Node{sep})
	if !ok {
		t.Fatal("join should be recognized")
	}
	if strings.Contains(frag.Text, "__str_lit_comma") {
		t.Errorf("an explicit separator should not fall back to the default comma, got %s", frag.Text)
	}
}

func TestLowerFillOverwritesRange(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "fill", []*ast.Node{ast.Number(7)})
	if !ok {
		t.Fatal("fill should be recognized")
	}
	if frag.Kind != codegen.KindArray {
		t.Errorf("fill should yield KindArray (the mutated receiver), got %v", frag.Kind)
	}
}

func TestLowerSetCopiesFromSource(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("ta"), "set", []*ast.Node{ast.Ident("src")})
	if !ok {
		t.Fatal("set should be recognized")
	}
	if frag.Kind != codegen.KindArray {
		t.Errorf("set on a plain receiver should yield KindArray, got %v", frag.Kind)
	}
	if !strings.Contains(frag.Text, "call $__arr_set") {
		t.Errorf("set should store through the smart accessor, got %s", frag.Text)
	}
}

func TestLowerCopyWithinUsesScratchForOverlap(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("ta"), "copyWithin", []*ast.Node{ast.Number(0), ast.Number(1), ast.Number(3)})
	if !ok {
		t.Fatal("copyWithin should be recognized")
	}
	if !strings.Contains(frag.Text, "$__m_scratch_") {
		t.Errorf("copyWithin should stage through a scratch buffer to handle overlap, got %s", frag.Text)
	}
}

func TestLowerSortDefaultsToNumericAscending(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "sort", nil)
	if !ok {
		t.Fatal("sort should be recognized")
	}
	if !strings.Contains(frag.Text, "f64.lt") {
		t.Errorf("default sort should use a numeric comparator, got %s", frag.Text)
	}
}

func TestLowerSortWithComparatorSubstitutesParams(t *testing.T) {
	c := codegen.New()
	cmp := ast.New(ast.OpArrow,
		ast.New(ast.OpComma, ast.Ident("a"), ast.Ident("b")),
		ast.New(ast.OpSub, ast.Ident("a"), ast.Ident("b")))
	frag, ok := Lower(c, ast.Ident("arr"), "sort", []*ast.Node{cmp})
	if !ok {
		t.Fatal("sort should be recognized")
	}
	if !strings.Contains(frag.Text, "f64.sub") {
		t.Errorf("a custom comparator's body should be inlined, got %s", frag.Text)
	}
}

func TestLowerToSortedSharesSortLowering(t *testing.T) {
	c := codegen.New()
	sorted, ok := Lower(c, ast.Ident("arr"), "toSorted", nil)
	if !ok {
		t.Fatal("toSorted should be recognized")
	}
	if sorted.Kind != codegen.KindArray {
		t.Errorf("toSorted should yield KindArray, got %v", sorted.Kind)
	}
	if strings.Contains(sorted.Text, "global.set $arr") {
		t.Errorf("toSorted must leave its input binding untouched, got %s", sorted.Text)
	}
}

func TestLowerSortRebindsReceiver(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "sort", nil)
	if !ok {
		t.Fatal("sort should be recognized")
	}
	if !strings.Contains(frag.Text, "global.set $arr") {
		t.Errorf("sort should rebind the receiver to the sorted copy, got %s", frag.Text)
	}
}

func TestLowerWithLeavesReceiverUntouched(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "with", []*ast.Node{ast.Number(0), ast.Number(99)})
	if !ok {
		t.Fatal("with should be recognized")
	}
	if !strings.Contains(frag.Text, "$__alloc") {
		t.Errorf("with should allocate a new array rather than mutate the receiver, got %s", frag.Text)
	}
	if strings.Contains(frag.Text, "global.set $arr") {
		t.Errorf("with must never write back to the receiver binding, got %s", frag.Text)
	}
}

func TestLowerWithAdjustsNegativeIndex(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "with", []*ast.Node{ast.Number(-1), ast.Number(5)})
	if !ok {
		t.Fatal("with should be recognized")
	}
	if !strings.Contains(frag.Text, "i32.lt_s") {
		t.Errorf("with should adjust a negative index, got %s", frag.Text)
	}
}

func TestWritebackOrNopNeverReturnsEmptyString(t *testing.T) {
	c := codegen.New()
	nonIdent := ast.New(ast.OpIndex, ast.Ident("a"), ast.Number(0))
	got := writebackOrNop(c, nonIdent, "$__m_newarr_1")
	if got != "(nop)" {
		t.Errorf("writebackOrNop should fall back to (nop) for a non-identifier receiver, got %q", got)
	}
}
