package methods

import (
	"strings"
	"testing"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
)

// arrowCallback builds a single-parameter arrow callback a.e. `x => x + 1`.
func arrowCallback(param string, body *ast.Node) *ast.Node {
	return ast.New(ast.OpArrow, ast.Ident(param), body)
}

func TestLowerUnknownMethodFallsBack(t *testing.T) {
	c := codegen.New()
	_, ok := Lower(c, ast.Ident("arr"), "notAMethod", nil)
	if ok {
		t.Fatal("unrecognized method name should report ok=false so the caller falls back")
	}
}

func TestLowerMapEmitsAllocAndLoop(t *testing.T) {
	c := codegen.New()
	cb := arrowCallback("x", ast.New(ast.OpAdd, ast.Ident("x"), ast.Number(1)))
	frag, ok := Lower(c, ast.Ident("arr"), "map", []*ast.Node{cb})
	if !ok {
		t.Fatal("map should be recognized")
	}
	if frag.Kind != codegen.KindArray {
		t.Errorf("map should yield KindArray, got %v", frag.Kind)
	}
	if !strings.Contains(frag.Text, "$__alloc") {
		t.Errorf("map should allocate a result array, got %s", frag.Text)
	}
	if !strings.Contains(frag.Text, "loop $body_") {
		t.Errorf("map should emit an inlined loop, got %s", frag.Text)
	}
	if !c.Stdlib["__arr_get"] {
		t.Error("map should require __arr_get")
	}
}

func TestLowerFilterRebindsLength(t *testing.T) {
	c := codegen.New()
	cb := arrowCallback("x", ast.New(ast.OpGt, ast.Ident("x"), ast.Number(0)))
	frag, ok := Lower(c, ast.Ident("arr"), "filter", []*ast.Node{cb})
	if !ok {
		t.Fatal("filter should be recognized")
	}
	if !strings.Contains(frag.Text, "__ptr_set_len") {
		t.Errorf("filter should rebind the result length header, got %s", frag.Text)
	}
}

func TestLowerFindYieldsNaNSentinel(t *testing.T) {
	c := codegen.New()
	cb := arrowCallback("x", ast.New(ast.OpGt, ast.Ident("x"), ast.Number(0)))
	frag, ok := Lower(c, ast.Ident("arr"), "find", []*ast.Node{cb})
	if !ok {
		t.Fatal("find should be recognized")
	}
	if !strings.Contains(frag.Text, "f64.const nan") {
		t.Errorf("find's not-found case should yield NaN per spec edge-case policy, got %s", frag.Text)
	}
}

func TestLowerFindIndexYieldsNegativeOneSentinel(t *testing.T) {
	c := codegen.New()
	cb := arrowCallback("x", ast.New(ast.OpGt, ast.Ident("x"), ast.Number(0)))
	frag, ok := Lower(c, ast.Ident("arr"), "findIndex", []*ast.Node{cb})
	if !ok {
		t.Fatal("findIndex should be recognized")
	}
	if !strings.Contains(frag.Text, "f64.const -1") {
		t.Errorf("findIndex's not-found case should yield -1, got %s", frag.Text)
	}
}

func TestLowerIncludesYieldsBool(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "includes", []*ast.Node{ast.Number(3)})
	if !ok {
		t.Fatal("includes should be recognized")
	}
	if frag.Kind != codegen.KindBool {
		t.Errorf("includes should yield KindBool, got %v", frag.Kind)
	}
}

func TestLowerEveryShortCircuitsOnFalse(t *testing.T) {
	c := codegen.New()
	cb := arrowCallback("x", ast.New(ast.OpGt, ast.Ident("x"), ast.Number(0)))
	frag, ok := Lower(c, ast.Ident("arr"), "every", []*ast.Node{cb})
	if !ok {
		t.Fatal("every should be recognized")
	}
	if !strings.Contains(frag.Text, "(i32.const 1)") {
		t.Errorf("every's default (empty array) result should be true, got %s", frag.Text)
	}
}

func TestLowerSomeDefaultsFalse(t *testing.T) {
	c := codegen.New()
	cb := arrowCallback("x", ast.New(ast.OpGt, ast.Ident("x"), ast.Number(0)))
	frag, ok := Lower(c, ast.Ident("arr"), "some", []*ast.Node{cb})
	if !ok {
		t.Fatal("some should be recognized")
	}
	if !strings.Contains(frag.Text, "(i32.const 0)") {
		t.Errorf("some's default (empty array) result should be false, got %s", frag.Text)
	}
}

func TestLowerSliceClampsAndAdjustsNegativeIndices(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "slice", []*ast.Node{ast.Number(-1), ast.Number(-0)})
	if !ok {
		t.Fatal("slice should be recognized")
	}
	if !strings.Contains(frag.Text, "i32.lt_s") {
		t.Errorf("slice should check for negative indices, got %s", frag.Text)
	}
}

func TestLowerSubarrayIsZeroCopy(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("ta"), "subarray", []*ast.Node{ast.Number(1), ast.Number(3)})
	if !ok {
		t.Fatal("subarray should be recognized")
	}
	if frag.Kind != codegen.KindTypedArray {
		t.Errorf("subarray should yield KindTypedArray, got %v", frag.Kind)
	}
	if !strings.Contains(frag.Text, "__mk_typed_subarray") {
		t.Errorf("subarray should delegate to __mk_typed_subarray, got %s", frag.Text)
	}
}

func TestLowerReverseAndToReversedShareLowering(t *testing.T) {
	c := codegen.New()
	rev, ok := Lower(c, ast.Ident("arr"), "reverse", nil)
	if !ok {
		t.Fatal("reverse should be recognized")
	}
	toRev, ok := Lower(c, ast.Ident("arr"), "toReversed", nil)
	if !ok {
		t.Fatal("toReversed should be recognized")
	}
	if rev.Kind != toRev.Kind {
		t.Errorf("reverse and toReversed should share the same lowering shape")
	}
}

func TestLowerAtAdjustsNegativeIndex(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "at", []*ast.Node{ast.Number(-1)})
	if !ok {
		t.Fatal("at should be recognized")
	}
	if !strings.Contains(frag.Text, "i32.lt_s") {
		t.Errorf("at should adjust a negative index, got %s", frag.Text)
	}
}

func TestLowerReduceSeedsFromSecondArgWhenProvided(t *testing.T) {
	c := codegen.New()
	cb := ast.New(ast.OpArrow,
		ast.New(ast.OpComma, ast.Ident("acc"), ast.Ident("cur")),
		ast.New(ast.OpAdd, ast.Ident("acc"), ast.Ident("cur")))
	frag, ok := Lower(c, ast.Ident("arr"), "reduce", []*ast.Node{cb, ast.Number(10)})
	if !ok {
		t.Fatal("reduce should be recognized")
	}
	if !strings.Contains(frag.Text, "10") {
		t.Errorf("reduce should seed the accumulator from the provided initial value, got %s", frag.Text)
	}
}

func TestLowerReduceRightIteratesDescending(t *testing.T) {
	c := codegen.New()
	cb := ast.New(ast.OpArrow,
		ast.New(ast.OpComma, ast.Ident("acc"), ast.Ident("cur")),
		ast.New(ast.OpAdd, ast.Ident("acc"), ast.Ident("cur")))
	frag, ok := Lower(c, ast.Ident("arr"), "reduceRight", []*ast.Node{cb})
	if !ok {
		t.Fatal("reduceRight should be recognized")
	}
	if !strings.Contains(frag.Text, "i32.const -1") {
		t.Errorf("reduceRight should step the index backward, got %s", frag.Text)
	}
}

func TestLowerForEachYieldsNaNAndDropsResult(t *testing.T) {
	c := codegen.New()
	cb := arrowCallback("x", ast.Ident("x"))
	frag, ok := Lower(c, ast.Ident("arr"), "forEach", []*ast.Node{cb})
	if !ok {
		t.Fatal("forEach should be recognized")
	}
	if !strings.Contains(frag.Text, "(drop") {
		t.Errorf("forEach should drop the callback result each iteration, got %s", frag.Text)
	}
	if !strings.Contains(frag.Text, "f64.const nan") {
		t.Errorf("forEach should yield NaN overall, got %s", frag.Text)
	}
}

func TestInlineCallbackRequiresArrowLiteral(t *testing.T) {
	c := codegen.New()
	text := inlineCallback(c, ast.Number(5), "$__m_elem_0")
	if len(c.Errors()) == 0 {
		t.Error("a non-arrow callback should record an error")
	}
	if text == "" {
		t.Error("inlineCallback should still return placeholder text on error")
	}
}

func TestInlineCallbackZeroParamsLowersBodyUnsubstituted(t *testing.T) {
	c := codegen.New()
	cb := ast.New(ast.OpArrow, nil, ast.Number(1))
	text := inlineCallback(c, cb, "$__m_elem_7")
	if text != "(f64.const 1)" {
		t.Errorf("a zero-param callback should lower its body with nothing bound, got %q", text)
	}
}

func TestInlineCallbackBindsIndexParameter(t *testing.T) {
	c := codegen.New()
	cb := ast.New(ast.OpArrow,
		ast.New(ast.OpComma, ast.Ident("x"), ast.Ident("i")),
		ast.New(ast.OpAdd, ast.Ident("x"), ast.Ident("i")))
	text := inlineCallback(c, cb, "$__m_elem_3", "$__m_fidx_3")
	if !strings.Contains(text, "$__m_fidx_3") {
		t.Errorf("a two-param callback should bind its index parameter to the supplied local, got %q", text)
	}
}

func TestSubstituteIdentRewritesOnlyMatchingNames(t *testing.T) {
	body := ast.New(ast.OpAdd, ast.Ident("x"), ast.Ident("y"))
	out := substituteIdent(body, "x", "$__raw")
	if out.Children[0].Name != "$raw:$__raw" {
		t.Errorf("matching identifier should be rewritten, got %q", out.Children[0].Name)
	}
	if out.Children[1].Name != "y" {
		t.Errorf("non-matching identifier should be untouched, got %q", out.Children[1].Name)
	}
}
