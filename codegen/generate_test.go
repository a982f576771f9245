package codegen

import (
	"strings"
	"testing"

	"github.com/jz-lang/jzc/ast"
)

func TestGenerateNumberLiteral(t *testing.T) {
	c := New()
	f := c.Generate(ast.Number(3.5))
	if f.Kind != KindF64 || !strings.Contains(f.Text, "3.5") {
		t.Errorf("got %+v", f)
	}
}

func TestGenerateArithPromotesToF64(t *testing.T) {
	c := New()
	f := c.Generate(ast.New(ast.OpAdd, ast.Number(1), ast.Number(2)))
	if f.Kind != KindF64 || !strings.Contains(f.Text, "f64.add") {
		t.Errorf("got %+v", f)
	}
}

func TestGenerateModuloUsesTruncDivMul(t *testing.T) {
	c := New()
	f := c.Generate(ast.New(ast.OpMod, ast.Number(7), ast.Number(3)))
	if !strings.Contains(f.Text, "f64.trunc") || !strings.Contains(f.Text, "f64.div") {
		t.Errorf("modulo should use trunc(a/b)*b, got %s", f.Text)
	}
}

func TestGenerateCompareI32Signed(t *testing.T) {
	c := New()
	lt := ast.New(ast.OpLt, ast.Boolean(true), ast.Boolean(false))
	f := c.Generate(lt)
	if !strings.Contains(f.Text, "i32.lt_s") {
		t.Errorf("bool<bool should use signed i32 compare, got %s", f.Text)
	}
}

func TestGenerateAssignIsTeeInsideFunction(t *testing.T) {
	c := New()
	c.pushFrame("f", []string{"p"})
	f := c.Generate(ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(5)))
	if !strings.Contains(f.Text, "local.tee") {
		t.Errorf("assignment to a function local should compile to a tee, got %s", f.Text)
	}
}

func TestGenerateAssignAtTopLevelUsesGlobal(t *testing.T) {
	c := New()
	f := c.Generate(ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(5)))
	if !strings.Contains(f.Text, "global.set $x") {
		t.Errorf("a top-level assignment binds a module global, got %s", f.Text)
	}
}

func TestGenerateIndexReadCoercesIndexToI32(t *testing.T) {
	c := New()
	c.Generate(ast.New(ast.OpAssign, ast.Ident("a"), ast.New(ast.OpArray, ast.Number(1), ast.Number(2))))
	f := c.Generate(ast.New(ast.OpIndex, ast.Ident("a"), ast.Number(1)))
	if !strings.Contains(f.Text, "call $__arr_get") {
		t.Errorf("indexing should go through the smart accessor, got %s", f.Text)
	}
	if !strings.Contains(f.Text, "i32.trunc_f64_s") {
		t.Errorf("an f64 index must be demoted to i32 for the accessor, got %s", f.Text)
	}
}

func TestGenerateIndexAssignStoresAndYieldsValue(t *testing.T) {
	c := New()
	c.Generate(ast.New(ast.OpAssign, ast.Ident("a"), ast.New(ast.OpArray, ast.Number(1), ast.Number(2))))
	target := ast.New(ast.OpIndex, ast.Ident("a"), ast.Number(0))
	f := c.Generate(ast.New(ast.OpAssign, target, ast.Number(99)))
	if !strings.Contains(f.Text, "call $__arr_set") {
		t.Errorf("a[i] = v should store through the smart accessor, got %s", f.Text)
	}
	if !strings.Contains(f.Text, "(result f64)") || f.Kind != KindF64 {
		t.Errorf("an index assignment is an expression yielding the stored value, got %+v", f)
	}
}

func TestGenerateIndexAssignOnTypedArrayUsesTypedStore(t *testing.T) {
	c := New()
	mk := ast.New(ast.OpNew, ast.Ident("F64"),
		ast.New(ast.OpArray, ast.Number(1), ast.Number(2), ast.Number(3), ast.Number(4)))
	c.Generate(ast.New(ast.OpAssign, ast.Ident("t"), mk))
	target := ast.New(ast.OpIndex, ast.Ident("t"), ast.Number(1))
	f := c.Generate(ast.New(ast.OpAssign, target, ast.Number(99)))
	if !strings.Contains(f.Text, "call $__typed_set") {
		t.Errorf("t[i] = v on a typed array should store through __typed_set, got %s", f.Text)
	}
}

func TestGenerateUnknownIdentifierFails(t *testing.T) {
	c := New()
	c.Generate(ast.Ident("nope"))
	if len(c.Errors()) == 0 {
		t.Error("referencing an unknown identifier should record an error")
	}
}

func TestGenerateTernaryCommonKind(t *testing.T) {
	c := New()
	f := c.Generate(ast.New(ast.OpIf, ast.Boolean(true), ast.Number(1), ast.Number(2)))
	if !strings.Contains(f.Text, "if (result f64)") {
		t.Errorf("got %s", f.Text)
	}
}

func TestGenerateClosureLiteralRegistersFuncTable(t *testing.T) {
	c := New()
	arrow := ast.New(ast.OpArrow, ast.Ident("x"), ast.New(ast.OpAdd, ast.Ident("x"), ast.Number(1)))
	f := c.Generate(arrow)
	if f.Kind != KindClosure {
		t.Errorf("arrow literal should yield a closure-kind fragment, got %v", f.Kind)
	}
	if len(c.FuncTable) != 1 {
		t.Errorf("expected 1 function table entry, got %d", len(c.FuncTable))
	}
	if len(c.Pending) != 1 {
		t.Errorf("expected 1 pending function body, got %d", len(c.Pending))
	}
}

func TestGenerateClosureWithCaptureAllocatesEnv(t *testing.T) {
	c := New()
	c.pushFrame("outer", nil)
	c.allocLocal("y", "f64", KindF64)
	arrow := ast.New(ast.OpArrow, ast.Ident("x"), ast.New(ast.OpAdd, ast.Ident("x"), ast.Ident("y")))
	f := c.Generate(arrow)
	if !strings.Contains(f.Text, "__alloc") {
		t.Errorf("capturing closure should allocate an environment record, got %s", f.Text)
	}
}

func TestGenerateArrayLiteralStatic(t *testing.T) {
	c := New()
	arr := ast.New(ast.OpArray, ast.Number(1), ast.Number(2), ast.Number(3))
	f := c.Generate(arr)
	if f.Kind != KindArray {
		t.Errorf("got kind %v", f.Kind)
	}
	if len(c.staticArrays) != 1 {
		t.Errorf("constant array literal should be interned statically")
	}
}

func TestGenerateArrayLiteralDynamic(t *testing.T) {
	c := New()
	c.pushFrame("f", []string{"n"})
	c.allocLocal("n", "f64", KindF64)
	arr := ast.New(ast.OpArray, ast.Ident("n"), ast.Number(2))
	f := c.Generate(arr)
	if !strings.Contains(f.Text, "__alloc") {
		t.Errorf("non-constant array literal should allocate dynamically, got %s", f.Text)
	}
}

func TestGenerateMemberLength(t *testing.T) {
	c := New()
	c.pushFrame("f", []string{"arr"})
	c.allocLocal("arr", "f64", KindArray)
	m := ast.New(ast.OpMember, ast.Ident("arr"), ast.Ident("length"))
	f := c.Generate(m)
	if !strings.Contains(f.Text, "__ptr_len") {
		t.Errorf("got %s", f.Text)
	}
}

func TestGenerateDirectCallToTopLevelFunc(t *testing.T) {
	c := New()
	fn := ast.New(ast.OpFunction, ast.Ident("square"), ast.Ident("x"),
		ast.New(ast.OpReturn, ast.New(ast.OpMul, ast.Ident("x"), ast.Ident("x"))))
	c.Generate(fn)
	call := ast.New(ast.OpCall, ast.Ident("square"), ast.Number(4))
	f := c.Generate(call)
	if !strings.Contains(f.Text, "call $__closure_0") {
		t.Errorf("direct call to known top-level function should use `call`, got %s", f.Text)
	}
}

func TestGenerateNullishEvaluatesLeftOnce(t *testing.T) {
	c := New()
	c.Generate(ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(0)))
	f := c.Generate(ast.New(ast.OpNullish, ast.Ident("x"), ast.Number(7)))
	if !strings.Contains(f.Text, "local.set $__nul_") {
		t.Errorf("?? should bind its left operand to a scratch local, got %s", f.Text)
	}
	if !strings.Contains(f.Text, "f64.eq") {
		t.Errorf("?? is keyed on the left operand being zero, got %s", f.Text)
	}
}

func TestGenerateTypeofUsesReflectionHelper(t *testing.T) {
	c := New()
	f := c.Generate(ast.New(ast.OpTypeof, ast.Number(1)))
	if !strings.Contains(f.Text, "call $__typeof_code") {
		t.Errorf("typeof should go through __typeof_code, got %s", f.Text)
	}
	if !c.Stdlib["__typeof_code"] {
		t.Error("typeof should require the reflection helper")
	}
}

func TestGenerateDoWhileTestsAtLoopBottom(t *testing.T) {
	c := New()
	c.Generate(ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(0)))
	loop := ast.New(ast.OpDoWhile,
		ast.New(ast.OpLt, ast.Ident("x"), ast.Number(3)),
		ast.New(ast.OpAssign, ast.Ident("x"), ast.New(ast.OpAdd, ast.Ident("x"), ast.Number(1))))
	f := c.Generate(loop)
	bodyIdx := strings.Index(f.Text, "global.set $x")
	testIdx := strings.Index(f.Text, "br_if $body_")
	if bodyIdx == -1 || testIdx == -1 || bodyIdx > testIdx {
		t.Errorf("do/while must run its body before testing the condition, got %s", f.Text)
	}
}

func TestGenerateBreakTargetsEnclosingLoopAcrossNestedLowerings(t *testing.T) {
	c := New()
	c.Generate(ast.New(ast.OpAssign, ast.Ident("a"), ast.New(ast.OpArray, ast.Number(1), ast.Number(2))))
	// while (1) { a.map(x => x); break } — the method lowering advances
	// the label counter, but break must still target the while loop.
	cb := ast.New(ast.OpArrow, ast.Ident("x"), ast.Ident("x"))
	mapCall := ast.New(ast.OpCall, ast.New(ast.OpMember, ast.Ident("a"), ast.Ident("map")), cb)
	body := ast.New(ast.OpBlock, mapCall, ast.New(ast.OpBreak))
	f := c.Generate(ast.New(ast.OpWhile, ast.Number(1), body))
	first := strings.Index(f.Text, "block $done_")
	if first == -1 {
		t.Fatalf("expected a labeled loop, got %s", f.Text)
	}
	label := f.Text[first+len("block $done_"):]
	label = label[:strings.IndexAny(label, "\n ")]
	if !strings.Contains(f.Text, "(br $done_"+label+")") {
		t.Errorf("break should target the enclosing source loop's label %s, got %s", label, f.Text)
	}
}

func TestGenerateBreakOutsideLoopFails(t *testing.T) {
	c := New()
	c.Generate(ast.New(ast.OpBreak))
	if len(c.Errors()) == 0 {
		t.Error("break outside a loop should record an error")
	}
}

func TestCompileFunctionSpillsHoistedParamIntoOwnEnv(t *testing.T) {
	c := New()
	inner := ast.New(ast.OpArrow, ast.Ident("b"), ast.New(ast.OpAdd, ast.Ident("a"), ast.Ident("b")))
	outer := ast.New(ast.OpArrow, ast.Ident("a"), inner)
	c.Generate(outer)
	if len(c.Pending) == 0 {
		t.Fatal("expected the outer arrow to be queued for compilation")
	}
	fn := c.CompileFunction(c.Pending[0])
	if !strings.Contains(fn.Body, "local.set $__ownenv") {
		t.Fatalf("a function with a captured local must allocate its own environment, got %s", fn.Body)
	}
	if !strings.Contains(fn.Body, "(f64.store offset=0 (local.get $__ownenv) (local.get $a))") {
		t.Errorf("the hoisted parameter's incoming value must be spilled into its slot, got %s", fn.Body)
	}
}

func TestGenerateThrowInsideTryBranchesToHandler(t *testing.T) {
	c := New()
	try := ast.New(ast.OpTry,
		ast.New(ast.OpThrow, ast.Number(7)),
		ast.Ident("e"),
		ast.New(ast.OpAdd, ast.Ident("e"), ast.Number(1)))
	f := c.Generate(try)
	if !strings.Contains(f.Text, "global.set $__exc_value") {
		t.Errorf("throw should store the thrown value, got %s", f.Text)
	}
	if !strings.Contains(f.Text, "br $__exc_try_") {
		t.Errorf("a throw inside a try should branch straight to the handler block, got %s", f.Text)
	}
	if !strings.Contains(f.Text, "global.set $__exc_pending (i32.const 0)") {
		t.Errorf("entering the handler must clear the pending flag, got %s", f.Text)
	}
	if !strings.Contains(f.Text, "local.set $__catch_") || !strings.Contains(f.Text, "global.get $__exc_value") {
		t.Errorf("the caught value should be bound for the handler, got %s", f.Text)
	}
}

func TestGenerateThrowOutsideTryReturnsWithPendingSet(t *testing.T) {
	c := New()
	f := c.Generate(ast.New(ast.OpThrow, ast.Number(3)))
	if !strings.Contains(f.Text, "(return (f64.const nan))") {
		t.Errorf("a throw with no enclosing try must propagate to the caller via an early return, got %s", f.Text)
	}
}

func TestGenerateBlockGuardsBetweenStatementsWhenThrowing(t *testing.T) {
	c := New()
	c.UsedException = true
	block := ast.New(ast.OpBlock,
		ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(1)),
		ast.New(ast.OpAssign, ast.Ident("y"), ast.Number(2)),
		ast.Ident("x"))
	f := c.Generate(block)
	if strings.Count(f.Text, "global.get $__exc_pending") < 2 {
		t.Errorf("each non-final statement should be followed by a pending check, got %s", f.Text)
	}
	if !strings.Contains(f.Text, "(return (f64.const nan))") {
		t.Errorf("outside a try the guard propagates by returning, got %s", f.Text)
	}
}

func TestGenerateTryBodyGuardsUnwindToHandler(t *testing.T) {
	c := New()
	c.UsedException = true
	// try { f(); x = 1 } catch { 0 } — the call may throw, so the guard
	// after it must branch to this try's own handler block.
	fn := ast.New(ast.OpFunction, ast.Ident("f"), nil, ast.New(ast.OpReturn, ast.Number(1)))
	c.Generate(fn)
	body := ast.New(ast.OpBlock,
		ast.New(ast.OpCall, ast.Ident("f"), nil),
		ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(1)))
	try := ast.New(ast.OpTry, body, nil, ast.Number(0))
	f := c.Generate(try)
	if !strings.Contains(f.Text, "br_if $__exc_try_") {
		t.Errorf("guards inside a try body should unwind to the handler, got %s", f.Text)
	}
}

func TestGenerateLoopGuardExitsOnPending(t *testing.T) {
	c := New()
	c.UsedException = true
	c.Generate(ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(0)))
	loop := ast.New(ast.OpWhile, ast.Number(1),
		ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(2)))
	f := c.Generate(loop)
	if !strings.Contains(f.Text, "(br_if $done_") || !strings.Contains(f.Text, "global.get $__exc_pending") {
		t.Errorf("a loop in a throwing program must exit at the back edge when an exception is pending, got %s", f.Text)
	}
}

func TestCompileFunctionMultiLevelCaptureChain(t *testing.T) {
	c := New()
	inner := ast.New(ast.OpArrow, ast.Ident("z"),
		ast.New(ast.OpAdd, ast.New(ast.OpAdd, ast.Ident("a"), ast.Ident("b")), ast.Ident("z")))
	middle := ast.New(ast.OpArrow, ast.Ident("b"), inner)
	outer := ast.New(ast.OpArrow, ast.Ident("a"), middle)
	c.Generate(outer)
	var fns []CompiledFunc
	for i := 0; i < len(c.Pending); i++ {
		fns = append(fns, c.CompileFunction(c.Pending[i]))
	}
	if len(c.Errors()) != 0 {
		t.Fatalf("three-level capture should compile cleanly, got %v", c.Errors())
	}
	if len(fns) != 3 {
		t.Fatalf("expected outer/middle/inner to be compiled, got %d", len(fns))
	}
	midBody := fns[1].Body
	if !strings.Contains(midBody, "local.get $__env") {
		t.Errorf("the middle function must read a out of its incoming environment to build the inner closure, got %s", midBody)
	}
	if !strings.Contains(midBody, "local.get $__ownenv") {
		t.Errorf("the middle function must spill its own b for the inner closure, got %s", midBody)
	}
}
