package jzc

import (
	"strings"
	"testing"

	"github.com/jz-lang/jzc/ast"
)

func TestCompileToWatTrivialProgram(t *testing.T) {
	program := ast.New(ast.OpProgram, ast.Number(42))
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	if !strings.Contains(watText, "(module") {
		t.Errorf("expected a (module ...) form, got %s", watText)
	}
	if !strings.Contains(watText, "f64.const 42") {
		t.Errorf("expected the literal to appear in the assembled text, got %s", watText)
	}
	if !strings.Contains(watText, `(export "main"`) {
		t.Errorf("expected a main export, got %s", watText)
	}
}

func TestCompileTrivialProgramProducesWasmBinary(t *testing.T) {
	program := ast.New(ast.OpProgram, ast.Number(42))
	bin, err := Compile(program, Options{})
	if err != nil {
		t.Fatalf("Compile returned an error: %v", err)
	}
	if len(bin) == 0 {
		t.Fatal("expected a non-empty WASM binary")
	}
	// \0asm magic number: every valid WASM binary starts with it.
	magic := []byte{0x00, 0x61, 0x73, 0x6d}
	for i, b := range magic {
		if bin[i] != b {
			t.Fatalf("expected WASM magic bytes, got %v", bin[:4])
		}
	}
}

// methodCall builds `recv.name(args...)` the way a front end would:
// a call node whose callee is a member expression, with multiple
// arguments folded into a comma node.
func methodCall(recv *ast.Node, name string, args ...*ast.Node) *ast.Node {
	callee := ast.New(ast.OpMember, recv, ast.Ident(name))
	if len(args) == 0 {
		return ast.New(ast.OpCall, callee, nil)
	}
	argNode := args[0]
	for _, a := range args[1:] {
		argNode = ast.New(ast.OpComma, argNode, a)
	}
	return ast.New(ast.OpCall, callee, argNode)
}

func TestCompileShiftUnshiftProgramIncludesRingHelpers(t *testing.T) {
	a := ast.Ident("a")
	program := ast.New(ast.OpProgram,
		ast.New(ast.OpAssign, a, ast.New(ast.OpArray, ast.Number(1), ast.Number(2), ast.Number(3))),
		methodCall(a, "shift"),
		methodCall(a, "unshift", ast.Number(0)),
		ast.New(ast.OpIndex, a, ast.Number(1)))
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	for _, helper := range []string{"$__ring_shift", "$__to_ring", "$__arr_unshift", "$__ring_unshift"} {
		if !strings.Contains(watText, helper) {
			t.Errorf("a shift/unshift program must carry the ring helpers, missing %s", helper)
		}
	}
	if _, err := Compile(program, Options{}); err != nil {
		t.Fatalf("the ring program should assemble to a binary: %v", err)
	}
}

func TestCompileNumericJoinPullsNumberToString(t *testing.T) {
	a := ast.Ident("a")
	program := ast.New(ast.OpProgram,
		ast.New(ast.OpAssign, a, ast.New(ast.OpArray, ast.Number(1), ast.Number(2))),
		methodCall(a, "join"))
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	if !strings.Contains(watText, "$__num_to_str") {
		t.Error("joining a numeric array needs the number-to-string helper")
	}
	for _, lit := range []string{"$__lit_nan", "$__lit_inf", "$__lit_ninf"} {
		if !strings.Contains(watText, lit) {
			t.Errorf("the special numeric string globals should be emitted, missing %s", lit)
		}
	}
	if !strings.Contains(watText, `N\00a\00N`) {
		t.Error("the interned \"NaN\" literal should appear in a data segment as UTF-16")
	}
	if _, err := Compile(program, Options{}); err != nil {
		t.Fatalf("the join program should assemble to a binary: %v", err)
	}
}

func TestCompileTypedMapEmitsSimdAndAssembles(t *testing.T) {
	tID := ast.Ident("t")
	mk := ast.New(ast.OpNew, ast.Ident("F64"),
		ast.New(ast.OpArray, ast.Number(1), ast.Number(2), ast.Number(3), ast.Number(4), ast.Number(5)))
	cb := ast.New(ast.OpArrow, ast.Ident("x"), ast.New(ast.OpMul, ast.Ident("x"), ast.Number(2)))
	program := ast.New(ast.OpProgram,
		ast.New(ast.OpAssign, tID, mk),
		methodCall(tID, "map", cb))
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	for _, want := range []string{"v128.load", "f64x2.mul", "v128.store"} {
		if !strings.Contains(watText, want) {
			t.Errorf("a vectorizable typed map should emit %s", want)
		}
	}
	if _, err := Compile(program, Options{}); err != nil {
		t.Fatalf("the SIMD program should assemble to a binary: %v", err)
	}

	scalar, err := CompileToWat(program, Options{NoSimd: true})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	if strings.Contains(scalar, "v128") {
		t.Error("NoSimd should force the scalar lowering")
	}
}

func TestCompileSubarrayStoreProgramAssembles(t *testing.T) {
	tID, v := ast.Ident("t"), ast.Ident("v")
	mk := ast.New(ast.OpNew, ast.Ident("F64"),
		ast.New(ast.OpArray, ast.Number(1), ast.Number(2), ast.Number(3), ast.Number(4)))
	program := ast.New(ast.OpProgram,
		ast.New(ast.OpAssign, tID, mk),
		ast.New(ast.OpAssign, v, methodCall(tID, "subarray", ast.Number(1), ast.Number(3))),
		ast.New(ast.OpAssign, ast.New(ast.OpIndex, v, ast.Number(0)), ast.Number(99)),
		ast.New(ast.OpIndex, tID, ast.Number(1)))
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	for _, want := range []string{"$__mk_typed_subarray", "$__typed_set", "$__typed_get"} {
		if !strings.Contains(watText, want) {
			t.Errorf("the subarray store program should use %s", want)
		}
	}
	if _, err := Compile(program, Options{}); err != nil {
		t.Fatalf("the subarray program should assemble to a binary: %v", err)
	}
}

func TestCompileEmitsHostContractExports(t *testing.T) {
	program := ast.New(ast.OpProgram, ast.Number(1))
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	for _, exp := range []string{`(export "_alloc"`, `(export "_resetHeap"`, `(export "memory"`} {
		if !strings.Contains(watText, exp) {
			t.Errorf("every module carries the host allocation contract, missing %s", exp)
		}
	}
	if strings.Contains(watText, `(export "_resetTypedArrays"`) {
		t.Error("_resetTypedArrays only appears when typed arrays are in use")
	}

	typed := ast.New(ast.OpProgram,
		ast.New(ast.OpAssign, ast.Ident("t"), ast.New(ast.OpNew, ast.Ident("F64"), ast.Number(4))))
	watText, err = CompileToWat(typed, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	if !strings.Contains(watText, `(export "_resetTypedArrays"`) {
		t.Error("a typed-array program should export _resetTypedArrays")
	}
}

func TestCompileTryCatchProgramAssembles(t *testing.T) {
	// x = 1; try { throw 7; x = 99 } catch (e) { e + x }
	x := ast.Ident("x")
	tryBody := ast.New(ast.OpBlock,
		ast.New(ast.OpThrow, ast.Number(7)),
		ast.New(ast.OpAssign, x, ast.Number(99)))
	try := ast.New(ast.OpTry, tryBody, ast.Ident("e"),
		ast.New(ast.OpAdd, ast.Ident("e"), x))
	program := ast.New(ast.OpProgram,
		ast.New(ast.OpAssign, x, ast.Number(1)),
		try)
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	for _, want := range []string{"$__exc_pending", "$__exc_value", "br $__exc_try_"} {
		if !strings.Contains(watText, want) {
			t.Errorf("a try/throw program should carry the unwinding machinery, missing %s", want)
		}
	}
	if _, err := Compile(program, Options{}); err != nil {
		t.Fatalf("the try/catch program should assemble to a binary: %v", err)
	}
}

func TestCompileThrowAcrossCallAssembles(t *testing.T) {
	// function boom() { throw 5 } try { boom(); 1 } catch (e) { e }
	boom := ast.New(ast.OpFunction, ast.Ident("boom"), nil,
		ast.New(ast.OpThrow, ast.Number(5)))
	tryBody := ast.New(ast.OpBlock,
		ast.New(ast.OpCall, ast.Ident("boom"), nil),
		ast.Number(1))
	try := ast.New(ast.OpTry, tryBody, ast.Ident("e"), ast.Ident("e"))
	program := ast.New(ast.OpProgram, boom, try)
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	if !strings.Contains(watText, "(return (f64.const nan))") {
		t.Error("a throw with no try in its own function should propagate by returning")
	}
	if !strings.Contains(watText, "br_if $__exc_try_") {
		t.Error("the guard after the call inside the try body should unwind to the handler")
	}
	if _, err := Compile(program, Options{}); err != nil {
		t.Fatalf("the cross-call throw program should assemble to a binary: %v", err)
	}
}

func TestCompileNarrowTypedElementProgramAssembles(t *testing.T) {
	// t = new I16([1,2,3]); t[1] = 300; t.map(x => x * 2)
	tID := ast.Ident("t")
	mk := ast.New(ast.OpNew, ast.Ident("I16"),
		ast.New(ast.OpArray, ast.Number(1), ast.Number(2), ast.Number(3)))
	cb := ast.New(ast.OpArrow, ast.Ident("x"), ast.New(ast.OpMul, ast.Ident("x"), ast.Number(2)))
	program := ast.New(ast.OpProgram,
		ast.New(ast.OpAssign, tID, mk),
		ast.New(ast.OpAssign, ast.New(ast.OpIndex, tID, ast.Number(1)), ast.Number(300)),
		methodCall(tID, "map", cb))
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	for _, want := range []string{"i32.load16_s", "i32.store16", "$__typed_shift"} {
		if !strings.Contains(watText, want) {
			t.Errorf("a narrow-element typed program should use width-aware access, missing %s", want)
		}
	}
	if strings.Contains(watText, "v128") {
		t.Error("sub-32-bit element kinds have no vector lane and must take the scalar loop")
	}
	if _, err := Compile(program, Options{}); err != nil {
		t.Fatalf("the I16 program should assemble to a binary: %v", err)
	}
}

func TestCompileF32MapEmitsF32x4AndAssembles(t *testing.T) {
	tID := ast.Ident("t")
	mk := ast.New(ast.OpNew, ast.Ident("F32"),
		ast.New(ast.OpArray, ast.Number(1), ast.Number(2), ast.Number(3), ast.Number(4), ast.Number(5)))
	cb := ast.New(ast.OpArrow, ast.Ident("x"), ast.New(ast.OpMul, ast.Ident("x"), ast.Number(2)))
	program := ast.New(ast.OpProgram,
		ast.New(ast.OpAssign, tID, mk),
		methodCall(tID, "map", cb))
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	for _, want := range []string{"f32x4.mul", "f32x4.splat"} {
		if !strings.Contains(watText, want) {
			t.Errorf("an F32 vectorizable map should emit %s", want)
		}
	}
	if _, err := Compile(program, Options{}); err != nil {
		t.Fatalf("the F32 SIMD program should assemble to a binary: %v", err)
	}
}

func TestCompileCurriedThreeLevelClosureAssembles(t *testing.T) {
	// make = a => b => z => a + b + z; make(1)(2)(3)
	inner := ast.New(ast.OpArrow, ast.Ident("z"),
		ast.New(ast.OpAdd, ast.New(ast.OpAdd, ast.Ident("a"), ast.Ident("b")), ast.Ident("z")))
	middle := ast.New(ast.OpArrow, ast.Ident("b"), inner)
	outer := ast.New(ast.OpArrow, ast.Ident("a"), middle)
	call := ast.New(ast.OpCall,
		ast.New(ast.OpCall,
			ast.New(ast.OpCall, ast.Ident("make"), ast.Number(1)),
			ast.Number(2)),
		ast.Number(3))
	program := ast.New(ast.OpProgram,
		ast.New(ast.OpAssign, ast.Ident("make"), outer),
		call)
	watText, err := CompileToWat(program, Options{})
	if err != nil {
		t.Fatalf("CompileToWat returned an error: %v", err)
	}
	if !strings.Contains(watText, "call_indirect") {
		t.Error("curried closure calls should dispatch through the function table")
	}
	if _, err := Compile(program, Options{}); err != nil {
		t.Fatalf("the three-level closure program should assemble to a binary: %v", err)
	}
}

func TestCompileUnknownIdentifierFails(t *testing.T) {
	program := ast.New(ast.OpProgram, ast.Ident("neverDeclared"))
	_, err := CompileToWat(program, Options{})
	if err == nil {
		t.Fatal("referencing an unknown identifier should fail compilation")
	}
}

func TestCompileSourceRejectsInvalidWat(t *testing.T) {
	_, err := CompileSource("(not valid wat at all")
	if err == nil {
		t.Fatal("malformed WAT text should fail to compile")
	}
}

func TestToModuleOptionsCarriesFieldsThrough(t *testing.T) {
	opts := Options{Exports: []string{"foo"}, MemoryPages: 7}
	mo := toModuleOptions(opts)
	if mo.MemoryPages != 7 || len(mo.Exports) != 1 || mo.Exports[0] != "foo" {
		t.Errorf("toModuleOptions should carry Exports/MemoryPages through unchanged, got %+v", mo)
	}
}
