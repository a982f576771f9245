package module

import (
	"strings"
	"testing"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
)

func TestNormalizeWholeProgramArrowWrapsBareArrow(t *testing.T) {
	arrow := ast.New(ast.OpArrow, ast.Ident("x"), ast.New(ast.OpAdd, ast.Ident("x"), ast.Number(1)))
	program := ast.New(ast.OpProgram, arrow)
	normalized := normalizeWholeProgramArrow(program)
	if len(normalized.Children) != 1 || normalized.Children[0].Op != ast.OpFunction {
		t.Fatalf("a sole top-level arrow should be wrapped as a named main function, got %+v", normalized)
	}
	if normalized.Children[0].FuncName().Name != "main" {
		t.Errorf("the synthesized function should be named main, got %q", normalized.Children[0].FuncName().Name)
	}
}

func TestNormalizeWholeProgramArrowLeavesMultiStatementProgramsAlone(t *testing.T) {
	program := ast.New(ast.OpProgram, ast.Number(1), ast.Number(2))
	normalized := normalizeWholeProgramArrow(program)
	if normalized != program {
		t.Error("a multi-statement program should be returned unchanged")
	}
}

func TestNormalizeWholeProgramArrowLeavesNonArrowSingleStatementAlone(t *testing.T) {
	program := ast.New(ast.OpProgram, ast.New(ast.OpAssign, ast.Ident("x"), ast.Number(1)))
	normalized := normalizeWholeProgramArrow(program)
	if normalized != program {
		t.Error("a single non-arrow statement should be returned unchanged")
	}
}

func TestMemoryPagesBaseline(t *testing.T) {
	c := codegen.New()
	if got := memoryPages(c, Options{}); got != 1 {
		t.Errorf("a program touching no memory needs a single page, got %d", got)
	}
	c.RequireStdlib("__alloc")
	if got := memoryPages(c, Options{}); got != 4 {
		t.Errorf("any runtime helper implies the 4-page baseline, got %d", got)
	}
}

func TestMemoryPagesGrowsForTypedArrays(t *testing.T) {
	c := codegen.New()
	c.RequireStdlib("__alloc_typed")
	c.UsedTypedArrays = true
	if got := memoryPages(c, Options{}); got != 20 {
		t.Errorf("typed arrays should add 16 pages, got %d", got)
	}
}

func TestMemoryPagesGrowsForArrayType(t *testing.T) {
	c := codegen.New()
	c.RequireStdlib("__alloc")
	c.UsedArrayType = true
	if got := memoryPages(c, Options{}); got != 8 {
		t.Errorf("array usage should add 4 pages, got %d", got)
	}
}

func TestMemoryPagesOptionOverridesFeatureFlags(t *testing.T) {
	c := codegen.New()
	c.UsedTypedArrays = true
	if got := memoryPages(c, Options{MemoryPages: 2}); got != 2 {
		t.Errorf("an explicit MemoryPages option should override feature-derived sizing, got %d", got)
	}
}

func TestMathArityTable(t *testing.T) {
	cases := map[string]int{"random": 0, "sin": 1, "pow": 2, "atan2": 2, "hypot": 2}
	for name, want := range cases {
		if got := mathArity(name); got != want {
			t.Errorf("mathArity(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestEscapeWatEscapesQuotesAndNonPrintable(t *testing.T) {
	escaped := escapeWat([]byte{'a', '"', 0x01, 'b'})
	if !strings.Contains(escaped, `\22`) {
		t.Errorf("a quote byte should be hex-escaped, got %q", escaped)
	}
	if !strings.Contains(escaped, `\01`) {
		t.Errorf("a non-printable byte should be hex-escaped, got %q", escaped)
	}
	if !strings.HasPrefix(escaped, "a") || !strings.HasSuffix(escaped, "b") {
		t.Errorf("printable ASCII should pass through unescaped, got %q", escaped)
	}
}

func TestWriteFuncTypesCollectsArities(t *testing.T) {
	var sb strings.Builder
	writeFuncTypes(&sb, "(call_indirect (type $__closure_ty_1) ...)", []codegen.CompiledFunc{
		{Body: "(call_indirect (type $__closure_ty_2) ...) (call_indirect (type $__closure_ty_1) ...)"},
	})
	out := sb.String()
	if !strings.Contains(out, "$__closure_ty_1") || !strings.Contains(out, "$__closure_ty_2") {
		t.Errorf("every distinct closure arity referenced should get a declared type, got %s", out)
	}
	if strings.Count(out, "$__closure_ty_1") != 1 {
		t.Errorf("a repeated arity should only be declared once, got %s", out)
	}
}

func TestWriteFuncTypesArityMatchesParamCount(t *testing.T) {
	var sb strings.Builder
	writeFuncTypes(&sb, "(call_indirect (type $__closure_ty_2) ...)", nil)
	out := sb.String()
	if strings.Count(out, "(param f64)") != 2 {
		t.Errorf("arity 2 should declare exactly 2 f64 params (plus the env i32), got %s", out)
	}
	if !strings.Contains(out, "(param i32)") {
		t.Errorf("every closure type declares a leading env i32 param, got %s", out)
	}
}

func TestMainExportWithoutNamedMainUsesSyntheticWrapper(t *testing.T) {
	c := codegen.New()
	name, arity, wrapper := mainExport(c, nil)
	if name != "$__main" {
		t.Errorf("with no named top-level main, export should target $__main, got %s", name)
	}
	if arity != 0 || wrapper != "" {
		t.Errorf("expected no wrapper/arity when main isn't a named function, got arity=%d wrapper=%q", arity, wrapper)
	}
}

func TestMainExportWithNamedMainEmitsWrapper(t *testing.T) {
	c := codegen.New()
	c.TopLevelFuncs = map[string]string{"main": "$__closure_0"}
	c.FuncTable = []codegen.FuncEntry{{Name: "$__closure_0", Arity: 2}}
	name, arity, wrapper := mainExport(c, nil)
	if name != "$__main_export" {
		t.Errorf("a named main should export through a thin wrapper, got %s", name)
	}
	if arity != 2 {
		t.Errorf("wrapper arity should match the named main's declared arity, got %d", arity)
	}
	if !strings.Contains(wrapper, "(param $p0 f64)") || !strings.Contains(wrapper, "(param $p1 f64)") {
		t.Errorf("wrapper should declare one f64 param per source parameter, got %s", wrapper)
	}
	if !strings.Contains(wrapper, "(call $__closure_0 (i32.const 0)") {
		t.Errorf("wrapper should call through with a dummy zero env, got %s", wrapper)
	}
}

func TestDeclLocalsEmptyWhenNoLocals(t *testing.T) {
	if got := declLocals(nil, nil, nil); got != "" {
		t.Errorf("no locals should produce an empty declaration, got %q", got)
	}
}

func TestDeclLocalsDeclaresEachKind(t *testing.T) {
	got := declLocals([]string{"$i"}, []string{"$f"}, []string{"$v"})
	if !strings.Contains(got, "(local $i i32)") || !strings.Contains(got, "(local $f f64)") || !strings.Contains(got, "(local $v v128)") {
		t.Errorf("each local should be declared with its own WAT type, got %s", got)
	}
}
