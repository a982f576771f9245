package methods

import (
	"strings"
	"testing"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
)

func TestLowerIndexOfComparesAgainstTarget(t *testing.T) {
	c := codegen.New()
	frag, ok := Lower(c, ast.Ident("arr"), "indexOf", []*ast.Node{ast.Number(3)})
	if !ok {
		t.Fatal("indexOf should be recognized")
	}
	if !strings.Contains(frag.Text, "call $__f64_eq") {
		t.Errorf("indexOf should compare elements through value equality (pointer bit-equality for strings), got %s", frag.Text)
	}
	if !strings.Contains(frag.Text, "f64.const -1") {
		t.Errorf("indexOf's not-found sentinel is -1, got %s", frag.Text)
	}
}

func TestLowerIndexOfYieldsFloatIndex(t *testing.T) {
	c := codegen.New()
	frag, _ := Lower(c, ast.Ident("arr"), "indexOf", []*ast.Node{ast.Number(3)})
	if !strings.Contains(frag.Text, "f64.convert_i32_s") {
		t.Errorf("a found index should be converted to f64 before returning, got %s", frag.Text)
	}
}

func TestFindIndexLikeSharesImplementationAcrossVariants(t *testing.T) {
	c := codegen.New()
	cb := arrowCallback("x", ast.New(ast.OpGt, ast.Ident("x"), ast.Number(0)))
	findIdx, ok := Lower(c, ast.Ident("arr"), "findIndex", []*ast.Node{cb})
	if !ok {
		t.Fatal("findIndex should be recognized")
	}
	if findIdx.Kind != codegen.KindF64 {
		t.Errorf("findIndex should yield KindF64, got %v", findIdx.Kind)
	}
}
