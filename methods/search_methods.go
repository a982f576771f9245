package methods

import (
	"fmt"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
)

// lowerFind scans for the first element satisfying the callback,
// yielding that element or NaN if none matched.
func lowerFind(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	pred := inlineCallback(c, args[0], elem)
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s (i32.const 0))
    (block $done_%d (result f64)
      (loop $body_%d
        (br_if $done_%d (f64.const nan) (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s %s)
        (if (f64.ne %s (f64.const 0)) (then (br $done_%d (local.get %s))))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d))
      (f64.const nan)))`,
		m.prelude(), m.idx, m.label, m.label, m.label, m.idx, m.length,
		elem, m.get(fmt.Sprintf("(local.get %s)", m.idx)), pred, m.label, elem, m.idx, m.idx, m.label)
	return codegen.Fragment{Text: text, Kind: codegen.KindF64}
}

func lowerFindIndex(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	return findIndexLike(c, recv, args[0], true)
}

func lowerIndexOf(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	target := args[0]
	return findIndexLike(c, recv, nil, false, target)
}

// findIndexLike covers findIndex, indexOf and includes, which differ
// only in their predicate (a callback vs. equality against a target
// value). find, which yields the element itself rather than its index,
// has its own lowering above.
func findIndexLike(c *codegen.Context, recv *ast.Node, cb *ast.Node, useCallback bool, target ...*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	var predText string
	if useCallback {
		predText = inlineCallback(c, cb, elem)
	} else {
		c.RequireStdlib("__f64_eq")
		t := c.Generate(target[0])
		predText = fmt.Sprintf("(call $__f64_eq (local.get %s) %s)", elem, toF64(t))
	}
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s (i32.const 0))
    (block $done_%d (result f64)
      (loop $body_%d
        (br_if $done_%d (f64.const -1) (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s %s)
        (if (%s) (then (br $done_%d (f64.convert_i32_s (local.get %s)))))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d))
      (f64.const -1)))`,
		m.prelude(), m.idx, m.label, m.label, m.label, m.idx, m.length,
		elem, m.get(fmt.Sprintf("(local.get %s)", m.idx)), predText, m.label, m.idx, m.idx, m.idx, m.label)
	return codegen.Fragment{Text: text, Kind: codegen.KindF64}
}

func lowerIncludes(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	idx := findIndexLike(c, recv, nil, false, args[0])
	return codegen.Fragment{Text: fmt.Sprintf("(f64.ne %s (f64.const -1))", idx.Text), Kind: codegen.KindBool}
}

func lowerEvery(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	return quantifier(c, recv, args[0], true)
}

func lowerSome(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	return quantifier(c, recv, args[0], false)
}

// quantifier covers every (short-circuit on first false, default true)
// and some (short-circuit on first true, default false).
func quantifier(c *codegen.Context, recv *ast.Node, cb *ast.Node, all bool) codegen.Fragment {
	m := newCall(c, recv)
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	pred := inlineCallback(c, cb, elem)
	shortCircuit, def := "0", "1"
	test := fmt.Sprintf("(f64.eq %s (f64.const 0))", pred)
	if !all {
		shortCircuit, def = "1", "0"
		test = fmt.Sprintf("(f64.ne %s (f64.const 0))", pred)
	}
	text := fmt.Sprintf(`(block (result i32)
    %s
    (local.set %s (i32.const 0))
    (block $done_%d (result i32)
      (loop $body_%d
        (br_if $done_%d (i32.const %s) (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s %s)
        (if %s (then (br $done_%d (i32.const %s))))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d))
      (i32.const %s)))`,
		m.prelude(), m.idx, m.label, m.label, m.label, def, m.idx, m.length,
		elem, m.get(fmt.Sprintf("(local.get %s)", m.idx)), test, m.label, shortCircuit, m.idx, m.idx, m.label, def)
	return codegen.Fragment{Text: text, Kind: codegen.KindBool}
}
