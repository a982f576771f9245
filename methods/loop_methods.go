package methods

import (
	"fmt"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
	"github.com/jz-lang/jzc/errors"
)

// lowerMap allocates a result of the same length and element kind as the
// receiver and fills it by inlining the callback body once per element,
// unless the receiver is a typed array and the callback matches the SIMD
// specialization grammar, in which case trySimdMap
// handles it one 128-bit vector of lanes at a time instead. A callback that also names the
// index parameter gets it as a second bound local (which is exactly what
// disqualifies it from the SIMD path).
func lowerMap(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	if len(args) > 0 {
		if frag, ok := trySimdMap(c, recv, args[0]); ok {
			return frag
		}
	}
	m := newCall(c, recv)
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	fidx := fmt.Sprintf("$__m_fidx_%d", m.label)
	out := fmt.Sprintf("$__m_out_%d", m.label)
	body := inlineCallback(c, args[0], elem, fidx)

	allocOut := fmt.Sprintf("(local.set %s (call $__alloc (i32.const 1) (local.get %s)))", out, m.length)
	store := fmt.Sprintf("(f64.store offset=0 (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8))) %s)", out, m.idx, body)
	kind := codegen.KindArray
	if m.recv.Kind == codegen.KindTypedArray {
		c.RequireStdlib("__alloc_typed", "__typed_elemtype", "__typed_set")
		allocOut = fmt.Sprintf("(local.set %s (call $__alloc_typed (call $__typed_elemtype (local.get %s)) (local.get %s)))", out, m.arr, m.length)
		store = fmt.Sprintf("(call $__typed_set (local.get %s) (local.get %s) %s)", out, m.idx, body)
		kind = codegen.KindTypedArray
	} else {
		c.RequireStdlib("__alloc", "__ptr_offset")
	}

	text := fmt.Sprintf(`(block (result f64)
    %s
    %s
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s %s)
        (local.set %s (f64.convert_i32_s (local.get %s)))
        %s
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (local.get %s))`,
		m.prelude(), allocOut, m.idx, m.label, m.label, m.label, m.idx, m.length,
		elem, m.get(fmt.Sprintf("(local.get %s)", m.idx)),
		fidx, m.idx,
		store, m.idx, m.idx, m.label, out)
	frag := codegen.Fragment{Text: text, Kind: kind}
	if kind == codegen.KindTypedArray {
		frag.Schema = m.recv.Schema
	}
	return frag
}

// lowerFilter allocates a max-size buffer (the receiver's length) then
// rebinds the result's length header to the count actually kept.
func lowerFilter(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__alloc", "__ptr_offset", "__ptr_set_len")
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	fidx := fmt.Sprintf("$__m_fidx_%d", m.label)
	out := fmt.Sprintf("$__m_out_%d", m.label)
	kept := fmt.Sprintf("$__m_kept_%d", m.label)
	cond := inlineCallback(c, args[0], elem, fidx)
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s (call $__alloc (i32.const 1) (local.get %s)))
    (local.set %s (i32.const 0))
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s %s)
        (local.set %s (f64.convert_i32_s (local.get %s)))
        (if (f64.ne %s (f64.const 0))
          (then
            (f64.store offset=0 (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8))) (local.get %s))
            (local.set %s (i32.add (local.get %s) (i32.const 1)))))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (call $__ptr_set_len (local.get %s) (local.get %s)))`,
		m.prelude(), out, m.length, m.idx, kept, m.label, m.label, m.label, m.idx, m.length,
		elem, m.get(fmt.Sprintf("(local.get %s)", m.idx)),
		fidx, m.idx,
		cond, out, kept, elem, kept, kept, m.idx, m.idx, m.label, out, kept)
	return codegen.Fragment{Text: text, Kind: codegen.KindArray}
}

// lowerForEach runs the callback purely for effect and yields NaN.
func lowerForEach(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	fidx := fmt.Sprintf("$__m_fidx_%d", m.label)
	body := inlineCallback(c, args[0], elem, fidx)
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s %s)
        (local.set %s (f64.convert_i32_s (local.get %s)))
        (drop %s)
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (f64.const nan))`,
		m.prelude(), m.idx, m.label, m.label, m.label, m.idx, m.length,
		elem, m.get(fmt.Sprintf("(local.get %s)", m.idx)),
		fidx, m.idx,
		body, m.idx, m.idx, m.label)
	return codegen.Fragment{Text: text, Kind: codegen.KindF64}
}

// lowerReduce threads an accumulator local through the loop, seeding it
// from args[1] when provided, otherwise from the first element.
func lowerReduce(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	return lowerReduceDir(c, recv, args, false)
}

func lowerReduceRight(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	return lowerReduceDir(c, recv, args, true)
}

// reduceCallback aliases a reduce callback's (acc, elem) parameters to
// the given local names and lowers its body.
func reduceCallback(c *codegen.Context, cb *ast.Node, acc, elem string) string {
	if cb == nil || cb.Op != ast.OpArrow {
		return c.Fail(errors.BadCallback(errors.PhaseCodegen, "reduce-callback", "expected an arrow function literal")).Text
	}
	params := cb.ArrowParams()
	body := cb.ArrowBody()
	if len(params) > 0 {
		body = substituteIdent(body, params[0].Name, acc)
	}
	if len(params) > 1 {
		body = substituteIdent(body, params[1].Name, elem)
	}
	return c.Generate(body).Text
}

func lowerReduceDir(c *codegen.Context, recv *ast.Node, args []*ast.Node, reverse bool) codegen.Fragment {
	m := newCall(c, recv)
	acc := fmt.Sprintf("$__m_acc_%d", m.label)
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	seed := "(f64.const 0)"
	if len(args) > 1 {
		seed = c.Generate(args[1]).Text
	}
	next := reduceCallback(c, args[0], acc, elem)

	start, step, test := "(i32.const 0)", "(i32.const 1)", fmt.Sprintf("(i32.ge_s (local.get %s) (local.get %s))", m.idx, m.length)
	if reverse {
		start = fmt.Sprintf("(i32.sub (local.get %s) (i32.const 1))", m.length)
		step = "(i32.const -1)"
		test = fmt.Sprintf("(i32.lt_s (local.get %s) (i32.const 0))", m.idx)
	}
	if len(args) < 2 {
		// No initial value: the first element visited seeds the
		// accumulator and the loop starts one step past it.
		seed = m.get(start)
		start = fmt.Sprintf("(i32.add %s %s)", start, step)
	}

	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s %s)
    (local.set %s %s)
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d %s)
        (local.set %s %s)
        (local.set %s %s)
        (local.set %s (i32.add (local.get %s) %s))
        (br $body_%d)))
    (local.get %s))`,
		m.prelude(), acc, seed, m.idx, start, m.label, m.label, m.label, test,
		elem, m.get(fmt.Sprintf("(local.get %s)", m.idx)),
		acc, next, m.idx, m.idx, step, m.label, acc)
	return codegen.Fragment{Text: text, Kind: codegen.KindF64}
}
