package methods

import (
	"fmt"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
)

// lowerSlice copies [start, end) into a new array, clamping both ends
// and collapsing a negative length to zero.
func lowerSlice(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__alloc")
	start := fmt.Sprintf("$__m_start_%d", m.label)
	end := fmt.Sprintf("$__m_end_%d", m.label)
	out := fmt.Sprintf("$__m_out_%d", m.label)
	n := fmt.Sprintf("$__m_n_%d", m.label)

	startExpr := "(i32.const 0)"
	if len(args) > 0 {
		startExpr = toI32(c.Generate(args[0]))
	}
	endExpr := fmt.Sprintf("(local.get %s)", m.length)
	if len(args) > 1 {
		endExpr = toI32(c.Generate(args[1]))
	}

	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s %s)
    (local.set %s %s)
    (if (i32.lt_s (local.get %s) (i32.const 0)) (then (local.set %s (i32.add (local.get %s) (local.get %s)))))
    (if (i32.lt_s (local.get %s) (i32.const 0)) (then (local.set %s (i32.add (local.get %s) (local.get %s)))))
    (local.set %s (select (local.get %s) (local.get %s) (i32.gt_s (local.get %s) (local.get %s))))
    (local.set %s (select (i32.const 0) (local.get %s) (i32.lt_s (local.get %s) (i32.const 0))))
    (local.set %s (select (i32.const 0) (i32.sub (local.get %s) (local.get %s)) (i32.lt_s (local.get %s) (local.get %s))))
    (local.set %s (call $__alloc (i32.const 1) (local.get %s)))
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (f64.store offset=0
          (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))
          %s)
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (local.get %s))`,
		m.prelude(), start, startExpr, end, endExpr,
		start, start, start, m.length,
		end, end, end, m.length,
		end, m.length, end, end, m.length,
		start, start, start, // clamp start<0 -> 0
		n, end, start, end, start,
		out, n,
		m.idx,
		m.label, m.label, m.label, m.idx, n,
		out, m.idx, m.get(fmt.Sprintf("(i32.add (local.get %s) (local.get %s))", m.idx, start)),
		m.idx, m.idx, m.label,
		out)
	return codegen.Fragment{Text: text, Kind: codegen.KindArray}
}

// lowerSubarray allocates only a new 8-byte typed-array view header that
// shares the underlying data pointer with the receiver (zero-copy).
func lowerSubarray(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__mk_typed_subarray")
	start := "(i32.const 0)"
	if len(args) > 0 {
		start = toI32(c.Generate(args[0]))
	}
	end := fmt.Sprintf("(local.get %s)", m.length)
	if len(args) > 1 {
		end = toI32(c.Generate(args[1]))
	}
	text := fmt.Sprintf("(block (result f64) %s (call $__mk_typed_subarray (local.get %s) %s %s))",
		m.prelude(), m.arr, start, end)
	return codegen.Fragment{Text: text, Kind: codegen.KindTypedArray, Schema: m.recv.Schema}
}

// lowerReverse copies the receiver into a new array with elements in
// reverse order (also serves toReversed, which never mutates).
func lowerReverse(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__alloc")
	out := fmt.Sprintf("$__m_out_%d", m.label)
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s (call $__alloc (i32.const 1) (local.get %s)))
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (f64.store offset=0
          (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))
          %s)
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (local.get %s))`,
		m.prelude(), out, m.length, m.idx,
		m.label, m.label, m.label, m.idx, m.length,
		out, m.idx, m.get(fmt.Sprintf("(i32.sub (i32.sub (local.get %s) (i32.const 1)) (local.get %s))", m.length, m.idx)),
		m.idx, m.idx, m.label, out)
	return codegen.Fragment{Text: text, Kind: codegen.KindArray}
}

// lowerAt adjusts a negative index by length and yields NaN when the
// adjusted index still falls outside [0, length).
func lowerAt(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	idxExpr := toI32(c.Generate(args[0]))
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s %s)
    (if (i32.lt_s (local.get %s) (i32.const 0)) (then (local.set %s (i32.add (local.get %s) (local.get %s)))))
    (if (result f64) (i32.or (i32.lt_s (local.get %s) (i32.const 0)) (i32.ge_s (local.get %s) (local.get %s)))
      (then (f64.const nan))
      (else %s)))`,
		m.prelude(), m.idx, idxExpr, m.idx, m.idx, m.idx, m.length,
		m.idx, m.idx, m.length,
		m.get(fmt.Sprintf("(local.get %s)", m.idx)))
	return codegen.Fragment{Text: text, Kind: codegen.KindF64}
}
