package methods

import (
	"fmt"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
)

// toF64 coerces a fragment's text to f64, mirroring codegen's internal
// asF64 (unexported there, so package methods keeps its own copy).
func toF64(f codegen.Fragment) string {
	if f.Kind == codegen.KindI32 || f.Kind == codegen.KindBool {
		return fmt.Sprintf("(f64.convert_i32_s %s)", f.Text)
	}
	return f.Text
}

// toI32 is the index-position counterpart of toF64.
func toI32(f codegen.Fragment) string {
	if f.Kind == codegen.KindI32 || f.Kind == codegen.KindBool {
		return f.Text
	}
	return fmt.Sprintf("(i32.trunc_f64_s %s)", f.Text)
}

// writeback reassigns recv to a raw f64-valued local holding a freshly
// repacked pointer, when recv is a plain identifier. Array pointers bake
// their length into the NaN payload, so any length-changing
// operation produces a new pointer value that must be written back to
// the binding the receiver came from; a non-identifier receiver (e.g. an
// element of another array) has no binding to update, so the mutation is
// only visible through the method's own return value.
func writeback(c *codegen.Context, recv *ast.Node, rawLocal string) string {
	if recv == nil || recv.Op != ast.OpIdent {
		return ""
	}
	assign := ast.New(ast.OpAssign, recv, &ast.Node{Op: ast.OpIdent, Name: "$raw:" + rawLocal})
	return fmt.Sprintf("(drop %s)", c.Generate(assign).Text)
}

// lowerPush grows the receiver by len(args), copies the old contents into
// the new buffer, appends the pushed values, writes the new pointer back
// to the receiver binding, and yields the new length.
func lowerPush(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__alloc")
	newArr := fmt.Sprintf("$__m_newarr_%d", m.label)
	newLen := fmt.Sprintf("$__m_newlen_%d", m.label)

	lines := []string{
		m.prelude(),
		fmt.Sprintf("(local.set %s (i32.add (local.get %s) (i32.const %d)))", newLen, m.length, len(args)),
		fmt.Sprintf("(local.set %s (call $__alloc (i32.const 1) (local.get %s)))", newArr, newLen),
		fmt.Sprintf("(local.set %s (i32.const 0))", m.idx),
		fmt.Sprintf(`(block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (f64.store offset=0
          (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))
          (call $__arr_get (local.get %s) (local.get %s)))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))`,
			m.label, m.label, m.label, m.idx, m.length,
			newArr, m.idx, m.arr, m.idx, m.idx, m.idx, m.label),
	}
	for k, a := range args {
		v := c.Generate(a)
		lines = append(lines, fmt.Sprintf(
			"(f64.store offset=0 (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (i32.add (local.get %s) (i32.const %d)) (i32.const 8))) %s)",
			newArr, m.length, k, toF64(v)))
	}
	if wb := writeback(c, recv, newArr); wb != "" {
		lines = append(lines, wb)
	}
	lines = append(lines, fmt.Sprintf("(f64.convert_i32_s (local.get %s))", newLen))
	return codegen.Fragment{Text: fmt.Sprintf("(block (result f64)\n    %s)", joinLines(lines...)), Kind: codegen.KindF64}
}

// lowerPop yields the last element, or NaN if the receiver is empty, and
// writes back a repacked pointer one element shorter.
func lowerPop(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__ptr_set_len")
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	newArr := fmt.Sprintf("$__m_newarr_%d", m.label)
	text := fmt.Sprintf(`(block (result f64)
    %s
    (if (result f64) (i32.eq (local.get %s) (i32.const 0))
      (then (f64.const nan))
      (else
        (local.set %s (call $__arr_get (local.get %s) (i32.sub (local.get %s) (i32.const 1))))
        (local.set %s (call $__ptr_set_len (local.get %s) (i32.sub (local.get %s) (i32.const 1))))
        %s
        (local.get %s))))`,
		m.prelude(), m.length,
		elem, m.arr, m.length,
		newArr, m.arr, m.length,
		writebackOrNop(c, recv, newArr),
		elem)
	return codegen.Fragment{Text: text, Kind: codegen.KindF64}
}

// writebackOrNop is writeback but never returns an empty string, so it is
// always safe to splice as a standalone statement.
func writebackOrNop(c *codegen.Context, recv *ast.Node, rawLocal string) string {
	if wb := writeback(c, recv, rawLocal); wb != "" {
		return wb
	}
	return "(nop)"
}

// lowerShift removes and yields the first element (NaN on an empty
// receiver). The first shift against a named binding converts the flat
// array to ring form and rebinds it, so this and every later shift or
// unshift through that binding is O(1); a receiver with no binding to
// rebind stays flat, and __arr_shift moves its elements down in place
// instead.
func lowerShift(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__arr_shift")
	lines := []string{m.prelude()}
	if recv != nil && recv.Op == ast.OpIdent {
		c.RequireStdlib("__is_ring", "__to_ring")
		lines = append(lines, fmt.Sprintf(`(if (i32.eqz (call $__is_ring (local.get %s)))
      (then
        (local.set %s (call $__to_ring (local.get %s)))
        %s))`,
			m.arr, m.arr, m.arr, writebackOrNop(c, recv, m.arr)))
	}
	lines = append(lines, fmt.Sprintf("(call $__arr_shift (local.get %s))", m.arr))
	return codegen.Fragment{Text: fmt.Sprintf("(block (result f64)\n    %s)", joinLines(lines...)), Kind: codegen.KindF64}
}

// lowerUnshift prepends args to the receiver and yields the new length.
// __arr_unshift converts a flat receiver to ring form (and doubles a
// full ring), returning the possibly-new pointer, which is rebound to
// the receiver's binding when it has one.
func lowerUnshift(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__arr_unshift", "__ptr_len")
	lines := []string{m.prelude()}
	argLocals := make([]string, len(args))
	for k, a := range args {
		al := fmt.Sprintf("$__m_arg_%d_%d", m.label, k)
		argLocals[k] = al
		lines = append(lines, fmt.Sprintf("(local.set %s %s)", al, toF64(c.Generate(a))))
	}
	// Prepend in reverse so args[0] ends up first.
	for k := len(args) - 1; k >= 0; k-- {
		lines = append(lines, fmt.Sprintf("(local.set %s (call $__arr_unshift (local.get %s) (local.get %s)))", m.arr, m.arr, argLocals[k]))
	}
	if wb := writeback(c, recv, m.arr); wb != "" {
		lines = append(lines, wb)
	}
	lines = append(lines, fmt.Sprintf("(f64.convert_i32_s (call $__ptr_len (local.get %s)))", m.arr))
	return codegen.Fragment{Text: fmt.Sprintf("(block (result f64)\n    %s)", joinLines(lines...)), Kind: codegen.KindF64}
}

// lowerConcat allocates receiver-length + sum(arg-lengths) and copies the
// receiver followed by each argument array in turn.
func lowerConcat(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__alloc")
	out := fmt.Sprintf("$__m_out_%d", m.label)
	cursor := fmt.Sprintf("$__m_cursor_%d", m.label)
	total := fmt.Sprintf("$__m_total_%d", m.label)

	argLocals := make([]string, len(args))
	lines := []string{m.prelude(), fmt.Sprintf("(local.set %s (local.get %s))", total, m.length)}
	for i, a := range args {
		al := fmt.Sprintf("$__m_arg_%d_%d", m.label, i)
		argLocals[i] = al
		lines = append(lines,
			fmt.Sprintf("(local.set %s %s)", al, c.Generate(a).Text),
			fmt.Sprintf("(local.set %s (i32.add (local.get %s) (call $__ptr_len (local.get %s))))", total, total, al))
	}
	lines = append(lines,
		fmt.Sprintf("(local.set %s (call $__alloc (i32.const 1) (local.get %s)))", out, total),
		fmt.Sprintf("(local.set %s (i32.const 0))", cursor),
		copyArraySpan(m, out, cursor, m.arr, m.length))
	for _, al := range argLocals {
		lines = append(lines, copyArraySpan(m, out, cursor, al, "__len__"+al))
	}
	lines = append(lines, fmt.Sprintf("(local.get %s)", out))
	return codegen.Fragment{Text: fmt.Sprintf("(block (result f64)\n    %s)", joinLines(lines...)), Kind: codegen.KindArray}
}

// copyArraySpan appends all of src's elements onto out starting at
// cursor, advancing cursor by src's length. lengthExpr is either a plain
// local name or, prefixed "__len__<local>", computed on the fly via
// __ptr_len so concat's variable-length argument arrays work uniformly.
func copyArraySpan(m *call, out, cursor, src, lengthExpr string) string {
	label := m.c.NextLabel()
	i := fmt.Sprintf("$__m_cpi_%d", label)
	var lenText string
	if len(lengthExpr) > 7 && lengthExpr[:7] == "__len__" {
		lenText = fmt.Sprintf("(call $__ptr_len (local.get %s))", lengthExpr[7:])
	} else {
		lenText = fmt.Sprintf("(local.get %s)", lengthExpr)
	}
	lenLocal := fmt.Sprintf("$__m_cplen_%d", label)
	return fmt.Sprintf(`(local.set %s (i32.const 0))
    (local.set %s %s)
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (f64.store offset=0
          (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))
          (call $__arr_get (local.get %s) (local.get %s)))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))`,
		i, lenLocal, lenText,
		label, label, label, i, lenLocal,
		out, cursor, src, i,
		i, i,
		cursor, cursor,
		label)
}

// lowerFlat handles depth-1 flattening: each element that is itself an
// array pointer contributes its own elements, everything else
// contributes itself, detected via the pointer/type test. A first pass
// totals the result length so the output is allocated exactly once.
func lowerFlat(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__alloc", "__is_pointer", "__ptr_type")
	total := fmt.Sprintf("$__m_total_%d", m.label)
	out := fmt.Sprintf("$__m_out_%d", m.label)
	cursor := fmt.Sprintf("$__m_cursor_%d", m.label)
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	j := fmt.Sprintf("$__m_j_%d", m.label)
	countLabel := c.NextLabel()
	countPass := fmt.Sprintf(`(local.set %s (i32.const 0))
    (local.set %s (i32.const 0))
    (block $cnt_done_%d
      (loop $cnt_body_%d
        (br_if $cnt_done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s (call $__arr_get (local.get %s) (local.get %s)))
        (if (i32.and (call $__is_pointer (local.get %s)) (i32.eq (call $__ptr_type (local.get %s)) (i32.const 1)))
          (then (local.set %s (i32.add (local.get %s) (call $__ptr_len (local.get %s)))))
          (else (local.set %s (i32.add (local.get %s) (i32.const 1)))))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $cnt_body_%d)))`,
		total, m.idx,
		countLabel, countLabel, countLabel, m.idx, m.length,
		elem, m.arr, m.idx,
		elem, elem,
		total, total, elem,
		total, total,
		m.idx, m.idx, countLabel)
	text := fmt.Sprintf(`(block (result f64)
    %s
    %s
    (local.set %s (call $__alloc (i32.const 1) (local.get %s)))
    (local.set %s (i32.const 0))
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s (call $__arr_get (local.get %s) (local.get %s)))
        (if
          (i32.and (call $__is_pointer (local.get %s)) (i32.eq (call $__ptr_type (local.get %s)) (i32.const 1)))
          (then
            (local.set %s (i32.const 0))
            (block $inner_done_%d
              (loop $inner_body_%d
                (br_if $inner_done_%d (i32.ge_s (local.get %s) (call $__ptr_len (local.get %s))))
                (f64.store offset=0
                  (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))
                  (call $__arr_get (local.get %s) (local.get %s)))
                (local.set %s (i32.add (local.get %s) (i32.const 1)))
                (local.set %s (i32.add (local.get %s) (i32.const 1)))
                (br $inner_body_%d))))
          (else
            (f64.store offset=0
              (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))
              (local.get %s))
            (local.set %s (i32.add (local.get %s) (i32.const 1)))))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (call $__ptr_set_len (local.get %s) (local.get %s)))`,
		m.prelude(), countPass,
		out, total,
		cursor, m.idx,
		m.label, m.label, m.label, m.idx, m.length,
		elem, m.arr, m.idx,
		elem, elem,
		j,
		m.label, m.label, m.label, j, elem,
		out, cursor, elem, j,
		j, j,
		cursor, cursor,
		m.label,
		out, cursor, elem,
		cursor, cursor,
		m.idx, m.idx, m.label,
		out, cursor)
	c.RequireStdlib("__ptr_set_len")
	return codegen.Fragment{Text: text, Kind: codegen.KindArray}
}

// lowerFlatMap maps then flattens one level deep by running lowerMap,
// holding its result array in a local, and running lowerFlat over it.
func lowerFlatMap(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	mapped := lowerMap(c, recv, args)
	if mapped.Kind == codegen.KindTypedArray {
		// A typed array's elements are numbers, never nested arrays, so
		// depth-1 flattening is the identity.
		return mapped
	}
	srcLocal := fmt.Sprintf("$__m_flatmap_src_%d", c.NextLabel())
	synthRecv := &ast.Node{Op: ast.OpIdent, Name: "$raw:" + srcLocal}
	pre := fmt.Sprintf("(local.set %s %s)", srcLocal, mapped.Text)
	flat := lowerFlat(c, synthRecv, nil)
	return codegen.Fragment{
		Text: fmt.Sprintf("(block (result f64) %s %s)", pre, flat.Text),
		Kind: codegen.KindArray,
	}
}

// lowerJoin concatenates the textual representation of each element with
// sep between them (default ","): string elements pass through as-is,
// everything else goes through the number-to-string helper.
func lowerJoin(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__str_concat", "__str_empty", "__num_to_str", "__is_pointer", "__ptr_type")
	sep := `(call $__str_lit_comma)`
	if len(args) > 0 {
		sep = c.Generate(args[0]).Text
	} else {
		c.RequireStdlib("__str_lit_comma")
	}
	acc := fmt.Sprintf("$__m_acc_%d", m.label)
	elem := fmt.Sprintf("$__m_elem_%d", m.label)
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s (call $__str_empty))
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s %s)
        (if (i32.eqz (i32.and (call $__is_pointer (local.get %s)) (i32.eq (call $__ptr_type (local.get %s)) (i32.const 3))))
          (then (local.set %s (call $__num_to_str (local.get %s)))))
        (if (i32.gt_s (local.get %s) (i32.const 0))
          (then (local.set %s (call $__str_concat (local.get %s) %s))))
        (local.set %s (call $__str_concat (local.get %s) (local.get %s)))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (local.get %s))`,
		m.prelude(), acc, m.idx,
		m.label, m.label, m.label, m.idx, m.length,
		elem, m.get(fmt.Sprintf("(local.get %s)", m.idx)),
		elem, elem,
		elem, elem,
		m.idx, acc, acc, sep,
		acc, acc, elem,
		m.idx, m.idx, m.label,
		acc)
	return codegen.Fragment{Text: text, Kind: codegen.KindString}
}

// lowerFill overwrites every element in [start, end) with value in
// place, yielding the receiver.
func lowerFill(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	value := toF64(c.Generate(args[0]))
	start := "(i32.const 0)"
	if len(args) > 1 {
		start = toI32(c.Generate(args[1]))
	}
	end := fmt.Sprintf("(local.get %s)", m.length)
	if len(args) > 2 {
		end = toI32(c.Generate(args[2]))
	}
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s %s)
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) %s))
        %s
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (local.get %s))`,
		m.prelude(), m.idx, start,
		m.label, m.label, m.label, m.idx, end,
		m.set(fmt.Sprintf("(local.get %s)", m.idx), value),
		m.idx, m.idx, m.label,
		m.arr)
	return codegen.Fragment{Text: text, Kind: m.resultKind()}
}

// lowerSet copies a source array's elements into the receiver starting
// at offset, in place.
func lowerSet(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	src := fmt.Sprintf("$__m_src_%d", m.label)
	srcLen := fmt.Sprintf("$__m_srclen_%d", m.label)
	offLocal := fmt.Sprintf("$__m_off_%d", m.label)
	off := "(i32.const 0)"
	if len(args) > 1 {
		off = toI32(c.Generate(args[1]))
	}
	srcFrag := c.Generate(args[0])
	srcGet := elemGet(c, srcFrag.Kind, src, fmt.Sprintf("(local.get %s)", m.idx))
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s %s)
    (local.set %s (call $__ptr_len (local.get %s)))
    (local.set %s %s)
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        %s
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (local.get %s))`,
		m.prelude(), src, srcFrag.Text,
		srcLen, src,
		offLocal, off,
		m.idx,
		m.label, m.label, m.label, m.idx, srcLen,
		m.set(fmt.Sprintf("(i32.add (local.get %s) (local.get %s))", m.idx, offLocal), srcGet),
		m.idx, m.idx, m.label,
		m.arr)
	return codegen.Fragment{Text: text, Kind: m.resultKind()}
}

// lowerCopyWithin shifts a [start, end) span to target within the same
// buffer, using a scratch array so overlapping ranges copy correctly.
func lowerCopyWithin(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__alloc", "__arr_get")
	target := toI32(c.Generate(args[0]))
	start := "(i32.const 0)"
	if len(args) > 1 {
		start = toI32(c.Generate(args[1]))
	}
	end := fmt.Sprintf("(local.get %s)", m.length)
	if len(args) > 2 {
		end = toI32(c.Generate(args[2]))
	}
	t := fmt.Sprintf("$__m_t_%d", m.label)
	s := fmt.Sprintf("$__m_s_%d", m.label)
	e := fmt.Sprintf("$__m_e_%d", m.label)
	scratch := fmt.Sprintf("$__m_scratch_%d", m.label)
	n := fmt.Sprintf("$__m_n_%d", m.label)
	copyLabel := c.NextLabel()
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s %s)
    (local.set %s %s)
    (local.set %s %s)
    (local.set %s (i32.sub (local.get %s) (local.get %s)))
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
    (local.set %s (i32.const 0))
    (block $copy_done_%d
      (loop $copy_body_%d
        (br_if $copy_done_%d (i32.ge_s (local.get %s) (local.get %s)))
        %s
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $copy_body_%d)))
    (local.get %s))`,
		m.prelude(), t, target, s, start, e, end,
		n, e, s,
		scratch, n,
		m.idx,
		m.label, m.label, m.label, m.idx, n,
		scratch, m.idx, m.get(fmt.Sprintf("(i32.add (local.get %s) (local.get %s))", m.idx, s)),
		m.idx, m.idx, m.label,
		m.idx,
		copyLabel, copyLabel, copyLabel, m.idx, n,
		m.set(fmt.Sprintf("(i32.add (local.get %s) (local.get %s))", t, m.idx),
			fmt.Sprintf("(call $__arr_get (local.get %s) (local.get %s))", scratch, m.idx)),
		m.idx, m.idx, copyLabel,
		m.arr)
	return codegen.Fragment{Text: text, Kind: m.resultKind()}
}

// lowerSort sorts into a copy and rebinds the receiver's binding to it,
// so the receiver observes the sorted order afterwards; lowerToSorted
// shares the same lowering minus the rebinding, leaving its input
// untouched.
func lowerSort(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	return sortImpl(c, recv, args, true)
}

func lowerToSorted(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	return sortImpl(c, recv, args, false)
}

// sortImpl copies the receiver and insertion-sorts the copy by the given
// comparator (default numeric ascending).
func sortImpl(c *codegen.Context, recv *ast.Node, args []*ast.Node, rebind bool) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__alloc")
	out := fmt.Sprintf("$__m_out_%d", m.label)
	j := fmt.Sprintf("$__m_j_%d", m.label)
	key := fmt.Sprintf("$__m_key_%d", m.label)

	var cmp string
	if len(args) > 0 && args[0] != nil && args[0].Op == ast.OpArrow {
		params := args[0].ArrowParams()
		body := args[0].ArrowBody()
		a, b := "$__m_a", "$__m_b"
		if len(params) > 0 {
			body = substituteIdent(body, params[0].Name, a)
		}
		if len(params) > 1 {
			body = substituteIdent(body, params[1].Name, b)
		}
		cmpFrag := c.Generate(body)
		cmp = fmt.Sprintf("(f64.lt (block (result f64) (local.set %s (local.get %s)) (local.set %s (f64.load offset=0 (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8))))) %s) (f64.const 0))", a, key, b, out, j, cmpFrag.Text)
	} else {
		cmp = fmt.Sprintf("(f64.lt (local.get %s) (f64.load offset=0 (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))))", key, out, j)
	}

	sortLabel := c.NextLabel()
	shiftLabel := c.NextLabel()
	rebindText := "(nop)"
	if rebind {
		rebindText = writebackOrNop(c, recv, out)
	}
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
    (local.set %s (i32.const 1))
    (block $sort_done_%d
      (loop $sort_body_%d
        (br_if $sort_done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s (f64.load offset=0 (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))))
        (local.set %s (i32.sub (local.get %s) (i32.const 1)))
        (block $shift_done_%d
          (loop $shift_body_%d
            (br_if $shift_done_%d (i32.lt_s (local.get %s) (i32.const 0)))
            (br_if $shift_done_%d (i32.eqz %s))
            (f64.store offset=0
              (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (i32.add (local.get %s) (i32.const 1)) (i32.const 8)))
              (f64.load offset=0 (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))))
            (local.set %s (i32.sub (local.get %s) (i32.const 1)))
            (br $shift_body_%d)))
        (f64.store offset=0
          (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (i32.add (local.get %s) (i32.const 1)) (i32.const 8)))
          (local.get %s))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $sort_body_%d)))
    %s
    (local.get %s))`,
		m.prelude(), out, m.length,
		m.idx,
		m.label, m.label, m.label, m.idx, m.length,
		out, m.idx, m.get(fmt.Sprintf("(local.get %s)", m.idx)),
		m.idx, m.idx, m.label,
		m.idx,
		sortLabel, sortLabel, sortLabel, m.idx, m.length,
		key, out, m.idx,
		j, m.idx,
		shiftLabel, shiftLabel, shiftLabel, j,
		shiftLabel, cmp,
		out, j,
		out, j,
		j, j,
		shiftLabel,
		out, j,
		key,
		m.idx, m.idx, sortLabel,
		rebindText,
		out)
	return codegen.Fragment{Text: text, Kind: codegen.KindArray}
}

// lowerWith returns a copy of the receiver with the element at index
// replaced, leaving the receiver untouched.
func lowerWith(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment {
	m := newCall(c, recv)
	c.RequireStdlib("__alloc")
	out := fmt.Sprintf("$__m_out_%d", m.label)
	idxExpr := toI32(c.Generate(args[0]))
	target := fmt.Sprintf("$__m_tidx_%d", m.label)
	value := toF64(c.Generate(args[1]))
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s %s)
    (if (i32.lt_s (local.get %s) (i32.const 0)) (then (local.set %s (i32.add (local.get %s) (local.get %s)))))
    (local.set %s (call $__alloc (i32.const 1) (local.get %s)))
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (f64.store offset=0
          (i32.add (call $__ptr_offset (local.get %s)) (i32.mul (local.get %s) (i32.const 8)))
          (select %s %s (i32.eq (local.get %s) (local.get %s))))
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $body_%d)))
    (local.get %s))`,
		m.prelude(), target, idxExpr, target, target, target, m.length,
		out, m.length,
		m.idx,
		m.label, m.label, m.label, m.idx, m.length,
		out, m.idx, value, m.get(fmt.Sprintf("(local.get %s)", m.idx)), m.idx, target,
		m.idx, m.idx, m.label,
		out)
	return codegen.Fragment{Text: text, Kind: codegen.KindArray}
}
