// Package methods inlines array and typed-array method calls
// (map/filter/reduce/...) directly at the call site as a
// block$done/loop$body loop, rather than emitting a single shared
// runtime routine: each call site gets uniquely-labeled locals so
// nested/looped method calls never collide, and a callback arrow's body
// is spliced straight into the loop rather than compiled as a separate
// indirect call.
package methods

import (
	"fmt"
	"strings"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
	"github.com/jz-lang/jzc/errors"
)

// Lower dispatches a.method(args) to the matching inlined loop. ok is
// false if name isn't a recognized array/typed-array method, letting the
// caller fall back to ordinary member/call lowering (e.g. a plain object
// method).
func Lower(c *codegen.Context, recv *ast.Node, name string, argNodes []*ast.Node) (codegen.Fragment, bool) {
	lowering, ok := table[name]
	if !ok {
		return codegen.Fragment{}, false
	}
	return lowering(c, recv, argNodes), true
}

type loweringFunc func(c *codegen.Context, recv *ast.Node, args []*ast.Node) codegen.Fragment

var table map[string]loweringFunc

func init() {
	table = map[string]loweringFunc{
		"map":         lowerMap,
		"filter":      lowerFilter,
		"forEach":     lowerForEach,
		"reduce":      lowerReduce,
		"reduceRight": lowerReduceRight,
		"find":        lowerFind,
		"findIndex":   lowerFindIndex,
		"indexOf":     lowerIndexOf,
		"includes":    lowerIncludes,
		"every":       lowerEvery,
		"some":        lowerSome,
		"slice":       lowerSlice,
		"subarray":    lowerSubarray,
		"reverse":     lowerReverse,
		"toReversed":  lowerReverse,
		"push":        lowerPush,
		"pop":         lowerPop,
		"shift":       lowerShift,
		"unshift":     lowerUnshift,
		"concat":      lowerConcat,
		"flat":        lowerFlat,
		"flatMap":     lowerFlatMap,
		"join":        lowerJoin,
		"at":          lowerAt,
		"fill":        lowerFill,
		"set":         lowerSet,
		"copyWithin":  lowerCopyWithin,
		"sort":        lowerSort,
		"toSorted":    lowerToSorted,
		"with":        lowerWith,
	}
	// Register with codegen's genCall so a.method(args) actually reaches
	// this package's lowerings; codegen cannot import methods directly
	// (methods already imports codegen), so this hook is the wiring.
	codegen.MethodLowering = Lower
}

// call is the shared shape every lowering builds from: the receiver
// fragment, a unique per-call-site label, and (for callback-taking
// methods) the inlined callback body bound to a dedicated element local.
type call struct {
	c      *codegen.Context
	recv   codegen.Fragment
	label  int
	arr    string // local holding the receiver pointer
	length string // local holding the source length
	idx    string // loop index local
}

func newCall(c *codegen.Context, recv *ast.Node) *call {
	label := c.NextLabel()
	// Every lowering's prelude reads the length, and nearly all of them
	// read elements and address result storage.
	c.RequireStdlib("__ptr_len", "__arr_get", "__ptr_offset")
	return &call{
		c:      c,
		recv:   c.Generate(recv),
		label:  label,
		arr:    fmt.Sprintf("$__m_arr_%d", label),
		length: fmt.Sprintf("$__m_len_%d", label),
		idx:    fmt.Sprintf("$__m_idx_%d", label),
	}
}

// prelude binds arr/length from the receiver once.
func (m *call) prelude() string {
	return fmt.Sprintf(
		"(local.set %s %s)\n    (local.set %s (call $__ptr_len (local.get %s)))",
		m.arr, m.recv.Text, m.length, m.arr)
}

// get reads the element at idxExpr (an i32 WAT expression), routing
// through the typed-array accessor when the receiver is a typed array
// rather than the flat-array one: a typed pointer's own offset is an
// 8-byte view header, not element data, so flat-array offset+idx*8
// addressing would read the header words instead of elements.
func (m *call) get(idxExpr string) string {
	return elemGet(m.c, m.recv.Kind, m.arr, idxExpr)
}

// elemGet reads the element at idxExpr (an i32 WAT expression) from the
// array pointer held in local, dispatching on the value kind the
// generator tracked for it: the typed-array accessor when known typed,
// the smart flat-or-ring plain-array accessor otherwise.
func elemGet(c *codegen.Context, kind codegen.Kind, local, idxExpr string) string {
	if kind == codegen.KindTypedArray {
		c.RequireStdlib("__typed_get")
		return fmt.Sprintf("(call $__typed_get (local.get %s) %s)", local, idxExpr)
	}
	c.RequireStdlib("__arr_get")
	return fmt.Sprintf("(call $__arr_get (local.get %s) %s)", local, idxExpr)
}

// resultKind is the kind of a method result that has the same shape as
// its receiver: typed receivers produce typed results, everything else
// produces a plain array.
func (m *call) resultKind() codegen.Kind {
	if m.recv.Kind == codegen.KindTypedArray {
		return codegen.KindTypedArray
	}
	return codegen.KindArray
}

// set writes valExpr (an f64 WAT expression) to the receiver's element
// at idxExpr, routing through the accessor matching the receiver's form:
// __typed_set for a typed array (whose own offset is a view header, not
// element data), __arr_set for a plain array in either flat or ring form.
func (m *call) set(idxExpr, valExpr string) string {
	if m.recv.Kind == codegen.KindTypedArray {
		m.c.RequireStdlib("__typed_set")
		return fmt.Sprintf("(call $__typed_set (local.get %s) %s %s)", m.arr, idxExpr, valExpr)
	}
	m.c.RequireStdlib("__arr_set")
	return fmt.Sprintf("(call $__arr_set (local.get %s) %s %s)", m.arr, idxExpr, valExpr)
}

// inlineCallback splices an arrow callback's body into the loop, binding
// its element parameter to elemVar (a local the loop refreshes each
// iteration) rather than compiling the arrow as a separate function. A
// second callback parameter, when both declared and supplied by the
// caller via idxVar, binds to the loop's f64 index mirror the same way.
func inlineCallback(c *codegen.Context, cb *ast.Node, elemVar string, idxVar ...string) string {
	if cb == nil || cb.Op != ast.OpArrow {
		return c.Fail(errors.BadCallback(errors.PhaseCodegen, "inline-callback", "expected an arrow function literal")).Text
	}
	params := cb.ArrowParams()
	if len(params) == 0 {
		return c.Generate(cb.ArrowBody()).Text
	}
	// Bind the callback's parameters directly to the loop's locals by
	// aliasing them in the AST before lowering: substitute every
	// reference with an identifier resolving to the local, via the raw
	// name form codegen already knows how to read back (local.get).
	body := substituteIdent(cb.ArrowBody(), params[0].Name, elemVar)
	if len(params) > 1 && len(idxVar) > 0 {
		body = substituteIdent(body, params[1].Name, idxVar[0])
	}
	frag := c.Generate(body)
	return frag.Text
}

// substituteIdent returns a copy of n with every OpIdent named old
// rewritten to reference a synthetic local name new (already a raw WAT
// name, e.g. "$__m_elem_3"); codegen treats such names as opaque locals
// via a direct local.get instead of the normal scope lookup.
func substituteIdent(n *ast.Node, old, new string) *ast.Node {
	if n == nil {
		return nil
	}
	if n.Op == ast.OpIdent && n.Name == old {
		return &ast.Node{Op: ast.OpIdent, Name: "$raw:" + new}
	}
	children := make([]*ast.Node, len(n.Children))
	for i, ch := range n.Children {
		children[i] = substituteIdent(ch, old, new)
	}
	return &ast.Node{Op: n.Op, Children: children, Num: n.Num, Bool: n.Bool, Name: n.Name}
}

func joinLines(lines ...string) string { return strings.Join(lines, "\n    ") }
