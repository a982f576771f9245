package methods

import (
	"fmt"
	"math"
	"strconv"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
)

// simdOpKind abstracts the operation a vectorizable map callback
// performs; the concrete instruction is picked per lane shape.
type simdOpKind int

const (
	simdMul simdOpKind = iota
	simdAdd
	simdSub
	simdDiv
	simdNeg
	simdAbs
	simdSqrt
	simdCeil
	simdFloor
	simdAnd
	simdOr
	simdXor
	simdShl
	simdShrS
	simdShrU
)

// simdMapPattern describes a single vector instruction that reproduces a
// map callback's effect across all lanes at once.
type simdMapPattern struct {
	op         simdOpKind
	unary      bool
	constFirst bool // non-commutative binary only: const op vec, not vec op const
	constVal   float64
}

var simdBinaryOp = map[ast.Op]simdOpKind{
	ast.OpMul:    simdMul,
	ast.OpAdd:    simdAdd,
	ast.OpSub:    simdSub,
	ast.OpDiv:    simdDiv,
	ast.OpBitAnd: simdAnd,
	ast.OpBitOr:  simdOr,
	ast.OpBitXor: simdXor,
	ast.OpShl:    simdShl,
	ast.OpShr:    simdShrS,
	ast.OpUShr:   simdShrU,
}

var simdUnaryCall = map[string]simdOpKind{
	"abs":   simdAbs,
	"sqrt":  simdSqrt,
	"ceil":  simdCeil,
	"floor": simdFloor,
}

// simdLane is one vector shape: which element types it serves, how many
// lanes fit a v128, and the element stride as a log2 byte width.
type simdLane struct {
	prefix  string
	lanes   int
	shift   int
	integer bool
}

var simdLanes = map[string]simdLane{
	"F64": {prefix: "f64x2", lanes: 2, shift: 3},
	"F32": {prefix: "f32x4", lanes: 4, shift: 2},
	"I32": {prefix: "i32x4", lanes: 4, shift: 2, integer: true},
	"U32": {prefix: "i32x4", lanes: 4, shift: 2, integer: true},
}

// classifySimdMap recognizes a narrow grammar of single-parameter map
// callback bodies that vectorize cleanly: scale/shift by a constant,
// negation, the unary math builtins abs/sqrt/ceil/floor, and for integer
// element types the bitwise/shift operators. Anything else — a callback
// with side effects, multiple statements, or a shape outside this
// grammar — reports ok=false, and lowerMap falls back to its generic
// scalar loop. Whether the matched operation is valid for a given
// element type is decided separately by laneSupports.
func classifySimdMap(param string, body *ast.Node) (simdMapPattern, bool) {
	if body == nil {
		return simdMapPattern{}, false
	}
	isParam := func(n *ast.Node) bool { return n != nil && n.Op == ast.OpIdent && n.Name == param }
	isConst := func(n *ast.Node) bool { return n != nil && n.Op == ast.OpNumber }

	switch body.Op {
	case ast.OpNeg:
		if isParam(body.Child(0)) {
			return simdMapPattern{op: simdNeg, unary: true}, true
		}

	case ast.OpMul, ast.OpAdd, ast.OpSub, ast.OpDiv,
		ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor,
		ast.OpShl, ast.OpShr, ast.OpUShr:
		op := simdBinaryOp[body.Op]
		a, b := body.Child(0), body.Child(1)
		commutative := body.Op == ast.OpMul || body.Op == ast.OpAdd ||
			body.Op == ast.OpBitAnd || body.Op == ast.OpBitOr || body.Op == ast.OpBitXor
		switch {
		case isParam(a) && isConst(b):
			return simdMapPattern{op: op, constVal: b.Num}, true
		case isConst(a) && isParam(b):
			// A shift count on the left (c << x) is not x op c in any
			// reordering; only plain arithmetic commutes or flips.
			if body.Op == ast.OpShl || body.Op == ast.OpShr || body.Op == ast.OpUShr {
				return simdMapPattern{}, false
			}
			return simdMapPattern{op: op, constVal: a.Num, constFirst: !commutative}, true
		}

	case ast.OpCall:
		callee := body.Callee()
		args := body.CallArgs()
		if callee == nil || callee.Op != ast.OpIdent || len(args) != 1 || !isParam(args[0]) {
			return simdMapPattern{}, false
		}
		if op, ok := simdUnaryCall[callee.Name]; ok {
			return simdMapPattern{op: op, unary: true}, true
		}
	}
	return simdMapPattern{}, false
}

// laneSupports decides whether pattern p can be emitted for lane:
// division, sqrt, ceil and floor have no integer lane forms; the
// bitwise/shift operators have no float forms; an f32 lane additionally
// needs the constant to round-trip through f32, or the vector path
// (computing in f32) and the scalar path (computing in f64, then
// demoting) would disagree on the constant itself.
func laneSupports(lane simdLane, p simdMapPattern) bool {
	switch p.op {
	case simdDiv, simdSqrt, simdCeil, simdFloor:
		if lane.integer {
			return false
		}
	case simdAnd, simdOr, simdXor, simdShl, simdShrS, simdShrU:
		if !lane.integer {
			return false
		}
	}
	if !p.unary && lane.integer {
		// Integer splats and shift counts are i32 immediates.
		if p.constVal != math.Trunc(p.constVal) ||
			p.constVal < math.MinInt32 || p.constVal > math.MaxInt32 {
			return false
		}
	}
	if !p.unary && lane.prefix == "f32x4" && float64(float32(p.constVal)) != p.constVal {
		return false
	}
	return true
}

// instr returns the vector instruction name for p on lane.
func (p simdMapPattern) instr(lane simdLane) string {
	switch p.op {
	case simdMul:
		return lane.prefix + ".mul"
	case simdAdd:
		return lane.prefix + ".add"
	case simdSub:
		return lane.prefix + ".sub"
	case simdDiv:
		return lane.prefix + ".div"
	case simdNeg:
		return lane.prefix + ".neg"
	case simdAbs:
		return lane.prefix + ".abs"
	case simdSqrt:
		return lane.prefix + ".sqrt"
	case simdCeil:
		return lane.prefix + ".ceil"
	case simdFloor:
		return lane.prefix + ".floor"
	case simdAnd:
		return "v128.and"
	case simdOr:
		return "v128.or"
	case simdXor:
		return "v128.xor"
	case simdShl:
		return lane.prefix + ".shl"
	case simdShrS:
		return lane.prefix + ".shr_s"
	case simdShrU:
		return lane.prefix + ".shr_u"
	}
	return ""
}

// vecExpr builds the vector expression applying p to the lanes held in
// vecLocal. Shifts take a scalar i32 count; every other binary form
// splats the constant across the lanes.
func (p simdMapPattern) vecExpr(lane simdLane, vecLocal string) string {
	vec := fmt.Sprintf("(local.get %s)", vecLocal)
	if p.unary {
		return fmt.Sprintf("(%s %s)", p.instr(lane), vec)
	}
	if p.op == simdShl || p.op == simdShrS || p.op == simdShrU {
		return fmt.Sprintf("(%s %s (i32.const %d))", p.instr(lane), vec, int32(p.constVal)&31)
	}
	var splat string
	switch {
	case lane.integer:
		splat = fmt.Sprintf("(%s.splat (i32.const %d))", lane.prefix, int32(p.constVal))
	case lane.prefix == "f32x4":
		splat = fmt.Sprintf("(f32x4.splat (f32.const %s))", strconv.FormatFloat(p.constVal, 'g', -1, 32))
	default:
		splat = fmt.Sprintf("(f64x2.splat (f64.const %s))", strconv.FormatFloat(p.constVal, 'g', -1, 64))
	}
	if p.constFirst {
		return fmt.Sprintf("(%s %s %s)", p.instr(lane), splat, vec)
	}
	return fmt.Sprintf("(%s %s %s)", p.instr(lane), vec, splat)
}

// trySimdMap lowers recv.map(cb) as a v128-vectorized loop processing a
// full vector of elements per iteration, falling back to scalar for the
// trailing remainder, when recv is a typed array of a vectorizable
// element type and cb's body matches classifySimdMap's grammar. ok is
// false whenever the specialization doesn't apply, so the caller can
// fall back to lowerMap's generic per-element loop.
func trySimdMap(c *codegen.Context, recv *ast.Node, cb *ast.Node) (codegen.Fragment, bool) {
	if c.DisableSimd {
		return codegen.Fragment{}, false
	}
	if cb == nil || cb.Op != ast.OpArrow {
		return codegen.Fragment{}, false
	}
	params := cb.ArrowParams()
	if len(params) != 1 {
		return codegen.Fragment{}, false
	}
	pattern, ok := classifySimdMap(params[0].Name, cb.ArrowBody())
	if !ok {
		return codegen.Fragment{}, false
	}
	if recv == nil || recv.Op != ast.OpIdent {
		// A bare identifier is the only receiver shape newCall can
		// re-evaluate for free: its own recv field already holds the
		// generated fragment, so checking its Kind here costs nothing
		// extra and never risks generating a side-effecting receiver
		// expression twice.
		return codegen.Fragment{}, false
	}
	m := newCall(c, recv)
	if m.recv.Kind != codegen.KindTypedArray {
		return codegen.Fragment{}, false
	}
	lane, ok := simdLanes[m.recv.Schema.ElementType]
	if !ok || !laneSupports(lane, pattern) {
		return codegen.Fragment{}, false
	}

	c.UsedSimd = true
	c.RequireStdlib("__alloc_typed", "__typed_elemtype", "__typed_dataptr", "__typed_get", "__typed_set")
	tailLabel := c.NextLabel()
	out := fmt.Sprintf("$__m_out_%d", m.label)
	srcBase := fmt.Sprintf("$__m_srcbase_%d", m.label)
	outBase := fmt.Sprintf("$__m_outbase_%d", m.label)
	vec := fmt.Sprintf("$__m_vec_%d", m.label)
	vecEnd := fmt.Sprintf("$__m_vecend_%d", m.label)
	elem := fmt.Sprintf("$__m_elem_%d", m.label)

	scalarBody := substituteIdent(cb.ArrowBody(), params[0].Name, elem)
	scalarFrag := c.Generate(scalarBody)

	// A typed pointer's own offset is its view header; both loops address
	// the shared element storage through the hoisted data pointers,
	// striding one full vector of elements at a time.
	text := fmt.Sprintf(`(block (result f64)
    %s
    (local.set %s (call $__alloc_typed (call $__typed_elemtype (local.get %s)) (local.get %s)))
    (local.set %s (call $__typed_dataptr (local.get %s)))
    (local.set %s (call $__typed_dataptr (local.get %s)))
    (local.set %s (i32.sub (local.get %s) (i32.rem_s (local.get %s) (i32.const %d))))
    (local.set %s (i32.const 0))
    (block $done_%d
      (loop $body_%d
        (br_if $done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s (v128.load offset=0
          (i32.add (local.get %s) (i32.shl (local.get %s) (i32.const %d)))))
        (local.set %s %s)
        (v128.store offset=0
          (i32.add (local.get %s) (i32.shl (local.get %s) (i32.const %d)))
          (local.get %s))
        (local.set %s (i32.add (local.get %s) (i32.const %d)))
        (br $body_%d)))
    (block $tail_done_%d
      (loop $tail_body_%d
        (br_if $tail_done_%d (i32.ge_s (local.get %s) (local.get %s)))
        (local.set %s (call $__typed_get (local.get %s) (local.get %s)))
        (call $__typed_set (local.get %s) (local.get %s) %s)
        (local.set %s (i32.add (local.get %s) (i32.const 1)))
        (br $tail_body_%d)))
    (local.get %s))`,
		m.prelude(),
		out, m.arr, m.length,
		srcBase, m.arr,
		outBase, out,
		vecEnd, m.length, m.length, lane.lanes,
		m.idx,
		m.label, m.label, m.label, m.idx, vecEnd,
		vec, srcBase, m.idx, lane.shift,
		vec, pattern.vecExpr(lane, vec),
		outBase, m.idx, lane.shift,
		vec,
		m.idx, m.idx, lane.lanes, m.label,
		tailLabel, tailLabel, tailLabel, m.idx, m.length,
		elem, m.arr, m.idx,
		out, m.idx, toF64(scalarFrag),
		m.idx, m.idx, tailLabel,
		out)
	return codegen.Fragment{Text: text, Kind: codegen.KindTypedArray, Schema: m.recv.Schema}, true
}
