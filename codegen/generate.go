package codegen

import (
	"fmt"

	"github.com/jz-lang/jzc/ast"
)

// Generate lowers one AST node to a typed fragment. It is the uniform
// entry point every sub-lowering (arithmetic, calls, loops, ...) calls
// back into for its children.
func (c *Context) Generate(n *ast.Node) Fragment {
	if n == nil {
		return Fragment{Text: "(f64.const 0)", Kind: KindF64}
	}
	switch n.Op {
	case ast.OpNumber:
		return Fragment{Text: fmt.Sprintf("(f64.const %v)", n.Num), Kind: KindF64}
	case ast.OpBool:
		v := 0
		if n.Bool {
			v = 1
		}
		return Fragment{Text: fmt.Sprintf("(i32.const %d)", v), Kind: KindBool}
	case ast.OpNull:
		return Fragment{Text: "(f64.const nan)", Kind: KindF64}
	case ast.OpIdent:
		return c.genIdent(n)
	case ast.OpString:
		return c.genString(n)

	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		return c.genArith(n)
	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		return c.genCompare(n)
	case ast.OpNullish:
		return c.genNullish(n)
	case ast.OpTypeof:
		c.RequireStdlib("__typeof_code")
		inner := c.Generate(n.Child(0))
		return Fragment{Text: fmt.Sprintf("(call $__typeof_code %s)", asF64(inner)), Kind: KindI32}

	case ast.OpAnd, ast.OpOr:
		return c.genLogical(n)
	case ast.OpNeg:
		return c.genNeg(n)
	case ast.OpNot:
		inner := c.Generate(n.Child(0))
		return Fragment{Text: fmt.Sprintf("(i32.eqz %s)", asBool(inner)), Kind: KindBool}
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpShl, ast.OpShr, ast.OpUShr:
		return c.genBitwise(n)
	case ast.OpBitNot:
		inner := asI32(c.Generate(n.Child(0)))
		return Fragment{Text: fmt.Sprintf("(i32.xor %s (i32.const -1))", inner), Kind: KindI32}

	case ast.OpAssign:
		return c.genAssign(n)
	case ast.OpAddAssign, ast.OpSubAssign, ast.OpMulAssign, ast.OpDivAssign:
		return c.genCompoundAssign(n)

	case ast.OpIf:
		return c.genTernary(n)
	case ast.OpFor, ast.OpWhile, ast.OpDoWhile:
		return c.genLoop(n)
	case ast.OpBreak:
		label, ok := c.currentLoop()
		if !ok {
			return c.errf("break outside a loop")
		}
		return Fragment{Text: fmt.Sprintf("(br $done_%d)", label), Kind: KindF64}
	case ast.OpContinue:
		label, ok := c.currentLoop()
		if !ok {
			return c.errf("continue outside a loop")
		}
		return Fragment{Text: fmt.Sprintf("(br $body_%d)", label), Kind: KindF64}
	case ast.OpReturn:
		if n.Child(0) == nil {
			return Fragment{Text: "(return)", Kind: KindF64}
		}
		inner := c.Generate(n.Child(0))
		return Fragment{Text: fmt.Sprintf("(return %s)", asF64(inner)), Kind: inner.Kind}

	case ast.OpBlock, ast.OpProgram:
		return c.genBlock(n)

	case ast.OpCall:
		return c.genCall(n)
	case ast.OpArrow, ast.OpFunction:
		return c.genClosureLiteral(n)

	case ast.OpArray:
		return c.genArrayLiteral(n)
	case ast.OpObject:
		return c.genObject(n)
	case ast.OpNew:
		return c.genNew(n)
	case ast.OpMember:
		return c.genMember(n)
	case ast.OpIndex:
		return c.genIndex(n)

	case ast.OpThrow:
		return c.genThrow(n)
	case ast.OpTry:
		return c.genTry(n)

	default:
		return c.errf("unsupported construct %q", n.Op)
	}
}

// rawLocalName recognizes the "$raw:<name>" identifier convention used by
// package methods to splice an inlined callback body into a loop,
// binding the callback's parameter directly to a loop-local WAT name
// instead of going through ordinary scope resolution.
func rawLocalName(name string) (string, bool) {
	const prefix = "$raw:"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):], true
	}
	return "", false
}

func (c *Context) genIdent(n *ast.Node) Fragment {
	name := n.Name
	if raw, ok := rawLocalName(name); ok {
		return Fragment{Text: fmt.Sprintf("(local.get %s)", raw), Kind: KindF64}
	}
	if f := c.current(); f != nil {
		if slot, ok := f.hoisted[name]; ok {
			return Fragment{Text: fmt.Sprintf("(f64.load offset=%d (local.get $__ownenv))", slot*8), Kind: KindF64}
		}
		if slot, ok := f.captures[name]; ok {
			return Fragment{Text: fmt.Sprintf("(f64.load offset=%d (local.get $__env))", slot*8), Kind: KindF64}
		}
		if info, ok := f.locals[name]; ok {
			return Fragment{Text: fmt.Sprintf("(local.get %s)", info.watName), Kind: info.kind, Schema: info.schema}
		}
	}
	if info, ok := c.globals[name]; ok {
		return Fragment{Text: fmt.Sprintf("(global.get %s)", info.watName), Kind: info.kind, Schema: info.schema}
	}
	return c.errf("unknown identifier %q", name)
}

// genArith lowers +, -, *, /, % choosing i32 arithmetic only when both
// operands are already i32; otherwise both sides promote to f64.
// Modulo is computed as a - trunc(a/b)*b since WASM f64 has no frem.
func (c *Context) genArith(n *ast.Node) Fragment {
	l := c.Generate(n.Child(0))
	r := c.Generate(n.Child(1))
	bothI32 := l.Kind == KindI32 && r.Kind == KindI32

	op := map[ast.Op]string{ast.OpAdd: "add", ast.OpSub: "sub", ast.OpMul: "mul", ast.OpDiv: "div"}[n.Op]
	if n.Op == ast.OpMod {
		lf, rf := asF64(l), asF64(r)
		text := fmt.Sprintf("(f64.sub %s (f64.mul (f64.trunc (f64.div %s %s)) %s))", lf, lf, rf, rf)
		return Fragment{Text: text, Kind: KindF64}
	}
	if bothI32 && n.Op != ast.OpDiv {
		return Fragment{Text: fmt.Sprintf("(i32.%s %s %s)", op, l.Text, r.Text), Kind: KindI32}
	}
	return Fragment{Text: fmt.Sprintf("(f64.%s %s %s)", op, asF64(l), asF64(r)), Kind: KindF64}
}

func (c *Context) genCompare(n *ast.Node) Fragment {
	l := c.Generate(n.Child(0))
	r := c.Generate(n.Child(1))
	op := map[ast.Op]string{
		ast.OpEq: "eq", ast.OpNeq: "ne",
		ast.OpLt: "lt", ast.OpLte: "le",
		ast.OpGt: "gt", ast.OpGte: "ge",
	}[n.Op]
	if (l.Kind == KindI32 || l.Kind == KindBool) && (r.Kind == KindI32 || r.Kind == KindBool) {
		signed := op
		switch op {
		case "lt", "le", "gt", "ge":
			signed += "_s"
		}
		return Fragment{Text: fmt.Sprintf("(i32.%s %s %s)", signed, l.Text, r.Text), Kind: KindBool}
	}
	if n.Op == ast.OpEq || n.Op == ast.OpNeq {
		// Every pointer-boxed kind is a quiet NaN: f64.eq/ne always
		// reads false on NaN operands regardless of payload, so equality
		// on strings/arrays/objects/closures has to go through the
		// pointer-aware helpers instead of the raw float comparison.
		// Strings compare by content (__str_eq); everything else compares
		// by identity (__f64_eq).
		if l.Kind == KindString || r.Kind == KindString {
			c.RequireStdlib("__str_eq")
			eq := fmt.Sprintf("(call $__str_eq %s %s)", asF64(l), asF64(r))
			if n.Op == ast.OpNeq {
				return Fragment{Text: fmt.Sprintf("(i32.eqz %s)", eq), Kind: KindBool}
			}
			return Fragment{Text: eq, Kind: KindBool}
		}
		if isPointerKind(l.Kind) || isPointerKind(r.Kind) {
			c.RequireStdlib("__f64_eq")
			eq := fmt.Sprintf("(call $__f64_eq %s %s)", asF64(l), asF64(r))
			if n.Op == ast.OpNeq {
				return Fragment{Text: fmt.Sprintf("(i32.eqz %s)", eq), Kind: KindBool}
			}
			return Fragment{Text: eq, Kind: KindBool}
		}
	}
	return Fragment{Text: fmt.Sprintf("(f64.%s %s %s)", op, asF64(l), asF64(r)), Kind: KindBool}
}

func isPointerKind(k Kind) bool {
	switch k {
	case KindArray, KindTypedArray, KindObject, KindClosure, KindString:
		return true
	}
	return false
}

// genBitwise lowers &, |, ^, <<, >>, >>>, always demoting to i32;
// shift counts are masked to 5 bits to match source semantics.
func (c *Context) genBitwise(n *ast.Node) Fragment {
	l := asI32(c.Generate(n.Child(0)))
	r := asI32(c.Generate(n.Child(1)))
	switch n.Op {
	case ast.OpBitAnd:
		return Fragment{Text: fmt.Sprintf("(i32.and %s %s)", l, r), Kind: KindI32}
	case ast.OpBitOr:
		return Fragment{Text: fmt.Sprintf("(i32.or %s %s)", l, r), Kind: KindI32}
	case ast.OpBitXor:
		return Fragment{Text: fmt.Sprintf("(i32.xor %s %s)", l, r), Kind: KindI32}
	case ast.OpShl:
		return Fragment{Text: fmt.Sprintf("(i32.shl %s (i32.and %s (i32.const 31)))", l, r), Kind: KindI32}
	case ast.OpShr:
		return Fragment{Text: fmt.Sprintf("(i32.shr_s %s (i32.and %s (i32.const 31)))", l, r), Kind: KindI32}
	case ast.OpUShr:
		return Fragment{Text: fmt.Sprintf("(i32.shr_u %s (i32.and %s (i32.const 31)))", l, r), Kind: KindI32}
	default:
		return c.errf("unsupported bitwise operator %q", n.Op)
	}
}

// genLogical lowers && / || to a typed if that preserves the common
// operand kind rather than always collapsing to i32 booleans.
func (c *Context) genLogical(n *ast.Node) Fragment {
	l := c.Generate(n.Child(0))
	r := c.Generate(n.Child(1))
	kind := l.Kind
	watType := "f64"
	if kind == KindI32 || kind == KindBool {
		watType = "i32"
	}
	var text string
	if n.Op == ast.OpAnd {
		text = fmt.Sprintf("(if (result %s) %s (then %s) (else %s))", watType, asBool(l), r.Text, l.Text)
	} else {
		text = fmt.Sprintf("(if (result %s) %s (then %s) (else %s))", watType, asBool(l), l.Text, r.Text)
	}
	return Fragment{Text: text, Kind: kind}
}

// genNullish lowers a ?? b as a typed if keyed on whether a is zero,
// binding a to a scratch local so it is evaluated exactly once.
func (c *Context) genNullish(n *ast.Node) Fragment {
	a := c.Generate(n.Child(0))
	b := c.Generate(n.Child(1))
	tmp := fmt.Sprintf("$__nul_%d", c.NextLabel())
	return Fragment{
		Text: fmt.Sprintf(
			"(block (result f64) (local.set %s %s) (if (result f64) (f64.eq (local.get %s) (f64.const 0)) (then %s) (else (local.get %s))))",
			tmp, asF64(a), tmp, asF64(b), tmp),
		Kind: KindF64,
	}
}

func (c *Context) genNeg(n *ast.Node) Fragment {
	inner := c.Generate(n.Child(0))
	if inner.Kind == KindI32 {
		return Fragment{Text: fmt.Sprintf("(i32.sub (i32.const 0) %s)", inner.Text), Kind: KindI32}
	}
	return Fragment{Text: fmt.Sprintf("(f64.neg %s)", asF64(inner)), Kind: KindF64}
}

// genAssign lowers name = expr as a tee so the assignment expression
// itself yields the assigned value.
func (c *Context) genAssign(n *ast.Node) Fragment {
	target := n.Child(0)
	val := c.Generate(n.Child(1))
	if target.Op == ast.OpIndex {
		return c.genIndexAssign(target, val)
	}
	if target.Op != ast.OpIdent {
		return c.errf("assignment target must be an identifier, got %q", target.Op)
	}
	name := target.Name

	if f := c.current(); f != nil {
		if slot, ok := f.hoisted[name]; ok {
			return Fragment{
				Text: fmt.Sprintf("(block (result f64) (f64.store offset=%d (local.get $__ownenv) %s) (f64.load offset=%d (local.get $__ownenv)))", slot*8, asF64(val), slot*8),
				Kind: KindF64,
			}
		}
		if slot, ok := f.captures[name]; ok {
			return Fragment{
				Text: fmt.Sprintf("(block (result f64) (f64.store offset=%d (local.get $__env) %s) (f64.load offset=%d (local.get $__env)))", slot*8, asF64(val), slot*8),
				Kind: KindF64,
			}
		}
		info, ok := f.locals[name]
		if !ok {
			info = c.allocLocal(name, "f64", val.Kind)
		}
		info.schema = val.Schema
		return Fragment{Text: fmt.Sprintf("(local.tee %s %s)", info.watName, val.Text), Kind: val.Kind}
	}

	info, ok := c.globals[name]
	if !ok {
		info = &localInfo{watName: "$" + name, watType: "f64", kind: val.Kind}
		c.globals[name] = info
	}
	info.schema = val.Schema
	return Fragment{
		Text: fmt.Sprintf("(block (result f64) (global.set %s %s) (global.get %s))", info.watName, asF64(val), info.watName),
		Kind: val.Kind,
	}
}

// genIndexAssign lowers arr[i] = expr through the store accessor
// matching the container's kind, yielding the assigned value so the
// assignment composes as an expression like any other.
func (c *Context) genIndexAssign(target *ast.Node, val Fragment) Fragment {
	obj := c.Generate(target.IndexObject())
	idx := c.Generate(target.IndexExpr())
	tmp := fmt.Sprintf("$__ix_val_%d", c.NextLabel())
	var store string
	if obj.Kind == KindTypedArray {
		c.RequireStdlib("__typed_set")
		store = fmt.Sprintf("(call $__typed_set %s %s (local.get %s))", obj.Text, asI32(idx), tmp)
	} else {
		c.RequireStdlib("__arr_set")
		store = fmt.Sprintf("(call $__arr_set %s %s (local.get %s))", obj.Text, asI32(idx), tmp)
	}
	return Fragment{
		Text: fmt.Sprintf("(block (result f64) (local.set %s %s) %s (local.get %s))", tmp, asF64(val), store, tmp),
		Kind: KindF64,
	}
}

func (c *Context) genCompoundAssign(n *ast.Node) Fragment {
	binOp := map[ast.Op]ast.Op{
		ast.OpAddAssign: ast.OpAdd, ast.OpSubAssign: ast.OpSub,
		ast.OpMulAssign: ast.OpMul, ast.OpDivAssign: ast.OpDiv,
	}[n.Op]
	expanded := ast.New(ast.OpAssign, n.Child(0), ast.New(binOp, n.Child(0), n.Child(1)))
	return c.Generate(expanded)
}

// genTernary lowers the ternary/if-expression form to a typed if,
// coercing both arms to a common kind (f64 unless both arms are i32).
func (c *Context) genTernary(n *ast.Node) Fragment {
	cond := c.Generate(n.IfCond())
	then := c.Generate(n.IfThen())
	els := c.Generate(n.IfElse())
	if then.Kind == KindI32 && els.Kind == KindI32 {
		return Fragment{
			Text: fmt.Sprintf("(if (result i32) %s (then %s) (else %s))", asBool(cond), then.Text, els.Text),
			Kind: KindI32,
		}
	}
	return Fragment{
		Text: fmt.Sprintf("(if (result f64) %s (then %s) (else %s))", asBool(cond), asF64(then), asF64(els)),
		Kind: KindF64,
	}
}

// genBlock sequences statements with `drop` between all but the last,
// since WAT instructions used as statements still leave a value.
func (c *Context) genBlock(n *ast.Node) Fragment {
	var lines []string
	var last Fragment
	for i, child := range n.Children {
		if child == nil {
			continue
		}
		frag := c.Generate(child)
		if i == len(n.Children)-1 {
			last = frag
			lines = append(lines, frag.Text)
		} else {
			lines = append(lines, fmt.Sprintf("(drop %s)", asF64(frag)))
			if guard := c.excGuard(); guard != "" {
				lines = append(lines, guard)
			}
		}
	}
	if len(lines) == 0 {
		return Fragment{Text: "(f64.const 0)", Kind: KindF64}
	}
	return Fragment{Text: watBlock(lines...), Kind: last.Kind}
}

// genLoop lowers for/while to block$done/loop$body with br_if on the
// bound check at the top and a branch back to $body at the bottom
// ; break/continue (generated elsewhere) find these labels through
// the loop-label stack that pushLoop/popLoop maintain around the body.
func (c *Context) genLoop(n *ast.Node) Fragment {
	label := c.NextLabel()
	var init, cond, post, body Fragment
	c.pushLoop(label)
	if n.Op == ast.OpFor {
		if n.ForInit() != nil {
			init = c.Generate(n.ForInit())
		}
		if n.ForCond() != nil {
			cond = c.Generate(n.ForCond())
		} else {
			cond = Fragment{Text: "(i32.const 1)", Kind: KindBool}
		}
		if n.ForPost() != nil {
			post = c.Generate(n.ForPost())
		}
		body = c.Generate(n.ForBody())
	} else {
		cond = c.Generate(n.Child(0))
		body = c.Generate(n.Child(1))
	}
	c.popLoop()

	// A pending throw inside the body exits the loop at the back edge;
	// the surrounding block or function guard carries the unwind on.
	loopGuard := ""
	if c.UsedException {
		loopGuard = fmt.Sprintf("\n    (br_if $done_%d (global.get $__exc_pending))", label)
	}

	if n.Op == ast.OpDoWhile {
		text := fmt.Sprintf(`(block $done_%d
  (loop $body_%d
    %s%s
    (br_if $body_%d %s)))`,
			label, label, dropStmt(body), loopGuard, label, asBool(cond))
		return Fragment{Text: text, Kind: KindF64}
	}

	text := fmt.Sprintf(`(block $done_%d
  %s
  (loop $body_%d
    (br_if $done_%d (i32.eqz %s))
    %s
    %s%s
    (br $body_%d)))`,
		label, dropStmt(init), label, label, asBool(cond), dropStmt(body), dropStmt(post), loopGuard, label)
	return Fragment{Text: text, Kind: KindF64}
}

// dropStmt renders a fragment as a statement, discarding its value; an
// absent fragment (e.g. a for loop with no init or post clause) becomes
// a nop so the surrounding template stays well-formed.
func dropStmt(f Fragment) string {
	if f.Text == "" {
		return "(nop)"
	}
	return fmt.Sprintf("(drop %s)", asF64(f))
}

// ScanExceptions reports whether any throw or try appears anywhere in
// the tree. Module assembly calls it before generation starts so every
// block and loop lowered afterwards carries the pending-exception
// guards, including ones generated before the first throw is reached.
func ScanExceptions(n *ast.Node) bool {
	if n == nil {
		return false
	}
	if n.Op == ast.OpThrow || n.Op == ast.OpTry {
		return true
	}
	for _, ch := range n.Children {
		if ScanExceptions(ch) {
			return true
		}
	}
	return false
}

// excGuard is the pending-exception check spliced between statements and
// at loop back-edges once a program is known to throw: inside a try it
// unwinds straight to the handler; elsewhere it returns with the flag
// still set, so the caller's own guard keeps the unwind going.
func (c *Context) excGuard() string {
	if !c.UsedException {
		return ""
	}
	if label, ok := c.currentTry(); ok {
		return fmt.Sprintf("(br_if $__exc_try_%d (global.get $__exc_pending))", label)
	}
	return "(if (global.get $__exc_pending) (then (return (f64.const nan))))"
}

// genThrow stores the thrown value and sets the pending flag, then
// unwinds: a direct branch to the innermost try in the same function, or
// an early return when the handler (if any) lives in a caller — the
// caller's excGuard picks the flag up after the call statement.
func (c *Context) genThrow(n *ast.Node) Fragment {
	c.UsedException = true
	c.RequireStdlib("__exc_globals")
	val := c.Generate(n.Child(0))
	unwind := "(return (f64.const nan))"
	if label, ok := c.currentTry(); ok {
		unwind = fmt.Sprintf("(br $__exc_try_%d)", label)
	}
	text := fmt.Sprintf(
		"(block (result f64) (global.set $__exc_value %s) (global.set $__exc_pending (i32.const 1)) %s (f64.const nan))",
		asF64(val), unwind)
	return Fragment{Text: text, Kind: KindF64}
}

// genTry wraps the try body in a labeled block that throw (and the
// between-statement guards) branch out of, then runs the handler if the
// pending flag is up, with the caught value bound to the catch
// parameter. The whole construct yields the body's value, or the
// handler's when it ran.
func (c *Context) genTry(n *ast.Node) Fragment {
	c.UsedException = true
	c.RequireStdlib("__exc_globals")
	label := c.NextLabel()
	res := fmt.Sprintf("$__try_res_%d", label)
	caught := fmt.Sprintf("$__catch_%d", label)

	c.pushTry(label)
	body := c.Generate(n.TryBody())
	c.popTry()

	catchBody := n.CatchBody()
	if p := n.CatchParam(); p != nil {
		catchBody = rewriteIdent(catchBody, p.Name, caught)
	}
	handler := c.Generate(catchBody)

	text := fmt.Sprintf(`(block (result f64)
    (local.set %s (f64.const nan))
    (block $__exc_try_%d
      (local.set %s %s))
    (if (global.get $__exc_pending)
      (then
        (global.set $__exc_pending (i32.const 0))
        (local.set %s (global.get $__exc_value))
        (local.set %s %s)))
    (local.get %s))`,
		res, label, res, asF64(body),
		caught, res, asF64(handler), res)
	return Fragment{Text: text, Kind: KindF64}
}

// rewriteIdent returns a copy of n with every identifier named old
// redirected to the raw WAT local new, the same "$raw:" convention
// genIdent reads back with a direct local.get.
func rewriteIdent(n *ast.Node, old, new string) *ast.Node {
	if n == nil {
		return nil
	}
	if n.Op == ast.OpIdent && n.Name == old {
		return &ast.Node{Op: ast.OpIdent, Name: "$raw:" + new}
	}
	children := make([]*ast.Node, len(n.Children))
	for i, ch := range n.Children {
		children[i] = rewriteIdent(ch, old, new)
	}
	return &ast.Node{Op: n.Op, Children: children, Num: n.Num, Bool: n.Bool, Name: n.Name}
}
