package codegen

import (
	"fmt"
	"math"
	"sort"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/value"
)

// genClosureLiteral lowers an arrow/function literal to a closure value
// . Every function literal — capturing or not — goes through this
// path so references are always callable indirectly via the function
// table, never only directly.
func (c *Context) genClosureLiteral(n *ast.Node) Fragment {
	var params []string
	var body *ast.Node
	switch n.Op {
	case ast.OpArrow:
		for _, p := range n.ArrowParams() {
			params = append(params, p.Name)
		}
		body = n.ArrowBody()
	case ast.OpFunction:
		for _, p := range n.FuncParams() {
			params = append(params, p.Name)
		}
		body = n.FuncBody()
	}

	analysis := captureAnalysis(params, body)
	captured := c.visibleFreeVars(analysis.Free)

	funcName := fmt.Sprintf("$__closure_%d", len(c.FuncTable))
	entry := FuncEntry{Name: funcName, Arity: len(params)}
	tableIndex := len(c.FuncTable)
	c.FuncTable = append(c.FuncTable, entry)
	c.Pending = append(c.Pending, &PendingFunc{Entry: entry, Node: n, Captured: captured})
	c.UsedFuncTable = true
	c.RequireStdlib("__alloc", "__mkptr")

	if n.Op == ast.OpFunction && c.current() == nil {
		if nameNode := n.FuncName(); nameNode != nil {
			if c.TopLevelFuncs == nil {
				c.TopLevelFuncs = map[string]string{}
			}
			c.TopLevelFuncs[nameNode.Name] = funcName
		}
	}

	envLen := len(captured)
	if envLen == 0 {
		return Fragment{
			Text: fmt.Sprintf("(call $__mkptr (i32.const %d) (i32.const %d) (i32.const 0))",
				int(value.Closure), packClosureAux(tableIndex, 0)),
			Kind:   KindClosure,
			Schema: Schema{RemainingArity: len(params)},
		}
	}

	// Allocate an environment record and store each captured value. The
	// record is a plain array in memory, so every store targets the raw
	// byte offset (__ptr_offset), not the NaN-boxed pointer __alloc hands
	// back.
	c.RequireStdlib("__ptr_offset")
	storeLines := ""
	for i, name := range captured {
		slotFrag := c.genIdent(ast.Ident(name))
		storeLines += fmt.Sprintf("\n    (f64.store offset=%d (call $__ptr_offset (local.get $__newenv)) %s)", i*8, asF64(slotFrag))
	}
	// The CLOSURE branch of __alloc is a raw block with no length header,
	// so the requested size is in bytes: one f64 slot per capture.
	text := fmt.Sprintf(`(block (result f64)
    (local.set $__newenv (call $__alloc (i32.const %d) (i32.const %d)))%s
    (call $__mkptr (i32.const %d) (i32.const %d) (call $__ptr_offset (local.get $__newenv))))`,
		int(value.Closure), envLen*8, storeLines, int(value.Closure), packClosureAux(tableIndex, envLen))

	return Fragment{Text: text, Kind: KindClosure, Schema: Schema{RemainingArity: len(params)}}
}

func packClosureAux(tableIndex, envLen int) int {
	return (tableIndex&0x3FF)<<6 | (envLen & 0x3F)
}

// visibleFreeVars intersects a nested function's free-variable set with
// whatever is actually reachable from the enclosing call site: the
// current frame's locals and hoisted/captured slots, or globals at
// top level. This is the capture list, sorted by name so it is stable
// across calls (map iteration order is not).
func (c *Context) visibleFreeVars(free map[string]bool) []string {
	var out []string
	if f := c.current(); f != nil {
		for name := range free {
			if _, ok := f.locals[name]; ok {
				out = append(out, name)
				continue
			}
			if _, ok := f.hoisted[name]; ok {
				out = append(out, name)
				continue
			}
			if _, ok := f.captures[name]; ok {
				out = append(out, name)
			}
		}
	} else {
		for name := range free {
			if _, ok := c.globals[name]; ok {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// genCall lowers a call expression. A direct call to a known top-level
// function name compiles as `call $name`; a call through a closure
// value extracts the table index and environment pointer from the NaN
// payload and emits call_indirect.
func (c *Context) genCall(n *ast.Node) Fragment {
	callee := n.Callee()
	args := n.CallArgs()

	if callee.Op == ast.OpIdent {
		if _, known := mathBuiltins[callee.Name]; known {
			if frag, ok := c.genMathCall(callee.Name, args); ok {
				return frag
			}
		}
		if callee.Name == "Symbol" && len(args) == 0 {
			if _, shadowed := c.TopLevelFuncs["Symbol"]; !shadowed {
				c.RequireStdlib("__mk_symbol")
				return Fragment{Text: "(call $__mk_symbol)", Kind: KindF64}
			}
		}
	}

	// a.method(args): try the array/typed-array builtin method table
	// before falling through to ordinary field/closure-call
	// handling, which would otherwise misread "map"/"filter"/etc. as an
	// object field holding a closure.
	if callee.Op == ast.OpMember && MethodLowering != nil {
		recv := callee.MemberObject()
		name := callee.MemberProperty()
		if frag, ok := MethodLowering(c, recv, name, args); ok {
			return frag
		}
	}

	var argText string
	for _, a := range args {
		argText += " " + asF64(c.Generate(a))
	}

	if callee.Op == ast.OpIdent {
		if watName, ok := c.TopLevelFuncs[callee.Name]; ok {
			// Every function, named or anonymous, is compiled with a
			// leading $__env parameter since it may also be invoked
			// indirectly through the function table; a direct
			// call supplies a dummy zero offset, never read because a
			// top-level function's capture list is always empty.
			return Fragment{Text: fmt.Sprintf("(call %s (i32.const 0)%s)", watName, argText), Kind: KindF64}
		}
	}

	// Calls through a closure value: extract env-offset and table-index
	// from the NaN payload and issue call_indirect with the exact arity
	//. Chained calls f(1)(2) recurse here naturally, since callee
	// may itself be a nested OpCall whose Generate produces a closure.
	closureFrag := c.Generate(callee)
	c.RequireStdlib("__ptr_aux", "__ptr_offset")
	label := c.NextLabel()
	closureVar := fmt.Sprintf("$__clo_%d", label)
	text := fmt.Sprintf(
		"(block (result f64) (local.set %s %s) (call_indirect (type $__closure_ty_%d) (call $__ptr_offset (local.get %s))%s (i32.shr_u (call $__ptr_aux (local.get %s)) (i32.const 6))))",
		closureVar, closureFrag.Text, len(args), closureVar, argText, closureVar)
	return Fragment{Text: text, Kind: KindF64}
}

// genArrayLiteral lowers an array literal. A literal of simple constants
// at the top level is placed in the static data segment; otherwise the
// array is allocated dynamically and each element stored in sequence.
func (c *Context) genArrayLiteral(n *ast.Node) Fragment {
	c.UsedArrayType = true
	c.RequireStdlib("__alloc")

	if allConstant(n.Children) {
		offset := c.internStaticArray(n.Children)
		c.RequireStdlib("__mkptr")
		return Fragment{
			Text: fmt.Sprintf("(call $__mkptr (i32.const %d) (i32.const 0) (i32.const %d))", int(value.Array), offset),
			Kind: KindArray,
		}
	}

	c.RequireStdlib("__ptr_offset")
	length := len(n.Children)
	var stores string
	for i, child := range n.Children {
		elem := c.Generate(child)
		stores += fmt.Sprintf("\n    (f64.store offset=%d (call $__ptr_offset (local.get $__newarr)) %s)", i*8, asF64(elem))
	}
	text := fmt.Sprintf(`(block (result f64)
    (local.set $__newarr (call $__alloc (i32.const %d) (i32.const %d)))%s
    (local.get $__newarr))`, int(value.Array), length, stores)
	return Fragment{Text: text, Kind: KindArray}
}

func allConstant(nodes []*ast.Node) bool {
	for _, n := range nodes {
		if n == nil || n.Op != ast.OpNumber {
			return false
		}
	}
	return true
}

// internStaticArray reserves an 8-byte f64 length header followed by the
// element data in the static segment, returning the element region's
// offset — the pointer value a static array literal is boxed with — so
// that offset-8 holds the header, matching every other array's layout
// .
func (c *Context) internStaticArray(nodes []*ast.Node) int {
	vals := make([]float64, len(nodes))
	for i, n := range nodes {
		vals[i] = n.Num
	}
	header := c.nextStaticOff
	offset := header + 8
	c.staticArrays = append(c.staticArrays, vals)
	c.nextStaticOff = offset + len(vals)*8
	return offset
}

// genMember lowers a.b. A literal `.length` on an array/string yields
// the length header; any other property is an object field access,
// resolved at runtime by __field_get walking the accessed literal's
// interned schema.
func (c *Context) genMember(n *ast.Node) Fragment {
	obj := c.Generate(n.MemberObject())
	prop := n.MemberProperty()
	if prop == "length" {
		c.RequireStdlib("__ptr_len")
		return Fragment{Text: fmt.Sprintf("(call $__ptr_len %s)", obj.Text), Kind: KindI32}
	}
	c.UsedObjects = true
	c.RequireStdlib("__field_get")
	fieldID := c.InternFieldName(prop)
	return Fragment{Text: fmt.Sprintf("(call $__field_get %s (i32.const %d))", obj.Text, fieldID), Kind: KindF64}
}

// genObject lowers an object literal. Objects carry no length header
// : a flat record of one f64 slot per field is allocated, values are
// stored in declaration order, and the literal's field layout is interned
// as a schema whose id is stashed in the pointer's aux slot so
// __field_get can resolve a field name back to its slot at runtime.
func (c *Context) genObject(n *ast.Node) Fragment {
	c.UsedObjects = true
	c.RequireStdlib("__alloc", "__ptr_offset", "__ptr_with_aux")

	fields := n.ObjectFields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
		c.InternFieldName(f.Name)
	}
	schemaID := c.InternSchema(names)

	var stores string
	for i, f := range fields {
		val := c.Generate(f.Value)
		stores += fmt.Sprintf("\n    (f64.store offset=%d (call $__ptr_offset (local.get $__newobj)) %s)", i*8, asF64(val))
	}
	text := fmt.Sprintf(`(block (result f64)
    (local.set $__newobj (call $__alloc (i32.const %d) (i32.const %d)))%s
    (call $__ptr_with_aux (local.get $__newobj) (i32.const %d)))`,
		int(value.Object), len(fields)*8, stores, schemaID)
	return Fragment{Text: text, Kind: KindObject, Schema: Schema{Fields: names}}
}

// genString lowers a string literal. Short 7-bit strings are packed
// directly into the pointer's own payload with no heap allocation; longer
// or non-ASCII strings are interned once into the static data segment,
// the same way a constant array literal is. Either way the value is
// reconstructed at runtime by decomposing the compile-time-known payload
// into __mkptr's type/aux/offset arguments, exactly as array literals do.
func (c *Context) genString(n *ast.Node) Fragment {
	c.UsedStringType = true
	c.RequireStdlib("__mkptr")
	text := n.StringValue()
	if packed, ok := value.PackSSOString([]byte(text)); ok {
		bits := math.Float64bits(packed)
		aux := uint16(bits >> 32)
		offset := int32(uint32(bits))
		return Fragment{
			Text: fmt.Sprintf("(call $__mkptr (i32.const %d) (i32.const %d) (i32.const %d))", int(value.String), int(aux), offset),
			Kind: KindString,
		}
	}
	off := c.InternString(text)
	return Fragment{
		Text: fmt.Sprintf("(call $__mkptr (i32.const %d) (i32.const 0) (i32.const %d))", int(value.String), off),
		Kind: KindString,
	}
}

// typedElemCodes maps a typed-array constructor name to its element-type
// code, the value stored in a typed pointer's aux field.
var typedElemCodes = map[string]int{
	"I8": 0, "U8": 1, "I16": 2, "U16": 3,
	"I32": 4, "U32": 5, "F32": 6, "F64": 7,
}

// genNew lowers a typed-array constructor call `new F64(...)` (and the
// other seven element kinds). The view stores its element-type code in
// aux; loads and stores go through __typed_get/__typed_set, which widen
// to or narrow from f64 per that code.
func (c *Context) genNew(n *ast.Node) Fragment {
	target := n.NewTarget()
	elemCode, ok := typedElemCodes[target]
	if !ok {
		return c.errf("unsupported constructor %q", target)
	}
	c.UsedTypedArrays = true
	c.RequireStdlib("__alloc_typed")

	args := n.NewArgs()
	if len(args) == 1 && args[0] != nil && args[0].Op == ast.OpArray {
		elems := args[0].Children
		c.RequireStdlib("__typed_set")
		label := c.NextLabel()
		viewVar := fmt.Sprintf("$__newtyped_%d", label)
		var stores string
		for i, el := range elems {
			val := c.Generate(el)
			stores += fmt.Sprintf("\n    (call $__typed_set (local.get %s) (i32.const %d) %s)", viewVar, i, asF64(val))
		}
		text := fmt.Sprintf(`(block (result f64)
    (local.set %s (call $__alloc_typed (i32.const %d) (i32.const %d)))%s
    (local.get %s))`,
			viewVar, elemCode, len(elems), stores, viewVar)
		return Fragment{Text: text, Kind: KindTypedArray, Schema: Schema{ElementType: target}}
	}

	length := c.Generate(args[0])
	text := fmt.Sprintf("(call $__alloc_typed (i32.const %d) %s)", elemCode, asI32(length))
	return Fragment{Text: text, Kind: KindTypedArray, Schema: Schema{ElementType: target}}
}

// genIndex lowers arr[i]. Typed arrays read through __typed_get; every
// other receiver reads through __arr_get, which checks at run time
// whether the array is flat or ring and indexes accordingly.
func (c *Context) genIndex(n *ast.Node) Fragment {
	obj := c.Generate(n.IndexObject())
	idx := c.Generate(n.IndexExpr())

	if obj.Kind == KindTypedArray {
		c.RequireStdlib("__typed_get")
		return Fragment{Text: fmt.Sprintf("(call $__typed_get %s %s)", obj.Text, asI32(idx)), Kind: KindF64}
	}
	c.RequireStdlib("__arr_get")
	return Fragment{Text: fmt.Sprintf("(call $__arr_get %s %s)", obj.Text, asI32(idx)), Kind: KindF64}
}
