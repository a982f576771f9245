package codegen

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/closure"
)

// CompiledFunc is one function body fully lowered to WAT text, carrying
// everything module assembly needs to wrap it in a (func ...) form: its
// formal parameters, whether it takes an incoming environment pointer
// (every function placed in the function table does), and the
// full set of extra locals the body references beyond its parameters.
type CompiledFunc struct {
	Name      string
	HasEnv    bool
	Params    []string // source parameter names, f64-typed WASM params
	Body      string
	I32Local  []string // extra locals the body needs, typed i32
	F64Local  []string // extra locals the body needs, typed f64
	V128Local []string // extra locals the body needs, typed v128 (SIMD)
}

// CompileFunction lowers a pending closure/named-function literal's body
// to WAT text, setting up its frame with hoisted and captured variable
// slots the way genClosureLiteral/genIdent/genAssign expect to find them
// : captures read the incoming $__env record at the slots assigned
// when the closure literal was created, and this function's own hoisted
// locals get a freshly-allocated $__ownenv record for any nested closure
// to capture from in turn.
func (c *Context) CompileFunction(pf *PendingFunc) CompiledFunc {
	var params []string
	var body *ast.Node
	switch pf.Node.Op {
	case ast.OpArrow:
		for _, p := range pf.Node.ArrowParams() {
			params = append(params, p.Name)
		}
		body = pf.Node.ArrowBody()
	case ast.OpFunction:
		for _, p := range pf.Node.FuncParams() {
			params = append(params, p.Name)
		}
		body = pf.Node.FuncBody()
	}

	f := c.pushFrame(pf.Entry.Name, params)
	for _, name := range params {
		f.locals[name] = &localInfo{watName: "$" + name, watType: "f64", kind: KindF64}
	}

	hoisted := closure.HoistedVars(params, body)
	sort.Strings(hoisted)
	for i, name := range hoisted {
		f.hoisted[name] = i
	}
	for i, name := range pf.Captured {
		f.captures[name] = i
	}

	bodyFrag := c.Generate(body)
	prologue := ""
	if len(hoisted) > 0 {
		c.RequireStdlib("__alloc", "__ptr_offset")
		prologue = fmt.Sprintf("(local.set $__ownenv (call $__ptr_offset (call $__alloc (i32.const 0) (i32.const %d))))\n    ", len(hoisted)*8)
		// A hoisted name reads and writes its environment slot from here
		// on (genIdent/genAssign check hoisted before locals), so a
		// hoisted parameter's incoming value must be spilled into its
		// slot before the body runs.
		isParam := map[string]bool{}
		for _, p := range params {
			isParam[p] = true
		}
		for i, name := range hoisted {
			if isParam[name] {
				prologue += fmt.Sprintf("(f64.store offset=%d (local.get $__ownenv) (local.get $%s))\n    ", i*8, name)
			}
		}
	}
	text := fmt.Sprintf("(block (result f64)\n    %s%s)", prologue, asF64(bodyFrag))
	c.popFrame()

	i32Locals, f64Locals, v128Locals := ScanRawLocals(text, params)
	if len(hoisted) > 0 {
		i32Locals = append(i32Locals, "$__ownenv")
	}

	return CompiledFunc{
		Name:      pf.Entry.Name,
		HasEnv:    true,
		Params:    params,
		Body:      text,
		I32Local:  i32Locals,
		F64Local:  f64Locals,
		V128Local: v128Locals,
	}
}

// i32ResultStdlib is the set of stdlib helpers returning i32, used by
// ScanRawLocals' tiny type inference over a first assignment's value
// expression.
var i32ResultStdlib = map[string]bool{
	"__is_pointer": true, "__ptr_type": true, "__ptr_aux": true,
	"__ptr_offset": true, "__ptr_schema": true, "__ptr_len": true,
	"__str_len": true, "__typeof_code": true, "__typed_elemtype": true,
	"__typed_dataptr": true, "__typed_len": true,
	"__ring_head": true, "__ring_len": true, "__ring_cap": true, "__ring_mask": true,
	"__is_ring": true,
}

var rawLocalRef = regexp.MustCompile(`local\.(?:set|tee|get)\s+(\$[A-Za-z_][A-Za-z0-9_]*)`)
var firstAssign = regexp.MustCompile(`local\.(?:set|tee)\s+(\$[A-Za-z_][A-Za-z0-9_]*)\s+(\([^\n]*)`)

// ScanRawLocals finds every local name the body text references via
// local.set/local.tee/local.get that isn't one of the function's own
// parameters, and classifies each as i32, f64, or v128 by inspecting the
// expression at its first assignment (raw locals synthesized by
// package methods and closure lowering are never registered through
// Context.allocLocal, so module assembly recovers their types this way).
func ScanRawLocals(text string, params []string) (i32Locals, f64Locals, v128Locals []string) {
	isParam := map[string]bool{}
	for _, p := range params {
		isParam["$"+p] = true
	}
	seen := map[string]bool{}
	var order []string
	for _, m := range rawLocalRef.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if isParam[name] || name == "$__env" || name == "$__ownenv" || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	firstValue := map[string]string{}
	for _, m := range firstAssign.FindAllStringSubmatch(text, -1) {
		name, rest := m[1], m[2]
		if _, ok := firstValue[name]; !ok {
			firstValue[name] = rest
		}
	}
	for _, name := range order {
		switch classifyLocal(firstValue[name]) {
		case "i32":
			i32Locals = append(i32Locals, name)
		case "v128":
			v128Locals = append(v128Locals, name)
		default:
			f64Locals = append(f64Locals, name)
		}
	}
	return i32Locals, f64Locals, v128Locals
}

// classifyLocal inspects the leading operator of a value expression to
// decide whether the local it's stored into is i32, f64, or v128-typed
// (v128 locals only ever arise from the typed-array map SIMD
// specialization in package methods).
func classifyLocal(expr string) string {
	expr = strings.TrimSpace(expr)
	for i := 0; i < 8; i++ {
		switch {
		case strings.HasPrefix(expr, "(i32."):
			return "i32"
		case strings.HasPrefix(expr, "(f64."):
			return "f64"
		case strings.HasPrefix(expr, "(v128."), strings.HasPrefix(expr, "(f64x2."), strings.HasPrefix(expr, "(i32x4."), strings.HasPrefix(expr, "(f32x4."):
			return "v128"
		case strings.HasPrefix(expr, "(select "):
			expr = firstOperand(expr[len("(select "):])
			continue
		case strings.HasPrefix(expr, "(call $"):
			name := strings.TrimPrefix(expr, "(call $")
			if sp := strings.IndexAny(name, " )"); sp >= 0 {
				name = name[:sp]
			}
			if i32ResultStdlib[name] {
				return "i32"
			}
			return "f64"
		default:
			return "f64"
		}
	}
	return "f64"
}

// firstOperand extracts the first fully-parenthesized sub-expression
// from the start of s (used to look through `select`'s leading operand
// when inferring a local's type).
func firstOperand(s string) string {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return s
}
