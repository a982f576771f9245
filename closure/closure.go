// Package closure performs the free-variable analysis codegen needs to
// lower lexical closures onto a WASM function table: for every function
// body it finds the names referenced but not locally bound (free), the
// nested function literals inside it together with what each one
// captures from an enclosing scope, and the set of a function's own
// locals that some descendant closure reaches into (hoisted — these must
// live in a heap environment record instead of a stack-machine local).
package closure

import (
	"sort"

	"github.com/jz-lang/jzc/ast"
)

// builtins are names that resolve at parse time rather than through
// scope lookup; they're never free, never captured, never hoisted.
var builtins = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true,
	"Infinity": true, "NaN": true,
	"PI": true, "E": true,
}

// isLocalLooking applies the leading-underscore convention: names meant
// to be treated as always-local even without an explicit declaration
// (used by codegen-internal synthetic bindings), never marked free.
func isLocalLooking(name string) bool {
	return len(name) > 0 && name[0] == '_'
}

// Function describes one nested function literal discovered during
// analysis, together with the result of recursively analyzing its body.
type Function struct {
	Node     *ast.Node // the ast.OpFunction/ast.OpArrow node itself
	Name     string    // empty for anonymous function expressions
	Params   []string
	Captured []string // the body's free names: each resolves in some enclosing scope
	Inner    []*Function
}

// Result is the analyzer's output for one function body: its free-
// variable set, the scope it resolved against, and every nested function
// literal directly or transitively inside it.
type Result struct {
	Free    map[string]bool
	Defined map[string]bool
	Inner   []*Function
}

// Analyze walks body with params pre-defined (the function's own
// parameter list) and returns the free-variable/nested-function report
// described in the package doc.
func Analyze(params []string, body *ast.Node) *Result {
	s := &scope{defined: map[string]bool{}, free: map[string]bool{}}
	for _, p := range params {
		s.define(p)
	}
	s.walk(body)
	return &Result{Free: s.free, Defined: s.defined, Inner: s.inner}
}

// HoistedVars computes which of this function's own names (parameters
// and locals) must be spilled into a heap environment record because
// some descendant closure — at any depth — captures them. Descendant
// captures naming even-older scopes are not hoisted here; they reach the
// descendant through this function's own incoming environment instead.
func HoistedVars(params []string, body *ast.Node) []string {
	res := Analyze(params, body)
	seen := map[string]bool{}
	var out []string
	var walk func([]*Function)
	walk = func(fns []*Function) {
		for _, f := range fns {
			for _, name := range f.Captured {
				if res.Defined[name] && !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
			}
			walk(f.Inner)
		}
	}
	walk(res.Inner)
	return out
}

// scope threads the "defined" set downward through a structural walk,
// collecting free references and nested function literals as it goes.
type scope struct {
	defined map[string]bool
	free    map[string]bool
	inner   []*Function
}

func (s *scope) define(name string) {
	s.defined[name] = true
}

func (s *scope) reference(name string) {
	if builtins[name] || isLocalLooking(name) || s.defined[name] {
		return
	}
	s.free[name] = true
}

func (s *scope) walk(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Op {
	case ast.OpIdent:
		s.reference(n.Name)
		return

	case ast.OpFunction, ast.OpArrow:
		fn := s.analyzeNested(n)
		s.inner = append(s.inner, fn)
		for _, name := range fn.Captured {
			s.reference(name)
		}
		if n.Op == ast.OpFunction {
			if nameNode := n.FuncName(); nameNode != nil {
				s.define(nameNode.Name)
			}
		}
		return

	case ast.OpFor:
		if init := n.ForInit(); init != nil {
			s.walkDeclTarget(init)
		}
		s.walk(n.ForCond())
		s.walk(n.ForPost())
		s.walk(n.ForBody())
		return

	case ast.OpAssign:
		if target := n.Child(0); target != nil && target.Op == ast.OpIdent {
			s.define(target.Name)
		}
		s.walk(n.Child(0))
		s.walk(n.Child(1))
		return
	}

	for _, c := range n.Children {
		s.walk(c)
	}
}

// walkDeclTarget handles a for-loop init clause, which may itself be an
// assignment-as-declaration (`let x = 0`) introducing x before the rest
// of the loop header is analyzed.
func (s *scope) walkDeclTarget(n *ast.Node) {
	s.walk(n)
}

// analyzeNested recurses into a nested function/arrow literal with only
// its own parameters defined; the nested body's free set becomes its
// capture list.
func (s *scope) analyzeNested(n *ast.Node) *Function {
	var params []string
	var body *ast.Node
	var name string
	switch n.Op {
	case ast.OpArrow:
		for _, p := range n.ArrowParams() {
			params = append(params, flattenParamName(p)...)
		}
		body = n.ArrowBody()
	case ast.OpFunction:
		for _, p := range n.FuncParams() {
			params = append(params, flattenParamName(p)...)
		}
		body = n.FuncBody()
		if nameNode := n.FuncName(); nameNode != nil {
			name = nameNode.Name
		}
	}

	inner := &scope{defined: map[string]bool{}, free: map[string]bool{}}
	for _, p := range params {
		inner.define(p)
	}
	if name != "" {
		inner.define(name)
	}
	inner.walk(body)

	// Every free name of the nested body is captured: it must come from
	// this scope or some older one, and which is which cannot be decided
	// here — this scope's walk may not have seen all of its own
	// definitions yet when a nested literal appears early. The caller
	// re-registers each captured name as a reference of its own (walk's
	// function case), so a name from an older scope keeps propagating
	// outward one level at a time until the scope that defines it is
	// reached; a name no scope defines surfaces as an unknown identifier
	// when the closure literal is lowered.
	captured := make([]string, 0, len(inner.free))
	for free := range inner.free {
		captured = append(captured, free)
	}
	// Map iteration order is random; environment slot assignment must be
	// stable across runs.
	sort.Strings(captured)

	return &Function{
		Node:     n,
		Name:     name,
		Params:   params,
		Captured: captured,
		Inner:    inner.inner,
	}
}

// flattenParamName expands a destructured parameter pattern into the
// flat list of names it binds. Plain identifiers are the common case;
// array/object destructuring patterns recurse into their elements.
func flattenParamName(p *ast.Node) []string {
	if p == nil {
		return nil
	}
	switch p.Op {
	case ast.OpIdent:
		return []string{p.Name}
	case ast.OpArray, ast.OpObject, ast.OpComma:
		var out []string
		for _, c := range p.Children {
			out = append(out, flattenParamName(c)...)
		}
		return out
	default:
		return nil
	}
}
