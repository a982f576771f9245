package codegen

import (
	"fmt"

	"github.com/jz-lang/jzc/ast"
)

// mathBuiltins maps a recognized builtin math function name to its
// arity; the host bridge (package runtime) supplies each as a `math`
// import. The compiler requests only the subset actually
// referenced by the source program (Context.UsedMath).
var mathBuiltins = map[string]int{
	"random": 0,
	"sin":    1, "cos": 1, "tan": 1, "asin": 1, "acos": 1, "atan": 1,
	"log": 1, "log2": 1, "log10": 1, "exp": 1, "fract": 1,
	"round": 1, "floor": 1, "ceil": 1, "trunc": 1, "abs": 1, "sqrt": 1,
	"pow": 2, "atan2": 2, "hypot": 2,
}

// genMathCall lowers a call to a recognized math builtin, provided the
// name isn't shadowed by a user-defined top-level function, local, or
// global. ok is false when name isn't a math builtin at all.
func (c *Context) genMathCall(name string, args []*ast.Node) (Fragment, bool) {
	arity, known := mathBuiltins[name]
	if !known {
		return Fragment{}, false
	}
	if _, shadowed := c.TopLevelFuncs[name]; shadowed {
		return Fragment{}, false
	}
	if f := c.current(); f != nil {
		if _, ok := f.locals[name]; ok {
			return Fragment{}, false
		}
		if _, ok := f.hoisted[name]; ok {
			return Fragment{}, false
		}
		if _, ok := f.captures[name]; ok {
			return Fragment{}, false
		}
	}
	if _, ok := c.globals[name]; ok {
		return Fragment{}, false
	}
	if len(args) != arity {
		return c.errf("math.%s expects %d argument(s), got %d", name, arity, len(args)), true
	}
	if c.UsedMath == nil {
		c.UsedMath = map[string]bool{}
	}
	c.UsedMath[name] = true

	var argText string
	for _, a := range args {
		argText += " " + asF64(c.Generate(a))
	}
	return Fragment{Text: fmt.Sprintf("(call $math_%s%s)", name, argText), Kind: KindF64}, true
}
