package runtime

import (
	"context"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"unicode"

	"github.com/jz-lang/jzc/engine"
)

// MathHost implements the "math" import namespace compiled modules pull
// in on demand: a nullary source of randomness, unary
// transcendentals, and the binary functions the source language exposes.
// Only the functions a given module actually imports get called; the rest
// sit unused in the host module, same as the compiler's own stdlib
// dead-helper elimination on the guest side.
type MathHost struct{}

func (MathHost) Random() float64            { return rand.Float64() }
func (MathHost) Sin(x float64) float64      { return math.Sin(x) }
func (MathHost) Cos(x float64) float64      { return math.Cos(x) }
func (MathHost) Tan(x float64) float64      { return math.Tan(x) }
func (MathHost) Asin(x float64) float64     { return math.Asin(x) }
func (MathHost) Acos(x float64) float64     { return math.Acos(x) }
func (MathHost) Atan(x float64) float64     { return math.Atan(x) }
func (MathHost) Log(x float64) float64      { return math.Log(x) }
func (MathHost) Log2(x float64) float64     { return math.Log2(x) }
func (MathHost) Log10(x float64) float64    { return math.Log10(x) }
func (MathHost) Exp(x float64) float64      { return math.Exp(x) }
func (MathHost) Sqrt(x float64) float64     { return math.Sqrt(x) }
func (MathHost) Ceil(x float64) float64     { return math.Ceil(x) }
func (MathHost) Floor(x float64) float64    { return math.Floor(x) }
func (MathHost) Trunc(x float64) float64    { return math.Trunc(x) }
func (MathHost) Fract(x float64) float64    { return x - math.Trunc(x) }
func (MathHost) Pow(x, y float64) float64   { return math.Pow(x, y) }
func (MathHost) Atan2(y, x float64) float64 { return math.Atan2(y, x) }
func (MathHost) Hypot(x, y float64) float64 { return math.Hypot(x, y) }

// hostFuncs reflects over host's exported methods and converts each
// PascalCase method into the kebab-case import name the generator emits
// (RegisterHost("random") compiled calls must match `import "math" "random"`).
// Methods must take and return only float64/context.Context, matching the
// f64-uniform value representation.
func hostFuncs(host any) []engine.HostFunc {
	v := reflect.ValueOf(host)
	t := v.Type()
	var out []engine.HostFunc
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		fn := v.Method(i).Interface()
		out = append(out, engine.HostFunc{Name: kebab(m.Name), Fn: wrapWithContext(fn)})
	}
	return out
}

// wrapWithContext adapts a context-free Go func(...)float64 into the
// func(context.Context, ...)float64 shape wazero's reflection binding
// expects when the caller passes a context through Call.
func wrapWithContext(fn any) any {
	v := reflect.ValueOf(fn)
	t := v.Type()
	in := make([]reflect.Type, 0, t.NumIn()+1)
	in = append(in, reflect.TypeOf((*context.Context)(nil)).Elem())
	for i := 0; i < t.NumIn(); i++ {
		in = append(in, t.In(i))
	}
	out := make([]reflect.Type, t.NumOut())
	for i := 0; i < t.NumOut(); i++ {
		out[i] = t.Out(i)
	}
	fnType := reflect.FuncOf(in, out, false)
	return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		return v.Call(args[1:])
	}).Interface()
}

func kebab(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
