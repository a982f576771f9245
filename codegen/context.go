// Package codegen lowers an ast.Node tree to a typed WAT fragment tree
// under a mutable Context, then assembles the function bodies generated
// along the way into the WAT the module package turns into a complete
// binary. The unit of composition is Fragment: self-contained WAT text
// that evaluates to exactly one value on the operand stack, tagged with
// the value kind codegen needs to decide loaders/storers and method
// dispatch at each boundary.
package codegen

import (
	"fmt"
	"strings"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/closure"
	"github.com/jz-lang/jzc/errors"
)

// Kind is the advisory value kind carried alongside a fragment. The
// runtime itself only knows f64/i32; Kind guides generator
// decisions only.
type Kind int

const (
	KindF64 Kind = iota
	KindI32
	KindArray
	KindString
	KindTypedArray
	KindClosure
	KindObject
	KindBool
)

// Schema carries shape information a bare Kind doesn't: a typed array's
// element type, a closure's remaining curry arity, an object's field
// layout (by name, in declaration order).
type Schema struct {
	ElementType    string
	RemainingArity int
	Fields         []string
}

// Fragment is a self-contained WAT expression plus the kind/schema it
// produces. Text must be syntactically complete and leave exactly one
// value on the stack.
type Fragment struct {
	Text   string
	Kind   Kind
	Schema Schema
}

// localInfo is what the context remembers about one source-language
// local: its generated WAT name, its WASM-level storage type, and the
// kind/schema of the value last assigned to it so reads through the
// binding keep the shape information the assignment carried.
type localInfo struct {
	watName string
	watType string // "f64" or "i32"
	kind    Kind
	schema  Schema
}

// frame is one function's compilation state: its own parameters, any
// hoisted locals spilled to its environment record, and the locals the
// generator has allocated so far.
type frame struct {
	funcName    string
	params      []string
	hoisted     map[string]int // name -> slot index in own environment
	captures    map[string]int // name -> slot index in the incoming (parent) environment
	locals      map[string]*localInfo
	nextLocalID int
}

// FuncEntry records one function destined for the function table, in
// declaration order — closures reference it by index.
type FuncEntry struct {
	Name  string
	Arity int
}

// Context is the single mutable object threaded through a Generate call
// tree. It tracks everything needed to assemble the final module: the
// loop-label counter, string/array interning tables, which stdlib
// features got exercised, and the queue of synthesized functions
// (arrow/function literals) still waiting to be emitted.
type Context struct {
	loopCounter int
	// loopLabels is the stack of enclosing source-level loop labels, so
	// break/continue always target their own loop even after nested
	// lowerings have advanced the label counter.
	loopLabels []int
	// tryLabels is the stack of enclosing try-block labels within the
	// function currently being lowered; throw and the pending-exception
	// guards branch to the innermost one.
	tryLabels []int

	globals map[string]*localInfo
	frames  []*frame

	internedStrings map[string]int // text -> byte offset in the static segment
	staticArrays    [][]float64    // literal arrays placed in the static segment
	nextStaticOff   int

	fieldNames []string       // field id -> name, in first-seen order
	fieldID    map[string]int // name -> field id

	objSchemas []objSchema    // schema id -> field layout, in first-seen order
	schemaID   map[string]int // canonical field-name key -> schema id

	// DisableSimd turns off vectorized lowerings; the scalar fallbacks
	// produce identical results.
	DisableSimd bool

	UsedMemory      bool
	UsedArrayType   bool
	UsedStringType  bool
	UsedTypedArrays bool
	UsedObjects     bool
	UsedSimd        bool
	UsedFuncTable   bool
	UsedException   bool

	FuncTable     []FuncEntry
	Pending       []*PendingFunc    // synthesized function bodies still to compile
	TopLevelFuncs map[string]string // named top-level function -> generated WAT func name
	Stdlib        map[string]bool
	UsedMath      map[string]bool // recognized math builtins referenced by the source

	errs []error
}

// objSchema is one interned object literal's field layout: its field
// names in declaration order, and the static offset reserved for the
// field-id lookup table __field_get walks at runtime.
type objSchema struct {
	fields      []string
	tableOffset int
}

// ObjectSchemaInfo is objSchema's exported read view for module assembly.
type ObjectSchemaInfo struct {
	Fields      []string
	TableOffset int
}

// PendingFunc is a closure or named function literal whose body hasn't
// been lowered into WAT yet; Generate queues these as it encounters
// arrow/function nodes and the module assembler drains the queue.
type PendingFunc struct {
	Entry    FuncEntry
	Node     *ast.Node
	Captured []string
}

// New creates an empty Context ready to compile a top-level program.
func New() *Context {
	return &Context{
		globals:         map[string]*localInfo{},
		internedStrings: map[string]int{},
		Stdlib:          map[string]bool{},
	}
}

// StaticArrays returns every constant array literal interned during
// generation, in the order module assembly should lay them into the
// data segment (matching the offsets internStaticArray handed out).
func (c *Context) StaticArrays() [][]float64 { return c.staticArrays }

// InternedStrings returns the text -> byte offset table for interned
// string constants, for module assembly's data-segment step.
func (c *Context) InternedStrings() map[string]int { return c.internedStrings }

// StaticDataEnd returns the next free byte offset after every static
// array/string has been laid out, i.e. where the heap begins.
func (c *Context) StaticDataEnd() int { return c.nextStaticOff }

// InternString reserves an 8-byte length header followed by UTF-16 data
// for a heap string literal in the static segment, deduping repeats, and
// returns the string data region's offset (offset-8 holds the header,
// matching every other string's layout).
func (c *Context) InternString(text string) int {
	if off, ok := c.internedStrings[text]; ok {
		return off
	}
	header := c.nextStaticOff
	offset := header + 8
	c.nextStaticOff = offset + len([]rune(text))*2
	c.internedStrings[text] = offset
	return offset
}

// InternFieldName assigns a stable id to a field name, deduping repeats
// so the same name always resolves to the same id everywhere it's used
// -- both in a schema's field-id table and at a genMember call site.
func (c *Context) InternFieldName(name string) int {
	if c.fieldID == nil {
		c.fieldID = map[string]int{}
	}
	if id, ok := c.fieldID[name]; ok {
		return id
	}
	id := len(c.fieldNames)
	c.fieldNames = append(c.fieldNames, name)
	c.fieldID[name] = id
	return id
}

// FieldID returns the id InternFieldName assigned to name (0 if name was
// never interned, same as any other never-seen field).
func (c *Context) FieldID(name string) int { return c.fieldID[name] }

// InternSchema records an object literal's field layout (names in
// declaration order), deduping literals that repeat the same names in
// the same order, and reserves its field-id table's static bytes
// immediately (mirroring internStaticArray).
func (c *Context) InternSchema(fields []string) int {
	if c.schemaID == nil {
		c.schemaID = map[string]int{}
	}
	key := strings.Join(fields, "\x00")
	if id, ok := c.schemaID[key]; ok {
		return id
	}
	offset := c.nextStaticOff
	c.nextStaticOff += len(fields) * 4
	id := len(c.objSchemas)
	c.objSchemas = append(c.objSchemas, objSchema{fields: fields, tableOffset: offset})
	c.schemaID[key] = id
	return id
}

// Schemas returns every interned object schema, indexed by schema id, for
// module assembly's field-id data segments and jz:sig descriptor.
func (c *Context) Schemas() []ObjectSchemaInfo {
	out := make([]ObjectSchemaInfo, len(c.objSchemas))
	for i, s := range c.objSchemas {
		out[i] = ObjectSchemaInfo{Fields: s.fields, TableOffset: s.tableOffset}
	}
	return out
}

// ReserveSchemaIndexTable reserves static space for the schema index
// table -- one (field-table-offset, field-count) i32 pair per schema id
// -- once every schema literal in the program has been interned, and
// returns its base offset. Module assembly calls this exactly once,
// after generation finishes and before it computes where the heap
// begins, since the table's size depends on the total schema count.
func (c *Context) ReserveSchemaIndexTable() int {
	off := c.nextStaticOff
	c.nextStaticOff += len(c.objSchemas) * 8
	return off
}

// Globals returns the module-level globals generated code introduced
// (one per top-level source variable assignment), keyed by source name.
func (c *Context) Globals() map[string]*localInfo { return c.globals }

// WatName and WatType expose a localInfo's generated WAT identity to
// module assembly without leaking the unexported type itself.
func (l *localInfo) WatName() string { return l.watName }
func (l *localInfo) WatType() string { return l.watType }

// MethodLowering is set by package methods' init (methods imports codegen
// for Context/Fragment, so codegen cannot import methods back without a
// cycle): genCall consults this hook for any call whose callee is a
// member access, to dispatch array/typed-array builtin methods (map,
// filter, slice, ...) to their inlined-loop lowering before
// falling back to ordinary object field access treated as a closure call.
var MethodLowering func(c *Context, recv *ast.Node, name string, args []*ast.Node) (Fragment, bool)

// RequireStdlib marks a runtime helper as needed; module assembly only
// emits helpers that were actually requested.
func (c *Context) RequireStdlib(names ...string) {
	// Every runtime helper reads or writes linear memory (directly or
	// through the pointer helpers it composes with).
	c.UsedMemory = true
	for _, n := range names {
		c.Stdlib[n] = true
	}
}

// NextLabel returns a fresh, monotonically unique loop-label suffix so
// nested loops (and inlined method calls, which are loops too) never
// collide.
func (c *Context) NextLabel() int {
	c.loopCounter++
	return c.loopCounter
}

func (c *Context) pushLoop(label int) { c.loopLabels = append(c.loopLabels, label) }
func (c *Context) popLoop()           { c.loopLabels = c.loopLabels[:len(c.loopLabels)-1] }

func (c *Context) pushTry(label int) { c.tryLabels = append(c.tryLabels, label) }
func (c *Context) popTry()           { c.tryLabels = c.tryLabels[:len(c.tryLabels)-1] }

// currentTry returns the innermost enclosing try's label within the
// function currently being lowered, or false when a throw would have to
// propagate to the caller instead.
func (c *Context) currentTry() (int, bool) {
	if len(c.tryLabels) == 0 {
		return 0, false
	}
	return c.tryLabels[len(c.tryLabels)-1], true
}

// currentLoop returns the innermost source-level loop's label, or false
// when no loop encloses the current node.
func (c *Context) currentLoop() (int, bool) {
	if len(c.loopLabels) == 0 {
		return 0, false
	}
	return c.loopLabels[len(c.loopLabels)-1], true
}

func (c *Context) pushFrame(name string, params []string) *frame {
	f := &frame{
		funcName: name,
		params:   params,
		hoisted:  map[string]int{},
		captures: map[string]int{},
		locals:   map[string]*localInfo{},
	}
	c.frames = append(c.frames, f)
	return f
}

func (c *Context) popFrame() {
	c.frames = c.frames[:len(c.frames)-1]
}

func (c *Context) current() *frame {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// allocLocal reserves a new WAT local for name in the current frame.
func (c *Context) allocLocal(name string, watType string, kind Kind) *localInfo {
	f := c.current()
	f.nextLocalID++
	info := &localInfo{
		watName: fmt.Sprintf("$%s_%d", name, f.nextLocalID),
		watType: watType,
		kind:    kind,
	}
	f.locals[name] = info
	return info
}

// Errors returns every error accumulated during generation. Generate
// aborts lowering of the current node on the first error (propagation
// is immediate, no partially-compiled modules) but the
// Context retains it for the caller to report.
func (c *Context) Errors() []error { return c.errs }

func (c *Context) fail(err error) Fragment {
	c.errs = append(c.errs, err)
	return Fragment{Text: "(f64.const nan)", Kind: KindF64}
}

// Fail records err against the context and returns a placeholder NaN
// fragment, for packages outside codegen (e.g. methods) that detect a
// malformed construct while building a Fragment of their own.
func (c *Context) Fail(err error) Fragment {
	return c.fail(err)
}

// asF64 wraps text to coerce a fragment to f64, given its current kind.
func asF64(f Fragment) string {
	switch f.Kind {
	case KindI32, KindBool:
		return fmt.Sprintf("(f64.convert_i32_s %s)", f.Text)
	default:
		return f.Text
	}
}

// asI32 wraps text to coerce a fragment to i32 (truncating a float).
func asI32(f Fragment) string {
	switch f.Kind {
	case KindI32, KindBool:
		return f.Text
	default:
		return fmt.Sprintf("(i32.trunc_f64_s %s)", f.Text)
	}
}

// asBool wraps text to coerce a fragment to an i32 boolean ("is nonzero").
func asBool(f Fragment) string {
	switch f.Kind {
	case KindBool, KindI32:
		return f.Text
	default:
		return fmt.Sprintf("(f64.ne %s (f64.const 0))", f.Text)
	}
}

// watBlock joins WAT instruction lines with newlines for readability in
// the assembled module text; purely cosmetic, the assembler is
// whitespace-insensitive.
func watBlock(lines ...string) string {
	return strings.Join(lines, "\n")
}

// captureAnalysis exposes the closure package's free-variable and
// capture analysis to codegen's arrow/function lowering (codegen/closures.go).
func captureAnalysis(params []string, body *ast.Node) *closure.Result {
	return closure.Analyze(params, body)
}

func (c *Context) errf(format string, args ...any) Fragment {
	return c.fail(errors.New(errors.PhaseCodegen, errors.KindInvalidData).Detail(format, args...).Build())
}
