// Package module assembles the WAT text codegen, methods, and stdlib
// produced into a complete module and turns it into a WASM binary
// : function types and table, linear memory, data segments, the
// runtime helper block, user code, the main export, and finally a
// custom section describing every export's calling convention for a
// host-side marshaling layer.
package module

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
	"github.com/jz-lang/jzc/errors"
	"github.com/jz-lang/jzc/stdlib"
	"github.com/jz-lang/jzc/wasm"
	"github.com/jz-lang/jzc/wat"
)

// Options configures assembly choices not already implied by what
// generation recorded on the Context.
type Options struct {
	// Exports lists additional top-level function names to export
	// alongside "main". A name not present in Context.TopLevelFuncs is
	// silently ignored.
	Exports []string
	// MemoryPages overrides the feature-flag-derived page count when
	// nonzero.
	MemoryPages int
}

// ExportSignature is one export's calling convention: every exported
// WASM function takes a leading env i32 (always 0 for module-level
// functions, since nothing outside the module can supply a capture
// record) followed by Arity f64 source parameters.
type ExportSignature struct {
	Arity int `json:"arity"`
}

// ObjectSchema describes one interned object shape's field layout, by
// name in declaration order.
type ObjectSchema struct {
	Fields []string `json:"fields"`
}

// Descriptor is the JSON payload of the jz:sig custom section.
type Descriptor struct {
	Exports map[string]ExportSignature `json:"exports"`
	Schemas map[string]ObjectSchema    `json:"schemas"`
}

// Result is everything assembly produced.
type Result struct {
	Wasm       []byte
	Wat        string
	Descriptor Descriptor
}

var closureTypeRef = regexp.MustCompile(`\$__closure_ty_(\d+)`)

// Assemble lowers program's top-level statements (already reflected in
// c's pending queue from any prior Generate calls the caller made, plus
// whatever Assemble itself generates) into a complete module.
func Assemble(c *codegen.Context, program *ast.Node, opts Options) (*Result, error) {
	program = normalizeWholeProgramArrow(program)

	// Decide exception support up front: the pending-flag guards have to
	// be spliced into every block and loop, including ones lowered
	// before the first throw in source order.
	if codegen.ScanExceptions(program) {
		c.UsedException = true
		c.RequireStdlib("__exc_globals")
	}

	mainFrag := c.Generate(program)
	mainBody := fmt.Sprintf("(block (result f64)\n    %s)", asF64(mainFrag))

	var compiled []codegen.CompiledFunc
	for i := 0; i < len(c.Pending); i++ {
		compiled = append(compiled, c.CompileFunction(c.Pending[i]))
	}

	if errs := c.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}

	mainI32, mainF64, mainV128 := codegen.ScanRawLocals(mainBody, nil)

	var sb strings.Builder
	sb.WriteString("(module\n")

	writeFuncTypes(&sb, mainBody, compiled)
	writeImports(&sb, c)
	writeTable(&sb, c)

	// The schema index table's size depends on the total number of
	// interned object schemas, which is only final once generation and
	// function compilation above have both finished; reserving it here,
	// before computing where the heap begins, keeps heap allocations from
	// overwriting it.
	schemaIndexOff := c.ReserveSchemaIndexTable()

	// The number-to-string helper resolves NaN and the infinities to
	// interned string constants; intern them now so they land in static
	// data before the heap base is fixed.
	numToStr := c.Stdlib["__num_to_str"]
	var litNaN, litInf, litNegInf int
	if numToStr {
		litNaN = c.InternString("NaN")
		litInf = c.InternString("Infinity")
		litNegInf = c.InternString("-Infinity")
	}

	staticEnd := c.StaticDataEnd()
	pages := memoryPages(c, opts)
	fmt.Fprintf(&sb, "  (memory $memory %d)\n", pages)
	sb.WriteString("  (export \"memory\" (memory $memory))\n")
	fmt.Fprintf(&sb, "  (global $__heap_start i32 (i32.const %d))\n", staticEnd)
	fmt.Fprintf(&sb, "  (global $__heap (mut i32) (i32.const %d))\n", staticEnd)

	writeDataSegments(&sb, c)
	if c.Stdlib["__field_get"] {
		writeObjectSchemas(&sb, c, schemaIndexOff)
	}
	if numToStr {
		fmt.Fprintf(&sb, "  (global $__lit_nan i32 (i32.const %d))\n", litNaN)
		fmt.Fprintf(&sb, "  (global $__lit_inf i32 (i32.const %d))\n", litInf)
		fmt.Fprintf(&sb, "  (global $__lit_ninf i32 (i32.const %d))\n", litNegInf)
	}

	if c.UsedTypedArrays {
		fmt.Fprintf(&sb, "  (global $__typed_heap_start i32 (i32.const %d))\n", staticEnd+1<<20)
		sb.WriteString("  (global $__typed_heap (mut i32) (i32.const 0))\n")
		sb.WriteString("  (start $__typed_start)\n")
		sb.WriteString("  (func $__typed_start (global.set $__typed_heap (global.get $__typed_heap_start)))\n")
	}

	required := map[string]bool{}
	for name := range c.Stdlib {
		required[name] = true
	}
	// The allocator is part of the module's host contract (the _alloc
	// export below) whether or not generated code itself allocates.
	required["__alloc"] = true
	if c.UsedException {
		required["__exc_globals"] = true
	}
	if c.UsedTypedArrays {
		required["__reset_typed_arrays"] = true
	}
	for _, helper := range stdlib.Close(required) {
		sb.WriteString("  ")
		sb.WriteString(stdlib.Source[helper])
		sb.WriteString("\n")
	}

	writeGlobals(&sb, c)

	for _, fn := range compiled {
		writeFunc(&sb, fn)
	}

	mainName, mainArity, wrapper := mainExport(c, compiled)
	if wrapper != "" {
		sb.WriteString(wrapper)
		sb.WriteString("\n")
	} else {
		fmt.Fprintf(&sb, "  (func $__main (param $__env i32) (result f64)\n%s\n    %s)\n",
			declLocals(mainI32, mainF64, mainV128), mainBody)
	}
	sb.WriteString(fmt.Sprintf("  (export \"main\" (func %s))\n", mainName))

	sb.WriteString("  (export \"_alloc\" (func $__alloc))\n")
	sb.WriteString("  (func $__reset_heap (global.set $__heap (global.get $__heap_start)))\n")
	sb.WriteString("  (export \"_resetHeap\" (func $__reset_heap))\n")
	if c.UsedTypedArrays {
		sb.WriteString("  (export \"_resetTypedArrays\" (func $__reset_typed_arrays))\n")
	}

	desc := Descriptor{Exports: map[string]ExportSignature{"main": {Arity: mainArity}}, Schemas: map[string]ObjectSchema{}}
	for i, s := range c.Schemas() {
		desc.Schemas[strconv.Itoa(i)] = ObjectSchema{Fields: s.Fields}
	}
	for _, name := range opts.Exports {
		watName, ok := c.TopLevelFuncs[name]
		if !ok || name == "main" {
			continue
		}
		entry := lookupEntry(c, watName)
		sb.WriteString(fmt.Sprintf("  (export %q (func %s))\n", name, watName))
		desc.Exports[name] = ExportSignature{Arity: entry.Arity}
	}

	sb.WriteString(")\n")
	watText := sb.String()

	bin, err := wat.Compile(watText)
	if err != nil {
		return nil, errors.New(errors.PhaseAssemble, errors.KindInvalidData).
			Detail("assembling module: %v\n--- generated WAT ---\n%s", err, watText).Build()
	}

	final, err := spliceDescriptor(bin, desc)
	if err != nil {
		return nil, err
	}

	return &Result{Wasm: final, Wat: watText, Descriptor: desc}, nil
}

// normalizeWholeProgramArrow treats a program whose sole top-level
// statement is a bare, unnamed function/arrow literal as an implicit
// `function main(...)` declaration, so the named-main wrapper path
// covers both forms uniformly.
func normalizeWholeProgramArrow(program *ast.Node) *ast.Node {
	if len(program.Children) != 1 {
		return program
	}
	only := program.Children[0]
	if only.Op != ast.OpArrow {
		return program
	}
	named := ast.New(ast.OpFunction, ast.Ident("main"), only.Child(0), only.Child(1))
	return ast.New(program.Op, named)
}

func asF64(f codegen.Fragment) string {
	switch f.Kind {
	case codegen.KindI32, codegen.KindBool:
		return fmt.Sprintf("(f64.convert_i32_s %s)", f.Text)
	default:
		return f.Text
	}
}

func writeFuncTypes(sb *strings.Builder, mainBody string, compiled []codegen.CompiledFunc) {
	arities := map[int]bool{}
	scan := func(text string) {
		for _, m := range closureTypeRef.FindAllStringSubmatch(text, -1) {
			n, _ := strconv.Atoi(m[1])
			arities[n] = true
		}
	}
	scan(mainBody)
	for _, fn := range compiled {
		scan(fn.Body)
	}
	var ordered []int
	for n := range arities {
		ordered = append(ordered, n)
	}
	sort.Ints(ordered)
	for _, n := range ordered {
		params := "(param i32)"
		for i := 0; i < n; i++ {
			params += " (param f64)"
		}
		fmt.Fprintf(sb, "  (type $__closure_ty_%d (func %s (result f64)))\n", n, params)
	}
}

func writeImports(sb *strings.Builder, c *codegen.Context) {
	var names []string
	for name := range c.UsedMath {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		arity := mathArity(name)
		params := strings.Repeat(" (param f64)", arity)
		fmt.Fprintf(sb, "  (import \"math\" %q (func $math_%s%s (result f64)))\n", name, name, params)
	}
}

func mathArity(name string) int {
	switch name {
	case "random":
		return 0
	case "pow", "atan2", "hypot":
		return 2
	default:
		return 1
	}
}

func writeTable(sb *strings.Builder, c *codegen.Context) {
	if !c.UsedFuncTable {
		return
	}
	fmt.Fprintf(sb, "  (table $__functable %d funcref)\n", len(c.FuncTable))
	sb.WriteString("  (elem (i32.const 0)")
	for _, e := range c.FuncTable {
		sb.WriteString(" ")
		sb.WriteString(e.Name)
	}
	sb.WriteString(")\n")
}

func memoryPages(c *codegen.Context, opts Options) int {
	if opts.MemoryPages > 0 {
		return opts.MemoryPages
	}
	pages := 1
	if c.UsedMemory {
		pages = 4
	}
	if c.UsedTypedArrays {
		pages += 16
	}
	if c.UsedArrayType || c.UsedStringType {
		pages += 4
	}
	return pages
}

// writeDataSegments lays out interned strings followed by static
// numeric arrays, each with the length header the memory layout
// contract requires immediately before its data.
func writeDataSegments(sb *strings.Builder, c *codegen.Context) {
	type seg struct {
		offset int
		bytes  []byte
	}
	var segs []seg

	type strEntry struct {
		text   string
		offset int
	}
	var strs []strEntry
	for text, off := range c.InternedStrings() {
		strs = append(strs, strEntry{text, off})
	}
	sort.Slice(strs, func(i, j int) bool { return strs[i].offset < strs[j].offset })
	for _, s := range strs {
		header := s.offset - 8
		runes := []rune(s.text)
		b := make([]byte, 0, 8+len(runes)*2)
		b = appendI32(b, uint32(len(runes)))
		b = append(b, 0, 0, 0, 0)
		for _, r := range runes {
			b = appendU16(b, uint16(r))
		}
		segs = append(segs, seg{header, b})
	}

	cursor := 0
	for _, arr := range c.StaticArrays() {
		header := cursor
		b := make([]byte, 0, 8+len(arr)*8)
		b = appendF64(b, float64(len(arr)))
		for _, v := range arr {
			b = appendF64(b, v)
		}
		segs = append(segs, seg{header, b})
		cursor = header + len(b)
	}

	for _, s := range segs {
		fmt.Fprintf(sb, "  (data (i32.const %d) \"%s\")\n", s.offset, escapeWat(s.bytes))
	}
}

// writeObjectSchemas lays out, for each interned object schema, a flat
// array of i32 field ids (one per slot, in declaration order) at the
// offset codegen already reserved for it, followed by the schema index
// table at indexOff: one (field-table-offset, field-count) i32 pair per
// schema id. __field_get (stdlib) reads $__schema_table, indexes into
// this table by an object's aux slot, and walks the resulting field-id
// array to resolve a field name to a slot.
func writeObjectSchemas(sb *strings.Builder, c *codegen.Context, indexOff int) {
	schemas := c.Schemas()
	if len(schemas) == 0 {
		return
	}
	for _, s := range schemas {
		b := make([]byte, 0, len(s.Fields)*4)
		for _, name := range s.Fields {
			b = appendI32(b, uint32(c.FieldID(name)))
		}
		fmt.Fprintf(sb, "  (data (i32.const %d) \"%s\")\n", s.TableOffset, escapeWat(b))
	}
	idx := make([]byte, 0, len(schemas)*8)
	for _, s := range schemas {
		idx = appendI32(idx, uint32(s.TableOffset))
		idx = appendI32(idx, uint32(len(s.Fields)))
	}
	fmt.Fprintf(sb, "  (data (i32.const %d) \"%s\")\n", indexOff, escapeWat(idx))
	fmt.Fprintf(sb, "  (global $__schema_table i32 (i32.const %d))\n", indexOff)
}

func appendI32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
func appendU16(b []byte, v uint16) []byte { return append(b, byte(v), byte(v>>8)) }
func appendF64(b []byte, v float64) []byte {
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		b = append(b, byte(bits>>(8*uint(i))))
	}
	return b
}

func escapeWat(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		switch {
		case b == '"' || b == '\\':
			fmt.Fprintf(&sb, "\\%02x", b)
		case b >= 0x20 && b < 0x7f:
			sb.WriteByte(b)
		default:
			fmt.Fprintf(&sb, "\\%02x", b)
		}
	}
	return sb.String()
}

func writeGlobals(sb *strings.Builder, c *codegen.Context) {
	var names []string
	for name := range c.Globals() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		info := c.Globals()[name]
		fmt.Fprintf(sb, "  (global %s (mut %s) (%s.const 0))\n", info.WatName(), info.WatType(), info.WatType())
	}
}

func writeFunc(sb *strings.Builder, fn codegen.CompiledFunc) {
	sb.WriteString(fmt.Sprintf("  (func %s (param $__env i32)", fn.Name))
	for _, p := range fn.Params {
		sb.WriteString(fmt.Sprintf(" (param $%s f64)", p))
	}
	sb.WriteString(" (result f64)\n")
	sb.WriteString(declLocals(fn.I32Local, fn.F64Local, fn.V128Local))
	sb.WriteString("\n    ")
	sb.WriteString(fn.Body)
	sb.WriteString(")\n")
}

func declLocals(i32Locals, f64Locals, v128Locals []string) string {
	var parts []string
	for _, n := range i32Locals {
		parts = append(parts, fmt.Sprintf("(local %s i32)", n))
	}
	for _, n := range f64Locals {
		parts = append(parts, fmt.Sprintf("(local %s f64)", n))
	}
	for _, n := range v128Locals {
		parts = append(parts, fmt.Sprintf("(local %s v128)", n))
	}
	if len(parts) == 0 {
		return ""
	}
	return "    " + strings.Join(parts, " ")
}

// mainExport decides how "main" is realized: directly as a named
// top-level function (thin wrapper prepending the env argument) when
// the source declares one, or as a synthesized wrapper over the whole
// top-level statement sequence otherwise.
func mainExport(c *codegen.Context, compiled []codegen.CompiledFunc) (watName string, arity int, wrapper string) {
	mainWat, ok := c.TopLevelFuncs["main"]
	if !ok {
		return "$__main", 0, ""
	}
	entry := lookupEntry(c, mainWat)
	var params string
	var args string
	for i := 0; i < entry.Arity; i++ {
		p := fmt.Sprintf("$p%d", i)
		params += fmt.Sprintf(" (param %s f64)", p)
		args += fmt.Sprintf(" (local.get %s)", p)
	}
	wrapper = fmt.Sprintf("  (func $__main_export (param $__env i32)%s (result f64) (call %s (i32.const 0)%s))\n",
		params, mainWat, args)
	return "$__main_export", entry.Arity, wrapper
}

func lookupEntry(c *codegen.Context, watName string) codegen.FuncEntry {
	for _, e := range c.FuncTable {
		if e.Name == watName {
			return e
		}
	}
	return codegen.FuncEntry{Name: watName}
}

// spliceDescriptor appends a jz:sig custom section carrying desc,
// because the WAT text grammar itself has no custom-section syntax
// : decode the assembled binary, append the section, and
// re-encode.
func spliceDescriptor(bin []byte, desc Descriptor) ([]byte, error) {
	m, err := wasm.ParseModule(bin)
	if err != nil {
		return nil, errors.New(errors.PhaseAssemble, errors.KindInvalidData).Detail("decoding assembled module: %v", err).Build()
	}
	payload, err := json.Marshal(desc)
	if err != nil {
		return nil, errors.New(errors.PhaseAssemble, errors.KindInvalidData).Detail("encoding jz:sig descriptor: %v", err).Build()
	}
	m.CustomSections = append(m.CustomSections, wasm.CustomSection{Name: "jz:sig", Data: payload})
	return m.Encode(), nil
}
