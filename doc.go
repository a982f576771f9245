// Package jzc compiles a numeric-subset, C-like expression language to
// WebAssembly. It covers the middle-to-back end only: closure analysis,
// a typed expression IR, lowering to WebAssembly Text format (WAT), and
// the NaN-boxed value/memory model the generated code relies on at
// runtime. Surface-syntax parsing is a documented interface (package
// ast) with no parser shipped; the WAT-to-binary assembler and the
// wazero-backed host bridge are owned by this module (packages wat,
// wasm, engine, runtime) because the retrieved reference implementation
// already provides them as general-purpose components.
//
// # Architecture
//
//	jzc/            Compile / CompileToWat / Instantiate entry points
//	├── ast/        AST node types (parser output contract)
//	├── closure/    free-variable / capture / hoisting analysis
//	├── value/      NaN-boxed value bit layout
//	├── codegen/    AST -> typed WAT fragment lowering
//	├── methods/    array and typed-array method lowerings (incl. SIMD)
//	├── stdlib/     runtime helper WAT source + dependency closure
//	├── module/     final module assembly (sections, custom jz:sig)
//	├── wat/        WAT text -> WASM binary compiler
//	├── wasm/       WASM binary decode/encode (custom section splicing)
//	├── engine/     wazero integration
//	├── runtime/    instantiate + call exported functions
//	├── errors/     structured compiler/runtime errors
//	└── cmd/jzc/    command-line front end
//
// # Quick start
//
//	program := ast.New(ast.OpProgram,
//	    ast.New(ast.OpArrow, ast.Ident("x"),
//	        ast.New(ast.OpAdd,
//	            ast.New(ast.OpMul, ast.Ident("x"), ast.Number(2)),
//	            ast.Number(1))))
//	wasmBytes, err := jzc.Compile(program, jzc.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	inst, err := jzc.Instantiate(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//	result, err := inst.Call(ctx, "main", 3)
//	fmt.Println(result) // 7
//
// # Memory model
//
// Generated modules never free heap objects individually; the host
// resets the bump allocator between independent invocations by calling
// the exported _resetHeap (and _resetTypedArrays, when typed arrays are
// used). Live pointers from a previous invocation are dangling after a
// reset — avoiding that is the caller's responsibility.
package jzc
