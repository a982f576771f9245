package jzc

import (
	"context"

	"github.com/jz-lang/jzc/ast"
	"github.com/jz-lang/jzc/codegen"
	"github.com/jz-lang/jzc/engine"
	"github.com/jz-lang/jzc/errors"
	_ "github.com/jz-lang/jzc/methods" // registers array/typed-array method lowerings with codegen.MethodLowering
	"github.com/jz-lang/jzc/module"
	"github.com/jz-lang/jzc/runtime"
	"github.com/jz-lang/jzc/wat"
)

// Options configures a single compilation.
type Options struct {
	// Exports lists additional top-level function names, besides "main",
	// to export from the assembled module.
	Exports []string
	// MemoryPages overrides the feature-derived linear memory size, in
	// 64KB pages. 0 lets module assembly decide.
	MemoryPages int
	// NoSimd disables the vectorized typed-array map specialization; the
	// scalar lowering produces identical results on engines without SIMD.
	NoSimd bool
	// Debug makes Compile and CompileToWat log a one-line summary through
	// engine.Logger(). That logger is a no-op logger and nothing in this
	// module replaces it, so no output appears.
	Debug bool
}

// CompileToWat lowers program to WebAssembly Text, stopping short of
// assembling it to a binary — useful for inspection and the CLI's -wat
// flag.
func CompileToWat(program *ast.Node, opts Options) (string, error) {
	c := codegen.New()
	c.DisableSimd = opts.NoSimd
	result, err := module.Assemble(c, program, toModuleOptions(opts))
	if err != nil {
		return "", err
	}
	if opts.Debug {
		engine.Logger().Sugar().Debugf("assembled %d bytes of WAT, %d stdlib helper(s)", len(result.Wat), len(c.Stdlib))
	}
	return result.Wat, nil
}

// Compile lowers program all the way to a WASM binary, including the
// jz:sig custom section describing every export's calling convention.
func Compile(program *ast.Node, opts Options) ([]byte, error) {
	c := codegen.New()
	c.DisableSimd = opts.NoSimd
	result, err := module.Assemble(c, program, toModuleOptions(opts))
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		engine.Logger().Sugar().Debugf("assembled module: %d bytes, %d export(s)", len(result.Wasm), len(result.Descriptor.Exports))
	}
	return result.Wasm, nil
}

// CompileSource is a convenience wrapper for front ends that already
// have WAT text (e.g. a hand-written test fixture) and just want the
// wat package's compiler, bypassing codegen/module assembly entirely.
func CompileSource(watText string) ([]byte, error) {
	bin, err := wat.Compile(watText)
	if err != nil {
		return nil, errors.New(errors.PhaseAssemble, errors.KindInvalidData).Detail("compiling WAT source: %v", err).Build()
	}
	return bin, nil
}

func toModuleOptions(opts Options) module.Options {
	return module.Options{Exports: opts.Exports, MemoryPages: opts.MemoryPages}
}

// Instantiate compiles and instantiates wasmBytes against a runtime
// carrying the built-in math host namespace, returning a
// ready-to-call Instance. The caller owns ctx's cancellation; each call
// to Instantiate creates its own engine, since jzc modules never share
// linear memory across instances.
func Instantiate(ctx context.Context, wasmBytes []byte) (*runtime.Instance, error) {
	rt, err := runtime.New(ctx)
	if err != nil {
		return nil, err
	}
	inst, err := rt.Instantiate(ctx, wasmBytes)
	if err != nil {
		return nil, err
	}
	return inst, nil
}
