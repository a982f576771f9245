package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Engine owns a single wazero runtime and compiles/instantiates the core
// modules jzc emits.
type Engine struct {
	runtime wazero.Runtime
}

// Config configures engine creation.
type Config struct {
	// MemoryLimitPages caps each instance's linear memory, in 64KB pages.
	// 0 means wazero's default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// New creates an Engine with default configuration.
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates an Engine, applying cfg if non-nil.
func NewWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	debugf("engine created")
	return &Engine{runtime: rt}, nil
}

// Close releases every module and instance owned by the runtime. Any
// Instance created from this engine becomes invalid afterward.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Compile validates and compiles core WASM bytes ahead of instantiation.
func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) (wazero.CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}
	debugf("compiled module: %d imports, %d exports", len(compiled.ImportedFunctions()), len(compiled.ExportedFunctions()))
	return compiled, nil
}

// HostFunc is a single named host function to expose under an import
// namespace (e.g. "math"."sin").
type HostFunc struct {
	Name string
	Fn   any
}

// RegisterHostModule builds and instantiates a host module under the
// given import namespace so subsequent module instantiation can resolve
// imports against it. Must be called before Instantiate for modules that
// import this namespace.
func (e *Engine) RegisterHostModule(ctx context.Context, namespace string, funcs []HostFunc) error {
	builder := e.runtime.NewHostModuleBuilder(namespace)
	for _, f := range funcs {
		builder.NewFunctionBuilder().WithFunc(f.Fn).Export(f.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("register host module %q: %w", namespace, err)
	}
	debugf("registered host module %q (%d functions)", namespace, len(funcs))
	return nil
}

// Instantiate instantiates a compiled module under a fresh, anonymous
// module name so repeated instantiation of the same compiled module
// (e.g. one per test case) never collides.
func (e *Engine) Instantiate(ctx context.Context, compiled wazero.CompiledModule) (api.Module, error) {
	cfg := wazero.NewModuleConfig().WithName("")
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate module: %w", err)
	}
	return mod, nil
}
