package runtime

import (
	"context"
	"fmt"

	"github.com/jz-lang/jzc/engine"
)

// Runtime loads compiled jzc modules and instantiates them against the
// host's math import namespace.
type Runtime struct {
	engine *engine.Engine
}

// New creates a Runtime with its own wazero engine and registers the
// built-in math host module.
func New(ctx context.Context) (*Runtime, error) {
	eng, err := engine.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	if err := eng.RegisterHostModule(ctx, "math", hostFuncs(MathHost{})); err != nil {
		eng.Close(ctx)
		return nil, err
	}
	return &Runtime{engine: eng}, nil
}

// Close releases all instances and modules created from this Runtime.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Instantiate compiles and instantiates a core WASM module produced by
// jzc.Compile. Each call produces an independent instance with its own
// linear memory and bump-heap state.
func (r *Runtime) Instantiate(ctx context.Context, wasmBytes []byte) (*Instance, error) {
	compiled, err := r.engine.Compile(ctx, wasmBytes)
	if err != nil {
		return nil, err
	}
	mod, err := r.engine.Instantiate(ctx, compiled)
	if err != nil {
		return nil, err
	}
	return &Instance{mod: mod, compiled: compiled}, nil
}
