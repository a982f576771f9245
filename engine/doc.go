// Package engine wraps wazero to instantiate the core WASM modules jzc
// produces: one memory, an optional function table for closures, a
// "main" export, and a handful of imported math functions. It is a
// deliberate trim of a Component Model engine down to core-module
// instantiation only — the compiled language has no suspension points,
// so there is no asyncify, no canonical ABI lifting, and
// no WASI adaptation layer to carry.
package engine
