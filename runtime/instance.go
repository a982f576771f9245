package runtime

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Instance is one running module: its own linear memory, bump heap, and
// function table. Not safe for concurrent use — a single execution owns
// its state.
type Instance struct {
	mod      api.Module
	compiled wazero.CompiledModule
}

// Call invokes an exported function by name. Every jzc export takes a
// leading env i32, which Call passes as 0, followed by f64 parameters,
// and returns f64, so every argument and
// the result are plain float64; heap-object results are NaN-boxed
// pointers the caller decodes with package value.
func (in *Instance) Call(ctx context.Context, name string, args ...float64) (float64, error) {
	fn := in.mod.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("no exported function %q", name)
	}
	raw := make([]uint64, 0, len(args)+1)
	raw = append(raw, 0)
	for _, a := range args {
		raw = append(raw, api.EncodeF64(a))
	}
	results, err := fn.Call(ctx, raw...)
	if err != nil {
		return 0, fmt.Errorf("call %q: %w", name, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return api.DecodeF64(results[0]), nil
}

// Memory exposes the instance's linear memory for host-side reads, e.g.
// following a NaN-boxed pointer result back into an array or string.
func (in *Instance) Memory() *Memory {
	return &Memory{m: in.mod.Memory()}
}

// ResetHeap calls the module's exported _resetHeap, if present.
func (in *Instance) ResetHeap(ctx context.Context) error {
	if fn := in.mod.ExportedFunction("_resetHeap"); fn != nil {
		_, err := fn.Call(ctx)
		return err
	}
	return nil
}

// ResetTypedArrays calls the module's exported _resetTypedArrays, if present.
func (in *Instance) ResetTypedArrays(ctx context.Context) error {
	if fn := in.mod.ExportedFunction("_resetTypedArrays"); fn != nil {
		_, err := fn.Call(ctx)
		return err
	}
	return nil
}

// Close releases the instance and its compiled module.
func (in *Instance) Close(ctx context.Context) error {
	if err := in.mod.Close(ctx); err != nil {
		return err
	}
	return in.compiled.Close(ctx)
}

// Memory adapts wazero's api.Memory to the host-facing jzc.Memory shape
// (structurally — this package does not import the root package to avoid
// a dependency cycle with jzc.Instantiate).
type Memory struct {
	m api.Memory
}

func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	b, ok := m.m.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d length=%d", offset, length)
	}
	return b, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.m.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d length=%d", offset, len(data))
	}
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.m.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.m.ReadUint16Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.m.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.m.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *Memory) ReadF64(offset uint32) (float64, error) {
	v, ok := m.m.ReadFloat64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if !m.m.WriteByte(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if !m.m.WriteUint16Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.m.WriteUint32Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.m.WriteUint64Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *Memory) Size() uint32 {
	return m.m.Size()
}
