package runtime

import (
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/jz-lang/jzc/value"
)

// Transcoder lifts NaN-boxed guest values out of an instance's linear
// memory into Go values: numbers stay float64, strings (packed and heap
// forms) become string, arrays (flat or ring) become []any with each
// element lifted in turn, typed arrays become []float64 widened per
// their element kind, and closures and symbols become descriptor
// values. It is the host-side counterpart of the jz:sig descriptor.
// Object lifting needs the jz:sig schema table, which the raw memory
// image doesn't carry, so object pointers report an error instead of
// guessing a field count.
type Transcoder struct {
	mem *Memory
}

// Transcoder returns a lifter reading this instance's linear memory.
func (in *Instance) Transcoder() *Transcoder {
	return &Transcoder{mem: in.Memory()}
}

// ClosureRef describes a closure value without entering the module: the
// function-table slot it dispatches through and where its captured
// environment lives.
type ClosureRef struct {
	TableIndex uint16
	EnvLength  uint8
	EnvOffset  uint32
}

// SymbolRef is a symbol's identity.
type SymbolRef struct {
	ID uint32
}

// liftMaxDepth bounds recursion through nested arrays; the generator
// never produces cyclic structures, but a corrupted pointer could.
const liftMaxDepth = 32

// Lift decodes one guest value, following heap pointers as needed.
func (t *Transcoder) Lift(v float64) (any, error) {
	return t.lift(v, 0)
}

func (t *Transcoder) lift(v float64, depth int) (any, error) {
	if depth > liftMaxDepth {
		return nil, fmt.Errorf("lift: value nests deeper than %d levels", liftMaxDepth)
	}
	if !value.IsPointer(v) {
		return v, nil
	}
	switch value.TypeOf(v) {
	case value.String:
		return t.liftString(v)
	case value.Array:
		return t.liftArray(v, depth)
	case value.Typed:
		return t.liftTyped(v)
	case value.Closure:
		idx, n, off, _ := value.UnpackClosure(v)
		return ClosureRef{TableIndex: idx, EnvLength: n, EnvOffset: off}, nil
	case value.Atom:
		return SymbolRef{ID: value.Offset(v)}, nil
	default:
		return nil, fmt.Errorf("lift: cannot decode a %s value without its schema descriptor", value.TypeOf(v))
	}
}

func (t *Transcoder) liftString(v float64) (string, error) {
	if cps, ok := value.UnpackSSOString(v); ok {
		return string(cps), nil
	}
	off := value.Offset(v)
	n, err := t.mem.ReadU32(off - 8)
	if err != nil {
		return "", err
	}
	units := make([]uint16, n)
	for i := uint32(0); i < n; i++ {
		u, err := t.mem.ReadU16(off + i*2)
		if err != nil {
			return "", err
		}
		units[i] = u
	}
	return string(utf16.Decode(units)), nil
}

func (t *Transcoder) liftArray(v float64, depth int) ([]any, error) {
	off := value.Offset(v)
	lenF, err := t.mem.ReadF64(off - 8)
	if err != nil {
		return nil, err
	}
	n := int(lenF)
	out := make([]any, 0, n)
	readSlot := func(i int) (float64, error) {
		return t.mem.ReadF64(off + uint32(i)*8)
	}
	if value.IsRing(v) {
		headF, err := t.mem.ReadF64(off - 16)
		if err != nil {
			return nil, err
		}
		head := int64(headF)
		mask := int64(value.Aux(v)&^value.RingFlag) - 1
		readSlot = func(i int) (float64, error) {
			return t.mem.ReadF64(off + uint32((head+int64(i))&mask)*8)
		}
	}
	for i := 0; i < n; i++ {
		raw, err := readSlot(i)
		if err != nil {
			return nil, err
		}
		el, err := t.lift(raw, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func (t *Transcoder) liftTyped(v float64) ([]float64, error) {
	off := value.Offset(v)
	n, err := t.mem.ReadU32(off)
	if err != nil {
		return nil, err
	}
	data, err := t.mem.ReadU32(off + 4)
	if err != nil {
		return nil, err
	}
	kind := value.Aux(v)
	out := make([]float64, n)
	for i := uint32(0); i < n; i++ {
		x, err := t.readElem(kind, data, i)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// readElem widens one typed-array element to f64, mirroring the guest
// runtime's own per-element-kind loads.
func (t *Transcoder) readElem(kind uint16, data, i uint32) (float64, error) {
	switch kind {
	case 0:
		b, err := t.mem.ReadU8(data + i)
		return float64(int8(b)), err
	case 1:
		b, err := t.mem.ReadU8(data + i)
		return float64(b), err
	case 2:
		u, err := t.mem.ReadU16(data + i*2)
		return float64(int16(u)), err
	case 3:
		u, err := t.mem.ReadU16(data + i*2)
		return float64(u), err
	case 4:
		u, err := t.mem.ReadU32(data + i*4)
		return float64(int32(u)), err
	case 5:
		u, err := t.mem.ReadU32(data + i*4)
		return float64(u), err
	case 6:
		u, err := t.mem.ReadU32(data + i*4)
		return float64(math.Float32frombits(u)), err
	default:
		return t.mem.ReadF64(data + i*8)
	}
}
