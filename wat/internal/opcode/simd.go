package opcode

// SimdKind distinguishes the immediate shape of a v128 instruction so the
// parser and encoder know what follows the subopcode LEB128.
type SimdKind int

const (
	SimdPlain  SimdKind = iota // no immediate beyond the subopcode
	SimdMemarg                 // align/offset pair, like a scalar load/store
	SimdLane                   // a single lane index byte
)

type SimdOp struct {
	Subop        uint32
	Kind         SimdKind
	Operands     int
	NaturalAlign uint32 // only meaningful for SimdMemarg
}

func LookupSimd(name string) (SimdOp, bool) {
	op, ok := simdOps[name]
	return op, ok
}

// Subset of the WASM SIMD proposal's v128 instructions: memory access,
// per-lane splat/extract/replace, and the arithmetic patterns the typed-array
// map specialization recognizes.
var simdOps = map[string]SimdOp{
	"v128.load":  {0x00, SimdMemarg, 0, 4},
	"v128.store": {0x0B, SimdMemarg, 1, 4},

	"i32x4.splat": {0x11, SimdPlain, 1, 0},
	"f32x4.splat": {0x13, SimdPlain, 1, 0},
	"f64x2.splat": {0x14, SimdPlain, 1, 0},

	"i32x4.extract_lane": {0x1B, SimdLane, 1, 0},
	"i32x4.replace_lane": {0x1C, SimdLane, 2, 0},
	"f32x4.extract_lane": {0x1F, SimdLane, 1, 0},
	"f32x4.replace_lane": {0x20, SimdLane, 2, 0},
	"f64x2.extract_lane": {0x21, SimdLane, 1, 0},
	"f64x2.replace_lane": {0x22, SimdLane, 2, 0},

	"v128.not":    {0x4D, SimdPlain, 1, 0},
	"v128.and":    {0x4E, SimdPlain, 2, 0},
	"v128.andnot": {0x4F, SimdPlain, 2, 0},
	"v128.or":     {0x50, SimdPlain, 2, 0},
	"v128.xor":    {0x51, SimdPlain, 2, 0},

	"f32x4.ceil":  {0x67, SimdPlain, 1, 0},
	"f32x4.floor": {0x68, SimdPlain, 1, 0},
	"f64x2.ceil":  {0x74, SimdPlain, 1, 0},
	"f64x2.floor": {0x75, SimdPlain, 1, 0},

	"i32x4.abs":   {0xA0, SimdPlain, 1, 0},
	"i32x4.shl":   {0xAB, SimdPlain, 2, 0},
	"i32x4.shr_s": {0xAC, SimdPlain, 2, 0},
	"i32x4.shr_u": {0xAD, SimdPlain, 2, 0},
	"i32x4.neg":   {0xA1, SimdPlain, 1, 0},
	"i32x4.add":   {0xAE, SimdPlain, 2, 0},
	"i32x4.sub":   {0xB1, SimdPlain, 2, 0},
	"i32x4.mul":   {0xB5, SimdPlain, 2, 0},

	"f32x4.abs":  {0xE0, SimdPlain, 1, 0},
	"f32x4.neg":  {0xE1, SimdPlain, 1, 0},
	"f32x4.sqrt": {0xE3, SimdPlain, 1, 0},
	"f32x4.add":  {0xE4, SimdPlain, 2, 0},
	"f32x4.sub":  {0xE5, SimdPlain, 2, 0},
	"f32x4.mul":  {0xE6, SimdPlain, 2, 0},
	"f32x4.div":  {0xE7, SimdPlain, 2, 0},

	"f64x2.abs":  {0xEC, SimdPlain, 1, 0},
	"f64x2.neg":  {0xED, SimdPlain, 1, 0},
	"f64x2.sqrt": {0xEF, SimdPlain, 1, 0},
	"f64x2.add":  {0xF0, SimdPlain, 2, 0},
	"f64x2.sub":  {0xF1, SimdPlain, 2, 0},
	"f64x2.mul":  {0xF2, SimdPlain, 2, 0},
	"f64x2.div":  {0xF3, SimdPlain, 2, 0},
}
