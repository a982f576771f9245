package value

import (
	"math"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []struct {
		kind   Kind
		aux    uint16
		offset uint32
	}{
		{Array, 0, 0},
		{String, 0x1234, 0xDEADBEEF},
		{Object, 0xFFFF, 0xFFFFFFFF},
		{Closure, 0, 1},
	}
	for _, c := range cases {
		v := Pack(c.kind, c.aux, c.offset)
		if !IsPointer(v) {
			t.Fatalf("Pack(%v,%x,%x) not classified as pointer", c.kind, c.aux, c.offset)
		}
		kind, aux, offset, ok := Unpack(v)
		if !ok || kind != c.kind || aux != c.aux || offset != c.offset {
			t.Errorf("round trip: got (%v,%x,%x,%v), want (%v,%x,%x,true)", kind, aux, offset, ok, c.kind, c.aux, c.offset)
		}
	}
}

func TestCanonicalNaNIsNotPointer(t *testing.T) {
	// Go's math.NaN() sets payload bit 0; the canonical quiet NaN that
	// WASM f64.const nan produces has an all-zero payload.
	if IsPointer(math.Float64frombits(0x7FF8000000000000)) {
		t.Error("canonical NaN must not be classified as a pointer")
	}
}

func TestOrdinaryNumbersAreNotPointers(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 3.14, math.Inf(1), math.Inf(-1)} {
		if IsPointer(v) {
			t.Errorf("IsPointer(%v) = true, want false", v)
		}
	}
}

func TestEqualIsBitEquality(t *testing.T) {
	a := Pack(String, 1, 100)
	b := Pack(String, 1, 100)
	c := Pack(String, 1, 200)
	if !Equal(a, b) {
		t.Error("identical pointers should be Equal")
	}
	if Equal(a, c) {
		t.Error("distinct pointers should not be Equal")
	}
}

func TestClosureRoundTrip(t *testing.T) {
	v := PackClosure(513, 42, 0x1000)
	idx, length, offset, ok := UnpackClosure(v)
	if !ok || idx != 513 || length != 42 || offset != 0x1000 {
		t.Errorf("got (%d,%d,%x,%v), want (513,42,1000,true)", idx, length, offset, ok)
	}
	if TypeOf(v) != Closure {
		t.Errorf("TypeOf = %v, want Closure", TypeOf(v))
	}
}

func TestClosureZeroCaptures(t *testing.T) {
	v := PackClosure(7, 0, 0)
	idx, length, _, ok := UnpackClosure(v)
	if !ok || idx != 7 || length != 0 {
		t.Errorf("closure with no captures should still round-trip: got (%d,%d,%v)", idx, length, ok)
	}
}

func TestUnpackClosureRejectsNonClosure(t *testing.T) {
	v := Pack(Array, 0, 0)
	if _, _, _, ok := UnpackClosure(v); ok {
		t.Error("UnpackClosure should reject a non-closure pointer")
	}
}

func TestSSOStringRoundTrip(t *testing.T) {
	in := []byte("hello!")
	v, ok := PackSSOString(in)
	if !ok {
		t.Fatal("PackSSOString rejected a 6-char ASCII string")
	}
	if !IsSSOString(v) {
		t.Error("IsSSOString should be true for a packed SSO value")
	}
	out, ok := UnpackSSOString(v)
	if !ok || string(out) != string(in) {
		t.Errorf("got %q, ok=%v, want %q", out, ok, in)
	}
}

func TestSSOStringTooLong(t *testing.T) {
	if _, ok := PackSSOString([]byte("toolong!")); ok {
		t.Error("PackSSOString should reject strings over 6 code points")
	}
}

func TestSSOStringEmpty(t *testing.T) {
	v, ok := PackSSOString(nil)
	if !ok {
		t.Fatal("PackSSOString should accept the empty string")
	}
	out, ok := UnpackSSOString(v)
	if !ok || len(out) != 0 {
		t.Errorf("got %q, want empty", out)
	}
}

func TestHeapStringIsNotSSO(t *testing.T) {
	v := Pack(String, 0, 4096)
	if IsSSOString(v) {
		t.Error("a heap string pointer (no SSO flag) should not report IsSSOString")
	}
}

func TestKindString(t *testing.T) {
	if Array.String() != "array" {
		t.Errorf("Array.String() = %q", Array.String())
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("unknown kind should stringify as \"unknown\"")
	}
}

func TestIsRingRequiresArrayTagAndFlag(t *testing.T) {
	ring := Pack(Array, RingFlag|8, 256)
	if !IsRing(ring) {
		t.Error("an array pointer with the ring flag set should report IsRing")
	}
	flat := Pack(Array, 8, 256)
	if IsRing(flat) {
		t.Error("an array pointer without the ring flag is flat")
	}
	typed := Pack(Typed, RingFlag|8, 256)
	if IsRing(typed) {
		t.Error("the ring flag is only meaningful on Array pointers")
	}
	if IsRing(1.5) {
		t.Error("a plain number is never a ring")
	}
}

func TestRingCapacityLivesInLowAuxBits(t *testing.T) {
	ring := Pack(Array, RingFlag|64, 1024)
	if got := Aux(ring) &^ RingFlag; got != 64 {
		t.Errorf("capacity = %d, want 64", got)
	}
}
