package runtime

import (
	"testing"

	"github.com/jz-lang/jzc/value"
)

func TestLiftPlainNumberPassesThrough(t *testing.T) {
	tc := &Transcoder{}
	got, err := tc.Lift(3.5)
	if err != nil {
		t.Fatalf("Lift(3.5): %v", err)
	}
	if got != 3.5 {
		t.Errorf("got %v, want 3.5", got)
	}
}

func TestLiftCanonicalNaNIsANumberNotAPointer(t *testing.T) {
	tc := &Transcoder{}
	nan := value.Pack(value.Atom, 0, 0) // payload zero: the number NaN
	got, err := tc.Lift(nan)
	if err != nil {
		t.Fatalf("Lift(NaN): %v", err)
	}
	f, ok := got.(float64)
	if !ok || f == f {
		t.Errorf("canonical NaN should lift to the number NaN, got %#v", got)
	}
}

func TestLiftSSOStringNeedsNoMemory(t *testing.T) {
	v, ok := value.PackSSOString([]byte("hi"))
	if !ok {
		t.Fatal("PackSSOString(hi) should succeed")
	}
	tc := &Transcoder{}
	got, err := tc.Lift(v)
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if got != "hi" {
		t.Errorf("got %q, want %q", got, "hi")
	}
}

func TestLiftClosureYieldsDescriptor(t *testing.T) {
	v := value.PackClosure(3, 2, 4096)
	tc := &Transcoder{}
	got, err := tc.Lift(v)
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	ref, ok := got.(ClosureRef)
	if !ok {
		t.Fatalf("expected a ClosureRef, got %#v", got)
	}
	if ref.TableIndex != 3 || ref.EnvLength != 2 || ref.EnvOffset != 4096 {
		t.Errorf("got %+v", ref)
	}
}

func TestLiftSymbolYieldsIdentity(t *testing.T) {
	v := value.Pack(value.Atom, 0, 7)
	tc := &Transcoder{}
	got, err := tc.Lift(v)
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if ref, ok := got.(SymbolRef); !ok || ref.ID != 7 {
		t.Errorf("expected SymbolRef{ID: 7}, got %#v", got)
	}
}

func TestLiftObjectReportsMissingSchema(t *testing.T) {
	v := value.Pack(value.Object, 0, 512)
	tc := &Transcoder{}
	if _, err := tc.Lift(v); err == nil {
		t.Error("object lifting without the schema descriptor should report an error")
	}
}
