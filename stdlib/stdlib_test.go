package stdlib

import (
	"regexp"
	"strings"
	"testing"
)

func TestCloseIncludesTransitiveDeps(t *testing.T) {
	got := Close(map[string]bool{"__alloc": true})
	found := map[string]bool{}
	for _, n := range got {
		found[n] = true
	}
	if !found["__mkptr"] {
		t.Fatalf("Close(__alloc) = %v, want it to include transitive dep __mkptr", got)
	}
	if !found["__alloc"] {
		t.Fatalf("Close(__alloc) = %v, want it to include __alloc itself", got)
	}
}

func TestCloseOrdersDepsBeforeDependents(t *testing.T) {
	got := Close(map[string]bool{"__str_concat": true})
	pos := map[string]int{}
	for i, n := range got {
		pos[n] = i
	}
	if pos["__alloc"] >= pos["__strcat"] {
		t.Fatalf("expected __alloc before __strcat, got order %v", got)
	}
	if pos["__strcat"] >= pos["__str_concat"] {
		t.Fatalf("expected __strcat before __str_concat, got order %v", got)
	}
}

func TestCloseIsIdempotentOnRepeatedRequests(t *testing.T) {
	a := Close(map[string]bool{"__ring_push": true, "__ring_pop": true})
	seen := map[string]int{}
	for _, n := range a {
		seen[n]++
	}
	for n, c := range seen {
		if c != 1 {
			t.Fatalf("helper %q appeared %d times in closure, want exactly once", n, c)
		}
	}
}

func TestCloseEmptyRequestYieldsEmpty(t *testing.T) {
	got := Close(map[string]bool{})
	if len(got) != 0 {
		t.Fatalf("Close(nil) = %v, want empty", got)
	}
}

func TestCloseSmartAccessorPullsRingFamily(t *testing.T) {
	got := Close(map[string]bool{"__arr_get": true})
	found := map[string]bool{}
	for _, n := range got {
		found[n] = true
	}
	for _, want := range []string{"__is_ring", "__ring_get", "__ring_mask", "__ring_cap", "__ring_head"} {
		if !found[want] {
			t.Errorf("Close(__arr_get) = %v, want it to include %s (the accessor dispatches on ring form)", got, want)
		}
	}
}

func TestCloseArrShiftAndUnshiftPullRingOps(t *testing.T) {
	got := Close(map[string]bool{"__arr_shift": true, "__arr_unshift": true})
	found := map[string]bool{}
	for _, n := range got {
		found[n] = true
	}
	for _, want := range []string{"__ring_shift", "__to_ring", "__ring_resize", "__ring_unshift", "__alloc_ring"} {
		if !found[want] {
			t.Errorf("shift/unshift closure = %v, want it to include %s", got, want)
		}
	}
}

func TestSourceCallsAreDeclaredDeps(t *testing.T) {
	callRef := regexp.MustCompile(`call \$(__[a-z0-9_]+)`)
	for name, src := range Source {
		declared := map[string]bool{name: true}
		for _, d := range Deps[name] {
			declared[d] = true
		}
		for _, m := range callRef.FindAllStringSubmatch(src, -1) {
			if !declared[m[1]] {
				t.Errorf("%s calls %s but does not declare it in Deps, so Close would emit a dangling reference", name, m[1])
			}
		}
	}
}

func TestRingAllocTagsRingFlagAndPowerOfTwoCapacity(t *testing.T) {
	src := Source["__alloc_ring"]
	if !strings.Contains(src, "i32.or (local.get $c) (i32.const 0x8000)") {
		t.Errorf("__alloc_ring should tag aux with the ring flag bit, got %s", src)
	}
	if !strings.Contains(src, "i32.shl (local.get $c) (i32.const 1)") {
		t.Errorf("__alloc_ring should round capacity up by doubling, got %s", src)
	}
	if !strings.Contains(Source["__ring_cap"], "0x7FFF") {
		t.Errorf("__ring_cap must mask the ring flag out of aux, got %s", Source["__ring_cap"])
	}
	if !strings.Contains(Source["__ring_mask"], "i32.and") {
		t.Errorf("__ring_mask should wrap with an and-mask over the power-of-two capacity, got %s", Source["__ring_mask"])
	}
}

func TestNumToStrHandlesSpecialValuesViaInternedLiterals(t *testing.T) {
	src := Source["__num_to_str"]
	for _, want := range []string{"$__lit_nan", "$__lit_inf", "$__lit_ninf"} {
		if !strings.Contains(src, want) {
			t.Errorf("__num_to_str should resolve specials through %s, got %s", want, src)
		}
	}
	if !strings.Contains(src, "i32.store16") {
		t.Errorf("__num_to_str should write u16 code units, got %s", src)
	}
}

func TestStringAccessorsBranchOnSSOForm(t *testing.T) {
	for _, name := range []string{"__str_len", "__str_char_at"} {
		if !strings.Contains(Source[name], "__sso_is") {
			t.Errorf("%s must handle the packed short-string form as well as the heap form", name)
		}
	}
	// The WAT-side field constants must agree with value/string.go's
	// packing: flag bit 47, 3 length bits at shift 42, 7-bit chars from
	// shift 35 downward.
	for _, want := range []string{"i64.const 47", "i64.const 42", "i32.const 35", "i64.const 127"} {
		ok := false
		for _, name := range []string{"__sso_is", "__str_len", "__str_char_at"} {
			if strings.Contains(Source[name], want) {
				ok = true
			}
		}
		if !ok {
			t.Errorf("expected the SSO accessors to use %s", want)
		}
	}
}

func TestEveryDepTargetHasSource(t *testing.T) {
	for name, deps := range Deps {
		if _, ok := Source[name]; !ok {
			t.Errorf("Deps entry %q has no corresponding Source template", name)
		}
		for _, d := range deps {
			if _, ok := Source[d]; !ok {
				t.Errorf("%q depends on %q, which has no Source template", name, d)
			}
		}
	}
}
