package wasm_test

import (
	"bytes"
	"testing"

	"github.com/jz-lang/jzc/wasm"
	"github.com/jz-lang/jzc/wat"
)

// module.spliceDescriptor is the only caller of this package: it parses
// an already-assembled binary, appends a jz:sig custom section, and
// re-encodes. These tests exercise exactly that round trip rather than
// the decoder/encoder's general-purpose binary format coverage.

func assembleMinimal(t *testing.T) []byte {
	t.Helper()
	bin, err := wat.Compile(`(module
  (memory $memory 1)
  (export "memory" (memory $memory))
  (func $__main (param $__env i32) (result f64) (f64.const 42))
  (export "main" (func $__main)))`)
	if err != nil {
		t.Fatalf("wat.Compile: %v", err)
	}
	return bin
}

func TestParseModuleRecoversExportsAndMemory(t *testing.T) {
	bin := assembleMinimal(t)
	m, err := wasm.ParseModule(bin)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(m.Memories) != 1 {
		t.Errorf("expected one memory, got %d", len(m.Memories))
	}
	found := false
	for _, e := range m.Exports {
		if e.Name == "main" {
			found = true
		}
	}
	if !found {
		t.Error("expected a \"main\" export to survive parsing")
	}
}

func TestCustomSectionRoundTripsThroughEncode(t *testing.T) {
	bin := assembleMinimal(t)
	m, err := wasm.ParseModule(bin)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}

	payload := []byte(`{"exports":{"main":{"arity":0}}}`)
	m.CustomSections = append(m.CustomSections, wasm.CustomSection{Name: "jz:sig", Data: payload})
	reencoded := m.Encode()

	m2, err := wasm.ParseModule(reencoded)
	if err != nil {
		t.Fatalf("ParseModule on the re-encoded binary: %v", err)
	}
	var got *wasm.CustomSection
	for i := range m2.CustomSections {
		if m2.CustomSections[i].Name == "jz:sig" {
			got = &m2.CustomSections[i]
		}
	}
	if got == nil {
		t.Fatal("expected the jz:sig custom section to survive a decode/append/encode round trip")
	}
	if !bytes.Equal(got.Data, payload) {
		t.Errorf("expected payload %s, got %s", payload, got.Data)
	}
}

func TestParseModuleRejectsTruncatedBinary(t *testing.T) {
	bin := assembleMinimal(t)
	_, err := wasm.ParseModule(bin[:len(bin)-4])
	if err == nil {
		t.Fatal("a truncated module should fail to parse")
	}
}

func TestParseModuleRejectsBadMagic(t *testing.T) {
	_, err := wasm.ParseModule([]byte{0x01, 0x02, 0x03, 0x04})
	if err == nil {
		t.Fatal("a binary without the \\0asm magic header should fail to parse")
	}
}
