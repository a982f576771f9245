package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jz-lang/jzc/ast"
)

func TestLoadProgramRoundTripsJSONAST(t *testing.T) {
	arrow := ast.New(ast.OpArrow, ast.Ident("x"), ast.New(ast.OpAdd, ast.Ident("x"), ast.Number(1)))
	program := ast.New(ast.OpProgram, arrow)

	dir := t.TempDir()
	path := filepath.Join(dir, "program.json")
	data, err := json.Marshal(program)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := loadProgram(path)
	if err != nil {
		t.Fatalf("loadProgram: %v", err)
	}
	if got.Op != ast.OpProgram || len(got.Children) != 1 || got.Children[0].Op != ast.OpArrow {
		t.Errorf("round-tripped program doesn't match original shape: %+v", got)
	}
}

func TestLoadProgramMissingFile(t *testing.T) {
	_, err := loadProgram("/nonexistent/path/to/program.json")
	if err == nil {
		t.Fatal("a missing file should return an error")
	}
}

func TestLoadProgramInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := loadProgram(path)
	if err == nil {
		t.Fatal("invalid JSON should return a decode error")
	}
}

func TestParseArgsEmptyStringYieldsNoArgs(t *testing.T) {
	args, err := parseArgs("")
	if err != nil {
		t.Fatalf("parseArgs(\"\"): %v", err)
	}
	if args != nil {
		t.Errorf("an empty argument string should yield no arguments, got %v", args)
	}
}

func TestParseArgsParsesCommaSeparatedFloats(t *testing.T) {
	args, err := parseArgs("1, 2.5,-3")
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	want := []float64{1, 2.5, -3}
	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %d: %v", len(want), len(args), args)
	}
	for i, v := range want {
		if args[i] != v {
			t.Errorf("arg %d: expected %v, got %v", i, v, args[i])
		}
	}
}

func TestParseArgsRejectsMalformedNumber(t *testing.T) {
	_, err := parseArgs("1,notanumber")
	if err == nil {
		t.Fatal("a malformed argument should produce an error")
	}
}

func TestCompileAndRunWatOutDoesNotRequireOutOrRun(t *testing.T) {
	program := ast.New(ast.OpProgram, ast.Number(1))
	if err := compileAndRun(program, true, "", false, "main", ""); err != nil {
		t.Errorf("compileAndRun with watOut=true should succeed on a trivial program: %v", err)
	}
}

func TestCompileAndRunWritesOutputFile(t *testing.T) {
	program := ast.New(ast.OpProgram, ast.Number(1))
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.wasm")
	if err := compileAndRun(program, false, outPath, false, "main", ""); err != nil {
		t.Fatalf("compileAndRun: %v", err)
	}
	info, err := os.Stat(outPath)
	if err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected a non-empty compiled module")
	}
}
