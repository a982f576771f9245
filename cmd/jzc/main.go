// Command jzc compiles a JSON-encoded AST (the documented parser-output
// contract, package ast) to WebAssembly and optionally runs it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jz-lang/jzc"
	"github.com/jz-lang/jzc/ast"
)

func main() {
	var (
		src         = flag.String("src", "", "Path to a JSON-encoded ast.Node program")
		watOut      = flag.Bool("wat", false, "Print the assembled WAT and stop before binary assembly")
		out         = flag.String("out", "", "Write the compiled .wasm to this path (with -run it is also run)")
		run         = flag.Bool("run", false, "Instantiate and call the compiled module")
		funcName    = flag.String("func", "main", "Exported function to call with -run")
		argStr      = flag.String("args", "", "Comma-separated f64 arguments for -run")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *src == "" {
		fmt.Fprintln(os.Stderr, "Usage: jzc -src <program.json> [-wat | -out file.wasm | -run [-func name] [-args 1,2,3]]")
		fmt.Fprintln(os.Stderr, "       jzc -src <program.json> -i  (interactive mode)")
		os.Exit(1)
	}

	program, err := loadProgram(*src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(program); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := compileAndRun(program, *watOut, *out, *run, *funcName, *argStr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadProgram(path string) (*ast.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var program ast.Node
	if err := json.Unmarshal(data, &program); err != nil {
		return nil, fmt.Errorf("decode AST: %w", err)
	}
	return &program, nil
}

func compileAndRun(program *ast.Node, watOut bool, outPath string, run bool, funcName, argStr string) error {
	opts := jzc.Options{}

	if watOut {
		watText, err := jzc.CompileToWat(program, opts)
		if err != nil {
			return fmt.Errorf("compile to WAT: %w", err)
		}
		fmt.Println(watText)
		return nil
	}

	wasmBytes, err := jzc.Compile(program, opts)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, wasmBytes, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(wasmBytes), outPath)
	}

	if !run {
		return nil
	}

	ctx := context.Background()
	inst, err := jzc.Instantiate(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer inst.Close(ctx)

	args, err := parseArgs(argStr)
	if err != nil {
		return err
	}

	result, err := inst.Call(ctx, funcName, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %v\n", result)
	return nil
}

func parseArgs(argStr string) ([]float64, error) {
	if argStr == "" {
		return nil, nil
	}
	parts := strings.Split(argStr, ",")
	args := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse argument %q: %w", p, err)
		}
		args[i] = v
	}
	return args, nil
}
