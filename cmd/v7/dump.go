package main

import (
	"fmt"
	"os"

	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/bcode"
	"github.com/informatter/v7go/internal/compiler"
	"github.com/informatter/v7go/internal/lexer"
	"github.com/informatter/v7go/internal/parser"
	"github.com/informatter/v7go/internal/strheap"
)

// dumpSource lexes and parses src, then emits whichever of -t/-b/-c the
// caller asked for: -t as indented JSON (ast.DumpJSON, the teacher's
// parser.Print/PrintToFile idiom generalized to the packed tree), -b as
// the raw spec §6.3 wire format (ast.Write) written straight to stdout,
// -c as a disassembly listing (bcode.Disassemble, the teacher's
// DiassembleBytecode idiom) once the tree compiles cleanly.
func dumpSource(name, src string, asText, asBinary, asBCode bool) error {
	toks, err := lexer.New(src).Scan()
	if err != nil {
		return fmt.Errorf("%s: lex: %w", name, err)
	}
	tree, errs := parser.New(toks).Parse()
	if len(errs) > 0 {
		return fmt.Errorf("%s: parse: %v", name, errs)
	}

	if asText {
		text, err := ast.DumpJSON(tree)
		if err != nil {
			return fmt.Errorf("%s: dump ast: %w", name, err)
		}
		fmt.Fprintln(os.Stdout, text)
	}
	if asBinary {
		if _, err := os.Stdout.Write(ast.Write(tree)); err != nil {
			return fmt.Errorf("%s: write binary ast: %w", name, err)
		}
	}
	if asBCode {
		bc, err := compiler.New(strheap.New()).CompileProgram(tree)
		if err != nil {
			return fmt.Errorf("%s: compile: %w", name, err)
		}
		fmt.Fprintln(os.Stdout, bcode.Disassemble(bc))
	}
	return nil
}
