package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"github.com/informatter/v7go/internal/bcode"
	"github.com/informatter/v7go/internal/compiler"
	"github.com/informatter/v7go/internal/lexer"
	"github.com/informatter/v7go/internal/parser"
	"github.com/informatter/v7go/internal/strheap"
)

// emitCmd is a direct structural port of the teacher's emitBytecodeCmd
// (cmd_emit_bytecode.go): compile one file and write its disassembly and/or
// its encoded bytecode alongside it, just pointed at internal/bcode's
// Disassemble/Write instead of ASTCompiler.DiassembleBytecode/DumpBytecode.
type emitCmd struct {
	disassemble  bool
	dumpBytecode bool
}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "emit the bytecode representation of a source file" }
func (*emitCmd) Usage() string    { return "emit [options] <file>\n" }

func (cmd *emitCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.disassemble, "disassemble", true, "write a disassembly listing to a .dis.txt file")
	f.BoolVar(&cmd.dumpBytecode, "dumpBytecode", true, "write the encoded bytecode to a .bc file")
}

func (cmd *emitCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}
	srcFile := args[0]

	data, err := os.ReadFile(srcFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	toks, err := lexer.New(string(data)).Scan()
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 lexing error: %v\n", err)
		return subcommands.ExitFailure
	}
	tree, errs := parser.New(toks).Parse()
	if len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "💥 parsing error:\n")
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "\t%v\n", e)
		}
		return subcommands.ExitFailure
	}
	bc, err := compiler.New(strheap.New()).CompileProgram(tree)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 compilation error:\n\t%v\n", err)
		return subcommands.ExitFailure
	}

	base := strings.TrimSuffix(srcFile, filepath.Ext(srcFile))

	if cmd.disassemble {
		if err := os.WriteFile(base+".dis.txt", []byte(bcode.Disassemble(bc)), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "💥 disassemble write error:\n\t%s\n", err.Error())
			return subcommands.ExitFailure
		}
	}
	if cmd.dumpBytecode {
		encoded, err := bcode.Write(bc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 bytecode encode error:\n\t%s\n", err.Error())
			return subcommands.ExitFailure
		}
		if err := os.WriteFile(base+".bc", encoded, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "💥 dump bytecode error:\n\t%s\n", err.Error())
			return subcommands.ExitFailure
		}
	}

	return subcommands.ExitSuccess
}

