package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/lexer"
	"github.com/informatter/v7go/internal/parser"
)

// parseCmd prints a source file's AST and nothing else — the dedicated
// verb `internal/ast.Dump`'s doc comment already names, sitting alongside
// `run`'s -t/-b flags (which also dump the AST, in place of running the
// script). Grounded on the teacher's
// parser.Print/PrintToFile, generalized from a pointer-linked tree walk to
// ast.Dump's position-based one.
type parseCmd struct {
	binary bool
}

func (*parseCmd) Name() string     { return "parse" }
func (*parseCmd) Synopsis() string { return "print a source file's AST" }
func (*parseCmd) Usage() string    { return "parse [-b] <file>\n" }

func (cmd *parseCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.binary, "b", false, "print the AST in spec §6.3's binary wire format instead of text")
}

func (cmd *parseCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
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

	if cmd.binary {
		os.Stdout.Write(ast.Write(tree))
		return subcommands.ExitSuccess
	}
	text, err := ast.DumpJSON(tree)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 dump error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(os.Stdout, text)
	return subcommands.ExitSuccess
}
