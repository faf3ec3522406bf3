package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"github.com/informatter/v7go/internal/lexer"
	"github.com/informatter/v7go/pkg/v7"
)

// replCmd is an interactive session against one shared pkg/v7.Engine,
// grounded on the teacher's cmd_repl_compiled.go: the same brace-balance/
// trailing-token heuristic (isInputReady there) decides whether to wait for
// more input before compiling, generalized from nilan/token.Token to
// internal/lexer.Token. Line editing comes from chzyer/readline instead of
// a bare bufio.Scanner, since this package's go.mod already carries that
// dependency for exactly this purpose.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "start an interactive session" }
func (*replCmd) Usage() string    { return "repl\n" }
func (*replCmd) SetFlags(*flag.FlagSet) {}

func (*replCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Printf("💥 failed to start line editor: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	engine := v7.New(v7.Options{})
	defer engine.Close()

	var buffer strings.Builder
	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buffer.Reset()
			continue
		}
		if err == io.EOF {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Printf("💥 %v\n", err)
			return subcommands.ExitFailure
		}
		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		toks, lexErr := lexer.New(source).Scan()
		if lexErr != nil {
			fmt.Println(lexErr)
			buffer.Reset()
			continue
		}
		if !inputReady(toks) {
			continue
		}

		result, execErr := engine.Exec(source)
		if execErr != nil {
			if th, ok := engine.ThrownValue(); ok {
				fmt.Println("uncaught:", engine.VM.ErrorMessage(th))
			} else {
				fmt.Println(execErr)
			}
			buffer.Reset()
			continue
		}
		fmt.Println(engine.VM.ToDisplayString(result))
		buffer.Reset()
	}
}

// inputReady reports whether toks looks like a complete statement rather
// than a prefix the user is still typing — unbalanced braces, or a
// trailing token that can only be followed by more input (an operator, an
// opening paren/brace, or a keyword that always introduces a clause).
// Direct port of cmd_repl_compiled.go's isInputReady, re-pointed at
// internal/lexer.TokenType's constants.
func inputReady(toks []lexer.Token) bool {
	braceBalance := 0
	for _, tok := range toks {
		switch tok.Type {
		case lexer.LBRACE:
			braceBalance++
		case lexer.RBRACE:
			braceBalance--
		}
	}
	if braceBalance > 0 {
		return false
	}

	last := lastNonEOF(toks)
	if last == nil {
		return true
	}

	switch last.Type {
	case lexer.ASSIGN, lexer.PLUS, lexer.MINUS, lexer.STAR, lexer.SLASH,
		lexer.BANG, lexer.EQ, lexer.NEQ, lexer.LT, lexer.LTE, lexer.GT, lexer.GTE,
		lexer.COMMA, lexer.LPAREN, lexer.LBRACE,
		lexer.IF, lexer.ELSE, lexer.WHILE, lexer.FOR, lexer.FUNCTION,
		lexer.RETURN, lexer.VAR, lexer.AND_AND, lexer.OR_OR:
		return false
	}
	return true
}

func lastNonEOF(toks []lexer.Token) *lexer.Token {
	for i := len(toks) - 1; i >= 0; i-- {
		if toks[i].Type != lexer.EOF {
			return &toks[i]
		}
	}
	return nil
}
