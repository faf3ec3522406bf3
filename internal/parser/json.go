package parser

import (
	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/lexer"
)

// ParseJSON parses src as a single top-level JSON value (spec §6.1's
// parse_json/exec_opt(..., is_json)) into a packed AST internal/compiler
// can compile exactly like any other expression. JSON syntax is a strict
// subset of the expression grammar this package already compiles, so
// jsonValue reuses objectLiteral/arrayLiteral/primary directly rather than
// hand-rolling a second grammar — no third-party JSON library is
// exercised because this package is implementing a JSON-compatible parser,
// not consuming one.
func ParseJSON(src string) (*ast.Tree, error) {
	toks, err := lexer.New(src).Scan()
	if err != nil {
		return nil, err
	}
	p := New(toks)

	// Wrapped in a one-statement Script/ExprStmt shell so the result is an
	// ordinary tree internal/compiler.CompileProgram already knows how to
	// compile (and whose trailing ExprStmt becomes its completion value).
	scriptPos := p.node(ast.Script)
	p.b.SetSkip(scriptPos, ast.SkipVarNext, scriptPos)
	stmtPos := p.node(ast.ExprStmt)
	if _, err := p.jsonValue(); err != nil {
		return nil, err
	}
	p.b.End(stmtPos)

	if !p.isAtEnd() {
		cur := p.peek()
		return nil, newSyntaxError(cur.Line, cur.Column, "unexpected trailing input after JSON value")
	}
	p.b.End(scriptPos)

	if p.b.Overflowed() {
		return nil, newSyntaxError(0, 0, "script too large")
	}
	return p.b.Finish()
}

// jsonValue parses one JSON value: an object or array literal (whose
// nested elements recurse back through the same object/array/primary
// productions), a string, a true/false/null keyword, or a number with an
// optional leading '-' (JSON's one departure from the lexer's own NUMBER
// token, which never includes the sign).
func (p *Parser) jsonValue() (int, error) {
	switch {
	case p.match(lexer.LBRACE):
		return p.objectLiteral()
	case p.match(lexer.LBRACKET):
		return p.arrayLiteral()
	case p.check(lexer.MINUS):
		p.advance()
		pos := p.node(ast.Unary)
		p.b.WriteInline(pos, []byte("-"))
		numTok, err := p.consume(lexer.NUMBER, "expected number after '-'")
		if err != nil {
			return -1, err
		}
		numPos := p.node(ast.NumberLit)
		p.b.WriteInline(numPos, []byte(numTok.Lexeme))
		p.b.End(numPos)
		p.b.End(pos)
		return pos, nil
	default:
		return p.primary()
	}
}
