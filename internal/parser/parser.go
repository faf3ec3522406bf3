// Package parser implements a recursive-descent ES5 parser that lowers a
// internal/lexer token stream directly into a packed internal/ast.Tree,
// generalizing the teacher's pointer-linked recursive-descent parser
// (parser/parser.go) the way spec §4.4 describes the ES5 grammar.
package parser

import (
	"fmt"

	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/lexer"
)

// Parser turns a token slice into a packed AST. Like the teacher's
// parser, its position is always one token ahead of the "current" token
// once advance() has run.
type Parser struct {
	toks []lexer.Token
	pos  int
	b    *ast.Builder

	lastLine   int
	depth      int
	stackGuard int

	errors []error
}

// Option configures a Parser at construction time.
type Option func(*Parser)

func New(toks []lexer.Token, opts ...Option) *Parser {
	p := &Parser{toks: toks, b: ast.NewBuilder(), stackGuard: defaultStackGuard}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses the whole token stream into a Script tree. Parsing
// continues past a statement-level error to collect as many diagnostics
// as possible, matching the teacher's "skip a token, keep going" recovery
// policy in parser/parser.go's Parse method.
func (p *Parser) Parse() (*ast.Tree, []error) {
	scriptPos := p.node(ast.Script)
	p.b.SetSkip(scriptPos, ast.SkipVarNext, scriptPos)

	for !p.isAtEnd() {
		stmt, err := p.declaration()
		if err != nil {
			p.errors = append(p.errors, err)
			p.synchronize()
			continue
		}
		_ = stmt
	}
	p.b.End(scriptPos)

	if p.b.Overflowed() {
		p.errors = append(p.errors, newSyntaxError(0, 0, "script too large"))
	}
	if len(p.errors) > 0 {
		return nil, p.errors
	}
	tree, err := p.b.Finish()
	if err != nil {
		return nil, []error{err}
	}
	return tree, nil
}

// synchronize discards tokens until a likely statement boundary, the same
// panic-mode recovery the teacher's Parse loop performs by skipping one
// token per error.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.previous().Type == lexer.SEMI {
			return
		}
		switch p.peek().Type {
		case lexer.FUNCTION, lexer.VAR, lexer.IF, lexer.FOR, lexer.WHILE,
			lexer.RETURN, lexer.TRY, lexer.SWITCH, lexer.THROW:
			return
		}
		p.advance()
	}
}

// --- token-stream primitives, mirroring parser/parser.go's peek/previous/advance/checkType/isMatch ---

func (p *Parser) peek() lexer.Token { return p.toks[p.pos] }

func (p *Parser) previous() lexer.Token { return p.toks[p.pos-1] }

func (p *Parser) isAtEnd() bool { return p.peek().Type == lexer.EOF }

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.pos++
	}
	return p.previous()
}

func (p *Parser) check(tt lexer.TokenType) bool {
	return !p.isAtEnd() && p.peek().Type == tt
}

// checkNext reports whether the token one past the current one has type
// tt, without consuming anything — used by forStatement's one-token
// lookahead to tell `for (k in obj)` apart from a C-style for whose init
// expression happens to start with an identifier.
func (p *Parser) checkNext(tt lexer.TokenType) bool {
	return p.pos+1 < len(p.toks) && p.toks[p.pos+1].Type == tt
}

func (p *Parser) match(tts ...lexer.TokenType) bool {
	for _, tt := range tts {
		if p.check(tt) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(tt lexer.TokenType, msg string) (lexer.Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	cur := p.peek()
	return cur, newSyntaxError(cur.Line, cur.Column, msg)
}

// consumeSemi implements automatic semicolon insertion (spec §4.5): an
// explicit `;` is consumed if present; otherwise ASI fires silently when
// the next token is preceded by a newline, is `}`, or is EOF.
func (p *Parser) consumeSemi() error {
	if p.match(lexer.SEMI) {
		return nil
	}
	if p.isAtEnd() || p.check(lexer.RBRACE) || p.peek().NewlineBefore {
		return nil
	}
	cur := p.peek()
	return newSyntaxError(cur.Line, cur.Column, fmt.Sprintf("unexpected token %q, expected ';'", cur.Lexeme))
}

// node starts a new AST node, stamping a line number only when it differs
// from the last one stamped — the same "only when it changes" policy
// spec §3.5 describes for keeping line tables compact.
func (p *Parser) node(tag ast.Tag) int {
	line := 0
	cur := p.peek().Line
	if cur != p.lastLine {
		line = cur
		p.lastLine = cur
	}
	return p.b.StartNode(tag, line)
}
