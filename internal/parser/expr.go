package parser

import (
	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/lexer"
)

// expression is the entry point for a full expression, including the
// comma operator — spec §4.4's Sequence node, lowest precedence of all.
func (p *Parser) expression() (int, error) {
	first, err := p.assignExpr()
	if err != nil {
		return -1, err
	}
	if !p.check(lexer.COMMA) {
		return first, nil
	}
	return p.buildSequence(first)
}

// buildSequence wraps an already-parsed first operand in a Sequence node
// once a comma reveals one is needed, via InsertBefore, then parses the
// remaining comma-separated operands as open-ended children.
func (p *Parser) buildSequence(first int) (int, error) {
	seqPos := p.b.InsertBefore(first, ast.Sequence)
	for p.match(lexer.COMMA) {
		if _, err := p.assignExpr(); err != nil {
			return -1, err
		}
	}
	p.b.End(seqPos)
	return seqPos, nil
}

// assignExpr parses assignment, including compound assignment operators,
// right-associatively: `a = b = c` parses as `a = (b = c)`.
func (p *Parser) assignExpr() (int, error) {
	if err := p.enter(); err != nil {
		return -1, err
	}
	defer p.leave()

	left, err := p.conditional()
	if err != nil {
		return -1, err
	}
	op := ""
	switch {
	case p.check(lexer.ASSIGN):
		op = "="
	case p.check(lexer.PLUS_EQ):
		op = "+="
	case p.check(lexer.MINUS_EQ):
		op = "-="
	case p.check(lexer.STAR_EQ):
		op = "*="
	case p.check(lexer.SLASH_EQ):
		op = "/="
	case p.check(lexer.PERCENT_EQ):
		op = "%="
	default:
		return left, nil
	}
	tag := p.tagOf(left)
	if tag != ast.Ident && tag != ast.Member && tag != ast.Index {
		cur := p.peek()
		return -1, newSyntaxError(cur.Line, cur.Column, "invalid assignment target")
	}
	p.advance() // consume the assignment operator

	assignPos := p.b.InsertBefore(left, ast.Assign)
	p.b.WriteInline(assignPos, []byte(op))
	if _, err := p.assignExpr(); err != nil {
		return -1, err
	}
	p.b.End(assignPos)
	return assignPos, nil
}

func (p *Parser) tagOf(pos int) ast.Tag {
	return p.b.TagAt(pos)
}

// conditional parses the ternary `a ? b : c` operator.
func (p *Parser) conditional() (int, error) {
	test, err := p.logicalOr()
	if err != nil {
		return -1, err
	}
	if !p.match(lexer.QUESTION) {
		return test, nil
	}
	condPos := p.b.InsertBefore(test, ast.Conditional)
	if _, err := p.assignExpr(); err != nil {
		return -1, err
	}
	if _, err := p.consume(lexer.COLON, "expected ':' in conditional expression"); err != nil {
		return -1, err
	}
	if _, err := p.assignExpr(); err != nil {
		return -1, err
	}
	p.b.End(condPos)
	return condPos, nil
}

func (p *Parser) binaryLevel(next func() (int, error), tagFor func(lexer.TokenType) (ast.Tag, string, bool)) (int, error) {
	left, err := next()
	if err != nil {
		return -1, err
	}
	for {
		tag, op, ok := tagFor(p.peek().Type)
		if !ok {
			return left, nil
		}
		p.advance()
		nodePos := p.b.InsertBefore(left, tag)
		p.b.WriteInline(nodePos, []byte(op))
		if _, err := next(); err != nil {
			return -1, err
		}
		p.b.End(nodePos)
		left = nodePos
	}
}

func (p *Parser) logicalOr() (int, error) {
	return p.binaryLevel(p.logicalAnd, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if tt == lexer.OR_OR {
			return ast.Logical, "||", true
		}
		return 0, "", false
	})
}

func (p *Parser) logicalAnd() (int, error) {
	return p.binaryLevel(p.bitOr, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if tt == lexer.AND_AND {
			return ast.Logical, "&&", true
		}
		return 0, "", false
	})
}

func (p *Parser) bitOr() (int, error) {
	return p.binaryLevel(p.bitXor, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if tt == lexer.BIT_OR {
			return ast.Binary, "|", true
		}
		return 0, "", false
	})
}

func (p *Parser) bitXor() (int, error) {
	return p.binaryLevel(p.bitAnd, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if tt == lexer.BIT_XOR {
			return ast.Binary, "^", true
		}
		return 0, "", false
	})
}

func (p *Parser) bitAnd() (int, error) {
	return p.binaryLevel(p.equality, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if tt == lexer.BIT_AND {
			return ast.Binary, "&", true
		}
		return 0, "", false
	})
}

var equalityOps = map[lexer.TokenType]string{
	lexer.EQ: "==", lexer.NEQ: "!=", lexer.SEQ: "===", lexer.SNEQ: "!==",
}

func (p *Parser) equality() (int, error) {
	return p.binaryLevel(p.relational, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if op, ok := equalityOps[tt]; ok {
			return ast.Binary, op, true
		}
		return 0, "", false
	})
}

var relationalOps = map[lexer.TokenType]string{
	lexer.LT: "<", lexer.LTE: "<=", lexer.GT: ">", lexer.GTE: ">=",
	lexer.INSTOF: "instanceof", lexer.IN: "in",
}

func (p *Parser) relational() (int, error) {
	return p.binaryLevel(p.shift, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if op, ok := relationalOps[tt]; ok {
			return ast.Binary, op, true
		}
		return 0, "", false
	})
}

var shiftOps = map[lexer.TokenType]string{
	lexer.SHL: "<<", lexer.SHR: ">>", lexer.USHR: ">>>",
}

func (p *Parser) shift() (int, error) {
	return p.binaryLevel(p.additive, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if op, ok := shiftOps[tt]; ok {
			return ast.Binary, op, true
		}
		return 0, "", false
	})
}

var additiveOps = map[lexer.TokenType]string{lexer.PLUS: "+", lexer.MINUS: "-"}

func (p *Parser) additive() (int, error) {
	return p.binaryLevel(p.multiplicative, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if op, ok := additiveOps[tt]; ok {
			return ast.Binary, op, true
		}
		return 0, "", false
	})
}

var multiplicativeOps = map[lexer.TokenType]string{
	lexer.STAR: "*", lexer.SLASH: "/", lexer.PERCENT: "%",
}

func (p *Parser) multiplicative() (int, error) {
	return p.binaryLevel(p.unary, func(tt lexer.TokenType) (ast.Tag, string, bool) {
		if op, ok := multiplicativeOps[tt]; ok {
			return ast.Binary, op, true
		}
		return 0, "", false
	})
}

var unaryOps = map[lexer.TokenType]string{
	lexer.BANG: "!", lexer.BIT_NOT: "~", lexer.MINUS: "-", lexer.PLUS: "+",
	lexer.TYPEOF: "typeof", lexer.VOID: "void", lexer.DELETE: "delete",
}

// unary parses prefix operators, including prefix ++/--, then defers to
// postfix for the ++/-- suffix forms.
func (p *Parser) unary() (int, error) {
	if err := p.enter(); err != nil {
		return -1, err
	}
	defer p.leave()

	if op, ok := unaryOps[p.peek().Type]; ok {
		p.advance()
		pos := p.node(ast.Unary)
		p.b.WriteInline(pos, []byte(op))
		if _, err := p.unary(); err != nil {
			return -1, err
		}
		p.b.End(pos)
		return pos, nil
	}
	if p.check(lexer.PLUSPLUS) || p.check(lexer.MINUSMINUS) {
		op := "++"
		if p.peek().Type == lexer.MINUSMINUS {
			op = "--"
		}
		p.advance()
		pos := p.node(ast.Update)
		p.b.WriteInline(pos, []byte{opByte(op), 1})
		if _, err := p.unary(); err != nil {
			return -1, err
		}
		p.b.End(pos)
		return pos, nil
	}
	return p.postfix()
}

func opByte(op string) byte {
	if op == "++" {
		return '+'
	}
	return '-'
}

// postfix parses the postfix ++/-- forms, which bind tighter than prefix
// unary operators but looser than call/member expressions.
func (p *Parser) postfix() (int, error) {
	expr, err := p.callExpr()
	if err != nil {
		return -1, err
	}
	if p.peek().NewlineBefore {
		return expr, nil // ASI forbids a postfix operator across a line break
	}
	if p.check(lexer.PLUSPLUS) || p.check(lexer.MINUSMINUS) {
		op := byte('+')
		if p.peek().Type == lexer.MINUSMINUS {
			op = '-'
		}
		p.advance()
		pos := p.b.InsertBefore(expr, ast.Update)
		p.b.WriteInline(pos, []byte{op, 0})
		p.b.End(pos)
		return pos, nil
	}
	return expr, nil
}

// callExpr parses member access, indexing, calls, and `new`, left to
// right: `new Foo().bar[0]()`.
func (p *Parser) callExpr() (int, error) {
	var expr int
	var err error
	if p.match(lexer.NEW) {
		expr, err = p.newExpr()
	} else {
		expr, err = p.primary()
	}
	if err != nil {
		return -1, err
	}
	for {
		switch {
		case p.match(lexer.DOT):
			name, err := p.propertyKey()
			if err != nil {
				return -1, err
			}
			pos := p.b.InsertBefore(expr, ast.Member)
			p.b.WriteInline(pos, []byte(name))
			p.b.End(pos)
			expr = pos
		case p.match(lexer.LBRACKET):
			pos := p.b.InsertBefore(expr, ast.Index)
			if _, err := p.expression(); err != nil {
				return -1, err
			}
			if _, err := p.consume(lexer.RBRACKET, "expected ']' after index expression"); err != nil {
				return -1, err
			}
			p.b.End(pos)
			expr = pos
		case p.match(lexer.LPAREN):
			pos := p.b.InsertBefore(expr, ast.Call)
			if err := p.argumentList(); err != nil {
				return -1, err
			}
			p.b.End(pos)
			expr = pos
		default:
			return expr, nil
		}
	}
}

// newExpr parses `new Callee(args)`, defaulting to no arguments if the
// constructor call has no parenthesized argument list.
func (p *Parser) newExpr() (int, error) {
	var callee int
	var err error
	if p.match(lexer.NEW) {
		callee, err = p.newExpr()
	} else {
		callee, err = p.primary()
	}
	if err != nil {
		return -1, err
	}
	for p.match(lexer.DOT) {
		name, err := p.propertyKey()
		if err != nil {
			return -1, err
		}
		pos := p.b.InsertBefore(callee, ast.Member)
		p.b.WriteInline(pos, []byte(name))
		p.b.End(pos)
		callee = pos
	}
	pos := p.b.InsertBefore(callee, ast.New)
	if p.match(lexer.LPAREN) {
		if err := p.argumentList(); err != nil {
			return -1, err
		}
	}
	p.b.End(pos)
	return pos, nil
}

// argumentList parses a parenthesized, comma-separated argument list,
// consuming the closing ')'. The caller has already consumed '('.
func (p *Parser) argumentList() error {
	if !p.check(lexer.RPAREN) {
		for {
			if _, err := p.assignExpr(); err != nil {
				return err
			}
			if !p.match(lexer.COMMA) {
				break
			}
		}
	}
	_, err := p.consume(lexer.RPAREN, "expected ')' after argument list")
	return err
}

// primary parses the terminal forms: literals, identifiers, grouping,
// array/object literals, and function expressions.
func (p *Parser) primary() (int, error) {
	tok := p.peek()
	switch {
	case p.match(lexer.NUMBER):
		pos := p.node(ast.NumberLit)
		p.b.WriteInline(pos, []byte(tok.Lexeme))
		p.b.End(pos)
		return pos, nil
	case p.match(lexer.STRING):
		pos := p.node(ast.StringLit)
		p.b.WriteInline(pos, []byte(tok.Literal.(string)))
		p.b.End(pos)
		return pos, nil
	case p.match(lexer.REGEXP):
		pos := p.node(ast.RegexpLit)
		p.b.WriteInline(pos, []byte(tok.Lexeme))
		p.b.End(pos)
		return pos, nil
	case p.match(lexer.TRUETOK), p.match(lexer.FALSETOK):
		pos := p.node(ast.BoolLit)
		val := byte(0)
		if tok.Type == lexer.TRUETOK {
			val = 1
		}
		p.b.WriteInline(pos, []byte{val})
		p.b.End(pos)
		return pos, nil
	case p.match(lexer.NULLTOK):
		pos := p.node(ast.NullLit)
		p.b.End(pos)
		return pos, nil
	case p.match(lexer.THIS):
		pos := p.node(ast.ThisExpr)
		p.b.End(pos)
		return pos, nil
	case p.match(lexer.IDENT):
		pos := p.node(ast.Ident)
		p.b.WriteInline(pos, []byte(tok.Lexeme))
		p.b.End(pos)
		return pos, nil
	case p.match(lexer.FUNCTION):
		name := ""
		if p.check(lexer.IDENT) {
			name = p.advance().Lexeme
		}
		return p.functionRest(name)
	case p.match(lexer.LPAREN):
		expr, err := p.expression()
		if err != nil {
			return -1, err
		}
		if _, err := p.consume(lexer.RPAREN, "expected ')' to close grouped expression"); err != nil {
			return -1, err
		}
		return expr, nil
	case p.match(lexer.LBRACKET):
		return p.arrayLiteral()
	case p.match(lexer.LBRACE):
		return p.objectLiteral()
	}
	return -1, newSyntaxError(tok.Line, tok.Column, "unexpected token "+string(tok.Type))
}

func (p *Parser) arrayLiteral() (int, error) {
	pos := p.node(ast.ArrayLit)
	for !p.check(lexer.RBRACKET) && !p.isAtEnd() {
		if p.check(lexer.COMMA) {
			p.undefinedLit() // elision: `[1,,3]`
		} else if _, err := p.assignExpr(); err != nil {
			return -1, err
		}
		if !p.match(lexer.COMMA) {
			break
		}
	}
	if _, err := p.consume(lexer.RBRACKET, "expected ']' to close array literal"); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

// objectLiteral parses `{ key: value, ... }`, including ES5 accessor
// properties (`get name() {}` / `set name(v) {}`), encoded as an
// ObjectProp whose inline key is prefixed with "get "/"set " — a
// pragmatic encoding documented in DESIGN.md rather than a dedicated tag,
// since accessors are a minority case of the general property shape.
func (p *Parser) objectLiteral() (int, error) {
	pos := p.node(ast.ObjectLit)
	for !p.check(lexer.RBRACE) && !p.isAtEnd() {
		keyTok := p.peek()
		accessorKind := ""
		if (keyTok.Lexeme == "get" || keyTok.Lexeme == "set") && keyTok.Type == lexer.IDENT {
			save := p.pos
			p.advance()
			if !p.check(lexer.COLON) && !p.check(lexer.COMMA) && !p.check(lexer.RBRACE) {
				accessorKind = keyTok.Lexeme
				keyTok = p.peek()
			} else {
				p.pos = save
			}
		}
		key, err := p.propertyKey()
		if err != nil {
			return -1, err
		}
		propPos := p.node(ast.ObjectProp)
		if accessorKind != "" {
			p.b.WriteInline(propPos, []byte(accessorKind+" "+key))
			if _, err := p.functionRest(""); err != nil {
				return -1, err
			}
		} else {
			p.b.WriteInline(propPos, []byte(key))
			if _, err := p.consume(lexer.COLON, "expected ':' after property key"); err != nil {
				return -1, err
			}
			if _, err := p.assignExpr(); err != nil {
				return -1, err
			}
		}
		p.b.End(propPos)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	if _, err := p.consume(lexer.RBRACE, "expected '}' to close object literal"); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

// propertyKey accepts an identifier, string, number, or reserved word as
// an object literal key — spec §4.4's "reserved words as property names".
func (p *Parser) propertyKey() (string, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.IDENT, lexer.STRING:
		p.advance()
		if tok.Type == lexer.STRING {
			return tok.Literal.(string), nil
		}
		return tok.Lexeme, nil
	case lexer.NUMBER:
		p.advance()
		return tok.Lexeme, nil
	}
	if tok.Type != "" && tok.Lexeme != "" {
		// any keyword token is also acceptable as a property name
		p.advance()
		return tok.Lexeme, nil
	}
	return "", newSyntaxError(tok.Line, tok.Column, "expected property name")
}
