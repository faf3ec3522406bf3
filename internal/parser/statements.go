package parser

import (
	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/lexer"
)

func (p *Parser) declaration() (int, error) {
	if p.match(lexer.VAR) {
		return p.varDeclaration()
	}
	if p.match(lexer.FUNCTION) {
		return p.functionDeclaration()
	}
	return p.statement()
}

// varDeclaration parses `var a = 1, b, c = 3;`. Each binding becomes its
// own VarDecl node; the SkipVarNext slot is reserved per spec §4.3's node
// layout but left self-referential (see DESIGN.md) — internal/compiler
// hoists declarations by walking the tree for VarDecl/FuncDecl tags
// within the enclosing function scope rather than following a
// parser-maintained chain.
func (p *Parser) varDeclaration() (int, error) {
	first := -1
	for {
		nameTok, err := p.consume(lexer.IDENT, "expected variable name")
		if err != nil {
			return -1, err
		}
		pos := p.node(ast.VarDecl)
		p.b.WriteInline(pos, []byte(nameTok.Lexeme))
		if first == -1 {
			first = pos
		}
		if p.match(lexer.ASSIGN) {
			init, err := p.assignExpr()
			if err != nil {
				return -1, err
			}
			_ = init
		} else {
			p.undefinedLit()
		}
		p.b.SetSkip(pos, ast.SkipVarNext, pos)
		p.b.End(pos)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	if err := p.consumeSemi(); err != nil {
		return -1, err
	}
	return first, nil
}

// functionDeclaration parses `function name(params) { body }`. Parameters
// are emitted as Ident children before the FuncBody skip; statements
// follow after it — spec §3.5's FuncDecl shape.
func (p *Parser) functionDeclaration() (int, error) {
	nameTok, err := p.consume(lexer.IDENT, "expected function name")
	if err != nil {
		return -1, err
	}
	return p.functionRest(nameTok.Lexeme)
}

func (p *Parser) functionRest(name string) (int, error) {
	pos := p.node(ast.FuncDecl)
	p.b.WriteInline(pos, []byte(name))
	p.b.SetSkip(pos, ast.SkipVarNext, pos)

	if _, err := p.consume(lexer.LPAREN, "expected '(' after function name"); err != nil {
		return -1, err
	}
	if !p.check(lexer.RPAREN) {
		for {
			paramTok, err := p.consume(lexer.IDENT, "expected parameter name")
			if err != nil {
				return -1, err
			}
			paramPos := p.node(ast.Ident)
			p.b.WriteInline(paramPos, []byte(paramTok.Lexeme))
			p.b.End(paramPos)
			if !p.match(lexer.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(lexer.RPAREN, "expected ')' after parameter list"); err != nil {
		return -1, err
	}
	p.b.SetSkip(pos, ast.SkipFuncBody, p.b.Pos())

	if _, err := p.consume(lexer.LBRACE, "expected '{' before function body"); err != nil {
		return -1, err
	}
	for !p.check(lexer.RBRACE) && !p.isAtEnd() {
		if _, err := p.declaration(); err != nil {
			return -1, err
		}
	}
	if _, err := p.consume(lexer.RBRACE, "expected '}' after function body"); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

func (p *Parser) statement() (int, error) {
	switch {
	case p.match(lexer.LBRACE):
		return p.block()
	case p.match(lexer.IF):
		return p.ifStatement()
	case p.match(lexer.WHILE):
		return p.whileStatement()
	case p.match(lexer.DO):
		return p.doWhileStatement()
	case p.match(lexer.FOR):
		return p.forStatement()
	case p.match(lexer.BREAK):
		return p.simpleJump(ast.Break)
	case p.match(lexer.CONTINUE):
		return p.simpleJump(ast.Continue)
	case p.match(lexer.RETURN):
		return p.returnStatement()
	case p.match(lexer.THROW):
		return p.throwStatement()
	case p.match(lexer.TRY):
		return p.tryStatement()
	case p.match(lexer.SWITCH):
		return p.switchStatement()
	case p.match(lexer.WITH):
		return p.withStatement()
	case p.match(lexer.SEMI):
		pos := p.node(ast.Empty)
		p.b.End(pos)
		return pos, nil
	}
	return p.expressionStatement()
}

func (p *Parser) block() (int, error) {
	pos := p.node(ast.Block)
	for !p.check(lexer.RBRACE) && !p.isAtEnd() {
		if _, err := p.declaration(); err != nil {
			return -1, err
		}
	}
	if _, err := p.consume(lexer.RBRACE, "expected '}' to close block"); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

func (p *Parser) ifStatement() (int, error) {
	pos := p.node(ast.If)
	if _, err := p.consume(lexer.LPAREN, "expected '(' after 'if'"); err != nil {
		return -1, err
	}
	if _, err := p.expression(); err != nil {
		return -1, err
	}
	if _, err := p.consume(lexer.RPAREN, "expected ')' after if condition"); err != nil {
		return -1, err
	}
	if _, err := p.statement(); err != nil {
		return -1, err
	}
	p.b.SetSkip(pos, ast.SkipIfTrueEnd, p.b.Pos())
	if p.match(lexer.ELSE) {
		if _, err := p.statement(); err != nil {
			return -1, err
		}
	}
	p.b.End(pos)
	return pos, nil
}

func (p *Parser) whileStatement() (int, error) {
	pos := p.node(ast.While)
	if _, err := p.consume(lexer.LPAREN, "expected '(' after 'while'"); err != nil {
		return -1, err
	}
	if _, err := p.expression(); err != nil {
		return -1, err
	}
	if _, err := p.consume(lexer.RPAREN, "expected ')' after while condition"); err != nil {
		return -1, err
	}
	if _, err := p.statement(); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

// withStatement parses `with (expr) statement` (spec §4.4/§4.7). Shaped
// exactly like whileStatement's single-condition, single-body layout — With
// just never loops back, so it needs no TRY_PUSH_LOOP-style jump target.
func (p *Parser) withStatement() (int, error) {
	pos := p.node(ast.With)
	if _, err := p.consume(lexer.LPAREN, "expected '(' after 'with'"); err != nil {
		return -1, err
	}
	if _, err := p.expression(); err != nil {
		return -1, err
	}
	if _, err := p.consume(lexer.RPAREN, "expected ')' after with expression"); err != nil {
		return -1, err
	}
	if _, err := p.statement(); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

func (p *Parser) doWhileStatement() (int, error) {
	pos := p.node(ast.DoWhile)
	if _, err := p.statement(); err != nil {
		return -1, err
	}
	p.b.SetSkip(pos, ast.SkipDoWhileCond, p.b.Pos())
	if _, err := p.consume(lexer.WHILE, "expected 'while' after do-block"); err != nil {
		return -1, err
	}
	if _, err := p.consume(lexer.LPAREN, "expected '(' after 'while'"); err != nil {
		return -1, err
	}
	if _, err := p.expression(); err != nil {
		return -1, err
	}
	if _, err := p.consume(lexer.RPAREN, "expected ')' after while condition"); err != nil {
		return -1, err
	}
	if err := p.consumeSemi(); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

// forStatement parses both `for(init;cond;update)` and `for(lhs in obj)`.
// It starts by assuming the C-style form, then — on discovering `in` right
// after the initializer — promotes the node in place via ast.ModifyTag,
// the mechanism spec §4.4 names for this exact ambiguity.
func (p *Parser) forStatement() (int, error) {
	pos := p.node(ast.For)
	if _, err := p.consume(lexer.LPAREN, "expected '(' after 'for'"); err != nil {
		return -1, err
	}

	hasInit := !p.check(lexer.SEMI)
	if hasInit {
		if p.match(lexer.VAR) {
			nameTok, err := p.consume(lexer.IDENT, "expected variable name")
			if err != nil {
				return -1, err
			}
			if p.match(lexer.IN) {
				return p.finishForIn(pos, nameTok.Lexeme)
			}
			declPos := p.node(ast.VarDecl)
			p.b.WriteInline(declPos, []byte(nameTok.Lexeme))
			if p.match(lexer.ASSIGN) {
				if _, err := p.assignExpr(); err != nil {
					return -1, err
				}
			} else {
				p.undefinedLit()
			}
			p.b.SetSkip(declPos, ast.SkipVarNext, declPos)
			p.b.End(declPos)
		} else if p.check(lexer.IDENT) && p.checkNext(lexer.IN) {
			nameTok := p.advance()
			p.advance() // consume 'in'
			return p.finishForIn(pos, nameTok.Lexeme)
		} else if _, err := p.expression(); err != nil {
			return -1, err
		}
	} else {
		p.nopLit()
	}
	if _, err := p.consume(lexer.SEMI, "expected ';' after for-loop initializer"); err != nil {
		return -1, err
	}

	if !p.check(lexer.SEMI) {
		if _, err := p.expression(); err != nil {
			return -1, err
		}
	} else {
		p.nopLit()
	}
	if _, err := p.consume(lexer.SEMI, "expected ';' after for-loop condition"); err != nil {
		return -1, err
	}

	if !p.check(lexer.RPAREN) {
		if _, err := p.expression(); err != nil {
			return -1, err
		}
	} else {
		p.nopLit()
	}
	if _, err := p.consume(lexer.RPAREN, "expected ')' after for-loop clauses"); err != nil {
		return -1, err
	}

	p.b.SetSkip(pos, ast.SkipForBody, p.b.Pos())
	if _, err := p.statement(); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

// finishForIn completes `for (var name in obj) body` or
// `for (name in obj) body` once the `in` keyword has been recognized,
// promoting pos from For to ForIn. Both forms produce an identical plain
// Ident lhs node — an undeclared name becomes an implicit global the
// first time SET_VAR assigns it, the same sloppy-mode rule any bare
// assignment follows, so there is no var-vs-bare distinction left for
// the compiler to make.
func (p *Parser) finishForIn(pos int, name string) (int, error) {
	p.b.ModifyTag(pos, ast.ForIn)
	lhsPos := p.node(ast.Ident)
	p.b.WriteInline(lhsPos, []byte(name))
	p.b.End(lhsPos)

	if _, err := p.expression(); err != nil {
		return -1, err
	}
	if _, err := p.consume(lexer.RPAREN, "expected ')' after for-in object"); err != nil {
		return -1, err
	}
	p.b.SetSkip(pos, ast.SkipForBody, p.b.Pos())
	if _, err := p.statement(); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

// simpleJump parses `break;` / `continue;`. Labeled break/continue are not
// supported (scope reduction noted in DESIGN.md).
func (p *Parser) simpleJump(tag ast.Tag) (int, error) {
	pos := p.node(tag)
	if err := p.consumeSemi(); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

func (p *Parser) returnStatement() (int, error) {
	pos := p.node(ast.Return)
	if p.check(lexer.SEMI) || p.check(lexer.RBRACE) || p.isAtEnd() || p.peek().NewlineBefore {
		p.undefinedLit()
	} else if _, err := p.expression(); err != nil {
		return -1, err
	}
	if err := p.consumeSemi(); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

func (p *Parser) throwStatement() (int, error) {
	pos := p.node(ast.Throw)
	if _, err := p.expression(); err != nil {
		return -1, err
	}
	if err := p.consumeSemi(); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

// tryStatement parses `try { } catch (e) { } finally { }`, either clause
// optional but at least one required. SkipTryCatch/SkipTryFinally mark
// where each optional clause begins, per spec §3.5's Try shape.
func (p *Parser) tryStatement() (int, error) {
	pos := p.node(ast.Try)
	if _, err := p.consume(lexer.LBRACE, "expected '{' after 'try'"); err != nil {
		return -1, err
	}
	if _, err := p.blockBody(); err != nil {
		return -1, err
	}

	p.b.SetSkip(pos, ast.SkipTryCatch, p.b.Pos())
	hasCatch := false
	if p.match(lexer.CATCH) {
		hasCatch = true
		if _, err := p.consume(lexer.LPAREN, "expected '(' after 'catch'"); err != nil {
			return -1, err
		}
		nameTok, err := p.consume(lexer.IDENT, "expected catch parameter name")
		if err != nil {
			return -1, err
		}
		if _, err := p.consume(lexer.RPAREN, "expected ')' after catch parameter"); err != nil {
			return -1, err
		}
		identPos := p.node(ast.Ident)
		p.b.WriteInline(identPos, []byte(nameTok.Lexeme))
		p.b.End(identPos)
		if _, err := p.consume(lexer.LBRACE, "expected '{' after catch clause"); err != nil {
			return -1, err
		}
		if _, err := p.blockBody(); err != nil {
			return -1, err
		}
	}

	p.b.SetSkip(pos, ast.SkipTryFinally, p.b.Pos())
	hasFinally := false
	if p.match(lexer.FINALLY) {
		hasFinally = true
		if _, err := p.consume(lexer.LBRACE, "expected '{' after 'finally'"); err != nil {
			return -1, err
		}
		if _, err := p.blockBody(); err != nil {
			return -1, err
		}
	}
	if !hasCatch && !hasFinally {
		cur := p.previous()
		return -1, newSyntaxError(cur.Line, cur.Column, "missing catch or finally after try block")
	}
	p.b.End(pos)
	return pos, nil
}

// blockBody parses statements up to (and consuming) a closing '}'.
func (p *Parser) blockBody() (int, error) {
	for !p.check(lexer.RBRACE) && !p.isAtEnd() {
		if _, err := p.declaration(); err != nil {
			return -1, err
		}
	}
	return p.consume(lexer.RBRACE, "expected '}'")
}

func (p *Parser) switchStatement() (int, error) {
	pos := p.node(ast.Switch)
	if _, err := p.consume(lexer.LPAREN, "expected '(' after 'switch'"); err != nil {
		return -1, err
	}
	if _, err := p.expression(); err != nil {
		return -1, err
	}
	if _, err := p.consume(lexer.RPAREN, "expected ')' after switch discriminant"); err != nil {
		return -1, err
	}
	if _, err := p.consume(lexer.LBRACE, "expected '{' to open switch body"); err != nil {
		return -1, err
	}

	p.b.SetSkip(pos, ast.SkipSwitchDefault, pos) // no default seen yet; sentinel = self
	for !p.check(lexer.RBRACE) && !p.isAtEnd() {
		casePos := p.node(ast.Case)
		if p.match(lexer.CASE) {
			if _, err := p.expression(); err != nil {
				return -1, err
			}
		} else if p.match(lexer.DEFAULT) {
			p.nopLit()
			p.b.SetSkip(pos, ast.SkipSwitchDefault, casePos)
		} else {
			cur := p.peek()
			return -1, newSyntaxError(cur.Line, cur.Column, "expected 'case' or 'default'")
		}
		if _, err := p.consume(lexer.COLON, "expected ':' after case label"); err != nil {
			return -1, err
		}
		for !p.check(lexer.CASE) && !p.check(lexer.DEFAULT) && !p.check(lexer.RBRACE) && !p.isAtEnd() {
			if _, err := p.declaration(); err != nil {
				return -1, err
			}
		}
		p.b.End(casePos)
	}
	if _, err := p.consume(lexer.RBRACE, "expected '}' to close switch body"); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

func (p *Parser) expressionStatement() (int, error) {
	pos := p.node(ast.ExprStmt)
	if _, err := p.expression(); err != nil {
		return -1, err
	}
	if err := p.consumeSemi(); err != nil {
		return -1, err
	}
	p.b.End(pos)
	return pos, nil
}

// --- small helpers for emitting placeholder leaf nodes ---

func (p *Parser) undefinedLit() int {
	pos := p.b.StartNode(ast.UndefinedLit, 0)
	p.b.End(pos)
	return pos
}

func (p *Parser) nopLit() int {
	pos := p.b.StartNode(ast.Nop, 0)
	p.b.End(pos)
	return pos
}
