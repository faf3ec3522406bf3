package compiler

import (
	"fmt"
	"strconv"

	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/bcode"
	"github.com/informatter/v7go/internal/value"
)

// compileExpr lowers one expression-shaped node, leaving exactly one value
// on the stack — the generalization of the teacher's VisitBinary/VisitUnary/
// VisitLiteral/... family (ast_compiler.go) to a tag switch over positions.
func (c *Compiler) compileExpr(tree *ast.Tree, pos int, fs *funcState) error {
	switch tree.Tag(pos) {
	case ast.NumberLit:
		return c.compileNumberLit(tree, pos, fs)
	case ast.StringLit:
		lit := c.heap.MkString(tree.Inline(pos), true)
		fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(lit))
		return nil
	case ast.BoolLit:
		if tree.Inline(pos)[0] != 0 {
			fs.b.Emit(bcode.PUSH_TRUE)
		} else {
			fs.b.Emit(bcode.PUSH_FALSE)
		}
		return nil
	case ast.NullLit:
		fs.b.Emit(bcode.PUSH_NULL)
		return nil
	case ast.UndefinedLit:
		fs.b.Emit(bcode.PUSH_UNDEFINED)
		return nil
	case ast.ThisExpr:
		fs.b.Emit(bcode.PUSH_THIS)
		return nil
	case ast.Ident:
		idx := fs.nameIndex(string(tree.Inline(pos)))
		fs.b.Emit(bcode.GET_VAR, idx)
		return nil
	case ast.RegexpLit:
		return c.compileRegexpLit(tree, pos, fs)
	case ast.ArrayLit:
		return c.compileArrayLit(tree, pos, fs)
	case ast.ObjectLit:
		return c.compileObjectLit(tree, pos, fs)
	case ast.FuncDecl:
		child, err := c.compileFunction(tree, pos, fs.strict)
		if err != nil {
			return err
		}
		fs.b.Emit(bcode.FUNC_LIT, fs.b.AddFunction(child))
		return nil
	case ast.Member:
		if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(c.heap.MkString(tree.Inline(pos), true)))
		fs.b.Emit(bcode.GET)
		return nil
	case ast.Index:
		if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
			return err
		}
		if err := c.compileExpr(tree, tree.Subtree(pos, 1), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.GET)
		return nil
	case ast.Call:
		return c.compileCall(tree, pos, fs)
	case ast.New:
		return c.compileNew(tree, pos, fs)
	case ast.Unary:
		return c.compileUnary(tree, pos, fs)
	case ast.Update:
		return c.compileUpdate(tree, pos, fs)
	case ast.Binary:
		return c.compileBinary(tree, pos, fs)
	case ast.Logical:
		return c.compileLogical(tree, pos, fs)
	case ast.Assign:
		return c.compileAssign(tree, pos, fs)
	case ast.Conditional:
		return c.compileConditional(tree, pos, fs)
	case ast.Sequence:
		return c.compileSequence(tree, pos, fs)
	}
	return unsupported(tree, pos)
}

func (c *Compiler) compileNumberLit(tree *ast.Tree, pos int, fs *funcState) error {
	text := string(tree.Inline(pos))
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return err
	}
	switch f {
	case 0:
		fs.b.Emit(bcode.PUSH_ZERO)
	case 1:
		fs.b.Emit(bcode.PUSH_ONE)
	default:
		fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(value.Number(f)))
	}
	return nil
}

// compileRegexpLit lowers a /pattern/flags literal to the equivalent of
// `new RegExp("pattern", "flags")`, since the literal table holds only
// plain numbers and strings, never an object-arena value, and a regexp is
// an object-arena allocation like any other constructed value.
func (c *Compiler) compileRegexpLit(tree *ast.Tree, pos int, fs *funcState) error {
	text := string(tree.Inline(pos))
	lastSlash := -1
	for i := len(text) - 1; i > 0; i-- {
		if text[i] == '/' {
			lastSlash = i
			break
		}
	}
	pattern := text[1:lastSlash]
	flags := text[lastSlash+1:]

	idx := fs.nameIndex("RegExp")
	fs.b.Emit(bcode.GET_VAR, idx)
	fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(c.heap.MkString([]byte(pattern), true)))
	fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(c.heap.MkString([]byte(flags), true)))
	fs.b.Emit(bcode.NEW, 2)
	return nil
}

// compileArrayLit lowers `[a, b, c]` by creating an array then assigning
// each element by index, reusing the generic property-SET machinery
// rather than a dedicated append opcode.
func (c *Compiler) compileArrayLit(tree *ast.Tree, pos int, fs *funcState) error {
	fs.b.Emit(bcode.CREATE_ARR)
	for i, el := range tree.Children(pos) {
		fs.b.Emit(bcode.DUP)
		fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(value.Number(float64(i))))
		if err := c.compileExpr(tree, el, fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.SET)
	}
	return nil
}

// compileObjectLit lowers `{ k: v, ... }`. Accessor properties (whose
// inline key carries the parser's "get "/"set " prefix, see
// internal/parser/expr.go's objectLiteral) are installed as plain data
// properties holding the accessor function — a simplification documented
// in DESIGN.md: this repo's object model doesn't yet carry distinct
// getter/setter slots, so `get`/`set` currently behave like a regular
// method named by the accessor's key.
func (c *Compiler) compileObjectLit(tree *ast.Tree, pos int, fs *funcState) error {
	fs.b.Emit(bcode.CREATE_OBJ)
	for _, prop := range tree.Children(pos) {
		fs.b.Emit(bcode.DUP)
		key := string(tree.Inline(prop))
		for _, prefix := range []string{"get ", "set "} {
			if len(key) > len(prefix) && key[:len(prefix)] == prefix {
				key = key[len(prefix):]
			}
		}
		fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(c.heap.MkString([]byte(key), true)))
		if err := c.compileExpr(tree, tree.Subtree(prop, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.SET)
	}
	return nil
}

// compileCall lowers callee(args). A Member/Index callee binds `this` to
// the receiver object (obj.method(args)); any other callee form calls with
// `this` as undefined — spec §4.7's non-strict default-this behavior.
func (c *Compiler) compileCall(tree *ast.Tree, pos int, fs *funcState) error {
	callee := tree.Subtree(pos, 0)
	switch tree.Tag(callee) {
	case ast.Member:
		// leaves [this=obj, fn]: DUP keeps one obj as the receiver while
		// the duplicate is consumed by GET to fetch the method value.
		if err := c.compileExpr(tree, tree.Subtree(callee, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.DUP)
		fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(c.heap.MkString(tree.Inline(callee), true)))
		fs.b.Emit(bcode.GET)
	case ast.Index:
		if err := c.compileExpr(tree, tree.Subtree(callee, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.DUP)
		if err := c.compileExpr(tree, tree.Subtree(callee, 1), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.GET)
	default:
		fs.b.Emit(bcode.PUSH_UNDEFINED)
		if err := c.compileExpr(tree, callee, fs); err != nil {
			return err
		}
	}
	args := tree.Children(pos)
	for _, arg := range args {
		if err := c.compileExpr(tree, arg, fs); err != nil {
			return err
		}
	}
	fs.b.Emit(bcode.CALL, len(args))
	return nil
}

func (c *Compiler) compileNew(tree *ast.Tree, pos int, fs *funcState) error {
	if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
		return err
	}
	args := tree.Children(pos)
	for _, arg := range args {
		if err := c.compileExpr(tree, arg, fs); err != nil {
			return err
		}
	}
	fs.b.Emit(bcode.NEW, len(args))
	return nil
}

var unaryOpcodes = map[string]bcode.Opcode{
	"!": bcode.NOT, "~": bcode.BNOT, "-": bcode.NEG, "+": bcode.POS,
	"typeof": bcode.TYPEOF, "void": bcode.VOID,
}

// compileUnary lowers prefix operators. `delete` needs the operand's
// reference shape (Ident vs. Member/Index), so it's handled separately
// from the table-driven operators that just need a value on the stack.
func (c *Compiler) compileUnary(tree *ast.Tree, pos int, fs *funcState) error {
	op := string(tree.Inline(pos))
	operand := tree.Subtree(pos, 0)
	if op == "delete" {
		return c.compileDelete(tree, operand, fs)
	}
	if err := c.compileExpr(tree, operand, fs); err != nil {
		return err
	}
	fs.b.Emit(unaryOpcodes[op])
	return nil
}

// compileDelete lowers `delete operand`. Strict-mode code rejects `delete
// <identifier>` as a compile-time SyntaxError (spec §4.9, ES5 §11.4.1):
// unlike the non-configurable-property TypeError DELETE/deleteProperty
// raises at runtime, this one is a static restriction on the identifier
// form alone, so it's caught here rather than deferred to DELETE_VAR.
func (c *Compiler) compileDelete(tree *ast.Tree, operand int, fs *funcState) error {
	switch tree.Tag(operand) {
	case ast.Ident:
		if fs.strict {
			return fmt.Errorf("compiler: 'delete' of an unqualified identifier is a SyntaxError in strict mode")
		}
		idx := fs.nameIndex(string(tree.Inline(operand)))
		fs.b.Emit(bcode.DELETE_VAR, idx)
	case ast.Member:
		if err := c.compileExpr(tree, tree.Subtree(operand, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(c.heap.MkString(tree.Inline(operand), true)))
		fs.b.Emit(bcode.DELETE)
	case ast.Index:
		if err := c.compileExpr(tree, tree.Subtree(operand, 0), fs); err != nil {
			return err
		}
		if err := c.compileExpr(tree, tree.Subtree(operand, 1), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.DELETE)
	default:
		if err := c.compileExpr(tree, operand, fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.DROP)
		fs.b.Emit(bcode.PUSH_TRUE)
	}
	return nil
}

// compileUpdate lowers prefix/postfix ++/--. See DESIGN.md's control-flow
// opcode stack-effect contract entry for the DUP/STASH/UNSTASH pattern
// that lets a property target preserve the correct pre- or post-increment
// value as the expression's result even though SET itself returns nothing.
func (c *Compiler) compileUpdate(tree *ast.Tree, pos int, fs *funcState) error {
	inline := tree.Inline(pos)
	addOp := bcode.ADD
	if inline[0] == '-' {
		addOp = bcode.SUB
	}
	prefix := inline[1] != 0
	target := tree.Subtree(pos, 0)

	switch tree.Tag(target) {
	case ast.Ident:
		idx := fs.nameIndex(string(tree.Inline(target)))
		fs.b.Emit(bcode.GET_VAR, idx)
		if prefix {
			fs.b.Emit(bcode.PUSH_ONE)
			fs.b.Emit(addOp)
			fs.b.Emit(bcode.SET_VAR, idx)
			return nil
		}
		fs.b.Emit(bcode.DUP)
		fs.b.Emit(bcode.PUSH_ONE)
		fs.b.Emit(addOp)
		fs.b.Emit(bcode.SET_VAR, idx)
		fs.b.Emit(bcode.DROP)
		return nil
	case ast.Member:
		if err := c.compileExpr(tree, tree.Subtree(target, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(c.heap.MkString(tree.Inline(target), true)))
		return c.emitUpdateOnProperty(addOp, prefix, fs)
	case ast.Index:
		if err := c.compileExpr(tree, tree.Subtree(target, 0), fs); err != nil {
			return err
		}
		if err := c.compileExpr(tree, tree.Subtree(target, 1), fs); err != nil {
			return err
		}
		return c.emitUpdateOnProperty(addOp, prefix, fs)
	}
	return unsupported(tree, target)
}

// emitUpdateOnProperty expects [obj, key] on the stack and leaves the
// update's result value (old for postfix, new for prefix) on the stack.
func (c *Compiler) emitUpdateOnProperty(addOp bcode.Opcode, prefix bool, fs *funcState) error {
	fs.b.Emit(bcode.TWO_DUP)
	fs.b.Emit(bcode.GET)
	if !prefix {
		fs.b.Emit(bcode.DUP)
		fs.b.Emit(bcode.STASH)
	}
	fs.b.Emit(bcode.PUSH_ONE)
	fs.b.Emit(addOp)
	if prefix {
		fs.b.Emit(bcode.DUP)
		fs.b.Emit(bcode.STASH)
	}
	fs.b.Emit(bcode.SET)
	fs.b.Emit(bcode.UNSTASH)
	return nil
}

var binaryOpcodes = map[string]bcode.Opcode{
	"+": bcode.ADD, "-": bcode.SUB, "*": bcode.MUL, "/": bcode.DIV, "%": bcode.MOD,
	"|": bcode.BOR, "^": bcode.BXOR, "&": bcode.BAND,
	"<<": bcode.SHL, ">>": bcode.SHR, ">>>": bcode.USHR,
	"<": bcode.LT, "<=": bcode.LE, ">": bcode.GT, ">=": bcode.GE,
	"==": bcode.EQ, "!=": bcode.NE, "===": bcode.EQ_EQ, "!==": bcode.NE_NE,
	"instanceof": bcode.INSTANCEOF, "in": bcode.IN,
}

func (c *Compiler) compileBinary(tree *ast.Tree, pos int, fs *funcState) error {
	op := string(tree.Inline(pos))
	if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
		return err
	}
	if err := c.compileExpr(tree, tree.Subtree(pos, 1), fs); err != nil {
		return err
	}
	opcode, ok := binaryOpcodes[op]
	if !ok {
		return unsupported(tree, pos)
	}
	fs.b.Emit(opcode)
	return nil
}

// compileLogical lowers short-circuiting `&&`/`||` using the peek (not
// pop) semantics of JMP_TRUE/JMP_FALSE: the short-circuited operand's
// value is left in place by the jump itself, so only the non-short-circuit
// path needs an explicit DROP before evaluating the right operand.
func (c *Compiler) compileLogical(tree *ast.Tree, pos int, fs *funcState) error {
	op := string(tree.Inline(pos))
	if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
		return err
	}
	var shortCircuit bcode.Opcode
	if op == "||" {
		shortCircuit = bcode.JMP_TRUE
	} else {
		shortCircuit = bcode.JMP_FALSE
	}
	endJump := fs.b.Emit(shortCircuit, 0)
	fs.b.Emit(bcode.DROP)
	if err := c.compileExpr(tree, tree.Subtree(pos, 1), fs); err != nil {
		return err
	}
	fs.b.PatchJump(endJump, fs.b.Pos())
	return nil
}

// compileAssign lowers `=` and the compound `+=`/`-=`/`*=`/`/=`/`%=`
// operators. Ident targets use SET_VAR's own assignment-as-expression
// return value directly; Member/Index targets route through STASH/UNSTASH
// since the property SET opcode pushes nothing.
func (c *Compiler) compileAssign(tree *ast.Tree, pos int, fs *funcState) error {
	op := string(tree.Inline(pos))
	target := tree.Subtree(pos, 0)
	rhs := tree.Subtree(pos, 1)

	switch tree.Tag(target) {
	case ast.Ident:
		idx := fs.nameIndex(string(tree.Inline(target)))
		if op == "=" {
			if err := c.compileExpr(tree, rhs, fs); err != nil {
				return err
			}
			fs.b.Emit(bcode.SET_VAR, idx)
			return nil
		}
		fs.b.Emit(bcode.GET_VAR, idx)
		if err := c.compileExpr(tree, rhs, fs); err != nil {
			return err
		}
		fs.b.Emit(binaryOpcodes[compoundBaseOp(op)])
		fs.b.Emit(bcode.SET_VAR, idx)
		return nil
	case ast.Member:
		if err := c.compileExpr(tree, tree.Subtree(target, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.PUSH_LIT, fs.b.AddLit(c.heap.MkString(tree.Inline(target), true)))
		return c.compilePropertyAssign(tree, op, rhs, fs)
	case ast.Index:
		if err := c.compileExpr(tree, tree.Subtree(target, 0), fs); err != nil {
			return err
		}
		if err := c.compileExpr(tree, tree.Subtree(target, 1), fs); err != nil {
			return err
		}
		return c.compilePropertyAssign(tree, op, rhs, fs)
	}
	return unsupported(tree, target)
}

// compilePropertyAssign expects [obj, key] on the stack and leaves the
// assigned value as the expression's result.
func (c *Compiler) compilePropertyAssign(tree *ast.Tree, op string, rhs int, fs *funcState) error {
	if op == "=" {
		if err := c.compileExpr(tree, rhs, fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.DUP)
		fs.b.Emit(bcode.STASH)
		fs.b.Emit(bcode.SET)
		fs.b.Emit(bcode.UNSTASH)
		return nil
	}
	fs.b.Emit(bcode.TWO_DUP)
	fs.b.Emit(bcode.GET)
	if err := c.compileExpr(tree, rhs, fs); err != nil {
		return err
	}
	fs.b.Emit(binaryOpcodes[compoundBaseOp(op)])
	fs.b.Emit(bcode.DUP)
	fs.b.Emit(bcode.STASH)
	fs.b.Emit(bcode.SET)
	fs.b.Emit(bcode.UNSTASH)
	return nil
}

func compoundBaseOp(op string) string {
	return op[:len(op)-1] // "+=" -> "+"
}

func (c *Compiler) compileConditional(tree *ast.Tree, pos int, fs *funcState) error {
	if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
		return err
	}
	trueJump := fs.b.Emit(bcode.JMP_TRUE_DROP, 0)
	if err := c.compileExpr(tree, tree.Subtree(pos, 2), fs); err != nil {
		return err
	}
	endJump := fs.b.Emit(bcode.JMP, 0)
	fs.b.PatchJump(trueJump, fs.b.Pos())
	if err := c.compileExpr(tree, tree.Subtree(pos, 1), fs); err != nil {
		return err
	}
	fs.b.PatchJump(endJump, fs.b.Pos())
	return nil
}

// compileSequence lowers the comma operator: every operand but the last is
// evaluated for effect and discarded.
func (c *Compiler) compileSequence(tree *ast.Tree, pos int, fs *funcState) error {
	children := tree.Children(pos)
	for i, child := range children {
		if err := c.compileExpr(tree, child, fs); err != nil {
			return err
		}
		if i < len(children)-1 {
			fs.b.Emit(bcode.DROP)
		}
	}
	return nil
}
