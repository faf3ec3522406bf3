// Package compiler lowers a parsed internal/ast.Tree into internal/bcode
// bytecode, generalizing the teacher's ASTCompiler
// (_examples/informatter-nilan/compiler/ast_compiler.go) from a
// visitor-over-interface-typed-nodes walk to a position-based walk over the
// packed AST buffer — the same tree-shape the teacher's locals/scopeDepth/
// patchJump machinery already solves, just re-pointed at internal/ast.Tree's
// position arithmetic instead of Go struct fields.
package compiler

import (
	"fmt"

	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/bcode"
	"github.com/informatter/v7go/internal/strheap"
)

// exitFrame is one active loop or switch, tracked so Break/Continue
// statements (spec's scope reduction: no labels, so they always target the
// innermost enclosing one) know it's there. Continue only ever targets a
// loopFrame — a bare `continue` inside a switch-without-enclosing-loop is a
// compile error, just as in real JS.
type exitFrame struct {
	isLoop bool
}

// funcState holds one function body's (or the top-level script's)
// in-progress compilation — the direct analogue of the teacher's
// ASTCompiler fields (locals/scopeDepth), but keyed by name instead of
// slot, since GET_VAR/SET_VAR resolve through a name index rather than a
// fixed stack slot (spec §4.7: variables are looked up by name through the
// active scope chain at runtime, not bound to a compile-time stack slot).
// Break/Continue themselves carry no bytecode operand (spec §4.6); the
// target addresses they resolve to at runtime live in the try-stack frame
// TRY_PUSH_LOOP/TRY_PUSH_SWITCH pushed, so the compiler only needs to know
// whether an enclosing frame exists at all, to reject a stray break/continue
// at compile time instead of deferring that check to the VM.
type funcState struct {
	b      *bcode.Builder
	names  map[string]int
	frames []exitFrame

	// strict is set once, at the top of CompileProgram/compileFunction, from
	// either a "use strict" directive prologue or an enclosing strict
	// function (spec §4.4/§4.9: strict mode is inherited by every nested
	// function, not just the one that declares it).
	strict bool
}

// Compiler lowers one or more ast.Trees sharing a single string heap (spec
// §4.1's owned/foreign/dictionary split is a program-wide resource, not a
// per-function one).
type Compiler struct {
	heap *strheap.Heap
}

// New returns a Compiler that interns string literals through heap.
func New(heap *strheap.Heap) *Compiler {
	return &Compiler{heap: heap}
}

// CompileProgram lowers a parsed Script node to its top-level Bcode, the
// entry point internal/vm executes first (spec §3.6's initial frame).
// CompileProgram compiles a top-level script, ending it with the script's
// completion value left on the stack for RET — spec §6.1's exec(engine,
// src) returns this value. Only the trailing top-level expression
// statement contributes one (a common, documented simplification of
// ECMA-262's full per-statement completion-value propagation through
// blocks/if/loops): every other statement compiles exactly as it would
// inside a function body, via the ordinary compileStmt/DROP path.
func (c *Compiler) CompileProgram(tree *ast.Tree) (*bcode.Bcode, error) {
	root := tree.Root()
	stmts := tree.Children(root)
	fs := &funcState{b: bcode.NewBuilder(), names: map[string]int{}}
	fs.strict = hasUseStrictDirective(tree, stmts)
	fs.b.SetStrict(fs.strict)
	if err := c.hoist(tree, stmts, fs); err != nil {
		return nil, err
	}
	for i, stmt := range stmts {
		if i == len(stmts)-1 && tree.Tag(stmt) == ast.ExprStmt {
			if err := c.compileExpr(tree, tree.Subtree(stmt, 0), fs); err != nil {
				return nil, err
			}
			fs.b.Emit(bcode.RET)
			return fs.b.Finish(), nil
		}
		if err := c.compileStmt(tree, stmt, fs); err != nil {
			return nil, err
		}
	}
	fs.b.Emit(bcode.PUSH_UNDEFINED)
	fs.b.Emit(bcode.RET)
	return fs.b.Finish(), nil
}

// compileFunction lowers a FuncDecl node (declaration or expression form)
// into its own child Bcode. Parameters are the Ident children preceding the
// SkipFuncBody boundary; statements are the children at or after it.
func (c *Compiler) compileFunction(tree *ast.Tree, fnPos int, parentStrict bool) (*bcode.Bcode, error) {
	fs := &funcState{b: bcode.NewBuilder(), names: map[string]int{}}
	bodyStart := tree.GetSkip(fnPos, ast.SkipFuncBody)

	var params []int
	var body []int
	for _, child := range tree.Children(fnPos) {
		if child < bodyStart {
			params = append(params, child)
		} else {
			body = append(body, child)
		}
	}
	if name := string(tree.Inline(fnPos)); name != "" {
		fs.b.SetHasFuncName(true)
		fs.nameIndex(name)
	}
	for _, p := range params {
		name := string(tree.Inline(p))
		fs.nameIndex(name)
	}
	fs.b.SetNumArgs(len(params))
	fs.strict = parentStrict || hasUseStrictDirective(tree, body)
	fs.b.SetStrict(fs.strict)

	if err := c.hoist(tree, body, fs); err != nil {
		return nil, err
	}
	for _, stmt := range body {
		if err := c.compileStmt(tree, stmt, fs); err != nil {
			return nil, err
		}
	}
	fs.b.Emit(bcode.PUSH_UNDEFINED)
	fs.b.Emit(bcode.RET)
	return fs.b.Finish(), nil
}

// nameIndex returns name's stable index within this function, registering
// it on first use — the varint operand every GET_VAR/SET_VAR/DELETE_VAR
// instruction carries.
func (fs *funcState) nameIndex(name string) int {
	if idx, ok := fs.names[name]; ok {
		return idx
	}
	idx := fs.b.AddName(name)
	fs.names[name] = idx
	return idx
}

// hoist pre-registers every `var` binding (initialized to undefined) and
// every direct function declaration (initialized eagerly, in source order,
// after the vars — so a function declaration's value wins over a
// same-named plain `var`, matching ES5 hoisting precedence) found in stmts
// or any nested non-function-boundary statement. It does not recurse into
// nested FuncDecl bodies, which hoist independently when compiled.
func (c *Compiler) hoist(tree *ast.Tree, stmts []int, fs *funcState) error {
	var varNames []string
	var funcDecls []int
	collectHoisted(tree, stmts, &varNames, &funcDecls)

	for _, name := range varNames {
		idx := fs.nameIndex(name)
		fs.b.Emit(bcode.PUSH_UNDEFINED)
		fs.b.Emit(bcode.SET_VAR, idx)
		fs.b.Emit(bcode.DROP)
	}
	for _, fd := range funcDecls {
		child, err := c.compileFunction(tree, fd, fs.strict)
		if err != nil {
			return err
		}
		fnIdx := fs.b.AddFunction(child)
		idx := fs.nameIndex(string(tree.Inline(fd)))
		fs.b.Emit(bcode.FUNC_LIT, fnIdx)
		fs.b.Emit(bcode.SET_VAR, idx)
		fs.b.Emit(bcode.DROP)
	}
	return nil
}

// collectHoisted walks stmts (and, recursively, the statement-shaped
// subtrees of block-like constructs) gathering VarDecl names and top-level
// FuncDecl positions, without descending into a FuncDecl's own body.
func collectHoisted(tree *ast.Tree, stmts []int, varNames *[]string, funcDecls *[]int) {
	for _, pos := range stmts {
		switch tree.Tag(pos) {
		case ast.VarDecl:
			*varNames = append(*varNames, string(tree.Inline(pos)))
		case ast.FuncDecl:
			*funcDecls = append(*funcDecls, pos)
		case ast.Block:
			collectHoisted(tree, tree.Children(pos), varNames, funcDecls)
		case ast.If:
			collectHoisted(tree, []int{tree.Subtree(pos, 0)}, varNames, funcDecls)
			collectHoisted(tree, tree.Children(pos), varNames, funcDecls)
		case ast.While:
			collectHoisted(tree, []int{tree.Subtree(pos, 1)}, varNames, funcDecls)
		case ast.DoWhile:
			collectHoisted(tree, []int{tree.Subtree(pos, 0)}, varNames, funcDecls)
		case ast.For:
			init := tree.Subtree(pos, 0)
			if tree.Tag(init) == ast.VarDecl {
				collectHoisted(tree, []int{init}, varNames, funcDecls)
			}
			collectHoisted(tree, []int{tree.Subtree(pos, 3)}, varNames, funcDecls)
		case ast.ForIn:
			collectHoisted(tree, []int{tree.Subtree(pos, 2)}, varNames, funcDecls)
		case ast.With:
			collectHoisted(tree, []int{tree.Subtree(pos, 1)}, varNames, funcDecls)
		case ast.Try:
			collectHoisted(tree, tree.Children(pos), varNames, funcDecls)
		case ast.Switch:
			for _, c := range tree.Children(pos) {
				collectHoisted(tree, tree.Children(c), varNames, funcDecls)
			}
		}
	}
}

// hasUseStrictDirective reports whether stmts opens with a "use strict"
// directive prologue (spec §4.4/§4.9): a leading run of string-literal
// expression statements, at least one of which is exactly "use strict".
// Real ES5 recognizes the whole leading run of string-literal statements as
// directives and keeps scanning past ones it doesn't recognize; this engine
// only needs to recognize the one directive it implements, so it stops at
// the first "use strict" instead of exhaustively classifying every string
// literal in the prologue.
func hasUseStrictDirective(tree *ast.Tree, stmts []int) bool {
	for _, pos := range stmts {
		if tree.Tag(pos) != ast.ExprStmt {
			return false
		}
		expr := tree.Subtree(pos, 0)
		if tree.Tag(expr) != ast.StringLit {
			return false
		}
		if string(tree.Inline(expr)) == "use strict" {
			return true
		}
	}
	return false
}

func unsupported(tree *ast.Tree, pos int) error {
	return fmt.Errorf("compiler: unsupported node %v at offset %d", tree.Tag(pos), pos)
}
