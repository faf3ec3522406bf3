package compiler

import (
	"fmt"

	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/bcode"
)

// compileStmt lowers one statement-shaped node, generalizing the teacher's
// VisitBlockStmt/VisitIfStmt/VisitWhileStmt/VisitVarStmt family from a
// visitor dispatch over typed AST structs to a switch over ast.Tag, since
// internal/ast's packed tree has no vtable to dispatch through.
func (c *Compiler) compileStmt(tree *ast.Tree, pos int, fs *funcState) error {
	switch tree.Tag(pos) {
	case ast.Empty, ast.Nop:
		return nil
	case ast.FuncDecl:
		// already compiled and bound during hoist(); a function declaration
		// is purely a binding statement at the point it's reached.
		return nil
	case ast.VarDecl:
		return c.compileVarDecl(tree, pos, fs)
	case ast.ExprStmt:
		if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.DROP)
		return nil
	case ast.Block:
		for _, stmt := range tree.Children(pos) {
			if err := c.compileStmt(tree, stmt, fs); err != nil {
				return err
			}
		}
		return nil
	case ast.If:
		return c.compileIf(tree, pos, fs)
	case ast.While:
		return c.compileWhile(tree, pos, fs)
	case ast.DoWhile:
		return c.compileDoWhile(tree, pos, fs)
	case ast.For:
		return c.compileFor(tree, pos, fs)
	case ast.ForIn:
		return c.compileForIn(tree, pos, fs)
	case ast.Break:
		return c.compileBreak(tree, pos, fs)
	case ast.Continue:
		return c.compileContinue(tree, pos, fs)
	case ast.Return:
		if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.RET)
		return nil
	case ast.Throw:
		if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.THROW)
		return nil
	case ast.Try:
		return c.compileTry(tree, pos, fs)
	case ast.Switch:
		return c.compileSwitch(tree, pos, fs)
	case ast.With:
		return c.compileWith(tree, pos, fs)
	}
	return unsupported(tree, pos)
}

// compileVarDecl lowers `var name = init;`. A bare `var name;` is
// indistinguishable at this point from `var name = undefined;` — the
// parser always supplies an UndefinedLit placeholder initializer (see
// internal/parser/statements.go's varDeclaration) — so both forms emit an
// assignment here. This over-assigns relative to real JS var semantics in
// the rare case of a later no-initializer re-declaration of an
// already-assigned name (`var x = 1; var x;` would reset x to undefined
// here instead of leaving it at 1); documented as a known simplification
// in DESIGN.md rather than threading an "explicit initializer" bit through
// the AST for a vanishingly rare pattern.
func (c *Compiler) compileVarDecl(tree *ast.Tree, pos int, fs *funcState) error {
	if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
		return err
	}
	idx := fs.nameIndex(string(tree.Inline(pos)))
	fs.b.Emit(bcode.SET_VAR, idx)
	fs.b.Emit(bcode.DROP)
	return nil
}

// compileIf lowers `if (cond) then [else alt]` using a single JMP_TRUE_DROP
// plus two unconditional JMPs (one to the else-branch, one past it), so only
// one conditional-jump opcode is needed
// (see DESIGN.md's note on the chosen JMP_* pop/peek semantics).
func (c *Compiler) compileIf(tree *ast.Tree, pos int, fs *funcState) error {
	cond := tree.Subtree(pos, 0)
	if err := c.compileExpr(tree, cond, fs); err != nil {
		return err
	}
	thenJump := fs.b.Emit(bcode.JMP_TRUE_DROP, 0)
	elseJump := fs.b.Emit(bcode.JMP, 0)

	fs.b.PatchJump(thenJump, fs.b.Pos())
	thenPos := tree.GetSkip(pos, ast.SkipIfTrueEnd)
	// the If node's one fixed subtree is the condition; the then-branch is
	// the open-ended child preceding SkipIfTrueEnd, the else-branch (if
	// any) is the one following it.
	children := tree.Children(pos)
	for _, child := range children {
		if child < thenPos {
			if err := c.compileStmt(tree, child, fs); err != nil {
				return err
			}
		}
	}
	endJump := fs.b.Emit(bcode.JMP, 0)

	fs.b.PatchJump(elseJump, fs.b.Pos())
	for _, child := range children {
		if child >= thenPos {
			if err := c.compileStmt(tree, child, fs); err != nil {
				return err
			}
		}
	}
	fs.b.PatchJump(endJump, fs.b.Pos())
	return nil
}

// compileWhile lowers `while (cond) body`. TRY_PUSH_LOOP's continue target
// is the condition re-check position, known immediately since the frame is
// pushed exactly once, before the loop begins.
func (c *Compiler) compileWhile(tree *ast.Tree, pos int, fs *funcState) error {
	pushPos := fs.b.Emit(bcode.TRY_PUSH_LOOP, 0, 0)
	condStart := fs.b.Pos()
	fs.b.PatchOperand(pushPos, 1, condStart)

	fs.frames = append(fs.frames, exitFrame{isLoop: true})
	if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
		return err
	}
	bodyJump := fs.b.Emit(bcode.JMP_TRUE_DROP, 0)
	endJump := fs.b.Emit(bcode.JMP, 0)
	fs.b.PatchJump(bodyJump, fs.b.Pos())
	if err := c.compileStmt(tree, tree.Subtree(pos, 1), fs); err != nil {
		return err
	}
	fs.b.Emit(bcode.JMP, condStart)
	fs.b.PatchJump(endJump, fs.b.Pos())
	fs.b.PatchOperand(pushPos, 0, fs.b.Pos())
	fs.b.Emit(bcode.TRY_POP)
	fs.frames = fs.frames[:len(fs.frames)-1]
	return nil
}

// compileDoWhile lowers `do body while (cond);`: the body always runs once
// before the first condition check, so continue must target the condition,
// not the loop's first instruction.
func (c *Compiler) compileDoWhile(tree *ast.Tree, pos int, fs *funcState) error {
	pushPos := fs.b.Emit(bcode.TRY_PUSH_LOOP, 0, 0)
	bodyStart := fs.b.Pos()

	fs.frames = append(fs.frames, exitFrame{isLoop: true})
	if err := c.compileStmt(tree, tree.Subtree(pos, 0), fs); err != nil {
		return err
	}
	condStart := fs.b.Pos()
	fs.b.PatchOperand(pushPos, 1, condStart)
	if err := c.compileExpr(tree, tree.Subtree(pos, 1), fs); err != nil {
		return err
	}
	fs.b.Emit(bcode.JMP_TRUE_DROP, bodyStart)
	fs.b.PatchOperand(pushPos, 0, fs.b.Pos())
	fs.b.Emit(bcode.TRY_POP)
	fs.frames = fs.frames[:len(fs.frames)-1]
	return nil
}

// compileFor lowers the C-style `for (init; cond; update) body`. Continue
// must run the update expression before re-checking the condition, so its
// target is the update's start, not the condition's.
func (c *Compiler) compileFor(tree *ast.Tree, pos int, fs *funcState) error {
	init := tree.Subtree(pos, 0)
	if tree.Tag(init) == ast.VarDecl {
		if err := c.compileVarDecl(tree, init, fs); err != nil {
			return err
		}
	} else if tree.Tag(init) != ast.Nop {
		if err := c.compileExpr(tree, init, fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.DROP)
	}

	pushPos := fs.b.Emit(bcode.TRY_PUSH_LOOP, 0, 0)
	condStart := fs.b.Pos()
	cond := tree.Subtree(pos, 1)
	var bodyJump int
	if tree.Tag(cond) != ast.Nop {
		if err := c.compileExpr(tree, cond, fs); err != nil {
			return err
		}
		bodyJump = fs.b.Emit(bcode.JMP_TRUE_DROP, 0)
		fs.b.Emit(bcode.JMP, 0) // patched to break target below
	}
	endJumpPos := fs.b.Pos() - 5
	if tree.Tag(cond) != ast.Nop {
		fs.b.PatchJump(bodyJump, fs.b.Pos())
	}

	fs.frames = append(fs.frames, exitFrame{isLoop: true})
	if err := c.compileStmt(tree, tree.Subtree(pos, 3), fs); err != nil {
		return err
	}
	updateStart := fs.b.Pos()
	fs.b.PatchOperand(pushPos, 1, updateStart)
	update := tree.Subtree(pos, 2)
	if tree.Tag(update) != ast.Nop {
		if err := c.compileExpr(tree, update, fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.DROP)
	}
	fs.b.Emit(bcode.JMP, condStart)

	loopEnd := fs.b.Pos()
	if tree.Tag(cond) != ast.Nop {
		fs.b.PatchJump(endJumpPos, loopEnd)
	}
	fs.b.PatchOperand(pushPos, 0, loopEnd)
	fs.b.Emit(bcode.TRY_POP)
	fs.frames = fs.frames[:len(fs.frames)-1]
	return nil
}

// compileForIn lowers `for (lhs in obj) body`. NEXT_PROP's contract (see
// DESIGN.md): given an object reference on top of the stack, it pushes the
// next not-yet-visited enumerable property key as a string, or
// PUSH_UNDEFINED's value once enumeration is exhausted, tracking cursor
// position per object identity on the VM side.
func (c *Compiler) compileForIn(tree *ast.Tree, pos int, fs *funcState) error {
	if err := c.compileExpr(tree, tree.Subtree(pos, 1), fs); err != nil {
		return err
	}
	pushPos := fs.b.Emit(bcode.TRY_PUSH_LOOP, 0, 0)
	loopStart := fs.b.Pos()
	fs.b.PatchOperand(pushPos, 1, loopStart)

	fs.b.Emit(bcode.DUP)
	fs.b.Emit(bcode.NEXT_PROP)
	fs.b.Emit(bcode.DUP)
	fs.b.Emit(bcode.PUSH_UNDEFINED)
	fs.b.Emit(bcode.EQ_EQ)
	doneJump := fs.b.Emit(bcode.JMP_TRUE_DROP, 0)

	lhs := tree.Subtree(pos, 0)
	idx := fs.nameIndex(string(tree.Inline(lhs)))
	fs.b.Emit(bcode.SET_VAR, idx)
	fs.b.Emit(bcode.DROP)

	fs.frames = append(fs.frames, exitFrame{isLoop: true})
	if err := c.compileStmt(tree, tree.Subtree(pos, 2), fs); err != nil {
		return err
	}
	fs.b.Emit(bcode.JMP, loopStart)

	fs.b.PatchJump(doneJump, fs.b.Pos())
	fs.b.Emit(bcode.DROP) // the exhausted key placeholder
	fs.b.Emit(bcode.DROP) // the object reference
	fs.b.PatchOperand(pushPos, 0, fs.b.Pos())
	fs.b.Emit(bcode.TRY_POP)
	fs.frames = fs.frames[:len(fs.frames)-1]
	return nil
}

func (c *Compiler) compileBreak(tree *ast.Tree, pos int, fs *funcState) error {
	if len(fs.frames) == 0 {
		return fmt.Errorf("compiler: 'break' outside a loop or switch at offset %d", pos)
	}
	fs.b.Emit(bcode.BREAK)
	return nil
}

func (c *Compiler) compileContinue(tree *ast.Tree, pos int, fs *funcState) error {
	for i := len(fs.frames) - 1; i >= 0; i-- {
		if fs.frames[i].isLoop {
			fs.b.Emit(bcode.CONTINUE)
			return nil
		}
	}
	return fmt.Errorf("compiler: 'continue' outside a loop at offset %d", pos)
}

// compileTry lowers `try { } [catch (e) { }] [finally { }]`. Try's try/
// catch/finally blocks are not wrapped in Block nodes by the parser (see
// internal/parser/statements.go's tryStatement) — all three bodies are
// flattened into Try's single open-ended child sequence, split by the
// SkipTryCatch/SkipTryFinally boundaries; when present, the catch clause's
// bound identifier is itself the first child at SkipTryCatch. The finally
// frame, when present, is pushed before (outside) the catch frame so it
// stays active while the catch handler itself runs.
func (c *Compiler) compileTry(tree *ast.Tree, pos int, fs *funcState) error {
	catchStart := tree.GetSkip(pos, ast.SkipTryCatch)
	finallyStart := tree.GetSkip(pos, ast.SkipTryFinally)
	hasFinally := finallyStart != tree.End(pos)
	hasCatch := catchStart != finallyStart

	children := tree.Children(pos)
	var tryBody, catchBody, finallyBody []int
	catchParam := -1
	for _, child := range children {
		switch {
		case child < catchStart:
			tryBody = append(tryBody, child)
		case child < finallyStart:
			if hasCatch && catchParam == -1 {
				catchParam = child
				continue
			}
			catchBody = append(catchBody, child)
		default:
			finallyBody = append(finallyBody, child)
		}
	}

	var finallyPush int
	if hasFinally {
		finallyPush = fs.b.Emit(bcode.TRY_PUSH_FINALLY, 0)
	}
	var catchPush int
	if hasCatch {
		catchPush = fs.b.Emit(bcode.TRY_PUSH_CATCH, 0)
	}

	for _, stmt := range tryBody {
		if err := c.compileStmt(tree, stmt, fs); err != nil {
			return err
		}
	}
	if hasCatch {
		fs.b.Emit(bcode.TRY_POP)
	}
	afterCatchJump := fs.b.Emit(bcode.JMP, 0)

	if hasCatch {
		fs.b.PatchJump(catchPush, fs.b.Pos())
		fs.b.Emit(bcode.ENTER_CATCH)
		if catchParam != -1 {
			idx := fs.nameIndex(string(tree.Inline(catchParam)))
			fs.b.Emit(bcode.SET_VAR, idx)
			fs.b.Emit(bcode.DROP)
		}
		for _, stmt := range catchBody {
			if err := c.compileStmt(tree, stmt, fs); err != nil {
				return err
			}
		}
		fs.b.Emit(bcode.EXIT_CATCH)
	}
	fs.b.PatchJump(afterCatchJump, fs.b.Pos())

	if hasFinally {
		// TRY_POP removes the finally frame on the path where nothing thrown/
		// broken/returned through it; the finally body itself runs
		// unconditionally right after, by straight fallthrough — a throw,
		// break, continue, or return that unwinds into this frame jumps
		// directly to finallyPush's target (the same position the fallthrough
		// reaches), latches its pending action, and AFTER_FINALLY resumes it
		// once the body completes. No jump is emitted here: one would skip
		// the finally body on the normal-completion path entirely.
		fs.b.Emit(bcode.TRY_POP)
		fs.b.PatchJump(finallyPush, fs.b.Pos())
		for _, stmt := range finallyBody {
			if err := c.compileStmt(tree, stmt, fs); err != nil {
				return err
			}
		}
		fs.b.Emit(bcode.AFTER_FINALLY)
	}
	return nil
}

// compileWith lowers `with (obj) body` (spec §4.4/§4.7). ENTER_WITH pushes a
// tryWith try-stack frame so a break/continue/return/throw unwinding out of
// body still restores the enclosing scope (see execState.unwind's tryWith
// case); the normal-completion path restores it via EXIT_WITH instead.
func (c *Compiler) compileWith(tree *ast.Tree, pos int, fs *funcState) error {
	if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
		return err
	}
	fs.b.Emit(bcode.ENTER_WITH)
	if err := c.compileStmt(tree, tree.Subtree(pos, 1), fs); err != nil {
		return err
	}
	fs.b.Emit(bcode.EXIT_WITH)
	return nil
}

// compileSwitch lowers `switch (disc) { case v: ...; default: ...; }`.
// STASH/UNSTASH give every case's comparison a fresh, non-destructive copy
// of the discriminant without repeated DUP/DROP bookkeeping.
func (c *Compiler) compileSwitch(tree *ast.Tree, pos int, fs *funcState) error {
	if err := c.compileExpr(tree, tree.Subtree(pos, 0), fs); err != nil {
		return err
	}
	fs.b.Emit(bcode.STASH)

	pushPos := fs.b.Emit(bcode.TRY_PUSH_SWITCH, 0)
	fs.frames = append(fs.frames, exitFrame{isLoop: false})

	defaultCase := tree.GetSkip(pos, ast.SkipSwitchDefault)
	hasDefault := defaultCase != pos

	cases := tree.Children(pos)
	bodyJumps := make([]int, len(cases))
	hasBodyJump := make([]bool, len(cases))
	for i, cs := range cases {
		if cs == defaultCase {
			continue // default is dispatched last, via fall-through of the chain below
		}
		fs.b.Emit(bcode.UNSTASH)
		test := tree.Subtree(cs, 0)
		if err := c.compileExpr(tree, test, fs); err != nil {
			return err
		}
		fs.b.Emit(bcode.EQ_EQ)
		bodyJumps[i] = fs.b.Emit(bcode.JMP_TRUE_DROP, 0)
		hasBodyJump[i] = true
	}
	// no case label matched: fall through to the default clause's body if
	// one exists, otherwise skip straight past the switch.
	dispatchJump := fs.b.Emit(bcode.JMP, 0)

	caseStarts := make([]int, len(cases))
	for i, cs := range cases {
		caseStarts[i] = fs.b.Pos()
		if hasBodyJump[i] {
			fs.b.PatchJump(bodyJumps[i], caseStarts[i])
		}
		for _, stmt := range tree.Children(cs) {
			if err := c.compileStmt(tree, stmt, fs); err != nil {
				return err
			}
		}
	}
	switchEnd := fs.b.Pos()
	if hasDefault {
		for i, cs := range cases {
			if cs == defaultCase {
				fs.b.PatchJump(dispatchJump, caseStarts[i])
			}
		}
	} else {
		fs.b.PatchJump(dispatchJump, switchEnd)
	}

	fs.b.PatchJump(pushPos, switchEnd)
	fs.b.Emit(bcode.TRY_POP)
	fs.b.Emit(bcode.UNSTASH)
	fs.b.Emit(bcode.DROP)
	fs.frames = fs.frames[:len(fs.frames)-1]
	return nil
}
