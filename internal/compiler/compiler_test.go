package compiler

import (
	"strings"
	"testing"

	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/bcode"
	"github.com/informatter/v7go/internal/lexer"
	"github.com/informatter/v7go/internal/parser"
	"github.com/informatter/v7go/internal/strheap"
)

func compileSource(t *testing.T, src string) *bcode.Bcode {
	t.Helper()
	toks, err := lexer.New(src).Scan()
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	tree, errs := parser.New(toks).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse %q: %v", src, errs)
	}
	bc, err := New(strheap.New()).CompileProgram(tree)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return bc
}

func countOp(dis string, name string) int {
	return strings.Count(dis, " "+name) + strings.Count(dis, "\t"+name)
}

func TestCompileVarDeclEmitsHoistAndAssign(t *testing.T) {
	bc := compileSource(t, "var x = 1 + 2;")
	dis := bcode.Disassemble(bc)
	if got := countOp(dis, "SET_VAR"); got != 2 {
		t.Fatalf("SET_VAR count = %d, want 2 (hoist + assignment)", got)
	}
	if !strings.Contains(dis, "ADD") {
		t.Fatalf("disassembly missing ADD:\n%s", dis)
	}
}

func TestCompileFunctionDeclarationRegistersChild(t *testing.T) {
	bc := compileSource(t, "function add(a, b) { return a + b; }")
	if len(bc.Functions) != 1 {
		t.Fatalf("Functions len = %d, want 1", len(bc.Functions))
	}
	child := bc.Functions[0]
	if child.NumArgs != 2 {
		t.Fatalf("NumArgs = %d, want 2", child.NumArgs)
	}
	if !child.HasFuncName {
		t.Fatalf("expected HasFuncName true for a named function")
	}
	dis := bcode.Disassemble(child)
	if !strings.Contains(dis, "RET") {
		t.Fatalf("child missing RET:\n%s", dis)
	}
}

func TestCompileIfElseBothBranchesReachable(t *testing.T) {
	bc := compileSource(t, "if (x) { y = 1; } else { y = 2; }")
	dis := bcode.Disassemble(bc)
	if countOp(dis, "JMP_TRUE_DROP") != 1 {
		t.Fatalf("expected exactly one JMP_TRUE_DROP:\n%s", dis)
	}
	if countOp(dis, "JMP ") != 2 {
		t.Fatalf("expected two unconditional JMPs (end of then, implicit none):\n%s", dis)
	}
}

func TestCompileWhileLoopPushesLoopFrameWithTwoTargets(t *testing.T) {
	bc := compileSource(t, "while (x) { x = x - 1; }")
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "TRY_PUSH_LOOP") {
		t.Fatalf("missing TRY_PUSH_LOOP:\n%s", dis)
	}
	if !strings.Contains(dis, "TRY_POP") {
		t.Fatalf("missing TRY_POP:\n%s", dis)
	}
}

func TestCompileForLoopUpdateRunsBeforeConditionRecheck(t *testing.T) {
	bc := compileSource(t, "for (var i = 0; i < 10; i = i + 1) { sum = sum + i; }")
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "TRY_PUSH_LOOP") {
		t.Fatalf("missing TRY_PUSH_LOOP:\n%s", dis)
	}
	if countOp(dis, "LT") != 1 {
		t.Fatalf("expected one LT comparison:\n%s", dis)
	}
}

func TestCompileBreakOutsideLoopIsError(t *testing.T) {
	toks, err := lexer.New("break;").Scan()
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	tree, errs := parser.New(toks).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}
	if _, err := New(strheap.New()).CompileProgram(tree); err == nil {
		t.Fatalf("expected a compile error for a stray break")
	}
}

func TestCompileTryCatchFinallyEmitsAllFrames(t *testing.T) {
	bc := compileSource(t, "try { risky(); } catch (e) { handle(e); } finally { cleanup(); }")
	dis := bcode.Disassemble(bc)
	for _, op := range []string{"TRY_PUSH_FINALLY", "TRY_PUSH_CATCH", "ENTER_CATCH", "EXIT_CATCH", "AFTER_FINALLY"} {
		if !strings.Contains(dis, op) {
			t.Fatalf("missing %s:\n%s", op, dis)
		}
	}
}

func TestCompileSwitchWithDefaultDispatchesToDefaultCase(t *testing.T) {
	bc := compileSource(t, `switch (x) {
		case 1: a = 1; break;
		default: a = 2; break;
		case 2: a = 3; break;
	}`)
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "TRY_PUSH_SWITCH") {
		t.Fatalf("missing TRY_PUSH_SWITCH:\n%s", dis)
	}
	if countOp(dis, "BREAK") != 3 {
		t.Fatalf("expected 3 BREAKs, one per case:\n%s", dis)
	}
}

func TestCompileMemberAssignmentRoutesThroughStash(t *testing.T) {
	bc := compileSource(t, "obj.prop = 1;")
	dis := bcode.Disassemble(bc)
	for _, op := range []string{"STASH", "UNSTASH", "SET"} {
		if !strings.Contains(dis, op) {
			t.Fatalf("missing %s:\n%s", op, dis)
		}
	}
}

func TestCompilePostfixIncrementOnIdentLeavesOldValue(t *testing.T) {
	bc := compileSource(t, "x++;")
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "GET_VAR") || !strings.Contains(dis, "SET_VAR") {
		t.Fatalf("expected GET_VAR/SET_VAR pair:\n%s", dis)
	}
	if countOp(dis, "DUP") != 1 {
		t.Fatalf("expected exactly one DUP to preserve the old value:\n%s", dis)
	}
}

func TestCompileLogicalAndUsesJmpFalse(t *testing.T) {
	bc := compileSource(t, "a && b;")
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "JMP_FALSE") {
		t.Fatalf("expected JMP_FALSE for &&:\n%s", dis)
	}
}

func TestCompileLogicalOrUsesJmpTrue(t *testing.T) {
	bc := compileSource(t, "a || b;")
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "JMP_TRUE ") {
		t.Fatalf("expected JMP_TRUE for ||:\n%s", dis)
	}
}

func TestCompileCallOnMemberBindsReceiverAsThis(t *testing.T) {
	bc := compileSource(t, "obj.method(1, 2);")
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "CALL") {
		t.Fatalf("missing CALL:\n%s", dis)
	}
	if !strings.Contains(dis, "GET") {
		t.Fatalf("expected a GET to fetch the method value:\n%s", dis)
	}
}

func TestCompileNewExpression(t *testing.T) {
	bc := compileSource(t, "new Foo(1);")
	dis := bcode.Disassemble(bc)
	var newLine string
	for _, line := range strings.Split(dis, "\n") {
		if strings.Contains(line, "NEW") {
			newLine = line
			break
		}
	}
	if newLine == "" {
		t.Fatalf("missing NEW instruction:\n%s", dis)
	}
	if !strings.HasSuffix(strings.TrimSpace(newLine), "1") {
		t.Fatalf("expected NEW's operand to be arity 1, got line %q", newLine)
	}
}

func TestCompileForInUsesNextProp(t *testing.T) {
	bc := compileSource(t, "for (k in obj) { use(k); }")
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "NEXT_PROP") {
		t.Fatalf("missing NEXT_PROP:\n%s", dis)
	}
}

func TestCompileArrayLiteralUsesIndexedSet(t *testing.T) {
	bc := compileSource(t, "var a = [1, 2, 3];")
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "CREATE_ARR") {
		t.Fatalf("missing CREATE_ARR:\n%s", dis)
	}
	if countOp(dis, "SET\n") != 3 {
		t.Fatalf("expected 3 SETs, one per element:\n%s", dis)
	}
}

func TestCompileObjectLiteralUsesKeyedSet(t *testing.T) {
	bc := compileSource(t, `var o = { a: 1, b: 2 };`)
	dis := bcode.Disassemble(bc)
	if !strings.Contains(dis, "CREATE_OBJ") {
		t.Fatalf("missing CREATE_OBJ:\n%s", dis)
	}
}

func TestCompileSequenceDropsAllButLast(t *testing.T) {
	bc := compileSource(t, "x = (a, b, c);")
	dis := bcode.Disassemble(bc)
	if countOp(dis, "DROP") < 2 {
		t.Fatalf("expected at least two DROPs for a 3-operand sequence:\n%s", dis)
	}
}

func TestCompileNestedFunctionHoistsBeforeOuterBody(t *testing.T) {
	tree := parseFor(t, "function outer() { return inner(); function inner() { return 1; } }")
	bc, err := New(strheap.New()).CompileProgram(tree)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(bc.Functions) != 1 {
		t.Fatalf("Functions len = %d, want 1 (outer)", len(bc.Functions))
	}
	outer := bc.Functions[0]
	if len(outer.Functions) != 1 {
		t.Fatalf("outer.Functions len = %d, want 1 (inner)", len(outer.Functions))
	}
}

func parseFor(t *testing.T, src string) *ast.Tree {
	t.Helper()
	toks, err := lexer.New(src).Scan()
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	tree, errs := parser.New(toks).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse %q: %v", src, errs)
	}
	return tree
}
