package parser

import (
	"testing"

	"github.com/informatter/v7go/internal/ast"
	"github.com/informatter/v7go/internal/lexer"
)

func parseSource(t *testing.T, src string) *ast.Tree {
	t.Helper()
	toks, err := lexer.New(src).Scan()
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	tree, errs := New(toks).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse %q: %v", src, errs)
	}
	return tree
}

func TestParseVarDeclaration(t *testing.T) {
	tree := parseSource(t, "var x = 1 + 2 * 3;")
	stmts := tree.Children(tree.Root())
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	decl := stmts[0]
	if tree.Tag(decl) != ast.VarDecl {
		t.Fatalf("tag = %v, want VarDecl", tree.Tag(decl))
	}
	if string(tree.Inline(decl)) != "x" {
		t.Fatalf("name = %q, want x", tree.Inline(decl))
	}
	init := tree.Subtree(decl, 0)
	if tree.Tag(init) != ast.Binary || string(tree.Inline(init)) != "+" {
		t.Fatalf("initializer = %v %q, want Binary +", tree.Tag(init), tree.Inline(init))
	}
	// precedence: 1 + (2 * 3), so the right side of the outer + is itself
	// a Binary *, not a flat three-operand chain.
	rhs := tree.Subtree(init, 1)
	if tree.Tag(rhs) != ast.Binary || string(tree.Inline(rhs)) != "*" {
		t.Fatalf("rhs = %v %q, want Binary *", tree.Tag(rhs), tree.Inline(rhs))
	}
}

func TestParseLeftAssociativeChain(t *testing.T) {
	tree := parseSource(t, "1 + 2 + 3;")
	stmt := tree.Children(tree.Root())[0]
	if tree.Tag(stmt) != ast.ExprStmt {
		t.Fatalf("tag = %v, want ExprStmt", tree.Tag(stmt))
	}
	outer := tree.Subtree(stmt, 0)
	if tree.Tag(outer) != ast.Binary || string(tree.Inline(outer)) != "+" {
		t.Fatalf("outer = %v %q", tree.Tag(outer), tree.Inline(outer))
	}
	if got := string(tree.Inline(tree.Subtree(outer, 1))); got != "3" {
		t.Fatalf("outer rhs = %q, want 3 (left-associative)", got)
	}
	inner := tree.Subtree(outer, 0)
	if tree.Tag(inner) != ast.Binary || string(tree.Inline(inner)) != "+" {
		t.Fatalf("inner = %v %q", tree.Tag(inner), tree.Inline(inner))
	}
}

func TestParseAssignmentIsRightAssociative(t *testing.T) {
	tree := parseSource(t, "a = b = 3;")
	stmt := tree.Children(tree.Root())[0]
	outer := tree.Subtree(stmt, 0)
	if tree.Tag(outer) != ast.Assign {
		t.Fatalf("tag = %v, want Assign", tree.Tag(outer))
	}
	target := tree.Subtree(outer, 0)
	if tree.Tag(target) != ast.Ident || string(tree.Inline(target)) != "a" {
		t.Fatalf("target = %v %q, want Ident a", tree.Tag(target), tree.Inline(target))
	}
	value := tree.Subtree(outer, 1)
	if tree.Tag(value) != ast.Assign {
		t.Fatalf("value = %v, want nested Assign (right-associative)", tree.Tag(value))
	}
}

func TestParseInvalidAssignmentTargetRejected(t *testing.T) {
	toks, err := lexer.New("1 = 2;").Scan()
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	_, errs := New(toks).Parse()
	if len(errs) == 0 {
		t.Fatalf("expected a syntax error for assigning to a literal")
	}
}

func TestParseMemberIndexCallChain(t *testing.T) {
	tree := parseSource(t, "foo.bar[0](1, 2);")
	stmt := tree.Children(tree.Root())[0]
	call := tree.Subtree(stmt, 0)
	if tree.Tag(call) != ast.Call {
		t.Fatalf("tag = %v, want Call", tree.Tag(call))
	}
	args := tree.Children(call)
	if len(args) != 2 {
		t.Fatalf("expected 2 call arguments, got %d", len(args))
	}
	index := tree.Subtree(call, 0)
	if tree.Tag(index) != ast.Index {
		t.Fatalf("callee = %v, want Index", tree.Tag(index))
	}
	member := tree.Subtree(index, 0)
	if tree.Tag(member) != ast.Member || string(tree.Inline(member)) != "bar" {
		t.Fatalf("object = %v %q, want Member bar", tree.Tag(member), tree.Inline(member))
	}
}

func TestParseNewExpression(t *testing.T) {
	tree := parseSource(t, "new Foo(1);")
	stmt := tree.Children(tree.Root())[0]
	n := tree.Subtree(stmt, 0)
	if tree.Tag(n) != ast.New {
		t.Fatalf("tag = %v, want New", tree.Tag(n))
	}
	if args := tree.Children(n); len(args) != 1 {
		t.Fatalf("expected 1 constructor argument, got %d", len(args))
	}
}

func TestParseIfElse(t *testing.T) {
	tree := parseSource(t, "if (x) y; else z;")
	ifNode := tree.Children(tree.Root())[0]
	if tree.Tag(ifNode) != ast.If {
		t.Fatalf("tag = %v, want If", tree.Tag(ifNode))
	}
	// If's one fixed subtree is the condition; the then- and else-branches
	// are its open-ended children.
	kids := tree.Children(ifNode)
	if len(kids) != 2 {
		t.Fatalf("expected the then- and else-branches as If's open-ended children, got %d", len(kids))
	}
	cons := kids[0]
	if tree.Tag(cons) != ast.ExprStmt {
		t.Fatalf("consequent = %v, want ExprStmt", tree.Tag(cons))
	}
}

func TestParseForLoop(t *testing.T) {
	tree := parseSource(t, "for (var i = 0; i < 10; i = i + 1) x;")
	forNode := tree.Children(tree.Root())[0]
	if tree.Tag(forNode) != ast.For {
		t.Fatalf("tag = %v, want For", tree.Tag(forNode))
	}
	init := tree.Subtree(forNode, 0)
	if tree.Tag(init) != ast.VarDecl {
		t.Fatalf("init = %v, want VarDecl", tree.Tag(init))
	}
}

func TestParseForInPromotesTag(t *testing.T) {
	tree := parseSource(t, "for (var k in obj) x;")
	forNode := tree.Children(tree.Root())[0]
	if tree.Tag(forNode) != ast.ForIn {
		t.Fatalf("tag = %v, want ForIn (promoted from For)", tree.Tag(forNode))
	}
	lhs := tree.Subtree(forNode, 0)
	if tree.Tag(lhs) != ast.Ident || string(tree.Inline(lhs)) != "k" {
		t.Fatalf("for-in binding = %v %q, want Ident k", tree.Tag(lhs), tree.Inline(lhs))
	}
}

func TestParseTryCatchFinally(t *testing.T) {
	tree := parseSource(t, "try { a; } catch (e) { b; } finally { c; }")
	tryNode := tree.Children(tree.Root())[0]
	if tree.Tag(tryNode) != ast.Try {
		t.Fatalf("tag = %v, want Try", tree.Tag(tryNode))
	}
}

func TestParseTryWithoutCatchOrFinallyFails(t *testing.T) {
	toks, err := lexer.New("try { a; }").Scan()
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	_, errs := New(toks).Parse()
	if len(errs) == 0 {
		t.Fatalf("expected a syntax error for try without catch or finally")
	}
}

func TestParseSwitchWithDefault(t *testing.T) {
	tree := parseSource(t, "switch (x) { case 1: a; break; default: b; }")
	sw := tree.Children(tree.Root())[0]
	if tree.Tag(sw) != ast.Switch {
		t.Fatalf("tag = %v, want Switch", tree.Tag(sw))
	}
	cases := tree.Children(sw)
	if len(cases) != 2 {
		t.Fatalf("expected 2 case clauses, got %d", len(cases))
	}
}

func TestParseFunctionDeclaration(t *testing.T) {
	tree := parseSource(t, "function add(a, b) { return a + b; }")
	fn := tree.Children(tree.Root())[0]
	if tree.Tag(fn) != ast.FuncDecl {
		t.Fatalf("tag = %v, want FuncDecl", tree.Tag(fn))
	}
	if string(tree.Inline(fn)) != "add" {
		t.Fatalf("name = %q, want add", tree.Inline(fn))
	}
}

func TestParseObjectAndArrayLiterals(t *testing.T) {
	tree := parseSource(t, "var o = { a: 1, get b() { return 2; } }; var a = [1, , 3];")
	stmts := tree.Children(tree.Root())
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	obj := tree.Subtree(stmts[0], 0)
	if tree.Tag(obj) != ast.ObjectLit {
		t.Fatalf("tag = %v, want ObjectLit", tree.Tag(obj))
	}
	props := tree.Children(obj)
	if len(props) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(props))
	}
	if string(tree.Inline(props[1])) != "get b" {
		t.Fatalf("accessor key = %q, want \"get b\"", tree.Inline(props[1]))
	}

	arr := tree.Subtree(stmts[1], 0)
	if tree.Tag(arr) != ast.ArrayLit {
		t.Fatalf("tag = %v, want ArrayLit", tree.Tag(arr))
	}
	elems := tree.Children(arr)
	if len(elems) != 3 {
		t.Fatalf("expected 3 elements (including elision), got %d", len(elems))
	}
	if tree.Tag(elems[1]) != ast.UndefinedLit {
		t.Fatalf("elided element = %v, want UndefinedLit", tree.Tag(elems[1]))
	}
}

func TestParseASIAcrossNewline(t *testing.T) {
	tree := parseSource(t, "var x = 1\nvar y = 2\n")
	stmts := tree.Children(tree.Root())
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements via ASI, got %d", len(stmts))
	}
}

func TestParsePostfixForbiddenAcrossNewline(t *testing.T) {
	tree := parseSource(t, "a\n++b;")
	stmts := tree.Children(tree.Root())
	if len(stmts) != 2 {
		t.Fatalf("expected `a` and `++b` as separate statements via ASI, got %d", len(stmts))
	}
	second := tree.Subtree(stmts[1], 0)
	if tree.Tag(second) != ast.Update {
		t.Fatalf("second statement = %v, want a prefix Update", tree.Tag(second))
	}
}

func TestStackGuardTripsOnDeepNesting(t *testing.T) {
	src := ""
	for i := 0; i < 50; i++ {
		src += "("
	}
	src += "1"
	for i := 0; i < 50; i++ {
		src += ")"
	}
	src += ";"
	toks, err := lexer.New(src).Scan()
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	_, errs := New(toks, WithStackGuard(10)).Parse()
	if len(errs) == 0 {
		t.Fatalf("expected ErrStackExhausted with a tiny stack guard")
	}
}
