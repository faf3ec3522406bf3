package lexer

import "testing"

func typesOf(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tk := range toks {
		out[i] = tk.Type
	}
	return out
}

func assertTypes(t *testing.T, src string, want []TokenType) {
	t.Helper()
	toks, err := New(src).Scan()
	if err != nil {
		t.Fatalf("Scan(%q) error: %v", src, err)
	}
	got := typesOf(toks)
	if len(got) != len(want) {
		t.Fatalf("Scan(%q) = %v, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Scan(%q)[%d] = %s, want %s", src, i, got[i], want[i])
		}
	}
}

func TestOperators(t *testing.T) {
	// the identifier keeps the '/' after '==' a division operator, not a regex
	assertTypes(t, "==x/=*+>-<!=<=>=!!", []TokenType{
		EQ, IDENT, SLASH_EQ, STAR, PLUS, GT, MINUS, LT, NEQ, LTE, GTE, BANG, BANG, EOF,
	})
}

func TestPunctuators(t *testing.T) {
	assertTypes(t, "(){}**;+!=<=", []TokenType{
		LPAREN, RPAREN, LBRACE, RBRACE, STAR, STAR, SEMI, PLUS, NEQ, LTE, EOF,
	})
}

func TestKeywordsVsIdentifiers(t *testing.T) {
	assertTypes(t, "var x = function() { return this; }", []TokenType{
		VAR, IDENT, ASSIGN, FUNCTION, LPAREN, RPAREN, LBRACE, RETURN, THIS, SEMI, RBRACE, EOF,
	})
}

func TestNumberLiterals(t *testing.T) {
	toks, err := New("0x1F 3.14 10 .5 1e3").Scan()
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	want := []float64{31, 3.14, 10, 0.5, 1000}
	for i, w := range want {
		if toks[i].Type != NUMBER || toks[i].Literal.(float64) != w {
			t.Fatalf("token %d = %v, want number %v", i, toks[i], w)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	toks, err := New(`"a\nbA"`).Scan()
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if toks[0].Literal.(string) != "a\nbA" {
		t.Fatalf("string literal = %q, want %q", toks[0].Literal, "a\nbA")
	}
}

func TestRegexVsDivisionDisambiguation(t *testing.T) {
	// after an identifier, `/` is division
	assertTypes(t, "a / b", []TokenType{IDENT, SLASH, IDENT, EOF})
	// at the start of an expression, `/.../ ` is a regex literal
	assertTypes(t, "/abc/g", []TokenType{REGEXP, EOF})
}

func TestASINewlineTracking(t *testing.T) {
	toks, err := New("a\nb").Scan()
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if toks[0].NewlineBefore {
		t.Fatalf("first token should not have a newline before it")
	}
	if !toks[1].NewlineBefore {
		t.Fatalf("second token should record the newline that separates it from the first")
	}
}
