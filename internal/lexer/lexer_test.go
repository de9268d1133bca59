package lexer

import (
	"testing"

	"github.com/funvibe/quill/internal/token"
)

func TestNextToken(t *testing.T) {
	input := `fn add(a, b) { a + b == 3 && a != b }`

	expected := []struct {
		tokType token.TokenType
		lexeme  string
	}{
		{token.FN, "fn"},
		{token.IDENT, "add"},
		{token.LPAREN, "("},
		{token.IDENT, "a"},
		{token.COMMA, ","},
		{token.IDENT, "b"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.IDENT, "a"},
		{token.PLUS, "+"},
		{token.IDENT, "b"},
		{token.EQ, "=="},
		{token.INT, "3"},
		{token.AND, "&&"},
		{token.IDENT, "a"},
		{token.NOT_EQ, "!="},
		{token.IDENT, "b"},
		{token.RBRACE, "}"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want.tokType {
			t.Fatalf("token %d: type = %q, want %q", i, tok.Type, want.tokType)
		}
		if tok.Lexeme != want.lexeme {
			t.Fatalf("token %d: lexeme = %q, want %q", i, tok.Lexeme, want.lexeme)
		}
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input   string
		tokType token.TokenType
	}{
		{"42", token.INT},
		{"1_000", token.INT},
		{"0xff", token.INT},
		{"0b1010", token.INT},
		{"3.25", token.FLOAT},
	}
	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != tt.tokType || tok.Lexeme != tt.input {
			t.Errorf("%q: got %s %q", tt.input, tok.Type, tok.Lexeme)
		}
	}
}

func TestRangeDelimiterTerminatesNumber(t *testing.T) {
	l := New("1..")
	if tok := l.NextToken(); tok.Type != token.INT || tok.Lexeme != "1" {
		t.Fatalf("got %s %q", tok.Type, tok.Lexeme)
	}
	if tok := l.NextToken(); tok.Type != token.DOT_DOT {
		t.Fatalf("expected .., got %s", tok.Type)
	}
}

func TestStringsAndChars(t *testing.T) {
	l := New(`"a\nb" 'x' b'y'`)
	if tok := l.NextToken(); tok.Type != token.STRING {
		t.Fatalf("expected string, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.CHAR {
		t.Fatalf("expected char, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.BYTE {
		t.Fatalf("expected byte, got %s", tok.Type)
	}
}

func TestComments(t *testing.T) {
	l := New("1 // line\n/* block\nstill */ 2")
	if tok := l.NextToken(); tok.Lexeme != "1" {
		t.Fatalf("got %q", tok.Lexeme)
	}
	if tok := l.NextToken(); tok.Lexeme != "2" {
		t.Fatalf("got %q", tok.Lexeme)
	}
}

func TestSpansAndPositions(t *testing.T) {
	l := New("ab\ncd")
	first := l.NextToken()
	second := l.NextToken()

	if first.Span.Start != 0 || first.Span.End != 2 {
		t.Errorf("first span = %+v", first.Span)
	}
	if second.Line != 2 || second.Column != 1 {
		t.Errorf("second position = %d:%d, want 2:1", second.Line, second.Column)
	}
	if second.Span.Start != 3 || second.Span.End != 5 {
		t.Errorf("second span = %+v", second.Span)
	}
}

func TestUnterminatedString(t *testing.T) {
	tok := New(`"oops`).NextToken()
	if tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %s", tok.Type)
	}
}

func TestUnquote(t *testing.T) {
	s, ok := Unquote(`"a\n\"b\""`)
	if !ok || s != "a\n\"b\"" {
		t.Fatalf("got %q ok=%v", s, ok)
	}
	if r, ok := UnquoteChar(`'\t'`); !ok || r != '\t' {
		t.Fatalf("got %q ok=%v", r, ok)
	}
	if b, ok := UnquoteByte(`b'z'`); !ok || b != 'z' {
		t.Fatalf("got %q ok=%v", b, ok)
	}
}

func TestPoundBrace(t *testing.T) {
	l := New("#{ #[")
	if tok := l.NextToken(); tok.Type != token.POUND_BRACE {
		t.Fatalf("expected #{, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.POUND {
		t.Fatalf("expected #, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != token.LBRACKET {
		t.Fatalf("expected [, got %s", tok.Type)
	}
}
