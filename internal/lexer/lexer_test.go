package lexer_test

import (
	"strings"
	"testing"

	"clever/internal/lexer"
	"clever/internal/token"
)

func TestNextToken_BasicProgram(t *testing.T) {
	input := `var x = 1 + 2.5;
function f(a, b = 1) {
    return a >= b && !done;
}
x += 3; x++;
`

	tests := []struct {
		kind token.Kind
		lit  string
	}{
		{token.Var, "var"},
		{token.Ident, "x"},
		{token.Assign, "="},
		{token.Int, "1"},
		{token.Plus, "+"},
		{token.Double, "2.5"},
		{token.Semicolon, ";"},

		{token.Function, "function"},
		{token.Ident, "f"},
		{token.LParen, "("},
		{token.Ident, "a"},
		{token.Comma, ","},
		{token.Ident, "b"},
		{token.Assign, "="},
		{token.Int, "1"},
		{token.RParen, ")"},
		{token.LBrace, "{"},

		{token.Return, "return"},
		{token.Ident, "a"},
		{token.GtEq, ">="},
		{token.Ident, "b"},
		{token.AndAnd, "&&"},
		{token.Bang, "!"},
		{token.Ident, "done"},
		{token.Semicolon, ";"},
		{token.RBrace, "}"},

		{token.Ident, "x"},
		{token.PlusAssign, "+="},
		{token.Int, "3"},
		{token.Semicolon, ";"},
		{token.Ident, "x"},
		{token.PlusPlus, "++"},
		{token.Semicolon, ";"},
		{token.EOF, ""},
	}

	l := lexer.New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Kind != tt.kind {
			t.Fatalf("tests[%d] - kind wrong. expected=%s, got=%s (lexeme=%q, pos=%+v)",
				i, tt.kind, tok.Kind, tok.Lexeme, tok.Pos)
		}

		if tok.Lexeme != tt.lit {
			t.Fatalf("tests[%d] - lexeme wrong. expected=%q, got=%q",
				i, tt.lit, tok.Lexeme)
		}
	}
	if errs := l.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestNextToken_Keywords(t *testing.T) {
	input := "try catch finally throw critical spawn wait new null true false in continue break while for if else"
	want := []token.Kind{
		token.Try, token.Catch, token.Finally, token.Throw, token.Critical,
		token.Spawn, token.Wait, token.New, token.Null, token.True, token.False,
		token.In, token.Continue, token.Break, token.While, token.For, token.If, token.Else,
		token.EOF,
	}
	l := lexer.New(input)
	for i, kind := range want {
		if got := l.NextToken().Kind; got != kind {
			t.Fatalf("token %d: expected %s, got %s", i, kind, got)
		}
	}
}

func TestNextToken_BitwiseOperators(t *testing.T) {
	l := lexer.New("a & b | c ^ ~d << 2 >> 1")
	var kinds []token.Kind
	for _, tok := range l.Tokens() {
		kinds = append(kinds, tok.Kind)
	}
	want := []token.Kind{
		token.Ident, token.Amp, token.Ident, token.Pipe, token.Ident, token.Caret,
		token.Tilde, token.Ident, token.Shl, token.Int, token.Shr, token.Int, token.EOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d tokens, got %d (%v)", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

func TestNextToken_Comments(t *testing.T) {
	input := `// line comment
# hash comment
/* block
   comment */ x`
	l := lexer.New(input)
	tok := l.NextToken()
	if tok.Kind != token.Ident || tok.Lexeme != "x" {
		t.Fatalf("expected ident x, got %s %q", tok.Kind, tok.Lexeme)
	}
	if tok.Pos.Line != 4 {
		t.Fatalf("expected line 4, got %d", tok.Pos.Line)
	}
}

func TestNextToken_IdentifierAtEOF(t *testing.T) {
	l := lexer.New("counter")
	tok := l.NextToken()
	if tok.Lexeme != "counter" {
		t.Fatalf("expected counter, got %q", tok.Lexeme)
	}
	if l.NextToken().Kind != token.EOF {
		t.Fatalf("expected EOF")
	}
}

func TestNextToken_Strings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'single'`, "single"},
		{`"a\nb"`, "a\nb"},
		{`"q\"q"`, `q"q`},
		{`"\x41B"`, "AB"},
	}
	for _, tt := range tests {
		tok := lexer.New(tt.input).NextToken()
		if tok.Kind != token.String || tok.Lexeme != tt.want {
			t.Fatalf("%s: expected %q, got %s %q", tt.input, tt.want, tok.Kind, tok.Lexeme)
		}
	}
}

func TestNextToken_Numbers(t *testing.T) {
	tests := []struct {
		input string
		kind  token.Kind
	}{
		{"42", token.Int},
		{"0x1F", token.Int},
		{"3.14", token.Double},
		{"1e3", token.Double},
	}
	for _, tt := range tests {
		tok := lexer.New(tt.input).NextToken()
		if tok.Kind != tt.kind || tok.Lexeme != tt.input {
			t.Fatalf("%s: expected %s, got %s %q", tt.input, tt.kind, tok.Kind, tok.Lexeme)
		}
	}
}

func TestErrors_Unterminated(t *testing.T) {
	l := lexer.New(`"abc`)
	tok := l.NextToken()
	if tok.Kind != token.Illegal {
		t.Fatalf("expected Illegal, got %s", tok.Kind)
	}
	errs := l.Errors()
	if len(errs) != 1 || !strings.Contains(errs[0], "unterminated string literal") {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !strings.HasPrefix(errs[0], "1:1:") {
		t.Fatalf("expected position prefix, got %q", errs[0])
	}
}
