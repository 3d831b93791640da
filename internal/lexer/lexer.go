package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"clever/internal/token"
)

type Lexer struct {
	input []rune

	pos int

	ch   rune
	line int
	col  int

	errors []string
}

func New(input string) *Lexer {
	l := &Lexer{
		input: []rune(input),
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Two-character operators are tried before single characters.
var twoCharOps = map[string]token.Kind{
	"+=": token.PlusAssign,
	"-=": token.MinusAssign,
	"*=": token.StarAssign,
	"/=": token.SlashAssign,
	"++": token.PlusPlus,
	"--": token.MinusMinus,
	"<<": token.Shl,
	">>": token.Shr,
	"&&": token.AndAnd,
	"||": token.OrOr,
	"==": token.Eq,
	"!=": token.NotEq,
	"<=": token.LtEq,
	">=": token.GtEq,
}

var oneCharOps = map[rune]token.Kind{
	'=': token.Assign,
	'+': token.Plus,
	'-': token.Minus,
	'*': token.Star,
	'/': token.Slash,
	'%': token.Percent,
	'&': token.Amp,
	'|': token.Pipe,
	'^': token.Caret,
	'~': token.Tilde,
	'!': token.Bang,
	'<': token.Lt,
	'>': token.Gt,
	',': token.Comma,
	';': token.Semicolon,
	'.': token.Dot,
	':': token.Colon,
	'(': token.LParen,
	')': token.RParen,
	'{': token.LBrace,
	'}': token.RBrace,
	'[': token.LBracket,
	']': token.RBracket,
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := token.Position{
		Line:   l.line,
		Column: l.col,
	}

	ch := l.ch

	if ch == 0 {
		return token.Token{Kind: token.EOF, Pos: pos}
	}

	if isDigit(ch) {
		lit, kind := l.readNumber()
		return token.Token{Kind: kind, Lexeme: lit, Pos: pos}
	}

	if isLetter(ch) {
		lit := l.readIdentifier()
		return token.Token{Kind: token.LookupIdent(lit), Lexeme: lit, Pos: pos}
	}

	if ch == '"' || ch == '\'' {
		l.readChar() // opening quote
		lit, ok := l.readString(ch, pos)
		if !ok {
			return token.Token{Kind: token.Illegal, Pos: pos}
		}
		return token.Token{Kind: token.String, Lexeme: lit, Pos: pos}
	}

	if kind, ok := twoCharOps[string([]rune{ch, l.peekChar()})]; ok {
		lexeme := string([]rune{ch, l.peekChar()})
		l.readChar()
		l.readChar()
		return token.Token{Kind: kind, Lexeme: lexeme, Pos: pos}
	}

	kind, ok := oneCharOps[ch]
	if !ok {
		l.errorf(pos, fmt.Sprintf("unexpected character %q", ch))
		kind = token.Illegal
	}
	l.readChar()
	return token.Token{Kind: kind, Lexeme: string(ch), Pos: pos}
}

// Tokens drains the lexer, stopping after EOF.
func (l *Lexer) Tokens() []token.Token {
	var out []token.Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

// Helpers

func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		// one past the end so slices ending at pos-1 include the last rune
		l.ch = 0
		l.pos = len(l.input) + 1
		return
	}

	l.ch = l.input[l.pos]
	l.pos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for unicode.IsSpace(l.ch) {
			l.readChar()
		}

		switch {
		case l.ch == '#', l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		case l.ch == '/' && l.peekChar() == '*':
			pos := token.Position{Line: l.line, Column: l.col}
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					l.errorf(pos, "unterminated block comment")
					return
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			continue
		}
		return
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos - 1 // current rune is already in l.ch
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return string(l.input[start : l.pos-1])
}

func (l *Lexer) readNumber() (string, token.Kind) {
	start := l.pos - 1
	kind := token.Int

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for _, ok := hexValue(l.ch); ok; _, ok = hexValue(l.ch) {
			l.readChar()
		}
		return string(l.input[start : l.pos-1]), kind
	}

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		kind = token.Double
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		kind = token.Double
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return string(l.input[start : l.pos-1]), kind
}

func (l *Lexer) readString(delimiter rune, startPos token.Position) (string, bool) {
	var sb strings.Builder
	for {
		if l.ch == 0 || l.ch == '\n' {
			l.errorf(startPos, "unterminated string literal")
			return "", false
		}
		if l.ch == delimiter {
			l.readChar()
			return sb.String(), true
		}
		if l.ch == '\\' {
			escPos := token.Position{Line: l.line, Column: l.col}
			l.readChar()
			r, ok := l.readEscape(escPos)
			if !ok {
				return "", false
			}
			sb.WriteRune(r)
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
}

func (l *Lexer) readEscape(pos token.Position) (rune, bool) {
	switch l.ch {
	case '\\':
		return '\\', true
	case '"':
		return '"', true
	case '\'':
		return '\'', true
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case 'x':
		return l.readHexEscape(pos, 2)
	case 'u':
		return l.readHexEscape(pos, 4)
	default:
		l.errorf(pos, "invalid escape sequence")
		return 0, false
	}
}

func (l *Lexer) readHexEscape(pos token.Position, count int) (rune, bool) {
	var val rune
	for i := 0; i < count; i++ {
		l.readChar()
		v, ok := hexValue(l.ch)
		if !ok {
			l.errorf(pos, "invalid hex escape")
			return 0, false
		}
		val = val*16 + v
	}
	return val, true
}

func hexValue(ch rune) (rune, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0', true
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10, true
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10, true
	default:
		return 0, false
	}
}

func (l *Lexer) errorf(pos token.Position, msg string) {
	l.errors = append(l.errors, fmt.Sprintf("%d:%d: %s", pos.Line, pos.Column, msg))
}

func (l *Lexer) Errors() []string {
	return l.errors
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	if ch > utf8.RuneSelf {
		return false
	}
	return ch >= '0' && ch <= '9'
}
