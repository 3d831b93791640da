package token

import "fmt"

type Kind int

const (
	Illegal Kind = iota
	EOF

	Ident  // Identifier
	Int    // Integer
	Double // Floating-point number
	String // String literal

	// Keywords
	Var
	Function
	If
	Else
	While
	For
	In
	Break
	Continue
	Return
	Try
	Catch
	Finally
	Throw
	Critical
	Spawn
	Wait
	New
	True
	False
	Null

	// Operators
	Assign      // =
	PlusAssign  // +=
	MinusAssign // -=
	StarAssign  // *=
	SlashAssign // /=

	Plus    // +
	Minus   // -
	Star    // *
	Slash   // /
	Percent // %

	PlusPlus   // ++
	MinusMinus // --

	Amp   // &
	Pipe  // |
	Caret // ^
	Tilde // ~
	Shl   // <<
	Shr   // >>

	Bang   // !
	AndAnd // &&
	OrOr   // ||

	Eq    // ==
	NotEq // !=
	Lt    // <
	LtEq  // <=
	Gt    // >
	GtEq  // >=

	// Symbols
	Comma     // ,
	Semicolon // ;
	Dot       // .
	Colon     // :

	LParen   // (
	RParen   // )
	LBrace   // {
	RBrace   // }
	LBracket // [
	RBracket // ]
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

var kindNames = map[Kind]string{
	Illegal:     "Illegal",
	EOF:         "EOF",
	Ident:       "Ident",
	Int:         "Int",
	Double:      "Double",
	String:      "String",
	Var:         "var",
	Function:    "function",
	If:          "if",
	Else:        "else",
	While:       "while",
	For:         "for",
	In:          "in",
	Break:       "break",
	Continue:    "continue",
	Return:      "return",
	Try:         "try",
	Catch:       "catch",
	Finally:     "finally",
	Throw:       "throw",
	Critical:    "critical",
	Spawn:       "spawn",
	Wait:        "wait",
	New:         "new",
	True:        "true",
	False:       "false",
	Null:        "null",
	Assign:      "=",
	PlusAssign:  "+=",
	MinusAssign: "-=",
	StarAssign:  "*=",
	SlashAssign: "/=",
	Plus:        "+",
	Minus:       "-",
	Star:        "*",
	Slash:       "/",
	Percent:     "%",
	PlusPlus:    "++",
	MinusMinus:  "--",
	Amp:         "&",
	Pipe:        "|",
	Caret:       "^",
	Tilde:       "~",
	Shl:         "<<",
	Shr:         ">>",
	Bang:        "!",
	AndAnd:      "&&",
	OrOr:        "||",
	Eq:          "==",
	NotEq:       "!=",
	Lt:          "<",
	LtEq:        "<=",
	Gt:          ">",
	GtEq:        ">=",
	Comma:       ",",
	Semicolon:   ";",
	Dot:         ".",
	Colon:       ":",
	LParen:      "(",
	RParen:      ")",
	LBrace:      "{",
	RBrace:      "}",
	LBracket:    "[",
	RBracket:    "]",
}

// String returns the source spelling for keywords and operators and a
// descriptive name for the other kinds.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var keywords = map[string]Kind{
	"var":      Var,
	"function": Function,
	"if":       If,
	"else":     Else,
	"while":    While,
	"for":      For,
	"in":       In,
	"break":    Break,
	"continue": Continue,
	"return":   Return,
	"try":      Try,
	"catch":    Catch,
	"finally":  Finally,
	"throw":    Throw,
	"critical": Critical,
	"spawn":    Spawn,
	"wait":     Wait,
	"new":      New,
	"true":     True,
	"false":    False,
	"null":     Null,
}

func LookupIdent(lit string) Kind {
	if kind, ok := keywords[lit]; ok {
		return kind
	}
	return Ident
}
