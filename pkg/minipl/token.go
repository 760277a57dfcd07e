// Package minipl implements the scanner, parser and tree-walking interpreter
// for the Mini-PL teaching language.
package minipl

import "fmt"

// TokenType is the lexical category of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenStr
	TokenBool
	TokenVar
	TokenInt
	TokenIntLiteral
	TokenPlus
	TokenMinus
	TokenMul
	TokenDiv
	TokenLParen
	TokenRParen
	TokenID
	TokenAssign
	TokenSemi
	TokenColon
	TokenPrint
	TokenRead
	TokenStringLiteral
	TokenFor
	TokenEnd
	TokenIf
	TokenElse
	TokenDo
	TokenIn
	TokenTo
	TokenEqual
	TokenLessThan
	TokenAnd
	TokenNot
)

var tokenNames = map[TokenType]string{
	TokenEOF:           "EOF",
	TokenStr:           "Str",
	TokenBool:          "Bool",
	TokenVar:           "Var",
	TokenInt:           "Int",
	TokenIntLiteral:    "IntLiteral",
	TokenPlus:          "Plus",
	TokenMinus:         "Minus",
	TokenMul:           "Mul",
	TokenDiv:           "Div",
	TokenLParen:        "LeftParen",
	TokenRParen:        "RightParen",
	TokenID:            "ID",
	TokenAssign:        "Assign",
	TokenSemi:          "Semi",
	TokenColon:         "Colon",
	TokenPrint:         "Print",
	TokenRead:          "Read",
	TokenStringLiteral: "StringLiteral",
	TokenFor:           "For",
	TokenEnd:           "End",
	TokenIf:            "If",
	TokenElse:          "Else",
	TokenDo:            "Do",
	TokenIn:            "In",
	TokenTo:            "To",
	TokenEqual:         "Equal",
	TokenLessThan:      "LessThan",
	TokenAnd:           "And",
	TokenNot:           "Not",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// keywords is matched case-sensitively against identifier runs.
var keywords = map[string]TokenType{
	"bool":   TokenBool,
	"var":    TokenVar,
	"int":    TokenInt,
	"string": TokenStr,
	"print":  TokenPrint,
	"read":   TokenRead,
	"if":     TokenIf,
	"else":   TokenElse,
	"do":     TokenDo,
	"for":    TokenFor,
	"end":    TokenEnd,
	"in":     TokenIn,
}

// Position locates a token or node in the source text.
// Line and Column are 1-based, Offset is the rune offset.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single lexical unit. Literal holds the source text for
// identifiers, keywords, operators and string literals; Int holds the
// payload of integer literals.
type Token struct {
	Type    TokenType
	Literal string
	Int     int64
	Pos     Position
}

// String renders the token the way the debug dump prints it.
func (t Token) String() string {
	switch t.Type {
	case TokenIntLiteral:
		return fmt.Sprintf("Token(%s, %d)", t.Type, t.Int)
	case TokenEOF:
		return fmt.Sprintf("Token(%s, )", t.Type)
	default:
		return fmt.Sprintf("Token(%s, %s)", t.Type, t.Literal)
	}
}

// describe is used in syntax error messages.
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenIntLiteral:
		return fmt.Sprintf("integer %d", t.Int)
	case TokenStringLiteral:
		return fmt.Sprintf("string %q", t.Literal)
	case TokenID:
		return fmt.Sprintf("identifier %q", t.Literal)
	default:
		return fmt.Sprintf("%q", t.Literal)
	}
}
