package minipl

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/antibyte/minipl/pkg/logger"
)

// singleCharTokens are operators and punctuation that never start a
// longer token.
var singleCharTokens = map[rune]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMul,
	'(': TokenLParen,
	')': TokenRParen,
	';': TokenSemi,
	'=': TokenEqual,
	'<': TokenLessThan,
	'&': TokenAnd,
	'!': TokenNot,
}

// Scanner turns source text into tokens on demand. Scanning is strict: the
// first lexical error is returned again on every later call.
type Scanner struct {
	text []rune
	pos  int
	line int
	col  int
	err  error
}

// NewScanner creates a scanner positioned at the start of text.
func NewScanner(text string) *Scanner {
	return &Scanner{
		text: []rune(text),
		line: 1,
		col:  1,
	}
}

// NextToken returns the next token and advances past it. At the end of the
// input it keeps returning a TokenEOF token.
func (s *Scanner) NextToken() (Token, error) {
	if s.err != nil {
		return Token{Type: TokenEOF, Pos: s.position()}, s.err
	}
	tok, err := s.scan()
	if err != nil {
		s.err = err
		logger.Debug(logger.AreaScanner, "scan failed: %v", err)
		return Token{Type: TokenEOF, Pos: s.position()}, err
	}
	return tok, nil
}

// Tokens scans the whole input. It is used by the token dump and tests.
func (s *Scanner) Tokens() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := s.NextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func (s *Scanner) position() Position {
	return Position{Offset: s.pos, Line: s.line, Column: s.col}
}

func (s *Scanner) atEnd() bool {
	return s.pos >= len(s.text)
}

func (s *Scanner) current() rune {
	if s.atEnd() {
		return 0
	}
	return s.text[s.pos]
}

// peek returns the rune after the current one, or 0.
func (s *Scanner) peek() rune {
	if s.pos+1 >= len(s.text) {
		return 0
	}
	return s.text[s.pos+1]
}

func (s *Scanner) advance() {
	if s.atEnd() {
		return
	}
	if s.text[s.pos] == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	s.pos++
}

func (s *Scanner) scan() (Token, error) {
	for !s.atEnd() {
		c := s.current()
		if unicode.IsSpace(c) {
			s.skipWhitespace()
			continue
		}

		start := s.position()
		if isDigit(c) {
			return s.integer()
		}

		switch c {
		case '/':
			if next := s.peek(); next == '/' || next == '*' {
				s.skipComment()
				continue
			}
			s.advance()
			return Token{Type: TokenDiv, Literal: "/", Pos: start}, nil
		case ':':
			if s.peek() == '=' {
				s.advance()
				s.advance()
				return Token{Type: TokenAssign, Literal: ":=", Pos: start}, nil
			}
			s.advance()
			return Token{Type: TokenColon, Literal: ":", Pos: start}, nil
		case '.':
			if s.peek() == '.' {
				s.advance()
				s.advance()
				return Token{Type: TokenTo, Literal: "..", Pos: start}, nil
			}
			return Token{}, newError(LexicalError, ErrInvalidCharacter, start, "expected '..' but found a single '.'")
		case '"':
			return s.stringLiteral()
		}

		if typ, ok := singleCharTokens[c]; ok {
			s.advance()
			return Token{Type: typ, Literal: string(c), Pos: start}, nil
		}
		if isIdentChar(c) {
			return s.identifier(), nil
		}
		return Token{}, newError(LexicalError, ErrInvalidCharacter, start, "unexpected character %q", c)
	}
	return Token{Type: TokenEOF, Pos: s.position()}, nil
}

func (s *Scanner) skipWhitespace() {
	for !s.atEnd() && unicode.IsSpace(s.current()) {
		s.advance()
	}
}

// skipComment consumes a // line comment or a /* block */ comment. An
// unterminated block comment runs to the end of the input.
func (s *Scanner) skipComment() {
	s.advance()
	switch s.current() {
	case '/':
		for !s.atEnd() && s.current() != '\n' {
			s.advance()
		}
	case '*':
		s.advance()
		for !s.atEnd() {
			if s.current() == '*' && s.peek() == '/' {
				s.advance()
				s.advance()
				return
			}
			s.advance()
		}
	}
}

func (s *Scanner) integer() (Token, error) {
	start := s.position()
	var sb strings.Builder
	for !s.atEnd() && isDigit(s.current()) {
		sb.WriteRune(s.current())
		s.advance()
	}
	n, err := strconv.ParseInt(sb.String(), 10, 64)
	if err != nil {
		return Token{}, newError(LexicalError, ErrInvalidNumber, start, "integer literal %s is out of range", sb.String())
	}
	return Token{Type: TokenIntLiteral, Literal: sb.String(), Int: n, Pos: start}, nil
}

// stringLiteral reads a double-quoted literal. A backslash takes the next
// character verbatim. Raw newlines and semicolons are rejected.
func (s *Scanner) stringLiteral() (Token, error) {
	start := s.position()
	s.advance()
	var sb strings.Builder
	for {
		if s.atEnd() {
			return Token{}, newError(LexicalError, ErrUnterminatedString, start, "string literal is not terminated")
		}
		c := s.current()
		switch c {
		case '\n':
			return Token{}, newError(LexicalError, ErrUnterminatedString, s.position(), "newline inside string literal")
		case ';':
			return Token{}, newError(LexicalError, ErrUnterminatedString, s.position(), "unescaped ';' inside string literal")
		case '\\':
			s.advance()
			if s.atEnd() {
				return Token{}, newError(LexicalError, ErrUnterminatedString, start, "string literal is not terminated")
			}
			sb.WriteRune(s.current())
			s.advance()
		case '"':
			s.advance()
			return Token{Type: TokenStringLiteral, Literal: sb.String(), Pos: start}, nil
		default:
			sb.WriteRune(c)
			s.advance()
		}
	}
}

func (s *Scanner) identifier() Token {
	start := s.position()
	var sb strings.Builder
	for !s.atEnd() && isIdentChar(s.current()) {
		sb.WriteRune(s.current())
		s.advance()
	}
	text := sb.String()
	if typ, ok := keywords[text]; ok {
		return Token{Type: typ, Literal: text, Pos: start}
	}
	return Token{Type: TokenID, Literal: text, Pos: start}
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}
