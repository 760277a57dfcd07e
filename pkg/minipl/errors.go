package minipl

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by *Error so callers can use errors.Is.
var (
	ErrInvalidCharacter   = errors.New("invalid character")
	ErrUnterminatedString = errors.New("unterminated string literal")
	ErrInvalidNumber      = errors.New("integer literal out of range")
	ErrUnexpectedToken    = errors.New("unexpected token")
	ErrTrailingTokens     = errors.New("unexpected tokens after end of program")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrUnknownVariable    = errors.New("variable used before declaration")
	ErrNotAnInteger       = errors.New("input is not an integer")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrIntegerOverflow    = errors.New("integer overflow")
	ErrCancelled          = errors.New("execution cancelled")
	ErrIterationLimit     = errors.New("loop iteration limit exceeded")
)

// ErrorKind classifies a failure of the pipeline.
type ErrorKind int

const (
	LexicalError ErrorKind = iota + 1
	SyntaxError
	RuntimeTypeError
	UndeclaredVariableError
	InputFormatError
	ArithmeticError
	RuntimeError
	IOError
)

var errorKindNames = map[ErrorKind]string{
	LexicalError:            "LexicalError",
	SyntaxError:             "SyntaxError",
	RuntimeTypeError:        "RuntimeTypeError",
	UndeclaredVariableError: "UndeclaredVariableError",
	InputFormatError:        "InputFormatError",
	ArithmeticError:         "ArithmeticError",
	RuntimeError:            "RuntimeError",
	IOError:                 "IOError",
}

// Error categories as shown to users.
const (
	ErrCategoryLexical    = "LEXICAL ERROR"
	ErrCategorySyntax     = "SYNTAX ERROR"
	ErrCategoryType       = "TYPE ERROR"
	ErrCategoryUndeclared = "UNDECLARED VARIABLE"
	ErrCategoryInput      = "INPUT FORMAT ERROR"
	ErrCategoryArithmetic = "ARITHMETIC ERROR"
	ErrCategoryRuntime    = "RUNTIME ERROR"
	ErrCategoryIO         = "I/O ERROR"
)

var errorCategories = map[ErrorKind]string{
	LexicalError:            ErrCategoryLexical,
	SyntaxError:             ErrCategorySyntax,
	RuntimeTypeError:        ErrCategoryType,
	UndeclaredVariableError: ErrCategoryUndeclared,
	InputFormatError:        ErrCategoryInput,
	ArithmeticError:         ErrCategoryArithmetic,
	RuntimeError:            ErrCategoryRuntime,
	IOError:                 ErrCategoryIO,
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Category returns the upper-case label printed in front of messages.
func (k ErrorKind) Category() string {
	if c, ok := errorCategories[k]; ok {
		return c
	}
	return "ERROR"
}

// ParseErrorKind maps a kind name such as "SyntaxError" back to its ErrorKind.
func ParseErrorKind(name string) (ErrorKind, bool) {
	for k, n := range errorKindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Error is the structured failure returned by scanning, parsing and
// evaluation. Every Error is terminal for the run that produced it.
type Error struct {
	Kind   ErrorKind
	Detail string
	Pos    Position
	Err    error
}

func (e *Error) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s AT %s: %s", e.Kind.Category(), e.Pos, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Category(), e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, sentinel error, pos Position, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
		Pos:    pos,
		Err:    sentinel,
	}
}

// KindOf returns the ErrorKind carried by err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
