package minipl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes source with the given stdin and returns stdout and the
// interpreter for inspecting globals.
func run(t *testing.T, source, stdin string, opts ...Option) (string, *Interpreter, error) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithInput(strings.NewReader(stdin)), WithOutput(&out)}, opts...)
	interp := New(source, opts...)
	v, err := interp.Interpret()
	assert.True(t, v.IsNone())
	return out.String(), interp, err
}

func TestInterpretVariablesAndArithmetic(t *testing.T) {
	source := `
var a : int := 2;
var b : int := 10 * a + 10;
var c : int := a - - b;
print b`

	out, interp, err := run(t, source, "")
	require.NoError(t, err)
	assert.Equal(t, "30\n", out)
	assert.Equal(t, map[string]Value{
		"a": IntValue(2),
		"b": IntValue(30),
		"c": IntValue(32),
	}, interp.Globals())
}

func TestInterpretExpressions(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected Value
	}{
		{"precedence", "var x : int := 1 + 2 * 3", IntValue(7)},
		{"parentheses", "var x : int := (1 + 2) * 3", IntValue(9)},
		{"left associative minus", "var x : int := 10 - 4 - 3", IntValue(3)},
		{"truncating division", "var x : int := 7 / 2", IntValue(3)},
		{"negative division truncates toward zero", "var x : int := -7 / 2", IntValue(-3)},
		{"unary plus", "var x : int := +5", IntValue(5)},
		{"double negation", "var x : int := - - 5", IntValue(5)},
		{"concatenation", `var a : string := "foo"; var b : string := "bar"; var x : string := a + b + a`, StringValue("foobarfoo")},
		{"less than", "var x : bool := 1 < 2", BoolValue(true)},
		{"equal", "var x : bool := 2 = 3", BoolValue(false)},
		{"not", "var t : bool; var x : bool := !t", BoolValue(false)},
		{"and", "var t : bool; var x : bool := t & t", BoolValue(true)},
		{"bool default is true", "var x : bool", BoolValue(true)},
		{"int default", "var x : int", IntValue(0)},
		{"string default", "var x : string", StringValue("")},
		{"assign comparison", "var x : bool; x := 3 < 1", BoolValue(false)},
		{"assign negation", "var x : bool; x := !x", BoolValue(false)},
		{"declared type is not checked", `var s : string := "text"; var x : int := s`, StringValue("text")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, interp, err := run(t, tt.source, "")
			require.NoError(t, err)
			v, ok := interp.Lookup("x")
			require.True(t, ok)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestInterpretCaseInsensitiveNames(t *testing.T) {
	out, interp, err := run(t, "var Foo : int := 1; FOO := foo + 1; print fOo", "")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	globals := interp.Globals()
	assert.Len(t, globals, 1)
	assert.Equal(t, IntValue(2), globals["foo"])
}

func TestInterpretForLoop(t *testing.T) {
	source := `
var i : int;
var sum : int;
for i in 1..4 do
    sum := sum + i;
    print i;
end for;
print sum`

	out, interp, err := run(t, source, "")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n6\n", out)

	i, _ := interp.Lookup("i")
	assert.Equal(t, IntValue(3), i)
}

func TestInterpretForLoopEmptyRange(t *testing.T) {
	out, interp, err := run(t, "var i : int := 42; for i in 5..5 do print i; end for", "")
	require.NoError(t, err)
	assert.Empty(t, out)

	i, _ := interp.Lookup("i")
	assert.Equal(t, IntValue(42), i)
}

func TestInterpretForLoopUnboundVariable(t *testing.T) {
	out, interp, err := run(t, "for k in 0..2 do print k end for", "")
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n", out)

	k, ok := interp.Lookup("k")
	assert.True(t, ok)
	assert.Equal(t, IntValue(1), k)
}

func TestInterpretEmptyForBody(t *testing.T) {
	_, interp, err := run(t, "for i in 0..10 do end for", "")
	require.NoError(t, err)
	assert.Empty(t, interp.Globals())
}

func TestInterpretIfElse(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{"then branch", "1", "small\n"},
		{"else branch", "5", "big\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := "var x : int := " + tt.value + `;
if x < 3 do
    print "small";
else
    print "big";
end if`
			out, _, err := run(t, source, "")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestInterpretIfWithoutElse(t *testing.T) {
	out, _, err := run(t, `var b : bool := 1 = 2; if b do print "yes" end if; print "after"`, "")
	require.NoError(t, err)
	assert.Equal(t, "after\n", out)
}

func TestInterpretPrint(t *testing.T) {
	out, _, err := run(t, `var b : bool; var s : string := "hi"; print b; print s; print "lit"`, "")
	require.NoError(t, err)
	assert.Equal(t, "true\nhi\nlit\n", out)
}

func TestInterpretRead(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		stdin    string
		opts     []Option
		expected Value
	}{
		{"string", "var x : string; read x", "hello world\n", nil, StringValue("hello world")},
		{"crlf stripped", "var x : string; read x", "hello\r\n", nil, StringValue("hello")},
		{"end of input", "var x : string := \"old\"; read x", "", nil, StringValue("")},
		{"last line without newline", "var x : string; read x", "tail", nil, StringValue("tail")},
		{"int stores raw text", "var x : int; read x", "42\n", nil, StringValue("42")},
		{"int with sign", "var x : int; read x", "-7\n", nil, StringValue("-7")},
		{"int parsed when enabled", "var x : int; read x", "42\n", []Option{WithReadIntegers(true)}, IntValue(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, interp, err := run(t, tt.source, tt.stdin, tt.opts...)
			require.NoError(t, err)
			v, _ := interp.Lookup("x")
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestInterpretReadSequence(t *testing.T) {
	source := `var a : string; var b : string; read a; read b; print b; print a`
	out, _, err := run(t, source, "first\nsecond\n")
	require.NoError(t, err)
	assert.Equal(t, "second\nfirst\n", out)
}

func TestInterpretErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		stdin    string
		kind     ErrorKind
		sentinel error
	}{
		{"undeclared variable", "print x", "", UndeclaredVariableError, ErrUnknownVariable},
		{"assign to undeclared", "x := 1", "", UndeclaredVariableError, ErrUnknownVariable},
		{"read undeclared", "read x", "1\n", UndeclaredVariableError, ErrUnknownVariable},
		{"assign wrong type", `var x : int; x := "a"`, "", RuntimeTypeError, ErrTypeMismatch},
		{"mixed addition", `var s : string := "a"; var x : int := 1 + s`, "", RuntimeTypeError, ErrTypeMismatch},
		{"string minus", `var s : string := "a"; var x : string := s - s`, "", RuntimeTypeError, ErrTypeMismatch},
		{"unary on string", `var s : string; var x : int := -s`, "", RuntimeTypeError, ErrTypeMismatch},
		{"compare strings", `var s : string; var b : bool := s < s`, "", RuntimeTypeError, ErrTypeMismatch},
		{"not on int", `var b : bool := !1`, "", RuntimeTypeError, ErrTypeMismatch},
		{"and on ints", `var b : bool := 1 & 1`, "", RuntimeTypeError, ErrTypeMismatch},
		{"if on int", `if 1 do print "x" end if`, "", RuntimeTypeError, ErrTypeMismatch},
		{"pass-through on int", `var b : bool := 1`, "", RuntimeTypeError, ErrTypeMismatch},
		{"string loop variable", `var s : string; for s in 0..2 do print s end for`, "", RuntimeTypeError, ErrTypeMismatch},
		{"string loop bound", `var s : string; for i in 0..s do print i end for`, "", RuntimeTypeError, ErrTypeMismatch},
		{"read into bool", "var b : bool; read b", "true\n", RuntimeTypeError, ErrTypeMismatch},
		{"read non-number", "var x : int; read x", "abc\n", InputFormatError, ErrNotAnInteger},
		{"division by zero", "var x : int := 1 / 0", "", ArithmeticError, ErrDivisionByZero},
		{"addition overflow", "var x : int := 9223372036854775807 + 1", "", ArithmeticError, ErrIntegerOverflow},
		{"subtraction overflow", "var x : int := 0 - 9223372036854775807 - 2", "", ArithmeticError, ErrIntegerOverflow},
		{"multiplication overflow", "var x : int := 4611686018427387904 * 2", "", ArithmeticError, ErrIntegerOverflow},
		{"negation overflow", "var m : int := 0 - 9223372036854775807 - 1; var x : int := -m", "", ArithmeticError, ErrIntegerOverflow},
		{"division overflow", "var m : int := 0 - 9223372036854775807 - 1; var x : int := m / -1", "", ArithmeticError, ErrIntegerOverflow},
		{"syntax error", "var x : int :=", "", SyntaxError, ErrUnexpectedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.source, tt.stdin)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestInterpretStopsAtFirstError(t *testing.T) {
	out, interp, err := run(t, `print "before"; print missing; print "after"`, "")
	require.Error(t, err)
	assert.Equal(t, "before\n", out)
	assert.Empty(t, interp.Globals())
}

func TestInterpretAndEvaluatesBothSides(t *testing.T) {
	// The right operand fails even though the left one is false.
	_, _, err := run(t, "var f : bool := 1 = 2; var b : bool := f & missing", "")
	require.Error(t, err)
	assert.Equal(t, UndeclaredVariableError, KindOf(err))
}

func TestInterpretMaxIterations(t *testing.T) {
	out, _, err := run(t, "for i in 0..100 do print i end for", "", WithMaxIterations(3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIterationLimit))
	assert.Equal(t, RuntimeError, KindOf(err))
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestInterpretCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, _, err := run(t, `print "never"`, "", WithContext(ctx))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, RuntimeError, KindOf(err))
	assert.Empty(t, out)
}

func TestIntArithmeticBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"max int", "var x : int := 9223372036854775806 + 1; print x", "9223372036854775807\n"},
		{"min int", "var x : int := 0 - 9223372036854775807 - 1; print x", "-9223372036854775808\n"},
		{"negative product", "var x : int := -4611686018427387904 * 2; print x", "-9223372036854775808\n"},
		{"multiply by zero", "var x : int := 9223372036854775807 * 0; print x", "0\n"},
		{"truncating division", "var x : int := -7 / 2; print x", "-3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.source, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

// cancellingReader cancels the run while a read is waiting and then
// fails the read with err.
type cancellingReader struct {
	cancel context.CancelFunc
	err    error
}

func (r *cancellingReader) Read([]byte) (int, error) {
	r.cancel()
	return 0, r.err
}

func TestInterpretCancelledDuringRead(t *testing.T) {
	tests := []struct {
		name   string
		source string
		err    error
	}{
		{"string variable, context error", `var s : string; read s`, context.Canceled},
		{"string variable, end of input", `var s : string; read s`, io.EOF},
		{"int variable, context error", `var x : int; read x`, context.Canceled},
		{"int variable, end of input", `var x : int; read x; print "after"`, io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			in := &cancellingReader{cancel: cancel, err: tt.err}

			out, _, err := run(t, tt.source, "", WithContext(ctx), WithInput(in))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCancelled)
			assert.Equal(t, RuntimeError, KindOf(err))
			assert.Empty(t, out)
		})
	}
}

func TestGlobalsIsACopy(t *testing.T) {
	_, interp, err := run(t, "var x : int := 1", "")
	require.NoError(t, err)

	globals := interp.Globals()
	globals["x"] = IntValue(99)

	x, _ := interp.Lookup("x")
	assert.Equal(t, IntValue(1), x)
}
