package minipl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/antibyte/minipl/pkg/logger"
)

// Interpreter walks the tree produced by its Parser and executes it
// against a single global variable table.
type Interpreter struct {
	parser  *Parser
	globals map[string]Value

	ctx           context.Context
	input         io.Reader
	reader        *bufio.Reader
	output        io.Writer
	readIntegers  bool
	maxIterations int64
	iterations    int64
}

// NewInterpreter creates an interpreter for the program p will produce.
func NewInterpreter(p *Parser, opts ...Option) *Interpreter {
	i := &Interpreter{
		parser:  p,
		globals: make(map[string]Value),
		ctx:     context.Background(),
		input:   os.Stdin,
		output:  os.Stdout,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.reader = bufio.NewReader(i.input)
	return i
}

// New wires a scanner, parser and interpreter for source.
func New(source string, opts ...Option) *Interpreter {
	return NewInterpreter(NewParser(NewScanner(source)), opts...)
}

// Interpret parses the program and runs it. It returns the value of the
// program, which is always None, or the first error encountered. Output
// written before an error is not rolled back.
func (i *Interpreter) Interpret() (Value, error) {
	prog, err := i.parser.Parse()
	if err != nil {
		return None(), err
	}
	logger.Debug(logger.AreaInterpreter, "running program with %d statements", len(prog.Statements))
	v, err := i.visit(prog)
	if err != nil {
		logger.Debug(logger.AreaInterpreter, "run stopped: %v", err)
		return None(), err
	}
	return v, nil
}

// Globals returns a copy of the variable table.
func (i *Interpreter) Globals() map[string]Value {
	out := make(map[string]Value, len(i.globals))
	for k, v := range i.globals {
		out[k] = v
	}
	return out
}

// Lookup returns the value bound to name, ignoring case.
func (i *Interpreter) Lookup(name string) (Value, bool) {
	v, ok := i.globals[strings.ToLower(name)]
	return v, ok
}

func (i *Interpreter) visit(n Node) (Value, error) {
	switch n := n.(type) {
	case *Program:
		return None(), i.visitStatements(n.Statements)
	case *VarDecl:
		return None(), i.visitVarDecl(n)
	case *DeclAssign:
		return None(), i.visitDeclAssign(n)
	case *Assign:
		return None(), i.visitAssign(n)
	case *Var:
		return i.visitVar(n)
	case *Num:
		return IntValue(n.Value), nil
	case *Str:
		return StringValue(n.Value), nil
	case *UnaryOp:
		return i.visitUnaryOp(n)
	case *BinOp:
		return i.visitBinOp(n)
	case *BoolExpr:
		return i.visitBoolExpr(n)
	case *ForLoop:
		return None(), i.visitForLoop(n)
	case *IfStatement:
		return None(), i.visitIfStatement(n)
	case *PrintStr:
		return None(), i.println(n.Value, n.Position)
	case *PrintVar:
		return None(), i.visitPrintVar(n)
	case *Read:
		return None(), i.visitRead(n)
	case *NoOp:
		return None(), nil
	default:
		return None(), fmt.Errorf("minipl: unknown node type %T", n)
	}
}

func (i *Interpreter) visitStatements(stmts []Node) error {
	for _, stmt := range stmts {
		if err := i.checkContext(stmt.Pos()); err != nil {
			return err
		}
		if _, err := i.visit(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) checkContext(pos Position) error {
	select {
	case <-i.ctx.Done():
		return &Error{Kind: RuntimeError, Detail: "execution cancelled: " + i.ctx.Err().Error(), Pos: pos, Err: ErrCancelled}
	default:
		return nil
	}
}

func (i *Interpreter) visitVarDecl(n *VarDecl) error {
	v, ok := zeroValue(n.Type)
	if !ok {
		return newError(RuntimeTypeError, ErrTypeMismatch, n.Pos(), "unknown type %s for %s", n.Type, n.Var.Name)
	}
	i.globals[strings.ToLower(n.Var.Name)] = v
	return nil
}

// visitDeclAssign stores the initializer as is. The declared type is not
// checked against the value.
func (i *Interpreter) visitDeclAssign(n *DeclAssign) error {
	v, err := i.visit(n.Value)
	if err != nil {
		return err
	}
	i.globals[strings.ToLower(n.Var.Name)] = v
	return nil
}

func (i *Interpreter) visitAssign(n *Assign) error {
	old, err := i.visitVar(n.Var)
	if err != nil {
		return err
	}
	v, err := i.visit(n.Value)
	if err != nil {
		return err
	}
	if old.Kind != v.Kind {
		return newError(RuntimeTypeError, ErrTypeMismatch, n.Pos(),
			"cannot assign %s value to %s variable %s", v.Kind, old.Kind, n.Var.Name)
	}
	i.globals[strings.ToLower(n.Var.Name)] = v
	return nil
}

func (i *Interpreter) visitVar(n *Var) (Value, error) {
	v, ok := i.globals[strings.ToLower(n.Name)]
	if !ok {
		return None(), newError(UndeclaredVariableError, ErrUnknownVariable, n.Position,
			"variable %s used before declaration", n.Name)
	}
	return v, nil
}

func (i *Interpreter) visitUnaryOp(n *UnaryOp) (Value, error) {
	v, err := i.visit(n.Operand)
	if err != nil {
		return None(), err
	}
	if v.Kind != KindInt {
		return None(), newError(RuntimeTypeError, ErrTypeMismatch, n.Op.Pos,
			"unary %s needs an int operand, got %s", n.Op.Literal, v.Kind)
	}
	if n.Op.Type == TokenMinus {
		if v.Int == math.MinInt64 {
			return None(), newError(ArithmeticError, ErrIntegerOverflow, n.Op.Pos, "integer overflow in -%d", v.Int)
		}
		return IntValue(-v.Int), nil
	}
	return v, nil
}

func (i *Interpreter) visitBinOp(n *BinOp) (Value, error) {
	left, err := i.visit(n.Left)
	if err != nil {
		return None(), err
	}
	right, err := i.visit(n.Right)
	if err != nil {
		return None(), err
	}

	switch {
	case left.Kind == KindInt && right.Kind == KindInt:
		result, err := intArithmetic(n.Op, left.Int, right.Int)
		if err != nil {
			return None(), err
		}
		return IntValue(result), nil
	case left.Kind == KindString && right.Kind == KindString:
		if n.Op.Type == TokenPlus {
			return StringValue(left.Str + right.Str), nil
		}
		return None(), newError(RuntimeTypeError, ErrTypeMismatch, n.Op.Pos,
			"operator %s is not defined for strings", n.Op.Literal)
	}
	return None(), newError(RuntimeTypeError, ErrTypeMismatch, n.Op.Pos,
		"operator %s cannot combine %s and %s", n.Op.Literal, left.Kind, right.Kind)
}

// intArithmetic applies op to a and b. Results outside the int64 range are
// an ArithmeticError, as is division by zero.
func intArithmetic(op Token, a, b int64) (int64, error) {
	overflow := func() (int64, error) {
		return 0, newError(ArithmeticError, ErrIntegerOverflow, op.Pos,
			"integer overflow in %d %s %d", a, op.Literal, b)
	}
	switch op.Type {
	case TokenPlus:
		if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
			return overflow()
		}
		return a + b, nil
	case TokenMinus:
		if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
			return overflow()
		}
		return a - b, nil
	case TokenMul:
		if a == 0 || b == 0 {
			return 0, nil
		}
		p := a * b
		if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return overflow()
		}
		return p, nil
	case TokenDiv:
		if b == 0 {
			return 0, newError(ArithmeticError, ErrDivisionByZero, op.Pos, "division by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return overflow()
		}
		return a / b, nil
	}
	return 0, newError(RuntimeTypeError, ErrTypeMismatch, op.Pos, "operator %s is not defined for integers", op.Literal)
}

func (i *Interpreter) visitBoolExpr(n *BoolExpr) (Value, error) {
	switch n.Op.Type {
	case TokenSemi:
		v, err := i.visit(n.Left)
		if err != nil {
			return None(), err
		}
		if v.Kind != KindBool {
			return None(), newError(RuntimeTypeError, ErrTypeMismatch, n.Left.Pos(),
				"expected a bool value, got %s", v.Kind)
		}
		return v, nil

	case TokenNot:
		v, err := i.visit(n.Right)
		if err != nil {
			return None(), err
		}
		if v.Kind != KindBool {
			return None(), newError(RuntimeTypeError, ErrTypeMismatch, n.Op.Pos,
				"! needs a bool operand, got %s", v.Kind)
		}
		return BoolValue(!v.Bool), nil

	case TokenAnd:
		// Both operands are always evaluated.
		left, err := i.visit(n.Left)
		if err != nil {
			return None(), err
		}
		right, err := i.visit(n.Right)
		if err != nil {
			return None(), err
		}
		if left.Kind != KindBool || right.Kind != KindBool {
			return None(), newError(RuntimeTypeError, ErrTypeMismatch, n.Op.Pos,
				"& needs bool operands, got %s and %s", left.Kind, right.Kind)
		}
		return BoolValue(left.Bool && right.Bool), nil
	}

	left, err := i.visit(n.Left)
	if err != nil {
		return None(), err
	}
	right, err := i.visit(n.Right)
	if err != nil {
		return None(), err
	}
	if left.Kind != KindInt || right.Kind != KindInt {
		return None(), newError(RuntimeTypeError, ErrTypeMismatch, n.Op.Pos,
			"%s needs int operands, got %s and %s", n.Op.Literal, left.Kind, right.Kind)
	}
	switch n.Op.Type {
	case TokenEqual:
		return BoolValue(left.Int == right.Int), nil
	case TokenLessThan:
		return BoolValue(left.Int < right.Int), nil
	default:
		return None(), newError(RuntimeTypeError, ErrTypeMismatch, n.Op.Pos,
			"unsupported boolean operator %s", n.Op.Literal)
	}
}

// visitForLoop runs the body once for every value in [start, end). The
// loop variable keeps its last value afterwards.
func (i *Interpreter) visitForLoop(n *ForLoop) error {
	name := strings.ToLower(n.Var.Name)
	if v, ok := i.globals[name]; ok && v.Kind != KindInt {
		return newError(RuntimeTypeError, ErrTypeMismatch, n.Var.Position,
			"loop variable %s must be an int, is %s", n.Var.Name, v.Kind)
	}

	start, err := i.visit(n.Start)
	if err != nil {
		return err
	}
	end, err := i.visit(n.End)
	if err != nil {
		return err
	}
	if start.Kind != KindInt || end.Kind != KindInt {
		return newError(RuntimeTypeError, ErrTypeMismatch, n.Position,
			"loop range must be int..int, got %s..%s", start.Kind, end.Kind)
	}

	for k := start.Int; k < end.Int; k++ {
		if err := i.checkContext(n.Position); err != nil {
			return err
		}
		i.iterations++
		if i.maxIterations > 0 && i.iterations > i.maxIterations {
			return newError(RuntimeError, ErrIterationLimit, n.Position,
				"more than %d loop iterations", i.maxIterations)
		}
		i.globals[name] = IntValue(k)
		if err := i.visitStatements(n.Statements); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) visitIfStatement(n *IfStatement) error {
	cond, err := i.visit(n.Cond)
	if err != nil {
		return err
	}
	if cond.Kind != KindBool {
		return newError(RuntimeTypeError, ErrTypeMismatch, n.Position,
			"if condition must be a bool, got %s", cond.Kind)
	}
	if cond.Bool {
		return i.visitStatements(n.Then)
	}
	return i.visitStatements(n.Else)
}

func (i *Interpreter) visitPrintVar(n *PrintVar) error {
	v, err := i.visitVar(n.Var)
	if err != nil {
		return err
	}
	return i.println(v.String(), n.Pos())
}

func (i *Interpreter) println(text string, pos Position) error {
	if _, err := io.WriteString(i.output, text+"\n"); err != nil {
		return &Error{Kind: IOError, Detail: "writing output: " + err.Error(), Pos: pos, Err: err}
	}
	return nil
}

// visitRead reads one line into an existing variable. Reading into an int
// variable validates the text and, unless readIntegers is set, stores the
// text itself.
func (i *Interpreter) visitRead(n *Read) error {
	old, err := i.visitVar(n.Var)
	if err != nil {
		return err
	}
	if old.Kind != KindString && old.Kind != KindInt {
		return newError(RuntimeTypeError, ErrTypeMismatch, n.Pos(),
			"cannot read into %s variable %s", old.Kind, n.Var.Name)
	}

	line, err := i.readLine()
	if cerr := i.checkContext(n.Pos()); cerr != nil {
		return cerr
	}
	if err != nil {
		return &Error{Kind: IOError, Detail: "reading input: " + err.Error(), Pos: n.Pos(), Err: err}
	}

	name := strings.ToLower(n.Var.Name)
	if old.Kind == KindString {
		i.globals[name] = StringValue(line)
		return nil
	}

	num, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return newError(InputFormatError, ErrNotAnInteger, n.Pos(),
			"cannot read %q into int variable %s", line, n.Var.Name)
	}
	if i.readIntegers {
		i.globals[name] = IntValue(num)
	} else {
		i.globals[name] = StringValue(line)
	}
	return nil
}

// readLine returns the next input line without its line terminator. End of
// input yields whatever was read, possibly the empty string.
func (i *Interpreter) readLine() (string, error) {
	line, err := i.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}
