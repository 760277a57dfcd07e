package minipl

import (
	"github.com/antibyte/minipl/pkg/logger"
)

// tokenSpellings is how expected tokens are named in syntax errors.
var tokenSpellings = map[TokenType]string{
	TokenEOF:    "end of input",
	TokenID:     "identifier",
	TokenAssign: "':='",
	TokenSemi:   "';'",
	TokenColon:  "':'",
	TokenLParen: "'('",
	TokenRParen: "')'",
	TokenTo:     "'..'",
	TokenVar:    "'var'",
	TokenPrint:  "'print'",
	TokenRead:   "'read'",
	TokenFor:    "'for'",
	TokenEnd:    "'end'",
	TokenIf:     "'if'",
	TokenElse:   "'else'",
	TokenDo:     "'do'",
	TokenIn:     "'in'",
}

// Parser builds a syntax tree by recursive descent with one token of
// lookahead. It pulls tokens from its Scanner only when it needs them and
// stops at the first error.
type Parser struct {
	scanner *Scanner
	current Token
	err     error
}

// NewParser creates a parser and reads the first token.
func NewParser(s *Scanner) *Parser {
	p := &Parser{scanner: s}
	p.current, p.err = s.NextToken()
	return p
}

// Parse consumes the whole token stream and returns the program.
func (p *Parser) Parse() (*Program, error) {
	if p.err != nil {
		return nil, p.err
	}
	prog, err := p.program()
	if err != nil {
		logger.Debug(logger.AreaParser, "parse failed: %v", err)
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, newError(SyntaxError, ErrTrailingTokens, p.current.Pos,
			"unexpected %s after end of program", p.current.describe())
	}
	logger.Debug(logger.AreaParser, "parsed program with %d top-level statements", len(prog.Statements))
	return prog, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() error {
	tok, err := p.scanner.NextToken()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

// eat consumes the current token if it has the expected type.
func (p *Parser) eat(typ TokenType) error {
	if p.current.Type != typ {
		name, ok := tokenSpellings[typ]
		if !ok {
			name = typ.String()
		}
		return p.unexpected(name)
	}
	return p.nextToken()
}

func (p *Parser) unexpected(expected string) error {
	return newError(SyntaxError, ErrUnexpectedToken, p.current.Pos,
		"expected %s but found %s", expected, p.current.describe())
}

func (p *Parser) program() (*Program, error) {
	pos := p.current.Pos
	stmts, err := p.statementList()
	if err != nil {
		return nil, err
	}
	return &Program{Statements: stmts, Position: pos}, nil
}

func (p *Parser) statementList() ([]Node, error) {
	stmt, err := p.statement()
	if err != nil {
		return nil, err
	}
	stmts := []Node{stmt}

	for p.current.Type == TokenSemi {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	// Two statements without a separator.
	if p.current.Type == TokenID {
		return nil, p.unexpected("';'")
	}
	return stmts, nil
}

func (p *Parser) statement() (Node, error) {
	switch p.current.Type {
	case TokenID:
		return p.assignmentStatement()
	case TokenVar:
		return p.declarationStatement()
	case TokenPrint:
		return p.printStatement()
	case TokenRead:
		return p.readStatement()
	case TokenFor:
		return p.forLoop()
	case TokenIf:
		return p.ifStatement()
	default:
		return &NoOp{Position: p.current.Pos}, nil
	}
}

func (p *Parser) variable() (*Var, error) {
	if p.current.Type != TokenID {
		return nil, p.unexpected("identifier")
	}
	v := &Var{Name: p.current.Literal, Position: p.current.Pos}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	return v, nil
}

func (p *Parser) printStatement() (Node, error) {
	pos := p.current.Pos
	if err := p.eat(TokenPrint); err != nil {
		return nil, err
	}
	switch p.current.Type {
	case TokenID:
		v, err := p.variable()
		if err != nil {
			return nil, err
		}
		return &PrintVar{Var: v}, nil
	case TokenStringLiteral:
		text := p.current.Literal
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return &PrintStr{Value: text, Position: pos}, nil
	default:
		return nil, p.unexpected("identifier or string literal")
	}
}

func (p *Parser) readStatement() (Node, error) {
	if err := p.eat(TokenRead); err != nil {
		return nil, err
	}
	v, err := p.variable()
	if err != nil {
		return nil, err
	}
	return &Read{Var: v}, nil
}

func (p *Parser) assignmentStatement() (Node, error) {
	v, err := p.variable()
	if err != nil {
		return nil, err
	}
	if err := p.eat(TokenAssign); err != nil {
		return nil, err
	}
	value, err := p.assignedValue()
	if err != nil {
		return nil, err
	}
	return &Assign{Var: v, Value: value}, nil
}

// assignedValue parses the right-hand side of an assignment: a string
// literal, a negation, or an expression optionally compared with another.
func (p *Parser) assignedValue() (Node, error) {
	switch p.current.Type {
	case TokenStringLiteral:
		return p.stringLiteral()
	case TokenNot:
		return p.boolExpr()
	}
	left, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !isBoolOperator(p.current.Type) {
		return left, nil
	}
	op := p.current
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	right, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &BoolExpr{Left: left, Op: op, Right: right}, nil
}

func (p *Parser) declarationStatement() (Node, error) {
	if err := p.eat(TokenVar); err != nil {
		return nil, err
	}
	v, err := p.variable()
	if err != nil {
		return nil, err
	}
	if err := p.eat(TokenColon); err != nil {
		return nil, err
	}

	typ := p.current.Type
	switch typ {
	case TokenInt, TokenStr, TokenBool:
	default:
		return nil, p.unexpected("type 'int', 'string' or 'bool'")
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	if p.current.Type != TokenAssign {
		switch p.current.Type {
		case TokenSemi, TokenEOF, TokenEnd, TokenElse:
			return &VarDecl{Var: v, Type: typ}, nil
		}
		return nil, p.unexpected("';' or ':='")
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	var value Node
	switch typ {
	case TokenInt:
		value, err = p.expr()
	case TokenStr:
		if p.current.Type == TokenStringLiteral {
			value, err = p.stringLiteral()
		} else {
			value, err = p.expr()
		}
	case TokenBool:
		value, err = p.boolExpr()
	}
	if err != nil {
		return nil, err
	}
	return &DeclAssign{Var: v, Type: typ, Value: value}, nil
}

func (p *Parser) stringLiteral() (Node, error) {
	node := &Str{Value: p.current.Literal, Position: p.current.Pos}
	if err := p.eat(TokenStringLiteral); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) ifStatement() (Node, error) {
	pos := p.current.Pos
	if err := p.eat(TokenIf); err != nil {
		return nil, err
	}
	cond, err := p.boolExpr()
	if err != nil {
		return nil, err
	}
	if err := p.eat(TokenDo); err != nil {
		return nil, err
	}
	then, err := p.statementList()
	if err != nil {
		return nil, err
	}

	var els []Node
	if p.current.Type == TokenElse {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		els, err = p.statementList()
		if err != nil {
			return nil, err
		}
	}

	if err := p.eat(TokenEnd); err != nil {
		return nil, err
	}
	if err := p.eat(TokenIf); err != nil {
		return nil, err
	}
	return &IfStatement{Cond: cond, Then: then, Else: els, Position: pos}, nil
}

// forLoop parses a for statement. A loop whose body holds only empty
// statements is dropped and replaced by a NoOp.
func (p *Parser) forLoop() (Node, error) {
	pos := p.current.Pos
	if err := p.eat(TokenFor); err != nil {
		return nil, err
	}
	v, err := p.variable()
	if err != nil {
		return nil, err
	}
	if err := p.eat(TokenIn); err != nil {
		return nil, err
	}
	start, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.eat(TokenTo); err != nil {
		return nil, err
	}
	end, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.eat(TokenDo); err != nil {
		return nil, err
	}
	body, err := p.statementList()
	if err != nil {
		return nil, err
	}
	if err := p.eat(TokenEnd); err != nil {
		return nil, err
	}
	if err := p.eat(TokenFor); err != nil {
		return nil, err
	}

	empty := true
	for _, stmt := range body {
		if !isNoOp(stmt) {
			empty = false
			break
		}
	}
	if empty {
		logger.Debug(logger.AreaParser, "for loop at %s has an empty body, dropping it", pos)
		return &NoOp{Position: pos}, nil
	}
	return &ForLoop{Var: v, Start: start, End: end, Statements: body, Position: pos}, nil
}

// boolExpr parses '!' expr | expr [ ('<'|'='|'&') expr ]. A bare expression
// becomes a pass-through node.
func (p *Parser) boolExpr() (Node, error) {
	if p.current.Type == TokenNot {
		op := p.current
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		right, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &BoolExpr{Left: &NoOp{Position: op.Pos}, Op: op, Right: right}, nil
	}

	left, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !isBoolOperator(p.current.Type) {
		passThrough := Token{Type: TokenSemi, Literal: ";", Pos: left.Pos()}
		return &BoolExpr{Left: left, Op: passThrough, Right: &NoOp{Position: left.Pos()}}, nil
	}

	op := p.current
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	right, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &BoolExpr{Left: left, Op: op, Right: right}, nil
}

// expr handles + and -, the lowest arithmetic precedence.
func (p *Parser) expr() (Node, error) {
	node, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.current.Type == TokenPlus || p.current.Type == TokenMinus {
		op := p.current
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		node = &BinOp{Left: node, Op: op, Right: right}
	}
	return node, nil
}

// term handles * and /.
func (p *Parser) term() (Node, error) {
	node, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.current.Type == TokenMul || p.current.Type == TokenDiv {
		op := p.current
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		node = &BinOp{Left: node, Op: op, Right: right}
	}
	return node, nil
}

func (p *Parser) factor() (Node, error) {
	tok := p.current
	switch tok.Type {
	case TokenPlus, TokenMinus:
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		operand, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: tok, Operand: operand}, nil
	case TokenIntLiteral:
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return &Num{Value: tok.Int, Position: tok.Pos}, nil
	case TokenLParen:
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		node, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.eat(TokenRParen); err != nil {
			return nil, err
		}
		return node, nil
	case TokenID:
		return p.variable()
	default:
		return nil, p.unexpected("expression")
	}
}

func isBoolOperator(typ TokenType) bool {
	return typ == TokenLessThan || typ == TokenEqual || typ == TokenAnd
}
