package minipl

// Node is implemented by every syntax tree node. The set of node types is
// closed; the interpreter switches over it exhaustively.
type Node interface {
	Pos() Position
	node()
}

// Program is the root: the top-level statements in source order.
type Program struct {
	Statements []Node
	Position   Position
}

// Var is a reference to a variable by name, resolved only when evaluated.
type Var struct {
	Name     string
	Position Position
}

// VarDecl declares a variable without initializer.
type VarDecl struct {
	Var  *Var
	Type TokenType
}

// DeclAssign declares a variable and stores the value of Value in it.
type DeclAssign struct {
	Var   *Var
	Type  TokenType
	Value Node
}

// Assign overwrites an existing variable.
type Assign struct {
	Var   *Var
	Value Node
}

// Num is an integer literal.
type Num struct {
	Value    int64
	Position Position
}

// Str is a string literal.
type Str struct {
	Value    string
	Position Position
}

// UnaryOp applies a sign to an integer operand.
type UnaryOp struct {
	Op      Token
	Operand Node
}

// BinOp is an arithmetic or concatenation operation.
type BinOp struct {
	Left  Node
	Op    Token
	Right Node
}

// BoolExpr is a boolean expression. Two shorthand forms exist: NOT keeps
// its operand in Right and a *NoOp in Left; the pass-through form (a bare
// expression in boolean position) has Op.Type == TokenSemi and a *NoOp in
// Right.
type BoolExpr struct {
	Left  Node
	Op    Token
	Right Node
}

// IsPassThrough reports whether the node only re-evaluates Left.
func (b *BoolExpr) IsPassThrough() bool { return b.Op.Type == TokenSemi }

// ForLoop iterates Var over the half-open range [Start, End).
type ForLoop struct {
	Var        *Var
	Start      Node
	End        Node
	Statements []Node
	Position   Position
}

// IfStatement runs Then or Else depending on Cond.
type IfStatement struct {
	Cond     Node
	Then     []Node
	Else     []Node
	Position Position
}

// PrintStr prints a string literal.
type PrintStr struct {
	Value    string
	Position Position
}

// PrintVar prints the current value of a variable.
type PrintVar struct {
	Var *Var
}

// Read stores one line of input in a variable.
type Read struct {
	Var *Var
}

// NoOp is the empty statement.
type NoOp struct {
	Position Position
}

func (n *Program) Pos() Position     { return n.Position }
func (n *Var) Pos() Position         { return n.Position }
func (n *VarDecl) Pos() Position     { return n.Var.Position }
func (n *DeclAssign) Pos() Position  { return n.Var.Position }
func (n *Assign) Pos() Position      { return n.Var.Position }
func (n *Num) Pos() Position         { return n.Position }
func (n *Str) Pos() Position         { return n.Position }
func (n *UnaryOp) Pos() Position     { return n.Op.Pos }
func (n *BinOp) Pos() Position       { return n.Op.Pos }
func (n *BoolExpr) Pos() Position    { return n.Op.Pos }
func (n *ForLoop) Pos() Position     { return n.Position }
func (n *IfStatement) Pos() Position { return n.Position }
func (n *PrintStr) Pos() Position    { return n.Position }
func (n *PrintVar) Pos() Position    { return n.Var.Position }
func (n *Read) Pos() Position        { return n.Var.Position }
func (n *NoOp) Pos() Position        { return n.Position }

func (*Program) node()     {}
func (*Var) node()         {}
func (*VarDecl) node()     {}
func (*DeclAssign) node()  {}
func (*Assign) node()      {}
func (*Num) node()         {}
func (*Str) node()         {}
func (*UnaryOp) node()     {}
func (*BinOp) node()       {}
func (*BoolExpr) node()    {}
func (*ForLoop) node()     {}
func (*IfStatement) node() {}
func (*PrintStr) node()    {}
func (*PrintVar) node()    {}
func (*Read) node()        {}
func (*NoOp) node()        {}

func isNoOp(n Node) bool {
	_, ok := n.(*NoOp)
	return ok
}
