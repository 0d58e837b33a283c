package mol

type AstNode interface {
	pos() Pos
}

// Program is the parser's output: global bindings plus function
// declarations, in source order.
type Program struct {
	Globals []Binding
	Funs    []*FunDef
}

func (p *Program) pos() Pos {
	if len(p.Globals) > 0 {
		return p.Globals[0].Id.Pos
	}
	if len(p.Funs) > 0 {
		return p.Funs[0].pos()
	}
	return Pos{}
}

// Binding declares a name with a type. It appears in globals, formals and
// locals. The type syntax maps one to one onto the closed Type set, so the
// parser resolves it directly.
type Binding struct {
	Type Type
	Id   Token
}

// FunDef declares a function. Built-in functions use the same shape with a
// nil body; their implementations live in the runtime library.
type FunDef struct {
	ReturnType Type
	Id         Token
	Formals    []Binding
	Locals     []Binding
	Body       []StmtNode
}

func (f *FunDef) pos() Pos {
	return f.Id.Pos
}

type StmtNode interface {
	AstNode
	stmt()
}

type ExprStmt struct {
	Expr ExprNode
}

type IfStmt struct {
	If   Token
	Cond ExprNode
	Then StmtNode
	Else StmtNode
}

type ForStmt struct {
	For    Token
	Init   ExprNode
	Cond   ExprNode
	Update ExprNode
	Body   StmtNode
}

type WhileStmt struct {
	While Token
	Cond  ExprNode
	Body  StmtNode
}

type ReturnStmt struct {
	Return Token
	Arg    ExprNode
}

type BlockStmt struct {
	Left  Token
	Stmts []StmtNode
	Right Token
}

func (e *ExprStmt) pos() Pos {
	return e.Expr.pos()
}
func (i *IfStmt) pos() Pos {
	return i.If.Pos
}
func (f *ForStmt) pos() Pos {
	return f.For.Pos
}
func (w *WhileStmt) pos() Pos {
	return w.While.Pos
}
func (r *ReturnStmt) pos() Pos {
	return r.Return.Pos
}
func (b *BlockStmt) pos() Pos {
	return b.Left.Pos
}

func (e *ExprStmt) stmt()   {}
func (i *IfStmt) stmt()     {}
func (f *ForStmt) stmt()    {}
func (w *WhileStmt) stmt()  {}
func (r *ReturnStmt) stmt() {}
func (b *BlockStmt) stmt()  {}

type ExprNode interface {
	AstNode
	expr()
}

// LiteralExprNode covers integer, float, string and boolean literals as well
// as plain identifiers; the kind of the token decides.
type LiteralExprNode struct {
	Token
}

// NoExprNode is the empty-expression placeholder used for omitted for-loop
// clauses and bare returns.
type NoExprNode struct {
	Token
}

type AssignExprNode struct {
	Id    Token
	Eq    Token
	Value ExprNode
}

type UnaryExprNode struct {
	Operator Token
	Operand  ExprNode
}

type BinaryExprNode struct {
	Left  ExprNode
	Op    Token
	Right ExprNode
}

type GroupedExprNode struct {
	Left  Token
	Inner ExprNode
	Right Token
}

type CallExprNode struct {
	Callee Token
	Args   []ExprNode
}

type ArrayLitExprNode struct {
	Left  Token
	Elems []ExprNode
}

type ArrayIndexExprNode struct {
	Id    Token
	Index ExprNode
}

type ArrayAssignExprNode struct {
	Id    Token
	Index ExprNode
	Value ExprNode
}

// MatrixLitExprNode is a matrix literal: rows separated by semicolons,
// cells separated by commas.
type MatrixLitExprNode struct {
	Left Token
	Rows [][]ExprNode
}

// MatrixCtorExprNode is the empty-matrix constructor <height, width>.
type MatrixCtorExprNode struct {
	Left   Token
	Height ExprNode
	Width  ExprNode
}

type MatrixIndexExprNode struct {
	Id  Token
	Row ExprNode
	Col ExprNode
}

type MatrixAssignExprNode struct {
	Id    Token
	Row   ExprNode
	Col   ExprNode
	Value ExprNode
}

func (l *LiteralExprNode) pos() Pos {
	return l.Token.Pos
}
func (n *NoExprNode) pos() Pos {
	return n.Token.Pos
}
func (a *AssignExprNode) pos() Pos {
	return a.Id.Pos
}
func (u *UnaryExprNode) pos() Pos {
	return u.Operator.Pos
}
func (b *BinaryExprNode) pos() Pos {
	return b.Left.pos()
}
func (g *GroupedExprNode) pos() Pos {
	return g.Left.Pos
}
func (c *CallExprNode) pos() Pos {
	return c.Callee.Pos
}
func (a *ArrayLitExprNode) pos() Pos {
	return a.Left.Pos
}
func (a *ArrayIndexExprNode) pos() Pos {
	return a.Id.Pos
}
func (a *ArrayAssignExprNode) pos() Pos {
	return a.Id.Pos
}
func (m *MatrixLitExprNode) pos() Pos {
	return m.Left.Pos
}
func (m *MatrixCtorExprNode) pos() Pos {
	return m.Left.Pos
}
func (m *MatrixIndexExprNode) pos() Pos {
	return m.Id.Pos
}
func (m *MatrixAssignExprNode) pos() Pos {
	return m.Id.Pos
}

func (l *LiteralExprNode) expr()      {}
func (n *NoExprNode) expr()           {}
func (a *AssignExprNode) expr()       {}
func (u *UnaryExprNode) expr()        {}
func (b *BinaryExprNode) expr()       {}
func (g *GroupedExprNode) expr()      {}
func (c *CallExprNode) expr()         {}
func (a *ArrayLitExprNode) expr()     {}
func (a *ArrayIndexExprNode) expr()   {}
func (a *ArrayAssignExprNode) expr()  {}
func (m *MatrixLitExprNode) expr()    {}
func (m *MatrixCtorExprNode) expr()   {}
func (m *MatrixIndexExprNode) expr()  {}
func (m *MatrixAssignExprNode) expr() {}
