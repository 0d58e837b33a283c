package mol

// CheckedProgram is the semantic pass's output. Every expression node in
// every function body carries its resolved type, and every invariant the
// checker enforces is guaranteed to hold; the code generator does not
// re-validate.
type CheckedProgram struct {
	Globals []Binding
	Funs    []*CheckedFunDef
}

type CheckedFunDef struct {
	ReturnType Type
	Id         Token
	Formals    []Binding
	Locals     []Binding
	Body       []CheckedStmt
}

type CheckedStmt interface {
	checkedStmt()
}

type CheckedExprStmt struct {
	Expr CheckedExpr
}

type CheckedIf struct {
	Cond CheckedExpr
	Then CheckedStmt
	Else CheckedStmt
}

type CheckedFor struct {
	Init   CheckedExpr
	Cond   CheckedExpr
	Update CheckedExpr
	Body   CheckedStmt
}

type CheckedWhile struct {
	Cond CheckedExpr
	Body CheckedStmt
}

type CheckedReturn struct {
	Value CheckedExpr
}

type CheckedBlock struct {
	Stmts []CheckedStmt
}

func (e *CheckedExprStmt) checkedStmt() {}
func (i *CheckedIf) checkedStmt()       {}
func (f *CheckedFor) checkedStmt()      {}
func (w *CheckedWhile) checkedStmt()    {}
func (r *CheckedReturn) checkedStmt()   {}
func (b *CheckedBlock) checkedStmt()    {}

type CheckedExpr interface {
	TypeOf() Type
	checkedExpr()
}

type CheckedLiteralExpr struct {
	Literal Token
	Type    Type
}

type CheckedIdExpr struct {
	Id   Token
	Type Type
}

type CheckedNoExpr struct {
	Type Type
}

type CheckedAssignExpr struct {
	Id    Token
	Value CheckedExpr
	Type  Type
}

type CheckedUnaryExpr struct {
	Operator Token
	Operand  CheckedExpr
	Type     Type
}

type CheckedBinaryExpr struct {
	Left  CheckedExpr
	Op    Token
	Right CheckedExpr
	Type  Type
}

type CheckedCallExpr struct {
	Callee Token
	Args   []CheckedExpr
	Type   Type
}

type CheckedArrayLitExpr struct {
	Elems []CheckedExpr
	Type  Type
}

type CheckedArrayIndexExpr struct {
	Id    Token
	Index CheckedExpr
	Type  Type
}

type CheckedArrayAssignExpr struct {
	Id    Token
	Index CheckedExpr
	Value CheckedExpr
	Type  Type
}

type CheckedMatrixLitExpr struct {
	Rows [][]CheckedExpr
	Type Type
}

type CheckedMatrixCtorExpr struct {
	Height CheckedExpr
	Width  CheckedExpr
	Type   Type
}

type CheckedMatrixIndexExpr struct {
	Id   Token
	Row  CheckedExpr
	Col  CheckedExpr
	Type Type
}

type CheckedMatrixAssignExpr struct {
	Id    Token
	Row   CheckedExpr
	Col   CheckedExpr
	Value CheckedExpr
	Type  Type
}

func (e *CheckedLiteralExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedIdExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedNoExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedAssignExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedUnaryExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedBinaryExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedCallExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedArrayLitExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedArrayIndexExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedArrayAssignExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedMatrixLitExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedMatrixCtorExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedMatrixIndexExpr) TypeOf() Type {
	return e.Type
}
func (e *CheckedMatrixAssignExpr) TypeOf() Type {
	return e.Type
}

func (e *CheckedLiteralExpr) checkedExpr()      {}
func (e *CheckedIdExpr) checkedExpr()           {}
func (e *CheckedNoExpr) checkedExpr()           {}
func (e *CheckedAssignExpr) checkedExpr()       {}
func (e *CheckedUnaryExpr) checkedExpr()        {}
func (e *CheckedBinaryExpr) checkedExpr()       {}
func (e *CheckedCallExpr) checkedExpr()         {}
func (e *CheckedArrayLitExpr) checkedExpr()     {}
func (e *CheckedArrayIndexExpr) checkedExpr()   {}
func (e *CheckedArrayAssignExpr) checkedExpr()  {}
func (e *CheckedMatrixLitExpr) checkedExpr()    {}
func (e *CheckedMatrixCtorExpr) checkedExpr()   {}
func (e *CheckedMatrixIndexExpr) checkedExpr()  {}
func (e *CheckedMatrixAssignExpr) checkedExpr() {}
