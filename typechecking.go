package mol

import "sort"

// CheckCompilationUnit runs the whole semantic pass: it validates the global
// bindings, builds the function registry, requires a main function and then
// checks every function body in declaration order. The first violation
// aborts the pass; no partial typed tree is ever returned.
func CheckCompilationUnit(p *Program) (*CheckedProgram, error) {
	if err := ValidateBindings("global", p.Globals); err != nil {
		return nil, err
	}
	funs, err := NewRegistry(p.Funs)
	if err != nil {
		return nil, err
	}
	if _, err := funs.Lookup("main", p.pos()); err != nil {
		return nil, err
	}
	checked := make([]*CheckedFunDef, 0, len(p.Funs))
	for _, f := range p.Funs {
		cf, err := CheckFunDef(f, p.Globals, funs)
		if err != nil {
			return nil, err
		}
		checked = append(checked, cf)
	}
	return &CheckedProgram{
		Globals: p.Globals,
		Funs:    checked,
	}, nil
}

// ValidateBindings rejects void-typed and duplicate-named bindings within a
// single binding list. Formals and locals are validated independently, so a
// local is free to shadow a formal or a global.
func ValidateBindings(kind string, bindings []Binding) error {
	for _, b := range bindings {
		if b.Type == VoidType {
			return NewError(b.Id.Pos, ErrVoidBinding, "illegal void %s: %s", kind, b.Id.Content)
		}
	}
	sorted := make([]Binding, len(bindings))
	copy(sorted, bindings)
	sort.Slice(sorted, func(i, j int) bool {
		return string(sorted[i].Id.Content) < string(sorted[j].Id.Content)
	})
	for i := 1; i < len(sorted); i++ {
		if string(sorted[i-1].Id.Content) == string(sorted[i].Id.Content) {
			return NewError(sorted[i].Id.Pos, ErrDuplicateBinding, "duplicate %s: %s", kind, sorted[i].Id.Content)
		}
	}
	return nil
}

// Registry maps function names to their declarations. It is built once,
// before any body is checked, and read-only afterwards.
type Registry map[string]*FunDef

// Builtins returns the fixed signature table of the runtime library.
// Built-ins carry a nil body; their implementations are external.
func Builtins() []*FunDef {
	formal := func(t Type, name string) Binding {
		return Binding{Type: t, Id: Token{Kind: IDENTIFIER, Content: []byte(name)}}
	}
	decl := func(ret Type, name string, formals ...Binding) *FunDef {
		return &FunDef{
			ReturnType: ret,
			Id:         Token{Kind: IDENTIFIER, Content: []byte(name)},
			Formals:    formals,
		}
	}
	return []*FunDef{
		decl(VoidType, "print", formal(IntType, "x")),
		decl(VoidType, "printb", formal(BoolType, "x")),
		decl(VoidType, "prints", formal(StringType, "x")),
		decl(VoidType, "printf", formal(FloatType, "x")),
		decl(VoidType, "printm", formal(MatrixType, "m")),
		decl(VoidType, "free", formal(MatrixType, "m")),
		decl(IntType, "matrixHeight", formal(MatrixType, "m")),
		decl(IntType, "matrixWidth", formal(MatrixType, "m")),
	}
}

// NewRegistry folds the user's function declarations into the built-in
// signature table.
func NewRegistry(funs []*FunDef) (Registry, error) {
	r := make(Registry)
	builtin := make(map[string]struct{})
	for _, b := range Builtins() {
		r[string(b.Id.Content)] = b
		builtin[string(b.Id.Content)] = struct{}{}
	}
	for _, f := range funs {
		name := string(f.Id.Content)
		if _, ok := builtin[name]; ok {
			return nil, NewError(f.pos(), ErrBuiltinRedefinition, "function %s redefines a built-in", name)
		}
		if _, ok := r[name]; ok {
			return nil, NewError(f.pos(), ErrDuplicateFunction, "function %s is already declared", name)
		}
		r[name] = f
	}
	return r, nil
}

func (r Registry) Lookup(name string, pos Pos) (*FunDef, error) {
	f, ok := r[name]
	if !ok {
		return nil, NewError(pos, ErrUnresolvedFunction, "unresolved function: %s", name)
	}
	return f, nil
}

// Scope is a function's flat symbol table together with the registry. The
// language has exactly one scope per function body, so there is no parent
// chain: globals, formals and locals are folded into one map, in that
// order, and later entries win on name collision.
type Scope struct {
	Vars map[string]Type
	Funs Registry
}

func NewScope(funs Registry, bindings ...[]Binding) *Scope {
	s := &Scope{
		Vars: make(map[string]Type),
		Funs: funs,
	}
	for _, bs := range bindings {
		for _, b := range bs {
			s.Vars[string(b.Id.Content)] = b.Type
		}
	}
	return s
}

func (s *Scope) lookupVar(id Token) (Type, error) {
	t, ok := s.Vars[string(id.Content)]
	if !ok {
		return VoidType, NewError(id.Pos, ErrUndeclaredIdentifier, "undeclared identifier: %s", id.Content)
	}
	return t, nil
}

// CheckFunDef checks one function independently of all other bodies: it
// validates formals and locals, builds the flat symbol table and checks the
// body as one implicit block.
func CheckFunDef(f *FunDef, globals []Binding, funs Registry) (*CheckedFunDef, error) {
	if err := ValidateBindings("formal", f.Formals); err != nil {
		return nil, err
	}
	if err := ValidateBindings("local", f.Locals); err != nil {
		return nil, err
	}
	scope := NewScope(funs, globals, f.Formals, f.Locals)
	body, err := checkBlock(f.Body, scope, f.ReturnType)
	if err != nil {
		return nil, err
	}
	return &CheckedFunDef{
		ReturnType: f.ReturnType,
		Id:         f.Id,
		Formals:    f.Formals,
		Locals:     f.Locals,
		Body:       body,
	}, nil
}

// CheckStmt checks a statement against the enclosing function's declared
// return type.
func CheckStmt(stmt StmtNode, s *Scope, returns Type) (CheckedStmt, error) {
	switch st := stmt.(type) {
	case *ExprStmt:
		expr, err := CheckExpr(st.Expr, s)
		if err != nil {
			return nil, err
		}
		return &CheckedExprStmt{Expr: expr}, nil
	case *IfStmt:
		cond, err := checkCondition(st.Cond, s)
		if err != nil {
			return nil, err
		}
		then, err := CheckStmt(st.Then, s, returns)
		if err != nil {
			return nil, err
		}
		var els CheckedStmt
		if st.Else != nil {
			els, err = CheckStmt(st.Else, s, returns)
			if err != nil {
				return nil, err
			}
		}
		return &CheckedIf{Cond: cond, Then: then, Else: els}, nil
	case *ForStmt:
		init, err := CheckExpr(st.Init, s)
		if err != nil {
			return nil, err
		}
		cond, err := checkCondition(st.Cond, s)
		if err != nil {
			return nil, err
		}
		update, err := CheckExpr(st.Update, s)
		if err != nil {
			return nil, err
		}
		body, err := CheckStmt(st.Body, s, returns)
		if err != nil {
			return nil, err
		}
		return &CheckedFor{Init: init, Cond: cond, Update: update, Body: body}, nil
	case *WhileStmt:
		cond, err := checkCondition(st.Cond, s)
		if err != nil {
			return nil, err
		}
		body, err := CheckStmt(st.Body, s, returns)
		if err != nil {
			return nil, err
		}
		return &CheckedWhile{Cond: cond, Body: body}, nil
	case *ReturnStmt:
		value, err := CheckExpr(st.Arg, s)
		if err != nil {
			return nil, err
		}
		if value.TypeOf() != returns {
			return nil, NewError(st.Return.Pos, ErrReturnTypeMismatch, "expected a return value of type %s, got %s", returns, value.TypeOf())
		}
		return &CheckedReturn{Value: value}, nil
	case *BlockStmt:
		stmts, err := checkBlock(st.Stmts, s, returns)
		if err != nil {
			return nil, err
		}
		return &CheckedBlock{Stmts: stmts}, nil
	}
	panic("unreachable")
}

func checkCondition(cond ExprNode, s *Scope) (CheckedExpr, error) {
	checked, err := CheckExpr(cond, s)
	if err != nil {
		return nil, err
	}
	if checked.TypeOf() != BoolType {
		return nil, NewError(cond.pos(), ErrExpectedBooleanCondition, "expected a boolean condition, got %s", checked.TypeOf())
	}
	return checked, nil
}

// checkBlock processes a statement sequence left to right. Nested blocks
// contribute their statements directly into the parent sequence, and a
// return is legal only as the final statement of the flattened sequence.
func checkBlock(stmts []StmtNode, s *Scope, returns Type) ([]CheckedStmt, error) {
	flat := flattenStmts(stmts)
	checked := make([]CheckedStmt, 0, len(flat))
	for i, st := range flat {
		if _, ok := st.(*ReturnStmt); ok && i+1 < len(flat) {
			return nil, NewError(flat[i+1].pos(), ErrStatementAfterReturn, "statement after return")
		}
		cs, err := CheckStmt(st, s, returns)
		if err != nil {
			return nil, err
		}
		checked = append(checked, cs)
	}
	return checked, nil
}

func flattenStmts(stmts []StmtNode) []StmtNode {
	flat := make([]StmtNode, 0, len(stmts))
	for _, st := range stmts {
		if block, ok := st.(*BlockStmt); ok {
			flat = append(flat, flattenStmts(block.Stmts)...)
			continue
		}
		flat = append(flat, st)
	}
	return flat
}

// CheckExpr infers the type of an expression and produces its typed
// counterpart.
func CheckExpr(expr ExprNode, s *Scope) (CheckedExpr, error) {
	switch ex := expr.(type) {
	case *LiteralExprNode:
		return checkLiteralExpr(ex, s)
	case *NoExprNode:
		return &CheckedNoExpr{Type: VoidType}, nil
	case *AssignExprNode:
		return checkAssignExpr(ex, s)
	case *UnaryExprNode:
		return checkUnaryExpr(ex, s)
	case *BinaryExprNode:
		return checkBinaryExpr(ex, s)
	case *GroupedExprNode:
		return CheckExpr(ex.Inner, s)
	case *CallExprNode:
		return checkCallExpr(ex, s)
	case *ArrayLitExprNode:
		return checkArrayLitExpr(ex, s)
	case *ArrayIndexExprNode:
		return checkArrayIndexExpr(ex, s)
	case *ArrayAssignExprNode:
		return checkArrayAssignExpr(ex, s)
	case *MatrixLitExprNode:
		return checkMatrixLitExpr(ex, s)
	case *MatrixCtorExprNode:
		return checkMatrixCtorExpr(ex, s)
	case *MatrixIndexExprNode:
		return checkMatrixIndexExpr(ex, s)
	case *MatrixAssignExprNode:
		return checkMatrixAssignExpr(ex, s)
	}
	panic("unreachable")
}

func checkLiteralExpr(l *LiteralExprNode, s *Scope) (CheckedExpr, error) {
	switch l.Token.Kind {
	case INTLIT:
		return &CheckedLiteralExpr{Literal: l.Token, Type: IntType}, nil
	case FLOATLIT:
		return &CheckedLiteralExpr{Literal: l.Token, Type: FloatType}, nil
	case STRLIT:
		return &CheckedLiteralExpr{Literal: l.Token, Type: StringType}, nil
	case TRUE, FALSE:
		return &CheckedLiteralExpr{Literal: l.Token, Type: BoolType}, nil
	case IDENTIFIER:
		t, err := s.lookupVar(l.Token)
		if err != nil {
			return nil, err
		}
		return &CheckedIdExpr{Id: l.Token, Type: t}, nil
	}
	panic("unreachable")
}

func checkAssignExpr(a *AssignExprNode, s *Scope) (CheckedExpr, error) {
	lt, err := s.lookupVar(a.Id)
	if err != nil {
		return nil, err
	}
	value, err := CheckExpr(a.Value, s)
	if err != nil {
		return nil, err
	}
	if value.TypeOf() != lt {
		return nil, NewError(a.Eq.Pos, ErrIllegalAssignment, "cannot assign %s to %s", value.TypeOf(), lt)
	}
	return &CheckedAssignExpr{Id: a.Id, Value: value, Type: lt}, nil
}

func checkUnaryExpr(u *UnaryExprNode, s *Scope) (CheckedExpr, error) {
	operand, err := CheckExpr(u.Operand, s)
	if err != nil {
		return nil, err
	}
	ot := operand.TypeOf()
	switch u.Operator.Kind {
	case MINUS:
		if ot == IntType || ot == FloatType || ot == StringType {
			return &CheckedUnaryExpr{Operator: u.Operator, Operand: operand, Type: ot}, nil
		}
	case BANG:
		if ot == BoolType {
			return &CheckedUnaryExpr{Operator: u.Operator, Operand: operand, Type: BoolType}, nil
		}
	case PLUSPLUS, MINUSMINUS:
		if ot.isNumeric() {
			return &CheckedUnaryExpr{Operator: u.Operator, Operand: operand, Type: ot}, nil
		}
	}
	return nil, NewError(u.Operator.Pos, ErrIllegalUnaryOp, "operator %s is not defined for %s", u.Operator.Kind, ot)
}

func checkBinaryExpr(b *BinaryExprNode, s *Scope) (CheckedExpr, error) {
	left, err := CheckExpr(b.Left, s)
	if err != nil {
		return nil, err
	}
	right, err := CheckExpr(b.Right, s)
	if err != nil {
		return nil, err
	}
	lt, rt := left.TypeOf(), right.TypeOf()
	switch b.Op.Kind {
	case PLUS, MINUS, STAR, SLASH, PERCENT:
		// Int op Int stays Int. Otherwise a single Float operand is enough
		// to make the result Float; the other side is not inspected.
		if lt == IntType && rt == IntType {
			return &CheckedBinaryExpr{Left: left, Op: b.Op, Right: right, Type: IntType}, nil
		}
		if lt == FloatType || rt == FloatType {
			return &CheckedBinaryExpr{Left: left, Op: b.Op, Right: right, Type: FloatType}, nil
		}
	case EQEQ, BANGEQ:
		if lt == rt {
			return &CheckedBinaryExpr{Left: left, Op: b.Op, Right: right, Type: BoolType}, nil
		}
	case LESS, LESSEQ, GREATER, GREATEREQ:
		if lt == rt && lt.isNumeric() {
			return &CheckedBinaryExpr{Left: left, Op: b.Op, Right: right, Type: BoolType}, nil
		}
	case AMPAMP, PIPEPIPE:
		if lt == BoolType && rt == BoolType {
			return &CheckedBinaryExpr{Left: left, Op: b.Op, Right: right, Type: BoolType}, nil
		}
	}
	return nil, NewError(b.Op.Pos, ErrIllegalBinaryOp, "operator %s is not defined for %s and %s", b.Op.Kind, lt, rt)
}

func checkCallExpr(c *CallExprNode, s *Scope) (CheckedExpr, error) {
	f, err := s.Funs.Lookup(string(c.Callee.Content), c.Callee.Pos)
	if err != nil {
		return nil, err
	}
	if len(c.Args) != len(f.Formals) {
		return nil, NewError(c.Callee.Pos, ErrArityMismatch, "%s expects %d arguments, got %d", c.Callee.Content, len(f.Formals), len(c.Args))
	}
	args := make([]CheckedExpr, 0, len(c.Args))
	for i, arg := range c.Args {
		checked, err := CheckExpr(arg, s)
		if err != nil {
			return nil, err
		}
		if checked.TypeOf() != f.Formals[i].Type {
			return nil, NewError(arg.pos(), ErrIllegalArgument, "illegal argument: expected %s, got %s", f.Formals[i].Type, checked.TypeOf())
		}
		args = append(args, checked)
	}
	return &CheckedCallExpr{Callee: c.Callee, Args: args, Type: f.ReturnType}, nil
}

func checkArrayLitExpr(a *ArrayLitExprNode, s *Scope) (CheckedExpr, error) {
	if len(a.Elems) == 0 {
		return nil, NewError(a.Left.Pos, ErrEmptyArray, "array literal must not be empty")
	}
	elems := make([]CheckedExpr, 0, len(a.Elems))
	var elemType Type
	for i, el := range a.Elems {
		checked, err := CheckExpr(el, s)
		if err != nil {
			return nil, err
		}
		et := checked.TypeOf()
		if et != IntType && et != BoolType && et != FloatType {
			return nil, NewError(el.pos(), ErrInvalidArrayElementType, "arrays may hold int, bool or float elements, not %s", et)
		}
		if i == 0 {
			elemType = et
		} else if et != elemType {
			return nil, NewError(el.pos(), ErrInconsistentArrayType, "array element of type %s in an array of %s", et, elemType)
		}
		elems = append(elems, checked)
	}
	return &CheckedArrayLitExpr{
		Elems: elems,
		Type:  ArrayOf(elemType.Kind, len(elems)),
	}, nil
}

func checkIndex(index ExprNode, s *Scope) (CheckedExpr, error) {
	checked, err := CheckExpr(index, s)
	if err != nil {
		return nil, err
	}
	if checked.TypeOf() != IntType {
		return nil, NewError(index.pos(), ErrNonIntegerIndex, "index must be an int, got %s", checked.TypeOf())
	}
	return checked, nil
}

func checkArrayIndexExpr(a *ArrayIndexExprNode, s *Scope) (CheckedExpr, error) {
	index, err := checkIndex(a.Index, s)
	if err != nil {
		return nil, err
	}
	t, err := s.lookupVar(a.Id)
	if err != nil {
		return nil, err
	}
	if t.Kind != ARRAY_TYPE {
		return nil, NewError(a.Id.Pos, ErrIndexOnNonIndexable, "%s is not an array", a.Id.Content)
	}
	return &CheckedArrayIndexExpr{Id: a.Id, Index: index, Type: Type{Kind: t.Elem}}, nil
}

func checkArrayAssignExpr(a *ArrayAssignExprNode, s *Scope) (CheckedExpr, error) {
	index, err := checkIndex(a.Index, s)
	if err != nil {
		return nil, err
	}
	t, err := s.lookupVar(a.Id)
	if err != nil {
		return nil, err
	}
	if t.Kind != ARRAY_TYPE {
		return nil, NewError(a.Id.Pos, ErrIndexOnNonIndexable, "%s is not an array", a.Id.Content)
	}
	value, err := CheckExpr(a.Value, s)
	if err != nil {
		return nil, err
	}
	elemType := Type{Kind: t.Elem}
	if value.TypeOf() != elemType {
		return nil, NewError(a.Id.Pos, ErrIllegalArrayAssignment, "cannot assign %s to an array of %s", value.TypeOf(), elemType)
	}
	return &CheckedArrayAssignExpr{Id: a.Id, Index: index, Value: value, Type: elemType}, nil
}

func checkMatrixLitExpr(m *MatrixLitExprNode, s *Scope) (CheckedExpr, error) {
	if len(m.Rows) == 0 {
		return nil, NewError(m.Left.Pos, ErrZeroMatrixHeight, "matrix literal must have at least one row")
	}
	if len(m.Rows[0]) == 0 {
		return nil, NewError(m.Left.Pos, ErrZeroMatrixWidth, "matrix literal must have at least one column")
	}
	rows := make([][]CheckedExpr, 0, len(m.Rows))
	for _, row := range m.Rows {
		cells := make([]CheckedExpr, 0, len(row))
		for _, cell := range row {
			checked, err := CheckExpr(cell, s)
			if err != nil {
				return nil, err
			}
			// Cells are checked independently; a literal may mix int and
			// float entries.
			if !checked.TypeOf().isNumeric() {
				return nil, NewError(cell.pos(), ErrInvalidMatrixElementType, "matrix elements must be int or float, got %s", checked.TypeOf())
			}
			cells = append(cells, checked)
		}
		rows = append(rows, cells)
	}
	return &CheckedMatrixLitExpr{Rows: rows, Type: MatrixType}, nil
}

func checkMatrixCtorExpr(m *MatrixCtorExprNode, s *Scope) (CheckedExpr, error) {
	height, err := CheckExpr(m.Height, s)
	if err != nil {
		return nil, err
	}
	if height.TypeOf() != IntType {
		return nil, NewError(m.Height.pos(), ErrNonIntegerMatrixHeight, "matrix height must be an int, got %s", height.TypeOf())
	}
	width, err := CheckExpr(m.Width, s)
	if err != nil {
		return nil, err
	}
	if width.TypeOf() != IntType {
		return nil, NewError(m.Width.pos(), ErrNonIntegerMatrixWidth, "matrix width must be an int, got %s", width.TypeOf())
	}
	return &CheckedMatrixCtorExpr{Height: height, Width: width, Type: MatrixType}, nil
}

// checkMatrixIndexExpr types m[i][j] as float no matter how the matrix was
// built: matrices are stored with floating-point cells internally.
func checkMatrixIndexExpr(m *MatrixIndexExprNode, s *Scope) (CheckedExpr, error) {
	row, err := checkIndex(m.Row, s)
	if err != nil {
		return nil, err
	}
	col, err := checkIndex(m.Col, s)
	if err != nil {
		return nil, err
	}
	if _, err := s.lookupVar(m.Id); err != nil {
		return nil, err
	}
	return &CheckedMatrixIndexExpr{Id: m.Id, Row: row, Col: col, Type: FloatType}, nil
}

func checkMatrixAssignExpr(m *MatrixAssignExprNode, s *Scope) (CheckedExpr, error) {
	row, err := checkIndex(m.Row, s)
	if err != nil {
		return nil, err
	}
	col, err := checkIndex(m.Col, s)
	if err != nil {
		return nil, err
	}
	if _, err := s.lookupVar(m.Id); err != nil {
		return nil, err
	}
	value, err := CheckExpr(m.Value, s)
	if err != nil {
		return nil, err
	}
	if !value.TypeOf().isNumeric() {
		return nil, NewError(m.Id.Pos, ErrIllegalMatrixElementType, "matrix elements must be int or float, got %s", value.TypeOf())
	}
	return &CheckedMatrixAssignExpr{Id: m.Id, Row: row, Col: col, Value: value, Type: FloatType}, nil
}
