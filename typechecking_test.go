package mol_test

import (
	"testing"

	"mol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertErrCode(t *testing.T, err error, code mol.ErrorCode) {
	t.Helper()
	var cerr mol.Error
	if assert.ErrorAs(t, err, &cerr) {
		assert.Equal(t, code, cerr.Code())
	}
}

func parseTestExpr(t *testing.T, src string) mol.ExprNode {
	t.Helper()
	tokens, err := mol.ScanTokens("<test>", []byte(src))
	require.NoError(t, err)
	p := mol.NewParser(tokens)
	e, err := p.ParseExprAndEof()
	require.NoError(t, err)
	return e
}

func parseTestStmt(t *testing.T, src string) mol.StmtNode {
	t.Helper()
	tokens, err := mol.ScanTokens("<test>", []byte(src))
	require.NoError(t, err)
	p := mol.NewParser(tokens)
	s, err := p.ParseStmtAndEof()
	require.NoError(t, err)
	return s
}

func testRegistry(t *testing.T) mol.Registry {
	t.Helper()
	addOne := &mol.FunDef{
		ReturnType: mol.IntType,
		Id:         tok(mol.IDENTIFIER, "addOne"),
		Formals:    []mol.Binding{{Type: mol.IntType, Id: tok(mol.IDENTIFIER, "x")}},
		Body:       []mol.StmtNode{},
	}
	hypot := &mol.FunDef{
		ReturnType: mol.FloatType,
		Id:         tok(mol.IDENTIFIER, "hypot"),
		Formals: []mol.Binding{
			{Type: mol.FloatType, Id: tok(mol.IDENTIFIER, "x")},
			{Type: mol.FloatType, Id: tok(mol.IDENTIFIER, "y")},
		},
		Body: []mol.StmtNode{},
	}
	reg, err := mol.NewRegistry([]*mol.FunDef{addOne, hypot})
	require.NoError(t, err)
	return reg
}

func testScope(t *testing.T) *mol.Scope {
	t.Helper()
	return mol.NewScope(testRegistry(t), []mol.Binding{
		{Type: mol.IntType, Id: tok(mol.IDENTIFIER, "i")},
		{Type: mol.FloatType, Id: tok(mol.IDENTIFIER, "f")},
		{Type: mol.BoolType, Id: tok(mol.IDENTIFIER, "b")},
		{Type: mol.StringType, Id: tok(mol.IDENTIFIER, "s")},
		{Type: mol.MatrixType, Id: tok(mol.IDENTIFIER, "m")},
		{Type: mol.ArrayOf(mol.INT_TYPE, 3), Id: tok(mol.IDENTIFIER, "a")},
		{Type: mol.ArrayOf(mol.FLOAT_TYPE, 2), Id: tok(mol.IDENTIFIER, "fa")},
	})
}

func TestValidateBindings(t *testing.T) {
	ok := []mol.Binding{
		{Type: mol.IntType, Id: tok(mol.IDENTIFIER, "a")},
		{Type: mol.MatrixType, Id: tok(mol.IDENTIFIER, "b")},
		{Type: mol.ArrayOf(mol.BOOL_TYPE, 2), Id: tok(mol.IDENTIFIER, "c")},
	}
	assert.NoError(t, mol.ValidateBindings("global", ok))

	void := []mol.Binding{
		{Type: mol.IntType, Id: tok(mol.IDENTIFIER, "a")},
		{Type: mol.VoidType, Id: tok(mol.IDENTIFIER, "b")},
	}
	assertErrCode(t, mol.ValidateBindings("local", void), mol.ErrVoidBinding)

	dup := []mol.Binding{
		{Type: mol.IntType, Id: tok(mol.IDENTIFIER, "a")},
		{Type: mol.FloatType, Id: tok(mol.IDENTIFIER, "b")},
		{Type: mol.BoolType, Id: tok(mol.IDENTIFIER, "a")},
	}
	assertErrCode(t, mol.ValidateBindings("formal", dup), mol.ErrDuplicateBinding)
}

func TestBuiltinSignatures(t *testing.T) {
	reg, err := mol.NewRegistry(nil)
	require.NoError(t, err)
	tests := []struct {
		name    string
		formals []mol.Type
		returns mol.Type
	}{
		{"print", []mol.Type{mol.IntType}, mol.VoidType},
		{"printb", []mol.Type{mol.BoolType}, mol.VoidType},
		{"prints", []mol.Type{mol.StringType}, mol.VoidType},
		{"printf", []mol.Type{mol.FloatType}, mol.VoidType},
		{"printm", []mol.Type{mol.MatrixType}, mol.VoidType},
		{"free", []mol.Type{mol.MatrixType}, mol.VoidType},
		{"matrixHeight", []mol.Type{mol.MatrixType}, mol.IntType},
		{"matrixWidth", []mol.Type{mol.MatrixType}, mol.IntType},
	}
	for _, test := range tests {
		f, err := reg.Lookup(test.name, mol.Pos{})
		require.NoError(t, err)
		assert.Equal(t, test.returns, f.ReturnType)
		require.Len(t, f.Formals, len(test.formals))
		for i, ft := range test.formals {
			assert.Equal(t, ft, f.Formals[i].Type)
		}
		assert.Nil(t, f.Body)
	}
}

func TestNewRegistry(t *testing.T) {
	redefine := &mol.FunDef{
		ReturnType: mol.VoidType,
		Id:         tok(mol.IDENTIFIER, "print"),
		Body:       []mol.StmtNode{},
	}
	_, err := mol.NewRegistry([]*mol.FunDef{redefine})
	assertErrCode(t, err, mol.ErrBuiltinRedefinition)

	main := &mol.FunDef{
		ReturnType: mol.IntType,
		Id:         tok(mol.IDENTIFIER, "main"),
		Body:       []mol.StmtNode{},
	}
	main2 := &mol.FunDef{
		ReturnType: mol.VoidType,
		Id:         tok(mol.IDENTIFIER, "main"),
		Body:       []mol.StmtNode{},
	}
	_, err = mol.NewRegistry([]*mol.FunDef{main, main2})
	assertErrCode(t, err, mol.ErrDuplicateFunction)

	reg, err := mol.NewRegistry([]*mol.FunDef{main})
	require.NoError(t, err)
	_, err = reg.Lookup("foo", mol.Pos{})
	assertErrCode(t, err, mol.ErrUnresolvedFunction)
}

type checkExprTest struct {
	source   string
	expected mol.Type
}

var checkExprTests = []checkExprTest{
	{"123", mol.IntType},
	{"1.5", mol.FloatType},
	{"true", mol.BoolType},
	{"false", mol.BoolType},
	{"\"abc\"", mol.StringType},
	{"i", mol.IntType},
	{"fa", mol.ArrayOf(mol.FLOAT_TYPE, 2)},

	{"2 + 3", mol.IntType},
	{"7 % 2", mol.IntType},
	{"2 + 3.0", mol.FloatType},
	{"2.0 + 3", mol.FloatType},
	{"2.0 * 3.0", mol.FloatType},
	// A single float operand decides the result type; the other side is
	// not inspected.
	{"true + 1.0", mol.FloatType},
	{"\"a\" + 1.0", mol.FloatType},

	{"-1", mol.IntType},
	{"-f", mol.FloatType},
	{"-s", mol.StringType},
	{"!b", mol.BoolType},
	{"++i", mol.IntType},
	{"--f", mol.FloatType},

	{"1 == 2", mol.BoolType},
	{"s == \"x\"", mol.BoolType},
	{"m == m", mol.BoolType},
	{"a == a", mol.BoolType},
	{"1 != 2", mol.BoolType},
	{"1 < 2", mol.BoolType},
	{"1.0 >= 2.0", mol.BoolType},
	{"b && true", mol.BoolType},
	{"b || false", mol.BoolType},

	{"i = 5", mol.IntType},
	{"f = 2.5", mol.FloatType},
	{"m = <2, 3>", mol.MatrixType},

	{"[1, 2, 3]", mol.ArrayOf(mol.INT_TYPE, 3)},
	{"[true]", mol.ArrayOf(mol.BOOL_TYPE, 1)},
	{"[1.0, 2.0]", mol.ArrayOf(mol.FLOAT_TYPE, 2)},
	{"a[0]", mol.IntType},
	{"fa[i]", mol.FloatType},
	{"a[0] = 5", mol.IntType},
	{"fa[1] = 2.5", mol.FloatType},

	{"[1, 2; 3, 4]", mol.MatrixType},
	{"[1, 2.5; 3.5, 4]", mol.MatrixType},
	{"<2, 3>", mol.MatrixType},
	{"<i, i>", mol.MatrixType},
	// Matrix cells are stored as floats, so indexing is always float, no
	// matter what fed the literal.
	{"m[0][1]", mol.FloatType},
	{"m[i][i]", mol.FloatType},
	{"m[0][1] = 5", mol.FloatType},
	{"m[0][1] = 2.5", mol.FloatType},

	{"print(1)", mol.VoidType},
	{"printm(m)", mol.VoidType},
	{"matrixHeight(m)", mol.IntType},
	{"addOne(41)", mol.IntType},
	{"hypot(3.0, 4.0)", mol.FloatType},
	{"addOne(addOne(i))", mol.IntType},
}

func TestCheckExpr(t *testing.T) {
	for _, test := range checkExprTests {
		t.Logf("checking '%s'", test.source)
		scope := testScope(t)
		expr := parseTestExpr(t, test.source)
		checked, err := mol.CheckExpr(expr, scope)
		if assert.NoError(t, err) {
			assert.Equal(t, test.expected, checked.TypeOf())
		}
	}
}

type checkExprErrorTest struct {
	source string
	code   mol.ErrorCode
}

var checkExprErrorTests = []checkExprErrorTest{
	{"q", mol.ErrUndeclaredIdentifier},
	{"q = 1", mol.ErrUndeclaredIdentifier},
	{"q[0]", mol.ErrUndeclaredIdentifier},

	{"i = 2.0", mol.ErrIllegalAssignment},
	{"i = true", mol.ErrIllegalAssignment},
	{"f = 2", mol.ErrIllegalAssignment},

	{"-true", mol.ErrIllegalUnaryOp},
	{"-m", mol.ErrIllegalUnaryOp},
	{"!1", mol.ErrIllegalUnaryOp},
	{"++b", mol.ErrIllegalUnaryOp},
	{"--s", mol.ErrIllegalUnaryOp},

	{"true + false", mol.ErrIllegalBinaryOp},
	{"1 + \"a\"", mol.ErrIllegalBinaryOp},
	{"m + m", mol.ErrIllegalBinaryOp},
	{"1 == 2.0", mol.ErrIllegalBinaryOp},
	{"true < false", mol.ErrIllegalBinaryOp},
	{"s <= s", mol.ErrIllegalBinaryOp},
	{"1 && true", mol.ErrIllegalBinaryOp},

	{"foo()", mol.ErrUnresolvedFunction},
	{"hypot(3.0)", mol.ErrArityMismatch},
	{"print(1, 2)", mol.ErrArityMismatch},
	{"print(true)", mol.ErrIllegalArgument},
	{"addOne(1.0)", mol.ErrIllegalArgument},

	{"[]", mol.ErrEmptyArray},
	{"[1, true]", mol.ErrInconsistentArrayType},
	{"[1, 2.0]", mol.ErrInconsistentArrayType},
	{"[\"a\"]", mol.ErrInvalidArrayElementType},
	{"[m]", mol.ErrInvalidArrayElementType},
	{"[[1]]", mol.ErrInvalidArrayElementType},

	{"a[true]", mol.ErrNonIntegerIndex},
	{"a[1.0]", mol.ErrNonIntegerIndex},
	{"i[0]", mol.ErrIndexOnNonIndexable},
	{"s[0]", mol.ErrIndexOnNonIndexable},
	{"a[0] = 2.0", mol.ErrIllegalArrayAssignment},
	{"a[0] = true", mol.ErrIllegalArrayAssignment},
	{"fa[0] = 1", mol.ErrIllegalArrayAssignment},

	{"[true; false]", mol.ErrInvalidMatrixElementType},
	{"[1, \"a\"; 2, 3]", mol.ErrInvalidMatrixElementType},
	{"<1.0, 2>", mol.ErrNonIntegerMatrixHeight},
	{"<2, true>", mol.ErrNonIntegerMatrixWidth},
	{"m[1.0][0]", mol.ErrNonIntegerIndex},
	{"m[0][true]", mol.ErrNonIntegerIndex},
	{"m[0][0] = true", mol.ErrIllegalMatrixElementType},
	{"m[0][0] = \"a\"", mol.ErrIllegalMatrixElementType},
}

func TestCheckExprErrors(t *testing.T) {
	for _, test := range checkExprErrorTests {
		t.Logf("checking '%s'", test.source)
		scope := testScope(t)
		expr := parseTestExpr(t, test.source)
		_, err := mol.CheckExpr(expr, scope)
		assertErrCode(t, err, test.code)
	}
}

func TestCheckEmptyMatrixLiterals(t *testing.T) {
	scope := testScope(t)
	noRows := &mol.MatrixLitExprNode{Rows: [][]mol.ExprNode{}}
	_, err := mol.CheckExpr(noRows, scope)
	assertErrCode(t, err, mol.ErrZeroMatrixHeight)

	emptyRow := &mol.MatrixLitExprNode{Rows: [][]mol.ExprNode{{}}}
	_, err = mol.CheckExpr(emptyRow, scope)
	assertErrCode(t, err, mol.ErrZeroMatrixWidth)
}

type checkStmtTest struct {
	source  string
	returns mol.Type
	code    mol.ErrorCode
	ok      bool
}

var checkStmtTests = []checkStmtTest{
	{"print(i);", mol.VoidType, 0, true},
	{"if (b) print(1); else print(2);", mol.VoidType, 0, true},
	{"while (i < 10) ++i;", mol.VoidType, 0, true},
	{"for (i = 0; i < 3; ++i) print(i);", mol.VoidType, 0, true},
	{"for (; b; ) print(0);", mol.VoidType, 0, true},
	{"return 1;", mol.IntType, 0, true},
	{"return;", mol.VoidType, 0, true},
	{"{ print(1); return 1; }", mol.IntType, 0, true},

	{"if (1) print(0);", mol.VoidType, mol.ErrExpectedBooleanCondition, false},
	{"while (i) print(0);", mol.VoidType, mol.ErrExpectedBooleanCondition, false},
	{"for (;;) print(0);", mol.VoidType, mol.ErrExpectedBooleanCondition, false},
	{"for (i = 0; i; ++i) print(0);", mol.VoidType, mol.ErrExpectedBooleanCondition, false},
	{"return 1.0;", mol.IntType, mol.ErrReturnTypeMismatch, false},
	{"return;", mol.IntType, mol.ErrReturnTypeMismatch, false},
	{"return 1;", mol.VoidType, mol.ErrReturnTypeMismatch, false},
	{"{ return 1; print(1); }", mol.IntType, mol.ErrStatementAfterReturn, false},
	{"{ { return 1; } print(1); }", mol.IntType, mol.ErrStatementAfterReturn, false},
}

func TestCheckStmt(t *testing.T) {
	for _, test := range checkStmtTests {
		t.Logf("checking '%s'", test.source)
		scope := testScope(t)
		stmt := parseTestStmt(t, test.source)
		_, err := mol.CheckStmt(stmt, scope, test.returns)
		if test.ok {
			assert.NoError(t, err)
		} else {
			assertErrCode(t, err, test.code)
		}
	}
}

func TestCheckFunDefFlattensBlocks(t *testing.T) {
	source := []byte(`
void main() {
	{ print(1); }
	{ { print(2); } print(3); }
	print(4);
}
`)
	program, err := mol.ParseCompilationUnit("<test>", source)
	require.NoError(t, err)
	checked, err := mol.CheckCompilationUnit(program)
	require.NoError(t, err)
	require.Len(t, checked.Funs, 1)
	body := checked.Funs[0].Body
	require.Len(t, body, 4)
	for _, stmt := range body {
		assert.IsType(t, &mol.CheckedExprStmt{}, stmt)
	}
}

func TestCheckCompilationUnit(t *testing.T) {
	source := []byte(`
int total;
float weights[2];

int addOne(int x) {
	return x + 1;
}

float averageCell(matrix m) {
	float sum;
	int r;
	int c;
	sum = 0.0;
	for (r = 0; r < matrixHeight(m); ++r) {
		for (c = 0; c < matrixWidth(m); ++c) {
			sum = sum + m[r][c];
		}
	}
	return sum / (matrixHeight(m) * matrixWidth(m));
}

void main() {
	matrix m;
	m = [1, 2; 3, 4.5];
	printf(averageCell(m));
	total = addOne(total);
	weights[0] = 0.5;
	free(m);
}
`)
	program, err := mol.ParseCompilationUnit("avg.mol", source)
	require.NoError(t, err)
	checked, err := mol.CheckCompilationUnit(program)
	require.NoError(t, err)
	assert.Equal(t, program.Globals, checked.Globals)
	require.Len(t, checked.Funs, 3)
	assert.Equal(t, []byte("averageCell"), checked.Funs[1].Id.Content)
	assert.Equal(t, mol.FloatType, checked.Funs[1].ReturnType)
}

type checkProgramErrorTest struct {
	source string
	code   mol.ErrorCode
}

var checkProgramErrorTests = []checkProgramErrorTest{
	{"int x;", mol.ErrUnresolvedFunction},
	{"void foo() { }", mol.ErrUnresolvedFunction},
	{"int main() { return 0; } int main() { return 1; }", mol.ErrDuplicateFunction},
	{"void print(int x) { } void main() { }", mol.ErrBuiltinRedefinition},
	{"void x; void main() { }", mol.ErrVoidBinding},
	{"int x; float x; void main() { }", mol.ErrDuplicateBinding},
	{"void main(int a, bool a) { }", mol.ErrDuplicateBinding},
	{"void main() { void x; }", mol.ErrVoidBinding},
	{"void main() { int a; int a; }", mol.ErrDuplicateBinding},
	{"void main() { foo(); }", mol.ErrUnresolvedFunction},
	{"int main() { return 1; print(1); }", mol.ErrStatementAfterReturn},
}

func TestCheckCompilationUnitErrors(t *testing.T) {
	for _, test := range checkProgramErrorTests {
		t.Logf("checking '%s'", test.source)
		program, err := mol.ParseCompilationUnit("<test>", []byte(test.source))
		require.NoError(t, err)
		_, err = mol.CheckCompilationUnit(program)
		assertErrCode(t, err, test.code)
	}
}

func TestShadowingIsSilent(t *testing.T) {
	source := []byte(`
int x;

void useLocal() {
	float x;
	x = 2.5;
}

void useFormal(bool x) {
	printb(x);
}

void main() {
	x = 1;
}
`)
	program, err := mol.ParseCompilationUnit("<test>", source)
	require.NoError(t, err)
	_, err = mol.CheckCompilationUnit(program)
	assert.NoError(t, err)
}

func TestFunctionsSeeLaterFunctions(t *testing.T) {
	source := []byte(`
void main() {
	print(later());
}

int later() {
	return 42;
}
`)
	program, err := mol.ParseCompilationUnit("<test>", source)
	require.NoError(t, err)
	_, err = mol.CheckCompilationUnit(program)
	assert.NoError(t, err)
}

// untypeStmt and untypeExpr project a typed tree back onto the plain
// syntax tree so a checked program can be fed through the checker again.

func untypeStmt(s mol.CheckedStmt) mol.StmtNode {
	switch st := s.(type) {
	case *mol.CheckedExprStmt:
		return &mol.ExprStmt{Expr: untypeExpr(st.Expr)}
	case *mol.CheckedIf:
		var els mol.StmtNode
		if st.Else != nil {
			els = untypeStmt(st.Else)
		}
		return &mol.IfStmt{Cond: untypeExpr(st.Cond), Then: untypeStmt(st.Then), Else: els}
	case *mol.CheckedFor:
		return &mol.ForStmt{
			Init:   untypeExpr(st.Init),
			Cond:   untypeExpr(st.Cond),
			Update: untypeExpr(st.Update),
			Body:   untypeStmt(st.Body),
		}
	case *mol.CheckedWhile:
		return &mol.WhileStmt{Cond: untypeExpr(st.Cond), Body: untypeStmt(st.Body)}
	case *mol.CheckedReturn:
		return &mol.ReturnStmt{Arg: untypeExpr(st.Value)}
	case *mol.CheckedBlock:
		stmts := make([]mol.StmtNode, 0, len(st.Stmts))
		for _, inner := range st.Stmts {
			stmts = append(stmts, untypeStmt(inner))
		}
		return &mol.BlockStmt{Stmts: stmts}
	}
	panic("unreachable")
}

func untypeExpr(e mol.CheckedExpr) mol.ExprNode {
	switch ex := e.(type) {
	case *mol.CheckedLiteralExpr:
		return &mol.LiteralExprNode{Token: ex.Literal}
	case *mol.CheckedIdExpr:
		return &mol.LiteralExprNode{Token: ex.Id}
	case *mol.CheckedNoExpr:
		return &mol.NoExprNode{}
	case *mol.CheckedAssignExpr:
		return &mol.AssignExprNode{Id: ex.Id, Value: untypeExpr(ex.Value)}
	case *mol.CheckedUnaryExpr:
		return &mol.UnaryExprNode{Operator: ex.Operator, Operand: untypeExpr(ex.Operand)}
	case *mol.CheckedBinaryExpr:
		return &mol.BinaryExprNode{Left: untypeExpr(ex.Left), Op: ex.Op, Right: untypeExpr(ex.Right)}
	case *mol.CheckedCallExpr:
		args := make([]mol.ExprNode, 0, len(ex.Args))
		for _, a := range ex.Args {
			args = append(args, untypeExpr(a))
		}
		return &mol.CallExprNode{Callee: ex.Callee, Args: args}
	case *mol.CheckedArrayLitExpr:
		elems := make([]mol.ExprNode, 0, len(ex.Elems))
		for _, el := range ex.Elems {
			elems = append(elems, untypeExpr(el))
		}
		return &mol.ArrayLitExprNode{Elems: elems}
	case *mol.CheckedArrayIndexExpr:
		return &mol.ArrayIndexExprNode{Id: ex.Id, Index: untypeExpr(ex.Index)}
	case *mol.CheckedArrayAssignExpr:
		return &mol.ArrayAssignExprNode{Id: ex.Id, Index: untypeExpr(ex.Index), Value: untypeExpr(ex.Value)}
	case *mol.CheckedMatrixLitExpr:
		rows := make([][]mol.ExprNode, 0, len(ex.Rows))
		for _, row := range ex.Rows {
			cells := make([]mol.ExprNode, 0, len(row))
			for _, c := range row {
				cells = append(cells, untypeExpr(c))
			}
			rows = append(rows, cells)
		}
		return &mol.MatrixLitExprNode{Rows: rows}
	case *mol.CheckedMatrixCtorExpr:
		return &mol.MatrixCtorExprNode{Height: untypeExpr(ex.Height), Width: untypeExpr(ex.Width)}
	case *mol.CheckedMatrixIndexExpr:
		return &mol.MatrixIndexExprNode{Id: ex.Id, Row: untypeExpr(ex.Row), Col: untypeExpr(ex.Col)}
	case *mol.CheckedMatrixAssignExpr:
		return &mol.MatrixAssignExprNode{Id: ex.Id, Row: untypeExpr(ex.Row), Col: untypeExpr(ex.Col), Value: untypeExpr(ex.Value)}
	}
	panic("unreachable")
}

func TestRecheckIsStable(t *testing.T) {
	source := []byte(`
int limit;

float scale(matrix m, float k) {
	int r;
	int c;
	for (r = 0; r < matrixHeight(m); ++r)
		for (c = 0; c < matrixWidth(m); ++c)
			m[r][c] = m[r][c] * k;
	return k;
}

void main() {
	matrix m;
	bool done;
	m = <3, 3>;
	printf(scale(m, 2.0));
	done = limit > 0 && !(limit == 10);
	printb(done);
	free(m);
}
`)
	program, err := mol.ParseCompilationUnit("<test>", source)
	require.NoError(t, err)
	checked, err := mol.CheckCompilationUnit(program)
	require.NoError(t, err)

	funs := make([]*mol.FunDef, 0, len(checked.Funs))
	for _, f := range checked.Funs {
		body := make([]mol.StmtNode, 0, len(f.Body))
		for _, st := range f.Body {
			body = append(body, untypeStmt(st))
		}
		funs = append(funs, &mol.FunDef{
			ReturnType: f.ReturnType,
			Id:         f.Id,
			Formals:    f.Formals,
			Locals:     f.Locals,
			Body:       body,
		})
	}
	projected := &mol.Program{Globals: checked.Globals, Funs: funs}
	rechecked, err := mol.CheckCompilationUnit(projected)
	require.NoError(t, err)
	assert.Equal(t, checked, rechecked)
}
