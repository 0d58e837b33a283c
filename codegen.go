package mol

import (
	"fmt"
	"strings"

	"tinygo.org/x/go-llvm"
)

// CodegenCompilationUnit lowers a checked program to an LLVM module. It
// assumes the typed tree is well-formed; the checker guarantees it.
//
// Matrices are opaque runtime handles with double cells, which is why matrix
// indexing produced float during checking. The built-in table and the
// mol_matrix_* helpers are declared here and implemented by the runtime
// library.
func CodegenCompilationUnit(p *CheckedProgram, name string) llvm.Module {
	ctx := llvm.NewContext()
	module := ctx.NewModule(name)
	cg := &codegen{
		ctx:    ctx,
		module: module,
		funs:   make(map[string]funValue),
		vars:   make(map[string]varValue),
	}
	cg.declareRuntime()
	for _, g := range p.Globals {
		cg.declareGlobal(g)
	}
	for _, f := range p.Funs {
		cg.declareFun(f)
	}
	for _, f := range p.Funs {
		cg.defineFun(f)
	}
	return module
}

type codegen struct {
	ctx    llvm.Context
	module llvm.Module
	funs   map[string]funValue
	vars   map[string]varValue

	tempsCount int
}

type funValue struct {
	fn  llvm.Value
	typ llvm.Type
}

// varValue is a pointer to a variable's storage plus the pointee type.
type varValue struct {
	ptr llvm.Value
	typ llvm.Type
}

func (cg *codegen) llvmType(t Type) llvm.Type {
	switch t.Kind {
	case INT_TYPE:
		return cg.ctx.Int64Type()
	case FLOAT_TYPE:
		return cg.ctx.DoubleType()
	case BOOL_TYPE:
		return cg.ctx.Int1Type()
	case STRING_TYPE:
		return llvm.PointerType(cg.ctx.Int8Type(), 0)
	case VOID_TYPE:
		return cg.ctx.VoidType()
	case MATRIX_TYPE:
		return llvm.PointerType(cg.ctx.Int8Type(), 0)
	case ARRAY_TYPE:
		return llvm.ArrayType(cg.llvmType(Type{Kind: t.Elem}), t.Len)
	}
	panic("unreachable")
}

func (cg *codegen) declareExtern(name string, ret llvm.Type, params ...llvm.Type) {
	fnType := llvm.FunctionType(ret, params, false)
	fn := llvm.AddFunction(cg.module, name, fnType)
	cg.funs[name] = funValue{fn: fn, typ: fnType}
}

func (cg *codegen) declareRuntime() {
	for _, b := range Builtins() {
		params := make([]llvm.Type, 0, len(b.Formals))
		for _, formal := range b.Formals {
			params = append(params, cg.llvmType(formal.Type))
		}
		cg.declareExtern(string(b.Id.Content), cg.llvmType(b.ReturnType), params...)
	}
	matrix := llvm.PointerType(cg.ctx.Int8Type(), 0)
	i64 := cg.ctx.Int64Type()
	double := cg.ctx.DoubleType()
	cg.declareExtern("mol_matrix_new", matrix, i64, i64)
	cg.declareExtern("mol_matrix_get", double, matrix, i64, i64)
	cg.declareExtern("mol_matrix_set", cg.ctx.VoidType(), matrix, i64, i64, double)
}

func (cg *codegen) declareGlobal(b Binding) {
	typ := cg.llvmType(b.Type)
	global := llvm.AddGlobal(cg.module, typ, string(b.Id.Content))
	global.SetInitializer(llvm.ConstNull(typ))
	cg.vars[string(b.Id.Content)] = varValue{ptr: global, typ: typ}
}

func (cg *codegen) declareFun(f *CheckedFunDef) {
	params := make([]llvm.Type, 0, len(f.Formals))
	for _, formal := range f.Formals {
		params = append(params, cg.llvmType(formal.Type))
	}
	fnType := llvm.FunctionType(cg.llvmType(f.ReturnType), params, false)
	fn := llvm.AddFunction(cg.module, string(f.Id.Content), fnType)
	cg.funs[string(f.Id.Content)] = funValue{fn: fn, typ: fnType}
}

func (cg *codegen) defineFun(f *CheckedFunDef) {
	fun := cg.funs[string(f.Id.Content)]
	bb := cg.ctx.AddBasicBlock(fun.fn, ".entry")
	builder := cg.ctx.NewBuilder()
	defer builder.Dispose()
	builder.SetInsertPointAtEnd(bb)

	// Formals and locals shadow globals for the extent of this body.
	outer := cg.vars
	cg.vars = make(map[string]varValue, len(outer)+len(f.Formals)+len(f.Locals))
	for name, v := range outer {
		cg.vars[name] = v
	}
	defer func() { cg.vars = outer }()

	for i, formal := range f.Formals {
		typ := cg.llvmType(formal.Type)
		alloca := builder.CreateAlloca(typ, string(formal.Id.Content))
		builder.CreateStore(fun.fn.Param(i), alloca)
		cg.vars[string(formal.Id.Content)] = varValue{ptr: alloca, typ: typ}
	}
	for _, local := range f.Locals {
		typ := cg.llvmType(local.Type)
		alloca := builder.CreateAlloca(typ, string(local.Id.Content))
		builder.CreateStore(llvm.ConstNull(typ), alloca)
		cg.vars[string(local.Id.Content)] = varValue{ptr: alloca, typ: typ}
	}

	terminated := false
	for _, stmt := range f.Body {
		terminated = cg.genStmt(stmt, fun.fn, builder)
	}
	if !terminated {
		if f.ReturnType == VoidType {
			builder.CreateRetVoid()
		} else {
			builder.CreateUnreachable()
		}
	}
}

// genStmt emits a statement and reports whether it terminated the current
// basic block.
func (cg *codegen) genStmt(stmt CheckedStmt, fn llvm.Value, builder llvm.Builder) bool {
	switch st := stmt.(type) {
	case *CheckedExprStmt:
		cg.genExpr(st.Expr, builder)
		return false
	case *CheckedBlock:
		terminated := false
		for _, inner := range st.Stmts {
			terminated = cg.genStmt(inner, fn, builder)
		}
		return terminated
	case *CheckedReturn:
		if st.Value.TypeOf() == VoidType {
			builder.CreateRetVoid()
		} else {
			builder.CreateRet(cg.genExpr(st.Value, builder))
		}
		return true
	case *CheckedIf:
		cond := cg.genExpr(st.Cond, builder)
		thenBB := cg.ctx.AddBasicBlock(fn, ".then")
		mergeBB := cg.ctx.AddBasicBlock(fn, ".endif")
		elseBB := mergeBB
		if st.Else != nil {
			elseBB = cg.ctx.AddBasicBlock(fn, ".else")
		}
		builder.CreateCondBr(cond, thenBB, elseBB)
		builder.SetInsertPointAtEnd(thenBB)
		thenTerm := cg.genStmt(st.Then, fn, builder)
		if !thenTerm {
			builder.CreateBr(mergeBB)
		}
		elseTerm := false
		if st.Else != nil {
			builder.SetInsertPointAtEnd(elseBB)
			elseTerm = cg.genStmt(st.Else, fn, builder)
			if !elseTerm {
				builder.CreateBr(mergeBB)
			}
		}
		builder.SetInsertPointAtEnd(mergeBB)
		if thenTerm && elseTerm {
			builder.CreateUnreachable()
			return true
		}
		return false
	case *CheckedWhile:
		condBB := cg.ctx.AddBasicBlock(fn, ".while.cond")
		bodyBB := cg.ctx.AddBasicBlock(fn, ".while.body")
		endBB := cg.ctx.AddBasicBlock(fn, ".while.end")
		builder.CreateBr(condBB)
		builder.SetInsertPointAtEnd(condBB)
		cond := cg.genExpr(st.Cond, builder)
		builder.CreateCondBr(cond, bodyBB, endBB)
		builder.SetInsertPointAtEnd(bodyBB)
		if !cg.genStmt(st.Body, fn, builder) {
			builder.CreateBr(condBB)
		}
		builder.SetInsertPointAtEnd(endBB)
		return false
	case *CheckedFor:
		if _, ok := st.Init.(*CheckedNoExpr); !ok {
			cg.genExpr(st.Init, builder)
		}
		condBB := cg.ctx.AddBasicBlock(fn, ".for.cond")
		bodyBB := cg.ctx.AddBasicBlock(fn, ".for.body")
		endBB := cg.ctx.AddBasicBlock(fn, ".for.end")
		builder.CreateBr(condBB)
		builder.SetInsertPointAtEnd(condBB)
		cond := cg.genExpr(st.Cond, builder)
		builder.CreateCondBr(cond, bodyBB, endBB)
		builder.SetInsertPointAtEnd(bodyBB)
		if !cg.genStmt(st.Body, fn, builder) {
			if _, ok := st.Update.(*CheckedNoExpr); !ok {
				cg.genExpr(st.Update, builder)
			}
			builder.CreateBr(condBB)
		}
		builder.SetInsertPointAtEnd(endBB)
		return false
	}
	panic("unreachable")
}

func (cg *codegen) genExpr(expr CheckedExpr, builder llvm.Builder) llvm.Value {
	switch ex := expr.(type) {
	case *CheckedLiteralExpr:
		return cg.genLiteral(ex, builder)
	case *CheckedIdExpr:
		v := cg.vars[string(ex.Id.Content)]
		return builder.CreateLoad(v.typ, v.ptr, cg.tempName())
	case *CheckedNoExpr:
		return llvm.Value{}
	case *CheckedAssignExpr:
		value := cg.genExpr(ex.Value, builder)
		v := cg.vars[string(ex.Id.Content)]
		builder.CreateStore(value, v.ptr)
		return value
	case *CheckedUnaryExpr:
		return cg.genUnary(ex, builder)
	case *CheckedBinaryExpr:
		return cg.genBinary(ex, builder)
	case *CheckedCallExpr:
		fun := cg.funs[string(ex.Callee.Content)]
		args := make([]llvm.Value, 0, len(ex.Args))
		for _, arg := range ex.Args {
			args = append(args, cg.genExpr(arg, builder))
		}
		name := ""
		if ex.Type != VoidType {
			name = cg.tempName()
		}
		return builder.CreateCall(fun.typ, fun.fn, args, name)
	case *CheckedArrayLitExpr:
		arrayType := cg.llvmType(ex.Type)
		alloca := builder.CreateAlloca(arrayType, cg.tempName())
		zero := llvm.ConstInt(cg.ctx.Int64Type(), 0, false)
		for i, el := range ex.Elems {
			idx := llvm.ConstInt(cg.ctx.Int64Type(), uint64(i), false)
			ptr := builder.CreateInBoundsGEP(arrayType, alloca, []llvm.Value{zero, idx}, cg.tempName())
			builder.CreateStore(cg.genExpr(el, builder), ptr)
		}
		return builder.CreateLoad(arrayType, alloca, cg.tempName())
	case *CheckedArrayIndexExpr:
		ptr, elemType := cg.arrayCellPtr(ex.Id, ex.Index, builder)
		return builder.CreateLoad(elemType, ptr, cg.tempName())
	case *CheckedArrayAssignExpr:
		value := cg.genExpr(ex.Value, builder)
		ptr, _ := cg.arrayCellPtr(ex.Id, ex.Index, builder)
		builder.CreateStore(value, ptr)
		return value
	case *CheckedMatrixLitExpr:
		height := llvm.ConstInt(cg.ctx.Int64Type(), uint64(len(ex.Rows)), false)
		width := llvm.ConstInt(cg.ctx.Int64Type(), uint64(len(ex.Rows[0])), false)
		m := cg.call("mol_matrix_new", builder, height, width)
		for i, row := range ex.Rows {
			for j, cell := range row {
				value := cg.toDouble(cg.genExpr(cell, builder), builder)
				cg.call("mol_matrix_set", builder,
					m,
					llvm.ConstInt(cg.ctx.Int64Type(), uint64(i), false),
					llvm.ConstInt(cg.ctx.Int64Type(), uint64(j), false),
					value)
			}
		}
		return m
	case *CheckedMatrixCtorExpr:
		height := cg.genExpr(ex.Height, builder)
		width := cg.genExpr(ex.Width, builder)
		return cg.call("mol_matrix_new", builder, height, width)
	case *CheckedMatrixIndexExpr:
		v := cg.vars[string(ex.Id.Content)]
		m := builder.CreateLoad(v.typ, v.ptr, cg.tempName())
		row := cg.genExpr(ex.Row, builder)
		col := cg.genExpr(ex.Col, builder)
		return cg.call("mol_matrix_get", builder, m, row, col)
	case *CheckedMatrixAssignExpr:
		v := cg.vars[string(ex.Id.Content)]
		m := builder.CreateLoad(v.typ, v.ptr, cg.tempName())
		row := cg.genExpr(ex.Row, builder)
		col := cg.genExpr(ex.Col, builder)
		value := cg.toDouble(cg.genExpr(ex.Value, builder), builder)
		cg.call("mol_matrix_set", builder, m, row, col, value)
		return value
	}
	panic("unreachable")
}

func (cg *codegen) genLiteral(l *CheckedLiteralExpr, builder llvm.Builder) llvm.Value {
	switch l.Literal.Kind {
	case INTLIT:
		return llvm.ConstIntFromString(cg.ctx.Int64Type(), string(l.Literal.Content), 10)
	case FLOATLIT:
		return llvm.ConstFloatFromString(cg.ctx.DoubleType(), string(l.Literal.Content))
	case TRUE:
		return llvm.ConstInt(cg.ctx.Int1Type(), 1, false)
	case FALSE:
		return llvm.ConstInt(cg.ctx.Int1Type(), 0, false)
	case STRLIT:
		return builder.CreateGlobalStringPtr(unescape(string(l.Literal.Content)), ".str")
	}
	panic("unreachable")
}

func (cg *codegen) genUnary(u *CheckedUnaryExpr, builder llvm.Builder) llvm.Value {
	operand := cg.genExpr(u.Operand, builder)
	switch u.Operator.Kind {
	case MINUS:
		if u.Type == FloatType {
			return builder.CreateFNeg(operand, cg.tempName())
		}
		return builder.CreateNeg(operand, cg.tempName())
	case BANG:
		return builder.CreateNot(operand, cg.tempName())
	case PLUSPLUS, MINUSMINUS:
		var one llvm.Value
		if u.Type == FloatType {
			one = llvm.ConstFloat(cg.ctx.DoubleType(), 1)
		} else {
			one = llvm.ConstInt(cg.ctx.Int64Type(), 1, false)
		}
		var next llvm.Value
		switch {
		case u.Operator.Kind == PLUSPLUS && u.Type == FloatType:
			next = builder.CreateFAdd(operand, one, cg.tempName())
		case u.Operator.Kind == PLUSPLUS:
			next = builder.CreateAdd(operand, one, cg.tempName())
		case u.Type == FloatType:
			next = builder.CreateFSub(operand, one, cg.tempName())
		default:
			next = builder.CreateSub(operand, one, cg.tempName())
		}
		if id, ok := u.Operand.(*CheckedIdExpr); ok {
			builder.CreateStore(next, cg.vars[string(id.Id.Content)].ptr)
		}
		return next
	}
	panic("unreachable")
}

func (cg *codegen) genBinary(b *CheckedBinaryExpr, builder llvm.Builder) llvm.Value {
	left := cg.genExpr(b.Left, builder)
	right := cg.genExpr(b.Right, builder)
	switch b.Op.Kind {
	case PLUS, MINUS, STAR, SLASH, PERCENT:
		if b.Type == FloatType {
			left = cg.toDouble(left, builder)
			right = cg.toDouble(right, builder)
			switch b.Op.Kind {
			case PLUS:
				return builder.CreateFAdd(left, right, cg.tempName())
			case MINUS:
				return builder.CreateFSub(left, right, cg.tempName())
			case STAR:
				return builder.CreateFMul(left, right, cg.tempName())
			case SLASH:
				return builder.CreateFDiv(left, right, cg.tempName())
			case PERCENT:
				return builder.CreateFRem(left, right, cg.tempName())
			}
		}
		switch b.Op.Kind {
		case PLUS:
			return builder.CreateAdd(left, right, cg.tempName())
		case MINUS:
			return builder.CreateSub(left, right, cg.tempName())
		case STAR:
			return builder.CreateMul(left, right, cg.tempName())
		case SLASH:
			return builder.CreateSDiv(left, right, cg.tempName())
		case PERCENT:
			return builder.CreateSRem(left, right, cg.tempName())
		}
	case EQEQ, BANGEQ, LESS, LESSEQ, GREATER, GREATEREQ:
		if b.Left.TypeOf().Kind == ARRAY_TYPE {
			return cg.genArrayEqual(b, left, right, builder)
		}
		if b.Left.TypeOf() == FloatType {
			return builder.CreateFCmp(floatPredicate(b.Op.Kind), left, right, cg.tempName())
		}
		return builder.CreateICmp(intPredicate(b.Op.Kind), left, right, cg.tempName())
	case AMPAMP:
		return builder.CreateAnd(left, right, cg.tempName())
	case PIPEPIPE:
		return builder.CreateOr(left, right, cg.tempName())
	}
	panic("unreachable")
}

// genArrayEqual compares two array values element by element. Array lengths
// are part of the type, so both sides have the same static length.
func (cg *codegen) genArrayEqual(b *CheckedBinaryExpr, left, right llvm.Value, builder llvm.Builder) llvm.Value {
	t := b.Left.TypeOf()
	result := llvm.ConstInt(cg.ctx.Int1Type(), 1, false)
	for i := 0; i < t.Len; i++ {
		l := builder.CreateExtractValue(left, i, cg.tempName())
		r := builder.CreateExtractValue(right, i, cg.tempName())
		var eq llvm.Value
		if t.Elem == FLOAT_TYPE {
			eq = builder.CreateFCmp(llvm.FloatOEQ, l, r, cg.tempName())
		} else {
			eq = builder.CreateICmp(llvm.IntEQ, l, r, cg.tempName())
		}
		result = builder.CreateAnd(result, eq, cg.tempName())
	}
	if b.Op.Kind == BANGEQ {
		return builder.CreateNot(result, cg.tempName())
	}
	return result
}

func intPredicate(k TokenKind) llvm.IntPredicate {
	switch k {
	case EQEQ:
		return llvm.IntEQ
	case BANGEQ:
		return llvm.IntNE
	case LESS:
		return llvm.IntSLT
	case LESSEQ:
		return llvm.IntSLE
	case GREATER:
		return llvm.IntSGT
	case GREATEREQ:
		return llvm.IntSGE
	}
	panic("unreachable")
}

func floatPredicate(k TokenKind) llvm.FloatPredicate {
	switch k {
	case EQEQ:
		return llvm.FloatOEQ
	case BANGEQ:
		return llvm.FloatONE
	case LESS:
		return llvm.FloatOLT
	case LESSEQ:
		return llvm.FloatOLE
	case GREATER:
		return llvm.FloatOGT
	case GREATEREQ:
		return llvm.FloatOGE
	}
	panic("unreachable")
}

func (cg *codegen) arrayCellPtr(id Token, index CheckedExpr, builder llvm.Builder) (llvm.Value, llvm.Type) {
	v := cg.vars[string(id.Content)]
	zero := llvm.ConstInt(cg.ctx.Int64Type(), 0, false)
	idx := cg.genExpr(index, builder)
	ptr := builder.CreateInBoundsGEP(v.typ, v.ptr, []llvm.Value{zero, idx}, cg.tempName())
	return ptr, v.typ.ElementType()
}

func (cg *codegen) call(name string, builder llvm.Builder, args ...llvm.Value) llvm.Value {
	fun := cg.funs[name]
	callName := ""
	if fun.typ.ReturnType() != cg.ctx.VoidType() {
		callName = cg.tempName()
	}
	return builder.CreateCall(fun.typ, fun.fn, args, callName)
}

// toDouble widens an integer or boolean value to double. The arithmetic
// typing rule lets a single float operand decide the result type, so the
// other side may be any non-float kind.
func (cg *codegen) toDouble(v llvm.Value, builder llvm.Builder) llvm.Value {
	if v.Type().TypeKind() == llvm.DoubleTypeKind {
		return v
	}
	if v.Type() == cg.ctx.Int1Type() {
		return builder.CreateUIToFP(v, cg.ctx.DoubleType(), cg.tempName())
	}
	return builder.CreateSIToFP(v, cg.ctx.DoubleType(), cg.tempName())
}

func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func (cg *codegen) tempName() string {
	cg.tempsCount++
	return fmt.Sprintf(".tmp%d", cg.tempsCount)
}
