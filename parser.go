package mol

import "strconv"

func ParseCompilationUnit(filename string, source []byte) (*Program, error) {
	tokens, err := ScanTokens(filename, source)
	if err != nil {
		return nil, err
	}
	psr := NewParser(tokens)
	return psr.ParseProgram()
}

type Parser struct {
	tokens []Token
	index  int
}

func NewParser(tokens []Token) Parser {
	if len(tokens) == 0 {
		tokens = append(tokens, Token{})
	}
	if tokens[len(tokens)-1].Kind != EOF {
		tokens = append(tokens, Token{Kind: EOF})
	}
	return Parser{
		tokens: tokens,
		index:  0,
	}
}

// ParseProgram parses a whole translation unit: global bindings and function
// declarations, in any interleaving. Both start with a type keyword and a
// name; a left parenthesis after the name makes it a function.
func (p *Parser) ParseProgram() (*Program, error) {
	program := &Program{
		Globals: []Binding{},
		Funs:    []*FunDef{},
	}
	for p.next().Kind != EOF {
		base, err := p.parseTypeKeyword()
		if err != nil {
			return nil, err
		}
		id, err := p.match(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if p.next().Kind == LEFTPAREN {
			fun, err := p.parseFunRest(base, id)
			if err != nil {
				return nil, err
			}
			program.Funs = append(program.Funs, fun)
			continue
		}
		binding, err := p.parseBindingRest(base, id)
		if err != nil {
			return nil, err
		}
		if _, err := p.match(SEMICOLON); err != nil {
			return nil, err
		}
		program.Globals = append(program.Globals, binding)
	}
	return program, nil
}

func (p *Parser) ParseExprAndEof() (ExprNode, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(EOF); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) ParseStmtAndEof() (StmtNode, error) {
	stmt, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(EOF); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseTypeKeyword() (Type, error) {
	switch tok := p.next(); tok.Kind {
	case INT:
		p.advance()
		return IntType, nil
	case FLOAT:
		p.advance()
		return FloatType, nil
	case BOOL:
		p.advance()
		return BoolType, nil
	case STRING:
		p.advance()
		return StringType, nil
	case VOID:
		p.advance()
		return VoidType, nil
	case MATRIX:
		p.advance()
		return MatrixType, nil
	default:
		return VoidType, NewError(tok.Pos, ErrUnexpectedToken, "expected a type, got %s", tok.Kind)
	}
}

func isTypeKeyword(k TokenKind) bool {
	switch k {
	case INT, FLOAT, BOOL, STRING, VOID, MATRIX:
		return true
	}
	return false
}

// parseBindingRest handles the optional array declarator suffix after the
// name of a binding: int a[3];
func (p *Parser) parseBindingRest(base Type, id Token) (Binding, error) {
	if p.next().Kind != LEFTBRACKET {
		return Binding{Type: base, Id: id}, nil
	}
	bracket := p.advance()
	switch base {
	case IntType, BoolType, FloatType:
	default:
		return Binding{}, NewError(bracket.Pos, ErrUnexpectedToken, "arrays may hold int, bool or float elements, not %s", base)
	}
	lenTok, err := p.match(INTLIT)
	if err != nil {
		return Binding{}, err
	}
	length, err := strconv.Atoi(string(lenTok.Content))
	if err != nil {
		return Binding{}, NewError(lenTok.Pos, ErrUnexpectedToken, "invalid array length: %s", lenTok.Content)
	}
	if _, err := p.match(RIGHTBRACKET); err != nil {
		return Binding{}, err
	}
	return Binding{Type: ArrayOf(base.Kind, length), Id: id}, nil
}

func (p *Parser) parseFunRest(returnType Type, id Token) (*FunDef, error) {
	formals, err := p.parseFormals()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(LEFTBRACE); err != nil {
		return nil, err
	}
	locals := []Binding{}
	for isTypeKeyword(p.next().Kind) {
		base, err := p.parseTypeKeyword()
		if err != nil {
			return nil, err
		}
		localId, err := p.match(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		binding, err := p.parseBindingRest(base, localId)
		if err != nil {
			return nil, err
		}
		if _, err := p.match(SEMICOLON); err != nil {
			return nil, err
		}
		locals = append(locals, binding)
	}
	body := []StmtNode{}
	for p.next().Kind != RIGHTBRACE {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	p.advance()
	return &FunDef{
		ReturnType: returnType,
		Id:         id,
		Formals:    formals,
		Locals:     locals,
		Body:       body,
	}, nil
}

func (p *Parser) parseFormals() ([]Binding, error) {
	if _, err := p.match(LEFTPAREN); err != nil {
		return nil, err
	}
	formals := []Binding{}
	if p.next().Kind == RIGHTPAREN {
		p.advance()
		return formals, nil
	}
	for {
		base, err := p.parseTypeKeyword()
		if err != nil {
			return nil, err
		}
		id, err := p.match(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		binding, err := p.parseBindingRest(base, id)
		if err != nil {
			return nil, err
		}
		formals = append(formals, binding)
		if p.next().Kind != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.match(RIGHTPAREN); err != nil {
		return nil, err
	}
	return formals, nil
}

func (p *Parser) parseStmt() (StmtNode, error) {
	switch p.next().Kind {
	case LEFTBRACE:
		return p.parseBlock()
	case IF:
		return p.parseIf()
	case FOR:
		return p.parseFor()
	case WHILE:
		return p.parseWhile()
	case RETURN:
		kw := p.advance()
		var arg ExprNode = &NoExprNode{Token: kw}
		if p.next().Kind != SEMICOLON {
			var err error
			arg, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.match(SEMICOLON); err != nil {
			return nil, err
		}
		return &ReturnStmt{Return: kw, Arg: arg}, nil
	default:
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.match(SEMICOLON); err != nil {
			return nil, err
		}
		return &ExprStmt{Expr: expr}, nil
	}
}

func (p *Parser) parseBlock() (*BlockStmt, error) {
	left, err := p.match(LEFTBRACE)
	if err != nil {
		return nil, err
	}
	stmts := []StmtNode{}
	for p.next().Kind != RIGHTBRACE {
		if p.next().Kind == EOF {
			return nil, NewError(p.next().Pos, ErrUnexpectedToken, "expected }, got EOF")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	right := p.advance()
	return &BlockStmt{Left: left, Stmts: stmts, Right: right}, nil
}

func (p *Parser) parseIf() (StmtNode, error) {
	kw := p.advance()
	if _, err := p.match(LEFTPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(RIGHTPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	var els StmtNode
	if p.next().Kind == ELSE {
		p.advance()
		els, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return &IfStmt{If: kw, Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseFor() (StmtNode, error) {
	kw := p.advance()
	if _, err := p.match(LEFTPAREN); err != nil {
		return nil, err
	}
	init, err := p.parseExprOrEmpty(SEMICOLON)
	if err != nil {
		return nil, err
	}
	if _, err := p.match(SEMICOLON); err != nil {
		return nil, err
	}
	cond, err := p.parseExprOrEmpty(SEMICOLON)
	if err != nil {
		return nil, err
	}
	if _, err := p.match(SEMICOLON); err != nil {
		return nil, err
	}
	update, err := p.parseExprOrEmpty(RIGHTPAREN)
	if err != nil {
		return nil, err
	}
	if _, err := p.match(RIGHTPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ForStmt{For: kw, Init: init, Cond: cond, Update: update, Body: body}, nil
}

func (p *Parser) parseWhile() (StmtNode, error) {
	kw := p.advance()
	if _, err := p.match(LEFTPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(RIGHTPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{While: kw, Cond: cond, Body: body}, nil
}

func (p *Parser) parseExprOrEmpty(closing TokenKind) (ExprNode, error) {
	if p.next().Kind == closing {
		return &NoExprNode{Token: p.next()}, nil
	}
	return p.parseExpr()
}

// parseExpr parses an assignment or anything of higher precedence. The left
// side is parsed first as an ordinary expression; on = it must be a name, an
// array cell or a matrix cell.
func (p *Parser) parseExpr() (ExprNode, error) {
	lhs, err := p.parseBinaryExpr(0)
	if err != nil {
		return nil, err
	}
	if p.next().Kind != EQ {
		return lhs, nil
	}
	eq := p.advance()
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	switch target := lhs.(type) {
	case *LiteralExprNode:
		if target.Token.Kind == IDENTIFIER {
			return &AssignExprNode{Id: target.Token, Eq: eq, Value: value}, nil
		}
	case *ArrayIndexExprNode:
		return &ArrayAssignExprNode{Id: target.Id, Index: target.Index, Value: value}, nil
	case *MatrixIndexExprNode:
		return &MatrixAssignExprNode{Id: target.Id, Row: target.Row, Col: target.Col, Value: value}, nil
	}
	return nil, NewError(eq.Pos, ErrUnexpectedToken, "cannot assign to this expression")
}

func binaryPrecedence(k TokenKind) int {
	switch k {
	case PIPEPIPE:
		return 1
	case AMPAMP:
		return 2
	case EQEQ, BANGEQ:
		return 3
	case LESS, LESSEQ, GREATER, GREATEREQ:
		return 4
	case PLUS, MINUS:
		return 5
	case STAR, SLASH, PERCENT:
		return 6
	}
	return 0
}

func (p *Parser) parseBinaryExpr(minPrec int) (ExprNode, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		prec := binaryPrecedence(p.next().Kind)
		if prec == 0 || prec <= minPrec {
			return left, nil
		}
		op := p.advance()
		right, err := p.parseBinaryExpr(prec)
		if err != nil {
			return nil, err
		}
		left = &BinaryExprNode{Left: left, Op: op, Right: right}
	}
}

func (p *Parser) parseUnaryExpr() (ExprNode, error) {
	switch p.next().Kind {
	case MINUS, BANG, PLUSPLUS, MINUSMINUS:
		op := p.advance()
		operand, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExprNode{Operator: op, Operand: operand}, nil
	}
	return p.parsePrimaryExpr()
}

func (p *Parser) parsePrimaryExpr() (ExprNode, error) {
	switch tok := p.next(); tok.Kind {
	case INTLIT, FLOATLIT, STRLIT, TRUE, FALSE:
		p.advance()
		return &LiteralExprNode{Token: tok}, nil
	case IDENTIFIER:
		p.advance()
		switch p.next().Kind {
		case LEFTPAREN:
			return p.parseCallRest(tok)
		case LEFTBRACKET:
			return p.parseIndexRest(tok)
		}
		return &LiteralExprNode{Token: tok}, nil
	case LEFTPAREN:
		left := p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		right, err := p.match(RIGHTPAREN)
		if err != nil {
			return nil, err
		}
		return &GroupedExprNode{Left: left, Inner: inner, Right: right}, nil
	case LEFTBRACKET:
		return p.parseArrayOrMatrixLit()
	case LESS:
		return p.parseMatrixCtor()
	}
	return nil, NewError(p.next().Pos, ErrUnexpectedToken, "expected an expression, got %s", p.next().Kind)
}

func (p *Parser) parseCallRest(callee Token) (ExprNode, error) {
	p.advance()
	args := []ExprNode{}
	if p.next().Kind != RIGHTPAREN {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.next().Kind != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.match(RIGHTPAREN); err != nil {
		return nil, err
	}
	return &CallExprNode{Callee: callee, Args: args}, nil
}

// parseIndexRest handles id[e] and id[i][j]: a single index is an array
// access, a double index is a matrix access.
func (p *Parser) parseIndexRest(id Token) (ExprNode, error) {
	p.advance()
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(RIGHTBRACKET); err != nil {
		return nil, err
	}
	if p.next().Kind != LEFTBRACKET {
		return &ArrayIndexExprNode{Id: id, Index: first}, nil
	}
	p.advance()
	second, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.match(RIGHTBRACKET); err != nil {
		return nil, err
	}
	return &MatrixIndexExprNode{Id: id, Row: first, Col: second}, nil
}

// parseArrayOrMatrixLit parses a bracketed literal. A semicolon promotes it
// from an array literal to a matrix literal with semicolon-separated rows.
func (p *Parser) parseArrayOrMatrixLit() (ExprNode, error) {
	left := p.advance()
	if p.next().Kind == RIGHTBRACKET {
		p.advance()
		return &ArrayLitExprNode{Left: left, Elems: []ExprNode{}}, nil
	}
	firstRow, err := p.parseExprRow()
	if err != nil {
		return nil, err
	}
	if p.next().Kind != SEMICOLON {
		if _, err := p.match(RIGHTBRACKET); err != nil {
			return nil, err
		}
		return &ArrayLitExprNode{Left: left, Elems: firstRow}, nil
	}
	rows := [][]ExprNode{firstRow}
	for p.next().Kind == SEMICOLON {
		p.advance()
		row, err := p.parseExprRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if _, err := p.match(RIGHTBRACKET); err != nil {
		return nil, err
	}
	return &MatrixLitExprNode{Left: left, Rows: rows}, nil
}

func (p *Parser) parseExprRow() ([]ExprNode, error) {
	row := []ExprNode{}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		row = append(row, e)
		if p.next().Kind != COMMA {
			return row, nil
		}
		p.advance()
	}
}

// parseMatrixCtor parses <height, width>. The dimensions are parsed above
// relational precedence so the closing > is not taken as a comparison;
// parenthesize a dimension to compare inside it.
func (p *Parser) parseMatrixCtor() (ExprNode, error) {
	left := p.advance()
	height, err := p.parseBinaryExpr(binaryPrecedence(GREATER))
	if err != nil {
		return nil, err
	}
	if _, err := p.match(COMMA); err != nil {
		return nil, err
	}
	width, err := p.parseBinaryExpr(binaryPrecedence(GREATER))
	if err != nil {
		return nil, err
	}
	if _, err := p.match(GREATER); err != nil {
		return nil, err
	}
	return &MatrixCtorExprNode{Left: left, Height: height, Width: width}, nil
}

func (p *Parser) next() Token {
	return p.tokens[p.index]
}

func (p *Parser) advance() Token {
	t := p.next()
	if p.index+1 < len(p.tokens) {
		p.index++
	}
	return t
}

func (p *Parser) match(kind TokenKind) (Token, error) {
	t := p.next()
	if t.Kind != kind {
		return t, NewError(t.Pos, ErrUnexpectedToken, "expected %s, got %s", kind, t.Kind)
	}
	p.advance()
	return t, nil
}
