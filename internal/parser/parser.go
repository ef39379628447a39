// Package parser implements the recursive-descent, precedence-climbing
// parser that turns a token stream into the ast.Expr sum tree, folding
// constant subexpressions as it goes and registering function signatures
// at the point each header is parsed so later call sites (including
// self-recursive ones) see a return type.
package parser

import (
	"github.com/wayuto/gosc/internal/ast"
	"github.com/wayuto/gosc/internal/gerr"
	"github.com/wayuto/gosc/internal/lexer"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Parser holds one lexer and the function-signature table accumulated as
// headers are parsed. It is not safe for concurrent use.
type Parser struct {
	lex    *lexer.Lexer
	curr   lexer.Token
	funcs  map[string]ast.Type // name -> declared return type
	nextID int                 // synthetic while-true loop label counter
}

// ---------------------
// ----- functions -----
// ---------------------

// New builds a Parser over src and primes the first token.
func New(src string) (*Parser, error) {
	p := &Parser{lex: lexer.New(src), funcs: map[string]ast.Type{}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

// Parse consumes the whole token stream and returns the program as a Block
// of top-level declarations and statements.
func (p *Parser) Parse() (*ast.Expr, error) {
	var stmts []*ast.Expr
	for p.curr.Kind != lexer.EOF {
		e, err := p.ctrl()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, e)
	}
	return &ast.Expr{Kind: ast.Block, Stmts: stmts}, nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.curr = tok
	return nil
}

func (p *Parser) pos() gerr.Position { return gerr.Position{Row: p.curr.Row, Col: p.curr.Col} }

func (p *Parser) errorf(format string, args ...any) error {
	return gerr.New(gerr.Parser, gerr.ReasonSyntaxError, p.pos(), format, args...)
}

func (p *Parser) expect(k lexer.Kind, what string) error {
	if p.curr.Kind != k {
		return gerr.New(gerr.Parser, gerr.ReasonUnexpectedToken, p.pos(), "expected %s, found %s", what, p.curr.Kind)
	}
	return p.advance()
}

func (p *Parser) ident() (string, error) {
	if p.curr.Kind != lexer.IDENT {
		return "", gerr.New(gerr.Parser, gerr.ReasonUnexpectedToken, p.pos(), "expected identifier, found %s", p.curr.Kind)
	}
	name := p.curr.Ident
	return name, p.advance()
}

// ----------------------------
// ----- control / stmt  ------
// ----------------------------

// ctrl parses a top-level-or-nested control form: if/while/for/pub fun/fun,
// falling through to stmt for everything else.
func (p *Parser) ctrl() (*ast.Expr, error) {
	switch p.curr.Kind {
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwWhile:
		return p.parseWhile()
	case lexer.KwFor:
		return p.parseFor()
	case lexer.KwPub:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.curr.Kind != lexer.KwFun {
			return nil, p.errorf("expected 'fun' after 'pub', found %s", p.curr.Kind)
		}
		return p.funcDecl(true)
	case lexer.KwFun:
		return p.funcDecl(false)
	default:
		return p.stmt()
	}
}

func (p *Parser) parseIf() (*ast.Expr, error) {
	row, col := p.curr.Row, p.curr.Col
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	then, err := p.stmt()
	if err != nil {
		return nil, err
	}
	var els *ast.Expr
	if p.curr.Kind == lexer.KwElse {
		if err := p.advance(); err != nil {
			return nil, err
		}
		els, err = p.stmt()
		if err != nil {
			return nil, err
		}
	}
	if cond.Kind == ast.Value && cond.ValType.Kind == ast.Bool {
		if cond.BoolVal {
			return then, nil
		}
		if els != nil {
			return els, nil
		}
		return &ast.Expr{Kind: ast.Block, Row: row, Col: col}, nil
	}
	return &ast.Expr{Kind: ast.If, Row: row, Col: col, Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhile() (*ast.Expr, error) {
	row, col := p.curr.Row, p.curr.Col
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	body, err := p.stmt()
	if err != nil {
		return nil, err
	}
	if cond.Kind == ast.Value && cond.ValType.Kind == ast.Bool {
		if !cond.BoolVal {
			return &ast.Expr{Kind: ast.Block, Row: row, Col: col}, nil
		}
		// while true collapses to a labeled infinite loop, matching the
		// constant-folding the source language performs on literal conditions.
		p.nextID++
		label := gensymLoop(p.nextID)
		return &ast.Expr{Kind: ast.Block, Row: row, Col: col, Stmts: []*ast.Expr{
			{Kind: ast.Label, Ident: label},
			body,
			{Kind: ast.Goto, Ident: label},
		}}, nil
	}
	return &ast.Expr{Kind: ast.While, Row: row, Col: col, Cond: cond, Then: body}, nil
}

func gensymLoop(n int) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "__loop0"
	}
	buf := []byte{}
	for n > 0 {
		buf = append([]byte{digits[n%36]}, buf...)
		n /= 36
	}
	return "__loop" + string(buf)
}

func (p *Parser) parseFor() (*ast.Expr, error) {
	row, col := p.curr.Row, p.curr.Col
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.KwIn, "'in'"); err != nil {
		return nil, err
	}
	iter, err := p.expr()
	if err != nil {
		return nil, err
	}
	body, err := p.stmt()
	if err != nil {
		return nil, err
	}
	return &ast.Expr{Kind: ast.For, Row: row, Col: col, ForVar: name, ForIter: iter, ForBody: body}, nil
}

// stmt parses a brace-delimited block, forwards if/while/fun to ctrl, or
// otherwise parses a single expression-statement.
func (p *Parser) stmt() (*ast.Expr, error) {
	if p.curr.Kind == lexer.LBrace {
		row, col := p.curr.Row, p.curr.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		var stmts []*ast.Expr
		for p.curr.Kind != lexer.RBrace {
			if p.curr.Kind == lexer.EOF {
				return nil, p.errorf("unterminated block: expected '}'")
			}
			e, err := p.ctrl()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, e)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.Block, Row: row, Col: col, Stmts: stmts}, nil
	}
	switch p.curr.Kind {
	case lexer.KwIf, lexer.KwWhile, lexer.KwFun:
		return p.ctrl()
	default:
		return p.expr()
	}
}

// ----------------------------
// -----   expressions   ------
// ----------------------------

// expr parses goto/let/return/extern and otherwise forwards to the binary
// precedence chain rooted at logical().
func (p *Parser) expr() (*ast.Expr, error) {
	switch p.curr.Kind {
	case lexer.KwGoto:
		row, col := p.curr.Row, p.curr.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.Goto, Row: row, Col: col, Ident: name}, nil
	case lexer.KwLet:
		return p.varDecl()
	case lexer.KwReturn:
		row, col := p.curr.Row, p.curr.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.Return, Row: row, Col: col, ReturnVal: val}, nil
	case lexer.KwExtern:
		return p.externDecl()
	case lexer.KwIf, lexer.KwWhile, lexer.LBrace:
		return p.ctrl()
	default:
		return p.logical()
	}
}

func (p *Parser) varDecl() (*ast.Expr, error) {
	row, col := p.curr.Row, p.curr.Col
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Colon, "':'"); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Assign, "'='"); err != nil {
		return nil, err
	}
	val, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &ast.Expr{Kind: ast.VarDecl, Row: row, Col: col, Ident: name, DeclType: typ, Init: val}, nil
}

func (p *Parser) parseType() (ast.Type, error) {
	switch p.curr.Kind {
	case lexer.KwInt:
		t := ast.Type{Kind: ast.Int}
		return t, p.advance()
	case lexer.KwFlt:
		t := ast.Type{Kind: ast.Float}
		return t, p.advance()
	case lexer.KwBool:
		t := ast.Type{Kind: ast.Bool}
		return t, p.advance()
	case lexer.KwStr:
		t := ast.Type{Kind: ast.Str}
		return t, p.advance()
	case lexer.KwVoid:
		t := ast.Type{Kind: ast.Void}
		return t, p.advance()
	case lexer.KwArr:
		n := p.curr.ArrLen
		t := ast.Type{Kind: ast.Array, ArrayLen: n}
		return t, p.advance()
	default:
		return ast.Type{}, p.errorf("expected a type, found %s", p.curr.Kind)
	}
}

func (p *Parser) externDecl() (*ast.Expr, error) {
	row, col := p.curr.Row, p.curr.Col
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.LParen, "'('"); err != nil {
		return nil, err
	}
	var params []ast.Type
	for p.curr.Kind != lexer.RParen {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, t)
		if p.curr.Kind == lexer.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else if p.curr.Kind != lexer.RParen {
			return nil, p.errorf("expected ',' or ')', found %s", p.curr.Kind)
		}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Colon, "':'"); err != nil {
		return nil, err
	}
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.funcs[name] = ret
	return &ast.Expr{Kind: ast.Extern, Row: row, Col: col, Ident: name, ParamTypes: params, RetType: ret}, nil
}

func (p *Parser) funcDecl(pub bool) (*ast.Expr, error) {
	row, col := p.curr.Row, p.curr.Col
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.LParen, "'('"); err != nil {
		return nil, err
	}
	var params []ast.Param
	for p.curr.Kind != lexer.RParen {
		pname, err := p.ident()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.Colon, "':'"); err != nil {
			return nil, err
		}
		ptyp, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: pname, Typ: ptyp})
		if p.curr.Kind == lexer.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else if p.curr.Kind != lexer.RParen {
			return nil, p.errorf("expected ',' or ')', found %s", p.curr.Kind)
		}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.Colon, "':'"); err != nil {
		return nil, err
	}
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	// Registered before the body is parsed: a function may call itself, and
	// a later top-level function may call an earlier one. A call to a
	// function declared further down is rejected by callTail.
	p.funcs[name] = ret
	body, err := p.stmt()
	if err != nil {
		return nil, err
	}
	return &ast.Expr{Kind: ast.FuncDecl, Row: row, Col: col, Ident: name, Params: params, RetType: ret, FuncBody: body, Public: pub}, nil
}

// ----------------------------
// -----  precedence chain ----
// ----------------------------

func (p *Parser) logical() (*ast.Expr, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.curr.Kind == lexer.Amp || p.curr.Kind == lexer.Pipe || p.curr.Kind == lexer.Caret {
		op := logOpFor(p.curr.Kind)
		row, col := p.curr.Row, p.curr.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left, err = p.foldOrWrap(row, col, op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func logOpFor(k lexer.Kind) ast.BinOpKind {
	switch k {
	case lexer.Amp:
		return ast.OpLogAnd
	case lexer.Pipe:
		return ast.OpLogOr
	default:
		return ast.OpLogXor
	}
}

func (p *Parser) comparison() (*ast.Expr, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for isComparisonTok(p.curr.Kind) {
		op := compOpFor(p.curr.Kind)
		row, col := p.curr.Row, p.curr.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left, err = p.foldOrWrap(row, col, op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func isComparisonTok(k lexer.Kind) bool {
	switch k {
	case lexer.Eq, lexer.Ne, lexer.Lt, lexer.Le, lexer.Gt, lexer.Ge, lexer.AndAnd, lexer.OrOr, lexer.Tilde:
		return true
	default:
		return false
	}
}

func compOpFor(k lexer.Kind) ast.BinOpKind {
	switch k {
	case lexer.Eq:
		return ast.OpEq
	case lexer.Ne:
		return ast.OpNe
	case lexer.Lt:
		return ast.OpLt
	case lexer.Le:
		return ast.OpLe
	case lexer.Gt:
		return ast.OpGt
	case lexer.Ge:
		return ast.OpGe
	case lexer.AndAnd:
		return ast.OpCompAnd
	case lexer.OrOr:
		return ast.OpCompOr
	default:
		return ast.OpRange
	}
}

func (p *Parser) additive() (*ast.Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.curr.Kind == lexer.Plus || p.curr.Kind == lexer.Minus {
		op := ast.OpAdd
		if p.curr.Kind == lexer.Minus {
			op = ast.OpSub
		}
		row, col := p.curr.Row, p.curr.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left, err = p.foldOrWrap(row, col, op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) term() (*ast.Expr, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.curr.Kind == lexer.Star || p.curr.Kind == lexer.Slash {
		op := ast.OpMul
		if p.curr.Kind == lexer.Slash {
			op = ast.OpDiv
		}
		row, col := p.curr.Row, p.curr.Col
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left, err = p.foldOrWrap(row, col, op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// foldOrWrap replaces the BinOp node with the folded literal whenever both
// operands are literals of a supported kind; otherwise it builds a BinOp. A
// constant-folded integer division by zero is a compile-time TypeError
// rather than a silently unfolded BinOp.
func (p *Parser) foldOrWrap(row, col int, op ast.BinOpKind, l, r *ast.Expr) (*ast.Expr, error) {
	if l.Kind == ast.Value && r.Kind == ast.Value {
		if op == ast.OpDiv && l.ValType.Kind == ast.Int && r.ValType.Kind == ast.Int && r.IntVal == 0 {
			return nil, gerr.New(gerr.Parser, gerr.ReasonTypeError, gerr.Position{Row: row, Col: col}, "division by zero in constant expression")
		}
		if folded := foldBinary(op, l, r); folded != nil {
			folded.Row, folded.Col = row, col
			return folded, nil
		}
	}
	return &ast.Expr{Kind: ast.BinOp, Row: row, Col: col, Op: op, LHS: l, RHS: r}, nil
}

func foldBinary(op ast.BinOpKind, l, r *ast.Expr) *ast.Expr {
	switch {
	case l.ValType.Kind == ast.Int && r.ValType.Kind == ast.Int:
		n, m := l.IntVal, r.IntVal
		switch op {
		case ast.OpAdd:
			return intVal(n + m)
		case ast.OpSub:
			return intVal(n - m)
		case ast.OpMul:
			return intVal(n * m)
		case ast.OpDiv:
			if m == 0 {
				return nil
			}
			return intVal(n / m)
		case ast.OpEq:
			return boolVal(n == m)
		case ast.OpNe:
			return boolVal(n != m)
		case ast.OpGt:
			return boolVal(n > m)
		case ast.OpGe:
			return boolVal(n >= m)
		case ast.OpLt:
			return boolVal(n < m)
		case ast.OpLe:
			return boolVal(n <= m)
		case ast.OpLogAnd:
			return intVal(n & m)
		case ast.OpLogOr:
			return intVal(n | m)
		case ast.OpLogXor:
			return intVal(n ^ m)
		case ast.OpRange:
			return rangeVal(n, m)
		}
	case l.ValType.Kind == ast.Float && r.ValType.Kind == ast.Float:
		n, m := l.FloatVal, r.FloatVal
		switch op {
		case ast.OpAdd:
			return fltVal(n + m)
		case ast.OpSub:
			return fltVal(n - m)
		case ast.OpMul:
			return fltVal(n * m)
		case ast.OpDiv:
			return fltVal(n / m)
		case ast.OpEq:
			return boolVal(n == m)
		case ast.OpNe:
			return boolVal(n != m)
		case ast.OpGt:
			return boolVal(n > m)
		case ast.OpGe:
			return boolVal(n >= m)
		case ast.OpLt:
			return boolVal(n < m)
		case ast.OpLe:
			return boolVal(n <= m)
		}
	case l.ValType.Kind == ast.Bool && r.ValType.Kind == ast.Bool:
		n, m := l.BoolVal, r.BoolVal
		switch op {
		case ast.OpLogAnd:
			return boolVal(n && m)
		case ast.OpLogOr:
			return boolVal(n || m)
		case ast.OpLogXor:
			return boolVal(n != m)
		case ast.OpCompAnd:
			return boolVal(n && m)
		case ast.OpCompOr:
			return boolVal(n || m)
		case ast.OpEq:
			return boolVal(n == m)
		case ast.OpNe:
			return boolVal(n != m)
		}
	}
	return nil
}

func intVal(n int64) *ast.Expr {
	return &ast.Expr{Kind: ast.Value, ValType: ast.Type{Kind: ast.Int}, IntVal: n}
}

func fltVal(f float64) *ast.Expr {
	return &ast.Expr{Kind: ast.Value, ValType: ast.Type{Kind: ast.Float}, FloatVal: f}
}

func boolVal(b bool) *ast.Expr {
	return &ast.Expr{Kind: ast.Value, ValType: ast.Type{Kind: ast.Bool}, BoolVal: b}
}

// rangeVal materializes the literal array [n, n+1, ..., m-1] produced by
// folding a constant range expression at parse time.
func rangeVal(n, m int64) *ast.Expr {
	var elems []*ast.Expr
	for v := n; v < m; v++ {
		elems = append(elems, intVal(v))
	}
	length := len(elems)
	return &ast.Expr{Kind: ast.Value, ValType: ast.Type{Kind: ast.Array, ArrayLen: &length}, Elems: elems}
}

// ----------------------------
// -----      factor     ------
// ----------------------------

func (p *Parser) factor() (*ast.Expr, error) {
	switch p.curr.Kind {
	case lexer.INT:
		v := &ast.Expr{Kind: ast.Value, Row: p.curr.Row, Col: p.curr.Col, ValType: ast.Type{Kind: ast.Int}, IntVal: p.curr.IntVal}
		return v, p.advance()
	case lexer.FLOAT:
		v := &ast.Expr{Kind: ast.Value, Row: p.curr.Row, Col: p.curr.Col, ValType: ast.Type{Kind: ast.Float}, FloatVal: p.curr.FloatVal}
		return v, p.advance()
	case lexer.BOOL:
		v := &ast.Expr{Kind: ast.Value, Row: p.curr.Row, Col: p.curr.Col, ValType: ast.Type{Kind: ast.Bool}, BoolVal: p.curr.BoolVal}
		return v, p.advance()
	case lexer.STRING:
		v := &ast.Expr{Kind: ast.Value, Row: p.curr.Row, Col: p.curr.Col, ValType: ast.Type{Kind: ast.Str}, StrVal: p.curr.StrVal}
		return v, p.advance()
	case lexer.LParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.RParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.LBrack:
		return p.arrayLiteral()
	case lexer.Minus:
		return p.unary(ast.OpNeg)
	case lexer.Not:
		return p.unary(ast.OpNot)
	case lexer.KwSizeof:
		return p.unary(ast.OpSizeof)
	case lexer.IDENT:
		return p.identTail()
	default:
		return nil, p.errorf("unexpected token %s", p.curr.Kind)
	}
}

func (p *Parser) arrayLiteral() (*ast.Expr, error) {
	row, col := p.curr.Row, p.curr.Col
	if err := p.advance(); err != nil {
		return nil, err
	}
	var elems []*ast.Expr
	for p.curr.Kind != lexer.RBrack {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.curr.Kind == lexer.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else if p.curr.Kind != lexer.RBrack {
			return nil, p.errorf("expected ',' or ']', found %s", p.curr.Kind)
		}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	n := len(elems)
	return &ast.Expr{Kind: ast.Value, Row: row, Col: col, ValType: ast.Type{Kind: ast.Array, ArrayLen: &n}, Elems: elems}, nil
}

func (p *Parser) unary(op ast.BinOpKind) (*ast.Expr, error) {
	row, col := p.curr.Row, p.curr.Col
	if err := p.advance(); err != nil {
		return nil, err
	}
	arg, err := p.expr()
	if err != nil {
		return nil, err
	}
	if arg.Kind == ast.Value {
		switch op {
		case ast.OpNeg:
			if arg.ValType.Kind == ast.Int {
				return intVal(-arg.IntVal), nil
			}
			if arg.ValType.Kind == ast.Float {
				return fltVal(-arg.FloatVal), nil
			}
		case ast.OpNot:
			if arg.ValType.Kind == ast.Bool {
				return boolVal(!arg.BoolVal), nil
			}
		}
	}
	return &ast.Expr{Kind: ast.UnOp, Row: row, Col: col, Op: op, Operand: arg}, nil
}

// identTail parses whatever follows a bare identifier: a label, a call, a
// plain or compound assignment, an array access/assign, or a variable
// reference.
func (p *Parser) identTail() (*ast.Expr, error) {
	row, col := p.curr.Row, p.curr.Col
	name := p.curr.Ident
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch p.curr.Kind {
	case lexer.Colon:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.Label, Row: row, Col: col, Ident: name}, nil
	case lexer.LParen:
		return p.callTail(name, row, col)
	case lexer.Assign:
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.VarMut, Row: row, Col: col, Ident: name, RHS: val}, nil
	case lexer.PlusEq, lexer.MinusEq, lexer.StarEq, lexer.SlashEq:
		return p.compoundAssignTail(name, row, col)
	case lexer.LBrack:
		return p.arrayTail(name, row, col)
	default:
		return &ast.Expr{Kind: ast.VarRef, Row: row, Col: col, Ident: name}, nil
	}
}

func (p *Parser) callTail(name string, row, col int) (*ast.Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	// Looked up before the arguments are parsed, matching how the function
	// table is populated strictly in source order.
	ret, ok := p.funcs[name]
	if !ok {
		return nil, gerr.New(gerr.Parser, gerr.ReasonUnknownFunction, gerr.Position{Row: row, Col: col}, "call to undeclared function %q", name)
	}
	var args []*ast.Expr
	for p.curr.Kind != lexer.RParen {
		a, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.curr.Kind == lexer.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else if p.curr.Kind != lexer.RParen {
			return nil, p.errorf("expected ',' or ')', found %s", p.curr.Kind)
		}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &ast.Expr{Kind: ast.Call, Row: row, Col: col, Ident: name, Args: args, RetType: ret}, nil
}

func (p *Parser) compoundAssignTail(name string, row, col int) (*ast.Expr, error) {
	var op ast.BinOpKind
	switch p.curr.Kind {
	case lexer.PlusEq:
		op = ast.OpAdd
	case lexer.MinusEq:
		op = ast.OpSub
	case lexer.StarEq:
		op = ast.OpMul
	default:
		op = ast.OpDiv
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	val, err := p.expr()
	if err != nil {
		return nil, err
	}
	rhs := &ast.Expr{Kind: ast.BinOp, Row: row, Col: col, Op: op,
		LHS: &ast.Expr{Kind: ast.VarRef, Row: row, Col: col, Ident: name}, RHS: val}
	return &ast.Expr{Kind: ast.VarMut, Row: row, Col: col, Ident: name, RHS: rhs}, nil
}

func (p *Parser) arrayTail(name string, row, col int) (*ast.Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	idx, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.RBrack, "']'"); err != nil {
		return nil, err
	}
	base := &ast.Expr{Kind: ast.VarRef, Row: row, Col: col, Ident: name}
	if p.curr.Kind == lexer.Assign {
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.ArrayAssign, Row: row, Col: col, ArrBase: base, ArrIndex: idx, ArrValue: val}, nil
	}
	return &ast.Expr{Kind: ast.ArrayAccess, Row: row, Col: col, ArrBase: base, ArrIndex: idx}, nil
}
