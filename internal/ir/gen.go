package ir

import (
	"github.com/wayuto/gosc/internal/ast"
	"github.com/wayuto/gosc/internal/gerr"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// funcSig is the signature recorded for every declared function or extern,
// used to validate call sites regardless of declaration order across the
// merged translation unit.
type funcSig struct {
	Params     []ast.Type
	Ret        ast.Type
	IsExternal bool
}

// scope is one lexical level: declared variable names to their types.
type scope map[string]ast.Type

// generator carries all per-program state while lowering an ast.Expr Block
// of top-level declarations into a Program.
type generator struct {
	prog     *Program
	funcSigs map[string]funcSig

	scopes     []scope
	tmpCounter int
	labelSeq   int
	internSeq  int
}

// ---------------------
// ----- functions -----
// ---------------------

// Generate lowers root (a Block of top-level FuncDecl/Extern nodes,
// typically the merge of every source file in a compilation) into a
// Program.
func Generate(root *ast.Expr) (*Program, error) {
	if root == nil || root.Kind != ast.Block {
		return nil, gerr.New(gerr.IRGen, gerr.ReasonIRSyntaxError, gerr.Position{}, "expected a top-level block")
	}
	g := &generator{prog: NewProgram(), funcSigs: map[string]funcSig{}}

	for _, decl := range root.Stmts {
		switch decl.Kind {
		case ast.FuncDecl:
			if _, exists := g.funcSigs[decl.Ident]; exists {
				return nil, g.errAt(decl, gerr.ReasonNameError, "function %q declared more than once", decl.Ident)
			}
			g.funcSigs[decl.Ident] = funcSig{Params: paramTypes(decl.Params), Ret: decl.RetType}
		case ast.Extern:
			if _, exists := g.funcSigs[decl.Ident]; exists {
				return nil, g.errAt(decl, gerr.ReasonNameError, "function %q declared more than once", decl.Ident)
			}
			g.funcSigs[decl.Ident] = funcSig{Params: decl.ParamTypes, Ret: decl.RetType, IsExternal: true}
		default:
			return nil, g.errAt(decl, gerr.ReasonIRSyntaxError, "top-level statements must be function or extern declarations")
		}
	}

	for _, decl := range root.Stmts {
		switch decl.Kind {
		case ast.FuncDecl:
			fn, err := g.genFunction(decl)
			if err != nil {
				return nil, err
			}
			g.prog.Functions = append(g.prog.Functions, fn)
		case ast.Extern:
			g.prog.Functions = append(g.prog.Functions, &Function{
				Name: decl.Ident, Params: externParams(decl.ParamTypes), RetType: decl.RetType, IsExternal: true,
			})
		}
	}

	return g.prog, nil
}

func paramTypes(params []ast.Param) []ast.Type {
	ts := make([]ast.Type, len(params))
	for i, p := range params {
		ts[i] = p.Typ
	}
	return ts
}

func externParams(ts []ast.Type) []ast.Param {
	ps := make([]ast.Param, len(ts))
	for i, t := range ts {
		ps[i] = ast.Param{Typ: t}
	}
	return ps
}

func (g *generator) errAt(e *ast.Expr, reason gerr.Reason, format string, args ...any) error {
	return gerr.New(gerr.IRGen, reason, gerr.Position{Row: e.Row, Col: e.Col}, format, args...)
}

// ----------------------------
// -----  scope handling  -----
// ----------------------------

func (g *generator) pushScope() { g.scopes = append(g.scopes, scope{}) }
func (g *generator) popScope()  { g.scopes = g.scopes[:len(g.scopes)-1] }

func (g *generator) declare(e *ast.Expr, name string, typ ast.Type) error {
	top := g.scopes[len(g.scopes)-1]
	if _, exists := top[name]; exists {
		return g.errAt(e, gerr.ReasonNameError, "%q redeclared in the same scope", name)
	}
	top[name] = typ
	return nil
}

func (g *generator) lookup(name string) (ast.Type, bool) {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if t, ok := g.scopes[i][name]; ok {
			return t, true
		}
	}
	return ast.Type{}, false
}

// ----------------------------
// -----   emission utils  ----
// ----------------------------

func (g *generator) emit(fn *Function, instr Instruction) { fn.Instrs = append(fn.Instrs, instr) }

func (g *generator) newTemp(typ ast.Type) Operand {
	id := g.tmpCounter
	g.tmpCounter++
	return Operand{Kind: OTemp, ID: id, Typ: typ}
}

func (g *generator) newLabel(prefix string) string {
	g.labelSeq++
	return ".L" + prefix + itoa(g.labelSeq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (g *generator) constOperand(c Const) Operand {
	idx := g.prog.Intern(c)
	return Operand{Kind: OConstIdx, ConstIdx: idx, Typ: c.Typ}
}

func intType() ast.Type  { return ast.Type{Kind: ast.Int} }
func fltType() ast.Type  { return ast.Type{Kind: ast.Float} }
func boolType() ast.Type { return ast.Type{Kind: ast.Bool} }
func voidType() ast.Type { return ast.Type{Kind: ast.Void} }

// ----------------------------
// -----  function bodies  ----
// ----------------------------

func (g *generator) genFunction(decl *ast.Expr) (*Function, error) {
	fn := &Function{Name: decl.Ident, Params: decl.Params, RetType: decl.RetType, Public: decl.Public}
	g.tmpCounter = 0
	g.scopes = nil
	g.pushScope()
	for _, p := range decl.Params {
		if err := g.declare(decl, p.Name, p.Typ); err != nil {
			return nil, err
		}
	}

	result, err := g.genBody(fn, decl.FuncBody)
	if err != nil {
		return nil, err
	}
	g.popScope()

	if len(fn.Instrs) == 0 || fn.Instrs[len(fn.Instrs)-1].Op != Return {
		g.emit(fn, Instruction{Op: Return, Src1: &result})
	}
	return fn, nil
}

// genBody generates a function body without pushing an extra scope beyond
// the parameter scope already pushed by genFunction.
func (g *generator) genBody(fn *Function, body *ast.Expr) (Operand, error) {
	if body.Kind == ast.Block {
		return g.genStmts(fn, body.Stmts)
	}
	return g.gen(fn, body)
}

func (g *generator) genStmts(fn *Function, stmts []*ast.Expr) (Operand, error) {
	result := Operand{Typ: voidType()}
	for _, s := range stmts {
		var err error
		result, err = g.gen(fn, s)
		if err != nil {
			return Operand{}, err
		}
	}
	return result, nil
}

// genScoped runs e as a block statement, pushing a fresh scope unless e is
// already a Block (which manages its own scope).
func (g *generator) genScoped(fn *Function, e *ast.Expr) (Operand, error) {
	if e.Kind == ast.Block {
		return g.genBlock(fn, e)
	}
	g.pushScope()
	result, err := g.gen(fn, e)
	g.popScope()
	return result, err
}

func (g *generator) genBlock(fn *Function, e *ast.Expr) (Operand, error) {
	g.pushScope()
	result, err := g.genStmts(fn, e.Stmts)
	g.popScope()
	return result, err
}

// ----------------------------
// -----   main dispatch  -----
// ----------------------------

// gen lowers a single AST node, emitting into fn and returning the operand
// holding its value (Typ Void for nodes with no meaningful value).
func (g *generator) gen(fn *Function, e *ast.Expr) (Operand, error) {
	switch e.Kind {
	case ast.Block:
		return g.genBlock(fn, e)
	case ast.Value:
		return g.genValue(fn, e)
	case ast.VarRef:
		t, ok := g.lookup(e.Ident)
		if !ok {
			return Operand{}, g.errAt(e, gerr.ReasonNameError, "undefined variable %q", e.Ident)
		}
		return Operand{Kind: OVar, Name: e.Ident, Typ: t}, nil
	case ast.VarDecl:
		return g.genVarDecl(fn, e)
	case ast.VarMut:
		return g.genVarMut(fn, e)
	case ast.BinOp:
		return g.genBinOp(fn, e)
	case ast.UnOp:
		return g.genUnOp(fn, e)
	case ast.If:
		return g.genIf(fn, e)
	case ast.While:
		return g.genWhile(fn, e)
	case ast.For:
		return g.genFor(fn, e)
	case ast.Call:
		return g.genCall(fn, e)
	case ast.Return:
		return g.genReturn(fn, e)
	case ast.Label:
		g.emit(fn, Instruction{Op: Label, Label: e.Ident, Row: e.Row, Col: e.Col})
		return Operand{Typ: voidType()}, nil
	case ast.Goto:
		g.emit(fn, Instruction{Op: Jump, Label: e.Ident, Row: e.Row, Col: e.Col})
		return Operand{Typ: voidType()}, nil
	case ast.ArrayAccess:
		return g.genArrayAccess(fn, e)
	case ast.ArrayAssign:
		return g.genArrayAssign(fn, e)
	case ast.FuncDecl, ast.Extern:
		return Operand{}, g.errAt(e, gerr.ReasonIRSyntaxError, "nested function/extern declarations are not allowed")
	default:
		return Operand{}, g.errAt(e, gerr.ReasonIRSyntaxError, "unsupported node kind %s", e.Kind)
	}
}

// ----------------------------
// -----     literals     -----
// ----------------------------

func (g *generator) genValue(fn *Function, e *ast.Expr) (Operand, error) {
	switch e.ValType.Kind {
	case ast.Int:
		op := g.constOperand(Const{Kind: CInt, IntVal: e.IntVal, Typ: intType()})
		dst := g.newTemp(intType())
		g.emit(fn, Instruction{Op: Move, Dst: &dst, Src1: &op, Row: e.Row, Col: e.Col})
		return dst, nil
	case ast.Float:
		op := g.constOperand(Const{Kind: CFloat, FloatBits: FloatBits(e.FloatVal), Typ: fltType()})
		dst := g.newTemp(fltType())
		g.emit(fn, Instruction{Op: FMove, Dst: &dst, Src1: &op, Row: e.Row, Col: e.Col})
		return dst, nil
	case ast.Bool:
		op := g.constOperand(Const{Kind: CBool, BoolVal: e.BoolVal, Typ: boolType()})
		dst := g.newTemp(boolType())
		g.emit(fn, Instruction{Op: Move, Dst: &dst, Src1: &op, Row: e.Row, Col: e.Col})
		return dst, nil
	case ast.Str:
		op := g.constOperand(Const{Kind: CStr, StrVal: e.StrVal, Typ: ast.Type{Kind: ast.Str}})
		dst := g.newTemp(ast.Type{Kind: ast.Str})
		g.emit(fn, Instruction{Op: Move, Dst: &dst, Src1: &op, Row: e.Row, Col: e.Col})
		return dst, nil
	case ast.Array:
		return g.genArrayLiteral(fn, e, e.Elems)
	default:
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "literal of unsupported type %s", e.ValType)
	}
}

// genArrayLiteral lowers an array literal two ways depending on whether
// every element folds to a literal: a fully literal array is interned whole
// into the constant pool and materialized in one instruction; an array with
// any live (non-literal) element is allocated empty and filled element by
// element, since a live value has no business in a *compile-time* constant
// pool (see Const's doc comment).
func (g *generator) genArrayLiteral(fn *Function, e *ast.Expr, elems []*ast.Expr) (Operand, error) {
	n := len(elems)
	arrType := ast.Type{Kind: ast.Array, ArrayLen: &n}

	allLiteral := true
	for _, el := range elems {
		if !el.IsLiteral() {
			allLiteral = false
			break
		}
	}

	dst := g.newTemp(arrType)
	if allLiteral {
		consts := make([]Const, len(elems))
		for i, el := range elems {
			c, err := g.constForScalar(el)
			if err != nil {
				return Operand{}, err
			}
			consts[i] = c
		}
		idx := g.prog.Intern(Const{Kind: CArray, Elems: consts, Typ: arrType})
		constOp := Operand{Kind: OConstIdx, ConstIdx: idx, Typ: arrType}
		g.emit(fn, Instruction{Op: ArrayMaterialize, Dst: &dst, Src1: &constOp, Row: e.Row, Col: e.Col})
		return dst, nil
	}

	g.emit(fn, Instruction{Op: ArrayAlloc, Dst: &dst, Row: e.Row, Col: e.Col})
	for i, el := range elems {
		val, err := g.gen(fn, el)
		if err != nil {
			return Operand{}, err
		}
		idxOp := g.constOperand(Const{Kind: CInt, IntVal: int64(i), Typ: intType()})
		g.emit(fn, Instruction{Op: ArrayElemSet, Dst: &dst, Src1: &idxOp, Src2: &val, Row: el.Row, Col: el.Col})
	}
	return dst, nil
}

func (g *generator) constForScalar(e *ast.Expr) (Const, error) {
	switch e.ValType.Kind {
	case ast.Int:
		return Const{Kind: CInt, IntVal: e.IntVal, Typ: intType()}, nil
	case ast.Float:
		return Const{Kind: CFloat, FloatBits: FloatBits(e.FloatVal), Typ: fltType()}, nil
	case ast.Bool:
		return Const{Kind: CBool, BoolVal: e.BoolVal, Typ: boolType()}, nil
	case ast.Str:
		return Const{Kind: CStr, StrVal: e.StrVal, Typ: ast.Type{Kind: ast.Str}}, nil
	default:
		return Const{}, g.errAt(e, gerr.ReasonIRTypeError, "array element of unsupported type %s", e.ValType)
	}
}

// ----------------------------
// -----  decl / mutation  ----
// ----------------------------

func (g *generator) genVarDecl(fn *Function, e *ast.Expr) (Operand, error) {
	init := e.Init
	if e.DeclType.Kind == ast.Array && e.DeclType.ArrayLen != nil && init.Kind == ast.Value && init.ValType.Kind == ast.Array {
		n := *e.DeclType.ArrayLen
		if len(init.Elems) == 1 && n > 1 && init.Elems[0].IsLiteral() {
			// Fill is a constant-pool rewrite, not re-evaluation: it only fires
			// when the single element is already a literal, so repeating it N
			// times never duplicates a live computation (e.g. a call).
			filled := make([]*ast.Expr, n)
			for i := range filled {
				filled[i] = init.Elems[0]
			}
			init = &ast.Expr{Kind: ast.Value, Row: init.Row, Col: init.Col, ValType: e.DeclType, Elems: filled}
		} else if len(init.Elems) != n {
			return Operand{}, g.errAt(e, gerr.ReasonIRTypeError,
				"array initializer has length %d, declared length is %d", len(init.Elems), n)
		}
	}

	val, err := g.gen(fn, init)
	if err != nil {
		return Operand{}, err
	}
	if !typesAssignable(e.DeclType, val.Typ) {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "cannot initialize %q of type %s with value of type %s", e.Ident, e.DeclType, val.Typ)
	}
	if err := g.declare(e, e.Ident, e.DeclType); err != nil {
		return Operand{}, err
	}
	dst := Operand{Kind: OVar, Name: e.Ident, Typ: e.DeclType}
	g.emit(fn, Instruction{Op: moveOpFor(e.DeclType), Dst: &dst, Src1: &val, Row: e.Row, Col: e.Col})
	return val, nil
}

func (g *generator) genVarMut(fn *Function, e *ast.Expr) (Operand, error) {
	declType, ok := g.lookup(e.Ident)
	if !ok {
		return Operand{}, g.errAt(e, gerr.ReasonNameError, "assignment to undefined variable %q", e.Ident)
	}
	val, err := g.gen(fn, e.RHS)
	if err != nil {
		return Operand{}, err
	}
	if !typesAssignable(declType, val.Typ) {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "cannot assign value of type %s to %q of type %s", val.Typ, e.Ident, declType)
	}
	dst := Operand{Kind: OVar, Name: e.Ident, Typ: declType}
	g.emit(fn, Instruction{Op: moveOpFor(declType), Dst: &dst, Src1: &val, Row: e.Row, Col: e.Col})
	return val, nil
}

func moveOpFor(t ast.Type) Op {
	if t.Kind == ast.Float {
		return FMove
	}
	return Move
}

func typesAssignable(declared, got ast.Type) bool {
	if declared.Kind == ast.Array && got.Kind == ast.Array {
		return declared.ArrayLen == nil || got.ArrayLen == nil || *declared.ArrayLen == *got.ArrayLen
	}
	return declared.Kind == got.Kind
}

// ----------------------------
// -----    operators     -----
// ----------------------------

func (g *generator) genBinOp(fn *Function, e *ast.Expr) (Operand, error) {
	l, err := g.gen(fn, e.LHS)
	if err != nil {
		return Operand{}, err
	}
	r, err := g.gen(fn, e.RHS)
	if err != nil {
		return Operand{}, err
	}

	if e.Op == ast.OpRange {
		if l.Typ.Kind != ast.Int || r.Typ.Kind != ast.Int {
			return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "range bounds must be int")
		}
		dst := g.newTemp(ast.Type{Kind: ast.Array})
		g.emit(fn, Instruction{Op: Range, Dst: &dst, Src1: &l, Src2: &r, Row: e.Row, Col: e.Col})
		return dst, nil
	}

	isFloat := l.Typ.Kind == ast.Float
	if !sameArithmeticType(l.Typ, r.Typ) {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "operand type mismatch: %s vs %s", l.Typ, r.Typ)
	}

	var op Op
	resultType := l.Typ
	switch e.Op {
	case ast.OpAdd:
		op = pick(isFloat, FAdd, Add)
	case ast.OpSub:
		op = pick(isFloat, FSub, Sub)
	case ast.OpMul:
		op = pick(isFloat, FMul, Mul)
	case ast.OpDiv:
		op = pick(isFloat, FDiv, Div)
	case ast.OpEq:
		op, resultType = pick(isFloat, FEq, Eq), boolType()
	case ast.OpNe:
		op, resultType = pick(isFloat, FNe, Ne), boolType()
	case ast.OpGt:
		op, resultType = pick(isFloat, FGt, Gt), boolType()
	case ast.OpGe:
		op, resultType = pick(isFloat, FGe, Ge), boolType()
	case ast.OpLt:
		op, resultType = pick(isFloat, FLt, Lt), boolType()
	case ast.OpLe:
		op, resultType = pick(isFloat, FLe, Le), boolType()
	case ast.OpLogAnd:
		op = LAnd
	case ast.OpLogOr:
		op = LOr
	case ast.OpLogXor:
		op = Xor
	case ast.OpCompAnd:
		op, resultType = And, boolType()
	case ast.OpCompOr:
		op, resultType = Or, boolType()
	default:
		return Operand{}, g.errAt(e, gerr.ReasonIRSyntaxError, "unsupported binary operator %s", e.Op)
	}
	dst := g.newTemp(resultType)
	g.emit(fn, Instruction{Op: op, Dst: &dst, Src1: &l, Src2: &r, Row: e.Row, Col: e.Col})
	return dst, nil
}

func pick(float bool, f, i Op) Op {
	if float {
		return f
	}
	return i
}

func sameArithmeticType(a, b ast.Type) bool {
	if a.Kind == ast.Bool && b.Kind == ast.Bool {
		return true
	}
	return a.Kind == b.Kind && (a.Kind == ast.Int || a.Kind == ast.Float)
}

func (g *generator) genUnOp(fn *Function, e *ast.Expr) (Operand, error) {
	operand, err := g.gen(fn, e.Operand)
	if err != nil {
		return Operand{}, err
	}
	switch e.Op {
	case ast.OpNeg:
		if operand.Typ.Kind != ast.Int && operand.Typ.Kind != ast.Float {
			return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "unary - requires int or float, got %s", operand.Typ)
		}
		dst := g.newTemp(operand.Typ)
		g.emit(fn, Instruction{Op: pick(operand.Typ.Kind == ast.Float, FNeg, Neg), Dst: &dst, Src1: &operand, Row: e.Row, Col: e.Col})
		return dst, nil
	case ast.OpNot:
		if operand.Typ.Kind != ast.Bool {
			return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "unary ! requires bool, got %s", operand.Typ)
		}
		dst := g.newTemp(boolType())
		g.emit(fn, Instruction{Op: Not, Dst: &dst, Src1: &operand, Row: e.Row, Col: e.Col})
		return dst, nil
	case ast.OpSizeof:
		if operand.Typ.Kind != ast.Array {
			return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "sizeof requires an array, got %s", operand.Typ)
		}
		dst := g.newTemp(intType())
		g.emit(fn, Instruction{Op: SizeOf, Dst: &dst, Src1: &operand, Row: e.Row, Col: e.Col})
		return dst, nil
	default:
		return Operand{}, g.errAt(e, gerr.ReasonIRSyntaxError, "unsupported unary operator %s", e.Op)
	}
}

// ----------------------------
// -----   control flow   -----
// ----------------------------

func (g *generator) genIf(fn *Function, e *ast.Expr) (Operand, error) {
	cond, err := g.gen(fn, e.Cond)
	if err != nil {
		return Operand{}, err
	}
	if cond.Typ.Kind != ast.Bool {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "if condition must be bool, got %s", cond.Typ)
	}
	lelse := g.newLabel("else")
	lend := g.newLabel("endif")
	g.emit(fn, Instruction{Op: JumpIfFalse, Src1: &cond, Label: lelse, Row: e.Row, Col: e.Col})

	thenVal, err := g.genScoped(fn, e.Then)
	if err != nil {
		return Operand{}, err
	}
	result := g.newTemp(thenVal.Typ)
	g.emit(fn, Instruction{Op: moveOpFor(thenVal.Typ), Dst: &result, Src1: &thenVal})
	g.emit(fn, Instruction{Op: Jump, Label: lend})
	g.emit(fn, Instruction{Op: Label, Label: lelse})

	if e.Else != nil {
		elseVal, err := g.genScoped(fn, e.Else)
		if err != nil {
			return Operand{}, err
		}
		if !typesAssignable(thenVal.Typ, elseVal.Typ) {
			return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "if branches have mismatched types: %s vs %s", thenVal.Typ, elseVal.Typ)
		}
		g.emit(fn, Instruction{Op: moveOpFor(elseVal.Typ), Dst: &result, Src1: &elseVal})
	}
	g.emit(fn, Instruction{Op: Label, Label: lend})
	return result, nil
}

func (g *generator) genWhile(fn *Function, e *ast.Expr) (Operand, error) {
	cond, err := g.gen(fn, e.Cond)
	if err != nil {
		return Operand{}, err
	}
	if cond.Typ.Kind != ast.Bool {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "while condition must be bool, got %s", cond.Typ)
	}
	lstart := g.newLabel("loop")
	lend := g.newLabel("loopend")
	g.emit(fn, Instruction{Op: JumpIfFalse, Src1: &cond, Label: lend, Row: e.Row, Col: e.Col})
	g.emit(fn, Instruction{Op: Label, Label: lstart})
	if _, err := g.genScoped(fn, e.Then); err != nil {
		return Operand{}, err
	}
	g.emit(fn, Instruction{Op: Jump, Label: lstart})
	g.emit(fn, Instruction{Op: Label, Label: lend})
	return Operand{Typ: voidType()}, nil
}

func (g *generator) genFor(fn *Function, e *ast.Expr) (Operand, error) {
	iter, err := g.gen(fn, e.ForIter)
	if err != nil {
		return Operand{}, err
	}
	if iter.Typ.Kind != ast.Array {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "for ... in requires an array, got %s", iter.Typ)
	}

	var length Operand
	if iter.Typ.ArrayLen != nil {
		length = g.constOperand(Const{Kind: CInt, IntVal: int64(*iter.Typ.ArrayLen), Typ: intType()})
	} else {
		length = g.newTemp(intType())
		g.emit(fn, Instruction{Op: SizeOf, Dst: &length, Src1: &iter, Row: e.Row, Col: e.Col})
	}

	g.pushScope()
	g.internSeq++
	idxName := "__idx" + itoa(g.internSeq)
	if err := g.declare(e, idxName, intType()); err != nil {
		return Operand{}, err
	}
	idxVar := Operand{Kind: OVar, Name: idxName, Typ: intType()}
	zero := g.constOperand(Const{Kind: CInt, IntVal: 0, Typ: intType()})
	g.emit(fn, Instruction{Op: Move, Dst: &idxVar, Src1: &zero})

	lcond := g.newLabel("for_cond")
	lend := g.newLabel("for_end")
	g.emit(fn, Instruction{Op: Jump, Label: lcond})
	g.emit(fn, Instruction{Op: Label, Label: lcond})

	cmp := g.newTemp(boolType())
	g.emit(fn, Instruction{Op: Lt, Dst: &cmp, Src1: &idxVar, Src2: &length})
	g.emit(fn, Instruction{Op: JumpIfFalse, Src1: &cmp, Label: lend})

	if err := g.declare(e, e.ForVar, intType()); err != nil {
		return Operand{}, err
	}
	elem := g.newTemp(intType())
	g.emit(fn, Instruction{Op: ArrayAccess, Dst: &elem, Src1: &iter, Src2: &idxVar, Row: e.Row, Col: e.Col})
	userVar := Operand{Kind: OVar, Name: e.ForVar, Typ: intType()}
	g.emit(fn, Instruction{Op: Move, Dst: &userVar, Src1: &elem})

	if _, err := g.genScoped(fn, e.ForBody); err != nil {
		return Operand{}, err
	}

	one := g.constOperand(Const{Kind: CInt, IntVal: 1, Typ: intType()})
	nextIdx := g.newTemp(intType())
	g.emit(fn, Instruction{Op: Add, Dst: &nextIdx, Src1: &idxVar, Src2: &one})
	g.emit(fn, Instruction{Op: Move, Dst: &idxVar, Src1: &nextIdx})
	g.emit(fn, Instruction{Op: Jump, Label: lcond})
	g.emit(fn, Instruction{Op: Label, Label: lend})
	g.popScope()
	return Operand{Typ: voidType()}, nil
}

// ----------------------------
// -----   calls / return  ----
// ----------------------------

func (g *generator) genCall(fn *Function, e *ast.Expr) (Operand, error) {
	sig, ok := g.funcSigs[e.Ident]
	if !ok {
		return Operand{}, g.errAt(e, gerr.ReasonNameError, "call to undeclared function %q", e.Ident)
	}
	if len(e.Args) != len(sig.Params) {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "function %q expects %d arguments, got %d", e.Ident, len(sig.Params), len(e.Args))
	}
	intSlot, fltSlot := 0, 0
	for i, argExpr := range e.Args {
		arg, err := g.gen(fn, argExpr)
		if err != nil {
			return Operand{}, err
		}
		if !typesAssignable(sig.Params[i], arg.Typ) {
			return Operand{}, g.errAt(argExpr, gerr.ReasonIRTypeError, "argument %d of %q: expected %s, got %s", i, e.Ident, sig.Params[i], arg.Typ)
		}
		if arg.Typ.Kind == ast.Float {
			g.emit(fn, Instruction{Op: FArg, Src1: &arg, ArgIndex: fltSlot})
			fltSlot++
		} else {
			g.emit(fn, Instruction{Op: Arg, Src1: &arg, ArgIndex: intSlot})
			intSlot++
		}
	}
	target := Operand{Kind: OFunc, Name: e.Ident}
	if sig.Ret.Kind == ast.Void {
		g.emit(fn, Instruction{Op: Call, Src1: &target, Row: e.Row, Col: e.Col})
		return Operand{Typ: voidType()}, nil
	}
	dst := g.newTemp(sig.Ret)
	g.emit(fn, Instruction{Op: Call, Dst: &dst, Src1: &target, Row: e.Row, Col: e.Col})
	return dst, nil
}

func (g *generator) genReturn(fn *Function, e *ast.Expr) (Operand, error) {
	val, err := g.gen(fn, e.ReturnVal)
	if err != nil {
		return Operand{}, err
	}
	g.emit(fn, Instruction{Op: Return, Src1: &val, Row: e.Row, Col: e.Col})
	return val, nil
}

// ----------------------------
// -----      arrays      -----
// ----------------------------

func (g *generator) genArrayAccess(fn *Function, e *ast.Expr) (Operand, error) {
	base, err := g.gen(fn, e.ArrBase)
	if err != nil {
		return Operand{}, err
	}
	if base.Typ.Kind != ast.Array {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "index target must be an array, got %s", base.Typ)
	}
	idx, err := g.gen(fn, e.ArrIndex)
	if err != nil {
		return Operand{}, err
	}
	if idx.Typ.Kind != ast.Int {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "array index must be int, got %s", idx.Typ)
	}
	dst := g.newTemp(intType())
	g.emit(fn, Instruction{Op: ArrayAccess, Dst: &dst, Src1: &base, Src2: &idx, Row: e.Row, Col: e.Col})
	return dst, nil
}

func (g *generator) genArrayAssign(fn *Function, e *ast.Expr) (Operand, error) {
	base, err := g.gen(fn, e.ArrBase)
	if err != nil {
		return Operand{}, err
	}
	if base.Typ.Kind != ast.Array {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "index target must be an array, got %s", base.Typ)
	}
	idx, err := g.gen(fn, e.ArrIndex)
	if err != nil {
		return Operand{}, err
	}
	if idx.Typ.Kind != ast.Int {
		return Operand{}, g.errAt(e, gerr.ReasonIRTypeError, "array index must be int, got %s", idx.Typ)
	}
	val, err := g.gen(fn, e.ArrValue)
	if err != nil {
		return Operand{}, err
	}
	// ArrayAssign has no result operand; Dst is reused to carry the value
	// being stored alongside Src1=base, Src2=index.
	g.emit(fn, Instruction{Op: ArrayAssign, Dst: &val, Src1: &base, Src2: &idx, Row: e.Row, Col: e.Col})
	return val, nil
}
