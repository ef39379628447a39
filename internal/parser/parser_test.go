// Exercises the parser's constant folding, compound-assignment desugaring
// and literal if/while collapsing directly against the ast.Expr tree it
// builds, the way the teacher's frontend tests assert against parsed
// syntax-tree shapes rather than re-lexing strings.
package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wayuto/gosc/internal/ast"
)

func parseOne(t *testing.T, src string) *ast.Expr {
	t.Helper()
	p, err := New(src)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	root, err := p.Parse()
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	if !assert.Len(t, root.Stmts, 1) {
		t.FailNow()
	}
	return root.Stmts[0]
}

func TestConstantFoldingArithmetic(t *testing.T) {
	fn := parseOne(t, "fun f(): int { return 1 + 2 * 3 }")
	ret := fn.FuncBody.Stmts[0]
	assert.Equal(t, ast.Return, ret.Kind)
	assert.True(t, ret.ReturnVal.IsLiteral())
	assert.Equal(t, int64(7), ret.ReturnVal.IntVal)
}

func TestConstantFoldingDivisionByZero(t *testing.T) {
	_, err := func() (*ast.Expr, error) {
		p, err := New("fun f(): int { return 1 / 0 }")
		if err != nil {
			return nil, err
		}
		return p.Parse()
	}()
	assert.Error(t, err)
}

func TestCompoundAssignmentDesugarsToBinOp(t *testing.T) {
	fn := parseOne(t, "fun f(): void { let x: int = 1 x += 2 }")
	mut := fn.FuncBody.Stmts[1]
	assert.Equal(t, ast.VarMut, mut.Kind)
	assert.Equal(t, "x", mut.Ident)
	assert.Equal(t, ast.BinOp, mut.RHS.Kind)
	assert.Equal(t, ast.OpAdd, mut.RHS.Op)
	assert.Equal(t, ast.VarRef, mut.RHS.LHS.Kind)
	assert.Equal(t, "x", mut.RHS.LHS.Ident)
}

func TestIfTrueCollapsesToThenBranch(t *testing.T) {
	fn := parseOne(t, "fun f(): void { if true { let x: int = 1 } else { let y: int = 2 } }")
	body := fn.FuncBody.Stmts[0]
	assert.Equal(t, ast.Block, body.Kind)
	assert.Len(t, body.Stmts, 1)
	assert.Equal(t, "x", body.Stmts[0].Ident)
}

func TestWhileFalseCollapsesToEmptyBlock(t *testing.T) {
	fn := parseOne(t, "fun f(): void { while false { let x: int = 1 } }")
	body := fn.FuncBody.Stmts[0]
	assert.Equal(t, ast.Block, body.Kind)
	assert.Empty(t, body.Stmts)
}

func TestWhileTrueCollapsesToLabeledGoto(t *testing.T) {
	fn := parseOne(t, "fun f(): void { while true { let x: int = 1 } }")
	body := fn.FuncBody.Stmts[0]
	assert.Equal(t, ast.Block, body.Kind)
	if !assert.True(t, len(body.Stmts) >= 3) {
		t.FailNow()
	}
	assert.Equal(t, ast.Label, body.Stmts[0].Kind)
	last := body.Stmts[len(body.Stmts)-1]
	assert.Equal(t, ast.Goto, last.Kind)
	assert.Equal(t, body.Stmts[0].Ident, last.Ident)
}

func TestUnaryNegRecursesIntoFullExpr(t *testing.T) {
	// "-1 + 2" parses as -(1 + 2), matching original_source's parser.rs
	// quirk of unary operators calling all the way back into expr().
	fn := parseOne(t, "fun f(): int { return -1 + 2 }")
	ret := fn.FuncBody.Stmts[0]
	assert.True(t, ret.ReturnVal.IsLiteral())
	assert.Equal(t, int64(-3), ret.ReturnVal.IntVal)
}

func TestForwardFunctionCallResolves(t *testing.T) {
	p, err := New("fun a(): int { return b() } fun b(): int { return 1 }")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	root, err := p.Parse()
	assert.NoError(t, err)
	assert.Len(t, root.Stmts, 2)
}

func TestUnknownFunctionCallIsAnError(t *testing.T) {
	p, err := New("fun a(): int { return b() }")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	_, err = p.Parse()
	assert.Error(t, err)
}

func TestArrayLiteralAndIndexing(t *testing.T) {
	fn := parseOne(t, "fun f(): int { let a: arr<3> = [1, 2, 3] return a[1] }")
	decl := fn.FuncBody.Stmts[0]
	assert.Equal(t, ast.VarDecl, decl.Kind)
	assert.Equal(t, ast.Array, decl.DeclType.Kind)
	assert.Equal(t, 3, *decl.DeclType.ArrayLen)
	assert.Len(t, decl.Init.Elems, 3)

	ret := fn.FuncBody.Stmts[1]
	assert.Equal(t, ast.Return, ret.Kind)
	assert.Equal(t, ast.ArrayAccess, ret.ReturnVal.Kind)
	assert.Equal(t, "a", ret.ReturnVal.ArrBase.Ident)
}
