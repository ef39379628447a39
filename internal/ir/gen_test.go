// Exercises Generate end to end through the parser, the way a compiler's
// middle-end tests usually run "parse this snippet, then check the IR it
// produces" rather than constructing ast.Expr trees by hand.
package ir

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/wayuto/gosc/internal/ast"
	"github.com/wayuto/gosc/internal/parser"
)

func genFrom(t *testing.T, src string) *Program {
	t.Helper()
	p, err := parser.New(src)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	root, err := p.Parse()
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	prog, err := Generate(root)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	return prog
}

func findFunc(prog *Program, name string) *Function {
	for _, fn := range prog.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func TestGenerateSimpleReturn(t *testing.T) {
	prog := genFrom(t, "fun f(): int { return 41 + 1 }")
	fn := findFunc(prog, "f")
	if !assert.NotNil(t, fn) {
		t.FailNow()
	}
	last := fn.Instrs[len(fn.Instrs)-1]
	assert.Equal(t, Return, last.Op)
	// 41 + 1 folds to a literal at parse time, so IR generation only needs
	// to move the constant into the return value, never emit an Add.
	for _, in := range fn.Instrs {
		assert.NotEqual(t, Add, in.Op)
	}
}

func TestGenerateBinOpOverVariables(t *testing.T) {
	prog := genFrom(t, "fun f(a: int, b: int): int { return a + b }")
	fn := findFunc(prog, "f")
	if !assert.NotNil(t, fn) {
		t.FailNow()
	}
	var sawAdd bool
	for _, in := range fn.Instrs {
		if in.Op == Add {
			sawAdd = true
		}
	}
	assert.True(t, sawAdd)
}

func TestGenerateDuplicateFunctionIsNameError(t *testing.T) {
	p, err := parser.New("fun f(): void {} fun f(): void {}")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	root, err := p.Parse()
	assert.NoError(t, err)
	_, err = Generate(root)
	assert.Error(t, err)
}

func TestGenerateUndefinedVariableIsNameError(t *testing.T) {
	prog := genFrom(t, "fun f(): int { return 1 }")
	assert.NotNil(t, prog) // sanity: the happy path still works alongside the next check.

	p, err := parser.New("fun f(): int { return x }")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	root, err := p.Parse()
	assert.NoError(t, err)
	_, err = Generate(root)
	assert.Error(t, err)
}

func TestGenerateExternRegistersWithNoBody(t *testing.T) {
	prog := genFrom(t, "extern puts(str): int fun f(): void { }")
	fn := findFunc(prog, "puts")
	if !assert.NotNil(t, fn) {
		t.FailNow()
	}
	assert.True(t, fn.IsExternal)
	assert.Empty(t, fn.Instrs)
}

func TestGenerateArrayFillRewrite(t *testing.T) {
	prog := genFrom(t, "fun f(): int { let a: arr<3> = [7] return a[2] }")
	fn := findFunc(prog, "f")
	if !assert.NotNil(t, fn) {
		t.FailNow()
	}
	var sawMaterialize bool
	for _, in := range fn.Instrs {
		if in.Op == ArrayMaterialize {
			sawMaterialize = true
			c := prog.Constants[in.Src1.ConstIdx]
			assert.Len(t, c.Elems, 3)
			for _, el := range c.Elems {
				assert.Equal(t, int64(7), el.IntVal)
			}
		}
	}
	assert.True(t, sawMaterialize)
}

func TestGenerateArrayFillRewriteRejectsNonLiteralSingleElement(t *testing.T) {
	// A length-1 initializer that is a call, not a literal, must not be
	// silently repeated N times (that would re-run the call N times) — it
	// falls into the plain length-mismatch TypeError instead.
	p, err := parser.New("fun g(): int { return 1 } fun f(): int { let a: arr<3> = [g()] return a[0] }")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	root, err := p.Parse()
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	_, err = Generate(root)
	assert.Error(t, err)
}

func TestGenerateArrayLiteralFloatAndStringElements(t *testing.T) {
	prog := genFrom(t, `fun f(): int { let a: arr<2> = [1.5, 2.5] let b: arr<1> = ["hi"] return 0 }`)
	fn := findFunc(prog, "f")
	if !assert.NotNil(t, fn) {
		t.FailNow()
	}
	var floatSeen, strSeen bool
	for _, in := range fn.Instrs {
		if in.Op != ArrayMaterialize {
			continue
		}
		c := prog.Constants[in.Src1.ConstIdx]
		for _, el := range c.Elems {
			if el.Kind == CFloat {
				floatSeen = true
			}
			if el.Kind == CStr {
				strSeen = true
			}
		}
	}
	assert.True(t, floatSeen)
	assert.True(t, strSeen)
}

func TestGenerateArrayWithLiveElementAllocatesAndSets(t *testing.T) {
	prog := genFrom(t, "fun f(a: int): int { let b: arr<2> = [a, a] return b[0] }")
	fn := findFunc(prog, "f")
	if !assert.NotNil(t, fn) {
		t.FailNow()
	}
	var sawAlloc, sawSet int
	for _, in := range fn.Instrs {
		if in.Op == ArrayAlloc {
			sawAlloc++
		}
		if in.Op == ArrayElemSet {
			sawSet++
		}
	}
	assert.Equal(t, 1, sawAlloc)
	assert.Equal(t, 2, sawSet)
}

func TestWhileLoweringChecksOnceThenLoops(t *testing.T) {
	// g() is a call, not a literal, so the parser can't fold this while's
	// condition away — the lowering under test only fires on a real
	// condition expression.
	prog := genFrom(t, "fun g(): bool { return true } fun f(): void { while g() { } }")
	fn := findFunc(prog, "f")
	if !assert.NotNil(t, fn) {
		t.FailNow()
	}

	var ops []Op
	for _, in := range fn.Instrs {
		ops = append(ops, in.Op)
	}

	jifIdx, labelIdx, jumpIdx := -1, -1, -1
	for i, op := range ops {
		switch op {
		case JumpIfFalse:
			if jifIdx == -1 {
				jifIdx = i
			}
		case Label:
			if labelIdx == -1 && jifIdx != -1 {
				labelIdx = i
			}
		case Jump:
			jumpIdx = i
		}
	}

	// Condition is checked exactly once, before the loop's first label —
	// the literal §4.4 order, not a standard re-checked while loop.
	if !assert.True(t, jifIdx >= 0 && labelIdx > jifIdx && jumpIdx > labelIdx) {
		t.Logf("ops: %v", ops)
	}
}

func TestIntern(t *testing.T) {
	prog := NewProgram()
	a := prog.Intern(Const{Kind: CInt, IntVal: 7, Typ: ast.Type{Kind: ast.Int}})
	b := prog.Intern(Const{Kind: CInt, IntVal: 7, Typ: ast.Type{Kind: ast.Int}})
	c := prog.Intern(Const{Kind: CInt, IntVal: 8, Typ: ast.Type{Kind: ast.Int}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, prog.Constants, 2)
}

func TestGenerateArrayFillRewriteStructural(t *testing.T) {
	// Same assertion as TestGenerateArrayFillRewrite but via a structural
	// diff over the interned Const, the way round-trip IR/AST comparisons
	// are done elsewhere in this corpus (go-cmp) rather than field-by-field.
	prog := genFrom(t, "fun f(): int { let a: arr<3> = [7] return a[2] }")
	fn := findFunc(prog, "f")
	if !assert.NotNil(t, fn) {
		t.FailNow()
	}
	three := 3
	want := Const{
		Kind: CArray,
		Elems: []Const{
			{Kind: CInt, IntVal: 7, Typ: intType()},
			{Kind: CInt, IntVal: 7, Typ: intType()},
			{Kind: CInt, IntVal: 7, Typ: intType()},
		},
		Typ: ast.Type{Kind: ast.Array, ArrayLen: &three},
	}
	var got Const
	for _, in := range fn.Instrs {
		if in.Op == ArrayMaterialize {
			got = prog.Constants[in.Src1.ConstIdx]
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("interned array constant mismatch (-want +got):\n%s", diff)
	}
}

func TestInternFloatNaNBitExact(t *testing.T) {
	prog := NewProgram()
	nan := FloatBits(math.Float64frombits(0x7ff8000000000001))
	a := prog.Intern(Const{Kind: CFloat, FloatBits: nan, Typ: ast.Type{Kind: ast.Float}})
	b := prog.Intern(Const{Kind: CFloat, FloatBits: nan, Typ: ast.Type{Kind: ast.Float}})
	assert.Equal(t, a, b)
}
