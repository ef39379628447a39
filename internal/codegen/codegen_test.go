package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wayuto/gosc/internal/ast"
	"github.com/wayuto/gosc/internal/ir"
	"github.com/wayuto/gosc/internal/parser"
)

func genAsm(t *testing.T, src string) string {
	t.Helper()
	p, err := parser.New(src)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	root, err := p.Parse()
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	prog, err := ir.Generate(root)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	asm, err := Generate(prog)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	return asm
}

func TestBuildFrameAssignsParamsFirst(t *testing.T) {
	n := 3
	fn := &ir.Function{
		Params: []ast.Param{{Name: "a", Typ: ast.Type{Kind: ast.Int}}, {Name: "b", Typ: ast.Type{Kind: ast.Int}}},
	}
	f := buildFrame(fn)
	aOff, ok := f.slotOf(&ir.Operand{Kind: ir.OVar, Name: "a"})
	if !assert.True(t, ok) {
		t.FailNow()
	}
	bOff, ok := f.slotOf(&ir.Operand{Kind: ir.OVar, Name: "b"})
	if !assert.True(t, ok) {
		t.FailNow()
	}
	// First-appearance order: a is assigned before b, so a's slot sits
	// closer to rbp (less negative) than b's.
	assert.True(t, aOff > bOff)
	_ = n
}

func TestBuildFrameReservesArrayBlock(t *testing.T) {
	n := 4
	arrTyp := ast.Type{Kind: ast.Array, ArrayLen: &n}
	fn := &ir.Function{
		Instrs: []ir.Instruction{
			{Op: ir.ArrayAlloc, Dst: &ir.Operand{Kind: ir.OVar, Name: "arr", Typ: arrTyp}},
		},
	}
	f := buildFrame(fn)
	_, hasSlot := f.slotOf(&ir.Operand{Kind: ir.OVar, Name: "arr"})
	_, hasBlock := f.blockOf(&ir.Operand{Kind: ir.OVar, Name: "arr"})
	assert.True(t, hasSlot)
	assert.True(t, hasBlock)
}

func TestBuildFrameSizeIsAligned(t *testing.T) {
	fn := &ir.Function{
		Instrs: []ir.Instruction{
			{Op: ir.Move, Dst: &ir.Operand{Kind: ir.OVar, Name: "x", Typ: ast.Type{Kind: ast.Int}}},
		},
	}
	f := buildFrame(fn)
	assert.Equal(t, 0, f.size%stackAlign)
}

func TestRegCacheBindAndInvalidate(t *testing.T) {
	c := newRegCache()
	c.bind("rax", "v:x")
	assert.Equal(t, "v:x", c.held["rax"])

	// Binding the same key to a different register evicts the old one —
	// a value only ever lives in one cached register at a time.
	c.bind("rcx", "v:x")
	_, stillInRax := c.held["rax"]
	assert.False(t, stillInRax)
	assert.Equal(t, "v:x", c.held["rcx"])

	c.invalidate("rcx")
	_, ok := c.held["rcx"]
	assert.False(t, ok)
}

func TestRegCacheInvalidateAll(t *testing.T) {
	c := newRegCache()
	c.bind("rax", "v:x")
	c.bind("rcx", "v:y")
	c.invalidateAll()
	assert.Empty(t, c.held)
}

func TestPeepholeCollapsesPushPopPair(t *testing.T) {
	in := "\tpush\trax\n\tpop\trax\n\tret\n"
	out := peephole(in)
	assert.NotContains(t, out, "push")
	assert.NotContains(t, out, "pop")
	assert.Contains(t, out, "ret")
}

func TestPeepholeLeavesMismatchedPushPop(t *testing.T) {
	in := "\tpush\trax\n\tpop\trcx\n"
	out := peephole(in)
	assert.Contains(t, out, "push")
	assert.Contains(t, out, "pop")
}

func TestGenerateEmitsPrologueAndEpilogue(t *testing.T) {
	asm := genAsm(t, "fun f(): int { return 1 }")
	assert.Contains(t, asm, "f:")
	assert.Contains(t, asm, "push\trbp")
	assert.Contains(t, asm, "pop\trbp")
	assert.Contains(t, asm, "ret")
}

func TestGenerateIntDivisionEmitsCqoIdiv(t *testing.T) {
	asm := genAsm(t, "fun f(a: int, b: int): int { return a / b }")
	assert.Contains(t, asm, "cqo")
	assert.Contains(t, asm, "idiv")
}

func TestGenerateFloatReturnCastsIntValue(t *testing.T) {
	asm := genAsm(t, "fun f(): flt { return 1 }")
	assert.Contains(t, asm, "cvtsi2sd")
}

func TestGenerateArrayLiteralWithFloatElementsMaterializes(t *testing.T) {
	asm := genAsm(t, `fun f(): int { let a: arr<2> = [1.5, 2.5] return 0 }`)
	assert.Contains(t, asm, "movsd")
	assert.Contains(t, asm, "dq 0x3ff8000000000000") // 1.5
	assert.Contains(t, asm, "dq 0x4004000000000000") // 2.5
}

func TestGenerateArrayLiteralWithStringElementsMaterializes(t *testing.T) {
	asm := genAsm(t, `fun f(): int { let a: arr<1> = ["hi"] return 0 }`)
	assert.Contains(t, asm, "lea\trcx")
	var sawBytes bool
	for _, line := range strings.Split(asm, "\n") {
		if strings.Contains(line, "db") && strings.Contains(line, "hi") {
			sawBytes = true
		}
	}
	assert.True(t, sawBytes)
}

func TestGenerateDeclaresExternSymbol(t *testing.T) {
	asm := genAsm(t, "extern puts(str): int fun f(): void { }")
	var sawExtern bool
	for _, line := range strings.Split(asm, "\n") {
		if strings.Contains(line, "extern") && strings.Contains(line, "puts") {
			sawExtern = true
		}
	}
	assert.True(t, sawExtern)
}
