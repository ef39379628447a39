// Package codegen lowers an ir.Program into NASM-syntax x86-64 assembly
// text, following the System-V AMD64 calling convention. It mirrors the
// teacher's backend/arm/function.go shape (compute frame size up front,
// write a prologue, walk the body, write an epilogue) adapted from
// aarch64's register file to x86-64's, and generalized from a single
// physical target to the one this design needs.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wayuto/gosc/internal/ast"
	"github.com/wayuto/gosc/internal/gerr"
	"github.com/wayuto/gosc/internal/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Generator holds the state threaded through one Program's lowering: the
// text being built, the current function's frame layout, and the
// register-operand cache.
type Generator struct {
	prog  *ir.Program
	text  *Writer
	data  *Writer
	frame *frame
	cache *regCache

	usesRange bool
	usesFNeg  bool

	// arrayElemData holds rodata lines for array-literal elements that need
	// their own label (float bit patterns, string bytes) but aren't
	// themselves top-level pool entries — genArrayMaterialize runs before
	// emitConstants writes the "section .rodata" header, so these are
	// buffered here and flushed by emitConstants instead of written in place.
	arrayElemData []string
}

// ---------------------
// ----- functions -----
// ---------------------

// Generate lowers prog into a complete NASM source file.
func Generate(prog *ir.Program) (string, error) {
	g := &Generator{prog: prog, text: &Writer{}, data: &Writer{}}

	g.text.WriteString("section .text\n")
	g.text.WriteString("default rel\n")
	for _, fn := range prog.Functions {
		if fn.IsExternal {
			g.text.Write("extern %s\n", fn.Name)
		}
	}

	for _, fn := range prog.Functions {
		if fn.IsExternal {
			continue
		}
		if err := g.genFunction(fn); err != nil {
			return "", err
		}
	}
	if g.usesRange {
		g.text.WriteString("extern __gosc_range\n")
	}

	g.emitConstants()

	var out strings.Builder
	out.WriteString("; generated by gosc, do not edit\n")
	out.WriteString(g.data.String())
	out.WriteString("\n")
	out.WriteString(g.text.String())
	return peephole(out.String()), nil
}

func offStr(off int) string {
	if off >= 0 {
		return fmt.Sprintf("+%d", off)
	}
	return fmt.Sprintf("%d", off)
}

func constLabel(idx int) string { return fmt.Sprintf("const%d", idx) }

// ----------------------------
// -----     constants    -----
// ----------------------------

func (g *Generator) emitConstants() {
	g.data.WriteString("section .rodata\n")
	if g.usesFNeg {
		g.data.WriteString("neg_one: dq -1.0\n")
	}
	for idx, c := range g.prog.Constants {
		switch c.Kind {
		case ir.CFloat:
			g.data.Write("%s: dq 0x%016x\n", constLabel(idx), c.FloatBits)
		case ir.CStr:
			g.data.Write("%s: db %s, 0\n", constLabel(idx), nasmString(c.StrVal))
		}
		// CInt/CBool are emitted as immediates at the use site; CArray is
		// unrolled into stack stores by ArrayMaterialize, never given its own
		// label.
	}
	for _, line := range g.arrayElemData {
		g.data.WriteString(line)
	}
}

func arrayElemLabel(constIdx, elemIdx int) string {
	return fmt.Sprintf("arrconst%d_%d", constIdx, elemIdx)
}

// nasmString renders s as a NASM backquoted string; NASM's backquote form
// understands every escape strconv.Quote produces.
func nasmString(s string) string {
	q := strconv.Quote(s)
	return "`" + strings.ReplaceAll(q[1:len(q)-1], "`", "\\`") + "`"
}

// ----------------------------
// -----     functions    -----
// ----------------------------

func (g *Generator) genFunction(fn *ir.Function) error {
	g.frame = buildFrame(fn)
	g.cache = newRegCache()

	if fn.Public {
		g.text.Write("global %s\n", fn.Name)
	}
	g.text.WriteString("\n")
	g.text.Label(fn.Name)
	g.text.Ins1("push", "rbp")
	g.text.Ins2("mov", "rbp", "rsp")
	if g.frame.size > 0 {
		g.text.Ins2("sub", "rsp", fmt.Sprintf("%d", g.frame.size))
	}

	ii, fi := 0, 0
	for _, p := range fn.Params {
		off, ok := g.frame.slotOf(&ir.Operand{Kind: ir.OVar, Name: p.Name})
		if !ok {
			return gerr.New(gerr.CodeGen, gerr.ReasonMissingOperand, gerr.Position{}, "parameter %q has no frame slot", p.Name)
		}
		if p.Typ.Kind == ast.Float {
			g.text.Write("\tmovsd\t[rbp%s], %s\n", offStr(off), fltArgRegs[fi])
			fi++
		} else {
			g.text.Write("\tmov\t[rbp%s], %s\n", offStr(off), intArgRegs[ii])
			ii++
		}
	}

	for _, instr := range fn.Instrs {
		if err := g.genInstr(fn, instr); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) epilogue() {
	g.text.Ins2("mov", "rsp", "rbp")
	g.text.Ins1("pop", "rbp")
	g.text.Ins0("ret")
}

// ----------------------------
// -----   load / store   -----
// ----------------------------

// load puts o's value into reg, consulting the cache to skip a redundant
// reload when reg already holds o's value.
func (g *Generator) load(o *ir.Operand, reg string) error {
	if o == nil {
		return gerr.New(gerr.CodeGen, gerr.ReasonMissingOperand, gerr.Position{}, "missing operand")
	}
	if o.Kind == ir.OConstIdx {
		c := g.prog.Constants[o.ConstIdx]
		switch c.Kind {
		case ir.CInt:
			g.text.Write("\tmov\t%s, %d\n", reg, c.IntVal)
		case ir.CBool:
			v := 0
			if c.BoolVal {
				v = 1
			}
			g.text.Write("\tmov\t%s, %d\n", reg, v)
		case ir.CFloat:
			g.text.Write("\tmovsd\t%s, [%s]\n", reg, constLabel(o.ConstIdx))
		case ir.CStr:
			g.text.Write("\tlea\t%s, [%s]\n", reg, constLabel(o.ConstIdx))
		default:
			return gerr.New(gerr.CodeGen, gerr.ReasonInvalidOperand, gerr.Position{}, "constant of kind %d has no direct load form", c.Kind)
		}
		g.cache.invalidate(reg)
		return nil
	}

	key := operandKey(o)
	if key == "" {
		return gerr.New(gerr.CodeGen, gerr.ReasonInvalidOperand, gerr.Position{}, "operand has no frame identity")
	}
	if g.cache.held[reg] == key {
		return nil
	}
	off, ok := g.frame.slotOf(o)
	if !ok {
		return gerr.New(gerr.CodeGen, gerr.ReasonMissingOperand, gerr.Position{}, "%q has no frame slot", key)
	}
	if o.Typ.Kind == ast.Float {
		g.text.Write("\tmovsd\t%s, [rbp%s]\n", reg, offStr(off))
	} else {
		g.text.Write("\tmov\t%s, [rbp%s]\n", reg, offStr(off))
	}
	g.cache.bind(reg, key)
	return nil
}

// store writes reg into o's frame slot.
func (g *Generator) store(o *ir.Operand, reg string) error {
	key := operandKey(o)
	if key == "" {
		return gerr.New(gerr.CodeGen, gerr.ReasonInvalidOperand, gerr.Position{}, "operand has no frame identity")
	}
	off, ok := g.frame.slotOf(o)
	if !ok {
		return gerr.New(gerr.CodeGen, gerr.ReasonMissingOperand, gerr.Position{}, "%q has no frame slot", key)
	}
	if o.Typ.Kind == ast.Float {
		g.text.Write("\tmovsd\t[rbp%s], %s\n", offStr(off), reg)
	} else {
		g.text.Write("\tmov\t[rbp%s], %s\n", offStr(off), reg)
	}
	g.cache.bind(reg, key)
	return nil
}

// ----------------------------
// -----  instr dispatch  -----
// ----------------------------

func (g *Generator) genInstr(fn *ir.Function, in ir.Instruction) error {
	switch in.Op {
	case ir.Move, ir.FMove, ir.Load, ir.FLoad, ir.Store, ir.FStore:
		r := workReg(in.Src1)
		if err := g.load(in.Src1, r); err != nil {
			return err
		}
		return g.store(in.Dst, r)

	case ir.Add, ir.Sub, ir.Mul, ir.LAnd, ir.LOr, ir.Xor, ir.And, ir.Or:
		return g.genIntBinOp(in)
	case ir.Div:
		return g.genDiv(in)
	case ir.FAdd, ir.FSub, ir.FMul, ir.FDiv:
		return g.genFltBinOp(in)

	case ir.Eq, ir.Ne, ir.Gt, ir.Ge, ir.Lt, ir.Le:
		return g.genIntCompare(in)
	case ir.FEq, ir.FNe, ir.FGt, ir.FGe, ir.FLt, ir.FLe:
		return g.genFltCompare(in)

	case ir.Not:
		if err := g.load(in.Src1, "rax"); err != nil {
			return err
		}
		g.text.Write("\txor\trax, 1\n")
		return g.store(in.Dst, "rax")
	case ir.Neg:
		if err := g.load(in.Src1, "rax"); err != nil {
			return err
		}
		g.text.Write("\tneg\trax\n")
		return g.store(in.Dst, "rax")
	case ir.FNeg:
		g.usesFNeg = true
		if err := g.load(in.Src1, "xmm0"); err != nil {
			return err
		}
		g.text.Write("\tmulsd\txmm0, [neg_one]\n")
		return g.store(in.Dst, "xmm0")
	case ir.Inc, ir.Dec:
		if err := g.load(in.Src1, "rax"); err != nil {
			return err
		}
		op := "inc"
		if in.Op == ir.Dec {
			op = "dec"
		}
		g.text.Write("\t%s\trax\n", op)
		return g.store(in.Dst, "rax")

	case ir.SizeOf:
		if err := g.load(in.Src1, "rax"); err != nil {
			return err
		}
		g.text.Write("\tmov\trax, [rax]\n")
		return g.store(in.Dst, "rax")

	case ir.Arg:
		return g.load(in.Src1, intArgRegs[in.ArgIndex])
	case ir.FArg:
		return g.load(in.Src1, fltArgRegs[in.ArgIndex])
	case ir.Call:
		g.text.Write("\tcall\t%s\n", in.Src1.Name)
		g.cache.invalidateAll()
		if in.Dst != nil {
			if in.Dst.Typ.Kind == ast.Float {
				return g.store(in.Dst, "xmm0")
			}
			return g.store(in.Dst, "rax")
		}
		return nil

	case ir.Return:
		return g.genReturn(fn, in)

	case ir.Jump:
		g.text.Write("\tjmp\t%s\n", in.Label)
		return nil
	case ir.JumpIfFalse:
		reg := workReg(in.Src1)
		if err := g.load(in.Src1, reg); err != nil {
			return err
		}
		g.text.Write("\tcmp\t%s, 0\n", reg)
		g.text.Write("\tje\t%s\n", in.Label)
		return nil
	case ir.Label:
		g.text.Label(in.Label)
		g.cache.invalidateAll()
		return nil

	case ir.ArrayAccess:
		return g.genArrayAccess(in)
	case ir.ArrayAssign:
		return g.genArrayAssign(in)
	case ir.ArrayMaterialize:
		return g.genArrayMaterialize(in)
	case ir.ArrayAlloc:
		return g.genArrayAlloc(in)
	case ir.ArrayElemSet:
		return g.genArrayElemSet(in)
	case ir.Range:
		return g.genRange(in)

	default:
		return gerr.New(gerr.CodeGen, gerr.ReasonUnsupportedOp, gerr.Position{Row: in.Row, Col: in.Col}, "unsupported IR opcode %s", in.Op)
	}
}

// workReg picks the scratch register class (int vs SSE) for o.
func workReg(o *ir.Operand) string {
	if o != nil && o.Typ.Kind == ast.Float {
		return "xmm0"
	}
	return "rax"
}

func (g *Generator) genIntBinOp(in ir.Instruction) error {
	if err := g.load(in.Src1, "rax"); err != nil {
		return err
	}
	if err := g.load(in.Src2, "rcx"); err != nil {
		return err
	}
	mnemonic := map[ir.Op]string{ir.Add: "add", ir.Sub: "sub", ir.Mul: "imul", ir.LAnd: "and", ir.LOr: "or", ir.Xor: "xor", ir.And: "and", ir.Or: "or"}[in.Op]
	g.text.Write("\t%s\trax, rcx\n", mnemonic)
	return g.store(in.Dst, "rax")
}

func (g *Generator) genDiv(in ir.Instruction) error {
	if err := g.load(in.Src1, "rax"); err != nil {
		return err
	}
	if err := g.load(in.Src2, "rcx"); err != nil {
		return err
	}
	g.text.Write("\tcqo\n")
	g.text.Write("\tidiv\trcx\n")
	g.cache.invalidate("rdx")
	return g.store(in.Dst, "rax")
}

func (g *Generator) genFltBinOp(in ir.Instruction) error {
	if err := g.load(in.Src1, "xmm0"); err != nil {
		return err
	}
	if err := g.load(in.Src2, "xmm1"); err != nil {
		return err
	}
	mnemonic := map[ir.Op]string{ir.FAdd: "addsd", ir.FSub: "subsd", ir.FMul: "mulsd", ir.FDiv: "divsd"}[in.Op]
	g.text.Write("\t%s\txmm0, xmm1\n", mnemonic)
	return g.store(in.Dst, "xmm0")
}

func (g *Generator) genIntCompare(in ir.Instruction) error {
	if err := g.load(in.Src1, "rax"); err != nil {
		return err
	}
	if err := g.load(in.Src2, "rcx"); err != nil {
		return err
	}
	setcc := map[ir.Op]string{ir.Eq: "sete", ir.Ne: "setne", ir.Gt: "setg", ir.Ge: "setge", ir.Lt: "setl", ir.Le: "setle"}[in.Op]
	g.text.Write("\tcmp\trax, rcx\n")
	g.text.Write("\t%s\tal\n", setcc)
	g.text.Write("\tmovzx\trax, al\n")
	return g.store(in.Dst, "rax")
}

func (g *Generator) genFltCompare(in ir.Instruction) error {
	if err := g.load(in.Src1, "xmm0"); err != nil {
		return err
	}
	if err := g.load(in.Src2, "xmm1"); err != nil {
		return err
	}
	setcc := map[ir.Op]string{ir.FEq: "sete", ir.FNe: "setne", ir.FGt: "seta", ir.FGe: "setae", ir.FLt: "setb", ir.FLe: "setbe"}[in.Op]
	g.text.Write("\tcomisd\txmm0, xmm1\n")
	g.text.Write("\t%s\tal\n", setcc)
	g.text.Write("\tmovzx\trax, al\n")
	return g.store(in.Dst, "rax")
}

func (g *Generator) genReturn(fn *ir.Function, in ir.Instruction) error {
	if fn.RetType.Kind == ast.Void {
		g.epilogue()
		return nil
	}
	wantFloat := fn.RetType.Kind == ast.Float
	gotFloat := in.Src1.Typ.Kind == ast.Float

	switch {
	case wantFloat && gotFloat:
		if err := g.load(in.Src1, "xmm0"); err != nil {
			return err
		}
	case wantFloat && !gotFloat:
		if err := g.load(in.Src1, "rax"); err != nil {
			return err
		}
		g.text.Write("\tcvtsi2sd\txmm0, rax\n")
	case !wantFloat && gotFloat:
		if err := g.load(in.Src1, "xmm0"); err != nil {
			return err
		}
		g.text.Write("\tcvttsd2si\trax, xmm0\n")
	default:
		if err := g.load(in.Src1, "rax"); err != nil {
			return err
		}
	}
	g.epilogue()
	return nil
}

// ----------------------------
// -----      arrays      -----
// ----------------------------

func (g *Generator) genArrayAccess(in ir.Instruction) error {
	if err := g.load(in.Src1, "rax"); err != nil {
		return err
	}
	if err := g.load(in.Src2, "rcx"); err != nil {
		return err
	}
	g.text.Write("\tlea\trdx, [rax+rcx*8+8]\n")
	g.text.Write("\tmov\trax, [rdx]\n")
	g.cache.invalidate("rdx")
	return g.store(in.Dst, "rax")
}

func (g *Generator) genArrayAssign(in ir.Instruction) error {
	// Dst carries the stored value; Src1=base, Src2=index (see ir.gen's
	// genArrayAssign doc comment for why Dst is reused this way).
	if err := g.load(in.Src1, "rax"); err != nil {
		return err
	}
	if err := g.load(in.Src2, "rcx"); err != nil {
		return err
	}
	if err := g.load(in.Dst, "r8"); err != nil {
		return err
	}
	g.text.Write("\tlea\trdx, [rax+rcx*8+8]\n")
	g.text.Write("\tmov\t[rdx], r8\n")
	g.cache.invalidate("rdx")
	return nil
}

func (g *Generator) genArrayMaterialize(in ir.Instruction) error {
	c := g.prog.Constants[in.Src1.ConstIdx]
	blockOff, ok := g.frame.blockOf(in.Dst)
	if !ok {
		return gerr.New(gerr.CodeGen, gerr.ReasonMissingOperand, gerr.Position{}, "array temp has no backing block")
	}
	g.text.Write("\tlea\trax, [rbp%s]\n", offStr(blockOff))
	g.text.Write("\tmov\tqword [rax], %d\n", len(c.Elems))
	for i, el := range c.Elems {
		switch el.Kind {
		case ir.CInt:
			g.text.Write("\tmov\tqword [rax+%d], %d\n", wordSize*(i+1), el.IntVal)
		case ir.CBool:
			v := 0
			if el.BoolVal {
				v = 1
			}
			g.text.Write("\tmov\tqword [rax+%d], %d\n", wordSize*(i+1), v)
		case ir.CFloat:
			label := arrayElemLabel(in.Src1.ConstIdx, i)
			g.arrayElemData = append(g.arrayElemData, fmt.Sprintf("%s: dq 0x%016x\n", label, el.FloatBits))
			g.text.Write("\tmovsd\txmm1, [%s]\n", label)
			g.text.Write("\tmovsd\t[rax+%d], xmm1\n", wordSize*(i+1))
			g.cache.invalidate("xmm1")
		case ir.CStr:
			label := arrayElemLabel(in.Src1.ConstIdx, i)
			g.arrayElemData = append(g.arrayElemData, fmt.Sprintf("%s: db %s, 0\n", label, nasmString(el.StrVal)))
			g.text.Write("\tlea\trcx, [%s]\n", label)
			g.text.Write("\tmov\t[rax+%d], rcx\n", wordSize*(i+1))
			g.cache.invalidate("rcx")
		default:
			return gerr.New(gerr.CodeGen, gerr.ReasonUnsupportedOp, gerr.Position{}, "array elements of kind %d are not supported", el.Kind)
		}
	}
	g.cache.invalidate("rax")
	return g.store(in.Dst, "rax")
}

func (g *Generator) genArrayAlloc(in ir.Instruction) error {
	n := 0
	if in.Dst.Typ.ArrayLen != nil {
		n = *in.Dst.Typ.ArrayLen
	}
	blockOff, ok := g.frame.blockOf(in.Dst)
	if !ok {
		return gerr.New(gerr.CodeGen, gerr.ReasonMissingOperand, gerr.Position{}, "array temp has no backing block")
	}
	g.text.Write("\tlea\trax, [rbp%s]\n", offStr(blockOff))
	g.text.Write("\tmov\tqword [rax], %d\n", n)
	for i := 0; i < n; i++ {
		g.text.Write("\tmov\tqword [rax+%d], 0\n", wordSize*(i+1))
	}
	g.cache.invalidate("rax")
	return g.store(in.Dst, "rax")
}

func (g *Generator) genArrayElemSet(in ir.Instruction) error {
	if err := g.load(in.Dst, "rax"); err != nil { // Dst: the array's own pointer slot.
		return err
	}
	idxConst := g.prog.Constants[in.Src1.ConstIdx]
	if err := g.load(in.Src2, "rcx"); err != nil {
		return err
	}
	g.text.Write("\tmov\t[rax+%d], rcx\n", wordSize*(1+int(idxConst.IntVal)))
	g.cache.invalidate("rax")
	return nil
}

func (g *Generator) genRange(in ir.Instruction) error {
	g.usesRange = true
	if err := g.load(in.Src1, "rdi"); err != nil {
		return err
	}
	if err := g.load(in.Src2, "rsi"); err != nil {
		return err
	}
	g.text.Write("\tcall\t__gosc_range\n")
	g.cache.invalidateAll()
	return g.store(in.Dst, "rax")
}
