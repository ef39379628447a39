package codegen

import (
	"github.com/wayuto/gosc/internal/ast"
	"github.com/wayuto/gosc/internal/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// frame is one function's stack layout, computed in a first pass over its
// instructions before any code is emitted (mirroring the teacher's
// genFunction, which computes sa := wordSize*(Nparams+Nlocals+2) up front).
// Every var/temp gets an 8-byte slot holding either its scalar value or, for
// arrays, a pointer to a separately allocated length-prefixed block.
type frame struct {
	slots       map[string]int // operand key -> rbp-relative offset of its 8-byte slot.
	arrayBlocks map[string]int // operand key -> rbp-relative offset of the block's first byte (length word).
	size        int            // total frame size, 16-byte aligned.
}

const wordSize = 8
const stackAlign = 16

// ---------------------
// ----- functions -----
// ---------------------

// operandKey returns the stable identity buildFrame/codegen use to look a
// value up in the frame: variables are keyed by name, temporaries by their
// synthetic id, so a var and a temp can never collide.
func operandKey(o *ir.Operand) string {
	switch o.Kind {
	case ir.OVar:
		return "v:" + o.Name
	case ir.OTemp:
		return "t:" + itoa2(o.ID)
	default:
		return ""
	}
}

func itoa2(n int) string {
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

// buildFrame walks fn once, assigning every distinct var/temp operand a
// slot (and, for arrays, a backing block) in first-appearance order:
// parameters first (so their ABI-copy code can find a home), then
// everything instructions reference.
func buildFrame(fn *ir.Function) *frame {
	f := &frame{slots: map[string]int{}, arrayBlocks: map[string]int{}}
	offset := 0

	assign := func(o *ir.Operand) {
		if o == nil || o.Kind == ir.OConstIdx || o.Kind == ir.OFunc || o.Kind == ir.OLabel {
			return
		}
		key := operandKey(o)
		if key == "" {
			return
		}
		if _, exists := f.slots[key]; exists {
			return
		}
		offset += wordSize
		f.slots[key] = -offset
		if o.Typ.Kind == ast.Array && o.Typ.ArrayLen != nil {
			blockSize := wordSize * (1 + *o.Typ.ArrayLen)
			offset += blockSize
			f.arrayBlocks[key] = -offset
		}
	}

	for i, p := range fn.Params {
		assign(&ir.Operand{Kind: ir.OVar, Name: p.Name, Typ: p.Typ, ID: i})
	}
	for _, instr := range fn.Instrs {
		assign(instr.Dst)
		assign(instr.Src1)
		assign(instr.Src2)
	}

	sa := offset + 2*wordSize // saved rbp + return address accounting, mirrors the teacher's "+2" in sa := wordSize*(Nparams+Nlocals+2)
	if spill := sa % stackAlign; spill != 0 {
		sa += stackAlign - spill
	}
	f.size = sa
	return f
}

// slotOf returns the rbp-relative offset of o's 8-byte value slot.
func (f *frame) slotOf(o *ir.Operand) (int, bool) {
	off, ok := f.slots[operandKey(o)]
	return off, ok
}

// blockOf returns the rbp-relative offset of o's array block, if o is an
// array-typed operand with a materialized backing block.
func (f *frame) blockOf(o *ir.Operand) (int, bool) {
	off, ok := f.arrayBlocks[operandKey(o)]
	return off, ok
}
