package main

import (
	"fmt"

	"github.com/wayuto/gosc/internal/ir"
)

// dumpProgram prints one line per IR instruction, grouped by function —
// a plain-text debugging aid, not a reparseable format.
func dumpProgram(prog *ir.Program) {
	for _, fn := range prog.Functions {
		if fn.IsExternal {
			fmt.Printf("extern %s\n", fn.Name)
			continue
		}
		fmt.Printf("func %s:\n", fn.Name)
		for _, in := range fn.Instrs {
			fmt.Printf("  %s", in.Op)
			if in.Dst != nil {
				fmt.Printf(" %s", in.Dst)
			}
			if in.Src1 != nil {
				fmt.Printf(" %s", in.Src1)
			}
			if in.Src2 != nil {
				fmt.Printf(" %s", in.Src2)
			}
			if in.Label != "" {
				fmt.Printf(" %s", in.Label)
			}
			fmt.Println()
		}
	}
}
