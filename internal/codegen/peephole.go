package codegen

import "strings"

// peephole collapses adjacent "push reg" / "pop reg" pairs (same register,
// nothing emitted between them) to a fixed point. Grounded on spec.md §4.5's
// description of the backend's peephole pass; this stack-slot-based lowering
// rarely emits push/pop back to back, but the pass collapses any such pair
// it finds in the generated text.
func peephole(asm string) string {
	lines := strings.Split(asm, "\n")
	for {
		next, changed := collapsePushPop(lines)
		lines = next
		if !changed {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func collapsePushPop(lines []string) ([]string, bool) {
	out := make([]string, 0, len(lines))
	changed := false
	for i := 0; i < len(lines); i++ {
		if i+1 < len(lines) {
			a, okA := pushOperand(lines[i])
			b, okB := popOperand(lines[i+1])
			if okA && okB && a == b {
				changed = true
				i++ // skip both lines.
				continue
			}
		}
		out = append(out, lines[i])
	}
	return out, changed
}

func pushOperand(line string) (string, bool) {
	return instrOperand(line, "push")
}

func popOperand(line string) (string, bool) {
	return instrOperand(line, "pop")
}

func instrOperand(line, mnemonic string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	fields := strings.Fields(trimmed)
	if len(fields) != 2 || fields[0] != mnemonic {
		return "", false
	}
	return fields[1], true
}
