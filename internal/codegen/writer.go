package codegen

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Writer buffers emitted NASM assembly text. It is the synchronous twin of
// the teacher's channel-backed util.Writer: this backend runs as a single
// pass over one Program, so there is no worker-thread fan-in to buffer for,
// and no Flush/Close handshake is needed.
type Writer struct {
	sb strings.Builder
}

// ---------------------
// ----- functions -----
// ---------------------

// Write appends a formatted line to the buffer, verbatim (no added tab).
func (w *Writer) Write(format string, args ...interface{}) {
	w.sb.WriteString(fmt.Sprintf(format, args...))
}

// WriteString appends s verbatim.
func (w *Writer) WriteString(s string) {
	w.sb.WriteString(s)
}

// Ins0 writes a zero-operand instruction, e.g. "ret".
func (w *Writer) Ins0(op string) {
	fmt.Fprintf(&w.sb, "\t%s\n", op)
}

// Ins1 writes a one-operand instruction.
func (w *Writer) Ins1(op, rs1 string) {
	fmt.Fprintf(&w.sb, "\t%s\t%s\n", op, rs1)
}

// Ins2 writes a two-operand instruction (destination first, AT&T-reversed
// NASM order: "op dst, src").
func (w *Writer) Ins2(op, rd, rs1 string) {
	fmt.Fprintf(&w.sb, "\t%s\t%s, %s\n", op, rd, rs1)
}

// Label writes a label definition.
func (w *Writer) Label(name string) {
	fmt.Fprintf(&w.sb, "%s:\n", name)
}

// Comment writes a NASM line comment.
func (w *Writer) Comment(format string, args ...interface{}) {
	fmt.Fprintf(&w.sb, "\t; %s\n", fmt.Sprintf(format, args...))
}

// String returns everything written so far.
func (w *Writer) String() string {
	return w.sb.String()
}
