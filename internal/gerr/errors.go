// Package gerr defines the tagged diagnostic kinds emitted by every stage of
// the compiler pipeline. Every diagnostic carries a source position when one
// can be derived, and renders as a single human-readable line.
package gerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Stage identifies which pipeline stage raised a Diagnostic.
type Stage int

const (
	Preprocessor Stage = iota
	Lexer
	Parser
	IRGen
	CodeGen
)

// String returns the print friendly name of the Stage.
func (s Stage) String() string {
	switch s {
	case Preprocessor:
		return "preprocessor error"
	case Lexer:
		return "lexer error"
	case Parser:
		return "parser error"
	case IRGen:
		return "ir error"
	case CodeGen:
		return "codegen error"
	default:
		return "error"
	}
}

// Reason is a stage-specific sub-kind, e.g. "unexpected char" or "type error".
type Reason string

// Preprocessor reasons.
const (
	ReasonImportNotFound    Reason = "import not found"
	ReasonUnclosedCondition Reason = "unclosed conditional"
	ReasonMalformedDirective Reason = "malformed directive"
)

// Lexer reasons.
const (
	ReasonUnexpectedChar Reason = "unexpected char"
	ReasonInvalidNumber  Reason = "invalid number"
)

// Parser reasons.
const (
	ReasonUnknownType     Reason = "unknown type"
	ReasonSyntaxError     Reason = "syntax error"
	ReasonTypeError       Reason = "type error"
	ReasonUndefinedFunc   Reason = "undefined function"
	ReasonUnexpectedToken Reason = "unexpected token"
	ReasonUnknownFunction Reason = "unknown function"
)

// IRGen reasons.
const (
	ReasonNameError     Reason = "name error"
	ReasonScopeError    Reason = "scope error"
	ReasonIRTypeError   Reason = "type error"
	ReasonIRSyntaxError Reason = "syntax error"
)

// CodeGen reasons.
const (
	ReasonMissingOperand Reason = "missing operand"
	ReasonInvalidOperand Reason = "invalid operand"
	ReasonUnsupportedOp  Reason = "unsupported operation"
)

// Position is a (row, col) location in source text. Row and col are
// 1-indexed; a zero value means "no position available".
type Position struct {
	Row int
	Col int
}

// String renders the Position as "row:col", or the empty string if unset.
func (p Position) String() string {
	if p.Row == 0 && p.Col == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", p.Row, p.Col)
}

// Diagnostic is a single tagged compiler error.
type Diagnostic struct {
	Stage  Stage
	Reason Reason
	Pos    Position
	Msg    string
}

// Error renders the Diagnostic as one line, e.g. "12:4: parser error: unexpected token }".
// The Reason is not part of the rendered text.
func (d *Diagnostic) Error() string {
	if p := d.Pos.String(); p != "" {
		return fmt.Sprintf("%s: %s: %s", p, d.Stage, d.Msg)
	}
	return fmt.Sprintf("%s: %s", d.Stage, d.Msg)
}

// ---------------------
// ----- functions -----
// ---------------------

// New constructs a Diagnostic for the given stage, reason and position.
func New(stage Stage, reason Reason, pos Position, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Stage:  stage,
		Reason: reason,
		Pos:    pos,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// Wrap attaches additional context (e.g. "while importing foo.gos") to err
// without discarding the underlying Diagnostic; errors.Cause(wrapped) still
// recovers it.
func Wrap(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// AsDiagnostic unwraps err down to its originating *Diagnostic, if any.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
