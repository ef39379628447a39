// Package ast defines the sum-typed expression tree produced by the parser.
// Expr is a single tagged union with one field group per variant; which
// fields are meaningful is determined entirely by Kind. This mirrors the
// teacher's single-Node representation (ir.Node: Typ + Data + Children) but
// gives each spec.md variant its own named fields instead of an untyped
// Data/Children pair, since the variants here carry materially different
// shapes (parameters, branches, a loop variable, ...).
package ast

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind discriminates the variants of Expr.
type Kind int

const (
	Block Kind = iota
	Value
	VarRef
	VarDecl
	VarMut
	BinOp
	UnOp
	If
	While
	For
	FuncDecl
	Call
	Return
	Label
	Goto
	Extern
	ArrayAccess
	ArrayAssign
)

func (k Kind) String() string {
	switch k {
	case Block:
		return "Block"
	case Value:
		return "Value"
	case VarRef:
		return "VarRef"
	case VarDecl:
		return "VarDecl"
	case VarMut:
		return "VarMut"
	case BinOp:
		return "BinOp"
	case UnOp:
		return "UnOp"
	case If:
		return "If"
	case While:
		return "While"
	case For:
		return "For"
	case FuncDecl:
		return "FuncDecl"
	case Call:
		return "Call"
	case Return:
		return "Return"
	case Label:
		return "Label"
	case Goto:
		return "Goto"
	case Extern:
		return "Extern"
	case ArrayAccess:
		return "ArrayAccess"
	case ArrayAssign:
		return "ArrayAssign"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// TypeKind enumerates the source-level types of spec.md §3.
type TypeKind int

const (
	Int TypeKind = iota
	Float
	Bool
	Str
	Array
	Void
)

func (t TypeKind) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "flt"
	case Bool:
		return "bool"
	case Str:
		return "str"
	case Array:
		return "arr"
	case Void:
		return "void"
	default:
		return "?"
	}
}

// Type is a source-level type. ArrayLen is only meaningful when Kind ==
// Array: nil means an unknown length (arr<_>), otherwise it points at the
// fixed length N.
type Type struct {
	Kind     TypeKind
	ArrayLen *int
}

// String renders the Type the way the lexer spells it.
func (t Type) String() string {
	if t.Kind != Array {
		return t.Kind.String()
	}
	if t.ArrayLen == nil {
		return "arr<_>"
	}
	return fmt.Sprintf("arr<%d>", *t.ArrayLen)
}

// Equal reports whether t and o denote the same type. Two Array types with
// differing lengths (including one unknown) are NOT equal. IR generation
// does not call Equal: its type checks use ir's typesAssignable, under which
// an unknown array length matches any length.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind != Array {
		return true
	}
	if t.ArrayLen == nil || o.ArrayLen == nil {
		return t.ArrayLen == o.ArrayLen
	}
	return *t.ArrayLen == *o.ArrayLen
}

// BinOpKind enumerates the binary/unary operator spellings the parser can
// attach to a BinOp/UnOp/VarMut node.
type BinOpKind int

const (
	OpAdd BinOpKind = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpCompAnd // && (comparison-tier AND, lowers to the integer And IR op)
	OpCompOr  // || (comparison-tier OR, lowers to the integer Or IR op)
	OpLogAnd  // &  (logical-tier AND, lowers to LAnd)
	OpLogOr   // |  (logical-tier OR, lowers to LOr)
	OpLogXor  // ^  (logical-tier XOR, lowers to Xor)
	OpRange   // ~
	OpNeg     // unary -
	OpNot     // unary !
	OpSizeof  // unary sizeof
)

func (o BinOpKind) String() string {
	names := [...]string{
		"+", "-", "*", "/", "==", "!=", ">", ">=", "<", "<=",
		"&&", "||", "&", "|", "^", "~", "-", "!", "sizeof",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "?"
}

// Param is a single function parameter: a name and its declared type.
type Param struct {
	Name string
	Typ  Type
}

// Expr is a single node of the AST sum type.
type Expr struct {
	Kind Kind
	Row  int
	Col  int

	// Value: literal payload. ValType.Kind selects which field is live.
	ValType  Type
	IntVal   int64
	FloatVal float64
	BoolVal  bool
	StrVal   string
	Elems    []*Expr // Array literal elements (ValType.Kind == Array).

	// VarRef / VarMut / Goto / Label / Call / Extern / FuncDecl name.
	Ident string

	// VarDecl.
	DeclType Type
	Init     *Expr

	// VarMut. Compound forms (+= -= *= /=) are desugared by the parser into
	// RHS = BinOp(op, VarRef(Ident), rhsExpr); a plain '=' leaves RHS as-is.
	RHS *Expr

	// BinOp / UnOp.
	Op      BinOpKind
	LHS     *Expr
	Operand *Expr // UnOp operand.

	// Block.
	Stmts []*Expr

	// If / While.
	Cond *Expr
	Then *Expr
	Else *Expr

	// For.
	ForVar  string
	ForIter *Expr
	ForBody *Expr

	// FuncDecl / Extern.
	Params     []Param
	ParamTypes []Type // Extern only.
	RetType    Type
	FuncBody   *Expr
	Public     bool

	// Call.
	Args []*Expr

	// Return.
	ReturnVal *Expr

	// ArrayAccess / ArrayAssign.
	ArrBase  *Expr
	ArrIndex *Expr
	ArrValue *Expr
}

// IsLiteral reports whether e is a fully-folded literal Value node (i.e. the
// leaf kind the constant folder produces), excluding array literals whose
// elements are not themselves all literals.
func (e *Expr) IsLiteral() bool {
	if e == nil || e.Kind != Value {
		return false
	}
	if e.ValType.Kind != Array {
		return true
	}
	for _, el := range e.Elems {
		if !el.IsLiteral() {
			return false
		}
	}
	return true
}
