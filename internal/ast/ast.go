// Package ast defines the minimal typed C AST that internal/lower
// consumes. spec.md §1 treats the lexer/parser/semantic analyzer and
// the AST/type data model as external collaborators ("the core assumes
// a typed AST with attached constant-expression metadata is available");
// this package is the shape of that contract, not a frontend — no
// lexing or parsing lives here, only the node definitions a sema layer
// would already have built. internal/lower's own tests construct small
// ASTs by hand with these node types directly (see lower_test.go).
//
// Following the same flattened-struct convention as internal/ir (spec.md
// §9: "the set is closed, the variants are data-heavy, and
// pattern-matching drives every pass"), Expr and Stmt are each one
// struct tagged by a Kind enum rather than an interface hierarchy.
package ast

import "github.com/dj707chen/nativecc/internal/ir"

// AggKind classifies a CType.
type AggKind uint8

const (
	KindScalar AggKind = iota
	KindPointer
	KindArray
	KindStruct
	KindUnion
	KindVoid
)

// CType is the C-level type of an expression or declaration. Scalar
// types carry their ir.Type directly; pointers and arrays carry an
// element type; structs/unions carry an *ir.Tag (already laid out by
// sema, same as every other piece of constant/layout metadata this
// package borrows from internal/ir rather than re-deriving).
type CType struct {
	Kind     AggKind
	IR       ir.Type // meaningful when Kind == KindScalar
	Elem     *CType  // pointee (KindPointer) or element (KindArray)
	ArrayLen int64   // KindArray
	Tag      *ir.Tag // KindStruct / KindUnion
}

// Scalar builds a KindScalar CType wrapping an ir.Type.
func Scalar(t ir.Type) *CType { return &CType{Kind: KindScalar, IR: t} }

// PointerTo builds a pointer-to-elem CType.
func PointerTo(elem *CType) *CType { return &CType{Kind: KindPointer, IR: ir.Ptr, Elem: elem} }

// ArrayOf builds an array-of-elem CType with the given element count.
func ArrayOf(elem *CType, n int64) *CType {
	return &CType{Kind: KindArray, IR: ir.Ptr, Elem: elem, ArrayLen: n}
}

// StructType wraps a laid-out struct/union tag as a CType.
func StructType(tag *ir.Tag) *CType {
	k := KindStruct
	if tag.Kind == ir.TagUnion {
		k = KindUnion
	}
	return &CType{Kind: k, Tag: tag}
}

// VoidType is the shared CType for `void`.
var VoidType = &CType{Kind: KindVoid, IR: ir.Void}

// IsAggregate reports whether values of t are manipulated by address
// (struct/union/array) rather than loaded directly into a scalar IR value.
func (t *CType) IsAggregate() bool {
	return t.Kind == KindStruct || t.Kind == KindUnion || t.Kind == KindArray
}

// IRType returns the ir.Type used to hold a reference to a value of
// this CType: its own scalar type, or ir.Ptr for anything manipulated
// by address (pointers, decayed arrays, and aggregates-by-reference).
func (t *CType) IRType() ir.Type {
	switch t.Kind {
	case KindScalar:
		return t.IR
	case KindVoid:
		return ir.Void
	default:
		return ir.Ptr
	}
}

// AllocaElemType returns the ir.Type an Alloca of this CType should
// report as its element type (internal/ir's Alloca.ElemType): the
// scalar's own type, the pointee's IR type decayed to a pointer, the
// array's element IR type, or a plain byte element for struct/union
// allocas, which this lowering treats as opaque byte buffers sized by
// the tag's already-computed layout.
func (t *CType) AllocaElemType() ir.Type {
	switch t.Kind {
	case KindScalar:
		return t.IR
	case KindPointer:
		return ir.Ptr
	case KindArray:
		return t.Elem.IRType()
	default:
		return ir.I8
	}
}

// Size returns the in-memory size of t in bytes.
func (t *CType) Size() int64 {
	switch t.Kind {
	case KindScalar:
		return int64(t.IR.Size())
	case KindPointer:
		return 8
	case KindArray:
		return t.ArrayLen * t.Elem.Size()
	case KindStruct, KindUnion:
		return t.Tag.Size
	default:
		return 0
	}
}

// Align returns the natural alignment of t in bytes.
func (t *CType) Align() int {
	switch t.Kind {
	case KindScalar:
		return t.IR.Align()
	case KindPointer:
		return 8
	case KindArray:
		return t.Elem.Align()
	case KindStruct, KindUnion:
		return t.Tag.Align
	default:
		return 1
	}
}

// Decl is a local variable or parameter declaration. Expr nodes refer
// to locals/params by *Decl identity rather than by name lookup, the
// same way sema would have already resolved every identifier before
// handing the AST to this core (spec.md §1's "typed AST" assumption).
type Decl struct {
	Name     string
	Type     *CType
	Align    int // requested over-alignment in bytes, 0 = natural
	Init     *Expr
	IsStatic bool // function-local `static`; internal/lower rejects it with a diagnostic
}

// Global is a module-level (possibly `static`) variable definition or
// tentative/extern declaration.
type Global struct {
	Name    string
	Type    *CType
	Init    *Expr
	Static  bool
	Extern  bool // true: declared, not defined here
	ReadOnly bool
}

// Param is one function parameter.
type Param struct {
	Decl *Decl
}

// Function is a top-level function definition or declaration.
type Function struct {
	Name     string
	RetType  *CType
	Params   []*Param
	Variadic bool
	Body     *Stmt // nil => declaration only
	Static   bool
}

// TranslationUnit is everything one compilation unit lowers.
type TranslationUnit struct {
	Functions []*Function
	Globals   []*Global
	Tags      []*ir.Tag
}

// ExprKind tags the variant an Expr holds.
type ExprKind uint8

const (
	EInvalid ExprKind = iota
	EIntLit
	EFloatLit
	ELongDoubleLit
	EStringLit
	EIdentLocal  // Decl != nil: a local variable or parameter
	EIdentGlobal // Name: a module-level global
	EFunc        // Name: the address of a function (for calls and function pointers)
	EBinary
	ELogicalAnd // short-circuit &&
	ELogicalOr  // short-circuit ||
	EUnary
	EAssign
	ECall
	ECast
	EIndex
	EMember
	ECond // ternary a ? b : c
	EComma
	ECompoundLiteral
)

// UnaryKind selects a unary/increment-decrement operator.
type UnaryKind uint8

const (
	UInvalid UnaryKind = iota
	UNeg                // -x
	UNot                // ~x
	ULNot               // !x
	UDeref              // *x
	UAddrOf             // &x
	UPreInc
	UPreDec
	UPostInc
	UPostDec
)

// AssignKind selects a simple or compound assignment operator.
type AssignKind uint8

const (
	AssignSimple AssignKind = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
	AssignMod
	AssignShl
	AssignShr
	AssignAnd
	AssignOr
	AssignXor
)

// Expr is one C expression, tagged by Kind. Every field not meaningful
// for a given Kind is left zero.
type Expr struct {
	Kind ExprKind
	Type *CType

	IntVal   int64   // EIntLit (sign-extended to 64 bits)
	FloatVal float64 // EFloatLit
	LDRaw    [16]byte // ELongDoubleLit raw 128-bit pattern
	StrVal   []byte   // EStringLit

	Decl *Decl  // EIdentLocal
	Name string // EIdentGlobal, EFunc, EMember field name

	LHS, RHS, Cond *Expr // EBinary/EAssign (simple or compound, per AssignOp) LHS+RHS; ECond Cond+LHS(then)+RHS(else)
	BinOp          ir.BinOpKind
	CmpPred        ir.CmpPred
	IsCmp          bool // EBinary: result of CmpPred rather than BinOp

	UnaryOp UnaryKind // EUnary

	AssignOp AssignKind // EAssign

	Callee       *Expr   // ECall: EFunc (direct) or any pointer expr (indirect)
	Args         []*Expr // ECall
	CalleeIsPure bool
	CalleeVariadic bool // true if the callee's signature is variadic

	CastSrc *Expr // ECast

	Base, Index *Expr // EIndex
	Arrow       bool  // EMember: -> instead of .

	Exprs []*Expr // EComma

	CompoundInit *InitList // ECompoundLiteral
}

// InitList is an aggregate initializer: one entry per struct field (in
// declaration order) or array element.
type InitList struct {
	Elems []*Expr
}

// StmtKind tags the variant a Stmt holds.
type StmtKind uint8

const (
	SInvalid StmtKind = iota
	SBlock
	SExpr
	SDecl
	SIf
	SWhile
	SDoWhile
	SFor
	SReturn
	SBreak
	SContinue
	SGoto
	SLabel
	SCase
	SDefault
	SSwitch
)

// Stmt is one C statement, tagged by Kind.
type Stmt struct {
	Kind StmtKind

	Stmts []*Stmt // SBlock

	X *Expr // SExpr, SReturn (nil for void return)

	D *Decl // SDecl

	Cond *Expr // SIf/SWhile/SDoWhile/SFor(may be nil)/SSwitch
	Then *Stmt // SIf
	Else *Stmt // SIf

	Init *Stmt // SFor
	Post *Expr // SFor
	Body *Stmt // SWhile/SDoWhile/SFor/SSwitch(body)

	Label string // SGoto, SLabel
	Inner *Stmt  // SLabel, SCase, SDefault

	CaseVal int64 // SCase
}
