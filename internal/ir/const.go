package ir

// ConstKind tags the variant held by a Const.
type ConstKind uint8

const (
	ConstInvalid ConstKind = iota
	ConstI8
	ConstI16
	ConstI32
	ConstI64
	ConstI128
	ConstF32
	ConstF64
	ConstLongDouble
	ConstZero
	ConstGlobalAddr
	ConstGlobalDiff
	ConstAggregate
)

// I128Bits holds a full 128-bit integer as two 64-bit halves, low first.
// Two's-complement throughout: for a signed I128 the sign lives in the
// top bit of Hi.
type I128Bits struct {
	Lo, Hi uint64
}

// LongDouble carries both a double-precision approximation (used by
// mid-level passes and anything that only needs a numeric estimate) and
// the raw 16-byte representation (x87 80-bit padded to 16, or IEEE
// binary128) so codegen can reconstruct the value bit-exactly.
type LongDouble struct {
	Approx float64
	Raw    [16]byte
}

// Const is a tagged union of every constant an IR operand can carry.
// Kind selects which fields are meaningful; Go lacks sum types, so this
// mirrors the Instruction type's flattened-struct approach rather than
// an interface hierarchy, since every pass switches on Kind exhaustively.
type Const struct {
	Kind ConstKind
	Type Type

	I64 int64    // ConstI8/I16/I32/I64 (sign-extended to 64 bits; truncate per Type on use)
	I128 I128Bits // ConstI128
	F32 float32
	F64 float64
	LD  LongDouble

	// ConstGlobalAddr / ConstGlobalDiff: &Symbol + Offset, or
	// (&SymbolA + OffsetA) - (&SymbolB + OffsetB) when SymbolB != "".
	Symbol  string
	SymbolB string
	Offset  int64
	OffsetB int64

	// ConstAggregate: nested initializer list for struct/union/array
	// compound literals; each element is itself a Const.
	Elems []Const
}

// ZeroConst returns the Const.Zero sentinel for t: "the zero of any
// type", used when lowering omits trailing aggregate-initializer
// members or zero-fills padding.
func ZeroConst(t Type) Const { return Const{Kind: ConstZero, Type: t} }

// IntConst builds an integer constant of the given type from a 64-bit
// two's-complement payload, appropriate for every width except I128.
func IntConst(t Type, v int64) Const {
	k := ConstI64
	switch t.Size() {
	case 1:
		k = ConstI8
	case 2:
		k = ConstI16
	case 4:
		k = ConstI32
	}
	return Const{Kind: k, Type: t, I64: v}
}

// I128Const builds a full 128-bit integer constant.
func I128Const(t Type, lo, hi uint64) Const {
	return Const{Kind: ConstI128, Type: t, I128: I128Bits{Lo: lo, Hi: hi}}
}

// GlobalAddrConst builds an "address of global plus byte offset" constant.
func GlobalAddrConst(sym string, offset int64) Const {
	return Const{Kind: ConstGlobalAddr, Type: Ptr, Symbol: sym, Offset: offset}
}

// IsConstZero reports whether c is definitely the integer/float value 0,
// covering both the Zero sentinel and literal zero payloads.
func (c Const) IsConstZero() bool {
	switch c.Kind {
	case ConstZero:
		return true
	case ConstI8, ConstI16, ConstI32, ConstI64:
		return c.I64 == 0
	case ConstI128:
		return c.I128.Lo == 0 && c.I128.Hi == 0
	case ConstF32:
		return c.F32 == 0
	case ConstF64:
		return c.F64 == 0
	default:
		return false
	}
}
