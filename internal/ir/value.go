package ir

// ValueID identifies an SSA value, dense within the owning Function.
// Zero is reserved as "no value" (ValueInvalid) so a zero Operand reads
// as "not a value operand" without an extra bool.
type ValueID uint32

const ValueInvalid ValueID = 0

// Valid reports whether v names a real value.
func (v ValueID) Valid() bool { return v != ValueInvalid }

// Operand is either a reference to a previously defined Value or an
// inline Const. Every instruction operand (and phi incoming value) is
// one of these; IsConst selects which field is meaningful.
type Operand struct {
	IsConst bool
	Value   ValueID
	Const   Const
}

// ValueOperand wraps a ValueID as an Operand.
func ValueOperand(v ValueID) Operand { return Operand{Value: v} }

// ConstOperand wraps a Const as an Operand.
func ConstOperand(c Const) Operand { return Operand{IsConst: true, Const: c} }

// ValueDef records where a ValueID is defined: its type, the defining
// instruction (nil for block parameters / function parameters), and the
// owning block. Mem2Reg's phi insertion can add additional defining
// blocks for a single ValueID (phi-materialized "multi-def" values);
// those are tracked in Function.multiDef rather than here.
type ValueDef struct {
	Type  Type
	Block BlockID
	Instr *Instruction // nil if this value is a block/function parameter
}
