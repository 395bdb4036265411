package ir

// Instruction is the flattened representation of every IR operation.
// Go has no sum type, so — exactly as spec.md §9 prescribes — one
// struct carries the union of fields every Opcode variant needs; which
// fields are meaningful is determined entirely by Opcode. This keeps
// every pass a single exhaustive switch instead of a type-hierarchy
// walk.
type Instruction struct {
	Opcode Opcode
	Type   Type // result type; Void if the instruction has no result

	// Result is the value this instruction defines, or ValueInvalid if
	// it has no result (Store, terminators, VaStart/VaEnd, etc).
	Result ValueID

	// Args holds the generic operand list. Meaning depends on Opcode:
	//   Load:            [ptr]
	//   Store:           [ptr, value]
	//   BinOp/Cmp:       [lhs, rhs]
	//   UnaryOp/Cast:    [src]
	//   GetElementPtr:   [base] (+ ByteOffsetValue for a variable offset)
	//   Select:          [cond, ifTrue, ifFalse]
	//   Copy:            [src]
	//   Call:            [args...]
	//   CallIndirect:    [callee, args...]
	//   Intrinsic:       [operands...]
	//   Memcpy:          [dst, src]
	//   AtomicLoad:      [ptr]
	//   AtomicStore:     [ptr, value]
	//   AtomicRmw:       [ptr, value]
	//   AtomicCmpxchg:   [ptr, expected, desired]
	//   VaStart/VaEnd:   [vaListPtr]
	//   VaCopy:          [dstVaListPtr, srcVaListPtr]
	//   VaArg/VaArgStruct:[vaListPtr]
	//   DynAlloca:       [size]
	//   Return:          [value] (empty for void returns)
	//   CondBranch:      [cond]
	//   Switch:          [value]
	//   IndirectBranch:  [address]
	Args []Operand

	// Alloca.
	AllocaSize int64 // element count * element size, in bytes
	ElemType   Type  // element type of the allocated object
	Align      int   // requested over-alignment in bytes; 0 means natural

	// BinOp / UnaryOp / Cmp.
	BinOp BinOpKind
	Unary UnaryOpKind
	Pred  CmpPred

	// Cast.
	SrcType Type

	// GetElementPtr: constant part of the byte offset from Args[0]. When
	// ByteOffsetValue is valid it is added on top (variable-indexed GEP).
	ByteOffset      int64
	ByteOffsetValue ValueID

	// Call / CallIndirect.
	Callee     string // direct call target name; empty for CallIndirect
	ArgTypes   []Type
	RetType    Type
	Variadic   bool
	CalleePure bool // true if the callee is known side-effect free (DCE may drop unused results)

	// Phi.
	Incoming []PhiIncoming

	// GlobalAddr.
	Symbol       string
	SymbolOffset int64

	// LabelAddr / terminators that name blocks.
	Target          BlockID   // Branch target; LabelAddr's addressed block
	TrueTarget      BlockID   // CondBranch taken-on-true target
	FalseTarget     BlockID   // CondBranch taken-on-false target
	Cases           []SwitchCase
	DefaultTarget   BlockID
	PossibleTargets []BlockID // IndirectBranch's possible-targets set (computed-goto label table)

	// Memcpy.
	MemcpySize  int64 // constant size; 0 with MemcpySizeValue set means variable-length
	MemcpySizeValue ValueID
	MemcpyAlign int

	// Intrinsic.
	IntrinsicName string

	// InlineAsm.
	AsmTemplate    string
	AsmOutputs     []AsmOperand
	AsmInputs      []AsmOperand
	AsmClobbers    []string
	AsmGotoTargets []BlockID

	// Atomics.
	Ordering     AtomicOrdering
	RMWOp        AtomicRMWOp
	CmpxchgBool  bool // true: AtomicCmpxchg returns a bool success flag instead of the old value

	// VaArgStruct.
	StructSize  int64
	StructAlign int
}

// SideEffecting reports whether the instruction must be preserved by
// DCE even if its result is unused (spec.md §4.2).
func (in *Instruction) SideEffecting() bool {
	switch in.Opcode {
	case OpStore, OpMemcpy, OpAtomicRmw, OpAtomicStore, OpInlineAsm, OpDynAlloca,
		OpVaStart, OpVaEnd, OpVaCopy:
		return true
	case OpCall, OpCallIndirect:
		return !in.CalleePure
	default:
		return IsTerminator(in.Opcode)
	}
}

// Uses calls fn for every ValueID the instruction reads, including phi
// operands (each tagged with its source predecessor by the caller via
// Incoming, not by Uses) and the GEP/Memcpy side-channel value fields.
func (in *Instruction) Uses(fn func(ValueID)) {
	for _, a := range in.Args {
		if !a.IsConst && a.Value.Valid() {
			fn(a.Value)
		}
	}
	for _, pi := range in.Incoming {
		if !pi.Value.IsConst && pi.Value.Value.Valid() {
			fn(pi.Value.Value)
		}
	}
	if in.ByteOffsetValue.Valid() {
		fn(in.ByteOffsetValue)
	}
	if in.MemcpySizeValue.Valid() {
		fn(in.MemcpySizeValue)
	}
	for _, o := range in.AsmOutputs {
		if !o.Value.IsConst && o.Value.Value.Valid() {
			fn(o.Value.Value)
		}
	}
	for _, o := range in.AsmInputs {
		if !o.Value.IsConst && o.Value.Value.Valid() {
			fn(o.Value.Value)
		}
	}
}

// HasResult reports whether the instruction defines a value.
func (in *Instruction) HasResult() bool { return in.Result.Valid() }
