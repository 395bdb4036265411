package arm64

import "github.com/dj707chen/nativecc/internal/backend"

// AOp is the closed set of lowered AArch64 pseudo-instructions this
// core emits, a flattened tagged union matching internal/ir's design
// (spec.md §9) rather than per-instruction Go types.
type AOp uint8

const (
	ANop AOp = iota
	AMovRR
	AMovzImm
	AMovkImm
	ALdr
	AStr
	AAddRR
	ASubRR
	AMulRR
	ASdiv
	AUdiv
	AMsub // multiply-subtract, used to compute srem/urem from div
	AAndRR
	AOrrRR
	AEorRR
	AMvn
	ANeg
	ALslImm
	ALsrImm
	AAsrImm
	ACmp
	ACset
	ACsel
	ASxt
	AUxt
	AFmov
	AScvtf
	AFcvtzs
	AFaddD
	AFsubD
	AFmulD
	AFdivD
	AAdrp // page-relative address load, paired with AAddImm12 for the low bits
	AAddImm12
	ABl
	ABlr
	ARet
	AB
	ABCond
	ALabel
	ALdxr
	AStxr
	ADmb
	AAdr // pc-relative address of an intra-function label (computed goto)
	ABr  // branch to register, no link (computed goto)
	ABrk // unreachable trap
)

// Operand mirrors codegen/x86's flattened Operand: a register, an
// immediate, or a base+offset memory reference (AArch64 has no
// indexed-without-extend addressing mode this core needs beyond that).
type Operand struct {
	Kind OperandKind
	Reg  backend.RealReg
	Imm  int64
	Mem  MemOperand
}

type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandReg
	OperandImm
	OperandMem
)

type MemOperand struct {
	Base   backend.RealReg
	Disp   int32
	Symbol string // non-empty for an AAdrp/AAddImm12 symbol pair
}

type Instr struct {
	Op     AOp
	Is64   bool
	Dst    Operand
	Src1   Operand
	Src2   Operand
	Src3   Operand
	Cond   cond
	Label  string
	Callee string
}
