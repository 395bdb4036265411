package riscv64

import "github.com/dj707chen/nativecc/internal/backend"

// ROp is the closed set of lowered RISC-V pseudo-instructions this
// core emits (spec.md §9 flattened-union design, same as
// codegen/x86.XOp and codegen/arm64.AOp).
type ROp uint8

const (
	RNop ROp = iota
	RMv
	RLi
	RLd // also lw/lh/lb per Width
	RSd // also sw/sh/sb per Width
	RAdd
	RSub
	RMul
	RDiv
	RDivu
	RRem
	RRemu
	RAnd
	ROr
	RXor
	RNot
	RNeg
	RSll
	RSrl
	RSra
	RSlt  // set-less-than, builds every integer compare predicate
	RSltu
	RSeqz
	RSnez
	RXori // xor-immediate 1, used to invert a Sltu/Slt result for Ne/Ge/Le
	RFaddD
	RFsubD
	RFmulD
	RFdivD
	RFmvD
	RFcvtDW
	RFcvtWD
	RAuipc // high-20 load, paired with RAddi for a PC-relative symbol address
	RAddi
	RJal
	RJalr
	RBeq
	RBne
	RLabel
	RLrW  // load-reserved, atomics
	RScW  // store-conditional
	RFenceSeqCst
	RLa    // load address of an intra-function label (auipc+addi pair)
	RUnimp // unreachable trap
)

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
	Symbol string
}

type Width uint8

const (
	W8 Width = iota
	W16
	W32
	W64
)

type Instr struct {
	Op     ROp
	Width  Width
	Signed bool
	Dst    Operand
	Src1   Operand
	Src2   Operand
	Label  string
	Callee string
}
