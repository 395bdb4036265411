package x86

import "github.com/dj707chen/nativecc/internal/backend"

// XOp is the closed set of lowered x86 pseudo-instructions this core
// emits. Like internal/ir.Instruction, this is a flattened tagged
// union rather than an interface hierarchy (spec.md §9).
type XOp uint8

const (
	XNop XOp = iota
	XMovRR
	XMovRI
	XMovRM // load: dst-reg <- [base+disp]
	XMovMR // store: [base+disp] <- src-reg
	XLea
	XAddRR
	XSubRR
	XImulRR
	XIdivR // rax:rdx / src -> rax, rdx
	XAndRR
	XOrRR
	XXorRR
	XNotR
	XNegR
	XShlRI
	XShrRI
	XSarRI
	XCmpRR
	XSetCC
	XMovzx
	XMovsx
	XCvtsi2sd
	XCvtsd2si
	XAddSD
	XSubSD
	XMulSD
	XDivSD
	XMovSD
	XPush
	XPop
	XCall
	XCallIndirect
	XRet
	XJmp
	XJcc
	XLabel
	XCQO // sign-extend rax into rdx:rax ahead of idiv
	XLockXaddMR
	XLockCmpxchgMR
	XMFence
	XLeaLabel    // dst <- address of an intra-function label (computed goto)
	XJmpIndirect // jmp *src1 (computed goto)
	XUD2         // unreachable
)

// CC is a condition code for XSetCC/XJcc, keyed by the spec.md
// compare predicate it was lowered from.
type CC uint8

const (
	CCEq CC = iota
	CCNe
	CCLt
	CCLe
	CCGt
	CCGe
	CCBelow   // unsigned <
	CCBelowEq // unsigned <=
	CCAbove   // unsigned >
	CCAboveEq // unsigned >=
)

// Operand is a flattened operand: exactly one of Reg/Imm/Mem is live,
// selected by Kind.
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

// MemOperand is base(+disp), the only addressing mode this core's
// stack-relative and global-relative accesses need; indexed
// addressing for VLA/array subscripting is lowered to an explicit
// address computation (Lea) ahead of the load/store instead.
type MemOperand struct {
	Base backend.RealReg
	Disp int32
	// RipRelative marks a %rip-relative global/string-literal address,
	// resolved by internal/asm via a relocation instead of Disp.
	RipRelative bool
	Symbol      string
}

// Width selects the operand size suffix (b/w/l/q in AT&T syntax,
// equivalently 1/2/4/8 in the encoded operand-size prefix/REX.W bit).
type Width uint8

const (
	W8 Width = 1 << iota
	W16
	W32
	W64
)

// Instr is one lowered x86 instruction.
type Instr struct {
	Op     XOp
	Width  Width
	Dst    Operand
	Src1   Operand
	Src2   Operand
	CC     CC
	Label  string // XLabel, XJmp, XJcc target
	Callee string // XCall target symbol; empty + CallIndirect uses Src1
}
