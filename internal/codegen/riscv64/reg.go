// Package riscv64 lowers IR functions to RISC-V LP64D machine code
// (spec.md §5 RISC-V64 target), structured like codegen/arm64 and
// codegen/x86 but targeting RV64GC (uncompressed 4-byte encodings
// only; see encode.go), grounded
// on the same wazevo backend.Machine split as the other two targets.
package riscv64

import "github.com/dj707chen/nativecc/internal/backend"

const (
	zero backend.RealReg = iota
	ra                    // return address (x1)
	sp                    // stack pointer (x2)
	gp
	tp
	t0
	t1
	t2
	s0 // frame pointer (x8)
	s1
	a0
	a1
	a2
	a3
	a4
	a5
	a6
	a7
	s2
	s3
	s4
	s5
	s6
	s7
	s8
	s9
	s10
	s11
	t3
	t4
	t5
	t6

	fa0
	fa1
	fa2
	fa3
	fa4
	fa5
	fa6
	fa7
	fs0
	fs1
	fs2
	fs3
	fs4
	fs5
	fs6
	fs7
	fs8
	fs9
	fs10
	fs11

	numRegisters
)

var regNames = [...]string{
	zero: "zero", ra: "ra", sp: "sp", gp: "gp", tp: "tp",
	t0: "t0", t1: "t1", t2: "t2", s0: "s0", s1: "s1",
	a0: "a0", a1: "a1", a2: "a2", a3: "a3", a4: "a4", a5: "a5", a6: "a6", a7: "a7",
	s2: "s2", s3: "s3", s4: "s4", s5: "s5", s6: "s6", s7: "s7", s8: "s8", s9: "s9", s10: "s10", s11: "s11",
	t3: "t3", t4: "t4", t5: "t5", t6: "t6",
	fa0: "fa0", fa1: "fa1", fa2: "fa2", fa3: "fa3", fa4: "fa4", fa5: "fa5", fa6: "fa6", fa7: "fa7",
}

// CalleeSaved lists the LP64D callee-saved general-purpose registers
// (s1-s11; s0 is reserved as the frame pointer).
var CalleeSaved = []backend.RealReg{s1, s2, s3, s4, s5, s6, s7, s8, s9, s10, s11}

// ArgRegs lists the LP64D integer argument registers a0-a7.
var ArgRegs = []backend.RealReg{a0, a1, a2, a3, a4, a5, a6, a7}

// FloatArgRegs lists the LP64D floating-point argument registers fa0-fa7.
var FloatArgRegs = []backend.RealReg{fa0, fa1, fa2, fa3, fa4, fa5, fa6, fa7}

func encNum(r backend.RealReg) uint32 {
	if r >= fa0 {
		return uint32(r-fa0) + 10 // f10-f17 = fa0-fa7 in the standard ABI numbering
	}
	return uint32(r)
}
