// Package arm64 lowers IR functions to AAPCS64 machine code (spec.md
// §5 AArch64 target), grounded directly on wazevo's
// backend/isa/arm64/{reg.go,cond.go,instr.go,machine.go,lower_instr.go}
// — the one architecture this core's teacher already implements.
package arm64

import "github.com/dj707chen/nativecc/internal/backend"

const (
	x0 backend.RealReg = iota
	x1
	x2
	x3
	x4
	x5
	x6
	x7
	x8
	x9
	x10
	x11
	x12
	x13
	x14
	x15
	x16
	x17
	x18
	x19
	x20
	x21
	x22
	x23
	x24
	x25
	x26
	x27
	x28
	x29 // frame pointer
	x30 // link register
	xzr
	sp

	d0
	d1
	d2
	d3
	d4
	d5
	d6
	d7
	d8
	d9
	d10
	d11
	d12
	d13
	d14
	d15
	d16
	d17
	d18
	d19
	d20
	d21
	d22
	d23
	d24
	d25
	d26
	d27
	d28
	d29
	d30
	d31

	numRegisters
)

var regNames = [...]string{
	x0: "x0", x1: "x1", x2: "x2", x3: "x3", x4: "x4", x5: "x5", x6: "x6", x7: "x7",
	x8: "x8", x9: "x9", x10: "x10", x11: "x11", x12: "x12", x13: "x13", x14: "x14", x15: "x15",
	x16: "x16", x17: "x17", x18: "x18", x19: "x19", x20: "x20", x21: "x21", x22: "x22", x23: "x23",
	x24: "x24", x25: "x25", x26: "x26", x27: "x27", x28: "x28", x29: "x29", x30: "x30",
	xzr: "xzr", sp: "sp",
	d0: "d0", d1: "d1", d2: "d2", d3: "d3", d4: "d4", d5: "d5", d6: "d6", d7: "d7",
}

// CalleeSaved lists the AAPCS64 callee-saved general-purpose registers
// (x19-x28) available to regalloc.
var CalleeSaved = []backend.RealReg{x19, x20, x21, x22, x23, x24, x25, x26, x27, x28}

// ArgRegs lists the AAPCS64 integer argument registers x0-x7.
var ArgRegs = []backend.RealReg{x0, x1, x2, x3, x4, x5, x6, x7}

// FloatArgRegs lists the AAPCS64 SIMD/FP argument registers d0-d7.
var FloatArgRegs = []backend.RealReg{d0, d1, d2, d3, d4, d5, d6, d7}

func encNum(r backend.RealReg) uint32 {
	if r >= d0 {
		return uint32(r - d0)
	}
	if r == sp {
		return 31
	}
	return uint32(r)
}
