// Package x86 lowers IR functions to SysV AMD64 machine code (spec.md
// §5 x86-64 target), grounded on wazevo's backend/isa/arm64 package
// structure (reg.go/cond.go/instr.go/machine.go/lower_instr.go) but
// encoding x86's variable-length instruction forms instead of AArch64's
// fixed 32-bit words.
package x86

import "github.com/dj707chen/nativecc/internal/backend"

// General-purpose and XMM registers, numbered by their ModRM/REX.B
// encoding so Machine can compute the REX prefix directly from the
// constant.
const (
	rax backend.RealReg = iota
	rcx
	rdx
	rbx
	rsp
	rbp
	rsi
	rdi
	r8
	r9
	r10
	r11
	r12
	r13
	r14
	r15

	xmm0
	xmm1
	xmm2
	xmm3
	xmm4
	xmm5
	xmm6
	xmm7
	xmm8
	xmm9
	xmm10
	xmm11
	xmm12
	xmm13
	xmm14
	xmm15

	numRegisters
)

var regNames = [...]string{
	rax: "rax", rcx: "rcx", rdx: "rdx", rbx: "rbx",
	rsp: "rsp", rbp: "rbp", rsi: "rsi", rdi: "rdi",
	r8: "r8", r9: "r9", r10: "r10", r11: "r11",
	r12: "r12", r13: "r13", r14: "r14", r15: "r15",
	xmm0: "xmm0", xmm1: "xmm1", xmm2: "xmm2", xmm3: "xmm3",
	xmm4: "xmm4", xmm5: "xmm5", xmm6: "xmm6", xmm7: "xmm7",
	xmm8: "xmm8", xmm9: "xmm9", xmm10: "xmm10", xmm11: "xmm11",
	xmm12: "xmm12", xmm13: "xmm13", xmm14: "xmm14", xmm15: "xmm15",
}

// CalleeSaved lists the SysV AMD64 callee-saved general-purpose
// registers regalloc may assign to a cross-call-surviving value.
var CalleeSaved = []backend.RealReg{rbx, r12, r13, r14, r15}

// ArgRegs lists the SysV AMD64 integer argument-passing registers in
// order (spec.md §5 ABI: "rdi, rsi, rdx, rcx, r8, r9").
var ArgRegs = []backend.RealReg{rdi, rsi, rdx, rcx, r8, r9}

// FloatArgRegs lists the SysV AMD64 SSE argument-passing registers.
var FloatArgRegs = []backend.RealReg{xmm0, xmm1, xmm2, xmm3, xmm4, xmm5, xmm6, xmm7}

// isExtended reports whether r is one of r8-r15/xmm8-xmm15, requiring
// REX.B/REX.R/REX.X to be set when referenced.
func isExtended(r backend.RealReg) bool {
	return (r >= r8 && r <= r15) || (r >= xmm8 && r <= xmm15)
}

// low3 returns the 3-bit ModRM/SIB encoding of r, ignoring the REX
// extension bit.
func low3(r backend.RealReg) byte {
	if r >= xmm0 {
		return byte((r - xmm0) & 7)
	}
	return byte(r & 7)
}
