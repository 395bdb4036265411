// Package compiler wires internal/passes, internal/stacklayout,
// internal/regalloc, internal/codegen/*, and internal/asm/* into the
// single straight-line pipeline spec.md §5 describes: "source ->
// preprocess -> lex -> parse -> sema -> lower -> passes -> stack-layout
// -> regalloc -> codegen -> assemble -> link". Pipeline picks up at
// "passes", the first stage downstream of the (separately maintained)
// front end's IR, and stops after "assemble"; linking is a separate
// internal/linker.Link call.
package compiler

import (
	"fmt"

	"github.com/dj707chen/nativecc/internal/asm"
	asmarm64 "github.com/dj707chen/nativecc/internal/asm/arm64"
	asmriscv64 "github.com/dj707chen/nativecc/internal/asm/riscv64"
	asmx86 "github.com/dj707chen/nativecc/internal/asm/x86"
	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/codegen/arm64"
	"github.com/dj707chen/nativecc/internal/codegen/riscv64"
	"github.com/dj707chen/nativecc/internal/codegen/x86"
	"github.com/dj707chen/nativecc/internal/regalloc"
)

// Target selects one of the three code generator backends (spec.md §5).
type Target int

const (
	TargetX86_64 Target = iota
	TargetARM64
	TargetRISCV64
)

func (t Target) String() string {
	switch t {
	case TargetX86_64:
		return "x86-64"
	case TargetARM64:
		return "arm64"
	case TargetRISCV64:
		return "riscv64"
	default:
		return "unknown"
	}
}

// targetInfo bundles the per-target collaborators Pipeline needs: a
// fresh backend.Machine, the registers regalloc may assign from, and
// the asm subpackage that turns lowered bytes into an ELF object.
type targetInfo struct {
	newMachine func() backend.Machine
	available  []regalloc.PhysReg
	assemble   func([]asm.FunctionCode) ([]byte, error)
}

func infoFor(t Target) (targetInfo, error) {
	switch t {
	case TargetX86_64:
		return targetInfo{
			newMachine: func() backend.Machine { return x86.New() },
			available:  toPhysRegs(x86.CalleeSaved),
			assemble:   asmx86.Assemble,
		}, nil
	case TargetARM64:
		return targetInfo{
			newMachine: func() backend.Machine { return arm64.New() },
			available:  toPhysRegs(arm64.CalleeSaved),
			assemble:   asmarm64.Assemble,
		}, nil
	case TargetRISCV64:
		return targetInfo{
			newMachine: func() backend.Machine { return riscv64.New() },
			available:  toPhysRegs(riscv64.CalleeSaved),
			assemble:   asmriscv64.Assemble,
		}, nil
	default:
		return targetInfo{}, fmt.Errorf("compiler: unknown target %v", t)
	}
}

func toPhysRegs(regs []backend.RealReg) []regalloc.PhysReg {
	out := make([]regalloc.PhysReg, len(regs))
	for i, r := range regs {
		out[i] = regalloc.PhysReg(r)
	}
	return out
}
