package backend

import "github.com/dj707chen/nativecc/internal/ir"

// Machine is the interface each target's codegen package implements
// (codegen/x86, codegen/arm64, codegen/riscv64), grounded on wazevo's
// backend.Machine but retargeted from ssa.BasicBlock to our ir.Block
// and driven by a CompilationContext that also exposes stack-layout
// and register-allocation results, not just VReg bookkeeping.
type Machine interface {
	// SetCompilationContext is called once, before the first function
	// is compiled.
	SetCompilationContext(CompilationContext)

	// StartFunction is called when compilation of fn begins, after
	// virtual registers have been assigned and stack layout/regalloc
	// have both run.
	StartFunction(fn *ir.Function)

	// StartBlock is called when lowering of b begins.
	StartBlock(b *ir.Block)

	// LowerInstr lowers one instruction into target-specific machine
	// instructions, appending them to the Machine's internal buffer.
	// Instructions already consumed by a prior fused lowering (e.g. a
	// Cmp immediately preceding the CondBranch it feeds) are skipped by
	// the Compiler via CompilationContext.MarkLowered.
	LowerInstr(instr *ir.Instruction)

	// EndBlock is called when lowering of the current block finishes.
	EndBlock()

	// EndFunction is called after every block has been lowered,
	// allowing the Machine to emit prologue/epilogue once frame size
	// and callee-saved register usage are both known.
	EndFunction()

	// Encode serializes the lowered instruction stream for the current
	// function into final bytes plus any relocations needed by
	// internal/asm and internal/linker.
	Encode() (code []byte, relocs []Relocation, err error)

	// Reset clears per-function Machine state for reuse on the next
	// function.
	Reset()
}

// Relocation is a single pending cross-section or cross-symbol fixup
// a Machine could not resolve at lowering time (e.g. a call to a
// not-yet-placed function, or a GlobalAddr), left for internal/asm's
// object emission and internal/linker's relocation application.
type Relocation struct {
	Offset int64
	Symbol string
	Kind   RelocKind
	Addend int64
}

// RelocKind is a target-and-ABI-specific relocation type; each
// codegen package defines its own constant space sized to its ABI
// (spec.md §4.7 relocation formulas), referenced here only by name so
// internal/asm/internal/linker can interpret it without this package
// depending back on them.
type RelocKind string

// CompilationContext is passed to a Machine by Compiler so machine
// lowering can consult virtual-register assignment, stack slots, and
// physical-register assignment without depending on Compiler's
// concrete type.
type CompilationContext interface {
	// MarkLowered tells the Compiler to skip instr during the normal
	// traversal because a fused lowering already consumed it.
	MarkLowered(instr *ir.Instruction)

	// VRegOf returns the virtual register holding v's result.
	VRegOf(v ir.ValueID) VReg

	// SlotOf returns the stack slot assigned to v and whether v has one
	// at all (register-resident values do not).
	SlotOf(v ir.ValueID) (offset int64, size int64, align int, ok bool)

	// RealRegOf returns the physical register assigned to v by
	// regalloc, if any.
	RealRegOf(v ir.ValueID) (RealReg, bool)

	// FrameSize returns the current function's total stack frame size.
	FrameSize() int64
}
