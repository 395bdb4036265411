package riscv64_test

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/codegen/riscv64"
	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/regalloc"
	"github.com/dj707chen/nativecc/internal/stacklayout"
)

func buildMulAndCast() *ir.Function {
	fn := ir.NewFunction("f", ir.I64, []ir.Param{{Name: "a", Type: ir.I32}, {Name: "b", Type: ir.I32}}, false)
	b := ir.NewBuilder(fn)
	entry := b.NewBlock()
	b.SetCurrentBlock(entry)

	a := fn.AllocateValue(ir.I32, entry.ID, nil)
	c := fn.AllocateValue(ir.I32, entry.ID, nil)
	prod := b.EmitBinOp(ir.BinMul, ir.I32, ir.ValueOperand(a), ir.ValueOperand(c))
	widened := b.EmitCast(ir.I64, ir.I32, ir.ValueOperand(prod))
	ret := ir.ValueOperand(widened)
	b.SetReturn(&ret)

	fn.ComputeCFG()
	return fn
}

func TestMulAndCastLowersToNonEmptyCode(t *testing.T) {
	fn := buildMulAndCast()
	layout := stacklayout.Compute(fn)
	available := make([]regalloc.PhysReg, len(riscv64.CalleeSaved))
	for i, r := range riscv64.CalleeSaved {
		available[i] = regalloc.PhysReg(r)
	}
	regs := regalloc.Allocate(fn, layout.Liveness, available, regalloc.Constraints{}, func(ir.ValueID) bool { return true })

	comp := backend.NewCompiler(riscv64.New())
	code, _, err := comp.CompileWithAnalyses(fn, layout, regs)
	if err != nil {
		t.Fatalf("CompileWithAnalyses: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty code")
	}
	if len(code)%4 != 0 {
		t.Errorf("uncompressed RV64 code length %d is not a multiple of 4", len(code))
	}
}

// buildComputedGoto exercises Scenario D (computed goto): the entry
// block takes the address of target via LabelAddr, then jumps through
// it with IndirectBranch rather than a direct Branch, the way `void
// *p = &&target; goto *p;` lowers.
func buildComputedGoto() *ir.Function {
	fn := ir.NewFunction("f", ir.I32, nil, false)
	b := ir.NewBuilder(fn)
	entry := b.NewBlock()
	target := b.NewBlock()
	b.SetCurrentBlock(entry)

	addr := &ir.Instruction{Opcode: ir.OpLabelAddr, Type: ir.Ptr, Target: target.ID}
	addr.Result = fn.AllocateValue(ir.Ptr, entry.ID, addr)
	entry.Append(addr)

	branch := &ir.Instruction{
		Opcode:          ir.OpIndirectBranch,
		Args:            []ir.Operand{ir.ValueOperand(addr.Result)},
		PossibleTargets: []ir.BlockID{target.ID},
	}
	entry.Append(branch)

	b.SetCurrentBlock(target)
	ret := ir.ConstOperand(ir.IntConst(ir.I32, 7))
	b.SetReturn(&ret)

	fn.ComputeCFG()
	return fn
}

func TestComputedGotoLowersToNonEmptyCode(t *testing.T) {
	fn := buildComputedGoto()
	layout := stacklayout.Compute(fn)
	available := make([]regalloc.PhysReg, len(riscv64.CalleeSaved))
	for i, r := range riscv64.CalleeSaved {
		available[i] = regalloc.PhysReg(r)
	}
	regs := regalloc.Allocate(fn, layout.Liveness, available, regalloc.Constraints{}, func(ir.ValueID) bool { return true })

	comp := backend.NewCompiler(riscv64.New())
	code, _, err := comp.CompileWithAnalyses(fn, layout, regs)
	if err != nil {
		t.Fatalf("CompileWithAnalyses: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty code")
	}
	if len(code)%4 != 0 {
		t.Errorf("uncompressed RV64 code length %d is not a multiple of 4", len(code))
	}
}

var _ backend.Machine = (*riscv64.Machine)(nil)
