package arm64_test

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/codegen/arm64"
	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/regalloc"
	"github.com/dj707chen/nativecc/internal/stacklayout"
)

func buildLoop() *ir.Function {
	fn := ir.NewFunction("f", ir.I32, []ir.Param{{Name: "n", Type: ir.I32}}, false)
	b := ir.NewBuilder(fn)
	entry := b.NewBlock()
	loop := b.NewBlock()
	exit := b.NewBlock()
	b.SetCurrentBlock(entry)

	n := fn.AllocateValue(ir.I32, entry.ID, nil)
	b.SetBranch(loop.ID)

	b.SetCurrentBlock(loop)
	dec := b.EmitBinOp(ir.BinSub, ir.I32, ir.ValueOperand(n), ir.ConstOperand(ir.IntConst(ir.I32, 1)))
	cmp := b.EmitCmp(ir.CmpSgt, ir.ValueOperand(dec), ir.ConstOperand(ir.IntConst(ir.I32, 0)))
	b.SetCondBranch(ir.ValueOperand(cmp), loop.ID, exit.ID)

	b.SetCurrentBlock(exit)
	ret := ir.ValueOperand(dec)
	b.SetReturn(&ret)

	fn.ComputeCFG()
	return fn
}

func TestLoopLowersToNonEmptyCode(t *testing.T) {
	fn := buildLoop()
	layout := stacklayout.Compute(fn)
	available := make([]regalloc.PhysReg, len(arm64.CalleeSaved))
	for i, r := range arm64.CalleeSaved {
		available[i] = regalloc.PhysReg(r)
	}
	regs := regalloc.Allocate(fn, layout.Liveness, available, regalloc.Constraints{}, func(ir.ValueID) bool { return true })

	comp := backend.NewCompiler(arm64.New())
	code, _, err := comp.CompileWithAnalyses(fn, layout, regs)
	if err != nil {
		t.Fatalf("CompileWithAnalyses: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty code")
	}
	if len(code)%4 != 0 {
		t.Errorf("AArch64 code length %d is not a multiple of the fixed 4-byte instruction width", len(code))
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
	available := make([]regalloc.PhysReg, len(arm64.CalleeSaved))
	for i, r := range arm64.CalleeSaved {
		available[i] = regalloc.PhysReg(r)
	}
	regs := regalloc.Allocate(fn, layout.Liveness, available, regalloc.Constraints{}, func(ir.ValueID) bool { return true })

	comp := backend.NewCompiler(arm64.New())
	code, _, err := comp.CompileWithAnalyses(fn, layout, regs)
	if err != nil {
		t.Fatalf("CompileWithAnalyses: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty code")
	}
	if len(code)%4 != 0 {
		t.Errorf("AArch64 code length %d is not a multiple of the fixed 4-byte instruction width", len(code))
	}
}

var _ backend.Machine = (*arm64.Machine)(nil)
