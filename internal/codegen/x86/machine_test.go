package x86_test

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/codegen/x86"
	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/regalloc"
	"github.com/dj707chen/nativecc/internal/stacklayout"
)

func buildAddAndBranch() *ir.Function {
	fn := ir.NewFunction("f", ir.I32, []ir.Param{{Name: "a", Type: ir.I32}, {Name: "b", Type: ir.I32}}, false)
	b := ir.NewBuilder(fn)
	entry := b.NewBlock()
	thenB := b.NewBlock()
	elseB := b.NewBlock()
	b.SetCurrentBlock(entry)

	a := fn.AllocateValue(ir.I32, entry.ID, nil)
	c := fn.AllocateValue(ir.I32, entry.ID, nil)
	cmp := b.EmitCmp(ir.CmpSlt, ir.ValueOperand(a), ir.ValueOperand(c))
	b.SetCondBranch(ir.ValueOperand(cmp), thenB.ID, elseB.ID)

	b.SetCurrentBlock(thenB)
	sum := b.EmitBinOp(ir.BinAdd, ir.I32, ir.ValueOperand(a), ir.ValueOperand(c))
	retSum := ir.ValueOperand(sum)
	b.SetReturn(&retSum)

	b.SetCurrentBlock(elseB)
	diff := b.EmitBinOp(ir.BinSub, ir.I32, ir.ValueOperand(a), ir.ValueOperand(c))
	retDiff := ir.ValueOperand(diff)
	b.SetReturn(&retDiff)

	fn.ComputeCFG()
	return fn
}

func compile(t *testing.T, fn *ir.Function) []byte {
	t.Helper()
	layout := stacklayout.Compute(fn)
	available := make([]regalloc.PhysReg, len(x86.CalleeSaved))
	for i, r := range x86.CalleeSaved {
		available[i] = regalloc.PhysReg(r)
	}
	regs := regalloc.Allocate(fn, layout.Liveness, available, regalloc.Constraints{}, func(ir.ValueID) bool { return true })
	comp := backend.NewCompiler(x86.New())
	code, _, err := comp.CompileWithAnalyses(fn, layout, regs)
	if err != nil {
		t.Fatalf("CompileWithAnalyses: %v", err)
	}
	return code
}

func TestCondBranchLowersToNonEmptyCode(t *testing.T) {
	code := compile(t, buildAddAndBranch())
	if len(code) == 0 {
		t.Fatal("expected non-empty code")
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
	code := compile(t, buildComputedGoto())
	if len(code) == 0 {
		t.Fatal("expected non-empty code")
	}
}

func TestMachineResetProducesDeterministicLength(t *testing.T) {
	fn := buildAddAndBranch()
	layout := stacklayout.Compute(fn)
	available := make([]regalloc.PhysReg, len(x86.CalleeSaved))
	for i, r := range x86.CalleeSaved {
		available[i] = regalloc.PhysReg(r)
	}
	regs := regalloc.Allocate(fn, layout.Liveness, available, regalloc.Constraints{}, func(ir.ValueID) bool { return true })

	mach := x86.New()
	comp := backend.NewCompiler(mach)
	code1, _, err := comp.CompileWithAnalyses(fn, layout, regs)
	if err != nil {
		t.Fatalf("first compile: %v", err)
	}
	comp.Reset()
	code2, _, err := comp.CompileWithAnalyses(fn, layout, regs)
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if len(code1) != len(code2) {
		t.Errorf("non-deterministic code length across Reset: %d vs %d", len(code1), len(code2))
	}
}

var _ backend.Machine = (*x86.Machine)(nil)
