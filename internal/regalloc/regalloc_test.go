package regalloc

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/passes"
)

func buildLoopLike() *ir.Function {
	fn := ir.NewFunction("loop", ir.I32, nil, false)
	b := ir.NewBuilder(fn)

	head := b.NewBlock()
	body := b.NewBlock()
	exit := b.NewBlock()

	b.SetCurrentBlock(head)
	acc := b.EmitBinOp(ir.BinAdd, ir.I32, ir.ConstOperand(ir.IntConst(ir.I32, 0)), ir.ConstOperand(ir.IntConst(ir.I32, 0)))
	cond := b.EmitCmp(ir.CmpSgt, ir.ValueOperand(acc), ir.ConstOperand(ir.IntConst(ir.I32, 0)))
	b.SetCondBranch(ir.ValueOperand(cond), body.ID, exit.ID)

	b.SetCurrentBlock(body)
	next := b.EmitBinOp(ir.BinAdd, ir.I32, ir.ValueOperand(acc), ir.ConstOperand(ir.IntConst(ir.I32, 1)))
	b.SetBranch(head.ID)
	_ = next

	b.SetCurrentBlock(exit)
	ret := ir.ValueOperand(acc)
	b.SetReturn(&ret)

	return fn
}

func TestAllocateAssignsDisjointRegistersOnly(t *testing.T) {
	fn := buildLoopLike()
	lv := passes.Analyze(fn)
	available := []PhysReg{1, 2, 3}
	res := Allocate(fn, lv, available, Constraints{}, func(v ir.ValueID) bool { return true })

	busy := map[PhysReg][]passes.Interval{}
	for v, r := range res.Assigned {
		for _, iv := range lv.Intervals[v] {
			for _, other := range busy[r] {
				if iv.Overlaps(other) {
					t.Fatalf("register %d double-booked by overlapping values", r)
				}
			}
			busy[r] = append(busy[r], iv)
		}
	}
}

func TestAllocateHonorsForcedPin(t *testing.T) {
	fn := buildLoopLike()
	lv := passes.Analyze(fn)
	var pinned ir.ValueID
	for v := range lv.Intervals {
		pinned = v
		break
	}
	cons := Constraints{Forced: map[ir.ValueID]PhysReg{pinned: 9}}
	res := Allocate(fn, lv, []PhysReg{1, 2, 9}, cons, func(v ir.ValueID) bool { return true })
	if res.Assigned[pinned] != 9 {
		t.Fatalf("expected forced pin to register 9, got %d", res.Assigned[pinned])
	}
}

func TestAllocateRespectsPermanentExclusion(t *testing.T) {
	fn := buildLoopLike()
	lv := passes.Analyze(fn)
	cons := Constraints{PermanentlyExcluded: map[PhysReg]bool{1: true}}
	res := Allocate(fn, lv, []PhysReg{1}, cons, func(v ir.ValueID) bool { return true })
	if len(res.Assigned) != 0 {
		t.Fatalf("expected no assignments when the only available register is excluded, got %v", res.Assigned)
	}
}
