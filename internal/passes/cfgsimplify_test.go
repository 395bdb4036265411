package passes

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/ir"
)

// buildDiamondWithEmptyMiddle builds B0 -> B1 -> B2 where B1 is empty,
// and B2 has a phi with incoming (v, B1) — spec.md §8 Scenario F.
func buildDiamondWithEmptyMiddle() (*ir.Function, ir.ValueID) {
	fn := ir.NewFunction("f", ir.I32, nil, false)
	b := ir.NewBuilder(fn)

	b0 := b.NewBlock()
	b1 := b.NewBlock()
	b2 := b.NewBlock()

	b.SetCurrentBlock(b0)
	v := b.EmitBinOp(ir.BinAdd, ir.I32, ir.ConstOperand(ir.IntConst(ir.I32, 1)), ir.ConstOperand(ir.IntConst(ir.I32, 2)))
	b.SetBranch(b1.ID)

	b.SetCurrentBlock(b1)
	b.SetBranch(b2.ID)

	b.SetCurrentBlock(b2)
	phi := b.NewPhi(b2, ir.I32)
	ir.AddIncoming(phi, b1.ID, ir.ValueOperand(v))
	ret := ir.ValueOperand(phi.Result)
	b.SetReturn(&ret)

	return fn, v
}

func TestCFGSimplifyScenarioF(t *testing.T) {
	fn, v := buildDiamondWithEmptyMiddle()
	CFGSimplify(fn)

	if len(fn.Blocks) != 2 {
		t.Fatalf("expected B1 removed, got %d blocks", len(fn.Blocks))
	}
	b0, b2 := fn.Blocks[0], fn.Blocks[1]
	term := b0.Terminator()
	if term.Opcode != ir.OpBranch || term.Target != b2.ID {
		t.Fatalf("expected B0 -> B2 directly, got %+v", term)
	}
	phis := b2.Phis()
	if len(phis) != 1 {
		t.Fatalf("expected one phi to survive, got %d", len(phis))
	}
	if len(phis[0].Incoming) != 1 || phis[0].Incoming[0].Block != b0.ID || phis[0].Incoming[0].Value.Value != v {
		t.Fatalf("expected phi incoming (v, B0), got %+v", phis[0].Incoming)
	}
}

func TestCFGSimplifyIdempotent(t *testing.T) {
	fn, _ := buildDiamondWithEmptyMiddle()
	CFGSimplify(fn)
	first := dumpBlocks(fn)
	CFGSimplify(fn)
	second := dumpBlocks(fn)
	if first != second {
		t.Fatalf("CFG simplification not idempotent:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func dumpBlocks(fn *ir.Function) string {
	s := ""
	for _, b := range fn.Blocks {
		s += b.ID.String() + ":"
		for _, in := range b.Instrs {
			s += " " + in.Opcode.String()
		}
		s += "\n"
	}
	return s
}
