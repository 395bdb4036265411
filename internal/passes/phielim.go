package passes

import "github.com/dj707chen/nativecc/internal/ir"

// PhiElim replaces every phi with a set of copies inserted at the end
// of each predecessor block (just before the terminator), materializing
// the phi's result as a single multi-defined value (spec.md §3 "phi
// elimination"; Function.MarkMultiDef records the extra defining
// blocks this produces, consumed by stack layout's Tier 2
// classification). Codegen (internal/codegen/*) never lowers OpPhi
// directly; it only runs after this pass.
func PhiElim(fn *ir.Function) {
	fn.ComputeCFG()
	for _, b := range fn.Blocks {
		phis := b.Phis()
		if len(phis) == 0 {
			continue
		}
		for _, phi := range phis {
			result := phi.Result
			for _, inc := range phi.Incoming {
				pred := fn.BlockByID(inc.Block)
				if pred == nil {
					continue
				}
				insertCopyBeforeTerminator(pred, result, inc.Value)
				fn.MarkMultiDef(result, inc.Block)
			}
		}
		b.Instrs = b.Instrs[len(phis):]
	}
}

func insertCopyBeforeTerminator(b *ir.Block, dst ir.ValueID, src ir.Operand) {
	cp := &ir.Instruction{Opcode: ir.OpCopy, Result: dst, Args: []ir.Operand{src}}
	n := len(b.Instrs)
	if n > 0 && ir.IsTerminator(b.Instrs[n-1].Opcode) {
		b.Instrs = append(b.Instrs[:n-1], append([]*ir.Instruction{cp}, b.Instrs[n-1])...)
	} else {
		b.Instrs = append(b.Instrs, cp)
	}
}
