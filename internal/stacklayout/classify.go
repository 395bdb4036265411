package stacklayout

import (
	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/passes"
)

// accumulatorPreserving lists the opcodes spec.md §4.3 Phase 2 allows
// to flow through the per-architecture accumulator register instead of
// a stack slot, when "immediately consumed" by the very next
// instruction as its first operand.
func accumulatorPreserving(op ir.Opcode) bool {
	switch op {
	case ir.OpLoad, ir.OpBinOp, ir.OpUnaryOp, ir.OpCmp, ir.OpCast,
		ir.OpGetElementPtr, ir.OpGlobalAddr, ir.OpSelect, ir.OpLabelAddr:
		return true
	default:
		return false
	}
}

// classify performs Phase 2: walk every instruction and decide Tier 1 /
// Tier 2 / Tier 3 / TierNone (immediately consumed) membership.
func classify(fn *ir.Function, an *analysis, lv *passes.Liveness, l *Layout) {
	// "Immediately consumed": producer's result used exactly once, by
	// the textually-next instruction, as that instruction's first
	// operand, the producer is accumulator-preserving, and neither side
	// is an i128/f128 value or a copy-alias root (those need a stable
	// address).
	for _, b := range fn.Blocks {
		for i := 0; i+1 < len(b.Instrs); i++ {
			prod := b.Instrs[i]
			cons := b.Instrs[i+1]
			if !prod.HasResult() || !accumulatorPreserving(prod.Opcode) {
				continue
			}
			if prod.Type.Size() == 16 {
				continue // i128/f128 never flows through the scalar accumulator
			}
			if an.numUses[prod.Result] != 1 {
				continue
			}
			if isCopyAliasRoot(an, prod.Result) {
				continue
			}
			if len(cons.Args) == 0 || cons.Args[0].IsConst || cons.Args[0].Value != prod.Result {
				continue
			}
			l.Immediate[prod.Result] = true
		}
	}

	for v, inst := range an.isAlloca {
		if an.spansMultipleBlocks(v) {
			l.Tier[v] = Tier1
		} else {
			l.Tier[v] = Tier3 // coalescable single-block alloca
		}
		_ = inst
	}

	for v := range an.defBlocks {
		if _, isAlloca := an.isAlloca[v]; isAlloca {
			continue
		}
		if l.Immediate[v] {
			l.Tier[v] = TierNone
			continue
		}
		if fn.IsMultiDef(v) || lv.LiveAcrossBlock[v] {
			l.Tier[v] = Tier2
			continue
		}
		l.Tier[v] = Tier3
	}
}

func isCopyAliasRoot(an *analysis, v ir.ValueID) bool {
	for _, root := range an.copyAlias {
		if root == v {
			return true
		}
	}
	return false
}
