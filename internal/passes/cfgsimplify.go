package passes

import "github.com/dj707chen/nativecc/internal/ir"

// maxChainDepth bounds jump-chain threading (spec.md §4.2:
// "MAX_CHAIN_DEPTH = 32").
const maxChainDepth = 32

// CFGSimplify runs the three CFG cleanups to a fixpoint: collapsing a
// CondBranch whose arms agree, threading empty-block jump chains with
// phi fix-up, and removing blocks unreachable from the entry. Running
// it twice on an already-simplified function is a no-op (spec.md §8's
// idempotence property), since each sub-pass only ever rewrites a
// pattern it fully eliminates.
func CFGSimplify(fn *ir.Function) {
	for {
		fn.ComputeCFG()
		changed := collapseCondBranches(fn)
		fn.ComputeCFG()
		changed = threadJumpChains(fn) || changed
		fn.ComputeCFG()
		changed = removeUnreachableBlocks(fn) || changed
		if !changed {
			return
		}
	}
}

func collapseCondBranches(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term == nil || term.Opcode != ir.OpCondBranch {
			continue
		}
		if term.TrueTarget == term.FalseTarget {
			term.Opcode = ir.OpBranch
			term.Target = term.TrueTarget
			term.Args = nil
			changed = true
		}
	}
	return changed
}

// threadJumpChains rewrites a branch to an empty block B (which itself
// unconditionally branches to C) into a direct branch to C, fixing up
// C's phis to credit the original predecessor instead of B.
func threadJumpChains(fn *ir.Function) bool {
	byID := make(map[ir.BlockID]*ir.Block, len(fn.Blocks))
	for _, b := range fn.Blocks {
		byID[b.ID] = b
	}
	isEmptyJump := func(b *ir.Block) (ir.BlockID, bool) {
		if len(b.Phis()) > 0 {
			return 0, false
		}
		if len(b.Instrs) != 1 {
			return 0, false
		}
		term := b.Instrs[0]
		if term.Opcode != ir.OpBranch {
			return 0, false
		}
		return term.Target, true
	}
	resolve := func(from ir.BlockID) (ir.BlockID, bool) {
		seen := map[ir.BlockID]bool{from: true}
		cur := from
		moved := false
		for depth := 0; depth < maxChainDepth; depth++ {
			blk := byID[cur]
			if blk == nil {
				break
			}
			next, ok := isEmptyJump(blk)
			if !ok {
				break
			}
			if seen[next] {
				break // cycle of empty jump blocks
			}
			seen[next] = true
			cur = next
			moved = true
		}
		return cur, moved
	}

	changed := false
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		rewrite := func(target *ir.BlockID) {
			if !target.Valid() {
				return
			}
			final, moved := resolve(*target)
			if !moved {
				return
			}
			orig := *target
			*target = final
			fixUpPhis(byID[final], orig, b.ID)
			changed = true
		}
		switch term.Opcode {
		case ir.OpBranch:
			rewrite(&term.Target)
		case ir.OpCondBranch:
			rewrite(&term.TrueTarget)
			rewrite(&term.FalseTarget)
		case ir.OpSwitch:
			for i := range term.Cases {
				rewrite(&term.Cases[i].Target)
			}
			rewrite(&term.DefaultTarget)
		}
	}
	return changed
}

// fixUpPhis adds, for each phi in dest that has an incoming value from
// oldPred, an additional incoming entry crediting newPred with the same
// value — unless dest already has an entry for newPred (spec.md §4.2).
func fixUpPhis(dest *ir.Block, oldPred, newPred ir.BlockID) {
	if dest == nil {
		return
	}
	for _, phi := range dest.Phis() {
		var val ir.Operand
		found := false
		already := false
		for _, in := range phi.Incoming {
			if in.Block == oldPred {
				val, found = in.Value, true
			}
			if in.Block == newPred {
				already = true
			}
		}
		if found && !already {
			ir.AddIncoming(phi, newPred, val)
		}
	}
}

// removeUnreachableBlocks drops blocks not reachable from the entry
// (via control flow, LabelAddr targets, or InlineAsm goto labels) and
// strips any phi incoming entries that named a removed predecessor.
func removeUnreachableBlocks(fn *ir.Function) bool {
	reachable := fn.ReachableFromEntry()
	var kept []*ir.Block
	removed := map[ir.BlockID]bool{}
	for _, b := range fn.Blocks {
		if reachable[b.ID] {
			kept = append(kept, b)
		} else {
			removed[b.ID] = true
		}
	}
	if len(removed) == 0 {
		return false
	}
	for _, b := range kept {
		for pred := range removed {
			b.RemovePhiIncoming(pred)
		}
	}
	fn.Blocks = kept
	return true
}
