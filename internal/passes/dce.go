package passes

import "github.com/dj707chen/nativecc/internal/ir"

// DCE removes instructions whose result is never used and which carry
// no side effect (spec.md §4.2). It repeats whole-function forward
// sweeps until one removes nothing: each sweep counts uses once up
// front, so a producer whose last consumer was removed in one sweep is
// removed by the next.
func DCE(fn *ir.Function) {
	for {
		if !dceOnePass(fn) {
			return
		}
	}
}

func dceOnePass(fn *ir.Function) bool {
	uses := countUses(fn)
	changed := false
	for _, b := range fn.Blocks {
		var kept []*ir.Instruction
		for _, in := range b.Instrs {
			if in.HasResult() && uses[in.Result] == 0 && !in.SideEffecting() {
				changed = true
				continue
			}
			kept = append(kept, in)
		}
		b.Instrs = kept
	}
	return changed
}

func countUses(fn *ir.Function) map[ir.ValueID]int {
	uses := map[ir.ValueID]int{}
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			in.Uses(func(v ir.ValueID) { uses[v]++ })
		}
	}
	return uses
}
