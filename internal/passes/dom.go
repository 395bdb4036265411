// Package passes implements the mid-level IR transformations that run
// between lowering and stack layout: mem2reg promotion, constant
// folding, dead-code elimination, and CFG simplification (spec.md §4.2).
//
// The reverse-postorder-first approach to dominator computation is
// grounded on wazevo's ssa.passCalculateImmediateDominators, simplified
// to the classic Cooper/Harvey/Kennedy iterative algorithm since our IR
// doesn't need the loop-detection side effect the teacher's pass folds
// in.
package passes

import "github.com/dj707chen/nativecc/internal/ir"

// DomInfo holds the per-function dominator tree, computed once and
// reused by mem2reg's phi insertion and any pass that needs dominance.
type DomInfo struct {
	idom  map[ir.BlockID]ir.BlockID
	rpo   []ir.BlockID
	order map[ir.BlockID]int // position in rpo, used by the intersect step
}

// ComputeDominators runs Cooper/Harvey/Kennecy's iterative dominance
// algorithm over fn's CFG (fn.ComputeCFG must have been called first).
func ComputeDominators(fn *ir.Function) *DomInfo {
	entry := fn.Entry()
	if entry == nil {
		return &DomInfo{idom: map[ir.BlockID]ir.BlockID{}}
	}
	rpo := reversePostorder(fn)
	order := make(map[ir.BlockID]int, len(rpo))
	for i, b := range rpo {
		order[b] = i
	}
	index := make(map[ir.BlockID]*ir.Block, len(fn.Blocks))
	for _, b := range fn.Blocks {
		index[b.ID] = b
	}

	idom := make(map[ir.BlockID]ir.BlockID, len(rpo))
	idom[entry.ID] = entry.ID
	changed := true
	for changed {
		changed = false
		for _, id := range rpo {
			if id == entry.ID {
				continue
			}
			b := index[id]
			var newIdom ir.BlockID
			set := false
			for _, p := range b.Preds {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !set {
					newIdom = p
					set = true
					continue
				}
				newIdom = intersect(idom, order, newIdom, p)
			}
			if !set {
				continue
			}
			if idom[id] != newIdom {
				idom[id] = newIdom
				changed = true
			}
		}
	}
	return &DomInfo{idom: idom, rpo: rpo, order: order}
}

func intersect(idom map[ir.BlockID]ir.BlockID, order map[ir.BlockID]int, a, b ir.BlockID) ir.BlockID {
	for a != b {
		for order[a] > order[b] {
			a = idom[a]
		}
		for order[b] > order[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(fn *ir.Function) []ir.BlockID {
	entry := fn.Entry()
	if entry == nil {
		return nil
	}
	index := make(map[ir.BlockID]*ir.Block, len(fn.Blocks))
	for _, b := range fn.Blocks {
		index[b.ID] = b
	}
	visited := make(map[ir.BlockID]bool, len(fn.Blocks))
	var post []ir.BlockID
	var visit func(ir.BlockID)
	visit = func(id ir.BlockID) {
		if visited[id] {
			return
		}
		visited[id] = true
		b := index[id]
		if b == nil {
			return
		}
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, id)
	}
	visit(entry.ID)
	// reverse
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// IDom returns the immediate dominator of b, or ir.BlockInvalid if b is
// unreachable.
func (d *DomInfo) IDom(b ir.BlockID) ir.BlockID {
	v, ok := d.idom[b]
	if !ok {
		return ir.BlockInvalid
	}
	return v
}

// DominanceFrontier computes the dominance frontier of every block,
// used by mem2reg to decide where to insert phis for a promoted alloca.
func (d *DomInfo) DominanceFrontier(fn *ir.Function) map[ir.BlockID][]ir.BlockID {
	df := make(map[ir.BlockID][]ir.BlockID)
	index := make(map[ir.BlockID]*ir.Block, len(fn.Blocks))
	for _, b := range fn.Blocks {
		index[b.ID] = b
	}
	for _, b := range fn.Blocks {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			if _, ok := d.idom[p]; !ok {
				continue
			}
			runner := p
			for runner != d.idom[b.ID] {
				if !contains(df[runner], b.ID) {
					df[runner] = append(df[runner], b.ID)
				}
				runner = d.idom[runner]
			}
		}
	}
	return df
}

func contains(s []ir.BlockID, v ir.BlockID) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
