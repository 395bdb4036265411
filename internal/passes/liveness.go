package passes

import "github.com/dj707chen/nativecc/internal/ir"

// Position is a dense instruction-position index within one function,
// assigned in block layout order, used to express live intervals as a
// half-open [Def, LastUse) range (spec.md GLOSSARY: "Liveness
// interval").
type Position int

// Liveness holds the results of a whole-function liveness analysis,
// shared by stack layout's Tier 2 packing (spec.md §4.3 Phase 4) and
// the register allocator (spec.md §4.4).
type Liveness struct {
	// Order lists blocks in the layout order positions are assigned in.
	Order []ir.BlockID
	// BlockStart/BlockEnd give the position range covered by a block.
	BlockStart, BlockEnd map[ir.BlockID]Position
	// Intervals maps a value to the union of its live ranges, expressed
	// as a sorted, non-overlapping list of [start, end) pairs — more
	// than one segment can occur when a value has multiple definitions
	// (phi-materialized multi-def values, spec.md §4.3 Phase 1).
	Intervals map[ir.ValueID][]Interval
	// LiveAcrossBlock reports, for each value, whether it is live into
	// more than one block (the Tier 2 classification test, spec.md
	// §4.3 Phase 2).
	LiveAcrossBlock map[ir.ValueID]bool
}

// Interval is a half-open live range [Start, End).
type Interval struct {
	Start, End Position
}

// Overlaps reports whether two intervals share any position.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Analyze computes whole-function liveness via the standard iterative
// backward data-flow fixpoint (LiveIn[b] = Uses[b] ∪ (LiveOut[b] -
// Defs[b])), attributing phi operand uses to their source predecessor
// rather than to the block containing the phi (spec.md §4.3 Phase 1).
func Analyze(fn *ir.Function) *Liveness {
	fn.ComputeCFG()
	order := layoutOrder(fn)
	blockStart := map[ir.BlockID]Position{}
	blockEnd := map[ir.BlockID]Position{}
	byID := map[ir.BlockID]*ir.Block{}
	for _, b := range fn.Blocks {
		byID[b.ID] = b
	}

	var cursor Position
	for _, id := range order {
		blockStart[id] = cursor
		b := byID[id]
		cursor += Position(len(b.Instrs))
		blockEnd[id] = cursor
	}

	uses := map[ir.BlockID]map[ir.ValueID]bool{}
	defs := map[ir.BlockID]map[ir.ValueID]bool{}
	for _, id := range order {
		uses[id] = map[ir.ValueID]bool{}
		defs[id] = map[ir.ValueID]bool{}
	}
	for _, id := range order {
		b := byID[id]
		for _, in := range b.Instrs {
			if in.HasResult() {
				defs[id][in.Result] = true
			}
			if in.Opcode == ir.OpPhi {
				for _, inc := range in.Incoming {
					if !inc.Value.IsConst && inc.Value.Value.Valid() {
						uses[inc.Block][inc.Value.Value] = true
					}
				}
				continue
			}
			in.Uses(func(v ir.ValueID) {
				if !defs[id][v] {
					uses[id][v] = true
				}
			})
		}
	}

	liveIn := map[ir.BlockID]map[ir.ValueID]bool{}
	liveOut := map[ir.BlockID]map[ir.ValueID]bool{}
	for _, id := range order {
		liveIn[id] = map[ir.ValueID]bool{}
		liveOut[id] = map[ir.ValueID]bool{}
	}
	changed := true
	for changed {
		changed = false
		for i := len(order) - 1; i >= 0; i-- {
			id := order[i]
			b := byID[id]
			out := map[ir.ValueID]bool{}
			for _, s := range b.Succs {
				for v := range liveIn[s] {
					out[v] = true
				}
			}
			in := map[ir.ValueID]bool{}
			for v := range uses[id] {
				in[v] = true
			}
			for v := range out {
				if !defs[id][v] {
					in[v] = true
				}
			}
			if !sameSet(in, liveIn[id]) {
				liveIn[id] = in
				changed = true
			}
			if !sameSet(out, liveOut[id]) {
				liveOut[id] = out
				changed = true
			}
		}
	}

	intervals := map[ir.ValueID][]Interval{}
	liveAcross := map[ir.ValueID]bool{}
	for _, id := range order {
		start, end := blockStart[id], blockEnd[id]
		for v := range liveIn[id] {
			extendInterval(intervals, v, start, end)
		}
		for v := range liveOut[id] {
			extendInterval(intervals, v, start, end)
			liveAcross[v] = true
		}
	}
	return &Liveness{
		Order: order, BlockStart: blockStart, BlockEnd: blockEnd,
		Intervals: intervals, LiveAcrossBlock: liveAcross,
	}
}

func extendInterval(m map[ir.ValueID][]Interval, v ir.ValueID, start, end Position) {
	ivs := m[v]
	for i := range ivs {
		if start <= ivs[i].End && end >= ivs[i].Start {
			if start < ivs[i].Start {
				ivs[i].Start = start
			}
			if end > ivs[i].End {
				ivs[i].End = end
			}
			m[v] = ivs
			return
		}
	}
	m[v] = append(ivs, Interval{Start: start, End: end})
}

func sameSet(a, b map[ir.ValueID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}

// layoutOrder returns blocks in their current program order; block
// layout reordering (spec.md component list mentions pass_block_layout
// style CFG layout upstream of this core) is out of scope here, so
// source order is also the liveness position order.
func layoutOrder(fn *ir.Function) []ir.BlockID {
	order := make([]ir.BlockID, len(fn.Blocks))
	for i, b := range fn.Blocks {
		order[i] = b.ID
	}
	return order
}

