// Package regalloc assigns a subset of SSA values to callee-saved
// physical registers (spec.md §4.4), reusing internal/passes' liveness
// intervals (the same analysis stack layout's Tier 2 packing consumes)
// rather than recomputing them.
package regalloc

import (
	"sort"

	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/passes"
)

// PhysReg is an architecture-specific physical register id; each
// codegen package defines its own numbering and passes the callee-
// saved subset in as Available.
type PhysReg int

// Result is the outcome of one function's register allocation.
type Result struct {
	Assigned map[ir.ValueID]PhysReg
}

// Constraints describes the per-function exclusions inline assembly
// imposes (spec.md §4.4 "Clobber handling"): PermanentlyExcluded
// registers a "memory"-unrelated named clobber rules out everywhere in
// the function; Forced pins specific values to specific registers
// ("{r8}" constraints).
type Constraints struct {
	PermanentlyExcluded map[PhysReg]bool
	Forced              map[ir.ValueID]PhysReg
}

// CandidateFunc reports whether v is even eligible for register assignment:
// i128/f128 values are never register-allocated (they need memory
// pairs), and neither are dead parameters or address-taken values
// (spec.md §4.4).
type CandidateFunc func(v ir.ValueID) bool

// loopBlocks returns the set of blocks inside a natural loop, used (via
// inLoop) to weight the use-density ranking. Lacking a full loop-nesting
// forest in this core, we approximate with the standard back-edge
// test: a block is "in a loop" if any of its successors dominates it.
func loopBlocks(fn *ir.Function, dom *passes.DomInfo) map[ir.BlockID]bool {
	fn.ComputeCFG()
	loop := map[ir.BlockID]bool{}
	for _, b := range fn.Blocks {
		for _, s := range b.Succs {
			if dominates(dom, s, b.ID) {
				loop[b.ID] = true
			}
		}
	}
	return loop
}

func dominates(dom *passes.DomInfo, a, b ir.BlockID) bool {
	cur := b
	for i := 0; i < 1<<20; i++ {
		if cur == a {
			return true
		}
		next := dom.IDom(cur)
		if next == cur || !next.Valid() {
			return false
		}
		cur = next
	}
	return false
}

type rankedValue struct {
	v         ir.ValueID
	intervals []passes.Interval
	rank      float64
}

// Allocate ranks candidate values by use-density (with loop and
// copy-coalescing bonuses) and greedily assigns the first available
// physical register whose intervals don't conflict, skipping anything
// PermanentlyExcluded by an inline-asm clobber and honoring Forced
// pins.
func Allocate(fn *ir.Function, lv *passes.Liveness, available []PhysReg, cons Constraints, isCandidate CandidateFunc) *Result {
	dom := ComputeDominatorsFor(fn)
	loop := loopBlocks(fn, dom)
	uses := countUsesPerValue(fn)
	copyEnds := copyCoalescingBonusSet(fn)

	var ranked []rankedValue
	for v, ivs := range lv.Intervals {
		if !isCandidate(v) {
			continue
		}
		length := 0
		for _, iv := range ivs {
			length += int(iv.End - iv.Start)
		}
		if length == 0 {
			continue
		}
		density := float64(uses[v]) / float64(length)
		bonus := 0.0
		if inLoop(ivs, lv, loop) {
			bonus += 1.0
		}
		if copyEnds[v] {
			bonus += 0.5
		}
		ranked = append(ranked, rankedValue{v: v, intervals: ivs, rank: density + bonus})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].rank > ranked[j].rank })

	assigned := map[ir.ValueID]PhysReg{}
	busy := map[PhysReg][]passes.Interval{}
	for v, reg := range cons.Forced {
		assigned[v] = reg
		busy[reg] = append(busy[reg], lv.Intervals[v]...)
	}
	_ = reg0unused
	for _, rv := range ranked {
		if _, already := assigned[rv.v]; already {
			continue
		}
		for _, r := range available {
			if cons.PermanentlyExcluded[r] {
				continue
			}
			if conflictsAny(busy[r], rv.intervals) {
				continue
			}
			assigned[rv.v] = r
			busy[r] = append(busy[r], rv.intervals...)
			break
		}
	}
	return &Result{Assigned: assigned}
}

const reg0unused = 0

func conflictsAny(existing, next []passes.Interval) bool {
	for _, a := range existing {
		for _, b := range next {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

func inLoop(ivs []passes.Interval, lv *passes.Liveness, loop map[ir.BlockID]bool) bool {
	for b, inLp := range loop {
		if !inLp {
			continue
		}
		start, end := lv.BlockStart[b], lv.BlockEnd[b]
		for _, iv := range ivs {
			if iv.Overlaps(passes.Interval{Start: start, End: end}) {
				return true
			}
		}
	}
	return false
}

func countUsesPerValue(fn *ir.Function) map[ir.ValueID]int {
	uses := map[ir.ValueID]int{}
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			in.Uses(func(v ir.ValueID) { uses[v]++ })
		}
	}
	return uses
}

// copyCoalescingBonusSet returns the values that are either the source
// or destination of a Copy, which get a ranking bonus since assigning
// them the same register (or any register at all) helps the peephole
// pass coalesce the Copy away entirely.
func copyCoalescingBonusSet(fn *ir.Function) map[ir.ValueID]bool {
	set := map[ir.ValueID]bool{}
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Opcode != ir.OpCopy {
				continue
			}
			set[in.Result] = true
			if !in.Args[0].IsConst {
				set[in.Args[0].Value] = true
			}
		}
	}
	return set
}

// ComputeDominatorsFor is a thin re-export so regalloc doesn't need
// internal/passes' unexported dominator internals; passes.ComputeDominators
// is already exported.
func ComputeDominatorsFor(fn *ir.Function) *passes.DomInfo {
	fn.ComputeCFG()
	return passes.ComputeDominators(fn)
}
