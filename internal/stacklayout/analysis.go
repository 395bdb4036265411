package stacklayout

import "github.com/dj707chen/nativecc/internal/ir"

// analysis is the result of stack layout's Phase 1: per-value defining
// and using block sets, the multi-def set, the copy-alias map, and the
// coalescable-alloca set (spec.md §4.3 Phase 1).
type analysis struct {
	defBlocks  map[ir.ValueID]map[ir.BlockID]bool
	useBlocks  map[ir.ValueID]map[ir.BlockID]bool
	numUses    map[ir.ValueID]int
	isAlloca   map[ir.ValueID]*ir.Instruction
	// copyAlias maps a Copy's destination to its source root: the Copy
	// may share the root's slot when the source has exactly one use
	// (the Copy itself) and both are defined in the same block, and
	// neither end is register-allocated or an alloca (checked later by
	// propagateCopyAliases once Tier/register info is final).
	copyAlias map[ir.ValueID]ir.ValueID
}

func analyze(fn *ir.Function) *analysis {
	an := &analysis{
		defBlocks: map[ir.ValueID]map[ir.BlockID]bool{},
		useBlocks: map[ir.ValueID]map[ir.BlockID]bool{},
		numUses:   map[ir.ValueID]int{},
		isAlloca:  map[ir.ValueID]*ir.Instruction{},
		copyAlias: map[ir.ValueID]ir.ValueID{},
	}

	addDef := func(v ir.ValueID, b ir.BlockID) {
		if an.defBlocks[v] == nil {
			an.defBlocks[v] = map[ir.BlockID]bool{}
		}
		an.defBlocks[v][b] = true
	}
	addUse := func(v ir.ValueID, b ir.BlockID) {
		if an.useBlocks[v] == nil {
			an.useBlocks[v] = map[ir.BlockID]bool{}
		}
		an.useBlocks[v][b] = true
		an.numUses[v]++
	}

	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.HasResult() {
				addDef(in.Result, b.ID)
			}
			if in.Opcode == ir.OpAlloca {
				an.isAlloca[in.Result] = in
			}
			if in.Opcode == ir.OpPhi {
				for _, inc := range in.Incoming {
					if !inc.Value.IsConst && inc.Value.Value.Valid() {
						addUse(inc.Value.Value, inc.Block)
					}
				}
				continue
			}
			in.Uses(func(v ir.ValueID) { addUse(v, b.ID) })
		}
	}
	// Multi-def values (from phi elimination, recorded directly on the
	// function by mem2reg) extend defBlocks too.
	for v, blocks := range fn.MultiDefBlocksAll() {
		for _, blk := range blocks {
			addDef(v, blk)
		}
	}

	// Copy-alias candidates: Copy whose source has exactly one use (this
	// Copy) and whose source and destination are both defined in the
	// copy's own block.
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Opcode != ir.OpCopy || in.Args[0].IsConst {
				continue
			}
			src := in.Args[0].Value
			if an.numUses[src] != 1 {
				continue
			}
			srcDefBlocks := an.defBlocks[src]
			if len(srcDefBlocks) != 1 || !srcDefBlocks[b.ID] {
				continue
			}
			an.copyAlias[in.Result] = src
		}
	}
	return an
}

// spansMultipleBlocks reports whether v's defining+using block set has
// more than one member.
func (an *analysis) spansMultipleBlocks(v ir.ValueID) bool {
	blocks := map[ir.BlockID]bool{}
	for b := range an.defBlocks[v] {
		blocks[b] = true
	}
	for b := range an.useBlocks[v] {
		blocks[b] = true
	}
	return len(blocks) > 1
}

// singleBlockOf returns the sole block v is confined to, when
// spansMultipleBlocks is false.
func (an *analysis) singleBlockOf(v ir.ValueID) (ir.BlockID, bool) {
	var only ir.BlockID
	set := false
	for b := range an.defBlocks[v] {
		if set && only != b {
			return 0, false
		}
		only, set = b, true
	}
	for b := range an.useBlocks[v] {
		if set && only != b {
			return 0, false
		}
		only, set = b, true
	}
	return only, set
}
