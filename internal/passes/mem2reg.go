package passes

import "github.com/dj707chen/nativecc/internal/ir"

// Mem2Reg promotes non-escaping allocas to SSA phi/value chains
// (spec.md §4.2). An alloca escapes the moment its pointer value is
// observed anywhere other than as the pointer operand of a Load or the
// pointer operand of a Store: as a Call/CallIndirect argument, a Cast
// source, a Phi incoming value, a terminator operand, the *value*
// operand of a Store, inline asm, atomics, or any BinOp/Cmp/Select.
func Mem2Reg(fn *ir.Function) {
	fn.ComputeCFG()
	candidates := findPromotable(fn)
	if len(candidates) == 0 {
		return
	}
	dom := ComputeDominators(fn)
	df := dom.DominanceFrontier(fn)

	for alloca, info := range candidates {
		promoteOne(fn, alloca, info, df)
	}
	removeDeadAllocas(fn, candidates)
}

type allocaInfo struct {
	typ         ir.Type
	defBlocks   map[ir.BlockID]bool
	loads       []*ir.Instruction
	stores      []*ir.Instruction
}

// findPromotable scans every Alloca and determines which ones never
// escape, returning their load/store sites for renaming.
func findPromotable(fn *ir.Function) map[ir.ValueID]*allocaInfo {
	allocas := map[ir.ValueID]*allocaInfo{}
	escaped := map[ir.ValueID]bool{}

	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Opcode == ir.OpAlloca {
				// Scalars only: aggregate allocas whose address is taken
				// by GEP remain address-taken by construction and are
				// naturally excluded below once a GEP use is observed.
				allocas[in.Result] = &allocaInfo{typ: in.ElemType, defBlocks: map[ir.BlockID]bool{}}
			}
		}
	}
	if len(allocas) == 0 {
		return nil
	}

	markEscape := func(v ir.ValueID) {
		if _, ok := allocas[v]; ok {
			escaped[v] = true
		}
	}

	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			switch in.Opcode {
			case ir.OpLoad:
				if p := operandValue(in.Args[0]); p.Valid() {
					if info, ok := allocas[p]; ok && !in.Args[0].IsConst {
						info.loads = append(info.loads, in)
						continue
					}
				}
			case ir.OpStore:
				ptr := in.Args[0]
				val := in.Args[1]
				if !ptr.IsConst {
					if info, ok := allocas[ptr.Value]; ok {
						info.stores = append(info.stores, in)
						info.defBlocks[b.ID] = true
					}
				}
				if !val.IsConst {
					markEscape(val.Value)
				}
				continue
			case ir.OpAlloca:
				continue
			}
			in.Uses(markEscape)
		}
	}
	for v := range escaped {
		delete(allocas, v)
	}
	return allocas
}

func operandValue(o ir.Operand) ir.ValueID {
	if o.IsConst {
		return ir.ValueInvalid
	}
	return o.Value
}

// promoteOne renames loads/stores of one alloca to direct SSA value
// references, inserting phis at the iterated dominance frontier of its
// defining blocks.
func promoteOne(fn *ir.Function, alloca ir.ValueID, info *allocaInfo, df map[ir.BlockID][]ir.BlockID) {
	// Iterated dominance frontier: blocks needing a phi for this alloca.
	needsPhi := map[ir.BlockID]bool{}
	worklist := make([]ir.BlockID, 0, len(info.defBlocks))
	for b := range info.defBlocks {
		worklist = append(worklist, b)
	}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, f := range df[b] {
			if !needsPhi[f] {
				needsPhi[f] = true
				worklist = append(worklist, f)
			}
		}
	}

	blockByID := make(map[ir.BlockID]*ir.Block, len(fn.Blocks))
	for _, b := range fn.Blocks {
		blockByID[b.ID] = b
	}

	phis := make(map[ir.BlockID]*ir.Instruction, len(needsPhi))
	for b := range needsPhi {
		blk := blockByID[b]
		in := &ir.Instruction{Opcode: ir.OpPhi, Type: info.typ}
		in.Result = fn.AllocateValue(info.typ, blk.ID, in)
		blk.AppendPhi(in)
		phis[b] = in
		fn.MarkMultiDef(in.Result, b)
	}

	// Renaming: a single forward dominator-tree walk carrying the
	// current reaching definition of the alloca down each path.
	current := map[ir.BlockID]ir.Operand{}
	entry := fn.Entry()
	var walk func(b ir.BlockID, reaching ir.Operand, visited map[ir.BlockID]bool)
	walk = func(b ir.BlockID, reaching ir.Operand, visited map[ir.BlockID]bool) {
		if visited[b] {
			return
		}
		visited[b] = true
		blk := blockByID[b]
		if phi, ok := phis[b]; ok {
			reaching = ir.ValueOperand(phi.Result)
		}
		var newInstrs []*ir.Instruction
		for _, in := range blk.Instrs {
			switch {
			case in.Opcode == ir.OpLoad && !in.Args[0].IsConst && in.Args[0].Value == alloca:
				replaceAllUses(fn, in.Result, reaching)
				continue // drop the load
			case in.Opcode == ir.OpStore && !in.Args[0].IsConst && in.Args[0].Value == alloca:
				reaching = in.Args[1]
				continue // drop the store
			}
			newInstrs = append(newInstrs, in)
		}
		blk.Instrs = newInstrs
		current[b] = reaching

		for _, s := range blk.Succs {
			sblk := blockByID[s]
			if phi, ok := phis[s]; ok {
				ir.AddIncoming(phi, b, reaching)
			}
			_ = sblk
			walk(s, reaching, visited)
		}
	}
	walk(entry.ID, ir.Operand{}, map[ir.BlockID]bool{})
}

// replaceAllUses rewrites every operand referencing old to new across
// the whole function. This is O(instructions) per promoted alloca;
// acceptable since mem2reg runs once per function before stack layout.
func replaceAllUses(fn *ir.Function, old ir.ValueID, new ir.Operand) {
	if !old.Valid() {
		return
	}
	replace := func(o *ir.Operand) {
		if !o.IsConst && o.Value == old {
			*o = new
		}
	}
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			for i := range in.Args {
				replace(&in.Args[i])
			}
			for i := range in.Incoming {
				replace(&in.Incoming[i].Value)
			}
		}
	}
}

// removeDeadAllocas deletes the (now unreferenced) Alloca instructions
// for every promoted candidate.
func removeDeadAllocas(fn *ir.Function, candidates map[ir.ValueID]*allocaInfo) {
	for _, b := range fn.Blocks {
		var kept []*ir.Instruction
		for _, in := range b.Instrs {
			if in.Opcode == ir.OpAlloca {
				if _, promoted := candidates[in.Result]; promoted {
					continue
				}
			}
			kept = append(kept, in)
		}
		b.Instrs = kept
	}
}
