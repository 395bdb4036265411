package stacklayout

import "github.com/dj707chen/nativecc/internal/ir"

// blockSlot is one slot within a block's local greedy pool, sized for a
// particular (size, align) class.
type blockSlot struct {
	offset  int64
	size    int64
	align   int
	occupant ir.ValueID // ValueInvalid while free
}

// assignTier3 performs Phase 3: each block gets an independent greedy
// slot pool. Pools overlap across blocks (only one executes at a time),
// so the returned size is the maximum over all blocks; per-value
// offsets are block-local until Phase 5 adds the shared base.
func assignTier3(fn *ir.Function, an *analysis, l *Layout) int64 {
	var maxBlockSpace int64
	for _, b := range fn.Blocks {
		lastUse := computeLastUseIndex(b, an)
		var pool []*blockSlot
		var blockSpace int64

		freeExpired := func(idx int) {
			for _, s := range pool {
				if s.occupant.Valid() && lastUse[s.occupant] < idx {
					s.occupant = ir.ValueInvalid
				}
			}
		}
		allocSlot := func(v ir.ValueID, size int64, align int) int64 {
			for _, s := range pool {
				if !s.occupant.Valid() && s.size == size && s.align == align {
					s.occupant = v
					return s.offset
				}
			}
			off := alignUp(blockSpace, int64(align))
			blockSpace = off + size
			pool = append(pool, &blockSlot{offset: off, size: size, align: align, occupant: v})
			return off
		}

		for idx, in := range b.Instrs {
			freeExpired(idx)
			if !in.HasResult() {
				continue
			}
			v := in.Result
			if l.Tier[v] != Tier3 || l.Immediate[v] {
				continue
			}
			if _, isAlloca := an.isAlloca[v]; isAlloca {
				size, align := alignUp(in.AllocaSize, 8), maxInt(allocaAlign(in), 8)
				off := allocSlot(v, size, align)
				l.Slot[v] = Slot{Offset: off, Size: in.AllocaSize, Align: allocaAlign(in)}
				continue
			}
			size := int64(in.Type.Size())
			align := in.Type.Align()
			if size == 0 {
				continue
			}
			off := allocSlot(v, size, align)
			l.Slot[v] = Slot{Offset: off, Size: size, Align: align}
		}
		if blockSpace > maxBlockSpace {
			maxBlockSpace = blockSpace
		}
	}
	return alignUp(maxBlockSpace, 8)
}

func computeLastUseIndex(b *ir.Block, an *analysis) map[ir.ValueID]int {
	last := map[ir.ValueID]int{}
	for idx, in := range b.Instrs {
		in.Uses(func(v ir.ValueID) { last[v] = idx })
		if in.Opcode == ir.OpPhi {
			for _, inc := range in.Incoming {
				if !inc.Value.IsConst {
					last[inc.Value.Value] = idx
				}
			}
		}
	}
	return last
}

func allocaAlign(in *ir.Instruction) int {
	if in.Align > 0 {
		return in.Align
	}
	if a := in.ElemType.Align(); a > 0 {
		return a
	}
	return 8
}

func alignUp(v, a int64) int64 {
	if a <= 1 {
		return v
	}
	return (v + a - 1) &^ (a - 1)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
