package stacklayout

import (
	"sort"

	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/passes"
)

// tier2Slot is one slot in the Tier 2 packing pool for a given size
// class; busyUntil is the end of the interval of the value last placed
// in it, and the slot is free for any candidate starting at or after it.
type tier2Slot struct {
	offset    int64
	busyUntil passes.Position
}

// assignTier2 performs Phase 4: pack Tier 2 values into shared slots
// using greedy interval coloring, keyed by size class so i128/f128
// slots only ever reuse among themselves (spec.md §4.3 Phase 4).
func assignTier2(fn *ir.Function, lv *passes.Liveness, l *Layout, an *analysis) int64 {
	type candidate struct {
		v     ir.ValueID
		size  int64
		align int
		start passes.Position
		end   passes.Position
	}
	var cands []candidate
	for v, tier := range l.Tier {
		if tier != Tier2 {
			continue
		}
		ivs := lv.Intervals[v]
		if len(ivs) == 0 {
			continue
		}
		start, end := ivs[0].Start, ivs[0].End
		for _, iv := range ivs[1:] {
			if iv.Start < start {
				start = iv.Start
			}
			if iv.End > end {
				end = iv.End
			}
		}
		size, align := valueSizeAlign(fn, v, an)
		if size == 0 {
			continue
		}
		cands = append(cands, candidate{v: v, size: size, align: align, start: start, end: end})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].start < cands[j].start })

	pools := map[string][]*tier2Slot{}
	var maxSpace int64
	for _, c := range cands {
		class := sizeClassKey(c.size, c.align)
		pool := pools[class]
		placed := false
		for _, s := range pool {
			if s.busyUntil <= c.start {
				s.busyUntil = c.end
				l.Slot[c.v] = Slot{Offset: s.offset, Size: c.size, Align: c.align}
				placed = true
				break
			}
		}
		if !placed {
			off := alignUp(maxSpace, int64(c.align))
			maxSpace = off + c.size
			pools[class] = append(pool, &tier2Slot{offset: off, busyUntil: c.end})
			l.Slot[c.v] = Slot{Offset: off, Size: c.size, Align: c.align}
		}
	}
	return alignUp(maxSpace, 8)
}

func sizeClassKey(size int64, align int) string {
	return string(rune('A'+size)) + "/" + string(rune('a'+align))
}

func valueSizeAlign(fn *ir.Function, v ir.ValueID, an *analysis) (int64, int) {
	if in, ok := an.isAlloca[v]; ok {
		return alignUp(in.AllocaSize, 8), maxInt(allocaAlign(in), 8)
	}
	t := fn.TypeOf(v)
	return int64(t.Size()), t.Align()
}
