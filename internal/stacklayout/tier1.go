package stacklayout

import "github.com/dj707chen/nativecc/internal/ir"

// assignTier1 lays out every Tier 1 (permanent) value back-to-back in
// definition order, the straightforward case since Tier 1 values never
// share storage with anything else (spec.md §4.3 Phase 2: "never
// shared"). Returns the total Tier 1 size.
func assignTier1(fn *ir.Function, an *analysis, l *Layout) int64 {
	var offset int64
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if !in.HasResult() || l.Tier[in.Result] != Tier1 {
				continue
			}
			v := in.Result
			var size int64
			var align int
			if alloca, ok := an.isAlloca[v]; ok {
				size, align = alloca.AllocaSize, allocaAlign(alloca)
			} else {
				t := fn.TypeOf(v)
				size, align = int64(t.Size()), t.Align()
			}
			off := alignUp(offset, int64(maxInt(align, 8)))
			l.Slot[v] = Slot{Offset: off, Size: size, Align: align}
			offset = off + size
		}
	}
	return alignUp(offset, 8)
}
