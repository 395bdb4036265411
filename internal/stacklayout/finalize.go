package stacklayout

import "github.com/dj707chen/nativecc/internal/ir"

// finalize performs Phase 5: sum Tier 1 and Tier 2 offsets into the
// shared non-local base, then stack each block-local Tier 3 offset on
// top of it. tier1Size/tier2Size were computed independently by
// assignTier1/assignTier2 so their slots already live in [0, tier1Size)
// and [0, tier2Size) respectively — this phase shifts Tier 2 by
// tier1Size and Tier 3 by tier1Size+tier2Size.
func finalize(l *Layout, tier1Size, tier2Size, tier3Size int64) {
	base2 := tier1Size
	base3 := tier1Size + tier2Size
	for v, tier := range l.Tier {
		s, ok := l.Slot[v]
		if !ok {
			continue
		}
		switch tier {
		case Tier2:
			s.Offset += base2
		case Tier3:
			s.Offset += base3
		}
		l.Slot[v] = s
	}
	l.FrameSize = alignUp(base3+tier3Size, 16)
}

// propagateCopyAliases performs Phase 6: a copy-alias destination that
// has no slot of its own after Phases 2-5 (for instance one classified
// TierNone) takes on its root's final slot. Phases 2-5 do not skip
// copy-alias destinations, so one classified Tier 2 or Tier 3 already
// has its own slot and keeps it; it then does not share its root's slot.
func propagateCopyAliases(an *analysis, l *Layout) {
	for dst, root := range an.copyAlias {
		rootSlot, ok := l.Slot[root]
		if !ok {
			continue
		}
		if _, hasOwn := l.Slot[dst]; hasOwn {
			continue // root itself also got reused as a destination elsewhere; keep independent slots
		}
		l.Slot[dst] = rootSlot
		l.Tier[dst] = l.Tier[root]
	}
}

// propagateWide performs Phase 7: on 32-bit targets (RISC-V's rv32
// variant is out of this core's target list per spec.md §1, but the
// phase is still run uniformly since a Copy chain can still narrow a
// wide value on any target that reuses a smaller slot for a later
// value) — mark Copy destinations whose source is wide so the full
// 8/16 bytes get zeroed instead of leaving stack garbage in the upper
// bytes when a narrower store would otherwise be emitted.
func propagateWide(fn *ir.Function, an *analysis, l *Layout) {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Opcode != ir.OpCopy || in.Args[0].IsConst {
				continue
			}
			srcType := fn.TypeOf(in.Args[0].Value)
			if srcType.Wide() {
				l.Wide[in.Result] = true
			}
		}
	}
}
