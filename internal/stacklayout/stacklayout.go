// Package stacklayout implements the three-tier stack allocator shared
// by all three code generators (spec.md §4.3). It runs once per
// function, after the mid-level passes and before register allocation,
// and produces one Slot per value that needs addressable or spilled
// storage.
//
// Mem2Reg (internal/passes) already promotes every non-escaping alloca
// before this package ever sees the function, so any OpAlloca
// instruction that survives into Compute is, by construction, address-
// taken — which lets Phase 2 below classify alloca Tier 1/3 membership
// purely from how many blocks reference the alloca's pointer, without
// re-deriving mem2reg's escape analysis a second time.
package stacklayout

import (
	"sort"

	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/passes"
)

// Tier classifies a value for stack-slot assignment purposes (spec.md
// §4.3 Phase 2 / GLOSSARY "Three-tier allocator").
type Tier uint8

const (
	TierNone Tier = iota // register-assigned or "immediately consumed"; no slot
	Tier1                // permanent: escaping or multi-block allocas
	Tier2                // liveness-packed: cross-block SSA values, multi-def values
	Tier3                // block-local greedy reuse
)

// Slot is the stack-frame location assigned to one value.
type Slot struct {
	Offset int64
	Size   int64
	Align  int
}

// Layout is the per-function result of running the allocator.
type Layout struct {
	Tier      map[ir.ValueID]Tier
	Slot      map[ir.ValueID]Slot
	Immediate map[ir.ValueID]bool // "immediately consumed": flows through the accumulator, no slot
	Wide      map[ir.ValueID]bool // Phase 7: Copy destination needs a full wide zero-fill on 32-bit targets
	FrameSize int64
	Liveness  *passes.Liveness
}

// RegisterHint lets the register allocator tell stack layout which
// values it intends to keep in a physical register, so Phase 1/2 can
// skip slot allocation for them (spec.md §3 invariant: "Reg-assigned
// values do not also require stack slots unless their address is taken
// or they are 128-bit"). Stack layout and register allocation run in
// the order: Compute (tentative), RegAlloc (consults Liveness +
// Immediate sets this package already produced), then
// ApplyRegisterAssignments removes the now-superfluous slots.
type RegisterHint struct {
	RegisterAssigned map[ir.ValueID]bool
}

// Compute runs all seven phases over fn and returns the resulting Layout.
func Compute(fn *ir.Function) *Layout {
	fn.ComputeCFG()
	an := analyze(fn)
	lv := passes.Analyze(fn)

	l := &Layout{
		Tier:      map[ir.ValueID]Tier{},
		Slot:      map[ir.ValueID]Slot{},
		Immediate: map[ir.ValueID]bool{},
		Wide:      map[ir.ValueID]bool{},
		Liveness:  lv,
	}

	classify(fn, an, lv, l)
	tier3Blocks := assignTier3(fn, an, l)
	tier2Base := assignTier2(fn, lv, l, an)
	tier1Size := assignTier1(fn, an, l)

	finalize(l, tier1Size, tier2Base, tier3Blocks)
	propagateCopyAliases(an, l)
	propagateWide(fn, an, l)

	return l
}

// ApplyRegisterAssignments removes slots for values the register
// allocator decided to keep live in a physical register, per the "Reg-
// assigned values do not also require stack slots" invariant. i128/
// f128 values are never passed here since the register allocator never
// candidates them (spec.md §4.4).
func (l *Layout) ApplyRegisterAssignments(assigned map[ir.ValueID]bool) {
	for v := range assigned {
		if l.Tier[v] == Tier1 {
			continue // address-taken values always keep their slot
		}
		delete(l.Slot, v)
		l.Tier[v] = TierNone
	}
}
