package linker

import "sort"

// DT_* dynamic section tag values this linker emits (spec.md §4.7
// phase 7).
const (
	dtNull    = 0
	dtNeeded  = 1
	dtPltRelSz = 2
	dtPltGot  = 3
	dtHash    = 4
	dtStrTab  = 5
	dtSymTab  = 6
	dtRela    = 7
	dtRelaSz  = 8
	dtRelaEnt = 9
	dtStrSz   = 10
	dtSymEnt  = 11
	dtPltRel  = 20
	dtJmpRel  = 23
)

// DynamicPlan is phase 7's output: the GOT/PLT layout and the
// .dynamic entries describing it, built only when at least one
// symbol resolved against a shared library (spec.md §4.7 phase 1
// "as-needed semantics": the DT_NEEDED list only grows when a symbol
// actually resolved).
type DynamicPlan struct {
	Needed     []string          // SONAMEs, in order of first appearance among the name-sorted dynamic symbols
	GOTSlots   []string          // one 8-byte slot per dynamic symbol, in PLT order
	PLTStubs   []string          // dynamic function symbol names, one 16-byte stub each
	PLTOffset  map[string]uint64 // symbol name -> offset within .plt
	DynSymbols []string          // every symbol present in .dynsym, in entry order
}

const (
	pltStubSize = 16
	gotEntrySize = 8
)

// BuildDynamicPlan scans the symbol table for BindDynamic entries and
// assembles the GOT/PLT layout spec.md §4.7 phase 7 describes: "the
// PLT (per-function 16-byte stubs, first slot reserved for the
// resolver trampoline)".
func BuildDynamicPlan(syms *SymTab) *DynamicPlan {
	plan := &DynamicPlan{PLTOffset: map[string]uint64{}}
	neededSet := map[string]bool{}

	var dynamicNames []string
	for _, name := range syms.order {
		e := syms.entries[name]
		if e.dynamic {
			dynamicNames = append(dynamicNames, name)
		}
	}
	sort.Strings(dynamicNames)

	for _, name := range dynamicNames {
		e := syms.entries[name]
		if !neededSet[e.soname] {
			neededSet[e.soname] = true
			plan.Needed = append(plan.Needed, e.soname)
		}
		plan.DynSymbols = append(plan.DynSymbols, name)
		plan.GOTSlots = append(plan.GOTSlots, name)
		plan.PLTOffset[name] = uint64(len(plan.PLTStubs)+1) * pltStubSize // +1 reserves stub 0
		plan.PLTStubs = append(plan.PLTStubs, name)
	}
	return plan
}

// DynamicEntries renders the plan into raw (tag, value) pairs for the
// .dynamic section, in the order readelf conventionally expects.
func (p *DynamicPlan) DynamicEntries(strOff func(string) uint64, gotVAddr, symtabVAddr, strtabVAddr, strtabSize, pltRelaVAddr uint64) [][2]uint64 {
	var entries [][2]uint64
	for _, n := range p.Needed {
		entries = append(entries, [2]uint64{dtNeeded, strOff(n)})
	}
	entries = append(entries, [2]uint64{dtStrTab, strtabVAddr})
	entries = append(entries, [2]uint64{dtSymTab, symtabVAddr})
	entries = append(entries, [2]uint64{dtStrSz, strtabSize})
	entries = append(entries, [2]uint64{dtSymEnt, 24})
	if len(p.PLTStubs) > 0 {
		entries = append(entries, [2]uint64{dtPltGot, gotVAddr})
		entries = append(entries, [2]uint64{dtPltRelSz, uint64(len(p.PLTStubs)) * 24})
		entries = append(entries, [2]uint64{dtPltRel, 7}) // DT_RELA
		entries = append(entries, [2]uint64{dtJmpRel, pltRelaVAddr})
	}
	entries = append(entries, [2]uint64{dtNull, 0})
	return entries
}
