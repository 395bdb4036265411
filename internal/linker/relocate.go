package linker

import (
	"encoding/binary"
	"fmt"
)

// Relocation type constants duplicated from internal/asm/{x86,arm64,riscv64}
// (spec.md §4.6) — this package only needs their numeric values, not
// those packages' Assemble entry points, to avoid a dependency cycle
// through internal/asm -> internal/backend.
const (
	rX86PC32   = 2
	rX86PLT32  = 4
	rA64Call26 = 283
	rA64AdrHi  = 275
	rA64AddLo  = 277
	rRiscvCall = 18
	rRiscvHi20 = 23
)

// ApplyRelocations implements spec.md §4.7 phase 8: for each
// relocation, compute the final value per the target ABI's formula
// and patch the merged output bytes in place.
func ApplyRelocations(plan *mergePlan, objs []*Object, layout *Layout, syms *SymTab) error {
	for _, obj := range objs {
		for _, r := range obj.Relocs {
			outName, chunkOff, ok := plan.chunkOffset(obj, r.Section)
			if !ok {
				continue // section was pruned by --gc-sections
			}
			ps, ok := layout.ByName[outName]
			if !ok {
				continue
			}
			P := ps.VAddr + chunkOff + r.Offset

			e, ok := syms.Lookup(r.Symbol)
			var S uint64
			if ok && e.defined {
				if target, ok := layout.ByName[outputSectionName(e.section)]; ok {
					S = target.VAddr + e.value
				}
			}
			// dynamic/PLT targets with no direct in-image address are
			// left as zero here; a full PLT build (phase 7) would
			// supply the stub address instead.

			at := int(ps.Offset + chunkOff + r.Offset)
			if at+4 > len(ps.Data) {
				return fmt.Errorf("linker: relocation in %s at %s+%#x out of bounds", obj.Path, r.Section, r.Offset)
			}
			if err := patch(ps.Data, at, r.Kind, S, uint64(r.Addend), P); err != nil {
				return fmt.Errorf("linker: %s: %w", obj.Path, err)
			}
		}
	}
	return nil
}

func patch(data []byte, at int, kind uint32, S, A, P uint64) error {
	switch kind {
	case rX86PC32, rX86PLT32:
		v := int32(S + A - P)
		binary.LittleEndian.PutUint32(data[at:], uint32(v))
	case rA64Call26:
		delta := int64(S + A - P)
		word := binary.LittleEndian.Uint32(data[at:])
		imm26 := uint32(delta>>2) & 0x3ffffff
		binary.LittleEndian.PutUint32(data[at:], word&0xfc000000|imm26)
	case rA64AdrHi:
		delta := int64(pageOf(S+A) - pageOf(P))
		word := binary.LittleEndian.Uint32(data[at:])
		imm := uint32(delta>>12) & 0x1fffff
		immlo := imm & 3
		immhi := imm >> 2
		binary.LittleEndian.PutUint32(data[at:], word&0x9f00001f|immlo<<29|immhi<<5)
	case rA64AddLo:
		word := binary.LittleEndian.Uint32(data[at:])
		imm12 := uint32((S+A)&0xfff) << 10
		binary.LittleEndian.PutUint32(data[at:], word&0xffc003ff|imm12)
	case rRiscvCall:
		delta := int32(S + A - P)
		word := binary.LittleEndian.Uint32(data[at:])
		u := uint32(delta)
		imm20 := (u >> 20) & 1
		imm10_1 := (u >> 1) & 0x3ff
		imm11 := (u >> 11) & 1
		imm19_12 := (u >> 12) & 0xff
		binary.LittleEndian.PutUint32(data[at:], word&0xfff|imm20<<31|imm10_1<<21|imm11<<20|imm19_12<<12)
	case rRiscvHi20:
		delta := int32(S + A - P)
		hi20 := uint32(delta+0x800) >> 12
		word := binary.LittleEndian.Uint32(data[at:])
		binary.LittleEndian.PutUint32(data[at:], word&0xfff|hi20<<12)
	default:
		return fmt.Errorf("unsupported relocation type %d", kind)
	}
	return nil
}

func pageOf(addr uint64) uint64 { return addr &^ 0xfff }
