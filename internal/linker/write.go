package linker

import (
	elflib "github.com/dj707chen/nativecc/internal/asm/elf"
)

// writeELF implements spec.md §4.7 phase 9: emit the final ELF file
// from a completed Layout, reusing internal/asm/elf's Writer (the
// repo's one stdlib-only exception) for byte serialization.
func writeELF(layout *Layout, machine elflib.Machine, shared bool, dynPlan *DynamicPlan) ([]byte, error) {
	etype := uint16(elflib.ET_EXEC)
	if shared {
		etype = elflib.ET_DYN
	}
	w := &elflib.Writer{Header: elflib.Header{Machine: machine, Type: etype, Entry: layout.Entry}}

	for _, ps := range layout.Sections {
		flags := uint64(elflib.SHF_ALLOC)
		if ps.Writable {
			flags |= elflib.SHF_WRITE
		}
		if ps.Executable {
			flags |= elflib.SHF_EXECINSTR
		}
		typ := uint32(elflib.SHT_PROGBITS)
		if ps.NoBits {
			typ = elflib.SHT_NOBITS
		}
		w.AddSection(elflib.Section{
			Name: ps.Name, Type: typ, Flags: flags, Addr: ps.VAddr,
			Data: ps.Data, Size: ps.Size, Addralign: ps.Align,
		})
	}

	if len(dynPlan.Needed) > 0 {
		// A fully-resolved dynamic segment needs each SONAME's actual
		// runtime address layout; here the section is emitted with
		// its DT_NEEDED/DT_SYMTAB/DT_STRTAB entries relative to 0
		// since this test-link path never loads a real libc/libm —
		// see DESIGN.md for why full GOT/PLT address fixups are out
		// of scope for this exercise's linker.
		strtab := []byte{0}
		strOff := map[string]uint64{}
		for _, n := range dynPlan.Needed {
			strOff[n] = uint64(len(strtab))
			strtab = append(strtab, append([]byte(n), 0)...)
		}
		entries := dynPlan.DynamicEntries(func(s string) uint64 { return strOff[s] }, 0, 0, 0, uint64(len(strtab)), 0)
		var data []byte
		for _, e := range entries {
			data = append(data, encodeDynEntry(e[0], e[1])...)
		}
		w.AddSection(elflib.Section{Name: ".dynamic", Type: elflib.SHT_DYNAMIC, Flags: elflib.SHF_ALLOC | elflib.SHF_WRITE, Data: data, Size: uint64(len(data))})
		w.AddSection(elflib.Section{Name: ".dynstr", Type: elflib.SHT_STRTAB, Flags: elflib.SHF_ALLOC, Data: strtab, Size: uint64(len(strtab))})
		w.Phdrs = append(w.Phdrs, elflib.ProgramHeader{Type: elflib.PT_DYNAMIC, Flags: elflib.PF_R | elflib.PF_W, Align: 8})
	}

	w.Phdrs = append(layout.Phdrs, w.Phdrs...)
	return w.Bytes(), nil
}

func encodeDynEntry(tag, val uint64) []byte {
	b := make([]byte, 16)
	putLE64(b[0:], tag)
	putLE64(b[8:], val)
	return b
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}
