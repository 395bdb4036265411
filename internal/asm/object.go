// Package asm builds ELF64 relocatable objects (.o files) from a
// code generator's lowered function bytes, one per translation unit,
// ready for internal/linker to combine (spec.md §4.6 "native
// assembler"). Each target subpackage (asm/x86, asm/arm64,
// asm/riscv64) supplies only the architecture's e_machine value and
// its backend.RelocKind -> ELF r_type mapping; the section/symbol
// table layout itself is shared here.
package asm

import (
	"sort"

	"github.com/dj707chen/nativecc/internal/asm/elf"
	"github.com/dj707chen/nativecc/internal/backend"
)

// FunctionCode is one compiled function's machine code plus the
// relocations its Machine left pending.
type FunctionCode struct {
	Name   string
	Code   []byte
	Relocs []backend.Relocation
	Global bool
}

// RelocMapper translates a target-neutral backend.RelocKind into the
// ELF r_type constant that target's psABI defines for it.
type RelocMapper func(kind backend.RelocKind) (uint32, error)

// BuildObject assembles funcs into a single ELF64 ET_REL object: one
// .text section holding every function back to back, one .symtab
// entry per function (plus one per external symbol a relocation
// references), and one .rela.text carrying every pending relocation
// translated through mapRelocKind.
func BuildObject(machine elf.Machine, funcs []FunctionCode, mapRelocKind RelocMapper) ([]byte, error) {
	w := &elf.Writer{Header: elf.Header{Machine: machine, Type: elf.ET_REL}}

	var text []byte
	funcOffset := map[string]uint64{}
	for _, f := range funcs {
		funcOffset[f.Name] = uint64(len(text))
		text = append(text, f.Code...)
	}
	textIdx := w.AddSection(elf.Section{
		Name: ".text", Type: elf.SHT_PROGBITS,
		Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Data: text, Size: uint64(len(text)), Addralign: 16,
	})

	strtab := []byte{0}
	strOff := map[string]uint32{}
	internString := func(s string) uint32 {
		if off, ok := strOff[s]; ok {
			return off
		}
		off := uint32(len(strtab))
		strOff[s] = off
		strtab = append(strtab, append([]byte(s), 0)...)
		return off
	}

	var syms []elf.Symbol
	syms = append(syms, elf.Symbol{}) // index 0: the mandatory null symbol
	symIndex := map[string]uint32{}
	var localNames, globalNames []string
	for _, f := range funcs {
		if f.Global {
			globalNames = append(globalNames, f.Name)
		} else {
			localNames = append(localNames, f.Name)
		}
	}
	sort.Strings(localNames)
	sort.Strings(globalNames)
	// .symtab requires every STB_LOCAL entry to sort before the first
	// non-local one (sh_info records the boundary index).
	names := append(localNames, globalNames...)
	byName := map[string]FunctionCode{}
	for _, f := range funcs {
		byName[f.Name] = f
	}
	for _, name := range names {
		f := byName[name]
		bind := uint8(elf.STB_LOCAL)
		if f.Global {
			bind = elf.STB_GLOBAL
		}
		symIndex[f.Name] = uint32(len(syms))
		syms = append(syms, elf.Symbol{
			Name: f.Name, Value: funcOffset[f.Name], Size: uint64(len(f.Code)),
			Info: elf.SymInfo(bind, elf.STT_FUNC), Section: uint16(textIdx + 1),
		})
	}

	// Any relocation referencing a symbol we haven't defined ourselves
	// (an external call target, a global variable) gets an UNDEF entry.
	var relas []elf.Rela
	for _, f := range funcs {
		base := funcOffset[f.Name]
		for _, r := range f.Relocs {
			if _, ok := symIndex[r.Symbol]; !ok {
				symIndex[r.Symbol] = uint32(len(syms))
				syms = append(syms, elf.Symbol{Name: r.Symbol, Info: elf.SymInfo(elf.STB_GLOBAL, elf.STT_NOTYPE)})
			}
			rtype, err := mapRelocKind(r.Kind)
			if err != nil {
				return nil, err
			}
			relas = append(relas, elf.Rela{
				Offset: base + uint64(r.Offset), Symbol: symIndex[r.Symbol], Type: rtype, Addend: r.Addend,
			})
		}
	}

	var symtabData []byte
	for _, s := range syms {
		symtabData = append(symtabData, elf.EncodeSymbol(internString(s.Name), s)...)
	}
	symtabIdx := w.AddSection(elf.Section{
		Name: ".symtab", Type: elf.SHT_SYMTAB, Data: symtabData, Size: uint64(len(symtabData)),
		Entsize: 24, Info: uint32(localSymbolCount(syms)),
	})

	var relaData []byte
	for _, r := range relas {
		relaData = append(relaData, elf.EncodeRela(r)...)
	}
	if len(relaData) > 0 {
		w.AddSection(elf.Section{
			Name: ".rela.text", Type: elf.SHT_RELA, Data: relaData, Size: uint64(len(relaData)),
			Entsize: 24, Link: uint32(symtabIdx + 1), Info: uint32(textIdx + 1),
		})
	}

	w.Sections[symtabIdx].Link = uint32(len(w.Sections) + 1) // .strtab is appended last, see below (+1 for the leading SHT_NULL entry)
	w.AddSection(elf.Section{Name: ".strtab", Type: elf.SHT_STRTAB, Data: strtab, Size: uint64(len(strtab))})

	return w.Bytes(), nil
}

func localSymbolCount(syms []elf.Symbol) int {
	n := 0
	for _, s := range syms {
		if s.Info>>4 == elf.STB_LOCAL {
			n++
		} else {
			break // STB_LOCAL entries must sort first in .symtab; count stops at the first non-local
		}
	}
	return n
}
