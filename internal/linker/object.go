// Package linker implements the target linker (spec.md §4.7): it
// resolves relocatable objects, archives, and shared libraries into
// an ELF executable or shared object. Reading arbitrary input ELF
// files (objects this core did not itself produce — system libc
// archives, shared libraries) uses the standard library's debug/elf,
// the same choice zboralski-galago's emulator ELF loader makes for
// reading foreign ELF images; this core's own internal/asm/elf
// remains the writer (no pack library produces ELF bytes).
package linker

import (
	"bytes"
	"debug/elf"
	"fmt"
)

// SymBind mirrors the ELF STB_* binding classes this linker's
// resolution rules (spec.md §4.7 phase 1/5) distinguish between.
type SymBind int

const (
	BindLocal SymBind = iota
	BindGlobal
	BindWeak
)

// Sym is one entry pulled from an input object's symbol table,
// normalized across the debug/elf and our own elf.Symbol shapes.
type Sym struct {
	Name    string
	Bind    SymBind
	Defined bool
	Common  bool // SHN_COMMON: tentative definition, sized but not yet placed
	Section string
	Value   uint64 // section-relative offset if Defined, else 0
	Size    uint64
}

// Reloc is one relocation against a section in Object, normalized to
// this linker's internal (kind, symbol, addend) shape.
type Reloc struct {
	Section string
	Offset  uint64
	Symbol  string
	Kind    uint32 // architecture-specific r_type, see asm/{x86,arm64,riscv64}
	Addend  int64
}

// Section is one input section's raw bytes plus its ELF attributes.
type Section struct {
	Name      string
	Data      []byte
	Size      uint64 // for SHT_NOBITS (.bss) sections, Size may exceed len(Data)
	Flags     uint64
	Align     uint64
	Executable bool
	Writable  bool
	NoBits    bool
}

// Object is one relocatable (ET_REL) input translation unit.
type Object struct {
	Path     string
	Machine  elf.Machine
	Sections map[string]*Section
	Symbols  []Sym
	Relocs   []Reloc
}

// ParseObject reads an ET_REL object from data using debug/elf and
// normalizes it into an Object.
func ParseObject(path string, data []byte) (*Object, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("linker: parse %s: %w", path, err)
	}
	defer f.Close()
	if f.Type != elf.ET_REL {
		return nil, fmt.Errorf("linker: %s is not a relocatable object (ET_REL)", path)
	}

	obj := &Object{Path: path, Machine: f.Machine, Sections: map[string]*Section{}}
	for _, s := range f.Sections {
		if s.Type == elf.SHT_NULL || s.Type == elf.SHT_SYMTAB || s.Type == elf.SHT_STRTAB ||
			s.Type == elf.SHT_RELA || s.Type == elf.SHT_REL {
			continue
		}
		sec := &Section{
			Name: s.Name, Size: s.Size, Flags: uint64(s.Flags), Align: s.Addralign,
			Executable: s.Flags&elf.SHF_EXECINSTR != 0,
			Writable:   s.Flags&elf.SHF_WRITE != 0,
			NoBits:     s.Type == elf.SHT_NOBITS,
		}
		if !sec.NoBits {
			data, err := s.Data()
			if err != nil {
				return nil, fmt.Errorf("linker: read section %s in %s: %w", s.Name, path, err)
			}
			sec.Data = data
		}
		obj.Sections[s.Name] = sec
	}

	syms, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, fmt.Errorf("linker: read symbols in %s: %w", path, err)
	}
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		sym := Sym{Name: s.Name, Value: s.Value, Size: s.Size}
		switch elf.ST_BIND(s.Info) {
		case elf.STB_LOCAL:
			sym.Bind = BindLocal
		case elf.STB_WEAK:
			sym.Bind = BindWeak
		default:
			sym.Bind = BindGlobal
		}
		if s.Section == elf.SHN_COMMON {
			sym.Common = true
		} else if s.Section != elf.SHN_UNDEF {
			sym.Defined = true
			if int(s.Section) < len(f.Sections) {
				sym.Section = f.Sections[s.Section].Name
			}
		}
		obj.Symbols = append(obj.Symbols, sym)
	}

	for _, s := range f.Sections {
		if s.Type != elf.SHT_RELA {
			continue
		}
		relas, err := f.Relocations(s)
		if err != nil {
			continue
		}
		target := relaTargetSection(f, s.Name)
		for _, r := range relas {
			symIdx := int(r.Info >> 32)
			name := ""
			if symIdx > 0 && symIdx <= len(syms) {
				name = syms[symIdx-1].Name
			}
			obj.Relocs = append(obj.Relocs, Reloc{
				Section: target, Offset: r.Offset, Symbol: name,
				Kind: uint32(r.Info & 0xffffffff), Addend: r.Addend,
			})
		}
	}
	return obj, nil
}

func relaTargetSection(f *elf.File, relaName string) string {
	// ".rela.text" applies to ".text"; this core never emits any other
	// relocation section name (internal/asm's object writer only
	// produces .rela.text).
	if len(relaName) > 5 && relaName[:5] == ".rela" {
		return relaName[5:]
	}
	return relaName
}
