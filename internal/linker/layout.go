package linker

import "github.com/dj707chen/nativecc/internal/asm/elf"

const (
	staticBase = 0x400000
	pageSize   = 0x1000
)

// placedSection is a MergedSection with its final virtual address and
// file offset assigned.
type placedSection struct {
	*MergedSection
	VAddr  uint64
	Offset uint64
}

// Layout is the result of spec.md §4.7 phase 6: every merged section
// placed at a virtual address, grouped into the R / RX / RW program
// segments the ABI's loader expects.
type Layout struct {
	Sections []*placedSection
	ByName   map[string]*placedSection
	Phdrs    []elf.ProgramHeader
	Entry    uint64
	Shared   bool
}

// ComputeLayout lays sections out following the program-segment model
// of spec.md §4.7 phase 6: a fixed text base for static executables
// (0 for shared objects), page-aligned segment starts per permission
// class (R, RX, RW), with entry resolved from the symbol table's
// definition of entrySym.
func ComputeLayout(plan *mergePlan, syms *SymTab, entrySym string, shared bool) (*Layout, error) {
	base := uint64(staticBase)
	if shared {
		base = 0
	}
	l := &Layout{ByName: map[string]*placedSection{}, Shared: shared}

	// Headers occupy the first page; the first PT_LOAD segment starts
	// immediately after, like xyproto-vibe67's WriteDynamicELF aligns
	// its first loadable segment to the next page boundary after the
	// ELF + program headers.
	offset := uint64(pageSize)
	vaddr := base + offset

	var curClass = -1
	var curPhdr *elf.ProgramHeader
	for _, s := range plan.sections {
		class := orderClass(s)
		if class != curClass {
			if curPhdr != nil {
				l.Phdrs = append(l.Phdrs, *curPhdr)
			}
			vaddr = alignUp(vaddr, pageSize)
			offset = alignUp(offset, pageSize)
			flags := uint32(elf.PF_R)
			switch class {
			case 1:
				flags |= elf.PF_X
			case 2, 3:
				flags |= elf.PF_W
			}
			curPhdr = &elf.ProgramHeader{Type: elf.PT_LOAD, Flags: flags, Offset: offset, VAddr: vaddr, PAddr: vaddr, Align: pageSize}
			curClass = class
		}
		align := s.Align
		if align == 0 {
			align = 1
		}
		vaddr = alignUp(vaddr, align)
		if !s.NoBits {
			offset = alignUp(offset, align)
		}
		ps := &placedSection{MergedSection: s, VAddr: vaddr, Offset: offset}
		l.Sections = append(l.Sections, ps)
		l.ByName[s.Name] = ps
		vaddr += s.Size
		if !s.NoBits {
			offset += s.Size
		}
		curPhdr.MemSz = vaddr - curPhdr.VAddr
		if !s.NoBits {
			curPhdr.FileSz = offset - curPhdr.Offset
		}
	}
	if curPhdr != nil {
		l.Phdrs = append(l.Phdrs, *curPhdr)
	}

	e, ok := syms.Lookup(entrySym)
	if !ok || !e.defined {
		return l, nil // caller decides whether a missing entry is fatal (e.g. -shared)
	}
	ps, ok := l.ByName[outputSectionName(e.section)]
	if ok {
		l.Entry = ps.VAddr + e.value
	}
	return l, nil
}
