package linker

import "sort"

// outputSectionName maps an input section name to the merged output
// section it contributes to (spec.md §4.7 phase 3: "all .text.foo
// variants merge into .text").
func outputSectionName(name string) string {
	for _, prefix := range []string{".text.", ".rodata.", ".data.rel.ro.", ".data.", ".bss."} {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			return prefix[:len(prefix)-1]
		}
	}
	return name
}

// chunk is one input section's placement within a merged output
// section.
type chunk struct {
	obj    *Object
	input  string
	output string
	offset uint64 // offset within the output section, post-alignment
}

// MergedSection is one output section assembled from zero or more
// input chunks plus any SHN_COMMON allocations.
type MergedSection struct {
	Name       string
	Data       []byte
	Size       uint64
	Executable bool
	Writable   bool
	NoBits     bool
	Align      uint64
}

// mergePlan is the result of phase 3: every output section in layout
// order, plus the byte offset each input chunk landed at (needed by
// relocation application to translate an input-section-relative
// relocation offset into an output-section-relative one).
type mergePlan struct {
	sections []*MergedSection
	byName   map[string]*MergedSection
	chunks   []chunk
}

// orderClass ranks output sections per spec.md §4.7 phase 3: "RO data
// -> Executable -> RW data (progbits) -> RW data (nobits / .bss)".
func orderClass(s *MergedSection) int {
	switch {
	case s.Executable:
		return 1
	case !s.Writable:
		return 0
	case !s.NoBits:
		return 2
	default:
		return 3
	}
}

// MergeSections implements spec.md §4.7 phase 3. live, when non-nil,
// restricts merging to the sections phase 4's reachability pass
// marked (keyed by obj.Path+"\x00"+sectionName).
func MergeSections(objs []*Object, live map[string]bool) *mergePlan {
	plan := &mergePlan{byName: map[string]*MergedSection{}}

	get := func(name string, exec, write, nobits bool, align uint64) *MergedSection {
		s, ok := plan.byName[name]
		if !ok {
			s = &MergedSection{Name: name, Executable: exec, Writable: write, NoBits: nobits, Align: align}
			plan.byName[name] = s
			plan.sections = append(plan.sections, s)
		}
		if align > s.Align {
			s.Align = align
		}
		return s
	}

	for _, obj := range objs {
		var names []string
		for n := range obj.Sections {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			sec := obj.Sections[n]
			if len(sec.Data) == 0 && sec.Size == 0 {
				continue
			}
			if live != nil && !live[obj.Path+"\x00"+n] {
				continue
			}
			out := get(outputSectionName(n), sec.Executable, sec.Writable, sec.NoBits, max64(sec.Align, 1))
			off := alignUp(out.Size, max64(sec.Align, 1))
			if pad := off - out.Size; pad > 0 && !out.NoBits {
				out.Data = append(out.Data, make([]byte, pad)...)
			}
			out.Size = off
			if out.NoBits {
				out.Size += sec.Size
			} else {
				out.Data = append(out.Data, sec.Data...)
				out.Size = uint64(len(out.Data))
			}
			plan.chunks = append(plan.chunks, chunk{obj: obj, input: n, output: out.Name, offset: off})
		}
	}

	// SHN_COMMON symbols are allocated into .bss with their natural
	// alignment (spec.md §4.7 phase 3).
	bss := get(".bss", false, true, true, 8)
	for _, obj := range objs {
		for _, s := range obj.Symbols {
			if !s.Common {
				continue
			}
			align := commonAlign(s.Size)
			off := alignUp(bss.Size, align)
			bss.Size = off + s.Size
		}
	}

	sort.SliceStable(plan.sections, func(i, j int) bool {
		return orderClass(plan.sections[i]) < orderClass(plan.sections[j])
	})
	return plan
}

func commonAlign(size uint64) uint64 {
	switch {
	case size >= 16:
		return 16
	case size >= 8:
		return 8
	case size >= 4:
		return 4
	case size >= 2:
		return 2
	default:
		return 1
	}
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// chunkOffset finds the output-section offset a given (obj, section)
// pair landed at, used when translating relocation offsets.
func (p *mergePlan) chunkOffset(obj *Object, section string) (string, uint64, bool) {
	for _, c := range p.chunks {
		if c.obj == obj && c.input == section {
			return c.output, c.offset, true
		}
	}
	return "", 0, false
}
