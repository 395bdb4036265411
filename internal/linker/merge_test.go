package linker

import "testing"

func TestOutputSectionNameMergesVariants(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		".text.foo":   ".text",
		".text.bar":   ".text",
		".rodata.str": ".rodata",
		".data.rel.ro": ".data.rel.ro", // exact match, no further merge
		".bss.x":      ".bss",
		".comment":    ".comment",
	}
	for in, want := range cases {
		if got := outputSectionName(in); got != want {
			t.Errorf("outputSectionName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMergeSectionsOrdersByPermissionClass(t *testing.T) {
	t.Parallel()
	obj := &Object{
		Path: "a.o",
		Sections: map[string]*Section{
			".data":   {Name: ".data", Data: []byte{1, 2, 3, 4}, Writable: true, Align: 4},
			".text":   {Name: ".text", Data: []byte{0x90, 0x90}, Executable: true, Align: 16},
			".rodata": {Name: ".rodata", Data: []byte{5, 6}, Align: 1},
			".bss":    {Name: ".bss", Size: 16, NoBits: true, Writable: true, Align: 8},
		},
	}
	plan := MergeSections([]*Object{obj}, nil)

	var order []string
	for _, s := range plan.sections {
		order = append(order, s.Name)
	}
	idx := map[string]int{}
	for i, n := range order {
		idx[n] = i
	}
	if !(idx[".rodata"] < idx[".text"] && idx[".text"] < idx[".data"] && idx[".data"] < idx[".bss"]) {
		t.Fatalf("unexpected section order: %v", order)
	}
}

func TestMergeSectionsConcatenatesAligned(t *testing.T) {
	t.Parallel()
	obj1 := &Object{Path: "a.o", Sections: map[string]*Section{
		".text.a": {Name: ".text.a", Data: []byte{1}, Executable: true, Align: 4},
	}}
	obj2 := &Object{Path: "b.o", Sections: map[string]*Section{
		".text.b": {Name: ".text.b", Data: []byte{2}, Executable: true, Align: 4},
	}}
	plan := MergeSections([]*Object{obj1, obj2}, nil)
	text := plan.byName[".text"]
	if text == nil {
		t.Fatal("expected merged .text section")
	}
	if len(text.Data) < 5 || text.Data[0] != 1 {
		t.Fatalf("unexpected merged .text bytes: %v", text.Data)
	}
	_, off, ok := plan.chunkOffset(obj2, ".text.b")
	if !ok || off%4 != 0 {
		t.Fatalf("expected obj2's chunk 4-byte aligned, got off=%d ok=%v", off, ok)
	}
}

func TestMergeSectionsAllocatesCommonIntoBSS(t *testing.T) {
	t.Parallel()
	obj := &Object{Path: "a.o", Sections: map[string]*Section{}, Symbols: []Sym{
		{Name: "g_counter", Bind: BindGlobal, Common: true, Size: 8},
	}}
	plan := MergeSections([]*Object{obj}, nil)
	bss := plan.byName[".bss"]
	if bss == nil || bss.Size < 8 {
		t.Fatalf("expected .bss sized for the common symbol, got %+v", bss)
	}
}
