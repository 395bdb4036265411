package linker

import "testing"

func TestSymTabGlobalOverwritesUndef(t *testing.T) {
	t.Parallel()
	syms := NewSymTab()
	obj1 := &Object{Path: "a.o"}
	obj2 := &Object{Path: "b.o"}

	syms.Add(obj1, []Sym{{Name: "foo", Bind: BindGlobal, Defined: false}})
	if got := syms.Undefined(); len(got) != 1 || got[0] != "foo" {
		t.Fatalf("expected foo undefined, got %v", got)
	}

	syms.Add(obj2, []Sym{{Name: "foo", Bind: BindGlobal, Defined: true, Section: ".text", Value: 0x10}})
	if got := syms.Undefined(); len(got) != 0 {
		t.Fatalf("expected foo resolved, still undefined: %v", got)
	}
	e, ok := syms.Lookup("foo")
	if !ok || !e.defined || e.value != 0x10 || e.obj != obj2 {
		t.Fatalf("unexpected resolved entry: %+v", e)
	}
}

func TestSymTabDefinedNeverSuperseded(t *testing.T) {
	t.Parallel()
	syms := NewSymTab()
	obj1 := &Object{Path: "a.o"}
	obj2 := &Object{Path: "b.o"}

	syms.Add(obj1, []Sym{{Name: "foo", Bind: BindGlobal, Defined: true, Section: ".text", Value: 4}})
	syms.Add(obj2, []Sym{{Name: "foo", Bind: BindGlobal, Defined: true, Section: ".text", Value: 99}})

	e, _ := syms.Lookup("foo")
	if e.value != 4 || e.obj != obj1 {
		t.Fatalf("a prior defined symbol must not be superseded, got value=%d obj=%v", e.value, e.obj)
	}
}

func TestSymTabWeakOverriddenByGlobal(t *testing.T) {
	t.Parallel()
	syms := NewSymTab()
	obj1 := &Object{Path: "a.o"}
	obj2 := &Object{Path: "b.o"}

	syms.Add(obj1, []Sym{{Name: "environ", Bind: BindWeak, Defined: true, Section: ".bss", Value: 0}})
	syms.Add(obj2, []Sym{{Name: "environ", Bind: BindGlobal, Defined: true, Section: ".bss", Value: 8}})

	e, _ := syms.Lookup("environ")
	if e.weak || e.value != 8 || e.obj != obj2 {
		t.Fatalf("expected global definition to replace weak one, got %+v", e)
	}
}

func TestSymTabCommonOverridesUndef(t *testing.T) {
	t.Parallel()
	syms := NewSymTab()
	obj := &Object{Path: "a.o"}
	syms.Add(obj, []Sym{{Name: "counter", Bind: BindGlobal, Common: true, Size: 8}})

	e, ok := syms.Lookup("counter")
	if !ok || !e.common || e.size != 8 {
		t.Fatalf("expected counter registered as common, got %+v", e)
	}
	if len(syms.Undefined()) != 0 {
		t.Fatalf("a common symbol must not be reported undefined")
	}
}

func TestSymTabResolveReportsMissing(t *testing.T) {
	t.Parallel()
	syms := NewSymTab()
	err := syms.Resolve([]Reloc{{Symbol: "missing_fn"}}, 20)
	if err == nil {
		t.Fatal("expected an error for an unresolved relocation target")
	}
}
