package linker

import "fmt"

// symEntry is one name's resolved state in the global symbol table
// (spec.md §4.7 phase 1/5).
type symEntry struct {
	name     string
	defined  bool
	weak     bool
	common   bool
	obj      *Object
	section  string
	value    uint64
	size     uint64
	dynamic  bool // resolved against a shared library rather than an object
	soname   string
}

// SymTab is the flat, name-keyed global symbol table spec.md §4.7
// describes ("the symbol table in the linker is a flat map keyed by
// name").
type SymTab struct {
	entries map[string]*symEntry
	// order preserves command-line / archive-member processing order
	// so that a subsequent defined symbol never supersedes a prior one
	// (spec.md §5 "Ordering guarantees").
	order []string
}

func NewSymTab() *SymTab { return &SymTab{entries: map[string]*symEntry{}} }

// Add registers one object's symbols per the resolution rules of
// spec.md §4.7 phase 1: a GLOBAL defined symbol overwrites a prior
// UNDEF or WEAK; a COMMON symbol overrides UNDEF; a subsequent defined
// symbol never supersedes a prior defined symbol.
func (t *SymTab) Add(obj *Object, syms []Sym) {
	for _, s := range syms {
		if s.Bind == BindLocal {
			continue // locals never enter the global table
		}
		cur, ok := t.entries[s.Name]
		if !ok {
			cur = &symEntry{name: s.Name}
			t.entries[s.Name] = cur
			t.order = append(t.order, s.Name)
		}
		switch {
		case s.Defined && !cur.defined:
			cur.defined, cur.weak, cur.obj, cur.section, cur.value, cur.size = true, s.Bind == BindWeak, obj, s.Section, s.Value, s.Size
		case s.Defined && cur.defined && cur.weak && s.Bind != BindWeak:
			cur.weak, cur.obj, cur.section, cur.value, cur.size = false, obj, s.Section, s.Value, s.Size
		case s.Common && !cur.defined && !cur.common:
			cur.common, cur.obj, cur.size = true, obj, s.Size
			if s.Size > cur.size {
				cur.size = s.Size
			}
		case !s.Defined && !s.Common && !ok:
			// first sighting is itself an UNDEF reference; nothing
			// further to record beyond having created the entry
		}
	}
}

// BindDynamic records that name resolved against a dynamic symbol
// from a shared library with the given SONAME (spec.md §4.7 phase 1
// "as-needed semantics").
func (t *SymTab) BindDynamic(name, soname string) {
	cur, ok := t.entries[name]
	if !ok {
		cur = &symEntry{name: name}
		t.entries[name] = cur
		t.order = append(t.order, name)
	}
	if cur.defined {
		return
	}
	cur.dynamic, cur.soname = true, soname
}

// Undefined returns every global symbol still unresolved (not
// defined, not common, not bound dynamically) and not weak, in
// first-sighting order.
func (t *SymTab) Undefined() []string {
	var out []string
	for _, name := range t.order {
		e := t.entries[name]
		if !e.defined && !e.common && !e.dynamic && !e.weak {
			out = append(out, name)
		}
	}
	return out
}

func (t *SymTab) Lookup(name string) (*symEntry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Resolve walks relocs and maps each to its resolved symEntry,
// failing with up to maxMissing names if any are truly undefined
// (spec.md §4.7 phase 5).
func (t *SymTab) Resolve(relocs []Reloc, maxMissing int) error {
	var missing []string
	for _, r := range relocs {
		e, ok := t.entries[r.Symbol]
		if ok && (e.defined || e.common || e.dynamic || e.weak) {
			continue
		}
		missing = append(missing, r.Symbol)
		if len(missing) >= maxMissing {
			break
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("linker: undefined reference to %v", missing)
	}
	return nil
}
