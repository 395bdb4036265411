package linker

// GCSections implements spec.md §4.7 phase 4 (`--gc-sections`): it
// computes the reachable set of (object, section) pairs starting from
// the entry symbol and any retained/exported sections, following
// relocations as a section-level call graph, and returns the set to
// pass to MergeSections as its live filter.
func GCSections(objs []*Object, entry string, retain []string) map[string]bool {
	// symbolSection maps every defined symbol to the (object, section)
	// that defines it, so a relocation's target symbol can be turned
	// into a section-graph edge.
	type key struct {
		obj     *Object
		section string
	}
	symbolSection := map[string]key{}
	for _, obj := range objs {
		for _, s := range obj.Symbols {
			if s.Defined {
				symbolSection[s.Name] = key{obj, s.Section}
			}
		}
	}

	live := map[string]bool{}
	var worklist []key
	markRoot := func(name string) {
		if k, ok := symbolSection[name]; ok {
			worklist = append(worklist, k)
		}
	}
	markRoot(entry)
	for _, r := range retain {
		markRoot(r)
	}
	// Retained section classes (.init, .fini) are always kept
	// regardless of reachability, per spec.md §4.7 phase 4.
	for _, obj := range objs {
		for name := range obj.Sections {
			if name == ".init" || name == ".fini" || name == ".init_array" || name == ".fini_array" {
				worklist = append(worklist, key{obj, name})
			}
		}
	}

	for len(worklist) > 0 {
		k := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		id := k.obj.Path + "\x00" + k.section
		if live[id] {
			continue
		}
		live[id] = true
		for _, r := range k.obj.Relocs {
			if r.Section != k.section {
				continue
			}
			if target, ok := symbolSection[r.Symbol]; ok {
				worklist = append(worklist, target)
			}
		}
	}
	return live
}
