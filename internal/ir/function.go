package ir

// Param is one entry of a Function's ordered parameter list.
type Param struct {
	Name string
	Type Type
}

// Function is a module-level definition: a name, signature, and
// (unless DeclOnly) an ordered list of basic blocks whose first entry
// is the entry block (spec.md §3).
type Function struct {
	Name      string
	RetType   Type
	Params    []Param
	Variadic  bool
	DeclOnly  bool

	Blocks []*Block

	nextValue ValueID
	nextBlock BlockID

	// defs maps a ValueID to its primary definition site. multiDef
	// additionally records every defining block for values phi
	// elimination has given more than one definition (stack-layout
	// Tier 2 classification needs this set, spec.md §4.3 Phase 1).
	defs    map[ValueID]ValueDef
	multiDef map[ValueID][]BlockID
}

// NewFunction creates an empty function; the caller appends blocks via
// AllocateBlock and AppendBlock.
func NewFunction(name string, ret Type, params []Param, variadic bool) *Function {
	return &Function{
		Name: name, RetType: ret, Params: params, Variadic: variadic,
		defs: make(map[ValueID]ValueDef),
	}
}

// Entry returns the function's entry block (its first block), or nil
// for a declaration-only function.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// AllocateBlock creates a new, unattached Block with a fresh ID.
func (f *Function) AllocateBlock() *Block {
	f.nextBlock++
	return &Block{ID: f.nextBlock}
}

// AppendBlock appends b to the function's block list, making it the
// entry block if it is the first one appended.
func (f *Function) AppendBlock(b *Block) { f.Blocks = append(f.Blocks, b) }

// AllocateValue reserves a fresh ValueID for a value of type t, defined
// by instr (nil for block/function parameters) in block.
func (f *Function) AllocateValue(t Type, block BlockID, instr *Instruction) ValueID {
	f.nextValue++
	v := f.nextValue
	f.defs[v] = ValueDef{Type: t, Block: block, Instr: instr}
	return v
}

// Def returns the definition of v, and whether v is defined at all.
func (f *Function) Def(v ValueID) (ValueDef, bool) {
	d, ok := f.defs[v]
	return d, ok
}

// TypeOf returns the type of v.
func (f *Function) TypeOf(v ValueID) Type {
	return f.defs[v].Type
}

// MarkMultiDef records that v is (also) defined in block, used when phi
// elimination materializes a value with more than one defining block.
func (f *Function) MarkMultiDef(v ValueID, block BlockID) {
	if f.multiDef == nil {
		f.multiDef = make(map[ValueID][]BlockID)
	}
	f.multiDef[v] = append(f.multiDef[v], block)
}

// MultiDefBlocks returns the extra defining blocks recorded for v, if any.
func (f *Function) MultiDefBlocks(v ValueID) []BlockID { return f.multiDef[v] }

// IsMultiDef reports whether v has more than one defining block.
func (f *Function) IsMultiDef(v ValueID) bool { return len(f.multiDef[v]) > 0 }

// MultiDefBlocksAll returns the full multi-def table (value -> extra
// defining blocks), for passes that need to iterate every multi-def
// value rather than query one at a time.
func (f *Function) MultiDefBlocksAll() map[ValueID][]BlockID { return f.multiDef }

// BlockByID finds a block by id, or nil.
func (f *Function) BlockByID(id BlockID) *Block {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// ComputeCFG (re)derives every block's Preds/Succs from its terminator
// alone. LabelAddr-addressed blocks and InlineAsm goto targets get no
// edges here; ReachableFromEntry treats them as extra roots instead, so
// CFG simplification's dead-block removal (spec.md §4.2) keeps them.
func (f *Function) ComputeCFG() {
	for _, b := range f.Blocks {
		b.Preds = b.Preds[:0]
		b.Succs = b.Succs[:0]
	}
	index := make(map[BlockID]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		index[b.ID] = b
	}
	addEdge := func(from *Block, to BlockID) {
		if !to.Valid() {
			return
		}
		from.Succs = append(from.Succs, to)
		if tb := index[to]; tb != nil {
			tb.Preds = append(tb.Preds, from.ID)
		}
	}
	for _, b := range f.Blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		switch term.Opcode {
		case OpBranch:
			addEdge(b, term.Target)
		case OpCondBranch:
			addEdge(b, term.TrueTarget)
			addEdge(b, term.FalseTarget)
		case OpSwitch:
			for _, c := range term.Cases {
				addEdge(b, c.Target)
			}
			addEdge(b, term.DefaultTarget)
		case OpIndirectBranch:
			for _, t := range term.PossibleTargets {
				addEdge(b, t)
			}
		}
	}
}

// ReachableFromEntry computes the set of blocks reachable from the
// entry block via real control-flow edges (Succs), plus LabelAddr
// targets and InlineAsm goto labels, which must not be pruned even
// though they are not control-flow predecessors of anything (spec.md
// §4.2 dead-block removal; Scenario D, computed goto).
func (f *Function) ReachableFromEntry() map[BlockID]bool {
	reachable := make(map[BlockID]bool, len(f.Blocks))
	entry := f.Entry()
	if entry == nil {
		return reachable
	}
	// Any block addressed by a LabelAddr or named as an inline-asm goto
	// target is a root too: computed goto can jump there even without a
	// direct predecessor edge.
	var roots []BlockID
	roots = append(roots, entry.ID)
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Opcode == OpLabelAddr {
				roots = append(roots, in.Target)
			}
			if in.Opcode == OpInlineAsm {
				roots = append(roots, in.AsmGotoTargets...)
			}
		}
	}
	index := make(map[BlockID]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		index[b.ID] = b
	}
	var queue []BlockID
	for _, r := range roots {
		if !reachable[r] {
			reachable[r] = true
			queue = append(queue, r)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		b := index[id]
		if b == nil {
			continue
		}
		for _, s := range b.Succs {
			if !reachable[s] {
				reachable[s] = true
				queue = append(queue, s)
			}
		}
	}
	return reachable
}
