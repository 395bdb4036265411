package backend

import (
	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/regalloc"
	"github.com/dj707chen/nativecc/internal/stacklayout"
)

// Compiler drives one Machine across a whole ir.Function, wiring in
// the stacklayout.Layout and regalloc.Result already computed for it
// (spec.md §4.5: "the code generator consumes stack layout and
// register allocation results; it does not redo either analysis").
type Compiler interface {
	// Compile lowers fn into final machine code and any relocations
	// still pending against not-yet-placed symbols.
	Compile(fn *ir.Function) ([]byte, []Relocation, error)

	// CompileWithAnalyses lowers fn against a stack layout and register
	// allocation the caller has already computed for it.
	CompileWithAnalyses(fn *ir.Function, layout *stacklayout.Layout, regs *regalloc.Result) ([]byte, []Relocation, error)

	// Reset prepares the Compiler for the next function.
	Reset()
}

// NewCompiler builds a Compiler around mach, keyed to the stack layout
// and register allocation results already computed for each function
// to be compiled.
func NewCompiler(mach Machine) Compiler {
	c := &compiler{
		mach:           mach,
		alreadyLowered: make(map[*ir.Instruction]struct{}),
	}
	mach.SetCompilationContext(c)
	return c
}

type compiler struct {
	mach Machine

	fn     *ir.Function
	layout *stacklayout.Layout
	regs   *regalloc.Result

	nextVRegID     VRegID
	valueToVReg    map[ir.ValueID]VReg
	vRegToRegType  map[VRegID]RegType
	alreadyLowered map[*ir.Instruction]struct{}
}

// CompileWithAnalyses is the entry point used by internal/compiler's
// pipeline, which has already run stacklayout.Compute and
// regalloc.Allocate for fn; Compile alone (satisfying the Compiler
// interface) recomputes both from scratch, useful for codegen unit
// tests that only care about one function in isolation.
func (c *compiler) CompileWithAnalyses(fn *ir.Function, layout *stacklayout.Layout, regs *regalloc.Result) ([]byte, []Relocation, error) {
	c.fn, c.layout, c.regs = fn, layout, regs
	c.assignVirtualRegisters()
	c.mach.StartFunction(fn)
	for _, b := range fn.Blocks {
		c.lowerBlock(b)
	}
	c.mach.EndFunction()
	return c.mach.Encode()
}

// Compile implements Compiler by computing stack layout and register
// allocation itself before lowering, for callers that haven't already
// run both passes.
func (c *compiler) Compile(fn *ir.Function) ([]byte, []Relocation, error) {
	layout := stacklayout.Compute(fn)
	lv := layout.Liveness
	regs := regalloc.Allocate(fn, lv, nil, regalloc.Constraints{}, func(ir.ValueID) bool { return false })
	return c.CompileWithAnalyses(fn, layout, regs)
}

func (c *compiler) lowerBlock(b *ir.Block) {
	c.mach.StartBlock(b)
	for _, in := range b.Instrs {
		if _, skip := c.alreadyLowered[in]; skip {
			continue
		}
		c.mach.LowerInstr(in)
	}
	c.mach.EndBlock()
}

// assignVirtualRegisters hands every value a VReg, pre-seeded with its
// RealReg when regalloc.Result assigned one; values stacklayout put in
// Tier1/Tier2/Tier3 still get a VReg (the Machine spills/fills it
// against the slot CompilationContext.SlotOf reports) so lowering
// never special-cases "has no register" as a distinct code path.
func (c *compiler) assignVirtualRegisters() {
	c.valueToVReg = map[ir.ValueID]VReg{}
	c.vRegToRegType = map[VRegID]RegType{}
	for _, b := range c.fn.Blocks {
		for _, in := range b.Instrs {
			if in.HasResult() {
				c.allocateVRegFor(in.Result)
			}
			// Operands referencing parameter values (defined with no
			// owning instruction) otherwise never get visited, since
			// they never appear as an instr.Result.
			in.Uses(func(v ir.ValueID) { c.allocateVRegFor(v) })
		}
	}
}

func (c *compiler) allocateVRegFor(v ir.ValueID) {
	if _, ok := c.valueToVReg[v]; ok {
		return
	}
	id := c.nextVRegID
	c.nextVRegID++
	vr := VReg(id)
	t := c.fn.TypeOf(v)
	rt := RegTypeInt
	if t.IsFloat() {
		rt = RegTypeFloat
	}
	if t == ir.I128 || t == ir.U128 || t == ir.F128 {
		rt = RegTypeNone
	}
	if c.regs != nil {
		if r, ok := c.regs.Assigned[v]; ok {
			vr = vr.WithRealReg(RealReg(r))
		}
	}
	c.valueToVReg[v] = vr
	c.vRegToRegType[id] = rt
}

// MarkLowered implements CompilationContext.
func (c *compiler) MarkLowered(instr *ir.Instruction) { c.alreadyLowered[instr] = struct{}{} }

// VRegOf implements CompilationContext.
func (c *compiler) VRegOf(v ir.ValueID) VReg { return c.valueToVReg[v] }

// SlotOf implements CompilationContext.
func (c *compiler) SlotOf(v ir.ValueID) (int64, int64, int, bool) {
	s, ok := c.layout.Slot[v]
	if !ok {
		return 0, 0, 0, false
	}
	return s.Offset, s.Size, s.Align, true
}

// RealRegOf implements CompilationContext.
func (c *compiler) RealRegOf(v ir.ValueID) (RealReg, bool) {
	if c.regs == nil {
		return 0, false
	}
	r, ok := c.regs.Assigned[v]
	return RealReg(r), ok
}

// FrameSize implements CompilationContext.
func (c *compiler) FrameSize() int64 { return c.layout.FrameSize }

// Reset implements Compiler.
func (c *compiler) Reset() {
	c.fn, c.layout, c.regs = nil, nil, nil
	c.valueToVReg = nil
	c.vRegToRegType = nil
	c.nextVRegID = 0
	for k := range c.alreadyLowered {
		delete(c.alreadyLowered, k)
	}
	c.mach.Reset()
}
