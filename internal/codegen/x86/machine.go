package x86

import (
	"fmt"

	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/ir"
)

// Machine implements backend.Machine for the SysV AMD64 target.
type Machine struct {
	ctx backend.CompilationContext
	fn  *ir.Function

	instrs       []Instr
	blockLabel   map[ir.BlockID]string
	curBlock     ir.BlockID
	usedCallee   map[backend.RealReg]bool
	frameSize    int64
	labelCounter int
}

// New returns a fresh x86-64 Machine.
func New() *Machine { return &Machine{usedCallee: map[backend.RealReg]bool{}} }

// SetCompilationContext implements backend.Machine.
func (m *Machine) SetCompilationContext(ctx backend.CompilationContext) { m.ctx = ctx }

// StartFunction implements backend.Machine.
func (m *Machine) StartFunction(fn *ir.Function) {
	m.fn = fn
	m.instrs = m.instrs[:0]
	m.blockLabel = map[ir.BlockID]string{}
	for _, b := range fn.Blocks {
		m.blockLabel[b.ID] = fmt.Sprintf(".L%s_%s", fn.Name, b.ID.String())
	}
	m.frameSize = m.ctx.FrameSize()
	// Reserve space for a return-address slot push(rbp)/mov rbp,rsp is
	// emitted lazily in EndFunction once usedCallee is fully known.
}

// StartBlock implements backend.Machine.
func (m *Machine) StartBlock(b *ir.Block) {
	m.curBlock = b.ID
	m.emit(Instr{Op: XLabel, Label: m.blockLabel[b.ID]})
}

// EndBlock implements backend.Machine.
func (m *Machine) EndBlock() {}

// EndFunction implements backend.Machine.
func (m *Machine) EndFunction() {
	prologue := m.buildPrologue()
	epilogueLen := m.buildEpilogueTemplateLen()
	_ = epilogueLen
	m.instrs = append(prologue, m.instrs...)
}

// buildPrologue emits the standard frame-pointer prologue: push rbp;
// mov rbp,rsp; sub rsp,frameSize; push each used callee-saved
// register (spec.md §5 "prologue/epilogue").
func (m *Machine) buildPrologue() []Instr {
	var out []Instr
	out = append(out, Instr{Op: XPush, Width: W64, Src1: regOp(rbp)})
	out = append(out, Instr{Op: XMovRR, Width: W64, Dst: regOp(rbp), Src1: regOp(rsp)})
	if m.frameSize > 0 {
		out = append(out, Instr{Op: XSubRR, Width: W64, Dst: regOp(rsp), Src1: immOp(m.frameSize)})
	}
	for _, r := range CalleeSaved {
		if m.usedCallee[r] {
			out = append(out, Instr{Op: XPush, Width: W64, Src1: regOp(r)})
		}
	}
	return out
}

func (m *Machine) buildEpilogueTemplateLen() int { return 0 }

// emitEpilogue is called by LowerInstr when lowering an IR return, in
// reverse order of the prologue's pushes.
func (m *Machine) emitEpilogue() {
	for i := len(CalleeSaved) - 1; i >= 0; i-- {
		r := CalleeSaved[i]
		if m.usedCallee[r] {
			m.emit(Instr{Op: XPop, Width: W64, Dst: regOp(r)})
		}
	}
	m.emit(Instr{Op: XMovRR, Width: W64, Dst: regOp(rsp), Src1: regOp(rbp)})
	m.emit(Instr{Op: XPop, Width: W64, Dst: regOp(rbp)})
	m.emit(Instr{Op: XRet})
}

// Encode implements backend.Machine. The lowered stream runs through
// the peephole pass first, cleaning up the redundant store/load and
// push/pop pairs that the per-value, stack-slot-oriented lowering
// above routinely produces.
func (m *Machine) Encode() ([]byte, []backend.Relocation, error) {
	return encode(peephole(m.instrs), m.fn.Name)
}

// Reset implements backend.Machine.
func (m *Machine) Reset() {
	m.fn = nil
	m.instrs = nil
	m.blockLabel = nil
	for k := range m.usedCallee {
		delete(m.usedCallee, k)
	}
	m.frameSize = 0
}

func (m *Machine) emit(i Instr) { m.instrs = append(m.instrs, i) }

func (m *Machine) newLabel(prefix string) string {
	m.labelCounter++
	return fmt.Sprintf(".L%s_%s_%d", m.fn.Name, prefix, m.labelCounter)
}

func regOp(r backend.RealReg) Operand  { return Operand{Kind: OperandReg, Reg: r} }
func immOp(v int64) Operand            { return Operand{Kind: OperandImm, Imm: v} }
func memOp(base backend.RealReg, disp int32) Operand {
	return Operand{Kind: OperandMem, Mem: MemOperand{Base: base, Disp: disp}}
}

// vregToPhys returns the RealReg regalloc assigned to v; ok is false
// when v was left memory-resident, and callers (operandOf/dstOf) then
// fall back to slotOperand's rbp-relative slot. widthOf gives the
// natural operand width for an IR type.
func (m *Machine) vregToPhys(v ir.ValueID) (backend.RealReg, bool) {
	return m.ctx.RealRegOf(v)
}

func (m *Machine) slotOperand(v ir.ValueID) Operand {
	off, _, _, ok := m.ctx.SlotOf(v)
	if !ok {
		return Operand{}
	}
	// Stack grows down from rbp; slot offsets are allocated upward from
	// 0 in stacklayout, so frame-relative addressing subtracts.
	return memOp(rbp, int32(-off-8))
}

func widthOf(t ir.Type) Width {
	switch t.Size() {
	case 1:
		return W8
	case 2:
		return W16
	case 4:
		return W32
	default:
		return W64
	}
}
