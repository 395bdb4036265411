package arm64

import (
	"fmt"

	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/ir"
)

// Machine implements backend.Machine for the AAPCS64 target.
type Machine struct {
	ctx context

	fn           *ir.Function
	instrs       []Instr
	blockLabel   map[ir.BlockID]string
	usedCallee   map[backend.RealReg]bool
	frameSize    int64
	labelCounter int
}

type context = backend.CompilationContext

// New returns a fresh AArch64 Machine.
func New() *Machine { return &Machine{usedCallee: map[backend.RealReg]bool{}} }

func (m *Machine) SetCompilationContext(ctx backend.CompilationContext) { m.ctx = ctx }

func (m *Machine) StartFunction(fn *ir.Function) {
	m.fn = fn
	m.instrs = m.instrs[:0]
	m.blockLabel = map[ir.BlockID]string{}
	for _, b := range fn.Blocks {
		m.blockLabel[b.ID] = fmt.Sprintf(".L%s_%s", fn.Name, b.ID.String())
	}
	m.frameSize = m.ctx.FrameSize()
}

func (m *Machine) StartBlock(b *ir.Block) {
	m.emit(Instr{Op: ALabel, Label: m.blockLabel[b.ID]})
}

func (m *Machine) EndBlock() {}

// EndFunction emits the standard AAPCS64 frame-pointer prologue: stp
// x29,x30,[sp,#-N]!; mov x29,sp; then stacks any used callee-saved
// register pairs (spec.md §5 "prologue/epilogue").
func (m *Machine) EndFunction() {
	var prologue []Instr
	prologue = append(prologue, Instr{Op: AStr, Dst: Operand{Kind: OperandMem, Mem: MemOperand{Base: sp, Disp: int32(-(m.frameSize + 16))}}, Src1: regOp(x30)})
	prologue = append(prologue, Instr{Op: AMovRR, Is64: true, Dst: regOp(x29), Src1: regOp(sp)})
	for _, r := range CalleeSaved {
		if m.usedCallee[r] {
			prologue = append(prologue, Instr{Op: AStr, Dst: regOp(r), Src1: regOp(r)})
		}
	}
	m.instrs = append(prologue, m.instrs...)
}

func (m *Machine) emitEpilogue() {
	for i := len(CalleeSaved) - 1; i >= 0; i-- {
		if r := CalleeSaved[i]; m.usedCallee[r] {
			m.emit(Instr{Op: ALdr, Dst: regOp(r), Src1: regOp(r)})
		}
	}
	m.emit(Instr{Op: ALdr, Dst: regOp(x30), Src1: Operand{Kind: OperandMem, Mem: MemOperand{Base: sp, Disp: int32(m.frameSize)}}})
	m.emit(Instr{Op: ARet})
}

// Encode implements backend.Machine, running the lowered stream
// through the peephole pass before final encoding.
func (m *Machine) Encode() ([]byte, []backend.Relocation, error) {
	return encode(peephole(m.instrs), m.fn.Name)
}

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

func regOp(r backend.RealReg) Operand { return Operand{Kind: OperandReg, Reg: r} }
func immOp(v int64) Operand           { return Operand{Kind: OperandImm, Imm: v} }
func memOp(base backend.RealReg, disp int32) Operand {
	return Operand{Kind: OperandMem, Mem: MemOperand{Base: base, Disp: disp}}
}

func (m *Machine) vregToPhys(v ir.ValueID) (backend.RealReg, bool) { return m.ctx.RealRegOf(v) }

func (m *Machine) slotOperand(v ir.ValueID) Operand {
	off, _, _, ok := m.ctx.SlotOf(v)
	if !ok {
		return Operand{}
	}
	return memOp(x29, int32(-off-16))
}

func is64(t ir.Type) bool { return t.Size() > 4 }
