package riscv64

import (
	"fmt"

	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/ir"
)

// Machine implements backend.Machine for the RISC-V LP64D target.
type Machine struct {
	ctx backend.CompilationContext

	fn           *ir.Function
	instrs       []Instr
	blockLabel   map[ir.BlockID]string
	usedCallee   map[backend.RealReg]bool
	frameSize    int64
	labelCounter int
}

// New returns a fresh RISC-V64 Machine.
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
	m.emit(Instr{Op: RLabel, Label: m.blockLabel[b.ID]})
}

func (m *Machine) EndBlock() {}

// EndFunction emits the standard prologue: addi sp,sp,-(frame+16);
// sd ra,frame+8(sp); sd s0,frame(sp); addi s0,sp,frame+16 (spec.md
// §5 "prologue/epilogue").
func (m *Machine) EndFunction() {
	total := m.frameSize + 16
	var prologue []Instr
	prologue = append(prologue, Instr{Op: RAddi, Width: W64, Dst: regOp(sp), Src1: regOp(sp), Src2: immOp(-total)})
	prologue = append(prologue, Instr{Op: RSd, Dst: memOp(sp, int32(total-8)), Src1: regOp(ra)})
	prologue = append(prologue, Instr{Op: RSd, Dst: memOp(sp, int32(total-16)), Src1: regOp(s0)})
	prologue = append(prologue, Instr{Op: RAddi, Width: W64, Dst: regOp(s0), Src1: regOp(sp), Src2: immOp(total)})
	for _, r := range CalleeSaved {
		if m.usedCallee[r] {
			prologue = append(prologue, Instr{Op: RSd, Dst: regOp(r), Src1: regOp(r)})
		}
	}
	m.instrs = append(prologue, m.instrs...)
}

func (m *Machine) emitEpilogue() {
	total := m.frameSize + 16
	for i := len(CalleeSaved) - 1; i >= 0; i-- {
		if r := CalleeSaved[i]; m.usedCallee[r] {
			m.emit(Instr{Op: RLd, Dst: regOp(r), Src1: regOp(r)})
		}
	}
	m.emit(Instr{Op: RLd, Width: W64, Dst: regOp(ra), Src1: memOp(sp, int32(total-8))})
	m.emit(Instr{Op: RLd, Width: W64, Dst: regOp(s0), Src1: memOp(sp, int32(total-16))})
	m.emit(Instr{Op: RAddi, Width: W64, Dst: regOp(sp), Src1: regOp(sp), Src2: immOp(total)})
	m.emit(Instr{Op: RJalr, Dst: regOp(zero), Src1: regOp(ra), Src2: immOp(0)})
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
	return memOp(s0, int32(-off-16))
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
