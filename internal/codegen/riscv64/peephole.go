package riscv64

// peephole adapts the original line-based RISC-V assembly-text
// optimizer's first three patterns (adjacent store/load elimination,
// redundant jump-to-next-label, self-move elimination) to this core's
// structured []Instr stream, run to a fixed point the same way.
func peephole(instrs []Instr) []Instr {
	for pass, changed := 0, true; changed && pass < 10; pass++ {
		instrs, changed = peepholePass(instrs)
	}
	return instrs
}

func peepholePass(instrs []Instr) ([]Instr, bool) {
	out := make([]Instr, 0, len(instrs))
	changed := false

	sameMem := func(a, b MemOperand) bool { return a.Base == b.Base && a.Disp == b.Disp }

	for i := 0; i < len(instrs); i++ {
		in := instrs[i]

		// Self-move: mv rX, rX is a no-op.
		if in.Op == RMv && in.Dst.Kind == OperandReg && in.Src1.Kind == OperandReg && in.Dst.Reg == in.Src1.Reg {
			changed = true
			continue
		}

		// Adjacent store/load to the same frame slot and register: the
		// load is redundant, the value is already in the register.
		if in.Op == RSd && i+1 < len(instrs) {
			next := instrs[i+1]
			if next.Op == RLd && sameMem(in.Dst.Mem, next.Src1.Mem) && next.Dst.Reg == in.Src1.Reg {
				out = append(out, in)
				i++
				changed = true
				continue
			}
			if next.Op == RLd && sameMem(in.Dst.Mem, next.Src1.Mem) && next.Dst.Reg != in.Src1.Reg {
				out = append(out, in)
				out = append(out, Instr{Op: RMv, Width: next.Width, Dst: next.Dst, Src1: regOp(in.Src1.Reg)})
				i++
				changed = true
				continue
			}
		}

		// Redundant jump: an unconditional jal to zero whose target label
		// immediately follows it.
		if in.Op == RJal && in.Dst.Kind == OperandReg && in.Dst.Reg == zero && i+1 < len(instrs) &&
			instrs[i+1].Op == RLabel && instrs[i+1].Label == in.Label {
			changed = true
			continue
		}

		out = append(out, in)
	}
	return out, changed
}
