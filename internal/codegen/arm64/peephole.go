package arm64

// peephole is a lighter AArch64 counterpart of codegen/x86 and
// codegen/riscv64's peephole passes: there is no AArch64 original to
// ground a full pattern table on, so this covers the two patterns that
// carry over mechanically regardless of target (self-move, redundant
// branch-to-next-label), run to a fixed point like the other two targets.
func peephole(instrs []Instr) []Instr {
	for pass, changed := 0, true; changed && pass < 10; pass++ {
		instrs, changed = peepholePass(instrs)
	}
	return instrs
}

func peepholePass(instrs []Instr) ([]Instr, bool) {
	out := make([]Instr, 0, len(instrs))
	changed := false

	for i := 0; i < len(instrs); i++ {
		in := instrs[i]

		if in.Op == AMovRR && in.Dst.Kind == OperandReg && in.Src1.Kind == OperandReg && in.Dst.Reg == in.Src1.Reg {
			changed = true
			continue
		}

		if in.Op == AB && i+1 < len(instrs) && instrs[i+1].Op == ALabel && instrs[i+1].Label == in.Label {
			changed = true
			continue
		}

		out = append(out, in)
	}
	return out, changed
}
