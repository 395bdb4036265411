package x86

import "github.com/dj707chen/nativecc/internal/backend"

// peephole runs a fixed-point sequence of local rewrites over a
// lowered instruction stream, adapted from the original line-based
// x86-64 assembly-text optimizer (store/load elimination, push/pop
// elision, redundant jumps) to this core's structured []Instr
// representation: the same four patterns plus self-mov elimination,
// matched over Instr fields
// instead of string-parsed operands. Mirrors the original's own
// "run until no more changes, bounded" driver.
func peephole(instrs []Instr) []Instr {
	for pass, changed := 0, true; changed && pass < 10; pass++ {
		instrs, changed = peepholePass(instrs)
	}
	return instrs
}

func peepholePass(instrs []Instr) ([]Instr, bool) {
	out := make([]Instr, 0, len(instrs))
	changed := false

	sameMem := func(a, b MemOperand) bool {
		return a.Base == b.Base && a.Disp == b.Disp && a.RipRelative == b.RipRelative && a.Symbol == b.Symbol
	}

	for i := 0; i < len(instrs); i++ {
		in := instrs[i]

		// Pattern: self-mov (dst == src) carries no effect.
		if in.Op == XMovRR && in.Dst.Kind == OperandReg && in.Src1.Kind == OperandReg && in.Dst.Reg == in.Src1.Reg {
			changed = true
			continue
		}

		if in.Op == XMovMR && i+1 < len(instrs) {
			next := instrs[i+1]
			// Pattern 1: store to [mem] then load the same [mem] back into
			// the same register the store came from -> the load is a no-op.
			if next.Op == XMovRM && sameMem(in.Dst.Mem, next.Src1.Mem) && next.Dst.Reg == in.Src1.Reg {
				out = append(out, in)
				i++
				changed = true
				continue
			}
			// Pattern 2: store to [mem] then load the same [mem] into a
			// different register -> replace the load with a register move,
			// since the value is already sitting in a register.
			if next.Op == XMovRM && sameMem(in.Dst.Mem, next.Src1.Mem) && next.Dst.Reg != in.Src1.Reg {
				out = append(out, in)
				out = append(out, Instr{Op: XMovRR, Width: next.Width, Dst: next.Dst, Src1: regOp(in.Src1.Reg)})
				i++
				changed = true
				continue
			}
		}

		// Pattern 3: push reg / mov .../ pop the same reg, with the
		// intervening instruction never touching that register, restores
		// exactly what was pushed -> drop the push/pop, keep the middle.
		if in.Op == XPush && i+2 < len(instrs) {
			mid := instrs[i+1]
			pop := instrs[i+2]
			if pop.Op == XPop && pop.Dst.Reg == in.Src1.Reg && !touchesReg(mid, in.Src1.Reg) {
				out = append(out, mid)
				i += 2
				changed = true
				continue
			}
		}

		// Pattern 4: an unconditional jump whose target is the label that
		// immediately follows it is a no-op.
		if in.Op == XJmp && i+1 < len(instrs) && instrs[i+1].Op == XLabel && instrs[i+1].Label == in.Label {
			changed = true
			continue
		}

		out = append(out, in)
	}
	return out, changed
}

// touchesReg reports whether in reads or writes r, conservatively
// (treats any operand mentioning r as a touch); used only to guard the
// push/pop elision above.
func touchesReg(in Instr, r backend.RealReg) bool {
	check := func(o Operand) bool { return o.Kind == OperandReg && o.Reg == r }
	if check(in.Dst) || check(in.Src1) || check(in.Src2) {
		return true
	}
	if in.Dst.Kind == OperandMem && in.Dst.Mem.Base == r {
		return true
	}
	if in.Src1.Kind == OperandMem && in.Src1.Mem.Base == r {
		return true
	}
	return false
}
