package riscv64

import "github.com/dj707chen/nativecc/internal/ir"

// LowerInstr implements backend.Machine; phis must already be
// eliminated by internal/passes.PhiElim (spec.md §3).
func (m *Machine) LowerInstr(in *ir.Instruction) {
	switch in.Opcode {
	case ir.OpAlloca:
	case ir.OpBinOp:
		m.lowerBinOp(in)
	case ir.OpUnaryOp:
		m.lowerUnaryOp(in)
	case ir.OpCmp:
		m.lowerCmp(in)
	case ir.OpCopy:
		m.emit(Instr{Op: RMv, Width: widthOf(in.Type), Dst: m.dstOf(in.Result), Src1: m.operandOf(in.Args[0])})
	case ir.OpCast:
		m.lowerCast(in)
	case ir.OpLoad, ir.OpAtomicLoad:
		m.emit(Instr{Op: RLd, Width: widthOf(in.Type), Signed: in.Type.Signed(), Dst: m.dstOf(in.Result), Src1: m.operandOf(in.Args[0])})
	case ir.OpStore:
		m.lowerStore(in)
	case ir.OpAtomicStore:
		m.lowerAtomicStore(in)
	case ir.OpGlobalAddr:
		m.lowerGlobalAddr(in)
	case ir.OpCall:
		m.lowerCall(in)
	case ir.OpSelect:
		m.lowerSelect(in)
	case ir.OpReturn:
		m.lowerReturn(in)
	case ir.OpBranch:
		m.emit(Instr{Op: RJal, Dst: regOp(zero), Label: m.blockLabel[in.Target]})
	case ir.OpCondBranch:
		m.lowerCondBranch(in)
	case ir.OpUnreachable:
		m.emit(Instr{Op: RUnimp})
	case ir.OpAtomicCmpxchg:
		m.lowerAtomicCmpxchg(in)
	case ir.OpGetElementPtr:
		m.lowerGEP(in)
	case ir.OpMemcpy:
		m.lowerMemcpy(in)
	case ir.OpDynAlloca:
		m.lowerDynAlloca(in)
	case ir.OpCallIndirect:
		m.lowerCallIndirect(in)
	case ir.OpSwitch:
		m.lowerSwitch(in)
	case ir.OpLabelAddr:
		m.emit(Instr{Op: RLa, Dst: m.dstOf(in.Result), Label: m.blockLabel[in.Target]})
	case ir.OpIndirectBranch:
		m.emit(Instr{Op: RJalr, Dst: regOp(zero), Src1: m.addrReg(regOp(t6), m.operandOf(in.Args[0])), Src2: immOp(0)})
	default:
		// InlineAsm/Intrinsic/variadic (va_start/va_arg/va_copy) ops have
		// no internal/lower AST surface yet (see DESIGN.md); a visible
		// trap is safer than silently miscompiling until they do.
		m.emit(Instr{Op: RUnimp})
	}
}

func (m *Machine) operandOf(o ir.Operand) Operand {
	if o.IsConst {
		return immOp(constToImm(o.Const))
	}
	if r, ok := m.vregToPhys(o.Value); ok {
		return regOp(r)
	}
	return m.slotOperand(o.Value)
}

func constToImm(c ir.Const) int64 {
	switch c.Kind {
	case ir.ConstI8, ir.ConstI16, ir.ConstI32, ir.ConstI64:
		return c.I64
	case ir.ConstGlobalAddr:
		return c.Offset
	default:
		return 0
	}
}

func (m *Machine) dstOf(v ir.ValueID) Operand {
	if r, ok := m.vregToPhys(v); ok {
		return regOp(r)
	}
	return m.slotOperand(v)
}

func (m *Machine) lowerBinOp(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	lhs := m.operandOf(in.Args[0])
	rhs := m.operandOf(in.Args[1])
	width := widthOf(in.Type)
	isFloat := in.Type.IsFloat()
	var op ROp
	switch in.BinOp {
	case ir.BinAdd:
		op = RAdd
		if isFloat {
			op = RFaddD
		}
	case ir.BinSub:
		op = RSub
		if isFloat {
			op = RFsubD
		}
	case ir.BinMul:
		op = RMul
		if isFloat {
			op = RFmulD
		}
	case ir.BinSDiv:
		op = RDiv
	case ir.BinUDiv:
		op = RDivu
	case ir.BinSRem:
		op = RRem
	case ir.BinURem:
		op = RRemu
	case ir.BinAnd:
		op = RAnd
	case ir.BinOr:
		op = ROr
	case ir.BinXor:
		op = RXor
	case ir.BinShl:
		op = RSll
	case ir.BinLShr:
		op = RSrl
	case ir.BinAShr:
		op = RSra
	case ir.BinFDiv:
		op = RFdivD
	}
	m.emit(Instr{Op: op, Width: width, Dst: dst, Src1: lhs, Src2: rhs})
}

func (m *Machine) lowerUnaryOp(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	src := m.operandOf(in.Args[0])
	switch in.Unary {
	case ir.UnaryNeg, ir.UnaryFNeg:
		m.emit(Instr{Op: RNeg, Width: widthOf(in.Type), Dst: dst, Src1: src})
	case ir.UnaryNot:
		m.emit(Instr{Op: RNot, Width: widthOf(in.Type), Dst: dst, Src1: src})
	}
}

// lowerCmp builds every predicate from Slt/Sltu plus an optional
// Xori/Seqz/Snez inversion, since RISC-V has no dedicated compare
// instruction (spec.md §5: "compares lower to slt/sltu sequences").
func (m *Machine) lowerCmp(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	lhs := m.operandOf(in.Args[0])
	rhs := m.operandOf(in.Args[1])
	switch in.Pred {
	case ir.CmpEq:
		m.emit(Instr{Op: RXor, Dst: dst, Src1: lhs, Src2: rhs})
		m.emit(Instr{Op: RSeqz, Dst: dst, Src1: dst})
	case ir.CmpNe:
		m.emit(Instr{Op: RXor, Dst: dst, Src1: lhs, Src2: rhs})
		m.emit(Instr{Op: RSnez, Dst: dst, Src1: dst})
	case ir.CmpSlt:
		m.emit(Instr{Op: RSlt, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.CmpSgt:
		m.emit(Instr{Op: RSlt, Dst: dst, Src1: rhs, Src2: lhs})
	case ir.CmpSle:
		m.emit(Instr{Op: RSlt, Dst: dst, Src1: rhs, Src2: lhs})
		m.emit(Instr{Op: RXori, Dst: dst, Src1: dst, Src2: immOp(1)})
	case ir.CmpSge:
		m.emit(Instr{Op: RSlt, Dst: dst, Src1: lhs, Src2: rhs})
		m.emit(Instr{Op: RXori, Dst: dst, Src1: dst, Src2: immOp(1)})
	case ir.CmpUlt:
		m.emit(Instr{Op: RSltu, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.CmpUgt:
		m.emit(Instr{Op: RSltu, Dst: dst, Src1: rhs, Src2: lhs})
	case ir.CmpUle:
		m.emit(Instr{Op: RSltu, Dst: dst, Src1: rhs, Src2: lhs})
		m.emit(Instr{Op: RXori, Dst: dst, Src1: dst, Src2: immOp(1)})
	case ir.CmpUge:
		m.emit(Instr{Op: RSltu, Dst: dst, Src1: lhs, Src2: rhs})
		m.emit(Instr{Op: RXori, Dst: dst, Src1: dst, Src2: immOp(1)})
	default:
		m.emit(Instr{Op: RUnimp})
	}
}

func (m *Machine) lowerCast(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	src := m.operandOf(in.Args[0])
	switch {
	case in.Type.IsFloat() && in.SrcType.IsInt():
		m.emit(Instr{Op: RFcvtDW, Dst: dst, Src1: src})
	case in.Type.IsInt() && in.SrcType.IsFloat():
		m.emit(Instr{Op: RFcvtWD, Dst: dst, Src1: src})
	default:
		m.emit(Instr{Op: RMv, Width: widthOf(in.Type), Dst: dst, Src1: src})
	}
}

func (m *Machine) lowerStore(in *ir.Instruction) {
	ptr := m.operandOf(in.Args[0])
	val := m.operandOf(in.Args[1])
	m.emit(Instr{Op: RSd, Width: widthOf(m.fn.TypeOf(in.Args[1].Value)), Dst: ptr, Src1: val})
}

func (m *Machine) lowerAtomicStore(in *ir.Instruction) {
	m.lowerStore(in)
	if in.Ordering == ir.OrderSeqCst {
		m.emit(Instr{Op: RFenceSeqCst})
	}
}

func (m *Machine) lowerGlobalAddr(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	m.emit(Instr{Op: RAuipc, Dst: dst, Src1: Operand{Kind: OperandMem, Mem: MemOperand{Symbol: in.Symbol}}})
	m.emit(Instr{Op: RAddi, Dst: dst, Src1: dst, Src2: immOp(in.SymbolOffset)})
}

func (m *Machine) lowerSelect(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	cond := m.operandOf(in.Args[0])
	ifTrue := m.operandOf(in.Args[1])
	ifFalse := m.operandOf(in.Args[2])
	taken := m.newLabel("seltrue")
	done := m.newLabel("seldone")
	m.emit(Instr{Op: RBne, Src1: cond, Src2: regOp(zero), Label: taken})
	m.emit(Instr{Op: RMv, Dst: dst, Src1: ifFalse})
	m.emit(Instr{Op: RJal, Dst: regOp(zero), Label: done})
	m.emit(Instr{Op: RLabel, Label: taken})
	m.emit(Instr{Op: RMv, Dst: dst, Src1: ifTrue})
	m.emit(Instr{Op: RLabel, Label: done})
}

func (m *Machine) lowerCall(in *ir.Instruction) {
	intIdx, floatIdx := 0, 0
	for i, a := range in.Args {
		t := in.ArgTypes[i]
		src := m.operandOf(a)
		if t.IsFloat() && floatIdx < len(FloatArgRegs) {
			m.emit(Instr{Op: RFmvD, Dst: regOp(FloatArgRegs[floatIdx]), Src1: src})
			floatIdx++
			continue
		}
		if !t.IsFloat() && intIdx < len(ArgRegs) {
			m.emit(Instr{Op: RMv, Width: widthOf(t), Dst: regOp(ArgRegs[intIdx]), Src1: src})
			intIdx++
			continue
		}
		m.emit(Instr{Op: RSd, Dst: memOp(sp, int32((intIdx+floatIdx)*8)), Src1: src})
	}
	m.emit(Instr{Op: RJal, Dst: regOp(ra), Callee: in.Callee})
	if in.Result.Valid() {
		dst := m.dstOf(in.Result)
		if in.RetType.IsFloat() {
			m.emit(Instr{Op: RFmvD, Dst: dst, Src1: regOp(fa0)})
		} else {
			m.emit(Instr{Op: RMv, Width: widthOf(in.RetType), Dst: dst, Src1: regOp(a0)})
		}
	}
}

func (m *Machine) lowerReturn(in *ir.Instruction) {
	if len(in.Args) == 1 {
		val := m.operandOf(in.Args[0])
		if m.fn.RetType.IsFloat() {
			m.emit(Instr{Op: RFmvD, Dst: regOp(fa0), Src1: val})
		} else {
			m.emit(Instr{Op: RMv, Width: widthOf(m.fn.RetType), Dst: regOp(a0), Src1: val})
		}
	}
	m.emitEpilogue()
}

func (m *Machine) lowerCondBranch(in *ir.Instruction) {
	cond := m.operandOf(in.Args[0])
	m.emit(Instr{Op: RBne, Src1: cond, Src2: regOp(zero), Label: m.blockLabel[in.TrueTarget]})
	m.emit(Instr{Op: RJal, Dst: regOp(zero), Label: m.blockLabel[in.FalseTarget]})
}

// effectiveAddr materializes base+disp into reg: addi off the base
// register directly, off the frame pointer when base is a stack-slot
// locator, or a plain li for a constant base (mirrors codegen/x86's
// Lea-vs-mov split, since riscv64 has no single-instruction load-effective-
// address and addi already folds a 12-bit immediate the same way).
func (m *Machine) effectiveAddr(reg Operand, base Operand, disp int64) {
	switch base.Kind {
	case OperandMem:
		m.emit(Instr{Op: RAddi, Width: W64, Dst: reg, Src1: regOp(s0), Src2: immOp(int64(base.Mem.Disp) + disp)})
	case OperandReg:
		if disp != 0 {
			m.emit(Instr{Op: RAddi, Width: W64, Dst: reg, Src1: base, Src2: immOp(disp)})
		} else {
			m.emit(Instr{Op: RMv, Width: W64, Dst: reg, Src1: base})
		}
	default:
		m.emit(Instr{Op: RLi, Width: W64, Dst: reg, Src1: immOp(base.Imm + disp)})
	}
}

// addrReg returns op directly when it is already a register, or
// materializes its address into scratch otherwise; used wherever an
// encoding needs a bare address register (lr.w/sc.w/jalr's rs1).
func (m *Machine) addrReg(scratch Operand, op Operand) Operand {
	if op.Kind == OperandReg {
		return op
	}
	m.effectiveAddr(scratch, op, 0)
	return scratch
}

// lowerGEP computes the effective address named by a GetElementPtr:
// the base (an alloca's slot or an already-computed pointer) plus a
// constant byte offset, plus an optional variable index already
// scaled by the element size.
func (m *Machine) lowerGEP(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	base := m.operandOf(in.Args[0])
	m.effectiveAddr(dst, base, in.ByteOffset)
	if in.ByteOffsetValue.Valid() {
		idx := m.operandOf(ir.ValueOperand(in.ByteOffsetValue))
		m.emit(Instr{Op: RAdd, Width: W64, Dst: dst, Src1: dst, Src2: idx})
	}
}

// lowerMemcpy unrolls small constant copies into flat byte load/store
// pairs; larger or variable-size copies fall back to a byte loop over
// t0 (dst cursor)/t1 (src cursor)/t3 (remaining count), t4 holding the
// constant 1 used to decrement the counter each iteration.
func (m *Machine) lowerMemcpy(in *ir.Instruction) {
	dstBase := m.operandOf(in.Args[0])
	srcBase := m.operandOf(in.Args[1])

	if !in.MemcpySizeValue.Valid() && in.MemcpySize <= 32 {
		n := in.MemcpySize
		dstReg, srcReg := regOp(t0), regOp(t1)
		m.effectiveAddr(dstReg, dstBase, 0)
		m.effectiveAddr(srcReg, srcBase, 0)
		for off := int64(0); off < n; off++ {
			m.emit(Instr{Op: RLd, Width: W8, Dst: regOp(t2), Src1: memOp(srcReg.Reg, int32(off))})
			m.emit(Instr{Op: RSd, Width: W8, Dst: memOp(dstReg.Reg, int32(off)), Src1: regOp(t2)})
		}
		return
	}

	dstPtr, srcPtr, count, one := regOp(t0), regOp(t1), regOp(t3), regOp(t4)
	m.effectiveAddr(dstPtr, dstBase, 0)
	m.effectiveAddr(srcPtr, srcBase, 0)
	if in.MemcpySizeValue.Valid() {
		m.emit(Instr{Op: RMv, Width: W64, Dst: count, Src1: m.operandOf(ir.ValueOperand(in.MemcpySizeValue))})
	} else {
		m.emit(Instr{Op: RLi, Width: W64, Dst: count, Src1: immOp(in.MemcpySize)})
	}
	m.emit(Instr{Op: RLi, Width: W64, Dst: one, Src1: immOp(1)})

	loop := m.newLabel("memcpy")
	done := m.newLabel("memcpydone")
	m.emit(Instr{Op: RLabel, Label: loop})
	m.emit(Instr{Op: RBne, Src1: count, Src2: regOp(zero), Label: loop + "_body"})
	m.emit(Instr{Op: RJal, Dst: regOp(zero), Label: done})
	m.emit(Instr{Op: RLabel, Label: loop + "_body"})
	m.emit(Instr{Op: RLd, Width: W8, Dst: regOp(t2), Src1: memOp(srcPtr.Reg, 0)})
	m.emit(Instr{Op: RSd, Width: W8, Dst: memOp(dstPtr.Reg, 0), Src1: regOp(t2)})
	m.emit(Instr{Op: RAddi, Width: W64, Dst: srcPtr, Src1: srcPtr, Src2: immOp(1)})
	m.emit(Instr{Op: RAddi, Width: W64, Dst: dstPtr, Src1: dstPtr, Src2: immOp(1)})
	m.emit(Instr{Op: RSub, Width: W64, Dst: count, Src1: count, Src2: one})
	m.emit(Instr{Op: RJal, Dst: regOp(zero), Label: loop})
	m.emit(Instr{Op: RLabel, Label: done})
}

// lowerDynAlloca lowers a runtime-sized alloca: bump sp down by size
// and report the new sp as the allocation's address. No stack
// realignment is performed (documented simplification, matches
// codegen/x86's lowerDynAlloca).
func (m *Machine) lowerDynAlloca(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	size := m.operandOf(in.Args[0])
	if size.Kind == OperandImm {
		m.emit(Instr{Op: RAddi, Width: W64, Dst: regOp(sp), Src1: regOp(sp), Src2: immOp(-size.Imm)})
	} else {
		m.emit(Instr{Op: RSub, Width: W64, Dst: regOp(sp), Src1: regOp(sp), Src2: size})
	}
	m.emit(Instr{Op: RMv, Width: W64, Dst: dst, Src1: regOp(sp)})
}

// lowerCallIndirect marshals arguments identically to lowerCall but
// jumps through a materialized callee-pointer register (t2) instead
// of a direct-call relocation.
func (m *Machine) lowerCallIndirect(in *ir.Instruction) {
	intIdx, floatIdx := 0, 0
	for i, a := range in.Args[1:] {
		t := in.ArgTypes[i]
		src := m.operandOf(a)
		if t.IsFloat() && floatIdx < len(FloatArgRegs) {
			m.emit(Instr{Op: RFmvD, Dst: regOp(FloatArgRegs[floatIdx]), Src1: src})
			floatIdx++
			continue
		}
		if !t.IsFloat() && intIdx < len(ArgRegs) {
			m.emit(Instr{Op: RMv, Width: widthOf(t), Dst: regOp(ArgRegs[intIdx]), Src1: src})
			intIdx++
			continue
		}
		m.emit(Instr{Op: RSd, Dst: memOp(sp, int32((intIdx+floatIdx)*8)), Src1: src})
	}
	callee := m.addrReg(regOp(t2), m.operandOf(in.Args[0]))
	m.emit(Instr{Op: RJalr, Dst: regOp(ra), Src1: callee, Src2: immOp(0)})
	if in.Result.Valid() {
		dst := m.dstOf(in.Result)
		if in.RetType.IsFloat() {
			m.emit(Instr{Op: RFmvD, Dst: dst, Src1: regOp(fa0)})
		} else {
			m.emit(Instr{Op: RMv, Width: widthOf(in.RetType), Dst: dst, Src1: regOp(a0)})
		}
	}
}

// lowerSwitch lowers to a linear chain of compare-and-branch tests:
// value-case via addi(-case)+bne-to-fallthrough, falling into the
// default target when no case matches.
func (m *Machine) lowerSwitch(in *ir.Instruction) {
	val := m.operandOf(in.Args[0])
	for _, c := range in.Cases {
		next := m.newLabel("switchnext")
		m.emit(Instr{Op: RAddi, Width: W64, Dst: regOp(t0), Src1: val, Src2: immOp(-c.Value)})
		m.emit(Instr{Op: RBne, Src1: regOp(t0), Src2: regOp(zero), Label: next})
		m.emit(Instr{Op: RJal, Dst: regOp(zero), Label: m.blockLabel[c.Target]})
		m.emit(Instr{Op: RLabel, Label: next})
	}
	m.emit(Instr{Op: RJal, Dst: regOp(zero), Label: m.blockLabel[in.DefaultTarget]})
}

// lowerAtomicCmpxchg lowers to the standard lr.w/sc.w retry loop:
// expected is compared against the reservation's loaded value, and a
// failed sc.w (contention) retries the whole sequence.
func (m *Machine) lowerAtomicCmpxchg(in *ir.Instruction) {
	ptr := m.addrReg(regOp(t5), m.operandOf(in.Args[0]))
	expected := m.operandOf(in.Args[1])
	desired := m.operandOf(in.Args[2])
	old, ok, retry, fail := regOp(t0), regOp(t1), m.newLabel("cas"), m.newLabel("casfail")

	m.emit(Instr{Op: RLabel, Label: retry})
	m.emit(Instr{Op: RLrW, Width: W32, Dst: old, Src1: ptr})
	m.emit(Instr{Op: RBne, Src1: old, Src2: expected, Label: fail})
	m.emit(Instr{Op: RScW, Width: W32, Dst: ok, Src1: ptr, Src2: desired})
	m.emit(Instr{Op: RBne, Src1: ok, Src2: regOp(zero), Label: retry})
	m.emit(Instr{Op: RLabel, Label: fail})

	dst := m.dstOf(in.Result)
	if in.CmpxchgBool {
		m.emit(Instr{Op: RXor, Width: widthOf(in.Type), Dst: regOp(t6), Src1: old, Src2: expected})
		m.emit(Instr{Op: RSeqz, Dst: dst, Src1: regOp(t6)})
	} else {
		m.emit(Instr{Op: RMv, Width: widthOf(in.Type), Dst: dst, Src1: old})
	}
}
