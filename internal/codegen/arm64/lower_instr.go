package arm64

import "github.com/dj707chen/nativecc/internal/ir"

// LowerInstr implements backend.Machine. As on x86, phis must already
// be eliminated by internal/passes.PhiElim before this runs.
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
		m.emit(Instr{Op: AMovRR, Is64: is64(in.Type), Dst: m.dstOf(in.Result), Src1: m.operandOf(in.Args[0])})
	case ir.OpCast:
		m.lowerCast(in)
	case ir.OpLoad, ir.OpAtomicLoad:
		m.emit(Instr{Op: ALdr, Dst: m.dstOf(in.Result), Src1: m.operandOf(in.Args[0])})
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
		m.emit(Instr{Op: AB, Label: m.blockLabel[in.Target]})
	case ir.OpCondBranch:
		m.lowerCondBranch(in)
	case ir.OpUnreachable:
		m.emit(Instr{Op: ABrk})
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
		m.emit(Instr{Op: AAdr, Dst: m.dstOf(in.Result), Label: m.blockLabel[in.Target]})
	case ir.OpIndirectBranch:
		m.emit(Instr{Op: ABr, Src1: m.addrReg(regOp(x16), m.operandOf(in.Args[0]))})
	default:
		// InlineAsm/Intrinsic/variadic (va_start/va_arg/va_copy) ops have
		// no internal/lower AST surface yet (see DESIGN.md); a visible
		// trap is safer than silently miscompiling until they do.
		m.emit(Instr{Op: ABrk})
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
	is64bit := is64(in.Type)
	switch in.BinOp {
	case ir.BinAdd:
		op := AAddRR
		if in.Type.IsFloat() {
			op = AFaddD
		}
		m.emit(Instr{Op: op, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinSub:
		op := ASubRR
		if in.Type.IsFloat() {
			op = AFsubD
		}
		m.emit(Instr{Op: op, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinMul:
		op := AMulRR
		if in.Type.IsFloat() {
			op = AFmulD
		}
		m.emit(Instr{Op: op, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinSDiv:
		m.emit(Instr{Op: ASdiv, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinUDiv:
		m.emit(Instr{Op: AUdiv, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinSRem, ir.BinURem:
		quotOp := ASdiv
		if in.BinOp == ir.BinURem {
			quotOp = AUdiv
		}
		m.emit(Instr{Op: quotOp, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
		m.emit(Instr{Op: AMsub, Is64: is64bit, Dst: dst, Src1: dst, Src2: rhs, Src3: lhs})
	case ir.BinAnd:
		m.emit(Instr{Op: AAndRR, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinOr:
		m.emit(Instr{Op: AOrrRR, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinXor:
		m.emit(Instr{Op: AEorRR, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinShl:
		m.emit(Instr{Op: ALslImm, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinLShr:
		m.emit(Instr{Op: ALsrImm, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinAShr:
		m.emit(Instr{Op: AAsrImm, Is64: is64bit, Dst: dst, Src1: lhs, Src2: rhs})
	case ir.BinFDiv:
		m.emit(Instr{Op: AFdivD, Dst: dst, Src1: lhs, Src2: rhs})
	}
}

func (m *Machine) lowerUnaryOp(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	src := m.operandOf(in.Args[0])
	switch in.Unary {
	case ir.UnaryNeg, ir.UnaryFNeg:
		m.emit(Instr{Op: ANeg, Is64: is64(in.Type), Dst: dst, Src1: src})
	case ir.UnaryNot:
		m.emit(Instr{Op: AMvn, Is64: is64(in.Type), Dst: dst, Src1: src})
	}
}

func (m *Machine) lowerCmp(in *ir.Instruction) {
	lhs := m.operandOf(in.Args[0])
	rhs := m.operandOf(in.Args[1])
	m.emit(Instr{Op: ACmp, Is64: is64(in.SrcType), Src1: lhs, Src2: rhs})
	m.emit(Instr{Op: ACset, Dst: m.dstOf(in.Result), Cond: predToCond(in.Pred)})
}

func (m *Machine) lowerCast(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	src := m.operandOf(in.Args[0])
	switch {
	case in.Type.IsFloat() && in.SrcType.IsInt():
		m.emit(Instr{Op: AScvtf, Dst: dst, Src1: src})
	case in.Type.IsInt() && in.SrcType.IsFloat():
		m.emit(Instr{Op: AFcvtzs, Dst: dst, Src1: src})
	case in.SrcType.Signed() && in.Type.Size() > in.SrcType.Size():
		m.emit(Instr{Op: ASxt, Is64: is64(in.Type), Dst: dst, Src1: src})
	case in.Type.Size() > in.SrcType.Size():
		m.emit(Instr{Op: AUxt, Is64: is64(in.Type), Dst: dst, Src1: src})
	default:
		m.emit(Instr{Op: AMovRR, Is64: is64(in.Type), Dst: dst, Src1: src})
	}
}

func (m *Machine) lowerStore(in *ir.Instruction) {
	ptr := m.operandOf(in.Args[0])
	val := m.operandOf(in.Args[1])
	m.emit(Instr{Op: AStr, Dst: ptr, Src1: val})
}

func (m *Machine) lowerAtomicStore(in *ir.Instruction) {
	m.lowerStore(in)
	if in.Ordering == ir.OrderSeqCst {
		m.emit(Instr{Op: ADmb})
	}
}

func (m *Machine) lowerGlobalAddr(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	m.emit(Instr{Op: AAdrp, Dst: dst, Src1: Operand{Kind: OperandMem, Mem: MemOperand{Symbol: in.Symbol}}})
	m.emit(Instr{Op: AAddImm12, Dst: dst, Src1: dst, Src2: immOp(in.SymbolOffset)})
}

func (m *Machine) lowerSelect(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	cond := m.operandOf(in.Args[0])
	ifTrue := m.operandOf(in.Args[1])
	ifFalse := m.operandOf(in.Args[2])
	m.emit(Instr{Op: ACmp, Src1: cond, Src2: immOp(0)})
	m.emit(Instr{Op: ACsel, Dst: dst, Src1: ifTrue, Src2: ifFalse, Cond: cne})
}

func (m *Machine) lowerCall(in *ir.Instruction) {
	intIdx, floatIdx := 0, 0
	for i, a := range in.Args {
		t := in.ArgTypes[i]
		src := m.operandOf(a)
		if t.IsFloat() && floatIdx < len(FloatArgRegs) {
			m.emit(Instr{Op: AFmov, Dst: regOp(FloatArgRegs[floatIdx]), Src1: src})
			floatIdx++
			continue
		}
		if !t.IsFloat() && intIdx < len(ArgRegs) {
			m.emit(Instr{Op: AMovRR, Is64: is64(t), Dst: regOp(ArgRegs[intIdx]), Src1: src})
			intIdx++
			continue
		}
		m.emit(Instr{Op: AStr, Dst: memOp(sp, int32((intIdx+floatIdx)*8)), Src1: src})
	}
	m.emit(Instr{Op: ABl, Callee: in.Callee})
	if in.Result.Valid() {
		dst := m.dstOf(in.Result)
		if in.RetType.IsFloat() {
			m.emit(Instr{Op: AFmov, Dst: dst, Src1: regOp(d0)})
		} else {
			m.emit(Instr{Op: AMovRR, Is64: is64(in.RetType), Dst: dst, Src1: regOp(x0)})
		}
	}
}

func (m *Machine) lowerReturn(in *ir.Instruction) {
	if len(in.Args) == 1 {
		val := m.operandOf(in.Args[0])
		if m.fn.RetType.IsFloat() {
			m.emit(Instr{Op: AFmov, Dst: regOp(d0), Src1: val})
		} else {
			m.emit(Instr{Op: AMovRR, Is64: is64(m.fn.RetType), Dst: regOp(x0), Src1: val})
		}
	}
	m.emitEpilogue()
}

func (m *Machine) lowerCondBranch(in *ir.Instruction) {
	cond := m.operandOf(in.Args[0])
	m.emit(Instr{Op: ACmp, Src1: cond, Src2: immOp(0)})
	m.emit(Instr{Op: ABCond, Cond: cne, Label: m.blockLabel[in.TrueTarget]})
	m.emit(Instr{Op: AB, Label: m.blockLabel[in.FalseTarget]})
}

// effectiveAddr materializes base+disp into reg: an immediate add off
// the base register directly, off the frame pointer when base is a
// stack-slot locator, or off xzr for a constant base (mirrors
// codegen/x86's Lea-vs-mov split; AArch64 has no single load-effective-
// address op beyond the Adrp/AddImm12 global-symbol pair).
func (m *Machine) effectiveAddr(reg Operand, base Operand, disp int64) {
	switch base.Kind {
	case OperandMem:
		m.emit(Instr{Op: AAddImm12, Is64: true, Dst: reg, Src1: regOp(x29), Src2: immOp(int64(base.Mem.Disp) + disp)})
	case OperandReg:
		if disp != 0 {
			m.emit(Instr{Op: AAddImm12, Is64: true, Dst: reg, Src1: base, Src2: immOp(disp)})
		} else {
			m.emit(Instr{Op: AMovRR, Is64: true, Dst: reg, Src1: base})
		}
	default:
		m.emit(Instr{Op: AAddImm12, Is64: true, Dst: reg, Src1: regOp(xzr), Src2: immOp(base.Imm + disp)})
	}
}

// addrReg returns op directly when it is already a register, or
// materializes its address into scratch otherwise; used wherever an
// encoding needs a bare address register (Ldxr/Stxr/Blr/Br's Rn).
func (m *Machine) addrReg(scratch Operand, op Operand) Operand {
	if op.Kind == OperandReg {
		return op
	}
	m.effectiveAddr(scratch, op, 0)
	return scratch
}

// valReg returns op directly when it is already a register, or loads
// its value into scratch otherwise (as opposed to addrReg, which takes
// a spilled slot's address rather than its content).
func (m *Machine) valReg(scratch Operand, op Operand) Operand {
	switch op.Kind {
	case OperandReg:
		return op
	case OperandMem:
		m.emit(Instr{Op: ALdr, Dst: scratch, Src1: op})
		return scratch
	default:
		m.emit(Instr{Op: AAddImm12, Is64: true, Dst: scratch, Src1: regOp(xzr), Src2: immOp(op.Imm)})
		return scratch
	}
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
		m.emit(Instr{Op: AAddRR, Is64: true, Dst: dst, Src1: dst, Src2: idx})
	}
}

// lowerMemcpy copies in whole 8-byte words, rounding a constant size
// up to the next multiple of 8: this core's Ldr/Str only encode
// AArch64's 64-bit scaled-offset form, so there is no byte-granularity
// load/store to walk a tail with (documented simplification; safe for
// alloca-backed struct/array copies, which stacklayout already
// rounds up to 8-byte slots).
func (m *Machine) lowerMemcpy(in *ir.Instruction) {
	dstBase := m.operandOf(in.Args[0])
	srcBase := m.operandOf(in.Args[1])

	if !in.MemcpySizeValue.Valid() && in.MemcpySize <= 32 {
		n := (in.MemcpySize + 7) / 8
		dstReg, srcReg := regOp(x16), regOp(x17)
		m.effectiveAddr(dstReg, dstBase, 0)
		m.effectiveAddr(srcReg, srcBase, 0)
		for i := int64(0); i < n; i++ {
			m.emit(Instr{Op: ALdr, Dst: regOp(x9), Src1: memOp(srcReg.Reg, int32(i*8))})
			m.emit(Instr{Op: AStr, Dst: memOp(dstReg.Reg, int32(i*8)), Src1: regOp(x9)})
		}
		return
	}

	dstPtr, srcPtr, count, one := regOp(x16), regOp(x17), regOp(x9), regOp(x10)
	m.effectiveAddr(dstPtr, dstBase, 0)
	m.effectiveAddr(srcPtr, srcBase, 0)
	if in.MemcpySizeValue.Valid() {
		sizeVal := m.valReg(regOp(x11), m.operandOf(ir.ValueOperand(in.MemcpySizeValue)))
		m.emit(Instr{Op: AAddImm12, Is64: true, Dst: count, Src1: sizeVal, Src2: immOp(7)})
		m.emit(Instr{Op: ALsrImm, Is64: true, Dst: count, Src1: count, Src2: immOp(3)})
	} else {
		m.emit(Instr{Op: AAddImm12, Is64: true, Dst: count, Src1: regOp(xzr), Src2: immOp((in.MemcpySize + 7) / 8)})
	}
	m.emit(Instr{Op: AAddImm12, Is64: true, Dst: one, Src1: regOp(xzr), Src2: immOp(1)})

	loop := m.newLabel("memcpy")
	done := m.newLabel("memcpydone")
	m.emit(Instr{Op: ALabel, Label: loop})
	m.emit(Instr{Op: ACmp, Is64: true, Src1: count, Src2: immOp(0)})
	m.emit(Instr{Op: ABCond, Cond: ceq, Label: done})
	m.emit(Instr{Op: ALdr, Dst: regOp(x12), Src1: memOp(srcPtr.Reg, 0)})
	m.emit(Instr{Op: AStr, Dst: memOp(dstPtr.Reg, 0), Src1: regOp(x12)})
	m.emit(Instr{Op: AAddImm12, Is64: true, Dst: srcPtr, Src1: srcPtr, Src2: immOp(8)})
	m.emit(Instr{Op: AAddImm12, Is64: true, Dst: dstPtr, Src1: dstPtr, Src2: immOp(8)})
	m.emit(Instr{Op: ASubRR, Is64: true, Dst: count, Src1: count, Src2: one})
	m.emit(Instr{Op: AB, Label: loop})
	m.emit(Instr{Op: ALabel, Label: done})
}

// lowerDynAlloca lowers a runtime-sized alloca: bump sp down by size
// and report the new sp as the allocation's address. No stack
// realignment is performed (documented simplification, matches
// codegen/x86's lowerDynAlloca).
func (m *Machine) lowerDynAlloca(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	size := m.valReg(regOp(x16), m.operandOf(in.Args[0]))
	m.emit(Instr{Op: ASubRR, Is64: true, Dst: regOp(sp), Src1: regOp(sp), Src2: size})
	m.emit(Instr{Op: AMovRR, Is64: true, Dst: dst, Src1: regOp(sp)})
}

// lowerCallIndirect marshals arguments identically to lowerCall but
// branches through a materialized callee-pointer register (x16)
// instead of a direct BL relocation.
func (m *Machine) lowerCallIndirect(in *ir.Instruction) {
	intIdx, floatIdx := 0, 0
	for i, a := range in.Args[1:] {
		t := in.ArgTypes[i]
		src := m.operandOf(a)
		if t.IsFloat() && floatIdx < len(FloatArgRegs) {
			m.emit(Instr{Op: AFmov, Dst: regOp(FloatArgRegs[floatIdx]), Src1: src})
			floatIdx++
			continue
		}
		if !t.IsFloat() && intIdx < len(ArgRegs) {
			m.emit(Instr{Op: AMovRR, Is64: is64(t), Dst: regOp(ArgRegs[intIdx]), Src1: src})
			intIdx++
			continue
		}
		m.emit(Instr{Op: AStr, Dst: memOp(sp, int32((intIdx+floatIdx)*8)), Src1: src})
	}
	callee := m.addrReg(regOp(x16), m.operandOf(in.Args[0]))
	m.emit(Instr{Op: ABlr, Src1: callee})
	if in.Result.Valid() {
		dst := m.dstOf(in.Result)
		if in.RetType.IsFloat() {
			m.emit(Instr{Op: AFmov, Dst: dst, Src1: regOp(d0)})
		} else {
			m.emit(Instr{Op: AMovRR, Is64: is64(in.RetType), Dst: dst, Src1: regOp(x0)})
		}
	}
}

// lowerSwitch dispatches via a linear compare-and-branch chain against
// each case value, falling through to DefaultTarget. No jump table,
// matching codegen/x86's lowerSwitch.
func (m *Machine) lowerSwitch(in *ir.Instruction) {
	val := m.operandOf(in.Args[0])
	for _, c := range in.Cases {
		m.emit(Instr{Op: ACmp, Is64: true, Src1: val, Src2: immOp(c.Value)})
		m.emit(Instr{Op: ABCond, Cond: ceq, Label: m.blockLabel[c.Target]})
	}
	m.emit(Instr{Op: AB, Label: m.blockLabel[in.DefaultTarget]})
}

// lowerAtomicCmpxchg lowers to the standard ldxr/stxr retry loop:
// expected is compared against the exclusive-load's value, and a
// failed stxr (contention) retries the whole sequence.
func (m *Machine) lowerAtomicCmpxchg(in *ir.Instruction) {
	ptr := m.addrReg(regOp(x16), m.operandOf(in.Args[0]))
	expected := m.operandOf(in.Args[1])
	desired := m.operandOf(in.Args[2])
	old, status, retry, fail := regOp(x9), regOp(x10), m.newLabel("cas"), m.newLabel("casfail")

	m.emit(Instr{Op: ALabel, Label: retry})
	m.emit(Instr{Op: ALdxr, Dst: old, Src1: Operand{Kind: OperandMem, Mem: MemOperand{Base: ptr.Reg}}})
	m.emit(Instr{Op: ACmp, Is64: true, Src1: old, Src2: expected})
	m.emit(Instr{Op: ABCond, Cond: cne, Label: fail})
	m.emit(Instr{Op: AStxr, Dst: status, Src1: desired, Src2: Operand{Kind: OperandMem, Mem: MemOperand{Base: ptr.Reg}}})
	m.emit(Instr{Op: ACmp, Is64: true, Src1: status, Src2: immOp(0)})
	m.emit(Instr{Op: ABCond, Cond: cne, Label: retry})
	m.emit(Instr{Op: ALabel, Label: fail})

	dst := m.dstOf(in.Result)
	if in.CmpxchgBool {
		m.emit(Instr{Op: ACmp, Is64: true, Src1: old, Src2: expected})
		m.emit(Instr{Op: ACset, Dst: dst, Cond: ceq})
	} else {
		m.emit(Instr{Op: AMovRR, Is64: true, Dst: dst, Src1: old})
	}
}
