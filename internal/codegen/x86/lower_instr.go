package x86

import "github.com/dj707chen/nativecc/internal/ir"

// LowerInstr implements backend.Machine. Phi instructions never reach
// here: internal/passes.PhiElim must run before codegen (spec.md §3
// "phi elimination").
func (m *Machine) LowerInstr(in *ir.Instruction) {
	switch in.Opcode {
	case ir.OpAlloca:
		// Storage is already reserved by stacklayout; nothing to emit.
	case ir.OpBinOp:
		m.lowerBinOp(in)
	case ir.OpUnaryOp:
		m.lowerUnaryOp(in)
	case ir.OpCmp:
		m.lowerCmp(in)
	case ir.OpCopy:
		m.lowerCopy(in)
	case ir.OpCast:
		m.lowerCast(in)
	case ir.OpLoad:
		m.lowerLoad(in)
	case ir.OpStore:
		m.lowerStore(in)
	case ir.OpGlobalAddr:
		m.lowerGlobalAddr(in)
	case ir.OpCall:
		m.lowerCall(in)
	case ir.OpSelect:
		m.lowerSelect(in)
	case ir.OpReturn:
		m.lowerReturn(in)
	case ir.OpBranch:
		m.emit(Instr{Op: XJmp, Label: m.blockLabel[in.Target]})
	case ir.OpCondBranch:
		m.lowerCondBranch(in)
	case ir.OpUnreachable:
		m.emit(Instr{Op: XUD2})
	case ir.OpAtomicLoad:
		m.lowerLoad(in)
	case ir.OpAtomicStore:
		m.lowerAtomicStore(in)
	case ir.OpAtomicRmw:
		m.lowerAtomicRmw(in)
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
		m.emit(Instr{Op: XLeaLabel, Dst: m.dstOf(in.Result), Label: m.blockLabel[in.Target]})
	case ir.OpIndirectBranch:
		m.emit(Instr{Op: XJmpIndirect, Src1: m.operandOf(in.Args[0])})
	default:
		// InlineAsm/Intrinsic/variadic (va_start/va_arg/va_copy) ops have
		// no internal/lower AST surface yet (see DESIGN.md); a visible
		// trap is safer than silently miscompiling until they do.
		m.emit(Instr{Op: XUD2})
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
	width := widthOf(in.Type)
	dst := m.dstOf(in.Result)
	lhs := m.operandOf(in.Args[0])
	rhs := m.operandOf(in.Args[1])
	m.emit(Instr{Op: XMovRR, Width: width, Dst: dst, Src1: lhs})
	var op XOp
	isFloat := in.Type.IsFloat()
	switch in.BinOp {
	case ir.BinAdd:
		op = XAddRR
		if isFloat {
			op = XAddSD
		}
	case ir.BinSub:
		op = XSubRR
		if isFloat {
			op = XSubSD
		}
	case ir.BinMul:
		op = XImulRR
		if isFloat {
			op = XMulSD
		}
	case ir.BinSDiv, ir.BinUDiv, ir.BinSRem, ir.BinURem:
		if isFloat {
			op = XDivSD
			break
		}
		m.lowerIntDivRem(in, dst, lhs, rhs)
		return
	case ir.BinAnd:
		op = XAndRR
	case ir.BinOr:
		op = XOrRR
	case ir.BinXor:
		op = XXorRR
	case ir.BinShl:
		op = XShlRI
	case ir.BinLShr:
		op = XShrRI
	case ir.BinAShr:
		op = XSarRI
	case ir.BinFAdd:
		op = XAddSD
	case ir.BinFSub:
		op = XSubSD
	case ir.BinFMul:
		op = XMulSD
	case ir.BinFDiv:
		op = XDivSD
	}
	m.emit(Instr{Op: op, Width: width, Dst: dst, Src1: rhs})
}

// lowerIntDivRem lowers integer div/rem through rax:rdx per the SysV
// idiv calling convention (spec.md §4.5: "accumulator model" — the
// div/rem family is the canonical case the 1-register accumulator
// cache exists for, since idiv's dividend is pinned to rax/rdx).
func (m *Machine) lowerIntDivRem(in *ir.Instruction, dst, lhs, rhs Operand) {
	width := widthOf(in.Type)
	m.emit(Instr{Op: XMovRR, Width: width, Dst: regOp(rax), Src1: lhs})
	if in.Type.Signed() {
		m.emit(Instr{Op: XCQO})
	} else {
		m.emit(Instr{Op: XXorRR, Width: width, Dst: regOp(rdx), Src1: regOp(rdx)})
	}
	m.emit(Instr{Op: XIdivR, Width: width, Src1: rhs})
	switch in.BinOp {
	case ir.BinSDiv, ir.BinUDiv:
		m.emit(Instr{Op: XMovRR, Width: width, Dst: dst, Src1: regOp(rax)})
	default:
		m.emit(Instr{Op: XMovRR, Width: width, Dst: dst, Src1: regOp(rdx)})
	}
}

func (m *Machine) lowerUnaryOp(in *ir.Instruction) {
	width := widthOf(in.Type)
	dst := m.dstOf(in.Result)
	src := m.operandOf(in.Args[0])
	m.emit(Instr{Op: XMovRR, Width: width, Dst: dst, Src1: src})
	switch in.Unary {
	case ir.UnaryNeg, ir.UnaryFNeg:
		m.emit(Instr{Op: XNegR, Width: width, Dst: dst})
	case ir.UnaryNot:
		m.emit(Instr{Op: XNotR, Width: width, Dst: dst})
	}
}

func (m *Machine) lowerCmp(in *ir.Instruction) {
	lhs := m.operandOf(in.Args[0])
	rhs := m.operandOf(in.Args[1])
	m.emit(Instr{Op: XCmpRR, Width: widthOf(in.SrcType), Src1: lhs, Src2: rhs})
	m.emit(Instr{Op: XSetCC, CC: predToCC(in.Pred), Dst: m.dstOf(in.Result)})
}

func predToCC(p ir.CmpPred) CC {
	switch p {
	case ir.CmpEq, ir.CmpFOEq:
		return CCEq
	case ir.CmpNe, ir.CmpFONe:
		return CCNe
	case ir.CmpSlt, ir.CmpFOLt:
		return CCLt
	case ir.CmpSle, ir.CmpFOLe:
		return CCLe
	case ir.CmpSgt, ir.CmpFOGt:
		return CCGt
	case ir.CmpSge, ir.CmpFOGe:
		return CCGe
	case ir.CmpUlt:
		return CCBelow
	case ir.CmpUle:
		return CCBelowEq
	case ir.CmpUgt:
		return CCAbove
	case ir.CmpUge:
		return CCAboveEq
	default:
		return CCEq
	}
}

func (m *Machine) lowerCopy(in *ir.Instruction) {
	width := widthOf(in.Type)
	m.emit(Instr{Op: XMovRR, Width: width, Dst: m.dstOf(in.Result), Src1: m.operandOf(in.Args[0])})
}

func (m *Machine) lowerCast(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	src := m.operandOf(in.Args[0])
	switch {
	case in.Type.IsFloat() && in.SrcType.IsInt():
		m.emit(Instr{Op: XCvtsi2sd, Dst: dst, Src1: src})
	case in.Type.IsInt() && in.SrcType.IsFloat():
		m.emit(Instr{Op: XCvtsd2si, Dst: dst, Src1: src})
	case in.Type.Size() > in.SrcType.Size() && in.SrcType.Signed():
		m.emit(Instr{Op: XMovsx, Width: widthOf(in.Type), Dst: dst, Src1: src})
	case in.Type.Size() > in.SrcType.Size():
		m.emit(Instr{Op: XMovzx, Width: widthOf(in.Type), Dst: dst, Src1: src})
	default:
		m.emit(Instr{Op: XMovRR, Width: widthOf(in.Type), Dst: dst, Src1: src})
	}
}

func (m *Machine) lowerLoad(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	ptr := m.operandOf(in.Args[0])
	m.emit(Instr{Op: XMovRM, Width: widthOf(in.Type), Dst: dst, Src1: ptr})
}

func (m *Machine) lowerStore(in *ir.Instruction) {
	ptr := m.operandOf(in.Args[0])
	val := m.operandOf(in.Args[1])
	m.emit(Instr{Op: XMovMR, Dst: ptr, Src1: val})
}

func (m *Machine) lowerAtomicStore(in *ir.Instruction) {
	// SeqCst atomic stores need an MFENCE after a plain store on x86's
	// TSO model; weaker orderings degrade to a plain store (spec.md
	// §4.5 atomics).
	m.lowerStore(in)
	if in.Ordering == ir.OrderSeqCst {
		m.emit(Instr{Op: XMFence})
	}
}

func (m *Machine) lowerAtomicRmw(in *ir.Instruction) {
	ptr := m.operandOf(in.Args[0])
	val := m.operandOf(in.Args[1])
	switch in.RMWOp {
	case ir.AtomicRMWAdd:
		m.emit(Instr{Op: XLockXaddMR, Dst: ptr, Src1: val})
	default:
		// Sub/And/Or/Xor/Nand/Xchg/TestAndSet all need a compare-
		// exchange retry loop on x86 since there's no single locked
		// instruction for them; left as a gap to fill in
		// internal/lower's intrinsic expansion once that package lands.
		m.emit(Instr{Op: XLockCmpxchgMR, Dst: ptr, Src1: val})
	}
}

func (m *Machine) lowerGlobalAddr(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	m.emit(Instr{Op: XLea, Dst: dst, Src1: Operand{Kind: OperandMem, Mem: MemOperand{RipRelative: true, Symbol: in.Symbol, Disp: int32(in.SymbolOffset)}}})
}

func (m *Machine) lowerSelect(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	cond := m.operandOf(in.Args[0])
	ifTrue := m.operandOf(in.Args[1])
	ifFalse := m.operandOf(in.Args[2])
	m.emit(Instr{Op: XMovRR, Width: widthOf(in.Type), Dst: dst, Src1: ifFalse})
	m.emit(Instr{Op: XCmpRR, Src1: cond, Src2: immOp(0)})
	cmov := m.newLabel("selfalse")
	m.emit(Instr{Op: XJcc, CC: CCEq, Label: cmov})
	m.emit(Instr{Op: XMovRR, Width: widthOf(in.Type), Dst: dst, Src1: ifTrue})
	m.emit(Instr{Op: XLabel, Label: cmov})
}

func (m *Machine) lowerCall(in *ir.Instruction) {
	intIdx, floatIdx := 0, 0
	for i, a := range in.Args {
		t := in.ArgTypes[i]
		src := m.operandOf(a)
		if t.IsFloat() {
			if floatIdx < len(FloatArgRegs) {
				m.emit(Instr{Op: XMovSD, Dst: regOp(FloatArgRegs[floatIdx]), Src1: src})
				floatIdx++
				continue
			}
		} else if intIdx < len(ArgRegs) {
			m.emit(Instr{Op: XMovRR, Width: widthOf(t), Dst: regOp(ArgRegs[intIdx]), Src1: src})
			intIdx++
			continue
		}
		m.emit(Instr{Op: XPush, Src1: src})
	}
	if in.Variadic {
		// AL holds the count of vector registers used for a variadic
		// call, per the SysV AMD64 ABI.
		m.emit(Instr{Op: XMovRI, Width: W8, Dst: regOp(rax), Src1: immOp(int64(floatIdx))})
	}
	m.emit(Instr{Op: XCall, Callee: in.Callee})
	if in.Result.Valid() {
		dst := m.dstOf(in.Result)
		if in.RetType.IsFloat() {
			m.emit(Instr{Op: XMovSD, Dst: dst, Src1: regOp(xmm0)})
		} else {
			m.emit(Instr{Op: XMovRR, Width: widthOf(in.RetType), Dst: dst, Src1: regOp(rax)})
		}
	}
}

func (m *Machine) lowerReturn(in *ir.Instruction) {
	if len(in.Args) == 1 {
		val := m.operandOf(in.Args[0])
		ret := m.fn.RetType
		if ret.IsFloat() {
			m.emit(Instr{Op: XMovSD, Dst: regOp(xmm0), Src1: val})
		} else {
			m.emit(Instr{Op: XMovRR, Width: widthOf(ret), Dst: regOp(rax), Src1: val})
		}
	}
	m.emitEpilogue()
}

func (m *Machine) lowerCondBranch(in *ir.Instruction) {
	cond := m.operandOf(in.Args[0])
	m.emit(Instr{Op: XCmpRR, Src1: cond, Src2: immOp(0)})
	m.emit(Instr{Op: XJcc, CC: CCNe, Label: m.blockLabel[in.TrueTarget]})
	m.emit(Instr{Op: XJmp, Label: m.blockLabel[in.FalseTarget]})
}

// effectiveAddr materializes base+disp into reg: a Lea when base is
// itself a Mem locator (an alloca's slot, or a RIP-relative global),
// a plain register move when base already holds a computed pointer
// value, and a load-immediate in the rare case base is a constant
// address.
func (m *Machine) effectiveAddr(reg Operand, base Operand, disp int64) {
	switch base.Kind {
	case OperandMem:
		mem := base.Mem
		mem.Disp += int32(disp)
		m.emit(Instr{Op: XLea, Dst: reg, Src1: Operand{Kind: OperandMem, Mem: mem}})
	case OperandReg:
		if disp != 0 {
			m.emit(Instr{Op: XLea, Dst: reg, Src1: Operand{Kind: OperandMem, Mem: MemOperand{Base: base.Reg, Disp: int32(disp)}}})
		} else {
			m.emit(Instr{Op: XMovRR, Width: W64, Dst: reg, Src1: base})
		}
	default:
		m.emit(Instr{Op: XMovRI, Width: W64, Dst: reg, Src1: immOp(base.Imm + disp)})
	}
}

// lowerGEP computes the effective address named by a GetElementPtr:
// the base (an alloca's slot or an already-computed pointer) plus a
// constant byte offset, plus an optional variable index already
// scaled by the element size (spec.md §4.1 GEP lowering).
func (m *Machine) lowerGEP(in *ir.Instruction) {
	dst := m.dstOf(in.Result)
	base := m.operandOf(in.Args[0])
	m.effectiveAddr(dst, base, in.ByteOffset)
	if in.ByteOffsetValue.Valid() {
		idx := m.operandOf(ir.ValueOperand(in.ByteOffsetValue))
		m.emit(Instr{Op: XAddRR, Width: W64, Dst: dst, Src1: idx})
	}
}

// lowerMemcpy copies MemcpySize (or the runtime value MemcpySizeValue)
// bytes from src to dst. Constant small copies unroll into a flat
// sequence of byte load/store pairs; everything else walks a
// byte-at-a-time loop advancing two address cursors held in scratch
// registers, since this backend's MemOperand has no base+index
// addressing mode to index through directly (see codegen/x86.MemOperand).
func (m *Machine) lowerMemcpy(in *ir.Instruction) {
	dstBase := m.operandOf(in.Args[0])
	srcBase := m.operandOf(in.Args[1])

	const unrollLimit = 32
	if !in.MemcpySizeValue.Valid() && in.MemcpySize <= unrollLimit {
		for i := int64(0); i < in.MemcpySize; i++ {
			m.emit(Instr{Op: XMovRM, Width: W8, Dst: regOp(r11), Src1: shiftMem(srcBase, i)})
			m.emit(Instr{Op: XMovMR, Dst: shiftMem(dstBase, i), Src1: regOp(r11)})
		}
		return
	}

	dstPtr, srcPtr, count, one := regOp(r10), regOp(r11), regOp(rcx), regOp(r9)
	m.effectiveAddr(dstPtr, dstBase, 0)
	m.effectiveAddr(srcPtr, srcBase, 0)
	if in.MemcpySizeValue.Valid() {
		m.emit(Instr{Op: XMovRR, Width: W64, Dst: count, Src1: m.operandOf(ir.ValueOperand(in.MemcpySizeValue))})
	} else {
		m.emit(Instr{Op: XMovRI, Width: W64, Dst: count, Src1: immOp(in.MemcpySize)})
	}
	m.emit(Instr{Op: XMovRI, Width: W64, Dst: one, Src1: immOp(1)})

	loop := m.newLabel("memcpy")
	done := m.newLabel("memcpydone")
	m.emit(Instr{Op: XLabel, Label: loop})
	m.emit(Instr{Op: XCmpRR, Src1: count, Src2: immOp(0)})
	m.emit(Instr{Op: XJcc, CC: CCEq, Label: done})
	m.emit(Instr{Op: XMovRM, Width: W8, Dst: regOp(rax), Src1: Operand{Kind: OperandMem, Mem: MemOperand{Base: srcPtr.Reg}}})
	m.emit(Instr{Op: XMovMR, Dst: Operand{Kind: OperandMem, Mem: MemOperand{Base: dstPtr.Reg}}, Src1: regOp(rax)})
	m.emit(Instr{Op: XLea, Dst: srcPtr, Src1: Operand{Kind: OperandMem, Mem: MemOperand{Base: srcPtr.Reg, Disp: 1}}})
	m.emit(Instr{Op: XLea, Dst: dstPtr, Src1: Operand{Kind: OperandMem, Mem: MemOperand{Base: dstPtr.Reg, Disp: 1}}})
	m.emit(Instr{Op: XSubRR, Width: W64, Dst: count, Src1: one})
	m.emit(Instr{Op: XJmp, Label: loop})
	m.emit(Instr{Op: XLabel, Label: done})
}

// shiftMem returns a Mem operand whose displacement is offset bytes
// past base (base must already be a Mem locator, true for every
// small-constant Memcpy this core lowers: both operands of a struct/
// array copy are always alloca-backed or GEP-computed addresses).
func shiftMem(base Operand, offset int64) Operand {
	if base.Kind != OperandMem {
		return base
	}
	mem := base.Mem
	mem.Disp += int32(offset)
	return Operand{Kind: OperandMem, Mem: mem}
}

// lowerDynAlloca reserves Args[0] bytes on the stack for a
// variable-length array and returns the resulting top-of-allocation
// pointer (spec.md §4.1 DynAlloca; no 16-byte realignment is performed,
// a documented simplification since this backend's Instr set has no
// immediate-operand arithmetic beyond Lea's encoded displacement).
func (m *Machine) lowerDynAlloca(in *ir.Instruction) {
	size := m.operandOf(in.Args[0])
	scratch := regOp(r10)
	if size.Kind == OperandImm {
		m.emit(Instr{Op: XMovRI, Width: W64, Dst: scratch, Src1: size})
	} else {
		m.emit(Instr{Op: XMovRR, Width: W64, Dst: scratch, Src1: size})
	}
	m.emit(Instr{Op: XSubRR, Width: W64, Dst: regOp(rsp), Src1: scratch})
	m.emit(Instr{Op: XMovRR, Width: W64, Dst: m.dstOf(in.Result), Src1: regOp(rsp)})
}

// lowerCallIndirect calls through a computed function pointer rather
// than a linked symbol (spec.md §4.1 CallIndirect); argument
// marshalling is identical to a direct Call.
func (m *Machine) lowerCallIndirect(in *ir.Instruction) {
	callee := m.operandOf(in.Args[0])
	intIdx, floatIdx := 0, 0
	for i, a := range in.Args[1:] {
		t := in.ArgTypes[i]
		src := m.operandOf(a)
		if t.IsFloat() {
			if floatIdx < len(FloatArgRegs) {
				m.emit(Instr{Op: XMovSD, Dst: regOp(FloatArgRegs[floatIdx]), Src1: src})
				floatIdx++
				continue
			}
		} else if intIdx < len(ArgRegs) {
			m.emit(Instr{Op: XMovRR, Width: widthOf(t), Dst: regOp(ArgRegs[intIdx]), Src1: src})
			intIdx++
			continue
		}
		m.emit(Instr{Op: XPush, Src1: src})
	}
	m.emit(Instr{Op: XMovRR, Width: W64, Dst: regOp(r11), Src1: callee})
	m.emit(Instr{Op: XCallIndirect, Src1: regOp(r11)})
	if in.Result.Valid() {
		dst := m.dstOf(in.Result)
		if in.RetType.IsFloat() {
			m.emit(Instr{Op: XMovSD, Dst: dst, Src1: regOp(xmm0)})
		} else {
			m.emit(Instr{Op: XMovRR, Width: widthOf(in.RetType), Dst: dst, Src1: regOp(rax)})
		}
	}
}

// lowerSwitch dispatches via a linear compare-and-branch chain against
// each case value, falling through to DefaultTarget (spec.md §4.1
// Switch; no jump table, since this backend's addressing modes have no
// indexed/scaled form to index one through).
func (m *Machine) lowerSwitch(in *ir.Instruction) {
	val := m.operandOf(in.Args[0])
	for _, c := range in.Cases {
		m.emit(Instr{Op: XCmpRR, Src1: val, Src2: immOp(c.Value)})
		m.emit(Instr{Op: XJcc, CC: CCEq, Label: m.blockLabel[c.Target]})
	}
	m.emit(Instr{Op: XJmp, Label: m.blockLabel[in.DefaultTarget]})
}

// lowerAtomicCmpxchg performs a compare-and-swap: LOCK CMPXCHG compares
// the implicit rax against [ptr] and stores Args[2] on match, leaving
// the pre-swap value in rax, which x86's hardware semantics already
// hand us for free (spec.md §4.5 atomics).
func (m *Machine) lowerAtomicCmpxchg(in *ir.Instruction) {
	ptr := m.operandOf(in.Args[0])
	expected := m.operandOf(in.Args[1])
	desired := m.operandOf(in.Args[2])
	m.emit(Instr{Op: XMovRR, Width: widthOf(in.Type), Dst: regOp(rax), Src1: expected})
	scratch := regOp(r10)
	m.emit(Instr{Op: XMovRR, Width: widthOf(in.Type), Dst: scratch, Src1: desired})
	m.emit(Instr{Op: XLockCmpxchgMR, Dst: ptr, Src1: scratch})
	dst := m.dstOf(in.Result)
	if in.CmpxchgBool {
		m.emit(Instr{Op: XSetCC, CC: CCEq, Dst: dst})
	} else {
		m.emit(Instr{Op: XMovRR, Width: widthOf(in.Type), Dst: dst, Src1: regOp(rax)})
	}
}
