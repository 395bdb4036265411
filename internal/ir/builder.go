package ir

// Builder assembles one Function's blocks and instructions. Unlike a
// direct-to-SSA builder (the shape wazevo's ssa.Builder takes for its
// block-argument style), this core follows the classic alloca-then-
// mem2reg pipeline (spec.md §4.1/§4.2): every C local becomes an Alloca
// during lowering (EmitAlloca, like every Emit* helper, appends to the
// current block, not to the entry block), and promotion to SSA phi form
// happens afterward as a dedicated pass. The builder therefore only
// needs straight-line emission into the current block plus fresh
// value/block allocation — no variable-sealing machinery.
type Builder struct {
	Func    *Function
	current *Block
	instrs  pool[Instruction]
}

// NewBuilder creates a Builder that will populate fn.
func NewBuilder(fn *Function) *Builder {
	return &Builder{Func: fn, instrs: newPool[Instruction]()}
}

// Reset clears the builder so it can build a new function, reusing the
// underlying instruction pages.
func (b *Builder) Reset(fn *Function) {
	b.Func = fn
	b.current = nil
	b.instrs.reset()
}

// CurrentBlock returns the block instructions are currently inserted into.
func (b *Builder) CurrentBlock() *Block { return b.current }

// SetCurrentBlock redirects subsequent Emit calls to b.
func (b *Builder) SetCurrentBlock(blk *Block) { b.current = blk }

// NewBlock allocates a fresh block, appends it to the function, and
// returns it without changing the current insertion point.
func (b *Builder) NewBlock() *Block {
	blk := b.Func.AllocateBlock()
	b.Func.AppendBlock(blk)
	return blk
}

// alloc returns a fresh zeroed Instruction from the pool.
func (b *Builder) alloc() *Instruction {
	in := b.instrs.allocate()
	*in = Instruction{}
	return in
}

// Emit appends a fully-populated instruction (with Result already
// ValueInvalid or set by the caller before allocating the value — most
// callers instead use the Emit* helpers below, which allocate the
// result value themselves) to the current block.
func (b *Builder) Emit(in *Instruction) {
	b.current.Append(in)
}

// emitValue allocates a result value of type t for in, sets in.Result,
// appends it to the current block, and returns the new ValueID.
func (b *Builder) emitValue(in *Instruction, t Type) ValueID {
	in.Type = t
	v := b.Func.AllocateValue(t, b.current.ID, in)
	in.Result = v
	b.current.Append(in)
	return v
}

// EmitAlloca emits an Alloca of elemType, size bytes, with the given
// over-alignment (0 for natural), and returns the Ptr-typed result.
func (b *Builder) EmitAlloca(elemType Type, size int64, align int) ValueID {
	in := b.alloc()
	in.Opcode = OpAlloca
	in.ElemType = elemType
	in.AllocaSize = size
	in.Align = align
	return b.emitValue(in, Ptr)
}

// EmitLoad emits a typed Load from ptr.
func (b *Builder) EmitLoad(t Type, ptr ValueID) ValueID {
	in := b.alloc()
	in.Opcode = OpLoad
	in.Args = []Operand{ValueOperand(ptr)}
	return b.emitValue(in, t)
}

// EmitStore emits a typed Store of value to ptr. Store has no result.
func (b *Builder) EmitStore(ptr ValueID, value Operand) {
	in := b.alloc()
	in.Opcode = OpStore
	in.Args = []Operand{ValueOperand(ptr), value}
	in.Result = ValueInvalid
	b.current.Append(in)
}

// EmitBinOp emits a binary arithmetic/logical op.
func (b *Builder) EmitBinOp(op BinOpKind, t Type, lhs, rhs Operand) ValueID {
	in := b.alloc()
	in.Opcode = OpBinOp
	in.BinOp = op
	in.Args = []Operand{lhs, rhs}
	return b.emitValue(in, t)
}

// EmitUnaryOp emits a unary arithmetic/logical op.
func (b *Builder) EmitUnaryOp(op UnaryOpKind, t Type, src Operand) ValueID {
	in := b.alloc()
	in.Opcode = OpUnaryOp
	in.Unary = op
	in.Args = []Operand{src}
	return b.emitValue(in, t)
}

// EmitCmp emits a comparison, always of result type I32 (C's `int`
// result for relational/equality operators).
func (b *Builder) EmitCmp(pred CmpPred, lhs, rhs Operand) ValueID {
	in := b.alloc()
	in.Opcode = OpCmp
	in.Pred = pred
	in.Args = []Operand{lhs, rhs}
	return b.emitValue(in, I32)
}

// EmitCast emits a conversion from srcType to dstType.
func (b *Builder) EmitCast(dstType, srcType Type, src Operand) ValueID {
	in := b.alloc()
	in.Opcode = OpCast
	in.SrcType = srcType
	in.Args = []Operand{src}
	return b.emitValue(in, dstType)
}

// EmitGEP emits a GetElementPtr computing base + constant offset
// (+ optional variable offset value).
func (b *Builder) EmitGEP(base Operand, byteOffset int64, byteOffsetValue ValueID) ValueID {
	in := b.alloc()
	in.Opcode = OpGetElementPtr
	in.Args = []Operand{base}
	in.ByteOffset = byteOffset
	in.ByteOffsetValue = byteOffsetValue
	return b.emitValue(in, Ptr)
}

// EmitSelect emits a ternary select.
func (b *Builder) EmitSelect(t Type, cond, ifTrue, ifFalse Operand) ValueID {
	in := b.alloc()
	in.Opcode = OpSelect
	in.Args = []Operand{cond, ifTrue, ifFalse}
	return b.emitValue(in, t)
}

// EmitCopy emits a Copy of src, used by mem2reg when renaming a loaded
// value and by stack-layout's copy-alias analysis (spec.md §4.3).
func (b *Builder) EmitCopy(t Type, src Operand) ValueID {
	in := b.alloc()
	in.Opcode = OpCopy
	in.Args = []Operand{src}
	return b.emitValue(in, t)
}

// EmitGlobalAddr emits the address of a module-level symbol plus a
// constant byte offset.
func (b *Builder) EmitGlobalAddr(symbol string, offset int64) ValueID {
	in := b.alloc()
	in.Opcode = OpGlobalAddr
	in.Symbol = symbol
	in.SymbolOffset = offset
	return b.emitValue(in, Ptr)
}

// EmitCall emits a direct call.
func (b *Builder) EmitCall(callee string, argTypes []Type, args []Operand, retType Type, variadic, pure bool) ValueID {
	in := b.alloc()
	in.Opcode = OpCall
	in.Callee = callee
	in.ArgTypes = argTypes
	in.Args = args
	in.RetType = retType
	in.Variadic = variadic
	in.CalleePure = pure
	if retType == Void {
		in.Result = ValueInvalid
		b.current.Append(in)
		return ValueInvalid
	}
	return b.emitValue(in, retType)
}

// NewPhi allocates an (initially empty) phi in block and returns its
// result value; incoming edges are filled in later via AddIncoming.
func (b *Builder) NewPhi(block *Block, t Type) *Instruction {
	in := b.alloc()
	in.Opcode = OpPhi
	in.Type = t
	in.Result = b.Func.AllocateValue(t, block.ID, in)
	block.AppendPhi(in)
	return in
}

// AddIncoming appends one (pred, value) pair to a phi.
func AddIncoming(phi *Instruction, pred BlockID, value Operand) {
	phi.Incoming = append(phi.Incoming, PhiIncoming{Block: pred, Value: value})
}

// SetReturn terminates the current block with a Return.
func (b *Builder) SetReturn(value *Operand) {
	in := b.alloc()
	in.Opcode = OpReturn
	if value != nil {
		in.Args = []Operand{*value}
	}
	b.current.Append(in)
}

// SetBranch terminates the current block with an unconditional Branch.
func (b *Builder) SetBranch(target BlockID) {
	in := b.alloc()
	in.Opcode = OpBranch
	in.Target = target
	b.current.Append(in)
}

// SetCondBranch terminates the current block with a CondBranch.
func (b *Builder) SetCondBranch(cond Operand, ifTrue, ifFalse BlockID) {
	in := b.alloc()
	in.Opcode = OpCondBranch
	in.Args = []Operand{cond}
	in.TrueTarget = ifTrue
	in.FalseTarget = ifFalse
	b.current.Append(in)
}

// SetUnreachable terminates the current block with Unreachable.
func (b *Builder) SetUnreachable() {
	in := b.alloc()
	in.Opcode = OpUnreachable
	b.current.Append(in)
}
