package lower

import (
	"github.com/dj707chen/nativecc/internal/ast"
	"github.com/dj707chen/nativecc/internal/diag"
	"github.com/dj707chen/nativecc/internal/ir"
)

// lowerExpr lowers a scalar-typed (non-aggregate) expression to an
// Operand. Constant expressions are checked against the sema-provided
// table first (spec.md §4.1); a miss falls through to the recursive
// lowering below, which folds what it can along the way via
// ir.EvalConstBinop/EvalConstCast so later passes see maximal constant
// information even before internal/passes.ConstFold runs.
func (c *Compiler) lowerExpr(e *ast.Expr) ir.Operand {
	if v, ok := c.consts[e]; ok {
		return ir.ConstOperand(v)
	}
	switch e.Kind {
	case ast.EIntLit:
		return ir.ConstOperand(ir.IntConst(e.Type.IRType(), e.IntVal))

	case ast.EFloatLit:
		if e.Type.IRType() == ir.F32 {
			return ir.ConstOperand(ir.Const{Kind: ir.ConstF32, Type: ir.F32, F32: float32(e.FloatVal)})
		}
		return ir.ConstOperand(ir.Const{Kind: ir.ConstF64, Type: ir.F64, F64: e.FloatVal})

	case ast.ELongDoubleLit:
		return ir.ConstOperand(ir.Const{Kind: ir.ConstLongDouble, Type: ir.F128, LD: ir.LongDouble{Raw: e.LDRaw}})

	case ast.EStringLit:
		sym := c.mod.InternString(c.newTempName("str"), e.StrVal)
		return ir.ConstOperand(ir.GlobalAddrConst(sym, 0))

	case ast.EIdentLocal:
		addr, ok := c.locals[e.Decl]
		if !ok {
			c.diags.Errorf(diag.Pos{}, "use of undeclared identifier '%s'", e.Decl.Name)
			return ir.ConstOperand(ir.ZeroConst(e.Type.IRType()))
		}
		return ir.ValueOperand(c.b.EmitLoad(e.Type.IRType(), addr))

	case ast.EIdentGlobal:
		addrV := c.b.EmitGlobalAddr(e.Name, 0)
		return ir.ValueOperand(c.b.EmitLoad(e.Type.IRType(), addrV))

	case ast.EFunc:
		return ir.ConstOperand(ir.GlobalAddrConst(e.Name, 0))

	case ast.EBinary:
		return c.lowerBinary(e)

	case ast.ELogicalAnd, ast.ELogicalOr:
		return c.lowerLogical(e)

	case ast.EUnary:
		return c.lowerUnary(e)

	case ast.EAssign:
		return c.lowerAssign(e)

	case ast.ECall:
		return c.lowerCall(e)

	case ast.ECast:
		return c.lowerCast(e)

	case ast.EIndex, ast.EMember:
		addr := c.lowerAddr(e)
		return ir.ValueOperand(c.b.EmitLoad(e.Type.IRType(), addr))

	case ast.ECond:
		return c.lowerCond(e)

	case ast.EComma:
		for i, sub := range e.Exprs {
			if i == len(e.Exprs)-1 {
				return c.lowerExpr(sub)
			}
			c.lowerExprDiscard(sub)
		}
		return ir.ConstOperand(ir.ZeroConst(e.Type.IRType()))

	default:
		c.diags.Errorf(diag.Pos{}, "lower: unhandled expression kind %d", e.Kind)
		return ir.ConstOperand(ir.ZeroConst(e.Type.IRType()))
	}
}

// lowerExprDiscard lowers e purely for its side effects.
func (c *Compiler) lowerExprDiscard(e *ast.Expr) {
	if e.Type != nil && e.Type.IsAggregate() {
		c.lowerAddr(e)
		return
	}
	c.lowerExpr(e)
}

// lowerAddr computes the address of an lvalue expression (identifiers,
// dereferences, indexing, member access) or of an aggregate-typed
// rvalue that is manipulated by reference everywhere in this lowering
// (compound literals, call results, aggregate temporaries).
func (c *Compiler) lowerAddr(e *ast.Expr) ir.ValueID {
	switch e.Kind {
	case ast.EIdentLocal:
		if addr, ok := c.locals[e.Decl]; ok {
			return addr
		}
		c.diags.Errorf(diag.Pos{}, "use of undeclared identifier '%s'", e.Decl.Name)
		return c.b.EmitAlloca(e.Type.AllocaElemType(), e.Type.Size(), 0)

	case ast.EIdentGlobal:
		return c.b.EmitGlobalAddr(e.Name, 0)

	case ast.EUnary:
		if e.UnaryOp == ast.UDeref {
			return c.valueToID(c.lowerExpr(e.RHS))
		}

	case ast.EIndex:
		base := c.decayToPointer(e.Base)
		elemSize := e.Type.Size()
		idx := c.lowerExpr(e.Index)
		idx64 := c.convert(idx, e.Index.Type.IRType(), ir.I64)
		scaled := c.b.EmitBinOp(ir.BinMul, ir.I64, idx64, ir.ConstOperand(ir.IntConst(ir.I64, elemSize)))
		return c.b.EmitGEP(ir.ValueOperand(base), 0, scaled)

	case ast.EMember:
		var base ir.ValueID
		if e.Arrow {
			base = c.valueToID(c.lowerExpr(e.Base))
		} else {
			base = c.lowerAddr(e.Base)
		}
		tag := aggTag(e.Base.Type, e.Arrow)
		off := fieldOffset(tag, e.Name)
		return c.b.EmitGEP(ir.ValueOperand(base), off, 0)

	case ast.ECompoundLiteral:
		slot := c.b.EmitAlloca(e.Type.AllocaElemType(), e.Type.Size(), 0)
		c.lowerInitListInto(slot, e.CompoundInit, e.Type)
		return slot

	case ast.ECall:
		// Aggregate-returning call: the IR-level convention here is that
		// the call result operand already carries the returned object's
		// address (see lowerReturn's comment on hidden-pointer returns).
		return c.valueToID(c.lowerExpr(e))
	}
	c.diags.Errorf(diag.Pos{}, "expression is not addressable")
	return c.b.EmitAlloca(e.Type.AllocaElemType(), e.Type.Size(), 0)
}

// decayToPointer lowers e (an array or pointer expression used as the
// base of indexing) to a Ptr-typed value: an array decays to the
// address of its first element, a pointer is loaded normally.
func (c *Compiler) decayToPointer(e *ast.Expr) ir.ValueID {
	if e.Type.Kind == ast.KindArray {
		return c.lowerAddr(e)
	}
	return c.valueToID(c.lowerExpr(e))
}

func (c *Compiler) valueToID(op ir.Operand) ir.ValueID {
	if !op.IsConst {
		return op.Value
	}
	// Materialize a constant operand into a value when the caller needs
	// a ValueID (e.g. as a GEP base); Copy is the teacher's idiom for
	// "turn this operand into a named value" (stack-layout's copy-alias
	// analysis, spec.md §4.3, is built around exactly this instruction).
	t := op.Const.Type
	if t == ir.TypeInvalid {
		t = ir.Ptr
	}
	return c.b.EmitCopy(t, op)
}

func aggTag(base *ast.CType, arrow bool) *ir.Tag {
	t := base
	if arrow {
		t = base.Elem
	}
	return t.Tag
}

func fieldOffset(tag *ir.Tag, name string) int64 {
	for _, f := range tag.Fields {
		if f.Name == name {
			return f.Offset
		}
	}
	return 0
}

func (c *Compiler) gepConst(base ir.ValueID, off int64) ir.ValueID {
	return c.b.EmitGEP(ir.ValueOperand(base), off, 0)
}

func (c *Compiler) emitMemcpy(dst, src ir.ValueID, size int64, align int) {
	in := &ir.Instruction{
		Opcode:      ir.OpMemcpy,
		Args:        []ir.Operand{ir.ValueOperand(dst), ir.ValueOperand(src)},
		MemcpySize:  size,
		MemcpyAlign: align,
	}
	c.b.Emit(in)
}

// lowerTruthy evaluates e and produces an I32 0/1 truth value, the
// representation every conditional branch in this lowering consumes.
func (c *Compiler) lowerTruthy(e *ast.Expr) ir.Operand {
	if e.Kind == ast.EBinary && e.IsCmp {
		return c.lowerExpr(e)
	}
	if e.Kind == ast.ELogicalAnd || e.Kind == ast.ELogicalOr {
		return c.lowerExpr(e)
	}
	v := c.lowerExpr(e)
	t := e.Type.IRType()
	pred := ir.CmpNe
	if t.IsFloat() {
		pred = ir.CmpFONe
	}
	return ir.ValueOperand(c.b.EmitCmp(pred, v, ir.ConstOperand(ir.ZeroConst(t))))
}

func (c *Compiler) lowerLogical(e *ast.Expr) ir.Operand {
	tmp := c.b.EmitAlloca(ir.I32, 4, 0)
	lhs := c.lowerTruthy(e.LHS)

	rhsBB := c.b.NewBlock()
	shortBB := c.b.NewBlock()
	mergeBB := c.b.NewBlock()

	shortVal := int64(0)
	if e.Kind == ast.ELogicalAnd {
		c.b.SetCondBranch(lhs, rhsBB.ID, shortBB.ID)
	} else {
		shortVal = 1
		c.b.SetCondBranch(lhs, shortBB.ID, rhsBB.ID)
	}

	c.b.SetCurrentBlock(rhsBB)
	rhs := c.lowerTruthy(e.RHS)
	c.b.EmitStore(tmp, rhs)
	c.b.SetBranch(mergeBB.ID)

	c.b.SetCurrentBlock(shortBB)
	c.b.EmitStore(tmp, ir.ConstOperand(ir.IntConst(ir.I32, shortVal)))
	c.b.SetBranch(mergeBB.ID)

	c.b.SetCurrentBlock(mergeBB)
	return ir.ValueOperand(c.b.EmitLoad(ir.I32, tmp))
}

func (c *Compiler) lowerCond(e *ast.Expr) ir.Operand {
	t := e.Type.IRType()
	tmp := c.b.EmitAlloca(t, int64(t.Size()), 0)
	cond := c.lowerTruthy(e.Cond)

	thenBB := c.b.NewBlock()
	elseBB := c.b.NewBlock()
	mergeBB := c.b.NewBlock()
	c.b.SetCondBranch(cond, thenBB.ID, elseBB.ID)

	c.b.SetCurrentBlock(thenBB)
	v := c.lowerExpr(e.LHS)
	c.b.EmitStore(tmp, c.convert(v, e.LHS.Type.IRType(), t))
	c.b.SetBranch(mergeBB.ID)

	c.b.SetCurrentBlock(elseBB)
	v2 := c.lowerExpr(e.RHS)
	c.b.EmitStore(tmp, c.convert(v2, e.RHS.Type.IRType(), t))
	c.b.SetBranch(mergeBB.ID)

	c.b.SetCurrentBlock(mergeBB)
	return ir.ValueOperand(c.b.EmitLoad(t, tmp))
}

func (c *Compiler) lowerBinary(e *ast.Expr) ir.Operand {
	lhs := c.lowerExpr(e.LHS)
	rhs := c.lowerExpr(e.RHS)
	if e.IsCmp {
		return ir.ValueOperand(c.b.EmitCmp(e.CmpPred, lhs, rhs))
	}
	resultType := e.Type.IRType()
	return ir.ValueOperand(c.b.EmitBinOp(e.BinOp, resultType, lhs, rhs))
}

func (c *Compiler) lowerUnary(e *ast.Expr) ir.Operand {
	switch e.UnaryOp {
	case ast.UNeg:
		v := c.lowerExpr(e.RHS)
		op := ir.UnaryNeg
		if e.Type.IRType().IsFloat() {
			op = ir.UnaryFNeg
		}
		return ir.ValueOperand(c.b.EmitUnaryOp(op, e.Type.IRType(), v))

	case ast.UNot:
		v := c.lowerExpr(e.RHS)
		return ir.ValueOperand(c.b.EmitUnaryOp(ir.UnaryNot, e.Type.IRType(), v))

	case ast.ULNot:
		truth := c.lowerTruthy(e.RHS)
		return ir.ValueOperand(c.b.EmitCmp(ir.CmpEq, truth, ir.ConstOperand(ir.IntConst(ir.I32, 0))))

	case ast.UDeref:
		addr := c.valueToID(c.lowerExpr(e.RHS))
		if e.Type.IsAggregate() {
			return ir.ValueOperand(addr)
		}
		return ir.ValueOperand(c.b.EmitLoad(e.Type.IRType(), addr))

	case ast.UAddrOf:
		return ir.ValueOperand(c.lowerAddr(e.RHS))

	case ast.UPreInc, ast.UPreDec, ast.UPostInc, ast.UPostDec:
		return c.lowerIncDec(e)
	}
	c.diags.Errorf(diag.Pos{}, "lower: unhandled unary operator %d", e.UnaryOp)
	return ir.ConstOperand(ir.ZeroConst(e.Type.IRType()))
}

func (c *Compiler) lowerIncDec(e *ast.Expr) ir.Operand {
	addr := c.lowerAddr(e.RHS)
	t := e.RHS.Type.IRType()
	old := c.b.EmitLoad(t, addr)
	step := c.stepValue(e.RHS.Type)
	op := ir.BinAdd
	if t.IsFloat() {
		op = ir.BinFAdd
	}
	if e.UnaryOp == ast.UPreDec || e.UnaryOp == ast.UPostDec {
		if t.IsFloat() {
			op = ir.BinFSub
		} else {
			op = ir.BinSub
		}
	}
	newV := c.b.EmitBinOp(op, t, ir.ValueOperand(old), step)
	c.b.EmitStore(addr, ir.ValueOperand(newV))
	if e.UnaryOp == ast.UPreInc || e.UnaryOp == ast.UPreDec {
		return ir.ValueOperand(newV)
	}
	return ir.ValueOperand(old)
}

// stepValue returns the amount a ++/-- on t advances by: 1 for scalars,
// the pointee size for pointer arithmetic.
func (c *Compiler) stepValue(t *ast.CType) ir.Operand {
	if t.Kind == ast.KindPointer {
		return ir.ConstOperand(ir.IntConst(ir.I64, t.Elem.Size()))
	}
	if t.IRType().IsFloat() {
		if t.IRType() == ir.F32 {
			return ir.ConstOperand(ir.Const{Kind: ir.ConstF32, Type: ir.F32, F32: 1})
		}
		return ir.ConstOperand(ir.Const{Kind: ir.ConstF64, Type: ir.F64, F64: 1})
	}
	return ir.ConstOperand(ir.IntConst(t.IRType(), 1))
}

func (c *Compiler) lowerAssign(e *ast.Expr) ir.Operand {
	addr := c.lowerAddr(e.LHS)
	lt := e.LHS.Type.IRType()

	if e.AssignOp == ast.AssignSimple {
		if e.LHS.Type.IsAggregate() {
			src := c.lowerAddr(e.RHS)
			c.emitMemcpy(addr, src, e.LHS.Type.Size(), e.LHS.Type.Align())
			return ir.ValueOperand(addr)
		}
		v := c.lowerExpr(e.RHS)
		v = c.convert(v, e.RHS.Type.IRType(), lt)
		c.b.EmitStore(addr, v)
		return v
	}

	old := c.b.EmitLoad(lt, addr)
	rhs := c.lowerExpr(e.RHS)
	op := compoundOp(e.AssignOp, lt)
	newV := c.b.EmitBinOp(op, lt, ir.ValueOperand(old), c.convert(rhs, e.RHS.Type.IRType(), lt))
	c.b.EmitStore(addr, ir.ValueOperand(newV))
	return ir.ValueOperand(newV)
}

func compoundOp(op ast.AssignKind, t ir.Type) ir.BinOpKind {
	isF := t.IsFloat()
	switch op {
	case ast.AssignAdd:
		if isF {
			return ir.BinFAdd
		}
		return ir.BinAdd
	case ast.AssignSub:
		if isF {
			return ir.BinFSub
		}
		return ir.BinSub
	case ast.AssignMul:
		if isF {
			return ir.BinFMul
		}
		return ir.BinMul
	case ast.AssignDiv:
		if isF {
			return ir.BinFDiv
		}
		if t.Unsigned() {
			return ir.BinUDiv
		}
		return ir.BinSDiv
	case ast.AssignMod:
		if t.Unsigned() {
			return ir.BinURem
		}
		return ir.BinSRem
	case ast.AssignShl:
		return ir.BinShl
	case ast.AssignShr:
		if t.Unsigned() {
			return ir.BinLShr
		}
		return ir.BinAShr
	case ast.AssignAnd:
		return ir.BinAnd
	case ast.AssignOr:
		return ir.BinOr
	case ast.AssignXor:
		return ir.BinXor
	}
	return ir.BinAdd
}

func (c *Compiler) lowerCast(e *ast.Expr) ir.Operand {
	src := c.lowerExpr(e.CastSrc)
	return c.convert(src, e.CastSrc.Type.IRType(), e.Type.IRType())
}

// convert emits (or folds) a Cast from src to dst when the types
// differ; identical types pass through untouched.
func (c *Compiler) convert(v ir.Operand, src, dst ir.Type) ir.Operand {
	if src == dst {
		return v
	}
	if v.IsConst {
		if cv, ok := ir.EvalConstCast(dst, src, v.Const); ok {
			return ir.ConstOperand(cv)
		}
	}
	return ir.ValueOperand(c.b.EmitCast(dst, src, v))
}

func (c *Compiler) lowerCall(e *ast.Expr) ir.Operand {
	argTypes := make([]ir.Type, len(e.Args))
	args := make([]ir.Operand, len(e.Args))
	for i, a := range e.Args {
		argTypes[i] = a.Type.IRType()
		if a.Type.IsAggregate() {
			args[i] = ir.ValueOperand(c.lowerAddr(a))
		} else {
			args[i] = c.lowerExpr(a)
		}
	}
	retType := e.Type.IRType()

	if e.Callee.Kind == ast.EFunc {
		v := c.b.EmitCall(e.Callee.Name, argTypes, args, retType, e.CalleeVariadic, e.CalleeIsPure)
		return ir.ValueOperand(v)
	}

	fnPtr := c.lowerExpr(e.Callee)
	in := &ir.Instruction{
		Opcode:   ir.OpCallIndirect,
		Args:     append([]ir.Operand{fnPtr}, args...),
		ArgTypes: argTypes,
		RetType:  retType,
		Variadic: false,
	}
	if retType == ir.Void {
		c.b.Emit(in)
		return ir.Operand{}
	}
	rv := c.fn.AllocateValue(retType, c.b.CurrentBlock().ID, in)
	in.Result = rv
	in.Type = retType
	c.b.Emit(in)
	return ir.ValueOperand(rv)
}

// foldConstExpr re-evaluates e as a constant when the sema table has no
// entry for it (spec.md §4.1: "When the lookup misses... the lowerer
// re-evaluates"), covering the literal and simple-arithmetic cases a
// global initializer needs.
func (c *Compiler) foldConstExpr(e *ast.Expr) (ir.Const, bool) {
	if v, ok := c.consts[e]; ok {
		return v, true
	}
	switch e.Kind {
	case ast.EIntLit:
		return ir.IntConst(e.Type.IRType(), e.IntVal), true
	case ast.EFloatLit:
		if e.Type.IRType() == ir.F32 {
			return ir.Const{Kind: ir.ConstF32, Type: ir.F32, F32: float32(e.FloatVal)}, true
		}
		return ir.Const{Kind: ir.ConstF64, Type: ir.F64, F64: e.FloatVal}, true
	case ast.EIdentGlobal:
		return ir.GlobalAddrConst(e.Name, 0), true
	case ast.EUnary:
		if e.UnaryOp == ast.UAddrOf && e.RHS.Kind == ast.EIdentGlobal {
			return ir.GlobalAddrConst(e.RHS.Name, 0), true
		}
		inner, ok := c.foldConstExpr(e.RHS)
		if !ok {
			return ir.Const{}, false
		}
		return ir.EvalConstUnop(unopFor(e.UnaryOp), e.Type.IRType(), inner)
	case ast.EBinary:
		// Address-difference of two address-of-global expressions
		// (spec.md §4.1: "Pointer-difference expressions on two
		// address-of-global expressions... fold to an integer").
		if lg, lo, lok := globalAddrOf(e.LHS); lok {
			if rg, ro, rok := globalAddrOf(e.RHS); rok && e.BinOp == ir.BinSub {
				return ir.Const{Kind: ir.ConstGlobalDiff, Type: e.Type.IRType(), Symbol: lg, Offset: lo, SymbolB: rg, OffsetB: ro}, true
			}
		}
		l, lok := c.foldConstExpr(e.LHS)
		r, rok := c.foldConstExpr(e.RHS)
		if !lok || !rok {
			return ir.Const{}, false
		}
		if e.IsCmp {
			return ir.EvalConstCmp(e.CmpPred, l, r)
		}
		return ir.EvalConstBinop(e.BinOp, e.Type.IRType(), l, r)
	case ast.ECast:
		inner, ok := c.foldConstExpr(e.CastSrc)
		if !ok {
			return ir.Const{}, false
		}
		return ir.EvalConstCast(e.Type.IRType(), e.CastSrc.Type.IRType(), inner)
	}
	return ir.Const{}, false
}

func unopFor(u ast.UnaryKind) ir.UnaryOpKind {
	switch u {
	case ast.UNeg:
		return ir.UnaryNeg
	case ast.UNot:
		return ir.UnaryNot
	default:
		return ir.UnaryInvalid
	}
}

func globalAddrOf(e *ast.Expr) (name string, offset int64, ok bool) {
	if e.Kind == ast.EUnary && e.UnaryOp == ast.UAddrOf && e.RHS.Kind == ast.EIdentGlobal {
		return e.RHS.Name, 0, true
	}
	return "", 0, false
}
