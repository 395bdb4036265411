package passes

import "github.com/dj707chen/nativecc/internal/ir"

// ConstFold sweeps every instruction once, replacing pure operations
// whose operands are all constants with the folded constant (spec.md
// §4.2). It shares the arithmetic core with lowering-time folding via
// ir.EvalConstBinop/EvalConstUnop/EvalConstCast so the two never
// disagree on overflow or rounding.
func ConstFold(fn *ir.Function) {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			foldInstr(fn, in)
		}
	}
}

func foldInstr(fn *ir.Function, in *ir.Instruction) {
	switch in.Opcode {
	case ir.OpBinOp:
		if a, c, ok := bothConst(in.Args); ok {
			if folded, ok := ir.EvalConstBinop(in.BinOp, in.Type, a, c); ok {
				rewriteToConst(fn, in, folded)
			}
		}
	case ir.OpUnaryOp:
		if !in.Args[0].IsConst {
			return
		}
		if folded, ok := ir.EvalConstUnop(in.Unary, in.Type, in.Args[0].Const); ok {
			rewriteToConst(fn, in, folded)
		}
	case ir.OpCmp:
		if a, c, ok := bothConst(in.Args); ok {
			if folded, ok := ir.EvalConstCmp(in.Pred, a, c); ok {
				rewriteToConst(fn, in, folded)
			}
		}
	case ir.OpCast:
		if !in.Args[0].IsConst {
			return
		}
		if folded, ok := ir.EvalConstCast(in.Type, in.SrcType, in.Args[0].Const); ok {
			rewriteToConst(fn, in, folded)
		}
	case ir.OpSelect:
		if !in.Args[0].IsConst {
			return
		}
		chosen := in.Args[2]
		if !in.Args[0].Const.IsConstZero() {
			chosen = in.Args[1]
		}
		replaceAllUses(fn, in.Result, chosen)
		in.Opcode = ir.OpCopy
		in.Args = []ir.Operand{chosen}
	}
}

func bothConst(args []ir.Operand) (ir.Const, ir.Const, bool) {
	if len(args) != 2 || !args[0].IsConst || !args[1].IsConst {
		return ir.Const{}, ir.Const{}, false
	}
	return args[0].Const, args[1].Const, true
}

// rewriteToConst turns in into a Copy of the folded constant and
// forwards every use of its result to the constant directly, leaving
// the (now-dead) Copy for DCE to remove.
func rewriteToConst(fn *ir.Function, in *ir.Instruction, folded ir.Const) {
	op := ir.ConstOperand(folded)
	replaceAllUses(fn, in.Result, op)
	in.Opcode = ir.OpCopy
	in.Args = []ir.Operand{op}
}
