package lower

import (
	"github.com/dj707chen/nativecc/internal/ast"
	"github.com/dj707chen/nativecc/internal/diag"
	"github.com/dj707chen/nativecc/internal/ir"
)

// lowerStmt lowers one statement into c.b's current block, possibly
// opening further blocks for control flow. The caller is responsible
// for having positioned c.b on the block the statement should start in.
func (c *Compiler) lowerStmt(s *ast.Stmt) {
	if s == nil {
		return
	}
	c.ensureOpen()
	switch s.Kind {
	case ast.SBlock:
		for _, inner := range s.Stmts {
			c.lowerStmt(inner)
		}

	case ast.SExpr:
		if s.X != nil {
			c.lowerExprDiscard(s.X)
		}

	case ast.SDecl:
		c.lowerDeclStmt(s.D)

	case ast.SReturn:
		c.lowerReturn(s)

	case ast.SIf:
		c.lowerIf(s)

	case ast.SWhile:
		c.lowerWhile(s)

	case ast.SDoWhile:
		c.lowerDoWhile(s)

	case ast.SFor:
		c.lowerFor(s)

	case ast.SBreak:
		if len(c.breakTargets) == 0 {
			c.diags.Errorf(diag.Pos{}, "break statement not within a loop or switch")
			return
		}
		c.b.SetBranch(c.breakTargets[len(c.breakTargets)-1])

	case ast.SContinue:
		if len(c.continueTargets) == 0 {
			c.diags.Errorf(diag.Pos{}, "continue statement not within a loop")
			return
		}
		c.b.SetBranch(c.continueTargets[len(c.continueTargets)-1])

	case ast.SGoto:
		target := c.labelBlock(s.Label)
		c.gotos = append(c.gotos, pendingGoto{label: s.Label})
		c.b.SetBranch(target.ID)

	case ast.SLabel:
		target := c.labelBlock(s.Label)
		if c.b.CurrentBlock().Terminator() == nil {
			c.b.SetBranch(target.ID)
		}
		c.b.SetCurrentBlock(target)
		c.lowerStmt(s.Inner)

	case ast.SSwitch:
		c.lowerSwitch(s)

	case ast.SCase, ast.SDefault:
		// A bare case/default reached outside of lowerSwitch's body walk
		// (e.g. as a statement at the top of a function) has no dispatch
		// table to belong to; lower the labeled statement itself so its
		// side effects aren't silently dropped, matching GCC's
		// case-label-not-in-switch diagnostic intent without needing a
		// second diagnostic surface here.
		c.diags.Errorf(diag.Pos{}, "case/default label not within a switch")
		if s.Kind == ast.SCase || s.Kind == ast.SDefault {
			c.lowerStmt(s.Inner)
		}

	default:
		c.diags.Errorf(diag.Pos{}, "lower: unhandled statement kind %d", s.Kind)
	}
}

func (c *Compiler) lowerDeclStmt(d *ast.Decl) {
	if d.IsStatic {
		// A function-local static lives for the program's lifetime; it
		// becomes a module Global keyed by a mangled (unique) name, and
		// every reference to it inside the function must resolve as a
		// global rather than through c.locals. Supporting that rename
		// consistently requires a second AST pass this minimal lowerer
		// doesn't perform; treated as a documented gap (DESIGN.md).
		c.diags.Errorf(diag.Pos{}, "function-local static variables are not supported by this lowering")
		return
	}
	slot := c.b.EmitAlloca(d.Type.AllocaElemType(), d.Type.Size(), d.Align)
	c.locals[d] = slot
	if d.Init == nil {
		return
	}
	if d.Type.IsAggregate() {
		c.lowerAggregateInitInto(slot, d.Init, d.Type)
		return
	}
	v := c.lowerExpr(d.Init)
	v = c.convert(v, d.Init.Type.IRType(), d.Type.IRType())
	c.b.EmitStore(slot, v)
}

// lowerAggregateInitInto stores init (a compound literal, or another
// aggregate-typed expression) into the object at addr.
func (c *Compiler) lowerAggregateInitInto(addr ir.ValueID, init *ast.Expr, t *ast.CType) {
	if init.Kind == ast.ECompoundLiteral {
		c.lowerInitListInto(addr, init.CompoundInit, t)
		return
	}
	src := c.lowerAddr(init)
	c.emitMemcpy(addr, src, t.Size(), t.Align())
}

func (c *Compiler) lowerInitListInto(addr ir.ValueID, list *ast.InitList, t *ast.CType) {
	switch t.Kind {
	case ast.KindArray:
		elemSize := t.Elem.Size()
		for i, el := range list.Elems {
			dst := c.gepConst(addr, int64(i)*elemSize)
			c.storeInitElem(dst, el, t.Elem)
		}
	case ast.KindStruct, ast.KindUnion:
		for i, el := range list.Elems {
			if i >= len(t.Tag.Fields) {
				break
			}
			f := t.Tag.Fields[i]
			dst := c.gepConst(addr, f.Offset)
			c.storeInitElem(dst, el, fieldCType(f.Type))
		}
	default:
		c.diags.Errorf(diag.Pos{}, "compound literal initializing a non-aggregate type")
	}
}

func (c *Compiler) storeInitElem(dst ir.ValueID, el *ast.Expr, elemType *ast.CType) {
	if elemType.IsAggregate() {
		c.lowerAggregateInitInto(dst, el, elemType)
		return
	}
	v := c.lowerExpr(el)
	v = c.convert(v, el.Type.IRType(), elemType.IRType())
	c.b.EmitStore(dst, v)
}

func (c *Compiler) lowerReturn(s *ast.Stmt) {
	if s.X == nil {
		c.b.SetReturn(nil)
		return
	}
	if s.X.Type.IsAggregate() {
		// Returned by hidden pointer per SysV/AAPCS64/LP64D struct-return
		// rules (spec.md §4.5 ABI details); this core models that at
		// codegen-ABI level, not at IR level, so the IR simply returns
		// the aggregate's address and leaves the hidden-pointer threading
		// to the target's call-lowering (not yet implemented — see
		// DESIGN.md's known gaps on by-value struct returns).
		addr := ir.ValueOperand(c.lowerAddr(s.X))
		c.b.SetReturn(&addr)
		return
	}
	v := c.lowerExpr(s.X)
	c.b.SetReturn(&v)
}

func (c *Compiler) lowerIf(s *ast.Stmt) {
	cond := c.lowerTruthy(s.Cond)
	thenBB := c.b.NewBlock()
	mergeBB := c.b.NewBlock()
	elseBB := mergeBB
	if s.Else != nil {
		elseBB = c.b.NewBlock()
	}
	c.b.SetCondBranch(cond, thenBB.ID, elseBB.ID)

	c.b.SetCurrentBlock(thenBB)
	c.lowerStmt(s.Then)
	if c.b.CurrentBlock().Terminator() == nil {
		c.b.SetBranch(mergeBB.ID)
	}

	if s.Else != nil {
		c.b.SetCurrentBlock(elseBB)
		c.lowerStmt(s.Else)
		if c.b.CurrentBlock().Terminator() == nil {
			c.b.SetBranch(mergeBB.ID)
		}
	}

	c.b.SetCurrentBlock(mergeBB)
}

func (c *Compiler) lowerWhile(s *ast.Stmt) {
	headerBB := c.b.NewBlock()
	bodyBB := c.b.NewBlock()
	exitBB := c.b.NewBlock()

	c.b.SetBranch(headerBB.ID)
	c.b.SetCurrentBlock(headerBB)
	cond := c.lowerTruthy(s.Cond)
	c.b.SetCondBranch(cond, bodyBB.ID, exitBB.ID)

	c.pushLoop(exitBB.ID, headerBB.ID)
	c.b.SetCurrentBlock(bodyBB)
	c.lowerStmt(s.Body)
	if c.b.CurrentBlock().Terminator() == nil {
		c.b.SetBranch(headerBB.ID)
	}
	c.popLoop()

	c.b.SetCurrentBlock(exitBB)
}

func (c *Compiler) lowerDoWhile(s *ast.Stmt) {
	bodyBB := c.b.NewBlock()
	condBB := c.b.NewBlock()
	exitBB := c.b.NewBlock()

	c.b.SetBranch(bodyBB.ID)

	c.pushLoop(exitBB.ID, condBB.ID)
	c.b.SetCurrentBlock(bodyBB)
	c.lowerStmt(s.Body)
	if c.b.CurrentBlock().Terminator() == nil {
		c.b.SetBranch(condBB.ID)
	}
	c.popLoop()

	c.b.SetCurrentBlock(condBB)
	cond := c.lowerTruthy(s.Cond)
	c.b.SetCondBranch(cond, bodyBB.ID, exitBB.ID)

	c.b.SetCurrentBlock(exitBB)
}

func (c *Compiler) lowerFor(s *ast.Stmt) {
	if s.Init != nil {
		c.lowerStmt(s.Init)
	}
	headerBB := c.b.NewBlock()
	bodyBB := c.b.NewBlock()
	postBB := c.b.NewBlock()
	exitBB := c.b.NewBlock()

	c.b.SetBranch(headerBB.ID)
	c.b.SetCurrentBlock(headerBB)
	if s.Cond != nil {
		cond := c.lowerTruthy(s.Cond)
		c.b.SetCondBranch(cond, bodyBB.ID, exitBB.ID)
	} else {
		c.b.SetBranch(bodyBB.ID)
	}

	c.pushLoop(exitBB.ID, postBB.ID)
	c.b.SetCurrentBlock(bodyBB)
	c.lowerStmt(s.Body)
	if c.b.CurrentBlock().Terminator() == nil {
		c.b.SetBranch(postBB.ID)
	}
	c.popLoop()

	c.b.SetCurrentBlock(postBB)
	if s.Post != nil {
		c.lowerExprDiscard(s.Post)
	}
	c.b.SetBranch(headerBB.ID)

	c.b.SetCurrentBlock(exitBB)
}

// lowerSwitch lowers a (non-Duff's-device) switch: Body must be a
// SBlock whose immediate statements are optionally SCase/SDefault
// labeled statements; fallthrough between arms is the natural
// consequence of not branching between consecutive case blocks
// (spec.md §4.2's CFG is built directly in fallthrough order, the same
// way a real compiler's switch lowering threads case bodies).
func (c *Compiler) lowerSwitch(s *ast.Stmt) {
	condOperand := c.lowerExpr(s.Cond)
	exitBB := c.b.NewBlock()

	dispatchIn := c.b.CurrentBlock()

	var cases []ir.SwitchCase
	defaultTarget := ir.BlockID(0)

	bodyStmts := s.Body.Stmts
	if s.Body.Kind != ast.SBlock {
		bodyStmts = []*ast.Stmt{s.Body}
	}

	firstBB := c.b.NewBlock()
	cur := firstBB

	// Only break targets the switch exit; continue (if any) still
	// targets whatever loop already enclosed this switch, so only
	// breakTargets gets a new entry here.
	c.breakTargets = append(c.breakTargets, exitBB.ID)

	c.b.SetCurrentBlock(cur)
	for _, st := range bodyStmts {
		switch st.Kind {
		case ast.SCase:
			next := c.b.NewBlock()
			if c.b.CurrentBlock().Terminator() == nil {
				c.b.SetBranch(next.ID)
			}
			cases = append(cases, ir.SwitchCase{Value: st.CaseVal, Target: next.ID})
			cur = next
			c.b.SetCurrentBlock(cur)
			c.lowerStmt(st.Inner)
		case ast.SDefault:
			next := c.b.NewBlock()
			if c.b.CurrentBlock().Terminator() == nil {
				c.b.SetBranch(next.ID)
			}
			defaultTarget = next.ID
			cur = next
			c.b.SetCurrentBlock(cur)
			c.lowerStmt(st.Inner)
		default:
			c.lowerStmt(st)
		}
	}
	if c.b.CurrentBlock().Terminator() == nil {
		c.b.SetBranch(exitBB.ID)
	}
	c.breakTargets = c.breakTargets[:len(c.breakTargets)-1]

	if !defaultTarget.Valid() {
		defaultTarget = exitBB.ID
	}
	c.b.SetCurrentBlock(dispatchIn)
	sw := &ir.Instruction{Opcode: ir.OpSwitch, Args: []ir.Operand{condOperand}, Cases: cases, DefaultTarget: defaultTarget}
	c.b.Emit(sw)

	c.b.SetCurrentBlock(exitBB)
}

func (c *Compiler) pushLoop(breakTarget, continueTarget ir.BlockID) {
	c.breakTargets = append(c.breakTargets, breakTarget)
	c.continueTargets = append(c.continueTargets, continueTarget)
}

func (c *Compiler) popLoop() {
	c.breakTargets = c.breakTargets[:len(c.breakTargets)-1]
	c.continueTargets = c.continueTargets[:len(c.continueTargets)-1]
}
