// Package lower translates a typed C AST (internal/ast) plus a
// sema-provided constant-value table into this core's IR
// (internal/ir), the translation spec.md §4.1 describes. It is the one
// piece of the pipeline spec.md §1 names as a non-goal's *complement*:
// the lexer/parser/semantic analyzer that would build internal/ast
// nodes is out of scope, but consuming that typed AST and lowering it
// is core, and is this package's entire job.
//
// Grounded on wazevo's frontend.Compiler (internal/engine/wazevo/
// frontend/frontend.go): a single Compiler value is Reset between
// functions and walks one function body into the current
// ir.Builder/ir.Function, exactly as frontend.Compiler.Init/LowerToSSA
// does for one WASM function body at a time. Where wazevo's frontend
// builds direct SSA (block params, DefineVariable/declareWasmLocals),
// this core's ir.Builder is deliberately alloca-first (see
// internal/ir/builder.go's doc comment): every parameter becomes an
// Alloca in the entry block and every local an Alloca in the block that
// is current at its declaration (locals are not hoisted to the entry
// block), and mem2reg promotes them afterward, so no phi-insertion
// logic is needed here at all.
package lower

import (
	"fmt"

	"github.com/dj707chen/nativecc/internal/ast"
	"github.com/dj707chen/nativecc/internal/diag"
	"github.com/dj707chen/nativecc/internal/ir"
)

// ConstTable is the sema-provided constant-value table, keyed by
// expression identity (spec.md §4.1: "Constant expressions are looked
// up first in the sema-provided table (keyed by expression identity)").
// A lookup miss (including a nil table) falls back to the lowerer
// re-evaluating the expression itself.
type ConstTable map[*ast.Expr]ir.Const

// Compiler lowers one translation unit into one ir.Module. Per-function
// state (the active ir.Builder, label/goto bookkeeping, break/continue
// targets) is reset between functions, mirroring frontend.Compiler's
// own per-function Init.
type Compiler struct {
	mod    *ir.Module
	consts ConstTable
	diags  *diag.DiagnosticEngine

	fn *ir.Function
	b  *ir.Builder

	locals map[*ast.Decl]ir.ValueID // alloca pointer per local/param
	labels map[string]*ir.Block
	gotos  []pendingGoto

	breakTargets    []ir.BlockID
	continueTargets []ir.BlockID

	tmpCounter int
}

type pendingGoto struct {
	label string
	pos   diag.Pos
}

// NewCompiler builds a Compiler that will lower into a fresh Module,
// consulting consts (which may be nil) for constant-expression lookups
// and reporting any lowering failure through diags.
func NewCompiler(consts ConstTable, diags *diag.DiagnosticEngine) *Compiler {
	if diags == nil {
		diags = diag.NewDiagnosticEngine()
	}
	return &Compiler{mod: ir.NewModule(), consts: consts, diags: diags}
}

// Module returns the module built so far.
func (c *Compiler) Module() *ir.Module { return c.mod }

// LowerTranslationUnit lowers every tag, global, and function of tu
// into c's Module, in source order (spec.md §3: "Functions are
// appended in source order"). It returns a *diag.CompileError if any
// Error-severity diagnostic was reported.
func (c *Compiler) LowerTranslationUnit(tu *ast.TranslationUnit) (*ir.Module, error) {
	c.mod.Tags = append(c.mod.Tags, tu.Tags...)
	for _, g := range tu.Globals {
		c.lowerGlobal(g)
	}
	for _, fn := range tu.Functions {
		c.lowerFunction(fn)
	}
	return c.mod, c.diags.Err()
}

// lowerGlobal lowers one module-level variable declaration/definition.
func (c *Compiler) lowerGlobal(g *ast.Global) {
	linkage := ir.LinkageGlobal
	switch {
	case g.Extern:
		linkage = ir.LinkageExternDecl
	case g.Static:
		linkage = ir.LinkageLocal
	}
	out := &ir.Global{
		Name:    g.Name,
		Type:    g.Type.IRType(),
		Size:    g.Type.Size(),
		Align:   g.Type.Align(),
		Linkage: linkage,
		ReadOnly: g.ReadOnly,
	}
	if g.Init != nil {
		cv := c.lowerGlobalInit(g.Init, g.Type)
		out.Init = &cv
	}
	c.mod.AddGlobal(out)
}

// lowerGlobalInit folds a global initializer expression to a Const,
// recursing into ECompoundLiteral member/element lists to build a
// ConstAggregate (spec.md §4.1: "Compound literals that denote
// aggregates produce GlobalInit lists").
func (c *Compiler) lowerGlobalInit(e *ast.Expr, t *ast.CType) ir.Const {
	if v, ok := c.consts[e]; ok {
		return v
	}
	if e.Kind == ast.ECompoundLiteral && t.IsAggregate() {
		elems := make([]ir.Const, len(e.CompoundInit.Elems))
		fieldType := func(i int) *ast.CType {
			if t.Kind == ast.KindArray {
				return t.Elem
			}
			if i < len(t.Tag.Fields) {
				return fieldCType(t.Tag.Fields[i].Type)
			}
			return ast.VoidType
		}
		for i, el := range e.CompoundInit.Elems {
			elems[i] = c.lowerGlobalInit(el, fieldType(i))
		}
		return ir.Const{Kind: ir.ConstAggregate, Type: t.IRType(), Elems: elems}
	}
	cv, ok := c.foldConstExpr(e)
	if !ok {
		c.errorf(e, "global initializer is not a constant expression")
		return ir.ZeroConst(t.IRType())
	}
	return cv
}

// fieldCType reconstructs a scalar CType wrapper for a struct field's
// ir.Type; aggregate fields nested within aggregates are out of scope
// for this simplified lowering of global aggregate initializers.
func fieldCType(t ir.Type) *ast.CType {
	if t == ir.Ptr {
		return ast.PointerTo(ast.VoidType)
	}
	return ast.Scalar(t)
}

// lowerFunction lowers one function definition. Declaration-only
// functions (Body == nil) produce a DeclOnly ir.Function with no blocks,
// matching spec.md §3's Function.DeclOnly flag.
func (c *Compiler) lowerFunction(fn *ast.Function) {
	params := make([]ir.Param, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = ir.Param{Name: p.Decl.Name, Type: p.Decl.Type.IRType()}
	}
	irFn := ir.NewFunction(fn.Name, fn.RetType.IRType(), params, fn.Variadic)
	if fn.Body == nil {
		irFn.DeclOnly = true
		c.mod.AddFunction(irFn)
		return
	}

	c.fn = irFn
	c.b = ir.NewBuilder(irFn)
	c.locals = make(map[*ast.Decl]ir.ValueID)
	c.labels = make(map[string]*ir.Block)
	c.gotos = nil
	c.breakTargets = nil
	c.continueTargets = nil

	entry := c.b.NewBlock()
	c.b.SetCurrentBlock(entry)

	// Every parameter arrives as a plain incoming value (Instr == nil,
	// defined in the entry block, in declaration order) — the contract
	// internal/backend's tests already assume lowering will produce
	// (see internal/backend/compiler_test.go's buildAdd comment) — and
	// is then treated exactly like any other local: materialized as an
	// Alloca and stored through, so mem2reg can promote it like
	// anything else (spec.md §4.1: "Each local variable is materialized
	// as an Alloca in the entry block").
	for _, p := range fn.Params {
		d := p.Decl
		t := d.Type.IRType()
		incoming := irFn.AllocateValue(t, entry.ID, nil)
		slot := c.b.EmitAlloca(d.Type.AllocaElemType(), d.Type.Size(), d.Align)
		c.b.EmitStore(slot, ir.ValueOperand(incoming))
		c.locals[d] = slot
	}

	c.lowerStmt(fn.Body)

	// A function whose body falls off the end without an explicit
	// return needs a terminator; C allows this for a void function (or
	// for a non-void function, it's UB we don't need to diagnose here
	// since sema already would have) — emit a default Return.
	if c.b.CurrentBlock().Terminator() == nil {
		if fn.RetType.IRType() == ir.Void {
			c.b.SetReturn(nil)
		} else {
			zero := ir.ConstOperand(ir.ZeroConst(fn.RetType.IRType()))
			c.b.SetReturn(&zero)
		}
	}

	c.resolveGotos()
	irFn.ComputeCFG()
	c.mod.AddFunction(irFn)
}

// resolveGotos reports any goto whose label was never defined in the
// function (an internal-compiler-error-class condition in a real
// frontend, since a sema pass would normally catch this first; this
// core defends against it anyway since internal/ast has no binder of
// its own).
func (c *Compiler) resolveGotos() {
	for _, g := range c.gotos {
		if _, ok := c.labels[g.label]; !ok {
			c.diags.Errorf(g.pos, "use of undeclared label '%s'", g.label)
		}
	}
}

// labelBlock returns the block associated with name, allocating
// (but not scheduling control into) it on first reference so that a
// goto reached before its label is lowered can still branch to it.
func (c *Compiler) labelBlock(name string) *ir.Block {
	if blk, ok := c.labels[name]; ok {
		return blk
	}
	blk := c.b.NewBlock()
	c.labels[name] = blk
	return blk
}

// ensureOpen opens a fresh block and makes it current if the current
// block already ended with a terminator, so that statements following
// a return/break/continue/goto (dead code, per spec.md §4.2's
// reachability-based dead-block removal) have somewhere to go.
func (c *Compiler) ensureOpen() {
	if c.b.CurrentBlock().Terminator() != nil {
		blk := c.b.NewBlock()
		c.b.SetCurrentBlock(blk)
	}
}

func (c *Compiler) errorf(e *ast.Expr, format string, args ...any) {
	c.diags.Errorf(diag.Pos{}, format, args...)
}

func (c *Compiler) newTempName(prefix string) string {
	c.tmpCounter++
	return fmt.Sprintf("%s.%d", prefix, c.tmpCounter)
}
