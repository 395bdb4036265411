package lower_test

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/ast"
	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/lower"
	"github.com/dj707chen/nativecc/internal/passes"
)

// buildFactorial constructs the AST for spec.md §8 Scenario A:
//
//	int fact(int n) { if (n <= 1) return 1; return n * fact(n - 1); }
func buildFactorial() *ast.TranslationUnit {
	i32 := ast.Scalar(ir.I32)
	n := &ast.Decl{Name: "n", Type: i32}

	identN := func() *ast.Expr { return &ast.Expr{Kind: ast.EIdentLocal, Decl: n, Type: i32} }
	one := func() *ast.Expr { return &ast.Expr{Kind: ast.EIntLit, IntVal: 1, Type: i32} }

	cond := &ast.Expr{Kind: ast.EBinary, IsCmp: true, CmpPred: ir.CmpSle, LHS: identN(), RHS: one(), Type: i32}
	thenRet := &ast.Stmt{Kind: ast.SReturn, X: one()}
	ifStmt := &ast.Stmt{Kind: ast.SIf, Cond: cond, Then: &ast.Stmt{Kind: ast.SBlock, Stmts: []*ast.Stmt{thenRet}}}

	nMinus1 := &ast.Expr{Kind: ast.EBinary, BinOp: ir.BinSub, LHS: identN(), RHS: one(), Type: i32}
	call := &ast.Expr{
		Kind:   ast.ECall,
		Callee: &ast.Expr{Kind: ast.EFunc, Name: "fact", Type: ast.PointerTo(ast.VoidType)},
		Args:   []*ast.Expr{nMinus1},
		Type:   i32,
	}
	mul := &ast.Expr{Kind: ast.EBinary, BinOp: ir.BinMul, LHS: identN(), RHS: call, Type: i32}
	finalRet := &ast.Stmt{Kind: ast.SReturn, X: mul}

	body := &ast.Stmt{Kind: ast.SBlock, Stmts: []*ast.Stmt{ifStmt, finalRet}}

	fn := &ast.Function{
		Name:    "fact",
		RetType: i32,
		Params:  []*ast.Param{{Decl: n}},
		Body:    body,
	}
	return &ast.TranslationUnit{Functions: []*ast.Function{fn}}
}

func TestLowerFactorial(t *testing.T) {
	comp := lower.NewCompiler(nil, nil)
	mod, err := comp.LowerTranslationUnit(buildFactorial())
	if err != nil {
		t.Fatalf("LowerTranslationUnit: %v", err)
	}
	fn := mod.FindFunction("fact")
	if fn == nil {
		t.Fatal("expected function 'fact' in lowered module")
	}
	if fn.DeclOnly {
		t.Fatal("fact should not be declaration-only")
	}
	if len(fn.Blocks) == 0 {
		t.Fatal("expected at least one block")
	}
	for _, b := range fn.Blocks {
		if b.Terminator() == nil {
			t.Fatalf("block %v has no terminator", b.ID)
		}
	}

	// Every terminator target must name a block that exists in fn
	// (spec.md §3 invariant / §8 testable property).
	index := make(map[ir.BlockID]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		index[b.ID] = true
	}
	for _, b := range fn.Blocks {
		term := b.Terminator()
		switch term.Opcode {
		case ir.OpBranch:
			if !index[term.Target] {
				t.Fatalf("branch to unknown block %v", term.Target)
			}
		case ir.OpCondBranch:
			if !index[term.TrueTarget] || !index[term.FalseTarget] {
				t.Fatalf("condbranch to unknown block in %v", b.ID)
			}
		}
	}

	// Run the standard pass pipeline order to make sure lowering's
	// output is well-formed enough for mem2reg/constfold/cfgsimplify/dce
	// to run without panicking, exercising the same sequence
	// internal/compiler.runPasses uses.
	passes.Mem2Reg(fn)
	passes.ConstFold(fn)
	passes.CFGSimplify(fn)
	passes.DCE(fn)
	passes.PhiElim(fn)
}

func TestLowerGlobalWithInitializer(t *testing.T) {
	i32 := ast.Scalar(ir.I32)
	g := &ast.Global{
		Name: "counter",
		Type: i32,
		Init: &ast.Expr{Kind: ast.EIntLit, IntVal: 42, Type: i32},
	}
	tu := &ast.TranslationUnit{Globals: []*ast.Global{g}}

	comp := lower.NewCompiler(nil, nil)
	mod, err := comp.LowerTranslationUnit(tu)
	if err != nil {
		t.Fatalf("LowerTranslationUnit: %v", err)
	}
	if len(mod.Globals) != 1 {
		t.Fatalf("expected 1 global, got %d", len(mod.Globals))
	}
	out := mod.Globals[0]
	if out.Init == nil || out.Init.I64 != 42 {
		t.Fatalf("expected initializer 42, got %+v", out.Init)
	}
}

func TestLowerLoopAndBreak(t *testing.T) {
	// int sum(int n) {
	//   int s = 0;
	//   for (int i = 0; i < n; i = i + 1) {
	//     if (i == 5) break;
	//     s = s + i;
	//   }
	//   return s;
	// }
	i32 := ast.Scalar(ir.I32)
	n := &ast.Decl{Name: "n", Type: i32}
	s := &ast.Decl{Name: "s", Type: i32, Init: &ast.Expr{Kind: ast.EIntLit, Type: i32}}
	i := &ast.Decl{Name: "i", Type: i32, Init: &ast.Expr{Kind: ast.EIntLit, Type: i32}}

	identI := func() *ast.Expr { return &ast.Expr{Kind: ast.EIdentLocal, Decl: i, Type: i32} }
	identS := func() *ast.Expr { return &ast.Expr{Kind: ast.EIdentLocal, Decl: s, Type: i32} }
	identN := func() *ast.Expr { return &ast.Expr{Kind: ast.EIdentLocal, Decl: n, Type: i32} }
	lit := func(v int64) *ast.Expr { return &ast.Expr{Kind: ast.EIntLit, IntVal: v, Type: i32} }

	initStmt := &ast.Stmt{Kind: ast.SDecl, D: i}
	cond := &ast.Expr{Kind: ast.EBinary, IsCmp: true, CmpPred: ir.CmpSlt, LHS: identI(), RHS: identN(), Type: i32}
	post := &ast.Expr{
		Kind: ast.EAssign, AssignOp: ast.AssignSimple, LHS: identI(),
		RHS: &ast.Expr{Kind: ast.EBinary, BinOp: ir.BinAdd, LHS: identI(), RHS: lit(1), Type: i32},
		Type: i32,
	}

	breakIf := &ast.Stmt{
		Kind: ast.SIf,
		Cond: &ast.Expr{Kind: ast.EBinary, IsCmp: true, CmpPred: ir.CmpEq, LHS: identI(), RHS: lit(5), Type: i32},
		Then: &ast.Stmt{Kind: ast.SBreak},
	}
	accumulate := &ast.Stmt{Kind: ast.SExpr, X: &ast.Expr{
		Kind: ast.EAssign, AssignOp: ast.AssignSimple, LHS: identS(),
		RHS:  &ast.Expr{Kind: ast.EBinary, BinOp: ir.BinAdd, LHS: identS(), RHS: identI(), Type: i32},
		Type: i32,
	}}
	loopBody := &ast.Stmt{Kind: ast.SBlock, Stmts: []*ast.Stmt{breakIf, accumulate}}
	forStmt := &ast.Stmt{Kind: ast.SFor, Init: initStmt, Cond: cond, Post: post, Body: loopBody}

	body := &ast.Stmt{Kind: ast.SBlock, Stmts: []*ast.Stmt{
		{Kind: ast.SDecl, D: s},
		forStmt,
		{Kind: ast.SReturn, X: identS()},
	}}

	fn := &ast.Function{Name: "sum", RetType: i32, Params: []*ast.Param{{Decl: n}}, Body: body}
	tu := &ast.TranslationUnit{Functions: []*ast.Function{fn}}

	comp := lower.NewCompiler(nil, nil)
	mod, err := comp.LowerTranslationUnit(tu)
	if err != nil {
		t.Fatalf("LowerTranslationUnit: %v", err)
	}
	out := mod.FindFunction("sum")
	if out == nil {
		t.Fatal("expected function 'sum'")
	}
	for _, b := range out.Blocks {
		if b.Terminator() == nil {
			t.Fatalf("block %v missing terminator", b.ID)
		}
	}
}
