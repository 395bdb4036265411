package backend_test

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/codegen/x86"
	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/regalloc"
	"github.com/dj707chen/nativecc/internal/stacklayout"
)

// buildAdd builds `int add(int a, int b) { return a + b; }` directly
// against the ir.Builder API, standing in for internal/lower (which
// would otherwise pre-allocate the parameter values).
func buildAdd() *ir.Function {
	fn := ir.NewFunction("add", ir.I32, []ir.Param{{Name: "a", Type: ir.I32}, {Name: "b", Type: ir.I32}}, false)
	b := ir.NewBuilder(fn)
	entry := b.NewBlock()
	b.SetCurrentBlock(entry)

	a := fn.AllocateValue(ir.I32, entry.ID, nil)
	c := fn.AllocateValue(ir.I32, entry.ID, nil)

	sum := b.EmitBinOp(ir.BinAdd, ir.I32, ir.ValueOperand(a), ir.ValueOperand(c))
	ret := ir.ValueOperand(sum)
	b.SetReturn(&ret)

	fn.ComputeCFG()
	return fn
}

func TestCompileWithAnalysesX86(t *testing.T) {
	fn := buildAdd()
	layout := stacklayout.Compute(fn)

	available := make([]regalloc.PhysReg, len(x86.CalleeSaved))
	for i, r := range x86.CalleeSaved {
		available[i] = regalloc.PhysReg(r)
	}
	isCandidate := func(v ir.ValueID) bool {
		t := fn.TypeOf(v)
		return t != ir.I128 && t != ir.U128 && t != ir.F128
	}
	regs := regalloc.Allocate(fn, layout.Liveness, available, regalloc.Constraints{}, isCandidate)

	mach := x86.New()
	comp := backend.NewCompiler(mach)
	code, _, err := comp.CompileWithAnalyses(fn, layout, regs)
	if err != nil {
		t.Fatalf("CompileWithAnalyses: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty machine code")
	}

	comp.Reset()
	code2, _, err := comp.CompileWithAnalyses(fn, layout, regs)
	if err != nil {
		t.Fatalf("second CompileWithAnalyses after Reset: %v", err)
	}
	if len(code2) != len(code) {
		t.Errorf("Reset then recompile produced different-length code: %d vs %d", len(code2), len(code))
	}
}

func TestCompileStandaloneComputesOwnAnalyses(t *testing.T) {
	fn := buildAdd()
	mach := x86.New()
	comp := backend.NewCompiler(mach)
	code, _, err := comp.Compile(fn)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty machine code")
	}
}
