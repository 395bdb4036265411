package compiler

import (
	"fmt"

	"github.com/dj707chen/nativecc/internal/asm"
	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/diag"
	"github.com/dj707chen/nativecc/internal/ir"
	"github.com/dj707chen/nativecc/internal/passes"
	"github.com/dj707chen/nativecc/internal/regalloc"
	"github.com/dj707chen/nativecc/internal/stacklayout"
)

// Options configures one Pipeline run, grounded on wazevoapi.OffsetData's
// plain-struct-of-knobs style (spec.md's AMBIENT STACK "Configuration"
// section): target selection is an explicit field, not read from
// environment or files. There is no ABI-variant or optimization-level
// field.
type Options struct {
	Target  Target
	Verbose bool
}

// Pipeline runs every function in a Module through passes,
// stack-layout, regalloc, and codegen, producing one object file per
// Module (spec.md §5's "passes -> stack-layout -> regalloc -> codegen
// -> assemble" stage sequence; "link" is a separate, explicit
// internal/linker.Link call once every translation unit's object is
// ready).
type Pipeline struct {
	opts   Options
	info   targetInfo
	logger *diag.PhaseLogger
}

// NewPipeline builds a Pipeline for opts.Target.
func NewPipeline(opts Options) (*Pipeline, error) {
	info, err := infoFor(opts.Target)
	if err != nil {
		return nil, err
	}
	return &Pipeline{opts: opts, info: info, logger: diag.NewPhaseLogger(opts.Verbose)}, nil
}

// CompileModule runs every function in mod through the pipeline and
// assembles the results into a single ELF64 ET_REL object, ready for
// internal/linker.Link.
func (p *Pipeline) CompileModule(mod *ir.Module) ([]byte, error) {
	var funcs []asm.FunctionCode
	mach := p.info.newMachine()
	comp := backend.NewCompiler(mach)

	for _, fn := range mod.Functions {
		if fn.DeclOnly {
			continue
		}
		p.logger.Phase("compiling function " + fn.Name)
		runPasses(fn)

		layout := stacklayout.Compute(fn)
		lv := layout.Liveness
		isCandidate := func(v ir.ValueID) bool {
			t := fn.TypeOf(v)
			return t != ir.I128 && t != ir.U128 && t != ir.F128
		}
		regs := regalloc.Allocate(fn, lv, p.info.available, regalloc.Constraints{}, isCandidate)

		code, relocs, err := comp.CompileWithAnalyses(fn, layout, regs)
		if err != nil {
			return nil, fmt.Errorf("compiler: %s: %w", fn.Name, err)
		}
		funcs = append(funcs, asm.FunctionCode{Name: fn.Name, Code: code, Relocs: relocs, Global: true})
		comp.Reset()
	}

	return p.info.assemble(funcs)
}

// runPasses runs the IR-level optimization and legalization passes in
// the fixed order codegen assumes: Mem2Reg promotes eligible allocas
// to SSA values first so ConstFold/DCE/CFGSimplify see maximal
// information, then PhiElim removes every OpPhi (spec.md §3) since no
// Machine.LowerInstr implementation handles OpPhi directly.
func runPasses(fn *ir.Function) {
	passes.Mem2Reg(fn)
	passes.ConstFold(fn)
	passes.CFGSimplify(fn)
	passes.DCE(fn)
	passes.PhiElim(fn)
}
