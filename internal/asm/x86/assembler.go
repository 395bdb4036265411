// Package x86 provides the x86-64 native assembler: it turns the
// x86 codegen backend's lowered function bytes into an ELF64 ET_REL
// object file, mapping the backend's target-neutral relocation kinds
// onto the x86-64 psABI's numeric r_type constants (spec.md §4.7).
package x86

import (
	"fmt"

	"github.com/dj707chen/nativecc/internal/asm"
	"github.com/dj707chen/nativecc/internal/asm/elf"
	"github.com/dj707chen/nativecc/internal/backend"
)

// x86-64 psABI relocation types (System V AMD64 ABI, §4.2.8).
const (
	R_X86_64_PC32  = 2
	R_X86_64_PLT32 = 4
)

// Assemble builds a single-object x86-64 translation unit from funcs.
func Assemble(funcs []asm.FunctionCode) ([]byte, error) {
	return asm.BuildObject(elf.EM_X86_64, funcs, mapReloc)
}

func mapReloc(kind backend.RelocKind) (uint32, error) {
	switch kind {
	case "PC32":
		return R_X86_64_PC32, nil
	case "PLT32":
		return R_X86_64_PLT32, nil
	default:
		return 0, fmt.Errorf("x86: unmapped relocation kind %q", kind)
	}
}
