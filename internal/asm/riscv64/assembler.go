// Package riscv64 provides the RISC-V native assembler: it turns the
// riscv64 codegen backend's lowered function bytes into an ELF64
// ET_REL object file, mapping the backend's target-neutral relocation
// kinds onto the RISC-V psABI's numeric r_type constants (spec.md
// §4.7). RVC (compressed-instruction) re-encoding of the codegen
// backend's uncompressed 4-byte stream is not implemented; this
// assembler passes function bytes through unchanged.
package riscv64

import (
	"fmt"

	"github.com/dj707chen/nativecc/internal/asm"
	"github.com/dj707chen/nativecc/internal/asm/elf"
	"github.com/dj707chen/nativecc/internal/backend"
)

// RISC-V ELF relocation types (RISC-V ELF psABI spec, relocation table).
const (
	R_RISCV_CALL       = 18
	R_RISCV_PCREL_HI20 = 23
)

// Assemble builds a single-object RISC-V translation unit from funcs.
func Assemble(funcs []asm.FunctionCode) ([]byte, error) {
	return asm.BuildObject(elf.EM_RISCV, funcs, mapReloc)
}

func mapReloc(kind backend.RelocKind) (uint32, error) {
	switch kind {
	case "CALL":
		return R_RISCV_CALL, nil
	case "PCREL_HI20":
		return R_RISCV_PCREL_HI20, nil
	default:
		return 0, fmt.Errorf("riscv64: unmapped relocation kind %q", kind)
	}
}
