// Package arm64 provides the AArch64 native assembler: it turns the
// arm64 codegen backend's lowered function bytes into an ELF64 ET_REL
// object file, mapping the backend's target-neutral relocation kinds
// onto the AAPCS64 psABI's numeric r_type constants (spec.md §4.7).
package arm64

import (
	"fmt"

	"github.com/dj707chen/nativecc/internal/asm"
	"github.com/dj707chen/nativecc/internal/asm/elf"
	"github.com/dj707chen/nativecc/internal/backend"
)

// AArch64 ELF relocation types (ELF for the ARM 64-bit Architecture, §4.6).
const (
	R_AARCH64_CALL26           = 283
	R_AARCH64_ADR_PREL_PG_HI21 = 275
	R_AARCH64_ADD_ABS_LO12_NC  = 277
)

// Assemble builds a single-object AArch64 translation unit from funcs.
func Assemble(funcs []asm.FunctionCode) ([]byte, error) {
	return asm.BuildObject(elf.EM_AARCH64, funcs, mapReloc)
}

func mapReloc(kind backend.RelocKind) (uint32, error) {
	switch kind {
	case "CALL26":
		return R_AARCH64_CALL26, nil
	case "ADR_PREL_PG_HI21":
		return R_AARCH64_ADR_PREL_PG_HI21, nil
	case "ADD_ABS_LO12_NC":
		return R_AARCH64_ADD_ABS_LO12_NC, nil
	default:
		return 0, fmt.Errorf("arm64: unmapped relocation kind %q", kind)
	}
}
