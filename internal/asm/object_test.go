package asm_test

import (
	"fmt"
	"testing"

	"github.com/dj707chen/nativecc/internal/asm"
	"github.com/dj707chen/nativecc/internal/asm/elf"
	"github.com/dj707chen/nativecc/internal/backend"
)

func mapReloc(k backend.RelocKind) (uint32, error) {
	switch k {
	case "PC32":
		return 2, nil
	default:
		return 0, fmt.Errorf("unsupported reloc kind %q", k)
	}
}

func TestBuildObjectOrdersLocalsBeforeGlobals(t *testing.T) {
	funcs := []asm.FunctionCode{
		{Name: "zglobal", Code: []byte{0xc3}, Global: true},
		{Name: "alocal", Code: []byte{0xc3}, Global: false},
		{Name: "bglobal", Code: []byte{0xc3},
			Relocs: []backend.Relocation{{Offset: 0, Symbol: "memcpy", Kind: "PC32", Addend: -4}}, Global: true},
	}

	obj, err := asm.BuildObject(elf.EM_X86_64, funcs, mapReloc)
	if err != nil {
		t.Fatalf("BuildObject: %v", err)
	}
	if len(obj) == 0 {
		t.Fatal("expected non-empty object bytes")
	}
	if obj[0] != 0x7f || obj[1] != 'E' {
		t.Fatalf("missing ELF magic")
	}
}

func TestBuildObjectPropagatesMapperError(t *testing.T) {
	funcs := []asm.FunctionCode{
		{Name: "f", Code: []byte{0xc3}, Global: true,
			Relocs: []backend.Relocation{{Symbol: "g", Kind: "NOT_A_KIND"}}},
	}
	if _, err := asm.BuildObject(elf.EM_X86_64, funcs, mapReloc); err == nil {
		t.Fatal("expected an error for an unmapped relocation kind")
	}
}
