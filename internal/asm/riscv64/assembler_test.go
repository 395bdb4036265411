package riscv64

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/asm"
	"github.com/dj707chen/nativecc/internal/backend"
)

func TestAssembleProducesELFObject(t *testing.T) {
	funcs := []asm.FunctionCode{
		{Name: "main", Code: []byte{0x13, 0x00, 0x00, 0x00, 0x67, 0x80, 0x00, 0x00}, Global: true,
			Relocs: []backend.Relocation{{Offset: 4, Symbol: "callee", Kind: "CALL"}}},
	}
	obj, err := Assemble(funcs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(obj) == 0 || obj[0] != 0x7f {
		t.Fatal("expected a valid non-empty ELF object")
	}
}

func TestMapRelocCoversBothKinds(t *testing.T) {
	for _, k := range []string{"CALL", "PCREL_HI20"} {
		if _, err := mapReloc(backend.RelocKind(k)); err != nil {
			t.Errorf("mapReloc(%q): %v", k, err)
		}
	}
	if _, err := mapReloc("BOGUS"); err == nil {
		t.Fatal("expected an error for an unknown relocation kind")
	}
}
