package x86

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/asm"
	"github.com/dj707chen/nativecc/internal/backend"
)

func TestAssembleProducesELFObject(t *testing.T) {
	funcs := []asm.FunctionCode{
		{Name: "main", Code: []byte{0xb8, 0x00, 0x00, 0x00, 0x00, 0xc3}, Global: true,
			Relocs: []backend.Relocation{{Offset: 1, Symbol: "helper", Kind: "PC32", Addend: -4}}},
	}
	obj, err := Assemble(funcs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(obj) == 0 || obj[0] != 0x7f {
		t.Fatal("expected a valid non-empty ELF object")
	}
}

func TestMapRelocRejectsUnknownKind(t *testing.T) {
	if _, err := mapReloc("BOGUS"); err == nil {
		t.Fatal("expected an error for an unknown relocation kind")
	}
}
