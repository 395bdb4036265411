package arm64

import (
	"testing"

	"github.com/dj707chen/nativecc/internal/asm"
	"github.com/dj707chen/nativecc/internal/backend"
)

func TestAssembleProducesELFObject(t *testing.T) {
	funcs := []asm.FunctionCode{
		{Name: "main", Code: []byte{0x00, 0x00, 0x80, 0xd2, 0xc0, 0x03, 0x5f, 0xd6}, Global: true,
			Relocs: []backend.Relocation{{Offset: 0, Symbol: "g", Kind: "ADR_PREL_PG_HI21"}}},
	}
	obj, err := Assemble(funcs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(obj) == 0 || obj[0] != 0x7f {
		t.Fatal("expected a valid non-empty ELF object")
	}
}

func TestMapRelocCoversAllThreeKinds(t *testing.T) {
	for _, k := range []string{"CALL26", "ADR_PREL_PG_HI21", "ADD_ABS_LO12_NC"} {
		if _, err := mapReloc(backend.RelocKind(k)); err != nil {
			t.Errorf("mapReloc(%q): %v", k, err)
		}
	}
	if _, err := mapReloc("BOGUS"); err == nil {
		t.Fatal("expected an error for an unknown relocation kind")
	}
}
