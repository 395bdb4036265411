package linker_test

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/dj707chen/nativecc/internal/asm"
	asmx86 "github.com/dj707chen/nativecc/internal/asm/x86"
	"github.com/dj707chen/nativecc/internal/backend"
	"github.com/dj707chen/nativecc/internal/linker"
)

// writeObject assembles funcs for x86-64 and writes the resulting
// object to dir/name.
func writeObject(t *testing.T, dir, name string, funcs []asm.FunctionCode) string {
	t.Helper()
	obj, err := asmx86.Assemble(funcs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, obj, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLinkSingleObjectProducesExecutable(t *testing.T) {
	dir := t.TempDir()
	// _start: call helper; ret (helper is resolved from a second object).
	start := asm.FunctionCode{
		Name: "_start", Global: true,
		Code: []byte{0xe8, 0x00, 0x00, 0x00, 0x00, 0xc3},
		Relocs: []backend.Relocation{
			{Offset: 1, Symbol: "helper", Kind: "PLT32", Addend: -4},
		},
	}
	helper := asm.FunctionCode{Name: "helper", Global: true, Code: []byte{0xc3}}

	mainObj := writeObject(t, dir, "main.o", []asm.FunctionCode{start})
	helperObj := writeObject(t, dir, "helper.o", []asm.FunctionCode{helper})

	out, err := linker.Link(linker.Options{Inputs: []string{mainObj, helperObj}, Entry: "_start"})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty executable bytes")
	}
	f, err := elf.NewFile(newReaderAt(out))
	if err != nil {
		t.Fatalf("resulting bytes are not a valid ELF file: %v", err)
	}
	if f.Type != elf.ET_EXEC {
		t.Errorf("e_type = %v, want ET_EXEC", f.Type)
	}
	if f.Entry == 0 {
		t.Error("e_entry is 0, expected a resolved _start address")
	}
}

func TestLinkMissingEntryFails(t *testing.T) {
	dir := t.TempDir()
	helper := asm.FunctionCode{Name: "helper", Global: true, Code: []byte{0xc3}}
	obj := writeObject(t, dir, "helper.o", []asm.FunctionCode{helper})

	if _, err := linker.Link(linker.Options{Inputs: []string{obj}, Entry: "_start"}); err == nil {
		t.Fatal("expected an error when the entry symbol is undefined")
	}
}

func TestLinkUndefinedSymbolFails(t *testing.T) {
	dir := t.TempDir()
	start := asm.FunctionCode{
		Name: "_start", Global: true,
		Code: []byte{0xe8, 0x00, 0x00, 0x00, 0x00, 0xc3},
		Relocs: []backend.Relocation{
			{Offset: 1, Symbol: "never_defined", Kind: "PLT32", Addend: -4},
		},
	}
	obj := writeObject(t, dir, "main.o", []asm.FunctionCode{start})

	if _, err := linker.Link(linker.Options{Inputs: []string{obj}, Entry: "_start"}); err == nil {
		t.Fatal("expected an error for an undefined relocation target")
	}
}

type bytesReaderAt struct{ b []byte }

func newReaderAt(b []byte) *bytesReaderAt { return &bytesReaderAt{b: b} }

func (r *bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.b)) {
		return 0, os.ErrClosed
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, os.ErrClosed
	}
	return n, nil
}
