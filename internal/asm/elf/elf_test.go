package elf_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dj707chen/nativecc/internal/asm/elf"
)

func TestBytesProducesValidHeader(t *testing.T) {
	w := &elf.Writer{Header: elf.Header{Machine: elf.EM_X86_64, Type: elf.ET_REL}}
	w.AddSection(elf.Section{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Data: []byte{0x90, 0x90, 0xc3}})

	buf := w.Bytes()
	require.True(t, bytes.HasPrefix(buf, []byte{0x7f, 'E', 'L', 'F'}), "missing ELF magic: %x", buf[:4])
	require.Equal(t, byte(2), buf[4], "expected ELFCLASS64")
	require.Equal(t, uint16(elf.ET_REL), binary.LittleEndian.Uint16(buf[16:]), "e_type")
	require.Equal(t, elf.EM_X86_64, elf.Machine(binary.LittleEndian.Uint16(buf[18:])), "e_machine")
}

func TestSectionHeaderNamesAreResolvable(t *testing.T) {
	w := &elf.Writer{Header: elf.Header{Machine: elf.EM_AARCH64, Type: elf.ET_REL}}
	w.AddSection(elf.Section{Name: ".text", Type: elf.SHT_PROGBITS, Data: []byte{1, 2, 3, 4}})
	w.AddSection(elf.Section{Name: ".data", Type: elf.SHT_PROGBITS, Data: []byte{5, 6}})

	buf := w.Bytes()
	shoff := binary.LittleEndian.Uint64(buf[40:])
	shnum := binary.LittleEndian.Uint16(buf[60:])
	require.Equal(t, uint16(4), shnum, "e_shnum (NULL + .text + .data + .shstrtab)")

	shstrndx := binary.LittleEndian.Uint16(buf[62:])
	shstrtabHdr := buf[shoff+uint64(shstrndx)*64:]
	shstrtabOff := binary.LittleEndian.Uint64(shstrtabHdr[24:])
	shstrtabSize := binary.LittleEndian.Uint64(shstrtabHdr[32:])
	shstrtab := buf[shstrtabOff : shstrtabOff+shstrtabSize]

	readName := func(nameOff uint32) string {
		end := bytes.IndexByte(shstrtab[nameOff:], 0)
		return string(shstrtab[nameOff : nameOff+uint32(end)])
	}

	cases := []struct {
		name   string
		hdrOff uint64
	}{
		{".text", shoff + 64},  // entry 0 is the SHT_NULL entry
		{".data", shoff + 128},
	}
	for _, c := range cases {
		hdr := buf[c.hdrOff:]
		nameOff := binary.LittleEndian.Uint32(hdr[0:])
		require.Equal(t, c.name, readName(nameOff))
	}
}

func TestEncodeSymbolAndRelaRoundTripFields(t *testing.T) {
	sym := elf.EncodeSymbol(7, elf.Symbol{Value: 0x10, Size: 4, Info: elf.SymInfo(elf.STB_GLOBAL, elf.STT_FUNC), Section: 1})
	require.Len(t, sym, 24, "symbol entry length")
	require.Equal(t, uint32(7), binary.LittleEndian.Uint32(sym[0:]), "st_name")
	require.Equal(t, uint64(0x10), binary.LittleEndian.Uint64(sym[8:]), "st_value")

	rela := elf.EncodeRela(elf.Rela{Offset: 0x20, Symbol: 3, Type: 2, Addend: -4})
	require.Len(t, rela, 24, "rela entry length")
	require.Equal(t, int64(-4), int64(binary.LittleEndian.Uint64(rela[16:])), "r_addend")
}
