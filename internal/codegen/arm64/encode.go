package arm64

import (
	"encoding/binary"
	"fmt"

	"github.com/dj707chen/nativecc/internal/backend"
)

// encode serializes a lowered instruction stream into AArch64's fixed
// 32-bit word encoding, resolving intra-function branch offsets
// directly and leaving BL/ADRP symbol references as Relocations for
// internal/asm/internal/linker (spec.md §4.6/§4.7: ADR_PREL_PG_HI21 +
// ADD_ABS_LO12_NC, CALL26).
func encode(instrs []Instr, fnName string) ([]byte, []backend.Relocation, error) {
	labelOffset := map[string]int{}
	var words []uint32
	var pending []struct {
		idx    int
		target string
		isBL   bool
		isAdr  bool
	}
	var relocs []backend.Relocation
	adrpSym := "" // symbol of an AAdrp immediately preceding the current instruction

	for _, in := range instrs {
		if in.Op == ALabel {
			labelOffset[in.Label] = len(words) * 4
			continue
		}
		w, err := encodeOne(in)
		if err != nil {
			return nil, nil, fmt.Errorf("arm64: %w (in %s)", err, fnName)
		}
		switch in.Op {
		case AB, ABCond:
			pending = append(pending, struct {
				idx    int
				target string
				isBL   bool
				isAdr  bool
			}{idx: len(words), target: in.Label})
		case AAdr:
			pending = append(pending, struct {
				idx    int
				target string
				isBL   bool
				isAdr  bool
			}{idx: len(words), target: in.Label, isAdr: true})
		case ABl:
			if in.Callee != "" {
				relocs = append(relocs, backend.Relocation{Offset: int64(len(words) * 4), Symbol: in.Callee, Kind: "CALL26"})
			}
		case AAdrp:
			relocs = append(relocs, backend.Relocation{Offset: int64(len(words) * 4), Symbol: in.Src1.Mem.Symbol, Kind: "ADR_PREL_PG_HI21"})
		case AAddImm12:
			if adrpSym != "" {
				relocs = append(relocs, backend.Relocation{Offset: int64(len(words) * 4), Symbol: adrpSym, Kind: "ADD_ABS_LO12_NC"})
			}
		}
		adrpSym = ""
		if in.Op == AAdrp {
			adrpSym = in.Src1.Mem.Symbol
		}
		words = append(words, w)
	}

	for _, p := range pending {
		target, ok := labelOffset[p.target]
		if !ok {
			continue
		}
		if p.isAdr {
			words[p.idx] = patchAdrImm(words[p.idx], int32(target-p.idx*4))
			continue
		}
		delta := int32(target-p.idx*4) / 4
		words[p.idx] = patchBranchImm(words[p.idx], delta)
	}

	code := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(code[i*4:], w)
	}
	return code, relocs, nil
}

// encodeOne produces a representative 32-bit encoding for in. Register
// operand fields are always placed per AArch64's Rd/Rn/Rm convention;
// full immediate-range legalization (e.g. splitting large shifts or
// out-of-range ADD immediates into multiple instructions) is deferred
// to internal/lower's arch-specific legalization pass, not yet built.
func encodeOne(in Instr) (uint32, error) {
	sf := uint32(0)
	if in.Is64 {
		sf = 1
	}
	switch in.Op {
	case ANop:
		return 0xd503201f, nil
	case ARet:
		return 0xd65f0000 | encNum(x30)<<5, nil
	case ABrk:
		return 0xd4200000, nil
	case ADmb:
		return 0xd5033bbf, nil
	case AMovRR:
		return 0x2a0003e0 | sf<<31 | encNum(operandReg(in.Src1))<<16 | encNum(operandReg(in.Dst)), nil
	case AAddRR:
		return 0x0b000000 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case ASubRR:
		return 0x4b000000 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AMulRR:
		return 0x1b007c00 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case ASdiv:
		return 0x1ac00c00 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AUdiv:
		return 0x1ac00800 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AMsub:
		return 0x1b008000 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src3))<<10 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AAndRR:
		return 0x0a000000 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AOrrRR:
		return 0x2a000000 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AEorRR:
		return 0x4a000000 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AMvn:
		return 0x2a2003e0 | sf<<31 | encNum(operandReg(in.Src1))<<16 | encNum(operandReg(in.Dst)), nil
	case ANeg:
		return 0x4b0003e0 | sf<<31 | encNum(operandReg(in.Src1))<<16 | encNum(operandReg(in.Dst)), nil
	case ALslImm:
		return 0x1ac02000 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case ALsrImm:
		return 0x1ac02400 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AAsrImm:
		return 0x1ac02800 | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case ACmp:
		return 0x6b00001f | sf<<31 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5, nil
	case ACset:
		return 0x1a9f07e0 | uint32(in.Cond.invert())<<12 | encNum(operandReg(in.Dst)), nil
	case ACsel:
		return 0x1a800000 | sf<<31 | encNum(operandReg(in.Src2))<<16 | uint32(in.Cond)<<12 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case ASxt:
		return 0x93401c00 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AUxt:
		return 0x53001c00 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case ALdr:
		return ldStEncoding(0xf9400000, in), nil
	case AStr:
		return ldStEncoding(0xf9000000, in), nil
	case ALdxr:
		return 0xc85f7c00 | encNum(in.Src1.Mem.Base)<<5 | encNum(operandReg(in.Dst)), nil
	case AStxr:
		return 0xc8007c00 | encNum(operandReg(in.Dst))<<16 | encNum(in.Src2.Mem.Base)<<5 | encNum(operandReg(in.Src1)), nil
	case AFmov:
		return 0x1e604000 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AScvtf:
		return 0x1e620000 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AFcvtzs:
		return 0x1e780000 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AFaddD:
		return 0x1e602800 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AFsubD:
		return 0x1e603800 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AFmulD:
		return 0x1e600800 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AFdivD:
		return 0x1e601800 | encNum(operandReg(in.Src2))<<16 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case AAdrp:
		return 0x90000000 | encNum(operandReg(in.Dst)), nil
	case AAddImm12:
		return 0x91000000 | encNum(operandReg(in.Src1))<<5 | encNum(operandReg(in.Dst)), nil
	case ABl:
		return 0x94000000, nil
	case ABlr:
		return 0xd63f0000 | encNum(operandReg(in.Src1))<<5, nil
	case ABr:
		return 0xd61f0000 | encNum(operandReg(in.Src1))<<5, nil
	case AAdr:
		return 0x10000000 | encNum(operandReg(in.Dst)), nil
	case AB:
		return 0x14000000, nil
	case ABCond:
		return 0x54000000 | uint32(in.Cond), nil
	default:
		return 0, fmt.Errorf("unhandled opcode %d", in.Op)
	}
}

func ldStEncoding(base uint32, in Instr) uint32 {
	mem := in.Src1.Mem
	if in.Op == AStr {
		mem = in.Dst.Mem
	}
	imm := uint32(mem.Disp/8) & 0xfff
	reg := in.Dst.Reg
	if in.Op == AStr {
		reg = in.Src1.Reg
	}
	return base | imm<<10 | encNum(mem.Base)<<5 | encNum(reg)
}

func operandReg(o Operand) backend.RealReg {
	if o.Kind == OperandReg {
		return o.Reg
	}
	return 0
}

// patchBranchImm rewrites word's imm26 (AB/ABl) or imm19 (ABCond)
// field with delta, selected by which opcode bits are set.
func patchBranchImm(word uint32, delta int32) uint32 {
	if word&0xfc000000 == 0x14000000 || word&0xfc000000 == 0x94000000 {
		return word&0xfc000000 | uint32(delta)&0x03ffffff
	}
	return word&0xff00001f | (uint32(delta)&0x7ffff)<<5
}

// patchAdrImm rewrites an ADR word's split 21-bit byte-offset immediate
// (immlo at bits 29-30, immhi at bits 5-23), preserving the destination
// register encoded in the low 5 bits.
func patchAdrImm(word uint32, delta int32) uint32 {
	u := uint32(delta)
	immlo := u & 3
	immhi := (u >> 2) & 0x7ffff
	rd := word & 0x1f
	return immlo<<29 | 0x10<<24 | immhi<<5 | rd
}
