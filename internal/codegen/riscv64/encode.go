package riscv64

import (
	"encoding/binary"
	"fmt"

	"github.com/dj707chen/nativecc/internal/backend"
)

// encode serializes a lowered instruction stream into RV64GC machine
// code. This core emits only the uncompressed (4-byte) encodings. RVC
// compression (spec.md §4.6) is left to internal/asm/riscv64, which does
// not implement it either: these words reach the object file unchanged.
func encode(instrs []Instr, fnName string) ([]byte, []backend.Relocation, error) {
	labelOffset := map[string]int{}
	var words []uint32
	var pending []struct {
		idx    int
		target string
		kind   ROp
	}
	var relocs []backend.Relocation

	for _, in := range instrs {
		if in.Op == RLabel {
			labelOffset[in.Label] = len(words) * 4
			continue
		}
		if in.Op == RLa {
			rd := encNum(operandReg(in.Dst))
			pending = append(pending, struct {
				idx    int
				target string
				kind   ROp
			}{idx: len(words), target: in.Label, kind: RLa})
			words = append(words, uType(opAuipc, rd, 0))
			words = append(words, iType(opOpImm, rd, 0, rd, 0))
			continue
		}
		w, err := encodeOne(in)
		if err != nil {
			return nil, nil, fmt.Errorf("riscv64: %w (in %s)", err, fnName)
		}
		switch in.Op {
		case RJal:
			if in.Label != "" {
				pending = append(pending, struct {
					idx    int
					target string
					kind   ROp
				}{idx: len(words), target: in.Label, kind: RJal})
			} else if in.Callee != "" {
				relocs = append(relocs, backend.Relocation{Offset: int64(len(words) * 4), Symbol: in.Callee, Kind: "CALL"})
			}
		case RBne:
			pending = append(pending, struct {
				idx    int
				target string
				kind   ROp
			}{idx: len(words), target: in.Label, kind: RBne})
		case RAuipc:
			relocs = append(relocs, backend.Relocation{Offset: int64(len(words) * 4), Symbol: in.Src1.Mem.Symbol, Kind: "PCREL_HI20"})
		}
		words = append(words, w)
	}

	for _, p := range pending {
		target, ok := labelOffset[p.target]
		if !ok {
			continue
		}
		delta := int32(target - p.idx*4)
		switch p.kind {
		case RJal:
			words[p.idx] = patchJalImm(words[p.idx], delta)
		case RBne:
			words[p.idx] = patchBranchImm(words[p.idx], delta)
		case RLa:
			hi, lo := splitPCRel(delta)
			words[p.idx] = words[p.idx]&0xfff | uint32(hi)<<12
			words[p.idx+1] = words[p.idx+1]&0xfffff | uint32(lo&0xfff)<<20
		}
	}

	code := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(code[i*4:], w)
	}
	return code, relocs, nil
}

const (
	opLoad   = 0x03
	opStore  = 0x23
	opOp     = 0x33
	opOpImm  = 0x13
	opLui    = 0x37
	opAuipc  = 0x17
	opJal    = 0x6f
	opJalr   = 0x67
	opBranch = 0x63
	opFp     = 0x53
	opAmo    = 0x2f
)

func rType(opcode uint32, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func iType(opcode uint32, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeOne(in Instr) (uint32, error) {
	rd := encNum(operandReg(in.Dst))
	rs1 := encNum(operandReg(in.Src1))
	rs2 := encNum(operandReg(in.Src2))
	switch in.Op {
	case RNop:
		return iType(opOpImm, 0, 0, 0, 0), nil
	case RUnimp:
		return 0, nil // all-zero word traps as an illegal instruction
	case RMv:
		return iType(opOpImm, rd, 0, rs1, 0), nil
	case RLi:
		return iType(opOpImm, rd, 0, 0, int32(in.Src1.Imm)), nil
	case RAdd:
		return rType(opOp, rd, 0, rs1, rs2, 0), nil
	case RSub:
		return rType(opOp, rd, 0, rs1, rs2, 0x20), nil
	case RMul:
		return rType(opOp, rd, 0, rs1, rs2, 1), nil
	case RDiv:
		return rType(opOp, rd, 4, rs1, rs2, 1), nil
	case RDivu:
		return rType(opOp, rd, 5, rs1, rs2, 1), nil
	case RRem:
		return rType(opOp, rd, 6, rs1, rs2, 1), nil
	case RRemu:
		return rType(opOp, rd, 7, rs1, rs2, 1), nil
	case RAnd:
		return rType(opOp, rd, 7, rs1, rs2, 0), nil
	case ROr:
		return rType(opOp, rd, 6, rs1, rs2, 0), nil
	case RXor:
		return rType(opOp, rd, 4, rs1, rs2, 0), nil
	case RNot:
		return iType(opOpImm, rd, 4, rs1, -1), nil
	case RNeg:
		return rType(opOp, rd, 0, 0, rs1, 0x20), nil
	case RSll:
		return rType(opOp, rd, 1, rs1, rs2, 0), nil
	case RSrl:
		return rType(opOp, rd, 5, rs1, rs2, 0), nil
	case RSra:
		return rType(opOp, rd, 5, rs1, rs2, 0x20), nil
	case RSlt:
		return rType(opOp, rd, 2, rs1, rs2, 0), nil
	case RSltu:
		return rType(opOp, rd, 3, rs1, rs2, 0), nil
	case RSeqz:
		return iType(opOpImm, rd, 3, rs1, 1), nil
	case RSnez:
		return rType(opOp, rd, 3, 0, rs1, 0), nil
	case RXori:
		return iType(opOpImm, rd, 4, rs1, int32(in.Src2.Imm)), nil
	case RAddi:
		return iType(opOpImm, rd, 0, rs1, int32(in.Src2.Imm)), nil
	case RLd:
		return iType(opLoad, rd, loadFunct3(in), encNum(in.Src1.Mem.Base), in.Src1.Mem.Disp), nil
	case RSd:
		return sType(opStore, storeFunct3(in), encNum(in.Dst.Mem.Base), encNum(in.Src1.Reg), in.Dst.Mem.Disp), nil
	case RFaddD:
		return rType(opFp, rd, 0, rs1, rs2, 0x01), nil
	case RFsubD:
		return rType(opFp, rd, 0, rs1, rs2, 0x05), nil
	case RFmulD:
		return rType(opFp, rd, 0, rs1, rs2, 0x09), nil
	case RFdivD:
		return rType(opFp, rd, 0, rs1, rs2, 0x0d), nil
	case RFmvD:
		return rType(opFp, rd, 0, rs1, rs1, 0x11), nil
	case RFcvtDW:
		return rType(opFp, rd, 0, rs1, 0, 0x69), nil
	case RFcvtWD:
		return rType(opFp, rd, 0, rs1, 0, 0x61), nil
	case RAuipc:
		return uType(opAuipc, rd, 0), nil
	case RJal:
		return jType(opJal, rd), nil
	case RJalr:
		return iType(opJalr, rd, 0, rs1, int32(in.Src2.Imm)), nil
	case RBne:
		return bType(opBranch, 1, rs1, rs2, 0), nil
	case RLrW:
		return rType(opAmo, rd, 2, rs1, 0, 0x08), nil
	case RScW:
		return rType(opAmo, rd, 2, rs1, rs2, 0x0c), nil
	case RFenceSeqCst:
		return 0x0ff0000f, nil
	default:
		return 0, fmt.Errorf("unhandled opcode %d", in.Op)
	}
}

func loadFunct3(in Instr) uint32 {
	switch in.Width {
	case W8:
		if in.Signed {
			return 0
		}
		return 4
	case W16:
		if in.Signed {
			return 1
		}
		return 5
	case W32:
		if in.Signed {
			return 2
		}
		return 6
	default:
		return 3
	}
}

func storeFunct3(in Instr) uint32 {
	switch in.Width {
	case W8:
		return 0
	case W16:
		return 1
	case W32:
		return 2
	default:
		return 3
	}
}

func sType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	lo := uint32(imm) & 0x1f
	hi := (uint32(imm) >> 5) & 0x7f
	return hi<<25 | rs2<<20 | rs1<<15 | funct3<<12 | lo<<7 | opcode
}

func uType(opcode, rd uint32, imm int32) uint32 { return uint32(imm)&0xfffff000 | rd<<7 | opcode }

// splitPCRel splits a PC-relative delta into the auipc hi20 and the
// addi lo12, rounding hi up when lo's sign bit would otherwise flip
// the low 12 bits negative (the standard RISC-V pcrel_hi/pcrel_lo split).
func splitPCRel(delta int32) (hi20, lo12 int32) {
	hi20 = (delta + 0x800) >> 12
	lo12 = delta - (hi20 << 12)
	return hi20, lo12
}

func jType(opcode, rd uint32) uint32 { return rd<<7 | opcode }

func bType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	return rs2<<20 | rs1<<15 | funct3<<12 | opcode
}

func operandReg(o Operand) backend.RealReg {
	if o.Kind == OperandReg {
		return o.Reg
	}
	return 0
}

func patchJalImm(word uint32, delta int32) uint32 {
	u := uint32(delta)
	imm20 := (u >> 20) & 1
	imm10_1 := (u >> 1) & 0x3ff
	imm11 := (u >> 11) & 1
	imm19_12 := (u >> 12) & 0xff
	return word&0xfff | imm20<<31 | imm10_1<<21 | imm11<<20 | imm19_12<<12
}

func patchBranchImm(word uint32, delta int32) uint32 {
	u := uint32(delta)
	imm12 := (u >> 12) & 1
	imm10_5 := (u >> 5) & 0x3f
	imm4_1 := (u >> 1) & 0xf
	imm11 := (u >> 11) & 1
	return word&0x1fff07f | imm12<<31 | imm10_5<<25 | imm4_1<<8 | imm11<<7
}
