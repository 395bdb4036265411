package arm64

import "github.com/dj707chen/nativecc/internal/ir"

// cond is an AArch64 condition code, encoded per the teacher's cond.go
// but recomputed here since the constant ordering is part of the
// instruction encoding, not importable across packages.
type cond uint8

const (
	ceq cond = 0
	cne cond = 1
	chs cond = 2 // unsigned >=
	clo cond = 3 // unsigned <
	cge cond = 10
	clt cond = 11
	cgt cond = 12
	cle cond = 13
	chi cond = 8 // unsigned >
	cls cond = 9 // unsigned <=
	cal cond = 14
)

func (c cond) invert() cond {
	switch c {
	case ceq:
		return cne
	case cne:
		return ceq
	case chs:
		return clo
	case clo:
		return chs
	case cge:
		return clt
	case clt:
		return cge
	case cgt:
		return cle
	case cle:
		return cgt
	case chi:
		return cls
	case cls:
		return chi
	default:
		return cal
	}
}

func predToCond(p ir.CmpPred) cond {
	switch p {
	case ir.CmpEq, ir.CmpFOEq:
		return ceq
	case ir.CmpNe, ir.CmpFONe:
		return cne
	case ir.CmpSlt, ir.CmpFOLt:
		return clt
	case ir.CmpSle, ir.CmpFOLe:
		return cle
	case ir.CmpSgt, ir.CmpFOGt:
		return cgt
	case ir.CmpSge, ir.CmpFOGe:
		return cge
	case ir.CmpUlt:
		return clo
	case ir.CmpUle:
		return cls
	case ir.CmpUgt:
		return chi
	case ir.CmpUge:
		return chs
	default:
		return ceq
	}
}
