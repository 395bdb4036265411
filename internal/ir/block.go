package ir

// BlockID identifies a Block, stable within its owning Function except
// across phi elimination, which may introduce synthetic defs (spec.md
// §3 lifecycles).
type BlockID uint32

const BlockInvalid BlockID = 0

func (b BlockID) Valid() bool { return b != BlockInvalid }

// Block is a straight-line sequence of instructions ending in exactly
// one terminator. Phi instructions, if any, occupy a prefix of Instrs
// (spec.md §3: "Phi instructions must appear before all non-phi
// instructions in a block").
type Block struct {
	ID     BlockID
	Instrs []*Instruction
	Preds  []BlockID // populated by (*Function).ComputeCFG
	Succs  []BlockID
}

// Terminator returns the block's terminator instruction, or nil if the
// block is still under construction and has none yet.
func (b *Block) Terminator() *Instruction {
	if n := len(b.Instrs); n > 0 && IsTerminator(b.Instrs[n-1].Opcode) {
		return b.Instrs[n-1]
	}
	return nil
}

// Phis returns the prefix of Instrs that are OpPhi.
func (b *Block) Phis() []*Instruction {
	i := 0
	for i < len(b.Instrs) && b.Instrs[i].Opcode == OpPhi {
		i++
	}
	return b.Instrs[:i]
}

// AppendPhi inserts instr after any existing phis, keeping the
// phis-before-non-phis invariant. instr must have Opcode == OpPhi.
func (b *Block) AppendPhi(instr *Instruction) {
	i := 0
	for i < len(b.Instrs) && b.Instrs[i].Opcode == OpPhi {
		i++
	}
	b.Instrs = append(b.Instrs, nil)
	copy(b.Instrs[i+1:], b.Instrs[i:])
	b.Instrs[i] = instr
}

// Append adds instr to the end of the block. Terminators must be
// appended last; callers are responsible for not appending after one.
func (b *Block) Append(instr *Instruction) {
	b.Instrs = append(b.Instrs, instr)
}

// RemovePhiIncoming strips any PhiIncoming entries in this block's phis
// that reference pred, used when CFG simplification removes a
// predecessor edge.
func (b *Block) RemovePhiIncoming(pred BlockID) {
	for _, phi := range b.Phis() {
		out := phi.Incoming[:0]
		for _, in := range phi.Incoming {
			if in.Block != pred {
				out = append(out, in)
			}
		}
		phi.Incoming = out
	}
}

// String renders a block id as "bN" for debug dumps and test diffs.
func (b BlockID) String() string {
	return "b" + itoa(uint32(b))
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
