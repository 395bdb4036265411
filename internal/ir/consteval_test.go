package ir

import (
	"testing"

	"pgregory.net/rapid"
)

// TestEvalConstBinopMatchesRuntimeALU exercises spec.md §8's testable
// property directly: for random I32 operands and operations,
// EvalConstBinop must agree with what the runtime ALU (here, plain Go
// int32 arithmetic) would compute.
func TestEvalConstBinopMatchesRuntimeALU(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.Int32().Draw(rt, "a")
		b := rapid.Int32().Draw(rt, "b")
		op := rapid.SampledFrom([]BinOpKind{BinAdd, BinSub, BinMul, BinAnd, BinOr, BinXor}).Draw(rt, "op")

		got, ok := EvalConstBinop(op, I32, IntConst(I32, int64(a)), IntConst(I32, int64(b)))
		if !ok {
			rt.Fatalf("EvalConstBinop reported failure for a supposedly total op")
		}

		var want int32
		switch op {
		case BinAdd:
			want = a + b
		case BinSub:
			want = a - b
		case BinMul:
			want = a * b
		case BinAnd:
			want = a & b
		case BinOr:
			want = a | b
		case BinXor:
			want = a ^ b
		}
		if int32(got.I64) != want {
			rt.Fatalf("EvalConstBinop(%v, %d, %d) = %d, want %d", op, a, b, got.I64, want)
		}
	})
}

func TestEvalConstCastPreservesBitPatternRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Uint32().Draw(rt, "v")
		// u32 -> u8 -> u32 must preserve the low byte's value, the same
		// way widening an unsigned narrowing cast does at the hardware
		// level (zero-extend).
		narrowed, ok := EvalConstCast(U8, U32, IntConst(U32, int64(v)))
		if !ok {
			rt.Fatal("cast to u8 failed")
		}
		widened, ok := EvalConstCast(U32, U8, narrowed)
		if !ok {
			rt.Fatal("cast to u32 failed")
		}
		if uint32(widened.I64) != v&0xff {
			rt.Fatalf("round trip produced %d, want %d", widened.I64, v&0xff)
		}
	})
}

func TestEvalConstCmpSignedVsUnsigned(t *testing.T) {
	neg := IntConst(I32, -1)
	one := IntConst(I32, 1)

	signed, _ := EvalConstCmp(CmpSlt, neg, one)
	if signed.I64 != 1 {
		t.Fatalf("-1 <s 1 should be true")
	}
	unsigned, _ := EvalConstCmp(CmpUlt, neg, one)
	if unsigned.I64 != 0 {
		t.Fatalf("0xffffffff <u 1 should be false")
	}
}
