package x86

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeepholePatterns(t *testing.T) {
	cases := []struct {
		name string
		in   []Instr
		want []Instr
	}{
		{
			name: "self-mov elided",
			in: []Instr{
				{Op: XMovRR, Width: W64, Dst: regOp(rax), Src1: regOp(rax)},
				{Op: XRet},
			},
			want: []Instr{{Op: XRet}},
		},
		{
			name: "store then load same register drops the load",
			in: []Instr{
				{Op: XMovMR, Dst: memOp(rbp, -8), Src1: regOp(rax)},
				{Op: XMovRM, Dst: regOp(rax), Src1: memOp(rbp, -8)},
				{Op: XRet},
			},
			want: []Instr{
				{Op: XMovMR, Dst: memOp(rbp, -8), Src1: regOp(rax)},
				{Op: XRet},
			},
		},
		{
			name: "store then load different register becomes a move",
			in: []Instr{
				{Op: XMovMR, Dst: memOp(rbp, -8), Src1: regOp(rax)},
				{Op: XMovRM, Width: W64, Dst: regOp(rcx), Src1: memOp(rbp, -8)},
				{Op: XRet},
			},
			want: []Instr{
				{Op: XMovMR, Dst: memOp(rbp, -8), Src1: regOp(rax)},
				{Op: XMovRR, Width: W64, Dst: regOp(rcx), Src1: regOp(rax)},
				{Op: XRet},
			},
		},
		{
			name: "push/pop around an instruction not touching the register is elided",
			in: []Instr{
				{Op: XPush, Width: W64, Src1: regOp(rbx)},
				{Op: XAddRR, Width: W64, Dst: regOp(rax), Src1: regOp(rcx)},
				{Op: XPop, Width: W64, Dst: regOp(rbx)},
				{Op: XRet},
			},
			want: []Instr{
				{Op: XAddRR, Width: W64, Dst: regOp(rax), Src1: regOp(rcx)},
				{Op: XRet},
			},
		},
		{
			name: "push/pop is kept when the middle instruction touches the register",
			in: []Instr{
				{Op: XPush, Width: W64, Src1: regOp(rbx)},
				{Op: XAddRR, Width: W64, Dst: regOp(rbx), Src1: regOp(rcx)},
				{Op: XPop, Width: W64, Dst: regOp(rbx)},
				{Op: XRet},
			},
			want: []Instr{
				{Op: XPush, Width: W64, Src1: regOp(rbx)},
				{Op: XAddRR, Width: W64, Dst: regOp(rbx), Src1: regOp(rcx)},
				{Op: XPop, Width: W64, Dst: regOp(rbx)},
				{Op: XRet},
			},
		},
		{
			name: "jump to the immediately following label is elided",
			in: []Instr{
				{Op: XJmp, Label: ".Lskip"},
				{Op: XLabel, Label: ".Lskip"},
				{Op: XRet},
			},
			want: []Instr{
				{Op: XLabel, Label: ".Lskip"},
				{Op: XRet},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := peephole(tc.in)
			require.Equal(t, tc.want, got)
		})
	}
}
