package compiler

import "testing"

func TestInfoForEveryTarget(t *testing.T) {
	t.Parallel()
	for _, tgt := range []Target{TargetX86_64, TargetARM64, TargetRISCV64} {
		info, err := infoFor(tgt)
		if err != nil {
			t.Fatalf("infoFor(%v): %v", tgt, err)
		}
		if info.newMachine == nil || info.assemble == nil {
			t.Fatalf("infoFor(%v) returned an incomplete targetInfo", tgt)
		}
		if len(info.available) == 0 {
			t.Fatalf("infoFor(%v) has no callee-saved registers available to regalloc", tgt)
		}
		m := info.newMachine()
		if m == nil {
			t.Fatalf("infoFor(%v).newMachine() returned nil", tgt)
		}
	}
}

func TestTargetString(t *testing.T) {
	t.Parallel()
	cases := map[Target]string{TargetX86_64: "x86-64", TargetARM64: "arm64", TargetRISCV64: "riscv64"}
	for tgt, want := range cases {
		if got := tgt.String(); got != want {
			t.Errorf("Target(%d).String() = %q, want %q", tgt, got, want)
		}
	}
}

func TestInfoForUnknownTarget(t *testing.T) {
	t.Parallel()
	if _, err := infoFor(Target(99)); err == nil {
		t.Fatal("expected an error for an unknown target")
	}
}
