package diag

import (
	"strings"
	"testing"
)

func TestDiagnosticEngineCollectsAndFormats(t *testing.T) {
	e := NewDiagnosticEngine()
	e.Notef(Pos{File: "a.c", Line: 3, Col: 5}, "unused variable %q", "x")
	e.Warnf(Pos{File: "a.c", Line: 4, Col: 1}, "implicit conversion")
	if e.HasErrors() {
		t.Fatal("HasErrors true before any Error-severity diagnostic")
	}
	if err := e.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}

	e.Errorf(Pos{File: "a.c", Line: 10, Col: 2}, "undeclared identifier %q", "y")
	if !e.HasErrors() {
		t.Fatal("HasErrors false after an Error-severity diagnostic")
	}
	if len(e.Diagnostics()) != 3 {
		t.Fatalf("Diagnostics() len = %d, want 3", len(e.Diagnostics()))
	}

	err := e.Err()
	if err == nil {
		t.Fatal("Err() = nil, want a *CompileError")
	}
	ce, ok := err.(*CompileError)
	if !ok {
		t.Fatalf("Err() returned %T, want *CompileError", err)
	}
	if len(ce.Diagnostics) != 3 {
		t.Errorf("CompileError.Diagnostics len = %d, want 3", len(ce.Diagnostics))
	}
	if !strings.Contains(err.Error(), "a.c:10:2: error: undeclared identifier \"y\"") {
		t.Errorf("Error() = %q, missing formatted error line", err.Error())
	}
}

func TestPosStringSynthetic(t *testing.T) {
	if got := (Pos{}).String(); got != "" {
		t.Errorf("empty Pos.String() = %q, want empty", got)
	}
	if got := (Pos{File: "link"}).String(); got != "link: " {
		t.Errorf("file-only Pos.String() = %q, want \"link: \"", got)
	}
}

func TestSeverityString(t *testing.T) {
	cases := map[Severity]string{Note: "note", Warning: "warning", Error: "error"}
	for sev, want := range cases {
		if got := sev.String(); got != want {
			t.Errorf("Severity(%d).String() = %q, want %q", sev, got, want)
		}
	}
}

func TestNewPhaseLoggerVerboseAndQuiet(t *testing.T) {
	for _, verbose := range []bool{true, false} {
		l := NewPhaseLogger(verbose)
		if l == nil {
			t.Fatal("NewPhaseLogger returned nil")
		}
		l.Phase("test phase")
		l.Info("test info")
		l.Warn("test warn")
	}
}
