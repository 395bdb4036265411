// Package diag provides the two error-reporting surfaces this core
// uses: DiagnosticEngine, a plain-data collector of user-facing
// diagnostics rendered in GCC's `<file>:<line>:<col>: <severity>:
// <message>` format (spec.md §7), and PhaseLogger, a zap-backed
// internal tracer for assembler/linker phase tracing (spec.md §4.7,
// `-v`/`LINKER_DEBUG`).
package diag

import "fmt"

// Severity classifies a Diagnostic.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Note:
		return "note"
	case Warning:
		return "warning"
	default:
		return "error"
	}
}

// Pos is a source position; File may be empty for synthetic
// (linker/codegen-internal) diagnostics.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return ""
	}
	if p.Line == 0 {
		return p.File + ": "
	}
	return fmt.Sprintf("%s:%d:%d: ", p.File, p.Line, p.Col)
}

// Diagnostic is one reported condition.
type Diagnostic struct {
	Severity Severity
	Pos      Pos
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s%s: %s", d.Pos, d.Severity, d.Message)
}

// DiagnosticEngine batches diagnostics across a compilation or link,
// mirroring the teacher's preference for explicit multi-value returns
// over panics (ssa.Builder methods never error dramatically).
type DiagnosticEngine struct {
	diags   []Diagnostic
	errored bool
}

func NewDiagnosticEngine() *DiagnosticEngine { return &DiagnosticEngine{} }

func (e *DiagnosticEngine) Report(sev Severity, pos Pos, format string, args ...any) {
	e.diags = append(e.diags, Diagnostic{Severity: sev, Pos: pos, Message: fmt.Sprintf(format, args...)})
	if sev == Error {
		e.errored = true
	}
}

func (e *DiagnosticEngine) Notef(pos Pos, format string, args ...any)    { e.Report(Note, pos, format, args...) }
func (e *DiagnosticEngine) Warnf(pos Pos, format string, args ...any)    { e.Report(Warning, pos, format, args...) }
func (e *DiagnosticEngine) Errorf(pos Pos, format string, args ...any)   { e.Report(Error, pos, format, args...) }

func (e *DiagnosticEngine) HasErrors() bool        { return e.errored }
func (e *DiagnosticEngine) Diagnostics() []Diagnostic { return e.diags }

// Err returns a *CompileError wrapping the collected diagnostics if
// any Error-severity diagnostic was reported, else nil.
func (e *DiagnosticEngine) Err() error {
	if !e.errored {
		return nil
	}
	return &CompileError{Diagnostics: e.diags}
}

// CompileError is the sentinel error type phase entry points return
// when a DiagnosticEngine collected one or more Error-severity
// diagnostics.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	msg := ""
	for i, d := range e.Diagnostics {
		if i > 0 {
			msg += "\n"
		}
		msg += d.String()
	}
	return msg
}
