package diag

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PhaseLogger wraps a *zap.Logger for internal assembler/linker phase
// tracing, separate from DiagnosticEngine's user-facing output.
// NewPhaseLogger enables debug-level tracing whenever verbose is true
// or the LINKER_DEBUG environment variable (spec.md §6) is set to any
// non-empty value.
type PhaseLogger struct {
	z *zap.Logger
}

func NewPhaseLogger(verbose bool) *PhaseLogger {
	level := zapcore.InfoLevel
	if verbose || os.Getenv("LINKER_DEBUG") != "" {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return &PhaseLogger{z: z}
}

func (p *PhaseLogger) Phase(name string, fields ...zap.Field) {
	p.z.Debug(name, fields...)
}

func (p *PhaseLogger) Info(msg string, fields ...zap.Field)  { p.z.Info(msg, fields...) }
func (p *PhaseLogger) Warn(msg string, fields ...zap.Field)  { p.z.Warn(msg, fields...) }
func (p *PhaseLogger) Sync() error                            { return p.z.Sync() }
