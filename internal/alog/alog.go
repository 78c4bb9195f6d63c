// Package alog constructs the process's structured logger (spec.md
// §4.N), threaded as a field rather than a package-level global per
// spec.md §9 ("Debug/quiet flags should be plumbed as fields on the
// orchestrator rather than process-wide toggles").
package alog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger from the --debug/--quiet flags.
// debug wins over quiet if both are set.
func New(debug, quiet bool) (*zap.SugaredLogger, error) {
	switch {
	case debug:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		return l.Sugar(), nil
	case quiet:
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig.TimeKey = ""
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		return l.Sugar(), nil
	default:
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig.TimeKey = ""
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		return l.Sugar(), nil
	}
}

// Noop returns a logger that discards everything, used by tests that
// don't care about log output.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
