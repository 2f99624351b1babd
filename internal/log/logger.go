package log

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger implements Logger using zap.
type logger struct {
	zap *zap.Logger
}

// noopLogger implements Logger but does nothing; used in tests.
type noopLogger struct{}

// New creates a logger for the given ambient Config. Production
// environments (or an explicit "json" format) get zap's JSON production
// encoder; everything else gets a readable console encoder, matching the
// teacher's development-vs-production split without the extra ANSI
// line-painting machinery a headless daemon never benefits from (it runs
// under systemd/docker, not an interactive terminal).
func New(cfg Config) Logger {
	level := parseLevel(cfg.Level)

	var zapLogger *zap.Logger
	if strings.EqualFold(cfg.Environment, "production") || strings.EqualFold(cfg.Format, "json") {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		zapLogger, _ = zapCfg.Build(zap.AddCallerSkip(1))
	} else {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(os.Stderr),
			zap.NewAtomicLevelAt(level),
		)
		zapLogger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	return &logger{zap: zapLogger}
}

// NewNoop returns a Logger that discards everything, used by tests that
// don't want log noise.
func NewNoop() Logger {
	return &noopLogger{}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fieldsToZap(fields)...) }
func (l *logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fieldsToZap(fields)...) }
func (l *logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fieldsToZap(fields)...) }
func (l *logger) Error(msg string, fields ...Field) { l.zap.Error(msg, fieldsToZap(fields)...) }

func (l *logger) With(fields ...Field) Logger {
	return &logger{zap: l.zap.With(fieldsToZap(fields)...)}
}

func (l *logger) Named(name string) Logger {
	return &logger{zap: l.zap.Named(name)}
}

func (l *logger) Sync() error {
	return l.zap.Sync()
}

func (l *noopLogger) Debug(msg string, fields ...Field) {}
func (l *noopLogger) Info(msg string, fields ...Field)  {}
func (l *noopLogger) Warn(msg string, fields ...Field)  {}
func (l *noopLogger) Error(msg string, fields ...Field) {}
func (l *noopLogger) With(fields ...Field) Logger       { return l }
func (l *noopLogger) Named(name string) Logger          { return l }
func (l *noopLogger) Sync() error                       { return nil }
