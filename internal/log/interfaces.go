// Package log wraps go.uber.org/zap behind a small interface so the rest
// of the server depends on Logger/Field rather than zap directly.
package log

import "go.uber.org/zap"

// Logger represents the logging interface used throughout the server.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Logger
	Named(name string) Logger

	Sync() error
}

// Field represents a structured log field.
type Field interface {
	Key() string
	Value() any
	ZapField() zap.Field
}

// Config represents the ambient logging configuration (see
// internal/config).
type Config struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Environment string `yaml:"environment"`
}
