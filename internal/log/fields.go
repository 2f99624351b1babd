package log

import (
	"time"

	"go.uber.org/zap"
)

// field is the concrete Field implementation. Unlike the teacher's
// reflection-heavy ZapField, it just keeps the original value alongside
// the zap.Field so Value() needs no type-switch over zapcore internals.
type field struct {
	key   string
	value any
	zf    zap.Field
}

func (f field) Key() string       { return f.key }
func (f field) Value() any        { return f.value }
func (f field) ZapField() zap.Field { return f.zf }

// Field constructors used across the codec, dispatcher, and listener.
var (
	String = func(key, val string) Field {
		return field{key, val, zap.String(key, val)}
	}

	Int = func(key string, val int) Field {
		return field{key, val, zap.Int(key, val)}
	}

	Int64 = func(key string, val int64) Field {
		return field{key, val, zap.Int64(key, val)}
	}

	Bool = func(key string, val bool) Field {
		return field{key, val, zap.Bool(key, val)}
	}

	Duration = func(key string, val time.Duration) Field {
		return field{key, val, zap.Duration(key, val)}
	}

	Err = func(err error) Field {
		return field{"error", err, zap.Error(err)}
	}

	Any = func(key string, val any) Field {
		return field{key, val, zap.Any(key, val)}
	}
)

// Domain-specific field constructors, named the way the request/response
// pipeline talks about them.
var (
	Method     = func(m string) Field { return String("method", m) }
	Path       = func(p string) Field { return String("path", p) }
	Status     = func(code int) Field { return Int("status", code) }
	BytesField = func(n int) Field { return Int("bytes", n) }
	RequestID  = func(id string) Field { return String("request_id", id) }
	LatencyMs  = func(d time.Duration) Field {
		return field{"latency_ms", float64(d.Microseconds()) / 1000.0, zap.Float64("latency_ms", float64(d.Microseconds())/1000.0)}
	}
)

// fieldsToZap converts Field interfaces to zap.Field for a single call.
func fieldsToZap(fields []Field) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			continue
		}
		zf = append(zf, f.ZapField())
	}
	return zf
}
