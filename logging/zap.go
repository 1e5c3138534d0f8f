package logging

import (
	"context"
	"maps"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to the Logger interface. It is used when
// batch logs are shipped as JSON.
type ZapLogger struct {
	base   *zap.Logger
	level  zap.AtomicLevel
	fields Fields
}

// NewZapLogger builds a production JSON logger at the given level.
func NewZapLogger(level Level) (*ZapLogger, error) {
	atom := zap.NewAtomicLevelAt(toZapLevel(level))

	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{base: base, level: atom, fields: make(Fields)}, nil
}

// NewZapLoggerFrom wraps an existing zap logger. The level is tracked
// locally; the core's own level still applies.
func NewZapLoggerFrom(base *zap.Logger) *ZapLogger {
	return &ZapLogger{base: base, level: zap.NewAtomicLevelAt(zapcore.DebugLevel), fields: make(Fields)}
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (z *ZapLogger) zapFields(fields []Fields) []zap.Field {
	all := make(Fields, len(z.fields))
	maps.Copy(all, z.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}

	out := make([]zap.Field, 0, len(all))
	for k, v := range all {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	if z.level.Enabled(zapcore.DebugLevel) {
		z.base.Debug(msg, z.zapFields(fields)...)
	}
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	if z.level.Enabled(zapcore.InfoLevel) {
		z.base.Info(msg, z.zapFields(fields)...)
	}
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	if z.level.Enabled(zapcore.WarnLevel) {
		z.base.Warn(msg, z.zapFields(fields)...)
	}
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	if z.level.Enabled(zapcore.ErrorLevel) {
		z.base.Error(msg, append(z.zapFields(fields), zap.Error(err))...)
	}
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	z.base.Fatal(msg, append(z.zapFields(fields), zap.Error(err))...)
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(z.fields)+len(fields))
	maps.Copy(newFields, z.fields)
	maps.Copy(newFields, fields)
	return &ZapLogger{base: z.base, level: z.level, fields: newFields}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return z.WithFields(fields)
	}
	return z
}

func (z *ZapLogger) SetLevel(level Level) {
	z.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error {
	return z.base.Sync()
}
