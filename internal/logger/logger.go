// Package logger wraps zap's sugared logger behind the surface the two
// services share. The Ctx variants append trace and consumer fields
// recovered from the context by pkg/logging.
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pulse/pkg/logging"
)

type Logger interface {
	Info(args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatalf(template string, args ...interface{})
	Sync() error

	DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
}

type sugaredLogger struct {
	*zap.SugaredLogger
}

// New builds a production JSON logger at the given level. Unknown level
// strings fall back to info.
func New(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.TimeKey = "timestamp"

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &sugaredLogger{SugaredLogger: zapLogger.Sugar()}, nil
}

// NopLogger discards everything. Used in tests.
func NopLogger() Logger {
	return &sugaredLogger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *sugaredLogger) DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, append(logging.GetLogFields(ctx), keysAndValues...)...)
}

func (l *sugaredLogger) InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Infow(msg, append(logging.GetLogFields(ctx), keysAndValues...)...)
}

func (l *sugaredLogger) WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Warnw(msg, append(logging.GetLogFields(ctx), keysAndValues...)...)
}

func (l *sugaredLogger) ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, append(logging.GetLogFields(ctx), keysAndValues...)...)
}
