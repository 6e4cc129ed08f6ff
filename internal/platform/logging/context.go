package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the request-scoped logger, falling back to zap's global.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.L()
}

func LogInfo(ctx context.Context, msg string, fields ...zap.Field) {
	logAt(ctx, zapcore.InfoLevel, msg, nil, fields)
}

func LogWarn(ctx context.Context, msg string, fields ...zap.Field) {
	logAt(ctx, zapcore.WarnLevel, msg, nil, fields)
}

func LogError(ctx context.Context, msg string, err error, fields ...zap.Field) {
	logAt(ctx, zapcore.ErrorLevel, msg, err, fields)
}

// LogFatal logs and then exits the process.
func LogFatal(ctx context.Context, msg string, err error, fields ...zap.Field) {
	logAt(ctx, zapcore.FatalLevel, msg, err, fields)
}

// logAt skips its own frame and the exported wrapper so the caller field
// points at application code.
func logAt(ctx context.Context, lvl zapcore.Level, msg string, err error, fields []zap.Field) {
	ce := FromContext(ctx).WithOptions(zap.AddCallerSkip(2)).Check(lvl, msg)
	if ce == nil {
		return
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}
