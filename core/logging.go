package core

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  = newBaseLogger()
)

// callerOptions point the caller field past the Infof/Errorf/... wrappers.
var callerOptions = []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}

func newBaseLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build(callerOptions...)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// SetLevel changes the level of every logger handed out by this package.
// Unknown names leave the current level untouched.
func SetLevel(name string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return
	}
	level.SetLevel(l)
}

// WithDefaultLogger returns a context carrying a logger tagged with reqId.
func WithDefaultLogger(parent context.Context, reqId string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	logger := base.Sugar().With("req", reqId)
	return context.WithValue(parent, loggerKey{}, logger)
}

// Logger returns the context logger, falling back to the untagged base logger.
func Logger(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
			return l
		}
	}
	return base.Sugar()
}

func Infof(ctx context.Context, tpl string, args ...any) {
	Logger(ctx).Infof(tpl, args...)
}

func Errorf(ctx context.Context, tpl string, args ...any) {
	Logger(ctx).Errorf(tpl, args...)
}

func Debugf(ctx context.Context, tpl string, args ...any) {
	Logger(ctx).Debugf(tpl, args...)
}

func Warnf(ctx context.Context, tpl string, args ...any) {
	Logger(ctx).Warnf(tpl, args...)
}
