package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.SugaredLogger
	loggerOnce sync.Once
)

// Init configures the global logger. In debug mode it uses zap's
// development encoder (console, human-readable); otherwise JSON
// production output. Calling Init more than once has no effect.
func Init(debug bool) {
	loggerOnce.Do(func() {
		var base *zap.Logger
		var err error
		if debug {
			cfg := zap.NewDevelopmentConfig()
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			base, err = cfg.Build()
		} else {
			base, err = zap.NewProduction()
		}
		if err != nil {
			// zap's stock configs only fail on invalid output paths;
			// fall back to a no-op logger rather than crash at startup.
			base = zap.NewNop()
		}
		logger = base.Sugar()
	})
}

func get() *zap.SugaredLogger {
	Init(false)
	return logger
}

func Debug(msg string, kv ...any) {
	get().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	get().Infow(msg, kv...)
}

// Error logs msg with the error prepended into the key-value list.
func Error(msg string, err error, kv ...any) {
	extended := append([]any{"err", err}, kv...)
	get().Errorw(msg, extended...)
}

// Sync flushes buffered log entries. Best-effort; safe to defer in main.
func Sync() {
	_ = get().Sync()
}
