package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	currentLevel LogLevel = LogLevelInfo
	sugar        *zap.SugaredLogger
)

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	sugar = logger.Sugar()
}

// SetLevel changes the minimum level emitted by the package-level helpers.
func SetLevel(level LogLevel) {
	currentLevel = level
}

// Level reports the current minimum level.
func Level() LogLevel {
	return currentLevel
}

// SetLogger replaces the backing zap logger, e.g. zap.NewNop() in tests.
func SetLogger(l *zap.Logger) {
	sugar = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = sugar.Sync()
}

func Debug(format string, v ...interface{}) {
	if currentLevel <= LogLevelDebug {
		sugar.Debugf(format, v...)
	}
}

func Info(format string, v ...interface{}) {
	if currentLevel <= LogLevelInfo {
		sugar.Infof(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	if currentLevel <= LogLevelWarn {
		sugar.Warnf(format, v...)
	}
}

func Error(format string, v ...interface{}) {
	if currentLevel <= LogLevelError {
		sugar.Errorf(format, v...)
	}
}

func Fatal(format string, v ...interface{}) {
	sugar.Fatalf(format, v...)
}
