package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance for the application
var Logger *zap.SugaredLogger

var level = zap.NewAtomicLevelAt(zap.InfoLevel)

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	Logger = logger.Sugar()
}

// SetLevel changes the level of the global logger. Unknown levels are ignored.
func SetLevel(name string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		Logger.Warnf("Unknown log level %q, keeping %s", name, level.Level())
		return
	}
	level.SetLevel(l)
}

// With returns a child logger carrying the given key/value pairs
func With(args ...interface{}) *zap.SugaredLogger { return Logger.With(args...) }

// Sync flushes buffered log entries
func Sync() { _ = Logger.Sync() }

// Top-level helpers for package alias usage
func Infof(format string, args ...interface{})  { Logger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Logger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }
func Fatalf(format string, args ...interface{}) { Logger.Fatalf(format, args...) }
