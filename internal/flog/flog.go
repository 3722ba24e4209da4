// Package flog implements pkg/filestack.Logger on top of zap, the way
// the teacher's logging package wraps zap behind its own Verbosef/
// Infof/Errorf package variables (see logging/logging.go). Unlike the
// teacher's global package-level functions, flog.Logger is an ordinary
// value so a naming node and a storage node running in the same process
// (as the test suites do) can hold independently configured loggers.
package flog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a *zap.SugaredLogger to satisfy pkg/filestack.Logger.
type Logger struct {
	sugar *zap.SugaredLogger
	sync  func() error
}

// Options configures New.
type Options struct {
	// Verbose enables Debugf output; when false, Debugf is a no-op.
	Verbose bool
	// LogFile, when non-empty, routes output through a rotating
	// lumberjack.Logger instead of stderr, grounded on the teacher's
	// main_windows.go lumberjack construction for its own rotated log
	// file.
	LogFile   string
	MaxSizeMB int
	MaxBackups int
	MaxAgeDays int
}

// New builds a Logger per opts. The returned close function flushes and
// releases the underlying zap core; callers should defer it.
func New(opts Options) (*Logger, func(), error) {
	var sink zapcore.WriteSyncer
	if opts.LogFile != "" {
		maxSize := opts.MaxSizeMB
		if maxSize == 0 {
			maxSize = 100
		}
		maxBackups := opts.MaxBackups
		if maxBackups == 0 {
			maxBackups = 3
		}
		maxAge := opts.MaxAgeDays
		if maxAge == 0 {
			maxAge = 28
		}
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   true,
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, sink, level)
	zl := zap.New(core, zap.AddCaller())

	l := &Logger{sugar: zl.Sugar(), sync: zl.Sync}
	return l, func() { _ = l.sync() }, nil
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}
