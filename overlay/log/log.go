// Package log defines the logging surface used across the overlay
// engine and a default implementation backed by logrus.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface every overlay component depends on.
// Components never depend on logrus directly, only on this interface,
// so an embedder can plug in any backend.
type Logger interface {
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	// WithField returns a derived Logger that attaches key to every
	// subsequent message, e.g. log.WithField("peer", remoteId).
	WithField(key string, value interface{}) Logger

	// ToggleDebug flips debug-level logging and returns the new state.
	ToggleDebug(enabled bool) bool
}

// logrusLogger is the default Logger, backed by a *logrus.Logger.
type logrusLogger struct {
	entry *logrus.Entry
	base  *logrus.Logger
}

// NewDefaultLogger builds the default Logger, writing leveled,
// timestamped lines to stderr.
func NewDefaultLogger() Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.InfoLevel)
	return &logrusLogger{entry: logrus.NewEntry(base), base: base}
}

func (l *logrusLogger) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(args ...interface{})                  { l.entry.Warn(args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *logrusLogger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value), base: l.base}
}

func (l *logrusLogger) ToggleDebug(enabled bool) bool {
	if enabled {
		l.base.SetLevel(logrus.DebugLevel)
	} else {
		l.base.SetLevel(logrus.InfoLevel)
	}
	return enabled
}
