package definition

import (
	"github.com/sirupsen/logrus"
)

// Logger backed by logrus, for hosts that already ship it.
// Implements the types.Logger interface.
type LogrusLogger struct {
	entry *logrus.Entry
}

// Creates a logger on top of a fresh logrus instance, tagged
// with the given replica name.
func NewLogrusLogger(name string) *LogrusLogger {
	logger := logrus.New()
	return &LogrusLogger{
		entry: logger.WithField("replica", name),
	}
}

// Wraps an existing logrus entry, so the host can share its
// own logger with the protocol.
func WrapLogrus(entry *logrus.Entry) *LogrusLogger {
	return &LogrusLogger{entry: entry}
}

func (l *LogrusLogger) Info(v ...interface{}) {
	l.entry.Info(v...)
}

func (l *LogrusLogger) Infof(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

func (l *LogrusLogger) Warn(v ...interface{}) {
	l.entry.Warn(v...)
}

func (l *LogrusLogger) Warnf(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

func (l *LogrusLogger) Error(v ...interface{}) {
	l.entry.Error(v...)
}

func (l *LogrusLogger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

func (l *LogrusLogger) Debug(v ...interface{}) {
	l.entry.Debug(v...)
}

func (l *LogrusLogger) Debugf(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

func (l *LogrusLogger) ToggleDebug(value bool) bool {
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return value
}

func (l *LogrusLogger) Fatal(v ...interface{}) {
	l.entry.Fatal(v...)
}

func (l *LogrusLogger) Fatalf(format string, v ...interface{}) {
	l.entry.Fatalf(format, v...)
}
