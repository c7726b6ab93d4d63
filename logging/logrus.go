package logging

import (
	"maps"

	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus logger to the Logger interface. The CLI
// installs it as the global logger so library warnings and command
// output share one sink.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger creates a Logger backed by the given logrus logger
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) withMerged(fields []Fields) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	merged := make(logrus.Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return l.entry.WithFields(merged)
}

func (l *LogrusLogger) Debug(msg string, fields ...Fields) {
	l.withMerged(fields).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, fields ...Fields) {
	l.withMerged(fields).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, fields ...Fields) {
	l.withMerged(fields).Warn(msg)
}

func (l *LogrusLogger) Error(err error, msg string, fields ...Fields) {
	l.withMerged(fields).WithError(err).Error(msg)
}

func (l *LogrusLogger) Fatal(err error, msg string, fields ...Fields) {
	l.withMerged(fields).WithError(err).Fatal(msg)
}

func (l *LogrusLogger) WithFields(fields Fields) Logger {
	merged := make(logrus.Fields)
	maps.Copy(merged, l.entry.Data)
	for k, v := range fields {
		merged[k] = v
	}
	return &LogrusLogger{entry: l.entry.Logger.WithFields(merged)}
}

func (l *LogrusLogger) SetLevel(level Level) {
	switch level {
	case DebugLevel:
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	case InfoLevel:
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	case WarnLevel:
		l.entry.Logger.SetLevel(logrus.WarnLevel)
	case ErrorLevel:
		l.entry.Logger.SetLevel(logrus.ErrorLevel)
	case FatalLevel:
		l.entry.Logger.SetLevel(logrus.FatalLevel)
	}
}
