// Package logging adapts logrus to topicscope.Logger.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Logger implements topicscope.Logger over a logrus entry.
type Logger struct {
	entry *logrus.Entry
}

// New creates a text logger writing to out at level (debug, info, warn or
// error).
func New(out io.Writer, level string) (*Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(lvl)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	return &Logger{entry: logrus.NewEntry(base)}, nil
}

// WithField returns a logger that adds key=value to every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// SetOutput redirects the underlying logger.
func (l *Logger) SetOutput(out io.Writer) {
	l.entry.Logger.SetOutput(out)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *Logger) Info(message string) {
	l.entry.Info(message)
}
