package topicscope

// Logger receives operator diagnostics: unmatched topics, persistence
// retries, transport errors. Notices meant for the person watching a topic
// go to session logs, not here.
//
// The cmd/topicscope binary plugs in a logrus-backed implementation:
//
//	type LogrusLogger struct {
//	    entry *logrus.Entry
//	}
//
//	func (l *LogrusLogger) Infof(format string, args ...interface{}) {
//	    l.entry.Infof(format, args...)
//	}
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Info logs message as is, without formatting.
	Info(message string)
}

// NoopLogger discards everything. TopicManager and TopicRouter start with
// one until WithTopicManagerLogger / WithRouterLogger replace it.
type NoopLogger struct{}

func (*NoopLogger) Debugf(string, ...interface{}) {}
func (*NoopLogger) Infof(string, ...interface{})  {}
func (*NoopLogger) Warnf(string, ...interface{})  {}
func (*NoopLogger) Errorf(string, ...interface{}) {}
func (*NoopLogger) Info(string)                   {}

// LoggerOrNoop returns l, or a NoopLogger when l is nil. Transports use it
// so a zero-value Transport is usable.
func LoggerOrNoop(l Logger) Logger {
	if l == nil {
		return &NoopLogger{}
	}
	return l
}
