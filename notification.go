package topicscope

import (
	"context"
	"strings"

	"github.com/coregx/topicscope/model"
)

// NotificationService is the observer interface of a Client. Views (a tab
// bar, a console, an HTTP event feed) implement it to re-render.
//
// Every call is made synchronously, under the client's lock, after the
// mutation it reports has completed. Implementations receive snapshots and
// must not call back into the Client. A returned error is logged and
// otherwise ignored.
type NotificationService interface {
	// NotifyStateChanged is called once after every topic-manager mutation
	// (create, delete, switch, subscription flag, import, clear, ...).
	// Batched operations such as an import fire it once.
	NotifyStateChanged(ctx context.Context, state model.ManagerState) error

	// NotifyStatusChanged is called on every connection status transition.
	NotifyStatusChanged(ctx context.Context, status model.ConnectionStatus) error

	// NotifyMessageRouted is called once per inbound message that reached at
	// least one session, with the sessions it touched.
	NotifyMessageRouted(ctx context.Context, entry model.LogEntry, sessions []model.SessionInfo) error

	// NotifyLogAppended is called for sent and system entries. sessionIDs
	// lists the sessions that stored the entry and may be empty when no
	// session exists.
	NotifyLogAppended(ctx context.Context, entry model.LogEntry, sessionIDs []string) error
}

// NoOpNotificationService is a no-op implementation of NotificationService.
// Use this when no view is attached.
type NoOpNotificationService struct{}

// NotifyStateChanged does nothing.
func (n *NoOpNotificationService) NotifyStateChanged(_ context.Context, _ model.ManagerState) error {
	return nil
}

// NotifyStatusChanged does nothing.
func (n *NoOpNotificationService) NotifyStatusChanged(_ context.Context, _ model.ConnectionStatus) error {
	return nil
}

// NotifyMessageRouted does nothing.
func (n *NoOpNotificationService) NotifyMessageRouted(_ context.Context, _ model.LogEntry, _ []model.SessionInfo) error {
	return nil
}

// NotifyLogAppended does nothing.
func (n *NoOpNotificationService) NotifyLogAppended(_ context.Context, _ model.LogEntry, _ []string) error {
	return nil
}

// LoggingNotificationService is a simple implementation that logs notifications.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifyStateChanged logs the session count and the active session.
func (n *LoggingNotificationService) NotifyStateChanged(_ context.Context, state model.ManagerState) error {
	n.logger.Debugf("Topics changed: sessions=%d, active=%s", len(state.Sessions), state.ActiveTopicID)
	return nil
}

// NotifyStatusChanged logs the new connection status.
func (n *LoggingNotificationService) NotifyStatusChanged(_ context.Context, status model.ConnectionStatus) error {
	n.logger.Infof("Connection status: %s", status)
	return nil
}

// NotifyMessageRouted logs the message topic and the receiving sessions.
func (n *LoggingNotificationService) NotifyMessageRouted(_ context.Context, entry model.LogEntry, sessions []model.SessionInfo) error {
	topics := make([]string, 0, len(sessions))
	for _, s := range sessions {
		topics = append(topics, s.Topic)
	}
	n.logger.Debugf("Message routed: topic=%s, sessions=[%s], bytes=%d",
		entry.Topic, strings.Join(topics, ", "), len(entry.Message))
	return nil
}

// NotifyLogAppended logs system entries at info level and sent entries at debug level.
func (n *LoggingNotificationService) NotifyLogAppended(_ context.Context, entry model.LogEntry, sessionIDs []string) error {
	if entry.Kind == model.LogKindSystem {
		n.logger.Infof("%s", entry.Message)
		return nil
	}
	n.logger.Debugf("Log appended: kind=%s, sessions=%d", entry.Kind, len(sessionIDs))
	return nil
}
