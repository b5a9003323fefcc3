package topicscope

import (
	"fmt"

	"github.com/coregx/topicscope/model"
)

// RouteListener is called once per inbound message that reached at least one
// session, with the entry and every matched session.
type RouteListener func(entry model.LogEntry, sessions []*model.TopicSession)

// LogListener is called after a sent or system entry has been stored, with
// the sessions that kept it (possibly none).
type LogListener func(entry model.LogEntry, sessions []*model.TopicSession)

// TopicRouter delivers log entries to topic sessions.
//
// Inbound messages fan out to every session whose filter matches the message
// topic; outbound sends are attributed to one session; system notices go to
// one session or to all of them.
//
// Thread safety: not safe for concurrent use. Client serializes access.
type TopicRouter struct {
	manager    *TopicManager
	logger     Logger
	onRouted   RouteListener
	onAppended LogListener
}

// TopicRouterOption configures a TopicRouter.
type TopicRouterOption func(*TopicRouter) error

// NewTopicRouter creates a new TopicRouter with the provided options.
//
// Required options:
//   - WithRouterManager: the topic manager owning the sessions
//
// Optional options:
//   - WithRouterLogger: logger instance (default: NoopLogger)
//   - WithRouteListener, WithLogListener: delivery observers
//
// Example:
//
//	router, err := topicscope.NewTopicRouter(
//	    topicscope.WithRouterManager(manager),
//	    topicscope.WithRouterLogger(logger),
//	)
func NewTopicRouter(opts ...TopicRouterOption) (*TopicRouter, error) {
	r := &TopicRouter{
		logger: &NoopLogger{},
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply router option", err)
		}
	}

	if r.manager == nil {
		return nil, NewError(ErrCodeConfiguration, "TopicManager is required (use WithRouterManager)")
	}

	return r, nil
}

// WithRouterManager sets the required topic manager.
func WithRouterManager(manager *TopicManager) TopicRouterOption {
	return func(r *TopicRouter) error {
		if manager == nil {
			return fmt.Errorf("manager cannot be nil")
		}
		r.manager = manager
		return nil
	}
}

// WithRouterLogger sets the logger instance.
func WithRouterLogger(logger Logger) TopicRouterOption {
	return func(r *TopicRouter) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithRouteListener sets the observer of routed inbound messages.
func WithRouteListener(listener RouteListener) TopicRouterOption {
	return func(r *TopicRouter) error {
		r.onRouted = listener
		return nil
	}
}

// WithLogListener sets the observer of sent and system entries.
func WithLogListener(listener LogListener) TopicRouterOption {
	return func(r *TopicRouter) error {
		r.onAppended = listener
		return nil
	}
}

// RouteMessage delivers an inbound message to every session whose filter
// matches messageTopic and returns the matched sessions in display order.
//
// Each matched session stores a received entry (dropped while the session is
// paused) and, when it is not the active session and not paused, counts one
// unread message. With no match the message is dropped and a diagnostic is
// logged; nothing is buffered for later.
func (r *TopicRouter) RouteMessage(messageTopic, payload string, meta model.Attributes) []*model.TopicSession {
	matched := r.manager.FindMatchingSessions(messageTopic)
	if len(matched) == 0 {
		r.logger.Warnf("No session matches topic: %s", messageTopic)
		return nil
	}

	entry := model.NewLogEntry(model.LogKindReceived, payload)
	entry.Topic = messageTopic
	entry.Attributes = meta

	r.deliver(entry, matched)
	return matched
}

// RouteToActive delivers a topic-less inbound message (a stream frame) to the
// active session, with the same unread and pause semantics as RouteMessage.
// It returns nil when no session is active.
func (r *TopicRouter) RouteToActive(payload string, meta model.Attributes) *model.TopicSession {
	active := r.manager.ActiveSession()
	if active == nil {
		r.logger.Warnf("No active session for stream message (%d bytes)", len(payload))
		return nil
	}

	entry := model.NewLogEntry(model.LogKindReceived, payload)
	entry.Attributes = meta

	r.deliver(entry, []*model.TopicSession{active})
	return active
}

func (r *TopicRouter) deliver(entry model.LogEntry, sessions []*model.TopicSession) {
	for _, s := range sessions {
		if !s.AddLog(entry) {
			continue
		}
		if !r.manager.IsActive(s.ID) {
			s.IncrementUnread()
		}
	}

	if r.onRouted != nil {
		r.onRouted(entry, sessions)
	}
}

// AddSentMessage records an outbound send.
//
// The entry goes to the session whose topic equals topic exactly; without
// one it falls back to the active session. Sends with a topic are logged as
// "[→ topic]" followed by the payload on the next line. It returns the
// session that stored the entry, or nil.
func (r *TopicRouter) AddSentMessage(topic, message string) *model.TopicSession {
	text := message
	if topic != "" {
		text = fmt.Sprintf("[→ %s]\n%s", topic, message)
	}
	entry := model.NewLogEntry(model.LogKindSent, text)
	entry.Topic = topic

	target := r.manager.FindByTopic(topic)
	if topic == "" || target == nil {
		target = r.manager.ActiveSession()
	}

	return r.appendOne(entry, target)
}

// AddSystemMessage records a client notice on the session with sessionID,
// or on the active session when sessionID is empty. It returns the session
// that stored the entry, or nil.
func (r *TopicRouter) AddSystemMessage(message, sessionID string) *model.TopicSession {
	entry := model.NewLogEntry(model.LogKindSystem, message)

	var target *model.TopicSession
	if sessionID != "" {
		target = r.manager.Session(sessionID)
	} else {
		target = r.manager.ActiveSession()
	}

	return r.appendOne(entry, target)
}

// BroadcastSystemMessage records a connection-wide notice on every session
// and returns how many sessions kept it.
func (r *TopicRouter) BroadcastSystemMessage(message string) int {
	entry := model.NewLogEntry(model.LogKindSystem, message)

	kept := make([]*model.TopicSession, 0, r.manager.Len())
	for _, s := range r.manager.AllSessions() {
		if s.AddLog(entry) {
			kept = append(kept, s)
		}
	}

	r.appended(entry, kept)
	return len(kept)
}

func (r *TopicRouter) appendOne(entry model.LogEntry, target *model.TopicSession) *model.TopicSession {
	var kept []*model.TopicSession
	if target != nil && target.AddLog(entry) {
		kept = append(kept, target)
	}
	r.appended(entry, kept)
	if len(kept) == 0 {
		return nil
	}
	return target
}

func (r *TopicRouter) appended(entry model.LogEntry, sessions []*model.TopicSession) {
	if r.onAppended != nil {
		r.onAppended(entry, sessions)
	}
}
