package topicscope

import (
	"fmt"

	"github.com/coregx/topicscope/model"
	"github.com/coregx/topicscope/topicfilter"
)

// StateListener receives a full snapshot after every TopicManager mutation.
type StateListener func(state model.ManagerState)

// TopicManager owns the topic sessions: their lifetime, display order, the
// single active selection and palette color assignment.
//
// Key operations:
//   - CreateSession: idempotent by exact topic string
//   - DeleteSession: promotes the following session when the active one goes
//   - SwitchToSession: selects a session and resets its unread counter
//   - FindMatchingSessions: wildcard lookup used by the router
//   - ExportConfig / ImportConfig: persisted shape round trip
//
// Every mutation calls the StateListener exactly once, after the change.
//
// Thread safety: not safe for concurrent use. Client serializes access.
type TopicManager struct {
	sessions    map[string]*model.TopicSession
	order       []string
	activeID    string
	colorCursor int
	listener    StateListener
	logger      Logger
}

// TopicManagerOption is a function that configures a TopicManager.
type TopicManagerOption func(*TopicManager) error

// NewTopicManager creates an empty TopicManager.
//
// Optional options:
//   - WithTopicManagerLogger: logger instance (default: NoopLogger)
//   - WithStateListener: mutation observer
//
// Example:
//
//	manager, err := topicscope.NewTopicManager(
//	    topicscope.WithTopicManagerLogger(logger),
//	    topicscope.WithStateListener(func(s model.ManagerState) { render(s) }),
//	)
func NewTopicManager(opts ...TopicManagerOption) (*TopicManager, error) {
	m := &TopicManager{
		sessions: make(map[string]*model.TopicSession),
		order:    []string{},
		logger:   &NoopLogger{},
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply topic manager option", err)
		}
	}

	return m, nil
}

// WithTopicManagerLogger sets the logger instance for the topic manager.
func WithTopicManagerLogger(logger Logger) TopicManagerOption {
	return func(m *TopicManager) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		m.logger = logger
		return nil
	}
}

// WithStateListener sets the observer called after every mutation.
func WithStateListener(listener StateListener) TopicManagerOption {
	return func(m *TopicManager) error {
		if listener == nil {
			return fmt.Errorf("state listener cannot be nil")
		}
		m.listener = listener
		return nil
	}
}

// SessionOptions carries optional settings for CreateSession.
// Zero values select the defaults.
type SessionOptions struct {
	DisplayName string // Defaults to the topic
	QoS         byte
	MaxLogs     int // Defaults to model.DefaultMaxLogs
}

// CreateSession creates a session for topic.
//
// If a session with exactly the same topic string exists it is returned
// unchanged (no wildcard comparison). Otherwise the new session gets the
// next palette color, is appended to the display order and becomes active
// when it is the only session.
//
// Validation:
//   - topic must be a valid filter (see topicfilter.Validate)
//   - QoS must be 0, 1 or 2
func (m *TopicManager) CreateSession(topic string, opts SessionOptions) (*model.TopicSession, error) {
	if err := topicfilter.Validate(topic); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, fmt.Sprintf("invalid topic %q", topic), err)
	}
	if opts.QoS > model.MaxQoS {
		return nil, NewError(ErrCodeValidation, fmt.Sprintf("qos must be 0..%d, got %d", model.MaxQoS, opts.QoS))
	}

	if existing := m.FindByTopic(topic); existing != nil {
		m.logger.Warnf("Topic already exists: topic=%s, id=%s", topic, existing.ID)
		return existing, nil
	}

	color := model.ColorAt(m.colorCursor)
	m.colorCursor++

	session := model.NewTopicSession(topic)
	session.Color = color.Value
	session.ColorBg = color.Bg
	session.QoS = opts.QoS
	if opts.DisplayName != "" {
		session.DisplayName = opts.DisplayName
	}
	if opts.MaxLogs > 0 {
		session.MaxLogs = opts.MaxLogs
	}

	m.sessions[session.ID] = session
	m.order = append(m.order, session.ID)
	if len(m.sessions) == 1 {
		m.activeID = session.ID
	}

	m.logger.Debugf("Session created: id=%s, topic=%s, color=%s", session.ID, topic, color.Name)
	m.notify()
	return session, nil
}

// DeleteSession removes a session. It returns false for an unknown id.
//
// When the deleted session was active, the session that followed it in the
// display order becomes active, so the selection stays at the same position
// instead of jumping to the first session. If it was the last one, the new
// last session becomes active. With no sessions left nothing is active.
func (m *TopicManager) DeleteSession(id string) bool {
	if _, ok := m.sessions[id]; !ok {
		return false
	}

	idx := m.indexOf(id)
	delete(m.sessions, id)
	m.order = append(m.order[:idx:idx], m.order[idx+1:]...)

	if m.activeID == id {
		switch {
		case len(m.order) == 0:
			m.activeID = ""
		case idx < len(m.order):
			m.activeID = m.order[idx]
		default:
			m.activeID = m.order[len(m.order)-1]
		}
	}

	m.notify()
	return true
}

// SwitchToSession makes a session active and resets its unread counter.
// It returns false and does nothing for an unknown id.
func (m *TopicManager) SwitchToSession(id string) bool {
	session, ok := m.sessions[id]
	if !ok {
		return false
	}

	m.activeID = id
	session.ResetUnread()
	m.notify()
	return true
}

// Session returns the session with id, or nil.
func (m *TopicManager) Session(id string) *model.TopicSession {
	return m.sessions[id]
}

// ActiveSession returns the active session, or nil.
func (m *TopicManager) ActiveSession() *model.TopicSession {
	if m.activeID == "" {
		return nil
	}
	return m.sessions[m.activeID]
}

// ActiveID returns the active session id, or an empty string.
func (m *TopicManager) ActiveID() string {
	return m.activeID
}

// IsActive reports whether id is the active session.
func (m *TopicManager) IsActive(id string) bool {
	return id != "" && m.activeID == id
}

// AllSessions returns every session in display order.
func (m *TopicManager) AllSessions() []*model.TopicSession {
	all := make([]*model.TopicSession, 0, len(m.order))
	for _, id := range m.order {
		if s, ok := m.sessions[id]; ok {
			all = append(all, s)
		}
	}
	return all
}

// Len returns the number of sessions.
func (m *TopicManager) Len() int {
	return len(m.sessions)
}

// FindByTopic returns the session whose topic equals topic exactly, or nil.
func (m *TopicManager) FindByTopic(topic string) *model.TopicSession {
	for _, id := range m.order {
		if s := m.sessions[id]; s != nil && s.Topic == topic {
			return s
		}
	}
	return nil
}

// FindMatchingSessions returns every session whose filter matches
// messageTopic, in display order.
func (m *TopicManager) FindMatchingSessions(messageTopic string) []*model.TopicSession {
	var matches []*model.TopicSession
	for _, id := range m.order {
		if s := m.sessions[id]; s != nil && topicfilter.Match(s.Topic, messageTopic) {
			matches = append(matches, s)
		}
	}
	return matches
}

// SetSubscribed records a subscribe or unsubscribe acknowledgement.
// It does not talk to any transport.
func (m *TopicManager) SetSubscribed(id string, subscribed bool) bool {
	return m.update(id, func(s *model.TopicSession) { s.IsSubscribed = subscribed })
}

// SetPaused pauses or resumes a session. A paused session drops incoming entries.
func (m *TopicManager) SetPaused(id string, paused bool) bool {
	return m.update(id, func(s *model.TopicSession) { s.IsPaused = paused })
}

// SetMuted mutes or unmutes a session.
func (m *TopicManager) SetMuted(id string, muted bool) bool {
	return m.update(id, func(s *model.TopicSession) { s.IsMuted = muted })
}

// SetFilter sets the read-side substring filter of a session.
func (m *TopicManager) SetFilter(id, filter string) bool {
	return m.update(id, func(s *model.TopicSession) { s.Filter = filter })
}

// ClearLogs empties a session's log buffer and unread counter.
func (m *TopicManager) ClearLogs(id string) bool {
	return m.update(id, func(s *model.TopicSession) { s.ClearLogs() })
}

// MarkAllUnsubscribed clears every subscription flag with one notification.
// Used when the connection goes away.
func (m *TopicManager) MarkAllUnsubscribed() {
	changed := false
	for _, s := range m.sessions {
		if s.IsSubscribed {
			s.IsSubscribed = false
			changed = true
		}
	}
	if changed {
		m.notify()
	}
}

// MoveSession moves a session to position index in the display order.
// Out-of-range indexes are clamped.
func (m *TopicManager) MoveSession(id string, index int) bool {
	from := m.indexOf(id)
	if from < 0 {
		return false
	}
	if index < 0 {
		index = 0
	}
	if index > len(m.order)-1 {
		index = len(m.order) - 1
	}
	if index == from {
		return true
	}

	order := append(m.order[:from:from], m.order[from+1:]...)
	order = append(order[:index], append([]string{id}, order[index:]...)...)
	m.order = order

	m.notify()
	return true
}

// ExportConfig returns the persisted shape of every session, the active id
// and the display order.
func (m *TopicManager) ExportConfig() model.TopicsConfig {
	sessions := m.AllSessions()
	cfg := model.TopicsConfig{
		Sessions:      make([]model.SessionConfig, 0, len(sessions)),
		ActiveTopicID: m.activeID,
		TopicOrder:    append([]string{}, m.order...),
	}
	for i, s := range sessions {
		sc := s.ToConfig()
		sc.Position = i
		cfg.Sessions = append(cfg.Sessions, sc)
	}
	return cfg
}

// ImportConfig replaces the whole state with cfg and fires one notification.
//
// The import is sanitized: configs with duplicate ids or topics are skipped,
// order entries that reference unknown ids are dropped, sessions missing
// from the order are appended, and an active id that is not a member falls
// back to the first session. The color cursor continues after the restored
// sessions.
func (m *TopicManager) ImportConfig(cfg model.TopicsConfig) {
	m.sessions = make(map[string]*model.TopicSession, len(cfg.Sessions))
	listed := make([]string, 0, len(cfg.Sessions))
	topics := make(map[string]bool, len(cfg.Sessions))

	for _, sc := range cfg.Sessions {
		if sc.Topic == "" || topics[sc.Topic] {
			m.logger.Warnf("Skipping imported topic: id=%s, topic=%q", sc.ID, sc.Topic)
			continue
		}
		session := model.NewTopicSessionFromConfig(sc)
		if _, dup := m.sessions[session.ID]; dup {
			m.logger.Warnf("Skipping imported topic with duplicate id: id=%s", session.ID)
			continue
		}
		m.sessions[session.ID] = session
		topics[session.Topic] = true
		listed = append(listed, session.ID)
	}

	seen := make(map[string]bool, len(m.sessions))
	m.order = make([]string, 0, len(m.sessions))
	for _, id := range cfg.TopicOrder {
		if _, ok := m.sessions[id]; ok && !seen[id] {
			m.order = append(m.order, id)
			seen[id] = true
		}
	}
	for _, id := range listed {
		if !seen[id] {
			m.order = append(m.order, id)
			seen[id] = true
		}
	}

	m.activeID = ""
	if _, ok := m.sessions[cfg.ActiveTopicID]; ok {
		m.activeID = cfg.ActiveTopicID
	} else if len(m.order) > 0 {
		m.activeID = m.order[0]
	}

	m.colorCursor = len(m.sessions)
	m.notify()
}

// Clear removes every session and resets the color cursor to the first
// palette entry.
func (m *TopicManager) Clear() {
	m.sessions = make(map[string]*model.TopicSession)
	m.order = []string{}
	m.activeID = ""
	m.colorCursor = 0
	m.notify()
}

// State returns a log-free snapshot of every session in display order.
func (m *TopicManager) State() model.ManagerState {
	sessions := m.AllSessions()
	state := model.ManagerState{
		Sessions:      make([]model.SessionInfo, 0, len(sessions)),
		ActiveTopicID: m.activeID,
	}
	for _, s := range sessions {
		state.Sessions = append(state.Sessions, s.Info())
	}
	return state
}

func (m *TopicManager) update(id string, fn func(s *model.TopicSession)) bool {
	session, ok := m.sessions[id]
	if !ok {
		return false
	}
	fn(session)
	m.notify()
	return true
}

func (m *TopicManager) indexOf(id string) int {
	for i, v := range m.order {
		if v == id {
			return i
		}
	}
	return -1
}

func (m *TopicManager) notify() {
	if m.listener != nil {
		m.listener(m.State())
	}
}
