package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxLogs bounds a session's log buffer when no limit is given.
const DefaultMaxLogs = 1000

// TopicSession is the tracked state of one subscription filter: its identity,
// display metadata, a bounded log buffer and delivery statistics.
//
// Sessions are owned by a TopicManager. A session never knows whether it is
// the active one; the manager tracks that and resets UnreadCount on switch.
//
// TopicSession is not safe for concurrent use.
type TopicSession struct {
	ID          string     `json:"id"`          // Opaque unique identifier, never reused
	Topic       string     `json:"topic"`       // Subscription filter (may contain + and #)
	DisplayName string     `json:"displayName"` // User label, defaults to Topic
	QoS         byte       `json:"qos"`         // Delivery hint passed to the transport
	Color       string     `json:"color"`       // Palette foreground
	ColorBg     string     `json:"colorBg"`     // Palette background
	Logs        []LogEntry `json:"logs"`        // Oldest first, at most MaxLogs entries
	MaxLogs     int        `json:"maxLogs"`

	IsSubscribed bool `json:"isSubscribed"` // Broker acknowledged the subscription
	IsPaused     bool `json:"isPaused"`     // Incoming entries are dropped while set
	IsMuted      bool `json:"isMuted"`
	AutoScroll   bool `json:"autoScroll"`
	JSONFormat   bool `json:"jsonFormat"` // Renderers should use LogEntry.Pretty

	UnreadCount   int       `json:"unreadCount"`
	TotalReceived int       `json:"totalReceived"`
	LastMessage   time.Time `json:"lastMessage"`
	Created       time.Time `json:"created"`

	Filter string `json:"filter"` // Case-insensitive substring applied by FilteredLogs
}

// NewTopicSession creates a session for topic with default settings.
// DisplayName falls back to topic and the color to the first palette entry.
func NewTopicSession(topic string) *TopicSession {
	first := ColorAt(0)
	return &TopicSession{
		ID:          uuid.NewString(),
		Topic:       topic,
		DisplayName: topic,
		Color:       first.Value,
		ColorBg:     first.Bg,
		Logs:        []LogEntry{},
		MaxLogs:     DefaultMaxLogs,
		AutoScroll:  true,
		JSONFormat:  true,
		Created:     time.Now(),
	}
}

// NewTopicSessionFromConfig restores a session from its persisted shape.
// Missing fields get the same defaults as NewTopicSession; runtime state
// (logs, counters, subscription) starts empty.
func NewTopicSessionFromConfig(cfg SessionConfig) *TopicSession {
	s := NewTopicSession(cfg.Topic)
	if cfg.ID != "" {
		s.ID = cfg.ID
	}
	if cfg.DisplayName != "" {
		s.DisplayName = cfg.DisplayName
	}
	if cfg.Color != "" {
		s.Color = cfg.Color
	}
	if cfg.ColorBg != "" {
		s.ColorBg = cfg.ColorBg
	}
	if cfg.MaxLogs > 0 {
		s.MaxLogs = cfg.MaxLogs
	}
	if !cfg.Created.IsZero() {
		s.Created = cfg.Created
	}
	s.QoS = cfg.QoS
	s.AutoScroll = cfg.AutoScroll
	s.JSONFormat = cfg.JSONFormat
	s.IsPaused = cfg.IsPaused
	return s
}

// AddLog appends entry, evicting the oldest entries beyond MaxLogs.
//
// A paused session drops the entry without touching any counter. The entry
// receives a fresh ID and timestamp so one routed message stored by several
// sessions yields distinct entries. AddLog reports whether the entry was kept.
func (s *TopicSession) AddLog(entry LogEntry) bool {
	if s.IsPaused {
		return false
	}

	now := time.Now()
	entry.ID = uuid.NewString()
	entry.Timestamp = now
	if entry.Time == "" {
		entry.Time = now.Format(TimeLayout)
	}

	s.Logs = append(s.Logs, entry)
	if limit := s.limit(); len(s.Logs) > limit {
		s.Logs = s.Logs[len(s.Logs)-limit:]
	}

	s.TotalReceived++
	if now.After(s.LastMessage) {
		s.LastMessage = now
	}
	return true
}

func (s *TopicSession) limit() int {
	if s.MaxLogs < 1 {
		return DefaultMaxLogs
	}
	return s.MaxLogs
}

// ClearLogs drops every entry and resets the unread counter.
func (s *TopicSession) ClearLogs() {
	s.Logs = []LogEntry{}
	s.UnreadCount = 0
}

// IncrementUnread counts one routed message the user has not seen.
func (s *TopicSession) IncrementUnread() {
	s.UnreadCount++
}

// ResetUnread marks every message as seen.
func (s *TopicSession) ResetUnread() {
	s.UnreadCount = 0
}

// FilteredLogs returns the entries whose message contains Filter, ignoring
// case. With an empty filter it returns a copy of every entry. Logs is never
// modified.
func (s *TopicSession) FilteredLogs() []LogEntry {
	if s.Filter == "" {
		return append([]LogEntry(nil), s.Logs...)
	}

	needle := strings.ToLower(s.Filter)
	filtered := make([]LogEntry, 0, len(s.Logs))
	for _, entry := range s.Logs {
		if strings.Contains(strings.ToLower(entry.Message), needle) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// ToConfig returns the persisted shape of the session, without log bodies.
func (s *TopicSession) ToConfig() SessionConfig {
	return SessionConfig{
		ID:          s.ID,
		Topic:       s.Topic,
		DisplayName: s.DisplayName,
		QoS:         s.QoS,
		Color:       s.Color,
		ColorBg:     s.ColorBg,
		MaxLogs:     s.MaxLogs,
		AutoScroll:  s.AutoScroll,
		JSONFormat:  s.JSONFormat,
		IsPaused:    s.IsPaused,
		Created:     s.Created,
	}
}

// Info returns a log-free snapshot of the session.
func (s *TopicSession) Info() SessionInfo {
	return SessionInfo{
		ID:            s.ID,
		Topic:         s.Topic,
		DisplayName:   s.DisplayName,
		Color:         s.Color,
		ColorBg:       s.ColorBg,
		IsSubscribed:  s.IsSubscribed,
		IsPaused:      s.IsPaused,
		IsMuted:       s.IsMuted,
		UnreadCount:   s.UnreadCount,
		TotalReceived: s.TotalReceived,
		LogCount:      len(s.Logs),
		LastMessage:   s.LastMessage,
	}
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *TopicSession) Clone() *TopicSession {
	c := *s
	c.Logs = append([]LogEntry(nil), s.Logs...)
	return &c
}
