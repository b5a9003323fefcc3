package model

import (
	"time"

	"github.com/coregx/topicscope/topicfilter"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxQoS is the highest delivery-quality level a broker understands.
const MaxQoS = 2

// SessionConfig is the persisted shape of a TopicSession. Log bodies, counters
// and subscription state are runtime-only and never stored.
type SessionConfig struct {
	ID          string    `json:"id" yaml:"id" db:"id"`
	Topic       string    `json:"topic" yaml:"topic" db:"topic"`
	DisplayName string    `json:"displayName" yaml:"displayName" db:"display_name"`
	QoS         byte      `json:"qos" yaml:"qos" db:"qos"`
	Color       string    `json:"color" yaml:"color" db:"color"`
	ColorBg     string    `json:"colorBg" yaml:"colorBg" db:"color_bg"`
	MaxLogs     int       `json:"maxLogs" yaml:"maxLogs" db:"max_logs"`
	AutoScroll  bool      `json:"autoScroll" yaml:"autoScroll" db:"auto_scroll"`
	JSONFormat  bool      `json:"jsonFormat" yaml:"jsonFormat" db:"json_format"`
	IsPaused    bool      `json:"isPaused" yaml:"isPaused" db:"is_paused"`
	Created     time.Time `json:"created" yaml:"created" db:"created_at"`
	Position    int       `json:"-" yaml:"-" db:"position"` // Index in TopicOrder, storage only
}

// TableName returns the database table name for SessionConfig.
func (m SessionConfig) TableName() string {
	return tablePrefix + "session"
}

// Validate checks that the config describes a session a broker would accept.
func (m SessionConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ID, validation.Required, validation.Length(1, 64)),
		validation.Field(&m.Topic, validation.Required, validation.Length(1, 255), validation.By(topicFilterRule)),
		validation.Field(&m.DisplayName, validation.Length(0, 255)),
		validation.Field(&m.QoS, validation.Max(byte(MaxQoS))),
		validation.Field(&m.MaxLogs, validation.Min(0)),
	)
}

// topicFilterRule adapts topicfilter.Validate to an ozzo rule.
func topicFilterRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil // Required reports the empty case
	}
	return topicfilter.Validate(s)
}

// TopicsConfig is the exported state of a TopicManager: every session's
// config, the active session and the display order.
type TopicsConfig struct {
	Sessions      []SessionConfig `json:"topicConfigs" yaml:"topics"`
	ActiveTopicID string          `json:"activeTopicId" yaml:"activeTopicId"`
	TopicOrder    []string        `json:"topicOrder" yaml:"topicOrder"`
}

// Validate validates every session config.
func (c TopicsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Sessions),
	)
}
