package model

import "time"

// ConnectionStatus is the supervisor state.
type ConnectionStatus string

const (
	// StatusDisconnected is the initial and terminal state.
	StatusDisconnected ConnectionStatus = "disconnected"

	// StatusConnecting means a dial is in flight.
	StatusConnecting ConnectionStatus = "connecting"

	// StatusConnected means the transport reported open.
	StatusConnected ConnectionStatus = "connected"
)

// String returns the status name.
func (s ConnectionStatus) String() string {
	return string(s)
}

// SessionInfo is a log-free snapshot of a TopicSession, handed to observers.
type SessionInfo struct {
	ID            string    `json:"id"`
	Topic         string    `json:"topic"`
	DisplayName   string    `json:"displayName"`
	Color         string    `json:"color"`
	ColorBg       string    `json:"colorBg"`
	IsSubscribed  bool      `json:"isSubscribed"`
	IsPaused      bool      `json:"isPaused"`
	IsMuted       bool      `json:"isMuted"`
	UnreadCount   int       `json:"unreadCount"`
	TotalReceived int       `json:"totalReceived"`
	LogCount      int       `json:"logCount"`
	LastMessage   time.Time `json:"lastMessage"`
}

// ManagerState is the full snapshot passed with every state notification.
// Sessions are listed in display order.
type ManagerState struct {
	Sessions      []SessionInfo `json:"sessions"`
	ActiveTopicID string        `json:"activeTopicId"`
}

// StateEntry is a key/value row used to persist small documents such as the
// FormState and the active session id.
type StateEntry struct {
	ID        string    `json:"id" db:"id"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// TableName returns the database table name for StateEntry.
func (m StateEntry) TableName() string {
	return tablePrefix + "state"
}

// Keys of persisted StateEntry rows.
const (
	StateKeyFormState   = "form_state"
	StateKeyActiveTopic = "active_topic"
)
