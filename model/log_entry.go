package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// LogKind classifies a log entry by direction.
type LogKind string

const (
	// LogKindReceived marks a message delivered by the transport.
	LogKindReceived LogKind = "rx"

	// LogKindSent marks a message sent by the user.
	LogKindSent LogKind = "tx"

	// LogKindSystem marks a client-generated notice (connected, errors, ...).
	LogKindSystem LogKind = "sys"
)

// TimeLayout is the clock format used for LogEntry.Time.
const TimeLayout = "15:04:05"

// Attributes carries optional per-message metadata such as QoS or the retain flag.
type Attributes map[string]string

// LogEntry is one line in a topic session's history.
//
// Entries are values: the router builds one entry per inbound message and
// every matching session stores its own copy under a fresh ID.
type LogEntry struct {
	ID         string     `json:"id"`
	Kind       LogKind    `json:"kind"`
	Message    string     `json:"message"`
	Topic      string     `json:"topic,omitempty"` // Topic the message travelled on
	Time       string     `json:"time"`            // Wall clock, HH:MM:SS
	Timestamp  time.Time  `json:"timestamp"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// NewLogEntry creates an entry stamped with the current time.
func NewLogEntry(kind LogKind, message string) LogEntry {
	now := time.Now()
	return LogEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Time:      now.Format(TimeLayout),
		Timestamp: now,
	}
}

// Pretty returns the message indented when it is a JSON object or array and
// unchanged otherwise.
func (e LogEntry) Pretty() string {
	if !IsJSONDocument(e.Message) {
		return e.Message
	}
	return string(pretty.PrettyOptions([]byte(e.Message), &pretty.Options{
		Width:  80,
		Prefix: "",
		Indent: "  ",
	}))
}

// IsJSONDocument reports whether text is valid JSON whose top level is an
// object or an array.
func IsJSONDocument(text string) bool {
	if !gjson.Valid(text) {
		return false
	}
	parsed := gjson.Parse(text)
	return parsed.IsObject() || parsed.IsArray()
}
