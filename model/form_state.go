package model

// History bounds.
const (
	DefaultHistorySize = 5
	MaxHistorySize     = 50
)

// FormState is the persisted connection form: the last URL, the idle
// timeout, the send history and the broker connection settings.
type FormState struct {
	URL         string           `json:"url" yaml:"url"`
	IdleSeconds int              `json:"idleSeconds" yaml:"idleSeconds"`
	History     History          `json:"history" yaml:"history"`
	HistorySize int              `json:"historySize" yaml:"historySize"`
	Connection  ConnectionConfig `json:"connection" yaml:"connection"`
}

// DefaultFormState returns the state of a fresh install.
func DefaultFormState() FormState {
	return FormState{
		History:     History{},
		HistorySize: DefaultHistorySize,
		Connection:  DefaultConnectionConfig(),
	}
}

// Normalize clamps out-of-range values in place: negative idle timeouts
// become zero, history sizes outside 1..50 fall back to the default, and the
// history is trimmed to its size.
func (f *FormState) Normalize() {
	if f.IdleSeconds < 0 {
		f.IdleSeconds = 0
	}
	f.HistorySize = ClampHistorySize(f.HistorySize)
	f.History = f.History.Truncate(f.HistorySize)
}

// ClampHistorySize maps size into 1..MaxHistorySize. Non-positive sizes fall
// back to DefaultHistorySize.
func ClampHistorySize(size int) int {
	switch {
	case size <= 0:
		return DefaultHistorySize
	case size > MaxHistorySize:
		return MaxHistorySize
	default:
		return size
	}
}

// History is a most-recent-first list of sent payloads without duplicates.
type History []string

// Push returns the history with text moved to the front, bounded by size.
// Empty text leaves the history unchanged.
func (h History) Push(text string, size int) History {
	if text == "" {
		return h
	}

	next := make(History, 0, len(h)+1)
	next = append(next, text)
	for _, item := range h {
		if item != text {
			next = append(next, item)
		}
	}
	return next.Truncate(ClampHistorySize(size))
}

// Truncate returns at most size entries.
func (h History) Truncate(size int) History {
	if size < 0 {
		size = 0
	}
	if len(h) <= size {
		return h
	}
	return append(History(nil), h[:size]...)
}
