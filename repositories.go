package topicscope

import (
	"context"

	"github.com/coregx/topicscope/model"
)

// SessionRepository defines the persistence interface for topic sessions.
// Only the persisted shape is stored: configs, the active session and the
// display order. Logs and counters are never persisted.
//
// Implementations must be safe for concurrent use.
type SessionRepository interface {
	// LoadAll retrieves every stored session config in display order together
	// with the active session id.
	// Returns ErrNoData if nothing has been saved yet.
	LoadAll(ctx context.Context) (model.TopicsConfig, error)

	// SaveAll replaces the stored state with cfg. Sessions missing from cfg
	// are removed.
	SaveAll(ctx context.Context, cfg model.TopicsConfig) error

	// ClearAll removes every stored session and the active session id.
	ClearAll(ctx context.Context) error
}

// FormStateRepository defines the persistence interface for the connection form.
type FormStateRepository interface {
	// Load retrieves the stored form state.
	// Returns ErrNoData if nothing has been saved yet.
	Load(ctx context.Context) (model.FormState, error)

	// Save stores the form state, replacing the previous one.
	Save(ctx context.Context, state model.FormState) error
}
