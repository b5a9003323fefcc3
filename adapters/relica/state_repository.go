package relica

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/coregx/relica"
	"github.com/coregx/topicscope"
	"github.com/coregx/topicscope/model"
)

// FormStateRepository implements topicscope.FormStateRepository using Relica.
// The form is stored as one JSON document in the state table.
type FormStateRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewFormStateRepository creates a new FormStateRepository with default table prefix.
func NewFormStateRepository(sqlDB *sql.DB, driverName string) *FormStateRepository {
	return &FormStateRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: DefaultTablePrefix}
}

// NewFormStateRepositoryWithPrefix creates a new FormStateRepository with custom table prefix.
func NewFormStateRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *FormStateRepository {
	return &FormStateRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *FormStateRepository) tableName() string {
	return r.tablePrefix + "state"
}

// Load retrieves the stored form state.
func (r *FormStateRepository) Load(ctx context.Context) (model.FormState, error) {
	entry, err := loadState(ctx, r.db, r.tableName(), model.StateKeyFormState)
	if err != nil {
		return model.FormState{}, err
	}

	state := model.DefaultFormState()
	if err := json.Unmarshal([]byte(entry.Value), &state); err != nil {
		return model.FormState{}, topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to decode form state", err)
	}
	return state, nil
}

// Save stores the form state, replacing the previous one.
func (r *FormStateRepository) Save(ctx context.Context, state model.FormState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to encode form state", err)
	}
	return saveState(ctx, r.db, r.tableName(), model.StateKeyFormState, string(data))
}
