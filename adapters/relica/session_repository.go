package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/relica"
	"github.com/coregx/topicscope"
	"github.com/coregx/topicscope/model"
)

// SessionRepository implements topicscope.SessionRepository using Relica.
//
// Session configs live one per row, ordered by their position column; the
// active session id is a row of the state table.
type SessionRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewSessionRepository creates a new SessionRepository with default table prefix.
func NewSessionRepository(sqlDB *sql.DB, driverName string) *SessionRepository {
	return &SessionRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: DefaultTablePrefix}
}

// NewSessionRepositoryWithPrefix creates a new SessionRepository with custom table prefix.
func NewSessionRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SessionRepository {
	return &SessionRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *SessionRepository) tableName() string {
	return r.tablePrefix + "session"
}

func (r *SessionRepository) stateTableName() string {
	return r.tablePrefix + "state"
}

// LoadAll retrieves every stored session in display order with the active id.
func (r *SessionRepository) LoadAll(ctx context.Context) (model.TopicsConfig, error) {
	var rows []model.SessionConfig
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).
		OrderBy("position ASC").
		All(&rows)
	if err != nil {
		return model.TopicsConfig{}, topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to load sessions", err)
	}

	active, err := loadState(ctx, r.db, r.stateTableName(), model.StateKeyActiveTopic)
	if err != nil && !topicscope.IsNoData(err) {
		return model.TopicsConfig{}, err
	}

	if len(rows) == 0 && active.Value == "" {
		return model.TopicsConfig{}, topicscope.ErrNoData
	}

	cfg := model.TopicsConfig{
		Sessions:      rows,
		ActiveTopicID: active.Value,
		TopicOrder:    make([]string, 0, len(rows)),
	}
	for _, row := range rows {
		cfg.TopicOrder = append(cfg.TopicOrder, row.ID)
	}
	return cfg, nil
}

// SaveAll replaces the stored sessions with cfg: rows missing from cfg are
// deleted, known rows updated and new rows inserted.
func (r *SessionRepository) SaveAll(ctx context.Context, cfg model.TopicsConfig) error {
	var existing []model.SessionConfig
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).All(&existing)
	if err != nil {
		return topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to read sessions", err)
	}

	stored := make(map[string]bool, len(existing))
	wanted := make(map[string]bool, len(cfg.Sessions))
	for _, s := range cfg.Sessions {
		wanted[s.ID] = true
	}

	for i := range existing {
		if wanted[existing[i].ID] {
			stored[existing[i].ID] = true
			continue
		}
		if err := r.db.WithContext(ctx).Model(&existing[i]).Table(r.tableName()).Delete(); err != nil {
			return topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to delete session", err)
		}
	}

	positions := orderPositions(cfg)
	for _, s := range cfg.Sessions {
		s.Position = positions[s.ID]
		if s.Created.IsZero() {
			s.Created = time.Now()
		}

		if stored[s.ID] {
			err = r.db.WithContext(ctx).Model(&s).Table(r.tableName()).Update()
		} else {
			err = r.db.WithContext(ctx).Model(&s).Table(r.tableName()).Insert()
		}
		if err != nil {
			return topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to save session "+s.ID, err)
		}
	}

	return saveState(ctx, r.db, r.stateTableName(), model.StateKeyActiveTopic, cfg.ActiveTopicID)
}

// ClearAll removes every stored session and the active session id.
func (r *SessionRepository) ClearAll(ctx context.Context) error {
	var existing []model.SessionConfig
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).All(&existing)
	if err != nil {
		return topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to read sessions", err)
	}

	for i := range existing {
		if err := r.db.WithContext(ctx).Model(&existing[i]).Table(r.tableName()).Delete(); err != nil {
			return topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to delete session", err)
		}
	}

	return deleteState(ctx, r.db, r.stateTableName(), model.StateKeyActiveTopic)
}

// orderPositions maps each session id to its index in cfg.TopicOrder.
// Sessions missing from the order follow, in slice order.
func orderPositions(cfg model.TopicsConfig) map[string]int {
	positions := make(map[string]int, len(cfg.Sessions))
	for _, id := range cfg.TopicOrder {
		if _, seen := positions[id]; !seen {
			positions[id] = len(positions)
		}
	}

	next := len(positions)
	for _, s := range cfg.Sessions {
		if _, ok := positions[s.ID]; !ok {
			positions[s.ID] = next
			next++
		}
	}
	return positions
}

// loadState reads one key/value row. Returns ErrNoData if it does not exist.
func loadState(ctx context.Context, db *relica.DB, table, key string) (model.StateEntry, error) {
	var entry model.StateEntry
	err := db.WithContext(ctx).Select("*").From(table).Where("id = ?", key).One(&entry)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, topicscope.ErrNoData
	}
	if err != nil {
		return entry, topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to load state "+key, err)
	}
	return entry, nil
}

// saveState upserts one key/value row.
func saveState(ctx context.Context, db *relica.DB, table, key, value string) error {
	_, err := loadState(ctx, db, table, key)
	if err != nil && !topicscope.IsNoData(err) {
		return err
	}

	entry := model.StateEntry{ID: key, Value: value, UpdatedAt: time.Now()}
	if err == nil {
		err = db.WithContext(ctx).Model(&entry).Table(table).Update()
	} else {
		err = db.WithContext(ctx).Model(&entry).Table(table).Insert()
	}
	if err != nil {
		return topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to save state "+key, err)
	}
	return nil
}

// deleteState removes one key/value row if present.
func deleteState(ctx context.Context, db *relica.DB, table, key string) error {
	entry, err := loadState(ctx, db, table, key)
	if topicscope.IsNoData(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Model(&entry).Table(table).Delete(); err != nil {
		return topicscope.NewErrorWithCause(topicscope.ErrCodeDatabase, "failed to delete state "+key, err)
	}
	return nil
}
