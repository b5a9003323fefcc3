package topicscope

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- comment\nCREATE TABLE a (x INT);\n\n-- another\nCREATE TABLE b (y INT);\n")

	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x INT)", stmts[0])
	assert.Equal(t, "CREATE TABLE b (y INT)", stmts[1])
}

func TestApplyMigrations_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db))
	require.NoError(t, ApplyMigrations(ctx, db), "applying twice is harmless")

	for _, table := range []string{"topicscope_session", "topicscope_state"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err)
		assert.Equal(t, table, name)
	}
}

func TestApplyMigrationsWithPrefix(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	require.NoError(t, ApplyMigrationsWithPrefix(ctx, db, "dbg_"))

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('dbg_session', 'dbg_state')").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name LIKE 'topicscope_%'").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}
