package relica

import (
	"database/sql"

	"github.com/coregx/topicscope"
)

// DefaultTablePrefix is the prefix of every table created by the embedded
// migrations.
const DefaultTablePrefix = "topicscope_"

// Repositories holds all repository implementations.
type Repositories struct {
	Sessions  topicscope.SessionRepository
	FormState topicscope.FormStateRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
// The table prefix defaults to "topicscope_" but can be customized.
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return &Repositories{
		Sessions:  NewSessionRepository(db, driverName),
		FormState: NewFormStateRepository(db, driverName),
	}
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Sessions:  NewSessionRepositoryWithPrefix(db, driverName, prefix),
		FormState: NewFormStateRepositoryWithPrefix(db, driverName, prefix),
	}
}
