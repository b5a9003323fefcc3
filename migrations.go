package topicscope

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"strings"
)

// MigrationFiles contains the SQL schema embedded in the binary. The DDL is
// portable across SQLite, MySQL and PostgreSQL, so a migration tool can also
// apply it directly.
//
// Example with goose:
//
//	goose.SetBaseFS(topicscope.MigrationFiles)
//	if err := goose.Up(db, "migrations"); err != nil {
//	    log.Fatal(err)
//	}
//
//go:embed migrations/*.sql
var MigrationFiles embed.FS

// defaultTablePrefix is the table prefix written in the migration files.
const defaultTablePrefix = "topicscope_"

// ApplyMigrations executes every embedded migration in file-name order.
// Statements use CREATE TABLE IF NOT EXISTS, so applying twice is harmless.
//
// Example:
//
//	db, _ := sql.Open("sqlite3", "topicscope.db")
//	if err := topicscope.ApplyMigrations(ctx, db); err != nil {
//	    log.Fatal(err)
//	}
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	return ApplyMigrationsWithPrefix(ctx, db, defaultTablePrefix)
}

// ApplyMigrationsWithPrefix applies the migrations with every table renamed
// from the "topicscope_" prefix to prefix. Use it together with
// relica.NewRepositoriesWithPrefix.
func ApplyMigrationsWithPrefix(ctx context.Context, db *sql.DB, prefix string) error {
	if prefix == "" {
		prefix = defaultTablePrefix
	}

	names, err := fs.Glob(MigrationFiles, "migrations/*.sql")
	if err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to list migrations", err)
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := MigrationFiles.ReadFile(name)
		if err != nil {
			return NewErrorWithCause(ErrCodeDatabase, "failed to read migration "+name, err)
		}
		for _, stmt := range splitStatements(string(body)) {
			if prefix != defaultTablePrefix {
				stmt = strings.ReplaceAll(stmt, defaultTablePrefix, prefix)
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return NewErrorWithCause(ErrCodeDatabase, "failed to apply migration "+name, err)
			}
		}
	}
	return nil
}

// splitStatements splits a script on semicolons, dropping comment lines.
func splitStatements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var stmts []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
