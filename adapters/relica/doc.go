// Package relica provides repository implementations using Relica query builder.
//
// Relica (github.com/coregx/relica) is a lightweight, type-safe database query builder
// for Go with zero production dependencies.
//
// This package provides implementations of the topicscope repository interfaces:
//   - SessionRepository: one row per topic session config, plus the active id
//   - FormStateRepository: the connection form as a JSON document
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/topicscope"
//	    "github.com/coregx/topicscope/adapters/relica"
//	    _ "github.com/mattn/go-sqlite3"
//	)
//
//	db, err := sql.Open("sqlite3", "topicscope.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := topicscope.ApplyMigrations(ctx, db); err != nil {
//	    log.Fatal(err)
//	}
//
//	// driverName should be "mysql", "postgres", or "sqlite3"
//	repos := relica.NewRepositories(db, "sqlite3")
//
//	worker, err := topicscope.NewPersistWorker(
//	    topicscope.WithPersistRepositories(repos.Sessions, repos.FormState),
//	    topicscope.WithPersistLogger(logger),
//	)
package relica
