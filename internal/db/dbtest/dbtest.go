// Package dbtest provides a migrated in-memory database for package tests.
package dbtest

import (
	"testing"

	"github.com/AdamBeresnev/tourney/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// New creates an in-memory SQLite database and applies migrations. Every
// connection to ":memory:" is a separate database, so the pool is pinned to
// one connection.
func New(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(0)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}
