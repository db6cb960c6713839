// Package db manages the SQLite database connection and schema migrations.
// it exposes a Database struct wrapping *sql.DB, passed via dependency
// injection to any layer that needs persistence. raw SQL is used
// intentionally, keeping the query layer explicit and auditable, matching
// the teacher's own stance against ORM magic.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	// the underscore import registers the go-sqlite3 driver with database/sql.
	// its init() side effect is all that's needed; the package is never
	// referenced directly.
	_ "github.com/mattn/go-sqlite3"
)

// ErrRecordNotFound is returned by find methods when no matching row exists.
// callers should use errors.Is against it; handlers map it to a 404.
var ErrRecordNotFound = errors.New("record not found")

// Database wraps *sql.DB. wrapping (not embedding) keeps the public surface
// intentional: only the methods defined in this package are exposed, so a
// future driver swap (e.g. to Postgres for a multi-host successor) touches
// only this package.
type Database struct {
	connection *sql.DB
	logger     *slog.Logger
}

func (database *Database) migrate() error {
	_, err := database.connection.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema migration: %w", err)
	}
	return nil
}

// schema is the SQL DDL for both persistent entities. IF NOT EXISTS makes it
// safe to run on every startup; a dedicated migration tool is unnecessary at
// this scale, the same minimal-migration posture the teacher takes.
//
// deployments.project_id has ON DELETE CASCADE so deleting a project (§4.4's
// delete "cascades to its deployments") is a single statement rather than a
// two-step application-level delete.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id              TEXT PRIMARY KEY,
    name            TEXT UNIQUE NOT NULL,
    repo_url        TEXT NOT NULL,
    branch          TEXT NOT NULL,
    build_context   TEXT NOT NULL DEFAULT '.',
    local_path      TEXT NOT NULL,
    app_port        INTEGER NOT NULL,
    health_path     TEXT NOT NULL DEFAULT '/health',
    base_port       INTEGER NOT NULL,
    webhook_secret  TEXT UNIQUE NOT NULL,
    env             TEXT NOT NULL DEFAULT '{}',
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS deployments (
    id             TEXT PRIMARY KEY,
    project_id     TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    version        INTEGER NOT NULL,
    color          TEXT NOT NULL,
    port           INTEGER NOT NULL,
    container_name TEXT NOT NULL,
    image_tag      TEXT NOT NULL,
    status         TEXT NOT NULL,
    error_message  TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_deployments_project_id ON deployments(project_id);
CREATE INDEX IF NOT EXISTS idx_deployments_status ON deployments(status);
`

// OpenDatabase opens the SQLite database at dbPath, runs the schema
// migration, and returns a ready-to-use *Database. the parent directory is
// created if missing so the caller does not need to pre-create the path.
func OpenDatabase(dbPath string, logger *slog.Logger) (*Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
	}

	connection, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %q: %w", dbPath, err)
	}

	// SQLite does not support concurrent writers. capping the pool at one
	// connection avoids "database is locked" errors from the driver opening
	// multiple connections that write simultaneously. it also means the
	// PRAGMA below, which is per-connection, stays in effect for every query
	// this *Database ever issues.
	connection.SetMaxOpenConns(1)

	// SQLite disables foreign key enforcement by default; without this the
	// schema's ON DELETE CASCADE on deployments.project_id is inert and
	// DeleteProject would silently orphan deployment rows.
	if _, err := connection.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign key enforcement: %w", err)
	}

	database := &Database{
		connection: connection,
		logger:     logger,
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	logger.Info("database opened and schema migrated", "path", dbPath)
	return database, nil
}

// CloseDatabase releases the connection pool.
func (database *Database) CloseDatabase() error {
	return database.connection.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows, letting scan helpers
// work with either QueryRow or Query without duplicating the scan logic.
type scanner interface {
	Scan(dest ...any) error
}
