package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/codectx/codectx/internal/metastore/schema"
)

// CurrentSchemaVersion is the newest migration version.
const CurrentSchemaVersion = "1.0.0"

// Migration is one versioned schema step. Up statements run in order
// inside a single migration pass.
type Migration struct {
	Version string
	Up      []string
	Down    []string
}

// allMigrations lists every migration, ascending by version.
func allMigrations() []Migration {
	up := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	}
	up = append(up, schema.SQLiteDDLAll()...)
	up = append(up,
		`CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
    content,
    content='observations',
    content_rowid='rowid'
)`,
		`CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
    INSERT INTO observations_fts(rowid, content) VALUES (new.rowid, new.content);
END`,
		`CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
    INSERT INTO observations_fts(observations_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END`,
		`CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE ON observations BEGIN
    INSERT INTO observations_fts(observations_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
    INSERT INTO observations_fts(rowid, content) VALUES (new.rowid, new.content);
END`,
	)

	down := []string{
		`DROP TRIGGER IF EXISTS observations_au`,
		`DROP TRIGGER IF EXISTS observations_ad`,
		`DROP TRIGGER IF EXISTS observations_ai`,
		`DROP TABLE IF EXISTS observations_fts`,
		`DROP TABLE IF EXISTS observations`,
		`DROP TABLE IF EXISTS file_hashes`,
		`DROP TABLE IF EXISTS collections`,
		`DROP TABLE IF EXISTS projects`,
		`DROP TABLE IF EXISTS schema_version`,
	}

	return []Migration{
		{Version: "1.0.0", Up: up, Down: down},
	}
}

// applyMigrations runs every migration newer than the recorded schema
// version. Versions are compared as semver so ordering survives a
// future 1.10.0.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := recordedVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range allMigrations() {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !current.LessThan(v) {
			continue
		}
		for _, stmt := range m.Up {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w (statement: %s)", m.Version, err, firstLine(stmt))
			}
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		current = v
	}
	return nil
}

// recordedVersion reads the newest applied version, 0.0.0 on a fresh
// database.
func recordedVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("check schema_version table: %w", err)
	}

	var raw string
	err = db.QueryRowContext(ctx,
		"SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || raw == "" {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid recorded schema version %s: %w", raw, err)
	}
	return v, nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
