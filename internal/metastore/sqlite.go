package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/codectx/codectx/pkg/types"
)

// SQLite implements Store on a single SQLite file.
type SQLite struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx so the statement
// helpers work inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the database file, configures it and applies pending
// migrations.
func Open(path string) (*SQLite, error) {
	if path == "" {
		return nil, types.E(types.KindConfigInvalid, "metadata database path is empty").
			With("key", "configs.database.path")
	}
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, types.Wrap(types.KindProviderInit, err, "open metadata database").With("path", path)
	}

	// Single writer: SQLite serializes writes anyway, and one
	// connection avoids SQLITE_BUSY under the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, types.Wrap(types.KindProviderInit, err, "configure metadata database").With("path", path)
		}
	}

	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, types.Wrap(types.KindProviderInit, err, "migrate metadata database").With("path", path)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) querier() querier {
	return s.db
}

// Project operations

func (s *SQLite) GetOrCreateProject(ctx context.Context, path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, types.Wrap(types.KindConfigInvalid, err, "resolve project path").With("path", path)
	}

	p, err := s.getProjectByPath(ctx, s.querier(), abs)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup project: %w", err)
	}

	now := time.Now().UTC()
	p = &Project{
		ID:        uuid.NewString(),
		OrgID:     "local",
		Name:      filepath.Base(abs),
		Path:      abs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.querier().ExecContext(ctx, `
		INSERT INTO projects (id, org_id, name, path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, p.Name, p.Path, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		// Two roots with the same base name collide on (org_id, name);
		// qualify with a short id suffix and retry once.
		p.Name = fmt.Sprintf("%s-%s", p.Name, p.ID[:8])
		_, err = s.querier().ExecContext(ctx, `
			INSERT INTO projects (id, org_id, name, path, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.OrgID, p.Name, p.Path, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("create project: %w", err)
		}
	}
	return p, nil
}

func (s *SQLite) getProjectByPath(ctx context.Context, q querier, path string) (*Project, error) {
	var p Project
	err := q.QueryRowContext(ctx, `
		SELECT id, org_id, name, path, created_at, updated_at
		FROM projects WHERE path = ?`, path).Scan(
		&p.ID, &p.OrgID, &p.Name, &p.Path, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Collection operations

func (s *SQLite) UpsertCollection(ctx context.Context, projectID, name, vectorName string) (*Collection, error) {
	c := &Collection{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Name:       name,
		VectorName: vectorName,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.querier().QueryRowContext(ctx, `
		INSERT INTO collections (id, project_id, name, vector_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, name) DO UPDATE SET vector_name = excluded.vector_name
		RETURNING id, created_at`,
		c.ID, c.ProjectID, c.Name, c.VectorName, c.CreatedAt).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert collection: %w", err)
	}
	return c, nil
}

func (s *SQLite) ListCollections(ctx context.Context, projectID string) ([]*Collection, error) {
	rows, err := s.querier().QueryContext(ctx, `
		SELECT id, project_id, name, vector_name, created_at
		FROM collections WHERE project_id = ? ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.VectorName, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteCollection(ctx context.Context, projectID, name string) error {
	if _, err := s.querier().ExecContext(ctx,
		`DELETE FROM collections WHERE project_id = ? AND name = ?`, projectID, name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if _, err := s.querier().ExecContext(ctx,
		`DELETE FROM file_hashes WHERE project_id = ? AND collection = ?`, projectID, name); err != nil {
		return fmt.Errorf("delete collection file hashes: %w", err)
	}
	return nil
}

// File hash operations

func (s *SQLite) UpsertFileHash(ctx context.Context, projectID, collection, path, hash string) error {
	now := time.Now().UTC()
	_, err := s.querier().ExecContext(ctx, `
		INSERT INTO file_hashes (project_id, collection, file_path, content_hash, indexed_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, NULL)
		ON CONFLICT(project_id, collection, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			indexed_at = excluded.indexed_at,
			deleted_at = NULL`,
		projectID, collection, path, hash, now)
	if err != nil {
		return fmt.Errorf("upsert file hash: %w", err)
	}
	return nil
}

func (s *SQLite) MarkFileDeleted(ctx context.Context, projectID, collection, path string) error {
	_, err := s.querier().ExecContext(ctx, `
		UPDATE file_hashes SET deleted_at = ?
		WHERE project_id = ? AND collection = ? AND file_path = ?`,
		time.Now().UTC(), projectID, collection, path)
	if err != nil {
		return fmt.Errorf("mark file deleted: %w", err)
	}
	return nil
}

func (s *SQLite) LookupFileHash(ctx context.Context, projectID, collection, path string) (*FileHash, error) {
	var fh FileHash
	var deletedAt sql.NullTime
	var origin sql.NullString
	err := s.querier().QueryRowContext(ctx, `
		SELECT id, project_id, collection, file_path, content_hash, indexed_at, deleted_at, origin_context
		FROM file_hashes
		WHERE project_id = ? AND collection = ? AND file_path = ?`,
		projectID, collection, path).Scan(
		&fh.ID, &fh.ProjectID, &fh.Collection, &fh.FilePath,
		&fh.ContentHash, &fh.IndexedAt, &deletedAt, &origin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup file hash: %w", err)
	}
	if deletedAt.Valid {
		fh.DeletedAt = &deletedAt.Time
	}
	if origin.Valid {
		fh.OriginContext = &origin.String
	}
	return &fh, nil
}

func (s *SQLite) ListActiveFiles(ctx context.Context, projectID, collection string) ([]string, error) {
	rows, err := s.querier().QueryContext(ctx, `
		SELECT file_path FROM file_hashes
		WHERE project_id = ? AND collection = ? AND deleted_at IS NULL
		ORDER BY file_path`, projectID, collection)
	if err != nil {
		return nil, fmt.Errorf("list active files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Observation operations

func (s *SQLite) AddObservation(ctx context.Context, projectID, content, kind string) (*Observation, error) {
	if kind == "" {
		kind = "note"
	}
	o := &Observation{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Content:   content,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.querier().ExecContext(ctx, `
		INSERT INTO observations (id, project_id, content, kind, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.ProjectID, o.Content, o.Kind, o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add observation: %w", err)
	}
	return o, nil
}

func (s *SQLite) SearchObservations(ctx context.Context, projectID, query string, limit int) ([]*Observation, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.querier().QueryContext(ctx, `
		SELECT o.id, o.project_id, o.content, o.kind, o.created_at
		FROM observations_fts f
		JOIN observations o ON o.rowid = f.rowid
		WHERE observations_fts MATCH ? AND o.project_id = ?
		ORDER BY rank LIMIT ?`,
		query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("search observations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.ProjectID, &o.Content, &o.Kind, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}
