// Package metastore persists indexing metadata in SQLite: projects,
// collection registrations, per-file content hashes and free-form
// observations with full-text search. The vector payload lives in the
// vector store; this package only records what was indexed and when,
// which is what incremental indexing diffs against.
//
// Two drivers compile behind build tags: mattn/go-sqlite3 with the
// sqlite_cgo tag, modernc.org/sqlite otherwise. Both speak the same
// schema including FTS5.
package metastore

import (
	"context"
	"time"
)

// Project is one indexed codebase, resolved by absolute root path.
type Project struct {
	ID        string
	OrgID     string
	Name      string
	Path      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Collection is the registry row mirroring a vector-store collection.
// VectorName is the collection's directory name in the vector store.
type Collection struct {
	ID         string
	ProjectID  string
	Name       string
	VectorName string
	CreatedAt  time.Time
}

// FileHash records the content hash of one indexed file. A file that
// disappeared keeps its row with DeletedAt set so the hash history
// survives tombstoning.
type FileHash struct {
	ID            int64
	ProjectID     string
	Collection    string
	FilePath      string
	ContentHash   string
	IndexedAt     time.Time
	DeletedAt     *time.Time
	OriginContext *string
}

// Observation is a free-form project note, searchable via FTS5.
type Observation struct {
	ID        string
	ProjectID string
	Content   string
	Kind      string
	CreatedAt time.Time
}

// Store is the metadata persistence contract.
type Store interface {
	// GetOrCreateProject resolves the project row for an absolute root
	// path, creating it on first use.
	GetOrCreateProject(ctx context.Context, path string) (*Project, error)

	// UpsertCollection registers (or refreshes) a collection row.
	UpsertCollection(ctx context.Context, projectID, name, vectorName string) (*Collection, error)
	ListCollections(ctx context.Context, projectID string) ([]*Collection, error)
	DeleteCollection(ctx context.Context, projectID, name string) error

	// UpsertFileHash records a freshly indexed file: sets indexed_at to
	// now and clears any deletion mark. Idempotent.
	UpsertFileHash(ctx context.Context, projectID, collection, path, hash string) error
	// MarkFileDeleted tombstones a file, keeping its last content hash.
	MarkFileDeleted(ctx context.Context, projectID, collection, path string) error
	// LookupFileHash returns the row for one file, nil when absent.
	LookupFileHash(ctx context.Context, projectID, collection, path string) (*FileHash, error)
	// ListActiveFiles returns the paths of all non-deleted files in a
	// collection, sorted.
	ListActiveFiles(ctx context.Context, projectID, collection string) ([]string, error)

	AddObservation(ctx context.Context, projectID, content, kind string) (*Observation, error)
	// SearchObservations runs an FTS5 match over observation content,
	// best match first.
	SearchObservations(ctx context.Context, projectID, query string, limit int) ([]*Observation, error)

	Close() error
}
