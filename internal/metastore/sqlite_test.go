package metastore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codectx/codectx/pkg/types"
)

func setupStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.True(t, types.IsKind(err, types.KindConfigInvalid))
}

func TestGetOrCreateProjectIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	root := t.TempDir()

	first, err := s.GetOrCreateProject(ctx, root)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, filepath.Base(root), first.Name)
	assert.True(t, filepath.IsAbs(first.Path))

	second, err := s.GetOrCreateProject(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCollectionsLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p, err := s.GetOrCreateProject(ctx, t.TempDir())
	require.NoError(t, err)

	c, err := s.UpsertCollection(ctx, p.ID, "code", "code")
	require.NoError(t, err)
	assert.Equal(t, "code", c.VectorName)

	// Upsert keeps the row, updates the vector name.
	again, err := s.UpsertCollection(ctx, p.ID, "code", "code-v2")
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, "code-v2", again.VectorName)

	_, err = s.UpsertCollection(ctx, p.ID, "docs", "docs")
	require.NoError(t, err)

	list, err := s.ListCollections(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "code", list[0].Name)
	assert.Equal(t, "docs", list[1].Name)

	require.NoError(t, s.DeleteCollection(ctx, p.ID, "docs"))
	list, err = s.ListCollections(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestFileHashLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p, err := s.GetOrCreateProject(ctx, t.TempDir())
	require.NoError(t, err)

	fh, err := s.LookupFileHash(ctx, p.ID, "code", "main.go")
	require.NoError(t, err)
	assert.Nil(t, fh)

	require.NoError(t, s.UpsertFileHash(ctx, p.ID, "code", "main.go", "aaa"))
	fh, err = s.LookupFileHash(ctx, p.ID, "code", "main.go")
	require.NoError(t, err)
	require.NotNil(t, fh)
	assert.Equal(t, "aaa", fh.ContentHash)
	assert.Nil(t, fh.DeletedAt)
	firstIndexedAt := fh.IndexedAt

	// Upsert is idempotent and refreshes the row in place.
	require.NoError(t, s.UpsertFileHash(ctx, p.ID, "code", "main.go", "bbb"))
	fh, err = s.LookupFileHash(ctx, p.ID, "code", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "bbb", fh.ContentHash)
	assert.False(t, fh.IndexedAt.Before(firstIndexedAt))

	require.NoError(t, s.MarkFileDeleted(ctx, p.ID, "code", "main.go"))
	fh, err = s.LookupFileHash(ctx, p.ID, "code", "main.go")
	require.NoError(t, err)
	require.NotNil(t, fh.DeletedAt)
	assert.Equal(t, "bbb", fh.ContentHash, "deletion keeps the last hash")

	// Re-indexing resurrects the row.
	require.NoError(t, s.UpsertFileHash(ctx, p.ID, "code", "main.go", "ccc"))
	fh, err = s.LookupFileHash(ctx, p.ID, "code", "main.go")
	require.NoError(t, err)
	assert.Nil(t, fh.DeletedAt)
}

func TestListActiveFiles(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p, err := s.GetOrCreateProject(ctx, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.UpsertFileHash(ctx, p.ID, "code", "b.go", "h1"))
	require.NoError(t, s.UpsertFileHash(ctx, p.ID, "code", "a.go", "h2"))
	require.NoError(t, s.UpsertFileHash(ctx, p.ID, "code", "c.go", "h3"))
	require.NoError(t, s.UpsertFileHash(ctx, p.ID, "docs", "readme.md", "h4"))
	require.NoError(t, s.MarkFileDeleted(ctx, p.ID, "code", "c.go"))

	paths, err := s.ListActiveFiles(ctx, p.ID, "code")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, paths)
}

func TestObservationsSearch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p, err := s.GetOrCreateProject(ctx, t.TempDir())
	require.NoError(t, err)

	_, err = s.AddObservation(ctx, p.ID, "the indexer retries transient embedding failures", "note")
	require.NoError(t, err)
	_, err = s.AddObservation(ctx, p.ID, "shard files are append only", "decision")
	require.NoError(t, err)

	hits, err := s.SearchObservations(ctx, p.ID, "indexer", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Content, "retries")
	assert.Equal(t, "note", hits[0].Kind)

	// Another project's observations are invisible.
	other, err := s.GetOrCreateProject(ctx, t.TempDir())
	require.NoError(t, err)
	hits, err = s.SearchObservations(ctx, other.ID, "indexer", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSchemaVersionRecorded(t *testing.T) {
	s := setupStore(t)
	var v string
	err := s.db.QueryRow("SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&v)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
}

func TestMigrationsIdempotentAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.db")

	s, err := Open(path)
	require.NoError(t, err)
	p, err := s.GetOrCreateProject(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	again, err := reopened.GetOrCreateProject(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
}
