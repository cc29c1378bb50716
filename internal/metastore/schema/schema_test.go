package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablesCoverMetadataSchema(t *testing.T) {
	byName := make(map[string]TableDef)
	for _, tbl := range Tables() {
		byName[tbl.Name] = tbl
	}
	require.Contains(t, byName, "projects")
	require.Contains(t, byName, "collections")
	require.Contains(t, byName, "file_hashes")
	require.Contains(t, byName, "observations")

	fh := byName["file_hashes"]
	assert.NotNil(t, fh.Column("content_hash"))
	assert.True(t, fh.Column("deleted_at").Nullable)
	assert.Equal(t, [][]string{{"project_id", "collection", "file_path"}}, fh.Uniques)
}

func TestSQLiteDDLRendering(t *testing.T) {
	tbl := TableDef{
		Name: "things",
		Columns: []ColumnDef{
			{Name: "id", Type: "INTEGER", AutoIncrement: true},
			{Name: "name", Type: "TEXT"},
			{Name: "note", Type: "TEXT", Nullable: true, Default: "'x'"},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []ForeignKeyDef{
			{Column: "name", RefTable: "names", RefColumn: "id", OnDelete: "CASCADE"},
		},
		Uniques: [][]string{{"name"}},
		Indexes: []IndexDef{
			{Name: "idx_things_name", Columns: []string{"name"}},
		},
	}

	stmts := tbl.SQLiteDDL()
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS things")
	assert.Contains(t, stmts[0], "id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL")
	assert.Contains(t, stmts[0], "name TEXT NOT NULL")
	assert.Contains(t, stmts[0], "note TEXT DEFAULT 'x'")
	assert.NotContains(t, stmts[0], "note TEXT NOT NULL")
	assert.Contains(t, stmts[0], "UNIQUE(name)")
	assert.Contains(t, stmts[0], "FOREIGN KEY (name) REFERENCES names(id) ON DELETE CASCADE")
	assert.Contains(t, stmts[1], "CREATE INDEX IF NOT EXISTS idx_things_name")
}

func TestSQLiteDDLAllOrdersDependencies(t *testing.T) {
	all := strings.Join(SQLiteDDLAll(), ";\n")
	projects := strings.Index(all, "CREATE TABLE IF NOT EXISTS projects")
	fileHashes := strings.Index(all, "CREATE TABLE IF NOT EXISTS file_hashes")
	require.GreaterOrEqual(t, projects, 0)
	require.Greater(t, fileHashes, projects)
}
