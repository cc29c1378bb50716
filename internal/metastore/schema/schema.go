// Package schema declares the metadata tables as value objects and
// renders them to dialect DDL. Keeping the definitions as data makes
// the schema inspectable by tests and keeps migration SQL generated
// rather than hand-maintained.
package schema

import (
	"fmt"
	"strings"
)

// ColumnDef describes one column.
type ColumnDef struct {
	Name          string
	Type          string // TEXT, INTEGER, TIMESTAMP, BLOB, REAL
	Nullable      bool
	Default       string // literal SQL default, empty for none
	AutoIncrement bool
}

// ForeignKeyDef describes a single-column foreign key.
type ForeignKeyDef struct {
	Column     string
	RefTable   string
	RefColumn  string
	OnDelete   string // CASCADE, SET NULL, empty for default
}

// IndexDef describes a secondary index.
type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
}

// TableDef describes one table.
type TableDef struct {
	Name        string
	Columns     []ColumnDef
	PrimaryKey  []string
	ForeignKeys []ForeignKeyDef
	Uniques     [][]string
	Indexes     []IndexDef
}

// Column looks a column up by name, nil when absent.
func (t *TableDef) Column(name string) *ColumnDef {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// SQLiteDDL renders the table plus its indexes as SQLite statements.
func (t *TableDef) SQLiteDDL() []string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)

	clauses := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+len(t.Uniques)+1)
	for _, c := range t.Columns {
		clauses = append(clauses, "    "+c.sqlite(t))
	}
	if len(t.PrimaryKey) > 1 {
		clauses = append(clauses, fmt.Sprintf("    PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))
	}
	for _, u := range t.Uniques {
		clauses = append(clauses, fmt.Sprintf("    UNIQUE(%s)", strings.Join(u, ", ")))
	}
	for _, fk := range t.ForeignKeys {
		clause := fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s(%s)", fk.Column, fk.RefTable, fk.RefColumn)
		if fk.OnDelete != "" {
			clause += " ON DELETE " + fk.OnDelete
		}
		clauses = append(clauses, clause)
	}
	b.WriteString(strings.Join(clauses, ",\n"))
	b.WriteString("\n)")

	stmts := []string{b.String()}
	for _, idx := range t.Indexes {
		kind := "INDEX"
		if idx.Unique {
			kind = "UNIQUE INDEX"
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s(%s)",
			kind, idx.Name, t.Name, strings.Join(idx.Columns, ", ")))
	}
	return stmts
}

func (c *ColumnDef) sqlite(t *TableDef) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(c.Type)
	if len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == c.Name {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

// Tables returns the authoritative metadata schema in creation order.
func Tables() []TableDef {
	return []TableDef{
		{
			Name: "projects",
			Columns: []ColumnDef{
				{Name: "id", Type: "TEXT"},
				{Name: "org_id", Type: "TEXT", Default: "'local'"},
				{Name: "name", Type: "TEXT"},
				{Name: "path", Type: "TEXT"},
				{Name: "created_at", Type: "TIMESTAMP", Default: "CURRENT_TIMESTAMP"},
				{Name: "updated_at", Type: "TIMESTAMP", Default: "CURRENT_TIMESTAMP"},
			},
			PrimaryKey: []string{"id"},
			Uniques:    [][]string{{"org_id", "name"}},
			Indexes: []IndexDef{
				{Name: "idx_projects_path", Columns: []string{"path"}, Unique: true},
			},
		},
		{
			Name: "collections",
			Columns: []ColumnDef{
				{Name: "id", Type: "TEXT"},
				{Name: "project_id", Type: "TEXT"},
				{Name: "name", Type: "TEXT"},
				{Name: "vector_name", Type: "TEXT"},
				{Name: "created_at", Type: "TIMESTAMP", Default: "CURRENT_TIMESTAMP"},
			},
			PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKeyDef{
				{Column: "project_id", RefTable: "projects", RefColumn: "id", OnDelete: "CASCADE"},
			},
			Uniques: [][]string{{"project_id", "name"}},
			Indexes: []IndexDef{
				{Name: "idx_collections_project", Columns: []string{"project_id"}},
			},
		},
		{
			Name: "file_hashes",
			Columns: []ColumnDef{
				{Name: "id", Type: "INTEGER", AutoIncrement: true},
				{Name: "project_id", Type: "TEXT"},
				{Name: "collection", Type: "TEXT"},
				{Name: "file_path", Type: "TEXT"},
				{Name: "content_hash", Type: "TEXT"},
				{Name: "indexed_at", Type: "TIMESTAMP"},
				{Name: "deleted_at", Type: "TIMESTAMP", Nullable: true},
				{Name: "origin_context", Type: "TEXT", Nullable: true},
			},
			PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKeyDef{
				{Column: "project_id", RefTable: "projects", RefColumn: "id", OnDelete: "CASCADE"},
			},
			Uniques: [][]string{{"project_id", "collection", "file_path"}},
			Indexes: []IndexDef{
				{Name: "idx_file_hashes_project", Columns: []string{"project_id"}},
				{Name: "idx_file_hashes_collection", Columns: []string{"collection"}},
				{Name: "idx_file_hashes_deleted", Columns: []string{"deleted_at"}},
			},
		},
		{
			Name: "observations",
			Columns: []ColumnDef{
				{Name: "id", Type: "TEXT"},
				{Name: "project_id", Type: "TEXT"},
				{Name: "content", Type: "TEXT"},
				{Name: "kind", Type: "TEXT", Default: "'note'"},
				{Name: "created_at", Type: "TIMESTAMP", Default: "CURRENT_TIMESTAMP"},
			},
			PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKeyDef{
				{Column: "project_id", RefTable: "projects", RefColumn: "id", OnDelete: "CASCADE"},
			},
			Indexes: []IndexDef{
				{Name: "idx_observations_project", Columns: []string{"project_id"}},
			},
		},
	}
}

// SQLiteDDLAll renders the full schema, tables in dependency order.
func SQLiteDDLAll() []string {
	var stmts []string
	for _, t := range Tables() {
		stmts = append(stmts, t.SQLiteDDL()...)
	}
	return stmts
}
