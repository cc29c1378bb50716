//go:build sqlite_cgo

package metastore

// Compiled with the sqlite_cgo tag. Uses the C driver, which requires
// CGO but carries the fastest FTS5 implementation:
//
//   CGO_ENABLED=1 go build -tags sqlite_cgo ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver in this build.
	DriverName = "sqlite3"

	// BuildMode names the active driver configuration.
	BuildMode = "cgo"
)
