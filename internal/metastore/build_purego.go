//go:build !sqlite_cgo

package metastore

// Default build: pure Go driver, no C toolchain needed, cross-compiles
// everywhere:
//
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver in this build.
	DriverName = "sqlite"

	// BuildMode names the active driver configuration.
	BuildMode = "purego"
)
