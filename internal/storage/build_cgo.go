//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled when building with CGO and the sqlite_vec tag. Enables the
// sqlite-vec extension so cosine distance is computed inside SQLite.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
