// Package storage is the SQLite snapshot adapter. It implements the
// chunk-store, lexical, symbol, and importance-map ports over a single
// database file holding one or more precomputed repository snapshots,
// for local and offline serving.
//
// Serving is read-only; the Load* methods exist so snapshot files can
// be populated offline and so tests can build fixtures. The package
// compiles against two drivers selected by build tag: mattn/go-sqlite3
// with the sqlite-vec extension (tag sqlite_vec, CGO) or modernc.org/
// sqlite (pure Go, the default). Vector similarity runs in SQL on the
// first and in Go on the second.
package storage
