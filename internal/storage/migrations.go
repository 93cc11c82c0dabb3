package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the snapshot database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
}

// AllMigrations contains all schema migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- One row per loaded repository snapshot
CREATE TABLE IF NOT EXISTS snapshots (
    repo_id TEXT NOT NULL,
    snapshot_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (repo_id, snapshot_id)
);

-- Chunks: the retrievable unit of content
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id TEXT PRIMARY KEY,
    repo_id TEXT NOT NULL,
    snapshot_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    start_line INTEGER DEFAULT 0,
    end_line INTEGER DEFAULT 0,
    content TEXT NOT NULL,
    summary TEXT DEFAULT '',
    is_test BOOLEAN DEFAULT 0,
    is_mock BOOLEAN DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_chunks_snapshot ON chunks(repo_id, snapshot_id);
CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(file_path);

-- Full-text search over chunk content
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    content,
    content='chunks',
    content_rowid='rowid'
);

-- Triggers to keep FTS in sync with snapshot loads
CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
END;
CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END;

-- Embeddings: one vector per chunk
CREATE TABLE IF NOT EXISTS embeddings (
    chunk_id TEXT PRIMARY KEY,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    FOREIGN KEY (chunk_id) REFERENCES chunks(chunk_id) ON DELETE CASCADE
);

-- Symbols and the call graph
CREATE TABLE IF NOT EXISTS symbols (
    symbol_id TEXT PRIMARY KEY,
    repo_id TEXT NOT NULL,
    snapshot_id TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT DEFAULT '',
    qualified_name TEXT DEFAULT '',
    file_path TEXT DEFAULT '',
    is_test BOOLEAN DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_symbols_snapshot ON symbols(repo_id, snapshot_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_qualified ON symbols(qualified_name);

CREATE TABLE IF NOT EXISTS symbol_chunks (
    symbol_id TEXT NOT NULL,
    chunk_id TEXT NOT NULL,
    PRIMARY KEY (symbol_id, chunk_id),
    FOREIGN KEY (symbol_id) REFERENCES symbols(symbol_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS call_edges (
    from_symbol_id TEXT NOT NULL,
    to_symbol_id TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'direct',
    PRIMARY KEY (from_symbol_id, to_symbol_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_from ON call_edges(from_symbol_id);
CREATE INDEX IF NOT EXISTS idx_edges_to ON call_edges(to_symbol_id);

-- Importance map
CREATE TABLE IF NOT EXISTS importance_nodes (
    node_id TEXT PRIMARY KEY,
    repo_id TEXT NOT NULL,
    snapshot_id TEXT NOT NULL,
    parent_id TEXT DEFAULT '',
    path TEXT DEFAULT '',
    qualified_name TEXT DEFAULT '',
    kind TEXT DEFAULT '',
    importance REAL DEFAULT 0,
    pagerank REAL DEFAULT 0,
    edge_degree INTEGER DEFAULT 0,
    depth INTEGER DEFAULT 0,
    body_lines INTEGER DEFAULT 0,
    is_test BOOLEAN DEFAULT 0,
    is_entrypoint BOOLEAN DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_importance_snapshot ON importance_nodes(repo_id, snapshot_id);

CREATE TABLE IF NOT EXISTS importance_node_chunks (
    node_id TEXT NOT NULL,
    chunk_id TEXT NOT NULL,
    PRIMARY KEY (node_id, chunk_id),
    FOREIGN KEY (node_id) REFERENCES importance_nodes(node_id) ON DELETE CASCADE
);

INSERT OR IGNORE INTO schema_version (version) VALUES ('1.0.0');
`

// ApplyMigrations brings the database to the current schema version.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	applied, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		pending, err := versionGreater(m.Version, applied)
		if err != nil {
			return fmt.Errorf("migration version %q: %w", m.Version, err)
		}
		if !pending {
			continue
		}
		if _, err := db.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
	}
	return nil
}

// appliedVersion reads the highest applied schema version. A fresh
// database reports the empty version.
func appliedVersion(ctx context.Context, db *sql.DB) (string, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`,
	).Scan(&exists)
	if err != nil {
		return "", err
	}
	if exists == 0 {
		return "", nil
	}

	var version sql.NullString
	err = db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return "", err
	}
	return version.String, nil
}

// versionGreater reports whether candidate > applied under semver rules.
func versionGreater(candidate, applied string) (bool, error) {
	if applied == "" {
		return true, nil
	}
	cv, err := semver.NewVersion(candidate)
	if err != nil {
		return false, err
	}
	av, err := semver.NewVersion(applied)
	if err != nil {
		return false, err
	}
	return cv.GreaterThan(av), nil
}
