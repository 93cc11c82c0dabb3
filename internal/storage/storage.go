package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dshills/goretrieve-mcp/internal/ports"
)

// Store serves one snapshot database. It implements the ChunkStore,
// LexicalIndex, SymbolIndex, and ImportanceStore ports; the vector port
// is layered on top by NewVectorIndex, which adds the query embedder.
type Store struct {
	db *sql.DB

	// Load target for the offline population API; serving paths take
	// repo/snapshot ids per call instead
	loadRepoID     string
	loadSnapshotID string
}

// Open opens (creating if absent) a snapshot database and applies
// migrations.
func Open(dbPath string) (*Store, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// openDatabase opens SQLite with the settings serving needs.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// Single connection: SQLite serializes writers anyway, and serving
	// reads share the page cache this way
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot loading. Serving never writes; these exist for offline
// snapshot population and test fixtures.

// LoadInto directs subsequent Load* calls at one snapshot and records
// the snapshot row. Loading is a single-writer offline operation.
func (s *Store) LoadInto(ctx context.Context, repoID, snapshotID string) error {
	s.loadRepoID = repoID
	s.loadSnapshotID = snapshotID
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO snapshots (repo_id, snapshot_id) VALUES (?, ?)`,
		repoID, snapshotID)
	return err
}

// LoadChunk inserts one chunk and, when vector is non-empty, its
// embedding.
func (s *Store) LoadChunk(ctx context.Context, record ports.ChunkRecord, vector []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(chunk_id, repo_id, snapshot_id, file_path, start_line, end_line, content, summary, is_test, is_mock)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ChunkID, s.loadRepoID, s.loadSnapshotID, record.FilePath,
		record.StartLine, record.EndLine, record.Content, record.Summary,
		record.IsTest, record.IsMock)
	if err != nil {
		return fmt.Errorf("load chunk %s: %w", record.ChunkID, err)
	}

	if len(vector) > 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO embeddings (chunk_id, vector, dimension)
			VALUES (?, ?, ?)`,
			record.ChunkID, serializeVector(vector), len(vector))
		if err != nil {
			return fmt.Errorf("load embedding %s: %w", record.ChunkID, err)
		}
	}
	return nil
}

// SymbolRecord is one symbol row plus its chunk coverage
type SymbolRecord struct {
	SymbolID      string
	Name          string
	Kind          string
	QualifiedName string
	FilePath      string
	IsTest        bool
	ChunkIDs      []string
}

// LoadSymbol inserts one symbol and its chunk links.
func (s *Store) LoadSymbol(ctx context.Context, record SymbolRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO symbols
			(symbol_id, repo_id, snapshot_id, name, kind, qualified_name, file_path, is_test)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.SymbolID, s.loadRepoID, s.loadSnapshotID,
		record.Name, record.Kind, record.QualifiedName, record.FilePath, record.IsTest)
	if err != nil {
		return fmt.Errorf("load symbol %s: %w", record.SymbolID, err)
	}
	for _, chunkID := range record.ChunkIDs {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO symbol_chunks (symbol_id, chunk_id) VALUES (?, ?)`,
			record.SymbolID, chunkID)
		if err != nil {
			return fmt.Errorf("link symbol %s: %w", record.SymbolID, err)
		}
	}
	return nil
}

// LoadCallEdge inserts one call-graph edge.
func (s *Store) LoadCallEdge(ctx context.Context, edge ports.CallEdge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO call_edges (from_symbol_id, to_symbol_id, kind)
		VALUES (?, ?, ?)`,
		edge.FromSymbolID, edge.ToSymbolID, string(edge.Kind))
	return err
}

// LoadImportanceNode inserts one importance-map node and its chunk links.
func (s *Store) LoadImportanceNode(ctx context.Context, node ports.ImportanceNode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO importance_nodes
			(node_id, repo_id, snapshot_id, parent_id, path, qualified_name, kind,
			 importance, pagerank, edge_degree, depth, body_lines, is_test, is_entrypoint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, s.loadRepoID, s.loadSnapshotID,
		node.ParentID, node.Path, node.QualifiedName, node.Kind,
		node.Importance, node.PageRank, node.EdgeDegree, node.Depth,
		node.BodyLines, node.IsTest, node.IsEntrypoint)
	if err != nil {
		return fmt.Errorf("load node %s: %w", node.ID, err)
	}
	for _, chunkID := range node.ChunkIDs {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO importance_node_chunks (node_id, chunk_id) VALUES (?, ?)`,
			node.ID, chunkID)
		if err != nil {
			return fmt.Errorf("link node %s: %w", node.ID, err)
		}
	}
	return nil
}
