package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Embedder turns query text into an embedding vector. The LLM package
// provides implementations; tests stub it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex layers a query embedder over the store's stored chunk
// embeddings to implement the vector search port.
type VectorIndex struct {
	store    *Store
	embedder Embedder
}

// NewVectorIndex builds the vector port from a store and an embedder.
func NewVectorIndex(store *Store, embedder Embedder) *VectorIndex {
	return &VectorIndex{store: store, embedder: embedder}
}

// Search embeds the query text and ranks chunks by cosine similarity.
func (v *VectorIndex) Search(ctx context.Context, q ports.SearchQuery) ([]types.StrategyHit, error) {
	vector, err := v.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	results, err := v.store.VectorSearch(ctx, q.RepoID, q.SnapshotID, vector, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]types.StrategyHit, len(results))
	for i, result := range results {
		hits[i] = types.StrategyHit{
			Strategy: types.StrategyVector,
			Rank:     i + 1,
			Score:    result.Similarity,
			ChunkID:  result.ChunkID,
		}
	}
	return hits, nil
}

// VectorResult is one similarity-search result
type VectorResult struct {
	ChunkID    string
	Similarity float64
}

// VectorSearch ranks a snapshot's chunks against the query vector. With
// the sqlite-vec extension the distance runs in SQL; the pure Go build
// scans and scores candidates in process.
func (s *Store) VectorSearch(ctx context.Context, repoID, snapshotID string, vector []float32, limit int) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	if VectorExtensionAvailable {
		return s.vectorSearchSQL(ctx, repoID, snapshotID, vector, limit)
	}
	return s.vectorSearchScan(ctx, repoID, snapshotID, vector, limit)
}

// vectorSearchSQL computes cosine distance inside SQLite via sqlite-vec.
// Distance converts to similarity (1 - distance) for a higher-is-better
// scale.
func (s *Store) vectorSearchSQL(ctx context.Context, repoID, snapshotID string, vector []float32, limit int) ([]VectorResult, error) {
	blob := serializeVector(vector)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, 1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM chunks c
		INNER JOIN embeddings e ON c.chunk_id = e.chunk_id
		WHERE c.repo_id = ? AND c.snapshot_id = ?
		ORDER BY similarity DESC LIMIT ?`,
		blob, repoID, snapshotID, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.ChunkID, &result.Similarity); err != nil {
			return nil, fmt.Errorf("scan vector result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// vectorSearchScan is the pure Go path: fetch every candidate embedding
// and rank by cosine similarity in process.
func (s *Store) vectorSearchScan(ctx context.Context, repoID, snapshotID string, vector []float32, limit int) ([]VectorResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.chunk_id = e.chunk_id
		WHERE c.repo_id = ? AND c.snapshot_id = ?`,
		repoID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []VectorResult
	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, err
		}
		candidate := deserializeVector(blob)
		if len(candidate) != len(vector) {
			continue // Dimension mismatch, skip
		}
		candidates = append(candidates, VectorResult{
			ChunkID:    chunkID,
			Similarity: cosineSimilarity(vector, candidate),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FTS5 operator pattern for escaping Boolean operators
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery escapes FTS5 operators and special characters so raw
// user text cannot inject match syntax.
func sanitizeFTSQuery(query string) string {
	if query == "" {
		return ""
	}

	replacer := strings.NewReplacer(
		`"`, `\"`,
		`*`, `\*`,
		`(`, `\(`,
		`)`, `\)`,
	)
	escaped := replacer.Replace(query)

	return ftsOperatorPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return `\` + match
	})
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
