package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Port views. The lexical and symbol ports both expose a Search method
// with different semantics, so each gets its own thin view over the
// shared store.

// Lexical returns the lexical-index view of the store.
func (s *Store) Lexical() ports.LexicalIndex {
	return lexicalIndex{store: s}
}

// Symbols returns the symbol-index view of the store.
func (s *Store) Symbols() ports.SymbolIndex {
	return symbolIndex{store: s}
}

type lexicalIndex struct {
	store *Store
}

func (l lexicalIndex) Search(ctx context.Context, q ports.SearchQuery) ([]types.StrategyHit, error) {
	return l.store.LexicalSearch(ctx, q)
}

type symbolIndex struct {
	store *Store
}

func (s symbolIndex) Search(ctx context.Context, q ports.SearchQuery) ([]types.StrategyHit, error) {
	return s.store.SymbolSearch(ctx, q)
}

func (s symbolIndex) GetCallers(ctx context.Context, symbolID string) ([]ports.CallEdge, error) {
	return s.store.GetCallers(ctx, symbolID)
}

func (s symbolIndex) GetCallees(ctx context.Context, symbolID string) ([]ports.CallEdge, error) {
	return s.store.GetCallees(ctx, symbolID)
}

func (s symbolIndex) ChunksForSymbol(ctx context.Context, symbolID string) ([]string, error) {
	return s.store.ChunksForSymbol(ctx, symbolID)
}

// Chunk store port

// GetChunk resolves one chunk id.
func (s *Store) GetChunk(ctx context.Context, chunkID string) (*ports.ChunkRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, content, file_path, start_line, end_line, summary, is_test, is_mock
		FROM chunks WHERE chunk_id = ?`, chunkID)

	record, err := scanChunk(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", chunkID, types.ErrChunkNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", chunkID, err)
	}
	return record, nil
}

// GetChunksBatch resolves many chunk ids in one query. Missing ids are
// simply absent from the result map.
func (s *Store) GetChunksBatch(ctx context.Context, chunkIDs []string) (map[string]*ports.ChunkRecord, error) {
	out := make(map[string]*ports.ChunkRecord, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT chunk_id, content, file_path, start_line, end_line, summary, is_test, is_mock
		FROM chunks WHERE chunk_id IN (%s)`, placeholders(len(chunkIDs)))

	rows, err := s.db.QueryContext(ctx, query, stringArgs(chunkIDs)...)
	if err != nil {
		return nil, fmt.Errorf("batch chunk query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		record, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out[record.ChunkID] = record
	}
	return out, rows.Err()
}

func scanChunk(scan func(...any) error) (*ports.ChunkRecord, error) {
	var record ports.ChunkRecord
	err := scan(&record.ChunkID, &record.Content, &record.FilePath,
		&record.StartLine, &record.EndLine, &record.Summary,
		&record.IsTest, &record.IsMock)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Lexical search

// LexicalSearch runs BM25 full-text search over chunk content,
// degrading to a LIKE scan when the FTS query cannot be executed.
func (s *Store) LexicalSearch(ctx context.Context, q ports.SearchQuery) ([]types.StrategyHit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	hits, err := s.searchFTS(ctx, q, limit)
	if err == nil {
		return hits, nil
	}
	return s.searchLike(ctx, q, limit)
}

func (s *Store) searchFTS(ctx context.Context, q ports.SearchQuery, limit int) ([]types.StrategyHit, error) {
	sanitized := sanitizeFTSQuery(q.Text)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.rowid = c.rowid
		WHERE chunks_fts MATCH ? AND c.repo_id = ? AND c.snapshot_id = ?
		ORDER BY score LIMIT ?`,
		sanitized, q.RepoID, q.SnapshotID, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []types.StrategyHit
	for rows.Next() {
		var chunkID string
		var bm25 float64
		if err := rows.Scan(&chunkID, &bm25); err != nil {
			return nil, err
		}
		// BM25 scores are negative, lower is better; normalize to (0, 1]
		hits = append(hits, types.StrategyHit{
			Strategy: types.StrategyLexical,
			Rank:     len(hits) + 1,
			Score:    1.0 / (1.0 + math.Abs(bm25)/50.0),
			ChunkID:  chunkID,
		})
	}
	return hits, rows.Err()
}

// searchLike is the degraded lexical path: score by how many query
// tokens a chunk contains.
func (s *Store) searchLike(ctx context.Context, q ports.SearchQuery, limit int) ([]types.StrategyHit, error) {
	tokens := queryTokens(q.Text)
	if len(tokens) == 0 {
		return nil, nil
	}

	exprs := make([]string, len(tokens))
	args := make([]any, 0, len(tokens)+3)
	for i, token := range tokens {
		exprs[i] = "(content LIKE ?)"
		args = append(args, "%"+token+"%")
	}
	args = append(args, q.RepoID, q.SnapshotID, limit)

	query := fmt.Sprintf(`
		SELECT chunk_id, (%s) AS matches
		FROM chunks
		WHERE repo_id = ? AND snapshot_id = ?
		ORDER BY matches DESC, chunk_id
		LIMIT ?`, strings.Join(exprs, " + "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("like search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []types.StrategyHit
	for rows.Next() {
		var chunkID string
		var matches int
		if err := rows.Scan(&chunkID, &matches); err != nil {
			return nil, err
		}
		if matches == 0 {
			continue
		}
		hits = append(hits, types.StrategyHit{
			Strategy: types.StrategyLexical,
			Rank:     len(hits) + 1,
			Score:    float64(matches) / float64(len(tokens)),
			ChunkID:  chunkID,
		})
	}
	return hits, rows.Err()
}

// Symbol search and call graph

// symbolRow is an intermediate read; chunk links are resolved after the
// row cursor closes since the pool holds a single connection.
type symbolRow struct {
	info  types.SymbolInfo
	score float64
}

// SymbolSearch ranks symbols by name match quality: exact name first,
// then prefix, then containment in the qualified name.
func (s *Store) SymbolSearch(ctx context.Context, q ports.SearchQuery) ([]types.StrategyHit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	tokens := queryTokens(q.Text)
	if len(tokens) == 0 {
		return nil, nil
	}

	best := make(map[string]symbolRow)
	for _, token := range tokens {
		matches, err := s.matchSymbols(ctx, q, token, limit*2)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if prev, ok := best[m.info.ID]; !ok || m.score > prev.score {
				best[m.info.ID] = m
			}
		}
	}

	ranked := make([]symbolRow, 0, len(best))
	for _, m := range best {
		ranked = append(ranked, m)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].info.ID < ranked[j].info.ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	hits := make([]types.StrategyHit, 0, len(ranked))
	for _, m := range ranked {
		chunkID, err := s.firstChunkForSymbol(ctx, m.info.ID)
		if err != nil {
			return nil, err
		}
		if chunkID == "" {
			continue
		}
		info := m.info
		hits = append(hits, types.StrategyHit{
			Strategy: types.StrategySymbol,
			Rank:     len(hits) + 1,
			Score:    m.score,
			ChunkID:  chunkID,
			Symbol:   &info,
		})
	}
	return hits, nil
}

func (s *Store) matchSymbols(ctx context.Context, q ports.SearchQuery, token string, limit int) ([]symbolRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol_id, name, kind, qualified_name
		FROM symbols
		WHERE repo_id = ? AND snapshot_id = ?
		AND (name = ? COLLATE NOCASE OR name LIKE ? OR qualified_name LIKE ?)
		ORDER BY LENGTH(name), symbol_id LIMIT ?`,
		q.RepoID, q.SnapshotID, token, "%"+token+"%", "%"+token+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("symbol search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []symbolRow
	for rows.Next() {
		var info types.SymbolInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Kind, &info.QualifiedName); err != nil {
			return nil, err
		}
		score := 0.4
		if strings.EqualFold(info.Name, token) {
			score = 1.0
		} else if strings.HasPrefix(strings.ToLower(info.Name), strings.ToLower(token)) {
			score = 0.7
		}
		matches = append(matches, symbolRow{info: info, score: score})
	}
	return matches, rows.Err()
}

func (s *Store) firstChunkForSymbol(ctx context.Context, symbolID string) (string, error) {
	var chunkID string
	err := s.db.QueryRowContext(ctx, `
		SELECT chunk_id FROM symbol_chunks WHERE symbol_id = ? ORDER BY chunk_id LIMIT 1`,
		symbolID).Scan(&chunkID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return chunkID, err
}

// GetCallers returns edges into a symbol.
func (s *Store) GetCallers(ctx context.Context, symbolID string) ([]ports.CallEdge, error) {
	return s.queryEdges(ctx, `
		SELECT from_symbol_id, to_symbol_id, kind
		FROM call_edges WHERE to_symbol_id = ? ORDER BY from_symbol_id`, symbolID)
}

// GetCallees returns edges out of a symbol.
func (s *Store) GetCallees(ctx context.Context, symbolID string) ([]ports.CallEdge, error) {
	return s.queryEdges(ctx, `
		SELECT from_symbol_id, to_symbol_id, kind
		FROM call_edges WHERE from_symbol_id = ? ORDER BY to_symbol_id`, symbolID)
}

func (s *Store) queryEdges(ctx context.Context, query, symbolID string) ([]ports.CallEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, symbolID)
	if err != nil {
		return nil, fmt.Errorf("call edges for %s: %w", symbolID, err)
	}
	defer func() { _ = rows.Close() }()

	var edges []ports.CallEdge
	for rows.Next() {
		var edge ports.CallEdge
		var kind string
		if err := rows.Scan(&edge.FromSymbolID, &edge.ToSymbolID, &kind); err != nil {
			return nil, err
		}
		edge.Kind = ports.EdgeKind(kind)
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// ChunksForSymbol maps a symbol to the chunks covering its body.
func (s *Store) ChunksForSymbol(ctx context.Context, symbolID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id FROM symbol_chunks WHERE symbol_id = ? ORDER BY chunk_id`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("chunks for symbol %s: %w", symbolID, err)
	}
	defer func() { _ = rows.Close() }()

	var chunkIDs []string
	for rows.Next() {
		var chunkID string
		if err := rows.Scan(&chunkID); err != nil {
			return nil, err
		}
		chunkIDs = append(chunkIDs, chunkID)
	}
	return chunkIDs, rows.Err()
}

// Importance-map port

// GetMap loads the full node tree for a snapshot.
func (s *Store) GetMap(ctx context.Context, repoID, snapshotID string) (*ports.ImportanceMap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, parent_id, path, qualified_name, kind,
		       importance, pagerank, edge_degree, depth, body_lines,
		       is_test, is_entrypoint
		FROM importance_nodes
		WHERE repo_id = ? AND snapshot_id = ?
		ORDER BY node_id`, repoID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("importance map: %w", err)
	}

	m := &ports.ImportanceMap{RepoID: repoID, SnapshotID: snapshotID}
	for rows.Next() {
		var node ports.ImportanceNode
		err := rows.Scan(&node.ID, &node.ParentID, &node.Path, &node.QualifiedName,
			&node.Kind, &node.Importance, &node.PageRank, &node.EdgeDegree,
			&node.Depth, &node.BodyLines, &node.IsTest, &node.IsEntrypoint)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		m.Nodes = append(m.Nodes, node)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(m.Nodes) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", repoID, snapshotID, types.ErrImportanceMapUnavailable)
	}

	// Chunk links resolve after the node cursor closes; the pool holds
	// a single connection
	for i := range m.Nodes {
		m.Nodes[i].ChunkIDs, err = s.nodeChunks(ctx, m.Nodes[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (s *Store) nodeChunks(ctx context.Context, nodeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id FROM importance_node_chunks WHERE node_id = ? ORDER BY chunk_id`, nodeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunkIDs []string
	for rows.Next() {
		var chunkID string
		if err := rows.Scan(&chunkID); err != nil {
			return nil, err
		}
		chunkIDs = append(chunkIDs, chunkID)
	}
	return chunkIDs, rows.Err()
}

// Helpers

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// queryTokens extracts searchable tokens, dropping punctuation and
// one-character fragments.
func queryTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})
	var tokens []string
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
