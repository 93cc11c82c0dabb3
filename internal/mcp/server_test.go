package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/goretrieve-mcp/internal/config"
	"github.com/dshills/goretrieve-mcp/internal/llm"
	"github.com/dshills/goretrieve-mcp/internal/ports"
)

const (
	testRepo     = "acme/api"
	testSnapshot = "snap-1"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "snapshots.db")
	cfg.Embedding.Provider = llm.ProviderLocal
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	server, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server
}

// loadFixtures populates a small snapshot: three session-related chunks
// with embeddings from the same local provider the server uses.
func loadFixtures(t *testing.T, s *Server) {
	t.Helper()
	ctx := context.Background()
	embedder := llm.NewLocalEmbedder(nil)

	require.NoError(t, s.store.LoadInto(ctx, testRepo, testSnapshot))

	chunks := []ports.ChunkRecord{
		{
			ChunkID: "chunk-create", FilePath: "internal/session/create.go",
			StartLine: 10, EndLine: 28,
			Content: "func CreateSession(userID string) (*Session, error) { s := newSession(userID); cache.put(s); return s, nil }",
		},
		{
			ChunkID: "chunk-cache", FilePath: "internal/session/cache.go",
			StartLine: 5, EndLine: 40,
			Content: "type sessionCache struct { mu sync.Mutex; entries map[string]*Session } // caching of live sessions with TTL eviction",
		},
		{
			ChunkID: "chunk-invalidate", FilePath: "internal/session/invalidate.go",
			StartLine: 1, EndLine: 15,
			Content: "func InvalidateSession(id string) error { cache.remove(id); return store.invalidate(id) }",
		},
	}
	for _, chunk := range chunks {
		vector, err := embedder.Embed(ctx, chunk.Content)
		require.NoError(t, err)
		require.NoError(t, s.store.LoadChunk(ctx, chunk, vector))
	}
}

// loadImportanceMap adds a minimal node tree so scope selection has
// something to narrow to.
func loadImportanceMap(t *testing.T, s *Server) {
	t.Helper()
	ctx := context.Background()

	nodes := []ports.ImportanceNode{
		{ID: "node-root", Path: ".", Kind: "module",
			Importance: 1.0, Depth: 0, IsEntrypoint: true},
		{ID: "node-session", ParentID: "node-root", Path: "internal/session",
			QualifiedName: "session", Kind: "module",
			Importance: 0.8, PageRank: 0.4, EdgeDegree: 6, Depth: 1, BodyLines: 200,
			ChunkIDs: []string{"chunk-create", "chunk-cache", "chunk-invalidate"}},
	}
	for _, node := range nodes {
		require.NoError(t, s.store.LoadImportanceNode(ctx, node))
	}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) map[string]interface{} {
	t.Helper()
	result, err := handler(context.Background(), toolRequest(args))
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool results are text content")

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &response))
	return response
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

func TestNewServerWiring(t *testing.T) {
	server := newTestServer(t, testConfig(t))
	assert.NotNil(t, server.mcp)
	assert.NotNil(t, server.store)
	assert.NotNil(t, server.retriever)
	assert.NotNil(t, server.learner)
}

func TestNewServerLearnerDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Learner.Enabled = false

	server := newTestServer(t, cfg)
	assert.Nil(t, server.learner)
}

func TestRetrieveContextTool(t *testing.T) {
	server := newTestServer(t, testConfig(t))
	loadFixtures(t, server)

	response := callTool(t, server.handleRetrieveContext, map[string]interface{}{
		"repo_id":      testRepo,
		"snapshot_id":  testSnapshot,
		"query":        "how does session caching work",
		"token_budget": float64(2000),
	})

	assert.NotEmpty(t, response["request_id"])
	assert.False(t, response["cache_hit"].(bool))

	intent := response["intent"].(map[string]interface{})
	assert.Equal(t, "concept", intent["kind"])
	assert.Equal(t, "rules", intent["method"], "no generator configured, rules classify")

	chunks := response["chunks"].([]interface{})
	require.NotEmpty(t, chunks)
	var paths []string
	for _, raw := range chunks {
		chunk := raw.(map[string]interface{})
		assert.NotEmpty(t, chunk["content"])
		paths = append(paths, chunk["file_path"].(string))
	}
	assert.Contains(t, paths, "internal/session/cache.go")

	totalTokens := int(response["total_tokens"].(float64))
	assert.LessOrEqual(t, totalTokens, 2000)
	assert.NotEmpty(t, response["reports"])
}

func TestRetrieveContextInlineHints(t *testing.T) {
	server := newTestServer(t, testConfig(t))
	loadFixtures(t, server)
	loadImportanceMap(t, server)

	// No structured hint arguments: the module: token inside the query
	// text drives scope selection
	response := callTool(t, server.handleRetrieveContext, map[string]interface{}{
		"repo_id":      testRepo,
		"snapshot_id":  testSnapshot,
		"query":        "module:session how is an expired session invalidated",
		"token_budget": float64(2000),
	})

	scopeInfo := response["scope"].(map[string]interface{})
	assert.Equal(t, "focused", scopeInfo["type"])
	assert.Equal(t, "explicit hints", scopeInfo["reason"])
	assert.NotEmpty(t, response["chunks"])
}

func TestRetrieveContextStructuredHintsWin(t *testing.T) {
	server := newTestServer(t, testConfig(t))
	loadFixtures(t, server)
	loadImportanceMap(t, server)

	// Structured hints suppress inline parsing; a files hint keeps the
	// scope focused rather than symbol-only
	response := callTool(t, server.handleRetrieveContext, map[string]interface{}{
		"repo_id":      testRepo,
		"snapshot_id":  testSnapshot,
		"query":        "symbol:NoSuchSymbol where sessions live",
		"files":        []interface{}{"internal/session"},
		"token_budget": float64(2000),
	})

	scopeInfo := response["scope"].(map[string]interface{})
	assert.Equal(t, "focused", scopeInfo["type"])
	assert.Equal(t, "explicit hints", scopeInfo["reason"])
}

func TestRetrieveContextValidation(t *testing.T) {
	server := newTestServer(t, testConfig(t))

	cases := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{
			name: "missing query",
			args: map[string]interface{}{"repo_id": testRepo, "snapshot_id": testSnapshot},
			code: ErrorCodeEmptyQuery,
		},
		{
			name: "missing snapshot",
			args: map[string]interface{}{"repo_id": testRepo, "query": "find sessions"},
			code: ErrorCodeInvalidParams,
		},
		{
			name: "unknown strategy",
			args: map[string]interface{}{
				"repo_id": testRepo, "snapshot_id": testSnapshot,
				"query":   "find sessions",
				"indices": []interface{}{"regex"},
			},
			code: ErrorCodeInvalidParams,
		},
		{
			name: "token budget out of range",
			args: map[string]interface{}{
				"repo_id": testRepo, "snapshot_id": testSnapshot,
				"query":        "find sessions",
				"token_budget": float64(50),
			},
			code: ErrorCodeInvalidParams,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := server.handleRetrieveContext(context.Background(), toolRequest(tc.args))
			require.Error(t, err)
			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, tc.code, mcpErr.Code)
		})
	}
}

func TestSubmitFeedbackTool(t *testing.T) {
	server := newTestServer(t, testConfig(t))

	response := callTool(t, server.handleSubmitFeedback, map[string]interface{}{
		"request_id":      "req-1",
		"query":           "how does session caching work",
		"intent":          "concept",
		"selected_chunks": []interface{}{"chunk-cache"},
		"contributions":   map[string]interface{}{"vector": float64(1)},
		"positive":        true,
	})

	assert.Equal(t, true, response["accepted"])
	assert.Equal(t, float64(1), response["submitted"])
	assert.Equal(t, float64(0), response["dropped"])
}

func TestSubmitFeedbackRequiresRequestID(t *testing.T) {
	server := newTestServer(t, testConfig(t))

	_, err := server.handleSubmitFeedback(context.Background(), toolRequest(map[string]interface{}{
		"query": "no id",
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestSubmitFeedbackLearningDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Learner.Enabled = false
	server := newTestServer(t, cfg)

	response := callTool(t, server.handleSubmitFeedback, map[string]interface{}{
		"request_id": "req-1",
	})
	assert.Equal(t, false, response["accepted"])
	assert.NotEmpty(t, response["reason"])
}

func TestRetrievalStatusTool(t *testing.T) {
	server := newTestServer(t, testConfig(t))

	response := callTool(t, server.handleRetrievalStatus, map[string]interface{}{})

	info := response["server"].(map[string]interface{})
	assert.Equal(t, ServerName, info["name"])
	assert.Equal(t, ServerVersion, info["version"])

	build := response["build"].(map[string]interface{})
	assert.NotEmpty(t, build["mode"])
	assert.NotEmpty(t, build["sqlite_driver"])

	// No generator configured: nothing has fallen back, nothing alarms
	classifier := response["classifier"].(map[string]interface{})
	assert.Equal(t, float64(0), classifier["fallback_rate"])
	assert.Equal(t, false, classifier["fallback_alarming"])

	learnerInfo := response["learner"].(map[string]interface{})
	assert.Equal(t, true, learnerInfo["enabled"])

	profiles := response["profiles"].(map[string]interface{})
	balanced := profiles["balanced"].(map[string]interface{})
	assert.Len(t, balanced, 4, "balanced profile weights every strategy")
	var sum float64
	for _, weight := range balanced {
		sum += weight.(float64)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}
