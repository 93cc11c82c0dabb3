package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/dshills/goretrieve-mcp/internal/llm"
	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/internal/retriever"
	"github.com/dshills/goretrieve-mcp/internal/storage"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

const (
	fixtureRepo     = "acme/api"
	fixtureSnapshot = "snap-2024-06-01"
)

// RetrieveSuite runs the full pipeline against a real SQLite snapshot:
// storage adapter, local embedder, and retriever wired exactly as the
// server wires them.
type RetrieveSuite struct {
	suite.Suite
	store     *storage.Store
	retriever *retriever.Retriever
}

func TestRetrieveSuite(t *testing.T) {
	suite.Run(t, new(RetrieveSuite))
}

func (s *RetrieveSuite) SetupTest() {
	store, err := storage.Open(filepath.Join(s.T().TempDir(), "snapshots.db"))
	s.Require().NoError(err)
	s.store = store

	s.loadSnapshot()

	embedder := llm.NewLocalEmbedder(llm.NewCache(64))
	ret, err := retriever.New(retriever.Deps{
		Vector:     storage.NewVectorIndex(store, embedder),
		Lexical:    store.Lexical(),
		Symbols:    store.Symbols(),
		Chunks:     store,
		Importance: store,
	}, retriever.DefaultConfig())
	s.Require().NoError(err)
	s.retriever = ret
}

func (s *RetrieveSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

// loadSnapshot populates a small session-management codebase: four
// chunks, a three-symbol call chain, and an importance map covering
// everything.
func (s *RetrieveSuite) loadSnapshot() {
	ctx := context.Background()
	embedder := llm.NewLocalEmbedder(nil)

	s.Require().NoError(s.store.LoadInto(ctx, fixtureRepo, fixtureSnapshot))

	chunks := []ports.ChunkRecord{
		{
			ChunkID: "chunk-login", FilePath: "internal/auth/login.go",
			StartLine: 12, EndLine: 40,
			Content: "func HandleLogin(w http.ResponseWriter, r *http.Request) { user := authenticate(r); sess, err := CreateSession(user.ID); setCookie(w, sess) }",
		},
		{
			ChunkID: "chunk-create", FilePath: "internal/session/create.go",
			StartLine: 10, EndLine: 28,
			Content: "func CreateSession(userID string) (*Session, error) { s := newSession(userID); cache.put(s); return s, nil }",
		},
		{
			ChunkID: "chunk-cache", FilePath: "internal/session/cache.go",
			StartLine: 5, EndLine: 44,
			Content: "type sessionCache struct { mu sync.Mutex; entries map[string]*Session } func (c *sessionCache) put(s *Session) { c.entries[s.ID] = s } // caching of live sessions",
		},
		{
			ChunkID: "chunk-invalidate", FilePath: "internal/session/invalidate.go",
			StartLine: 1, EndLine: 18,
			Content: "func InvalidateSession(id string) error { cache.remove(id); return store.invalidate(id) }",
		},
	}
	for _, chunk := range chunks {
		vector, err := embedder.Embed(ctx, chunk.Content)
		s.Require().NoError(err)
		s.Require().NoError(s.store.LoadChunk(ctx, chunk, vector))
	}

	symbols := []storage.SymbolRecord{
		{SymbolID: "sym-login", Name: "HandleLogin", Kind: "function",
			QualifiedName: "auth.HandleLogin", FilePath: "internal/auth/login.go",
			ChunkIDs: []string{"chunk-login"}},
		{SymbolID: "sym-create", Name: "CreateSession", Kind: "function",
			QualifiedName: "session.CreateSession", FilePath: "internal/session/create.go",
			ChunkIDs: []string{"chunk-create"}},
		{SymbolID: "sym-put", Name: "put", Kind: "method",
			QualifiedName: "session.sessionCache.put", FilePath: "internal/session/cache.go",
			ChunkIDs: []string{"chunk-cache"}},
	}
	for _, sym := range symbols {
		s.Require().NoError(s.store.LoadSymbol(ctx, sym))
	}

	edges := []ports.CallEdge{
		{FromSymbolID: "sym-login", ToSymbolID: "sym-create", Kind: ports.EdgeDirect},
		{FromSymbolID: "sym-create", ToSymbolID: "sym-put", Kind: ports.EdgeDirect},
	}
	for _, edge := range edges {
		s.Require().NoError(s.store.LoadCallEdge(ctx, edge))
	}

	nodes := []ports.ImportanceNode{
		{ID: "node-root", Path: ".", Kind: "module",
			Importance: 1.0, Depth: 0, IsEntrypoint: true},
		{ID: "node-auth", ParentID: "node-root", Path: "internal/auth",
			QualifiedName: "auth", Kind: "module",
			Importance: 0.9, PageRank: 0.5, EdgeDegree: 4, Depth: 1, BodyLines: 120,
			ChunkIDs: []string{"chunk-login"}},
		{ID: "node-session", ParentID: "node-root", Path: "internal/session",
			QualifiedName: "session", Kind: "module",
			Importance: 0.8, PageRank: 0.4, EdgeDegree: 7, Depth: 1, BodyLines: 300,
			ChunkIDs: []string{"chunk-create", "chunk-cache", "chunk-invalidate"}},
	}
	for _, node := range nodes {
		s.Require().NoError(s.store.LoadImportanceNode(ctx, node))
	}
}

func (s *RetrieveSuite) query(text string) types.Query {
	return types.Query{
		RepoID:      fixtureRepo,
		SnapshotID:  fixtureSnapshot,
		Text:        text,
		TokenBudget: 1000,
	}
}

func (s *RetrieveSuite) TestConceptQueryEndToEnd() {
	result, err := s.retriever.Retrieve(context.Background(), s.query("how does session caching work"))
	s.Require().NoError(err)

	s.Equal(types.IntentConcept, result.Intent.Kind)
	s.Equal(types.MethodRules, result.Intent.Method)

	s.Equal(types.ScopeFocused, result.Scope.Type, "importance map is loaded, scope narrows")
	s.NotEmpty(result.Scope.FocusNodes)

	s.Require().NotEmpty(result.Context.Chunks)
	s.LessOrEqual(result.Context.TotalTokens, 1000)
	s.Greater(result.Context.TotalTokens, 0)

	for _, chunk := range result.Context.Chunks {
		s.NotEmpty(chunk.Content)
		s.NotEmpty(chunk.FilePath)
	}
	s.NotEmpty(result.Metadata.RequestID)
	s.False(result.Metadata.CacheHit)
}

func (s *RetrieveSuite) TestFlowQueryExpandsCallGraph() {
	result, err := s.retriever.Retrieve(context.Background(),
		s.query("trace the call path from HandleLogin to the session store"))
	s.Require().NoError(err)

	s.Equal(types.IntentFlow, result.Intent.Kind)

	var graphRan bool
	for _, report := range result.Metadata.Reports {
		if report.Strategy == types.StrategyGraph {
			graphRan = true
			s.Equal("enrichment", report.Tier)
			s.Empty(report.Err)
		}
	}
	s.True(graphRan, "flow intent runs graph enrichment")

	var foundByGraph bool
	for _, hit := range result.Fused {
		if hit.FoundBy(types.StrategyGraph) {
			foundByGraph = true
		}
	}
	s.True(foundByGraph, "call-graph expansion from HandleLogin reaches its callees")
}

func (s *RetrieveSuite) TestRequestedIndicesRestrictFanOut() {
	query := s.query("InvalidateSession")
	query.RequestedIndices = []types.StrategyID{types.StrategyLexical}

	result, err := s.retriever.Retrieve(context.Background(), query)
	s.Require().NoError(err)

	s.Require().NotEmpty(result.Metadata.Reports)
	for _, report := range result.Metadata.Reports {
		s.Equal(types.StrategyLexical, report.Strategy)
	}
	s.Require().NotEmpty(result.Context.Chunks)
	s.Equal("internal/session/invalidate.go", result.Context.Chunks[0].FilePath)
}

func (s *RetrieveSuite) TestGraphOnlyRequestExpandsFromSymbolSeed() {
	query := s.query("CreateSession")
	query.RequestedIndices = []types.StrategyID{types.StrategyGraph}

	result, err := s.retriever.Retrieve(context.Background(), query)
	s.Require().NoError(err)

	s.Require().NotEmpty(result.Metadata.Reports, "a graph-only request still searches")
	for _, report := range result.Metadata.Reports {
		s.Equal(types.StrategyGraph, report.Strategy)
		s.Empty(report.Err)
	}

	// The symbol seed expands both directions of the call chain
	var reached []string
	for _, hit := range result.Fused {
		if hit.FoundBy(types.StrategyGraph) {
			reached = append(reached, hit.ChunkID)
		}
	}
	s.Contains(reached, "chunk-cache", "callee of CreateSession")
	s.Contains(reached, "chunk-login", "caller of CreateSession")
	s.Require().NotEmpty(result.Context.Chunks)
}

func (s *RetrieveSuite) TestRepeatedQueryHitsCache() {
	ctx := context.Background()
	query := s.query("how does session caching work")

	first, err := s.retriever.Retrieve(ctx, query)
	s.Require().NoError(err)
	second, err := s.retriever.Retrieve(ctx, query)
	s.Require().NoError(err)

	s.False(first.Metadata.CacheHit)
	s.True(second.Metadata.CacheHit)
	s.NotEqual(first.Metadata.RequestID, second.Metadata.RequestID)
	s.Equal(first.Context.TotalTokens, second.Context.TotalTokens)
}

func (s *RetrieveSuite) TestValidationRejectsBeforeBackends() {
	_, err := s.retriever.Retrieve(context.Background(), types.Query{
		RepoID:      fixtureRepo,
		SnapshotID:  fixtureSnapshot,
		Text:        "",
		TokenBudget: 1000,
	})
	s.True(types.IsValidation(err))
}
