package scope

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// mockImportanceStore implements ports.ImportanceStore for testing
type mockImportanceStore struct {
	m   *ports.ImportanceMap
	err error
}

func (s *mockImportanceStore) GetMap(ctx context.Context, repoID, snapshotID string) (*ports.ImportanceMap, error) {
	return s.m, s.err
}

func testMap() *ports.ImportanceMap {
	return &ports.ImportanceMap{
		RepoID:     "repo",
		SnapshotID: "snap",
		Nodes: []ports.ImportanceNode{
			{ID: "root", Path: "/", Kind: "module", Importance: 1.0, Depth: 0, ChunkIDs: []string{"c-root"}},
			{ID: "main", ParentID: "root", Path: "cmd/main.go", QualifiedName: "main.main", Kind: "function",
				Importance: 0.9, PageRank: 0.4, EdgeDegree: 3, Depth: 1, BodyLines: 40, IsEntrypoint: true,
				ChunkIDs: []string{"c-main"}},
			{ID: "auth", ParentID: "root", Path: "internal/auth/auth.go", QualifiedName: "auth.Login", Kind: "function",
				Importance: 0.8, PageRank: 0.9, EdgeDegree: 12, Depth: 2, BodyLines: 60,
				ChunkIDs: []string{"c-auth1", "c-auth2"}},
			{ID: "authhelper", ParentID: "auth", Path: "internal/auth/helper.go", QualifiedName: "auth.hashPassword", Kind: "function",
				Importance: 0.3, PageRank: 0.1, EdgeDegree: 2, Depth: 3, BodyLines: 15,
				ChunkIDs: []string{"c-helper"}},
			{ID: "authtest", ParentID: "auth", Path: "internal/auth/auth_test.go", QualifiedName: "auth.TestLogin", Kind: "function",
				Importance: 0.5, PageRank: 0.2, EdgeDegree: 1, Depth: 3, BodyLines: 80, IsTest: true,
				ChunkIDs: []string{"c-authtest"}},
			{ID: "tiny", ParentID: "root", Path: "internal/util/tiny.go", QualifiedName: "util.id", Kind: "function",
				Importance: 0.2, PageRank: 0.05, EdgeDegree: 0, Depth: 2, BodyLines: 2,
				ChunkIDs: []string{"c-tiny"}},
		},
	}
}

func query() types.Query {
	return types.Query{RepoID: "repo", SnapshotID: "snap", Text: "q", TokenBudget: 1000}
}

func TestSelectDegradesWhenMapMissing(t *testing.T) {
	tests := []struct {
		name  string
		store ports.ImportanceStore
	}{
		{"nil store", nil},
		{"store error", &mockImportanceStore{err: types.ErrImportanceMapUnavailable}},
		{"empty map", &mockImportanceStore{m: &ports.ImportanceMap{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(tt.store)
			sc := s.Select(context.Background(), query(), types.IntentResult{Kind: types.IntentCode})

			assert.Equal(t, types.ScopeFullRepo, sc.Type)
			assert.Equal(t, ReasonMapMissing, sc.Reason)
			assert.False(t, sc.Focused())
			assert.True(t, sc.Contains("anything"))
		})
	}
}

func TestSelectByHintsTakesPriority(t *testing.T) {
	s := NewSelector(&mockImportanceStore{m: testMap()})

	q := query()
	q.Hints = types.QueryHints{Symbols: []string{"auth.Login"}}

	sc := s.Select(context.Background(), q, types.IntentResult{Kind: types.IntentCode})

	require.Equal(t, types.ScopeSymbolOnly, sc.Type)
	assert.Equal(t, ReasonHints, sc.Reason)
	assert.Contains(t, sc.FocusNodes, "auth")

	// Subtree expansion pulls in descendant chunks
	assert.True(t, sc.Contains("c-auth1"))
	assert.True(t, sc.Contains("c-helper"))
	assert.False(t, sc.Contains("c-main"))
}

func TestSelectFileHintIsFocusedScope(t *testing.T) {
	s := NewSelector(&mockImportanceStore{m: testMap()})

	q := query()
	q.Hints = types.QueryHints{Files: []string{"internal/auth"}}

	sc := s.Select(context.Background(), q, types.IntentResult{Kind: types.IntentCode})
	assert.Equal(t, types.ScopeFocused, sc.Type)
}

func TestSelectByIntentHeuristics(t *testing.T) {
	s := NewSelector(&mockImportanceStore{m: testMap()})

	t.Run("symbol favors pagerank", func(t *testing.T) {
		sc := s.Select(context.Background(), query(), types.IntentResult{Kind: types.IntentSymbol})
		require.Equal(t, types.ScopeFocused, sc.Type)
		// auth has the highest pagerank
		assert.Equal(t, "auth", sc.FocusNodes[0])
	})

	t.Run("flow favors edge degree", func(t *testing.T) {
		sc := s.Select(context.Background(), query(), types.IntentResult{Kind: types.IntentFlow})
		require.Equal(t, types.ScopeFocused, sc.Type)
		assert.Equal(t, "auth", sc.FocusNodes[0])
	})

	t.Run("code excludes tests and trivial bodies", func(t *testing.T) {
		sc := s.Select(context.Background(), query(), types.IntentResult{Kind: types.IntentCode})
		require.Equal(t, types.ScopeFocused, sc.Type)
		assert.NotContains(t, sc.FocusNodes, "authtest")
		assert.NotContains(t, sc.FocusNodes, "tiny")
	})

	t.Run("concept keeps entrypoints drops tests", func(t *testing.T) {
		sc := s.Select(context.Background(), query(), types.IntentResult{Kind: types.IntentConcept})
		require.Equal(t, types.ScopeFocused, sc.Type)
		assert.Contains(t, sc.FocusNodes, "main")
		assert.NotContains(t, sc.FocusNodes, "authtest")
	})

	t.Run("balanced searches full repo", func(t *testing.T) {
		sc := s.Select(context.Background(), query(), types.IntentResult{Kind: types.IntentBalanced})
		assert.Equal(t, types.ScopeFullRepo, sc.Type)
		assert.Equal(t, ReasonBalancedSkip, sc.Reason)
	})
}

func TestScopeCaps(t *testing.T) {
	// Build a map larger than both caps
	m := &ports.ImportanceMap{RepoID: "repo", SnapshotID: "snap"}
	for i := 0; i < 300; i++ {
		m.Nodes = append(m.Nodes, ports.ImportanceNode{
			ID:         fmt.Sprintf("n%03d", i),
			Path:       fmt.Sprintf("pkg/f%03d.go", i),
			Kind:       "function",
			Importance: 1.0 - float64(i)*0.001,
			PageRank:   0.5,
			EdgeDegree: 5,
			BodyLines:  50,
			ChunkIDs:   []string{fmt.Sprintf("c%03d-a", i), fmt.Sprintf("c%03d-b", i), fmt.Sprintf("c%03d-c", i)},
		})
	}

	s := NewSelector(&mockImportanceStore{m: m})
	sc := s.Select(context.Background(), query(), types.IntentResult{Kind: types.IntentCode})

	require.Equal(t, types.ScopeFocused, sc.Type)
	assert.LessOrEqual(t, len(sc.FocusNodes), types.MaxScopeNodes)
	assert.LessOrEqual(t, len(sc.ChunkIDs), types.MaxScopeChunkIDs)
}

func TestHintsFromQuery(t *testing.T) {
	hints := HintsFromQuery("find the handler path:internal/api symbol:HandleLogin module:auth")
	assert.Equal(t, []string{"internal/api"}, hints.Files)
	assert.Equal(t, []string{"HandleLogin"}, hints.Symbols)
	assert.Equal(t, []string{"auth"}, hints.Modules)

	assert.True(t, HintsFromQuery("plain query").Empty())
}

func TestSelectionIsDeterministic(t *testing.T) {
	s := NewSelector(&mockImportanceStore{m: testMap()})

	first := s.Select(context.Background(), query(), types.IntentResult{Kind: types.IntentSymbol})
	for i := 0; i < 5; i++ {
		again := s.Select(context.Background(), query(), types.IntentResult{Kind: types.IntentSymbol})
		assert.Equal(t, first.FocusNodes, again.FocusNodes)
	}
}
