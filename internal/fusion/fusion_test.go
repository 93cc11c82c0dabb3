package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/goretrieve-mcp/pkg/types"
)

func strategyHits(strategy types.StrategyID, pairs ...interface{}) []types.StrategyHit {
	hits := make([]types.StrategyHit, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		hits = append(hits, types.StrategyHit{
			Strategy: strategy,
			ChunkID:  pairs[i].(string),
			Score:    pairs[i+1].(float64),
			Rank:     len(hits) + 1,
		})
	}
	return hits
}

func symbolIntent() types.IntentResult {
	return types.IntentResult{
		Kind:       types.IntentSymbol,
		Confidence: 0.9,
		Method:     types.MethodRules,
	}
}

func TestFuseConsensusWinner(t *testing.T) {
	// Chunk A is found by all three active strategies and must rank
	// first under symbol-navigation weights.
	hits := map[types.StrategyID][]types.StrategyHit{
		types.StrategyVector:  strategyHits(types.StrategyVector, "A", 0.9, "C", 0.8),
		types.StrategyLexical: strategyHits(types.StrategyLexical, "B", 25.0, "A", 15.0),
		types.StrategySymbol:  strategyHits(types.StrategySymbol, "A", 1.0, "F", 0.9),
	}

	e := NewEngine(DefaultConfig())
	fused := e.Fuse(hits, symbolIntent(), DefaultProfileTable())

	require.Len(t, fused, 4)
	assert.Equal(t, "A", fused[0].ChunkID)

	top := fused[0]
	assert.ElementsMatch(t, []types.StrategyID{types.StrategyVector, types.StrategyLexical, types.StrategySymbol}, top.Strategies)
	assert.Equal(t, 1, top.Ranks[types.StrategyVector])
	assert.Equal(t, 2, top.Ranks[types.StrategyLexical])
	assert.Greater(t, top.Consensus, 1.0)
}

func TestFuseSortedNonIncreasing(t *testing.T) {
	hits := map[types.StrategyID][]types.StrategyHit{
		types.StrategyVector:  strategyHits(types.StrategyVector, "A", 0.9, "B", 0.8, "C", 0.7),
		types.StrategyLexical: strategyHits(types.StrategyLexical, "C", 9.0, "D", 8.0),
	}

	e := NewEngine(DefaultConfig())
	fused := e.Fuse(hits, symbolIntent(), DefaultProfileTable())

	for i := 1; i < len(fused); i++ {
		assert.GreaterOrEqual(t, fused[i-1].Score, fused[i].Score)
	}
}

func TestFuseUniqueChunkIDs(t *testing.T) {
	// The same chunk surfaced twice by one strategy keeps its best rank
	hits := map[types.StrategyID][]types.StrategyHit{
		types.StrategySymbol: {
			{Strategy: types.StrategySymbol, ChunkID: "A", Rank: 1, Score: 1.0},
			{Strategy: types.StrategySymbol, ChunkID: "A", Rank: 3, Score: 0.5},
			{Strategy: types.StrategySymbol, ChunkID: "B", Rank: 2, Score: 0.8},
		},
	}

	e := NewEngine(DefaultConfig())
	fused := e.Fuse(hits, symbolIntent(), DefaultProfileTable())

	require.Len(t, fused, 2)
	seen := make(map[string]bool)
	for _, fh := range fused {
		assert.False(t, seen[fh.ChunkID])
		seen[fh.ChunkID] = true
	}
	assert.Equal(t, 1, fused[0].Ranks[types.StrategySymbol])
}

func TestConsensusBeatsBestSingleStrategy(t *testing.T) {
	e := NewEngine(DefaultConfig())
	table := DefaultProfileTable()

	// A hit by symbol alone at rank 1
	alone := e.Fuse(map[types.StrategyID][]types.StrategyHit{
		types.StrategySymbol: strategyHits(types.StrategySymbol, "A", 1.0),
	}, symbolIntent(), table)

	// Same chunk, same symbol rank, plus lexical agreement
	agreed := e.Fuse(map[types.StrategyID][]types.StrategyHit{
		types.StrategySymbol:  strategyHits(types.StrategySymbol, "A", 1.0),
		types.StrategyLexical: strategyHits(types.StrategyLexical, "A", 10.0),
	}, symbolIntent(), table)

	require.Len(t, alone, 1)
	require.Len(t, agreed, 1)
	assert.GreaterOrEqual(t, agreed[0].Score, alone[0].Score)
	assert.Greater(t, agreed[0].Consensus, alone[0].Consensus)
}

func TestWeakConsensusGetsHalfBoost(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg)

	// Strong agreement: rank-1 components clear the threshold
	strong := e.consensusMultiplier(2, cfg.StrongComponent*2)
	weak := e.consensusMultiplier(2, cfg.StrongComponent/2)

	assert.Greater(t, strong, weak)
	assert.Greater(t, weak, 1.0)

	// No boost for a single strategy regardless of strength
	assert.Equal(t, 1.0, e.consensusMultiplier(1, 1.0))
}

func TestConsensusCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsensusCap = 3
	e := NewEngine(cfg)

	capped := e.consensusMultiplier(3, 1.0)
	overCap := e.consensusMultiplier(4, 1.0)
	assert.Equal(t, capped, overCap)
}

func TestFuseTieBreaksByChunkID(t *testing.T) {
	// Two chunks with identical single-strategy components
	hits := map[types.StrategyID][]types.StrategyHit{
		types.StrategyVector: {
			{Strategy: types.StrategyVector, ChunkID: "zeta", Rank: 1, Score: 0.9},
		},
		types.StrategyLexical: {
			{Strategy: types.StrategyLexical, ChunkID: "alpha", Rank: 1, Score: 0.9},
		},
	}

	intent := types.IntentResult{Kind: types.IntentBalanced, Confidence: 1.0, Method: types.MethodRules}
	e := NewEngine(DefaultConfig())
	fused := e.Fuse(hits, intent, DefaultProfileTable())

	require.Len(t, fused, 2)
	assert.Equal(t, fused[0].Score, fused[1].Score)
	assert.Equal(t, "alpha", fused[0].ChunkID)
	assert.Equal(t, "zeta", fused[1].ChunkID)
}

func TestFuseDeterministic(t *testing.T) {
	hits := map[types.StrategyID][]types.StrategyHit{
		types.StrategyVector:  strategyHits(types.StrategyVector, "A", 0.9, "B", 0.8, "C", 0.7),
		types.StrategyLexical: strategyHits(types.StrategyLexical, "C", 9.0, "A", 8.0, "D", 7.0),
		types.StrategySymbol:  strategyHits(types.StrategySymbol, "B", 1.0, "E", 0.9),
		types.StrategyGraph:   strategyHits(types.StrategyGraph, "E", 0.8, "A", 0.6),
	}

	e := NewEngine(DefaultConfig())
	first := e.Fuse(hits, symbolIntent(), DefaultProfileTable())
	for i := 0; i < 10; i++ {
		again := e.Fuse(hits, symbolIntent(), DefaultProfileTable())
		require.Equal(t, first, again)
	}
}

func TestBlendProfiles(t *testing.T) {
	table := DefaultProfileTable()

	blended := table.Blend(map[types.IntentKind]float64{
		types.IntentSymbol:  0.5,
		types.IntentConcept: 0.5,
	})

	var sum float64
	for _, w := range blended {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// Halfway between symbol (0.20 vector) and concept (0.60 vector)
	assert.InDelta(t, 0.40, blended[types.StrategyVector], 1e-9)
}

func TestLowConfidenceBlends(t *testing.T) {
	e := NewEngine(DefaultConfig())
	table := DefaultProfileTable()

	intent := types.IntentResult{
		Kind:       types.IntentSymbol,
		Confidence: 0.4, // Below the 0.6 threshold
		Method:     types.MethodLLM,
		Probabilities: map[types.IntentKind]float64{
			types.IntentSymbol:  0.4,
			types.IntentConcept: 0.6,
		},
	}

	p := e.profileFor(intent, table)
	// Blended, not the pure symbol profile
	assert.NotEqual(t, table.Get(types.IntentSymbol), p)
	assert.InDelta(t, 0.4*0.20+0.6*0.60, p[types.StrategyVector], 1e-9)
}

func TestHighConfidenceUsesSingleProfile(t *testing.T) {
	e := NewEngine(DefaultConfig())
	table := DefaultProfileTable()

	intent := types.IntentResult{
		Kind:       types.IntentFlow,
		Confidence: 0.9,
		Method:     types.MethodLLM,
		Probabilities: map[types.IntentKind]float64{
			types.IntentFlow: 0.9,
			types.IntentCode: 0.1,
		},
	}

	p := e.profileFor(intent, table)
	assert.Equal(t, table.Get(types.IntentFlow), p)
}

func TestWithProfileDoesNotMutate(t *testing.T) {
	table := DefaultProfileTable()
	orig := table.Get(types.IntentCode)[types.StrategyVector]

	next := table.WithProfile(types.IntentCode, Profile{types.StrategyVector: 1.0})

	assert.Equal(t, orig, table.Get(types.IntentCode)[types.StrategyVector])
	assert.InDelta(t, 1.0, next.Get(types.IntentCode)[types.StrategyVector], 1e-9)
}

func TestFuseEmptyInput(t *testing.T) {
	e := NewEngine(DefaultConfig())
	fused := e.Fuse(nil, symbolIntent(), DefaultProfileTable())
	assert.Empty(t, fused)
}
