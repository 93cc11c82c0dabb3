package expander

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Direction selects which way the call graph is traversed
type Direction int

const (
	Forward  Direction = iota // Seeds to callees
	Backward                  // Seeds to callers
)

// Config bounds the traversal
type Config struct {
	MaxCost  float64 // Abandon a path past this cumulative cost
	MaxDepth int     // Abandon a path past this many hops
	MaxNodes int     // Halt the whole expansion at this many settled nodes

	BaseCosts   map[ports.EdgeKind]float64
	IntentCosts map[types.IntentKind]map[ports.EdgeKind]float64

	PenalizeTests   bool
	TestPathPenalty float64

	// IsTestSymbol overrides the default test/mock symbol detector
	IsTestSymbol func(symbolID string) bool

	// ForwardWeight splits bidirectional scores; backward gets 1-ForwardWeight
	ForwardWeight float64

	// HitLimit caps how many chunk hits the expansion emits
	HitLimit int
}

// DefaultConfig returns production expansion bounds.
func DefaultConfig() Config {
	return Config{
		MaxCost:         6.0,
		MaxDepth:        4,
		MaxNodes:        200,
		BaseCosts:       defaultBaseCosts,
		IntentCosts:     defaultIntentCosts,
		PenalizeTests:   true,
		TestPathPenalty: 2.0,
		ForwardWeight:   0.6,
		HitLimit:        50,
	}
}

// ExpansionPath is one node reached during traversal. Transient: paths
// are discarded once the expansion yields chunk hits.
type ExpansionPath struct {
	SymbolID string
	Cost     float64
	Depth    int
	ParentID string
	EdgeKind ports.EdgeKind
}

// Expander performs cost-aware call-graph traversal
type Expander struct {
	symbols ports.SymbolIndex
	config  Config
}

// New creates an Expander over a symbol index.
func New(symbols ports.SymbolIndex, config Config) *Expander {
	if config.MaxCost <= 0 {
		config.MaxCost = DefaultConfig().MaxCost
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultConfig().MaxDepth
	}
	if config.MaxNodes <= 0 {
		config.MaxNodes = DefaultConfig().MaxNodes
	}
	if config.TestPathPenalty <= 0 {
		config.TestPathPenalty = DefaultConfig().TestPathPenalty
	}
	if config.ForwardWeight <= 0 || config.ForwardWeight >= 1 {
		config.ForwardWeight = DefaultConfig().ForwardWeight
	}
	if config.HitLimit <= 0 {
		config.HitLimit = DefaultConfig().HitLimit
	}
	return &Expander{symbols: symbols, config: config}
}

// pathItem is a heap entry. index is maintained by heap.Interface.
type pathItem struct {
	path  ExpansionPath
	index int
}

// pathQueue is a min-heap on cumulative cost, breaking ties on symbol id
// so the settle order is deterministic.
type pathQueue []*pathItem

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool {
	if pq[i].path.Cost != pq[j].path.Cost {
		return pq[i].path.Cost < pq[j].path.Cost
	}
	return pq[i].path.SymbolID < pq[j].path.SymbolID
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	item := x.(*pathItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// Expand runs Dijkstra from the seed symbols and returns graph-strategy
// hits ordered by ascending path cost.
func (e *Expander) Expand(ctx context.Context, seeds []string, direction Direction, intent types.IntentKind) ([]types.StrategyHit, error) {
	settled, err := e.traverse(ctx, seeds, direction, intent)
	if err != nil {
		return nil, err
	}
	return e.pathsToHits(ctx, settled, 1.0)
}

// ExpandBidirectional runs forward and backward expansions independently
// and merges them under the configured weight split. A chunk reached from
// both sides keeps its higher-weighted instance.
func (e *Expander) ExpandBidirectional(ctx context.Context, seeds []string, intent types.IntentKind) ([]types.StrategyHit, error) {
	forward, err := e.traverse(ctx, seeds, Forward, intent)
	if err != nil {
		return nil, err
	}
	backward, err := e.traverse(ctx, seeds, Backward, intent)
	if err != nil {
		return nil, err
	}

	fwdHits, err := e.pathsToHits(ctx, forward, e.config.ForwardWeight)
	if err != nil {
		return nil, err
	}
	bwdHits, err := e.pathsToHits(ctx, backward, 1.0-e.config.ForwardWeight)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]types.StrategyHit, len(fwdHits)+len(bwdHits))
	order := make([]string, 0, len(fwdHits)+len(bwdHits))
	for _, hit := range append(fwdHits, bwdHits...) {
		prev, seen := merged[hit.ChunkID]
		if !seen {
			merged[hit.ChunkID] = hit
			order = append(order, hit.ChunkID)
			continue
		}
		if hit.Score > prev.Score {
			merged[hit.ChunkID] = hit
		}
	}

	out := make([]types.StrategyHit, 0, len(merged))
	for _, chunkID := range order {
		hit := merged[chunkID]
		hit.Rank = len(out) + 1
		out = append(out, hit)
		if len(out) >= e.config.HitLimit {
			break
		}
	}
	// Re-sort by score so the higher-weighted direction leads
	sortHitsByScore(out)
	return out, nil
}

// traverse is the Dijkstra core. Every node settles at most once; the
// first settled cost for a node is minimal.
func (e *Expander) traverse(ctx context.Context, seeds []string, direction Direction, intent types.IntentKind) ([]ExpansionPath, error) {
	if len(seeds) == 0 {
		return nil, nil
	}

	pq := &pathQueue{}
	heap.Init(pq)
	for _, seed := range seeds {
		heap.Push(pq, &pathItem{path: ExpansionPath{SymbolID: seed, Cost: 0, Depth: 0}})
	}

	visited := make(map[string]struct{}, e.config.MaxNodes)
	settled := make([]ExpansionPath, 0, e.config.MaxNodes)

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := heap.Pop(pq).(*pathItem)
		current := item.path

		// Settle-once: a node popped with a higher cost than its first
		// settlement is stale and skipped
		if _, done := visited[current.SymbolID]; done {
			continue
		}
		visited[current.SymbolID] = struct{}{}
		settled = append(settled, current)

		if len(settled) >= e.config.MaxNodes {
			break
		}
		if current.Depth >= e.config.MaxDepth {
			continue
		}

		edges, err := e.neighbors(ctx, current.SymbolID, direction)
		if err != nil {
			// One symbol's edges failing does not abort the expansion
			continue
		}

		for _, edge := range edges {
			target := edgeTarget(edge, direction)
			if target == "" {
				continue
			}
			if _, done := visited[target]; done {
				continue
			}

			cost := current.Cost + e.edgeCost(edge, intent, target)
			if cost > e.config.MaxCost {
				continue
			}

			heap.Push(pq, &pathItem{path: ExpansionPath{
				SymbolID: target,
				Cost:     cost,
				Depth:    current.Depth + 1,
				ParentID: current.SymbolID,
				EdgeKind: edge.Kind,
			}})
		}
	}

	return settled, nil
}

func (e *Expander) neighbors(ctx context.Context, symbolID string, direction Direction) ([]ports.CallEdge, error) {
	if direction == Forward {
		return e.symbols.GetCallees(ctx, symbolID)
	}
	return e.symbols.GetCallers(ctx, symbolID)
}

func edgeTarget(edge ports.CallEdge, direction Direction) string {
	if direction == Forward {
		return edge.ToSymbolID
	}
	return edge.FromSymbolID
}

// pathsToHits maps settled symbols to chunk hits. Settle order is
// ascending cost, so ranks follow directly. Chunks reached through more
// than one symbol keep their cheapest instance.
func (e *Expander) pathsToHits(ctx context.Context, settled []ExpansionPath, weight float64) ([]types.StrategyHit, error) {
	hits := make([]types.StrategyHit, 0, len(settled))
	seen := make(map[string]struct{}, len(settled))

	for _, path := range settled {
		chunkIDs, err := e.symbols.ChunksForSymbol(ctx, path.SymbolID)
		if err != nil {
			continue
		}

		score := 1.0 - path.Cost/e.config.MaxCost
		if score < 0.1 {
			score = 0.1
		}
		score *= weight

		for _, chunkID := range chunkIDs {
			if _, dup := seen[chunkID]; dup {
				continue
			}
			seen[chunkID] = struct{}{}
			hits = append(hits, types.StrategyHit{
				Strategy: types.StrategyGraph,
				Rank:     len(hits) + 1,
				Score:    score,
				ChunkID:  chunkID,
				Symbol:   &types.SymbolInfo{ID: path.SymbolID},
				Metadata: map[string]string{
					"cost":  fmt.Sprintf("%.3f", path.Cost),
					"depth": fmt.Sprintf("%d", path.Depth),
				},
			})
			if len(hits) >= e.config.HitLimit {
				return hits, nil
			}
		}
	}
	return hits, nil
}

// sortHitsByScore orders descending by score, stable so the original
// cost ordering decides equal scores, then reassigns ranks.
func sortHitsByScore(hits []types.StrategyHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	for i := range hits {
		hits[i].Rank = i + 1
	}
}
