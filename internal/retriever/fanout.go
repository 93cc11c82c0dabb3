package retriever

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/internal/router"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// searchTexts separates the text each backend family searches: keyword
// backends get the literal (possibly decomposed) query, the vector
// backend may get HyDE-enhanced variants.
type searchTexts struct {
	keyword []string
	vector  []string
}

// branchOutcome is one backend branch's result inside a tier
type branchOutcome struct {
	hits   []types.StrategyHit
	report types.StrategyReport
}

// runTier executes one tier of the plan. Branches run concurrently when
// the plan says so; each branch is bounded by the per-strategy timeout
// and its failure is recorded, never raised.
func (r *Retriever) runTier(ctx context.Context, tier string, plan router.Plan, strategies []types.StrategyID, texts searchTexts, query types.Query, sc types.Scope) (map[types.StrategyID][]types.StrategyHit, []types.StrategyReport) {
	if len(strategies) == 0 {
		return nil, nil
	}

	outcomes := make([]branchOutcome, len(strategies))

	if plan.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, strategy := range strategies {
			i, strategy := i, strategy
			g.Go(func() error {
				outcomes[i] = r.runBranch(gctx, tier, strategy, plan.StrategyTimeout, texts, query, sc)
				// Branch failures live in the report; returning them would
				// cancel sibling branches
				return nil
			})
		}
		// Only branch panics could surface here, and branches never
		// return errors
		_ = g.Wait()
	} else {
		// Sequential mode, kept for comparative benchmarking
		for i, strategy := range strategies {
			outcomes[i] = r.runBranch(ctx, tier, strategy, plan.StrategyTimeout, texts, query, sc)
		}
	}

	hits := make(map[types.StrategyID][]types.StrategyHit, len(strategies))
	reports := make([]types.StrategyReport, 0, len(strategies))
	for _, outcome := range outcomes {
		if len(outcome.hits) > 0 {
			hits[outcome.report.Strategy] = outcome.hits
		}
		reports = append(reports, outcome.report)
	}
	return hits, reports
}

// runBranch executes one backend search with its own timeout and maps
// the outcome into a report.
func (r *Retriever) runBranch(ctx context.Context, tier string, strategy types.StrategyID, timeout time.Duration, texts searchTexts, query types.Query, sc types.Scope) branchOutcome {
	start := time.Now()
	report := types.StrategyReport{Strategy: strategy, Tier: tier}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	hits, err := r.searchStrategy(ctx, strategy, texts, query)
	report.Latency = time.Since(start)
	if err != nil {
		report.Err = (&types.StrategyExecutionError{Strategy: strategy, Err: err}).Error()
		return branchOutcome{report: report}
	}

	hits = filterScope(hits, sc)
	report.HitCount = len(hits)
	return branchOutcome{hits: hits, report: report}
}

// searchStrategy dispatches to the right backend, fanning a decomposed
// query's sub-queries into one merged ranking per backend.
func (r *Retriever) searchStrategy(ctx context.Context, strategy types.StrategyID, texts searchTexts, query types.Query) ([]types.StrategyHit, error) {
	search := func(backend func(context.Context, ports.SearchQuery) ([]types.StrategyHit, error), variants []string) ([]types.StrategyHit, error) {
		var all [][]types.StrategyHit
		var lastErr error
		for _, text := range variants {
			hits, err := backend(ctx, ports.SearchQuery{
				RepoID:     query.RepoID,
				SnapshotID: query.SnapshotID,
				Text:       text,
				Limit:      r.config.StrategyLimit,
			})
			if err != nil {
				lastErr = err
				continue
			}
			all = append(all, hits)
		}
		if len(all) == 0 {
			return nil, lastErr
		}
		return mergeRankings(all, r.config.StrategyLimit), nil
	}

	switch strategy {
	case types.StrategyVector:
		return search(r.deps.Vector.Search, texts.vector)
	case types.StrategyLexical:
		return search(r.deps.Lexical.Search, texts.keyword)
	case types.StrategySymbol:
		return search(r.deps.Symbols.Search, texts.keyword)
	case types.StrategyGraph:
		// Graph outside the enrichment tier (an explicit index request)
		// seeds itself from a symbol search on the query
		seedHits, err := r.deps.Symbols.Search(ctx, ports.SearchQuery{
			RepoID:     query.RepoID,
			SnapshotID: query.SnapshotID,
			Text:       texts.keyword[0],
			Limit:      r.config.MaxGraphSeeds,
		})
		if err != nil {
			return nil, err
		}
		seeds := make([]string, 0, len(seedHits))
		for _, hit := range seedHits {
			if hit.Symbol != nil && hit.Symbol.ID != "" {
				seeds = append(seeds, hit.Symbol.ID)
			}
		}
		if len(seeds) == 0 {
			return nil, nil
		}
		return r.expand.ExpandBidirectional(ctx, seeds, types.IntentBalanced)
	default:
		return nil, nil
	}
}

// mergeRankings combines one backend's rankings for several sub-queries:
// each chunk keeps its best rank across the lists, the merge orders by
// that rank, and ranks are reassigned densely.
func mergeRankings(lists [][]types.StrategyHit, limit int) []types.StrategyHit {
	if len(lists) == 1 {
		return lists[0]
	}

	best := make(map[string]types.StrategyHit)
	for _, list := range lists {
		for i, hit := range list {
			if hit.Rank <= 0 {
				hit.Rank = i + 1
			}
			prev, seen := best[hit.ChunkID]
			if !seen || hit.Rank < prev.Rank {
				best[hit.ChunkID] = hit
			}
		}
	}

	merged := make([]types.StrategyHit, 0, len(best))
	for _, hit := range best {
		merged = append(merged, hit)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Rank != merged[j].Rank {
			return merged[i].Rank < merged[j].Rank
		}
		return merged[i].ChunkID < merged[j].ChunkID
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged
}

// filterScope drops hits outside the scope and closes rank gaps.
func filterScope(hits []types.StrategyHit, sc types.Scope) []types.StrategyHit {
	if !sc.Focused() {
		return hits
	}
	kept := make([]types.StrategyHit, 0, len(hits))
	for _, hit := range hits {
		if sc.Contains(hit.ChunkID) {
			kept = append(kept, hit)
		}
	}
	for i := range kept {
		kept[i].Rank = i + 1
	}
	return kept
}

// mergeTier folds one tier's hits into the accumulated per-strategy map.
func mergeTier(into map[types.StrategyID][]types.StrategyHit, tier map[types.StrategyID][]types.StrategyHit) {
	for strategy, hits := range tier {
		if existing, ok := into[strategy]; ok {
			into[strategy] = mergeRankings([][]types.StrategyHit{existing, hits}, 0)
			continue
		}
		into[strategy] = hits
	}
}
