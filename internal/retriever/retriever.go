package retriever

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/goretrieve-mcp/internal/contextpack"
	"github.com/dshills/goretrieve-mcp/internal/enhance"
	"github.com/dshills/goretrieve-mcp/internal/expander"
	"github.com/dshills/goretrieve-mcp/internal/fusion"
	"github.com/dshills/goretrieve-mcp/internal/intent"
	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/internal/rerank"
	"github.com/dshills/goretrieve-mcp/internal/router"
	"github.com/dshills/goretrieve-mcp/internal/scope"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// ProfileSource supplies the current fusion weight profiles. The
// adaptive learner implements it; a nil source uses the defaults.
type ProfileSource interface {
	Table() *fusion.ProfileTable
}

// Deps are the downstream collaborators the pipeline consumes. Vector,
// Lexical, Symbols, and Chunks are required; the rest are optional and
// degrade the matching feature when nil.
type Deps struct {
	Vector     ports.VectorIndex
	Lexical    ports.LexicalIndex
	Symbols    ports.SymbolIndex
	Chunks     ports.ChunkStore
	Importance ports.ImportanceStore
	Generator  ports.TextGenerator
	Profiles   ProfileSource
}

// Config aggregates pipeline settings, one section per stage
type Config struct {
	// DefaultTimeout bounds a request end to end when the query carries
	// no timeout of its own
	DefaultTimeout time.Duration

	// StrategyLimit is the per-backend result limit
	StrategyLimit int

	// MaxGraphSeeds caps how many symbol ids seed graph enrichment
	MaxGraphSeeds int

	// CacheSize bounds the LRU result cache; zero disables caching
	CacheSize int

	// BiasMode selects the position-bias layout for the final context
	BiasMode contextpack.BiasMode

	// SelfCheck enables the relevance check that can force the fallback
	// tier even when the primary tier hit the early-stop threshold
	SelfCheck bool

	// CheckSnippets is how many top snippets the relevance check sees
	CheckSnippets int

	Intent    intent.Config
	Router    router.Config
	Fusion    fusion.Config
	Expansion expander.Config
	Context   contextpack.Config
	Enhance   enhance.Config
	Rerank    rerank.Config
}

// DefaultConfig returns production pipeline settings.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 30 * time.Second,
		StrategyLimit:  20,
		MaxGraphSeeds:  5,
		CacheSize:      128,
		BiasMode:       contextpack.BiasAlternating,
		SelfCheck:      true,
		CheckSnippets:  3,
		Intent:         intent.DefaultConfig(),
		Router:         router.DefaultConfig(),
		Fusion:         fusion.DefaultConfig(),
		Expansion:      expander.DefaultConfig(),
		Context:        contextpack.DefaultConfig(),
		Enhance:        enhance.DefaultConfig(),
		Rerank:         rerank.DefaultConfig(),
	}
}

// Retriever is the multi-strategy retrieval pipeline. Safe for
// concurrent use; every request is a stateless read over a snapshot.
type Retriever struct {
	deps   Deps
	config Config

	classifier *intent.Classifier
	scopes     *scope.Selector
	router     *router.Router
	expand     *expander.Expander
	engine     *fusion.Engine
	builder    *contextpack.Builder
	enhancer   *enhance.Enhancer
	reranker   *rerank.Reranker
	cache      *resultCache
}

// New wires the pipeline from its collaborators.
func New(deps Deps, config Config) (*Retriever, error) {
	if deps.Vector == nil || deps.Lexical == nil || deps.Symbols == nil || deps.Chunks == nil {
		return nil, fmt.Errorf("retriever: vector, lexical, symbol, and chunk backends are all required")
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if config.StrategyLimit <= 0 {
		config.StrategyLimit = DefaultConfig().StrategyLimit
	}
	if config.MaxGraphSeeds <= 0 {
		config.MaxGraphSeeds = DefaultConfig().MaxGraphSeeds
	}
	if config.CheckSnippets <= 0 {
		config.CheckSnippets = DefaultConfig().CheckSnippets
	}
	if config.BiasMode == "" {
		config.BiasMode = DefaultConfig().BiasMode
	}

	r := &Retriever{
		deps:       deps,
		config:     config,
		classifier: intent.NewClassifier(deps.Generator, config.Intent),
		scopes:     scope.NewSelector(deps.Importance),
		router:     router.NewRouter(config.Router),
		expand:     expander.New(deps.Symbols, config.Expansion),
		engine:     fusion.NewEngine(config.Fusion),
		builder:    contextpack.NewBuilder(deps.Chunks, nil, config.Context),
	}
	if deps.Generator != nil {
		r.enhancer = enhance.New(deps.Generator, config.Enhance)
		r.reranker = rerank.New(deps.Generator, deps.Chunks, config.Rerank)
	}
	if config.CacheSize > 0 {
		cache, err := newResultCache(config.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("result cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Retrieve runs the full pipeline for one query. Validation fails fast
// before any backend call; after that, individual backend failures
// degrade the result rather than failing it.
func (r *Retriever) Retrieve(ctx context.Context, query types.Query) (*types.RetrieveResult, error) {
	start := time.Now()

	if err := query.Validate(); err != nil {
		return nil, err
	}

	timeout := query.Timeout
	if timeout <= 0 {
		timeout = r.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	requestID := uuid.NewString()

	key := cacheKey(query)
	if r.cache != nil {
		if cached, ok := r.cache.get(key); ok {
			cached.Metadata.RequestID = requestID
			cached.Metadata.Duration = time.Since(start)
			cached.Metadata.CacheHit = true
			return &cached, nil
		}
	}

	// Stage 1: intent. Never fails; the rules classifier is the floor.
	intentRes, err := r.classifier.Classify(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	// Stage 2: scope. Degrades to full repo on any importance-map problem.
	sc := r.scopes.Select(ctx, query, intentRes)

	// Stage 3: routing
	plan := r.router.PlanFor(query, intentRes)

	texts := r.queryTexts(ctx, query, intentRes)

	// Stage 4: tiered fan-out
	hits := make(map[types.StrategyID][]types.StrategyHit)
	var reports []types.StrategyReport

	primary, primaryReports := r.runTier(ctx, router.TierPrimary, plan, plan.Primary, texts, query, sc)
	mergeTier(hits, primary)
	reports = append(reports, primaryReports...)
	if err := r.deadline(ctx, timeout, "primary fan-out"); err != nil {
		return nil, err
	}

	if r.shouldRunFallback(ctx, plan, query.Text, hits) {
		fallback, fallbackReports := r.runTier(ctx, router.TierFallback, plan, plan.Fallback, texts, query, sc)
		mergeTier(hits, fallback)
		reports = append(reports, fallbackReports...)
		if err := r.deadline(ctx, timeout, "fallback fan-out"); err != nil {
			return nil, err
		}
	}

	if hasStrategy(plan.Enrichment, types.StrategyGraph) {
		report := r.runGraphEnrichment(ctx, hits, sc, intentRes.Kind)
		reports = append(reports, report)
	}

	// Stage 5: fusion
	fused := r.engine.Fuse(hits, intentRes, r.profileTable())
	if err := r.deadline(ctx, timeout, "fusion"); err != nil {
		return nil, err
	}

	// Stage 6: optional rerank, degrades to fused order
	if r.reranker != nil {
		fused = r.reranker.Rerank(ctx, query.Text, fused)
	}

	// Stage 7: context assembly
	contextResult, err := r.builder.Build(ctx, fused, query.TokenBudget)
	if err != nil {
		if derr := r.deadline(ctx, timeout, "context build"); derr != nil {
			return nil, derr
		}
		return nil, fmt.Errorf("build context: %w", err)
	}
	contextResult.Chunks = contextpack.MitigatePositionBias(contextResult.Chunks, r.config.BiasMode)

	result := &types.RetrieveResult{
		Query:   query,
		Intent:  intentRes,
		Scope:   sc,
		Fused:   fused,
		Context: contextResult,
		Metadata: types.RetrieveMetadata{
			RequestID: requestID,
			Duration:  time.Since(start),
			Reports:   reports,
		},
	}

	if r.cache != nil {
		r.cache.add(key, *result)
	}

	log.Printf("retrieve %s: intent=%s scope=%s chunks=%d tokens=%d/%d in %s",
		requestID, intentRes.Kind, sc.Type,
		len(contextResult.Chunks), contextResult.TotalTokens, query.TokenBudget,
		result.Metadata.Duration.Round(time.Millisecond))
	return result, nil
}

// queryTexts applies multi-hop decomposition and, for concept queries,
// HyDE on the vector search text. Index 0 is always the text the
// lexical and symbol backends search.
func (r *Retriever) queryTexts(ctx context.Context, query types.Query, intentRes types.IntentResult) searchTexts {
	texts := searchTexts{keyword: []string{query.Text}, vector: []string{query.Text}}
	if r.enhancer == nil {
		return texts
	}

	parts := r.enhancer.Decompose(ctx, query.Text)
	texts.keyword = parts
	texts.vector = parts

	if intentRes.Kind == types.IntentConcept {
		enhanced := make([]string, len(parts))
		for i, p := range parts {
			enhanced[i] = r.enhancer.HyDE(ctx, p)
		}
		texts.vector = enhanced
	}
	return texts
}

// shouldRunFallback combines the early-stop rule with the optional
// relevance self-check. The check can only add a fallback pass, never
// remove one.
func (r *Retriever) shouldRunFallback(ctx context.Context, plan router.Plan, query string, hits map[types.StrategyID][]types.StrategyHit) bool {
	total := 0
	for _, list := range hits {
		total += len(list)
	}
	if plan.ShouldRunFallback(total) {
		return true
	}
	if len(plan.Fallback) == 0 || !r.config.SelfCheck || r.enhancer == nil {
		return false
	}
	return !r.enhancer.SelfCheck(ctx, query, r.topSnippets(ctx, hits))
}

// topSnippets fetches the content of the best-ranked hits for the
// relevance check. Failures just shrink the snippet set.
func (r *Retriever) topSnippets(ctx context.Context, hits map[types.StrategyID][]types.StrategyHit) []string {
	var ids []string
	seen := make(map[string]struct{})
	for rank := 0; len(ids) < r.config.CheckSnippets; rank++ {
		advanced := false
		for _, strategy := range types.AllStrategies {
			list := hits[strategy]
			if rank >= len(list) {
				continue
			}
			advanced = true
			id := list[rank].ChunkID
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			if len(ids) >= r.config.CheckSnippets {
				break
			}
		}
		if !advanced {
			break
		}
	}
	if len(ids) == 0 {
		return nil
	}

	records, err := r.deps.Chunks.GetChunksBatch(ctx, ids)
	if err != nil {
		return nil
	}
	var snippets []string
	for _, id := range ids {
		if rec, ok := records[id]; ok && rec != nil && rec.Content != "" {
			snippet := rec.Content
			if len(snippet) > 300 {
				snippet = snippet[:300]
			}
			snippets = append(snippets, snippet)
		}
	}
	return snippets
}

// runGraphEnrichment seeds bidirectional call-graph expansion from the
// symbol metadata of the hits gathered so far.
func (r *Retriever) runGraphEnrichment(ctx context.Context, hits map[types.StrategyID][]types.StrategyHit, sc types.Scope, kind types.IntentKind) types.StrategyReport {
	start := time.Now()
	report := types.StrategyReport{Strategy: types.StrategyGraph, Tier: router.TierEnrichment}

	seeds := r.graphSeeds(hits)
	if len(seeds) == 0 {
		report.Latency = time.Since(start)
		return report
	}

	graphHits, err := r.expand.ExpandBidirectional(ctx, seeds, kind)
	report.Latency = time.Since(start)
	if err != nil {
		report.Err = err.Error()
		return report
	}

	graphHits = filterScope(graphHits, sc)
	hits[types.StrategyGraph] = graphHits
	report.HitCount = len(graphHits)
	return report
}

// graphSeeds collects distinct symbol ids from prior hits, symbol index
// first since its hits always carry symbol metadata.
func (r *Retriever) graphSeeds(hits map[types.StrategyID][]types.StrategyHit) []string {
	var seeds []string
	seen := make(map[string]struct{})
	for _, strategy := range []types.StrategyID{types.StrategySymbol, types.StrategyLexical, types.StrategyVector} {
		for _, hit := range hits[strategy] {
			if hit.Symbol == nil || hit.Symbol.ID == "" {
				continue
			}
			if _, dup := seen[hit.Symbol.ID]; dup {
				continue
			}
			seen[hit.Symbol.ID] = struct{}{}
			seeds = append(seeds, hit.Symbol.ID)
			if len(seeds) >= r.config.MaxGraphSeeds {
				return seeds
			}
		}
	}
	return seeds
}

func (r *Retriever) profileTable() *fusion.ProfileTable {
	if r.deps.Profiles != nil {
		if t := r.deps.Profiles.Table(); t != nil {
			return t
		}
	}
	return fusion.DefaultProfileTable()
}

// deadline maps context expiry to the typed timeout error, tagged with
// the stage that detected it.
func (r *Retriever) deadline(ctx context.Context, timeout time.Duration, stage string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &types.RequestTimeoutError{Timeout: timeout, Stage: stage}
	}
	return ctx.Err()
}

// FallbackRate exposes the intent classifier's rules-fallback rate for
// status reporting.
func (r *Retriever) FallbackRate() float64 {
	return r.classifier.FallbackRate()
}

// FallbackAlarming reports whether that rate crossed the classifier's
// alert threshold.
func (r *Retriever) FallbackAlarming() bool {
	return r.classifier.FallbackAlarming()
}

func hasStrategy(list []types.StrategyID, s types.StrategyID) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}
