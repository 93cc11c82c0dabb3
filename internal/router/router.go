package router

import (
	"time"

	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Tier names recorded in strategy reports
const (
	TierPrimary    = "primary"
	TierFallback   = "fallback"
	TierEnrichment = "enrichment"
)

// Plan is one request's tiered execution schedule
type Plan struct {
	Primary    []types.StrategyID
	Fallback   []types.StrategyID
	Enrichment []types.StrategyID

	// EarlyStopThreshold skips the fallback tier when the primary tier
	// already produced at least this many hits
	EarlyStopThreshold int

	// Parallel selects concurrent fan-out; sequential mode is retained
	// for comparative benchmarking only
	Parallel bool

	// StrategyTimeout bounds each individual backend call
	StrategyTimeout time.Duration
}

// ShouldRunFallback applies the early-stop rule to the primary hit count.
func (p Plan) ShouldRunFallback(primaryHits int) bool {
	return len(p.Fallback) > 0 && primaryHits < p.EarlyStopThreshold
}

// Strategies returns every strategy the plan can touch, deduplicated.
func (p Plan) Strategies() []types.StrategyID {
	seen := make(map[types.StrategyID]struct{})
	var out []types.StrategyID
	for _, tier := range [][]types.StrategyID{p.Primary, p.Fallback, p.Enrichment} {
		for _, s := range tier {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Config controls plan construction
type Config struct {
	// ConfidenceThreshold gates intent-specific plans; below it the
	// balanced plan runs
	ConfidenceThreshold float64

	EarlyStopThreshold int
	StrategyTimeout    time.Duration
	Parallel           bool
}

// DefaultConfig returns production routing settings.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.6,
		EarlyStopThreshold:  5,
		StrategyTimeout:     5 * time.Second,
		Parallel:            true,
	}
}

// Router chooses which backends to query and in what tiers
type Router struct {
	config Config
}

// NewRouter creates a Router.
func NewRouter(config Config) *Router {
	if config.EarlyStopThreshold <= 0 {
		config.EarlyStopThreshold = DefaultConfig().EarlyStopThreshold
	}
	if config.StrategyTimeout <= 0 {
		config.StrategyTimeout = DefaultConfig().StrategyTimeout
	}
	return &Router{config: config}
}

// PlanFor builds the execution plan for a classified query. Explicitly
// requested indices restrict the plan to those strategies.
func (r *Router) PlanFor(query types.Query, intent types.IntentResult) Plan {
	plan := r.intentPlan(intent)
	plan.EarlyStopThreshold = r.config.EarlyStopThreshold
	plan.StrategyTimeout = r.config.StrategyTimeout
	plan.Parallel = r.config.Parallel

	if len(query.RequestedIndices) > 0 {
		plan = restrict(plan, query.RequestedIndices)
	}
	return plan
}

// intentPlan maps the dominant intent to its tier layout, falling back
// to the balanced plan on low confidence.
func (r *Router) intentPlan(intent types.IntentResult) Plan {
	if intent.Confidence < r.config.ConfidenceThreshold {
		return balancedPlan()
	}

	switch intent.Kind {
	case types.IntentSymbol:
		return Plan{
			Primary:  []types.StrategyID{types.StrategySymbol, types.StrategyLexical},
			Fallback: []types.StrategyID{types.StrategyVector},
		}
	case types.IntentFlow:
		return Plan{
			Primary:    []types.StrategyID{types.StrategySymbol, types.StrategyLexical},
			Fallback:   []types.StrategyID{types.StrategyVector},
			Enrichment: []types.StrategyID{types.StrategyGraph},
		}
	case types.IntentConcept:
		return Plan{
			Primary:  []types.StrategyID{types.StrategyVector},
			Fallback: []types.StrategyID{types.StrategyLexical, types.StrategySymbol},
		}
	case types.IntentCode:
		return Plan{
			Primary:    []types.StrategyID{types.StrategyVector, types.StrategyLexical},
			Fallback:   []types.StrategyID{types.StrategySymbol},
			Enrichment: []types.StrategyID{types.StrategyGraph},
		}
	default:
		return balancedPlan()
	}
}

// balancedPlan covers every strategy when no intent dominates.
func balancedPlan() Plan {
	return Plan{
		Primary: []types.StrategyID{types.StrategyVector, types.StrategyLexical, types.StrategySymbol},
		// Graph still runs as enrichment; it needs symbol seeds from the
		// primary tier either way
		Enrichment: []types.StrategyID{types.StrategyGraph},
	}
}

// restrict drops strategies the caller did not request. Every requested
// strategy still runs somewhere: one the intent plan never scheduled
// joins the primary tier.
func restrict(plan Plan, requested []types.StrategyID) Plan {
	allowed := make(map[types.StrategyID]struct{}, len(requested))
	for _, s := range requested {
		allowed[s] = struct{}{}
	}

	filter := func(tier []types.StrategyID) []types.StrategyID {
		var out []types.StrategyID
		for _, s := range tier {
			if _, ok := allowed[s]; ok {
				out = append(out, s)
			}
		}
		return out
	}

	plan.Primary = filter(plan.Primary)
	plan.Fallback = filter(plan.Fallback)
	plan.Enrichment = filter(plan.Enrichment)

	// A restriction that empties the primary tier promotes the fallback
	// tier so the request still searches something
	if len(plan.Primary) == 0 {
		plan.Primary = plan.Fallback
		plan.Fallback = nil
	}

	// A requested strategy absent from every tier joins the primary
	// tier; graph placed there seeds itself from a symbol search
	scheduled := make(map[types.StrategyID]struct{})
	for _, s := range plan.Strategies() {
		scheduled[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := scheduled[s]; ok {
			continue
		}
		scheduled[s] = struct{}{}
		plan.Primary = append(plan.Primary, s)
	}

	// Enrichment cannot run without an earlier tier to seed it
	if len(plan.Primary) == 0 {
		plan.Primary = plan.Enrichment
		plan.Enrichment = nil
	}
	return plan
}
