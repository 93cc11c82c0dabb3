package expander

import (
	"strings"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Base edge costs by kind. Indirect dispatch is less certain than a
// static call; test-only edges are usually noise for production flows.
var defaultBaseCosts = map[ports.EdgeKind]float64{
	ports.EdgeDirect:   1.0,
	ports.EdgeIndirect: 1.5,
	ports.EdgeTestOnly: 2.0,
}

// Per-intent cost multipliers. Flow tracing cheapens call edges so the
// traversal reaches deeper before hitting the cost ceiling.
var defaultIntentCosts = map[types.IntentKind]map[ports.EdgeKind]float64{
	types.IntentFlow: {
		ports.EdgeDirect:   0.7,
		ports.EdgeIndirect: 0.85,
	},
	types.IntentSymbol: {
		ports.EdgeDirect: 0.9,
	},
}

// edgeCost computes the adjusted cost of traversing one edge.
func (e *Expander) edgeCost(edge ports.CallEdge, intent types.IntentKind, target string) float64 {
	cost, ok := e.config.BaseCosts[edge.Kind]
	if !ok {
		cost = defaultBaseCosts[ports.EdgeDirect]
	}

	if intentTable, ok := e.config.IntentCosts[intent]; ok {
		if mult, ok := intentTable[edge.Kind]; ok {
			cost *= mult
		}
	}

	if e.config.PenalizeTests && e.isTestPath(target) {
		cost *= e.config.TestPathPenalty
	}
	return cost
}

// isTestPath applies the configured test/mock detector, defaulting to a
// symbol-id naming check.
func (e *Expander) isTestPath(symbolID string) bool {
	if e.config.IsTestSymbol != nil {
		return e.config.IsTestSymbol(symbolID)
	}
	return defaultIsTestSymbol(symbolID)
}

func defaultIsTestSymbol(symbolID string) bool {
	lower := strings.ToLower(symbolID)
	return strings.Contains(lower, "_test") ||
		strings.Contains(lower, "mock") ||
		strings.Contains(lower, "fake")
}
