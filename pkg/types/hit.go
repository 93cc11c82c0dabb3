package types

// StrategyID identifies one search backend
type StrategyID string

const (
	StrategyVector  StrategyID = "vector"  // Embedding similarity
	StrategyLexical StrategyID = "lexical" // Keyword / BM25
	StrategySymbol  StrategyID = "symbol"  // Symbol-structured lookup
	StrategyGraph   StrategyID = "graph"   // Call-graph expansion
)

// AllStrategies lists every backend strategy, in stable order.
var AllStrategies = []StrategyID{StrategyVector, StrategyLexical, StrategySymbol, StrategyGraph}

// SymbolInfo is the symbol metadata a symbol-index hit carries
type SymbolInfo struct {
	ID            string
	Name          string
	Kind          string // function, method, type, ...
	QualifiedName string
}

// StrategyHit is one backend's ranked result. Raw scores are not comparable
// across strategies; fusion relies on rank only.
type StrategyHit struct {
	Strategy StrategyID
	Rank     int // 1-based position in the backend's own ordering
	Score    float64
	ChunkID  string
	Symbol   *SymbolInfo // Nullable - only symbol/graph hits carry one
	Metadata map[string]string
}

// FusedHit is the cross-strategy merged result for one chunk. It retains
// its per-strategy provenance for explainability.
type FusedHit struct {
	ChunkID string
	Score   float64 // Final fused score after consensus boost

	// Provenance
	Strategies []StrategyID           // Contributing strategies, stable order
	Ranks      map[StrategyID]int     // Per-strategy 1-based ranks
	Components map[StrategyID]float64 // Per-strategy RRF components
	Consensus  float64                // Applied consensus multiplier (1.0 = none)
}

// FoundBy reports whether the given strategy contributed to this hit.
func (fh *FusedHit) FoundBy(s StrategyID) bool {
	_, ok := fh.Ranks[s]
	return ok
}
