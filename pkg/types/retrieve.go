package types

import "time"

// StrategyReport records the outcome of one backend branch during fan-out.
// A failed branch is reported here instead of failing the request.
type StrategyReport struct {
	Strategy StrategyID
	Tier     string // primary, fallback, enrichment
	HitCount int
	Latency  time.Duration
	Err      string // Empty on success
}

// RetrieveMetadata carries per-request diagnostics alongside the result
type RetrieveMetadata struct {
	RequestID string
	Duration  time.Duration
	CacheHit  bool

	Reports []StrategyReport
}

// RetrieveResult is the complete response to one Retrieve call. Callers
// receive either a complete result or a typed error, never a partial
// answer disguised as complete.
type RetrieveResult struct {
	Query   Query
	Intent  IntentResult
	Scope   Scope
	Fused   []FusedHit
	Context ContextResult

	Metadata RetrieveMetadata
}
