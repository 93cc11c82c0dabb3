// Package types provides shared type definitions for the GoRetrieve MCP server.
//
// This package defines the domain types that flow through the retrieval
// pipeline: queries, classified intents, search scopes, per-strategy hits,
// fused results, and the final token-bounded context.
//
// # Core Types
//
// Query represents one retrieval request against an indexed snapshot:
//
//	q := types.Query{
//	    RepoID:      "acme/payments",
//	    SnapshotID:  "a1b2c3",
//	    Text:        "where is the refund flow triggered",
//	    TokenBudget: 8000,
//	}
//
// StrategyHit is one backend's ranked result; FusedHit is the cross-strategy
// merge produced by the fusion engine:
//
//	hit := types.StrategyHit{
//	    Strategy: types.StrategyVector,
//	    ChunkID:  "pkg/refund/flow.go:42",
//	    Rank:     1,
//	    Score:    0.91,
//	}
//
// ContextResult is the terminal response: an ordered chunk list whose total
// token count never exceeds the requested budget.
//
// # Error Kinds
//
// Errors cross component boundaries as typed values so callers can
// distinguish validation failures, request timeouts, and per-branch
// strategy failures:
//
//	var verr *types.ValidationError
//	if errors.As(err, &verr) {
//	    // reject without calling any backend
//	}
package types
