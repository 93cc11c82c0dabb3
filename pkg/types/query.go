package types

import "time"

// Validation bounds enforced before any backend call
const (
	MaxQueryLength = 1000
	MinTokenBudget = 100
	MaxTokenBudget = 100000
)

// QueryHints carry explicit scoping hints extracted from the request,
// taking priority over intent-based scope heuristics.
type QueryHints struct {
	Symbols []string // Fully-qualified or bare symbol names
	Files   []string // File paths relative to repo root
	Modules []string // Package/module path prefixes
}

// Empty reports whether no hints were supplied.
func (h QueryHints) Empty() bool {
	return len(h.Symbols) == 0 && len(h.Files) == 0 && len(h.Modules) == 0
}

// Query represents one retrieval request over a fixed repository snapshot.
// Requests are stateless reads: nothing in the pipeline writes to an index.
type Query struct {
	// Identification
	RepoID     string
	SnapshotID string

	// Request
	Text        string
	TokenBudget int
	Hints       QueryHints

	// RequestedIndices restricts the fan-out to a subset of strategies.
	// Empty means the router decides.
	RequestedIndices []StrategyID

	// Timeout bounds the whole pipeline. Zero means the configured default.
	Timeout time.Duration
}

// Validate checks request bounds. It fails fast, before any backend call.
func (q *Query) Validate() error {
	if q.Text == "" {
		return &ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	if len(q.Text) > MaxQueryLength {
		return &ValidationError{Field: "query", Reason: "exceeds maximum length"}
	}
	if q.RepoID == "" {
		return &ValidationError{Field: "repo_id", Reason: "cannot be empty"}
	}
	if q.SnapshotID == "" {
		return &ValidationError{Field: "snapshot_id", Reason: "cannot be empty"}
	}
	if q.TokenBudget < MinTokenBudget || q.TokenBudget > MaxTokenBudget {
		return &ValidationError{Field: "token_budget", Reason: "must be between 100 and 100000"}
	}
	return nil
}
