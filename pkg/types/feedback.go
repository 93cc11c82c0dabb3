package types

import "time"

// FeedbackEvent is one adaptive-learning signal: which chunks the consumer
// actually used from a retrieval, and which strategies surfaced them.
// Events are ingested asynchronously, outside the request path.
type FeedbackEvent struct {
	RequestID string
	Query     string
	Intent    IntentKind

	// SelectedChunks are the chunk ids the consumer kept
	SelectedChunks []string

	// Contributions maps each strategy to the number of selected chunks
	// it surfaced
	Contributions map[StrategyID]int

	Positive  bool
	Timestamp time.Time
}
