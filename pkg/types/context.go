package types

// TrimReason records why a chunk's content was shortened or omitted
type TrimReason string

const (
	TrimNone         TrimReason = ""
	TrimChunkCeiling TrimReason = "chunk_ceiling" // Exceeded the per-chunk token ceiling
	TrimBudget       TrimReason = "budget"        // Trimmed to fit remaining budget
	DropBudget       TrimReason = "over_budget"   // Dropped: would not fit even trimmed
	DropStoreMiss    TrimReason = "store_miss"    // Dropped: no retrievable content
)

// ContextChunk is one item in the final assembled context
type ContextChunk struct {
	// Identification
	ChunkID string
	Rank    int // 1-based position in the returned ordering

	// Content
	Content   string
	FilePath  string
	StartLine int
	EndLine   int

	// Accounting
	TokenCount     int // Tokens actually contributed to the context
	OriginalTokens int // Tokens before any trimming
	Trimmed        bool
	TrimReason     TrimReason

	// Score is the fused score that placed this chunk
	Score float64
}

// DroppedChunk records one candidate omitted from the context entirely
type DroppedChunk struct {
	ChunkID string
	Reason  TrimReason
}

// ContextResult is the terminal, token-bounded response. TotalTokens never
// exceeds TokenBudget.
type ContextResult struct {
	Chunks      []ContextChunk
	TotalTokens int
	TokenBudget int

	TrimmedCount int
	DroppedCount int
	Dropped      []DroppedChunk
}

// Utilization returns the fraction of the budget consumed.
func (cr *ContextResult) Utilization() float64 {
	if cr.TokenBudget == 0 {
		return 0
	}
	return float64(cr.TotalTokens) / float64(cr.TokenBudget)
}
