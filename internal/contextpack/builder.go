package contextpack

import (
	"context"
	"fmt"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Config controls context assembly
type Config struct {
	// ChunkTokenCeiling trims any single chunk above this many tokens
	ChunkTokenCeiling int

	// BudgetUtilization stops assembly once this fraction of the budget
	// is consumed
	BudgetUtilization float64

	// MaxChunks bounds the number of chunks regardless of budget
	MaxChunks int
}

// DefaultConfig returns production assembly settings.
func DefaultConfig() Config {
	return Config{
		ChunkTokenCeiling: 2000,
		BudgetUtilization: 0.95,
		MaxChunks:         50,
	}
}

// Builder assembles the final bounded context
type Builder struct {
	chunks  ports.ChunkStore
	counter TokenCounter
	config  Config
}

// NewBuilder creates a Builder. A nil counter uses the heuristic
// estimator.
func NewBuilder(chunks ports.ChunkStore, counter TokenCounter, config Config) *Builder {
	if counter == nil {
		counter = HeuristicCounter{}
	}
	if config.ChunkTokenCeiling <= 0 {
		config.ChunkTokenCeiling = DefaultConfig().ChunkTokenCeiling
	}
	if config.BudgetUtilization <= 0 || config.BudgetUtilization > 1 {
		config.BudgetUtilization = DefaultConfig().BudgetUtilization
	}
	if config.MaxChunks <= 0 {
		config.MaxChunks = DefaultConfig().MaxChunks
	}
	return &Builder{chunks: chunks, counter: counter, config: config}
}

// Build walks the fused ordering and assembles a context that never
// exceeds the token budget. Chunks with no retrievable content are
// dropped and counted, never fatal.
func (b *Builder) Build(ctx context.Context, fused []types.FusedHit, budget int) (types.ContextResult, error) {
	result := types.ContextResult{TokenBudget: budget}
	if len(fused) == 0 {
		return result, nil
	}

	// Deduplicate preserving fused order
	ids := make([]string, 0, len(fused))
	order := make([]types.FusedHit, 0, len(fused))
	seen := make(map[string]struct{}, len(fused))
	for _, fh := range fused {
		if _, dup := seen[fh.ChunkID]; dup {
			continue
		}
		seen[fh.ChunkID] = struct{}{}
		ids = append(ids, fh.ChunkID)
		order = append(order, fh)
	}

	// One batch fetch for every surviving id, never one-by-one
	records, err := b.chunks.GetChunksBatch(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("batch chunk fetch: %w", err)
	}

	stopAt := int(float64(budget) * b.config.BudgetUtilization)

	for _, fh := range order {
		if len(result.Chunks) >= b.config.MaxChunks {
			break
		}
		if result.TotalTokens >= stopAt {
			break
		}

		record, ok := records[fh.ChunkID]
		if !ok || record == nil || (record.Content == "" && record.Summary == "") {
			drop(&result, fh.ChunkID, types.DropStoreMiss)
			continue
		}

		content := record.Content
		if content == "" {
			content = record.Summary
		}

		chunk := types.ContextChunk{
			ChunkID:   fh.ChunkID,
			Content:   content,
			FilePath:  record.FilePath,
			StartLine: record.StartLine,
			EndLine:   record.EndLine,
			Score:     fh.Score,
		}
		chunk.OriginalTokens = b.counter.Count(content)
		chunk.TokenCount = chunk.OriginalTokens

		// Per-chunk ceiling
		if chunk.TokenCount > b.config.ChunkTokenCeiling {
			chunk.Content = trimToTokens(chunk.Content, b.config.ChunkTokenCeiling, b.counter)
			chunk.TokenCount = b.counter.Count(chunk.Content)
			chunk.Trimmed = true
			chunk.TrimReason = types.TrimChunkCeiling
		}

		// Budget check: trim if not already trimmed, then drop
		remaining := budget - result.TotalTokens
		if chunk.TokenCount > remaining {
			trimmed := trimToTokens(chunk.Content, remaining, b.counter)
			trimmedTokens := b.counter.Count(trimmed)
			if trimmed == "" || trimmedTokens == 0 || trimmedTokens > remaining {
				drop(&result, fh.ChunkID, types.DropBudget)
				continue
			}
			chunk.Content = trimmed
			chunk.TokenCount = trimmedTokens
			chunk.Trimmed = true
			chunk.TrimReason = types.TrimBudget
		}

		chunk.Rank = len(result.Chunks) + 1
		result.Chunks = append(result.Chunks, chunk)
		result.TotalTokens += chunk.TokenCount
		if chunk.Trimmed {
			result.TrimmedCount++
		}
	}

	return result, nil
}

// drop records an omitted candidate with its reason.
func drop(result *types.ContextResult, chunkID string, reason types.TrimReason) {
	result.DroppedCount++
	result.Dropped = append(result.Dropped, types.DroppedChunk{ChunkID: chunkID, Reason: reason})
}
