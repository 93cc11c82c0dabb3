package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Config controls the rerank stage
type Config struct {
	Enabled     bool
	TopN        int           // How many fused hits to show the model
	Timeout     time.Duration // Bound on the rerank call
	MaxSnippet  int           // Characters of each snippet shown
	Temperature float64
}

// DefaultConfig returns rerank settings. The stage ships disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		TopN:        10,
		Timeout:     3 * time.Second,
		MaxSnippet:  400,
		Temperature: 0.0,
	}
}

// Reranker reorders the head of a fused ranking with an LLM pass
type Reranker struct {
	generator ports.TextGenerator
	chunks    ports.ChunkStore
	config    Config
}

// New creates a Reranker.
func New(generator ports.TextGenerator, chunks ports.ChunkStore, config Config) *Reranker {
	if config.TopN <= 0 {
		config.TopN = DefaultConfig().TopN
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxSnippet <= 0 {
		config.MaxSnippet = DefaultConfig().MaxSnippet
	}
	return &Reranker{generator: generator, chunks: chunks, config: config}
}

const rerankPrompt = `Order these code snippets from most to least relevant to the query. Respond with only a JSON array of the snippet numbers.

Query: %s

%s
JSON:`

// Rerank reorders the top N fused hits. The tail past TopN keeps its
// fused order; on any failure the whole input comes back unchanged.
func (r *Reranker) Rerank(ctx context.Context, query string, fused []types.FusedHit) []types.FusedHit {
	if !r.config.Enabled || r.generator == nil || len(fused) < 2 {
		return fused
	}

	n := r.config.TopN
	if n > len(fused) {
		n = len(fused)
	}
	head := fused[:n]

	ids := make([]string, n)
	for i, fh := range head {
		ids[i] = fh.ChunkID
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	records, err := r.chunks.GetChunksBatch(ctx, ids)
	if err != nil {
		return fused
	}

	var sb strings.Builder
	for i, fh := range head {
		snippet := ""
		if rec, ok := records[fh.ChunkID]; ok && rec != nil {
			snippet = rec.Content
			if snippet == "" {
				snippet = rec.Summary
			}
		}
		if len(snippet) > r.config.MaxSnippet {
			snippet = snippet[:r.config.MaxSnippet]
		}
		fmt.Fprintf(&sb, "[%d]\n%s\n\n", i+1, snippet)
	}

	out, err := r.generator.Generate(ctx, fmt.Sprintf(rerankPrompt, query, sb.String()), r.config.Temperature, 100)
	if err != nil {
		return fused
	}

	perm, ok := parsePermutation(out, n)
	if !ok {
		return fused
	}

	reordered := make([]types.FusedHit, 0, len(fused))
	for _, idx := range perm {
		reordered = append(reordered, head[idx])
	}
	reordered = append(reordered, fused[n:]...)
	return reordered
}

// parsePermutation extracts a 1-based index ordering and validates it is
// a permutation of 1..n.
func parsePermutation(raw string, n int) ([]int, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var indices []int
	if err := json.Unmarshal([]byte(raw[start:end+1]), &indices); err != nil {
		return nil, false
	}
	if len(indices) != n {
		return nil, false
	}

	seen := make(map[int]bool, n)
	perm := make([]int, n)
	for i, idx := range indices {
		if idx < 1 || idx > n || seen[idx] {
			return nil, false
		}
		seen[idx] = true
		perm[i] = idx - 1
	}
	return perm, true
}
