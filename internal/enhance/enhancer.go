package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/goretrieve-mcp/internal/ports"
)

// Config bounds enhancement calls
type Config struct {
	Timeout     time.Duration // Per enhancement call
	Temperature float64
	MaxTokens   int

	// MaxSubQueries caps multi-hop decomposition
	MaxSubQueries int
}

// DefaultConfig returns production enhancement settings.
func DefaultConfig() Config {
	return Config{
		Timeout:       2 * time.Second,
		Temperature:   0.3,
		MaxTokens:     400,
		MaxSubQueries: 3,
	}
}

// Enhancer wraps the text-generation port with query-enhancement
// prompts. A nil generator turns every enhancement into a no-op.
type Enhancer struct {
	generator ports.TextGenerator
	config    Config
}

// New creates an Enhancer.
func New(generator ports.TextGenerator, config Config) *Enhancer {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxSubQueries <= 0 {
		config.MaxSubQueries = DefaultConfig().MaxSubQueries
	}
	return &Enhancer{generator: generator, config: config}
}

const hydePrompt = `Write a short code snippet (10-20 lines, any mainstream language) that would plausibly answer this code-search question. Output only code, no explanation.

Question: %s

Code:`

// HyDE generates a hypothetical document for embedding search. On any
// failure the original query text comes back unchanged.
func (e *Enhancer) HyDE(ctx context.Context, query string) string {
	if e.generator == nil {
		return query
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	out, err := e.generator.Generate(ctx, fmt.Sprintf(hydePrompt, query), e.config.Temperature, e.config.MaxTokens)
	if err != nil {
		return query
	}

	out = stripFences(out)
	if strings.TrimSpace(out) == "" {
		return query
	}
	// Keep the original terms alongside the hypothetical document so
	// exact identifiers still match
	return query + "\n" + out
}

const decomposePrompt = `Split this code-search query into at most %d independent sub-queries, one per distinct thing being asked. Respond with only a JSON array of strings. If the query asks a single thing, respond with a one-element array.

Query: %q

JSON:`

// Decompose splits a compound query into sub-queries for multi-hop
// retrieval. A failed decomposition returns the query as its only hop.
func (e *Enhancer) Decompose(ctx context.Context, query string) []string {
	single := []string{query}
	if e.generator == nil || !looksCompound(query) {
		return single
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(decomposePrompt, e.config.MaxSubQueries, query)
	out, err := e.generator.Generate(ctx, prompt, e.config.Temperature, e.config.MaxTokens)
	if err != nil {
		return single
	}

	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		return single
	}

	var parts []string
	if err := json.Unmarshal([]byte(out[start:end+1]), &parts); err != nil {
		return single
	}

	cleaned := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return single
	}
	if len(cleaned) > e.config.MaxSubQueries {
		cleaned = cleaned[:e.config.MaxSubQueries]
	}
	return cleaned
}

const selfCheckPrompt = `Do these code snippets contain enough information to answer the question? Respond with only "yes" or "no".

Question: %s

Snippets:
%s

Answer:`

// SelfCheck asks whether retrieved snippets answer the query. Errors
// and ambiguous answers count as relevant so the check can only ever
// add work (a fallback pass), never discard a good result.
func (e *Enhancer) SelfCheck(ctx context.Context, query string, snippets []string) bool {
	if e.generator == nil || len(snippets) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(selfCheckPrompt, query, strings.Join(snippets, "\n---\n"))
	out, err := e.generator.Generate(ctx, prompt, 0, 10)
	if err != nil {
		return true
	}
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(out)), "no")
}

// looksCompound is a cheap gate: only queries with conjunction shapes
// are worth a decomposition call.
func looksCompound(query string) bool {
	lower := strings.ToLower(query)
	for _, marker := range []string{" and ", " also ", "; ", " as well as ", " plus "} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
