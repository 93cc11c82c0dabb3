package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Config controls classifier behavior
type Config struct {
	LLMTimeout        time.Duration // Bound on one classification call
	Temperature       float64
	MaxTokens         int
	FallbackWindow    time.Duration // Rolling window for the fallback-rate counter
	FallbackThreshold float64       // Alert threshold for FallbackRate
}

// DefaultConfig returns production classifier settings
func DefaultConfig() Config {
	return Config{
		LLMTimeout:        1500 * time.Millisecond,
		Temperature:       0.0,
		MaxTokens:         200,
		FallbackWindow:    5 * time.Minute,
		FallbackThreshold: 0.5,
	}
}

// Classifier categorizes queries by intent. Safe for concurrent use.
type Classifier struct {
	generator ports.TextGenerator
	config    Config
	counters  *rollingCounter
}

// NewClassifier creates a Classifier. A nil generator disables the LLM
// path entirely; every query then classifies through the rules.
func NewClassifier(generator ports.TextGenerator, config Config) *Classifier {
	if config.LLMTimeout <= 0 {
		config.LLMTimeout = DefaultConfig().LLMTimeout
	}
	if config.FallbackWindow <= 0 {
		config.FallbackWindow = DefaultConfig().FallbackWindow
	}
	return &Classifier{
		generator: generator,
		config:    config,
		counters:  newRollingCounter(config.FallbackWindow),
	}
}

// Classify determines the intent of a query. It never fails: when the LLM
// path is unusable the rule-based classifier supplies the result.
func (c *Classifier) Classify(ctx context.Context, query string) (types.IntentResult, error) {
	start := time.Now()

	if c.generator != nil {
		result, err := c.classifyLLM(ctx, query)
		if err == nil {
			result.Latency = time.Since(start)
			c.counters.record(false)
			return result, nil
		}
		// Fall through to rules. Not an error from the caller's view,
		// but tracked for SLO alerting.
		c.counters.record(true)
	}

	result := classifyRules(query)
	result.Latency = time.Since(start)
	return result, nil
}

// FallbackRate returns the fraction of classifications in the rolling
// window that fell back to rules.
func (c *Classifier) FallbackRate() float64 {
	return c.counters.rate()
}

// FallbackAlarming reports whether the fallback rate crossed the
// configured threshold.
func (c *Classifier) FallbackAlarming() bool {
	return c.counters.rate() >= c.config.FallbackThreshold
}

const classifyPrompt = `Classify the intent of a code-search query. Respond with only a JSON object mapping each intent to a probability summing to 1.

Intents:
- "symbol": locate a specific named function, type, or variable
- "flow": trace a call path or execution flow
- "concept": conceptual or architectural question
- "code": general code search by behavior or pattern
- "balanced": none of the above dominates

Query: %q

JSON:`

// classifyLLM runs the LLM classification path under its own timeout.
func (c *Classifier) classifyLLM(ctx context.Context, query string) (types.IntentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.LLMTimeout)
	defer cancel()

	prompt := fmt.Sprintf(classifyPrompt, query)
	raw, err := c.generator.Generate(ctx, prompt, c.config.Temperature, c.config.MaxTokens)
	if err != nil {
		return types.IntentResult{}, fmt.Errorf("llm classification: %w", err)
	}

	probs, err := parseProbabilities(raw)
	if err != nil {
		return types.IntentResult{}, fmt.Errorf("llm classification: %w", err)
	}

	kind, confidence := dominant(probs)
	return types.IntentResult{
		Kind:          kind,
		Confidence:    confidence,
		Method:        types.MethodLLM,
		Probabilities: probs,
	}, nil
}

// parseProbabilities extracts the intent distribution from model output.
// Tolerates surrounding prose and code fences; rejects distributions that
// are empty, contain unknown keys, or do not roughly sum to 1.
func parseProbabilities(raw string) (map[types.IntentKind]float64, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var parsed map[string]float64
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("empty distribution")
	}

	probs := make(map[types.IntentKind]float64, len(parsed))
	var sum float64
	for key, p := range parsed {
		kind := types.IntentKind(strings.ToLower(strings.TrimSpace(key)))
		switch kind {
		case types.IntentSymbol, types.IntentFlow, types.IntentConcept, types.IntentCode, types.IntentBalanced:
		default:
			return nil, fmt.Errorf("unknown intent %q", key)
		}
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("probability out of range for %q", key)
		}
		probs[kind] = p
		sum += p
	}
	if sum < 0.9 || sum > 1.1 {
		return nil, fmt.Errorf("probabilities sum to %.2f", sum)
	}

	// Renormalize so downstream blending can rely on a unit sum
	for kind := range probs {
		probs[kind] /= sum
	}
	return probs, nil
}

// dominant returns the highest-probability kind, breaking exact ties in
// the stable order of AllIntentKinds.
func dominant(probs map[types.IntentKind]float64) (types.IntentKind, float64) {
	best := types.IntentBalanced
	var bestP float64
	for _, kind := range types.AllIntentKinds {
		if p, ok := probs[kind]; ok && p > bestP {
			best = kind
			bestP = p
		}
	}
	return best, bestP
}
