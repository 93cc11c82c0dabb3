package intent

import (
	"regexp"
	"strings"

	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Rule-based fallback classifier. Pattern and keyword matching only; it
// always succeeds and never calls out of process.

var (
	// Identifier-looking tokens: CamelCase, snake_case, dotted or
	// double-colon qualified names
	identifierPattern = regexp.MustCompile(`\b([a-z]+[A-Z]\w*|[A-Z]\w*[a-z]\w*[A-Z]\w*|\w+_\w+|\w+\.\w+\(|\w+::\w+)`)

	// Code punctuation that rarely appears in plain English questions
	codeTokenPattern = regexp.MustCompile(`[(){}\[\];]|->|=>|:=`)
)

var flowKeywords = []string{
	"call", "calls", "called", "caller", "callers", "callee", "callees",
	"flow", "trace", "path", "invoke", "invokes", "triggered",
	"leads to", "happens after", "happens when", "chain",
}

var conceptKeywords = []string{
	"how does", "how do", "why", "what is", "what are", "explain",
	"overview", "architecture", "design", "purpose", "concept",
	"responsible for", "work", "works",
}

var symbolKeywords = []string{
	"where is", "definition", "defined", "declaration", "declared",
	"signature", "find the function", "find the type", "locate",
}

// classifyRules is the deterministic fallback. The returned probabilities
// are heuristic scores normalized to a distribution so profile blending
// behaves the same regardless of method.
func classifyRules(query string) types.IntentResult {
	lower := strings.ToLower(query)

	scores := map[types.IntentKind]float64{
		types.IntentSymbol:   0,
		types.IntentFlow:     0,
		types.IntentConcept:  0,
		types.IntentCode:     0,
		types.IntentBalanced: 0.5, // Prior so empty evidence stays balanced
	}

	for _, kw := range flowKeywords {
		if strings.Contains(lower, kw) {
			scores[types.IntentFlow] += 1.0
		}
	}
	for _, kw := range conceptKeywords {
		if strings.Contains(lower, kw) {
			scores[types.IntentConcept] += 1.0
		}
	}
	for _, kw := range symbolKeywords {
		if strings.Contains(lower, kw) {
			scores[types.IntentSymbol] += 1.2
		}
	}

	// Identifier-shaped tokens are strong evidence of symbol navigation,
	// unless flow language already dominates the phrasing.
	if ids := identifierPattern.FindAllString(query, -1); len(ids) > 0 {
		if scores[types.IntentFlow] > 0 {
			scores[types.IntentFlow] += 0.5 * float64(len(ids))
		} else {
			scores[types.IntentSymbol] += 0.8 * float64(len(ids))
		}
	}

	// Raw code punctuation suggests a code-shaped query
	if codeTokenPattern.MatchString(query) {
		scores[types.IntentCode] += 1.0
	}

	// Short queries with no other evidence read as general code search
	words := strings.Fields(lower)
	if len(words) <= 3 && maxScoreExcept(scores, types.IntentBalanced) == 0 {
		scores[types.IntentCode] += 0.8
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	probs := make(map[types.IntentKind]float64, len(scores))
	for kind, s := range scores {
		probs[kind] = s / sum
	}

	kind, confidence := dominant(probs)
	return types.IntentResult{
		Kind:          kind,
		Confidence:    confidence,
		Method:        types.MethodRules,
		Probabilities: probs,
	}
}

func maxScoreExcept(scores map[types.IntentKind]float64, skip types.IntentKind) float64 {
	var max float64
	for kind, s := range scores {
		if kind == skip {
			continue
		}
		if s > max {
			max = s
		}
	}
	return max
}
