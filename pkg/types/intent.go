package types

import (
	"errors"
	"time"
)

// IntentKind represents the classified purpose of a query
type IntentKind string

const (
	IntentSymbol   IntentKind = "symbol"   // Symbol navigation ("where is ParseFile defined")
	IntentFlow     IntentKind = "flow"     // Call-flow trace ("what happens after login")
	IntentConcept  IntentKind = "concept"  // Conceptual question ("how does caching work")
	IntentCode     IntentKind = "code"     // General code search ("retry with backoff")
	IntentBalanced IntentKind = "balanced" // No dominant intent
)

// AllIntentKinds lists every classifiable intent, in stable order.
var AllIntentKinds = []IntentKind{IntentSymbol, IntentFlow, IntentConcept, IntentCode, IntentBalanced}

// ClassificationMethod identifies which classifier produced an IntentResult
type ClassificationMethod string

const (
	MethodLLM   ClassificationMethod = "llm"
	MethodRules ClassificationMethod = "rules"
)

// IntentResult is the classified query category. Exactly one method is
// reported per result; when the LLM path fails or times out the rule-based
// fallback supplies the result instead.
type IntentResult struct {
	Kind       IntentKind
	Confidence float64 // 0..1 probability of the dominant kind
	Method     ClassificationMethod
	Latency    time.Duration

	// Probabilities holds the full multi-label distribution. Used by the
	// fusion engine to blend weight profiles when no kind dominates.
	Probabilities map[IntentKind]float64
}

// Validate checks classifier output invariants.
func (ir *IntentResult) Validate() error {
	switch ir.Kind {
	case IntentSymbol, IntentFlow, IntentConcept, IntentCode, IntentBalanced:
	default:
		return errors.New("invalid intent kind")
	}
	if ir.Confidence < 0 || ir.Confidence > 1 {
		return errors.New("confidence must be between 0 and 1")
	}
	if ir.Method != MethodLLM && ir.Method != MethodRules {
		return errors.New("invalid classification method")
	}
	return nil
}
