// Package intent classifies retrieval queries into search intents.
//
// Classification is LLM-first with a deterministic rule-based fallback:
//
//   - The LLM path prompts the text-generation port under a short bounded
//     timeout (default 1.5s) and parses a JSON probability distribution.
//   - On timeout, malformed output, or any generator error, the rule-based
//     classifier takes over. It matches keyword and symbol patterns and
//     always succeeds.
//
// Exactly one method is reported per result. Fallbacks are not errors;
// they are tracked in a rolling window so operators can alert when the
// fallback rate crosses a threshold:
//
//	c := intent.NewClassifier(generator, intent.DefaultConfig())
//	result, _ := c.Classify(ctx, "where is ParseFile defined")
//	// result.Kind == types.IntentSymbol, result.Method == "llm" or "rules"
//
//	if c.FallbackRate() > 0.5 {
//	    // LLM classification is degraded; page someone
//	}
package intent
