package contextpack

import "strings"

// TokenCounter estimates or computes the token count of a text
type TokenCounter interface {
	Count(text string) int
}

// TokenCounterFunc adapts a function to the TokenCounter interface
type TokenCounterFunc func(text string) int

// Count implements TokenCounter.
func (f TokenCounterFunc) Count(text string) int {
	return f(text)
}

// HeuristicCounter is the default estimator used when no exact tokenizer
// is injected. It takes the larger of a scaled word count and a
// character heuristic, which tracks BPE tokenizers closely enough for
// budgeting source code.
type HeuristicCounter struct{}

// Count estimates tokens as max(words * 1.3, chars / 4).
func (HeuristicCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	byWords := int(float64(len(strings.Fields(text))) * 1.3)
	byChars := len(text) / 4
	if byWords > byChars {
		return byWords
	}
	return byChars
}
