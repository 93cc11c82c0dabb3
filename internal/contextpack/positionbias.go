package contextpack

// BiasMode selects the position-bias mitigation layout
type BiasMode string

const (
	BiasOff         BiasMode = "off"
	BiasAlternating BiasMode = "alternating" // Odd positions front, even positions reversed at the back
	BiasBookends    BiasMode = "bookends"    // Top ~20% split across both ends, middle untouched
)

// minMitigationSize is the result count below which reordering is skipped
const minMitigationSize = 5

// bookendFraction is the share of top results the bookends mode pins to
// the window edges
const bookendFraction = 0.2

// MitigatePositionBias reorders ranked items so the strongest occupy
// both ends of the context window, countering lost-in-the-middle
// attention degradation. Input order is assumed best-first. The input
// slice is not modified.
func MitigatePositionBias[T any](items []T, mode BiasMode) []T {
	if mode == BiasOff || len(items) < minMitigationSize {
		return append([]T(nil), items...)
	}

	switch mode {
	case BiasAlternating:
		return alternating(items)
	case BiasBookends:
		return bookends(items)
	default:
		return append([]T(nil), items...)
	}
}

// alternating keeps odd positions (1st, 3rd, 5th...) at the front in
// original order and appends even positions at the end in reverse, so
// ranks 1 and 2 land on opposite edges.
func alternating[T any](items []T) []T {
	out := make([]T, 0, len(items))
	for i := 0; i < len(items); i += 2 {
		out = append(out, items[i])
	}
	for i := len(items) - 1; i >= 0; i-- {
		if i%2 == 1 {
			out = append(out, items[i])
		}
	}
	return out
}

// bookends pins the top fraction to both ends: first half of the top
// block leads, second half (reversed) trails, the middle keeps its
// original order.
func bookends[T any](items []T) []T {
	top := int(float64(len(items)) * bookendFraction)
	if top < 2 {
		top = 2
	}
	if top > len(items) {
		top = len(items)
	}

	head := (top + 1) / 2
	out := make([]T, 0, len(items))
	out = append(out, items[:head]...)
	out = append(out, items[top:]...)
	for i := top - 1; i >= head; i-- {
		out = append(out, items[i])
	}
	return out
}
