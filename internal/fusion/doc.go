// Package fusion merges ranked hit lists from heterogeneous search
// strategies into one ordered result using weighted Reciprocal Rank
// Fusion with quality-aware consensus boosting.
//
// # Weighted RRF
//
// For each chunk, every contributing strategy adds a component
//
//	weight(strategy) / (k + rank)
//
// where k defaults to 60 and is configurable per strategy. Raw backend
// scores are never compared across strategies; only ranks matter, which
// keeps incomparable score scales (cosine similarity vs BM25) out of the
// merge.
//
// # Consensus boost
//
// Agreement across independent strategies multiplies the raw sum:
//
//	score = sum * (1 + boost * (sqrt(min(n, cap)) - 1))
//
// The boost applies at full strength only when the strongest contributing
// component clears a threshold; otherwise half, so weak multi-strategy
// noise cannot outrank one confidently strong signal.
//
// # Weight profiles
//
// Strategy weights come from an immutable intent-to-profile table built
// at startup and swapped wholesale by the adaptive learner. Multi-label
// intents blend profiles by probability and renormalize to 1.
//
// Output is sorted by descending fused score; exact ties order by
// ascending chunk id so repeated runs are byte-identical.
package fusion
