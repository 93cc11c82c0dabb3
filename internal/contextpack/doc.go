// Package contextpack assembles fused hits into the final token-bounded
// context window.
//
// The builder deduplicates surviving chunk ids, fetches their content in
// one batch call, and walks the fused ordering accumulating tokens:
// chunks over the per-chunk ceiling are trimmed at line boundaries,
// chunks that still do not fit the remaining budget are trimmed then
// dropped, and assembly stops once ~95% of the budget is consumed. The
// total token count never exceeds the requested budget.
//
// Token counting is pluggable. The default estimator blends a word count
// and a character heuristic; an exact tokenizer can be injected where
// one is available.
//
// The position-bias mitigator reorders the final list so the strongest
// chunks sit at both ends of the window, countering lost-in-the-middle
// attention degradation in the consuming model.
package contextpack
