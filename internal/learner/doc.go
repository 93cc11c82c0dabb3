// Package learner adjusts per-intent fusion weight profiles from
// feedback events, entirely off the request path.
//
// Events arrive through a bounded queue and are batched; when the flush
// interval elapses, a pluggable UpdatePolicy turns the batch plus the
// current profiles into new profiles, and the learner swaps in a fresh
// immutable table. Readers always see a complete table, never a
// mid-update one. A full queue drops events rather than blocking the
// submitting request.
package learner
