// Package retriever orchestrates the full retrieval pipeline: intent
// classification, scope selection, strategy routing, tiered backend
// fan-out, call-graph enrichment, fusion, optional rerank, and bounded
// context assembly with position-bias mitigation.
//
// One call does it all:
//
//	result, err := r.Retrieve(ctx, types.Query{
//		RepoID:      "acme/api",
//		SnapshotID:  "snap-42",
//		Text:        "how does session invalidation work",
//		TokenBudget: 8000,
//	})
//
// Backend branches run concurrently with per-branch timeouts; a failing
// backend degrades the result instead of failing the request, and every
// branch outcome lands in the result metadata. The whole call is bounded
// by an end-to-end timeout.
package retriever
