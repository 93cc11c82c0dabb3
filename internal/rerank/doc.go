// Package rerank implements the optional listwise rerank stage between
// fusion and context assembly.
//
// The reranker shows the model the query and the top fused snippets,
// asks for a reordering of their indices, and applies it. Any failure
// (timeout, malformed output, indices that are not a permutation) leaves
// the fused order untouched, so the stage can only ever refine a
// ranking, never lose hits.
package rerank
