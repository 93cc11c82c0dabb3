// Package enhance implements LLM-backed query enhancement add-ons that
// layer onto the retrieval pipeline:
//
//   - HyDE: generate a hypothetical code snippet answering the query and
//     search the vector index with it instead of the raw question, which
//     pulls embedding similarity toward code-shaped text.
//   - Multi-hop decomposition: split a compound query into independent
//     sub-queries fanned out separately and fused together.
//   - Self-check: a Self-RAG style relevance pass asking the model
//     whether the retrieved snippets actually answer the query, feeding
//     the fallback-tier decision.
//
// Every call is bounded by its own timeout and degrades gracefully: a
// failed enhancement returns the original query untouched, never an
// error the pipeline has to handle.
package enhance
