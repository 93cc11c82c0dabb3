// Package llm provides the model-backed clients the retrieval pipeline
// plugs in at its ports: query embedders for vector search and a text
// generator for intent classification, query enhancement, and
// reranking prompts.
//
// Supported embedding providers:
//   - Jina AI (jina-embeddings-v3, 1024 dimensions)
//   - OpenAI (text-embedding-3-small, 1536 dimensions)
//   - Local deterministic embeddings (no API key, testing and offline use)
//
// Generation speaks the OpenAI chat-completions wire format, which an
// Ollama or vLLM endpoint also serves; point BaseURL at the server.
//
// All HTTP providers retry with exponential backoff and cache query
// embeddings in an LRU keyed by content hash.
package llm
