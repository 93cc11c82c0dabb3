// Package mcp exposes the retrieval pipeline over the Model Context
// Protocol on stdio.
//
// Three tools are served:
//   - retrieve_context: run the full retrieval pipeline for one query
//     over a repository snapshot and return a token-bounded context
//   - submit_feedback: report which retrieved chunks were actually
//     used, feeding the adaptive weight learner
//   - retrieval_status: server build info, classifier fallback rate,
//     learner counters, and current fusion weight profiles
//
// Stdout carries the protocol, so all logging goes to stderr.
package mcp
