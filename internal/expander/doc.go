// Package expander walks the call graph along cost-weighted paths to
// enrich flow-style queries.
//
// The traversal is Dijkstra's shortest-path algorithm: seeds start at
// cost 0, edges cost by kind (direct, indirect/dynamic, test-only),
// adjusted by an intent-specific table (flow intent cheapens call edges
// to traverse deeper) and a multiplier penalizing paths through test or
// mock symbols. A path dies when its cumulative cost or depth exceeds a
// ceiling; the whole expansion halts at a node cap. Each node settles at
// most once: the first settled cost is minimal, so nodes are never
// revisited even if a cheaper-looking path turns up later.
//
// Settled nodes map to chunk hits scored max(0.1, 1 - cost/maxCost),
// ordered by ascending cost. Bidirectional mode runs forward (callees)
// and backward (callers) expansions independently and merges them under
// a configurable weight split, keeping the higher-weighted instance of
// a chunk seen from both sides.
package expander
