// Package scope narrows the search space for a request using a
// precomputed importance map.
//
// Selection runs in priority order: explicit symbol/file/module hints
// first, then intent-kind heuristics over the map (entrypoints for
// overview-style concept queries, high-importance non-test nodes for
// concepts, substantial function bodies for code search, pagerank-ranked
// nodes for symbol navigation, high edge-degree nodes for flow traces).
// Selected nodes expand to their subtrees through a prebuilt child index,
// never by rescanning the node list.
//
// Focused scopes are capped at 100 nodes and 500 chunk ids. When the map
// is unavailable or selection comes up empty, the selector degrades to
// full-repo scope and records why.
package scope
