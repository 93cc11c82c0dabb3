package scope

import (
	"context"
	"strings"

	"github.com/dshills/goretrieve-mcp/internal/ports"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// Selection reasons recorded on the returned Scope
const (
	ReasonHints        = "explicit hints"
	ReasonIntent       = "intent heuristics"
	ReasonMapMissing   = "importance map unavailable"
	ReasonNoSelection  = "no nodes selected"
	ReasonBalancedSkip = "balanced intent searches full repo"
)

// Heuristic thresholds for intent-based node selection
const (
	overviewMaxDepth     = 2    // Shallow nodes considered for overview queries
	substantialBodyLines = 10   // Minimum body size for code-search nodes
	minImportance        = 0.01 // Ignore negligible nodes entirely
)

// Selector narrows a request to a focused node set
type Selector struct {
	store ports.ImportanceStore
}

// NewSelector creates a scope Selector backed by an importance store.
func NewSelector(store ports.ImportanceStore) *Selector {
	return &Selector{store: store}
}

// Select computes the scope for one request. It never fails: any problem
// loading or using the importance map degrades to full-repo scope with
// the reason recorded.
func (s *Selector) Select(ctx context.Context, query types.Query, intent types.IntentResult) types.Scope {
	if s.store == nil {
		return fullRepo(ReasonMapMissing)
	}

	m, err := s.store.GetMap(ctx, query.RepoID, query.SnapshotID)
	if err != nil || m == nil || len(m.Nodes) == 0 {
		return fullRepo(ReasonMapMissing)
	}

	idx := buildIndex(m)

	// Priority 1: explicit hints from the query
	if !query.Hints.Empty() {
		if sc, ok := s.selectByHints(idx, query.Hints); ok {
			return sc
		}
		// Hints that match nothing fall through to intent heuristics
	}

	// Priority 2: intent-kind heuristics
	if intent.Kind == types.IntentBalanced {
		return fullRepo(ReasonBalancedSkip)
	}

	selected := selectByIntent(idx, intent.Kind)
	if len(selected) == 0 {
		return fullRepo(ReasonNoSelection)
	}

	return buildScope(types.ScopeFocused, ReasonIntent, idx, selected)
}

// selectByHints matches hint strings against qualified names and paths.
func (s *Selector) selectByHints(idx *mapIndex, hints types.QueryHints) (types.Scope, bool) {
	var selected []*ports.ImportanceNode
	seen := make(map[string]struct{})

	add := func(node *ports.ImportanceNode) {
		if _, ok := seen[node.ID]; ok {
			return
		}
		seen[node.ID] = struct{}{}
		selected = append(selected, node)
	}

	all := make([]string, 0, len(hints.Symbols)+len(hints.Files)+len(hints.Modules))
	all = append(all, hints.Symbols...)
	all = append(all, hints.Files...)
	all = append(all, hints.Modules...)

	for _, hint := range all {
		for _, node := range idx.byScore {
			if matchHint(node, hint) {
				add(node)
			}
		}
	}

	if len(selected) == 0 {
		return types.Scope{}, false
	}

	scopeType := types.ScopeFocused
	if len(hints.Files) == 0 && len(hints.Modules) == 0 && len(hints.Symbols) > 0 {
		scopeType = types.ScopeSymbolOnly
	}
	return buildScope(scopeType, ReasonHints, idx, selected), true
}

// selectByIntent applies the per-intent node heuristics, walking each
// precomputed ordering until the node cap fills.
func selectByIntent(idx *mapIndex, kind types.IntentKind) []*ports.ImportanceNode {
	var selected []*ports.ImportanceNode

	take := func(node *ports.ImportanceNode, keep bool) bool {
		if keep && node.Importance >= minImportance {
			selected = append(selected, node)
		}
		return len(selected) < types.MaxScopeNodes
	}

	switch kind {
	case types.IntentConcept:
		// Entrypoints and shallow nodes orient the answer; back-fill with
		// high-importance non-test nodes
		for _, node := range idx.byScore {
			keep := node.IsEntrypoint || node.Depth <= overviewMaxDepth
			if !take(node, keep && !node.IsTest) {
				return selected
			}
		}
		for _, node := range idx.byScore {
			if !take(node, !node.IsTest && !contains(selected, node)) {
				break
			}
		}

	case types.IntentCode:
		// Function and class bodies of substance, tests excluded
		for _, node := range idx.byScore {
			keep := (node.Kind == "function" || node.Kind == "class" || node.Kind == "method") &&
				node.BodyLines >= substantialBodyLines && !node.IsTest
			if !take(node, keep) {
				break
			}
		}

	case types.IntentSymbol:
		// High-connectivity nodes ranked by pagerank
		for _, node := range idx.byPageRank {
			if !take(node, node.PageRank > 0 && !node.IsTest) {
				break
			}
		}

	case types.IntentFlow:
		// High edge-degree nodes carry the call traffic
		for _, node := range idx.byDegree {
			if !take(node, node.EdgeDegree > 0) {
				break
			}
		}
	}

	return selected
}

// buildScope expands selected nodes to their subtrees and applies the
// chunk-id cap.
func buildScope(scopeType types.ScopeType, reason string, idx *mapIndex, selected []*ports.ImportanceNode) types.Scope {
	if len(selected) > types.MaxScopeNodes {
		selected = selected[:types.MaxScopeNodes]
	}

	focus := make([]string, 0, len(selected))
	chunkIDs := make(map[string]struct{})

	for _, node := range selected {
		focus = append(focus, node.ID)
		for _, member := range idx.subtree(node.ID) {
			for _, chunkID := range member.ChunkIDs {
				if len(chunkIDs) >= types.MaxScopeChunkIDs {
					return types.Scope{Type: scopeType, Reason: reason, FocusNodes: focus, ChunkIDs: chunkIDs}
				}
				chunkIDs[chunkID] = struct{}{}
			}
		}
	}

	if len(chunkIDs) == 0 {
		return fullRepo(ReasonNoSelection)
	}
	return types.Scope{Type: scopeType, Reason: reason, FocusNodes: focus, ChunkIDs: chunkIDs}
}

func fullRepo(reason string) types.Scope {
	return types.Scope{Type: types.ScopeFullRepo, Reason: reason}
}

func contains(nodes []*ports.ImportanceNode, target *ports.ImportanceNode) bool {
	for _, n := range nodes {
		if n.ID == target.ID {
			return true
		}
	}
	return false
}

// HintsFromQuery extracts inline hints of the form path:foo/bar.go or
// symbol:Name from free query text. Used when the caller supplies no
// structured hints.
func HintsFromQuery(text string) types.QueryHints {
	var hints types.QueryHints
	for _, field := range strings.Fields(text) {
		switch {
		case strings.HasPrefix(field, "path:"):
			if v := strings.TrimPrefix(field, "path:"); v != "" {
				hints.Files = append(hints.Files, v)
			}
		case strings.HasPrefix(field, "symbol:"):
			if v := strings.TrimPrefix(field, "symbol:"); v != "" {
				hints.Symbols = append(hints.Symbols, v)
			}
		case strings.HasPrefix(field, "module:"):
			if v := strings.TrimPrefix(field, "module:"); v != "" {
				hints.Modules = append(hints.Modules, v)
			}
		}
	}
	return hints
}
