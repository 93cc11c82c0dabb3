package scope

import (
	"sort"
	"strings"

	"github.com/dshills/goretrieve-mcp/internal/ports"
)

// mapIndex is the importance map reshaped for O(1) lookup: node-by-id,
// children-by-parent, and a by-importance ordering built once per request.
type mapIndex struct {
	byID       map[string]*ports.ImportanceNode
	children   map[string][]*ports.ImportanceNode
	byScore    []*ports.ImportanceNode // Descending importance
	byPageRank []*ports.ImportanceNode // Descending pagerank
	byDegree   []*ports.ImportanceNode // Descending edge degree
}

func buildIndex(m *ports.ImportanceMap) *mapIndex {
	idx := &mapIndex{
		byID:     make(map[string]*ports.ImportanceNode, len(m.Nodes)),
		children: make(map[string][]*ports.ImportanceNode, len(m.Nodes)),
	}

	for i := range m.Nodes {
		node := &m.Nodes[i]
		idx.byID[node.ID] = node
		if node.ParentID != "" {
			idx.children[node.ParentID] = append(idx.children[node.ParentID], node)
		}
	}

	idx.byScore = make([]*ports.ImportanceNode, 0, len(m.Nodes))
	for i := range m.Nodes {
		idx.byScore = append(idx.byScore, &m.Nodes[i])
	}
	idx.byPageRank = append([]*ports.ImportanceNode(nil), idx.byScore...)
	idx.byDegree = append([]*ports.ImportanceNode(nil), idx.byScore...)

	// Secondary sort on id keeps selection deterministic for equal scores
	sort.Slice(idx.byScore, func(i, j int) bool {
		if idx.byScore[i].Importance != idx.byScore[j].Importance {
			return idx.byScore[i].Importance > idx.byScore[j].Importance
		}
		return idx.byScore[i].ID < idx.byScore[j].ID
	})
	sort.Slice(idx.byPageRank, func(i, j int) bool {
		if idx.byPageRank[i].PageRank != idx.byPageRank[j].PageRank {
			return idx.byPageRank[i].PageRank > idx.byPageRank[j].PageRank
		}
		return idx.byPageRank[i].ID < idx.byPageRank[j].ID
	})
	sort.Slice(idx.byDegree, func(i, j int) bool {
		if idx.byDegree[i].EdgeDegree != idx.byDegree[j].EdgeDegree {
			return idx.byDegree[i].EdgeDegree > idx.byDegree[j].EdgeDegree
		}
		return idx.byDegree[i].ID < idx.byDegree[j].ID
	})

	return idx
}

// subtree returns the node and every descendant via the child index.
func (idx *mapIndex) subtree(nodeID string) []*ports.ImportanceNode {
	root, ok := idx.byID[nodeID]
	if !ok {
		return nil
	}

	var out []*ports.ImportanceNode
	stack := []*ports.ImportanceNode{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, node)
		stack = append(stack, idx.children[node.ID]...)
	}
	return out
}

// matchHint reports whether a node matches a symbol, file, or module hint.
func matchHint(node *ports.ImportanceNode, hint string) bool {
	if hint == "" {
		return false
	}
	lower := strings.ToLower(hint)
	if strings.EqualFold(node.QualifiedName, hint) {
		return true
	}
	if strings.Contains(strings.ToLower(node.QualifiedName), lower) {
		return true
	}
	return strings.Contains(strings.ToLower(node.Path), lower)
}
