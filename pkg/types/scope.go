package types

// ScopeType describes how the search space was narrowed
type ScopeType string

const (
	ScopeFullRepo   ScopeType = "full_repo"   // No narrowing; search everything
	ScopeFocused    ScopeType = "focused"     // Importance-map selected node set
	ScopeSymbolOnly ScopeType = "symbol_only" // Explicit symbol hints only
)

// Scope caps keep focused scopes bounded regardless of map size
const (
	MaxScopeNodes    = 100
	MaxScopeChunkIDs = 500
)

// Scope is the restricted search space for one request. A focused scope
// carries the selected importance-map node ids and the chunk ids they
// cover; a full-repo scope carries neither.
type Scope struct {
	Type   ScopeType
	Reason string // Why this scope was chosen (or why focusing degraded)

	FocusNodes []string            // Importance-map node ids, by descending importance
	ChunkIDs   map[string]struct{} // Chunk ids covered by the focus nodes, capped
}

// Focused reports whether the scope actually narrows the search space.
func (s *Scope) Focused() bool {
	return s.Type != ScopeFullRepo && len(s.ChunkIDs) > 0
}

// Contains reports whether a chunk id falls inside the scope. Full-repo
// scopes contain everything.
func (s *Scope) Contains(chunkID string) bool {
	if !s.Focused() {
		return true
	}
	_, ok := s.ChunkIDs[chunkID]
	return ok
}
