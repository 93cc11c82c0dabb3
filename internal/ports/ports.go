package ports

import (
	"context"

	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// SearchQuery is the common input to every index backend
type SearchQuery struct {
	RepoID     string
	SnapshotID string
	Text       string
	Limit      int
}

// VectorIndex performs embedding-similarity search
type VectorIndex interface {
	Search(ctx context.Context, q SearchQuery) ([]types.StrategyHit, error)
}

// LexicalIndex performs keyword / BM25 search
type LexicalIndex interface {
	Search(ctx context.Context, q SearchQuery) ([]types.StrategyHit, error)
}

// CallEdge is one edge in the call graph
type CallEdge struct {
	FromSymbolID string
	ToSymbolID   string
	Kind         EdgeKind
}

// EdgeKind classifies a call edge for cost weighting
type EdgeKind string

const (
	EdgeDirect   EdgeKind = "direct"   // Statically resolved call
	EdgeIndirect EdgeKind = "indirect" // Interface / dynamic dispatch
	EdgeTestOnly EdgeKind = "test"     // Reached only from test code
)

// SymbolIndex performs symbol-structured search and exposes the call graph
type SymbolIndex interface {
	Search(ctx context.Context, q SearchQuery) ([]types.StrategyHit, error)
	GetCallers(ctx context.Context, symbolID string) ([]CallEdge, error)
	GetCallees(ctx context.Context, symbolID string) ([]CallEdge, error)

	// ChunksForSymbol maps a symbol to the chunk ids covering its body
	ChunksForSymbol(ctx context.Context, symbolID string) ([]string, error)
}

// ChunkRecord is the stored content for one chunk id
type ChunkRecord struct {
	ChunkID   string
	Content   string
	FilePath  string
	StartLine int
	EndLine   int
	Summary   string // Optional precomputed summary; may stand in for content
	IsTest    bool
	IsMock    bool
}

// ChunkStore resolves chunk ids to content. GetChunksBatch is the
// preferred access path; the pipeline never fetches surviving ids
// one-by-one.
type ChunkStore interface {
	GetChunk(ctx context.Context, chunkID string) (*ChunkRecord, error)
	GetChunksBatch(ctx context.Context, chunkIDs []string) (map[string]*ChunkRecord, error)
}

// ImportanceNode is one node in the precomputed importance map
type ImportanceNode struct {
	ID            string
	ParentID      string // Empty at the root
	Path          string
	QualifiedName string
	Kind          string // module, file, class, function

	Importance float64
	PageRank   float64
	EdgeDegree int
	Depth      int
	BodyLines  int

	IsTest       bool
	IsEntrypoint bool

	ChunkIDs []string // Chunk ids this node covers directly
}

// ImportanceMap is the hierarchical importance index for one snapshot
type ImportanceMap struct {
	RepoID     string
	SnapshotID string
	Nodes      []ImportanceNode
}

// ImportanceStore loads the importance map for a snapshot. A missing map
// is reported with types.ErrImportanceMapUnavailable and degrades the
// scope selector to full-repo scope.
type ImportanceStore interface {
	GetMap(ctx context.Context, repoID, snapshotID string) (*ImportanceMap, error)
}

// TextGenerator is the bounded-latency text-generation port used for
// intent classification, query enhancement, and reranking prompts. The
// pipeline enforces its own timeouts around every call.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// FeedbackSink accepts adaptive-learning signals
type FeedbackSink interface {
	Submit(ctx context.Context, event types.FeedbackEvent) error
}
