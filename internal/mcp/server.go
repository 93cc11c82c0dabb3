package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/goretrieve-mcp/internal/config"
	"github.com/dshills/goretrieve-mcp/internal/contextpack"
	"github.com/dshills/goretrieve-mcp/internal/learner"
	"github.com/dshills/goretrieve-mcp/internal/llm"
	"github.com/dshills/goretrieve-mcp/internal/retriever"
	"github.com/dshills/goretrieve-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "goretrieve-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the retrieval pipeline and its
// collaborators.
type Server struct {
	mcp       *server.MCPServer
	store     *storage.Store
	retriever *retriever.Retriever
	learner   *learner.Learner // Nil when learning is disabled
}

// NewServer wires storage, the embedding and generation clients, the
// learner, and the retrieval pipeline from configuration.
func NewServer(cfg config.Config) (*Server, error) {
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	deps := retriever.Deps{
		Vector:     storage.NewVectorIndex(store, embedder),
		Lexical:    store.Lexical(),
		Symbols:    store.Symbols(),
		Chunks:     store,
		Importance: store,
	}

	if cfg.Generation.Enabled {
		apiKey := cfg.Generation.APIKey
		if apiKey == "" {
			apiKey = os.Getenv(llm.EnvOpenAIAPIKey)
		}
		generator, err := llm.NewChatGenerator(apiKey, cfg.Generation.Model, cfg.Generation.BaseURL)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("initialize generator: %w", err)
		}
		deps.Generator = generator
	}

	var lrn *learner.Learner
	if cfg.Learner.Enabled {
		lrn = learner.New(nil, nil, learner.Config{
			QueueSize:     cfg.Learner.QueueSize,
			FlushInterval: time.Duration(cfg.Learner.FlushIntervalSeconds) * time.Second,
		})
		deps.Profiles = lrn
	}

	ret, err := retriever.New(deps, retrieverConfig(cfg.Retrieval))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize retriever: %w", err)
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		store:     store,
		retriever: ret,
		learner:   lrn,
	}
	s.registerTools()
	return s, nil
}

// newEmbedder resolves the embedding provider, auto-detecting from the
// environment when the config names none.
func newEmbedder(cfg config.EmbeddingConfig) (llm.Embedder, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = llm.DetectProvider()
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = llm.KeyForProvider(provider)
	}
	return llm.NewEmbedder(llm.EmbedderConfig{
		Provider:  provider,
		APIKey:    apiKey,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		CacheSize: cfg.CacheSize,
	})
}

// retrieverConfig maps the flat YAML settings onto the pipeline config.
func retrieverConfig(cfg config.RetrievalConfig) retriever.Config {
	out := retriever.DefaultConfig()
	out.DefaultTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	out.StrategyLimit = cfg.StrategyLimit
	out.CacheSize = cfg.CacheSize
	out.BiasMode = contextpack.BiasMode(cfg.BiasMode)
	out.SelfCheck = cfg.SelfCheck
	out.Rerank.Enabled = cfg.RerankEnabled
	if cfg.RerankTopN > 0 {
		out.Rerank.TopN = cfg.RerankTopN
	}
	return out
}

// Serve runs the learner in the background and blocks serving MCP on
// stdio until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()

	if s.learner != nil {
		go s.learner.Run(ctx)
	}
	return server.ServeStdio(s.mcp)
}

// Close releases the server's resources without serving.
func (s *Server) Close() error {
	return s.store.Close()
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(retrieveContextTool(), s.handleRetrieveContext)
	s.mcp.AddTool(submitFeedbackTool(), s.handleSubmitFeedback)
	s.mcp.AddTool(retrievalStatusTool(), s.handleRetrievalStatus)
}
