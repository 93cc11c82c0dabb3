package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Embedder is the query-embedding contract the storage vector index
// consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderConfig holds explicit embedder configuration
type EmbedderConfig struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	CacheSize int
}

// NewEmbedder creates an embedder from explicit configuration.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaEmbedder(cfg.APIKey, cfg.Model, cfg.BaseURL, cache)
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.BaseURL, cache)
	case ProviderLocal:
		return NewLocalEmbedder(cache), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewEmbedderFromEnv creates an embedder based on environment
// variables.
// Priority:
//  1. GORETRIEVE_EMBEDDING_PROVIDER (jina, openai, local)
//  2. Available API keys: JINA_API_KEY, then OPENAI_API_KEY
//  3. Local provider when no keys are set
func NewEmbedderFromEnv() (Embedder, error) {
	provider := DetectProvider()
	return NewEmbedder(EmbedderConfig{
		Provider:  provider,
		APIKey:    KeyForProvider(provider),
		CacheSize: DefaultCacheSize,
	})
}

// DetectProvider returns the provider the environment selects.
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

// KeyForProvider returns the API key the environment holds for a
// provider, empty when none applies.
func KeyForProvider(provider string) string {
	switch provider {
	case ProviderJina:
		return os.Getenv(EnvJinaAPIKey)
	case ProviderOpenAI:
		return os.Getenv(EnvOpenAIAPIKey)
	default:
		return ""
	}
}
