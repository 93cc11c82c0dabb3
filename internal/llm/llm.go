package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Provider names and defaults
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	DefaultJinaModel     = "jina-embeddings-v3"
	DefaultOpenAIModel   = "text-embedding-3-small"
	DefaultGenerateModel = "gpt-4o-mini"

	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	DefaultJinaBaseURL   = "https://api.jina.ai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	DefaultCacheSize = 10000
)

// Environment variables consulted by the factory
const (
	EnvProvider     = "GORETRIEVE_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Sentinel errors
var (
	ErrNoProviderEnabled   = errors.New("no provider enabled")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrProviderFailed      = errors.New("provider request failed")
	ErrEmptyText           = errors.New("empty text")
	ErrEmptyPrompt         = errors.New("empty prompt")
)

// ComputeHash returns the cache key for a text: hex sha256 of the
// content.
func ComputeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Cache is an LRU of computed embeddings keyed by content hash.
type Cache struct {
	lru *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache. Size at or below zero disables
// caching by returning nil.
func NewCache(size int) *Cache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil
	}
	return &Cache{lru: c}
}

// Get returns the cached vector for a content hash.
func (c *Cache) Get(hash string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(hash)
}

// Set stores a vector under its content hash.
func (c *Cache) Set(hash string, vector []float32) {
	if c == nil {
		return
	}
	c.lru.Add(hash, vector)
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// NormalizeVector scales a vector to unit length so dot products equal
// cosine similarity.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
