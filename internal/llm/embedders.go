package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIEmbedder calls an OpenAI-compatible /embeddings endpoint. Jina and
// OpenAI share the wire format and differ only in endpoint, model, and
// key.
type APIEmbedder struct {
	provider   string
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

// NewJinaEmbedder creates a Jina AI embedder. Empty model and baseURL
// use the provider defaults.
func NewJinaEmbedder(apiKey, model, baseURL string, cache *Cache) (*APIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	if model == "" {
		model = DefaultJinaModel
	}
	if baseURL == "" {
		baseURL = DefaultJinaBaseURL
	}
	return &APIEmbedder{
		provider:   ProviderJina,
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		dimension:  JinaDimension,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}, nil
}

// NewOpenAIEmbedder creates an OpenAI embedder. Empty model and baseURL
// use the provider defaults.
func NewOpenAIEmbedder(apiKey, model, baseURL string, cache *Cache) (*APIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &APIEmbedder{
		provider:   ProviderOpenAI,
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		dimension:  OpenAIDimension,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}, nil
}

// Embed returns the embedding vector for one text, served from cache
// when the same content was embedded before.
func (e *APIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if vector, ok := e.cache.Get(hash); ok {
		return vector, nil
	}

	vector, err := retryWithBackoff(ctx, DefaultRetryConfig(), func() ([]float32, error) {
		return e.callAPI(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %v", ErrProviderFailed, e.provider, err)
	}

	e.cache.Set(hash, vector)
	return vector, nil
}

func (e *APIEmbedder) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"input": []string{text},
		"model": e.model,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return apiResp.Data[0].Embedding, nil
}

// Provider returns the provider name.
func (e *APIEmbedder) Provider() string { return e.provider }

// Model returns the embedding model in use.
func (e *APIEmbedder) Model() string { return e.model }

// Dimension returns the provider's embedding dimension.
func (e *APIEmbedder) Dimension() int { return e.dimension }

// Close releases idle HTTP connections.
func (e *APIEmbedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

// LocalEmbedder produces deterministic embeddings derived from the
// content hash. No API key or network is needed, so it serves tests
// and offline setups; retrieval quality then rests on the lexical and
// symbol strategies.
type LocalEmbedder struct {
	model string
	cache *Cache
}

// NewLocalEmbedder creates the local deterministic embedder.
func NewLocalEmbedder(cache *Cache) *LocalEmbedder {
	return &LocalEmbedder{model: "local-embeddings", cache: cache}
}

// Embed returns a unit-length vector derived from repeated hashing of
// the text. Identical texts always embed identically.
func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if vector, ok := l.cache.Get(hash); ok {
		return vector, nil
	}

	vector := make([]float32, LocalDimension)
	block := sha256.Sum256([]byte(text))
	for i := 0; i < LocalDimension; i++ {
		if i%len(block) == 0 && i > 0 {
			block = sha256.Sum256(block[:])
		}
		// Center bytes into [-1, 1]
		vector[i] = (float32(block[i%len(block)]) - 127.5) / 127.5
	}
	vector = NormalizeVector(vector)

	l.cache.Set(hash, vector)
	return vector, nil
}

// Provider returns the provider name.
func (l *LocalEmbedder) Provider() string { return ProviderLocal }

// Model returns the model identifier.
func (l *LocalEmbedder) Model() string { return l.model }

// Dimension returns the local embedding dimension.
func (l *LocalEmbedder) Dimension() int { return LocalDimension }

// Close is a no-op for the local provider.
func (l *LocalEmbedder) Close() error { return nil }
