package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChatGenerator implements text generation over the OpenAI
// chat-completions wire format. Pointing BaseURL at an Ollama or vLLM
// server works unchanged; those accept an empty API key.
type ChatGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewChatGenerator creates a chat-completions client. An API key is
// required only when baseURL is empty (the hosted OpenAI default).
func NewChatGenerator(apiKey, model, baseURL string) (*ChatGenerator, error) {
	if baseURL == "" {
		if apiKey == "" {
			return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
		}
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultGenerateModel
	}
	return &ChatGenerator{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Generate sends one user prompt and returns the first completion.
// Callers bound latency through ctx; this client adds retry with
// backoff underneath.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	text, err := retryWithBackoff(ctx, DefaultRetryConfig(), func() (string, error) {
		return g.callAPI(ctx, prompt, temperature, maxTokens)
	})
	if err != nil {
		return "", fmt.Errorf("%w (generate): %v", ErrProviderFailed, err)
	}
	return text, nil
}

func (g *ChatGenerator) callAPI(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	reqBody := map[string]interface{}{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": temperature,
	}
	if maxTokens > 0 {
		reqBody["max_tokens"] = maxTokens
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return apiResp.Choices[0].Message.Content, nil
}

// Model returns the generation model in use.
func (g *ChatGenerator) Model() string { return g.model }

// Close releases idle HTTP connections.
func (g *ChatGenerator) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}
