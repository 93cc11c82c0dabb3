package enhance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockGenerator struct {
	response string
	err      error
	prompts  []string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func TestHyDEAppendsHypotheticalDocument(t *testing.T) {
	gen := &mockGenerator{response: "func Retry(op func() error) error {\n\treturn nil\n}"}
	e := New(gen, DefaultConfig())

	out := e.HyDE(context.Background(), "retry with backoff")
	assert.Contains(t, out, "retry with backoff")
	assert.Contains(t, out, "func Retry")
}

func TestHyDEStripsCodeFences(t *testing.T) {
	gen := &mockGenerator{response: "```go\nfunc A() {}\n```"}
	e := New(gen, DefaultConfig())

	out := e.HyDE(context.Background(), "query")
	assert.Contains(t, out, "func A() {}")
	assert.NotContains(t, out, "```")
}

func TestHyDEDegradesToQuery(t *testing.T) {
	tests := []struct {
		name string
		gen  *mockGenerator
	}{
		{"generator error", &mockGenerator{err: errors.New("down")}},
		{"empty output", &mockGenerator{response: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.gen, DefaultConfig())
			assert.Equal(t, "the query", e.HyDE(context.Background(), "the query"))
		})
	}

	t.Run("nil generator", func(t *testing.T) {
		e := New(nil, DefaultConfig())
		assert.Equal(t, "the query", e.HyDE(context.Background(), "the query"))
	})
}

func TestDecomposeCompoundQuery(t *testing.T) {
	gen := &mockGenerator{response: `["where is the session created", "how is it invalidated"]`}
	e := New(gen, DefaultConfig())

	parts := e.Decompose(context.Background(), "where is the session created and how is it invalidated")
	assert.Equal(t, []string{"where is the session created", "how is it invalidated"}, parts)
}

func TestDecomposeSkipsSimpleQuery(t *testing.T) {
	gen := &mockGenerator{response: `["should not be called"]`}
	e := New(gen, DefaultConfig())

	parts := e.Decompose(context.Background(), "where is the session created")
	assert.Equal(t, []string{"where is the session created"}, parts)
	assert.Empty(t, gen.prompts, "decomposition must not call the generator for simple queries")
}

func TestDecomposeDegradesToSingle(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{"generator error", "", errors.New("down")},
		{"no array", "two sub-queries here", nil},
		{"malformed json", `["unterminated`, nil},
		{"empty array", `[]`, nil},
		{"blank entries", `["", "  "]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{response: tt.response, err: tt.err}
			e := New(gen, DefaultConfig())
			parts := e.Decompose(context.Background(), "this and that")
			assert.Equal(t, []string{"this and that"}, parts)
		})
	}
}

func TestDecomposeCapsSubQueries(t *testing.T) {
	gen := &mockGenerator{response: `["a", "b", "c", "d", "e"]`}
	cfg := DefaultConfig()
	cfg.MaxSubQueries = 3
	e := New(gen, cfg)

	parts := e.Decompose(context.Background(), "a and b and c and d and e")
	assert.Len(t, parts, 3)
}

func TestSelfCheck(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     bool
	}{
		{"yes", "yes", nil, true},
		{"no", "No.", nil, false},
		{"ambiguous counts as relevant", "maybe", nil, true},
		{"error counts as relevant", "", errors.New("down"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{response: tt.response, err: tt.err}
			e := New(gen, DefaultConfig())
			got := e.SelfCheck(context.Background(), "q", []string{"snippet"})
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no snippets", func(t *testing.T) {
		e := New(&mockGenerator{response: "no"}, DefaultConfig())
		assert.True(t, e.SelfCheck(context.Background(), "q", nil))
	})
}
