// Package embedding converts chunk texts into L2-normalized vectors through
// an OpenAI-compatible embeddings API.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// ErrModelUnavailable indicates the embedding backend could not be
// constructed. Fatal at startup when embeddings are required.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Embedder converts a batch of texts into one vector per text, in order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Provider implements Embedder against an OpenAI-compatible API. The client
// is constructed lazily on first use and reused for the life of the process;
// construction is guarded so concurrent first calls build a single client.
type Provider struct {
	modelName string
	apiKey    string
	baseURL   string

	mu     sync.Mutex
	client *openai.Client
}

// NewProvider creates a Provider for the given model. baseURL may be empty
// to use the default API endpoint.
func NewProvider(modelName, apiKey, baseURL string) *Provider {
	return &Provider{
		modelName: modelName,
		apiKey:    apiKey,
		baseURL:   baseURL,
	}
}

// ModelName returns the configured embedding model name.
func (p *Provider) ModelName() string {
	return p.modelName
}

// Load eagerly constructs the backend client. Callers that require
// embeddings should invoke this at startup and abort on failure.
func (p *Provider) Load() error {
	_, err := p.ensureClient()
	return err
}

// ensureClient constructs the API client once, under the lock.
func (p *Provider) ensureClient() (*openai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if p.modelName == "" {
		return nil, fmt.Errorf("%w: no model name configured", ErrModelUnavailable)
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrModelUnavailable)
	}

	cfg := openai.DefaultConfig(p.apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	p.client = openai.NewClientWithConfig(cfg)
	return p.client, nil
}

// EmbedBatch embeds all texts in a single API call and returns one
// L2-normalized vector per input text, in input order. An empty input
// returns an empty result without touching the backend.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	client, err := p.ensureClient()
	if err != nil {
		return nil, err
	}

	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.modelName),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors, expected %d", len(resp.Data), len(texts))
	}

	// The API may return results out of order; place each by its index.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding API returned invalid index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		Normalize(vec)
		vectors[d.Index] = vec
	}
	return vectors, nil
}

// Normalize scales v to unit L2 norm in place. A zero vector is left
// untouched (the norm substitutes 1.0 to avoid division by zero).
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1.0
	}
	inv := float32(1.0 / norm)
	for i := range v {
		v[i] *= inv
	}
}
