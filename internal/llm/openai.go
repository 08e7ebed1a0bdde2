package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider scores similarity with OpenAI embeddings
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.ListModels(ctx); err != nil {
		slog.Warn("OpenAI API check failed", "error", err)
		return false
	}
	return true
}

// Similarity embeds both texts in one request and compares the vectors
func (p *OpenAIProvider) Similarity(ctx context.Context, a, b string) (int, error) {
	embeddingModel := openai.SmallEmbedding3
	if p.config.Model != "" {
		embeddingModel = openai.EmbeddingModel(p.config.Model)
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{a, b},
		Model: embeddingModel,
	})
	if err != nil {
		return 0, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Data) != 2 {
		return 0, fmt.Errorf("expected 2 embeddings, got %d", len(resp.Data))
	}

	vectors := make([][]float64, 2)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index > 1 {
			return 0, fmt.Errorf("unexpected embedding index %d", d.Index)
		}
		vectors[d.Index] = toFloat64(d.Embedding)
	}

	return cosineScore(vectors[0], vectors[1]), nil
}
