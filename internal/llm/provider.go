package llm

import (
	"context"
	"math"
)

// Provider scores semantic similarity between two texts with an embedding model
type Provider interface {
	// Name returns the method name recorded in evidence
	Name() string

	// Similarity returns the cosine similarity of the two texts scaled to 0-100
	Similarity(ctx context.Context, a, b string) (int, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Config holds embedding provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider: "", // Disabled by default
		Timeout:  30,
	}
}

// cosineScore maps the cosine of two vectors onto 0-100. Negative
// similarity counts as unrelated.
func cosineScore(a, b []float64) int {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		cos = 0
	}
	if cos > 1 {
		cos = 1
	}
	return int(math.Round(cos * 100))
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
