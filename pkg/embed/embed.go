// Package embed converts text batches to fixed-length vectors via a
// pluggable provider. Recall and fact storage must keep working when the
// provider is down, so callers go through the Degrading wrapper rather than
// talking to a provider directly.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Embedder is a pluggable batch text-embedding provider. Implementations
// issue a single request per call and return one vector per input, in input
// order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrNotSupported is returned by providers that answered without vectors.
var ErrNotSupported = errors.New("embeddings not supported by this provider")

// DummyEmbedder produces deterministic vectors without network access,
// suitable for tests and offline demos.
type DummyEmbedder struct{}

func (DummyEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = DummyEmbedding(text)
	}
	return out, nil
}

// DummyEmbedding folds the text's bytes into a 768-dimensional vector.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, 768)
	for i, ch := range []byte(text) {
		vec[i%768] += float32(ch) / 255.0
	}
	return vec
}

// AutoEmbedder selects a provider by name: "openai" (any OpenAI-compatible
// endpoint), "ollama", "gemini" or "dummy". An empty provider with no API
// key yields nil, which Degrading treats as the unconfigured short-circuit.
func AutoEmbedder(ctx context.Context, provider, baseURL, apiKey, model string, headers map[string]string) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		if apiKey == "" {
			return nil, nil
		}
		return NewOpenAIEmbedder(baseURL, apiKey, model, headers), nil
	case "ollama":
		return NewOllamaEmbedder(baseURL, model)
	case "gemini":
		return NewGeminiEmbedder(ctx, apiKey, model)
	case "dummy":
		return DummyEmbedder{}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}
