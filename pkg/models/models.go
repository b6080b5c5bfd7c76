// Package models provides chat-completion providers behind a single
// interface. The default provider speaks the OpenAI wire protocol against a
// configurable base URL, which covers OpenAI, OpenRouter and compatible
// gateways; Ollama, Anthropic and Gemini are available as alternatives.
package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ChatModel turns a system prompt and a user message into a single reply.
// A failure here is fatal to the conversational turn: no partial or
// fabricated reply is ever returned alongside an error.
type ChatModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var (
	// ErrNoReply means the upstream answered without usable content.
	ErrNoReply = errors.New("completion returned no content")

	// ErrNotConfigured means no credential was supplied for the provider.
	ErrNotConfigured = errors.New("completion provider is not configured")
)

// AutoModel selects a provider by name: "openai" (any OpenAI-compatible
// endpoint), "ollama", "anthropic", "gemini" or "dummy".
func AutoModel(ctx context.Context, provider, baseURL, apiKey, model string, headers map[string]string) (ChatModel, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		return NewOpenAILLM(baseURL, apiKey, model, headers), nil
	case "ollama":
		return NewOllamaLLM(baseURL, model)
	case "anthropic":
		return NewAnthropicLLM(apiKey, model)
	case "gemini":
		return NewGeminiLLM(ctx, apiKey, model)
	case "dummy":
		return NewDummyLLM(""), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", provider)
	}
}
