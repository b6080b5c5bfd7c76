package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaLLM produces replies from a local or remote Ollama host.
type OllamaLLM struct {
	client *ollama.Client
	model  string
}

func NewOllamaLLM(host, model string) (*OllamaLLM, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	client := ollama.NewClient(u, &http.Client{Timeout: 60 * time.Second})
	return &OllamaLLM{client: client, model: model}, nil
}

func (o *OllamaLLM) Complete(ctx context.Context, system, user string) (string, error) {
	stream := false
	req := &ollama.ChatRequest{
		Model: o.model,
		Messages: []ollama.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: &stream,
	}

	var text strings.Builder
	if err := o.client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		return nil
	}); err != nil {
		return "", err
	}
	if text.Len() == 0 {
		return "", ErrNoReply
	}
	return text.String(), nil
}
