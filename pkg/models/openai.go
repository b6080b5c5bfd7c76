package models

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAILLM speaks the OpenAI chat-completions protocol against a
// configurable base URL.
type OpenAILLM struct {
	client *openai.Client
	model  string
	apiKey string
}

func NewOpenAILLM(baseURL, apiKey, model string, headers map[string]string) *OpenAILLM {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if len(headers) > 0 {
		cfg.HTTPClient = &http.Client{Transport: headerTransport{headers: headers}}
	}
	return &OpenAILLM{client: openai.NewClientWithConfig(cfg), model: model, apiKey: apiKey}
}

func (o *OpenAILLM) Complete(ctx context.Context, system, user string) (string, error) {
	if o.apiKey == "" {
		return "", ErrNotConfigured
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrNoReply
	}
	return resp.Choices[0].Message.Content, nil
}

// headerTransport attaches fixed headers to every request, used for
// OpenRouter etiquette headers (HTTP-Referer, X-Title).
type headerTransport struct {
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}
	return http.DefaultTransport.RoundTrip(req)
}
