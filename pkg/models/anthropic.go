package models

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 1024

// AnthropicLLM produces replies through the Anthropic Messages API.
type AnthropicLLM struct {
	client anthropic.Client
	model  string
	apiKey string
}

func NewAnthropicLLM(apiKey, model string) (*AnthropicLLM, error) {
	return &AnthropicLLM{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		apiKey: apiKey,
	}, nil
}

func (a *AnthropicLLM) Complete(ctx context.Context, system, user string) (string, error) {
	if a.apiKey == "" {
		return "", ErrNotConfigured
	}
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", err
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrNoReply
	}
	return text.String(), nil
}
