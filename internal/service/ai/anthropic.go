package ai

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/escuta-ai/escuta/backend/internal/config"
)

// AnthropicCompleter calls the Anthropic messages API.
type AnthropicCompleter struct {
	client      *anthropic.Client
	model       string
	temperature *float32
	maxTokens   int
}

// NewAnthropicCompleter creates a completer from cfg.
func NewAnthropicCompleter(cfg config.AIConfig) *AnthropicCompleter {
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicCompleter{
		client:      anthropic.NewClient(cfg.APIKey, opts...),
		model:       cfg.Model,
		temperature: float32Ptr(cfg.Temperature),
		// The messages API requires max_tokens.
		maxTokens: intOr(cfg.MaxTokens, 1024),
	}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	msgs := make([]anthropic.Message, 0, len(prompt.History)+1)
	for _, turn := range prompt.History {
		role := anthropic.RoleUser
		if turn.Role == RoleAssistant {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(turn.Content)},
		})
	}
	msgs = append(msgs, anthropic.Message{
		Role:    anthropic.RoleUser,
		Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(prompt.Query)},
	})

	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      prompt.System,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	return text.String(), nil
}
