package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/escuta-ai/escuta/backend/internal/config"
)

// ErrUnavailable is returned when no completion provider is configured.
var ErrUnavailable = errors.New("completion provider unavailable")

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string
	Content string
}

// Turn roles, matching the chat completion wire format.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Prompt is everything a provider needs to produce one reply.
type Prompt struct {
	System  string
	History []Turn
	Query   string
}

// Completer sends a prompt to a hosted model and returns its reply text.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt Prompt) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// Unavailable is the Completer used when credentials are missing.
type Unavailable struct{}

// Complete always fails with ErrUnavailable.
func (Unavailable) Complete(context.Context, Prompt) (string, error) {
	return "", ErrUnavailable
}

// NewCompleter builds the provider selected in cfg.
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrUnavailable)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAICompleter(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropicCompleter(cfg), nil
	case config.ProviderGemini:
		return NewGeminiCompleter(ctx, cfg)
	case config.ProviderArk:
		return NewArkCompleter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

func float32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}

func intOr(v *int, def int) int {
	if v == nil || *v <= 0 {
		return def
	}
	return *v
}
