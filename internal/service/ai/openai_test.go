package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escuta-ai/escuta/backend/internal/config"
)

func TestOpenAICompleterSendsConversation(t *testing.T) {
	var body struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"Conte mais."},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	temp := 0.7
	maxTokens := 200
	c := NewOpenAICompleter(config.AIConfig{
		Provider:    config.ProviderOpenAI,
		APIKey:      "sk-test",
		Model:       "gpt-4o",
		BaseURL:     srv.URL,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})

	reply, err := c.Complete(context.Background(), Prompt{
		System:  "seja gentil",
		History: []Turn{{Role: RoleUser, Content: "oi"}, {Role: RoleAssistant, Content: "olá"}},
		Query:   "tudo bem?",
	})
	require.NoError(t, err)
	require.Equal(t, "Conte mais.", reply)

	require.Equal(t, "gpt-4o", body.Model)
	require.Equal(t, 200, body.MaxTokens)
	require.InDelta(t, 0.7, body.Temperature, 0.001)
	require.Len(t, body.Messages, 4)
	require.Equal(t, "system", body.Messages[0].Role)
	require.Equal(t, "assistant", body.Messages[2].Role)
	require.Equal(t, "tudo bem?", body.Messages[3].Content)
}

func TestOpenAICompleterEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(config.AIConfig{APIKey: "k", Model: "gpt-4o", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), Prompt{Query: "oi"})
	require.Error(t, err)
}

func TestNewCompleterRequiresCredentials(t *testing.T) {
	_, err := NewCompleter(context.Background(), config.AIConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o"})
	require.ErrorIs(t, err, ErrUnavailable)
}
