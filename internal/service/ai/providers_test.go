package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escuta-ai/escuta/backend/internal/config"
)

var conversation = Prompt{
	System:  "seja gentil",
	History: []Turn{{Role: RoleUser, Content: "oi"}, {Role: RoleAssistant, Content: "olá"}},
	Query:   "tudo bem?",
}

func testSampling() (*float64, *int) {
	temp := 0.7
	maxTokens := 200
	return &temp, &maxTokens
}

func TestAnthropicCompleterSendsConversation(t *testing.T) {
	var body struct {
		Model       string  `json:"model"`
		System      string  `json:"system"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1","type":"message","role":"assistant","model":"claude-test","content":[{"type":"text","text":"Estou "},{"type":"text","text":"aqui."}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	temp, maxTokens := testSampling()
	c := NewAnthropicCompleter(config.AIConfig{
		Provider:    config.ProviderAnthropic,
		APIKey:      "sk-ant",
		Model:       "claude-test",
		BaseURL:     srv.URL,
		Temperature: temp,
		MaxTokens:   maxTokens,
	})

	reply, err := c.Complete(context.Background(), conversation)
	require.NoError(t, err)
	require.Equal(t, "Estou aqui.", reply)

	require.Equal(t, "claude-test", body.Model)
	require.Equal(t, "seja gentil", body.System)
	require.Equal(t, 200, body.MaxTokens)
	require.InDelta(t, 0.7, body.Temperature, 0.001)
	require.Len(t, body.Messages, 3)
	require.Equal(t, "user", body.Messages[0].Role)
	require.Equal(t, "assistant", body.Messages[1].Role)
	require.Equal(t, "user", body.Messages[2].Role)
	require.Equal(t, "tudo bem?", body.Messages[2].Content[0].Text)
}

func TestAnthropicCompleterDefaultsMaxTokens(t *testing.T) {
	c := NewAnthropicCompleter(config.AIConfig{APIKey: "k", Model: "claude-test"})
	require.Equal(t, 1024, c.maxTokens)
}

func TestGeminiCompleterSendsConversation(t *testing.T) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role"`
		Parts []part `json:"parts"`
	}
	var body struct {
		Contents          []content `json:"contents"`
		SystemInstruction *content  `json:"systemInstruction"`
		GenerationConfig  struct {
			Temperature     float64 `json:"temperature"`
			MaxOutputTokens int     `json:"maxOutputTokens"`
		} `json:"generationConfig"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		assert.Equal(t, "gm-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Conte "},{"text":"mais."}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	temp, maxTokens := testSampling()
	c, err := NewGeminiCompleter(context.Background(), config.AIConfig{
		Provider:    config.ProviderGemini,
		APIKey:      "gm-key",
		Model:       "gemini-test",
		BaseURL:     srv.URL,
		Temperature: temp,
		MaxTokens:   maxTokens,
	})
	require.NoError(t, err)

	reply, err := c.Complete(context.Background(), conversation)
	require.NoError(t, err)
	require.Equal(t, "Conte mais.", reply)

	require.NotNil(t, body.SystemInstruction)
	require.Equal(t, "seja gentil", body.SystemInstruction.Parts[0].Text)
	require.Len(t, body.Contents, 3)
	require.Equal(t, "user", body.Contents[0].Role)
	require.Equal(t, "model", body.Contents[1].Role)
	require.Equal(t, "user", body.Contents[2].Role)
	require.Equal(t, "tudo bem?", body.Contents[2].Parts[0].Text)
	require.InDelta(t, 0.7, body.GenerationConfig.Temperature, 0.001)
	require.Equal(t, 200, body.GenerationConfig.MaxOutputTokens)
}

func TestGeminiCompleterNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiCompleter(context.Background(), config.AIConfig{APIKey: "k", Model: "gemini-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Prompt{Query: "oi"})
	require.Error(t, err)
}

type fakeChatModel struct {
	input []*schema.Message
	reply string
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestArkChainRendersConversation(t *testing.T) {
	fake := &fakeChatModel{reply: "Estou aqui."}
	c, err := newChainCompleter(context.Background(), fake)
	require.NoError(t, err)

	reply, err := c.Complete(context.Background(), conversation)
	require.NoError(t, err)
	require.Equal(t, "Estou aqui.", reply)

	require.Len(t, fake.input, 4)
	require.Equal(t, schema.System, fake.input[0].Role)
	require.Equal(t, "seja gentil", fake.input[0].Content)
	require.Equal(t, schema.User, fake.input[1].Role)
	require.Equal(t, schema.Assistant, fake.input[2].Role)
	require.Equal(t, schema.User, fake.input[3].Role)
	require.Equal(t, "tudo bem?", fake.input[3].Content)
}

func TestArkChainWithoutHistory(t *testing.T) {
	fake := &fakeChatModel{reply: "oi"}
	c, err := newChainCompleter(context.Background(), fake)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Prompt{System: "s", Query: "q"})
	require.NoError(t, err)
	require.Len(t, fake.input, 2)
}
