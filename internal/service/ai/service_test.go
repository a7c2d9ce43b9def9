package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/model/persona"
)

func transcript() []chat.Message {
	return []chat.Message{
		{ID: 1, Role: chat.RoleUser, Content: "Estou ansioso"},
		{ID: 2, Role: chat.RoleAssistant, Content: "Entendo. O que está acontecendo?"},
		{ID: 3, Role: chat.RoleUser, Content: "Trabalho demais"},
		{ID: 4, Role: chat.RoleAssistant, Content: "Isso parece pesado."},
	}
}

func TestBuildPromptFullHistory(t *testing.T) {
	p := persona.Default()
	got := BuildPrompt(p, transcript(), "E agora?", 0)

	want := Prompt{
		System: p.SystemPrompt,
		History: []Turn{
			{Role: RoleUser, Content: "Estou ansioso"},
			{Role: RoleAssistant, Content: "Entendo. O que está acontecendo?"},
			{Role: RoleUser, Content: "Trabalho demais"},
			{Role: RoleAssistant, Content: "Isso parece pesado."},
		},
		Query: "E agora?",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("prompt mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPromptHistoryLimit(t *testing.T) {
	got := BuildPrompt(persona.Default(), transcript(), "oi", 2)
	if len(got.History) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got.History))
	}
	if got.History[0].Content != "Trabalho demais" {
		t.Fatalf("expected newest turns to be kept, got %q", got.History[0].Content)
	}
}

func TestGenerateReplyPassesPrompt(t *testing.T) {
	var seen Prompt
	svc := NewService(CompleterFunc(func(_ context.Context, p Prompt) (string, error) {
		seen = p
		return "Estou aqui com você.", nil
	}), Options{}, nil)

	reply, err := svc.GenerateReply(context.Background(), persona.Default(), transcript(), "Obrigado")
	if err != nil {
		t.Fatalf("GenerateReply err: %v", err)
	}
	if reply != "Estou aqui com você." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if seen.Query != "Obrigado" || len(seen.History) != 4 {
		t.Fatalf("unexpected prompt sent: %+v", seen)
	}
}

func TestGenerateReplyFallbackOnBlank(t *testing.T) {
	svc := NewService(CompleterFunc(func(context.Context, Prompt) (string, error) {
		return "  \n", nil
	}), Options{}, nil)

	p := persona.Default()
	reply, err := svc.GenerateReply(context.Background(), p, nil, "oi")
	if err != nil {
		t.Fatalf("GenerateReply err: %v", err)
	}
	if reply != p.FallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
}

func TestGenerateReplyWrapsErrors(t *testing.T) {
	svc := NewService(nil, Options{}, nil)

	_, err := svc.GenerateReply(context.Background(), persona.Default(), nil, "oi")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerateReplyAppliesTimeout(t *testing.T) {
	svc := NewService(CompleterFunc(func(ctx context.Context, _ Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), Options{Timeout: 20 * time.Millisecond}, nil)

	_, err := svc.GenerateReply(context.Background(), persona.Default(), nil, "oi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestChainInputMapsRoles(t *testing.T) {
	input := chainInput(Prompt{
		System:  "sys",
		History: []Turn{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}, {Role: "tool", Content: "x"}},
		Query:   "q",
	})
	if input["system"] != "sys" || input["query"] != "q" {
		t.Fatalf("unexpected chain input: %v", input)
	}
}
