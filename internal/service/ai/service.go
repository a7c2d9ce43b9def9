package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/model/persona"
)

// Options tunes how the Service builds prompts.
type Options struct {
	// HistoryLimit keeps only the newest turns; zero sends the full history.
	HistoryLimit int
	// Timeout bounds one completion call; zero means no extra deadline.
	Timeout time.Duration
}

// Service turns a conversation into one assistant reply.
type Service struct {
	completer Completer
	opts      Options
	logger    *zap.Logger
}

// NewService wraps completer.
func NewService(completer Completer, opts Options, logger *zap.Logger) *Service {
	if completer == nil {
		completer = Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{completer: completer, opts: opts, logger: logger}
}

// Completer exposes the underlying provider for other model-backed features.
func (s *Service) Completer() Completer {
	return s.completer
}

// GenerateReply asks the model for the persona's answer to userMessage given prior turns.
// A blank model reply is replaced by the persona's fallback text.
func (s *Service) GenerateReply(ctx context.Context, p persona.Persona, history []chat.Message, userMessage string) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := s.completer.Complete(ctx, BuildPrompt(p, history, userMessage, s.opts.HistoryLimit))
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	if strings.TrimSpace(reply) == "" {
		s.logger.Warn("model returned empty reply, using fallback", zap.String("persona", p.ID))
		return p.FallbackReply, nil
	}

	s.logger.Debug("generated reply",
		zap.String("persona", p.ID),
		zap.Int("history", len(history)),
		zap.Int("length", len(reply)),
		zap.Duration("took", time.Since(started)),
	)
	return reply, nil
}

// BuildPrompt assembles the persona system prompt, prior turns and the new message.
func BuildPrompt(p persona.Persona, history []chat.Message, userMessage string, limit int) Prompt {
	start := 0
	if limit > 0 && len(history) > limit {
		start = len(history) - limit
	}

	turns := make([]Turn, 0, len(history)-start)
	for _, msg := range history[start:] {
		switch msg.Role {
		case chat.RoleUser:
			turns = append(turns, Turn{Role: RoleUser, Content: msg.Content})
		case chat.RoleAssistant:
			turns = append(turns, Turn{Role: RoleAssistant, Content: msg.Content})
		}
	}

	return Prompt{
		System:  p.SystemPrompt,
		History: turns,
		Query:   userMessage,
	}
}
