package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/model/persona"
	"github.com/escuta-ai/escuta/backend/internal/store"
)

var (
	ErrSessionNotFound = store.ErrSessionNotFound
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidContent  = errors.New("invalid message content")
)

// Replier produces the assistant turn for a conversation.
type Replier interface {
	GenerateReply(ctx context.Context, p persona.Persona, history []chat.Message, userMessage string) (string, error)
}

// Config holds the trial rules.
type Config struct {
	TrialSeconds    int
	MaxMessageChars int
}

// Exchange is the result of one accepted user message.
type Exchange struct {
	UserMessage      chat.Message
	AssistantMessage chat.Message
	RemainingTime    int
}

// Service owns the trial session lifecycle: timing, message gating and relay to the model.
type Service struct {
	store    store.Store
	replier  Replier
	personas persona.Source
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService wires the session service.
func NewService(st store.Store, replier Replier, personas persona.Source, cfg Config, opts ...Option) *Service {
	if cfg.TrialSeconds <= 0 {
		cfg.TrialSeconds = chat.DefaultTrialSeconds
	}
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = 2000
	}

	s := &Service{
		store:    st,
		replier:  replier,
		personas: personas,
		cfg:      cfg,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrialSeconds returns the budget given to new sessions.
func (s *Service) TrialSeconds() int {
	return s.cfg.TrialSeconds
}

// Persona returns the persona currently answering.
func (s *Service) Persona() persona.Persona {
	return s.personas.Current()
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// CreateSession starts a new trial with the full budget.
func (s *Service) CreateSession(ctx context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:            uuid.NewString(),
		StartTime:     s.clock(),
		IsActive:      true,
		RemainingTime: s.cfg.TrialSeconds,
		Duration:      s.cfg.TrialSeconds,
	}

	created, err := s.store.CreateSession(ctx, session)
	if err != nil {
		return chat.Session{}, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("trial session created", zap.String("session", created.ID), zap.Int("seconds", created.Duration))
	return created, nil
}

// GetSession recomputes the remaining time from the stored start and persists it.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return s.refresh(ctx, session)
}

// Snapshot returns session as of now without writing it back.
func (s *Service) Snapshot(session chat.Session) chat.Session {
	return session.Apply(session.Recompute(s.clock()))
}

func (s *Service) refresh(ctx context.Context, session chat.Session) (chat.Session, error) {
	update := session.Recompute(s.clock())
	updated, err := s.store.UpdateSession(ctx, session.ID, update)
	if err != nil {
		return chat.Session{}, fmt.Errorf("update session: %w", err)
	}
	if session.IsActive && !updated.IsActive {
		s.logger.Info("trial session expired", zap.String("session", session.ID))
	}
	return updated, nil
}

// SendMessage relays one user message to the model if the session still has time.
// The user turn stays stored even when the model call fails.
func (s *Service) SendMessage(ctx context.Context, sessionID, content string) (Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Exchange{}, fmt.Errorf("%w: empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxMessageChars {
		return Exchange{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidContent, s.cfg.MaxMessageChars)
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Exchange{}, err
	}

	if session.Recompute(s.clock()).RemainingTime <= 0 {
		if _, err := s.refresh(ctx, session); err != nil {
			return Exchange{}, err
		}
		return Exchange{}, ErrSessionExpired
	}

	userMsg, err := s.store.AppendMessage(ctx, chat.Message{
		SessionID: sessionID,
		Role:      chat.RoleUser,
		Content:   content,
		Timestamp: s.clock(),
	})
	if err != nil {
		return Exchange{}, fmt.Errorf("save user message: %w", err)
	}

	history, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return Exchange{}, fmt.Errorf("load history: %w", err)
	}
	history = excludeMessage(history, userMsg.ID)

	reply, err := s.replier.GenerateReply(ctx, s.personas.Current(), history, content)
	if err != nil {
		s.logger.Error("assistant reply failed", zap.String("session", sessionID), zap.Error(err))
		return Exchange{}, err
	}

	assistantMsg, err := s.store.AppendMessage(ctx, chat.Message{
		SessionID: sessionID,
		Role:      chat.RoleAssistant,
		Content:   reply,
		Timestamp: s.clock(),
	})
	if err != nil {
		return Exchange{}, fmt.Errorf("save assistant message: %w", err)
	}

	updated, err := s.refresh(ctx, session)
	if err != nil {
		return Exchange{}, err
	}

	return Exchange{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		RemainingTime:    updated.RemainingTime,
	}, nil
}

// ListMessages returns the session transcript.
func (s *Service) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return s.store.ListMessages(ctx, sessionID)
}

// ExpireStale closes every active session whose budget ran out and reports how many it closed.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	active, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	now := s.clock()
	closed := 0
	for _, session := range active {
		update := session.Recompute(now)
		if update.IsActive {
			continue
		}
		if _, err := s.store.UpdateSession(ctx, session.ID, update); err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				continue
			}
			return closed, fmt.Errorf("expire session %s: %w", session.ID, err)
		}
		closed++
	}
	return closed, nil
}

func excludeMessage(messages []chat.Message, id int64) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.ID != id {
			out = append(out, msg)
		}
	}
	return out
}
