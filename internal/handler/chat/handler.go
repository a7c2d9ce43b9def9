package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/service/ai"
	chatService "github.com/escuta-ai/escuta/backend/internal/service/chat"
	"github.com/escuta-ai/escuta/backend/pkg/utils"
)

const (
	msgSessionNotFound = "Sessão não encontrada"
	msgSessionExpired  = "Tempo da sessão expirado"
	msgInvalidInput    = "Dados de entrada inválidos"
	msgBodyTooLarge    = "Requisição muito grande"
	msgAIUnavailable   = "Serviço de IA indisponível no momento"
	msgCreateFailed    = "Erro interno do servidor ao criar sessão"
	msgGetFailed       = "Erro interno do servidor ao buscar sessão"
	msgMessageFailed   = "Erro interno do servidor ao processar mensagem"
	msgListFailed      = "Erro interno do servidor ao buscar mensagens"
)

const defaultCountdownTick = time.Second

// Handler serves the trial chat routes.
type Handler struct {
	chatSvc *chatService.Service
	logger  *zap.Logger
	tick    time.Duration
}

// Option customises a Handler.
type Option func(*Handler)

// WithCountdownTick sets how often the countdown stream pushes an update.
func WithCountdownTick(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.tick = d
		}
	}
}

// New creates the chat handler.
func New(chatSvc *chatService.Service, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{chatSvc: chatSvc, logger: logger, tick: defaultCountdownTick}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the chat routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionId}", h.handleGetSession)
	r.Get("/session/{sessionId}/countdown", h.handleCountdown)
	r.Post("/message", h.handleSendMessage)
	r.Get("/messages/{sessionId}", h.handleListMessages)
}

type sessionSummary struct {
	SessionID     string `json:"sessionId"`
	RemainingTime int    `json:"remainingTime"`
	IsActive      bool   `json:"isActive"`
}

type sessionDetail struct {
	sessionSummary
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

type messageView struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Role      chat.Role `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

type exchangeView struct {
	UserMessage      messageView `json:"userMessage"`
	AssistantMessage messageView `json:"assistantMessage"`
	RemainingTime    int         `json:"remainingTime"`
}

func toMessageView(m chat.Message) messageView {
	return messageView{ID: m.ID, Content: m.Content, Role: m.Role, Timestamp: m.Timestamp}
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, msgCreateFailed)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionSummary{
		SessionID:     session.ID,
		RemainingTime: session.RemainingTime,
		IsActive:      session.IsActive,
	})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, msgSessionNotFound)
			return
		}
		h.logger.Error("get session failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, msgGetFailed)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionDetail{
		sessionSummary: sessionSummary{
			SessionID:     session.ID,
			RemainingTime: session.RemainingTime,
			IsActive:      session.IsActive,
		},
		StartTime: session.StartTime,
		EndTime:   session.EndTime,
	})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID *string `json:"sessionId"`
		Content   *string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		utils.RespondValidationError(w, msgInvalidInput, "body: invalid JSON")
		return
	}

	var problems []string
	if payload.SessionID == nil || strings.TrimSpace(*payload.SessionID) == "" {
		problems = append(problems, "sessionId: required")
	}
	if payload.Content == nil {
		problems = append(problems, "content: required")
	}
	if len(problems) > 0 {
		utils.RespondValidationError(w, msgInvalidInput, problems...)
		return
	}

	exchange, err := h.chatSvc.SendMessage(r.Context(), *payload.SessionID, *payload.Content)
	if err != nil {
		switch {
		case errors.Is(err, chatService.ErrInvalidContent):
			utils.RespondValidationError(w, msgInvalidInput, "content: "+strings.TrimPrefix(err.Error(), chatService.ErrInvalidContent.Error()+": "))
		case errors.Is(err, chatService.ErrSessionNotFound):
			utils.RespondError(w, http.StatusNotFound, msgSessionNotFound)
		case errors.Is(err, chatService.ErrSessionExpired):
			utils.RespondError(w, http.StatusBadRequest, msgSessionExpired)
		case errors.Is(err, ai.ErrUnavailable):
			utils.RespondError(w, http.StatusServiceUnavailable, msgAIUnavailable)
		default:
			h.logger.Error("send message failed", zap.String("session", *payload.SessionID), zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, msgMessageFailed)
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, exchangeView{
		UserMessage:      toMessageView(exchange.UserMessage),
		AssistantMessage: toMessageView(exchange.AssistantMessage),
		RemainingTime:    exchange.RemainingTime,
	})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.ListMessages(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, msgSessionNotFound)
			return
		}
		h.logger.Error("list messages failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, msgListFailed)
		return
	}

	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, toMessageView(m))
	}
	utils.RespondJSON(w, http.StatusOK, views)
}
