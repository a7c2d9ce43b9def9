package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatService "github.com/escuta-ai/escuta/backend/internal/service/chat"
	"github.com/escuta-ai/escuta/backend/pkg/utils"
)

type countdownTick struct {
	RemainingTime int  `json:"remainingTime"`
	IsActive      bool `json:"isActive"`
}

// handleCountdown streams the server-side remaining time as SSE "tick" events
// and closes with an "expired" event once the budget is spent. Only the first
// lookup and the expiry touch the store.
func (h *Handler) handleCountdown(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionId")

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, msgSessionNotFound)
			return
		}
		h.logger.Error("countdown lookup failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, msgGetFailed)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	h.logger.Debug("countdown stream opened", zap.String("session", sessionID))
	defer h.logger.Debug("countdown stream closed", zap.String("session", sessionID))

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		tick := countdownTick{RemainingTime: session.RemainingTime, IsActive: session.IsActive}
		if !tick.IsActive {
			utils.SendSSEEvent(w, flusher, "expired", tick)
			return
		}
		if !utils.SendSSEEvent(w, flusher, "tick", tick) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		session = h.chatSvc.Snapshot(session)
		if session.IsActive {
			continue
		}

		// Persist the expiry once; ticks in between are read-only.
		session, err = h.chatSvc.GetSession(ctx, sessionID)
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("countdown refresh failed", zap.String("session", sessionID), zap.Error(err))
				utils.SendSSEEvent(w, flusher, "error", map[string]string{"message": msgGetFailed})
			}
			return
		}
	}
}
