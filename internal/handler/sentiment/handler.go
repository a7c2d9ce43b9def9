package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	analysis "github.com/escuta-ai/escuta/backend/internal/analysis/sentiment"
	"github.com/escuta-ai/escuta/backend/pkg/utils"
)

// Analyzer rates the mood of a text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) analysis.Result
}

// Handler serves POST /sentiment.
type Handler struct {
	analyzer Analyzer
}

// New creates the sentiment handler.
func New(analyzer Analyzer) *Handler {
	return &Handler{analyzer: analyzer}
}

// RegisterRoutes mounts the sentiment route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sentiment", h.handleAnalyze)
}

type resultView struct {
	Rating      int      `json:"rating"`
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondValidationError(w, "Dados de entrada inválidos", "body: invalid JSON")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondValidationError(w, "Dados de entrada inválidos", "text: required")
		return
	}

	result := h.analyzer.Analyze(r.Context(), payload.Text)
	suggestions := result.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	utils.RespondJSON(w, http.StatusOK, resultView{
		Rating:      result.Rating,
		Confidence:  result.Confidence,
		Suggestions: suggestions,
	})
}
