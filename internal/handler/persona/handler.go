package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/escuta-ai/escuta/backend/internal/model/persona"
	"github.com/escuta-ai/escuta/backend/pkg/utils"
)

// Handler exposes the public side of the active persona.
type Handler struct {
	personas     persona.Source
	trialSeconds int
}

// New creates the persona handler.
func New(personas persona.Source, trialSeconds int) *Handler {
	return &Handler{
		personas:     personas,
		trialSeconds: trialSeconds,
	}
}

// RegisterRoutes mounts GET /persona.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/persona", h.handleGetPersona)
}

type personaView struct {
	Name         string `json:"name"`
	OpeningLine  string `json:"openingLine"`
	Language     string `json:"language"`
	TrialSeconds int    `json:"trialSeconds"`
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p := h.personas.Current()
	utils.RespondJSON(w, http.StatusOK, personaView{
		Name:         p.Name,
		OpeningLine:  p.OpeningLine,
		Language:     p.Language,
		TrialSeconds: h.trialSeconds,
	})
}
