package persona

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/escuta-ai/escuta/backend/internal/model/persona"
)

func TestGetPersonaHidesPrompt(t *testing.T) {
	r := chi.NewRouter()
	New(persona.NewStaticSource(persona.Default()), 300).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/persona", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["name"] != "Escuta" || body["language"] != "pt-BR" {
		t.Fatalf("unexpected persona %v", body)
	}
	if body["trialSeconds"] != float64(300) {
		t.Fatalf("unexpected trial seconds %v", body["trialSeconds"])
	}
	if strings.Contains(resp.Body.String(), "systemPrompt") {
		t.Fatal("system prompt must not be exposed")
	}
}
