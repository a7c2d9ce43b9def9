package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondValidationError(rec, "Dados de entrada inválidos", "content: required")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "Dados de entrada inválidos" {
		t.Fatalf("unexpected message %v", body["message"])
	}
	if errs, ok := body["errors"].([]any); !ok || len(errs) != 1 {
		t.Fatalf("unexpected errors %v", body["errors"])
	}
}

func TestRespondErrorOmitsEmptyErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusNotFound, "Sessão não encontrada")

	if strings.Contains(rec.Body.String(), "errors") {
		t.Fatalf("unexpected errors field: %s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	if !SendSSEEvent(rec, rec, "tick", map[string]int{"remainingTime": 42}) {
		t.Fatal("expected write to succeed")
	}

	want := "event: tick\ndata: {\"remainingTime\":42}\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected frame %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatal("missing event-stream content type")
	}
	if !rec.Flushed {
		t.Fatal("expected flush")
	}
}
