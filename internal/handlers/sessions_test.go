package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"normativa-ai/internal/session"
)

func TestSessionReset(t *testing.T) {
	store := session.NewStore(10, time.Hour)
	store.Append("abc", session.Turn{Question: "q", Answer: "a"})

	handler := NewSessionHandler(store)
	r := chi.NewRouter()
	r.Post("/sessions/{id}/reset", handler.Reset)

	req := httptest.NewRequest(http.MethodPost, "/sessions/abc/reset", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if turns := store.History("abc"); len(turns) != 0 {
		t.Errorf("expected empty history after reset, got %d turns", len(turns))
	}
}

func TestSessionResetUnknownID(t *testing.T) {
	handler := NewSessionHandler(session.NewStore(10, time.Hour))
	r := chi.NewRouter()
	r.Post("/sessions/{id}/reset", handler.Reset)

	req := httptest.NewRequest(http.MethodPost, "/sessions/never-seen/reset", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for unknown session, got %d", rec.Code)
	}
}
