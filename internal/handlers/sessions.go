package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"normativa-ai/internal/contextutil"
	"normativa-ai/internal/session"
)

// SessionHandler manages conversation sessions over HTTP.
type SessionHandler struct {
	sessions *session.Store
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Store) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Reset drops the history of one session. Resetting an unknown session
// succeeds; the client only cares that the history is gone.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	h.sessions.Reset(id)
	logger.InfoContext(ctx, "session reset", "session_id", id)

	w.WriteHeader(http.StatusNoContent)
}
