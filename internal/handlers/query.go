package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"normativa-ai/internal/contextutil"
	"normativa-ai/internal/language"
	"normativa-ai/internal/rag"
	"normativa-ai/internal/session"
)

// Answerer answers one routed question.
type Answerer interface {
	Answer(ctx context.Context, req rag.QueryRequest) (rag.Answer, error)
}

// QueryHandler handles HTTP requests for regulatory questions.
type QueryHandler struct {
	router   *language.Router
	engine   Answerer
	sessions *session.Store
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(router *language.Router, engine Answerer, sessions *session.Store) *QueryHandler {
	return &QueryHandler{
		router:   router,
		engine:   engine,
		sessions: sessions,
	}
}

// QueryRequest represents the HTTP request payload for questions.
type QueryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	// K optionally overrides the retrieval depth.
	K int `json:"k,omitempty"`
	// Documents optionally restricts the search to these document IDs.
	Documents []string `json:"documents,omitempty"`
}

// QueryResponse represents the HTTP response payload for questions.
type QueryResponse struct {
	Answer           string       `json:"answer"`
	Sources          []rag.Source `json:"sources"`
	DetectedLanguage string       `json:"detected_language"`
	SessionID        string       `json:"session_id"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP answers a question: it routes the language, retrieves
// context, synthesizes the answer, and records the turn in the session.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if req.K < 0 {
		writeError(w, http.StatusBadRequest, "k must not be negative")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	decision, err := h.router.Route(ctx, req.Question)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}
	answerLang := h.router.AnswerLanguage(decision)

	var history []rag.Exchange
	for _, turn := range h.sessions.History(sessionID) {
		history = append(history, rag.Exchange{Question: turn.Question, Answer: turn.Answer})
	}

	answer, err := h.engine.Answer(ctx, rag.QueryRequest{
		Question:       req.Question,
		SearchQuery:    decision.SearchQuery,
		AnswerLanguage: answerLang,
		K:              req.K,
		Documents:      req.Documents,
		History:        history,
	})
	if err != nil {
		h.handleEngineError(ctx, w, err, decision, sessionID)
		return
	}

	// A turn is only remembered once it fully succeeded.
	if len(answer.Sources) > 0 {
		h.sessions.Append(sessionID, session.Turn{
			Question: req.Question,
			Answer:   answer.Text,
			ChunkIDs: answer.ChunkIDs,
		})
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:           answer.Text,
		Sources:          answer.Sources,
		DetectedLanguage: decision.UserLanguage,
		SessionID:        sessionID,
	})
}

// handleEngineError maps engine failures to responses. An unreachable
// index degrades to a polite unavailability answer; a model failure is a
// gateway error. Neither commits anything to the session.
func (h *QueryHandler) handleEngineError(ctx context.Context, w http.ResponseWriter, err error, decision language.Decision, sessionID string) {
	logger := contextutil.LoggerFromContext(ctx)

	var retrievalErr *rag.RetrievalError
	if errors.As(err, &retrievalErr) {
		logger.WarnContext(ctx, "retrieval unavailable", "error", err)
		writeJSON(w, http.StatusOK, QueryResponse{
			Answer:           rag.UnavailableMessage(h.router.AnswerLanguage(decision)),
			Sources:          []rag.Source{},
			DetectedLanguage: decision.UserLanguage,
			SessionID:        sessionID,
		})
		return
	}

	var synthesisErr *rag.SynthesisError
	if errors.As(err, &synthesisErr) {
		logger.ErrorContext(ctx, "answer synthesis failed", "error", err)
		writeError(w, http.StatusBadGateway, "The answer service is temporarily unavailable")
		return
	}

	logger.ErrorContext(ctx, "query failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Failed to process question")
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}
