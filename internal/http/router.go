package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"normativa-ai/internal/handlers"
	"normativa-ai/internal/language"
	"normativa-ai/internal/session"
	"normativa-ai/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	LanguageRouter *language.Router
	Engine         handlers.Answerer
	Pipeline       handlers.Ingester
	Sessions       *session.Store
	VectorStore    vectorstore.VectorStore
	Collection     string
}

// NewRouter creates the HTTP router with all API routes registered.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	queryHandler := handlers.NewQueryHandler(deps.LanguageRouter, deps.Engine, deps.Sessions)
	ingestHandler := handlers.NewIngestHandler(deps.Pipeline)
	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.Collection)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/query", queryHandler)
		r.Method(http.MethodPost, "/ingest", ingestHandler)
		r.Post("/sessions/{id}/reset", sessionHandler.Reset)
	})

	r.Method(http.MethodGet, "/healthz", healthHandler)

	return r
}
