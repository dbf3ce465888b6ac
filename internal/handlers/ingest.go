package handlers

import (
	"context"
	"net/http"
	"sync/atomic"

	"normativa-ai/internal/contextutil"
)

// Ingester runs a full corpus ingestion pass.
type Ingester interface {
	IngestAll(ctx context.Context) error
}

// IngestHandler triggers corpus ingestion runs.
type IngestHandler struct {
	pipeline Ingester
	running  atomic.Bool
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(pipeline Ingester) *IngestHandler {
	return &IngestHandler{pipeline: pipeline}
}

// IngestResponse represents the response to an ingestion trigger.
type IngestResponse struct {
	Status string `json:"status"`
}

// ServeHTTP starts an ingestion run in the background. Only one run may
// be active at a time; a second trigger while one is running is
// rejected.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !h.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "Ingestion already running")
		return
	}

	// The run outlives the request; it keeps the request logger but not
	// the request deadline.
	runCtx := contextutil.WithLogger(context.Background(), logger)
	go func() {
		defer h.running.Store(false)
		if err := h.pipeline.IngestAll(runCtx); err != nil {
			logger.Error("background ingestion failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, IngestResponse{Status: "started"})
}
