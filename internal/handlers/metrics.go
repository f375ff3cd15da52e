package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/request"
	"github.com/benvon/smart-diary/internal/services/ai"
	"github.com/gorilla/mux"
)

// MaxQueryLength is the maximum length for a metrics question
const MaxQueryLength = 200

// QueryProcessor answers free-text metrics questions
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, queryText string) models.QueryResult
}

// MetricsHandler serves metric queries
type MetricsHandler struct {
	engine QueryProcessor
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(engine QueryProcessor) *MetricsHandler {
	return &MetricsHandler{engine: engine}
}

// RegisterRoutes registers metric query routes
func (h *MetricsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/metrics", h.QueryMetrics).Methods(http.MethodGet)
}

// QueryMetrics answers GET /metrics?query=...
func (h *MetricsHandler) QueryMetrics(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Query parameter is required")
		return
	}
	if len([]rune(query)) > MaxQueryLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Query is too long")
		return
	}

	result := h.engine.ProcessQuery(ai.WithRequestID(r.Context(), request.RequestID(r)), query)
	if result.Error != "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", result.Error)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
