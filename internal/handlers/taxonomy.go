package handlers

import (
	"context"
	"net/http"

	logpkg "github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TaxonomyReader returns the current taxonomy view
type TaxonomyReader interface {
	Get(ctx context.Context) (*models.Taxonomy, error)
	Invalidate()
}

// TaxonomyHandler exposes the known activities and metric types
type TaxonomyHandler struct {
	taxonomy TaxonomyReader
	logger   *zap.Logger
}

// NewTaxonomyHandler creates a new taxonomy handler
func NewTaxonomyHandler(taxonomy TaxonomyReader, logger *zap.Logger) *TaxonomyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaxonomyHandler{taxonomy: taxonomy, logger: logger}
}

// RegisterRoutes registers taxonomy routes
func (h *TaxonomyHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/taxonomy", h.GetTaxonomy).Methods(http.MethodGet)
}

// GetTaxonomy returns the taxonomy, rebuilding it first when stale or when
// refresh=true is passed
func (h *TaxonomyHandler) GetTaxonomy(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		h.taxonomy.Invalidate()
	}
	t, err := h.taxonomy.Get(r.Context())
	if err != nil {
		h.logger.Error("failed_to_get_taxonomy", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load taxonomy")
		return
	}
	respondJSON(w, http.StatusOK, t)
}
