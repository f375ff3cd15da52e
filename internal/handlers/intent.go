package handlers

import (
	"context"
	"errors"
	"net/http"

	logpkg "github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/request"
	"github.com/benvon/smart-diary/internal/services/ai"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// IntentClassifier decides what a piece of user input is for
type IntentClassifier interface {
	Classify(ctx context.Context, input string) (models.Intent, error)
}

// InputRequest is the body of the intent and input routes
type InputRequest struct {
	Input string `json:"input" validate:"required,max=1000"`
}

// InputResponse reports the classified intent and what was done with it
type InputResponse struct {
	Intent models.Intent       `json:"intent"`
	Entry  *models.DiaryEntry  `json:"entry,omitempty"`
	Result *models.QueryResult `json:"result,omitempty"`
}

// IntentHandler classifies input and optionally dispatches it
type IntentHandler struct {
	classifier IntentClassifier
	entries    *EntryHandler
	engine     QueryProcessor
	logger     *zap.Logger
}

// NewIntentHandler creates a new intent handler. entries and engine back POST /input.
func NewIntentHandler(classifier IntentClassifier, entries *EntryHandler, engine QueryProcessor, logger *zap.Logger) *IntentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentHandler{classifier: classifier, entries: entries, engine: engine, logger: logger}
}

// RegisterRoutes registers intent routes
func (h *IntentHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/intent", h.ClassifyIntent).Methods(http.MethodPost)
	r.HandleFunc("/input", h.HandleInput).Methods(http.MethodPost)
}

// ClassifyIntent returns the intent of the input without acting on it
func (h *IntentHandler) ClassifyIntent(w http.ResponseWriter, r *http.Request) {
	if _, intent, ok := h.classify(w, r); ok {
		respondJSON(w, http.StatusOK, intent)
	}
}

// HandleInput classifies the input and dispatches it: log entries are stored,
// metric questions are answered, UI requests are returned as they are.
func (h *IntentHandler) HandleInput(w http.ResponseWriter, r *http.Request) {
	input, intent, ok := h.classify(w, r)
	if !ok {
		return
	}
	resp := InputResponse{Intent: intent}

	switch intent.Type {
	case models.IntentLogEntry:
		entry, err := h.entries.create(r.Context(), input, request.RequestID(r))
		if err != nil {
			if errors.Is(err, errInvalidEntryText) {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
				return
			}
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create entry")
			return
		}
		resp.Entry = entry
		respondJSON(w, http.StatusCreated, resp)
		return
	case models.IntentQueryMetrics:
		result := h.engine.ProcessQuery(ai.WithRequestID(r.Context(), request.RequestID(r)), input)
		resp.Result = &result
		if result.Error != "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", result.Error)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *IntentHandler) classify(w http.ResponseWriter, r *http.Request) (string, models.Intent, bool) {
	var req InputRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return "", models.Intent{}, false
	}

	ctx := ai.WithRequestID(r.Context(), request.RequestID(r))
	intent, err := h.classifier.Classify(ctx, req.Input)
	if err != nil {
		h.logger.Warn("intent_classification_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Failed to classify input")
		return "", models.Intent{}, false
	}
	return req.Input, intent, true
}
