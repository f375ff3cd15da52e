package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/benvon/smart-diary/internal/database"
	logpkg "github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/queue"
	"github.com/benvon/smart-diary/internal/request"
	"github.com/benvon/smart-diary/internal/services/ai"
	"github.com/benvon/smart-diary/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// MaxEntryTextLength is the maximum length for entry text
	MaxEntryTextLength = 1000
	// DefaultPageSize is the default page size for listing entries
	DefaultPageSize = 50
)

// EntryAnalyzer runs extraction for a stored entry; used when no queue is configured
type EntryAnalyzer interface {
	AnalyzeEntry(ctx context.Context, entryID uuid.UUID) (*models.Insight, error)
}

// EntryHandler handles diary entry requests
type EntryHandler struct {
	entries  database.EntryRepositoryInterface
	jobQueue queue.Enqueuer
	analyzer EntryAnalyzer
	logger   *zap.Logger
}

// EntryHandlerOption configures an EntryHandler
type EntryHandlerOption func(*EntryHandler)

// WithEntryJobQueue sends extraction to the worker through the queue
func WithEntryJobQueue(q queue.Enqueuer) EntryHandlerOption {
	return func(h *EntryHandler) {
		h.jobQueue = q
	}
}

// WithEntryAnalyzer extracts inline when no queue is set
func WithEntryAnalyzer(a EntryAnalyzer) EntryHandlerOption {
	return func(h *EntryHandler) {
		h.analyzer = a
	}
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(entries database.EntryRepositoryInterface, logger *zap.Logger, opts ...EntryHandlerOption) *EntryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &EntryHandler{entries: entries, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers entry routes on a router that already has the /entries prefix
func (h *EntryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListEntries).Methods(http.MethodGet)
	r.HandleFunc("", h.CreateEntry).Methods(http.MethodPost)
	r.HandleFunc("/{id}", h.GetEntry).Methods(http.MethodGet)
}

// CreateEntryRequest represents a create entry request
type CreateEntryRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// CreateEntry stores a new entry and schedules its extraction
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	entry, err := h.create(r.Context(), req.Text, request.RequestID(r))
	if err != nil {
		if errors.Is(err, errInvalidEntryText) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create entry")
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

var errInvalidEntryText = errors.New("entry text must be 1 to 1000 characters")

// create is shared with the input handler's log_entry dispatch
func (h *EntryHandler) create(ctx context.Context, text, requestID string) (*models.DiaryEntry, error) {
	text = validation.SanitizeText(text)
	if n := len([]rune(text)); n == 0 || n > MaxEntryTextLength {
		return nil, errInvalidEntryText
	}

	entry := &models.DiaryEntry{Text: text}
	if err := h.entries.Create(ctx, entry); err != nil {
		h.logger.Error("failed_to_create_entry", zap.String("error", logpkg.SanitizeError(err)))
		return nil, err
	}

	switch {
	case h.jobQueue != nil:
		if err := h.jobQueue.Enqueue(ctx, queue.NewExtractionJob(entry.ID)); err != nil {
			// The entry is stored; the worker's sweep picks it up later
			h.logger.Warn("failed_to_enqueue_extraction_job",
				zap.String("entry_id", entry.ID.String()),
				zap.String("error", logpkg.SanitizeError(err)),
			)
		}
	case h.analyzer != nil:
		ctx = ai.WithRequestID(ctx, requestID)
		insight, err := h.analyzer.AnalyzeEntry(ctx, entry.ID)
		if err != nil {
			h.logger.Warn("inline_extraction_failed",
				zap.String("entry_id", entry.ID.String()),
				zap.String("error", logpkg.SanitizeError(err)),
			)
		} else {
			entry.Insight = insight
		}
	}
	return entry, nil
}

// ListEntriesResponse is a page of entries, newest first
type ListEntriesResponse struct {
	Entries []*models.DiaryEntry `json:"entries"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// ListEntries lists entries newest first
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit := DefaultPageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = min(parsed, database.MaxListLimit)
	}
	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	entries, err := h.entries.ListEntries(r.Context(), database.EntryFilter{Limit: limit, Offset: offset})
	if err != nil {
		h.logger.Error("failed_to_list_entries", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve entries")
		return
	}
	respondJSON(w, http.StatusOK, ListEntriesResponse{Entries: entries, Limit: limit, Offset: offset})
}

// GetEntry returns one entry by ID
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid entry ID")
		return
	}

	entry, err := h.entries.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Entry not found")
			return
		}
		h.logger.Error("failed_to_get_entry",
			zap.String("entry_id", id.String()),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve entry")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}
