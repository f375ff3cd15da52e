package database

import (
	"context"
	"time"

	"github.com/benvon/smart-diary/internal/models"
	"github.com/google/uuid"
)

// timeNow is swapped in tests
var timeNow = time.Now

// EntryLister is the read side used by the taxonomy rebuild and the query engine
type EntryLister interface {
	ListEntries(ctx context.Context, filter EntryFilter) ([]*models.DiaryEntry, error)
}

// EntryRepositoryInterface defines the interface for entry repository operations
// This interface enables better testability by allowing mock implementations
type EntryRepositoryInterface interface {
	EntryLister
	Create(ctx context.Context, entry *models.DiaryEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DiaryEntry, error)
	UpdateInsight(ctx context.Context, id uuid.UUID, insight *models.Insight) error
}

// RatelimitConfigRepositoryInterface defines rate limit config storage
type RatelimitConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// Ensure concrete types implement the interfaces
var (
	_ EntryRepositoryInterface           = (*EntryRepository)(nil)
	_ RatelimitConfigRepositoryInterface = (*RatelimitConfigRepository)(nil)
)
