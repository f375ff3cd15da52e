package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-diary/internal/models"
	"github.com/google/uuid"
)

// ErrEntryNotFound is returned when no entry has the requested ID
var ErrEntryNotFound = errors.New("entry not found")

// MaxListLimit caps a single ListEntries page
const MaxListLimit = 500

// EntryFilter narrows ListEntries. Nil bounds are open; a zero Limit means MaxListLimit.
// After resumes strictly past a position in list order; full scans page with it
// rather than Offset so rows inserted mid-scan never shift a later page.
type EntryFilter struct {
	From   *time.Time
	To     *time.Time
	After  *EntryCursor
	Limit  int
	Offset int
}

// EntryCursor is a position in ListEntries order (created_at, then id, both descending)
type EntryCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the cursor positioned on the last entry of page, or nil when page is empty
func CursorAfter(page []*models.DiaryEntry) *EntryCursor {
	if len(page) == 0 {
		return nil
	}
	last := page[len(page)-1]
	return &EntryCursor{CreatedAt: last.CreatedAt, ID: last.ID}
}

// EachPage lists every entry matching filter, newest first, handing fn one
// page at a time. Pages are chained with After; filter.Offset is ignored.
// Store errors are returned as they are; callers wrap them.
func EachPage(ctx context.Context, store EntryLister, filter EntryFilter, fn func(page []*models.DiaryEntry) error) error {
	if filter.Limit <= 0 || filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	filter.Offset = 0
	for {
		page, err := store.ListEntries(ctx, filter)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < filter.Limit {
			return nil
		}
		filter.After = CursorAfter(page)
	}
}

// EntryRepository handles diary entry database operations
type EntryRepository struct {
	db  *DB
	now func() time.Time
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{db: db, now: time.Now}
}

// Create stores a new entry. A zero ID or CreatedAt is filled in.
func (r *EntryRepository) Create(ctx context.Context, entry *models.DiaryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := r.now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	insightJSON, err := encodeInsight(entry.Insight)
	if err != nil {
		return err
	}
	entry.RawInsight = insightJSON

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO diary_entries (id, text, insight, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.Text, nullString(string(insightJSON)), r.db.timeArg(entry.CreatedAt), r.db.timeArg(now))
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

// GetByID retrieves an entry by ID
func (r *EntryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DiaryEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, text, insight, created_at
		FROM diary_entries
		WHERE id = $1
	`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// UpdateInsight replaces the stored insight of an entry
func (r *EntryRepository) UpdateInsight(ctx context.Context, id uuid.UUID, insight *models.Insight) error {
	insightJSON, err := encodeInsight(insight)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE diary_entries
		SET insight = $1, updated_at = $2
		WHERE id = $3
	`, nullString(string(insightJSON)), r.db.timeArg(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update entry insight: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return nil
}

// ListEntries returns entries newest first, bounded by the filter's inclusive time range
func (r *EntryRepository) ListEntries(ctx context.Context, filter EntryFilter) ([]*models.DiaryEntry, error) {
	query := `
		SELECT id, text, insight, created_at
		FROM diary_entries
		WHERE 1 = 1
	`
	args := []any{}
	argIndex := 1

	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, r.db.timeArg(*filter.From))
		argIndex++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, r.db.timeArg(*filter.To))
		argIndex++
	}
	if filter.After != nil {
		// sqlite binds positionally, so the timestamp is passed twice
		query += fmt.Sprintf(" AND (created_at < $%d OR (created_at = $%d AND id < $%d))", argIndex, argIndex+1, argIndex+2)
		at := r.db.timeArg(filter.After.CreatedAt)
		args = append(args, at, at, filter.After.ID)
		argIndex += 3
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*models.DiaryEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// Count returns the total number of stored entries
func (r *EntryRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diary_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one row. A stored insight that does not decode is kept in
// RawInsight with Insight left nil; readers decide how to report it.
func scanEntry(row rowScanner) (*models.DiaryEntry, error) {
	entry := &models.DiaryEntry{}
	var insight sql.NullString
	var createdAt timestamp
	if err := row.Scan(&entry.ID, &entry.Text, &insight, &createdAt); err != nil {
		return nil, err
	}
	entry.CreatedAt = createdAt.Time
	if insight.Valid && insight.String != "" {
		entry.RawInsight = json.RawMessage(insight.String)
		entry.Insight, _ = entry.DecodeInsight()
	}
	return entry, nil
}

func encodeInsight(insight *models.Insight) ([]byte, error) {
	if insight == nil {
		return nil, nil
	}
	data, err := json.Marshal(insight)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insight: %w", err)
	}
	return data, nil
}
