package handlers

import (
	"context"
	"sync"

	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/queue"
	"github.com/google/uuid"
)

type mockEntryRepo struct {
	mu          sync.Mutex
	created     []*models.DiaryEntry
	filters     []database.EntryFilter
	createFn    func(ctx context.Context, entry *models.DiaryEntry) error
	getByIDFn   func(ctx context.Context, id uuid.UUID) (*models.DiaryEntry, error)
	listFn      func(ctx context.Context, filter database.EntryFilter) ([]*models.DiaryEntry, error)
	updateInsFn func(ctx context.Context, id uuid.UUID, insight *models.Insight) error
}

func (m *mockEntryRepo) Create(ctx context.Context, entry *models.DiaryEntry) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, entry); err != nil {
			return err
		}
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	m.mu.Lock()
	m.created = append(m.created, entry)
	m.mu.Unlock()
	return nil
}

func (m *mockEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DiaryEntry, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, database.ErrEntryNotFound
}

func (m *mockEntryRepo) ListEntries(ctx context.Context, filter database.EntryFilter) ([]*models.DiaryEntry, error) {
	m.mu.Lock()
	m.filters = append(m.filters, filter)
	m.mu.Unlock()
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []*models.DiaryEntry{}, nil
}

func (m *mockEntryRepo) UpdateInsight(ctx context.Context, id uuid.UUID, insight *models.Insight) error {
	if m.updateInsFn != nil {
		return m.updateInsFn(ctx, id, insight)
	}
	return nil
}

type mockEnqueuer struct {
	err  error
	jobs []*queue.Job
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockEnqueuer) jobsOrNil() []*queue.Job {
	if m == nil {
		return nil
	}
	return m.jobs
}

type mockAnalyzer struct {
	insight *models.Insight
	err     error
	calls   []uuid.UUID
}

func (m *mockAnalyzer) AnalyzeEntry(ctx context.Context, entryID uuid.UUID) (*models.Insight, error) {
	m.calls = append(m.calls, entryID)
	return m.insight, m.err
}

type mockQueryEngine struct {
	result  models.QueryResult
	queries []string
}

func (m *mockQueryEngine) ProcessQuery(ctx context.Context, queryText string) models.QueryResult {
	m.queries = append(m.queries, queryText)
	return m.result
}

type mockClassifier struct {
	intent models.Intent
	err    error
}

func (m *mockClassifier) Classify(ctx context.Context, input string) (models.Intent, error) {
	return m.intent, m.err
}

type mockTaxonomyReader struct {
	taxonomy      *models.Taxonomy
	err           error
	invalidations int
}

func (m *mockTaxonomyReader) Get(ctx context.Context) (*models.Taxonomy, error) {
	return m.taxonomy, m.err
}

func (m *mockTaxonomyReader) Invalidate() {
	m.invalidations++
}

var _ database.EntryRepositoryInterface = (*mockEntryRepo)(nil)
