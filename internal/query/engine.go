package query

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-diary/internal/database"
	logpkg "github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/monitoring"
	"github.com/benvon/smart-diary/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const maxQueryLogLength = 200

// ResultCache stores results by resolved date range and store generation.
// Get reports the generation it looked under; Set must be given that same
// generation. Implementations swallow their own errors.
type ResultCache interface {
	Get(ctx context.Context, r models.DateRange) (*models.QueryResult, int64, bool)
	Set(ctx context.Context, gen int64, r models.DateRange, result *models.QueryResult)
}

// Engine answers free-text metric questions over stored diary entries
type Engine struct {
	store  database.EntryLister
	cache  ResultCache
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithCache serves repeated ranges from cache
func WithCache(c ResultCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithClock overrides the time source used to resolve relative ranges
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a query engine over store
func NewEngine(store database.EntryLister, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{store: store, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessQuery resolves the date range in queryText and aggregates every metric
// recorded in it. It never fails: a store error yields the default range, no
// metrics and Error set.
func (e *Engine) ProcessQuery(ctx context.Context, queryText string) models.QueryResult {
	ctx, span := telemetry.StartSpan(ctx, "query", "Engine.ProcessQuery")
	defer span.End()

	start := time.Now()
	now := e.now()
	dateRange := ParseDateRange(queryText, now)
	span.SetAttributes(
		attribute.String("query.range_start", dateRange.Start.Format(time.RFC3339)),
		attribute.String("query.range_end", dateRange.End.Format(time.RFC3339)),
	)

	cacheLabel := "none"
	var gen int64
	if e.cache != nil {
		cached, cachedGen, ok := e.cache.Get(ctx, dateRange)
		if ok {
			monitoring.QueriesTotal.WithLabelValues("success", "hit").Inc()
			return *cached
		}
		gen = cachedGen
		cacheLabel = "miss"
	}

	metrics, entryCount, err := e.collectMetrics(ctx, dateRange)
	if err != nil {
		monitoring.QueriesTotal.WithLabelValues("error", cacheLabel).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "store read failed")
		e.logger.Error("query_failed",
			zap.String("query", logpkg.SanitizeString(queryText, maxQueryLogLength)),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		return models.QueryResult{
			DateRange: DefaultRange(now),
			Metrics:   []models.MetricAggregation{},
			Error:     err.Error(),
		}
	}

	result := models.QueryResult{
		DateRange: dateRange,
		Metrics:   AggregateMetrics(metrics),
	}
	if e.cache != nil {
		e.cache.Set(ctx, gen, dateRange, &result)
	}

	monitoring.QueriesTotal.WithLabelValues("success", cacheLabel).Inc()
	e.logger.Debug("query_processed",
		zap.Time("range_start", dateRange.Start),
		zap.Time("range_end", dateRange.End),
		zap.Int("entries", entryCount),
		zap.Int("metric_types", len(result.Metrics)),
		zap.Duration("duration", time.Since(start)),
	)
	return result
}

// collectMetrics flattens the metrics of every entry in r, newest entry first.
// Entries outside r, without an insight or with a malformed one are skipped.
func (e *Engine) collectMetrics(ctx context.Context, r models.DateRange) ([]models.Metric, int, error) {
	from, to := r.Start, r.End
	var metrics []models.Metric
	count := 0

	err := database.EachPage(ctx, e.store, database.EntryFilter{From: &from, To: &to}, func(page []*models.DiaryEntry) error {
		for _, entry := range page {
			if !r.Contains(entry.CreatedAt) {
				continue
			}
			count++
			insight, err := entry.DecodeInsight()
			if err != nil {
				e.logger.Warn("query_malformed_insight_skipped",
					zap.String("entry_id", logpkg.SanitizeID(entry.ID.String())),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				continue
			}
			if insight == nil {
				continue
			}
			metrics = append(metrics, insight.Metrics...)
		}
		return nil
	})
	if err != nil {
		return nil, count, fmt.Errorf("failed to list entries: %w", err)
	}
	return metrics, count, nil
}
