package taxonomy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benvon/smart-diary/internal/database"
	logpkg "github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/monitoring"
	"github.com/benvon/smart-diary/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long a taxonomy stays fresh before Get rebuilds it
	DefaultTTL = 5 * time.Minute

	rebuildPageSize = 500
	contextTopN     = 10
)

// Cache holds usage counts for activity names and metric types seen across
// diary entries. Update keeps it current on the write path; Get rebuilds it
// from the store once it is older than the TTL.
type Cache struct {
	mu          sync.Mutex
	activities  map[string]models.TaxonomyStat
	metrics     map[string]models.TaxonomyStat
	lastUpdated time.Time // zero until the first rebuild or update

	rebuildMu sync.Mutex

	ttl    time.Duration
	store  database.EntryLister
	now    func() time.Time
	logger *zap.Logger
}

// NewCache creates an empty cache. The first Get always rebuilds from store.
func NewCache(store database.EntryLister, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		activities: make(map[string]models.TaxonomyStat),
		metrics:    make(map[string]models.TaxonomyStat),
		ttl:        ttl,
		store:      store,
		now:        time.Now,
		logger:     logger,
	}
}

// Update records one newly extracted insight. It never touches the store.
func (c *Cache) Update(insight models.Insight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if insight.Activity != "" {
		bump(c.activities, insight.Activity, now)
	}
	for _, m := range insight.Metrics {
		bump(c.metrics, m.Type, now)
	}
	c.lastUpdated = now
}

// Get returns the sorted taxonomy, rebuilding it from the store when stale.
// A store failure leaves the cached state as it was and returns the error.
func (c *Cache) Get(ctx context.Context) (*models.Taxonomy, error) {
	if view, ok := c.freshView(); ok {
		return view, nil
	}

	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	// Another caller may have rebuilt while we waited
	if view, ok := c.freshView(); ok {
		return view, nil
	}
	return c.rebuild(ctx)
}

// Invalidate forces the next Get to rebuild
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.lastUpdated = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) freshView() (*models.Taxonomy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastUpdated.IsZero() || c.now().Sub(c.lastUpdated) >= c.ttl {
		return nil, false
	}
	return c.viewLocked(c.lastUpdated), true
}

func (c *Cache) rebuild(ctx context.Context) (*models.Taxonomy, error) {
	ctx, span := telemetry.StartSpan(ctx, "taxonomy", "Cache.rebuild")
	defer span.End()

	start := c.now()
	activities := make(map[string]models.TaxonomyStat)
	metrics := make(map[string]models.TaxonomyStat)
	scanned, skipped := 0, 0

	pages := 0
	err := database.EachPage(ctx, c.store, database.EntryFilter{Limit: rebuildPageSize}, func(page []*models.DiaryEntry) error {
		pages++
		for _, entry := range page {
			scanned++
			insight, err := entry.DecodeInsight()
			if err != nil {
				skipped++
				monitoring.TaxonomySkippedInsightsTotal.Inc()
				c.logger.Warn("taxonomy_malformed_insight_skipped",
					zap.String("entry_id", logpkg.SanitizeID(entry.ID.String())),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				continue
			}
			if insight == nil {
				continue
			}
			if insight.Activity != "" {
				observe(activities, insight.Activity, entry.CreatedAt)
			}
			for _, m := range insight.Metrics {
				observe(metrics, m.Type, entry.CreatedAt)
			}
		}
		return nil
	})
	if err != nil {
		monitoring.TaxonomyRebuildsTotal.WithLabelValues("error").Inc()
		c.logger.Error("taxonomy_rebuild_failed",
			zap.Int("pages_read", pages),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to rebuild taxonomy: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.activities = activities
	c.metrics = metrics
	c.lastUpdated = now

	monitoring.TaxonomyRebuildsTotal.WithLabelValues("success").Inc()
	span.SetAttributes(
		attribute.Int("taxonomy.entries_scanned", scanned),
		attribute.Int("taxonomy.entries_skipped", skipped),
	)
	c.logger.Info("taxonomy_rebuilt",
		zap.Int("entries_scanned", scanned),
		zap.Int("entries_skipped", skipped),
		zap.Int("activities", len(activities)),
		zap.Int("metrics", len(metrics)),
		zap.Duration("duration", now.Sub(start)),
	)
	return c.viewLocked(now), nil
}

func (c *Cache) viewLocked(ts time.Time) *models.Taxonomy {
	return &models.Taxonomy{
		Activities: sortedEntries(c.activities),
		Metrics:    sortedEntries(c.metrics),
		Timestamp:  ts,
	}
}

func bump(stats map[string]models.TaxonomyStat, name string, at time.Time) {
	s := stats[name]
	s.Count++
	s.LastUsed = at
	stats[name] = s
}

// observe counts one occurrence, keeping the latest timestamp seen
func observe(stats map[string]models.TaxonomyStat, name string, at time.Time) {
	s := stats[name]
	s.Count++
	if at.After(s.LastUsed) {
		s.LastUsed = at
	}
	stats[name] = s
}

func sortedEntries(stats map[string]models.TaxonomyStat) []models.TaxonomyEntry {
	out := make([]models.TaxonomyEntry, 0, len(stats))
	for name, s := range stats {
		out = append(out, models.TaxonomyEntry{Name: name, Count: s.Count, LastUsed: s.LastUsed})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if !out[i].LastUsed.Equal(out[j].LastUsed) {
			return out[i].LastUsed.After(out[j].LastUsed)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FormatContext renders the ten most used activities and metrics as a prompt hint
func FormatContext(t *models.Taxonomy) string {
	if t == nil {
		t = &models.Taxonomy{}
	}
	return fmt.Sprintf("Common activities: %s\nCommon metrics: %s",
		formatTop(t.Activities), formatTop(t.Metrics))
}

func formatTop(entries []models.TaxonomyEntry) string {
	if len(entries) > contextTopN {
		entries = entries[:contextTopN]
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s (used %d times)", e.Name, e.Count))
	}
	if len(parts) == 0 {
		return "none yet"
	}
	return strings.Join(parts, ", ")
}
