package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/google/uuid"
)

// mockStore pages through a fixed entry list
type mockStore struct {
	mu        sync.Mutex
	entries   []*models.DiaryEntry
	err       error
	listCalls int
}

func (m *mockStore) ListEntries(_ context.Context, filter database.EntryFilter) ([]*models.DiaryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.err != nil {
		return nil, m.err
	}
	start := 0
	if filter.After != nil {
		start = len(m.entries)
		for i, e := range m.entries {
			if e.ID == filter.After.ID {
				start = i + 1
				break
			}
		}
	}
	if start >= len(m.entries) {
		return nil, nil
	}
	end := start + filter.Limit
	if end > len(m.entries) {
		end = len(m.entries)
	}
	return m.entries[start:end], nil
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(store database.EntryLister) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	c := NewCache(store, DefaultTTL, nil)
	c.now = clock.Now
	return c, clock
}

func entryWith(t *testing.T, createdAt time.Time, insight models.Insight) *models.DiaryEntry {
	t.Helper()
	raw, err := json.Marshal(insight)
	if err != nil {
		t.Fatalf("marshal insight: %v", err)
	}
	return &models.DiaryEntry{ID: uuid.New(), CreatedAt: createdAt, RawInsight: raw}
}

func metrics(types ...string) []models.Metric {
	out := make([]models.Metric, 0, len(types))
	for _, typ := range types {
		out = append(out, models.Metric{Type: typ, Value: models.NumberValue(1), Confidence: 0.9})
	}
	return out
}

func TestCache_FirstGetRebuilds(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	day3 := time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC)

	store := &mockStore{entries: []*models.DiaryEntry{
		// newest first, as the store returns them
		entryWith(t, day3, models.Insight{Activity: "swim", Metrics: metrics("laps")}),
		entryWith(t, day1, models.Insight{Activity: "run", Metrics: metrics("distance", "duration")}),
		entryWith(t, day2, models.Insight{Activity: "run", Metrics: metrics("distance")}),
		{ID: uuid.New(), CreatedAt: day2}, // not yet extracted
	}}
	c, clock := newTestCache(store)

	got, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if store.calls() != 1 {
		t.Errorf("store called %d times, want 1", store.calls())
	}
	if !got.Timestamp.Equal(clock.Now()) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, clock.Now())
	}

	wantActivities := []models.TaxonomyEntry{
		{Name: "run", Count: 2, LastUsed: day2},
		{Name: "swim", Count: 1, LastUsed: day3},
	}
	if !reflect.DeepEqual(got.Activities, wantActivities) {
		t.Errorf("Activities = %+v, want %+v", got.Activities, wantActivities)
	}

	wantMetrics := []models.TaxonomyEntry{
		{Name: "distance", Count: 2, LastUsed: day2},
		{Name: "laps", Count: 1, LastUsed: day3},
		{Name: "duration", Count: 1, LastUsed: day1},
	}
	if !reflect.DeepEqual(got.Metrics, wantMetrics) {
		t.Errorf("Metrics = %+v, want %+v", got.Metrics, wantMetrics)
	}
}

func TestCache_FreshReadsAreIdentical(t *testing.T) {
	t.Parallel()

	store := &mockStore{entries: []*models.DiaryEntry{
		entryWith(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), models.Insight{Activity: "yoga", Metrics: metrics("duration")}),
	}}
	c, clock := newTestCache(store)

	first, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	clock.Advance(DefaultTTL - time.Second)
	second, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("fresh reads differ:\n%s\n%s", a, b)
	}
	if store.calls() != 1 {
		t.Errorf("store called %d times, want 1", store.calls())
	}
}

func TestCache_StaleReadRebuilds(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	c, clock := newTestCache(store)

	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	c.Update(models.Insight{Activity: "drift", Metrics: metrics("drift_metric")})

	clock.Advance(DefaultTTL)
	got, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if store.calls() != 2 {
		t.Errorf("store called %d times, want 2", store.calls())
	}
	if len(got.Activities) != 0 || len(got.Metrics) != 0 {
		t.Errorf("rebuild should be authoritative, got %+v", got)
	}
}

func TestCache_UpdateVisibleWithinTTL(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	c, clock := newTestCache(store)

	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	clock.Advance(time.Minute)
	c.Update(models.Insight{Activity: "climb", Metrics: metrics("height", "height")})

	got, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if store.calls() != 1 {
		t.Errorf("store called %d times, want 1", store.calls())
	}
	if len(got.Activities) != 1 || got.Activities[0].Name != "climb" || got.Activities[0].Count != 1 {
		t.Errorf("Activities = %+v, want climb x1", got.Activities)
	}
	if len(got.Metrics) != 1 || got.Metrics[0].Count != 2 {
		t.Errorf("Metrics = %+v, want height x2", got.Metrics)
	}
	if !got.Activities[0].LastUsed.Equal(clock.Now()) || !got.Timestamp.Equal(clock.Now()) {
		t.Errorf("LastUsed/Timestamp should be the update time")
	}
}

func TestCache_UpdateIgnoresEmptyActivity(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(&mockStore{})
	c.Update(models.Insight{Metrics: metrics("steps")})

	got, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Activities) != 0 {
		t.Errorf("Activities = %+v, want none", got.Activities)
	}
	if len(got.Metrics) != 1 {
		t.Errorf("Metrics = %+v, want steps", got.Metrics)
	}
}

func TestCache_SkipsMalformedInsights(t *testing.T) {
	t.Parallel()

	store := &mockStore{entries: []*models.DiaryEntry{
		{ID: uuid.New(), CreatedAt: time.Now(), RawInsight: json.RawMessage(`{"metrics": "oops"`)},
		{ID: uuid.New(), CreatedAt: time.Now(), RawInsight: json.RawMessage(`{"metrics": [{"type": 7}]}`)},
		entryWith(t, time.Now(), models.Insight{Metrics: metrics("sleep")}),
	}}
	c, _ := newTestCache(store)

	got, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Metrics) != 1 || got.Metrics[0].Name != "sleep" {
		t.Errorf("Metrics = %+v, want only sleep", got.Metrics)
	}
}

func TestCache_PagesThroughStore(t *testing.T) {
	t.Parallel()

	entries := make([]*models.DiaryEntry, 0, rebuildPageSize+3)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rebuildPageSize+3; i++ {
		entries = append(entries, entryWith(t, base.Add(time.Duration(i)*time.Minute), models.Insight{Metrics: metrics("steps")}))
	}
	store := &mockStore{entries: entries}
	c, _ := newTestCache(store)

	got, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if store.calls() != 2 {
		t.Errorf("store called %d times, want 2", store.calls())
	}
	if got.Metrics[0].Count != rebuildPageSize+3 {
		t.Errorf("Count = %d, want %d", got.Metrics[0].Count, rebuildPageSize+3)
	}
	if want := base.Add(time.Duration(rebuildPageSize+2) * time.Minute); !got.Metrics[0].LastUsed.Equal(want) {
		t.Errorf("LastUsed = %v, want %v", got.Metrics[0].LastUsed, want)
	}
}

func TestCache_StoreErrorLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	c, clock := newTestCache(store)
	c.Update(models.Insight{Activity: "walk"})

	clock.Advance(DefaultTTL + time.Second)
	store.err = errors.New("connection refused")

	if _, err := c.Get(context.Background()); err == nil {
		t.Fatal("expected store error")
	}

	// The failed rebuild kept the incremental counts
	store.err = nil
	c.Update(models.Insight{Activity: "walk"})
	got, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Activities) != 1 || got.Activities[0].Count != 2 {
		t.Errorf("Activities = %+v, want walk x2 from incremental updates", got.Activities)
	}
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	c, _ := newTestCache(store)
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	c.Invalidate()
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if store.calls() != 2 {
		t.Errorf("store called %d times, want 2", store.calls())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(&mockStore{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Update(models.Insight{Activity: "run", Metrics: metrics("distance")})
		}()
		go func() {
			defer wg.Done()
			_, _ = c.Get(context.Background())
		}()
	}
	wg.Wait()
}

func TestFormatContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		taxonomy *models.Taxonomy
		want     string
	}{
		{
			name:     "empty",
			taxonomy: &models.Taxonomy{},
			want:     "Common activities: none yet\nCommon metrics: none yet",
		},
		{
			name:     "nil",
			taxonomy: nil,
			want:     "Common activities: none yet\nCommon metrics: none yet",
		},
		{
			name: "populated",
			taxonomy: &models.Taxonomy{
				Activities: []models.TaxonomyEntry{{Name: "run", Count: 3}, {Name: "swim", Count: 1}},
				Metrics:    []models.TaxonomyEntry{{Name: "distance", Count: 4}},
			},
			want: "Common activities: run (used 3 times), swim (used 1 times)\nCommon metrics: distance (used 4 times)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatContext(tt.taxonomy); got != tt.want {
				t.Errorf("FormatContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatContext_TopTen(t *testing.T) {
	t.Parallel()

	tax := &models.Taxonomy{}
	for i := 0; i < 15; i++ {
		tax.Metrics = append(tax.Metrics, models.TaxonomyEntry{Name: string(rune('a' + i)), Count: 15 - i})
	}
	got := FormatContext(tax)
	if strings.Count(got, "(used") != 10 {
		t.Errorf("FormatContext() listed %d metrics, want 10", strings.Count(got, "(used"))
	}
	if strings.Contains(got, "k (used") {
		t.Error("11th metric should be cut")
	}
}
