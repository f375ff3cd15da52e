package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/benvon/smart-diary/internal/models"
	"github.com/redis/go-redis/v9"
)

// fakeRedis is an in-memory RedisClient
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	err  error
	sets int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.sets++
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func testRange() models.DateRange {
	return models.DateRange{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 7, 23, 59, 59, 0, time.UTC),
	}
}

func TestQueryCache_RoundTrip(t *testing.T) {
	t.Parallel()

	c := NewQueryCache(newFakeRedis(), 0, nil)
	ctx := context.Background()
	r := testRange()

	_, gen, ok := c.Get(ctx, r)
	if ok {
		t.Fatal("empty cache should miss")
	}
	if gen != 0 {
		t.Fatalf("generation = %d, want 0", gen)
	}

	avg := 5.5
	c.Set(ctx, gen, r, &models.QueryResult{
		DateRange: r,
		Metrics:   []models.MetricAggregation{{Type: "distance", Values: []float64{5, 6}, Average: &avg, Trend: models.TrendUp}},
	})

	got, _, ok := c.Get(ctx, r)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got.Metrics) != 1 || *got.Metrics[0].Average != 5.5 || got.Metrics[0].Trend != models.TrendUp {
		t.Errorf("cached result = %+v", got)
	}
	if !got.DateRange.Start.Equal(r.Start) {
		t.Errorf("DateRange.Start = %v, want %v", got.DateRange.Start, r.Start)
	}
}

func TestQueryCache_InvalidateOrphansResults(t *testing.T) {
	t.Parallel()

	c := NewQueryCache(newFakeRedis(), time.Minute, nil)
	ctx := context.Background()
	r := testRange()

	_, gen, _ := c.Get(ctx, r)
	c.Set(ctx, gen, r, &models.QueryResult{DateRange: r, Metrics: []models.MetricAggregation{}})
	c.Invalidate(ctx)

	if _, _, ok := c.Get(ctx, r); ok {
		t.Error("result should miss after Invalidate")
	}
}

func TestQueryCache_WriteDuringComputeIsNotCached(t *testing.T) {
	t.Parallel()

	c := NewQueryCache(newFakeRedis(), time.Minute, nil)
	ctx := context.Background()
	r := testRange()

	_, gen, ok := c.Get(ctx, r)
	if ok {
		t.Fatal("empty cache should miss")
	}
	// An insight lands while the result is being computed
	c.Invalidate(ctx)
	c.Set(ctx, gen, r, &models.QueryResult{
		DateRange: r,
		Metrics:   []models.MetricAggregation{{Type: "distance", Values: []float64{5}}},
	})

	if got, newGen, ok := c.Get(ctx, r); ok {
		t.Errorf("result computed before the write served under generation %d: %+v", newGen, got)
	}
}

func TestQueryCache_ErrorsAreMisses(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	c := NewQueryCache(fake, time.Minute, nil)
	ctx := context.Background()
	r := testRange()

	_, gen, ok := c.Get(ctx, r)
	if ok {
		t.Error("Get should miss when redis fails")
	}
	if gen >= 0 {
		t.Errorf("generation = %d, want negative on failure", gen)
	}
	c.Set(ctx, gen, r, &models.QueryResult{})
	c.Invalidate(ctx)
	if fake.sets != 0 {
		t.Errorf("sets = %d, want 0", fake.sets)
	}
	if err := c.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck should report the redis error")
	}
}

func TestQueryCache_CorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	c := NewQueryCache(fake, time.Minute, nil)
	r := testRange()
	fake.data[c.resultKey(0, r)] = "{not json"

	if _, _, ok := c.Get(context.Background(), r); ok {
		t.Error("corrupt entry should miss")
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("not-a-url"); err == nil {
		t.Error("expected error for invalid redis URL")
	}
	client, err := NewClient("redis://localhost:6379/0")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	_ = client.Close()
}
