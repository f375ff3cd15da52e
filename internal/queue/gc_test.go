package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockPurger struct {
	mu         sync.Mutex
	n          int
	err        error
	retentions []time.Duration
}

func (m *mockPurger) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retentions = append(m.retentions, retention)
	return m.n, m.err
}

func (m *mockPurger) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retentions)
}

func TestGarbageCollector_Collect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		purger     *mockPurger
		wantErr    bool
		wantLogged bool
	}{
		{name: "purged messages are logged", purger: &mockPurger{n: 4}, wantLogged: true},
		{name: "empty purge is quiet", purger: &mockPurger{}},
		{name: "purge error is wrapped", purger: &mockPurger{err: errors.New("channel closed")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			gc := NewGarbageCollector(tt.purger, time.Minute, 7*24*time.Hour, zap.New(core))

			err := gc.collect(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("collect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.purger.err) {
				t.Errorf("collect() error = %v, want wrapping %v", err, tt.purger.err)
			}
			if len(tt.purger.retentions) != 1 || tt.purger.retentions[0] != 7*24*time.Hour {
				t.Errorf("retentions = %v, want [168h]", tt.purger.retentions)
			}
			if got := logs.FilterMessage("dlq_gc_purged").Len(); (got == 1) != tt.wantLogged {
				t.Errorf("dlq_gc_purged logged %d times, wantLogged %v", got, tt.wantLogged)
			}
		})
	}
}

func TestGarbageCollector_NilPurger(t *testing.T) {
	t.Parallel()

	gc := NewGarbageCollector(nil, time.Minute, time.Hour, nil)
	if err := gc.collect(context.Background()); err != nil {
		t.Errorf("collect() with nil purger error = %v", err)
	}
}

func TestGarbageCollector_StartRunsUntilCancelled(t *testing.T) {
	t.Parallel()

	purger := &mockPurger{}
	gc := NewGarbageCollector(purger, 5*time.Millisecond, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gc.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for purger.calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	if purger.calls() < 2 {
		t.Errorf("purge ran %d times, want at least 2", purger.calls())
	}
}
