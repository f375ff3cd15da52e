package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/queue"
	"go.uber.org/zap"
)

const (
	// DefaultSweepLookback bounds how far back the sweep looks for entries without an insight
	DefaultSweepLookback = 7 * 24 * time.Hour
	// DefaultSweepGrace skips entries young enough that their original job may still be queued
	DefaultSweepGrace = 10 * time.Minute

	sweepJobTTL = 24 * time.Hour
)

// Reprocessor schedules extraction jobs for entries that never got an insight,
// e.g. because the enqueue after Create failed or the job was purged from the DLQ.
type Reprocessor struct {
	entries  database.EntryLister
	jobQueue queue.Enqueuer
	lookback time.Duration
	grace    time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewReprocessor creates a new reprocessor
func NewReprocessor(entries database.EntryLister, jobQueue queue.Enqueuer, logger *zap.Logger) *Reprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reprocessor{
		entries:  entries,
		jobQueue: jobQueue,
		lookback: DefaultSweepLookback,
		grace:    DefaultSweepGrace,
		now:      time.Now,
		logger:   logger,
	}
}

// Start sweeps every interval until ctx is cancelled
func (r *Reprocessor) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ScheduleMissingExtractions(ctx); err != nil {
				r.logger.Error("missing_extraction_sweep_failed", zap.Error(err))
			}
		}
	}
}

// ScheduleMissingExtractions enqueues an extraction job for every entry in the
// lookback window that has no stored insight. It returns the number of jobs enqueued.
func (r *Reprocessor) ScheduleMissingExtractions(ctx context.Context) (int, error) {
	now := r.now()
	from := now.Add(-r.lookback)
	to := now.Add(-r.grace)
	notAfter := now.Add(sweepJobTTL)

	scheduled := 0
	err := database.EachPage(ctx, r.entries, database.EntryFilter{From: &from, To: &to}, func(page []*models.DiaryEntry) error {
		for _, entry := range page {
			if len(entry.RawInsight) > 0 || entry.Insight != nil {
				continue
			}
			job := queue.NewExtractionJob(entry.ID)
			job.NotAfter = &notAfter
			if err := r.jobQueue.Enqueue(ctx, job); err != nil {
				r.logger.Warn("failed_to_schedule_extraction_job",
					zap.String("entry_id", entry.ID.String()),
					zap.Error(err),
				)
				// Continue with other entries
				continue
			}
			scheduled++
		}
		return nil
	})
	if err != nil {
		return scheduled, fmt.Errorf("failed to list entries: %w", err)
	}

	r.logger.Info("scheduled_missing_extractions",
		zap.Int("job_count", scheduled),
		zap.Time("from", from),
		zap.Time("to", to),
	)
	return scheduled, nil
}
