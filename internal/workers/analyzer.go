package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-diary/internal/database"
	logpkg "github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/monitoring"
	"github.com/benvon/smart-diary/internal/queue"
	"github.com/benvon/smart-diary/internal/services/ai"
	"github.com/benvon/smart-diary/internal/taxonomy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job results, used as metric labels
const (
	resultSuccess    = "success"
	resultRetry      = "retry"
	resultDeadLetter = "dead_letter"
	resultSkipped    = "skipped"
)

// Extractor produces an insight for an entry. It never fails; problems come back as degraded insights.
type Extractor interface {
	Extract(ctx context.Context, entryText, taxonomyHint string) models.Insight
}

// TaxonomyStore is the read-and-learn side of the taxonomy cache
type TaxonomyStore interface {
	Get(ctx context.Context) (*models.Taxonomy, error)
	Update(insight models.Insight)
}

// QueryCacheInvalidator drops cached query results once an entry's insight changes
type QueryCacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// EntryRepository is the subset of entry storage the analyzer needs
type EntryRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.DiaryEntry, error)
	UpdateInsight(ctx context.Context, id uuid.UUID, insight *models.Insight) error
}

// ErrTransientExtraction wraps oracle failures that are worth retrying later
var ErrTransientExtraction = errors.New("transient extraction failure")

// JobProcessor handles one decoded job
type JobProcessor func(ctx context.Context, job *queue.Job) error

type processorEntry struct {
	process JobProcessor
	// retry routes failures through handleJobError; otherwise they go straight to the DLQ
	retry bool
}

// EntryAnalyzer extracts insights for stored entries, inline or from the job queue
type EntryAnalyzer struct {
	entries    EntryRepository
	extractor  Extractor
	taxonomy   TaxonomyStore
	queryCache QueryCacheInvalidator
	jobQueue   queue.Enqueuer // for re-enqueueing jobs with delays
	processors map[queue.JobType]processorEntry
	now        func() time.Time
	logger     *zap.Logger
}

// NewEntryAnalyzer creates a new entry analyzer. queryCache and jobQueue may be nil.
func NewEntryAnalyzer(
	entries EntryRepository,
	extractor Extractor,
	taxonomyStore TaxonomyStore,
	queryCache QueryCacheInvalidator,
	jobQueue queue.Enqueuer,
	logger *zap.Logger,
) *EntryAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &EntryAnalyzer{
		entries:    entries,
		extractor:  extractor,
		taxonomy:   taxonomyStore,
		queryCache: queryCache,
		jobQueue:   jobQueue,
		now:        time.Now,
		logger:     logger,
	}
	a.processors = map[queue.JobType]processorEntry{
		queue.JobTypeEntryExtraction: {process: a.processExtractionJob, retry: true},
	}
	return a
}

// AnalyzeEntry extracts and stores the insight for one entry. Degraded insights are
// stored as they are; this is the inline path used when no queue is configured.
func (a *EntryAnalyzer) AnalyzeEntry(ctx context.Context, entryID uuid.UUID) (*models.Insight, error) {
	return a.analyze(ctx, entryID, false)
}

// analyze runs one extraction. With deferTransient set, an insight degraded by a
// throttled or unavailable oracle is not stored and ErrTransientExtraction is returned.
func (a *EntryAnalyzer) analyze(ctx context.Context, entryID uuid.UUID, deferTransient bool) (*models.Insight, error) {
	entry, err := a.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	// A stored insight is final, even a degraded or unreadable one
	if entry.Insight != nil || len(entry.RawInsight) > 0 {
		a.logger.Debug("entry_already_analyzed",
			zap.String("entry_id", logpkg.SanitizeID(entryID.String())),
			zap.Bool("readable", entry.Insight != nil),
		)
		return entry.Insight, nil
	}

	insight := a.extractor.Extract(ai.WithEntryID(ctx, entryID.String()), entry.Text, a.taxonomyHint(ctx))
	if deferTransient && insight.Degraded() {
		if cause := transientCause(insight.Error); cause != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransientExtraction, cause)
		}
	}

	if err := a.entries.UpdateInsight(ctx, entryID, &insight); err != nil {
		return nil, fmt.Errorf("failed to store insight: %w", err)
	}
	if a.queryCache != nil {
		a.queryCache.Invalidate(ctx)
	}
	if !insight.Degraded() {
		a.taxonomy.Update(insight)
	}

	a.logger.Info("entry_analyzed",
		zap.String("entry_id", logpkg.SanitizeID(entryID.String())),
		zap.Bool("degraded", insight.Degraded()),
		zap.Int("metric_count", len(insight.Metrics)),
		zap.String("activity", logpkg.SanitizeString(insight.Activity, logpkg.MaxGeneralStringLength)),
	)
	return &insight, nil
}

// taxonomyHint renders the known taxonomy for the prompt. A failed rebuild only costs the hint.
func (a *EntryAnalyzer) taxonomyHint(ctx context.Context) string {
	t, err := a.taxonomy.Get(ctx)
	if err != nil {
		a.logger.Warn("taxonomy_unavailable_for_hint", zap.String("error", logpkg.SanitizeError(err)))
		return ""
	}
	return taxonomy.FormatContext(t)
}

// transientCause rebuilds a classifiable error from a degraded insight's message.
// It returns nil for failures a retry will not fix (parse and validation problems).
func transientCause(message string) error {
	err := errors.New(message)
	switch {
	case strings.HasPrefix(message, ai.ErrOracleUnavailable.Error()):
		return ai.ErrOracleUnavailable
	case ai.IsQuotaError(err), ai.IsRateLimitError(err):
		return err
	default:
		return nil
	}
}

func (a *EntryAnalyzer) processExtractionJob(ctx context.Context, job *queue.Job) error {
	if job.EntryID == nil {
		return fmt.Errorf("entry_id is required for %s job", job.Type)
	}
	// The final attempt stores whatever came back so the entry is not left without an insight
	_, err := a.analyze(ctx, *job.EntryID, job.CanRetry())
	return err
}

// ProcessJob processes a job based on its type
func (a *EntryAnalyzer) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if !job.ShouldProcess() {
		return a.deferJob(ctx, msg, job)
	}

	entry, ok := a.processors[job.Type]
	if !ok {
		monitoring.JobsProcessedTotal.WithLabelValues(string(job.Type), resultDeadLetter).Inc()
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			a.logger.Error("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err := entry.process(ctx, job); err != nil {
		if entry.retry {
			return a.handleJobError(ctx, msg, job, err)
		}
		monitoring.JobsProcessedTotal.WithLabelValues(string(job.Type), resultDeadLetter).Inc()
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Error("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("%s job failed: %w", job.Type, err)
	}

	monitoring.JobsProcessedTotal.WithLabelValues(string(job.Type), resultSuccess).Inc()
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

// deferJob handles a job delivered outside its window: expired jobs are dropped,
// early ones go back to the queue with their NotBefore intact.
func (a *EntryAnalyzer) deferJob(ctx context.Context, msg queue.MessageInterface, job *queue.Job) error {
	if job.IsExpired() {
		monitoring.JobsProcessedTotal.WithLabelValues(string(job.Type), resultSkipped).Inc()
		a.logger.Info("job_expired", zap.String("job_id", job.ID.String()), zap.Timep("not_after", job.NotAfter))
		return msg.Nack(false)
	}

	a.logger.Debug("job_not_ready", zap.String("job_id", job.ID.String()), zap.Timep("not_before", job.NotBefore))
	if a.jobQueue != nil {
		if err := a.jobQueue.Enqueue(ctx, job); err == nil {
			return msg.Ack()
		}
	}
	return msg.Nack(true)
}

// handleJobError handles errors from job processing with retry logic based on the error class
func (a *EntryAnalyzer) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	jobType := string(job.Type)
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", jobType),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.String("error", logpkg.SanitizeError(err)),
	}

	// Quota errors wait out the long delay; the final attempt stores the degraded insight
	if ai.IsQuotaError(err) {
		a.logger.Warn("job_quota_exceeded", fields...)
		if a.jobQueue == nil {
			a.logger.Warn("job_requeue_unavailable", fields...)
			monitoring.JobsProcessedTotal.WithLabelValues(jobType, resultDeadLetter).Inc()
			if nackErr := msg.Nack(false); nackErr != nil {
				a.logger.Error("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
			}
			return fmt.Errorf("quota exhausted (job %s): %w", job.ID, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			a.logger.Error("job_ack_failed", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
		}
		if enqueueErr := a.enqueueDelayed(ctx, job, err); enqueueErr != nil {
			return fmt.Errorf("quota exhausted, failed to re-enqueue: %w", enqueueErr)
		}
		monitoring.JobsProcessedTotal.WithLabelValues(jobType, resultRetry).Inc()
		return nil
	}

	if !job.CanRetry() {
		a.logger.Error("job_failed_max_retries", fields...)
		monitoring.JobsProcessedTotal.WithLabelValues(jobType, resultDeadLetter).Inc()
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Error("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (max retries): %w", err)
	}

	a.logger.Warn("job_failed_will_retry", fields...)
	monitoring.JobsProcessedTotal.WithLabelValues(jobType, resultRetry).Inc()

	if a.jobQueue != nil {
		if ackErr := msg.Ack(); ackErr != nil {
			a.logger.Error("job_ack_failed", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
		}
		if enqueueErr := a.enqueueDelayed(ctx, job, err); enqueueErr != nil {
			return fmt.Errorf("failed to re-enqueue: %w", enqueueErr)
		}
		return nil
	}

	// Fallback: nack with requeue (immediate retry)
	if nackErr := msg.Nack(true); nackErr != nil {
		a.logger.Error("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (will retry): %w", err)
}

// enqueueDelayed publishes a copy of job with one more retry, due after the backoff for err
func (a *EntryAnalyzer) enqueueDelayed(ctx context.Context, job *queue.Job, err error) error {
	retryDelay := ai.GetRetryDelay(err, job.RetryCount)
	notBefore := a.now().Add(retryDelay)

	delayed := *job
	delayed.NotBefore = &notBefore
	delayed.IncrementRetry()

	if enqueueErr := a.jobQueue.Enqueue(ctx, &delayed); enqueueErr != nil {
		a.logger.Error("job_requeue_failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(enqueueErr),
		)
		return enqueueErr
	}
	a.logger.Info("job_requeued",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", delayed.RetryCount),
		zap.Duration("delay", retryDelay),
		zap.Time("not_before", notBefore),
	)
	return nil
}

var _ EntryRepository = (database.EntryRepositoryInterface)(nil)
var _ TaxonomyStore = (*taxonomy.Cache)(nil)
