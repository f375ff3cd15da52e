package queue

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewExtractionJob(t *testing.T) {
	t.Parallel()

	entryID := uuid.New()
	job := NewExtractionJob(entryID)

	if job.ID == uuid.Nil {
		t.Error("Expected job ID to be set")
	}
	if job.Type != JobTypeEntryExtraction {
		t.Errorf("Type = %s, want %s", job.Type, JobTypeEntryExtraction)
	}
	if job.EntryID == nil || *job.EntryID != entryID {
		t.Errorf("EntryID = %v, want %s", job.EntryID, entryID)
	}
	if job.Metadata == nil {
		t.Error("Expected metadata to be initialized")
	}
	if job.RetryCount != 0 || job.MaxRetries != DefaultMaxRetries {
		t.Errorf("retry fields = %d/%d, want 0/%d", job.RetryCount, job.MaxRetries, DefaultMaxRetries)
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name      string
		notBefore *time.Time
		notAfter  *time.Time
		want      bool
	}{
		{name: "no time constraints", want: true},
		{name: "not before in past", notBefore: timePtr(now.Add(-time.Hour)), want: true},
		{name: "not before in future", notBefore: timePtr(now.Add(time.Hour)), want: false},
		{name: "not after in past", notAfter: timePtr(now.Add(-time.Hour)), want: false},
		{name: "not after in future", notAfter: timePtr(now.Add(time.Hour)), want: true},
		{name: "within window", notBefore: timePtr(now.Add(-time.Hour)), notAfter: timePtr(now.Add(time.Hour)), want: true},
		{name: "window in future", notBefore: timePtr(now.Add(time.Hour)), notAfter: timePtr(now.Add(2 * time.Hour)), want: false},
		{name: "window in past", notBefore: timePtr(now.Add(-2 * time.Hour)), notAfter: timePtr(now.Add(-time.Hour)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := &Job{ID: uuid.New(), Type: JobTypeEntryExtraction, NotBefore: tt.notBefore, NotAfter: tt.notAfter}
			if got := job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_IsExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name     string
		notAfter *time.Time
		want     bool
	}{
		{name: "no expiration", want: false},
		{name: "expired", notAfter: timePtr(now.Add(-time.Hour)), want: true},
		{name: "not expired", notAfter: timePtr(now.Add(time.Hour)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := &Job{Type: JobTypeEntryExtraction, NotAfter: tt.notAfter}
			if got := job.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_Retries(t *testing.T) {
	t.Parallel()

	job := NewExtractionJob(uuid.New())
	for i := 0; i < DefaultMaxRetries; i++ {
		if !job.CanRetry() {
			t.Fatalf("CanRetry() = false after %d retries", i)
		}
		job.IncrementRetry()
	}
	if job.CanRetry() {
		t.Error("CanRetry() = true after exhausting retries")
	}
	if job.RetryCount != DefaultMaxRetries {
		t.Errorf("RetryCount = %d, want %d", job.RetryCount, DefaultMaxRetries)
	}
}

func TestBuildPublishing(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("immediate job", func(t *testing.T) {
		t.Parallel()
		job := NewExtractionJob(uuid.New())
		pub, delayed, err := buildPublishing(job, now)
		if err != nil {
			t.Fatalf("buildPublishing() error = %v", err)
		}
		if delayed {
			t.Error("immediate job should not be delayed")
		}
		if pub.MessageId != job.ID.String() || pub.Type != string(JobTypeEntryExtraction) {
			t.Errorf("publishing metadata = %s/%s", pub.MessageId, pub.Type)
		}
		if pub.Expiration != "" || pub.Headers != nil {
			t.Errorf("unexpected expiration %q or headers %v", pub.Expiration, pub.Headers)
		}

		decoded, err := decodeJob(pub.Body)
		if err != nil {
			t.Fatalf("decodeJob() error = %v", err)
		}
		if decoded.EntryID == nil || *decoded.EntryID != *job.EntryID {
			t.Errorf("decoded EntryID = %v, want %s", decoded.EntryID, job.EntryID)
		}
	})

	t.Run("delayed and expiring job", func(t *testing.T) {
		t.Parallel()
		job := NewExtractionJob(uuid.New())
		job.NotBefore = timePtr(now.Add(90 * time.Second))
		job.NotAfter = timePtr(now.Add(time.Hour))

		pub, delayed, err := buildPublishing(job, now)
		if err != nil {
			t.Fatalf("buildPublishing() error = %v", err)
		}
		if !delayed {
			t.Error("future NotBefore should delay")
		}
		if pub.Headers["x-delay"] != int64(90000) {
			t.Errorf("x-delay = %v, want 90000", pub.Headers["x-delay"])
		}
		if pub.Expiration != "3600000" {
			t.Errorf("Expiration = %q, want 3600000", pub.Expiration)
		}
	})

	t.Run("past not before is immediate", func(t *testing.T) {
		t.Parallel()
		job := NewExtractionJob(uuid.New())
		job.NotBefore = timePtr(now.Add(-time.Minute))
		if _, delayed, _ := buildPublishing(job, now); delayed {
			t.Error("past NotBefore should not delay")
		}
	})
}

func TestDecodeJob_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := decodeJob([]byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	body, _ := json.Marshal(map[string]any{"id": uuid.New()})
	if _, err := decodeJob(body); err == nil || !strings.Contains(err.Error(), "no type") {
		t.Errorf("decodeJob() error = %v, want missing type", err)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
