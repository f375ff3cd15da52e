package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Insight is the structured result of extracting metrics from one entry.
// Error is set only on degraded results; Metrics and Tags are never nil.
type Insight struct {
	Summary    string   `json:"summary"`
	Metrics    []Metric `json:"metrics" validate:"dive"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
	Tags       []string `json:"tags"`
	Activity   string   `json:"activity,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Degraded reports whether the insight carries an extraction error
func (i *Insight) Degraded() bool {
	return i.Error != ""
}

// DiaryEntry is a single free-text log entry and its extracted insight.
// Insight is nil until extraction has run or when the stored insight is malformed;
// RawInsight keeps the stored JSON so readers can tell the two apart.
type DiaryEntry struct {
	ID         uuid.UUID       `json:"id"`
	Text       string          `json:"text"`
	Insight    *Insight        `json:"insight"`
	RawInsight json.RawMessage `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DecodeInsight parses RawInsight. It returns nil, nil when the entry has no insight yet.
func (e *DiaryEntry) DecodeInsight() (*Insight, error) {
	if len(e.RawInsight) == 0 {
		return nil, nil
	}
	var insight Insight
	if err := json.Unmarshal(e.RawInsight, &insight); err != nil {
		return nil, fmt.Errorf("malformed insight on entry %s: %w", e.ID, err)
	}
	return &insight, nil
}
