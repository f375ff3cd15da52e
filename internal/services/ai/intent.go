package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	logpkg "github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/telemetry"
	"github.com/benvon/smart-diary/internal/validation"
	"go.uber.org/zap"
)

// IntentClassifier decides whether input is a new entry, a metrics question or a UI command
type IntentClassifier struct {
	oracle Oracle
	logger *zap.Logger
}

// NewIntentClassifier creates a classifier over the given oracle
func NewIntentClassifier(oracle Oracle, logger *zap.Logger) *IntentClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentClassifier{oracle: oracle, logger: logger}
}

// Classify returns an error only when the oracle itself fails. Unparsable or
// invalid classifications fall back to a low-confidence log_entry.
func (c *IntentClassifier) Classify(ctx context.Context, input string) (models.Intent, error) {
	ctx, span := telemetry.StartSpan(ctx, "ai", "IntentClassifier.Classify")
	defer span.End()
	ctx = WithOperation(ctx, "classify_intent")

	payload, err := c.oracle.Complete(ctx, buildIntentMessages(input))
	if err != nil && !errors.Is(err, ErrEmptyOracleResponse) {
		return models.Intent{}, fmt.Errorf("failed to classify intent: %w", err)
	}
	// No content is an empty classification, which fails validation below
	if strings.TrimSpace(payload) == "" {
		payload = "{}"
	}

	raw, err := parseJSONObject(payload)
	if err != nil {
		c.logger.Warn("intent_parse_failed",
			zap.String("error", logpkg.SanitizeError(err)),
			zap.String("payload_preview", SanitizeResponse(payload, false)),
		)
		return fallbackIntent("parse error"), nil
	}

	// Re-encode so the typed decode applies the struct's JSON tags
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fallbackIntent("parse error"), nil
	}
	var intent models.Intent
	if err := json.Unmarshal(encoded, &intent); err != nil {
		c.logger.Warn("intent_validation_failed", zap.String("error", logpkg.SanitizeError(err)))
		return fallbackIntent("validation error"), nil
	}
	if err := validation.Validate.Struct(intent); err != nil {
		c.logger.Warn("intent_validation_failed", zap.String("error", validation.Describe(err)))
		return fallbackIntent("validation error"), nil
	}
	return intent, nil
}

func fallbackIntent(reason string) models.Intent {
	return models.Intent{
		Type:       models.IntentLogEntry,
		Confidence: models.IntentConfidenceLow,
		Action:     "fallback to logging entry due to " + reason,
	}
}
