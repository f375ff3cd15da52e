package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	logpkg "github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/benvon/smart-diary/internal/monitoring"
	"github.com/benvon/smart-diary/internal/telemetry"
	"github.com/benvon/smart-diary/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// ErrMsgParseFailure is the degraded-insight error for payloads that are not JSON objects
	ErrMsgParseFailure = "Failed to parse oracle response"
	// ErrMsgValidationPrefix prefixes degraded-insight errors for schema violations
	ErrMsgValidationPrefix = "Validation failed: "

	defaultConfidence = 0.5
	unknownMetricType = "unknown"
)

// Extraction outcomes, used as metric labels
const (
	OutcomeSuccess         = "success"
	OutcomeOracleFailure   = "oracle_failure"
	OutcomeParseFailure    = "parse_failure"
	OutcomeValidationError = "validation_failure"
)

// InsightExtractor turns free text into a validated Insight via the oracle.
// Extract never fails; every problem degrades to an Insight with Error set.
type InsightExtractor struct {
	oracle Oracle
	logger *zap.Logger
}

// NewInsightExtractor creates an extractor over the given oracle
func NewInsightExtractor(oracle Oracle, logger *zap.Logger) *InsightExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightExtractor{oracle: oracle, logger: logger}
}

// Extract asks the oracle for an insight on entryText. taxonomyHint, when non-empty,
// is appended to the entry so the oracle reuses known names.
func (e *InsightExtractor) Extract(ctx context.Context, entryText, taxonomyHint string) models.Insight {
	ctx, span := telemetry.StartSpan(ctx, "ai", "InsightExtractor.Extract")
	defer span.End()
	ctx = WithOperation(ctx, "extract_insight")

	start := time.Now()
	insight, outcome := e.extract(ctx, entryText, taxonomyHint)

	monitoring.ExtractionsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.String("extraction.outcome", outcome),
		attribute.Int("extraction.metric_count", len(insight.Metrics)),
	)
	if insight.Degraded() {
		span.SetStatus(codes.Error, insight.Error)
		e.logger.Warn("insight_extraction_degraded",
			zap.String("outcome", outcome),
			zap.String("entry_id", ExtractEntryID(ctx)),
			zap.String("error", logpkg.SanitizeErrorString(insight.Error)),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		e.logger.Debug("insight_extracted",
			zap.String("entry_id", ExtractEntryID(ctx)),
			zap.Int("metric_count", len(insight.Metrics)),
			zap.Int("tag_count", len(insight.Tags)),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return insight
}

func (e *InsightExtractor) extract(ctx context.Context, entryText, taxonomyHint string) (models.Insight, string) {
	payload, err := e.oracle.Complete(ctx, buildInsightMessages(entryText, taxonomyHint))
	if err != nil {
		if IsQuotaError(err) || IsRateLimitError(err) {
			e.logger.Warn("oracle_throttled",
				zap.Bool("quota", IsQuotaError(err)),
				zap.String("error", logpkg.SanitizeError(err)),
			)
		}
		return degradedInsight(err.Error()), OutcomeOracleFailure
	}

	raw, err := parseJSONObject(payload)
	if err != nil {
		e.logger.Debug("oracle_payload_unparsable",
			zap.String("error", logpkg.SanitizeError(err)),
			zap.String("payload_preview", SanitizeResponse(payload, false)),
		)
		return degradedInsight(ErrMsgParseFailure), OutcomeParseFailure
	}

	insight, problems := normalizeInsight(raw)
	if err := validation.Validate.Struct(insight); err != nil {
		problems = append(problems, validation.Describe(err))
	}
	if len(problems) > 0 {
		return degradedInsight(ErrMsgValidationPrefix + strings.Join(problems, "; ")), OutcomeValidationError
	}
	return insight, OutcomeSuccess
}

func degradedInsight(reason string) models.Insight {
	return models.Insight{
		Summary:    "",
		Metrics:    []models.Metric{},
		Confidence: defaultConfidence,
		Tags:       []string{},
		Error:      reason,
	}
}

// normalizeInsight fills defaults for absent fields and collects type problems
// that the struct validator cannot see once values are typed.
func normalizeInsight(raw map[string]any) (models.Insight, []string) {
	var problems []string
	insight := models.Insight{
		Metrics:    []models.Metric{},
		Confidence: defaultConfidence,
		Tags:       []string{},
	}

	switch v := raw["summary"].(type) {
	case nil:
	case string:
		insight.Summary = v
	default:
		problems = append(problems, fmt.Sprintf("summary must be a string, got %s", jsonKind(v)))
	}

	if v, ok := raw["confidence"].(float64); ok {
		insight.Confidence = v
	}

	if v, ok := raw["activity"].(string); ok {
		insight.Activity = strings.TrimSpace(v)
	}

	if items, ok := raw["metrics"].([]any); ok {
		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				problems = append(problems, fmt.Sprintf("metrics[%d] must be an object, got %s", i, jsonKind(item)))
				continue
			}
			metric, metricProblems := normalizeMetric(i, m)
			problems = append(problems, metricProblems...)
			insight.Metrics = append(insight.Metrics, metric)
		}
	}

	if items, ok := raw["tags"].([]any); ok {
		for i, item := range items {
			tag, ok := item.(string)
			if !ok {
				problems = append(problems, fmt.Sprintf("tags[%d] must be a string, got %s", i, jsonKind(item)))
				continue
			}
			insight.Tags = append(insight.Tags, tag)
		}
	}

	return insight, problems
}

func normalizeMetric(i int, raw map[string]any) (models.Metric, []string) {
	var problems []string
	metric := models.Metric{
		Type:       unknownMetricType,
		Value:      models.NumberValue(0),
		Confidence: defaultConfidence,
	}

	switch v := raw["type"].(type) {
	case nil:
	case string:
		if v != "" {
			metric.Type = v
		}
	default:
		problems = append(problems, fmt.Sprintf("metrics[%d].type must be a string, got %s", i, jsonKind(v)))
	}

	switch v := raw["value"].(type) {
	case nil:
	case float64:
		metric.Value = models.NumberValue(v)
	case string:
		metric.Value = models.StringValue(v)
	default:
		problems = append(problems, fmt.Sprintf("metrics[%d].value must be a number or string, got %s", i, jsonKind(v)))
	}

	switch v := raw["unit"].(type) {
	case nil:
	case string:
		if v != "" {
			unit := v
			metric.Unit = &unit
		}
	default:
		problems = append(problems, fmt.Sprintf("metrics[%d].unit must be a string or null, got %s", i, jsonKind(v)))
	}

	if v, ok := raw["confidence"].(float64); ok {
		metric.Confidence = v
	}

	return metric, problems
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
