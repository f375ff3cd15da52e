package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/smart-diary/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("trend", validateTrend); err != nil {
		panic(fmt.Sprintf("failed to register trend validator: %v", err))
	}
	if err := Validate.RegisterValidation("intent_type", validateIntentType); err != nil {
		panic(fmt.Sprintf("failed to register intent_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("intent_confidence", validateIntentConfidence); err != nil {
		panic(fmt.Sprintf("failed to register intent_confidence validator: %v", err))
	}
}

func validateTrend(fl validator.FieldLevel) bool {
	switch models.Trend(fl.Field().String()) {
	case models.TrendUp, models.TrendDown, models.TrendNeutral:
		return true
	default:
		return false
	}
}

func validateIntentType(fl validator.FieldLevel) bool {
	switch models.IntentType(fl.Field().String()) {
	case models.IntentLogEntry, models.IntentQueryMetrics, models.IntentModifyUI:
		return true
	default:
		return false
	}
}

func validateIntentConfidence(fl validator.FieldLevel) bool {
	switch models.IntentConfidence(fl.Field().String()) {
	case models.IntentConfidenceHigh, models.IntentConfidenceMedium, models.IntentConfidenceLow:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// Describe flattens validator errors into a single human-readable line,
// e.g. "metrics[0].confidence must be lte 1; tags is required".
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// fieldPath drops the root struct name and lowercases the first letter of each segment
func fieldPath(namespace string) string {
	segments := strings.Split(namespace, ".")
	if len(segments) > 1 {
		segments = segments[1:]
	}
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		segments[i] = strings.ToLower(seg[:1]) + seg[1:]
	}
	return strings.Join(segments, ".")
}
