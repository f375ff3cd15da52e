package validation

import (
	"strings"
	"testing"

	"github.com/benvon/smart-diary/internal/models"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trims whitespace", input: "  ran 5k  ", want: "ran 5k"},
		{name: "keeps newline and tab", input: "a\nb\tc", want: "a\nb\tc"},
		{name: "drops control characters", input: "a\x00b\x07c", want: "abc"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidate_Insight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		insight models.Insight
		wantErr string
	}{
		{
			name: "valid",
			insight: models.Insight{
				Metrics:    []models.Metric{{Type: "distance", Value: models.NumberValue(5), Confidence: 0.9}},
				Confidence: 0.8,
				Tags:       []string{},
			},
		},
		{
			name: "metric confidence out of range",
			insight: models.Insight{
				Metrics:    []models.Metric{{Type: "distance", Value: models.NumberValue(5), Confidence: 1.5}},
				Confidence: 0.8,
			},
			wantErr: "metrics[0].confidence must be lte 1",
		},
		{
			name:    "insight confidence negative",
			insight: models.Insight{Confidence: -0.1},
			wantErr: "confidence must be gte 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate.Struct(tt.insight)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if got := Describe(err); !strings.Contains(got, tt.wantErr) {
				t.Errorf("Describe() = %q, want it to contain %q", got, tt.wantErr)
			}
		})
	}
}

func TestValidate_Intent(t *testing.T) {
	t.Parallel()

	valid := models.Intent{Type: models.IntentQueryMetrics, Confidence: models.IntentConfidenceHigh, Action: "show runs"}
	if err := Validate.Struct(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	invalid := models.Intent{Type: "delete_everything", Confidence: models.IntentConfidenceHigh, Action: "x"}
	if err := Validate.Struct(invalid); err == nil {
		t.Fatal("expected error for unknown intent type")
	}
}
