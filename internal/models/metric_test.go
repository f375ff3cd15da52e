package models

import (
	"encoding/json"
	"testing"
	"time"
)

func stringPtr(s string) *string {
	return &s
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestMetricValue_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantKind  MetricValueKind
		wantStr   string
		wantErr   bool
		wantFalsy bool
	}{
		{name: "integer", input: `5`, wantKind: MetricValueNumber, wantStr: "5"},
		{name: "float", input: `6.25`, wantKind: MetricValueNumber, wantStr: "6.25"},
		{name: "negative", input: `-3`, wantKind: MetricValueNumber, wantStr: "-3"},
		{name: "string", input: `"positive"`, wantKind: MetricValueString, wantStr: "positive"},
		{name: "null becomes zero", input: `null`, wantKind: MetricValueNumber, wantStr: "0", wantFalsy: true},
		{name: "empty string is falsy", input: `""`, wantKind: MetricValueString, wantStr: "", wantFalsy: true},
		{name: "bool rejected", input: `true`, wantErr: true},
		{name: "object rejected", input: `{"a":1}`, wantErr: true},
		{name: "array rejected", input: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var v MetricValue
			err := json.Unmarshal([]byte(tt.input), &v)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s, got value %v", tt.input, v)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Kind() != tt.wantKind {
				t.Errorf("kind = %v, want %v", v.Kind(), tt.wantKind)
			}
			if v.String() != tt.wantStr {
				t.Errorf("String() = %q, want %q", v.String(), tt.wantStr)
			}
			if v.IsZero() != tt.wantFalsy {
				t.Errorf("IsZero() = %v, want %v", v.IsZero(), tt.wantFalsy)
			}
		})
	}
}

func TestMetric_JSONShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		metric Metric
		want   string
	}{
		{
			name:   "numeric with unit",
			metric: Metric{Type: "distance", Value: NumberValue(5), Unit: stringPtr("km"), Confidence: 0.95},
			want:   `{"type":"distance","value":5,"unit":"km","confidence":0.95}`,
		},
		{
			name:   "categorical without unit",
			metric: Metric{Type: "mood_impact", Value: StringValue("positive"), Confidence: 0.7},
			want:   `{"type":"mood_impact","value":"positive","unit":null,"confidence":0.7}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := json.Marshal(tt.metric)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInsight_OmitsEmptyError(t *testing.T) {
	t.Parallel()

	insight := Insight{Summary: "ran", Metrics: []Metric{}, Confidence: 0.9, Tags: []string{}}
	got, err := json.Marshal(insight)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"summary":"ran","metrics":[],"confidence":0.9,"tags":[]}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if insight.Degraded() {
		t.Error("insight without error must not be degraded")
	}
}

func TestDateRange_Contains(t *testing.T) {
	t.Parallel()

	r := DateRange{Start: mustTime(t, "2024-01-01T00:00:00Z"), End: mustTime(t, "2024-01-07T23:59:59Z")}
	if !r.Contains(r.Start) || !r.Contains(r.End) {
		t.Error("range bounds must be inclusive")
	}
	if r.Contains(mustTime(t, "2024-01-08T00:00:00Z")) {
		t.Error("time after end must not be contained")
	}
}
