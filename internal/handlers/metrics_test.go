package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/benvon/smart-diary/internal/models"
	"github.com/gorilla/mux"
)

func TestMetricsHandler_QueryMetrics(t *testing.T) {
	t.Parallel()

	avg := 7.5
	ok := models.QueryResult{
		DateRange: models.DateRange{Start: time.Now().AddDate(0, 0, -7), End: time.Now()},
		Metrics:   []models.MetricAggregation{{Type: "sleep", Values: []float64{7, 8}, Average: &avg, Trend: models.TrendUp}},
	}

	tests := []struct {
		name      string
		query     string
		result    models.QueryResult
		wantCode  int
		wantQuery string
	}{
		{name: "answered", query: "how did I sleep last week", result: ok, wantCode: http.StatusOK, wantQuery: "how did I sleep last week"},
		{name: "trimmed", query: "  sleep  ", result: ok, wantCode: http.StatusOK, wantQuery: "sleep"},
		{name: "missing", query: "", wantCode: http.StatusBadRequest},
		{name: "blank", query: "   ", wantCode: http.StatusBadRequest},
		{name: "too long", query: strings.Repeat("q", MaxQueryLength+1), wantCode: http.StatusBadRequest},
		{name: "engine error", query: "sleep", result: models.QueryResult{Metrics: []models.MetricAggregation{}, Error: "oracle unavailable"}, wantCode: http.StatusBadRequest, wantQuery: "sleep"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := &mockQueryEngine{result: tt.result}
			r := mux.NewRouter()
			NewMetricsHandler(engine).RegisterRoutes(r)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics?query="+url.QueryEscape(tt.query), nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantQuery == "" {
				if len(engine.queries) != 0 {
					t.Errorf("engine called with %v, want no call", engine.queries)
				}
				return
			}
			if len(engine.queries) != 1 || engine.queries[0] != tt.wantQuery {
				t.Errorf("engine queries = %v, want [%s]", engine.queries, tt.wantQuery)
			}
			if tt.result.Error != "" {
				body := decodeBody(t, rec)
				if body["message"] != tt.result.Error {
					t.Errorf("message = %v, want %q", body["message"], tt.result.Error)
				}
			}
		})
	}
}
