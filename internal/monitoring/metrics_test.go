package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMiddleware_RecordsRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(HTTPMiddleware)
	r.HandleFunc("/api/v1/entries/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/entries/{id}", "404"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entries/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/entries/{id}", "404"))
	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}

func TestHandler_ExposesDiaryMetrics(t *testing.T) {
	ExtractionsTotal.WithLabelValues("success").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "diary_extractions_total") {
		t.Error("exposition should include diary_extractions_total")
	}
}
