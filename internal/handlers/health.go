package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// Pinger is any dependency that can report its own health
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// BreakerStater reports the oracle circuit breaker state ("closed", "half-open", "open")
type BreakerStater interface {
	State() string
}

type namedCheck struct {
	name string
	ping Pinger
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks  []namedCheck
	breaker BreakerStater
}

// HealthOption adds an optional dependency to the extended health check
type HealthOption func(*HealthChecker)

// WithHealthCheck adds a named dependency check; nil pingers are skipped
func WithHealthCheck(name string, p Pinger) HealthOption {
	return func(h *HealthChecker) {
		if p != nil {
			h.checks = append(h.checks, namedCheck{name: name, ping: p})
		}
	}
}

// WithBreaker reports the oracle breaker state
func WithBreaker(b BreakerStater) HealthOption {
	return func(h *HealthChecker) {
		h.breaker = b
	}
}

// NewHealthChecker creates a health checker over the database and any optional dependencies
func NewHealthChecker(db Pinger, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{}
	WithHealthCheck("database", db)(h)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. mode=extended checks every dependency.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		response.Checks = make(map[string]string, len(h.checks)+1)
		for _, c := range h.checks {
			if err := c.ping.HealthCheck(ctx); err != nil {
				response.Status = "unhealthy"
				response.Checks[c.name] = "unhealthy: " + sanitizeErrorMessage(err.Error())
				continue
			}
			response.Checks[c.name] = "healthy"
		}
		if h.breaker != nil {
			state := h.breaker.State()
			response.Checks["oracle_breaker"] = state
			if state == "open" && response.Status == "healthy" {
				response.Status = "degraded"
			}
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
