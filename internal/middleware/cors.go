package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

const defaultFrontendOrigin = "http://localhost:3000"

// CORS creates CORS middleware for the given comma-separated origins (typically FRONTEND_URL)
func CORS(frontendURL string, logger *zap.Logger) func(http.Handler) http.Handler {
	origins := ParseOrigins(frontendURL)
	if logger != nil {
		logger.Info("cors_configured", zap.Strings("allowed_origins", origins))
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	})
	return c.Handler
}

// ParseOrigins splits a comma-separated origin list, dropping blanks and duplicates.
// An empty list falls back to the local frontend.
func ParseOrigins(csv string) []string {
	var origins []string
	seen := make(map[string]bool)
	for _, origin := range strings.Split(csv, ",") {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		origins = append(origins, trimmed)
	}
	if len(origins) == 0 {
		return []string{defaultFrontendOrigin}
	}
	return origins
}
