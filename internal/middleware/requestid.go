package middleware

import (
	"net/http"

	"github.com/benvon/smart-diary/internal/request"
	"github.com/google/uuid"
)

// maxRequestIDLength caps client-supplied request IDs
const maxRequestIDLength = 128

// RequestID propagates the X-Request-ID header, generating one when the client sent none
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(request.RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(request.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(request.WithRequestID(r.Context(), id)))
	})
}
