package ai

import (
	"context"

	logpkg "github.com/benvon/smart-diary/internal/logger"
)

// Context key types for logging (to avoid collisions with string keys)
type contextKey string

const (
	entryIDContextKey   contextKey = "entry_id"
	requestIDContextKey contextKey = "request_id"
	operationContextKey contextKey = "operation"
)

const (
	// MaxPreviewLength is the maximum length for preview strings in logs
	MaxPreviewLength = 200
	// RedactedValue is the value used to replace sensitive data
	RedactedValue = "[REDACTED]"
)

// WithRequestID attaches the HTTP request ID used in oracle logs
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// WithEntryID attaches the diary entry being processed
func WithEntryID(ctx context.Context, entryID string) context.Context {
	return context.WithValue(ctx, entryIDContextKey, entryID)
}

// WithOperation names the oracle call for logs and metrics ("extract_insight", "classify_intent")
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationContextKey, operation)
}

// ExtractRequestID extracts a request ID from context if available
func ExtractRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// ExtractEntryID extracts an entry ID from context if available
func ExtractEntryID(ctx context.Context) string {
	id, _ := ctx.Value(entryIDContextKey).(string)
	return id
}

// OperationFromContext returns the operation name, "complete" when unset
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operationContextKey).(string); ok && op != "" {
		return op
	}
	return "complete"
}

// SanitizeAPIKey keeps the first and last four characters of a key
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizePrompt creates a safe preview of a prompt for logging.
// fullLog raises the limit to the debug content length but still strips control characters.
func SanitizePrompt(prompt string, fullLog bool) string {
	return logpkg.SanitizeString(prompt, previewLength(fullLog))
}

// SanitizeResponse creates a safe preview of an oracle response for logging
func SanitizeResponse(response string, fullLog bool) string {
	return logpkg.SanitizeString(response, previewLength(fullLog))
}

func previewLength(fullLog bool) int {
	if fullLog {
		return logpkg.MaxDebugContentLength
	}
	return MaxPreviewLength
}
