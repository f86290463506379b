package logging

import (
	"context"

	"github.com/google/uuid"
)

// HeaderRequestID is read from and echoed on every request
const HeaderRequestID = "X-Request-Id"

type requestIDKey struct{}

// NewRequestID returns a fresh request id
func NewRequestID() string {
	return uuid.NewString()
}

// ContextWithRequestID stores the request id on ctx
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id stored on ctx, or ""
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
