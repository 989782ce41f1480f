package id

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

type logIDKey struct{}

// NewLogID generates a lexicographically sortable identifier used to correlate
// log lines belonging to one request.
func NewLogID() string {
	return fmt.Sprintf("log-%s", ksuid.New().String())
}

// NewNonce generates a random idempotency token for callers that omit one.
func NewNonce() string {
	return uuid.NewString()
}

// WithLogID stores the log id on the context.
func WithLogID(ctx context.Context, logID string) context.Context {
	logID = strings.TrimSpace(logID)
	if logID == "" {
		return ctx
	}
	return context.WithValue(ctx, logIDKey{}, logID)
}

// LogIDFromContext returns the log id stored on ctx, if any.
func LogIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(logIDKey{}).(string); ok {
		return v
	}
	return ""
}

// EnsureLogID returns ctx unchanged when it already carries a log id, otherwise
// attaches one produced by gen.
func EnsureLogID(ctx context.Context, gen func() string) (context.Context, string) {
	if existing := LogIDFromContext(ctx); existing != "" {
		return ctx, existing
	}
	if gen == nil {
		gen = NewLogID
	}
	logID := gen()
	return WithLogID(ctx, logID), logID
}
