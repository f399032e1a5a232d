// Package requestctx carries request-scoped values from the HTTP middleware
// down to the stores and the event bus.
package requestctx

import (
	"context"
	"time"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	receivedAtKey
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID, or "" outside an HTTP request.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func WithReceivedAt(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, receivedAtKey, t)
}

// ReceivedAt returns when the request reached the server. Without a recorded
// time it calls fallback.
func ReceivedAt(ctx context.Context, fallback func() time.Time) time.Time {
	if t, ok := ctx.Value(receivedAtKey).(time.Time); ok {
		return t
	}
	return fallback()
}
