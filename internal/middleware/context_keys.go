package middleware

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys to prevent collisions.
type contextKey string

const (
	loggerKey        = contextKey("logger")
	ownerIDKey       = contextKey("ownerID")
	correlationIDKey = contextKey("correlationID")
)

// GetLoggerFromCtx returns the request-scoped logger, or the default
// logger when none was injected (background workers, tests).
func GetLoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// ContextWithLogger returns a context carrying the given logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetOwnerIDFromCtx returns the authenticated owner id, if present.
func GetOwnerIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerIDKey).(uuid.UUID)
	return id, ok
}

// ContextWithOwnerID returns a context carrying the caller's owner id.
func ContextWithOwnerID(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// GetCorrelationIDFromCtx returns the correlation id for the current
// request, minting a fresh one when none was injected.
func GetCorrelationIDFromCtx(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(correlationIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.New()
}

// ContextWithCorrelationID returns a context carrying the correlation id.
func ContextWithCorrelationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}
