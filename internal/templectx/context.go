package templectx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// TempleContextKey is the request context key for the active temple ID.
type TempleContextKey struct{}

// ActorContextKey is the request context key for the acting user ID.
type ActorContextKey struct{}

// WithTempleID stores the temple ID in the context.
func WithTempleID(ctx context.Context, templeID int64) context.Context {
	return context.WithValue(ctx, TempleContextKey{}, templeID)
}

// WithActorID stores the acting user ID in the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actorID)
}

// TempleIDFromContext returns the temple ID from context, if set.
func TempleIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(TempleContextKey{}).(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// ActorIDFromContext returns the acting user ID from context, if set.
func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if actor, ok := ctx.Value(ActorContextKey{}).(string); ok {
		return strings.TrimSpace(actor)
	}
	return ""
}
