package middleware

import (
	"context"

	"github.com/upb/signal-admin/backend/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ActorKey is the context key for the authenticated actor
	ActorKey contextKey = "actor"

	// SessionKey is the context key for the validated session
	SessionKey contextKey = "session"
)

// GetActorFromContext retrieves the authenticated actor from context
func GetActorFromContext(ctx context.Context) *models.ActorIdentity {
	if val := ctx.Value(ActorKey); val != nil {
		if actor, ok := val.(*models.ActorIdentity); ok {
			return actor
		}
	}
	return nil
}

// ActorOrAnonymous returns the actor in ctx, or an unauthenticated one
func ActorOrAnonymous(ctx context.Context) models.ActorIdentity {
	if actor := GetActorFromContext(ctx); actor != nil {
		return *actor
	}
	return models.Anonymous()
}

// WithActor adds the authenticated actor to the context
func WithActor(ctx context.Context, actor *models.ActorIdentity) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetSessionFromContext retrieves the validated session from context
func GetSessionFromContext(ctx context.Context) *models.Session {
	if val := ctx.Value(SessionKey); val != nil {
		if s, ok := val.(*models.Session); ok {
			return s
		}
	}
	return nil
}

// WithSession adds the validated session to the context
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}
