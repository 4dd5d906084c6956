package memory

import (
	"context"
	"sync"
	"time"

	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
)

// SessionRepository is an in-process repositories.SessionRepository
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	byActor  map[string]map[string]struct{}
}

// NewSessionRepository creates an empty SessionRepository
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*models.Session),
		byActor:  make(map[string]map[string]struct{}),
	}
}

// Create stores a copy of the session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return repositories.ErrConflict
	}
	cp := *session
	r.sessions[session.ID] = &cp
	ids, ok := r.byActor[session.ActorID]
	if !ok {
		ids = make(map[string]struct{})
		r.byActor[session.ActorID] = ids
	}
	ids[session.ID] = struct{}{}
	return nil
}

// GetByID returns a copy of the session
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ListByActor returns copies of all sessions of the actor
func (r *SessionRepository) ListByActor(ctx context.Context, actorID string) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Session, 0, len(r.byActor[actorID]))
	for id := range r.byActor[actorID] {
		cp := *r.sessions[id]
		out = append(out, &cp)
	}
	return out, nil
}

// TouchActivity updates last activity
func (r *SessionRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if at.After(s.LastActivityAt) {
		s.LastActivityAt = at
	}
	return nil
}

// Revoke marks the session revoked
func (r *SessionRepository) Revoke(ctx context.Context, id string, reason models.RevocationReason, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.MarkRevoked(reason, at)
	}
	return nil
}

// RevokeAllForActor revokes every unrevoked session of the actor
func (r *SessionRepository) RevokeAllForActor(ctx context.Context, actorID string, reason models.RevocationReason, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id := range r.byActor[actorID] {
		if r.sessions[id].MarkRevoked(reason, at) {
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes sessions that expired before now
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, id)
			if ids, ok := r.byActor[s.ActorID]; ok {
				delete(ids, id)
				if len(ids) == 0 {
					delete(r.byActor, s.ActorID)
				}
			}
			n++
		}
	}
	return n, nil
}
