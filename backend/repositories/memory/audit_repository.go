package memory

import (
	"context"
	"sync"

	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
)

// AuditRepository is an append-only in-process audit trail
type AuditRepository struct {
	mu      sync.RWMutex
	entries []*models.AuditLog
}

// NewAuditRepository creates an empty AuditRepository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *AuditRepository) GetByID(ctx context.Context, id string) (*models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// List returns matching entries newest first
func (r *AuditRepository) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.AuditLog, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && e.CreatedAt.After(*filter.Until) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

// Len returns the number of stored entries
func (r *AuditRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
