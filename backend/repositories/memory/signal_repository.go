package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
)

// SignalRepository is an in-process repositories.SignalRepository
type SignalRepository struct {
	mu      sync.RWMutex
	signals map[uuid.UUID]*models.Signal
}

// NewSignalRepository creates an empty SignalRepository
func NewSignalRepository() *SignalRepository {
	return &SignalRepository{signals: make(map[uuid.UUID]*models.Signal)}
}

func copySignal(s *models.Signal) *models.Signal {
	cp := *s
	cp.TagIDs = append([]uuid.UUID(nil), s.TagIDs...)
	return &cp
}

func (r *SignalRepository) Create(ctx context.Context, signal *models.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.signals[signal.ID]; ok {
		return repositories.ErrConflict
	}
	r.signals[signal.ID] = copySignal(signal)
	return nil
}

func (r *SignalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.signals[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copySignal(s), nil
}

// List returns signals newest first, optionally filtered by status
func (r *SignalRepository) List(ctx context.Context, status models.SignalStatus, limit, offset int) ([]*models.Signal, error) {
	r.mu.RLock()
	all := make([]*models.Signal, 0, len(r.signals))
	for _, s := range r.signals {
		if status != "" && s.Status != status {
			continue
		}
		all = append(all, copySignal(s))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return strings.Compare(all[i].ID.String(), all[j].ID.String()) < 0
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, limit, offset), nil
}

func (r *SignalRepository) Update(ctx context.Context, signal *models.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.signals[signal.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	cp := copySignal(signal)
	cp.TagIDs = existing.TagIDs
	r.signals[signal.ID] = cp
	return nil
}

func (r *SignalRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.signals[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.signals, id)
	return nil
}

func (r *SignalRepository) SetTags(ctx context.Context, signalID uuid.UUID, tagIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.signals[signalID]
	if !ok {
		return repositories.ErrNotFound
	}
	s.TagIDs = append([]uuid.UUID(nil), tagIDs...)
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
