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

// TagRepository is an in-process repositories.TagRepository. Tag names are
// unique case-insensitively.
type TagRepository struct {
	mu   sync.RWMutex
	tags map[uuid.UUID]*models.Tag
}

// NewTagRepository creates an empty TagRepository
func NewTagRepository() *TagRepository {
	return &TagRepository{tags: make(map[uuid.UUID]*models.Tag)}
}

func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tags {
		if t.ID == tag.ID || strings.EqualFold(t.Name, tag.Name) {
			return repositories.ErrConflict
		}
	}
	cp := *tag
	r.tags[tag.ID] = &cp
	return nil
}

func (r *TagRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tags[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// List returns tags ordered by name
func (r *TagRepository) List(ctx context.Context) ([]*models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Tag, 0, len(r.tags))
	for _, t := range r.tags {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *TagRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tags[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.tags, id)
	return nil
}
