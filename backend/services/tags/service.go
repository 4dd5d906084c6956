// Package tags manages the labels attached to signals
package tags

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"github.com/upb/signal-admin/backend/services"
	"go.uber.org/zap"
)

// CreateInput is the payload of a new tag
type CreateInput struct {
	Name  string `json:"name" validate:"required,min=2,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// Ref identifies a single tag
type Ref struct {
	ID uuid.UUID `json:"id"`
}

// AuditTarget returns the tag id
func (r Ref) AuditTarget() string { return r.ID.String() }

// TagService handles tag CRUD
type TagService struct {
	repo   repositories.TagRepository
	logger *zap.Logger
}

// NewTagService creates a new TagService
func NewTagService(repo repositories.TagRepository, logger *zap.Logger) *TagService {
	return &TagService{repo: repo, logger: logger}
}

// Create stores a tag. Names are unique regardless of case.
func (s *TagService) Create(ctx context.Context, in CreateInput) (*models.Tag, error) {
	tag := models.NewTag(strings.TrimSpace(in.Name), in.Color)
	if err := s.repo.Create(ctx, tag); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, services.ErrDuplicateTag
		}
		return nil, services.NewStorageUnavailableError("create tag", err)
	}
	s.logger.Info("tag created", zap.String("tag_id", tag.ID.String()), zap.String("name", tag.Name))
	return tag, nil
}

// List returns all tags ordered by name
func (s *TagService) List(ctx context.Context) ([]*models.Tag, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, services.NewStorageUnavailableError("list tags", err)
	}
	return list, nil
}

// Delete removes a tag and detaches it from signals
func (s *TagService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrTagNotFound
		}
		return services.NewStorageUnavailableError("delete tag", err)
	}
	return nil
}
