package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"go.uber.org/zap"
)

// TagRepository implements the repositories.TagRepository interface
type TagRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *DB, logger *zap.Logger) *TagRepository {
	return &TagRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new tag. Names are unique regardless of case.
func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, `
		INSERT INTO tags (id, name, color, created_at)
		VALUES ($1, $2, $3, $4)
	`, tag.ID, tag.Name, tag.Color, tag.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrConflict
		}
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// GetByID retrieves a tag by ID
func (r *TagRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	executor := GetExecutor(ctx, r.db)
	tag := &models.Tag{}
	err := executor.QueryRowContext(ctx, `
		SELECT id, name, color, created_at FROM tags WHERE id = $1
	`, id).Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return tag, nil
}

// List returns all tags ordered by name
func (r *TagRepository) List(ctx context.Context) ([]*models.Tag, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, `SELECT id, name, color, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]*models.Tag, 0)
	for rows.Next() {
		tag := &models.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}
	return tags, nil
}

// Delete deletes a tag; signal links cascade
func (r *TagRepository) Delete(ctx context.Context, id uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return requireOneRow(result)
}
