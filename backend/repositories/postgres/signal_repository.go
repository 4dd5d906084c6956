package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"go.uber.org/zap"
)

// SignalRepository implements the repositories.SignalRepository interface
type SignalRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(db *DB, logger *zap.Logger) *SignalRepository {
	return &SignalRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new signal
func (r *SignalRepository) Create(ctx context.Context, signal *models.Signal) error {
	query := `
		INSERT INTO signals (id, title, body, severity, status, source_url, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		signal.ID,
		signal.Title,
		signal.Body,
		signal.Severity,
		signal.Status,
		signal.SourceURL,
		signal.CreatedBy,
		signal.CreatedAt,
		signal.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrConflict
		}
		return fmt.Errorf("failed to create signal: %w", err)
	}

	r.logger.Debug("signal created", zap.String("id", signal.ID.String()))
	return nil
}

// GetByID retrieves a signal and its tag ids
func (r *SignalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Signal, error) {
	query := `
		SELECT s.id, s.title, s.body, s.severity, s.status, s.source_url, s.created_by,
		       s.created_at, s.updated_at,
		       COALESCE(array_agg(st.tag_id::text) FILTER (WHERE st.tag_id IS NOT NULL), '{}')
		FROM signals s
		LEFT JOIN signal_tags st ON st.signal_id = s.id
		WHERE s.id = $1
		GROUP BY s.id
	`

	executor := GetExecutor(ctx, r.db)
	signal, err := scanSignal(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}
	return signal, nil
}

// List retrieves signals newest first. An empty status matches all.
func (r *SignalRepository) List(ctx context.Context, status models.SignalStatus, limit, offset int) ([]*models.Signal, error) {
	query := `
		SELECT s.id, s.title, s.body, s.severity, s.status, s.source_url, s.created_by,
		       s.created_at, s.updated_at,
		       COALESCE(array_agg(st.tag_id::text) FILTER (WHERE st.tag_id IS NOT NULL), '{}')
		FROM signals s
		LEFT JOIN signal_tags st ON st.signal_id = s.id
		WHERE ($1::text = '' OR s.status = $1)
		GROUP BY s.id
		ORDER BY s.created_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	signals := make([]*models.Signal, 0)
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}

// Update updates a signal's mutable fields
func (r *SignalRepository) Update(ctx context.Context, signal *models.Signal) error {
	query := `
		UPDATE signals
		SET title = $2, body = $3, severity = $4, status = $5, source_url = $6, updated_at = $7
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		signal.ID,
		signal.Title,
		signal.Body,
		signal.Severity,
		signal.Status,
		signal.SourceURL,
		signal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update signal: %w", err)
	}
	return requireOneRow(result)
}

// Delete deletes a signal; its tag links cascade
func (r *SignalRepository) Delete(ctx context.Context, id uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM signals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete signal: %w", err)
	}
	return requireOneRow(result)
}

// SetTags replaces the tag links of a signal. Callers should run it inside
// a transaction together with the signal write.
func (r *SignalRepository) SetTags(ctx context.Context, signalID uuid.UUID, tagIDs []uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)

	if _, err := executor.ExecContext(ctx, `DELETE FROM signal_tags WHERE signal_id = $1`, signalID); err != nil {
		return fmt.Errorf("failed to clear signal tags: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}

	ids := make([]string, len(tagIDs))
	for i, id := range tagIDs {
		ids[i] = id.String()
	}
	if _, err := executor.ExecContext(ctx, `
		INSERT INTO signal_tags (signal_id, tag_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING
	`, signalID, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to set signal tags: %w", err)
	}
	return nil
}

func scanSignal(row rowScanner) (*models.Signal, error) {
	signal := &models.Signal{}
	var tagIDs []string

	err := row.Scan(
		&signal.ID,
		&signal.Title,
		&signal.Body,
		&signal.Severity,
		&signal.Status,
		&signal.SourceURL,
		&signal.CreatedBy,
		&signal.CreatedAt,
		&signal.UpdatedAt,
		pq.Array(&tagIDs),
	)
	if err != nil {
		return nil, err
	}

	for _, raw := range tagIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid tag id %q: %w", raw, err)
		}
		signal.TagIDs = append(signal.TagIDs, id)
	}
	return signal, nil
}

func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
