package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"go.uber.org/zap"
)

const sessionColumns = `id, actor_id, fingerprint, network_address, client_agent,
		       created_at, last_activity_at, expires_at, revoked, revoked_at, revoked_reason`

// SessionRepository implements the repositories.SessionRepository interface
type SessionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		session.ID,
		session.ActorID,
		session.Fingerprint,
		session.NetworkAddress,
		session.ClientAgent,
		session.CreatedAt,
		session.LastActivityAt,
		session.ExpiresAt,
		session.Revoked,
		session.RevokedAt,
		nullString(string(session.RevokedReason)),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Debug("session created", zap.String("actor_id", session.ActorID))
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	session, err := scanSession(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListByActor returns all stored sessions of an actor, most recently active first
func (r *SessionRepository) ListByActor(ctx context.Context, actorID string) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE actor_id = $1
		ORDER BY last_activity_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

// TouchActivity moves last_activity_at forward
func (r *SessionRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `
		UPDATE sessions
		SET last_activity_at = GREATEST(last_activity_at, $2)
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Revoke marks a session revoked; already revoked or missing sessions are left alone
func (r *SessionRepository) Revoke(ctx context.Context, id string, reason models.RevocationReason, at time.Time) error {
	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, `
		UPDATE sessions
		SET revoked = true, revoked_at = $2, revoked_reason = $3
		WHERE id = $1 AND revoked = false
	`, id, at, string(reason))
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAllForActor revokes every unrevoked session of the actor
func (r *SessionRepository) RevokeAllForActor(ctx context.Context, actorID string, reason models.RevocationReason, at time.Time) (int64, error) {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `
		UPDATE sessions
		SET revoked = true, revoked_at = $2, revoked_reason = $3
		WHERE actor_id = $1 AND revoked = false
	`, actorID, at, string(reason))
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("sessions revoked",
		zap.String("actor_id", actorID),
		zap.String("reason", string(reason)),
		zap.Int64("count", n))
	return n, nil
}

// DeleteExpired removes sessions past their absolute expiry
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	session := &models.Session{}
	var revokedAt sql.NullTime
	var revokedReason sql.NullString

	err := row.Scan(
		&session.ID,
		&session.ActorID,
		&session.Fingerprint,
		&session.NetworkAddress,
		&session.ClientAgent,
		&session.CreatedAt,
		&session.LastActivityAt,
		&session.ExpiresAt,
		&session.Revoked,
		&revokedAt,
		&revokedReason,
	)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		t := revokedAt.Time
		session.RevokedAt = &t
	}
	session.RevokedReason = models.RevocationReason(revokedReason.String)
	return session, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
