package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/signal-admin/backend/models"
)

// ErrNotFound is returned by repositories when a record does not exist
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a unique constraint is violated
var ErrConflict = errors.New("record already exists")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// CounterStore holds fixed-window rate limit counters. Hit must be atomic per
// key: it rolls the window over when now-windowStartedAt >= window, then
// increments count only if count < max. It returns the counter after the
// operation and whether the call was admitted.
type CounterStore interface {
	Hit(ctx context.Context, key string, max int, window time.Duration, now time.Time) (*models.RateLimitCounter, bool, error)
}

// CounterPruner is implemented by counter stores that need explicit cleanup
// of counters whose window ended before the cutoff
type CounterPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionRepository is the durable record of issued sessions. Implementations
// must make TouchActivity and Revoke safe for concurrent use per session.
type SessionRepository interface {
	// Create stores a new session
	Create(ctx context.Context, session *models.Session) error

	// GetByID returns the session or ErrNotFound
	GetByID(ctx context.Context, id string) (*models.Session, error)

	// ListByActor returns every stored session of an actor, live or not
	ListByActor(ctx context.Context, actorID string) ([]*models.Session, error)

	// TouchActivity sets last_activity_at; ErrNotFound if the session is gone
	TouchActivity(ctx context.Context, id string, at time.Time) error

	// Revoke marks a session revoked. Revoking a revoked or missing session
	// is not an error.
	Revoke(ctx context.Context, id string, reason models.RevocationReason, at time.Time) error

	// RevokeAllForActor revokes all unrevoked sessions of an actor and
	// returns how many changed
	RevokeAllForActor(ctx context.Context, actorID string, reason models.RevocationReason, at time.Time) (int64, error)

	// DeleteExpired removes sessions with expires_at < now regardless of
	// revocation and returns how many were removed
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditFilter narrows audit log queries
type AuditFilter struct {
	ActorID string
	Action  models.AuditAction
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert appends an audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByID retrieves an audit log by ID
	GetByID(ctx context.Context, id string) (*models.AuditLog, error)

	// List returns entries matching the filter, newest first
	List(ctx context.Context, filter AuditFilter) ([]*models.AuditLog, error)
}

// SignalRepository handles signal data operations
type SignalRepository interface {
	Create(ctx context.Context, signal *models.Signal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Signal, error)
	List(ctx context.Context, status models.SignalStatus, limit, offset int) ([]*models.Signal, error)
	Update(ctx context.Context, signal *models.Signal) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetTags(ctx context.Context, signalID uuid.UUID, tagIDs []uuid.UUID) error
}

// TagRepository handles tag data operations
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
	List(ctx context.Context) ([]*models.Tag, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Signals  SignalRepository
	Tags     TagRepository
	Sessions SessionRepository
	Counters CounterStore
	Audit    AuditRepository

	// Transactions groups Signals and Tags calls
	Transactions TransactionManager
}
