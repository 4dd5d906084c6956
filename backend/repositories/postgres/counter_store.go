package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"go.uber.org/zap"
)

// CounterStore implements repositories.CounterStore with a row lock per key
type CounterStore struct {
	db     *DB
	tm     *TransactionManager
	logger *zap.Logger
}

// NewCounterStore creates a new counter store
func NewCounterStore(db *DB, logger *zap.Logger) *CounterStore {
	return &CounterStore{
		db:     db,
		tm:     NewTransactionManager(db, logger),
		logger: logger,
	}
}

// Hit applies one fixed-window check inside a transaction. The row is created
// if missing and then locked with SELECT ... FOR UPDATE, so concurrent callers
// on the same key are serialized by Postgres.
func (s *CounterStore) Hit(ctx context.Context, key string, max int, window time.Duration, now time.Time) (*models.RateLimitCounter, bool, error) {
	counter := &models.RateLimitCounter{Key: key}
	var allowed bool

	err := s.tm.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(ctx, s.db)

		if _, err := executor.ExecContext(ctx, `
			INSERT INTO rate_limit_counters (key, count, window_started_at)
			VALUES ($1, 0, $2)
			ON CONFLICT (key) DO NOTHING
		`, key, now); err != nil {
			return fmt.Errorf("failed to seed rate limit counter: %w", err)
		}

		if err := executor.QueryRowContext(ctx, `
			SELECT count, window_started_at
			FROM rate_limit_counters
			WHERE key = $1
			FOR UPDATE
		`, key).Scan(&counter.Count, &counter.WindowStartedAt); err != nil {
			return fmt.Errorf("failed to lock rate limit counter: %w", err)
		}

		allowed = counter.Hit(now, max, window)

		if _, err := executor.ExecContext(ctx, `
			UPDATE rate_limit_counters
			SET count = $2, window_started_at = $3
			WHERE key = $1
		`, key, counter.Count, counter.WindowStartedAt); err != nil {
			return fmt.Errorf("failed to update rate limit counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return counter, allowed, nil
}

// PruneBefore deletes counters whose window started before cutoff
func (s *CounterStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	executor := GetExecutor(ctx, s.db)
	result, err := executor.ExecContext(ctx,
		`DELETE FROM rate_limit_counters WHERE window_started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune rate limit counters: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Debug("rate limit counters pruned", zap.Int64("count", n))
	}
	return n, nil
}
