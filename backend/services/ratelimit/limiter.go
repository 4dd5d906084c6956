// Package ratelimit implements the fixed-window limiter used by the security
// gate. Counters are keyed by actor and bucket and live in a
// repositories.CounterStore, which makes each check-and-increment atomic.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/upb/signal-admin/backend/internal/observability"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"github.com/upb/signal-admin/backend/services"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// Limiter answers "may this key make one more call in the current window"
type Limiter struct {
	store   repositories.CounterStore
	clock   utils.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewLimiter creates a Limiter. A nil clock means the system clock.
func NewLimiter(store repositories.CounterStore, clock utils.Clock, logger *zap.Logger, metrics *observability.Metrics) *Limiter {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Limiter{
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Key builds the composite counter key for an actor and a bucket
func Key(actorID, bucket string) string {
	return actorID + ":" + bucket
}

// Check consumes one call from key's window. The first call for a key, or
// the first call after the window has elapsed, starts a new window. A denied
// call does not consume quota.
//
// Any store failure is returned as a StorageUnavailable error together with
// a denied decision.
func (l *Limiter) Check(ctx context.Context, key string, maxCalls int, window time.Duration) (*models.RateLimitDecision, error) {
	denied := &models.RateLimitDecision{Allowed: false, Limit: maxCalls}

	if key == "" || maxCalls <= 0 || window <= 0 {
		return denied, services.WrapInternal("invalid rate limit configuration",
			fmt.Errorf("key=%q max=%d window=%s", key, maxCalls, window))
	}

	now := l.clock.Now()
	counter, allowed, err := l.store.Hit(ctx, key, maxCalls, window, now)
	if err != nil {
		l.metrics.RateLimitCheck("error")
		l.logger.Warn("rate limit store unavailable, denying request",
			zap.String("key", key),
			zap.Error(err))
		return denied, services.NewStorageUnavailableError("rate limit check", err)
	}

	decision := &models.RateLimitDecision{
		Allowed:      allowed,
		Limit:        maxCalls,
		ResetSeconds: resetSeconds(window - counter.Elapsed(now)),
	}
	if allowed {
		decision.Remaining = maxCalls - counter.Count
		l.metrics.RateLimitCheck("allowed")
	} else {
		l.metrics.RateLimitCheck("denied")
		l.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int("limit", maxCalls),
			zap.Int("reset_seconds", decision.ResetSeconds))
	}
	return decision, nil
}

// resetSeconds rounds the time left in the window up to whole seconds, at least 1
func resetSeconds(left time.Duration) int {
	secs := int(math.Ceil(left.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// CleanupStaleCounters removes counters whose window started more than twice
// the retention ago. Stores that expire keys themselves are left alone.
func (l *Limiter) CleanupStaleCounters(ctx context.Context, retention time.Duration) (int64, error) {
	pruner, ok := l.store.(repositories.CounterPruner)
	if !ok {
		return 0, nil
	}

	cutoff := l.clock.Now().Add(-2 * retention)
	removed, err := pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune rate limit counters: %w", err)
	}

	l.logger.Info("cleaned up stale rate limit counters",
		zap.Int64("rows_deleted", removed),
		zap.Time("cutoff_time", cutoff))
	return removed, nil
}

// StartCleanupWorker periodically prunes stale counters until ctx is done.
// retention should be the longest window in use.
func (l *Limiter) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	if _, ok := l.store.(repositories.CounterPruner); !ok {
		l.logger.Debug("counter store expires keys itself, cleanup worker not started")
		return
	}
	if interval <= 0 {
		l.logger.Error("rate limit cleanup worker not started: interval must be positive",
			zap.Duration("interval", interval))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Info("started rate limit cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := l.CleanupStaleCounters(ctx, retention); err != nil {
				l.logger.Error("failed to cleanup rate limit counters", zap.Error(err))
			}
		case <-ctx.Done():
			l.logger.Info("stopping rate limit cleanup worker")
			return
		}
	}
}
