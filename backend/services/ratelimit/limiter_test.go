package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/signal-admin/backend/internal/observability"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories/memory"
	"github.com/upb/signal-admin/backend/services"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestLimiter() (*Limiter, *utils.ManualClock, *memory.CounterStore) {
	clock := utils.NewManualClock(t0)
	store := memory.NewCounterStore()
	return NewLimiter(store, clock, zap.NewNop(), nil), clock, store
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, int, time.Duration, time.Time) (*models.RateLimitCounter, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "alice:signal_delete", Key("alice", "signal_delete"))
}

func TestLimiter_FixedWindow(t *testing.T) {
	limiter, clock, _ := newTestLimiter()
	ctx := context.Background()

	t.Run("first call of a new key is allowed", func(t *testing.T) {
		d, err := limiter.Check(ctx, "alice:op", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, d.Remaining)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, 60, d.ResetSeconds)
	})

	t.Run("remaining counts down", func(t *testing.T) {
		clock.Advance(10 * time.Second)
		d, err := limiter.Check(ctx, "alice:op", 3, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, d.Remaining)

		d, err = limiter.Check(ctx, "alice:op", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
	})

	t.Run("denied once the window is full", func(t *testing.T) {
		clock.Advance(19500 * time.Millisecond)
		d, err := limiter.Check(ctx, "alice:op", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
		// 60s - 29.5s elapsed rounds up
		assert.Equal(t, 31, d.ResetSeconds)
	})

	t.Run("other keys are unaffected", func(t *testing.T) {
		d, err := limiter.Check(ctx, "bob:op", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("rollover exactly at the window boundary", func(t *testing.T) {
		clock.Set(t0.Add(time.Minute))
		d, err := limiter.Check(ctx, "alice:op", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, d.Remaining)
	})
}

func TestLimiter_ResetSecondsNeverZero(t *testing.T) {
	limiter, clock, _ := newTestLimiter()
	ctx := context.Background()

	_, err := limiter.Check(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	clock.Advance(999 * time.Millisecond)

	d, err := limiter.Check(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, d.ResetSeconds)
}

func TestLimiter_ConcurrentCallersNeverExceedMax(t *testing.T) {
	limiter, _, _ := newTestLimiter()

	const callers, max = 100, 10
	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Check(context.Background(), "hot", max, time.Hour)
			if err == nil && d.Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(max), allowed)
}

func TestLimiter_FailsClosed(t *testing.T) {
	metrics := observability.NewMetrics()
	limiter := NewLimiter(failingStore{}, nil, zap.NewNop(), metrics)

	d, err := limiter.Check(context.Background(), "alice:op", 5, time.Minute)
	require.Error(t, err)
	assert.True(t, services.IsStorageUnavailableError(err))
	require.NotNil(t, d)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimitChecks.WithLabelValues("error")))
}

func TestLimiter_InvalidConfiguration(t *testing.T) {
	limiter, _, store := newTestLimiter()

	for _, tc := range []struct {
		key    string
		max    int
		window time.Duration
	}{
		{"", 1, time.Minute},
		{"k", 0, time.Minute},
		{"k", 1, 0},
	} {
		d, err := limiter.Check(context.Background(), tc.key, tc.max, tc.window)
		assert.True(t, services.IsInternalError(err))
		assert.False(t, d.Allowed)
	}
	assert.Equal(t, 0, store.Len())
}

func TestLimiter_CleanupStaleCounters(t *testing.T) {
	limiter, clock, store := newTestLimiter()
	ctx := context.Background()

	_, _ = limiter.Check(ctx, "old", 5, time.Minute)
	clock.Advance(5 * time.Minute)
	_, _ = limiter.Check(ctx, "fresh", 5, time.Minute)

	removed, err := limiter.CleanupStaleCounters(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, store.Len())

	// a store without pruning support is a no-op
	noPrune := NewLimiter(failingStore{}, clock, zap.NewNop(), nil)
	removed, err = noPrune.CleanupStaleCounters(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestLimiter_StartCleanupWorkerStopsOnCancel(t *testing.T) {
	limiter, _, _ := newTestLimiter()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		limiter.StartCleanupWorker(ctx, time.Millisecond, time.Minute)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop")
	}
}

func TestLimiter_StartCleanupWorkerRejectsBadInterval(t *testing.T) {
	limiter, _, _ := newTestLimiter()

	for _, interval := range []time.Duration{0, -time.Second} {
		done := make(chan struct{})
		go func() {
			limiter.StartCleanupWorker(context.Background(), interval, time.Minute)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("cleanup worker with interval %v did not return", interval)
		}
	}
}
