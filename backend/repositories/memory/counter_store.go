// Package memory provides in-process repository implementations used for
// single-instance deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/upb/signal-admin/backend/models"
)

type counterEntry struct {
	mu      sync.Mutex
	counter models.RateLimitCounter
	removed bool
}

// CounterStore keeps rate limit counters in a map with one mutex per key
type CounterStore struct {
	mu      sync.Mutex
	entries map[string]*counterEntry
}

// NewCounterStore creates an empty CounterStore
func NewCounterStore() *CounterStore {
	return &CounterStore{entries: make(map[string]*counterEntry)}
}

func (s *CounterStore) entry(key string) *counterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &counterEntry{counter: models.RateLimitCounter{Key: key}}
		s.entries[key] = e
	}
	return e
}

// Hit implements repositories.CounterStore
func (s *CounterStore) Hit(ctx context.Context, key string, max int, window time.Duration, now time.Time) (*models.RateLimitCounter, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	for {
		e := s.entry(key)
		e.mu.Lock()
		if e.removed {
			// pruned between lookup and lock
			e.mu.Unlock()
			continue
		}
		allowed := e.counter.Hit(now, max, window)
		snapshot := e.counter
		e.mu.Unlock()
		return &snapshot, allowed, nil
	}
}

// PruneBefore drops counters whose window started before cutoff
func (s *CounterStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, e := range s.entries {
		e.mu.Lock()
		if e.counter.WindowStartedAt.Before(cutoff) {
			e.removed = true
			delete(s.entries, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of tracked keys
func (s *CounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
