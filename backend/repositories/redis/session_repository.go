package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
)

const (
	sessionKeyPrefix = "session:"
	actorKeyPrefix   = "session:actor:"
	expiryKey        = "session:expiry"
	ownerKey         = "session:owner"

	// expiredRetention keeps expired records readable until the sweep runs
	expiredRetention = 24 * time.Hour
)

// SessionRepository stores sessions as JSON blobs with a per-actor index set,
// an id to actor hash and a sorted set of expiry times used by the sweep.
type SessionRepository struct {
	client goredis.UniversalClient
}

// NewSessionRepository creates a SessionRepository
func NewSessionRepository(client goredis.UniversalClient) *SessionRepository {
	return &SessionRepository{client: client}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func actorKey(actorID string) string {
	return actorKeyPrefix + actorID
}

func keyTTL(s *models.Session) time.Duration {
	ttl := time.Until(s.ExpiresAt) + expiredRetention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	key := sessionKey(session.ID)

	// blob and indexes are written in one MULTI, guarded by WATCH on the blob
	txf := func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return repositories.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, keyTTL(session))
			pipe.SAdd(ctx, actorKey(session.ActorID), session.ID)
			pipe.HSet(ctx, ownerKey, session.ID, session.ActorID)
			pipe.ZAdd(ctx, expiryKey, goredis.Z{Score: float64(session.ExpiresAt.UnixMilli()), Member: session.ID})
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 5; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if errors.Is(err, repositories.ErrConflict) {
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to create session %s: too much contention", session.ID)
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) ListByActor(ctx context.Context, actorID string) ([]*models.Session, error) {
	ids, err := r.client.SMembers(ctx, actorKey(actorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetByID(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			// key expired before the sweep removed the index entry
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// update applies fn to the stored session under optimistic locking
func (r *SessionRepository) update(ctx context.Context, id string, fn func(*models.Session) bool) (bool, error) {
	key := sessionKey(id)
	changed := false

	txf := func(tx *goredis.Tx) error {
		changed = false
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		var s models.Session
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}
		if !fn(&s) {
			return nil
		}
		out, err := json.Marshal(&s)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, out, goredis.KeepTTL)
			return nil
		})
		if err == nil {
			changed = true
		}
		return err
	}

	for attempt := 0; attempt < 5; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if errors.Is(err, goredis.Nil) {
			return false, repositories.ErrNotFound
		}
		if err != nil {
			return false, fmt.Errorf("failed to update session: %w", err)
		}
		return changed, nil
	}
	return false, fmt.Errorf("failed to update session %s: too much contention", id)
}

func (r *SessionRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.update(ctx, id, func(s *models.Session) bool {
		if !at.After(s.LastActivityAt) {
			return false
		}
		s.LastActivityAt = at
		return true
	})
	return err
}

func (r *SessionRepository) Revoke(ctx context.Context, id string, reason models.RevocationReason, at time.Time) error {
	_, err := r.update(ctx, id, func(s *models.Session) bool {
		return s.MarkRevoked(reason, at)
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	return err
}

func (r *SessionRepository) RevokeAllForActor(ctx context.Context, actorID string, reason models.RevocationReason, at time.Time) (int64, error) {
	ids, err := r.client.SMembers(ctx, actorKey(actorID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	var n int64
	for _, id := range ids {
		changed, err := r.update(ctx, id, func(s *models.Session) bool {
			return s.MarkRevoked(reason, at)
		})
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	return n, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	// expires_at < now, so the upper bound is exclusive
	ids, err := r.client.ZRangeByScore(ctx, expiryKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired sessions: %w", err)
	}

	var n int64
	for _, id := range ids {
		// the owner hash outlives the blob, which may already be gone by TTL
		actorID, err := r.client.HGet(ctx, ownerKey, id).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return n, fmt.Errorf("failed to look up session owner: %w", err)
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, sessionKey(id))
		pipe.ZRem(ctx, expiryKey, id)
		pipe.HDel(ctx, ownerKey, id)
		if actorID != "" {
			pipe.SRem(ctx, actorKey(actorID), id)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return n, fmt.Errorf("failed to delete session: %w", err)
		}
		n++
	}
	return n, nil
}
