// Package session manages server-side sessions: creation bound to a client
// fingerprint, validation on every request, revocation, inactivity logout,
// anomaly detection and the expiry sweep.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/upb/signal-admin/backend/internal/observability"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"github.com/upb/signal-admin/backend/services"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// DefaultTTL is the absolute lifetime of a session
const DefaultTTL = 7 * 24 * time.Hour

// InvalidReason explains why a session failed validation
type InvalidReason string

const (
	ReasonNotFound            InvalidReason = "not_found"
	ReasonActorMismatch       InvalidReason = "actor_mismatch"
	ReasonFingerprintMismatch InvalidReason = "fingerprint_mismatch"
	ReasonRevoked             InvalidReason = "revoked"
	ReasonExpired             InvalidReason = "expired"
	ReasonInactive            InvalidReason = "inactive"
)

// ValidationResult is the outcome of ValidateSession
type ValidationResult struct {
	Valid   bool
	Reason  InvalidReason
	Session *models.Session
}

// SuspicionReport compares a request with the actor's last active session
type SuspicionReport struct {
	Suspicious             bool   `json:"suspicious"`
	AddressChanged         bool   `json:"address_changed"`
	AgentChanged           bool   `json:"agent_changed"`
	LastSeenNetworkAddress string `json:"last_seen_network_address,omitempty"`
	LastSeenClientAgent    string `json:"last_seen_client_agent,omitempty"`
}

// Config holds the manager settings
type Config struct {
	TTL time.Duration
	// InactivityTimeout revokes sessions idle for longer during validation.
	// Zero disables it.
	InactivityTimeout time.Duration
}

// Manager owns the session lifecycle. The store owns the records; the
// manager only changes last activity and revocation fields.
type Manager struct {
	store   repositories.SessionRepository
	cfg     Config
	clock   utils.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewManager creates a Manager. A zero TTL means DefaultTTL and a nil clock
// means the system clock.
func NewManager(store repositories.SessionRepository, cfg Config, clock utils.Clock, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Manager{
		store:   store,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CreateSession issues a new session for the actor bound to the client's
// address and agent
func (m *Manager) CreateSession(ctx context.Context, actorID, networkAddress, clientAgent string) (*models.Session, error) {
	if actorID == "" {
		return nil, services.NewValidationFailedError("actor id is required", nil)
	}

	id, err := NewID()
	if err != nil {
		return nil, services.WrapInternal("failed to create session", err)
	}

	now := m.clock.Now()
	s := models.NewSession(id, actorID, Fingerprint(networkAddress, clientAgent),
		networkAddress, clientAgent, now, m.cfg.TTL)

	if err := m.store.Create(ctx, s); err != nil {
		m.logger.Error("failed to store session", zap.String("actor_id", actorID), zap.Error(err))
		return nil, services.NewStorageUnavailableError("create session", err)
	}

	m.metrics.SessionEvent("created", "")
	m.logger.Info("session created",
		zap.String("actor_id", actorID),
		zap.Time("expires_at", s.ExpiresAt))
	return s, nil
}

// ValidateSession checks a presented session id against the actor and the
// client fingerprint and refreshes its last activity. A store failure yields
// an invalid result together with a StorageUnavailable error.
func (m *Manager) ValidateSession(ctx context.Context, sessionID, actorID, networkAddress, clientAgent string) (*ValidationResult, error) {
	s, err := m.store.GetByID(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return m.invalid(ReasonNotFound, nil), nil
	}
	if err != nil {
		return m.invalid("", nil), services.NewStorageUnavailableError("validate session", err)
	}

	if s.ActorID != actorID {
		m.logger.Warn("session presented by another actor",
			zap.String("actor_id", actorID),
			zap.String("session_actor_id", s.ActorID))
		return m.invalid(ReasonActorMismatch, nil), nil
	}

	fp := Fingerprint(networkAddress, clientAgent)
	if subtle.ConstantTimeCompare([]byte(fp), []byte(s.Fingerprint)) != 1 {
		m.logger.Warn("session fingerprint mismatch", zap.String("actor_id", actorID))
		return m.invalid(ReasonFingerprintMismatch, s), nil
	}

	now := m.clock.Now()
	if s.Revoked {
		return m.invalid(ReasonRevoked, s), nil
	}
	if s.IsExpired(now) {
		return m.invalid(ReasonExpired, s), nil
	}

	if m.cfg.InactivityTimeout > 0 && now.Sub(s.LastActivityAt) > m.cfg.InactivityTimeout {
		if _, err := m.AutoLogoutInactive(ctx, s.ID, m.cfg.InactivityTimeout); err != nil {
			return m.invalid("", s), err
		}
		s.MarkRevoked(models.RevokedByInactivity, now)
		m.logger.Info("session logged out for inactivity", zap.String("actor_id", actorID))
		return m.invalid(ReasonInactive, s), nil
	}

	if err := m.store.TouchActivity(ctx, s.ID, now); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return m.invalid(ReasonNotFound, nil), nil
		}
		return m.invalid("", s), services.NewStorageUnavailableError("touch session", err)
	}
	s.LastActivityAt = now

	m.metrics.SessionEvent("validated", "")
	return &ValidationResult{Valid: true, Session: s}, nil
}

func (m *Manager) invalid(reason InvalidReason, s *models.Session) *ValidationResult {
	label := string(reason)
	if label == "" {
		label = "storage_unavailable"
	}
	m.metrics.SessionEvent("invalid", label)
	return &ValidationResult{Valid: false, Reason: reason, Session: s}
}

// RevokeSession revokes one session. Unknown or already revoked sessions are
// not an error.
func (m *Manager) RevokeSession(ctx context.Context, sessionID string, reason models.RevocationReason) error {
	if err := m.store.Revoke(ctx, sessionID, reason, m.clock.Now()); err != nil {
		return services.NewStorageUnavailableError("revoke session", err)
	}
	m.metrics.SessionEvent("revoked", string(reason))
	m.logger.Info("session revoked", zap.String("reason", string(reason)))
	return nil
}

// RevokeAllSessions revokes every live session of the actor and returns how
// many were changed
func (m *Manager) RevokeAllSessions(ctx context.Context, actorID string, reason models.RevocationReason) (int64, error) {
	n, err := m.store.RevokeAllForActor(ctx, actorID, reason, m.clock.Now())
	if err != nil {
		return 0, services.NewStorageUnavailableError("revoke sessions", err)
	}
	m.metrics.SessionEvent("revoked_all", string(reason))
	m.logger.Info("all sessions revoked",
		zap.String("actor_id", actorID),
		zap.String("reason", string(reason)),
		zap.Int64("count", n))
	return n, nil
}

// ListActiveSessions returns the actor's live sessions
func (m *Manager) ListActiveSessions(ctx context.Context, actorID string) ([]*models.Session, error) {
	all, err := m.store.ListByActor(ctx, actorID)
	if err != nil {
		return nil, services.NewStorageUnavailableError("list sessions", err)
	}

	now := m.clock.Now()
	live := make([]*models.Session, 0, len(all))
	for _, s := range all {
		if s.IsLive(now) {
			live = append(live, s)
		}
	}
	return live, nil
}

// HasConcurrentSessions reports whether the actor has more than one live session
func (m *Manager) HasConcurrentSessions(ctx context.Context, actorID string) (bool, error) {
	live, err := m.ListActiveSessions(ctx, actorID)
	if err != nil {
		return false, err
	}
	return len(live) > 1, nil
}

// DetectSuspiciousActivity compares the request's address and agent with the
// actor's most recently active session other than excludeSessionID. Without
// a prior session nothing is suspicious.
func (m *Manager) DetectSuspiciousActivity(ctx context.Context, actorID, networkAddress, clientAgent, excludeSessionID string) (*SuspicionReport, error) {
	all, err := m.store.ListByActor(ctx, actorID)
	if err != nil {
		return nil, services.NewStorageUnavailableError("detect suspicious activity", err)
	}

	var last *models.Session
	for _, s := range all {
		if s.ID == excludeSessionID {
			continue
		}
		if last == nil || s.LastActivityAt.After(last.LastActivityAt) {
			last = s
		}
	}

	report := &SuspicionReport{}
	if last == nil {
		return report, nil
	}

	report.LastSeenNetworkAddress = last.NetworkAddress
	report.LastSeenClientAgent = last.ClientAgent
	report.AddressChanged = last.NetworkAddress != networkAddress
	report.AgentChanged = last.ClientAgent != clientAgent
	report.Suspicious = report.AddressChanged || report.AgentChanged

	if report.Suspicious {
		m.metrics.SessionEvent("suspicious", "")
		m.logger.Warn("suspicious session activity",
			zap.String("actor_id", actorID),
			zap.Bool("address_changed", report.AddressChanged),
			zap.Bool("agent_changed", report.AgentChanged))
	}
	return report, nil
}

// AutoLogoutInactive revokes the session if it has been idle for longer than
// timeout. It returns true only when this call revoked it.
func (m *Manager) AutoLogoutInactive(ctx context.Context, sessionID string, timeout time.Duration) (bool, error) {
	s, err := m.store.GetByID(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, services.NewStorageUnavailableError("auto logout", err)
	}
	if s.Revoked {
		return false, nil
	}

	now := m.clock.Now()
	if now.Sub(s.LastActivityAt) <= timeout {
		return false, nil
	}

	if err := m.store.Revoke(ctx, sessionID, models.RevokedByInactivity, now); err != nil {
		return false, services.NewStorageUnavailableError("auto logout", err)
	}
	m.metrics.SessionEvent("revoked", string(models.RevokedByInactivity))
	return true, nil
}

// CleanupExpiredSessions deletes sessions past their absolute expiry,
// revoked or not
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	if n > 0 {
		m.metrics.SessionEvent("expired_deleted", "")
	}
	m.logger.Info("cleaned up expired sessions", zap.Int64("rows_deleted", n))
	return n, nil
}

// StartCleanupWorker runs CleanupExpiredSessions every interval until ctx is done
func (m *Manager) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("started session cleanup worker", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			if _, err := m.CleanupExpiredSessions(ctx); err != nil {
				m.logger.Error("failed to cleanup expired sessions", zap.Error(err))
			}
		case <-ctx.Done():
			m.logger.Info("stopping session cleanup worker")
			return
		}
	}
}
