package models

import "time"

// SessionState is the lifecycle state of a session at a point in time
type SessionState string

const (
	SessionStateActive  SessionState = "active"
	SessionStateRevoked SessionState = "revoked"
	SessionStateExpired SessionState = "expired"
)

// RevocationReason records why a session was revoked
type RevocationReason string

const (
	RevokedByLogout     RevocationReason = "logout"
	RevokedByAdmin      RevocationReason = "admin"
	RevokedByCompromise RevocationReason = "compromise"
	RevokedByInactivity RevocationReason = "inactivity"
)

// Session is a server-side session bound to an actor and a client fingerprint
type Session struct {
	ID             string           `json:"id" db:"id"`
	ActorID        string           `json:"actor_id" db:"actor_id"`
	Fingerprint    string           `json:"fingerprint" db:"fingerprint"`
	NetworkAddress string           `json:"network_address" db:"network_address"`
	ClientAgent    string           `json:"client_agent" db:"client_agent"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	LastActivityAt time.Time        `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt      time.Time        `json:"expires_at" db:"expires_at"`
	Revoked        bool             `json:"revoked" db:"revoked"`
	RevokedAt      *time.Time       `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokedReason  RevocationReason `json:"revoked_reason,omitempty" db:"revoked_reason"`
}

// TableName returns the table name for the Session model
func (Session) TableName() string {
	return "sessions"
}

// NewSession creates a session that is active from now until now+ttl
func NewSession(id, actorID, fingerprint, networkAddress, clientAgent string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:             id,
		ActorID:        actorID,
		Fingerprint:    fingerprint,
		NetworkAddress: networkAddress,
		ClientAgent:    clientAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ttl),
	}
}

// IsExpired reports whether the session has passed its absolute expiry
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// IsLive reports whether the session can still be used at now
func (s *Session) IsLive(now time.Time) bool {
	return !s.Revoked && !s.IsExpired(now)
}

// State returns the lifecycle state at now. Revocation wins over expiry.
func (s *Session) State(now time.Time) SessionState {
	switch {
	case s.Revoked:
		return SessionStateRevoked
	case s.IsExpired(now):
		return SessionStateExpired
	default:
		return SessionStateActive
	}
}

// MarkRevoked sets the revocation fields. Already revoked sessions keep their
// original reason and timestamp.
func (s *Session) MarkRevoked(reason RevocationReason, at time.Time) bool {
	if s.Revoked {
		return false
	}
	s.Revoked = true
	s.RevokedAt = &at
	s.RevokedReason = reason
	return true
}
