package models

import "strings"

// Role represents the tier of an authenticated actor
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleUser    Role = "user"
	RoleViewer  Role = "viewer"
)

var roleTiers = map[Role]int{
	RoleViewer:  1,
	RoleUser:    2,
	RoleAnalyst: 3,
	RoleAdmin:   4,
}

// ParseRole normalizes a role claim. Unknown values are returned as-is and
// have no tier.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Tier returns the numeric tier of the role, 0 when unknown
func (r Role) Tier() int {
	return roleTiers[r]
}

// IsValid reports whether the role is one of the known tiers
func (r Role) IsValid() bool {
	return r.Tier() > 0
}

// Satisfies returns true if r is at least as privileged as min
func (r Role) Satisfies(min Role) bool {
	if !r.IsValid() || !min.IsValid() {
		return false
	}
	return r.Tier() >= min.Tier()
}

// ActorIdentity is the caller of an operation as resolved by the identity
// provider. It is immutable for the duration of one request.
type ActorIdentity struct {
	ID            string `json:"id"`
	Role          Role   `json:"role"`
	Email         string `json:"email,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous returns an unauthenticated actor
func Anonymous() ActorIdentity {
	return ActorIdentity{}
}

// IsAdmin returns true if the actor has the admin role
func (a ActorIdentity) IsAdmin() bool {
	return a.Authenticated && a.Role == RoleAdmin
}
