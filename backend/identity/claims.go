package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/signal-admin/backend/models"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")

	// ErrInvalidRole is returned when the role claim is not a known tier
	ErrInvalidRole = errors.New("invalid role claim")
)

// Claims represents the claims the service reads from a bearer token
type Claims struct {
	jwt.RegisteredClaims
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	CustomRole string `json:"custom:role,omitempty"`
}

// RoleClaim returns role, falling back to custom:role
func (c *Claims) RoleClaim() string {
	if strings.TrimSpace(c.Role) != "" {
		return c.Role
	}
	return c.CustomRole
}

// ToActor converts validated claims into the request's actor
func (c *Claims) ToActor() (*models.ActorIdentity, error) {
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	raw := c.RoleClaim()
	if raw == "" {
		return nil, fmt.Errorf("%w: role", ErrMissingClaim)
	}
	role := models.ParseRole(raw)
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}

	return &models.ActorIdentity{
		ID:            c.Subject,
		Role:          role,
		Email:         c.Email,
		Authenticated: true,
	}, nil
}
