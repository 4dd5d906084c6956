package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/signal-admin/backend/middleware"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/services/gate"
	"github.com/upb/signal-admin/backend/services/session"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// SuspicionRecorder writes detected client changes to the audit trail
type SuspicionRecorder interface {
	LogSuspiciousActivity(ctx context.Context, actorID, sessionID string, addressChanged, agentChanged bool, lastSeenAddress string)
}

// CookieConfig controls the session cookie
type CookieConfig struct {
	Name   string
	Secure bool
}

// SessionResponse is a session as shown to its owner
type SessionResponse struct {
	ID             string    `json:"id"`
	NetworkAddress string    `json:"network_address"`
	ClientAgent    string    `json:"client_agent"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Current        bool      `json:"current"`
}

// CreateSessionResponse is returned by POST /api/v1/sessions
type CreateSessionResponse struct {
	Session            SessionResponse          `json:"session"`
	Suspicious         *session.SuspicionReport `json:"suspicious"`
	ConcurrentSessions bool                     `json:"concurrent_sessions"`
}

// AuditTarget returns the new session id
func (r *CreateSessionResponse) AuditTarget() string { return r.Session.ID }

// sessionRef identifies the session being revoked
type sessionRef struct {
	ID string `validate:"required"`
}

func (s sessionRef) AuditTarget() string { return s.ID }

// revokedCount is the result of bulk revocation
type revokedCount struct {
	Revoked int64 `json:"revoked"`
}

// SessionHandler handles session HTTP requests
type SessionHandler struct {
	gate     *gate.Gate
	sessions *session.Manager
	audit    SuspicionRecorder
	cookie   CookieConfig
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(g *gate.Gate, sessions *session.Manager, audit SuspicionRecorder, cookie CookieConfig, logger *zap.Logger) *SessionHandler {
	if cookie.Name == "" {
		cookie.Name = "sid"
	}
	return &SessionHandler{
		gate:     g,
		sessions: sessions,
		audit:    audit,
		cookie:   cookie,
		logger:   logger,
	}
}

// HandleCreate handles POST /api/v1/sessions
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)
	address, agent := utils.ClientIP(r), r.UserAgent()

	resp, err := gate.Guard(ctx, h.gate, gate.OpSessionCreate, actor, nil, func(ctx context.Context) (*CreateSessionResponse, error) {
		s, err := h.sessions.CreateSession(ctx, actor.ID, address, agent)
		if err != nil {
			return nil, err
		}

		report, err := h.sessions.DetectSuspiciousActivity(ctx, actor.ID, address, agent, s.ID)
		if err != nil {
			return nil, err
		}
		if report.Suspicious {
			h.audit.LogSuspiciousActivity(ctx, actor.ID, s.ID, report.AddressChanged, report.AgentChanged, report.LastSeenNetworkAddress)
		}

		concurrent, err := h.sessions.HasConcurrentSessions(ctx, actor.ID)
		if err != nil {
			return nil, err
		}

		return &CreateSessionResponse{
			Session:            toSessionResponse(s, s.ID),
			Suspicious:         report,
			ConcurrentSessions: concurrent,
		}, nil
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    resp.Session.ID,
		Path:     "/",
		Expires:  resp.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	h.logger.Info("session issued",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("actor_id", actor.ID),
		zap.Bool("suspicious", resp.Suspicious.Suspicious),
		zap.Bool("concurrent_sessions", resp.ConcurrentSessions))

	_ = utils.WriteCreated(w, resp)
}

// HandleList handles GET /api/v1/sessions
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	var currentID string
	if current := middleware.GetSessionFromContext(ctx); current != nil {
		currentID = current.ID
	}

	list, err := gate.Guard(ctx, h.gate, gate.OpSessionList, actor, nil, func(ctx context.Context) ([]SessionResponse, error) {
		live, err := h.sessions.ListActiveSessions(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		out := make([]SessionResponse, len(live))
		for i, s := range live {
			out[i] = toSessionResponse(s, currentID)
		}
		return out, nil
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, list)
}

// HandleLogout handles DELETE /api/v1/sessions/current
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	var ref sessionRef
	if current := middleware.GetSessionFromContext(ctx); current != nil {
		ref.ID = current.ID
	}

	_, err := gate.Guard(ctx, h.gate, gate.OpSessionRevoke, actor, ref, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.sessions.RevokeSession(ctx, ref.ID, models.RevokedByLogout)
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.clearCookie(w)
	utils.WriteNoContent(w)
}

// HandleRevokeAll handles DELETE /api/v1/sessions
func (h *SessionHandler) HandleRevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	result, err := gate.Guard(ctx, h.gate, gate.OpSessionRevokeAll, actor, nil, func(ctx context.Context) (revokedCount, error) {
		n, err := h.sessions.RevokeAllSessions(ctx, actor.ID, models.RevokedByLogout)
		return revokedCount{Revoked: n}, err
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.clearCookie(w)
	_ = utils.WriteOK(w, result)
}

func (h *SessionHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func toSessionResponse(s *models.Session, currentID string) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		NetworkAddress: s.NetworkAddress,
		ClientAgent:    s.ClientAgent,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		Current:        s.ID == currentID,
	}
}
