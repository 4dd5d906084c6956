package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/signal-admin/backend/middleware"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/services/gate"
	"github.com/upb/signal-admin/backend/services/session"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// SuspendInput identifies the user whose sessions are revoked
type SuspendInput struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// AuditTarget returns the suspended user id
func (in SuspendInput) AuditTarget() string { return in.UserID }

// SuspendResponse reports how many sessions were revoked
type SuspendResponse struct {
	UserID          string `json:"user_id"`
	RevokedSessions int64  `json:"revoked_sessions"`
}

// UserHandler handles administrative user actions
type UserHandler struct {
	gate     *gate.Gate
	sessions *session.Manager
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(g *gate.Gate, sessions *session.Manager, logger *zap.Logger) *UserHandler {
	return &UserHandler{gate: g, sessions: sessions, logger: logger}
}

// HandleSuspend handles POST /api/v1/users/{id}/suspend. Every live session
// of the user is revoked as an administrative action.
func (h *UserHandler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)
	in := SuspendInput{UserID: chi.URLParam(r, "id")}

	resp, err := gate.Guard(ctx, h.gate, gate.OpUserSuspend, actor, in, func(ctx context.Context) (SuspendResponse, error) {
		n, err := h.sessions.RevokeAllSessions(ctx, in.UserID, models.RevokedByAdmin)
		return SuspendResponse{UserID: in.UserID, RevokedSessions: n}, err
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Warn("user suspended",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("actor_id", actor.ID),
		zap.String("user_id", in.UserID),
		zap.Int64("revoked_sessions", resp.RevokedSessions))

	_ = utils.WriteOK(w, resp)
}

// MeResponse describes the caller
type MeResponse struct {
	Actor     models.ActorIdentity `json:"actor"`
	SessionID string               `json:"session_id,omitempty"`
}

// HandleMe handles GET /api/v1/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorFromContext(r.Context())
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp := MeResponse{Actor: *actor}
	if s := middleware.GetSessionFromContext(r.Context()); s != nil {
		resp.SessionID = s.ID
	}
	_ = utils.WriteOK(w, resp)
}
