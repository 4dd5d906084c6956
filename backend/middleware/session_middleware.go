package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/signal-admin/backend/services"
	"github.com/upb/signal-admin/backend/services/session"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// SessionHeader carries the session id for non-browser clients
const SessionHeader = "X-Session-ID"

// SessionValidator checks a presented session against the request
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID, actorID, networkAddress, clientAgent string) (*session.ValidationResult, error)
}

// SessionMiddleware requires a live session bound to the authenticated actor
type SessionMiddleware struct {
	sessions   SessionValidator
	cookieName string
	logger     *zap.Logger
}

// NewSessionMiddleware creates a new SessionMiddleware
func NewSessionMiddleware(sessions SessionValidator, cookieName string, logger *zap.Logger) *SessionMiddleware {
	if cookieName == "" {
		cookieName = "sid"
	}
	return &SessionMiddleware{
		sessions:   sessions,
		cookieName: cookieName,
		logger:     logger,
	}
}

// RequireSession validates the session presented in the X-Session-ID header
// or the session cookie. Clients only ever see a generic 401; the reason is
// logged. It must run after RequireAuth.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		actor := GetActorFromContext(ctx)
		if actor == nil {
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		sessionID := m.sessionID(r)
		if sessionID == "" {
			m.logger.Info("session missing",
				zap.String("request_id", requestID),
				zap.String("actor_id", actor.ID))
			_ = utils.WriteSessionInvalid(w)
			return
		}

		result, err := m.sessions.ValidateSession(ctx, sessionID, actor.ID, utils.ClientIP(r), r.UserAgent())
		if err != nil {
			m.logger.Error("session validation failed",
				zap.String("request_id", requestID),
				zap.String("actor_id", actor.ID),
				zap.Error(err))
			if services.IsStorageUnavailableError(err) {
				_ = utils.WriteServiceUnavailable(w, "")
				return
			}
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		if !result.Valid {
			m.logger.Info("session rejected",
				zap.String("request_id", requestID),
				zap.String("actor_id", actor.ID),
				zap.String("reason", string(result.Reason)))
			_ = utils.WriteSessionInvalid(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(ctx, result.Session)))
	})
}

func (m *SessionMiddleware) sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if cookie, err := r.Cookie(m.cookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
